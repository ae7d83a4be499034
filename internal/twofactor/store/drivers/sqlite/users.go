package sqlite

import (
	"context"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
)

type usersRepo struct {
	db DBTX
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByID, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, getUserByUsername, username))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	ts := now()
	if !u.CreatedAt.IsZero() {
		ts = u.CreatedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, createUser,
		u.ID,
		u.Username,
		u.PreferredName,
		u.PasswordHash,
		mapOptionalString(u.Secret),
		ts,
		ts,
	)
	return mapConstraint(err)
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	return r.exec(ctx, updatePasswordHash, newHash, now(), userID)
}

func (r *usersRepo) SetPendingSecret(ctx context.Context, userID string, secret string) error {
	return r.exec(ctx, setPendingSecret, secret, now(), userID)
}

func (r *usersRepo) ActivatePendingSecret(ctx context.Context, userID string) error {
	return r.exec(ctx, activatePendingSecret, now(), userID)
}

func (r *usersRepo) SetSecret(ctx context.Context, userID string, secret string) error {
	return r.exec(ctx, setSecret, mapOptionalString(&secret), now(), userID)
}

func (r *usersRepo) ClearSecret(ctx context.Context, userID string) error {
	return r.exec(ctx, clearSecret, now(), userID)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	return r.exec(ctx, deleteUser, userID)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, countUsers).Scan(&count); err != nil {
		return false, err
	}
	return count == 0, nil
}

// exec runs a single-row mutation and reports ErrNotFound when no row matched.
func (r *usersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
