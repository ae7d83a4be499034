package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
)

const (
	FinderAll  = "all"  // Every user column except the password hash
	FinderAuth = "auth" // id, username and secret only
)

// dummyHash keeps the cost of an unknown username close to that of a wrong
// password.
const dummyHash = "$argon2id$v=19$m=19456,t=2,p=1$c29tZXNhbHRzb21lc2FsdA$2uR2cE8XWJ9nTUAvHJxvFoyfhJpv0dr6b4hSghZ0t2c"

// StoreFinder looks identities up in the user store and checks the password
// with an Argon2id hasher. Fields must match the authenticator's so the
// username and secret land under the columns it reads.
type StoreFinder struct {
	Users  store.Users
	Hasher cryptox.Hasher
	Fields Fields // Optional: blank names take the defaults
}

func (f StoreFinder) SupportsFinder(name string) bool {
	return name == FinderAll || name == FinderAuth
}

func (f StoreFinder) FindByCredentials(ctx context.Context, identifier, password, finder string) (domain.Identity, error) {
	if !f.SupportsFinder(finder) {
		return nil, fmt.Errorf("%w: unknown finder %q", ErrConfiguration, finder)
	}

	user, err := f.Users.GetUserByUsername(ctx, identifier)
	if errors.Is(err, store.ErrNotFound) {
		_ = f.Hasher.Verify(password, dummyHash)
		return nil, ErrCredentialsMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := f.Hasher.Verify(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, ErrCredentialsMismatch
		}
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}

	return IdentityFromUser(user, finder, f.Fields), nil
}

// IdentityFromUser projects a user record through the named finder, keying
// the username and secret by fields. The secret column is nil when the second
// factor is off.
func IdentityFromUser(u domain.User, finder string, fields Fields) domain.Identity {
	fields = fields.withDefaults()

	var secret any
	if u.TwoFactorEnabled() {
		secret = *u.Secret
	}

	id := domain.Identity{
		"id":            u.ID,
		fields.Username: u.Username,
		fields.Secret:   secret,
	}
	if finder == FinderAuth {
		return id
	}

	id["preferred_name"] = u.PreferredName
	id["created_at"] = u.CreatedAt
	id["updated_at"] = u.UpdatedAt
	return id
}
