package sqlite

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories run the same
// statements inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const userColumns = `id, username, preferred_name, password_hash, secret, pending_secret, created_at, updated_at`

const (
	getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	getUserByUsername = `SELECT ` + userColumns + ` FROM users WHERE username = ?`

	listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY created_at, id`

	createUser = `INSERT INTO users (id, username, preferred_name, password_hash, secret, pending_secret, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, NULL, ?, ?)`

	updatePasswordHash = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

	setPendingSecret = `UPDATE users SET pending_secret = ?, updated_at = ? WHERE id = ?`

	activatePendingSecret = `UPDATE users SET secret = pending_secret, pending_secret = NULL, updated_at = ?
WHERE id = ? AND pending_secret IS NOT NULL`

	setSecret = `UPDATE users SET secret = ?, pending_secret = NULL, updated_at = ? WHERE id = ?`

	clearSecret = `UPDATE users SET secret = NULL, pending_secret = NULL, updated_at = ? WHERE id = ?`

	deleteUser = `DELETE FROM users WHERE id = ?`

	countUsers = `SELECT COUNT(*) FROM users`
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
