package domain

import "time"

type User struct {
	ID            string
	Username      string
	PreferredName string
	PasswordHash  string  // argon2 encoded
	Secret        *string // TOTP secret (nullable, base32). nil means 2FA is off.
	PendingSecret *string // Secret issued by enrollment but not yet confirmed
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TwoFactorEnabled reports whether a second factor is required at login.
func (u User) TwoFactorEnabled() bool {
	return u.Secret != nil && *u.Secret != ""
}
