package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// CarryOver bridges the two requests of a login: whatever the first factor
// established is saved, and the second factor resolves it back into an
// identity.
type CarryOver interface {
	Save(ctx context.Context, s Session, creds domain.Credentials, identity domain.Identity) error

	// Resolve returns the pending identity. ok is false when there is none.
	Resolve(ctx context.Context, s Session) (identity domain.Identity, ok bool, err error)

	Clear(ctx context.Context, s Session) error
}

// IdentityCarryOver stores the resolved identity in a PendingStore.
type IdentityCarryOver struct {
	Key string
	Now func() time.Time
}

func (c IdentityCarryOver) Save(ctx context.Context, s Session, _ domain.Credentials, identity domain.Identity) error {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return NewPendingStore(s, c.Key).Put(ctx, identity, now())
}

func (c IdentityCarryOver) Resolve(ctx context.Context, s Session) (domain.Identity, bool, error) {
	pa, ok, err := NewPendingStore(s, c.Key).Get(ctx)
	if err != nil || !ok {
		return nil, false, err
	}
	return pa.Identity, true, nil
}

func (c IdentityCarryOver) Clear(ctx context.Context, s Session) error {
	return NewPendingStore(s, c.Key).Clear(ctx)
}

// CredentialCarryOver keeps the encrypted credentials in the session and
// re-runs the identity lookup on the second request, so a password change or
// a disabled account between the two requests is honoured.
type CredentialCarryOver struct {
	Key    string
	Cipher *cryptox.Cipher
	Finder IdentityFinder
	Name   string // Finder name
}

func (c CredentialCarryOver) key() string {
	if c.Key == "" {
		return DefaultCredentialsKey
	}
	return c.Key
}

func (c CredentialCarryOver) Save(ctx context.Context, s Session, creds domain.Credentials, _ domain.Identity) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	sealed, err := c.Cipher.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	if err := s.Write(ctx, c.key(), sealed); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (c CredentialCarryOver) Resolve(ctx context.Context, s Session) (domain.Identity, bool, error) {
	log := slogx.FromContext(ctx)

	sealed, _, err := s.Read(ctx, c.key())
	if err != nil {
		return nil, false, fmt.Errorf("read credentials: %w", err)
	}

	plain, ok, err := c.Cipher.Decrypt(sealed)
	if err != nil {
		log.Warn("discarding undecryptable credentials", "err", err)
		return nil, false, c.Clear(ctx, s)
	}
	if !ok {
		return nil, false, nil
	}

	var creds domain.Credentials
	if err := json.Unmarshal([]byte(plain), &creds); err != nil || creds.Identifier == "" || creds.Password == "" {
		return nil, false, c.Clear(ctx, s)
	}

	identity, err := c.Finder.FindByCredentials(ctx, creds.Identifier, creds.Password, c.Name)
	if errors.Is(err, ErrCredentialsMismatch) {
		log.Warn("stored credentials no longer valid", "username", creds.Identifier)
		return nil, false, c.Clear(ctx, s)
	}
	if err != nil {
		return nil, false, fmt.Errorf("find identity: %w", err)
	}
	return identity, true, nil
}

func (c CredentialCarryOver) Clear(ctx context.Context, s Session) error {
	if err := s.Delete(ctx, c.key()); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
