package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
)

// PendingStore keeps the identity that passed the first factor in the
// session, under one key. A second Put replaces the first.
//
// Identities are gob encoded so the second factor gets back the same value
// types the finder produced. Non-builtin value types must be registered with
// domain.RegisterValue.
type PendingStore struct {
	session Session
	key     string
}

func NewPendingStore(s Session, key string) *PendingStore {
	if key == "" {
		key = DefaultPendingKey
	}
	return &PendingStore{session: s, key: key}
}

// Put records identity as pending, established at now.
func (p *PendingStore) Put(ctx context.Context, identity domain.Identity, now time.Time) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(domain.PendingAuth{Identity: identity, EstablishedAt: now.UTC()}); err != nil {
		return fmt.Errorf("encode pending identity: %w", err)
	}
	raw := base64.RawStdEncoding.EncodeToString(buf.Bytes())
	if err := p.session.Write(ctx, p.key, raw); err != nil {
		return fmt.Errorf("write pending identity: %w", err)
	}
	return nil
}

// Get returns the pending identity without removing it.
func (p *PendingStore) Get(ctx context.Context) (domain.PendingAuth, bool, error) {
	raw, ok, err := p.session.Read(ctx, p.key)
	if err != nil {
		return domain.PendingAuth{}, false, fmt.Errorf("read pending identity: %w", err)
	}
	if !ok || raw == "" {
		return domain.PendingAuth{}, false, nil
	}

	data, err := base64.RawStdEncoding.DecodeString(raw)
	if err != nil {
		return domain.PendingAuth{}, false, nil
	}
	var pa domain.PendingAuth
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&pa); err != nil || len(pa.Identity) == 0 {
		// Garbage under our key is as good as nothing.
		return domain.PendingAuth{}, false, nil
	}
	return pa, true, nil
}

// Clear removes the pending identity. Clearing an empty store is fine.
func (p *PendingStore) Clear(ctx context.Context) error {
	if err := p.session.Delete(ctx, p.key); err != nil {
		return fmt.Errorf("clear pending identity: %w", err)
	}
	return nil
}
