package service_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
	"github.com/stretchr/testify/require"
)

const nateSecret = "FDJBDYSSZMLJBOUG"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 15, 0, time.UTC)

type memSession struct {
	data map[string]string
}

func newMemSession() *memSession { return &memSession{data: map[string]string{}} }

func (s *memSession) Read(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memSession) Write(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

func (s *memSession) Delete(_ context.Context, key string) error {
	delete(s.data, key)
	return nil
}

type brokenSession struct{ err error }

func (s brokenSession) Read(context.Context, string) (string, bool, error) { return "", false, s.err }
func (s brokenSession) Write(context.Context, string, string) error        { return s.err }
func (s brokenSession) Delete(context.Context, string) error               { return s.err }

type memCookies struct {
	values map[string]string
	opts   map[string]service.CookieOptions
}

func newMemCookies() *memCookies {
	return &memCookies{values: map[string]string{}, opts: map[string]service.CookieOptions{}}
}

func (c *memCookies) Read(name string) (string, bool) {
	v, ok := c.values[name]
	return v, ok
}

func (c *memCookies) Write(name, value string, opts service.CookieOptions) {
	c.values[name] = value
	c.opts[name] = opts
}

// fakeFinder knows mariano (no second factor) and nate (secret set).
type fakeFinder struct {
	calls   int
	secrets map[string]any
	extra   domain.Identity // merged into every identity found
	err     error
}

func newFakeFinder() *fakeFinder {
	return &fakeFinder{secrets: map[string]any{"mariano": nil, "nate": nateSecret}}
}

func (f *fakeFinder) FindByCredentials(_ context.Context, identifier, password, _ string) (domain.Identity, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	secret, ok := f.secrets[identifier]
	if !ok || password != "password" {
		return nil, service.ErrCredentialsMismatch
	}
	id := domain.Identity{"username": identifier, "secret": secret}
	for k, v := range f.extra {
		id[k] = v
	}
	return id, nil
}

func newEngine(t *testing.T) *totpx.Engine {
	t.Helper()
	e, err := totpx.New(totpx.Config{Issuer: "Bartab"})
	require.NoError(t, err)
	return e
}

func newCipher(t *testing.T, purpose string) *cryptox.Cipher {
	t.Helper()
	c, err := cryptox.NewCipher("test-encryption-key", "", purpose)
	require.NoError(t, err)
	return c
}

func codeAt(t *testing.T, e *totpx.Engine, at time.Time) string {
	t.Helper()
	code, err := e.GenerateCode(nateSecret, at)
	require.NoError(t, err)
	return code
}

func loginForm(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func codeForm(code string) url.Values {
	return url.Values{"code": {code}}
}

func loginURL() *url.URL {
	return &url.URL{Scheme: "http", Host: "localhost", Path: "/users/login"}
}
