package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
)

const (
	DefaultCookieName = "twofactor_sid"
	DefaultTTL        = 24 * time.Hour

	flashKey = "_flash"
	keySpace = "sess:"
)

// ManagerConfig controls the session cookie.
type ManagerConfig struct {
	CookieName string        // Optional: default twofactor_sid
	TTL        time.Duration // Optional: idle lifetime, refreshed on every write
	Secure     bool          // Set the Secure attribute (HTTPS deployments)
}

// Manager binds requests to server-side sessions.
type Manager struct {
	backend    Backend
	cookieName string
	ttl        time.Duration
	secure     bool
}

func NewManager(backend Backend, cfg ManagerConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Manager{backend: backend, cookieName: cfg.CookieName, ttl: cfg.TTL, secure: cfg.Secure}
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string { return m.cookieName }

// Load returns the session identified by the request cookie. Without a cookie
// a new session is returned; it is only persisted, and its cookie only sent,
// once something is written to it.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	s := &Session{m: m, w: w}
	if c, err := r.Cookie(m.cookieName); err == nil && len(c.Value) == sessionIDLen {
		s.id = c.Value
	}
	return s
}

// Value reads key from the session with the given id without binding it to
// a request. Used to check that a token's session has not been logged out.
func (m *Manager) Value(ctx context.Context, id, key string) (string, bool, error) {
	if len(id) != sessionIDLen {
		return "", false, nil
	}
	s := &Session{m: m, id: id}
	return s.Read(ctx, key)
}

// Ping reports backend health.
func (m *Manager) Ping(ctx context.Context) error { return m.backend.Ping(ctx) }

// sessionIDLen is the base64url length of a 256-bit token.
const sessionIDLen = 43

// Session is the per-request view of one session. It satisfies the
// Read/Write/Delete contract the authenticator expects. Not safe for
// concurrent use; one request owns it.
type Session struct {
	m    *Manager
	w    http.ResponseWriter
	id   string
	data map[string]string
}

// ID returns the session id, or "" for a session that was never saved.
func (s *Session) ID() string { return s.id }

func (s *Session) Read(ctx context.Context, key string) (string, bool, error) {
	if err := s.load(ctx); err != nil {
		return "", false, err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Session) Write(ctx context.Context, key, value string) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.data[key] = value
	return s.save(ctx)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	if _, ok := s.data[key]; !ok {
		return nil
	}
	delete(s.data, key)
	return s.save(ctx)
}

// AddFlash queues a one-shot message for the next page render.
func (s *Session) AddFlash(ctx context.Context, msg string) error {
	return s.Write(ctx, flashKey, msg)
}

// PopFlash returns and clears the queued message.
func (s *Session) PopFlash(ctx context.Context) (string, error) {
	msg, ok, err := s.Read(ctx, flashKey)
	if err != nil || !ok {
		return "", err
	}
	return msg, s.Delete(ctx, flashKey)
}

// Renew moves the session data under a fresh id. Called when the privilege
// level changes so an id planted before login is useless afterwards.
func (s *Session) Renew(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	old := s.id
	s.id = ""
	if err := s.save(ctx); err != nil {
		return err
	}
	if old != "" {
		return s.m.backend.Delete(ctx, keySpace+old)
	}
	return nil
}

// Destroy removes all session data and expires the cookie.
func (s *Session) Destroy(ctx context.Context) error {
	s.data = map[string]string{}
	if s.id == "" {
		return nil
	}
	err := s.m.backend.Delete(ctx, keySpace+s.id)
	s.id = ""
	http.SetCookie(s.w, &http.Cookie{
		Name:     s.m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

func (s *Session) load(ctx context.Context) error {
	if s.data != nil {
		return nil
	}
	s.data = map[string]string{}
	if s.id == "" {
		return nil
	}

	raw, err := s.m.backend.Get(ctx, keySpace+s.id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: load: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s.data); err != nil {
		// Unreadable data is treated like an expired session.
		s.data = map[string]string{}
	}
	return nil
}

func (s *Session) save(ctx context.Context) error {
	if s.id == "" {
		id, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("session: new id: %w", err)
		}
		s.id = id
		http.SetCookie(s.w, &http.Cookie{
			Name:     s.m.cookieName,
			Value:    s.id,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.m.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := s.m.backend.Set(ctx, keySpace+s.id, string(raw), s.m.ttl); err != nil {
		return fmt.Errorf("session: save: %w", err)
	}
	return nil
}
