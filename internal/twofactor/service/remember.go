package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
)

// rememberToken is the cookie payload. It binds the device to the secret
// that was active when the code was checked; rotating the secret revokes
// every remembered device.
type rememberToken struct {
	Secret  string `json:"secret"`
	Expires int64  `json:"expires"` // Unix seconds
}

// RememberPolicy issues and checks the remember-device cookie.
type RememberPolicy struct {
	cipher *cryptox.Cipher
	cookie RememberCookie
	now    func() time.Time
}

func NewRememberPolicy(c *cryptox.Cipher, cookie RememberCookie) *RememberPolicy {
	d := DefaultConfig().Remember
	if cookie.Name == "" {
		cookie.Name = d.Name
	}
	if cookie.Expires <= 0 {
		cookie.Expires = d.Expires
	}
	if cookie.Path == "" {
		cookie.Path = d.Path
	}
	return &RememberPolicy{cipher: c, cookie: cookie, now: time.Now}
}

// Remember writes the cookie for secret.
func (p *RememberPolicy) Remember(_ context.Context, cookies Cookies, secret string) error {
	expires := p.now().Add(p.cookie.Expires)
	raw, err := json.Marshal(rememberToken{Secret: secret, Expires: expires.Unix()})
	if err != nil {
		return fmt.Errorf("encode remember token: %w", err)
	}
	sealed, err := p.cipher.Encrypt(string(raw))
	if err != nil {
		return fmt.Errorf("encrypt remember token: %w", err)
	}

	cookies.Write(p.cookie.Name, sealed, CookieOptions{
		Expires:  expires,
		Path:     p.cookie.Path,
		HTTPOnly: p.cookie.HTTPOnly,
		Secure:   p.cookie.Secure,
	})
	return nil
}

// Matches reports whether the request carries an unexpired cookie issued for
// exactly secret. Anything unreadable is treated as no cookie.
func (p *RememberPolicy) Matches(cookies Cookies, secret string) bool {
	if secret == "" {
		return false
	}
	sealed, ok := cookies.Read(p.cookie.Name)
	if !ok {
		return false
	}
	plain, ok, err := p.cipher.Decrypt(sealed)
	if err != nil || !ok {
		return false
	}

	var tok rememberToken
	if err := json.Unmarshal([]byte(plain), &tok); err != nil {
		return false
	}
	if tok.Expires <= p.now().Unix() {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok.Secret), []byte(secret)) == 1
}
