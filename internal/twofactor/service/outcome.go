package service

import (
	"context"
	"net/url"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
)

// Status is the result of one login attempt.
type Status string

const (
	StatusAuthenticated        Status = "authenticated"
	StatusCredentialsMissing   Status = "credentials_missing"
	StatusCredentialsInvalid   Status = "credentials_invalid"
	StatusTwoFactorRequired    Status = "two_factor_required"
	StatusTwoFactorInvalidCode Status = "two_factor_invalid_code"
	StatusLoginURLMismatch     Status = "login_url_mismatch"
)

// State is where the login flow stands after an attempt.
type State string

const (
	StateUnauthenticated     State = "unauthenticated"
	StateCredentialsRequired State = "credentials_required"
	StateTwoFactorRequired   State = "two_factor_required"
	StateAuthenticated       State = "authenticated"
	StateCredentialsFailed   State = "credentials_failed"
	StateCodeFailed          State = "code_failed"
)

// Method records which factors produced an authenticated outcome.
type Method string

const (
	MethodPassword   Method = "password"   // No second factor configured
	MethodTOTP       Method = "totp"       // Code checked in this attempt
	MethodRemembered Method = "remembered" // Remember-device cookie matched
)

const (
	MessageCredentialsMissing = "Login credentials not found"
	MessageInvalidCode        = "Invalid two-step verification code."
)

// Outcome is returned for every attempt. Failures are values, not errors;
// Err is only set when infrastructure broke underneath the attempt.
type Outcome struct {
	Status      Status
	State       State
	Identity    domain.Identity // Set when authenticated
	Method      Method
	Message     string // User-visible; empty for primary credential failures
	RedirectURL string // Verify URL while the second factor is outstanding
	Err         error
}

// Authenticated reports whether the attempt established an identity.
func (o Outcome) Authenticated() bool { return o.Status == StatusAuthenticated }

// Session is the per-client key/value storage the flow keeps state in.
type Session interface {
	Read(ctx context.Context, key string) (string, bool, error)
	Write(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// CookieOptions are the attributes of a cookie being written.
type CookieOptions struct {
	Expires  time.Time
	Path     string
	HTTPOnly bool
	Secure   bool
}

// Cookies reads request cookies and queues response cookies.
type Cookies interface {
	Read(name string) (string, bool)
	Write(name, value string, opts CookieOptions)
}

// Attempt is one submitted login request.
type Attempt struct {
	Form    url.Values // Submitted form fields
	URL     *url.URL   // Request URL; scheme and host are needed for full-URL checks
	Session Session
	Cookies Cookies
}

// Observer is told about every outcome, e.g. to count them.
type Observer interface {
	Observe(Outcome)
}
