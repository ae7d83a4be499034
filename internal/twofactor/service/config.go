package service

import (
	"errors"
	"time"
)

var (
	// ErrConfiguration is returned by constructors when the authenticator
	// cannot be assembled from the given settings.
	ErrConfiguration = errors.New("twofactor: invalid configuration")

	// ErrWrongOrchestrator is returned when an integration adapter is wired
	// without the collaborators it drives.
	ErrWrongOrchestrator = errors.New("twofactor: adapter used with the wrong orchestrator")
)

const (
	DefaultPendingKey     = "TwoFactorAuth.user"
	DefaultCredentialsKey = "TwoFactorAuth.credentials"
	DefaultFinder         = "all"
	DefaultURLChecker     = "default"

	DefaultRememberCookie  = "TwoFactorAuth"
	DefaultRememberExpires = 30 * 24 * time.Hour
)

// Fields names the request and identity fields the authenticator reads.
type Fields struct {
	Username string // Form field and identity column of the identifier
	Password string
	Secret   string // Identity column holding the TOTP secret
	Remember string // Checkbox asking to remember this device
	Code     string // Form field carrying the one-time code
}

// RememberCookie configures the remember-device cookie.
type RememberCookie struct {
	Name     string
	Expires  time.Duration
	HTTPOnly bool
	Secure   bool
	Path     string
}

// URLCheckerConfig selects how the login URL is compared.
type URLCheckerConfig struct {
	Name         string // "default" is the only built-in checker
	UseRegex     bool   // Treat LoginURLs as regular expressions
	CheckFullURL bool   // Compare scheme://host/path instead of the path
}

// Config drives the Authenticator.
type Config struct {
	Fields     Fields
	Finder     string   // Finder name handed to the IdentityFinder
	LoginURLs  []string // Empty disables the login URL check
	URLChecker URLCheckerConfig

	PendingKey     string // Session key used by IdentityCarryOver
	CredentialsKey string // Session key used by CredentialCarryOver

	Remember RememberCookie

	LoginURL  string // Login action, rendered on the verify page
	VerifyURL string // Where the second factor is collected
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		Fields: Fields{
			Username: "username",
			Password: "password",
			Secret:   "secret",
			Remember: "remember",
			Code:     "code",
		},
		Finder:         DefaultFinder,
		URLChecker:     URLCheckerConfig{Name: DefaultURLChecker},
		PendingKey:     DefaultPendingKey,
		CredentialsKey: DefaultCredentialsKey,
		Remember: RememberCookie{
			Name:     DefaultRememberCookie,
			Expires:  DefaultRememberExpires,
			HTTPOnly: true,
			Path:     "/",
		},
		LoginURL:  "/login",
		VerifyURL: "/login/verify",
	}
}

func (f Fields) withDefaults() Fields {
	d := DefaultConfig().Fields
	if f.Username == "" {
		f.Username = d.Username
	}
	if f.Password == "" {
		f.Password = d.Password
	}
	if f.Secret == "" {
		f.Secret = d.Secret
	}
	if f.Remember == "" {
		f.Remember = d.Remember
	}
	if f.Code == "" {
		f.Code = d.Code
	}
	return f
}

// withDefaults fills blank names from DefaultConfig. Booleans are taken as
// given.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	c.Fields = c.Fields.withDefaults()
	if c.Finder == "" {
		c.Finder = d.Finder
	}
	if c.URLChecker.Name == "" {
		c.URLChecker.Name = d.URLChecker.Name
	}
	if c.PendingKey == "" {
		c.PendingKey = d.PendingKey
	}
	if c.CredentialsKey == "" {
		c.CredentialsKey = d.CredentialsKey
	}
	if c.Remember.Name == "" {
		c.Remember.Name = d.Remember.Name
	}
	if c.Remember.Expires <= 0 {
		c.Remember.Expires = d.Remember.Expires
	}
	if c.Remember.Path == "" {
		c.Remember.Path = d.Remember.Path
	}
	return c
}
