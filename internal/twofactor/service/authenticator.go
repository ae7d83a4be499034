package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
)

// ErrCredentialsMismatch is returned by an IdentityFinder when no identity
// matches the submitted credentials. Any other error is an infrastructure
// failure.
var ErrCredentialsMismatch = errors.New("credentials do not match")

// IdentityFinder resolves primary credentials to an identity.
type IdentityFinder interface {
	FindByCredentials(ctx context.Context, identifier, password, finder string) (domain.Identity, error)
}

// finderValidator is implemented by finders that know their finder names, so
// a typo surfaces at startup instead of on the first login.
type finderValidator interface {
	SupportsFinder(name string) bool
}

// Deps are the collaborators of an Authenticator.
type Deps struct {
	Engine    *totpx.Engine   // Required
	Finder    IdentityFinder  // Required
	CarryOver CarryOver       // Optional: default IdentityCarryOver
	Remember  *RememberPolicy // Optional: nil disables remember-device
	Observer  Observer        // Optional
	Now       func() time.Time
}

// Authenticator runs the two-stage login. It holds no per-request state and
// is safe for concurrent use.
type Authenticator struct {
	cfg      Config
	engine   *totpx.Engine
	finder   IdentityFinder
	carry    CarryOver
	remember *RememberPolicy
	checker  *URLChecker
	observer Observer
	now      func() time.Time
}

func NewAuthenticator(cfg Config, deps Deps) (*Authenticator, error) {
	cfg = cfg.withDefaults()

	if deps.Engine == nil {
		return nil, fmt.Errorf("%w: TOTP engine is required", ErrConfiguration)
	}
	if deps.Finder == nil {
		return nil, fmt.Errorf("%w: identity finder is required", ErrConfiguration)
	}
	if v, ok := deps.Finder.(finderValidator); ok && !v.SupportsFinder(cfg.Finder) {
		return nil, fmt.Errorf("%w: unknown finder %q", ErrConfiguration, cfg.Finder)
	}

	checker, err := NewURLChecker(cfg.LoginURLs, cfg.URLChecker)
	if err != nil {
		return nil, err
	}

	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.CarryOver == nil {
		deps.CarryOver = IdentityCarryOver{Key: cfg.PendingKey, Now: deps.Now}
	}

	return &Authenticator{
		cfg:      cfg,
		engine:   deps.Engine,
		finder:   deps.Finder,
		carry:    deps.CarryOver,
		remember: deps.Remember,
		checker:  checker,
		observer: deps.Observer,
		now:      deps.Now,
	}, nil
}

// Config returns the effective configuration.
func (a *Authenticator) Config() Config { return a.cfg }

// Authenticate evaluates one attempt. A submitted code field, even an empty
// one, makes this the second factor; otherwise it is the first.
func (a *Authenticator) Authenticate(ctx context.Context, at Attempt) Outcome {
	var out Outcome
	if ok, msg := a.checker.Check(at.URL); !ok {
		out = Outcome{Status: StatusLoginURLMismatch, State: StateUnauthenticated, Message: msg}
	} else if _, ok := at.Form[a.cfg.Fields.Code]; ok {
		out = a.secondFactor(ctx, at)
	} else {
		out = a.firstFactor(ctx, at)
	}

	slogx.FromContext(ctx).Log(ctx, levelFor(out), "login attempt",
		"status", out.Status,
		"state", out.State,
	)
	if a.observer != nil {
		a.observer.Observe(out)
	}
	return out
}

// Abandon drops any half-finished login held in the session.
func (a *Authenticator) Abandon(ctx context.Context, s Session) error {
	return a.carry.Clear(ctx, s)
}

// Pending reports whether the session holds an identity awaiting its code.
func (a *Authenticator) Pending(ctx context.Context, s Session) (bool, error) {
	_, ok, err := a.carry.Resolve(ctx, s)
	return ok, err
}

func (a *Authenticator) firstFactor(ctx context.Context, at Attempt) Outcome {
	log := slogx.FromContext(ctx)
	fields := a.cfg.Fields

	creds := domain.Credentials{
		Identifier: at.Form.Get(fields.Username),
		Password:   at.Form.Get(fields.Password),
	}
	if creds.Identifier == "" || creds.Password == "" {
		return Outcome{Status: StatusCredentialsMissing, State: StateCredentialsRequired, Message: MessageCredentialsMissing}
	}

	identity, err := a.finder.FindByCredentials(ctx, creds.Identifier, creds.Password, a.cfg.Finder)
	if errors.Is(err, ErrCredentialsMismatch) {
		return Outcome{Status: StatusCredentialsInvalid, State: StateCredentialsFailed}
	}
	if err != nil {
		log.Error("identity lookup failed", "username", creds.Identifier, "err", err)
		return Outcome{Status: StatusCredentialsInvalid, State: StateCredentialsFailed, Err: err}
	}

	secret := identity.String(fields.Secret)
	if secret == "" {
		if err := a.carry.Clear(ctx, at.Session); err != nil {
			log.Warn("failed to clear stale pending login", "err", err)
		}
		return Outcome{Status: StatusAuthenticated, State: StateAuthenticated, Identity: identity, Method: MethodPassword}
	}

	if a.remember != nil && at.Cookies != nil && a.remember.Matches(at.Cookies, secret) {
		log.Debug("remembered device, skipping code", "username", creds.Identifier)
		if err := a.carry.Clear(ctx, at.Session); err != nil {
			log.Warn("failed to clear stale pending login", "err", err)
		}
		return Outcome{
			Status:   StatusAuthenticated,
			State:    StateAuthenticated,
			Identity: identity.Without(fields.Secret),
			Method:   MethodRemembered,
		}
	}

	if err := a.carry.Save(ctx, at.Session, creds, identity); err != nil {
		log.Error("failed to save pending login", "username", creds.Identifier, "err", err)
		return Outcome{Status: StatusCredentialsMissing, State: StateCredentialsRequired, Err: err}
	}

	log.Debug("second factor required", "username", creds.Identifier)
	return Outcome{Status: StatusTwoFactorRequired, State: StateTwoFactorRequired, RedirectURL: a.cfg.VerifyURL}
}

func (a *Authenticator) secondFactor(ctx context.Context, at Attempt) Outcome {
	log := slogx.FromContext(ctx)
	fields := a.cfg.Fields

	identity, ok, err := a.carry.Resolve(ctx, at.Session)
	if err != nil {
		log.Error("failed to resolve pending login", "err", err)
		return Outcome{Status: StatusCredentialsMissing, State: StateCredentialsRequired, Message: MessageCredentialsMissing, Err: err}
	}
	if !ok {
		return Outcome{Status: StatusCredentialsMissing, State: StateCredentialsRequired, Message: MessageCredentialsMissing}
	}

	secret := identity.String(fields.Secret)
	if secret != "" {
		valid, err := a.engine.VerifyCode(secret, at.Form.Get(fields.Code), a.now())
		if err != nil {
			log.Error("stored TOTP secret is unusable", "username", identity.String(fields.Username), "err", err)
		}
		if !valid {
			return Outcome{
				Status:      StatusTwoFactorInvalidCode,
				State:       StateCodeFailed,
				Message:     MessageInvalidCode,
				RedirectURL: a.cfg.VerifyURL,
				Err:         err,
			}
		}
	}

	// The pending entry must not outlive a successful code.
	if err := a.carry.Clear(ctx, at.Session); err != nil {
		log.Error("failed to clear pending login", "err", err)
		return Outcome{Status: StatusCredentialsMissing, State: StateCredentialsRequired, Err: err}
	}

	if secret == "" {
		// The second factor was switched off between the two requests.
		return Outcome{Status: StatusAuthenticated, State: StateAuthenticated, Identity: identity, Method: MethodPassword}
	}

	if a.remember != nil && at.Cookies != nil && httpx.IsTruthy(at.Form.Get(fields.Remember)) {
		if err := a.remember.Remember(ctx, at.Cookies, secret); err != nil {
			log.Warn("failed to remember device", "err", err)
		}
	}

	return Outcome{
		Status:   StatusAuthenticated,
		State:    StateAuthenticated,
		Identity: identity.Without(fields.Secret),
		Method:   MethodTOTP,
	}
}

func levelFor(o Outcome) slog.Level {
	switch {
	case o.Err != nil:
		return slog.LevelError
	case o.Status == StatusAuthenticated, o.Status == StatusTwoFactorRequired:
		return slog.LevelDebug
	default:
		return slog.LevelWarn
	}
}
