package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// Result is the result-object shape of an attempt: the caller branches on
// Status and shows Errors.
type Result struct {
	Status   Status
	Identity domain.Identity
	Method   Method
	Errors   []string
	Err      error
}

// Valid reports whether the attempt authenticated.
func (r Result) Valid() bool { return r.Status == StatusAuthenticated }

// ResultAuthenticator exposes the Authenticator to callers that expect a
// result object with a distinct status for "second factor required".
type ResultAuthenticator struct {
	core *Authenticator
}

func NewResultAuthenticator(core *Authenticator) (*ResultAuthenticator, error) {
	if core == nil {
		return nil, fmt.Errorf("%w: result adapter needs an authenticator", ErrWrongOrchestrator)
	}
	return &ResultAuthenticator{core: core}, nil
}

func (r *ResultAuthenticator) Authenticate(ctx context.Context, at Attempt) Result {
	out := r.core.Authenticate(ctx, at)
	res := Result{Status: out.Status, Identity: out.Identity, Method: out.Method, Err: out.Err}
	if out.Message != "" {
		res.Errors = []string{out.Message}
	}
	return res
}

// Responder is the part of an HTTP response the response adapter mutates.
type Responder interface {
	Redirect(url string)
	Flash(ctx context.Context, msg string) error
}

// ResponseAuthenticator exposes the Authenticator to callers that only take
// "identity or nothing" and let the adapter steer the browser: it redirects
// to the verify URL while a code is outstanding and flashes the message when
// the code was wrong.
type ResponseAuthenticator struct {
	core      *Authenticator
	verifyURL string
}

func NewResponseAuthenticator(core *Authenticator) (*ResponseAuthenticator, error) {
	if core == nil {
		return nil, fmt.Errorf("%w: response adapter needs an authenticator", ErrWrongOrchestrator)
	}
	verifyURL := core.Config().VerifyURL
	if verifyURL == "" {
		return nil, fmt.Errorf("%w: response adapter needs a verify URL", ErrWrongOrchestrator)
	}
	return &ResponseAuthenticator{core: core, verifyURL: verifyURL}, nil
}

// Authenticate returns the identity when the attempt authenticated. It also
// returns the full outcome for callers that want to log or count it.
func (r *ResponseAuthenticator) Authenticate(ctx context.Context, at Attempt, resp Responder) (domain.Identity, Outcome) {
	out := r.core.Authenticate(ctx, at)

	switch out.Status {
	case StatusAuthenticated:
		return out.Identity, out
	case StatusTwoFactorRequired:
		resp.Redirect(r.verifyURL)
	case StatusTwoFactorInvalidCode:
		if err := resp.Flash(ctx, out.Message); err != nil {
			slogx.FromContext(ctx).Warn("failed to queue flash message", "err", err)
		}
		resp.Redirect(r.verifyURL)
	}
	return nil, out
}
