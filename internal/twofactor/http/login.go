package http

import (
	"net/http"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// LoginHandler serves the JSON login endpoint. Both steps post here; the
// presence of the code field selects the second one.
type LoginHandler struct {
	router *Router
}

// ServeHTTP handles POST /v1/login
//
//	@Summary		Log in
//	@Description	First step: submit username and password. Accounts without a second factor are logged in at once.
//	@Description	Accounts with one get 409 two_factor_required; the client then posts the code (and optionally remember=1)
//	@Description	to the same URL with the same session cookie.
//	@Tags			Login
//	@Accept			x-www-form-urlencoded
//	@Produce		json
//	@Param			username	formData	string						false	"Username (first step)"
//	@Param			password	formData	string						false	"Password (first step)"
//	@Param			code		formData	string						false	"Two-step verification code (second step)"
//	@Param			remember	formData	string						false	"Skip the code on this device for 30 days"
//	@Success		200			{object}	authsdk.LoginResponse		"Logged in"
//	@Failure		400			{object}	authsdk.ErrorResponse		"Credentials missing or no login pending"
//	@Failure		401			{object}	authsdk.ErrorResponse		"Invalid credentials or code"
//	@Failure		404			{object}	authsdk.ErrorResponse		"Login is not accepted on this URL"
//	@Failure		409			{object}	authsdk.TwoFactorRequiredResponse	"Code required"
//	@Failure		500			{object}	authsdk.ErrorResponse		"Internal server error"
//	@Failure		503			{object}	authsdk.ErrorResponse		"Store or session backend unavailable"
//	@Router			/v1/login [post].
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	at, sess, err := h.router.newAttempt(w, r)
	if err != nil {
		log.Warn("failed to parse login form", "err", err)
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	httpx.NoCache(w)
	res := h.router.Results.Authenticate(ctx, at)

	switch res.Status {
	case service.StatusAuthenticated:
		out := service.Outcome{Status: res.Status, Identity: res.Identity, Method: res.Method}
		body, err := h.router.issueSession(ctx, w, sess, out)
		if err != nil {
			log.Error("failed to issue session", "err", err)
			authsdk.ErrServerError.WriteError(w)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, body)

	case service.StatusTwoFactorRequired:
		(&authsdk.TwoFactorRequiredError{VerifyURL: APILoginPath}).WriteError(w)

	case service.StatusTwoFactorInvalidCode:
		// A broken stored secret reads as a wrong code to the client.
		authsdk.ErrInvalidCode.WriteError(w)

	case service.StatusLoginURLMismatch:
		authsdk.ErrLoginURLMismatch.WithDescription(firstError(res.Errors)).WriteError(w)

	default:
		if res.Err != nil {
			authsdk.ErrServiceUnavailable.WriteError(w)
			return
		}
		if res.Status == service.StatusCredentialsMissing {
			authsdk.ErrCredentialsMissing.WriteError(w)
			return
		}
		authsdk.ErrInvalidCredentials.WriteError(w)
	}
}

// HandleLogout handles POST /v1/logout
//
//	@Summary		Log out
//	@Description	Ends the server-side session, drops any half-finished login and clears the token cookie.
//	@Tags			Login
//	@Security		BearerAuth
//	@Success		204	"Logged out"
//	@Failure		500	{object}	authsdk.ErrorResponse	"Internal server error"
//	@Router			/v1/logout [post].
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.router.endSession(w, r); err != nil {
		slogx.FromContext(r.Context()).Error("failed to end session", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func firstError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[0]
}
