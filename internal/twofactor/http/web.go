package http

import (
	"net/http"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/jwtx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

const messageInvalidCredentials = "Invalid username or password."

// WebHandler serves the browser login flow. It drives the response-style
// authenticator: the adapter decides when the browser is sent to the
// verify page.
type WebHandler struct {
	router *Router
}

type pageData struct {
	Title    string
	Action   string
	Error    string
	Username string
	AMR      []string
	Fields   service.Fields
}

func (h *WebHandler) page(title string) pageData {
	cfg := h.router.Authenticator.Config()
	return pageData{Title: title, Action: cfg.LoginURL, Fields: cfg.Fields}
}

// HandleLoginPage renders the username/password form.
func (h *WebHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.router.sessions.Load(w, r)

	data := h.page("Sign in")
	msg, err := sess.PopFlash(ctx)
	if err != nil {
		slogx.FromContext(ctx).Warn("failed to read flash", "err", err)
	}
	data.Error = msg
	render(w, r, loginPage, http.StatusOK, data)
}

// HandleLogin accepts both form posts. The verify page posts its code here
// too, so the second step is subject to the same login URL check.
func (h *WebHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	at, sess, err := h.router.newAttempt(w, r)
	if err != nil {
		log.Warn("failed to parse login form", "err", err)
		data := h.page("Sign in")
		data.Error = authErrorText(service.StatusCredentialsMissing, service.MessageCredentialsMissing)
		render(w, r, loginPage, http.StatusBadRequest, data)
		return
	}

	resp := &redirectResponder{sess: sess}
	identity, out := h.router.Responses.Authenticate(ctx, at, resp)

	if identity != nil {
		if _, err := h.router.issueSession(ctx, w, sess, out); err != nil {
			log.Error("failed to issue session", "err", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		httpx.SeeOther(w, r, HomePath)
		return
	}
	if resp.target != "" {
		httpx.SeeOther(w, r, resp.target)
		return
	}

	status := http.StatusUnauthorized
	switch {
	case out.Err != nil:
		status = http.StatusServiceUnavailable
	case out.Status == service.StatusCredentialsMissing:
		status = http.StatusBadRequest
	case out.Status == service.StatusLoginURLMismatch:
		status = http.StatusNotFound
	}

	data := h.page("Sign in")
	data.Username = at.Form.Get(data.Fields.Username)
	data.Error = authErrorText(out.Status, out.Message)
	render(w, r, loginPage, status, data)
}

// HandleVerifyPage renders the code form while a login is pending.
func (h *WebHandler) HandleVerifyPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	sess := h.router.sessions.Load(w, r)

	pending, err := h.router.Authenticator.Pending(ctx, sess)
	if err != nil {
		log.Error("failed to check pending login", "err", err)
	}
	if !pending {
		httpx.SeeOther(w, r, h.router.Authenticator.Config().LoginURL)
		return
	}

	data := h.page("Two-step verification")
	msg, err := sess.PopFlash(ctx)
	if err != nil {
		log.Warn("failed to read flash", "err", err)
	}
	data.Error = msg
	render(w, r, verifyPage, http.StatusOK, data)
}

// HandleLogout ends the session and returns to the login form. It doubles
// as "cancel" on the verify page.
func (h *WebHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.router.endSession(w, r); err != nil {
		slogx.FromContext(r.Context()).Error("failed to end session", "err", err)
	}
	httpx.SeeOther(w, r, h.router.Authenticator.Config().LoginURL)
}

// HandleHome greets the logged-in user.
func (h *WebHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.router.currentClaims(r)
	if !ok {
		httpx.SeeOther(w, r, h.router.Authenticator.Config().LoginURL)
		return
	}

	data := h.page("Signed in")
	data.Username = claims.Username
	data.AMR = claims.AMR
	render(w, r, homePage, http.StatusOK, data)
}

// currentClaims returns the claims of a valid token cookie whose session is
// still live.
func (r *Router) currentClaims(req *http.Request) (jwtx.Claims, bool) {
	c, err := req.Cookie(r.cfg.TokenCookie)
	if err != nil || c.Value == "" {
		return jwtx.Claims{}, false
	}
	claims, err := r.verifier.Verify(c.Value)
	if err != nil {
		return jwtx.Claims{}, false
	}
	sub, ok, err := r.sessions.Value(req.Context(), claims.SID, sessionKeySubject)
	if err != nil || !ok || sub != claims.Subject {
		return jwtx.Claims{}, false
	}
	return claims, true
}

// authErrorText picks what the login form shows. Primary-credential failures
// carry no message of their own.
func authErrorText(status service.Status, msg string) string {
	if msg != "" {
		return msg
	}
	switch status {
	case service.StatusCredentialsMissing:
		return service.MessageCredentialsMissing
	default:
		return messageInvalidCredentials
	}
}
