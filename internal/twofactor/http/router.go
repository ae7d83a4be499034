package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/metrics"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/jwtx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"

	_ "github.com/aussiebroadwan/twofactor/api/twofactor" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	DefaultTokenCookie = "twofactor_token"
	APILoginPath       = "/v1/login"
	HomePath           = "/"
)

// Session keys owned by the HTTP layer.
const sessionKeySubject = "auth.sub"

// RouterConfig carries what the handlers need besides services.
type RouterConfig struct {
	BuildVersion  string
	Issuer        string        // iss of session tokens
	TokenTTL      time.Duration // Optional: default jwtx.DefaultSessionTTL
	TokenCookie   string        // Optional: default twofactor_token
	SecureCookies bool
	TrustProxy    bool // Honour X-Forwarded-Proto/Host when building the login URL
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	cfg       RouterConfig
	startTime time.Time
	logger    *slog.Logger

	store    store.Store
	sessions *session.Manager
	signer   jwtx.Signer
	verifier jwtx.Verifier

	Authenticator     *service.Authenticator
	Results           *service.ResultAuthenticator
	Responses         *service.ResponseAuthenticator
	UserService       *service.UserService
	EnrollmentService *service.EnrollmentService
	Metrics           *metrics.Metrics // Optional
}

func NewRouter(
	cfg RouterConfig,
	st store.Store,
	sessions *session.Manager,
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	logger *slog.Logger,
) *Router {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = jwtx.DefaultSessionTTL
	}
	if cfg.TokenCookie == "" {
		cfg.TokenCookie = DefaultTokenCookie
	}

	r := &Router{
		Mux:       http.NewServeMux(),
		cfg:       cfg,
		startTime: time.Now(),
		logger:    logger,
		store:     st,
		sessions:  sessions,
		signer:    signer,
		verifier:  verifier,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, slogx.HTTPOptions{SessionCookie: sessions.CookieName()}),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerWeb()
	r.registerUsers()
	r.registerMFA()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Two-Factor Login Service API
//	@version		0.1.0
//	@description	Username/password login with an optional TOTP second factor.
//	@description
//	@description	Both login steps are posted to /v1/login. The service keeps the half-finished login in a
//	@description	server-side session bound to the twofactor_sid cookie, so clients must keep cookies between steps.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/twofactor
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern, instrumented when metrics are enabled.
func (r *Router) handle(pattern string, h http.Handler) {
	if r.Metrics != nil {
		h = r.Metrics.Instrument(pattern, h)
	}
	r.Mux.Handle(pattern, h)
}

func (r *Router) authenticated(h http.Handler) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier, r.cfg.TokenCookie), // verify JWT (iss/exp)
		r.requireLiveSession,                                 // reject tokens whose session was logged out
	)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{router: r}

	r.handle("POST "+APILoginPath, h)
	r.handle("POST /v1/logout", http.HandlerFunc(h.HandleLogout))
}

func (r *Router) registerWeb() {
	h := &WebHandler{router: r}
	cfg := r.Authenticator.Config()

	r.handle("GET "+cfg.LoginURL, http.HandlerFunc(h.HandleLoginPage))
	r.handle("POST "+cfg.LoginURL, http.HandlerFunc(h.HandleLogin))
	r.handle("GET "+cfg.VerifyURL, http.HandlerFunc(h.HandleVerifyPage))
	r.handle("POST /logout", http.HandlerFunc(h.HandleLogout))
	r.handle("GET /{$}", http.HandlerFunc(h.HandleHome))
}

func (r *Router) registerUsers() {
	h := &UserInfoHandler{UserService: r.UserService}
	r.handle("GET /v1/userinfo", r.authenticated(h))
}

func (r *Router) registerMFA() {
	h := &MFAHandler{EnrollmentService: r.EnrollmentService, Metrics: r.Metrics}

	r.handle("POST /v1/mfa/totp/enroll", r.authenticated(http.HandlerFunc(h.HandleEnroll)))
	r.handle("POST /v1/mfa/totp/verify", r.authenticated(http.HandlerFunc(h.HandleConfirm)))
	r.handle("DELETE /v1/mfa/totp", r.authenticated(http.HandlerFunc(h.HandleRemove)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.cfg.BuildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.cfg.BuildVersion, r.store, r.sessions))
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
