package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/twofactor/internal/twofactor/http"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/metrics"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/jwtx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the login service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	backend  session.Backend
	sessions *session.Manager
	engine   *totpx.Engine
	hasher   cryptox.Hasher
	metrics  *metrics.Metrics

	// Services
	authenticator     *service.Authenticator
	userService       *service.UserService
	enrollmentService *service.EnrollmentService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "twofactor",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initSecrets(); err != nil {
		return nil, err
	}
	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	if err := app.initHTTP(); err != nil {
		app.closeStores()
		return nil, err
	}

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("twofactor service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down twofactor service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("twofactor service stopped")
	return nil
}

func (app *Application) closeStores() error {
	var errs []error
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			app.logger.Error("error closing session backend", "error", err)
			errs = append(errs, err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initSecrets resolves the encryption and signing keys. Outside dev both
// must be configured, directly or through APP_SECRET.
func (app *Application) initSecrets() error {
	if app.cfg.EncryptionKey != "" && app.cfg.SigningKey != "" {
		return nil
	}
	if app.cfg.Env != "dev" {
		return fmt.Errorf("%w: set APP_SECRET or TWOFACTOR_ENCRYPTION_KEY and TWOFACTOR_SIGNING_KEY", cryptox.ErrMissingKey)
	}

	ephemeral, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return fmt.Errorf("failed to generate ephemeral secret: %w", err)
	}
	if app.cfg.EncryptionKey == "" {
		app.cfg.EncryptionKey = ephemeral
	}
	if app.cfg.SigningKey == "" {
		app.cfg.SigningKey = ephemeral
	}
	app.logger.Warn("no APP_SECRET configured, using an ephemeral one; sessions and remembered devices will not survive a restart")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg.DatabaseFile)
	if err != nil {
		return err
	}
	app.db = db

	pepper, err := cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.Hasher{Pepper: pepper}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initSessions() error {
	backend, err := session.NewBackend(session.BackendConfig{
		Driver:     app.cfg.SessionDriver,
		RedisAddr:  app.cfg.RedisAddr,
		RedisDB:    app.cfg.RedisDB,
		RedisPass:  app.cfg.RedisPassword,
		Prefix:     "twofactor:",
		DefaultTTL: app.cfg.SessionTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session backend: %w", err)
	}
	app.backend = backend

	app.sessions = session.NewManager(backend, session.ManagerConfig{
		CookieName: app.cfg.SessionCookie,
		TTL:        app.cfg.SessionTTL,
		Secure:     app.cfg.SecureCookies,
	})
	app.logger.Info("session backend ready", "driver", app.cfg.SessionDriver)
	return nil
}

// initServices initializes the authenticator and the services around it
func (app *Application) initServices() error {
	engine, err := totpx.New(totpx.Config{
		Issuer:    app.cfg.TOTPIssuer,
		Digits:    app.cfg.TOTPDigits,
		Period:    app.cfg.TOTPPeriod,
		Algorithm: app.cfg.TOTPAlgorithm,
		Skew:      totpx.Skew(app.cfg.TOTPSkew),
	})
	if err != nil {
		return fmt.Errorf("failed to configure TOTP engine: %w", err)
	}
	app.engine = engine

	rememberCipher, err := cryptox.NewCipher(app.cfg.EncryptionKey, app.cfg.AppSecret, "remember")
	if err != nil {
		return fmt.Errorf("failed to initialize remember cipher: %w", err)
	}

	cfg := app.authConfig()
	finder := service.StoreFinder{Users: app.db.Users(), Hasher: app.hasher, Fields: cfg.Fields}

	carry, err := app.carryOver(cfg, finder)
	if err != nil {
		return err
	}

	deps := service.Deps{
		Engine:    engine,
		Finder:    finder,
		CarryOver: carry,
		Remember:  service.NewRememberPolicy(rememberCipher, cfg.Remember),
	}
	if app.cfg.MetricsEnabled {
		app.metrics = metrics.New()
		deps.Observer = app.metrics
	}

	app.authenticator, err = service.NewAuthenticator(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to configure authenticator: %w", err)
	}

	app.userService = &service.UserService{Store: app.db, Hasher: app.hasher}
	app.enrollmentService = &service.EnrollmentService{Store: app.db, Engine: engine}
	return nil
}

func (app *Application) authConfig() service.Config {
	cfg := service.DefaultConfig()
	cfg.Finder = app.cfg.Finder
	cfg.LoginURLs = app.cfg.LoginURLs
	cfg.URLChecker = service.URLCheckerConfig{
		Name:         app.cfg.URLChecker,
		UseRegex:     app.cfg.URLCheckerRegex,
		CheckFullURL: app.cfg.CheckFullURL,
	}
	cfg.Remember.Name = app.cfg.RememberCookie
	cfg.Remember.Expires = app.cfg.RememberFor
	cfg.Remember.Secure = app.cfg.SecureCookies
	cfg.LoginURL = app.cfg.LoginURL
	cfg.VerifyURL = app.cfg.VerifyURL
	return cfg
}

// carryOver picks how the first factor is carried to the second request.
func (app *Application) carryOver(cfg service.Config, finder service.IdentityFinder) (service.CarryOver, error) {
	switch app.cfg.CarryOver {
	case "identity", "":
		return service.IdentityCarryOver{Key: cfg.PendingKey}, nil
	case "credentials":
		c, err := cryptox.NewCipher(app.cfg.EncryptionKey, app.cfg.AppSecret, "credentials")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize credentials cipher: %w", err)
		}
		return service.CredentialCarryOver{
			Key:    cfg.CredentialsKey,
			Cipher: c,
			Finder: finder,
			Name:   cfg.Finder,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown carry-over %q", service.ErrConfiguration, app.cfg.CarryOver)
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	signer, err := jwtx.NewSignerHS256("twofactor-session", []byte(app.cfg.SigningKey))
	if err != nil {
		return fmt.Errorf("failed to initialize token signer: %w", err)
	}
	verifier := jwtx.NewVerifierHS256([]byte(app.cfg.SigningKey), app.cfg.Issuer, 30*time.Second)

	results, err := service.NewResultAuthenticator(app.authenticator)
	if err != nil {
		return err
	}
	responses, err := service.NewResponseAuthenticator(app.authenticator)
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(
		httpapi.RouterConfig{
			BuildVersion:  BuildVersion,
			Issuer:        app.cfg.Issuer,
			TokenTTL:      app.cfg.TokenTTL,
			SecureCookies: app.cfg.SecureCookies,
			TrustProxy:    app.cfg.TrustProxy,
		},
		app.db,
		app.sessions,
		signer,
		verifier,
		app.logger,
	)

	// Wire services to router
	router.Authenticator = app.authenticator
	router.Results = results
	router.Responses = responses
	router.UserService = app.userService
	router.EnrollmentService = app.enrollmentService
	router.Metrics = app.metrics // nil when disabled
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
