package twofactor_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/app"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helpers for the login service end-to-end tests.
 * The service runs in-process on an httptest server backed by a real SQLite
 * file; the Redis variant starts a Redis container for the session backend.
 */

const (
	password   = "correct horse battery staple"
	nateSecret = "FDJBDYSSZMLJBOUG"
)

// testConfig returns a configuration rooted in a fresh temp dir.
func testConfig(t *testing.T) app.Config {
	t.Helper()
	dir := t.TempDir()
	return app.Config{
		Issuer:              "twofactor-e2e",
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "json",
		ShutdownGracePeriod: time.Second,
		DatabaseFile:        filepath.Join(dir, "twofactor.db"),
		PepperFile:          filepath.Join(dir, "pepper"),
		AppSecret:           "e2e-app-secret-0123456789abcdef012345",
		EncryptionKey:       "e2e-app-secret-0123456789abcdef012345",
		SigningKey:          "e2e-app-secret-0123456789abcdef012345",
		SessionDriver:       "memory",
		SessionTTL:          time.Hour,
		TokenTTL:            time.Hour,
		TOTPIssuer:          "Bartab",
		TOTPSkew:            1,
		LoginURL:            "/login",
		VerifyURL:           "/login/verify",
		LoginURLs:           []string{"/login", "/v1/login"},
		URLChecker:          "default",
		Finder:              "all",
		CarryOver:           "identity",
		RememberCookie:      "TwoFactorAuth",
		RememberFor:         30 * 24 * time.Hour,
		MetricsEnabled:      true,
	}
}

// seedUsers creates mariano (password only) and nate (with a secret) the way
// an operator would, through the same store and pepper as the service.
func seedUsers(t *testing.T, cfg app.Config) {
	t.Helper()
	ctx := context.Background()

	db, err := app.OpenStore(cfg.DatabaseFile)
	require.NoError(t, err)
	defer db.Close()

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	require.NoError(t, err)
	users := &service.UserService{Store: db, Hasher: cryptox.Hasher{Pepper: pepper}}

	_, _, err = users.CreateUser(ctx, "mariano", "Mariano", password)
	require.NoError(t, err)
	nate, _, err := users.CreateUser(ctx, "nate", "Nate", password)
	require.NoError(t, err)
	require.NoError(t, db.Users().SetSecret(ctx, nate.ID, nateSecret))
}

// startService seeds the database and serves the application. It returns the
// base URL.
func startService(t *testing.T, cfg app.Config) string {
	t.Helper()
	seedUsers(t, cfg)

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = application.Shutdown()
	})
	return srv.URL
}

// setupRedis starts a Redis container and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	engine, err := totpx.New(totpx.Config{})
	require.NoError(t, err)
	code, err := engine.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}
