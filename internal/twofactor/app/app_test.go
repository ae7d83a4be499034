package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		Issuer:              "twofactor-test",
		Env:                 "test",
		LogLevel:            "error",
		ShutdownGracePeriod: time.Second,
		DatabaseFile:        filepath.Join(dir, "twofactor.db"),
		PepperFile:          filepath.Join(dir, "pepper"),
		AppSecret:           "app-secret-0123456789abcdef0123456789",
		EncryptionKey:       "app-secret-0123456789abcdef0123456789",
		SigningKey:          "app-secret-0123456789abcdef0123456789",
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
		CarryOver:           "credentials",
		RememberCookie:      "TwoFactorAuth",
		RememberFor:         time.Hour,
		MetricsEnabled:      true,
	}
}

func TestNew_ServesLogin(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeStores() })

	ctx := context.Background()
	_, _, err = app.userService.CreateUser(ctx, "nate", "Nate", "password")
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	client := authsdk.NewSDKClient(srv.URL)
	sess, err := client.Login(ctx, "nate", "password")
	require.NoError(t, err)
	require.Equal(t, "nate", sess.User().Username)

	ready, err := client.Health(ctx, true)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
}

func TestNew_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"unknown carry-over", func(c *Config) { c.CarryOver = "cookie" }, service.ErrConfiguration},
		{"unknown finder", func(c *Config) { c.Finder = "everything" }, service.ErrConfiguration},
		{"unknown url checker", func(c *Config) { c.URLChecker = "strict" }, service.ErrConfiguration},
		{"bad regex", func(c *Config) { c.URLCheckerRegex = true; c.LoginURLs = []string{"(/login"} }, service.ErrConfiguration},
		{"missing secrets outside dev", func(c *Config) { c.AppSecret, c.EncryptionKey, c.SigningKey = "", "", "" }, cryptox.ErrMissingKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			_, err := New(cfg)
			require.ErrorIs(t, err, tt.target)
		})
	}
}

func TestNew_EphemeralSecretsInDev(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "dev"
	cfg.AppSecret, cfg.EncryptionKey, cfg.SigningKey = "", "", ""

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.closeStores() })
	require.NotEmpty(t, app.cfg.SigningKey)
}
