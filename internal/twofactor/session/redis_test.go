package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/session"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a throwaway Redis and returns its address.
func setupRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	b, err := session.NewBackend(session.BackendConfig{
		Driver:    "redis",
		RedisAddr: setupRedis(t),
		Prefix:    "twofactor:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Ping(ctx))

	_, err = b.Get(ctx, "missing")
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, b.Set(ctx, "k", "v", time.Minute))
	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	require.ErrorIs(t, err, session.ErrNotFound)

	// Sessions built on Redis behave like the in-memory ones
	m := session.NewManager(b, session.ManagerConfig{TTL: time.Minute})
	s := m.Load(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, s.Write(ctx, "TwoFactorAuth.user", "nate"))
	got, ok, err := s.Read(ctx, "TwoFactorAuth.user")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nate", got)
}
