package twofactor_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/twofactor/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// runScenarios drives the documented login scenarios against baseURL.
func runScenarios(t *testing.T, baseURL string) {
	ctx := context.Background()

	t.Run("A password only", func(t *testing.T) {
		client := authsdk.NewSDKClient(baseURL)
		sess, err := client.Login(ctx, "mariano", password)
		require.NoError(t, err)
		require.Equal(t, "mariano", sess.User().Username)
		require.False(t, sess.User().TwoFactorEnabled)
	})

	t.Run("B code required then accepted", func(t *testing.T) {
		client := authsdk.NewSDKClient(baseURL)
		_, err := client.Login(ctx, "nate", password)
		var challenge *authsdk.TwoFactorRequiredError
		require.ErrorAs(t, err, &challenge)

		sess, err := client.Verify(ctx, currentCode(t, nateSecret), false)
		require.NoError(t, err)
		require.Equal(t, "nate", sess.User().Username)

		info, err := sess.GetUserInfo(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"pwd", "otp"}, info.AMR)

		// Pending state was cleared by the successful code
		_, err = client.Verify(ctx, currentCode(t, nateSecret), false)
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, authsdk.ErrorCodeCredentialsMissing, apiErr.Code)
	})

	t.Run("C wrong code keeps the login pending", func(t *testing.T) {
		client := authsdk.NewSDKClient(baseURL)
		_, err := client.Login(ctx, "nate", password)
		require.Error(t, err)

		code := currentCode(t, nateSecret)
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		_, err = client.Verify(ctx, wrong, false)
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, "Invalid two-step verification code.", apiErr.Description)

		sess, err := client.Verify(ctx, code, false)
		require.NoError(t, err)
		require.Equal(t, "nate", sess.User().Username)
	})

	t.Run("D no credentials", func(t *testing.T) {
		client := authsdk.NewSDKClient(baseURL)
		_, err := client.Login(ctx, "", "")
		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
		require.Equal(t, authsdk.ErrorCodeCredentialsMissing, apiErr.Code)
	})

	t.Run("remembered device", func(t *testing.T) {
		client := authsdk.NewSDKClient(baseURL)
		_, err := client.Login(ctx, "nate", password)
		require.Error(t, err)
		sess, err := client.Verify(ctx, currentCode(t, nateSecret), true)
		require.NoError(t, err)
		require.NoError(t, sess.Logout(ctx))

		sess, err = client.Login(ctx, "nate", password)
		require.NoError(t, err)
		require.Equal(t, "nate", sess.User().Username)
	})
}

func TestLogin_MemorySessions(t *testing.T) {
	cfg := testConfig(t)
	runScenarios(t, startService(t, cfg))
}

func TestLogin_CredentialCarryOver(t *testing.T) {
	cfg := testConfig(t)
	cfg.CarryOver = "credentials"
	runScenarios(t, startService(t, cfg))
}

func TestLogin_RedisSessions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	cfg := testConfig(t)
	cfg.SessionDriver = "redis"
	cfg.RedisAddr = setupRedis(t)
	baseURL := startService(t, cfg)

	runScenarios(t, baseURL)

	ready, err := authsdk.NewSDKClient(baseURL).Health(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Checks.Sessions)
}
