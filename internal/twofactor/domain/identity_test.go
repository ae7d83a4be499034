package domain_test

import (
	"testing"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/stretchr/testify/require"
)

func TestIdentity_String(t *testing.T) {
	secret := "FDJBDYSSZMLJBOUG"
	var nilSecret *string

	id := domain.Identity{
		"username": "nate",
		"secret":   &secret,
		"empty":    nilSecret,
		"nothing":  nil,
		"id":       42,
		"raw":      []byte("bytes"),
	}

	require.Equal(t, "nate", id.String("username"))
	require.Equal(t, secret, id.String("secret"))
	require.Equal(t, "", id.String("empty"))
	require.Equal(t, "", id.String("nothing"))
	require.Equal(t, "", id.String("missing"))
	require.Equal(t, "42", id.String("id"))
	require.Equal(t, "bytes", id.String("raw"))

	require.True(t, id.Has("secret"))
	require.False(t, id.Has("empty"))
	require.False(t, id.Has("missing"))
}

func TestIdentity_Without(t *testing.T) {
	id := domain.Identity{"username": "nate", "secret": "FDJBDYSSZMLJBOUG"}

	stripped := id.Without("secret")
	require.NotContains(t, stripped, "secret")
	require.Equal(t, "nate", stripped["username"])

	// Original untouched
	require.Contains(t, id, "secret")

	var none domain.Identity
	require.Nil(t, none.Clone())
}

func TestUser_TwoFactorEnabled(t *testing.T) {
	empty := ""
	secret := "FDJBDYSSZMLJBOUG"

	require.False(t, domain.User{}.TwoFactorEnabled())
	require.False(t, domain.User{Secret: &empty}.TwoFactorEnabled())
	require.True(t, domain.User{Secret: &secret}.TwoFactorEnabled())
}
