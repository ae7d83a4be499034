package cryptox_test

import (
	"strings"
	"testing"

	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := cryptox.NewCipher("test-encryption-key-12345", "", "credentials")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{"simple", "nate"},
		{"json", `{"username":"nate","password":"password"}`},
		{"unicode", "пароль🔒密码"},
		{"long", strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := c.Encrypt(tt.value)
			require.NoError(t, err)
			require.NotContains(t, text, tt.value)

			// Cookie safe
			require.NotContains(t, text, "=")
			require.NotContains(t, text, "+")
			require.NotContains(t, text, "/")

			got, ok, err := c.Decrypt(text)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, tt.value, got)
		})
	}
}

func TestCipher_DecryptEmpty(t *testing.T) {
	c, err := cryptox.NewCipher("k", "", "credentials")
	require.NoError(t, err)

	got, ok, err := c.Decrypt("")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, got)
}

func TestCipher_UniqueNonces(t *testing.T) {
	c, err := cryptox.NewCipher("k", "", "remember")
	require.NoError(t, err)

	a, err := c.Encrypt("same")
	require.NoError(t, err)
	b, err := c.Encrypt("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "ciphertexts should differ due to random nonce")
}

func TestCipher_Fallback(t *testing.T) {
	withFallback, err := cryptox.NewCipher("", "app-secret", "credentials")
	require.NoError(t, err)
	explicit, err := cryptox.NewCipher("app-secret", "", "credentials")
	require.NoError(t, err)

	// The fallback key is used verbatim so both ciphers interoperate
	text, err := withFallback.Encrypt("nate")
	require.NoError(t, err)
	got, ok, err := explicit.Decrypt(text)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nate", got)

	_, err = cryptox.NewCipher("", "  ", "credentials")
	require.ErrorIs(t, err, cryptox.ErrMissingKey)
}

func TestCipher_PurposeSeparation(t *testing.T) {
	creds, err := cryptox.NewCipher("shared", "", "credentials")
	require.NoError(t, err)
	remember, err := cryptox.NewCipher("shared", "", "remember")
	require.NoError(t, err)

	text, err := creds.Encrypt("value")
	require.NoError(t, err)

	_, ok, err := remember.Decrypt(text)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
	require.False(t, ok)
}

func TestCipher_Tampered(t *testing.T) {
	c, err := cryptox.NewCipher("k", "", "credentials")
	require.NoError(t, err)

	text, err := c.Encrypt("value")
	require.NoError(t, err)

	// Flip a character in the middle of the payload
	b := []byte(text)
	mid := len(b) / 2
	if b[mid] == 'A' {
		b[mid] = 'B'
	} else {
		b[mid] = 'A'
	}

	tests := []struct {
		name string
		text string
	}{
		{"tampered", string(b)},
		{"not base64", "!!!not-base64!!!"},
		{"too short", "AAAA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := c.Decrypt(tt.text)
			require.ErrorIs(t, err, cryptox.ErrDecrypt)
			require.False(t, ok)
		})
	}

	other, err := cryptox.NewCipher("different", "", "credentials")
	require.NoError(t, err)
	_, _, err = other.Decrypt(text)
	require.ErrorIs(t, err, cryptox.ErrDecrypt)
}
