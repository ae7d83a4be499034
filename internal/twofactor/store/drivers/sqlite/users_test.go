package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/sqlite"
	"github.com/aussiebroadwan/twofactor/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func TestUsers_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	empty, err := st.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	secret := "FDJBDYSSZMLJBOUG"
	nate := domain.User{ID: idx.New().String(), Username: "nate", PasswordHash: "hash", Secret: &secret}
	mariano := domain.User{ID: idx.New().String(), Username: "mariano", PreferredName: "Mariano", PasswordHash: "hash"}

	require.NoError(t, st.Users().CreateUser(ctx, nate))
	require.NoError(t, st.Users().CreateUser(ctx, mariano))

	got, err := st.Users().GetUserByUsername(ctx, "nate")
	require.NoError(t, err)
	require.Equal(t, nate.ID, got.ID)
	require.NotNil(t, got.Secret)
	require.Equal(t, secret, *got.Secret)
	require.True(t, got.TwoFactorEnabled())
	require.False(t, got.CreatedAt.IsZero())

	got, err = st.Users().GetUserByID(ctx, mariano.ID)
	require.NoError(t, err)
	require.Equal(t, "Mariano", got.PreferredName)
	require.Nil(t, got.Secret)
	require.False(t, got.TwoFactorEnabled())

	users, err := st.Users().ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)

	t.Run("duplicate username", func(t *testing.T) {
		err := st.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "nate", PasswordHash: "x"})
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := st.Users().GetUserByUsername(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)

		err = st.Users().UpdatePasswordHash(ctx, "nobody", "x")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestUsers_SecretLifecycle(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	u := domain.User{ID: idx.New().String(), Username: "nate", PasswordHash: "hash"}
	require.NoError(t, st.Users().CreateUser(ctx, u))

	// Nothing staged yet
	require.ErrorIs(t, st.Users().ActivatePendingSecret(ctx, u.ID), store.ErrNotFound)

	require.NoError(t, st.Users().SetPendingSecret(ctx, u.ID, "FDJBDYSSZMLJBOUG"))
	got, err := st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.Secret, "staging must not enable 2FA")
	require.Equal(t, "FDJBDYSSZMLJBOUG", *got.PendingSecret)

	require.NoError(t, st.Users().ActivatePendingSecret(ctx, u.ID))
	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "FDJBDYSSZMLJBOUG", *got.Secret)
	require.Nil(t, got.PendingSecret)

	require.NoError(t, st.Users().ClearSecret(ctx, u.ID))
	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, got.Secret)

	require.NoError(t, st.Users().SetSecret(ctx, u.ID, "JBSWY3DPEHPK3PXP"))
	got, err = st.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "JBSWY3DPEHPK3PXP", *got.Secret)
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	errBoom := errors.New("boom")
	err := st.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "rolled", PasswordHash: "x"}))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = st.Users().GetUserByUsername(ctx, "rolled")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = st.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, domain.User{ID: idx.New().String(), Username: "committed", PasswordHash: "x"})
	})
	require.NoError(t, err)

	_, err = st.Users().GetUserByUsername(ctx, "committed")
	require.NoError(t, err)
}

func TestApplyMigrations_Idempotent(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.ApplyMigrations())
	require.NoError(t, st.Ping(context.Background()))
}
