package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MikeMC777/mia-shop/internal/auth"
	"github.com/MikeMC777/mia-shop/internal/memstore"
	"github.com/MikeMC777/mia-shop/internal/user"
)

func setup(t *testing.T) (*user.Service, *memstore.DB, *auth.Manager) {
	t.Helper()
	tokens, err := auth.NewManager("user-test-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	db := memstore.New()
	return user.NewService(db.Users(), tokens, zap.NewNop()), db, tokens
}

func TestRegister_StoresHashAndIssuesTokens(t *testing.T) {
	svc, db, tokens := setup(t)
	ctx := context.Background()

	pair, err := svc.Register(ctx, user.RegisterRequest{Email: " Ana@Example.COM ", Password: "s3cretpass"})
	require.NoError(t, err)

	sub, err := tokens.Parse(pair.AccessToken, auth.TypeAccess)
	require.NoError(t, err)
	u, err := db.Users().GetByEmail(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sub)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)
	assert.True(t, user.CheckPassword(u.PasswordHash, "s3cretpass"))

	_, err = svc.Register(ctx, user.RegisterRequest{Email: "ana@example.com", Password: "another-one"})
	assert.ErrorIs(t, err, user.ErrAlreadyExist)
}

func TestLogin(t *testing.T) {
	svc, db, _ := setup(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, user.RegisterRequest{Email: "bo@example.com", Password: "s3cretpass"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, user.LoginRequest{Email: "bo@example.com", Password: "s3cretpass"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, user.LoginRequest{Email: "bo@example.com", Password: "nope"})
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Login(ctx, user.LoginRequest{Email: "ghost@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)

	u, err := db.Users().GetByEmail(ctx, "bo@example.com")
	require.NoError(t, err)
	db.Users().SetActive(u.ID, false)
	_, err = svc.Login(ctx, user.LoginRequest{Email: "bo@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, user.ErrInactive)
}

func TestRefresh(t *testing.T) {
	svc, db, tokens := setup(t)
	ctx := context.Background()
	pair, err := svc.Register(ctx, user.RegisterRequest{Email: "cy@example.com", Password: "s3cretpass"})
	require.NoError(t, err)

	got, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, got.RefreshToken)
	_, err = tokens.Parse(got.AccessToken, auth.TypeAccess)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrWrongType)

	sub, err := tokens.Parse(pair.RefreshToken, auth.TypeRefresh)
	require.NoError(t, err)
	db.Users().SetActive(sub, false)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, user.ErrInactive)
}
