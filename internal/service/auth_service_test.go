package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/activities/internal/domain"
	"github.com/vedran77/activities/internal/test/fakes"
)

func TestRegisterLoginAndParseToken(t *testing.T) {
	store := fakes.NewStore()
	svc := NewAuthService(fakes.UserRepo{Store: store}, "test-secret", time.Hour)
	ctx := context.Background()

	resp, err := svc.Register(ctx, RegisterInput{
		Email: "ana@example.com", Username: "ana", DisplayName: "Ana", Password: "Secret123!",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "Secret123!", resp.User.PasswordHash)

	id, err := svc.ParseToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id.UserID)
	assert.Equal(t, "ana", id.Username)

	_, err = svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCreds)

	login, err := svc.Login(ctx, LoginInput{Email: "ana@example.com", Password: "Secret123!"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	me, err := svc.Me(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", me.User.Username)
}

func TestRegisterDuplicates(t *testing.T) {
	store := fakes.NewStore()
	svc := NewAuthService(fakes.UserRepo{Store: store}, "test-secret", time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "a1", DisplayName: "A", Password: "Secret123!"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@example.com", Username: "a2", DisplayName: "A", Password: "Secret123!"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Register(ctx, RegisterInput{Email: "b@example.com", Username: "a1", DisplayName: "A", Password: "Secret123!"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestParseTokenRejects(t *testing.T) {
	svc := NewAuthService(fakes.UserRepo{Store: fakes.NewStore()}, "test-secret", time.Hour)

	_, err := svc.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewAuthService(fakes.UserRepo{Store: fakes.NewStore()}, "other-secret", time.Hour)
	resp, err := other.respond(&domain.User{Username: "x"})
	require.NoError(t, err)
	_, err = svc.ParseToken(resp.AccessToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      "6f1c1c8e-1f5a-4d8a-9d0e-0c7b8f3c2a11",
		"username": "x",
		"exp":      time.Now().Add(-time.Minute).Unix(),
	})
	signed, err := expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = svc.ParseToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
