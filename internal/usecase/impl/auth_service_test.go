package impl

import (
	"context"
	"testing"
	"time"

	"showup/config"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/infra/auth"
	"showup/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "Walk1ngDaily"

// authServiceFixtures holds all test dependencies for auth service tests.
type authServiceFixtures struct {
	service *authService
	store   *memStore
}

func createTestAuthService(t *testing.T) authServiceFixtures {
	t.Helper()

	cfg := &config.Config{}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.SecretKey.Refresh = "test_refresh_secret_key_very_long_for_testing"

	tokens, err := auth.NewJWTService(cfg)
	require.NoError(t, err)

	store := newMemStore()
	svc := NewAuthService(AuthServiceParams{
		TxManager:    store,
		Hasher:       auth.NewBcryptHasherWithCost(4),
		Policy:       auth.NewCredentialPolicy(cfg),
		TokenService: tokens,
		Logger:       newDiscardLogger(),
	})

	return authServiceFixtures{service: svc.(*authService), store: store}
}

func (fx authServiceFixtures) register(t *testing.T, email string) *usecase.AuthOutput {
	t.Helper()

	out, err := fx.service.Register(context.Background(), &usecase.RegisterInput{
		Email:    email,
		Password: testPassword,
		FullName: "Sam Walker",
	})
	require.NoError(t, err)

	return out
}

func TestAuthService_Register(t *testing.T) {
	fx := createTestAuthService(t)

	out := fx.register(t, "  Sam@Example.COM ")

	assert.Equal(t, "sam@example.com", out.User.Email)
	assert.True(t, out.User.IsActive)
	assert.NotEqual(t, testPassword, out.User.PasswordHash)
	assert.NotEmpty(t, out.Tokens.AccessToken)
	assert.NotEmpty(t, out.Tokens.RefreshToken)
	require.Len(t, fx.store.authSessions, 1)

	for _, session := range fx.store.authSessions {
		assert.Equal(t, out.User.ID, session.UserID)
		assert.Equal(t, hashRefreshToken(out.Tokens.RefreshToken), session.RefreshTokenHash)
		assert.NotEqual(t, out.Tokens.RefreshToken, session.RefreshTokenHash)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		message  string
	}{
		{"missing email", "", testPassword, "Email and password are required"},
		{"missing password", "a@b.co", "", "Email and password are required"},
		{"bad email", "not-an-email", testPassword, "Invalid email address"},
		{"short password", "a@b.co", "Ab1", "Password must be at least 8 characters"},
		{"no uppercase", "a@b.co", "walking1daily", "Password must contain at least one uppercase letter"},
		{"no number", "a@b.co", "WalkingDaily", "Password must contain at least one number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := createTestAuthService(t)

			_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{Email: tt.email, Password: tt.password})

			require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, fx.store.users)
		})
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	fx := createTestAuthService(t)
	fx.register(t, "sam@example.com")

	_, err := fx.service.Register(context.Background(), &usecase.RegisterInput{Email: "SAM@example.com", Password: testPassword})

	require.ErrorIs(t, err, domainerrors.ErrEmailTaken)
	assert.Len(t, fx.store.users, 1)
	assert.Len(t, fx.store.authSessions, 1)
}

func TestAuthService_Login(t *testing.T) {
	fx := createTestAuthService(t)
	registered := fx.register(t, "sam@example.com")
	ctx := context.Background()

	t.Run("valid credentials open a second session", func(t *testing.T) {
		out, err := fx.service.Login(ctx, &usecase.LoginInput{Email: "Sam@example.com", Password: testPassword, UserAgent: "test"})
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, out.User.ID)
		assert.Len(t, fx.store.authSessions, 2)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := fx.service.Login(ctx, &usecase.LoginInput{Email: "sam@example.com", Password: "Wrong1Password"})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	})

	t.Run("unknown email looks the same as a wrong password", func(t *testing.T) {
		_, err := fx.service.Login(ctx, &usecase.LoginInput{Email: "nobody@example.com", Password: testPassword})
		assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
	})

	t.Run("inactive account", func(t *testing.T) {
		user := fx.store.users[registered.User.ID]
		user.IsActive = false
		fx.store.users[user.ID] = user

		_, err := fx.service.Login(ctx, &usecase.LoginInput{Email: "sam@example.com", Password: testPassword})
		assert.ErrorIs(t, err, domainerrors.ErrAccountInactive)
	})
}

func TestAuthService_Refresh_RotatesSameSession(t *testing.T) {
	fx := createTestAuthService(t)
	registered := fx.register(t, "sam@example.com")
	ctx := context.Background()

	rotated, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, registered.Tokens.RefreshToken, rotated.RefreshToken)
	require.Len(t, fx.store.authSessions, 1)

	for _, session := range fx.store.authSessions {
		assert.Equal(t, hashRefreshToken(rotated.RefreshToken), session.RefreshTokenHash)
	}

	// The replaced token no longer matches any session.
	_, err = fx.service.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)

	_, err = fx.service.Refresh(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestAuthService_Refresh_Rejections(t *testing.T) {
	fx := createTestAuthService(t)
	registered := fx.register(t, "sam@example.com")
	ctx := context.Background()

	t.Run("access token is not a refresh token", func(t *testing.T) {
		_, err := fx.service.Refresh(ctx, registered.Tokens.AccessToken)
		assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := fx.service.Refresh(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
	})

	t.Run("expired session row", func(t *testing.T) {
		for id, session := range fx.store.authSessions {
			session.ExpiresAt = time.Now().Add(-time.Minute)
			fx.store.authSessions[id] = session
		}

		_, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken)
		assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
	})
}

func TestAuthService_Logout(t *testing.T) {
	fx := createTestAuthService(t)
	registered := fx.register(t, "sam@example.com")
	ctx := context.Background()

	require.NoError(t, fx.service.Logout(ctx, ""))
	assert.Len(t, fx.store.authSessions, 1)

	require.NoError(t, fx.service.Logout(ctx, registered.Tokens.RefreshToken))
	assert.Empty(t, fx.store.authSessions)

	_, err := fx.service.Refresh(ctx, registered.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domainerrors.ErrRefreshTokenInvalid)
}

func TestAuthService_Me(t *testing.T) {
	fx := createTestAuthService(t)
	registered := fx.register(t, "sam@example.com")

	user, err := fx.service.Me(context.Background(), registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", user.Email)

	delete(fx.store.users, registered.User.ID)
	_, err = fx.service.Me(context.Background(), registered.User.ID)
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestAuthService_CleanupExpiredSessions(t *testing.T) {
	fx := createTestAuthService(t)
	fx.register(t, "sam@example.com")
	fx.register(t, "alex@example.com")

	for id, session := range fx.store.authSessions {
		if session.IPAddress == "" {
			session.ExpiresAt = time.Now().Add(-time.Hour)
			fx.store.authSessions[id] = session

			break
		}
	}

	deleted, err := fx.service.CleanupExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.Len(t, fx.store.authSessions, 1)
}
