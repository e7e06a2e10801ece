package auth

import (
	"testing"
	"time"

	"showup/config"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.SecretKey.Access = "test_access_secret_key_very_long_for_testing"
	cfg.SecretKey.Refresh = "test_refresh_secret_key_very_long_for_testing"

	return cfg
}

func newTestJWTService(t *testing.T) *jwtService {
	t.Helper()

	svc, err := NewJWTService(newTestConfig())
	require.NoError(t, err)

	return svc.(*jwtService)
}

func TestJWTService_GenerateAndValidateTokens(t *testing.T) {
	svc := newTestJWTService(t)
	userID := uuid.New()

	pair, err := svc.GenerateTokens(userID, "walker@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	access, err := svc.ValidateToken(pair.AccessToken, entity.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, userID, access.UserID)
	assert.Equal(t, "walker@example.com", access.Email)
	assert.Equal(t, entity.TokenKindAccess, access.Type)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), access.ExpiresAt.Time, 5*time.Second)

	refresh, err := svc.ValidateToken(pair.RefreshToken, entity.TokenKindRefresh)
	require.NoError(t, err)
	assert.Equal(t, entity.TokenKindRefresh, refresh.Type)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), refresh.ExpiresAt.Time, 5*time.Second)
}

func TestJWTService_RejectsWrongKind(t *testing.T) {
	svc := newTestJWTService(t)

	pair, err := svc.GenerateTokens(uuid.New(), "walker@example.com")
	require.NoError(t, err)

	_, err = svc.ValidateToken(pair.AccessToken, entity.TokenKindRefresh)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)

	_, err = svc.ValidateToken(pair.RefreshToken, entity.TokenKindAccess)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestJWTService_RejectsExpired(t *testing.T) {
	svc := newTestJWTService(t)
	issuedAt := time.Now().Add(-time.Hour)
	svc.now = func() time.Time { return issuedAt }

	token, err := svc.Issue(uuid.New(), "walker@example.com", entity.TokenKindAccess)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token, entity.TokenKindAccess)
	assert.ErrorIs(t, err, domainerrors.ErrInvalidToken)
}

func TestJWTService_RejectsGarbageAndForeignSignatures(t *testing.T) {
	svc := newTestJWTService(t)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Type: entity.TokenKindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, err := foreign.SignedString([]byte("someone-else"))
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": uuid.NewString(), "type": "access"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, token := range []string{"", "clearly-not-a-jwt-token-format", "a.b.c", foreignToken, noneToken} {
		claims, err := svc.ValidateToken(token, entity.TokenKindAccess)
		assert.ErrorIs(t, err, domainerrors.ErrInvalidToken, token)
		assert.Nil(t, claims)
	}
}

func TestJWTService_EmptySecrets(t *testing.T) {
	svc, err := NewJWTService(&config.Config{})
	assert.Error(t, err)
	assert.Nil(t, svc)
	assert.Contains(t, err.Error(), "jwt secrets must be provided")
}

func TestJWTService_GetRefreshTokenDuration(t *testing.T) {
	svc := newTestJWTService(t)

	assert.Equal(t, 7*24*time.Hour, svc.GetRefreshTokenDuration())
}
