package auth

import (
	"time"

	"showup/config"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// jwtService is a concrete implementation of the TokenService interface using the JWT standard.
type jwtService struct {
	accessSecret  []byte        // Secret key for signing access tokens.
	refreshSecret []byte        // Secret key for signing refresh tokens.
	accessTTL     time.Duration // Time-to-live for access tokens.
	refreshTTL    time.Duration // Time-to-live for refresh tokens.
	now           func() time.Time
}

// NewJWTService is the constructor for jwtService.
func NewJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.SecretKey.Access == "" || cfg.SecretKey.Refresh == "" {
		return nil, errors.New("jwt secrets must be provided")
	}

	return &jwtService{
		accessSecret:  []byte(cfg.SecretKey.Access),
		refreshSecret: []byte(cfg.SecretKey.Refresh),
		accessTTL:     accessTokenTTL,
		refreshTTL:    refreshTokenTTL,
		now:           time.Now,
	}, nil
}

// Issue signs a token of the given kind.
func (s *jwtService) Issue(userID uuid.UUID, email string, kind entity.TokenKind) (string, error) {
	secret, ttl, err := s.params(kind)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := &Claims{
		Email: email,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(), // keeps tokens issued in the same second distinct
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	return signed, nil
}

// GenerateTokens creates a new access token and refresh token for a given user.
func (s *jwtService) GenerateTokens(userID uuid.UUID, email string) (*service.TokenPair, error) {
	access, err := s.Issue(userID, email, entity.TokenKindAccess)
	if err != nil {
		return nil, err
	}

	refresh, err := s.Issue(userID, email, entity.TokenKindRefresh)
	if err != nil {
		return nil, err
	}

	return &service.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// ValidateToken parses a token with the secret of the expected kind. Every
// failure mode collapses to ErrInvalidToken.
func (s *jwtService) ValidateToken(tokenString string, kind entity.TokenKind) (*service.Claims, error) {
	secret, _, err := s.params(kind)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}

		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, domainerrors.ErrInvalidToken
	}
	if claims.Type != kind {
		return nil, domainerrors.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domainerrors.ErrInvalidToken
	}

	return &service.Claims{
		UserID:           userID,
		Email:            claims.Email,
		Type:             claims.Type,
		RegisteredClaims: claims.RegisteredClaims,
	}, nil
}

// GetRefreshTokenDuration returns the configured duration for refresh tokens.
func (s *jwtService) GetRefreshTokenDuration() time.Duration {
	return s.refreshTTL
}

func (s *jwtService) params(kind entity.TokenKind) ([]byte, time.Duration, error) {
	switch kind {
	case entity.TokenKindAccess:
		return s.accessSecret, s.accessTTL, nil
	case entity.TokenKindRefresh:
		return s.refreshSecret, s.refreshTTL, nil
	default:
		return nil, 0, errors.Errorf("unknown token kind %q", kind)
	}
}

// Claims is the signed payload: {sub, email, type, iat, exp}.
type Claims struct {
	Email string           `json:"email"`
	Type  entity.TokenKind `json:"type"`
	jwt.RegisteredClaims
}
