// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// authService implements the AuthUsecase interface.
type authService struct {
	txManager    repository.TransactionManager
	hasher       service.PasswordHasher
	policy       service.CredentialPolicy
	tokenService service.TokenService
	logger       *slog.Logger
	now          func() time.Time
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager    repository.TransactionManager
	Hasher       service.PasswordHasher
	Policy       service.CredentialPolicy
	TokenService service.TokenService
	Logger       *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	return &authService{
		txManager:    params.TxManager,
		hasher:       params.Hasher,
		policy:       params.Policy,
		tokenService: params.TokenService,
		logger:       params.Logger,
		now:          time.Now,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// hashRefreshToken is the lookup key stored instead of the raw token.
func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}

// Register validates the credentials, creates the user and opens the first session.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.AuthOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, domainerrors.NewValidationError("Email and password are required")
	}
	if err := srv.policy.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := srv.policy.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	hashedPassword, err := srv.hasher.Hash(input.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password during registration")
	}

	now := srv.now()
	user := &entity.User{
		ID:           uuid.New(),
		Email:        email,
		Username:     normalizeUsername(input.Username),
		PasswordHash: hashedPassword,
		FullName:     strings.TrimSpace(input.FullName),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var tokens *service.TokenPair
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.NewUserRepository().Create(ctx, user); err != nil {
			switch {
			case errors.Is(err, repository.ErrEmailTaken):
				return domainerrors.ErrEmailTaken
			case errors.Is(err, repository.ErrUsernameTaken):
				return domainerrors.ErrUsernameTaken
			}

			return errors.Wrap(err, "failed to create user during registration")
		}

		tokens, err = srv.openSession(ctx, repoFactory.NewAuthSessionRepository(), user, input.UserAgent, input.IPAddress)

		return err
	})
	if err != nil {
		srv.log(ctx).Warn("Registration failed", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Registration completed", slog.Any("user_id", user.ID))

	return &usecase.AuthOutput{User: user, Tokens: tokens}, nil
}

func normalizeUsername(username *string) *string {
	if username == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*username)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}

// Login checks the password and opens a new session.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.AuthOutput, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, domainerrors.NewValidationError("Email and password are required")
	}

	var (
		user   *entity.User
		tokens *service.TokenPair
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.NewUserRepository().FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrInvalidCredentials
			}

			return errors.Wrap(err, "failed to find user")
		}

		if !srv.hasher.Check(input.Password, found.PasswordHash) {
			return domainerrors.ErrInvalidCredentials
		}
		if !found.IsActive {
			return domainerrors.ErrAccountInactive
		}

		user = found
		tokens, err = srv.openSession(ctx, repoFactory.NewAuthSessionRepository(), found, input.UserAgent, input.IPAddress)

		return err
	})
	if err != nil {
		srv.log(ctx).Warn("Login failed", slog.String("email", email), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Login succeeded", slog.Any("user_id", user.ID))

	return &usecase.AuthOutput{User: user, Tokens: tokens}, nil
}

func (srv *authService) openSession(
	ctx context.Context,
	sessionRepo repository.AuthSessionRepository,
	user *entity.User,
	userAgent, ipAddress string,
) (*service.TokenPair, error) {
	tokens, err := srv.tokenService.GenerateTokens(user.ID, user.Email)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate tokens")
	}

	now := srv.now()
	session := &entity.AuthSession{
		ID:               uuid.New(),
		UserID:           user.ID,
		RefreshTokenHash: hashRefreshToken(tokens.RefreshToken),
		ExpiresAt:        now.Add(srv.tokenService.GetRefreshTokenDuration()),
		UserAgent:        userAgent,
		IPAddress:        ipAddress,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := sessionRepo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create auth session")
	}

	return tokens, nil
}

// Refresh issues a new pair and overwrites the session row of the presented token.
func (srv *authService) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	claims, err := srv.tokenService.ValidateToken(refreshToken, entity.TokenKindRefresh)
	if err != nil {
		return nil, domainerrors.ErrRefreshTokenInvalid
	}

	var tokens *service.TokenPair
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.NewAuthSessionRepository()

		session, err := sessionRepo.FindByTokenHash(ctx, hashRefreshToken(refreshToken))
		if err != nil {
			if errors.Is(err, repository.ErrAuthSessionNotFound) {
				return domainerrors.ErrRefreshTokenInvalid
			}

			return errors.Wrap(err, "failed to find auth session")
		}

		now := srv.now()
		if session.IsExpired(now) || session.UserID != claims.UserID {
			return domainerrors.ErrRefreshTokenInvalid
		}

		user, err := repoFactory.NewUserRepository().FindByID(ctx, session.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrRefreshTokenInvalid
			}

			return errors.Wrap(err, "failed to find user")
		}
		if !user.IsActive {
			return domainerrors.ErrAccountInactive
		}

		tokens, err = srv.tokenService.GenerateTokens(user.ID, user.Email)
		if err != nil {
			return errors.Wrap(err, "failed to generate tokens")
		}

		expiresAt := now.Add(srv.tokenService.GetRefreshTokenDuration())
		if err := sessionRepo.Rotate(ctx, session.ID, hashRefreshToken(tokens.RefreshToken), expiresAt); err != nil {
			return errors.Wrap(err, "failed to rotate auth session")
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Token refresh failed", slog.Any("user_id", claims.UserID), slog.Any("error", err))

		return nil, err
	}

	return tokens, nil
}

func (srv *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.NewAuthSessionRepository().DeleteByTokenHash(ctx, hashRefreshToken(refreshToken))
	})
	if err != nil {
		return errors.Wrap(err, "failed to delete auth session")
	}

	return nil
}

func (srv *authService) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	var user *entity.User
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		found, err := repoFactory.NewUserRepository().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}
		user = found

		return nil
	})

	return user, err
}

// CleanupExpiredSessions removes all expired sessions from the database.
func (srv *authService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	var deleted int64
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		deleted, err = repoFactory.NewAuthSessionRepository().DeleteExpired(ctx, srv.now())

		return err
	})
	if err != nil {
		srv.log(ctx).Error("Failed to cleanup expired sessions", slog.Any("error", err))

		return 0, errors.Wrap(err, "failed to cleanup expired sessions")
	}

	srv.log(ctx).Info("Cleaned up expired sessions", slog.Int64("deleted_count", deleted))

	return deleted, nil
}
