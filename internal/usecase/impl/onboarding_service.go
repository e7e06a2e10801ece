package impl

import (
	"context"
	"log/slog"
	"slices"
	"time"

	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// onboardingService implements the OnboardingUsecase interface.
type onboardingService struct {
	txManager repository.TransactionManager
	logger    *slog.Logger
	now       func() time.Time
}

// NewOnboardingService is the constructor for onboardingService.
func NewOnboardingService(txManager repository.TransactionManager, logger *slog.Logger) usecase.OnboardingUsecase {
	return &onboardingService{
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

func (srv *onboardingService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// sessionTx is one unit of work on a loaded session.
type sessionTx struct {
	ctx       context.Context
	session   *entity.OnboardingSession
	now       time.Time
	dirty     bool
	sessions  repository.OnboardingRepository
	analytics repository.AnalyticsRepository
}

func newSessionTx(ctx context.Context, repos repository.RepositoryFactory, now time.Time) *sessionTx {
	return &sessionTx{
		ctx:       ctx,
		now:       now,
		sessions:  repos.NewOnboardingRepository(),
		analytics: repos.NewAnalyticsRepository(),
	}
}

func (tx *sessionTx) record(eventType entity.AnalyticsEventType, step entity.OnboardingStep, data map[string]any, timeSpent *int) error {
	event := entity.NewAnalyticsEvent(tx.session.ID, tx.session.UserID, eventType, step, data, tx.now)
	event.TimeSpentSeconds = timeSpent
	if err := tx.analytics.Record(tx.ctx, event); err != nil {
		return errors.Wrapf(err, "failed to record %s", eventType)
	}

	return nil
}

// loadOwnedSession finds the session and hides sessions of other users behind not-found.
func loadOwnedSession(ctx context.Context, sessions repository.OnboardingRepository, sessionID, userID uuid.UUID) (*entity.OnboardingSession, error) {
	session, err := sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrOnboardingSessionNotFound) {
			return nil, domainerrors.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find onboarding session")
	}
	if session.UserID != userID {
		return nil, domainerrors.ErrSessionNotFound
	}

	return session, nil
}

// mutate loads an active session, applies fn and persists the session when fn changed it.
func (srv *onboardingService) mutate(ctx context.Context, sessionID, userID uuid.UUID, fn func(tx *sessionTx) error) (*entity.OnboardingSession, error) {
	var result *entity.OnboardingSession
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tx := newSessionTx(ctx, repoFactory, srv.now())

		session, err := loadOwnedSession(ctx, tx.sessions, sessionID, userID)
		if err != nil {
			return err
		}
		if !session.IsActive() {
			return domainerrors.NewValidationError("Onboarding session is no longer active")
		}
		tx.session = session

		if err := fn(tx); err != nil {
			return err
		}

		if tx.dirty {
			session.UpdatedAt = tx.now
			if err := tx.sessions.Update(ctx, session); err != nil {
				return errors.Wrap(err, "failed to update onboarding session")
			}
		}
		result = session

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetOrCreate returns the active session, creating it at terms when none exists.
func (srv *onboardingService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*usecase.SessionView, error) {
	var view *usecase.SessionView
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		user, err := repoFactory.NewUserRepository().FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}

		sessions := repoFactory.NewOnboardingRepository()
		session, err := sessions.FindActiveByUser(ctx, userID)
		if errors.Is(err, repository.ErrOnboardingSessionNotFound) {
			now := srv.now()
			session = entity.NewOnboardingSession(userID, now)
			if err := sessions.Create(ctx, session); err != nil {
				return errors.Wrap(err, "failed to create onboarding session")
			}

			tx := newSessionTx(ctx, repoFactory, now)
			tx.session = session
			if err := tx.record(entity.EventSessionStarted, entity.StepTerms, nil, nil); err != nil {
				return err
			}

			srv.log(ctx).Info("Onboarding session started", slog.Any("user_id", userID), slog.Any("session_id", session.ID))
		} else if err != nil {
			return errors.Wrap(err, "failed to find active onboarding session")
		}

		view = &usecase.SessionView{
			Session:        session,
			TermsAccepted:  user.HasAcceptedTerms(),
			StepsRemaining: remainingSteps(session),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return view, nil
}

func remainingSteps(session *entity.OnboardingSession) []entity.OnboardingStep {
	out := make([]entity.OnboardingStep, 0, len(entity.OnboardingSteps()))
	for _, step := range entity.OnboardingSteps() {
		if !session.HasCompleted(step) {
			out = append(out, step)
		}
	}

	return out
}

// applyTransition moves the cursor to target when the navigation gate allows
// it. Moving to the current step is a no-op.
func applyTransition(tx *sessionTx, target entity.OnboardingStep, timeSpentSeconds *int) error {
	session := tx.session
	if target == session.CurrentStep {
		return nil
	}
	if !target.IsValid() {
		return domainerrors.NewValidationError("Unknown onboarding step: " + string(target))
	}
	if !entity.CanEnter(target, session.CurrentStep, session.StepsCompleted) {
		prev, _ := entity.Predecessor(target)

		return domainerrors.NewValidationError("Complete the " + string(prev) + " step before moving to " + string(target))
	}

	if entity.IsBackward(session.CurrentStep, target) {
		if err := tx.record(entity.EventStepReturned, target, map[string]any{"fromStep": string(session.CurrentStep)}, nil); err != nil {
			return err
		}
	}

	data := map[string]any{}
	if timeSpentSeconds != nil {
		data["previousTimeSpent"] = *timeSpentSeconds
	}
	if err := tx.record(entity.EventStepStarted, target, data, timeSpentSeconds); err != nil {
		return err
	}

	session.CurrentStep = target
	tx.dirty = true

	return nil
}

// applyComplete marks step done and advances to its successor. It reports
// whether the step was newly completed.
func applyComplete(tx *sessionTx, step entity.OnboardingStep) (bool, error) {
	session := tx.session
	if !step.IsValid() {
		return false, domainerrors.NewValidationError("Unknown onboarding step: " + string(step))
	}
	if step == entity.StepSharing {
		return false, domainerrors.NewValidationError("The sharing step is completed by finalizing onboarding")
	}
	if !entity.CanEnter(step, session.CurrentStep, session.StepsCompleted) {
		prev, _ := entity.Predecessor(step)

		return false, domainerrors.NewValidationError("Complete the " + string(prev) + " step first")
	}

	if !session.MarkCompleted(step) {
		return false, nil
	}
	tx.dirty = true

	return true, tx.record(entity.EventStepCompleted, step, nil, nil)
}

// applySkip completes step and records that it was skipped.
func applySkip(tx *sessionTx, step entity.OnboardingStep) error {
	completed, err := applyComplete(tx, step)
	if err != nil || !completed {
		return err
	}

	return tx.record(entity.EventStepSkipped, step, nil, nil)
}

// applyDraft replaces the draft and records deposit and guarantor changes.
func applyDraft(tx *sessionTx, draft entity.ChallengeDraft) error {
	if draft.SchemaVersion == 0 {
		draft.SchemaVersion = entity.DraftSchemaVersion
	}
	if err := draft.Validate(); err != nil {
		return domainerrors.NewValidationError(err.Error())
	}

	before := tx.session.ChallengeDraft
	step := tx.session.CurrentStep

	if !sameDeposit(before.DepositAmount, draft.DepositAmount) {
		data := map[string]any{"newAmount": nil}
		if draft.DepositAmount != nil {
			data["newAmount"] = *draft.DepositAmount
		}
		if before.DepositAmount != nil {
			data["previousAmount"] = *before.DepositAmount
		}
		if err := tx.record(entity.EventDepositAmountChanged, step, data, nil); err != nil {
			return err
		}
	}

	oldGuarantors := before.NonEmptyGuarantors()
	newGuarantors := draft.NonEmptyGuarantors()
	for _, email := range newGuarantors {
		if !slices.Contains(oldGuarantors, email) {
			if err := tx.record(entity.EventGuarantorAdded, step, map[string]any{"guarantorEmail": email}, nil); err != nil {
				return err
			}
		}
	}
	for _, email := range oldGuarantors {
		if !slices.Contains(newGuarantors, email) {
			if err := tx.record(entity.EventGuarantorRemoved, step, map[string]any{"guarantorEmail": email}, nil); err != nil {
				return err
			}
		}
	}

	tx.session.ChallengeDraft = draft
	tx.dirty = true

	return nil
}

func sameDeposit(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}

	return *a == *b
}

// UpdateSession is the only way a session moves: navigation and step
// completion are fields of the same PATCH.
func (srv *onboardingService) UpdateSession(ctx context.Context, input *usecase.SessionUpdateInput) (*entity.OnboardingSession, error) {
	return srv.mutate(ctx, input.SessionID, input.UserID, func(tx *sessionTx) error {
		if input.ChallengeDraft != nil {
			if err := applyDraft(tx, *input.ChallengeDraft); err != nil {
				return err
			}
		}
		if input.AIMessages != nil {
			tx.session.AIMessages = input.AIMessages
			tx.dirty = true
		}
		if input.CompleteStep != nil {
			if _, err := applyComplete(tx, *input.CompleteStep); err != nil {
				return err
			}
		}
		if input.SkipStep != nil {
			if err := applySkip(tx, *input.SkipStep); err != nil {
				return err
			}
		}
		if input.CurrentStep != nil {
			return applyTransition(tx, *input.CurrentStep, input.TimeSpentSeconds)
		}

		return nil
	})
}

// AcceptTerms stamps the user's acceptance and, when a session is named,
// completes its terms step. A repeat that changes neither records nothing.
func (srv *onboardingService) AcceptTerms(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, version string) error {
	if version == "" {
		version = entity.CurrentTermsVersion
	}

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		userRepo := repoFactory.NewUserRepository()
		if _, err := userRepo.FindByID(ctx, userID); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}

		now := srv.now()
		stamped, err := userRepo.StampTermsAccepted(ctx, userID, version, now)
		if err != nil {
			return errors.Wrap(err, "failed to stamp terms acceptance")
		}
		if !stamped {
			srv.log(ctx).Debug("Terms already accepted", slog.Any("user_id", userID))
		}

		if sessionID == nil {
			return nil
		}

		tx := newSessionTx(ctx, repoFactory, now)
		session, err := loadOwnedSession(ctx, tx.sessions, *sessionID, userID)
		if err != nil {
			return err
		}
		tx.session = session

		completed := session.IsActive() && session.MarkCompleted(entity.StepTerms)
		if !stamped && !completed {
			return nil
		}

		if err := tx.record(entity.EventTermsAccepted, entity.StepTerms, map[string]any{"termsVersion": version}, nil); err != nil {
			return err
		}
		if !completed {
			return nil
		}

		session.UpdatedAt = now
		if err := tx.sessions.Update(ctx, session); err != nil {
			return errors.Wrap(err, "failed to update onboarding session")
		}

		return tx.record(entity.EventStepCompleted, entity.StepTerms, nil, nil)
	})
	if err != nil {
		return err
	}

	srv.log(ctx).Info("Terms accepted", slog.Any("user_id", userID), slog.String("terms_version", version))

	return nil
}

// Finalize validates the draft and, in one transaction, creates the pending
// challenge, closes the session and stamps the user.
func (srv *onboardingService) Finalize(ctx context.Context, sessionID, userID uuid.UUID, draft *entity.ChallengeDraft) (*usecase.FinalizeOutput, error) {
	if draft == nil {
		return nil, domainerrors.NewValidationError("Session ID and challenge draft are required")
	}
	finalDraft := *draft
	if finalDraft.SchemaVersion == 0 {
		finalDraft.SchemaVersion = entity.DraftSchemaVersion
	}
	if err := finalDraft.ValidateForFinalize(); err != nil {
		return nil, domainerrors.NewValidationError(err.Error())
	}

	var challenge *entity.Challenge
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		tx := newSessionTx(ctx, repoFactory, srv.now())

		session, err := tx.sessions.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrOnboardingSessionNotFound) {
				return domainerrors.ErrSessionNotFound
			}

			return errors.Wrap(err, "failed to find onboarding session")
		}
		if session.UserID != userID {
			return domainerrors.ErrForbidden.WithDetails("Invalid session")
		}
		if !session.IsActive() {
			return domainerrors.NewValidationError("Onboarding session is already finished")
		}
		tx.session = session

		userRepo := repoFactory.NewUserRepository()
		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domainerrors.ErrUserNotFound
			}

			return errors.Wrap(err, "failed to find user")
		}

		challenge = entity.NewChallengeFromDraft(user, session.ID, finalDraft, tx.now)
		if err := repoFactory.NewChallengeRepository().Create(ctx, challenge); err != nil {
			return errors.Wrap(err, "failed to create challenge")
		}

		session.ChallengeDraft = finalDraft
		session.MarkCompleted(entity.StepSharing)
		session.UpdatedAt = tx.now
		if err := tx.sessions.Update(ctx, session); err != nil {
			return errors.Wrap(err, "failed to update onboarding session")
		}
		if err := tx.sessions.MarkCompleted(ctx, session.ID, tx.now); err != nil {
			return errors.Wrap(err, "failed to complete onboarding session")
		}
		if err := userRepo.StampOnboardingCompleted(ctx, userID, tx.now); err != nil {
			return errors.Wrap(err, "failed to stamp onboarding completion")
		}

		return tx.record(entity.EventSessionCompleted, entity.StepSharing, map[string]any{
			"challengeId":    challenge.ID.String(),
			"challengeTitle": challenge.Title,
			"depositAmount":  challenge.Amount,
			"guarantorCount": len(challenge.Guarantors),
		}, nil)
	})
	if err != nil {
		srv.log(ctx).Warn("Failed to finalize onboarding", slog.Any("session_id", sessionID), slog.Any("error", err))

		return nil, err
	}

	srv.log(ctx).Info("Onboarding finalized",
		slog.Any("session_id", sessionID),
		slog.Any("challenge_id", challenge.ID),
		slog.String("challenge_code", challenge.Code),
	)

	return &usecase.FinalizeOutput{
		Challenge: challenge,
		Checkout: &usecase.CheckoutData{
			ChallengeID: challenge.ID,
			Code:        challenge.Code,
			Amount:      challenge.Amount,
			Title:       challenge.Title,
			Duration:    challenge.DurationDays,
			Guarantors:  challenge.Guarantors,
			Email:       challenge.UserEmail,
		},
	}, nil
}

func (srv *onboardingService) Abandon(ctx context.Context, sessionID, userID uuid.UUID) error {
	_, err := srv.mutate(ctx, sessionID, userID, func(tx *sessionTx) error {
		if err := tx.sessions.MarkAbandoned(tx.ctx, tx.session.ID, tx.now); err != nil {
			return errors.Wrap(err, "failed to abandon onboarding session")
		}
		tx.session.AbandonedAt = &tx.now

		return tx.record(entity.EventSessionAbandoned, tx.session.CurrentStep, map[string]any{
			"stepsCompleted": len(tx.session.StepsCompleted),
		}, nil)
	})
	if err != nil {
		return err
	}

	srv.log(ctx).Info("Onboarding session abandoned", slog.Any("session_id", sessionID))

	return nil
}

func (srv *onboardingService) Metrics(ctx context.Context) (*entity.OnboardingMetrics, error) {
	var metrics *entity.OnboardingMetrics
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		metrics, err = repoFactory.NewOnboardingRepository().Metrics(ctx)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load onboarding metrics")
	}

	return metrics, nil
}
