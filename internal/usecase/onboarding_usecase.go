package usecase

import (
	"context"

	"showup/internal/domain/entity"

	"github.com/google/uuid"
)

// SessionView is an onboarding session with the owner's terms status.
type SessionView struct {
	Session        *entity.OnboardingSession
	TermsAccepted  bool
	StepsRemaining []entity.OnboardingStep
}

// SessionUpdateInput carries a PATCH of the onboarding session. Fields are
// applied in order: draft, messages, completeStep, skipStep, currentStep.
type SessionUpdateInput struct {
	SessionID        uuid.UUID
	UserID           uuid.UUID
	CurrentStep      *entity.OnboardingStep
	CompleteStep     *entity.OnboardingStep
	SkipStep         *entity.OnboardingStep
	ChallengeDraft   *entity.ChallengeDraft
	AIMessages       []entity.AIMessage
	TimeSpentSeconds *int
}

// CheckoutData is what the client needs to open the payment page after finalizing.
type CheckoutData struct {
	ChallengeID uuid.UUID `json:"challengeId"`
	Code        string    `json:"challengeCode"`
	Amount      float64   `json:"amount"`
	Title       string    `json:"title"`
	Duration    int       `json:"duration"`
	Guarantors  []string  `json:"guarantors"`
	Email       string    `json:"email"`
}

// FinalizeOutput is the result of finalizing onboarding.
type FinalizeOutput struct {
	Challenge *entity.Challenge
	Checkout  *CheckoutData
}

// OnboardingUsecase drives the onboarding wizard.
type OnboardingUsecase interface {
	// GetOrCreate returns the user's active session, creating one positioned at terms.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*SessionView, error)

	// UpdateSession applies a combined PATCH in one transaction. CompleteStep
	// is idempotent, SkipStep also records step_skipped and CurrentStep moves
	// the cursor through the navigation gate.
	UpdateSession(ctx context.Context, input *SessionUpdateInput) (*entity.OnboardingSession, error)

	// AcceptTerms stamps the user once and completes the terms step of the session.
	AcceptTerms(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, version string) error

	// Finalize turns the draft into a pending challenge and closes the session.
	Finalize(ctx context.Context, sessionID, userID uuid.UUID, draft *entity.ChallengeDraft) (*FinalizeOutput, error)

	Abandon(ctx context.Context, sessionID, userID uuid.UUID) error

	Metrics(ctx context.Context) (*entity.OnboardingMetrics, error)
}
