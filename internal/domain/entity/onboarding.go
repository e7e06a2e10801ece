package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// OnboardingStep is one stage of the onboarding wizard.
type OnboardingStep string

const (
	StepTerms               OnboardingStep = "terms"
	StepAIChat              OnboardingStep = "ai-chat"
	StepChallengeDefinition OnboardingStep = "challenge-definition"
	StepResolution          OnboardingStep = "resolution"
	StepDeposit             OnboardingStep = "deposit"
	StepNotifications       OnboardingStep = "notifications"
	StepActivityRate        OnboardingStep = "activity-rate"
	StepSharing             OnboardingStep = "sharing"
)

// onboardingSteps is the fixed wizard order. Each step has exactly one successor.
var onboardingSteps = []OnboardingStep{
	StepTerms,
	StepAIChat,
	StepChallengeDefinition,
	StepResolution,
	StepDeposit,
	StepNotifications,
	StepActivityRate,
	StepSharing,
}

// OnboardingSteps returns the wizard steps in order.
func OnboardingSteps() []OnboardingStep {
	return slices.Clone(onboardingSteps)
}

// IsValid reports whether s names a known step.
func (s OnboardingStep) IsValid() bool {
	return s.index() >= 0
}

func (s OnboardingStep) index() int {
	return slices.Index(onboardingSteps, s)
}

// Successor returns the step following s. The terminal step has none.
func Successor(s OnboardingStep) (OnboardingStep, bool) {
	i := s.index()
	if i < 0 || i == len(onboardingSteps)-1 {
		return "", false
	}

	return onboardingSteps[i+1], true
}

// Predecessor returns the step preceding s. The first step has none.
func Predecessor(s OnboardingStep) (OnboardingStep, bool) {
	i := s.index()
	if i <= 0 {
		return "", false
	}

	return onboardingSteps[i-1], true
}

// CanEnter applies the navigation gate: staying put, going back to a step at or
// before the current one, or re-entering a completed step is always allowed;
// moving forward requires the target's predecessor to be completed.
func CanEnter(target, current OnboardingStep, completed []OnboardingStep) bool {
	if !target.IsValid() {
		return false
	}
	if target == current || slices.Contains(completed, target) {
		return true
	}
	if current.IsValid() && target.index() < current.index() {
		return true
	}

	prev, ok := Predecessor(target)
	if !ok {
		return true
	}

	return slices.Contains(completed, prev)
}

// IsBackward reports whether moving from current to target goes back in the wizard.
func IsBackward(current, target OnboardingStep) bool {
	return current.IsValid() && target.IsValid() && target.index() < current.index()
}

// OnboardingSession is a user's server-persisted progress through the wizard.
type OnboardingSession struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	CurrentStep      OnboardingStep
	StepsCompleted   []OnboardingStep // Insertion order is completion order.
	ChallengeDraft   ChallengeDraft
	AIMessages       []AIMessage // Mirror of the discovery transcript.
	AIConversationID *uuid.UUID
	StartedAt        time.Time
	CompletedAt      *time.Time
	AbandonedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewOnboardingSession builds a fresh session positioned at the first step.
func NewOnboardingSession(userID uuid.UUID, now time.Time) *OnboardingSession {
	return &OnboardingSession{
		ID:             uuid.New(),
		UserID:         userID,
		CurrentStep:    StepTerms,
		StepsCompleted: []OnboardingStep{},
		ChallengeDraft: NewChallengeDraft(),
		AIMessages:     []AIMessage{},
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsActive reports whether the session is neither completed nor abandoned.
func (s *OnboardingSession) IsActive() bool {
	return s.CompletedAt == nil && s.AbandonedAt == nil
}

// HasCompleted reports whether step is in the completed set.
func (s *OnboardingSession) HasCompleted(step OnboardingStep) bool {
	return slices.Contains(s.StepsCompleted, step)
}

// MarkCompleted adds step to the completed set and moves the cursor to its
// successor. It returns false when the step was already completed, in which
// case nothing changes.
func (s *OnboardingSession) MarkCompleted(step OnboardingStep) bool {
	if s.HasCompleted(step) {
		return false
	}

	s.StepsCompleted = append(s.StepsCompleted, step)
	if next, ok := Successor(step); ok {
		s.CurrentStep = next
	}

	return true
}
