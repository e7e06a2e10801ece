package impl

import (
	"context"
	"testing"

	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onboardingServiceFixtures struct {
	service usecase.OnboardingUsecase
	store   *memStore
	user    *entity.User
}

func createTestOnboardingService(t *testing.T) onboardingServiceFixtures {
	t.Helper()

	store := newMemStore()

	return onboardingServiceFixtures{
		service: NewOnboardingService(store, newDiscardLogger()),
		store:   store,
		user:    store.addUser("sam@example.com"),
	}
}

func (fx onboardingServiceFixtures) start(t *testing.T) *entity.OnboardingSession {
	t.Helper()

	view, err := fx.service.GetOrCreate(context.Background(), fx.user.ID)
	require.NoError(t, err)

	return view.Session
}

func (fx onboardingServiceFixtures) session(id uuid.UUID) entity.OnboardingSession {
	return fx.store.sessions[id]
}

func finalDraft() *entity.ChallengeDraft {
	deposit := 50.0
	days := 14

	return &entity.ChallengeDraft{
		SchemaVersion: entity.DraftSchemaVersion,
		Title:         "Daily skincare",
		Description:   "Morning and evening routine",
		Type:          entity.ChallengeTypeHabit,
		DepositAmount: &deposit,
		DurationDays:  &days,
		Guarantors:    []string{"friend@example.com", " "},
	}
}

func stepPtr(s entity.OnboardingStep) *entity.OnboardingStep { return &s }

func (fx onboardingServiceFixtures) moveTo(sessionID, userID uuid.UUID, step entity.OnboardingStep, timeSpent *int) (*entity.OnboardingSession, error) {
	return fx.service.UpdateSession(context.Background(), &usecase.SessionUpdateInput{
		SessionID: sessionID, UserID: userID, CurrentStep: &step, TimeSpentSeconds: timeSpent,
	})
}

func (fx onboardingServiceFixtures) complete(sessionID, userID uuid.UUID, step entity.OnboardingStep) (*entity.OnboardingSession, error) {
	return fx.service.UpdateSession(context.Background(), &usecase.SessionUpdateInput{SessionID: sessionID, UserID: userID, CompleteStep: &step})
}

func (fx onboardingServiceFixtures) skip(sessionID, userID uuid.UUID, step entity.OnboardingStep) (*entity.OnboardingSession, error) {
	return fx.service.UpdateSession(context.Background(), &usecase.SessionUpdateInput{SessionID: sessionID, UserID: userID, SkipStep: &step})
}

func TestOnboardingService_GetOrCreate(t *testing.T) {
	fx := createTestOnboardingService(t)
	ctx := context.Background()

	first, err := fx.service.GetOrCreate(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepTerms, first.Session.CurrentStep)
	assert.Empty(t, first.Session.StepsCompleted)
	assert.False(t, first.TermsAccepted)
	assert.Equal(t, entity.OnboardingSteps(), first.StepsRemaining)
	assert.Equal(t, entity.DraftSchemaVersion, first.Session.ChallengeDraft.SchemaVersion)

	second, err := fx.service.GetOrCreate(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Session.ID, second.Session.ID)
	assert.Equal(t, []entity.AnalyticsEventType{entity.EventSessionStarted}, fx.store.eventTypes(first.Session.ID))

	_, err = fx.service.GetOrCreate(ctx, uuid.New())
	assert.ErrorIs(t, err, domainerrors.ErrUserNotFound)
}

func TestOnboardingService_ForwardJumpRejected(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)

	_, err := fx.moveTo(session.ID, fx.user.ID, entity.StepDeposit, nil)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "Complete the resolution step before moving to deposit")

	_, err = fx.complete(session.ID, fx.user.ID, entity.StepAIChat)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	_, err = fx.moveTo(session.ID, fx.user.ID, entity.OnboardingStep("payment"), nil)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "Unknown onboarding step: payment")

	stored := fx.session(session.ID)
	assert.Equal(t, entity.StepTerms, stored.CurrentStep)
	assert.Empty(t, stored.StepsCompleted)
}

func TestOnboardingService_AcceptTerms(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))

	user := fx.store.users[fx.user.ID]
	require.NotNil(t, user.TermsAcceptedAt)
	assert.Equal(t, entity.CurrentTermsVersion, user.TermsVersion)
	firstStamp := *user.TermsAcceptedAt

	stored := fx.session(session.ID)
	assert.Equal(t, []entity.OnboardingStep{entity.StepTerms}, stored.StepsCompleted)
	assert.Equal(t, entity.StepAIChat, stored.CurrentStep)

	// Accepting again keeps the first stamp and does not complete the step twice.
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, "2.0"))
	user = fx.store.users[fx.user.ID]
	assert.Equal(t, firstStamp, *user.TermsAcceptedAt)
	assert.Equal(t, entity.CurrentTermsVersion, user.TermsVersion)
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventStepCompleted), 1)
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventTermsAccepted), 1)

	view, err := fx.service.GetOrCreate(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.True(t, view.TermsAccepted)
	assert.NotContains(t, view.StepsRemaining, entity.StepTerms)
}

func TestOnboardingService_AcceptTerms_AlreadyStampedUser(t *testing.T) {
	fx := createTestOnboardingService(t)
	ctx := context.Background()
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, nil, ""))
	session := fx.start(t)

	// The stamp exists but this session's terms step is still open.
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventTermsAccepted), 1)
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventStepCompleted), 1)

	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventTermsAccepted), 1)
}

func TestOnboardingService_AcceptTerms_WithoutSession(t *testing.T) {
	fx := createTestOnboardingService(t)

	require.NoError(t, fx.service.AcceptTerms(context.Background(), fx.user.ID, nil, "1.1"))

	user := fx.store.users[fx.user.ID]
	require.NotNil(t, user.TermsAcceptedAt)
	assert.Equal(t, "1.1", user.TermsVersion)
	assert.Empty(t, fx.store.events)
}

func TestOnboardingService_SkipStep(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))

	updated, err := fx.skip(session.ID, fx.user.ID, entity.StepAIChat)
	require.NoError(t, err)
	assert.Equal(t, entity.StepChallengeDefinition, updated.CurrentStep)
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventStepSkipped), 1)

	// Skipping a completed step changes nothing.
	_, err = fx.skip(session.ID, fx.user.ID, entity.StepAIChat)
	require.NoError(t, err)
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventStepSkipped), 1)
	assert.Equal(t, []entity.OnboardingStep{entity.StepTerms, entity.StepAIChat}, fx.session(session.ID).StepsCompleted)

	_, err = fx.skip(session.ID, fx.user.ID, entity.StepSharing)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestOnboardingService_BackwardTransition(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))
	_, err := fx.skip(session.ID, fx.user.ID, entity.StepAIChat)
	require.NoError(t, err)

	spent := 42
	updated, err := fx.moveTo(session.ID, fx.user.ID, entity.StepTerms, &spent)
	require.NoError(t, err)
	assert.Equal(t, entity.StepTerms, updated.CurrentStep)

	returned := fx.store.eventsOf(session.ID, entity.EventStepReturned)
	require.Len(t, returned, 1)
	assert.Equal(t, string(entity.StepChallengeDefinition), returned[0].EventData["fromStep"])

	started := fx.store.eventsOf(session.ID, entity.EventStepStarted)
	require.Len(t, started, 1)
	assert.Equal(t, 42, started[0].EventData["previousTimeSpent"])
	require.NotNil(t, started[0].TimeSpentSeconds)

	// Completed steps can be re-entered going forward again.
	updated, err = fx.moveTo(session.ID, fx.user.ID, entity.StepChallengeDefinition, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StepChallengeDefinition, updated.CurrentStep)
}

func TestOnboardingService_MoveToCurrentStepIsNoop(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	before := fx.session(session.ID)

	spent := 5
	updated, err := fx.moveTo(session.ID, fx.user.ID, entity.StepTerms, &spent)
	require.NoError(t, err)
	assert.Equal(t, entity.StepTerms, updated.CurrentStep)
	assert.Empty(t, fx.store.eventsOf(session.ID, entity.EventStepStarted))
	assert.Equal(t, before.UpdatedAt, fx.session(session.ID).UpdatedAt)
}

func TestOnboardingService_UpdateSession_Draft(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	draft := entity.NewChallengeDraft()
	amount := 25.0
	draft.DepositAmount = &amount
	draft.Guarantors = []string{"a@example.com", "b@example.com"}
	_, err := fx.service.UpdateSession(ctx, &usecase.SessionUpdateInput{SessionID: session.ID, UserID: fx.user.ID, ChallengeDraft: &draft})
	require.NoError(t, err)

	next := draft
	bigger := 40.0
	next.DepositAmount = &bigger
	next.Guarantors = []string{"b@example.com", "c@example.com"}
	_, err = fx.service.UpdateSession(ctx, &usecase.SessionUpdateInput{SessionID: session.ID, UserID: fx.user.ID, ChallengeDraft: &next})
	require.NoError(t, err)

	changes := fx.store.eventsOf(session.ID, entity.EventDepositAmountChanged)
	require.Len(t, changes, 2)
	assert.Equal(t, 25.0, changes[1].EventData["previousAmount"])
	assert.Len(t, fx.store.eventsOf(session.ID, entity.EventGuarantorAdded), 3)

	removed := fx.store.eventsOf(session.ID, entity.EventGuarantorRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "a@example.com", removed[0].EventData["guarantorEmail"])

	stored := fx.session(session.ID)
	assert.Equal(t, 40.0, stored.ChallengeDraft.Deposit())

	invalid := next
	invalid.Type = entity.ChallengeType("sprint")
	_, err = fx.service.UpdateSession(ctx, &usecase.SessionUpdateInput{SessionID: session.ID, UserID: fx.user.ID, ChallengeDraft: &invalid})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Equal(t, entity.ChallengeType(""), fx.session(session.ID).ChallengeDraft.Type)
}

func TestOnboardingService_UpdateSession_StepFields(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	updated, err := fx.service.UpdateSession(ctx, &usecase.SessionUpdateInput{
		SessionID:    session.ID,
		UserID:       fx.user.ID,
		CompleteStep: stepPtr(entity.StepTerms),
		SkipStep:     stepPtr(entity.StepAIChat),
		CurrentStep:  stepPtr(entity.StepChallengeDefinition),
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StepChallengeDefinition, updated.CurrentStep)
	assert.Equal(t, []entity.OnboardingStep{entity.StepTerms, entity.StepAIChat}, updated.StepsCompleted)
	assert.Empty(t, fx.store.eventsOf(session.ID, entity.EventStepStarted))
}

func TestOnboardingService_ForeignSessionIsNotFound(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	other := fx.store.addUser("other@example.com")

	_, err := fx.moveTo(session.ID, other.ID, entity.StepTerms, nil)
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)

	_, err = fx.complete(uuid.New(), fx.user.ID, entity.StepTerms)
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestOnboardingService_EndToEndFinalize(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))
	_, err := fx.skip(session.ID, fx.user.ID, entity.StepAIChat)
	require.NoError(t, err)

	out, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, finalDraft())
	require.NoError(t, err)

	challenge := out.Challenge
	assert.Equal(t, entity.ChallengeStatusPending, challenge.Status)
	assert.Equal(t, []string{"friend@example.com"}, challenge.Guarantors)
	assert.Equal(t, 14, challenge.DurationDays)
	assert.Equal(t, entity.FrequencyDaily, challenge.Frequency)
	assert.Regexp(t, `^CHG-\d+-[0-9a-z]+$`, challenge.Code)
	assert.Equal(t, challenge.Code, out.Checkout.Code)
	assert.Equal(t, 50.0, out.Checkout.Amount)
	assert.Equal(t, "sam@example.com", out.Checkout.Email)
	assert.Contains(t, fx.store.challenges, challenge.ID)

	stored := fx.session(session.ID)
	assert.NotNil(t, stored.CompletedAt)
	assert.Contains(t, stored.StepsCompleted, entity.StepSharing)
	assert.NotNil(t, fx.store.users[fx.user.ID].OnboardingCompletedAt)

	completed := fx.store.eventsOf(session.ID, entity.EventSessionCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, challenge.ID.String(), completed[0].EventData["challengeId"])
	assert.Equal(t, 1, completed[0].EventData["guarantorCount"])

	_, err = fx.service.Finalize(ctx, session.ID, fx.user.ID, finalDraft())
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	// A finished session is replaced by a fresh one.
	next, err := fx.service.GetOrCreate(ctx, fx.user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, session.ID, next.Session.ID)
}

func TestOnboardingService_Finalize_Validation(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(d *entity.ChallengeDraft)
		message string
	}{
		{"title", func(d *entity.ChallengeDraft) { d.Title = "  " }, "Challenge title is required"},
		{"description", func(d *entity.ChallengeDraft) { d.Description = "" }, "Challenge description is required"},
		{"deposit", func(d *entity.ChallengeDraft) { low := 0.5; d.DepositAmount = &low }, "A valid deposit amount of at least 1 is required"},
		{"guarantors", func(d *entity.ChallengeDraft) { d.Guarantors = []string{""} }, "At least one guarantor is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := finalDraft()
			tt.mutate(draft)

			_, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, draft)
			require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
			assert.Contains(t, err.Error(), tt.message)
		})
	}

	_, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, nil)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Empty(t, fx.store.challenges)
}

func TestOnboardingService_Finalize_Ownership(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	other := fx.store.addUser("other@example.com")
	ctx := context.Background()

	_, err := fx.service.Finalize(ctx, session.ID, other.ID, finalDraft())
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = fx.service.Finalize(ctx, uuid.New(), fx.user.ID, finalDraft())
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
	assert.Empty(t, fx.store.challenges)
}

func TestOnboardingService_Finalize_RollsBackOnFailure(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()
	eventsBefore := len(fx.store.events)

	fx.store.challengeCreateErr = errors.New("insert failed")

	_, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, finalDraft())
	require.Error(t, err)

	stored := fx.session(session.ID)
	assert.True(t, stored.IsActive())
	assert.NotContains(t, stored.StepsCompleted, entity.StepSharing)
	assert.Nil(t, fx.store.users[fx.user.ID].OnboardingCompletedAt)
	assert.Empty(t, fx.store.challenges)
	assert.Len(t, fx.store.events, eventsBefore)
}

func TestOnboardingService_Finalize_RollsBackAfterChallengeInsert(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	fx.store.completeSessionErr = errors.New("update failed")

	_, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, finalDraft())
	require.Error(t, err)

	assert.Empty(t, fx.store.challenges)
	stored := fx.session(session.ID)
	assert.True(t, stored.IsActive())
	assert.NotContains(t, stored.StepsCompleted, entity.StepSharing)
	assert.Nil(t, fx.store.users[fx.user.ID].OnboardingCompletedAt)
	assert.Empty(t, fx.store.eventsOf(session.ID, entity.EventSessionCompleted))

	// The same session can be finalized once the fault clears.
	fx.store.completeSessionErr = nil
	out, err := fx.service.Finalize(ctx, session.ID, fx.user.ID, finalDraft())
	require.NoError(t, err)
	assert.Len(t, fx.store.challenges, 1)
	assert.Contains(t, fx.store.challenges, out.Challenge.ID)
}

func TestOnboardingService_Abandon(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()

	require.NoError(t, fx.service.Abandon(ctx, session.ID, fx.user.ID))
	assert.NotNil(t, fx.session(session.ID).AbandonedAt)

	abandoned := fx.store.eventsOf(session.ID, entity.EventSessionAbandoned)
	require.Len(t, abandoned, 1)
	assert.Equal(t, 0, abandoned[0].EventData["stepsCompleted"])

	_, err := fx.moveTo(session.ID, fx.user.ID, entity.StepTerms, nil)
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	assert.Contains(t, err.Error(), "no longer active")
}

func TestOnboardingService_Metrics(t *testing.T) {
	fx := createTestOnboardingService(t)
	session := fx.start(t)
	ctx := context.Background()
	require.NoError(t, fx.service.AcceptTerms(ctx, fx.user.ID, &session.ID, ""))
	require.NoError(t, fx.service.Abandon(ctx, session.ID, fx.user.ID))

	metrics, err := fx.service.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.TotalSessions)
	assert.Equal(t, int64(1), metrics.AbandonedSessions)
	assert.Equal(t, int64(1), metrics.StepFunnel[entity.StepTerms])
}
