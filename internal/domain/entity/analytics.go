package entity

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsEventType is the closed set of onboarding audit events.
type AnalyticsEventType string

const (
	EventSessionStarted       AnalyticsEventType = "session_started"
	EventStepStarted          AnalyticsEventType = "step_started"
	EventStepCompleted        AnalyticsEventType = "step_completed"
	EventStepSkipped          AnalyticsEventType = "step_skipped"
	EventStepReturned         AnalyticsEventType = "step_returned"
	EventAIMessageSent        AnalyticsEventType = "ai_message_sent"
	EventAIMessageReceived    AnalyticsEventType = "ai_message_received"
	EventChallengeSelected    AnalyticsEventType = "challenge_selected"
	EventDepositAmountChanged AnalyticsEventType = "deposit_amount_changed"
	EventGuarantorAdded       AnalyticsEventType = "guarantor_added"
	EventGuarantorRemoved     AnalyticsEventType = "guarantor_removed"
	EventTermsAccepted        AnalyticsEventType = "terms_accepted"
	EventSessionCompleted     AnalyticsEventType = "session_completed"
	EventSessionAbandoned     AnalyticsEventType = "session_abandoned"
)

// AnalyticsEvent is an insert-only onboarding fact.
type AnalyticsEvent struct {
	ID               uuid.UUID
	SessionID        uuid.UUID
	UserID           uuid.UUID
	EventType        AnalyticsEventType
	Step             *OnboardingStep
	EventData        map[string]any
	TimeSpentSeconds *int
	CreatedAt        time.Time
}

// NewAnalyticsEvent builds an event; step may be empty.
func NewAnalyticsEvent(sessionID, userID uuid.UUID, eventType AnalyticsEventType, step OnboardingStep, data map[string]any, now time.Time) *AnalyticsEvent {
	ev := &AnalyticsEvent{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    userID,
		EventType: eventType,
		EventData: data,
		CreatedAt: now,
	}
	if step != "" {
		ev.Step = &step
	}
	if ev.EventData == nil {
		ev.EventData = map[string]any{}
	}

	return ev
}

// ChallengeTypeCount is one row of the popular challenge types report.
type ChallengeTypeCount struct {
	Type  string `json:"type"`
	Count int64  `json:"count"`
}

// OnboardingMetrics aggregates the onboarding funnel.
type OnboardingMetrics struct {
	TotalSessions            int64                    `json:"totalSessions"`
	CompletedSessions        int64                    `json:"completedSessions"`
	AbandonedSessions        int64                    `json:"abandonedSessions"`
	AverageCompletionSeconds float64                  `json:"averageTimeToComplete"`
	StepFunnel               map[OnboardingStep]int64 `json:"stepDropoffRates"`
	PopularChallengeTypes    []ChallengeTypeCount     `json:"popularChallengeTypes"`
}
