package entity

import (
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ChallengeStatus tracks a challenge through payment and escrow settlement.
type ChallengeStatus string

const (
	ChallengeStatusPending        ChallengeStatus = "pending"
	ChallengeStatusPaymentPending ChallengeStatus = "payment_pending"
	ChallengeStatusSettled        ChallengeStatus = "settled"
	ChallengeStatusFailed         ChallengeStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s ChallengeStatus) IsTerminal() bool {
	return s == ChallengeStatusSettled || s == ChallengeStatusFailed
}

// Challenge is a finalized commitment created from an onboarding draft.
type Challenge struct {
	ID                   uuid.UUID
	Code                 string // Human reference, CHG-<unix>-<random>.
	UserID               uuid.UUID
	UserEmail            string
	Title                string
	Description          string
	DurationDays         int
	Amount               float64 // Deposit in dollars.
	Guarantors           []string
	Type                 ChallengeType
	ResolutionMethod     string
	Frequency            FrequencyType
	FrequencyDetails     FrequencyDetails
	NotificationSettings NotificationSettings
	DepositRecipient     DepositRecipient
	LinkedFriendEmail    string
	AISuggested          bool
	AIConversationID     *uuid.UUID
	OnboardingSessionID  *uuid.UUID
	Status               ChallengeStatus
	PaymentSessionID     string
	OnChainID            string
	TxHash               string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewChallengeCode builds the human-readable challenge reference.
func NewChallengeCode(now time.Time) string {
	return "CHG-" + strconv.FormatInt(now.Unix(), 10) + "-" + strconv.FormatUint(rand.Uint64()>>34, 36)
}

// NewChallengeFromDraft freezes a validated draft into a pending challenge,
// filling defaults for fields the draft left empty.
func NewChallengeFromDraft(owner *User, sessionID uuid.UUID, draft ChallengeDraft, now time.Time) *Challenge {
	c := &Challenge{
		ID:                  uuid.New(),
		Code:                NewChallengeCode(now),
		UserID:              owner.ID,
		UserEmail:           owner.Email,
		Title:               draft.Title,
		Description:         draft.Description,
		DurationDays:        draft.Duration(),
		Amount:              draft.Deposit(),
		Guarantors:          draft.NonEmptyGuarantors(),
		Type:                draft.Type,
		ResolutionMethod:    draft.ResolutionMethod,
		Frequency:           draft.Frequency,
		DepositRecipient:    draft.DepositRecipient,
		LinkedFriendEmail:   draft.LinkedFriendEmail,
		AISuggested:         draft.AISuggested,
		OnboardingSessionID: &sessionID,
		Status:              ChallengeStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if c.Type == "" {
		c.Type = DefaultChallengeType
	}
	if c.Frequency == "" {
		c.Frequency = DefaultFrequency
	}
	if c.DepositRecipient == "" {
		c.DepositRecipient = DefaultDepositRecipient
	}
	if draft.FrequencyDetails != nil {
		c.FrequencyDetails = *draft.FrequencyDetails
	}
	if draft.NotificationSettings != nil {
		c.NotificationSettings = *draft.NotificationSettings
	}
	if id, err := uuid.Parse(draft.AIConversationID); err == nil {
		c.AIConversationID = &id
	}

	return c
}
