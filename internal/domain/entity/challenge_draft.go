package entity

import (
	"fmt"
	"slices"
	"strings"
)

// DraftSchemaVersion is the current shape of ChallengeDraft documents.
const DraftSchemaVersion = 1

// ChallengeType classifies a challenge.
type ChallengeType string

const (
	ChallengeTypeBehavioral   ChallengeType = "behavioral"
	ChallengeTypeHabit        ChallengeType = "habit"
	ChallengeTypeMilestone    ChallengeType = "milestone"
	ChallengeTypeConsistency  ChallengeType = "consistency"
	ChallengeTypeWellness     ChallengeType = "wellness"
	ChallengeTypeLearning     ChallengeType = "learning"
	ChallengeTypeFitness      ChallengeType = "fitness"
	ChallengeTypeProductivity ChallengeType = "productivity"
	ChallengeTypeCustom       ChallengeType = "custom"
)

var challengeTypes = []ChallengeType{
	ChallengeTypeBehavioral, ChallengeTypeHabit, ChallengeTypeMilestone, ChallengeTypeConsistency,
	ChallengeTypeWellness, ChallengeTypeLearning, ChallengeTypeFitness, ChallengeTypeProductivity,
	ChallengeTypeCustom,
}

// IsValid reports whether t is a known challenge type.
func (t ChallengeType) IsValid() bool {
	return slices.Contains(challengeTypes, t)
}

// FrequencyType is how often the challenge activity is expected.
type FrequencyType string

const (
	FrequencyDaily        FrequencyType = "daily"
	FrequencyWeekly       FrequencyType = "weekly"
	FrequencySpecificDays FrequencyType = "specific-days"
	FrequencyCustom       FrequencyType = "custom"
)

// IsValid reports whether f is a known frequency.
func (f FrequencyType) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencySpecificDays, FrequencyCustom:
		return true
	}

	return false
}

// DepositRecipient is who receives a forfeited deposit.
type DepositRecipient string

const (
	DepositRecipientPlatform DepositRecipient = "platform"
	DepositRecipientFriend   DepositRecipient = "friend"
)

// IsValid reports whether r is a known recipient.
func (r DepositRecipient) IsValid() bool {
	return r == DepositRecipientPlatform || r == DepositRecipientFriend
}

// Defaults applied when a finalized draft leaves the field empty.
const (
	DefaultDurationDays     = 14
	DefaultChallengeType    = ChallengeTypeCustom
	DefaultFrequency        = FrequencyDaily
	DefaultDepositRecipient = DepositRecipientPlatform
	MinimumDepositAmount    = 1.0
)

// FrequencyDetails refines the frequency.
type FrequencyDetails struct {
	DaysOfWeek     []int    `json:"daysOfWeek,omitempty"` // 0-6, Sunday first
	TimesPerWeek   *int     `json:"timesPerWeek,omitempty"`
	TimesPerDay    *int     `json:"timesPerDay,omitempty"`
	SpecificTimes  []string `json:"specificTimes,omitempty"`
	CustomSchedule string   `json:"customSchedule,omitempty"`
}

// NotificationSettings configures challenge reminders.
type NotificationSettings struct {
	Enabled            bool   `json:"enabled"`
	ReminderTime       string `json:"reminderTime,omitempty"`
	ReminderDaysBefore *int   `json:"reminderDaysBefore,omitempty"`
	PushEnabled        *bool  `json:"pushEnabled,omitempty"`
	EmailEnabled       *bool  `json:"emailEnabled,omitempty"`
	SMSEnabled         *bool  `json:"smsEnabled,omitempty"`
}

// ChallengeDraft is the partially filled challenge embedded in an onboarding
// session. No field is mandatory until finalization.
type ChallengeDraft struct {
	SchemaVersion        int                   `json:"schemaVersion"`
	Title                string                `json:"title,omitempty"`
	Description          string                `json:"description,omitempty"`
	Type                 ChallengeType         `json:"type,omitempty"`
	ResolutionMethod     string                `json:"resolutionMethod,omitempty"`
	DepositAmount        *float64              `json:"depositAmount,omitempty"`
	DepositRecipient     DepositRecipient      `json:"depositRecipient,omitempty"`
	LinkedFriendEmail    string                `json:"linkedFriendEmail,omitempty"`
	Frequency            FrequencyType         `json:"frequency,omitempty"`
	FrequencyDetails     *FrequencyDetails     `json:"frequencyDetails,omitempty"`
	DurationDays         *int                  `json:"durationDays,omitempty"`
	NotificationSettings *NotificationSettings `json:"notificationSettings,omitempty"`
	Guarantors           []string              `json:"guarantors,omitempty"`
	AISuggested          bool                  `json:"aiSuggested,omitempty"`
	AIConversationID     string                `json:"aiConversationId,omitempty"`
}

// NewChallengeDraft returns an empty draft at the current schema version.
func NewChallengeDraft() ChallengeDraft {
	return ChallengeDraft{SchemaVersion: DraftSchemaVersion}
}

// DraftFieldError names the draft field that failed validation.
type DraftFieldError struct {
	Field   string
	Message string
}

func (e *DraftFieldError) Error() string {
	return e.Message
}

func fieldError(field, format string, args ...any) *DraftFieldError {
	return &DraftFieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate checks the stored shape of the draft: schema version and enum
// values. It is run whenever a draft is read back or written.
func (d *ChallengeDraft) Validate() error {
	if d.SchemaVersion != DraftSchemaVersion {
		return fieldError("schemaVersion", "unsupported challenge draft schema version %d", d.SchemaVersion)
	}
	if d.Type != "" && !d.Type.IsValid() {
		return fieldError("type", "invalid challenge type %q", d.Type)
	}
	if d.Frequency != "" && !d.Frequency.IsValid() {
		return fieldError("frequency", "invalid frequency %q", d.Frequency)
	}
	if d.DepositRecipient != "" && !d.DepositRecipient.IsValid() {
		return fieldError("depositRecipient", "invalid deposit recipient %q", d.DepositRecipient)
	}
	if d.DepositAmount != nil && *d.DepositAmount < 0 {
		return fieldError("depositAmount", "depositAmount cannot be negative")
	}
	if d.DurationDays != nil && *d.DurationDays < 1 {
		return fieldError("durationDays", "durationDays must be at least 1")
	}
	if d.FrequencyDetails != nil {
		for _, day := range d.FrequencyDetails.DaysOfWeek {
			if day < 0 || day > 6 {
				return fieldError("frequencyDetails.daysOfWeek", "daysOfWeek values must be between 0 and 6")
			}
		}
	}

	return nil
}

// ValidateForFinalize enforces the fields required to turn the draft into a challenge.
func (d *ChallengeDraft) ValidateForFinalize() error {
	if err := d.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(d.Title) == "" {
		return fieldError("title", "Challenge title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return fieldError("description", "Challenge description is required")
	}
	if d.DepositAmount == nil || *d.DepositAmount < MinimumDepositAmount {
		return fieldError("depositAmount", "A valid deposit amount of at least %.0f is required", MinimumDepositAmount)
	}
	if len(d.NonEmptyGuarantors()) == 0 {
		return fieldError("guarantors", "At least one guarantor is required")
	}

	return nil
}

// NonEmptyGuarantors returns the trimmed guarantor emails, skipping blanks.
func (d *ChallengeDraft) NonEmptyGuarantors() []string {
	out := make([]string, 0, len(d.Guarantors))
	for _, g := range d.Guarantors {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}

	return out
}

// Deposit returns the deposit amount or zero.
func (d *ChallengeDraft) Deposit() float64 {
	if d.DepositAmount == nil {
		return 0
	}

	return *d.DepositAmount
}

// Duration returns the duration in days, falling back to the default.
func (d *ChallengeDraft) Duration() int {
	if d.DurationDays == nil || *d.DurationDays < 1 {
		return DefaultDurationDays
	}

	return *d.DurationDays
}

// ApplySuggestion copies a suggested challenge into the draft and tags its provenance.
func (d *ChallengeDraft) ApplySuggestion(s SuggestedChallenge, conversationID string) {
	duration := s.SuggestedDuration
	deposit := s.SuggestedDeposit

	d.SchemaVersion = DraftSchemaVersion
	d.Title = s.Title
	d.Description = s.Description
	d.Type = s.Type
	d.Frequency = s.SuggestedFrequency
	d.DurationDays = &duration
	d.DepositAmount = &deposit
	d.AISuggested = true
	d.AIConversationID = conversationID
}
