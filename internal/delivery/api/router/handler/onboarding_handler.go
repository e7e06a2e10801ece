package handler

import (
	"log/slog"
	"net/http"
	"time"

	"showup/internal/delivery/api/response"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

const sessionIDRequired = "Session ID is required"

// OnboardingHandlerParams holds dependencies for OnboardingHandler, injected by Fx.
type OnboardingHandlerParams struct {
	fx.In

	OnboardingUC usecase.OnboardingUsecase
	Logger       *slog.Logger
}

// OnboardingHandler serves the onboarding wizard endpoints.
type OnboardingHandler struct {
	onboardingUC usecase.OnboardingUsecase
	logger       *slog.Logger
}

// NewOnboardingHandler is the constructor for OnboardingHandler.
func NewOnboardingHandler(params OnboardingHandlerParams) *OnboardingHandler {
	return &OnboardingHandler{
		onboardingUC: params.OnboardingUC,
		logger:       params.Logger,
	}
}

// SessionResponse is the client view of an onboarding session.
type SessionResponse struct {
	ID               uuid.UUID               `json:"id"`
	UserID           uuid.UUID               `json:"userId"`
	CurrentStep      entity.OnboardingStep   `json:"currentStep"`
	StepsCompleted   []entity.OnboardingStep `json:"stepsCompleted"`
	ChallengeDraft   entity.ChallengeDraft   `json:"challengeDraft"`
	AIMessages       []entity.AIMessage      `json:"aiMessages"`
	AIConversationID *uuid.UUID              `json:"aiConversationId"`
	StartedAt        time.Time               `json:"startedAt"`
	CompletedAt      *time.Time              `json:"completedAt"`
	AbandonedAt      *time.Time              `json:"abandonedAt"`
	UpdatedAt        time.Time               `json:"updatedAt"`
}

func newSessionResponse(s *entity.OnboardingSession) *SessionResponse {
	return &SessionResponse{
		ID:               s.ID,
		UserID:           s.UserID,
		CurrentStep:      s.CurrentStep,
		StepsCompleted:   s.StepsCompleted,
		ChallengeDraft:   s.ChallengeDraft,
		AIMessages:       s.AIMessages,
		AIConversationID: s.AIConversationID,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
		AbandonedAt:      s.AbandonedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

// UpdateSessionRequest is the body of PATCH /api/onboarding/session.
type UpdateSessionRequest struct {
	SessionID        string                 `json:"sessionId"`
	CurrentStep      *entity.OnboardingStep `json:"currentStep"`
	CompleteStep     *entity.OnboardingStep `json:"completeStep"`
	SkipStep         *entity.OnboardingStep `json:"skipStep"`
	ChallengeDraft   *entity.ChallengeDraft `json:"challengeDraft"`
	AIMessages       []entity.AIMessage     `json:"aiMessages"`
	TimeSpentSeconds *int                   `json:"timeSpentSeconds" validate:"omitempty,min=0"`
}

// AcceptTermsRequest is the body of POST /api/onboarding/terms.
type AcceptTermsRequest struct {
	SessionID    *string `json:"sessionId"`
	TermsVersion string  `json:"termsVersion"`
}

// CompleteRequest is the body of POST /api/onboarding/complete.
type CompleteRequest struct {
	SessionID      string                 `json:"sessionId"`
	ChallengeDraft *entity.ChallengeDraft `json:"challengeDraft"`
}

// GetSession returns the caller's active session, creating one when needed.
func (h *OnboardingHandler) GetSession(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	view, err := h.onboardingUC.GetOrCreate(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"session":        newSessionResponse(view.Session),
		"termsAccepted":  view.TermsAccepted,
		"stepsRemaining": view.StepsRemaining,
	})
}

// UpdateSession applies navigation, step completion and draft edits.
func (h *OnboardingHandler) UpdateSession(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req UpdateSessionRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	sessionID, err := parseID(req.SessionID, sessionIDRequired)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	session, err := h.onboardingUC.UpdateSession(c.Request().Context(), &usecase.SessionUpdateInput{
		SessionID:        sessionID,
		UserID:           userID,
		CurrentStep:      req.CurrentStep,
		CompleteStep:     req.CompleteStep,
		SkipStep:         req.SkipStep,
		ChallengeDraft:   req.ChallengeDraft,
		AIMessages:       req.AIMessages,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{"session": newSessionResponse(session)})
}

// AbandonSession closes the session named by the sessionId query parameter.
func (h *OnboardingHandler) AbandonSession(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	sessionID, err := parseID(c.QueryParam("sessionId"), sessionIDRequired)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if err := h.onboardingUC.Abandon(c.Request().Context(), sessionID, userID); err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"success": true})
}

// AcceptTerms records terms acceptance and completes the terms step.
func (h *OnboardingHandler) AcceptTerms(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req AcceptTermsRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	sessionID, err := parseOptionalID(req.SessionID, "Invalid session ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	if err := h.onboardingUC.AcceptTerms(c.Request().Context(), userID, sessionID, req.TermsVersion); err != nil {
		return response.HandleAppError(c, err)
	}

	version := req.TermsVersion
	if version == "" {
		version = entity.CurrentTermsVersion
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"success":      true,
		"termsVersion": version,
	})
}

// Complete finalizes onboarding into a pending challenge plus checkout data.
func (h *OnboardingHandler) Complete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req CompleteRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}
	if req.SessionID == "" || req.ChallengeDraft == nil {
		return response.HandleAppError(c, domainerrors.NewValidationError("Session ID and challenge draft are required"))
	}

	sessionID, err := parseID(req.SessionID, "Invalid session ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	out, err := h.onboardingUC.Finalize(c.Request().Context(), sessionID, userID, req.ChallengeDraft)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusCreated, map[string]any{
		"success":   true,
		"challenge": newChallengeResponse(out.Challenge),
		"checkout":  out.Checkout,
	})
}
