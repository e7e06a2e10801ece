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

// DiscoveryHandlerParams holds dependencies for DiscoveryHandler, injected by Fx.
type DiscoveryHandlerParams struct {
	fx.In

	DiscoveryUC usecase.DiscoveryUsecase
	Logger      *slog.Logger
}

// DiscoveryHandler serves the challenge discovery chat.
type DiscoveryHandler struct {
	discoveryUC usecase.DiscoveryUsecase
	logger      *slog.Logger
}

// NewDiscoveryHandler is the constructor for DiscoveryHandler.
func NewDiscoveryHandler(params DiscoveryHandlerParams) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryUC: params.DiscoveryUC,
		logger:      params.Logger,
	}
}

// SendMessageRequest is the body of POST /api/onboarding/ai-chat.
type SendMessageRequest struct {
	SessionID      string  `json:"sessionId"`
	ConversationID *string `json:"conversationId"`
	Message        string  `json:"message"`
}

// SelectSuggestionRequest is the body of PUT /api/onboarding/ai-chat.
type SelectSuggestionRequest struct {
	SessionID         string                     `json:"sessionId"`
	ConversationID    string                     `json:"conversationId"`
	SelectedChallenge *entity.SuggestedChallenge `json:"selectedChallenge"`
}

// ConversationResponse is the client view of a discovery conversation.
type ConversationResponse struct {
	ID                  uuid.UUID                   `json:"id"`
	SessionID           *uuid.UUID                  `json:"sessionId"`
	Messages            []entity.AIMessage          `json:"messages"`
	SuggestedChallenges []entity.SuggestedChallenge `json:"suggestedChallenges"`
	SelectedChallenge   *entity.SuggestedChallenge  `json:"selectedChallenge"`
	ModelUsed           string                      `json:"modelUsed"`
	CreatedAt           time.Time                   `json:"createdAt"`
	UpdatedAt           time.Time                   `json:"updatedAt"`
}

// SendMessage appends a user message and returns the assistant's reply.
func (h *DiscoveryHandler) SendMessage(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req SendMessageRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	sessionID, err := parseID(req.SessionID, sessionIDRequired)
	if err != nil {
		return response.HandleAppError(c, err)
	}
	conversationID, err := parseOptionalID(req.ConversationID, "Invalid conversation ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	out, err := h.discoveryUC.SendMessage(c.Request().Context(), &usecase.SendMessageInput{
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Message:        req.Message,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"conversationId":      out.ConversationID,
		"message":             out.Message,
		"suggestedChallenges": out.SuggestedChallenges,
	})
}

// SelectSuggestion copies a suggestion into the draft and completes the chat step.
func (h *DiscoveryHandler) SelectSuggestion(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req SelectSuggestionRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}
	if req.ConversationID == "" || req.SelectedChallenge == nil {
		return response.HandleAppError(c, domainerrors.NewValidationError("Conversation ID and selected challenge are required"))
	}

	sessionID, err := parseID(req.SessionID, sessionIDRequired)
	if err != nil {
		return response.HandleAppError(c, err)
	}
	conversationID, err := parseID(req.ConversationID, "Invalid conversation ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	session, err := h.discoveryUC.SelectSuggestion(c.Request().Context(), &usecase.SelectSuggestionInput{
		UserID:         userID,
		SessionID:      sessionID,
		ConversationID: conversationID,
		Suggestion:     *req.SelectedChallenge,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"success": true,
		"session": newSessionResponse(session),
	})
}

// GetConversation returns one of the caller's conversations.
func (h *DiscoveryHandler) GetConversation(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	conversationID, err := parseID(c.Param("id"), "Invalid conversation ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	conversation, err := h.discoveryUC.GetConversation(c.Request().Context(), conversationID, userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"conversation": &ConversationResponse{
			ID:                  conversation.ID,
			SessionID:           conversation.OnboardingSessionID,
			Messages:            conversation.Messages,
			SuggestedChallenges: conversation.SuggestedChallenges,
			SelectedChallenge:   conversation.SelectedChallenge,
			ModelUsed:           conversation.ModelUsed,
			CreatedAt:           conversation.CreatedAt,
			UpdatedAt:           conversation.UpdatedAt,
		},
	})
}
