package handler

import (
	"log/slog"
	"net/http"
	"time"

	"showup/internal/delivery/api/response"
	"showup/internal/domain/entity"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// ChallengeHandlerParams holds dependencies for ChallengeHandler, injected by Fx.
type ChallengeHandlerParams struct {
	fx.In

	ChallengeUC usecase.ChallengeUsecase
	Logger      *slog.Logger
}

// ChallengeHandler serves the caller's challenges.
type ChallengeHandler struct {
	challengeUC usecase.ChallengeUsecase
	logger      *slog.Logger
}

// NewChallengeHandler is the constructor for ChallengeHandler.
func NewChallengeHandler(params ChallengeHandlerParams) *ChallengeHandler {
	return &ChallengeHandler{
		challengeUC: params.ChallengeUC,
		logger:      params.Logger,
	}
}

// ChallengeResponse is the client view of a challenge.
type ChallengeResponse struct {
	ID                   uuid.UUID                   `json:"id"`
	Code                 string                      `json:"challengeCode"`
	Title                string                      `json:"title"`
	Description          string                      `json:"description"`
	Type                 entity.ChallengeType        `json:"type"`
	DurationDays         int                         `json:"durationDays"`
	Amount               float64                     `json:"amount"`
	Guarantors           []string                    `json:"guarantors"`
	ResolutionMethod     string                      `json:"resolutionMethod,omitempty"`
	Frequency            entity.FrequencyType        `json:"frequency"`
	FrequencyDetails     entity.FrequencyDetails     `json:"frequencyDetails"`
	NotificationSettings entity.NotificationSettings `json:"notificationSettings"`
	DepositRecipient     entity.DepositRecipient     `json:"depositRecipient"`
	LinkedFriendEmail    string                      `json:"linkedFriendEmail,omitempty"`
	AISuggested          bool                        `json:"aiSuggested"`
	Status               entity.ChallengeStatus      `json:"status"`
	PaymentSessionID     string                      `json:"paymentSessionId,omitempty"`
	OnChainID            string                      `json:"onChainId,omitempty"`
	TxHash               string                      `json:"txHash,omitempty"`
	CreatedAt            time.Time                   `json:"createdAt"`
}

func newChallengeResponse(ch *entity.Challenge) *ChallengeResponse {
	guarantors := ch.Guarantors
	if guarantors == nil {
		guarantors = []string{}
	}

	return &ChallengeResponse{
		ID:                   ch.ID,
		Code:                 ch.Code,
		Title:                ch.Title,
		Description:          ch.Description,
		Type:                 ch.Type,
		DurationDays:         ch.DurationDays,
		Amount:               ch.Amount,
		Guarantors:           guarantors,
		ResolutionMethod:     ch.ResolutionMethod,
		Frequency:            ch.Frequency,
		FrequencyDetails:     ch.FrequencyDetails,
		NotificationSettings: ch.NotificationSettings,
		DepositRecipient:     ch.DepositRecipient,
		LinkedFriendEmail:    ch.LinkedFriendEmail,
		AISuggested:          ch.AISuggested,
		Status:               ch.Status,
		PaymentSessionID:     ch.PaymentSessionID,
		OnChainID:            ch.OnChainID,
		TxHash:               ch.TxHash,
		CreatedAt:            ch.CreatedAt,
	}
}

// List returns the caller's challenges, newest first.
func (h *ChallengeHandler) List(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	challenges, err := h.challengeUC.ListMine(c.Request().Context(), userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	out := make([]*ChallengeResponse, 0, len(challenges))
	for _, ch := range challenges {
		out = append(out, newChallengeResponse(ch))
	}

	return response.Success(c, http.StatusOK, out)
}

// Get returns one of the caller's challenges.
func (h *ChallengeHandler) Get(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	challengeID, err := parseID(c.Param("id"), "Invalid challenge ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	challenge, err := h.challengeUC.Get(c.Request().Context(), challengeID, userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, newChallengeResponse(challenge))
}

// InviteQR renders the guarantor invite link as a PNG.
func (h *ChallengeHandler) InviteQR(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	challengeID, err := parseID(c.Param("id"), "Invalid challenge ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	invite, err := h.challengeUC.InviteQR(c.Request().Context(), challengeID, userID)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	c.Response().Header().Set("X-Invite-URL", invite.URL)

	return c.Blob(http.StatusOK, "image/png", invite.PNG)
}
