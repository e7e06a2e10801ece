package handler

import (
	"net/http"

	"showup/internal/delivery/api/response"
	"showup/internal/usecase"

	"github.com/labstack/echo/v4"
)

// WaitlistHandler records pre-launch signups.
type WaitlistHandler struct {
	waitlistUC usecase.WaitlistUsecase
}

// NewWaitlistHandler is the constructor for WaitlistHandler.
func NewWaitlistHandler(waitlistUC usecase.WaitlistUsecase) *WaitlistHandler {
	return &WaitlistHandler{waitlistUC: waitlistUC}
}

// JoinWaitlistRequest is the body of POST /api/waitlist.
type JoinWaitlistRequest struct {
	Email string `json:"email" validate:"required"`
	Name  string `json:"name"`
}

// Join stores a waitlist signup. Repeating it with the same email also succeeds.
func (h *WaitlistHandler) Join(c echo.Context) error {
	var req JoinWaitlistRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	err := h.waitlistUC.Join(c.Request().Context(), &usecase.JoinWaitlistInput{
		Email:     req.Email,
		Name:      req.Name,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]any{
		"success": true,
		"message": "You're on the list",
	})
}
