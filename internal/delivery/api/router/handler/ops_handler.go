package handler

import (
	"net/http"

	"showup/internal/delivery/api/response"
	"showup/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// OpsHandlerParams holds dependencies for OpsHandler, injected by Fx.
type OpsHandlerParams struct {
	fx.In

	OnboardingUC usecase.OnboardingUsecase
	SettlementUC usecase.SettlementUsecase
}

// OpsHandler serves operator endpoints, registered only when test routes are enabled.
type OpsHandler struct {
	onboardingUC usecase.OnboardingUsecase
	settlementUC usecase.SettlementUsecase
}

// NewOpsHandler creates a new OpsHandler instance
func NewOpsHandler(params OpsHandlerParams) *OpsHandler {
	return &OpsHandler{
		onboardingUC: params.OnboardingUC,
		settlementUC: params.SettlementUC,
	}
}

// OnboardingMetrics reports funnel statistics across all sessions.
func (h *OpsHandler) OnboardingMetrics(c echo.Context) error {
	metrics, err := h.onboardingUC.Metrics(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, metrics)
}

// Wallet reports the platform signer's balances.
func (h *OpsHandler) Wallet(c echo.Context) error {
	info, err := h.settlementUC.PlatformWalletInfo(c.Request().Context())
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, info)
}
