package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"showup/internal/delivery/api/middleware"
	"showup/internal/delivery/api/response"
	"showup/internal/domain/constants"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// HeaderStripeSignature carries the webhook signature.
const HeaderStripeSignature = "Stripe-Signature"

// PaymentHandlerParams holds dependencies for PaymentHandler, injected by Fx.
type PaymentHandlerParams struct {
	fx.In

	SettlementUC usecase.SettlementUsecase
	Logger       *slog.Logger
}

// PaymentHandler serves checkout, webhook and test-payment endpoints.
type PaymentHandler struct {
	settlementUC usecase.SettlementUsecase
	logger       *slog.Logger
}

// NewPaymentHandler is the constructor for PaymentHandler.
func NewPaymentHandler(params PaymentHandlerParams) *PaymentHandler {
	return &PaymentHandler{
		settlementUC: params.SettlementUC,
		logger:       params.Logger,
	}
}

// CheckoutRequest is the body of POST /api/payments/checkout.
type CheckoutRequest struct {
	Amount        float64           `json:"amount"`
	ChallengeID   *string           `json:"challengeId"`
	CustomerEmail string            `json:"customerEmail" validate:"omitempty,email"`
	Metadata      map[string]string `json:"metadata"`
}

// TestPaymentRequest is the body of POST /api/payments/test-payment.
type TestPaymentRequest struct {
	Amount            float64  `json:"amount"`
	ChallengeID       string   `json:"challengeId"`
	ChallengeTitle    string   `json:"challengeTitle"`
	ChallengeDuration int      `json:"challengeDuration"`
	Guarantors        []string `json:"guarantors"`
	MetadataURI       string   `json:"metadataUri"`
	CustomerEmail     string   `json:"customerEmail"`
}

// Checkout opens a hosted payment session for a deposit.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req CheckoutRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	challengeID, err := parseOptionalID(req.ChallengeID, "Invalid challenge ID")
	if err != nil {
		return response.HandleAppError(c, err)
	}

	customerEmail := req.CustomerEmail
	if customerEmail == "" {
		customerEmail, _ = middleware.GetEmail(c)
	}

	session, err := h.settlementUC.CreateCheckout(c.Request().Context(), &usecase.CheckoutInput{
		UserID:        userID,
		Amount:        req.Amount,
		ChallengeID:   challengeID,
		CustomerEmail: customerEmail,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]string{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// SessionDetails summarizes a payment session for the deposit success page.
func (h *PaymentHandler) SessionDetails(c echo.Context) error {
	summary, err := h.settlementUC.GetSessionDetails(c.Request().Context(), c.QueryParam("session_id"))
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, summary)
}

// Webhook receives provider notifications. The raw body is needed for signature checks.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return response.HandleAppError(c, domainerrors.NewValidationError("Invalid webhook payload"))
	}

	err = h.settlementUC.HandleWebhook(c.Request().Context(), &usecase.WebhookInput{
		Payload:   payload,
		Signature: c.Request().Header.Get(HeaderStripeSignature),
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	return response.Success(c, http.StatusOK, map[string]bool{"received": true})
}

// SimulatePayment settles a synthetic checkout when test payments are enabled.
func (h *PaymentHandler) SimulatePayment(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return response.HandleAppError(c, err)
	}

	var req TestPaymentRequest
	if err := bind(c, &req); err != nil {
		return response.HandleAppError(c, err)
	}

	metadata, err := req.metadata()
	if err != nil {
		return response.HandleAppError(c, err)
	}

	out, err := h.settlementUC.SimulatePayment(c.Request().Context(), &usecase.SimulatePaymentInput{
		UserID:        userID,
		Amount:        req.Amount,
		ChallengeID:   req.ChallengeID,
		CustomerEmail: req.CustomerEmail,
		Metadata:      metadata,
	})
	if err != nil {
		return response.HandleAppError(c, err)
	}

	data := map[string]any{
		"success":   true,
		"sessionId": out.SessionID,
		"url":       out.URL,
		"testMode":  true,
	}
	if out.Settlement != nil {
		data["settlementStatus"] = out.Settlement.Status
		data["onChainId"] = out.Settlement.OnChainID
		data["txHash"] = out.Settlement.TxHash
	}

	return response.Success(c, http.StatusOK, data)
}

// metadata flattens the request into the string metadata the settlement path reads.
func (r *TestPaymentRequest) metadata() (map[string]string, error) {
	metadata := map[string]string{}
	if r.ChallengeTitle != "" {
		metadata[constants.MetadataKeyChallengeTitle] = r.ChallengeTitle
	}
	if r.ChallengeDuration > 0 {
		metadata[constants.MetadataKeyDuration] = strconv.Itoa(r.ChallengeDuration)
	}
	if r.MetadataURI != "" {
		metadata[constants.MetadataKeyMetadataURI] = r.MetadataURI
	}
	if len(r.Guarantors) > 0 {
		raw, err := json.Marshal(r.Guarantors)
		if err != nil {
			return nil, domainerrors.NewValidationError("Invalid guarantors")
		}
		metadata[constants.MetadataKeyGuarantors] = string(raw)
	}

	return metadata, nil
}

// TestModeStatus reports whether payment simulation is available.
func (h *PaymentHandler) TestModeStatus(c echo.Context) error {
	return response.Success(c, http.StatusOK, h.settlementUC.TestModeStatus())
}
