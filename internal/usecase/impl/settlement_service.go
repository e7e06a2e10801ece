package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"showup/config"
	deliverycontext "showup/internal/delivery/context"
	"showup/internal/domain/constants"
	"showup/internal/domain/entity"
	domainerrors "showup/internal/domain/errors"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	// defaultSettlementDurationDays applies when the payment metadata carries no duration.
	defaultSettlementDurationDays = 30

	webhookCheckoutCompleted      = "checkout.session.completed"
	webhookPaymentIntentSucceeded = "payment_intent.succeeded"
	paymentStatusPaid             = "paid"

	testCustomerEmail = "test@example.com"
)

type settlementService struct {
	txManager repository.TransactionManager
	provider  service.PaymentProvider
	escrow    service.EscrowClient
	publisher service.EventPublisher
	devices   usecase.DeviceUsecase
	cfg       *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// SettlementServiceParams holds dependencies for SettlementService, injected by Fx.
type SettlementServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Provider  service.PaymentProvider
	Escrow    service.EscrowClient
	Publisher service.EventPublisher
	Devices   usecase.DeviceUsecase
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSettlementService is the constructor for settlementService.
func NewSettlementService(params SettlementServiceParams) usecase.SettlementUsecase {
	return &settlementService{
		txManager: params.TxManager,
		provider:  params.Provider,
		escrow:    params.Escrow,
		publisher: params.Publisher,
		devices:   params.Devices,
		cfg:       params.Config,
		logger:    params.Logger,
		now:       time.Now,
	}
}

func (srv *settlementService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// reservedMetadataKeys are written by the server only; Settle trusts them.
var reservedMetadataKeys = []string{
	constants.MetadataKeyType,
	constants.MetadataKeyUserID,
	constants.MetadataKeyChallengeID,
}

// copyClientMetadata copies caller metadata without the reserved keys.
func copyClientMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+len(reservedMetadataKeys))
	for k, v := range in {
		if !slices.Contains(reservedMetadataKeys, k) {
			out[k] = v
		}
	}

	return out
}

// CreateCheckout opens a hosted payment session for a deposit. A challenge
// deposit must belong to the caller and cover the challenge amount.
func (srv *settlementService) CreateCheckout(ctx context.Context, input *usecase.CheckoutInput) (*service.CheckoutSession, error) {
	if input.Amount < entity.MinimumDepositAmount || math.IsNaN(input.Amount) || math.IsInf(input.Amount, 0) {
		return nil, domainerrors.NewValidationError("Valid amount is required")
	}

	metadata := copyClientMetadata(input.Metadata)
	metadata[constants.MetadataKeyType] = constants.PaymentTypeChallengeDeposit
	metadata[constants.MetadataKeyUserID] = input.UserID.String()

	description := "Challenge deposit"
	var challenge *entity.Challenge
	if input.ChallengeID != nil {
		err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			found, err := repoFactory.NewChallengeRepository().FindByID(ctx, *input.ChallengeID)
			if err != nil {
				return err
			}
			if found.UserID != input.UserID {
				return repository.ErrChallengeNotFound
			}
			challenge = found

			return nil
		})
		if errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, domainerrors.ErrChallengeNotFound
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to find challenge")
		}
		if toCents(input.Amount) < toCents(challenge.Amount) {
			return nil, domainerrors.NewValidationError(fmt.Sprintf("Amount must cover the $%.2f challenge deposit", challenge.Amount))
		}

		metadata[constants.MetadataKeyChallengeID] = challenge.ID.String()
		fillChallengeMetadata(metadata, challenge)
		description = "Deposit for challenge " + challenge.Title
	}

	baseURL := strings.TrimRight(srv.cfg.App.BaseURL, "/")
	session, err := srv.provider.CreateCheckoutSession(ctx, &service.CheckoutRequest{
		AmountCents:   toCents(input.Amount),
		Currency:      srv.cfg.Payment.Currency,
		ProductName:   "Challenge Deposit",
		Description:   description,
		CustomerEmail: input.CustomerEmail,
		Metadata:      metadata,
		SuccessURL:    baseURL + "/deposit/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     baseURL + "/deposit/cancelled",
	})
	if err != nil {
		srv.log(ctx).Error("Failed to create checkout session", slog.Any("user_id", input.UserID), slog.Any("error", err))

		return nil, domainerrors.NewExternalServiceError(domainerrors.ErrPaymentProviderFailed, err)
	}

	if challenge != nil {
		err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
			return repoFactory.NewChallengeRepository().MarkPaymentPending(ctx, challenge.ID, session.ID)
		})
		if err != nil && !errors.Is(err, repository.ErrChallengeNotFound) {
			return nil, errors.Wrap(err, "failed to mark challenge payment pending")
		}
	}

	srv.log(ctx).Info("Checkout session created",
		slog.String("provider_session_id", session.ID),
		slog.Float64("amount", input.Amount),
	)

	return session, nil
}

func toCents(amountUSD float64) int64 {
	return int64(math.Round(amountUSD * 100))
}

// fillChallengeMetadata copies what the escrow mirror needs into the payment
// metadata without overwriting caller supplied values.
func fillChallengeMetadata(metadata map[string]string, challenge *entity.Challenge) {
	setDefault := func(key, value string) {
		if _, ok := metadata[key]; !ok && value != "" {
			metadata[key] = value
		}
	}

	setDefault(constants.MetadataKeyChallengeTitle, challenge.Title)
	setDefault(constants.MetadataKeyDuration, strconv.Itoa(challenge.DurationDays))
	setDefault(constants.MetadataKeyCustomerEmail, challenge.UserEmail)
	if guarantors, err := json.Marshal(challenge.Guarantors); err == nil && len(challenge.Guarantors) > 0 {
		setDefault(constants.MetadataKeyGuarantors, string(guarantors))
	}
}

func (srv *settlementService) GetSessionDetails(ctx context.Context, sessionID string) (*usecase.PaymentSessionSummary, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domainerrors.NewValidationError("Session ID is required")
	}

	session, err := srv.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, domainerrors.NewExternalServiceError(domainerrors.ErrPaymentProviderFailed, err)
	}

	title := session.Metadata[constants.MetadataKeyChallengeTitle]
	if title == "" {
		title = "Challenge"
	}

	return &usecase.PaymentSessionSummary{
		Amount:            float64(session.AmountTotal) / 100,
		ChallengeTitle:    title,
		ChallengeDuration: parseDuration(session.Metadata[constants.MetadataKeyDuration]),
		GuarantorCount:    len(parseGuarantors(session.Metadata[constants.MetadataKeyGuarantors])),
		CustomerEmail:     session.CustomerEmail,
		PaymentStatus:     session.PaymentStatus,
	}, nil
}

func parseDuration(raw string) int {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || days < 1 {
		return defaultSettlementDurationDays
	}

	return days
}

// parseGuarantors decodes the JSON list stored in metadata; garbage yields none.
func parseGuarantors(raw string) []string {
	if raw == "" {
		return nil
	}

	var guarantors []string
	if err := json.Unmarshal([]byte(raw), &guarantors); err != nil {
		return nil
	}

	return guarantors
}

// HandleWebhook authenticates a provider notification and settles paid checkouts.
func (srv *settlementService) HandleWebhook(ctx context.Context, input *usecase.WebhookInput) error {
	secret := srv.cfg.Payment.WebhookSecret
	switch {
	case secret != "" && input.Signature == "":
		return domainerrors.NewValidationError("Missing stripe-signature header")
	case secret == "" && !srv.cfg.Payment.InsecureWebhooks:
		return domainerrors.NewValidationError("Webhook secret not configured")
	case secret == "":
		srv.log(ctx).Warn("Processing webhook without signature verification")
	}

	event, err := srv.provider.ParseWebhook(input.Payload, input.Signature, secret)
	if err != nil {
		srv.log(ctx).Warn("Webhook verification failed", slog.Any("error", err))

		return domainerrors.NewValidationError("Webhook signature verification failed")
	}

	logger := srv.log(ctx).With(slog.String(constants.AttributeEventType, event.Type), slog.String("event_id", event.ID))

	switch event.Type {
	case webhookCheckoutCompleted:
		if event.Session == nil || event.Session.PaymentStatus != paymentStatusPaid {
			logger.Info("Checkout completed without payment, ignoring")

			return nil
		}
		if _, err := srv.Settle(ctx, toPaymentEvent(event.Session, false)); err != nil {
			logger.Error("Settlement failed for completed checkout",
				slog.String("provider_session_id", event.Session.ID),
				slog.Any("error", err),
			)
		}
	case webhookPaymentIntentSucceeded:
		logger.Info("Payment intent succeeded")
	default:
		logger.Debug("Ignoring webhook event")
	}

	return nil
}

func toPaymentEvent(session *service.PaymentSessionDetails, testMode bool) *entity.PaymentEvent {
	return &entity.PaymentEvent{
		ProviderSessionID: session.ID,
		PaymentIntentID:   session.PaymentIntentID,
		AmountTotal:       session.AmountTotal,
		CustomerEmail:     session.CustomerEmail,
		PaymentStatus:     session.PaymentStatus,
		Metadata:          session.Metadata,
		TestMode:          testMode,
	}
}

// SimulatePayment settles a synthetic paid checkout outside production.
func (srv *settlementService) SimulatePayment(ctx context.Context, input *usecase.SimulatePaymentInput) (*usecase.SimulatePaymentOutput, error) {
	if !srv.cfg.TestPaymentsAllowed() {
		return nil, domainerrors.ErrTestPaymentsDisabled
	}
	if input.Amount < entity.MinimumDepositAmount {
		return nil, domainerrors.NewValidationError("Valid amount is required")
	}
	if strings.TrimSpace(input.ChallengeID) == "" {
		return nil, domainerrors.NewValidationError("Challenge ID is required")
	}

	email := input.CustomerEmail
	if email == "" {
		email = testCustomerEmail
	}

	metadata := copyClientMetadata(input.Metadata)
	metadata[constants.MetadataKeyType] = constants.PaymentTypeChallengeDeposit
	metadata[constants.MetadataKeyChallengeID] = input.ChallengeID
	metadata[constants.MetadataKeyUserID] = input.UserID.String()
	if _, ok := metadata[constants.MetadataKeyCustomerEmail]; !ok {
		metadata[constants.MetadataKeyCustomerEmail] = email
	}

	millis := strconv.FormatInt(srv.now().UnixMilli(), 10)
	sessionID := "test_session_" + millis

	settlement, err := srv.Settle(ctx, &entity.PaymentEvent{
		ProviderSessionID: sessionID,
		PaymentIntentID:   "test_pi_" + millis,
		AmountTotal:       toCents(input.Amount),
		CustomerEmail:     email,
		PaymentStatus:     paymentStatusPaid,
		Metadata:          metadata,
		TestMode:          true,
	})
	if err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(srv.cfg.App.BaseURL, "/")

	return &usecase.SimulatePaymentOutput{
		SessionID:  sessionID,
		URL:        baseURL + "/deposit/success?session_id=" + sessionID + "&test=true",
		Settlement: settlement,
	}, nil
}

func (srv *settlementService) TestModeStatus() *usecase.TestModeStatus {
	allowed := srv.cfg.TestPaymentsAllowed()
	message := "Test payments are enabled"
	if !allowed {
		message = "Test payments are disabled in production"
	}

	return &usecase.TestModeStatus{
		TestModeAllowed: allowed,
		Environment:     srv.cfg.Env.Env,
		Message:         message,
	}
}

// Settle processes a paid event exactly once per provider session. A repeated
// delivery returns the stored settlement without touching the escrow. A
// deposit that does not match its challenge is recorded as failed and leaves
// the challenge alone.
func (srv *settlementService) Settle(ctx context.Context, event *entity.PaymentEvent) (*entity.Settlement, error) {
	logger := srv.log(ctx).With(slog.String("provider_session_id", event.ProviderSessionID))

	if event.Metadata[constants.MetadataKeyType] != constants.PaymentTypeChallengeDeposit {
		logger.Info("Ignoring payment that is not a challenge deposit")

		return nil, nil
	}

	var challengeID *uuid.UUID
	if id, err := uuid.Parse(event.Metadata[constants.MetadataKeyChallengeID]); err == nil {
		challengeID = &id
	}

	settlement := entity.NewSettlement(event, challengeID, srv.now())

	var duplicate bool
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if challengeID != nil {
			reason, err := verifyDeposit(ctx, repoFactory.NewChallengeRepository(), event, *challengeID)
			if err != nil {
				return err
			}
			if reason != "" {
				settlement.Status = entity.SettlementStatusFailed
				settlement.LastError = reason
			}
		}

		settlements := repoFactory.NewSettlementRepository()

		err := settlements.Claim(ctx, settlement)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSettlementExists) {
			return errors.Wrap(err, "failed to claim settlement")
		}

		duplicate = true
		settlement, err = settlements.FindByProviderSessionID(ctx, event.ProviderSessionID)

		return errors.Wrap(err, "failed to load claimed settlement")
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		logger.Info("Duplicate payment notification", slog.String("status", string(settlement.Status)))

		return settlement, nil
	}
	if settlement.Status == entity.SettlementStatusFailed {
		logger.Error("Payment does not match its challenge, manual follow-up required",
			slog.Any(constants.AttributeSettlementID, settlement.ID),
			slog.Any("challenge_id", challengeID),
			slog.String("reason", settlement.LastError),
		)

		return settlement, nil
	}

	logger.Info("Settlement claimed", slog.Any(constants.AttributeSettlementID, settlement.ID))

	if _, err := srv.mirror(ctx, settlement); err != nil {
		if errors.Is(err, repository.ErrSettlementLeaseLost) {
			logger.Warn("Settlement taken over by a reconciliation attempt")

			return settlement, nil
		}

		return settlement, err
	}

	if settlement.Status == entity.SettlementStatusNeedsReconciliation {
		srv.enqueue(ctx, settlement, settlement.LastError)
	}

	return settlement, nil
}

// verifyDeposit returns why a paid event cannot settle challengeID, or "" when it can.
func verifyDeposit(ctx context.Context, challenges repository.ChallengeRepository, event *entity.PaymentEvent, challengeID uuid.UUID) (string, error) {
	challenge, err := challenges.FindByID(ctx, challengeID)
	if errors.Is(err, repository.ErrChallengeNotFound) {
		return "challenge not found", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to load challenge")
	}

	payer, err := uuid.Parse(event.Metadata[constants.MetadataKeyUserID])
	if err != nil || payer != challenge.UserID {
		return "payer does not own the challenge", nil
	}
	if event.AmountTotal < toCents(challenge.Amount) {
		return fmt.Sprintf("paid $%.2f, challenge deposit is $%.2f", event.AmountUSD(), challenge.Amount), nil
	}

	return "", nil
}

// mirror runs one escrow attempt for a leased settlement and persists the
// outcome. It reports false when the settlement was left queued for
// reconciliation. A signed transaction is stored before it is broadcast and
// re-sent as is on later attempts.
func (srv *settlementService) mirror(ctx context.Context, settlement *entity.Settlement) (bool, error) {
	logger := srv.log(ctx).With(slog.Any(constants.AttributeSettlementID, settlement.ID))

	if !srv.escrow.Enabled() {
		settlement.Status = entity.SettlementStatusSettled
		settlement.LastError = ""
		if err := srv.persist(ctx, settlement, entity.ChallengeStatusSettled); err != nil {
			return false, err
		}
		logger.Info("Escrow disabled, challenge settled without on-chain mirror")

		return true, nil
	}

	if !settlement.HasTransaction() {
		deployed, err := srv.escrow.IsDeployed(ctx)
		switch {
		case err != nil:
			return false, srv.queue(ctx, settlement, "escrow contract check failed: "+err.Error())
		case !deployed:
			return false, srv.queue(ctx, settlement, "escrow contract not deployed")
		}

		tx, err := srv.escrow.PrepareChallenge(ctx, srv.escrowRequest(settlement))
		if err != nil {
			return false, srv.queue(ctx, settlement, "escrow call failed: "+err.Error())
		}

		settlement.OnChainID = tx.OnChainID
		settlement.TxHash = tx.TxHash
		settlement.RawTx = tx.RawTx
		if err := srv.persist(ctx, settlement, ""); err != nil {
			return false, err
		}
	}

	receipt, err := srv.escrow.SendChallenge(ctx, &service.EscrowTransaction{
		OnChainID: settlement.OnChainID,
		TxHash:    settlement.TxHash,
		RawTx:     settlement.RawTx,
	})
	if err != nil {
		return false, srv.queue(ctx, settlement, "escrow transaction failed: "+err.Error())
	}

	switch receipt.Status {
	case service.EscrowTxConfirmed:
	case service.EscrowTxPending:
		return false, srv.queue(ctx, settlement, "escrow transaction "+settlement.TxHash+" not mined yet")
	default:
		reason := "escrow transaction " + settlement.TxHash + " " + string(receipt.Status)
		settlement.ForgetTransaction()

		return false, srv.queue(ctx, settlement, reason)
	}

	settlement.Status = entity.SettlementStatusSettled
	settlement.BlockNumber = receipt.BlockNumber
	settlement.LastError = ""
	if err := srv.persist(ctx, settlement, entity.ChallengeStatusSettled); err != nil {
		return false, err
	}

	logger.Info("Challenge mirrored on chain",
		slog.String("on_chain_id", settlement.OnChainID),
		slog.String("tx_hash", settlement.TxHash),
		slog.Uint64("block", settlement.BlockNumber),
	)
	srv.notifySettled(ctx, settlement)

	return true, nil
}

// queue leaves the settlement waiting for reconciliation; the challenge stays payment_pending.
func (srv *settlementService) queue(ctx context.Context, settlement *entity.Settlement, reason string) error {
	srv.log(ctx).Warn("Escrow mirror deferred",
		slog.Any(constants.AttributeSettlementID, settlement.ID),
		slog.String("reason", reason),
	)

	settlement.Status = entity.SettlementStatusNeedsReconciliation
	settlement.LastError = reason

	return srv.persist(ctx, settlement, entity.ChallengeStatusPaymentPending)
}

// persist writes the settlement under its current lease and moves the
// challenge to challengeStatus. An empty challengeStatus leaves the challenge alone.
func (srv *settlementService) persist(ctx context.Context, settlement *entity.Settlement, challengeStatus entity.ChallengeStatus) error {
	settlement.UpdatedAt = srv.now()

	return srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := repoFactory.NewSettlementRepository().Update(ctx, settlement); err != nil {
			return errors.Wrap(err, "failed to update settlement")
		}
		if settlement.ChallengeID == nil || challengeStatus == "" {
			return nil
		}

		challenges := repoFactory.NewChallengeRepository()
		var err error
		if challengeStatus == entity.ChallengeStatusPaymentPending {
			err = challenges.MarkPaymentPending(ctx, *settlement.ChallengeID, settlement.ProviderSessionID)
		} else {
			err = challenges.UpdateStatus(ctx, *settlement.ChallengeID, challengeStatus, settlement.OnChainID, settlement.TxHash)
		}
		if errors.Is(err, repository.ErrChallengeNotFound) {
			srv.log(ctx).Warn("Settlement references an unknown challenge", slog.Any("challenge_id", settlement.ChallengeID))

			return nil
		}

		return errors.Wrap(err, "failed to update challenge status")
	})
}

func (srv *settlementService) escrowRequest(settlement *entity.Settlement) *service.EscrowChallengeRequest {
	metadata := settlement.Metadata
	challengeID := metadata[constants.MetadataKeyChallengeID]
	if challengeID == "" {
		challengeID = settlement.ProviderSessionID
	}

	metadataURI := metadata[constants.MetadataKeyMetadataURI]
	if metadataURI == "" && srv.cfg.Escrow != nil && srv.cfg.Escrow.MetadataBaseURI != "" {
		metadataURI = strings.TrimRight(srv.cfg.Escrow.MetadataBaseURI, "/") + "/" + challengeID
	}

	payer := settlement.CustomerEmail
	if payer == "" {
		payer = metadata[constants.MetadataKeyCustomerEmail]
	}

	return &service.EscrowChallengeRequest{
		SettlementID:      settlement.ID.String(),
		ChallengeID:       challengeID,
		PayerEmail:        payer,
		AmountUSD:         settlement.Amount,
		DurationDays:      parseDuration(metadata[constants.MetadataKeyDuration]),
		GuarantorEmails:   parseGuarantors(metadata[constants.MetadataKeyGuarantors]),
		MetadataURI:       metadataURI,
		ProviderSessionID: settlement.ProviderSessionID,
		PaymentIntentID:   settlement.PaymentIntentID,
	}
}

func (srv *settlementService) enqueue(ctx context.Context, settlement *entity.Settlement, reason string) {
	err := srv.publisher.PublishReconciliationEvent(ctx, &service.ReconciliationEvent{
		RequestID:         deliverycontext.GetRequestIDFromContext(ctx),
		SettlementID:      settlement.ID.String(),
		ProviderSessionID: settlement.ProviderSessionID,
		Reason:            reason,
	})
	if err != nil {
		// The row stays queued; the periodic sweep republishes it.
		srv.log(ctx).Error("Failed to publish reconciliation event",
			slog.Any(constants.AttributeSettlementID, settlement.ID),
			slog.Any("error", err),
		)
	}
}

func (srv *settlementService) notifySettled(ctx context.Context, settlement *entity.Settlement) {
	if settlement.ChallengeID == nil {
		return
	}

	var challenge *entity.Challenge
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		challenge, err = repoFactory.NewChallengeRepository().FindByID(ctx, *settlement.ChallengeID)

		return err
	})
	if err != nil {
		srv.log(ctx).Warn("Skipping settlement notification", slog.Any("challenge_id", settlement.ChallengeID), slog.Any("error", err))

		return
	}

	body := fmt.Sprintf("Your $%.2f deposit for %q is locked in. Good luck!", settlement.Amount, challenge.Title)
	data := map[string]string{
		constants.MetadataKeyType:        "challenge_settled",
		constants.MetadataKeyChallengeID: challenge.ID.String(),
		"txHash":                         settlement.TxHash,
	}
	if err := srv.devices.NotifyUser(ctx, challenge.UserID, "Your challenge is live", body, data); err != nil {
		srv.log(ctx).Warn("Failed to notify challenge owner", slog.Any("user_id", challenge.UserID), slog.Any("error", err))
	}
}

func (srv *settlementService) staleBefore() time.Time {
	return srv.now().Add(-srv.cfg.Settlement.LeaseTimeout)
}

// Reconcile retries the escrow mirror for a queued settlement, or for one
// whose previous attempt stalled past its lease. It returns
// ErrEscrowUnavailable while the settlement should be retried. A settlement
// whose attempt is held by another worker is left to that worker.
func (srv *settlementService) Reconcile(ctx context.Context, settlementID uuid.UUID) (*entity.Settlement, error) {
	var settlement *entity.Settlement
	var acquired bool
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		settlements := repoFactory.NewSettlementRepository()

		var err error
		settlement, err = settlements.FindByID(ctx, settlementID)
		if err != nil {
			return err
		}
		if settlement.Status.IsTerminal() {
			return nil
		}

		acquired, err = settlements.Acquire(ctx, settlement, srv.staleBefore())

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load settlement")
	}

	logger := srv.log(ctx).With(slog.Any(constants.AttributeSettlementID, settlement.ID))
	if settlement.Status.IsTerminal() {
		logger.Info("Settlement already finished", slog.String("status", string(settlement.Status)))

		return settlement, nil
	}
	if !acquired {
		logger.Info("Settlement attempt already in progress", slog.Int("attempts", settlement.Attempts))

		return settlement, nil
	}

	settled, err := srv.mirror(ctx, settlement)
	if errors.Is(err, repository.ErrSettlementLeaseLost) {
		logger.Warn("Settlement lease lost to a newer attempt", slog.Int("attempts", settlement.Attempts))

		return settlement, nil
	}
	if err != nil {
		return settlement, err
	}
	if settled {
		return settlement, nil
	}

	maxAttempts := srv.cfg.Settlement.MaxAttempts
	if settlement.Attempts < maxAttempts {
		logger.Warn("Reconciliation attempt failed", slog.Int("attempts", settlement.Attempts), slog.Int("max_attempts", maxAttempts))

		return settlement, domainerrors.NewExternalServiceError(domainerrors.ErrEscrowUnavailable, errors.New(settlement.LastError))
	}

	settlement.Status = entity.SettlementStatusFailed
	if err := srv.persist(ctx, settlement, entity.ChallengeStatusFailed); err != nil {
		return settlement, err
	}
	logger.Error("Settlement failed after max attempts, manual follow-up required",
		slog.Int("attempts", settlement.Attempts),
		slog.String("last_error", settlement.LastError),
		slog.String("tx_hash", settlement.TxHash),
	)

	return settlement, nil
}

// RequeuePending republishes reconciliation events for queued settlements and
// for settlements whose attempt stalled past its lease.
func (srv *settlementService) RequeuePending(ctx context.Context, limit int) (int, error) {
	var pending []*entity.Settlement
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var err error
		pending, err = repoFactory.NewSettlementRepository().FindPending(ctx, srv.staleBefore(), limit)

		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to list pending settlements")
	}

	published := 0
	for _, settlement := range pending {
		err := srv.publisher.PublishReconciliationEvent(ctx, &service.ReconciliationEvent{
			RequestID:         deliverycontext.GetRequestIDFromContext(ctx),
			SettlementID:      settlement.ID.String(),
			ProviderSessionID: settlement.ProviderSessionID,
			Reason:            "requeue",
		})
		if err != nil {
			srv.log(ctx).Warn("Failed to requeue settlement", slog.Any(constants.AttributeSettlementID, settlement.ID), slog.Any("error", err))

			continue
		}
		published++
	}

	return published, nil
}

func (srv *settlementService) PlatformWalletInfo(ctx context.Context) (*service.WalletInfo, error) {
	if !srv.escrow.Enabled() {
		return nil, domainerrors.ErrEscrowUnavailable.WithDetails("Escrow is disabled")
	}

	info, err := srv.escrow.WalletInfo(ctx)
	if err != nil {
		return nil, domainerrors.NewExternalServiceError(domainerrors.ErrEscrowUnavailable, err)
	}

	return info, nil
}
