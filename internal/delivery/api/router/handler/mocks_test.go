package handler

import (
	"context"

	"showup/internal/domain/entity"
	"showup/internal/domain/service"
	"showup/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockAuthUsecase struct{ mock.Mock }

func (m *mockAuthUsecase) Register(ctx context.Context, input *usecase.RegisterInput) (*usecase.AuthOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.AuthOutput)

	return out, args.Error(1)
}

func (m *mockAuthUsecase) Login(ctx context.Context, input *usecase.LoginInput) (*usecase.AuthOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.AuthOutput)

	return out, args.Error(1)
}

func (m *mockAuthUsecase) Refresh(ctx context.Context, refreshToken string) (*service.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	pair, _ := args.Get(0).(*service.TokenPair)

	return pair, args.Error(1)
}

func (m *mockAuthUsecase) Logout(ctx context.Context, refreshToken string) error {
	return m.Called(ctx, refreshToken).Error(0)
}

func (m *mockAuthUsecase) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	args := m.Called(ctx, userID)
	user, _ := args.Get(0).(*entity.User)

	return user, args.Error(1)
}

func (m *mockAuthUsecase) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	args := m.Called(ctx)

	return args.Get(0).(int64), args.Error(1)
}

type mockOnboardingUsecase struct{ mock.Mock }

func (m *mockOnboardingUsecase) GetOrCreate(ctx context.Context, userID uuid.UUID) (*usecase.SessionView, error) {
	args := m.Called(ctx, userID)
	view, _ := args.Get(0).(*usecase.SessionView)

	return view, args.Error(1)
}

func (m *mockOnboardingUsecase) UpdateSession(ctx context.Context, input *usecase.SessionUpdateInput) (*entity.OnboardingSession, error) {
	args := m.Called(ctx, input)
	session, _ := args.Get(0).(*entity.OnboardingSession)

	return session, args.Error(1)
}

func (m *mockOnboardingUsecase) AcceptTerms(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID, version string) error {
	return m.Called(ctx, userID, sessionID, version).Error(0)
}

func (m *mockOnboardingUsecase) Finalize(ctx context.Context, sessionID, userID uuid.UUID, draft *entity.ChallengeDraft) (*usecase.FinalizeOutput, error) {
	args := m.Called(ctx, sessionID, userID, draft)
	out, _ := args.Get(0).(*usecase.FinalizeOutput)

	return out, args.Error(1)
}

func (m *mockOnboardingUsecase) Abandon(ctx context.Context, sessionID, userID uuid.UUID) error {
	return m.Called(ctx, sessionID, userID).Error(0)
}

func (m *mockOnboardingUsecase) Metrics(ctx context.Context) (*entity.OnboardingMetrics, error) {
	args := m.Called(ctx)
	metrics, _ := args.Get(0).(*entity.OnboardingMetrics)

	return metrics, args.Error(1)
}

type mockDiscoveryUsecase struct{ mock.Mock }

func (m *mockDiscoveryUsecase) SendMessage(ctx context.Context, input *usecase.SendMessageInput) (*usecase.SendMessageOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.SendMessageOutput)

	return out, args.Error(1)
}

func (m *mockDiscoveryUsecase) SelectSuggestion(ctx context.Context, input *usecase.SelectSuggestionInput) (*entity.OnboardingSession, error) {
	args := m.Called(ctx, input)
	session, _ := args.Get(0).(*entity.OnboardingSession)

	return session, args.Error(1)
}

func (m *mockDiscoveryUsecase) GetConversation(ctx context.Context, conversationID, userID uuid.UUID) (*entity.AIConversation, error) {
	args := m.Called(ctx, conversationID, userID)
	conversation, _ := args.Get(0).(*entity.AIConversation)

	return conversation, args.Error(1)
}

type mockSettlementUsecase struct{ mock.Mock }

func (m *mockSettlementUsecase) CreateCheckout(ctx context.Context, input *usecase.CheckoutInput) (*service.CheckoutSession, error) {
	args := m.Called(ctx, input)
	session, _ := args.Get(0).(*service.CheckoutSession)

	return session, args.Error(1)
}

func (m *mockSettlementUsecase) GetSessionDetails(ctx context.Context, sessionID string) (*usecase.PaymentSessionSummary, error) {
	args := m.Called(ctx, sessionID)
	summary, _ := args.Get(0).(*usecase.PaymentSessionSummary)

	return summary, args.Error(1)
}

func (m *mockSettlementUsecase) HandleWebhook(ctx context.Context, input *usecase.WebhookInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *mockSettlementUsecase) SimulatePayment(ctx context.Context, input *usecase.SimulatePaymentInput) (*usecase.SimulatePaymentOutput, error) {
	args := m.Called(ctx, input)
	out, _ := args.Get(0).(*usecase.SimulatePaymentOutput)

	return out, args.Error(1)
}

func (m *mockSettlementUsecase) TestModeStatus() *usecase.TestModeStatus {
	status, _ := m.Called().Get(0).(*usecase.TestModeStatus)

	return status
}

func (m *mockSettlementUsecase) Settle(ctx context.Context, event *entity.PaymentEvent) (*entity.Settlement, error) {
	args := m.Called(ctx, event)
	settlement, _ := args.Get(0).(*entity.Settlement)

	return settlement, args.Error(1)
}

func (m *mockSettlementUsecase) Reconcile(ctx context.Context, settlementID uuid.UUID) (*entity.Settlement, error) {
	args := m.Called(ctx, settlementID)
	settlement, _ := args.Get(0).(*entity.Settlement)

	return settlement, args.Error(1)
}

func (m *mockSettlementUsecase) RequeuePending(ctx context.Context, limit int) (int, error) {
	args := m.Called(ctx, limit)

	return args.Int(0), args.Error(1)
}

func (m *mockSettlementUsecase) PlatformWalletInfo(ctx context.Context) (*service.WalletInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*service.WalletInfo)

	return info, args.Error(1)
}

type mockChallengeUsecase struct{ mock.Mock }

func (m *mockChallengeUsecase) ListMine(ctx context.Context, userID uuid.UUID) ([]*entity.Challenge, error) {
	args := m.Called(ctx, userID)
	challenges, _ := args.Get(0).([]*entity.Challenge)

	return challenges, args.Error(1)
}

func (m *mockChallengeUsecase) Get(ctx context.Context, challengeID, userID uuid.UUID) (*entity.Challenge, error) {
	args := m.Called(ctx, challengeID, userID)
	challenge, _ := args.Get(0).(*entity.Challenge)

	return challenge, args.Error(1)
}

func (m *mockChallengeUsecase) InviteQR(ctx context.Context, challengeID, userID uuid.UUID) (*usecase.InviteQR, error) {
	args := m.Called(ctx, challengeID, userID)
	invite, _ := args.Get(0).(*usecase.InviteQR)

	return invite, args.Error(1)
}

type mockDeviceUsecase struct{ mock.Mock }

func (m *mockDeviceUsecase) RegisterDevice(ctx context.Context, userID uuid.UUID, deviceInfo *usecase.DeviceInfo) (*entity.UserDevice, error) {
	args := m.Called(ctx, userID, deviceInfo)
	device, _ := args.Get(0).(*entity.UserDevice)

	return device, args.Error(1)
}

func (m *mockDeviceUsecase) GetUserDevices(ctx context.Context, userID uuid.UUID) ([]*entity.UserDevice, error) {
	args := m.Called(ctx, userID)
	devices, _ := args.Get(0).([]*entity.UserDevice)

	return devices, args.Error(1)
}

func (m *mockDeviceUsecase) DeactivateDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	return m.Called(ctx, userID, deviceID).Error(0)
}

func (m *mockDeviceUsecase) NotifyUser(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	return m.Called(ctx, userID, title, body, data).Error(0)
}

type mockWaitlistUsecase struct{ mock.Mock }

func (m *mockWaitlistUsecase) Join(ctx context.Context, input *usecase.JoinWaitlistInput) error {
	return m.Called(ctx, input).Error(0)
}
