package impl

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"time"

	"showup/internal/domain/entity"
	"showup/internal/domain/repository"
	"showup/internal/domain/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory database. Rows are stored by value so callers only
// see their changes persisted through repository calls.
type memStore struct {
	users         map[uuid.UUID]entity.User
	authSessions  map[uuid.UUID]entity.AuthSession
	sessions      map[uuid.UUID]entity.OnboardingSession
	conversations map[uuid.UUID]entity.AIConversation
	challenges    map[uuid.UUID]entity.Challenge
	settlements   map[uuid.UUID]entity.Settlement
	devices       map[uuid.UUID]entity.UserDevice
	waitlist      map[string]entity.WaitlistEntry
	events        []entity.AnalyticsEvent

	challengeCreateErr error
	// settlementUpdateFault, when set, can fail a settlement update.
	settlementUpdateFault func(*entity.Settlement) error
	// completeSessionErr fails marking an onboarding session completed.
	completeSessionErr error
	executions         int
}

func newMemStore() *memStore {
	return &memStore{
		users:         map[uuid.UUID]entity.User{},
		authSessions:  map[uuid.UUID]entity.AuthSession{},
		sessions:      map[uuid.UUID]entity.OnboardingSession{},
		conversations: map[uuid.UUID]entity.AIConversation{},
		challenges:    map[uuid.UUID]entity.Challenge{},
		settlements:   map[uuid.UUID]entity.Settlement{},
		devices:       map[uuid.UUID]entity.UserDevice{},
		waitlist:      map[string]entity.WaitlistEntry{},
	}
}

func (s *memStore) snapshot() *memStore {
	return &memStore{
		users:         maps.Clone(s.users),
		authSessions:  maps.Clone(s.authSessions),
		sessions:      maps.Clone(s.sessions),
		conversations: maps.Clone(s.conversations),
		challenges:    maps.Clone(s.challenges),
		settlements:   maps.Clone(s.settlements),
		devices:       maps.Clone(s.devices),
		waitlist:      maps.Clone(s.waitlist),
		events:        slices.Clone(s.events),
	}
}

func (s *memStore) restore(snap *memStore) {
	s.users = snap.users
	s.authSessions = snap.authSessions
	s.sessions = snap.sessions
	s.conversations = snap.conversations
	s.challenges = snap.challenges
	s.settlements = snap.settlements
	s.devices = snap.devices
	s.waitlist = snap.waitlist
	s.events = snap.events
}

// Execute runs fn and rolls every table back when it fails.
func (s *memStore) Execute(_ context.Context, fn func(repository.RepositoryFactory) error) error {
	s.executions++
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)

		return err
	}

	return nil
}

func (s *memStore) NewUserRepository() repository.UserRepository { return fakeUserRepo{s} }
func (s *memStore) NewAuthSessionRepository() repository.AuthSessionRepository {
	return fakeAuthSessionRepo{s}
}
func (s *memStore) NewOnboardingRepository() repository.OnboardingRepository {
	return fakeOnboardingRepo{s}
}
func (s *memStore) NewConversationRepository() repository.ConversationRepository {
	return fakeConversationRepo{s}
}
func (s *memStore) NewChallengeRepository() repository.ChallengeRepository {
	return fakeChallengeRepo{s}
}
func (s *memStore) NewAnalyticsRepository() repository.AnalyticsRepository {
	return fakeAnalyticsRepo{s}
}
func (s *memStore) NewSettlementRepository() repository.SettlementRepository {
	return fakeSettlementRepo{s}
}

func (s *memStore) eventTypes(sessionID uuid.UUID) []entity.AnalyticsEventType {
	var out []entity.AnalyticsEventType
	for _, ev := range s.events {
		if ev.SessionID == sessionID {
			out = append(out, ev.EventType)
		}
	}

	return out
}

func (s *memStore) eventsOf(sessionID uuid.UUID, eventType entity.AnalyticsEventType) []entity.AnalyticsEvent {
	var out []entity.AnalyticsEvent
	for _, ev := range s.events {
		if ev.SessionID == sessionID && ev.EventType == eventType {
			out = append(out, ev)
		}
	}

	return out
}

func (s *memStore) addUser(email string) *entity.User {
	now := time.Now()
	user := entity.User{ID: uuid.New(), Email: email, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.users[user.ID] = user

	return &user
}

// --- users ---

type fakeUserRepo struct{ s *memStore }

func (r fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}

	return &user, nil
}

func (r fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	for _, user := range r.s.users {
		if user.Email == email {
			return &user, nil
		}
	}

	return nil, repository.ErrUserNotFound
}

func (r fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if user.Username != nil && existing.Username != nil && *existing.Username == *user.Username {
			return repository.ErrUsernameTaken
		}
	}
	r.s.users[user.ID] = *user

	return nil
}

func (r fakeUserRepo) StampTermsAccepted(_ context.Context, id uuid.UUID, version string, at time.Time) (bool, error) {
	user, ok := r.s.users[id]
	if !ok {
		return false, repository.ErrUserNotFound
	}
	if user.TermsAcceptedAt != nil {
		return false, nil
	}
	user.TermsAcceptedAt = &at
	user.TermsVersion = version
	r.s.users[id] = user

	return true, nil
}

func (r fakeUserRepo) StampOnboardingCompleted(_ context.Context, id uuid.UUID, at time.Time) error {
	user, ok := r.s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.OnboardingCompletedAt == nil {
		user.OnboardingCompletedAt = &at
	}
	r.s.users[id] = user

	return nil
}

// --- auth sessions ---

type fakeAuthSessionRepo struct{ s *memStore }

func (r fakeAuthSessionRepo) Create(_ context.Context, session *entity.AuthSession) error {
	r.s.authSessions[session.ID] = *session

	return nil
}

func (r fakeAuthSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.AuthSession, error) {
	for _, session := range r.s.authSessions {
		if session.RefreshTokenHash == tokenHash {
			return &session, nil
		}
	}

	return nil, repository.ErrAuthSessionNotFound
}

func (r fakeAuthSessionRepo) Rotate(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	session, ok := r.s.authSessions[id]
	if !ok {
		return repository.ErrAuthSessionNotFound
	}
	session.RefreshTokenHash = tokenHash
	session.ExpiresAt = expiresAt
	r.s.authSessions[id] = session

	return nil
}

func (r fakeAuthSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	for id, session := range r.s.authSessions {
		if session.RefreshTokenHash == tokenHash {
			delete(r.s.authSessions, id)
		}
	}

	return nil
}

func (r fakeAuthSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var deleted int64
	for id, session := range r.s.authSessions {
		if session.IsExpired(now) {
			delete(r.s.authSessions, id)
			deleted++
		}
	}

	return deleted, nil
}

// --- onboarding sessions ---

type fakeOnboardingRepo struct{ s *memStore }

func (r fakeOnboardingRepo) Create(_ context.Context, session *entity.OnboardingSession) error {
	for _, existing := range r.s.sessions {
		if existing.UserID == session.UserID && existing.IsActive() {
			return repository.ErrActiveSessionExists
		}
	}
	r.s.sessions[session.ID] = *session

	return nil
}

func (r fakeOnboardingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.OnboardingSession, error) {
	session, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrOnboardingSessionNotFound
	}

	return &session, nil
}

func (r fakeOnboardingRepo) FindActiveByUser(_ context.Context, userID uuid.UUID) (*entity.OnboardingSession, error) {
	for _, session := range r.s.sessions {
		if session.UserID == userID && session.IsActive() {
			return &session, nil
		}
	}

	return nil, repository.ErrOnboardingSessionNotFound
}

// Update writes the mutable progress columns; completion stamps are owned by MarkCompleted and MarkAbandoned.
func (r fakeOnboardingRepo) Update(_ context.Context, session *entity.OnboardingSession) error {
	stored, ok := r.s.sessions[session.ID]
	if !ok {
		return repository.ErrOnboardingSessionNotFound
	}
	stored.CurrentStep = session.CurrentStep
	stored.StepsCompleted = slices.Clone(session.StepsCompleted)
	stored.ChallengeDraft = session.ChallengeDraft
	stored.AIMessages = slices.Clone(session.AIMessages)
	stored.AIConversationID = session.AIConversationID
	stored.UpdatedAt = session.UpdatedAt
	r.s.sessions[session.ID] = stored

	return nil
}

func (r fakeOnboardingRepo) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) error {
	if r.s.completeSessionErr != nil {
		return r.s.completeSessionErr
	}
	stored, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrOnboardingSessionNotFound
	}
	stored.CompletedAt = &at
	r.s.sessions[id] = stored

	return nil
}

func (r fakeOnboardingRepo) MarkAbandoned(_ context.Context, id uuid.UUID, at time.Time) error {
	stored, ok := r.s.sessions[id]
	if !ok {
		return repository.ErrOnboardingSessionNotFound
	}
	stored.AbandonedAt = &at
	r.s.sessions[id] = stored

	return nil
}

func (r fakeOnboardingRepo) Metrics(_ context.Context) (*entity.OnboardingMetrics, error) {
	metrics := &entity.OnboardingMetrics{StepFunnel: map[entity.OnboardingStep]int64{}}
	for _, session := range r.s.sessions {
		metrics.TotalSessions++
		if session.CompletedAt != nil {
			metrics.CompletedSessions++
		}
		if session.AbandonedAt != nil {
			metrics.AbandonedSessions++
		}
		for _, step := range session.StepsCompleted {
			metrics.StepFunnel[step]++
		}
	}

	return metrics, nil
}

// --- conversations ---

type fakeConversationRepo struct{ s *memStore }

func (r fakeConversationRepo) Create(_ context.Context, conversation *entity.AIConversation) error {
	r.s.conversations[conversation.ID] = *conversation

	return nil
}

func (r fakeConversationRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.AIConversation, error) {
	conversation, ok := r.s.conversations[id]
	if !ok {
		return nil, repository.ErrConversationNotFound
	}
	conversation.Messages = slices.Clone(conversation.Messages)
	conversation.SuggestedChallenges = slices.Clone(conversation.SuggestedChallenges)

	return &conversation, nil
}

func (r fakeConversationRepo) Update(_ context.Context, conversation *entity.AIConversation) error {
	if _, ok := r.s.conversations[conversation.ID]; !ok {
		return repository.ErrConversationNotFound
	}
	r.s.conversations[conversation.ID] = *conversation

	return nil
}

// --- challenges ---

type fakeChallengeRepo struct{ s *memStore }

func (r fakeChallengeRepo) Create(_ context.Context, challenge *entity.Challenge) error {
	if r.s.challengeCreateErr != nil {
		return r.s.challengeCreateErr
	}
	r.s.challenges[challenge.ID] = *challenge

	return nil
}

func (r fakeChallengeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Challenge, error) {
	challenge, ok := r.s.challenges[id]
	if !ok {
		return nil, repository.ErrChallengeNotFound
	}

	return &challenge, nil
}

func (r fakeChallengeRepo) FindByUser(_ context.Context, userID uuid.UUID) ([]*entity.Challenge, error) {
	var out []*entity.Challenge
	for _, challenge := range r.s.challenges {
		if challenge.UserID == userID {
			out = append(out, &challenge)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	return out, nil
}

func (r fakeChallengeRepo) MarkPaymentPending(_ context.Context, id uuid.UUID, paymentSessionID string) error {
	challenge, ok := r.s.challenges[id]
	if !ok || challenge.Status.IsTerminal() {
		return repository.ErrChallengeNotFound
	}
	challenge.Status = entity.ChallengeStatusPaymentPending
	challenge.PaymentSessionID = paymentSessionID
	r.s.challenges[id] = challenge

	return nil
}

func (r fakeChallengeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.ChallengeStatus, onChainID, txHash string) error {
	challenge, ok := r.s.challenges[id]
	if !ok {
		return repository.ErrChallengeNotFound
	}
	challenge.Status = status
	if onChainID != "" {
		challenge.OnChainID = onChainID
	}
	if txHash != "" {
		challenge.TxHash = txHash
	}
	r.s.challenges[id] = challenge

	return nil
}

// --- analytics ---

type fakeAnalyticsRepo struct{ s *memStore }

func (r fakeAnalyticsRepo) Record(_ context.Context, event *entity.AnalyticsEvent) error {
	r.s.events = append(r.s.events, *event)

	return nil
}

func (r fakeAnalyticsRepo) FindBySession(_ context.Context, sessionID uuid.UUID) ([]*entity.AnalyticsEvent, error) {
	var out []*entity.AnalyticsEvent
	for _, ev := range r.s.events {
		if ev.SessionID == sessionID {
			out = append(out, &ev)
		}
	}

	return out, nil
}

// --- settlements ---

type fakeSettlementRepo struct{ s *memStore }

func (r fakeSettlementRepo) Claim(_ context.Context, settlement *entity.Settlement) error {
	for _, existing := range r.s.settlements {
		if existing.ProviderSessionID == settlement.ProviderSessionID {
			return repository.ErrSettlementExists
		}
	}
	r.s.settlements[settlement.ID] = *settlement

	return nil
}

func (r fakeSettlementRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Settlement, error) {
	settlement, ok := r.s.settlements[id]
	if !ok {
		return nil, repository.ErrSettlementNotFound
	}

	return &settlement, nil
}

func (r fakeSettlementRepo) FindByProviderSessionID(_ context.Context, providerSessionID string) (*entity.Settlement, error) {
	for _, settlement := range r.s.settlements {
		if settlement.ProviderSessionID == providerSessionID {
			return &settlement, nil
		}
	}

	return nil, repository.ErrSettlementNotFound
}

func (r fakeSettlementRepo) Acquire(_ context.Context, settlement *entity.Settlement, staleBefore time.Time) (bool, error) {
	stored, ok := r.s.settlements[settlement.ID]
	if !ok {
		return false, repository.ErrSettlementNotFound
	}
	if stored.Attempts != settlement.Attempts || !leasable(stored, staleBefore) {
		return false, nil
	}

	stored.Status = entity.SettlementStatusProcessing
	stored.Attempts++
	stored.UpdatedAt = time.Now()
	r.s.settlements[stored.ID] = stored
	*settlement = stored

	return true, nil
}

func leasable(s entity.Settlement, staleBefore time.Time) bool {
	return s.Status == entity.SettlementStatusNeedsReconciliation ||
		(s.Status == entity.SettlementStatusProcessing && s.UpdatedAt.Before(staleBefore))
}

func (r fakeSettlementRepo) Update(_ context.Context, settlement *entity.Settlement) error {
	stored, ok := r.s.settlements[settlement.ID]
	if !ok || stored.Attempts != settlement.Attempts {
		return repository.ErrSettlementLeaseLost
	}
	if r.s.settlementUpdateFault != nil {
		if err := r.s.settlementUpdateFault(settlement); err != nil {
			return err
		}
	}
	r.s.settlements[settlement.ID] = *settlement

	return nil
}

func (r fakeSettlementRepo) FindPending(_ context.Context, staleBefore time.Time, limit int) ([]*entity.Settlement, error) {
	var out []*entity.Settlement
	for _, settlement := range r.s.settlements {
		if leasable(settlement, staleBefore) {
			out = append(out, &settlement)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

// --- devices ---

type fakeDeviceRepo struct{ s *memStore }

func (r fakeDeviceRepo) CreateDevice(_ context.Context, device *entity.UserDevice) error {
	for _, existing := range r.s.devices {
		if existing.UserID == device.UserID && existing.DeviceID == device.DeviceID {
			return repository.ErrDuplicateDevice
		}
	}
	r.s.devices[device.ID] = *device

	return nil
}

func (r fakeDeviceRepo) FindDeviceByID(_ context.Context, id uuid.UUID) (*entity.UserDevice, error) {
	device, ok := r.s.devices[id]
	if !ok {
		return nil, repository.ErrDeviceNotFound
	}

	return &device, nil
}

func (r fakeDeviceRepo) FindDeviceByUserAndDeviceID(_ context.Context, userID uuid.UUID, deviceID string) (*entity.UserDevice, error) {
	for _, device := range r.s.devices {
		if device.UserID == userID && device.DeviceID == deviceID {
			return &device, nil
		}
	}

	return nil, repository.ErrDeviceNotFound
}

func (r fakeDeviceRepo) FindDevicesByUser(_ context.Context, userID uuid.UUID) ([]*entity.UserDevice, error) {
	return r.find(func(d entity.UserDevice) bool { return d.UserID == userID }), nil
}

func (r fakeDeviceRepo) FindActiveDevicesByUser(_ context.Context, userID uuid.UUID) ([]*entity.UserDevice, error) {
	return r.find(func(d entity.UserDevice) bool { return d.UserID == userID && d.IsActive }), nil
}

func (r fakeDeviceRepo) find(keep func(entity.UserDevice) bool) []*entity.UserDevice {
	var out []*entity.UserDevice
	for _, device := range r.s.devices {
		if keep(device) {
			out = append(out, &device)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

func (r fakeDeviceRepo) UpdateFCMToken(_ context.Context, id uuid.UUID, fcmToken string) error {
	device, ok := r.s.devices[id]
	if !ok {
		return repository.ErrDeviceNotFound
	}
	device.FCMToken = fcmToken
	device.IsActive = true
	r.s.devices[id] = device

	return nil
}

func (r fakeDeviceRepo) DeactivateDevice(_ context.Context, id uuid.UUID) error {
	device, ok := r.s.devices[id]
	if !ok {
		return repository.ErrDeviceNotFound
	}
	device.IsActive = false
	r.s.devices[id] = device

	return nil
}

func (r fakeDeviceRepo) DeactivateByToken(_ context.Context, fcmToken string) error {
	for id, device := range r.s.devices {
		if device.FCMToken == fcmToken {
			device.IsActive = false
			r.s.devices[id] = device
		}
	}

	return nil
}

// --- waitlist ---

type fakeWaitlistRepo struct{ s *memStore }

func (r fakeWaitlistRepo) Create(_ context.Context, entry *entity.WaitlistEntry) error {
	if _, ok := r.s.waitlist[entry.Email]; ok {
		return repository.ErrWaitlistDuplicate
	}
	r.s.waitlist[entry.Email] = *entry

	return nil
}

// --- external collaborators ---

type mockPaymentProvider struct{ mock.Mock }

func (m *mockPaymentProvider) CreateCheckoutSession(ctx context.Context, req *service.CheckoutRequest) (*service.CheckoutSession, error) {
	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*service.CheckoutSession)

	return session, args.Error(1)
}

func (m *mockPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*service.PaymentSessionDetails, error) {
	args := m.Called(ctx, sessionID)
	details, _ := args.Get(0).(*service.PaymentSessionDetails)

	return details, args.Error(1)
}

func (m *mockPaymentProvider) ParseWebhook(payload []byte, signature, secret string) (*service.WebhookEvent, error) {
	args := m.Called(payload, signature, secret)
	event, _ := args.Get(0).(*service.WebhookEvent)

	return event, args.Error(1)
}

type mockEscrowClient struct{ mock.Mock }

func (m *mockEscrowClient) Enabled() bool {
	return m.Called().Bool(0)
}

func (m *mockEscrowClient) IsDeployed(ctx context.Context) (bool, error) {
	args := m.Called(ctx)

	return args.Bool(0), args.Error(1)
}

func (m *mockEscrowClient) PrepareChallenge(ctx context.Context, req *service.EscrowChallengeRequest) (*service.EscrowTransaction, error) {
	args := m.Called(ctx, req)
	tx, _ := args.Get(0).(*service.EscrowTransaction)

	return tx, args.Error(1)
}

func (m *mockEscrowClient) SendChallenge(ctx context.Context, tx *service.EscrowTransaction) (*service.EscrowReceipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*service.EscrowReceipt)

	return receipt, args.Error(1)
}

func (m *mockEscrowClient) WalletInfo(ctx context.Context) (*service.WalletInfo, error) {
	args := m.Called(ctx)
	info, _ := args.Get(0).(*service.WalletInfo)

	return info, args.Error(1)
}

type mockEventPublisher struct{ mock.Mock }

func (m *mockEventPublisher) PublishReconciliationEvent(ctx context.Context, event *service.ReconciliationEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *mockEventPublisher) Close() error {
	return m.Called().Error(0)
}

type mockPushSender struct{ mock.Mock }

func (m *mockPushSender) Push(ctx context.Context, tokens []string, msg *service.PushMessage) (*service.PushResult, error) {
	args := m.Called(ctx, tokens, msg)
	result, _ := args.Get(0).(*service.PushResult)

	return result, args.Error(1)
}

// pushTitled matches a push message by title and body.
func pushTitled(title, body string) any {
	return mock.MatchedBy(func(msg *service.PushMessage) bool {
		return msg.Title == title && (body == "" || msg.Body == body)
	})
}

// scriptedGenerator replies with a fixed answer and records what it was shown.
type scriptedGenerator struct {
	reply      string
	suggestion *entity.SuggestedChallenge
	err        error
	calls      int
	lastSeen   []entity.AIMessage
}

func (g *scriptedGenerator) Generate(_ context.Context, transcript []entity.AIMessage, _ string) (string, *entity.SuggestedChallenge, error) {
	g.calls++
	g.lastSeen = slices.Clone(transcript)

	return g.reply, g.suggestion, g.err
}

func (g *scriptedGenerator) Model() string { return "scripted" }
