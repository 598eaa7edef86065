package message

import (
	"context"
	"errors"
	"testing"
	"time"

	"seller_server/core/domain"
	"seller_server/core/port/out"
	"seller_server/core/service/classification"
	"seller_server/pkg/apperr"

	"github.com/google/uuid"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeMarketplace struct {
	pages        []*out.FetchResult
	fetchCalls   int
	expireFirst  int // reject this many fetches with token_expired
	failPage     int // reject fetches of this page with failErr
	failErr      error
	refreshErr   error
	refreshCalls int
	sentReplies  []*out.OutgoingReply
	sendErr      error
}

func (f *fakeMarketplace) FetchMessages(ctx context.Context, creds *domain.MarketplaceCredentials, opts *out.FetchOptions) (*out.FetchResult, error) {
	f.fetchCalls++
	if f.expireFirst > 0 {
		f.expireFirst--
		return nil, out.NewMarketplaceError(out.MarketplaceErrTokenExpired, "token rejected", nil, false)
	}
	if f.failPage != 0 && opts.Page == f.failPage {
		return nil, f.failErr
	}
	idx := opts.Page - 1
	if idx < 0 || idx >= len(f.pages) {
		return &out.FetchResult{Page: opts.Page}, nil
	}
	return f.pages[idx], nil
}

func (f *fakeMarketplace) SendReply(ctx context.Context, creds *domain.MarketplaceCredentials, reply *out.OutgoingReply) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sentReplies = append(f.sentReplies, reply)
	return nil
}

func (f *fakeMarketplace) RefreshCredentials(ctx context.Context, creds *domain.MarketplaceCredentials) (*out.RefreshedToken, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &out.RefreshedToken{AccessToken: "fresh-token", RefreshToken: "fresh-refresh"}, nil
}

type fakeMessageRepo struct {
	nextID     int64
	byID       map[int64]*domain.Message
	byExternal map[string]int64
	createErr  error
	escalated  []int64
	responses  map[int64]string
	autoCount  int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		byID:       map[int64]*domain.Message{},
		byExternal: map[string]int64{},
		responses:  map[int64]string{},
	}
}

func (f *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if f.createErr != nil {
		return f.createErr
	}
	if _, dup := f.byExternal[msg.ExternalID]; dup {
		return out.ErrDuplicate
	}
	f.nextID++
	msg.ID = f.nextID
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	copied := *msg
	f.byID[msg.ID] = &copied
	f.byExternal[msg.ExternalID] = msg.ID
	return nil
}

func (f *fakeMessageRepo) ExistsByExternalID(ctx context.Context, userID uuid.UUID, externalID string) (bool, error) {
	_, ok := f.byExternal[externalID]
	return ok, nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, userID uuid.UUID, id int64) (*domain.Message, error) {
	msg, ok := f.byID[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (f *fakeMessageRepo) RecordResponse(ctx context.Context, id int64, response string, status domain.Status, autoProcessed bool) error {
	msg, ok := f.byID[id]
	if !ok {
		return out.ErrNotFound
	}
	now := time.Now()
	msg.Response = &response
	msg.ResponseTime = &now
	msg.Status = status
	msg.AutoProcessed = autoProcessed
	f.responses[id] = response
	return nil
}

func (f *fakeMessageRepo) Escalate(ctx context.Context, id int64) error {
	msg, ok := f.byID[id]
	if !ok {
		return out.ErrNotFound
	}
	msg.Escalated = true
	f.escalated = append(f.escalated, id)
	return nil
}

func (f *fakeMessageRepo) List(ctx context.Context, userID uuid.UUID, filter *out.ListFilter) ([]*domain.Message, int, error) {
	var all []*domain.Message
	for _, m := range f.byID {
		all = append(all, m)
	}
	return all, len(all), nil
}

func (f *fakeMessageRepo) Stats(ctx context.Context, userID uuid.UUID, since time.Time) (*out.MessageStats, error) {
	return &out.MessageStats{Total: len(f.byID)}, nil
}

func (f *fakeMessageRepo) CountAutoResponsesSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return f.autoCount, nil
}

func (f *fakeMessageRepo) Timeline(ctx context.Context, userID uuid.UUID, since time.Time) ([]*out.TimelineBucket, error) {
	return nil, nil
}

type fakeUserRepo struct {
	users        map[uuid.UUID]*domain.User
	updatedToken string
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) ListActiveWithCredentials(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	for _, u := range f.users {
		users = append(users, u)
	}
	return users, nil
}

func (f *fakeUserRepo) UpdateTokens(ctx context.Context, id uuid.UUID, accessToken, refreshToken string) error {
	f.updatedToken = accessToken
	return nil
}

func (f *fakeUserRepo) UpdateSettings(ctx context.Context, id uuid.UUID, settings *domain.AutoResponseSettings) error {
	return nil
}

type fakeScheduler struct {
	scheduled []*out.AutoResponseJob
	delays    []time.Duration
	cancelled []int64
}

func (f *fakeScheduler) ScheduleAutoResponse(ctx context.Context, job *out.AutoResponseJob, delay time.Duration) error {
	f.scheduled = append(f.scheduled, job)
	f.delays = append(f.delays, delay)
	return nil
}

func (f *fakeScheduler) CancelForMessage(messageID int64) {
	f.cancelled = append(f.cancelled, messageID)
}

// =============================================================================
// Helpers
// =============================================================================

func testUser() *domain.User {
	settings := domain.DefaultAutoResponseSettings()
	settings.BusinessHours = domain.BusinessHours{Start: "00:00", End: "23:00"}
	settings.WeekdaysOnly = false
	return &domain.User{
		ID:       uuid.New(),
		Email:    "seller@example.com",
		Name:     "Test Seller",
		IsActive: true,
		Credentials: &domain.MarketplaceCredentials{
			ClientID:     "client",
			ClientSecret: "secret",
			AccessToken:  "token",
			RefreshToken: "refresh",
			Environment:  domain.EnvironmentSandbox,
		},
		Settings: settings,
	}
}

func buyerMessage(externalID, text string) out.RawMessage {
	return out.RawMessage{
		ExternalID:      externalID,
		SenderUsername:  "buyer1",
		SenderType:      domain.SenderBuyer,
		Subject:         "Question",
		MessageText:     text,
		ItemID:          "12345",
		MessageType:     "AskSellerQuestion",
		SourceTimestamp: time.Now().Add(-time.Hour),
		Raw:             []byte("<payload/>"),
	}
}

func newTestService(mp *fakeMarketplace, repo *fakeMessageRepo, users *fakeUserRepo, sched *fakeScheduler) *Service {
	return NewService(mp, repo, users, nil, sched, nil, classification.NewClassifier(), Config{FetchWindowDays: 30, PageSize: 100})
}

// =============================================================================
// Sync
// =============================================================================

func TestSyncPersistsAndClassifiesNewMessages(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{pages: []*out.FetchResult{{
		Messages: []out.RawMessage{
			buyerMessage("ext-1", "When will my order ship?"),
			buyerMessage("ext-2", "This is a scam, I am calling my lawyer"),
		},
		Total: 2,
	}}}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	sched := &fakeScheduler{}
	svc := newTestService(mp, repo, users, sched)

	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.NewMessages != 2 {
		t.Errorf("NewMessages = %d, want 2", result.NewMessages)
	}
	if result.TotalPulled != 2 {
		t.Errorf("TotalPulled = %d, want 2", result.TotalPulled)
	}

	first, _ := repo.GetByID(context.Background(), user.ID, 1)
	if first.Category != domain.CategoryShipping {
		t.Errorf("first message category = %v, want shipping", first.Category)
	}
	if first.Status != domain.StatusPending {
		t.Errorf("first message status = %v, want pending", first.Status)
	}

	second, _ := repo.GetByID(context.Background(), user.ID, 2)
	if !second.Escalated {
		t.Errorf("second message should be escalated by keyword match")
	}
	if second.Priority != domain.PriorityHigh {
		t.Errorf("second message priority = %v, want high", second.Priority)
	}

	// Only the non-escalated message gets an auto-response scheduled.
	if len(sched.scheduled) != 1 || sched.scheduled[0].MessageID != first.ID {
		t.Errorf("scheduled jobs = %+v, want exactly one for message %d", sched.scheduled, first.ID)
	}
	if sched.delays[0] != time.Duration(user.Settings.ResponseDelay)*time.Second {
		t.Errorf("schedule delay = %v, want %v", sched.delays[0], time.Duration(user.Settings.ResponseDelay)*time.Second)
	}
}

func TestSyncSkipsExistingMessages(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{pages: []*out.FetchResult{{
		Messages: []out.RawMessage{buyerMessage("ext-1", "hello")},
	}}}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	if _, err := svc.Sync(context.Background(), user.ID); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if result.NewMessages != 0 {
		t.Errorf("NewMessages on resync = %d, want 0", result.NewMessages)
	}
	if result.TotalPulled != 1 {
		t.Errorf("TotalPulled on resync = %d, want 1", result.TotalPulled)
	}
}

func TestSyncKeepsPartialResultOnTransientFetchFailure(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{
		pages: []*out.FetchResult{{
			Messages: []out.RawMessage{buyerMessage("ext-1", "where is my package")},
			HasMore:  true,
		}},
		failPage: 2,
		failErr:  out.NewMarketplaceError(out.MarketplaceErrServer, "ebay 500", nil, true),
	}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync() error = %v, want partial result without error", err)
	}
	if result.NewMessages != 1 {
		t.Errorf("NewMessages = %d, want the page-1 message kept", result.NewMessages)
	}
	if result.TotalPulled != 1 {
		t.Errorf("TotalPulled = %d, want 1", result.TotalPulled)
	}
	if mp.fetchCalls != 2 {
		t.Errorf("fetch calls = %d, want 2 (no retry past the failed page)", mp.fetchCalls)
	}
}

func TestSyncRefreshesTokenOnce(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{
		expireFirst: 1,
		pages: []*out.FetchResult{{
			Messages: []out.RawMessage{buyerMessage("ext-1", "hi")},
		}},
	}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if !result.TokenRefreshed {
		t.Errorf("TokenRefreshed = false, want true")
	}
	if mp.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want 1", mp.refreshCalls)
	}
	if users.updatedToken != "fresh-token" {
		t.Errorf("persisted token = %q, want fresh-token", users.updatedToken)
	}
	if result.NewMessages != 1 {
		t.Errorf("NewMessages = %d, want 1", result.NewMessages)
	}
}

func TestSyncSecondTokenRejectionIsTerminal(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{expireFirst: 2}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	_, err := svc.Sync(context.Background(), user.ID)
	if err == nil {
		t.Fatalf("Sync() expected error after second token rejection")
	}
	if !apperr.IsCode(err, apperr.CodeTokenExpired) {
		t.Errorf("error code = %v, want TOKEN_EXPIRED", err)
	}
	if mp.refreshCalls != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", mp.refreshCalls)
	}
}

func TestSyncRefreshFailureIsTerminal(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{
		expireFirst: 1,
		refreshErr:  errors.New("invalid_grant"),
	}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	_, err := svc.Sync(context.Background(), user.ID)
	if !apperr.IsCode(err, apperr.CodeRefreshFailed) {
		t.Errorf("error = %v, want REFRESH_FAILED", err)
	}
}

func TestSyncWithoutCredentials(t *testing.T) {
	user := testUser()
	user.Credentials = nil
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(&fakeMarketplace{}, newFakeMessageRepo(), users, &fakeScheduler{})

	_, err := svc.Sync(context.Background(), user.ID)
	if !apperr.IsCode(err, apperr.CodeCredentialsMissing) {
		t.Errorf("error = %v, want CREDENTIALS_MISSING", err)
	}
}

func TestSyncDoesNotScheduleForSystemMessages(t *testing.T) {
	user := testUser()
	system := out.RawMessage{
		ExternalID:      "sys-1",
		SenderType:      domain.SenderSystem,
		IsSystem:        true,
		Subject:         "Policy update",
		MessageText:     "Your listing was updated",
		SourceTimestamp: time.Now(),
	}
	mp := &fakeMarketplace{pages: []*out.FetchResult{{Messages: []out.RawMessage{system}}}}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	sched := &fakeScheduler{}
	svc := newTestService(mp, repo, users, sched)

	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.NewMessages != 1 {
		t.Errorf("NewMessages = %d, want 1", result.NewMessages)
	}
	if len(sched.scheduled) != 0 {
		t.Errorf("system message must not get an auto-response schedule")
	}
}

func TestSyncDoesNotScheduleWithoutItemID(t *testing.T) {
	user := testUser()
	raw := buyerMessage("ext-1", "hi, general question about your store")
	raw.ItemID = ""
	mp := &fakeMarketplace{pages: []*out.FetchResult{{Messages: []out.RawMessage{raw}}}}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	sched := &fakeScheduler{}
	svc := newTestService(mp, repo, users, sched)

	result, err := svc.Sync(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if result.NewMessages != 1 {
		t.Errorf("NewMessages = %d, want 1", result.NewMessages)
	}
	if len(sched.scheduled) != 0 {
		t.Errorf("a buyer message without an item must not get an auto-response schedule")
	}

	stored, _ := repo.GetByID(context.Background(), user.ID, 1)
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %v, want pending", stored.Status)
	}
	if stored.ItemID != nil {
		t.Errorf("ItemID = %v, want nil", *stored.ItemID)
	}
}

// =============================================================================
// Respond
// =============================================================================

func TestRespondSendsAndRecords(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	sched := &fakeScheduler{}
	svc := newTestService(mp, repo, users, sched)

	raw := buyerMessage("ext-1", "where is my package")
	msg := svc.buildMessage(user, &raw)
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}

	updated, err := svc.Respond(context.Background(), user.ID, msg.ID, "It ships tomorrow.")
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}
	if updated.Status != domain.StatusManuallyResponded {
		t.Errorf("status = %v, want manually_responded", updated.Status)
	}
	if updated.Response == nil || *updated.Response != "It ships tomorrow." {
		t.Errorf("response not recorded: %+v", updated.Response)
	}
	if len(mp.sentReplies) != 1 || mp.sentReplies[0].RecipientUsername != "buyer1" {
		t.Errorf("sent replies = %+v, want one to buyer1", mp.sentReplies)
	}
	if len(sched.cancelled) != 1 || sched.cancelled[0] != msg.ID {
		t.Errorf("pending auto-response was not cancelled: %+v", sched.cancelled)
	}
}

func TestRespondRejectsSystemMessage(t *testing.T) {
	user := testUser()
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	mp := &fakeMarketplace{}
	svc := newTestService(mp, repo, users, &fakeScheduler{})

	msg := &domain.Message{
		UserID:      user.ID,
		ExternalID:  "sys-1",
		SenderType:  domain.SenderSystem,
		IsSystem:    true,
		Subject:     "Policy",
		MessageText: "notice",
		Status:      domain.StatusPending,
	}
	repo.Create(context.Background(), msg)

	_, err := svc.Respond(context.Background(), user.ID, msg.ID, "hello")
	if !apperr.IsCode(err, apperr.CodeUnsupported) {
		t.Errorf("error = %v, want UNSUPPORTED_OPERATION", err)
	}
	if mp.fetchCalls != 0 || len(mp.sentReplies) != 0 {
		t.Errorf("no network call expected for a rejected reply")
	}
}

func TestRespondRejectsMissingItem(t *testing.T) {
	user := testUser()
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(&fakeMarketplace{}, repo, users, &fakeScheduler{})

	sender := "buyer1"
	msg := &domain.Message{
		UserID:         user.ID,
		ExternalID:     "ext-1",
		SenderUsername: &sender,
		SenderType:     domain.SenderBuyer,
		Subject:        "q",
		MessageText:    "question",
		Status:         domain.StatusPending,
	}
	repo.Create(context.Background(), msg)

	_, err := svc.Respond(context.Background(), user.ID, msg.ID, "hello")
	if !apperr.IsCode(err, apperr.CodeUnsupported) {
		t.Errorf("error = %v, want UNSUPPORTED_OPERATION", err)
	}
}

func TestRespondNotFound(t *testing.T) {
	user := testUser()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(&fakeMarketplace{}, newFakeMessageRepo(), users, &fakeScheduler{})

	_, err := svc.Respond(context.Background(), user.ID, 999, "hello")
	if !apperr.IsCode(err, apperr.CodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

// =============================================================================
// AutoResponder
// =============================================================================

func seedPendingMessage(t *testing.T, svc *Service, repo *fakeMessageRepo, user *domain.User, text string) *domain.Message {
	t.Helper()
	raw := buyerMessage("ext-auto", text)
	msg := svc.buildMessage(user, &raw)
	if err := repo.Create(context.Background(), msg); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return msg
}

func TestAutoResponderSendsTemplate(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})
	msg := seedPendingMessage(t, svc, repo, user, "when does it ship?")

	responder := NewAutoResponder(mp, repo, users, classification.NewClassifier())
	err := responder.Handle(context.Background(), &out.AutoResponseJob{UserID: user.ID, MessageID: msg.ID})
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID, msg.ID)
	if stored.Status != domain.StatusAutoResponded {
		t.Errorf("status = %v, want auto_responded", stored.Status)
	}
	if !stored.AutoProcessed {
		t.Errorf("AutoProcessed = false, want true")
	}
	if len(mp.sentReplies) != 1 {
		t.Fatalf("sent replies = %d, want 1", len(mp.sentReplies))
	}
	want := user.Settings.Templates[domain.CategoryShipping]
	if mp.sentReplies[0].Body != want {
		t.Errorf("reply body = %q, want shipping template", mp.sentReplies[0].Body)
	}
}

func TestAutoResponderSkipsNonPending(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})
	msg := seedPendingMessage(t, svc, repo, user, "when does it ship?")

	// A human replied during the delay.
	repo.RecordResponse(context.Background(), msg.ID, "done", domain.StatusManuallyResponded, false)

	responder := NewAutoResponder(mp, repo, users, classification.NewClassifier())
	if err := responder.Handle(context.Background(), &out.AutoResponseJob{UserID: user.ID, MessageID: msg.ID}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(mp.sentReplies) != 0 {
		t.Errorf("no reply expected for an already-responded message")
	}

	stored, _ := repo.GetByID(context.Background(), user.ID, msg.ID)
	if stored.Status != domain.StatusManuallyResponded {
		t.Errorf("status = %v, want manually_responded untouched", stored.Status)
	}
}

func TestAutoResponderEscalatesOnSendFailure(t *testing.T) {
	user := testUser()
	mp := &fakeMarketplace{sendErr: errors.New("gateway timeout")}
	repo := newFakeMessageRepo()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})
	msg := seedPendingMessage(t, svc, repo, user, "when does it ship?")

	responder := NewAutoResponder(mp, repo, users, classification.NewClassifier())
	if err := responder.Handle(context.Background(), &out.AutoResponseJob{UserID: user.ID, MessageID: msg.ID}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID, msg.ID)
	if !stored.Escalated {
		t.Errorf("Escalated = false, want true after send failure")
	}
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %v, want pending (fail open to a human)", stored.Status)
	}
}

func TestAutoResponderHonorsDailyCap(t *testing.T) {
	user := testUser()
	user.Settings.MaxDailyResponses = 5
	mp := &fakeMarketplace{}
	repo := newFakeMessageRepo()
	repo.autoCount = 5
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	svc := newTestService(mp, repo, users, &fakeScheduler{})
	msg := seedPendingMessage(t, svc, repo, user, "when does it ship?")

	responder := NewAutoResponder(mp, repo, users, classification.NewClassifier())
	if err := responder.Handle(context.Background(), &out.AutoResponseJob{UserID: user.ID, MessageID: msg.ID}); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), user.ID, msg.ID)
	if stored.Status != domain.StatusPending {
		t.Errorf("status = %v, want pending when the cap is reached", stored.Status)
	}
	if len(mp.sentReplies) != 0 {
		t.Errorf("no reply expected past the daily cap")
	}
}

func TestAutoResponderDropsMissingMessage(t *testing.T) {
	user := testUser()
	users := &fakeUserRepo{users: map[uuid.UUID]*domain.User{user.ID: user}}
	responder := NewAutoResponder(&fakeMarketplace{}, newFakeMessageRepo(), users, classification.NewClassifier())

	if err := responder.Handle(context.Background(), &out.AutoResponseJob{UserID: user.ID, MessageID: 42}); err != nil {
		t.Errorf("Handle() on missing message should not error, got %v", err)
	}
}
