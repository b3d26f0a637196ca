//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/adapter"
	"lms-payments/internal/domain/ports/repository"
)

// =============================
// Repositories
// =============================

// ---- Mock TransactionRepository ----

type MockTransactionRepo struct {
	mu    sync.Mutex
	store map[string]*model.Transaction

	SaveFunc                  func(ctx context.Context, tx repository.Tx, t *model.Transaction) error
	UpdateStatusIfPendingFunc func(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error)
	SumByTypeAndStatusFunc    func(ctx context.Context, tx repository.Tx, typ model.TransactionType, status model.TransactionStatus) (int64, error)
}

var _ repository.TransactionRepository = (*MockTransactionRepo)(nil)

func NewMockTransactionRepo() *MockTransactionRepo {
	return &MockTransactionRepo{store: map[string]*model.Transaction{}}
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.store[t.ID] = &cp
	return nil
}

func (m *MockTransactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MockTransactionRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus) (bool, error) {
	if m.UpdateStatusIfPendingFunc != nil {
		return m.UpdateStatusIfPendingFunc(ctx, tx, id, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockTransactionRepo) SumByTypeAndStatus(ctx context.Context, tx repository.Tx, typ model.TransactionType, status model.TransactionStatus) (int64, error) {
	if m.SumByTypeAndStatusFunc != nil {
		return m.SumByTypeAndStatusFunc(ctx, tx, typ, status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, t := range m.store {
		if t.Type == typ && t.Status == status {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (m *MockTransactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Get returns the stored transaction for assertions.
func (m *MockTransactionRepo) Get(id string) *model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// ByType returns all stored transactions of one type, for assertions.
func (m *MockTransactionRepo) ByType(typ model.TransactionType) []*model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Type == typ {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// ---- Mock PendingPurchaseItemRepository ----

type MockPendingItemRepo struct {
	mu    sync.Mutex
	store map[string][]*model.PendingPurchaseItem // by intent id

	SaveAllFunc func(ctx context.Context, tx repository.Tx, items []*model.PendingPurchaseItem) error
}

var _ repository.PendingPurchaseItemRepository = (*MockPendingItemRepo)(nil)

func NewMockPendingItemRepo() *MockPendingItemRepo {
	return &MockPendingItemRepo{store: map[string][]*model.PendingPurchaseItem{}}
}

func (m *MockPendingItemRepo) SaveAll(ctx context.Context, tx repository.Tx, items []*model.PendingPurchaseItem) error {
	if m.SaveAllFunc != nil {
		return m.SaveAllFunc(ctx, tx, items)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		cp := *it
		m.store[it.IntentID] = append(m.store[it.IntentID], &cp)
	}
	return nil
}

func (m *MockPendingItemRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) ([]*model.PendingPurchaseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.store[intentID]
	out := make([]*model.PendingPurchaseItem, 0, len(items))
	for _, it := range items {
		cp := *it
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockPendingItemRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, transactionID string) ([]*model.PendingPurchaseItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PendingPurchaseItem
	for _, items := range m.store {
		for _, it := range items {
			if it.TransactionID == transactionID {
				cp := *it
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (m *MockPendingItemRepo) DeleteByIntentID(ctx context.Context, tx repository.Tx, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, intentID)
	return nil
}

func (m *MockPendingItemRepo) Count(intentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store[intentID])
}

// ---- Mock PurchaseRepository ----

type MockPurchaseRepo struct {
	mu    sync.Mutex
	store map[string]*model.UserPurchase // by intent id

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.UserPurchase) error
}

var _ repository.PurchaseRepository = (*MockPurchaseRepo)(nil)

func NewMockPurchaseRepo() *MockPurchaseRepo {
	return &MockPurchaseRepo{store: map[string]*model.UserPurchase{}}
}

func (m *MockPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.UserPurchase) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, p)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.IntentID] = &cp
	return nil
}

func (m *MockPurchaseRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.UserPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[intentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UserPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.UserPurchase
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPurchaseRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// ---- Mock SubscriptionPlanRepository ----

type MockPlanRepo struct {
	mu    sync.Mutex
	store map[string]*model.SubscriptionPlan
}

var _ repository.SubscriptionPlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{store: map[string]*model.SubscriptionPlan{}}
}

func (m *MockPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out, nil
}

func (m *MockPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Active = false
	return nil
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu    sync.Mutex
	store map[string]*model.UserSubscriptionPayment

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.UserSubscriptionPayment) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{store: map[string]*model.UserSubscriptionPayment{}}
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.UserSubscriptionPayment) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscriptionPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) FindByGatewaySubscriptionID(ctx context.Context, tx repository.Tx, gatewaySubID string) (*model.UserSubscriptionPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.store {
		if s.GatewaySubscriptionID == gatewaySubID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) UpdateStatusIfActive(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus, canceledAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok || s.Status != model.SubscriptionStatusActive {
		return false, nil
	}
	s.Status = status
	s.AutoRenew = false
	at := canceledAt
	s.CanceledAt = &at
	s.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockSubscriptionRepo) ExtendPeriod(ctx context.Context, tx repository.Tx, id string, periodEnd time.Time, gatewayInvoiceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.PeriodEnd = periodEnd
	s.GatewayInvoiceID = gatewayInvoiceID
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) SetGatewayRefundID(ctx context.Context, tx repository.Tx, id string, refundID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.GatewayRefundID = refundID
	return nil
}

func (m *MockSubscriptionRepo) Get(id string) *model.UserSubscriptionPayment {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *MockSubscriptionRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}

// ---- Mock RenewalRepository ----

type MockRenewalRepo struct {
	mu   sync.Mutex
	rows []*model.Renewal
}

var _ repository.RenewalRepository = (*MockRenewalRepo)(nil)

func NewMockRenewalRepo() *MockRenewalRepo {
	return &MockRenewalRepo{}
}

func (m *MockRenewalRepo) Save(ctx context.Context, tx repository.Tx, r *model.Renewal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *MockRenewalRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Renewal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Renewal
	for _, r := range m.rows {
		if r.SubscriptionID == subscriptionID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockRenewalRepo) FindLatestByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.Renewal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].GatewayInvoiceID == invoiceID {
			cp := *m.rows[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockRenewalRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *MockRenewalRepo) Last() *model.Renewal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil
	}
	cp := *m.rows[len(m.rows)-1]
	return &cp
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu    sync.Mutex
	store map[string]*model.User
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo() *MockUserRepo {
	return &MockUserRepo{store: map[string]*model.User{}}
}

func (m *MockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepo) SetGatewayCustomerID(ctx context.Context, tx repository.Tx, userID, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.GatewayCustomerID = customerID
	return nil
}

// ---- Mock OutboxRepository ----

type MockOutboxRepo struct {
	mu       sync.Mutex
	messages []*model.OutboxMessage

	EnqueueFunc func(ctx context.Context, tx repository.Tx, msg *model.OutboxMessage) error
}

var _ repository.OutboxRepository = (*MockOutboxRepo)(nil)

func NewMockOutboxRepo() *MockOutboxRepo {
	return &MockOutboxRepo{}
}

func (m *MockOutboxRepo) Enqueue(ctx context.Context, tx repository.Tx, msg *model.OutboxMessage) error {
	if m.EnqueueFunc != nil {
		return m.EnqueueFunc(ctx, tx, msg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *MockOutboxRepo) ClaimPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*model.OutboxMessage
	for _, msg := range m.messages {
		if msg.Status == model.OutboxStatusPending && !msg.NextAttemptAt.After(now) {
			cp := *msg
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MockOutboxRepo) MarkPublished(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = model.OutboxStatusPublished
			now := time.Now()
			msg.PublishedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *MockOutboxRepo) MarkFailed(ctx context.Context, tx repository.Tx, id string, nextAttemptAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Attempts++
			msg.NextAttemptAt = nextAttemptAt
			return nil
		}
	}
	return domain.ErrNotFound
}

// ByRoutingKey returns enqueued messages for one routing key, for assertions.
func (m *MockOutboxRepo) ByRoutingKey(key string) []*model.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OutboxMessage
	for _, msg := range m.messages {
		if msg.RoutingKey == key {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out
}

func (m *MockOutboxRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	NameVal string

	CreatePaymentIntentFunc    func(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntentResult, error)
	GetPaymentIntentStatusFunc func(ctx context.Context, intentID string) (adapter.IntentStatus, error)
	CreateSubscriptionFunc     func(ctx context.Context, customerID, priceID string, metadata map[string]string) (adapter.SubscriptionResult, error)
	CancelSubscriptionFunc     func(ctx context.Context, subscriptionID string) error
	CreateRefundFunc           func(ctx context.Context, invoiceID string, metadata map[string]string) (string, error)
	EnsureCustomerFunc         func(ctx context.Context, customerID, email string) (string, error)

	CancelCalls []string
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string {
	if m.NameVal == "" {
		return "mockpay"
	}
	return m.NameVal
}

func (m *MockPaymentGateway) CreatePaymentIntent(ctx context.Context, amount int64, currency string, metadata map[string]string) (adapter.PaymentIntentResult, error) {
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, amount, currency, metadata)
	}
	id := "pi_" + uuid.NewString()
	return adapter.PaymentIntentResult{IntentID: id, ClientSecret: id + "_secret"}, nil
}

func (m *MockPaymentGateway) GetPaymentIntentStatus(ctx context.Context, intentID string) (adapter.IntentStatus, error) {
	if m.GetPaymentIntentStatusFunc != nil {
		return m.GetPaymentIntentStatusFunc(ctx, intentID)
	}
	return adapter.IntentStatusProcessing, nil
}

func (m *MockPaymentGateway) CreateSubscription(ctx context.Context, customerID, priceID string, metadata map[string]string) (adapter.SubscriptionResult, error) {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, customerID, priceID, metadata)
	}
	id := "sub_" + uuid.NewString()
	now := time.Now()
	return adapter.SubscriptionResult{
		SubscriptionID: id,
		ClientSecret:   id + "_secret",
		PeriodStart:    now,
		PeriodEnd:      now.AddDate(0, 1, 0),
	}, nil
}

func (m *MockPaymentGateway) CancelSubscription(ctx context.Context, subscriptionID string) error {
	m.CancelCalls = append(m.CancelCalls, subscriptionID)
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

func (m *MockPaymentGateway) CreateRefund(ctx context.Context, invoiceID string, metadata map[string]string) (string, error) {
	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, invoiceID, metadata)
	}
	return "re_" + invoiceID, nil
}

func (m *MockPaymentGateway) EnsureCustomer(ctx context.Context, customerID, email string) (string, error) {
	if m.EnsureCustomerFunc != nil {
		return m.EnsureCustomerFunc(ctx, customerID, email)
	}
	if customerID != "" {
		return customerID, nil
	}
	return "cus_" + uuid.NewString(), nil
}

// ---- Mock CourseCatalog ----

type MockCourseCatalog struct {
	Courses map[string]adapter.CourseInfo

	PricesFunc func(ctx context.Context, courseIDs []string) ([]adapter.CourseInfo, error)
}

var _ adapter.CourseCatalog = (*MockCourseCatalog)(nil)

func (m *MockCourseCatalog) Prices(ctx context.Context, courseIDs []string) ([]adapter.CourseInfo, error) {
	if m.PricesFunc != nil {
		return m.PricesFunc(ctx, courseIDs)
	}
	var out []adapter.CourseInfo
	for _, id := range courseIDs {
		if c, ok := m.Courses[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

// WithTx runs the function immediately without a real transaction. Tests
// that need to simulate transactional failure assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
