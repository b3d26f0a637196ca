//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"lms-payments/internal/config"
	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/usecase"
)

// ---- stub use cases ----

type stubPurchaseUC struct {
	initiateRes *usecase.InitiatedPurchase
	initiateErr error
}

func (s *stubPurchaseUC) Initiate(ctx context.Context, userID string, courseIDs []string) (*usecase.InitiatedPurchase, error) {
	return s.initiateRes, s.initiateErr
}
func (s *stubPurchaseUC) Commit(ctx context.Context, intentID string) error { return nil }
func (s *stubPurchaseUC) Abort(ctx context.Context, intentID string) error  { return nil }

type stubSubscriptionUC struct {
	createRes *usecase.InitiatedSubscription
	createErr error
	cancelErr error
	refundErr error
}

func (s *stubSubscriptionUC) Create(ctx context.Context, userID, planID string) (*usecase.InitiatedSubscription, error) {
	return s.createRes, s.createErr
}
func (s *stubSubscriptionUC) Cancel(ctx context.Context, subscriptionID, userID string) error {
	return s.cancelErr
}
func (s *stubSubscriptionUC) Refund(ctx context.Context, subscriptionID, userID string) error {
	return s.refundErr
}
func (s *stubSubscriptionUC) ActivateOrRenew(ctx context.Context, inv *model.InvoiceEvent) error {
	return nil
}
func (s *stubSubscriptionUC) RecordInvoiceFailure(ctx context.Context, inv *model.InvoiceEvent) error {
	return nil
}
func (s *stubSubscriptionUC) HandleSubscriptionDeleted(ctx context.Context, gatewaySubID string, canceledAt time.Time) error {
	return nil
}

type stubWebhookUC struct {
	handleErr error
	handled   []*model.GatewayEvent
}

func (s *stubWebhookUC) Handle(ctx context.Context, ev *model.GatewayEvent) error {
	s.handled = append(s.handled, ev)
	return s.handleErr
}

type stubRevenueUC struct {
	summary *usecase.RevenueSummary
	err     error
}

func (s *stubRevenueUC) Summary(ctx context.Context) (*usecase.RevenueSummary, error) {
	return s.summary, s.err
}

type stubDecoder struct {
	event *model.GatewayEvent
	err   error
}

func (s *stubDecoder) DecodeEvent(payload []byte, signatureHeader string) (*model.GatewayEvent, error) {
	return s.event, s.err
}

type stubPlanRepo struct{ plans []*model.SubscriptionPlan }

func (s *stubPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	return nil
}
func (s *stubPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	return nil, domain.ErrNotFound
}
func (s *stubPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	return s.plans, nil
}
func (s *stubPlanRepo) Deactivate(ctx context.Context, tx repository.Tx, id string) error {
	return nil
}

type stubPurchaseRepo struct{ purchases []*model.UserPurchase }

func (s *stubPurchaseRepo) Save(ctx context.Context, tx repository.Tx, p *model.UserPurchase) error {
	return nil
}
func (s *stubPurchaseRepo) FindByIntentID(ctx context.Context, tx repository.Tx, intentID string) (*model.UserPurchase, error) {
	for _, p := range s.purchases {
		if p.IntentID == intentID {
			return p, nil
		}
	}
	return nil, domain.ErrNotFound
}
func (s *stubPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.UserPurchase, error) {
	return s.purchases, nil
}

type stubRenewalRepo struct{ renewals []*model.Renewal }

func (s *stubRenewalRepo) Save(ctx context.Context, tx repository.Tx, r *model.Renewal) error {
	return nil
}
func (s *stubRenewalRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Renewal, error) {
	var out []*model.Renewal
	for _, r := range s.renewals {
		if r.SubscriptionID == subscriptionID {
			out = append(out, r)
		}
	}
	return out, nil
}
func (s *stubRenewalRepo) FindLatestByInvoiceID(ctx context.Context, tx repository.Tx, invoiceID string) (*model.Renewal, error) {
	return nil, domain.ErrNotFound
}

type serverDeps struct {
	purchase     *stubPurchaseUC
	subscription *stubSubscriptionUC
	webhook      *stubWebhookUC
	revenue      *stubRevenueUC
	decoder      *stubDecoder
	plans        *stubPlanRepo
	purchases    *stubPurchaseRepo
	renewals     *stubRenewalRepo
}

func newTestServer(deps *serverDeps) *Server {
	cfg := &config.Config{}
	cfg.HTTP.Port = 0
	cfg.Admin.JWTSecret = "test-secret"
	logger := zerolog.New(io.Discard)
	return NewServer(cfg,
		deps.purchase, deps.subscription, deps.webhook, deps.revenue,
		deps.decoder, deps.plans, deps.purchases, deps.renewals, &logger)
}

func newDeps() *serverDeps {
	return &serverDeps{
		purchase:     &stubPurchaseUC{initiateRes: &usecase.InitiatedPurchase{TransactionID: "tx-1", IntentID: "pi_1", ClientSecret: "pi_1_secret"}},
		subscription: &stubSubscriptionUC{createRes: &usecase.InitiatedSubscription{TransactionID: "tx-2", GatewaySubscriptionID: "sub_1", ClientSecret: "sec"}},
		webhook:      &stubWebhookUC{},
		revenue:      &stubRevenueUC{summary: &usecase.RevenueSummary{Income: 100, Net: 100, CutRate: 0.2}},
		decoder:      &stubDecoder{event: &model.GatewayEvent{ID: "evt-1", Kind: model.EventKindUnhandled}},
		plans:        &stubPlanRepo{},
		purchases:    &stubPurchaseRepo{},
		renewals:     &stubRenewalRepo{},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Purchases(t *testing.T) {
	t.Run("should return the client secret on success", func(t *testing.T) {
		deps := newDeps()
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/purchases", purchaseRequest{UserID: "user-1", CourseIDs: []string{"c1"}})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		var body struct {
			ClientSecret string `json:"client_secret"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.ClientSecret != "pi_1_secret" {
			t.Errorf("expected client secret, got %q", body.ClientSecret)
		}
	})

	t.Run("should map upstream failures to 502", func(t *testing.T) {
		deps := newDeps()
		deps.purchase.initiateErr = domain.ErrCatalogUnavailable
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/purchases", purchaseRequest{UserID: "user-1", CourseIDs: []string{"c1"}})
		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("should map invalid input to 400", func(t *testing.T) {
		deps := newDeps()
		deps.purchase.initiateErr = domain.ErrInvalidArgument
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/purchases", purchaseRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

func TestServer_Subscriptions(t *testing.T) {
	t.Run("should cancel with 204", func(t *testing.T) {
		deps := newDeps()
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/cancel", subscriptionActionRequest{UserID: "user-1"})
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected 204, got %d", rec.Code)
		}
	})

	t.Run("should map an expired refund window to 409", func(t *testing.T) {
		deps := newDeps()
		deps.subscription.refundErr = domain.ErrRefundWindowExpired
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/refund", subscriptionActionRequest{UserID: "user-1"})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("should map foreign subscriptions to 404", func(t *testing.T) {
		deps := newDeps()
		deps.subscription.cancelErr = domain.ErrNotFound
		h := newTestServer(deps).Routes()

		rec := doJSON(t, h, http.MethodPost, "/api/v1/subscriptions/sub-1/cancel", subscriptionActionRequest{UserID: "user-2"})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestServer_Webhook(t *testing.T) {
	t.Run("should reject a bad signature with 400", func(t *testing.T) {
		deps := newDeps()
		deps.decoder.err = domain.ErrSignatureInvalid
		h := newTestServer(deps).Routes()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=bad")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if len(deps.webhook.handled) != 0 {
			t.Error("an unverified event must never reach the dispatcher")
		}
	})

	t.Run("should acknowledge verified events", func(t *testing.T) {
		deps := newDeps()
		h := newTestServer(deps).Routes()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if len(deps.webhook.handled) != 1 {
			t.Errorf("expected the event to reach the dispatcher")
		}
	})

	t.Run("should still acknowledge when handling fails internally", func(t *testing.T) {
		deps := newDeps()
		deps.webhook.handleErr = domain.ErrOperationFailed
		h := newTestServer(deps).Routes()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhook", bytes.NewBufferString(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 so the gateway stops redelivering, got %d", rec.Code)
		}
	})
}

func TestServer_AdminRevenue(t *testing.T) {
	t.Run("should reject without a token", func(t *testing.T) {
		deps := newDeps()
		h := newTestServer(deps).Routes()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/revenue", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should reject a forged token", func(t *testing.T) {
		deps := newDeps()
		h := newTestServer(deps).Routes()

		other := newAdminAuth("other-secret")
		token, err := other.IssueToken("admin", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/revenue", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("should serve the summary with a valid token", func(t *testing.T) {
		deps := newDeps()
		srv := newTestServer(deps)
		h := srv.Routes()

		token, err := srv.auth.IssueToken("admin", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/revenue", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body usecase.RevenueSummary
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Income != 100 {
			t.Errorf("expected income 100, got %d", body.Income)
		}
	})
}

func TestServer_AdminLookups(t *testing.T) {
	adminGet := func(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
		t.Helper()
		token, err := srv.auth.IssueToken("admin", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		srv.Routes().ServeHTTP(rec, req)
		return rec
	}

	t.Run("should resolve a purchase from its intent id", func(t *testing.T) {
		deps := newDeps()
		deps.purchases.purchases = []*model.UserPurchase{
			{ID: "p-1", UserID: "user-1", TransactionID: "tx-1", IntentID: "pi_1", Total: 8000},
		}
		srv := newTestServer(deps)

		rec := adminGet(t, srv, "/api/v1/admin/purchases/pi_1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body model.UserPurchase
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.ID != "p-1" || body.Total != 8000 {
			t.Errorf("expected purchase p-1 with total 8000, got %+v", body)
		}
	})

	t.Run("should return 404 for an unknown intent", func(t *testing.T) {
		deps := newDeps()
		srv := newTestServer(deps)

		rec := adminGet(t, srv, "/api/v1/admin/purchases/pi_missing")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("should list the renewal history of a subscription", func(t *testing.T) {
		deps := newDeps()
		deps.renewals.renewals = []*model.Renewal{
			{ID: "r-1", SubscriptionID: "sub-1", Status: model.RenewalStatusSuccess},
			{ID: "r-2", SubscriptionID: "sub-1", Status: model.RenewalStatusFailed, RetryCount: 2},
			{ID: "r-3", SubscriptionID: "sub-2", Status: model.RenewalStatusSuccess},
		}
		srv := newTestServer(deps)

		rec := adminGet(t, srv, "/api/v1/admin/subscriptions/sub-1/renewals")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body []model.Renewal
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if len(body) != 2 {
			t.Errorf("expected 2 renewals for sub-1, got %d", len(body))
		}
	})

	t.Run("should serve an empty renewal list not null", func(t *testing.T) {
		deps := newDeps()
		srv := newTestServer(deps)

		rec := adminGet(t, srv, "/api/v1/admin/subscriptions/sub-1/renewals")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Body.String(); got == "null\n" {
			t.Error("expected an empty JSON array, got null")
		}
	})
}

func TestServer_Health(t *testing.T) {
	deps := newDeps()
	h := newTestServer(deps).Routes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
