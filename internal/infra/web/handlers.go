package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lms-payments/internal/domain"
	"lms-payments/internal/domain/model"
)

// maxWebhookBody bounds webhook payloads; Stripe events are far smaller.
const maxWebhookBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes. Internal detail
// never leaks; the body carries a stable label.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var label string
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status, label = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, domain.ErrNotFound):
		status, label = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidState):
		status, label = http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrRefundWindowExpired):
		status, label = http.StatusConflict, "refund_window_expired"
	case errors.Is(err, domain.ErrGatewayUnavailable), errors.Is(err, domain.ErrCatalogUnavailable):
		status, label = http.StatusBadGateway, "upstream_unavailable"
	default:
		status, label = http.StatusInternalServerError, "internal"
	}
	if status >= 500 || status == http.StatusBadGateway {
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: label})
}

type purchaseRequest struct {
	UserID    string   `json:"user_id"`
	CourseIDs []string `json:"course_ids"`
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	res, err := s.purchaseUC.Initiate(r.Context(), req.UserID, req.CourseIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		TransactionID string `json:"transaction_id"`
		IntentID      string `json:"intent_id"`
		ClientSecret  string `json:"client_secret"`
	}{res.TransactionID, res.IntentID, res.ClientSecret})
}

type subscriptionRequest struct {
	UserID string `json:"user_id"`
	PlanID string `json:"plan_id"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	res, err := s.subscriptionUC.Create(r.Context(), req.UserID, req.PlanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		TransactionID         string `json:"transaction_id"`
		GatewaySubscriptionID string `json:"gateway_subscription_id"`
		ClientSecret          string `json:"client_secret"`
	}{res.TransactionID, res.GatewaySubscriptionID, res.ClientSecret})
}

type subscriptionActionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}
	if err := s.subscriptionUC.Cancel(r.Context(), chi.URLParam(r, "id"), req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefundSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptionActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}
	if err := s.subscriptionUC.Refund(r.Context(), chi.URLParam(r, "id"), req.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListActive(r.Context(), nil)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// handleWebhook verifies, decodes and dispatches one gateway event. Only a
// bad signature earns a 400; anything past verification is acknowledged with
// 200 so the gateway stops redelivering, and internal trouble is logged.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_body"})
		return
	}

	ev, err := s.decoder.DecodeEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureInvalid) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_signature"})
			return
		}
		s.log.Error().Err(err).Msg("webhook decode failed")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_event"})
		return
	}

	if err := s.webhookUC.Handle(r.Context(), ev); err != nil {
		// The handlers are idempotent, so a redelivery after this 200 would
		// not double-apply; retrying a persistent internal failure from the
		// gateway side buys nothing.
		s.log.Error().Err(err).Str("event_id", ev.ID).Str("event_kind", string(ev.Kind)).
			Msg("webhook handling failed")
	}
	writeJSON(w, http.StatusOK, struct {
		Received bool `json:"received"`
	}{true})
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	sum, err := s.revenueUC.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleUserPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.purchases.ListByUser(r.Context(), nil, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if purchases == nil {
		purchases = []*model.UserPurchase{}
	}
	writeJSON(w, http.StatusOK, purchases)
}

// handlePurchaseByIntent resolves a committed purchase from its gateway
// intent id. Support tooling starts from the intent, since that is what
// gateway dashboards and webhook logs reference.
func (s *Server) handlePurchaseByIntent(w http.ResponseWriter, r *http.Request) {
	purchase, err := s.purchases.FindByIntentID(r.Context(), nil, chi.URLParam(r, "intentID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, purchase)
}

func (s *Server) handleSubscriptionRenewals(w http.ResponseWriter, r *http.Request) {
	renewals, err := s.renewals.ListBySubscription(r.Context(), nil, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if renewals == nil {
		renewals = []*model.Renewal{}
	}
	writeJSON(w, http.StatusOK, renewals)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}
