package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/storeops/commerce-core/internal/domain"
	"github.com/storeops/commerce-core/internal/ledger"
	"github.com/storeops/commerce-core/internal/service"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

type Handler struct {
	orders   *service.OrderService
	refunds  *service.RefundService
	payments *service.PaymentService
	ledger   ledger.Ledger
}

func NewHandler(orders *service.OrderService, refunds *service.RefundService,
	payments *service.PaymentService, l ledger.Ledger) *Handler {
	return &Handler{orders: orders, refunds: refunds, payments: payments, ledger: l}
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/orders"))
	defer timer.ObserveDuration()

	var in service.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/orders")
		return
	}

	order, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/orders")
		return
	}
	h.respondJSON(w, http.StatusCreated, order, "POST", "/orders")
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, err, "GET", "/orders/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, order, "GET", "/orders/{id}")
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/orders/{id}/cancel"))
	defer timer.ObserveDuration()

	var body struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; an empty body is fine.
	json.NewDecoder(r.Body).Decode(&body)

	result, err := h.orders.CancelOrder(r.Context(), mux.Vars(r)["id"], body.Reason)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/orders/{id}/cancel")
		return
	}
	h.respondJSON(w, http.StatusOK, result, "POST", "/orders/{id}/cancel")
}

func (h *Handler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.CheckEligibility(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, err, "GET", "/orders/{id}/eligibility")
		return
	}
	h.respondJSON(w, http.StatusOK, res, "GET", "/orders/{id}/eligibility")
}

// UpdateOrderStatus is the unguarded admin write; CancelOrder is the
// guarded path. See the order service for the rationale.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "PUT", "/admin/orders/{id}/status")
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], domain.OrderStatus(body.Status), body.Notes)
	if err != nil {
		h.respondServiceError(w, err, "PUT", "/admin/orders/{id}/status")
		return
	}
	h.respondJSON(w, http.StatusOK, order, "PUT", "/admin/orders/{id}/status")
}

func (h *Handler) CreateReturnRequest(w http.ResponseWriter, r *http.Request) {
	var in service.CreateReturnInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/returns")
		return
	}

	req, err := h.refunds.CreateReturnRequest(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/returns")
		return
	}
	h.respondJSON(w, http.StatusCreated, req, "POST", "/returns")
}

func (h *Handler) UpdateReturnStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "PUT", "/admin/returns/{id}/status")
		return
	}

	req, err := h.refunds.UpdateReturnRequestStatus(r.Context(), mux.Vars(r)["id"], domain.ReturnStatus(body.Status), body.Notes)
	if err != nil {
		h.respondServiceError(w, err, "PUT", "/admin/returns/{id}/status")
		return
	}
	h.respondJSON(w, http.StatusOK, req, "PUT", "/admin/returns/{id}/status")
}

func (h *Handler) ListUnsettledRefunds(w http.ResponseWriter, r *http.Request) {
	report, err := h.refunds.Unsettled(r.Context())
	if err != nil {
		h.respondServiceError(w, err, "GET", "/admin/refunds/unsettled")
		return
	}
	h.respondJSON(w, http.StatusOK, report, "GET", "/admin/refunds/unsettled")
}

func (h *Handler) SettleRefund(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ActorID string `json:"actor_id"`
	}
	json.NewDecoder(r.Body).Decode(&body)

	res, err := h.refunds.Settle(r.Context(), mux.Vars(r)["id"], body.ActorID)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/admin/refunds/{id}/settle")
		return
	}
	h.respondJSON(w, http.StatusOK, res, "POST", "/admin/refunds/{id}/settle")
}

func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing X-User-ID header", "GET", "/wallet")
		return
	}

	wallet, err := h.ledger.GetWallet(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/wallet")
		return
	}
	h.respondJSON(w, http.StatusOK, wallet, "GET", "/wallet")
}

func (h *Handler) ListWalletTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing X-User-ID header", "GET", "/wallet/transactions")
		return
	}

	wallet, err := h.ledger.GetWallet(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/wallet/transactions")
		return
	}
	entries, err := h.ledger.ListTransactions(r.Context(), wallet.ID)
	if err != nil {
		h.respondServiceError(w, err, "GET", "/wallet/transactions")
		return
	}
	h.respondJSON(w, http.StatusOK, entries, "GET", "/wallet/transactions")
}

func (h *Handler) WalletDebit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID  string          `json:"user_id"`
		OrderID string          `json:"order_id"`
		Amount  decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/wallet/debit")
		return
	}

	res, err := h.payments.PayWithWallet(r.Context(), body.UserID, body.OrderID, body.Amount)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/wallet/debit")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"transaction_id": res.TransactionID,
		"new_balance":    res.NewBalance,
	}, "POST", "/wallet/debit")
}

func (h *Handler) CreateRecharge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID         string          `json:"user_id"`
		Amount         decimal.Decimal `json:"amount"`
		GatewayOrderID string          `json:"gateway_order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/wallet/recharge")
		return
	}

	req, err := h.payments.CreateRechargeRequest(r.Context(), body.UserID, body.Amount, body.GatewayOrderID)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/wallet/recharge")
		return
	}
	h.respondJSON(w, http.StatusCreated, req, "POST", "/wallet/recharge")
}

func (h *Handler) VerifyRecharge(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/wallet/recharge/verify"))
	defer timer.ObserveDuration()

	var in service.VerifyRechargeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", "POST", "/wallet/recharge/verify")
		return
	}

	res, err := h.payments.VerifyAndCredit(r.Context(), in)
	if err != nil {
		h.respondServiceError(w, err, "POST", "/wallet/recharge/verify")
		return
	}
	h.respondJSON(w, http.StatusOK, res, "POST", "/wallet/recharge/verify")
}

// GatewayWebhook always answers 200: the gateway retries on anything
// else, and the crediting path is idempotent.
func (h *Handler) GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "POST", "/webhooks/gateway")
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), body, r.Header.Get("X-Gateway-Signature")); err != nil {
		h.respondError(w, http.StatusInternalServerError, "Webhook processing failed", "POST", "/webhooks/gateway")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "POST", "/webhooks/gateway")
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// Helpers

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, method, endpoint string) {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrSignatureMismatch):
		h.respondError(w, http.StatusBadRequest, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err.Error(), method, endpoint)
	case errors.Is(err, domain.ErrConflict):
		h.respondError(w, http.StatusConflict, err.Error(), method, endpoint)
	default:
		h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
