package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes wires every endpoint. Authentication/session handling sits in
// front of this router and is out of scope here; admin routes are
// expected to be guarded upstream.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/orders", h.PlaceOrder).Methods("POST")
	v1.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	v1.HandleFunc("/orders/{id}/cancel", h.CancelOrder).Methods("POST")
	v1.HandleFunc("/orders/{id}/eligibility", h.CheckEligibility).Methods("GET")

	v1.HandleFunc("/returns", h.CreateReturnRequest).Methods("POST")

	v1.HandleFunc("/wallet", h.GetWallet).Methods("GET")
	v1.HandleFunc("/wallet/transactions", h.ListWalletTransactions).Methods("GET")
	v1.HandleFunc("/wallet/debit", h.WalletDebit).Methods("POST")
	v1.HandleFunc("/wallet/recharge", h.CreateRecharge).Methods("POST")
	v1.HandleFunc("/wallet/recharge/verify", h.VerifyRecharge).Methods("POST")

	v1.HandleFunc("/webhooks/gateway", h.GatewayWebhook).Methods("POST")

	admin := v1.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders/{id}/status", h.UpdateOrderStatus).Methods("PUT")
	admin.HandleFunc("/returns/{id}/status", h.UpdateReturnStatus).Methods("PUT")
	admin.HandleFunc("/refunds/unsettled", h.ListUnsettledRefunds).Methods("GET")
	admin.HandleFunc("/refunds/{id}/settle", h.SettleRefund).Methods("POST")

	return r
}
