package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public surface: login and health are open, everything
// under /api/v1 requires a verified caller.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(Instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/login", h.Login).Methods("POST")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.Use(RequireAuth(h.auth))
	apiV1.HandleFunc("/accounts/{userID}", h.GetAccounts).Methods("GET")
	apiV1.HandleFunc("/transactions/{userID}", h.GetTransactions).Methods("GET")
	apiV1.HandleFunc("/send", h.Send).Methods("POST")
	apiV1.HandleFunc("/withdraw", h.Withdraw).Methods("POST")

	return r
}
