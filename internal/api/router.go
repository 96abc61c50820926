// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/api/handlers"
	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
)

// NewRouter wires the endpoint set and the middleware chain.
func NewRouter(h *handlers.Handler, log zerolog.Logger) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	api.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	api.HandleFunc("/transactions", h.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id}/category", h.CorrectCategory).Methods(http.MethodPost)

	api.HandleFunc("/import", h.ImportFile).Methods(http.MethodPost)
	api.HandleFunc("/import/async", h.ImportFileAsync).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet)

	api.HandleFunc("/connections", h.ListConnections).Methods(http.MethodGet)
	api.HandleFunc("/connections", h.AddConnection).Methods(http.MethodPost)
	api.HandleFunc("/connections/{id}", h.RemoveConnection).Methods(http.MethodDelete)
	api.HandleFunc("/connections/{id}/sync", h.SyncConnection).Methods(http.MethodPost)
	api.HandleFunc("/sync", h.SyncAll).Methods(http.MethodPost)

	api.HandleFunc("/rules", h.ListRules).Methods(http.MethodGet)
	api.HandleFunc("/rules", h.AddRule).Methods(http.MethodPost)
	api.HandleFunc("/rules/{id}", h.UpdateRule).Methods(http.MethodPatch)
	api.HandleFunc("/rules/{id}", h.DeleteRule).Methods(http.MethodDelete)

	var chain http.Handler = r
	chain = middleware.Logger(log)(chain)
	chain = middleware.CORS(chain)
	chain = middleware.RequestID(log)(chain)
	chain = middleware.Recovery(log)(chain)
	return chain
}
