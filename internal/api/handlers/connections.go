package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
	"github.com/ledgerflow/ledgerflow/internal/domain"
)

// ListConnections handles GET /api/connections.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.svc.Connections(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"connections": conns,
		"count":       len(conns),
	})
}

// AddConnection handles POST /api/connections.
func (h *Handler) AddConnection(w http.ResponseWriter, r *http.Request) {
	var conn domain.Connection
	if err := json.NewDecoder(r.Body).Decode(&conn); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if conn.LedgerAccountID == "" || conn.ProviderKind == "" {
		middleware.WriteError(w, http.StatusBadRequest, "ledger_account_id and provider_kind are required")
		return
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}

	created, err := h.svc.AddConnection(r.Context(), conn)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// RemoveConnection handles DELETE /api/connections/{id}.
func (h *Handler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveConnection(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncConnection handles POST /api/connections/{id}/sync.
func (h *Handler) SyncConnection(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SyncConnection(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// SyncAll handles POST /api/sync.
func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.svc.SyncAll(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}
