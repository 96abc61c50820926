package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
)

// ListAccounts handles GET /api/accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.svc.Accounts(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// CreateAccount handles POST /api/accounts.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var acc ledger.Account
	if err := json.NewDecoder(r.Body).Decode(&acc); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if acc.Name == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}

	created, err := h.svc.CreateAccount(r.Context(), acc)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// ListTransactions handles GET /api/transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TransactionFilter{AccountID: r.URL.Query().Get("account_id")}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "since must be YYYY-MM-DD")
			return
		}
		filter.Since = t
	}
	if until := r.URL.Query().Get("until"); until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "until must be YYYY-MM-DD")
			return
		}
		filter.Until = t
	}

	txs, err := h.svc.Transactions(r.Context(), filter)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// CorrectCategory handles POST /api/transactions/{id}/category. The
// correction feeds rule learning; a learned rule is included in the
// response when one was created.
func (h *Handler) CorrectCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"account_id"`
		Category  string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.Category == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id and category are required")
		return
	}

	learned, err := h.svc.CorrectCategory(r.Context(), req.AccountID, mux.Vars(r)["id"], req.Category)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	resp := map[string]interface{}{"updated": true}
	if learned != nil {
		resp["learned_rule"] = learned
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}
