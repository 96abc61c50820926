package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
)

// ListRules handles GET /api/rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleSet, err := h.svc.Rules(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"rules": ruleSet,
		"count": len(ruleSet),
	})
}

// AddRule handles POST /api/rules.
func (h *Handler) AddRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.ImportRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(rule.Conditions) == 0 || len(rule.Actions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "conditions and actions are required")
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	created, err := h.svc.AddRule(r.Context(), rule)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, created)
}

// UpdateRule handles PATCH /api/rules/{id}.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Name       *string             `json:"name"`
		Priority   *int                `json:"priority"`
		Enabled    *bool               `json:"enabled"`
		Conditions *[]domain.Condition `json:"conditions"`
		Actions    *[]domain.Action    `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.svc.UpdateRule(r.Context(), mux.Vars(r)["id"], prefs.RulePatch{
		Name:       patch.Name,
		Priority:   patch.Priority,
		Enabled:    patch.Enabled,
		Conditions: patch.Conditions,
		Actions:    patch.Actions,
	})
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRule handles DELETE /api/rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRule(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
