// Package handlers implements the HTTP endpoints of the ingestion API.
package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
	"github.com/ledgerflow/ledgerflow/internal/docstore"
	"github.com/ledgerflow/ledgerflow/internal/domain"
	"github.com/ledgerflow/ledgerflow/internal/jobs"
	"github.com/ledgerflow/ledgerflow/internal/ledger"
	"github.com/ledgerflow/ledgerflow/internal/logger"
	"github.com/ledgerflow/ledgerflow/internal/prefs"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

// Handler bundles the endpoint set over the service facade. Publisher,
// job store and docs are only needed by the async import path and may be
// nil when it is disabled.
type Handler struct {
	svc       *service.Service
	publisher jobs.Publisher
	jobStore  jobs.Store
	docs      docstore.Store
	log       zerolog.Logger
}

func New(svc *service.Service, publisher jobs.Publisher, jobStore jobs.Store, docs docstore.Store, log zerolog.Logger) *Handler {
	return &Handler{
		svc:       svc,
		publisher: publisher,
		jobStore:  jobStore,
		docs:      docs,
		log:       logger.Component(log, "api"),
	}
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeFailure maps the error taxonomy onto HTTP statuses. Unexpected
// failures log through the request-scoped logger so the entry carries the
// request ID.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *domain.ValidationError
		config     *domain.ConfigurationError
		auth       *domain.AuthError
		upstream   *domain.UpstreamError
		rate       *domain.RateLimitedError
	)
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, prefs.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation), errors.As(err, &config):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &rate):
		middleware.WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &auth), errors.As(err, &upstream):
		middleware.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
