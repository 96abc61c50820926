package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/ledgerflow/ledgerflow/internal/api/middleware"
	"github.com/ledgerflow/ledgerflow/internal/jobs"
	"github.com/ledgerflow/ledgerflow/internal/provider"
	"github.com/ledgerflow/ledgerflow/internal/service"
)

const multipartMemoryLimit = 8 << 20

// ImportFile handles POST /api/import. The multipart form carries the
// file plus account_id, optional source_tag and negate_amounts fields.
func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	file, opts, ok := h.readImportForm(w, r)
	if !ok {
		return
	}

	result, err := h.svc.ImportFile(r.Context(), file, opts)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// ImportFileAsync handles POST /api/import/async: the document is
// archived and a job is queued, the response carries the job ID.
func (h *Handler) ImportFileAsync(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil || h.docs == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "async import is not enabled")
		return
	}
	file, opts, ok := h.readImportForm(w, r)
	if !ok {
		return
	}

	uri, err := h.docs.Archive(r.Context(), file.Name, file.Data)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	job := &jobs.ImportDocumentJob{
		DocURI:        uri,
		FileName:      file.Name,
		MIME:          file.MIME,
		AccountID:     opts.AccountID,
		SourceTag:     opts.SourceTag,
		NegateAmounts: opts.NegateAmounts,
	}
	if err := h.publisher.PublishImport(r.Context(), job); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.log.Info().Str("job", job.JobID).Str("file", file.Name).Msg("import job queued")
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"job_id": job.JobID})
}

// GetJob handles GET /api/jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobStore == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "async import is not enabled")
		return
	}
	job, err := h.jobStore.GetJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) readImportForm(w http.ResponseWriter, r *http.Request) (provider.File, service.ImportOptions, bool) {
	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid multipart form")
		return provider.File{}, service.ImportOptions{}, false
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "file field is required")
		return provider.File{}, service.ImportOptions{}, false
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "reading upload failed")
		return provider.File{}, service.ImportOptions{}, false
	}

	accountID := r.FormValue("account_id")
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "account_id is required")
		return provider.File{}, service.ImportOptions{}, false
	}
	negate, _ := strconv.ParseBool(r.FormValue("negate_amounts"))

	file := provider.File{
		Name: header.Filename,
		MIME: header.Header.Get("Content-Type"),
		Data: data,
	}
	opts := service.ImportOptions{
		AccountID:     accountID,
		SourceTag:     r.FormValue("source_tag"),
		NegateAmounts: negate,
	}
	return file, opts, true
}
