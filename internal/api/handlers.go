package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/httputil"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
)

// Handlers serves the import endpoints.
type Handlers struct {
	imports *imports.Service
}

func NewHandlers(svc *imports.Service) *Handlers {
	return &Handlers{imports: svc}
}

// CreateImport issues an upload slot.
//
//	POST /api/imports {companyId|clientId, importType, filename}
func (h *Handlers) CreateImport(w http.ResponseWriter, r *http.Request) {
	var in imports.UploadInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	if admin, ok := AdminFromContext(r.Context()); ok {
		in.UploadedBy = admin.UID
	}

	slot, err := h.imports.CreateUpload(r.Context(), in)
	if err != nil {
		respondError(w, "", err)
		return
	}
	httputil.Created(w, slot)
}

// AnalyzeImport suggests a column mapping for the uploaded file.
//
//	POST /api/imports/{id}/analyze
func (h *Handlers) AnalyzeImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.imports.Analyze(r.Context(), id)
	if err != nil {
		respondError(w, id, err)
		return
	}
	httputil.OK(w, res)
}

type commitRequest struct {
	Mapping map[string]string `json:"mapping"`
}

// CommitImport stores the confirmed mapping and schedules materialization.
//
//	POST /api/imports/{id}/commit {mapping}
func (h *Handlers) CommitImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req commitRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.imports.Commit(r.Context(), id, req.Mapping); err != nil {
		respondError(w, id, err)
		return
	}
	httputil.OK(w, map[string]bool{"ok": true})
}

// GetImport returns the import record for status polling.
//
//	GET /api/imports/{id}
func (h *Handlers) GetImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	imp, err := h.imports.Get(r.Context(), id)
	if err != nil {
		respondError(w, id, err)
		return
	}
	httputil.OK(w, imp)
}
