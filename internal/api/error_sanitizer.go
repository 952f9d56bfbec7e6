package api

import (
	"errors"
	"net/http"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/httputil"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

// respondError maps service errors to status codes. Input and not-found
// errors carry enough detail to act on; 5xx responses never include the
// internal error text.
func respondError(w http.ResponseWriter, importID string, err error) {
	var inputErr *imports.InputError
	var upstreamErr *imports.UpstreamError

	switch {
	case errors.As(err, &inputErr):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", inputErr.Message,
			map[string]string{"field": inputErr.Field})
	case errors.Is(err, imports.ErrInvalidInput):
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, imports.ErrImportNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, "import_not_found", "import not found",
			map[string]string{"importId": importID})
	case errors.Is(err, schema.ErrSchemaNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, "schema_not_found", "no active schema for import type", nil)
	case errors.Is(err, storage.ErrObjectNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, "file_not_found", "uploaded file not found",
			map[string]string{"importId": importID})
	case errors.As(err, &upstreamErr):
		httputil.BadGateway(w, err, "storage or queue unavailable, retry the request")
	default:
		httputil.InternalError(w, err)
	}
}
