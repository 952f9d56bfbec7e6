package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/httputil"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
)

// TemplateHandler serves blank import templates built from the active
// schema.
type TemplateHandler struct {
	schemas *schema.Registry
}

func NewTemplateHandler(schemas *schema.Registry) *TemplateHandler {
	return &TemplateHandler{schemas: schemas}
}

// HandleDownloadTemplate returns an .xlsx whose only row holds the canonical
// field names, required fields first.
//
//	GET /api/templates?clientId=&type=
func (t *TemplateHandler) HandleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tenant := strings.TrimSpace(q.Get("clientId"))
	if tenant == "" {
		tenant = strings.TrimSpace(q.Get("companyId"))
	}
	importType := strings.TrimSpace(q.Get("type"))
	if tenant == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", "clientId is required", map[string]string{"field": "clientId"})
		return
	}
	if importType == "" {
		httputil.ErrorWithCode(w, http.StatusBadRequest, "invalid_input", "type is required", map[string]string{"field": "type"})
		return
	}

	s, err := t.schemas.ForTenant(r.Context(), tenant, importType)
	if err != nil {
		respondError(w, "", err)
		return
	}
	data, err := sheet.Template(s.TemplateHeaders())
	if err != nil {
		httputil.InternalError(w, fmt.Errorf("build template: %w", err))
		return
	}
	httputil.Attachment(w, sheet.ContentType, fmt.Sprintf("%s-v%d.xlsx", importType, s.Version), data)
}
