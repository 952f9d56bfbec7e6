package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/logger"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/metrics"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

var log = logger.Named("imports")

// Service implements the upload, analyze and commit operations.
// All public methods are safe for concurrent use if the underlying
// repository, gateway and publisher are.
type Service struct {
	repo         Repository
	schemas      *schema.Registry
	store        storage.Gateway
	publisher    queue.Publisher
	metrics      *metrics.Recorder
	previewLimit int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records pipeline counters on m.
func WithMetrics(m *metrics.Recorder) Option { return func(s *Service) { s.metrics = m } }

// WithPreviewLimit overrides the number of preview rows analyze returns.
func WithPreviewLimit(n int) Option { return func(s *Service) { s.previewLimit = n } }

// NewService creates an imports service.
func NewService(repo Repository, schemas *schema.Registry, store storage.Gateway, publisher queue.Publisher, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		schemas:      schemas,
		store:        store,
		publisher:    publisher,
		previewLimit: DefaultPreviewLimit,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// UploadInput holds the fields for requesting an upload slot.
type UploadInput struct {
	TenantID   string `json:"companyId"`
	ClientID   string `json:"clientId"`
	ImportType string `json:"importType"`
	Filename   string `json:"filename"`
	UploadedBy string `json:"-"`
}

// Tenant returns companyId, falling back to clientId.
func (in UploadInput) Tenant() string {
	return strings.TrimSpace(lo.Ternary(in.TenantID != "", in.TenantID, in.ClientID))
}

// validTenantID reports whether id is safe as one object key segment.
func validTenantID(id string) bool {
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

// UploadSlot is returned to the client, which PUTs the file to UploadURL.
type UploadSlot struct {
	ImportID  string `json:"importId"`
	UploadURL string `json:"uploadUrl"`
}

// CreateUpload validates the request, issues a signed upload URL and records
// the import as UPLOADED with the schema version active at creation.
func (s *Service) CreateUpload(ctx context.Context, in UploadInput) (*UploadSlot, error) {
	tenant := in.Tenant()
	in.ImportType = strings.TrimSpace(in.ImportType)
	switch {
	case tenant == "":
		return nil, invalid("companyId", "companyId or clientId is required")
	case !validTenantID(tenant):
		return nil, invalid("companyId", "companyId must not contain path separators or \"..\"")
	case in.ImportType == "":
		return nil, invalid("importType", "importType is required")
	case strings.TrimSpace(in.Filename) == "":
		return nil, invalid("filename", "filename is required")
	case !strings.EqualFold(path.Ext(in.Filename), sheet.Extension):
		return nil, invalid("filename", "only %s files are accepted", sheet.Extension)
	case strings.TrimSpace(in.UploadedBy) == "":
		return nil, invalid("uid", "uploader identity is required")
	}

	sc, err := s.schemas.ForTenant(ctx, tenant, in.ImportType)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", in.ImportType, err)
	}

	id := uuid.New().String()
	objectPath := storage.ObjectPath(tenant, id, in.Filename)
	url, err := s.store.CreateUploadSlot(ctx, objectPath, sheet.ContentType)
	if err != nil {
		return nil, &UpstreamError{Op: "create upload slot", Err: err}
	}

	imp := &domain.Import{
		ID:               id,
		TenantID:         tenant,
		ImportType:       in.ImportType,
		SchemaVersion:    sc.Version,
		UploadedBy:       in.UploadedBy,
		OriginalFilename: path.Base(objectPath),
		StorageURI:       s.store.URI(objectPath),
		Status:           domain.ImportUploaded,
		Summary:          json.RawMessage(`{}`),
	}
	if err := s.repo.Create(ctx, imp); err != nil {
		return nil, fmt.Errorf("create import: %w", err)
	}

	s.metrics.ImportCreated()
	log.Info("upload slot issued", "import_id", id, "tenant_id", tenant, "import_type", in.ImportType, "schema_version", sc.Version)
	return &UploadSlot{ImportID: id, UploadURL: url}, nil
}

// SchemaView is the schema section of an analyze response.
type SchemaView struct {
	Version int                        `json:"version"`
	Fields  map[string]domain.FieldDef `json:"fields"`
}

// AnalyzeResult is the analyze response.
type AnalyzeResult struct {
	Analysis
	Schema SchemaView `json:"schema"`
}

// analysisSummary is what analyze persists on the import. Preview rows are
// not stored.
type analysisSummary struct {
	SchemaVersion   int               `json:"schemaVersion"`
	Headers         []string          `json:"headers"`
	Suggestions     map[string]string `json:"suggestions"`
	MissingRequired []string          `json:"missingRequired"`
	ExtraColumns    []string          `json:"extraColumns"`
	PreviewRows     int               `json:"previewRowCount"`
	AnalyzedAt      time.Time         `json:"analyzedAt"`
}

// Analyze downloads the uploaded file, analyzes it against the schema active
// now (which may be newer than the import's creation version) and stores the
// summary. Calling it again overwrites the previous summary.
func (s *Service) Analyze(ctx context.Context, importID string) (*AnalyzeResult, error) {
	imp, err := s.repo.Get(ctx, importID)
	if err != nil {
		return nil, err
	}

	sc, err := s.schemas.ForTenant(ctx, imp.TenantID, imp.ImportType)
	if err != nil {
		return nil, fmt.Errorf("resolve schema for %s: %w", imp.ImportType, err)
	}

	data, err := s.store.Download(ctx, imp.StorageURI)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("import %s has no uploaded file: %w", importID, err)
		}
		return nil, &UpstreamError{Op: "download " + imp.StorageURI, Err: err}
	}

	a, err := Analyze(data, sc, s.schemas.Index(sc), s.previewLimit)
	if err != nil {
		if errors.Is(err, sheet.ErrUnreadable) || errors.Is(err, sheet.ErrNoWorksheet) {
			return nil, invalid("file", "%v", err)
		}
		return nil, err
	}

	summary, err := json.Marshal(analysisSummary{
		SchemaVersion:   sc.Version,
		Headers:         a.Headers,
		Suggestions:     a.Suggestions,
		MissingRequired: a.MissingRequired,
		ExtraColumns:    a.ExtraColumns,
		PreviewRows:     len(a.PreviewRows),
		AnalyzedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.repo.SaveAnalysis(ctx, importID, summary); err != nil {
		return nil, fmt.Errorf("save analysis: %w", err)
	}

	s.metrics.ImportAnalyzed()
	log.Info("import analyzed", "import_id", importID, "schema_version", sc.Version,
		"headers", len(a.Headers), "missing_required", len(a.MissingRequired))
	return &AnalyzeResult{
		Analysis: *a,
		Schema:   SchemaView{Version: sc.Version, Fields: sc.Fields},
	}, nil
}

// Commit replaces the import's mapping, marks it PROCESSING and enqueues it
// for materialization. The mapping is trusted as final; missing required
// fields do not block it. Enqueue runs last, and its failure is returned so
// the caller learns the import is PROCESSING with no worker run scheduled.
func (s *Service) Commit(ctx context.Context, importID string, mapping map[string]string) error {
	if mapping == nil {
		return invalid("mapping", "mapping is required")
	}

	entries := make([]domain.MappingEntry, 0, len(mapping))
	for source, target := range mapping {
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		entries = append(entries, domain.MappingEntry{ImportID: importID, SourceColumn: source, CanonicalField: target})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SourceColumn < entries[j].SourceColumn })

	if err := s.repo.CommitMapping(ctx, importID, entries); err != nil {
		return err
	}

	if err := s.publisher.Publish(ctx, queue.Message{ImportID: importID}); err != nil {
		s.metrics.EnqueueFailed()
		log.Error("enqueue failed after commit", "import_id", importID, "error", err)
		return &UpstreamError{Op: "enqueue import " + importID, Err: err}
	}

	s.metrics.ImportCommitted()
	log.Info("import committed", "import_id", importID, "mapped_columns", len(entries))
	return nil
}

// Get returns the import record.
func (s *Service) Get(ctx context.Context, importID string) (*domain.Import, error) {
	return s.repo.Get(ctx, importID)
}
