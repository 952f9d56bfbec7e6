package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/distlock"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/logger"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/metrics"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

var log = logger.Named("worker")

// DefaultBatchSize is the number of staged rows written per insert.
const DefaultBatchSize = 500

// ErrBusy means another run holds the import's lock. The delivery should be
// retried later.
var ErrBusy = errors.New("import is being materialized by another worker")

// Repository is the persistence the materializer needs.
type Repository interface {
	Get(ctx context.Context, id string) (*domain.Import, error)
	Mappings(ctx context.Context, importID string) ([]domain.MappingEntry, error)
	DeleteStagedRows(ctx context.Context, importID string) error
	InsertStagedRows(ctx context.Context, rows []domain.StagedRow) error
	Finish(ctx context.Context, id string, status domain.ImportStatus, summary json.RawMessage) error
}

// Materializer turns a committed import into staged rows.
type Materializer struct {
	repo      Repository
	schemas   *schema.Registry
	store     storage.Gateway
	locks     distlock.Factory
	metrics   *metrics.Recorder
	batchSize int
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithLocks serializes runs of the same import across workers.
func WithLocks(f distlock.Factory) Option {
	return func(m *Materializer) { m.locks = f }
}

func WithMetrics(r *metrics.Recorder) Option {
	return func(m *Materializer) { m.metrics = r }
}

func WithBatchSize(n int) Option {
	return func(m *Materializer) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

func NewMaterializer(repo Repository, schemas *schema.Registry, store storage.Gateway, opts ...Option) *Materializer {
	m := &Materializer{
		repo:      repo,
		schemas:   schemas,
		store:     store,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result summarizes one successful run.
type Result struct {
	RowsStaged  int `json:"rowsStaged"`
	InvalidRows int `json:"invalidRows"`
	// SchemaVersion is the version rows were checked against; 0 when the
	// import type has no active schema anymore.
	SchemaVersion int `json:"schemaVersion"`
}

// Process materializes one import. Staged rows are fully replaced, so
// running it again for the same import yields the same rows. Any returned
// error leaves the import in PROCESSING.
func (m *Materializer) Process(ctx context.Context, importID string) error {
	start := time.Now()
	outcome := "error"
	defer func() { m.metrics.Materialized(outcome, time.Since(start)) }()

	heartbeat := func() {}
	if m.locks != nil {
		lock := m.locks(distlock.ImportKey(importID))
		if lock != nil {
			acquired, lerr := lock.Acquire(ctx)
			switch {
			case lerr != nil:
				log.Warn("import lock unavailable, continuing unlocked", "import_id", importID, "error", lerr)
			case !acquired:
				outcome = "busy"
				return ErrBusy
			default:
				defer func() {
					if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
						log.Warn("release import lock", "import_id", importID, "error", rerr)
					}
				}()
				if r, ok := lock.(distlock.Refresher); ok {
					heartbeat = func() {
						if rerr := r.Refresh(ctx); rerr != nil {
							log.Warn("refresh import lock", "import_id", importID, "error", rerr)
						}
					}
				}
			}
		}
	}

	imp, err := m.repo.Get(ctx, importID)
	if err != nil {
		return fmt.Errorf("load import %s: %w", importID, err)
	}
	entries, err := m.repo.Mappings(ctx, importID)
	if err != nil {
		return fmt.Errorf("load mapping for %s: %w", importID, err)
	}

	fields, version, err := m.fieldDefs(ctx, imp)
	if err != nil {
		return err
	}

	data, err := m.store.Download(ctx, imp.StorageURI)
	if err != nil {
		return fmt.Errorf("download %s: %w", imp.StorageURI, err)
	}

	s, err := sheet.Parse(data)
	if err != nil {
		if errors.Is(err, sheet.ErrUnreadable) || errors.Is(err, sheet.ErrNoWorksheet) {
			outcome = "failed"
			return m.fail(ctx, imp, err)
		}
		return fmt.Errorf("parse %s: %w", importID, err)
	}
	defer s.Close()

	if err := m.repo.DeleteStagedRows(ctx, importID); err != nil {
		return fmt.Errorf("clear staged rows for %s: %w", importID, err)
	}

	res, err := m.stage(ctx, imp.ID, s, entries, fields, heartbeat)
	if err != nil {
		return err
	}
	res.SchemaVersion = version

	summary, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := m.repo.Finish(ctx, importID, domain.ImportDone, summary); err != nil {
		return fmt.Errorf("finish %s: %w", importID, err)
	}

	outcome = "done"
	m.metrics.RowsStaged(res.RowsStaged-res.InvalidRows, res.InvalidRows)
	log.Info("import materialized",
		"import_id", importID,
		"rows_staged", res.RowsStaged,
		"invalid_rows", res.InvalidRows,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// fieldDefs returns the definitions of the schema active now for the
// import's tenant and type.
func (m *Materializer) fieldDefs(ctx context.Context, imp *domain.Import) (map[string]domain.FieldDef, int, error) {
	if m.schemas == nil {
		return nil, 0, nil
	}
	s, err := m.schemas.ForTenant(ctx, imp.TenantID, imp.ImportType)
	if errors.Is(err, schema.ErrSchemaNotFound) {
		log.Warn("no active schema, staging without type checks", "import_id", imp.ID, "import_type", imp.ImportType)
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load schema for %s: %w", imp.ID, err)
	}
	return s.Fields, s.Version, nil
}

// stage projects every data row through the mapping and writes them in
// batches. heartbeat runs after every written batch.
func (m *Materializer) stage(ctx context.Context, importID string, s *sheet.Sheet, entries []domain.MappingEntry, fields map[string]domain.FieldDef, heartbeat func()) (*Result, error) {
	res := &Result{}
	batch := make([]domain.StagedRow, 0, m.batchSize)
	var werr error

	flush := func() bool {
		if len(batch) == 0 {
			return true
		}
		if err := m.repo.InsertStagedRows(ctx, batch); err != nil {
			werr = fmt.Errorf("insert staged rows for %s: %w", importID, err)
			return false
		}
		batch = batch[:0]
		heartbeat()
		return true
	}

	s.Each(func(r sheet.Row) bool {
		row := project(importID, r, entries, fields)
		res.RowsStaged++
		if !row.IsValid {
			res.InvalidRows++
		}
		batch = append(batch, row)
		if len(batch) >= m.batchSize {
			return flush()
		}
		return true
	})
	if werr == nil {
		flush()
	}
	if werr != nil {
		return nil, werr
	}
	return res, nil
}

// project builds one staged row. Every mapped canonical field is present in
// Data, nil when the cell is empty; unmapped source columns are dropped.
func project(importID string, r sheet.Row, entries []domain.MappingEntry, fields map[string]domain.FieldDef) domain.StagedRow {
	row := domain.StagedRow{
		ImportID:  importID,
		RowNumber: r.Number,
		Data:      make(map[string]any, len(entries)),
		IsValid:   true,
	}
	for _, e := range entries {
		v, _ := r.Get(e.SourceColumn)
		if existing, ok := row.Data[e.CanonicalField]; ok && !isBlank(existing) {
			continue
		}
		row.Data[e.CanonicalField] = v
	}
	for field, v := range row.Data {
		def, ok := fields[field]
		if !ok {
			continue
		}
		if msg := checkValue(def, v); msg != "" {
			if row.Errors == nil {
				row.Errors = make(map[string]string)
			}
			row.Errors[field] = msg
			row.IsValid = false
		}
	}
	return row
}

// fail marks an import whose file can never be read.
func (m *Materializer) fail(ctx context.Context, imp *domain.Import, cause error) error {
	summary, err := json.Marshal(map[string]string{"error": cause.Error()})
	if err != nil {
		return fmt.Errorf("marshal failure summary: %w", err)
	}
	if err := m.repo.Finish(ctx, imp.ID, domain.ImportFailed, summary); err != nil {
		return fmt.Errorf("mark %s failed: %w", imp.ID, err)
	}
	log.Error("import failed", "import_id", imp.ID, "error", cause)
	return nil
}
