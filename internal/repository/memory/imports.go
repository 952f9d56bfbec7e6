package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
)

// ImportRepo stores imports, mappings and staged rows in memory.
type ImportRepo struct {
	mu       sync.Mutex
	imports  map[string]*domain.Import
	mappings map[string][]domain.MappingEntry
	staged   map[string][]domain.StagedRow
	now      func() time.Time

	// InsertErr, when set, fails InsertStagedRows.
	InsertErr error
	// BeforeInsert runs before each InsertStagedRows call, outside the lock.
	BeforeInsert func()
}

// NewImportRepo creates an empty repository.
func NewImportRepo() *ImportRepo {
	return &ImportRepo{
		imports:  make(map[string]*domain.Import),
		mappings: make(map[string][]domain.MappingEntry),
		staged:   make(map[string][]domain.StagedRow),
		now:      time.Now,
	}
}

// SetClock replaces the time source for created_at/updated_at.
func (r *ImportRepo) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *ImportRepo) Create(_ context.Context, imp *domain.Import) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if imp.ID == "" {
		return fmt.Errorf("id required")
	}
	if _, ok := r.imports[imp.ID]; ok {
		return fmt.Errorf("import %s already exists", imp.ID)
	}
	cp := *imp
	cp.CreatedAt, cp.UpdatedAt = r.now(), r.now()
	if len(cp.Summary) == 0 {
		cp.Summary = json.RawMessage(`{}`)
	}
	r.imports[cp.ID] = &cp
	return nil
}

func (r *ImportRepo) Get(_ context.Context, id string) (*domain.Import, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.imports[id]
	if !ok {
		return nil, imports.ErrImportNotFound
	}
	cp := *imp
	return &cp, nil
}

func (r *ImportRepo) SaveAnalysis(_ context.Context, id string, summary json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.imports[id]
	if !ok {
		return imports.ErrImportNotFound
	}
	imp.Summary = append(json.RawMessage(nil), summary...)
	if imp.Status == domain.ImportUploaded || imp.Status == domain.ImportAnalyzed {
		imp.Status = domain.ImportAnalyzed
	}
	imp.UpdatedAt = r.now()
	return nil
}

func (r *ImportRepo) CommitMapping(_ context.Context, id string, entries []domain.MappingEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.imports[id]
	if !ok {
		return imports.ErrImportNotFound
	}
	r.mappings[id] = append([]domain.MappingEntry(nil), entries...)
	imp.Status = domain.ImportProcessing
	imp.UpdatedAt = r.now()
	return nil
}

func (r *ImportRepo) Mappings(_ context.Context, id string) ([]domain.MappingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.MappingEntry(nil), r.mappings[id]...), nil
}

func (r *ImportRepo) DeleteStagedRows(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.staged, id)
	return nil
}

func (r *ImportRepo) InsertStagedRows(_ context.Context, rows []domain.StagedRow) error {
	if r.BeforeInsert != nil {
		r.BeforeInsert()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.InsertErr != nil {
		return r.InsertErr
	}
	for _, row := range rows {
		r.staged[row.ImportID] = append(r.staged[row.ImportID], row)
	}
	return nil
}

// Finish sets status and merges summary keys over the stored summary.
func (r *ImportRepo) Finish(_ context.Context, id string, status domain.ImportStatus, summary json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.imports[id]
	if !ok {
		return imports.ErrImportNotFound
	}
	merged := map[string]json.RawMessage{}
	if len(imp.Summary) > 0 {
		if err := json.Unmarshal(imp.Summary, &merged); err != nil {
			return fmt.Errorf("stored summary: %w", err)
		}
	}
	patch := map[string]json.RawMessage{}
	if err := json.Unmarshal(summary, &patch); err != nil {
		return fmt.Errorf("summary patch: %w", err)
	}
	for k, v := range patch {
		merged[k] = v
	}
	out, _ := json.Marshal(merged)
	imp.Summary = out
	imp.Status = status
	imp.UpdatedAt = r.now()
	return nil
}

// ReclaimStale returns PROCESSING imports not updated within olderThan and
// touches their updated_at.
func (r *ImportRepo) ReclaimStale(_ context.Context, olderThan time.Duration) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-olderThan)
	var ids []string
	for id, imp := range r.imports {
		if imp.Status == domain.ImportProcessing && imp.UpdatedAt.Before(cutoff) {
			imp.UpdatedAt = r.now()
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// StagedRows returns the staged rows of an import ordered by row number.
func (r *ImportRepo) StagedRows(id string) []domain.StagedRow {
	r.mu.Lock()
	defer r.mu.Unlock()
	rows := append([]domain.StagedRow(nil), r.staged[id]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowNumber < rows[j].RowNumber })
	return rows
}
