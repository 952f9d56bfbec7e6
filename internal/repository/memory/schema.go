package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

// SchemaRepo stores schema versions in memory.
type SchemaRepo struct {
	mu      sync.Mutex
	schemas []domain.Schema
}

// NewSchemaRepo creates an empty repository.
func NewSchemaRepo() *SchemaRepo {
	return &SchemaRepo{}
}

func (r *SchemaRepo) GetActive(_ context.Context, tenantClass, importType string) (*domain.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.Schema
	for i := range r.schemas {
		s := &r.schemas[i]
		if s.TenantClass != tenantClass || s.ImportType != importType || !s.Active {
			continue
		}
		if best == nil || s.Version > best.Version {
			best = s
		}
	}
	if best == nil {
		return nil, schema.ErrSchemaNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *SchemaRepo) Publish(_ context.Context, tenantClass, importType string, fields map[string]domain.FieldDef) (*domain.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	version := 0
	for i := range r.schemas {
		s := &r.schemas[i]
		if s.TenantClass == tenantClass && s.ImportType == importType {
			s.Active = false
			version = max(version, s.Version)
		}
	}
	s := domain.Schema{
		TenantClass: tenantClass,
		ImportType:  importType,
		Version:     version + 1,
		Active:      true,
		Fields:      maps.Clone(fields),
	}
	r.schemas = append(r.schemas, s)
	cp := s
	return &cp, nil
}
