package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/pkg/logger"
)

var log = logger.Named("schema")

// Registry resolves active schemas for tenants.
type Registry struct {
	repo         Repository
	classes      map[string]string
	defaultClass string
}

// NewRegistry creates a registry. classes maps tenant ids to tenant classes;
// unlisted tenants use defaultClass.
func NewRegistry(repo Repository, classes map[string]string, defaultClass string) *Registry {
	if defaultClass == "" {
		defaultClass = "default"
	}
	return &Registry{repo: repo, classes: classes, defaultClass: defaultClass}
}

// ResolveClass returns the tenant class for a tenant id.
func (r *Registry) ResolveClass(tenantID string) string {
	if c, ok := r.classes[tenantID]; ok && c != "" {
		return c
	}
	return r.defaultClass
}

// GetActive returns the active schema for the tenant class and import type.
func (r *Registry) GetActive(ctx context.Context, tenantClass, importType string) (*domain.Schema, error) {
	s, err := r.repo.GetActive(ctx, tenantClass, importType)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ForTenant resolves the tenant's class and returns its active schema.
func (r *Registry) ForTenant(ctx context.Context, tenantID, importType string) (*domain.Schema, error) {
	return r.GetActive(ctx, r.ResolveClass(tenantID), importType)
}

// Index builds the alias index for s and logs any alias claimed by two
// fields.
func (r *Registry) Index(s *domain.Schema) AliasIndex {
	idx := BuildAliasIndex(s)
	for _, c := range idx.Conflicts() {
		log.Warn("duplicate schema alias",
			"import_type", s.ImportType, "version", s.Version,
			"alias", c.Alias, "kept", c.Kept, "ignored", c.Lost)
	}
	return idx
}

// Register validates fields and publishes them as the new active version.
func (r *Registry) Register(ctx context.Context, tenantClass, importType string, fields map[string]domain.FieldDef) (*domain.Schema, error) {
	if strings.TrimSpace(tenantClass) == "" || strings.TrimSpace(importType) == "" {
		return nil, fmt.Errorf("%w: tenant class and import type are required", ErrInvalidSchema)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: at least one field is required", ErrInvalidSchema)
	}
	for name, def := range fields {
		if Normalize(name) == "" {
			return nil, fmt.Errorf("%w: empty field name", ErrInvalidSchema)
		}
		if !def.Type.Valid() {
			return nil, fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, name, def.Type)
		}
	}

	s, err := r.repo.Publish(ctx, tenantClass, importType, fields)
	if err != nil {
		return nil, fmt.Errorf("publish schema: %w", err)
	}
	log.Info("schema published", "tenant_class", tenantClass, "import_type", importType, "version", s.Version)
	return s, nil
}
