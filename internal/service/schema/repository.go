package schema

import (
	"context"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
)

// Repository defines the data access contract for schemas.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetActive returns the highest active version for the pair.
	// Returns ErrSchemaNotFound if none is active.
	GetActive(ctx context.Context, tenantClass, importType string) (*domain.Schema, error)

	// Publish stores fields as the next version for the pair, marks it active
	// and deactivates every earlier version. Returns the stored schema.
	Publish(ctx context.Context, tenantClass, importType string, fields map[string]domain.FieldDef) (*domain.Schema, error)
}
