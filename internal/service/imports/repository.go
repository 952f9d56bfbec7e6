package imports

import (
	"context"
	"encoding/json"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
)

// Repository defines the data access contract for import records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a new import record.
	Create(ctx context.Context, imp *domain.Import) error

	// Get returns a single import. Returns ErrImportNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Import, error)

	// SaveAnalysis overwrites the summary and moves UPLOADED or ANALYZED
	// imports to ANALYZED. Later statuses are left untouched.
	SaveAnalysis(ctx context.Context, id string, summary json.RawMessage) error

	// CommitMapping replaces every mapping row of the import with entries
	// and sets status PROCESSING, atomically.
	CommitMapping(ctx context.Context, id string, entries []domain.MappingEntry) error
}
