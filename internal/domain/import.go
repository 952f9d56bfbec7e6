package domain

import (
	"encoding/json"
	"time"
)

// ImportStatus enumerates the lifecycle states of an import.
type ImportStatus string

const (
	ImportUploaded   ImportStatus = "UPLOADED"
	ImportAnalyzed   ImportStatus = "ANALYZED"
	ImportProcessing ImportStatus = "PROCESSING"
	ImportDone       ImportStatus = "DONE"
	ImportFailed     ImportStatus = "FAILED"
)

// IsTerminal returns true if no worker run is expected for the status.
func (s ImportStatus) IsTerminal() bool {
	return s == ImportDone || s == ImportFailed
}

// Import is one tracked attempt to ingest a single spreadsheet file.
type Import struct {
	ID               string          `json:"id" db:"id"`
	TenantID         string          `json:"tenantId" db:"tenant_id"`
	ImportType       string          `json:"importType" db:"import_type"`
	SchemaVersion    int             `json:"schemaVersion" db:"schema_version"`
	UploadedBy       string          `json:"uploadedBy" db:"uploaded_by"`
	OriginalFilename string          `json:"originalFilename" db:"original_filename"`
	StorageURI       string          `json:"storageUri" db:"storage_uri"`
	Status           ImportStatus    `json:"status" db:"status"`
	Summary          json.RawMessage `json:"summary,omitempty" db:"summary"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time       `json:"updatedAt" db:"updated_at"`
}

// MappingEntry assigns one source column, exactly as it appears in the file
// header, to a canonical field. Ignored columns have no entry.
type MappingEntry struct {
	ImportID       string `json:"importId" db:"import_id"`
	SourceColumn   string `json:"sourceColumn" db:"source_column"`
	CanonicalField string `json:"canonicalField" db:"canonical_field"`
}

// StagedRow is one mapped, non-blank data row awaiting downstream consumption.
// RowNumber is the 1-based row position in the source worksheet, so the first
// data row is 2.
type StagedRow struct {
	ImportID  string            `json:"importId" db:"import_id"`
	RowNumber int               `json:"rowNumber" db:"row_number"`
	Data      map[string]any    `json:"data" db:"data"`
	IsValid   bool              `json:"isValid" db:"is_valid"`
	Errors    map[string]string `json:"errors,omitempty" db:"errors"`
}
