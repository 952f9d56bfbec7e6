package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
)

// ImportRepo implements imports.Repository and the worker's staging
// repository against PostgreSQL.
type ImportRepo struct{ db *sql.DB }

// NewImportRepo creates a Postgres-backed import repository.
func NewImportRepo(db *sql.DB) *ImportRepo { return &ImportRepo{db: db} }

func (r *ImportRepo) Create(ctx context.Context, imp *domain.Import) error {
	summary := imp.Summary
	if len(summary) == 0 {
		summary = json.RawMessage(`{}`)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO imports
			(id, tenant_id, import_type, schema_version, uploaded_by,
			 original_filename, storage_uri, status, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, NOW(), NOW())
	`, imp.ID, imp.TenantID, imp.ImportType, imp.SchemaVersion, imp.UploadedBy,
		imp.OriginalFilename, imp.StorageURI, imp.Status, string(summary))
	if err != nil {
		return fmt.Errorf("create import: %w", err)
	}
	return nil
}

func (r *ImportRepo) Get(ctx context.Context, id string) (*domain.Import, error) {
	imp := &domain.Import{}
	var summary []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, import_type, schema_version, uploaded_by,
		       original_filename, storage_uri, status,
		       COALESCE(summary, '{}'::jsonb), created_at, updated_at
		FROM imports
		WHERE id = $1
	`, id).Scan(
		&imp.ID, &imp.TenantID, &imp.ImportType, &imp.SchemaVersion, &imp.UploadedBy,
		&imp.OriginalFilename, &imp.StorageURI, &imp.Status,
		&summary, &imp.CreatedAt, &imp.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, imports.ErrImportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import: %w", err)
	}
	imp.Summary = json.RawMessage(summary)
	return imp, nil
}

// SaveAnalysis overwrites the summary. Status only moves forward: imports
// already PROCESSING or finished keep their status.
func (r *ImportRepo) SaveAnalysis(ctx context.Context, id string, summary json.RawMessage) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE imports
		SET summary = $2::jsonb,
		    status = CASE WHEN status IN ('UPLOADED', 'ANALYZED') THEN 'ANALYZED' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, id, string(summary))
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return requireRow(res)
}

// CommitMapping replaces the mapping set and flips status to PROCESSING in
// one transaction.
func (r *ImportRepo) CommitMapping(ctx context.Context, id string, entries []domain.MappingEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM imports WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if err == sql.ErrNoRows {
		return imports.ErrImportNotFound
	}
	if err != nil {
		return fmt.Errorf("lock import: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM import_mappings WHERE import_id = $1`, id); err != nil {
		return fmt.Errorf("clear mappings: %w", err)
	}

	for start := 0; start < len(entries); start += batchSize {
		end := min(start+batchSize, len(entries))
		chunk := entries[start:end]
		args := make([]any, 0, len(chunk)*3)
		for _, e := range chunk {
			args = append(args, id, e.SourceColumn, e.CanonicalField)
		}
		q := `INSERT INTO import_mappings (import_id, source_column, canonical_field) VALUES ` + valuesClause(len(chunk), 3)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert mappings: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE imports SET status = 'PROCESSING', updated_at = NOW() WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit mapping: %w", err)
	}
	return nil
}

func (r *ImportRepo) Mappings(ctx context.Context, id string) ([]domain.MappingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT import_id, source_column, canonical_field
		FROM import_mappings
		WHERE import_id = $1
		ORDER BY source_column
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}
	defer rows.Close()

	var out []domain.MappingEntry
	for rows.Next() {
		var e domain.MappingEntry
		if err := rows.Scan(&e.ImportID, &e.SourceColumn, &e.CanonicalField); err != nil {
			return nil, fmt.Errorf("scan mapping: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ImportRepo) DeleteStagedRows(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM staging_rows WHERE import_id = $1`, id); err != nil {
		return fmt.Errorf("clear staged rows: %w", err)
	}
	return nil
}

// InsertStagedRows writes rows with multi-row INSERTs of up to batchSize rows.
func (r *ImportRepo) InsertStagedRows(ctx context.Context, rows []domain.StagedRow) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		chunk := rows[start:end]
		args := make([]any, 0, len(chunk)*5)
		for _, row := range chunk {
			data, err := json.Marshal(row.Data)
			if err != nil {
				return fmt.Errorf("marshal row %d: %w", row.RowNumber, err)
			}
			var rowErrors any
			if len(row.Errors) > 0 {
				b, err := json.Marshal(row.Errors)
				if err != nil {
					return fmt.Errorf("marshal row %d errors: %w", row.RowNumber, err)
				}
				rowErrors = string(b)
			}
			args = append(args, row.ImportID, row.RowNumber, string(data), row.IsValid, rowErrors)
		}
		q := `INSERT INTO staging_rows (import_id, row_number, data, is_valid, errors) VALUES ` + valuesClause(len(chunk), 5)
		if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert staged rows: %w", err)
		}
	}
	return nil
}

// Finish sets the terminal status and merges summary keys into the stored
// summary, keeping the analysis written earlier.
func (r *ImportRepo) Finish(ctx context.Context, id string, status domain.ImportStatus, summary json.RawMessage) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE imports
		SET status = $2,
		    summary = COALESCE(summary, '{}'::jsonb) || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`, id, status, string(summary))
	if err != nil {
		return fmt.Errorf("finish import: %w", err)
	}
	return requireRow(res)
}

// ReclaimStale touches and returns PROCESSING imports whose updated_at is
// older than olderThan. Touching them keeps the next sweep from picking the
// same imports until they go stale again.
func (r *ImportRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE imports
		SET updated_at = NOW()
		WHERE status = 'PROCESSING'
		  AND updated_at < NOW() - make_interval(secs => $1)
		RETURNING id
	`, olderThan.Seconds())
	if err != nil {
		return nil, fmt.Errorf("reclaim stale imports: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan stale import: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StagedRows returns the staged rows of an import ordered by row number.
func (r *ImportRepo) StagedRows(ctx context.Context, id string) ([]domain.StagedRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT import_id, row_number, data, is_valid, COALESCE(errors, '{}'::jsonb)
		FROM staging_rows
		WHERE import_id = $1
		ORDER BY row_number
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list staged rows: %w", err)
	}
	defer rows.Close()

	var out []domain.StagedRow
	for rows.Next() {
		var row domain.StagedRow
		var data, rowErrors []byte
		if err := rows.Scan(&row.ImportID, &row.RowNumber, &data, &row.IsValid, &rowErrors); err != nil {
			return nil, fmt.Errorf("scan staged row: %w", err)
		}
		if err := json.Unmarshal(data, &row.Data); err != nil {
			return nil, fmt.Errorf("decode staged row %d: %w", row.RowNumber, err)
		}
		if err := json.Unmarshal(rowErrors, &row.Errors); err != nil {
			return nil, fmt.Errorf("decode staged row %d errors: %w", row.RowNumber, err)
		}
		if len(row.Errors) == 0 {
			row.Errors = nil
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return imports.ErrImportNotFound
	}
	return nil
}
