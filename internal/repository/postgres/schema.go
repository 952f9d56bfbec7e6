package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

// SchemaRepo implements schema.Repository against PostgreSQL.
type SchemaRepo struct{ db *sql.DB }

// NewSchemaRepo creates a Postgres-backed schema repository.
func NewSchemaRepo(db *sql.DB) *SchemaRepo { return &SchemaRepo{db: db} }

func (r *SchemaRepo) GetActive(ctx context.Context, tenantClass, importType string) (*domain.Schema, error) {
	s := &domain.Schema{TenantClass: tenantClass, ImportType: importType, Active: true}
	var fields []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT version, canonical_fields
		FROM import_schemas
		WHERE tenant_class = $1 AND import_type = $2 AND is_active
		ORDER BY version DESC
		LIMIT 1
	`, tenantClass, importType).Scan(&s.Version, &fields)
	if err == sql.ErrNoRows {
		return nil, schema.ErrSchemaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active schema: %w", err)
	}
	if err := json.Unmarshal(fields, &s.Fields); err != nil {
		return nil, fmt.Errorf("decode schema %s/%s v%d: %w", tenantClass, importType, s.Version, err)
	}
	return s, nil
}

func (r *SchemaRepo) Publish(ctx context.Context, tenantClass, importType string, fields map[string]domain.FieldDef) (*domain.Schema, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin publish: %w", err)
	}
	defer tx.Rollback()

	var version int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) + 1
		FROM import_schemas
		WHERE tenant_class = $1 AND import_type = $2
	`, tenantClass, importType).Scan(&version); err != nil {
		return nil, fmt.Errorf("next schema version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE import_schemas SET is_active = false
		WHERE tenant_class = $1 AND import_type = $2 AND is_active
	`, tenantClass, importType); err != nil {
		return nil, fmt.Errorf("deactivate schemas: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO import_schemas (tenant_class, import_type, version, is_active, canonical_fields, created_at)
		VALUES ($1, $2, $3, true, $4::jsonb, NOW())
	`, tenantClass, importType, version, string(body)); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s v%d", schema.ErrConcurrentPublish, tenantClass, importType, version)
		}
		return nil, fmt.Errorf("insert schema: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s/%s v%d", schema.ErrConcurrentPublish, tenantClass, importType, version)
		}
		return nil, fmt.Errorf("commit schema: %w", err)
	}

	return &domain.Schema{
		TenantClass: tenantClass,
		ImportType:  importType,
		Version:     version,
		Active:      true,
		Fields:      fields,
	}, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
