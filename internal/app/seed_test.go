package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/repository/memory"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
)

const seedYAML = `
schemas:
  - tenant_class: retail
    import_type: campaigns
    fields:
      fecha:
        required: true
        aliases: [date, dia]
        type: date
      ciudad:
        required: true
        aliases: [city]
      presupuesto:
        aliases: [budget]
        type: number
`

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	f, err := LoadSeed(path)
	require.NoError(t, err)
	require.Len(t, f.Schemas, 1)
	assert.Equal(t, domain.FieldDate, f.Schemas[0].Fields["fecha"].Type)
	assert.Equal(t, []string{"date", "dia"}, f.Schemas[0].Fields["fecha"].Aliases)

	reg := schema.NewRegistry(memory.NewSchemaRepo(), nil, "default")
	ctx := context.Background()

	n, err := Seed(ctx, reg, f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Seed(ctx, reg, f)
	require.NoError(t, err)
	assert.Zero(t, n, "unchanged schema is not republished")

	f.Schemas[0].Fields["ventas"] = domain.FieldDef{Type: domain.FieldNumber}
	n, err = Seed(ctx, reg, f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	s, err := reg.GetActive(ctx, "retail", "campaigns")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)
}

func TestLoadSeed_Missing(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
