package imports_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/repository/memory"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/storage"
)

type fixture struct {
	svc     *imports.Service
	repo    *memory.ImportRepo
	schemas *schema.Registry
	store   *storage.MemoryGateway
	queue   *queue.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  memory.NewImportRepo(),
		store: storage.NewMemoryGateway("uploads", 15*time.Minute),
		queue: queue.NewMemory(16, 10*time.Millisecond),
	}
	f.schemas = schema.NewRegistry(memory.NewSchemaRepo(), map[string]string{"acme": "retail"}, "default")
	_, err := f.schemas.Register(context.Background(), "retail", "campaigns", map[string]domain.FieldDef{
		"fecha":  {Required: true, Aliases: []string{"date"}},
		"ciudad": {Required: true, Aliases: []string{"city"}},
		"ventas": {Required: true, Aliases: []string{"sales"}},
	})
	require.NoError(t, err)
	f.svc = imports.NewService(f.repo, f.schemas, f.store, f.queue)
	return f
}

func (f *fixture) upload(t *testing.T, rows [][]any) string {
	t.Helper()
	slot, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		TenantID: "acme", ImportType: "campaigns", Filename: "ventas.xlsx", UploadedBy: "uid-1",
	})
	require.NoError(t, err)
	data, err := sheet.Write(rows)
	require.NoError(t, err)
	require.NoError(t, f.store.Upload(slot.UploadURL, data))
	return slot.ImportID
}

func TestCreateUpload(t *testing.T) {
	f := newFixture(t)
	slot, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		ClientID: "acme", ImportType: "campaigns", Filename: "Ventas Q1.XLSX", UploadedBy: "uid-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, slot.ImportID)
	assert.Contains(t, slot.UploadURL, "imports/acme/"+slot.ImportID)

	imp, err := f.svc.Get(context.Background(), slot.ImportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportUploaded, imp.Status)
	assert.Equal(t, "acme", imp.TenantID)
	assert.Equal(t, 1, imp.SchemaVersion)
	assert.Equal(t, "uid-1", imp.UploadedBy)
	assert.Equal(t, "Ventas Q1.XLSX", imp.OriginalFilename)
	assert.Equal(t, "s3://uploads/imports/acme/"+slot.ImportID+"/Ventas Q1.XLSX", imp.StorageURI)
}

func TestCreateUpload_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := imports.UploadInput{TenantID: "acme", ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u"}

	cases := map[string]func(in *imports.UploadInput){
		"companyId":  func(in *imports.UploadInput) { in.TenantID = "" },
		"importType": func(in *imports.UploadInput) { in.ImportType = " " },
		"filename":   func(in *imports.UploadInput) { in.Filename = "a.csv" },
		"uid":        func(in *imports.UploadInput) { in.UploadedBy = "" },
	}
	for field, mutate := range cases {
		in := valid
		mutate(&in)
		_, err := f.svc.CreateUpload(ctx, in)
		require.ErrorIs(t, err, imports.ErrInvalidInput, field)
		var ie *imports.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, field, ie.Field)
	}
}

func TestCreateUpload_RejectsTenantPathTraversal(t *testing.T) {
	f := newFixture(t)
	for _, tenant := range []string{"../../other-tenant", "acme/../beta", `acme\beta`, "a/b", ".."} {
		_, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
			TenantID: tenant, ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u",
		})
		var ie *imports.InputError
		require.ErrorAs(t, err, &ie, tenant)
		assert.Equal(t, "companyId", ie.Field, tenant)
	}
}

func TestCreateUpload_TrimsImportType(t *testing.T) {
	f := newFixture(t)
	slot, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		TenantID: "acme", ImportType: " campaigns ", Filename: "a.xlsx", UploadedBy: "u",
	})
	require.NoError(t, err)
	imp, err := f.svc.Get(context.Background(), slot.ImportID)
	require.NoError(t, err)
	assert.Equal(t, "campaigns", imp.ImportType)
}

func TestCreateUpload_NoActiveSchema(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		TenantID: "other", ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u",
	})
	assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
}

func TestCreateUpload_SlotFailureIsUpstream(t *testing.T) {
	f := newFixture(t)
	f.store.SlotErr = errors.New("s3 down")
	_, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		TenantID: "acme", ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u",
	})
	var ue *imports.UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestExpiredUploadSlotLeavesImportUploaded(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time { return now })

	slot, err := f.svc.CreateUpload(context.Background(), imports.UploadInput{
		TenantID: "acme", ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u",
	})
	require.NoError(t, err)

	now = now.Add(15*time.Minute + time.Second)
	assert.ErrorIs(t, f.store.Upload(slot.UploadURL, []byte("late")), storage.ErrSlotExpired)

	imp, err := f.svc.Get(context.Background(), slot.ImportID)
	require.NoError(t, err)
	assert.Equal(t, domain.ImportUploaded, imp.Status)

	_, err = f.svc.Analyze(context.Background(), slot.ImportID)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	imp, _ = f.svc.Get(context.Background(), slot.ImportID)
	assert.Equal(t, domain.ImportUploaded, imp.Status)
}

func TestAnalyze_WritesSummaryAndStatus(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{
		{"Fecha", "Ciudad", "Ventas"},
		{"2024-01-01", "Bogota", 10},
		{"2024-01-02", "Cali", 20},
		{"2024-01-03", "Medellin", 30},
	})

	res, err := f.svc.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, res.MissingRequired)
	assert.Empty(t, res.ExtraColumns)
	assert.Len(t, res.PreviewRows, 3)
	assert.Equal(t, 1, res.Schema.Version)
	assert.Contains(t, res.Schema.Fields, "fecha")

	imp, _ := f.svc.Get(context.Background(), id)
	assert.Equal(t, domain.ImportAnalyzed, imp.Status)
	var summary map[string]any
	require.NoError(t, json.Unmarshal(imp.Summary, &summary))
	assert.Equal(t, float64(1), summary["schemaVersion"])
	assert.Equal(t, float64(3), summary["previewRowCount"])
}

func TestAnalyze_UsesSchemaActiveNow(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha", "Importe"}, {"2024-01-01", 5}})

	_, err := f.schemas.Register(context.Background(), "retail", "campaigns", map[string]domain.FieldDef{
		"fecha":  {Required: true},
		"ventas": {Required: true, Aliases: []string{"importe"}},
	})
	require.NoError(t, err)

	res, err := f.svc.Analyze(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Schema.Version)
	assert.Equal(t, "ventas", res.Suggestions["Importe"])

	imp, _ := f.svc.Get(context.Background(), id)
	assert.Equal(t, 1, imp.SchemaVersion, "creation version is never rewritten")
}

func TestAnalyze_TwiceOverwritesSummary(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha"}, {"x"}})
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.Analyze(ctx, id)
	require.NoError(t, err)
	imp, _ := f.svc.Get(ctx, id)
	assert.Equal(t, domain.ImportAnalyzed, imp.Status)
}

func TestAnalyze_DoesNotMoveStatusBackward(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha"}, {"x"}})
	ctx := context.Background()

	require.NoError(t, f.svc.Commit(ctx, id, map[string]string{"Fecha": "fecha"}))
	_, err := f.svc.Analyze(ctx, id)
	require.NoError(t, err)
	imp, _ := f.svc.Get(ctx, id)
	assert.Equal(t, domain.ImportProcessing, imp.Status)
}

func TestAnalyze_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Analyze(ctx, "missing")
	assert.ErrorIs(t, err, imports.ErrImportNotFound)

	slot, err := f.svc.CreateUpload(ctx, imports.UploadInput{TenantID: "acme", ImportType: "campaigns", Filename: "a.xlsx", UploadedBy: "u"})
	require.NoError(t, err)
	require.NoError(t, f.store.Upload(slot.UploadURL, []byte("not a workbook")))
	_, err = f.svc.Analyze(ctx, slot.ImportID)
	var ie *imports.InputError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "file", ie.Field)

	id := f.upload(t, [][]any{{"Fecha"}, {"x"}})
	f.store.DownloadErr = errors.New("timeout")
	_, err = f.svc.Analyze(ctx, id)
	var ue *imports.UpstreamError
	assert.ErrorAs(t, err, &ue)
}

func TestCommit(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha", "Ciudad", "Notas"}, {"x", "y", "z"}})
	ctx := context.Background()

	err := f.svc.Commit(ctx, id, map[string]string{"Fecha": "fecha", "Ciudad": "ciudad", "Notas": ""})
	require.NoError(t, err)

	imp, _ := f.svc.Get(ctx, id)
	assert.Equal(t, domain.ImportProcessing, imp.Status)

	mappings, _ := f.repo.Mappings(ctx, id)
	assert.Equal(t, []domain.MappingEntry{
		{ImportID: id, SourceColumn: "Ciudad", CanonicalField: "ciudad"},
		{ImportID: id, SourceColumn: "Fecha", CanonicalField: "fecha"},
	}, mappings)
	assert.Equal(t, []queue.Message{{ImportID: id}}, f.queue.Sent())
}

func TestCommit_ReplacesMapping(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha", "Ciudad"}, {"x", "y"}})
	ctx := context.Background()

	require.NoError(t, f.svc.Commit(ctx, id, map[string]string{"Fecha": "fecha", "Ciudad": "ciudad"}))
	require.NoError(t, f.svc.Commit(ctx, id, map[string]string{"Ciudad": "ciudad"}))

	mappings, _ := f.repo.Mappings(ctx, id)
	assert.Equal(t, []domain.MappingEntry{{ImportID: id, SourceColumn: "Ciudad", CanonicalField: "ciudad"}}, mappings)
	assert.Len(t, f.queue.Sent(), 2)
}

func TestCommit_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Commit(ctx, "missing", map[string]string{}), imports.ErrImportNotFound)

	id := f.upload(t, [][]any{{"Fecha"}, {"x"}})
	assert.ErrorIs(t, f.svc.Commit(ctx, id, nil), imports.ErrInvalidInput)
	assert.Empty(t, f.queue.Sent())
}

func TestCommit_EnqueueFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	id := f.upload(t, [][]any{{"Fecha"}, {"x"}})
	boom := errors.New("sqs unavailable")
	f.queue.FailPublish(boom)

	err := f.svc.Commit(context.Background(), id, map[string]string{"Fecha": "fecha"})
	require.ErrorIs(t, err, boom)
	var ue *imports.UpstreamError
	assert.ErrorAs(t, err, &ue)

	// mapping and status were written before the enqueue; the import waits
	// for the reconciliation sweep
	imp, _ := f.svc.Get(context.Background(), id)
	assert.Equal(t, domain.ImportProcessing, imp.Status)
}
