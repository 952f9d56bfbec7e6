package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
)

func workbook(t *testing.T, rows [][]any) []byte {
	t.Helper()
	data, err := sheet.Write(rows)
	require.NoError(t, err)
	return data
}

func analyze(t *testing.T, rows [][]any, s *domain.Schema, limit int) *Analysis {
	t.Helper()
	a, err := Analyze(workbook(t, rows), s, schema.BuildAliasIndex(s), limit)
	require.NoError(t, err)
	return a
}

var salesSchema = &domain.Schema{Version: 1, Fields: map[string]domain.FieldDef{
	"fecha":  {Required: true, Aliases: []string{"date"}},
	"ciudad": {Required: true, Aliases: []string{"city"}},
	"ventas": {Required: true, Aliases: []string{"sales"}},
}}

func TestAnalyze_AllColumnsMatched(t *testing.T) {
	a := analyze(t, [][]any{
		{"Fecha", "Ciudad", "Ventas"},
		{"2024-01-01", "Bogota", 10},
		{"2024-01-02", "Cali", 20},
		{"2024-01-03", "Medellin", 30},
	}, salesSchema, 50)

	assert.Equal(t, []string{"Fecha", "Ciudad", "Ventas"}, a.Headers)
	assert.Equal(t, map[string]string{"Fecha": "fecha", "Ciudad": "ciudad", "Ventas": "ventas"}, a.Suggestions)
	assert.Empty(t, a.MissingRequired)
	assert.NotNil(t, a.MissingRequired)
	assert.Empty(t, a.ExtraColumns)
	require.Len(t, a.PreviewRows, 3)
	assert.Equal(t, "Cali", a.PreviewRows[1]["Ciudad"])
	assert.Equal(t, float64(30), a.PreviewRows[2]["Ventas"])
}

func TestAnalyze_DuplicateMatchFirstHeaderWins(t *testing.T) {
	s := &domain.Schema{Fields: map[string]domain.FieldDef{
		"ciudad":      {Aliases: []string{"city_name"}},
		"presupuesto": {Required: true},
	}}
	a := analyze(t, [][]any{
		{"Ciudad", "city_name", "Budget"},
		{"Bogota", "Bogota", 100},
	}, s, 50)

	assert.Equal(t, map[string]string{"Ciudad": "ciudad"}, a.Suggestions)
	assert.Equal(t, []string{"city_name", "Budget"}, a.ExtraColumns)
	assert.Equal(t, []string{"presupuesto"}, a.MissingRequired)
}

func TestAnalyze_BlankRowEndsPreview(t *testing.T) {
	rows := [][]any{{"Fecha", "Ciudad", "Ventas"}}
	for i := 0; i < 5; i++ {
		rows = append(rows, []any{"2024-01-01", "Cali", i})
	}
	rows = append(rows, []any{nil, nil, nil}, []any{"x", "y", 1}, []any{"x", "y", 2})

	a := analyze(t, rows, salesSchema, 50)
	assert.Len(t, a.PreviewRows, 5)
}

func TestAnalyze_PreviewLimit(t *testing.T) {
	rows := [][]any{{"Fecha"}}
	for i := 0; i < 10; i++ {
		rows = append(rows, []any{i})
	}
	assert.Len(t, analyze(t, rows, salesSchema, 4).PreviewRows, 4)
	assert.Len(t, analyze(t, rows, salesSchema, 0).PreviewRows, 10, "zero uses the default limit")
}

func TestAnalyze_MissingRequiredSorted(t *testing.T) {
	a := analyze(t, [][]any{{"notes"}}, salesSchema, 50)
	assert.Equal(t, []string{"ciudad", "fecha", "ventas"}, a.MissingRequired)
	assert.Equal(t, []string{"notes"}, a.ExtraColumns)
	assert.Empty(t, a.PreviewRows)
}

func TestAnalyze_Unreadable(t *testing.T) {
	_, err := Analyze([]byte("plain text"), salesSchema, schema.BuildAliasIndex(salesSchema), 50)
	assert.ErrorIs(t, err, sheet.ErrUnreadable)
}
