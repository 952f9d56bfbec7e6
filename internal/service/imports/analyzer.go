package imports

import (
	"sort"

	"github.com/samber/lo"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/schema"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/sheet"
)

// DefaultPreviewLimit is the number of data rows returned by analyze.
const DefaultPreviewLimit = 50

// Analysis describes an uploaded file against a schema. Preview rows are
// keyed by the file's own headers, so any key is possible.
type Analysis struct {
	Headers         []string          `json:"headers"`
	PreviewRows     []map[string]any  `json:"previewRows"`
	Suggestions     map[string]string `json:"suggestions"`
	MissingRequired []string          `json:"missingRequired"`
	ExtraColumns    []string          `json:"extraColumns"`
}

// Analyze parses data and suggests a column mapping. It does not touch the
// import record.
//
// When two headers resolve to the same canonical field only the first one is
// suggested; the later ones are reported as extra columns.
func Analyze(data []byte, s *domain.Schema, idx schema.AliasIndex, limit int) (*Analysis, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	sh, err := sheet.Parse(data)
	if err != nil {
		return nil, err
	}
	defer sh.Close()

	a := &Analysis{
		Headers:         lo.Ternary(sh.Headers == nil, []string{}, sh.Headers),
		PreviewRows:     []map[string]any{},
		Suggestions:     map[string]string{},
		MissingRequired: []string{},
		ExtraColumns:    []string{},
	}
	for _, r := range sh.Preview(limit) {
		a.PreviewRows = append(a.PreviewRows, r.Map())
	}

	claimed := map[string]bool{}
	for _, h := range a.Headers {
		field, ok := idx.Lookup(h)
		if !ok || claimed[field] {
			a.ExtraColumns = append(a.ExtraColumns, h)
			continue
		}
		claimed[field] = true
		a.Suggestions[h] = field
	}

	for _, f := range s.RequiredFields() {
		if !claimed[f] {
			a.MissingRequired = append(a.MissingRequired, f)
		}
	}
	sort.Strings(a.MissingRequired)
	return a, nil
}
