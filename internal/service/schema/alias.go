package schema

import (
	"strings"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lower = cases.Lower(language.Und)

// Normalize trims s, lowercases it and collapses inner whitespace runs to a
// single space. Header cells and aliases are compared in this form.
func Normalize(s string) string {
	return lower.String(strings.Join(strings.Fields(s), " "))
}

// Conflict is an alias claimed by more than one canonical field.
type Conflict struct {
	Alias string
	Kept  string // field the alias resolves to
	Lost  string // field whose claim was ignored
}

// AliasIndex maps normalized header strings to canonical field names.
type AliasIndex struct {
	fields    map[string]string
	conflicts []Conflict
}

// BuildAliasIndex indexes every field name and alias of s. Fields are visited
// in sorted name order and, within a field, the name before its aliases in
// declared order. The first field to claim a normalized string keeps it.
func BuildAliasIndex(s *domain.Schema) AliasIndex {
	idx := AliasIndex{fields: make(map[string]string)}
	if s == nil {
		return idx
	}
	for _, name := range s.FieldNames() {
		idx.add(name, name)
		for _, alias := range s.Fields[name].Aliases {
			idx.add(alias, name)
		}
	}
	return idx
}

func (idx *AliasIndex) add(raw, field string) {
	key := Normalize(raw)
	if key == "" {
		return
	}
	if existing, ok := idx.fields[key]; ok {
		if existing != field {
			idx.conflicts = append(idx.conflicts, Conflict{Alias: key, Kept: existing, Lost: field})
		}
		return
	}
	idx.fields[key] = field
}

// Lookup returns the canonical field a header resolves to.
func (idx AliasIndex) Lookup(header string) (string, bool) {
	f, ok := idx.fields[Normalize(header)]
	return f, ok
}

// Len returns the number of indexed strings.
func (idx AliasIndex) Len() int { return len(idx.fields) }

// Conflicts lists aliases claimed by more than one field.
func (idx AliasIndex) Conflicts() []Conflict { return idx.conflicts }
