package domain

import "sort"

// FieldType optionally constrains the values accepted for a canonical field.
// An empty type accepts anything.
type FieldType string

const (
	FieldAny     FieldType = ""
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldDate    FieldType = "date"
	FieldBoolean FieldType = "boolean"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldAny, FieldString, FieldNumber, FieldDate, FieldBoolean:
		return true
	}
	return false
}

// FieldDef describes one canonical field of an import schema.
type FieldDef struct {
	Required bool      `json:"required"`
	Aliases  []string  `json:"aliases"`
	Type     FieldType `json:"type,omitempty"`
}

// Schema is a versioned set of canonical fields for a (tenant class, import
// type) pair. At most one version per pair is active.
type Schema struct {
	TenantClass string              `json:"tenantClass"`
	ImportType  string              `json:"importType"`
	Version     int                 `json:"version"`
	Active      bool                `json:"active"`
	Fields      map[string]FieldDef `json:"fields"`
}

// FieldNames returns the canonical field names in sorted order.
func (s *Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RequiredFields returns the required canonical field names in sorted order.
func (s *Schema) RequiredFields() []string {
	var out []string
	for _, name := range s.FieldNames() {
		if s.Fields[name].Required {
			out = append(out, name)
		}
	}
	return out
}

// TemplateHeaders orders the canonical field names for a blank import
// template: required fields first, then optional, each group sorted.
func (s *Schema) TemplateHeaders() []string {
	required := s.RequiredFields()
	out := make([]string, 0, len(s.Fields))
	out = append(out, required...)
	for _, name := range s.FieldNames() {
		if !s.Fields[name].Required {
			out = append(out, name)
		}
	}
	return out
}
