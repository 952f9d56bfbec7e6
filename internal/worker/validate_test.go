package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
)

func TestCheckValue(t *testing.T) {
	cases := []struct {
		name  string
		def   domain.FieldDef
		value any
		ok    bool
	}{
		{"untyped accepts anything", domain.FieldDef{}, "anything", true},
		{"empty optional", domain.FieldDef{Type: domain.FieldNumber}, nil, true},
		{"empty required", domain.FieldDef{Required: true}, "  ", false},
		{"number from cell", domain.FieldDef{Type: domain.FieldNumber}, 12.5, true},
		{"number from text", domain.FieldDef{Type: domain.FieldNumber}, " 1,250.75 ", true},
		{"number rejects words", domain.FieldDef{Type: domain.FieldNumber}, "twelve", false},
		{"bool cell", domain.FieldDef{Type: domain.FieldBoolean}, true, true},
		{"bool text", domain.FieldDef{Type: domain.FieldBoolean}, "false", true},
		{"bool rejects words", domain.FieldDef{Type: domain.FieldBoolean}, "maybe", false},
		{"date cell", domain.FieldDef{Type: domain.FieldDate}, time.Now(), true},
		{"date iso text", domain.FieldDef{Type: domain.FieldDate}, "2024-03-09", true},
		{"date slash text", domain.FieldDef{Type: domain.FieldDate}, "3/9/2024", true},
		{"date rejects words", domain.FieldDef{Type: domain.FieldDate}, "next week", false},
		{"date rejects numbers", domain.FieldDef{Type: domain.FieldDate}, 45000.0, false},
		{"string accepts numbers", domain.FieldDef{Type: domain.FieldString}, 7.0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := checkValue(tc.def, tc.value)
			if tc.ok {
				assert.Empty(t, msg)
			} else {
				assert.NotEmpty(t, msg)
			}
		})
	}
}
