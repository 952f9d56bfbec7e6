package worker

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cast"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/domain"
)

// checkValue reports why v is not acceptable for def, or "" when it is.
// Empty cells only fail required fields.
func checkValue(def domain.FieldDef, v any) string {
	if isBlank(v) {
		if def.Required {
			return "required value is empty"
		}
		return ""
	}

	switch def.Type {
	case domain.FieldNumber:
		if _, err := cast.ToFloat64E(numberText(v)); err != nil {
			return fmt.Sprintf("expected a number, got %q", cast.ToString(v))
		}
	case domain.FieldBoolean:
		if _, err := cast.ToBoolE(v); err != nil {
			return fmt.Sprintf("expected true/false, got %q", cast.ToString(v))
		}
	case domain.FieldDate:
		switch t := v.(type) {
		case time.Time:
		case string:
			if _, err := dateparse.ParseAny(strings.TrimSpace(t)); err != nil {
				return fmt.Sprintf("expected a date, got %q", t)
			}
		default:
			return fmt.Sprintf("expected a date, got %q", cast.ToString(v))
		}
	}
	return ""
}

// numberText strips thousands separators from text cells so "1,250" passes.
func numberText(v any) any {
	if s, ok := v.(string); ok {
		return strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	}
	return v
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}
