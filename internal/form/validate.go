package form

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

// ValidationError is a field-keyed set of problems with a draft. Submission
// is blocked while it has any entry.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := e.Names()
	if len(names) == 1 {
		return "validation failed: " + e.Fields[names[0]]
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// Names returns the offending field names, sorted.
func (e *ValidationError) Names() []string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks a draft against an entity schema. creating selects the
// create-mode required set. The returned map is empty when the draft is
// valid.
func Validate(es *schema.EntitySchema, draft record.Record, creating bool) map[string]string {
	problems := make(map[string]string)
	for _, name := range es.FieldOrder {
		f := es.Fields[name]
		v := draft[name]
		if isEmpty(v) {
			if f.RequiredFor(creating) {
				problems[name] = f.Label + " is required"
			}
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			problems[name] = msg
		}
	}
	return problems
}

func checkValue(f *schema.FieldMeta, v any) string {
	switch f.Type {
	case schema.FieldInt, schema.FieldFloat:
		n, ok := ToNumber(v)
		if !ok {
			return f.Label + " must be a number"
		}
		if f.Type == schema.FieldInt && n != math.Trunc(n) {
			return f.Label + " must be a whole number"
		}
		if f.Min != nil {
			if f.MinExclusive && n <= *f.Min {
				return fmt.Sprintf("%s must be greater than %s", f.Label, formatNumber(*f.Min))
			}
			if !f.MinExclusive && n < *f.Min {
				return fmt.Sprintf("%s must be at least %s", f.Label, formatNumber(*f.Min))
			}
		}
		if f.Max != nil && n > *f.Max {
			return fmt.Sprintf("%s must be at most %s", f.Label, formatNumber(*f.Max))
		}
	case schema.FieldEnum:
		s := record.Stringify(v)
		for _, allowed := range f.EnumValues {
			if s == allowed {
				return ""
			}
		}
		return fmt.Sprintf("%s must be one of %s", f.Label, strings.Join(f.EnumValues, ", "))
	case schema.FieldDate:
		if _, err := time.Parse(record.DateLayout, record.NormalizeDate(v)); err != nil {
			return f.Label + " must be a date (YYYY-MM-DD)"
		}
	}
	return ""
}

// isEmpty treats nil, blank strings and empty lists as missing.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// ToNumber parses a number or numeric string to a finite float.
func ToNumber(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case float32:
		n = float64(t)
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		f, err := strconv.ParseFloat(record.Stringify(t), 64)
		if err != nil {
			return 0, false
		}
		n = f
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
