// Package record provides the loosely shaped JSON record exchanged with the
// Remote Store, plus helpers for reading identifiers and dates out of it.
package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IDField is the store-assigned identity key present on every persisted record.
const IDField = "_id"

// DateLayout is the canonical YYYY-MM-DD representation used in drafts.
const DateLayout = "2006-01-02"

// Record is a single entity instance as decoded from the store's JSON body.
type Record map[string]any

// ID returns the store-assigned identifier, or "" if absent.
func (r Record) ID() string {
	return IDOf(r[IDField])
}

// String returns the string form of a scalar field, or "" if absent or nil.
func (r Record) String(field string) string {
	return Stringify(r[field])
}

// Clone returns a deep copy of r. Nested maps and slices are copied so the
// clone can be mutated without touching the original.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case Record:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// IDOf extracts an identifier from a reference value. The store may send a
// reference either as a bare id string or as an embedded object carrying
// "_id"; both forms are accepted.
func IDOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		return IDOf(t[IDField])
	case Record:
		return IDOf(t[IDField])
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// IDsOf extracts an ordered, duplicate-free id list from a multi-valued
// reference. Empty ids are skipped.
func IDsOf(v any) []string {
	var raw []any
	switch t := v.(type) {
	case nil:
		return []string{}
	case []string:
		raw = make([]any, len(t))
		for i, s := range t {
			raw[i] = s
		}
	case []any:
		raw = t
	case []map[string]any:
		raw = make([]any, len(t))
		for i, m := range t {
			raw[i] = m
		}
	default:
		raw = []any{t}
	}

	ids := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		id := IDOf(item)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Stringify renders a scalar JSON value for display and matching.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeDate converts a date-ish value (RFC 3339 timestamp, ISO date with
// a "T" or space separated time suffix, or plain YYYY-MM-DD) to YYYY-MM-DD. Unparseable input is
// returned unchanged so the operator can still see and correct it.
func NormalizeDate(v any) string {
	s := strings.TrimSpace(Stringify(v))
	if s == "" {
		return ""
	}
	// The calendar date is the literal prefix; offsets are not applied.
	if _, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return s[:len(DateLayout)]
	}
	if len(s) == len(DateLayout) || (len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ')) {
		if t, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return t.Format(DateLayout)
		}
	}
	return s
}

// SameIDSet reports whether a and b contain the same ids regardless of order.
func SameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, id := range a {
		seen[id]++
	}
	for _, id := range b {
		if seen[id] == 0 {
			return false
		}
		seen[id]--
	}
	return true
}
