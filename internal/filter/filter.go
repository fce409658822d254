// Package filter narrows resolved rows by free-text search and an optional
// categorical predicate. It works only on rows already in memory.
package filter

import (
	"strings"

	"github.com/matthewbaird/collegeadmin/internal/resolve"
)

// All is the predicate value that disables a status filter.
const All = "all"

// Predicate is ANDed with the text match. A nil predicate accepts every row.
type Predicate func(resolve.Row) bool

// StatusIs matches rows whose field displays exactly value. An empty value
// or All yields a nil predicate.
func StatusIs(field, value string) Predicate {
	if value == "" || strings.EqualFold(value, All) {
		return nil
	}
	return func(r resolve.Row) bool {
		return r.Display(field) == value
	}
}

// Filter returns the rows whose display value at any of paths contains
// query case-insensitively, and that satisfy pred. Order is preserved; an
// empty query with a nil predicate returns all rows.
func Filter(rows []resolve.Row, paths []string, query string, pred Predicate) []resolve.Row {
	return NewIndex(rows, paths).Search(query, pred)
}

// Index precomputes the lower-cased search keys of a row set so repeated
// searches (one per keystroke) do not re-render every display path.
type Index struct {
	rows []resolve.Row
	keys [][]string
}

// NewIndex builds an index over rows for the given display paths.
func NewIndex(rows []resolve.Row, paths []string) *Index {
	ix := &Index{rows: rows, keys: make([][]string, len(rows))}
	for i, r := range rows {
		k := make([]string, 0, len(paths))
		for _, p := range paths {
			k = append(k, strings.ToLower(r.Display(p)))
		}
		ix.keys[i] = k
	}
	return ix
}

// Len returns the number of indexed rows.
func (ix *Index) Len() int {
	return len(ix.rows)
}

// Search applies query and pred.
func (ix *Index) Search(query string, pred Predicate) []resolve.Row {
	q := strings.ToLower(query)
	out := make([]resolve.Row, 0, len(ix.rows))
	for i, r := range ix.rows {
		if q != "" && !matchAny(ix.keys[i], q) {
			continue
		}
		if pred != nil && !pred(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchAny(keys []string, q string) bool {
	for _, k := range keys {
		if strings.Contains(k, q) {
			return true
		}
	}
	return false
}
