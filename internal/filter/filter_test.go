package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/resolve"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

func studentRows(t *testing.T) []resolve.Row {
	t.Helper()
	reg := schema.MustLoad()
	res := resolve.New(reg, resolve.Collections{
		"department": {{"_id": "d1", "name": "Computer Science"}},
	})
	return res.ResolveAll("student", []record.Record{
		{"_id": "s1", "name": "Alice", "student_id": "S001", "email": "alice@x.edu", "department_id": "d1"},
		{"_id": "s2", "name": "Bob", "student_id": "S002", "email": "bob@x.edu", "department_id": "d1"},
		{"_id": "s3", "name": "Carol", "student_id": "S003", "email": "carol@x.edu", "department_id": "d9"},
	})
}

func rowIDs(rows []resolve.Row) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ID())
	}
	return out
}

var studentPaths = []string{"name", "student_id", "email"}

func TestFilter_AliceThenEmpty(t *testing.T) {
	rows := studentRows(t)
	ix := NewIndex(rows, studentPaths)

	assert.Equal(t, []string{"s1"}, rowIDs(ix.Search("alice", nil)))
	assert.Equal(t, []string{"s1", "s2", "s3"}, rowIDs(ix.Search("", nil)))
}

func TestFilter_WhitespaceIsLiteral(t *testing.T) {
	rows := studentRows(t)
	assert.Empty(t, Filter(rows, studentPaths, " ali", nil))
	assert.Empty(t, Filter(rows, studentPaths, "   ", nil))
}

func TestFilter_CaseInsensitiveOR(t *testing.T) {
	rows := studentRows(t)
	assert.Equal(t, []string{"s2"}, rowIDs(Filter(rows, studentPaths, "BOB@", nil)))
	assert.Equal(t, []string{"s1", "s2", "s3"}, rowIDs(Filter(rows, studentPaths, "s00", nil)))
}

func TestFilter_ResolvedPath(t *testing.T) {
	rows := studentRows(t)
	got := Filter(rows, []string{"department_id.name"}, "computer", nil)
	assert.Equal(t, []string{"s1", "s2"}, rowIDs(got))

	// unresolved references display as N/A and are searchable as such
	got = Filter(rows, []string{"department_id.name"}, "n/a", nil)
	assert.Equal(t, []string{"s3"}, rowIDs(got))
}

func TestFilter_Idempotent(t *testing.T) {
	rows := studentRows(t)
	for _, q := range []string{"", "a", "alice", "S00", "zzz"} {
		once := Filter(rows, studentPaths, q, nil)
		twice := Filter(once, studentPaths, q, nil)
		assert.Equal(t, rowIDs(once), rowIDs(twice), q)
	}
}

func TestFilter_StatusPredicate(t *testing.T) {
	reg := schema.MustLoad()
	res := resolve.New(reg, resolve.Collections{
		"student": {{"_id": "s1", "name": "Alice"}, {"_id": "s2", "name": "Bob"}},
		"course":  {{"_id": "c1", "name": "Algebra"}},
	})
	rows := res.ResolveAll("attendance", []record.Record{
		{"_id": "a1", "student_id": "s1", "course_id": "c1", "status": "Present"},
		{"_id": "a2", "student_id": "s2", "course_id": "c1", "status": "Absent"},
		{"_id": "a3", "student_id": "s1", "course_id": "c1", "status": "Absent"},
	})
	paths := reg.Entity("attendance").SearchFields

	got := Filter(rows, paths, "alice", StatusIs("status", "Absent"))
	assert.Equal(t, []string{"a3"}, rowIDs(got))

	got = Filter(rows, paths, "", StatusIs("status", All))
	require.Len(t, got, 3)
	assert.Nil(t, StatusIs("status", ""))
}
