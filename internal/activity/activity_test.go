package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/schema"
)

func testEntry(entity, id string, op Op, summary string, daysAgo int) Entry {
	return Entry{
		EventID:       "test-" + summary,
		Op:            op,
		Entity:        entity,
		RecordID:      id,
		OccurredAt:    time.Now().AddDate(0, 0, -daysAgo),
		IndexedEntity: entity,
		IndexedID:     id,
		Role:          RoleSubject,
		Summary:       summary,
	}
}

func TestMemoryStore_WriteAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.WriteEntries(ctx, []Entry{
		testEntry("student", "ada", OpCreated, "Student Ada created", 10),
		testEntry("student", "ada", OpUpdated, "Student Ada updated", 5),
		testEntry("student", "carl", OpCreated, "Student Carl created", 10),
	}))

	results, next, total, err := store.QueryByRecord(ctx, "student", "ada", QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, next)
	require.Len(t, results, 2)
	assert.Equal(t, OpUpdated, results[0].Op, "newest first")
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.WriteEntries(ctx, []Entry{
		testEntry("fee", "f1", OpCreated, "Fee 100 created", 40),
		testEntry("fee", "f1", OpUpdated, "Fee 120 updated", 20),
		testEntry("fee", "f1", OpUpdated, "Fee 150 updated", 1),
	}))

	results, _, total, err := store.QueryByRecord(ctx, "fee", "f1", QueryOptions{Ops: []Op{OpCreated}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Fee 100 created", results[0].Summary)

	since := time.Now().AddDate(0, 0, -30)
	_, _, total, err = store.QueryByRecord(ctx, "fee", "f1", QueryOptions{Since: &since})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestMemoryStore_Pagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	for i := range 5 {
		require.NoError(t, store.WriteEntries(ctx, []Entry{testEntry("exam", "e1", OpUpdated, "update", i)}))
	}

	page1, cursor, total, err := store.QueryByRecord(ctx, "exam", "e1", QueryOptions{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page1, 3)
	require.NotEmpty(t, cursor)

	page2, cursor, _, err := store.QueryByRecord(ctx, "exam", "e1", QueryOptions{Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	assert.Len(t, page2, 2)
	assert.Empty(t, cursor)
}

func TestMemoryStore_Search(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.WriteEntries(ctx, []Entry{
		testEntry("student", "ada", OpCreated, "Student Ada Lovelace created", 2),
		testEntry("course", "cs101", OpCreated, "Course Programming created", 1),
	}))

	results, total, err := store.Search(ctx, "LOVELACE", SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "ada", results[0].RecordID)

	_, total, err = store.Search(ctx, "created", SearchOptions{Entity: "course"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIndexer_IndexesSubjectAndReferences(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	idx := NewIndexer(schema.MustLoad(), store)

	err := idx.Index(ctx, Mutation{
		Op:     OpCreated,
		Entity: "student",
		Actor:  "admin@college.edu",
		Record: record.Record{
			"_id": "stu-1", "name": "Ada Lovelace", "department_id": "dep-cs",
			"course_ids": []any{"c1", "c2", "c1"},
		},
	})
	require.NoError(t, err)

	subject, _, _, err := store.QueryByRecord(ctx, "student", "stu-1", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, subject, 1)
	assert.Equal(t, RoleSubject, subject[0].Role)
	assert.Equal(t, "Student Ada Lovelace created by admin@college.edu", subject[0].Summary)

	dept, _, _, err := store.QueryByRecord(ctx, "department", "dep-cs", QueryOptions{})
	require.NoError(t, err)
	require.Len(t, dept, 1)
	assert.Equal(t, RoleRelated, dept[0].Role)
	assert.Equal(t, "stu-1", dept[0].RecordID)
	assert.Equal(t, subject[0].EventID, dept[0].EventID)

	for _, c := range []string{"c1", "c2"} {
		got, _, total, err := store.QueryByRecord(ctx, "course", c, QueryOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, total, c)
		assert.Equal(t, "student", got[0].Entity)
	}
}

func TestIndexer_RejectsUnknownEntity(t *testing.T) {
	idx := NewIndexer(schema.MustLoad(), NewMemoryStore())
	err := idx.Index(context.Background(), Mutation{Op: OpCreated, Entity: "library", Record: record.Record{"_id": "x"}})
	assert.Error(t, err)
}
