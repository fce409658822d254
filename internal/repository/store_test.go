package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/collegeadmin/internal/record"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := OpenSQLite(context.Background(), "file:"+filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestStore_InsertAssignsIDAndKeepsOrder(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := s.Insert(ctx, "course", record.Record{"name": "Algebra"})
			require.NoError(t, err)
			assert.NotEmpty(t, a.ID())

			b, err := s.Insert(ctx, "course", record.Record{"_id": "c2", "name": "Biology"})
			require.NoError(t, err)
			assert.Equal(t, "c2", b.ID())

			_, err = s.Insert(ctx, "student", record.Record{"name": "Ada"})
			require.NoError(t, err)

			list, err := s.List(ctx, "course")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "Algebra", list[0].String("name"))
			assert.Equal(t, "Biology", list[1].String("name"))
		})
	}
}

func TestStore_DuplicateID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Insert(ctx, "course", record.Record{"_id": "c1"})
			require.NoError(t, err)
			_, err = s.Insert(ctx, "course", record.Record{"_id": "c1"})
			assert.ErrorIs(t, err, ErrDuplicate)

			// Same id under another entity is fine.
			_, err = s.Insert(ctx, "student", record.Record{"_id": "c1"})
			assert.NoError(t, err)
		})
	}
}

func TestStore_ReplaceKeepsPosition(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a", "b", "c"} {
				_, err := s.Insert(ctx, "fee", record.Record{"_id": id, "amount": 1.0})
				require.NoError(t, err)
			}
			got, err := s.Replace(ctx, "fee", "b", record.Record{"amount": 250.0, "status": "Paid"})
			require.NoError(t, err)
			assert.Equal(t, "b", got.ID())

			list, err := s.List(ctx, "fee")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{"a", "b", "c"}, []string{list[0].ID(), list[1].ID(), list[2].ID()})
			assert.Equal(t, 250.0, list[1]["amount"])
			assert.Equal(t, "Paid", list[1].String("status"))

			_, err = s.Replace(ctx, "fee", "zzz", record.Record{})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_GetAndDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Insert(ctx, "notice", record.Record{"_id": "n1", "title": "Exams", "tags": []any{"a", "b"}})
			require.NoError(t, err)

			got, err := s.Get(ctx, "notice", "n1")
			require.NoError(t, err)
			assert.Equal(t, "Exams", got.String("title"))
			assert.Equal(t, []any{"a", "b"}, got["tags"])

			require.NoError(t, s.Delete(ctx, "notice", "n1"))
			_, err = s.Get(ctx, "notice", "n1")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "notice", "n1"), ErrNotFound)

			list, err := s.List(ctx, "notice")
			require.NoError(t, err)
			assert.NotNil(t, list)
			assert.Empty(t, list)
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	in := record.Record{"_id": "x", "name": "before"}
	_, err := s.Insert(ctx, "course", in)
	require.NoError(t, err)
	in["name"] = "mutated"

	got, err := s.Get(ctx, "course", "x")
	require.NoError(t, err)
	got["name"] = "also mutated"

	again, err := s.Get(ctx, "course", "x")
	require.NoError(t, err)
	assert.Equal(t, "before", again.String("name"))
}

func TestSQLStore_ReopenContinuesOrder(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	_, err = s.Insert(ctx, "exam", record.Record{"_id": "e1"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Insert(ctx, "exam", record.Record{"_id": "e2"})
	require.NoError(t, err)

	list, err := s.List(ctx, "exam")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "e1", list[0].ID())
	assert.Equal(t, "e2", list[1].ID())
}
