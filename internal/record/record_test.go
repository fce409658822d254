package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"bare id", "d1", "d1"},
		{"embedded object", map[string]any{"_id": "d1", "name": "CS"}, "d1"},
		{"embedded record", Record{"_id": "d2"}, "d2"},
		{"object without id", map[string]any{"name": "CS"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IDOf(tt.in))
		})
	}
}

func TestIDsOf_DedupesAndKeepsOrder(t *testing.T) {
	in := []any{
		"c2",
		map[string]any{"_id": "c1", "name": "Algebra"},
		"c2",
		"",
		map[string]any{"name": "no id"},
	}
	assert.Equal(t, []string{"c2", "c1"}, IDsOf(in))
	assert.Equal(t, []string{}, IDsOf(nil))
	assert.Equal(t, []string{"a", "b"}, IDsOf([]string{"a", "b", "a"}))
}

func TestNormalizeDate(t *testing.T) {
	assert.Equal(t, "2024-03-05", NormalizeDate("2024-03-05T00:00:00.000Z"))
	assert.Equal(t, "2024-03-05", NormalizeDate("2024-03-05"))
	assert.Equal(t, "", NormalizeDate(nil))
	assert.Equal(t, "next tuesday", NormalizeDate("next tuesday"))
	assert.Equal(t, "2000-01-15", NormalizeDate("2000-01-15T00:00:00+05:30"))
	assert.Equal(t, "2000-01-15", NormalizeDate("2000-01-15T23:30:00-08:00"))
	assert.Equal(t, "2024-03-05", NormalizeDate("2024-03-05 10:00"))
	assert.Equal(t, "2024-01-01xyz", NormalizeDate("2024-01-01xyz"))
}

func TestClone_IsDeep(t *testing.T) {
	orig := Record{
		"_id":        "s1",
		"course_ids": []any{"c1"},
		"department": map[string]any{"_id": "d1"},
	}
	c := orig.Clone()
	c["course_ids"].([]any)[0] = "c9"
	c["department"].(map[string]any)["_id"] = "d9"

	assert.Equal(t, "c1", orig["course_ids"].([]any)[0])
	assert.Equal(t, "d1", orig["department"].(map[string]any)["_id"])
}

func TestSameIDSet(t *testing.T) {
	assert.True(t, SameIDSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, SameIDSet([]string{"a", "b"}, []string{"a", "a"}))
	assert.False(t, SameIDSet([]string{"a"}, []string{"a", "b"}))
}
