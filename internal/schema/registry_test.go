package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CollegeRegistry(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"user", "department", "staff", "course", "student",
		"attendance", "exam", "result", "fee", "notice",
	}, reg.EntityNames())
}

func TestContract_Student(t *testing.T) {
	reg := MustLoad()

	c, err := reg.Contract("student")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"student_id", "name", "email", "phone", "dob", "gender", "address", "department_id", "course_ids",
	}, c.RequiredFields)
	assert.Equal(t, map[string]string{"department_id": "department"}, c.SingleRefs)
	assert.Equal(t, map[string]string{"course_ids": "course"}, c.MultiRefs)
}

func TestContract_UnknownEntity(t *testing.T) {
	reg := MustLoad()
	_, err := reg.Contract("library")
	assert.Error(t, err)
}

func TestFieldMeta_Bounds(t *testing.T) {
	reg := MustLoad()
	credits := reg.Entity("course").Field("credits")
	require.NotNil(t, credits)

	assert.Equal(t, FieldInt, credits.Type)
	require.NotNil(t, credits.Min)
	require.NotNil(t, credits.Max)
	assert.Equal(t, 1.0, *credits.Min)
	assert.Equal(t, 6.0, *credits.Max)
	assert.Equal(t, 3.0, credits.Default)

	marks := reg.Entity("exam").Field("total_marks")
	assert.True(t, marks.MinExclusive)
	assert.Nil(t, marks.Max)
}

func TestImmutableBusinessKeys(t *testing.T) {
	reg := MustLoad()
	cases := map[string]string{
		"attendance": "attendance_id",
		"course":     "course_id",
		"student":    "student_id",
		"department": "department_id",
		"staff":      "faculty_id",
	}
	for entity, field := range cases {
		assert.True(t, reg.Entity(entity).Field(field).Immutable, "%s.%s", entity, field)
	}
	// course_id on attendance is a reference, not the course's business key.
	assert.False(t, reg.Entity("attendance").Field("course_id").Immutable)
}

func TestPathsAndLookup(t *testing.T) {
	reg := MustLoad()
	assert.Equal(t, "attenence", reg.Entity("attendance").Path)
	assert.Equal(t, "fees", reg.Entity("fee").Path)
	assert.Equal(t, "fee", reg.ByPath("fees").Name)
	assert.Nil(t, reg.ByPath("library"))
}

func TestDependencies(t *testing.T) {
	reg := MustLoad()
	assert.Equal(t, []string{"department", "course"}, reg.Dependencies("student"))
	assert.Equal(t, []string{"student", "course"}, reg.Dependencies("attendance"))
	assert.Empty(t, reg.Dependencies("user"))
}

func TestReferrers(t *testing.T) {
	reg := MustLoad()
	refs := reg.Referrers("department")
	assert.ElementsMatch(t, []EdgeRef{
		{Entity: "staff", Field: "department_id"},
		{Entity: "course", Field: "department_id"},
		{Entity: "student", Field: "department_id"},
	}, refs)
}

func TestValidate_ReportsDanglingTarget(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&EntitySchema{
		Name:         "book",
		Title:        "Book",
		DisplayField: "title",
		SearchFields: []string{"title", "library_id.name"},
		Fields: map[string]*FieldMeta{
			"title":      {Name: "title", Type: FieldString},
			"library_id": {Name: "library_id", Type: FieldRef, Target: "library"},
		},
		FieldOrder: []string{"title", "library_id"},
	})

	err := reg.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 2)
}

func TestValidate_RejectsReferenceDisplayField(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&EntitySchema{
		Name:         "author",
		Title:        "Author",
		DisplayField: "book_id",
		Fields: map[string]*FieldMeta{
			"book_id": {Name: "book_id", Type: FieldRef, Target: "book"},
		},
		FieldOrder: []string{"book_id"},
	})
	reg.Register(&EntitySchema{
		Name:         "book",
		Title:        "Book",
		DisplayField: "author_id",
		Fields: map[string]*FieldMeta{
			"author_id": {Name: "author_id", Type: FieldRef, Target: "author"},
		},
		FieldOrder: []string{"author_id"},
	})

	err := reg.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{
		`author: display field "book_id" must not be a reference`,
		`book: display field "author_id" must not be a reference`,
	}, verr.Problems)
}

func TestLoadBytes_RejectsBadDeclaration(t *testing.T) {
	src := []byte(`
entities: book: {
	title: "Book"
	plural: "books"
	path: "book"
	display: "title"
	search: ["title"]
	fields: title: {type: "text", label: "Title"}
}
`)
	_, err := LoadBytes("bad.cue", src)
	assert.Error(t, err)
}
