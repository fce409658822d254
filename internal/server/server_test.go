package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/collegeadmin/internal/activity"
	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/repository"
	"github.com/matthewbaird/collegeadmin/internal/schema"
	"github.com/matthewbaird/collegeadmin/internal/seed"
	"github.com/matthewbaird/collegeadmin/internal/store"
)

func newTestServer(t *testing.T, requireAuth bool) (*store.Client, *httptest.Server) {
	t.Helper()
	repo := repository.NewMemoryStore()
	require.NoError(t, seed.College(context.Background(), repo, zerolog.Nop(), time.Now()))
	return newServer(t, repo, func(c *Config) { c.RequireAuth = requireAuth })
}

func newServer(t *testing.T, repo repository.Store, configure func(*Config)) (*store.Client, *httptest.Server) {
	t.Helper()
	reg := schema.MustLoad()
	cfg := Config{
		Registry:  reg,
		Store:     repo,
		JWTSecret: "test-secret-0123456789",
		JWTIssuer: "collegeadmin-test",
		TokenTTL:  time.Hour,
		Logger:    zerolog.Nop(),
		Activity:  activity.NewIndexer(reg, activity.NewMemoryStore()),
	}
	if configure != nil {
		configure(&cfg)
	}
	ts := httptest.NewServer(New(cfg).Router())
	t.Cleanup(ts.Close)
	return store.New(ts.URL+"/api", reg, store.WithHTTPClient(ts.Client())), ts
}

func statusOf(t *testing.T, err error) (int, string) {
	t.Helper()
	var se *store.Error
	require.ErrorAs(t, err, &se)
	return se.Status, se.Message
}

func validCourse() record.Record {
	return record.Record{
		"course_id":     "CS301",
		"name":          "Operating Systems",
		"description":   "Processes and memory",
		"credits":       "4",
		"semester":      5,
		"department_id": "dep-cs",
		"faculty_id":    "stf-hopper",
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newTestServer(t, false)
	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateAndList(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx := context.Background()

	created, err := client.Create(ctx, "course", validCourse())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID())
	assert.Equal(t, 4.0, created["credits"])
	assert.NotEmpty(t, created.String("createdAt"))

	list, err := client.List(ctx, "course")
	require.NoError(t, err)
	require.Len(t, list, 4)
	assert.Equal(t, created.ID(), list[3].ID())

	got, err := client.Get(ctx, "course", created.ID())
	require.NoError(t, err)
	assert.Equal(t, "Operating Systems", got.String("name"))
}

func TestCreate_RejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(record.Record)
		status  int
		message string
	}{
		{
			name:    "credits above range",
			mutate:  func(r record.Record) { r["credits"] = 7 },
			status:  http.StatusBadRequest,
			message: "Credits must be at most 6",
		},
		{
			name:    "missing name",
			mutate:  func(r record.Record) { delete(r, "name") },
			status:  http.StatusBadRequest,
			message: "Name is required",
		},
		{
			name:    "unknown department",
			mutate:  func(r record.Record) { r["department_id"] = "dep-nope" },
			status:  http.StatusBadRequest,
			message: "Department refers to an unknown department",
		},
		{
			name:    "duplicate business key",
			mutate:  func(r record.Record) { r["course_id"] = "cs101" },
			status:  http.StatusConflict,
			message: "Course ID already exists",
		},
	}

	client, _ := newTestServer(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validCourse()
			tt.mutate(payload)
			_, err := client.Create(context.Background(), "course", payload)
			status, msg := statusOf(t, err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestCreate_EnumAndMultiRef(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx := context.Background()

	_, err := client.Create(ctx, "fee", record.Record{"student_id": "stu-ada", "amount": 10, "status": "Waived"})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Status must be one of Pending, Paid, Overdue", msg)

	_, err = client.Create(ctx, "student", record.Record{
		"student_id": "S-2000", "name": "Emmy", "email": "e@x.edu", "phone": "1", "dob": "2003-03-23T00:00:00.000Z",
		"gender": "Female", "address": "Erlangen", "department_id": "dep-math",
		"course_ids": []any{"crs-ma101", "crs-missing"},
	})
	status, msg = statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Courses refers to an unknown course", msg)
}

func TestUpdate_ImmutableAndPartial(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx := context.Background()

	_, err := client.Update(ctx, "course", "crs-cs101", record.Record{"course_id": "CS999"})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Course ID cannot be changed", msg)

	updated, err := client.Update(ctx, "course", "crs-cs101", record.Record{"course_id": "CS101", "credits": 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, updated["credits"])
	assert.Equal(t, "Introduction to Programming", updated.String("name"))

	_, err = client.Update(ctx, "course", "crs-gone", record.Record{"credits": 2})
	assert.True(t, store.IsNotFound(err))
}

func TestDelete_RefusesReferencedRecords(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx := context.Background()

	err := client.Delete(ctx, "department", "dep-math")
	assert.True(t, store.IsConflict(err))

	require.NoError(t, client.Delete(ctx, "notice", "ntc-1"))
	assert.True(t, store.IsNotFound(client.Delete(ctx, "notice", "ntc-1")))

	// Results reference exams; once removed the exam can go.
	require.NoError(t, client.Delete(ctx, "result", "res-2"))
	require.NoError(t, client.Delete(ctx, "exam", "exm-ma101-mid"))
}

func TestUserPasswordIsWriteOnly(t *testing.T) {
	client, _ := newTestServer(t, false)
	ctx := context.Background()

	u, err := client.Create(ctx, "user", record.Record{"username": "registrar", "email": "reg@college.edu", "password": "s3cret"})
	require.NoError(t, err)
	assert.NotContains(t, u, "password")

	_, err = client.Create(ctx, "user", record.Record{"username": "nopass", "email": "np@college.edu"})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Password is required", msg)

	// Editing without a password keeps the stored one.
	_, err = client.Update(ctx, "user", u.ID(), record.Record{"username": "registrar2", "email": "reg@college.edu"})
	require.NoError(t, err)

	sess, err := client.Login(ctx, store.Credentials{Email: "reg@college.edu", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "registrar2", sess.User.String("username"))
	assert.NotContains(t, sess.User, "password")
}

func TestAuth_RequiredTokenAndLogout(t *testing.T) {
	client, _ := newTestServer(t, true)
	ctx := context.Background()

	_, err := client.List(ctx, "student")
	assert.True(t, store.IsUnauthorized(err))

	_, err = client.Login(ctx, store.Credentials{Email: seed.AdminEmail, Password: "wrong"})
	assert.True(t, store.IsUnauthorized(err))

	_, err = client.Login(ctx, store.Credentials{Email: "not-an-email", Password: "x"})
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "A valid email is required", msg)

	_, err = client.Login(ctx, store.Credentials{Email: seed.AdminEmail, Password: seed.AdminPassword})
	require.NoError(t, err)
	token := client.Token()

	students, err := client.List(ctx, "student")
	require.NoError(t, err)
	assert.Len(t, students, 2)

	require.NoError(t, client.Logout(ctx))

	// The old token is revoked on the server.
	client.SetToken(token)
	_, err = client.List(ctx, "student")
	assert.True(t, store.IsUnauthorized(err))
}

func TestRecovery(t *testing.T) {
	h := Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Internal server error"}`, rec.Body.String())
}

func TestActivityFeed(t *testing.T) {
	client, ts := newTestServer(t, true)
	ctx := context.Background()
	_, err := client.Login(ctx, store.Credentials{Email: seed.AdminEmail, Password: seed.AdminPassword})
	require.NoError(t, err)

	created, err := client.Create(ctx, "course", validCourse())
	require.NoError(t, err)
	_, err = client.Update(ctx, "course", created.ID(), record.Record{"credits": 2})
	require.NoError(t, err)

	get := func(path string) activityPage {
		req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+client.Token())
		resp, err := ts.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var page activityPage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
		return page
	}

	page := get("/api/activity/course/" + created.ID())
	require.Equal(t, 2, page.Total)
	assert.Equal(t, activity.OpUpdated, page.Entries[0].Op)
	assert.Equal(t, "Course Operating Systems updated by "+seed.AdminEmail, page.Entries[0].Summary)

	// The referenced department sees the new course too.
	dept := get("/api/activity/department/dep-cs?op=created")
	require.Equal(t, 1, dept.Total)
	assert.Equal(t, created.ID(), dept.Entries[0].RecordID)

	found := get("/api/activity/search?q=operating&entity=course")
	assert.Equal(t, 2, found.Total)
}

func TestBootstrap_FromEmptyStore(t *testing.T) {
	client, _ := newServer(t, repository.NewMemoryStore(), nil)
	ctx := context.Background()

	dept, err := client.Create(ctx, "department", record.Record{"department_id": "PHY", "name": "Physics"})
	require.NoError(t, err)

	head, err := client.Create(ctx, "staff", record.Record{
		"faculty_id": "F-PHY-1", "name": "Lise Meitner", "email": "meitner@college.edu", "phone": "555-0199",
		"role": "HOD", "specialization": "Nuclear Physics", "department_id": dept.ID(),
	})
	require.NoError(t, err)

	dept, err = client.Update(ctx, "department", dept.ID(), record.Record{"hod": head.ID()})
	require.NoError(t, err)
	assert.Equal(t, head.ID(), dept.String("hod"))

	course, err := client.Create(ctx, "course", record.Record{
		"course_id": "PHY101", "name": "Mechanics", "description": "Motion", "credits": 4, "semester": 1,
		"department_id": dept.ID(), "faculty_id": head.ID(),
	})
	require.NoError(t, err)

	student, err := client.Create(ctx, "student", record.Record{
		"student_id": "P001", "name": "Emmy", "email": "emmy@college.edu", "phone": "555-0123",
		"dob": "2003-03-23", "gender": "Female", "address": "1 Campus Way",
		"department_id": dept.ID(), "course_ids": []string{course.ID()},
	})
	require.NoError(t, err)

	// Tear down in reverse; the department head must be released first.
	require.NoError(t, client.Delete(ctx, "student", student.ID()))
	require.NoError(t, client.Delete(ctx, "course", course.ID()))

	err = client.Delete(ctx, "staff", head.ID())
	status, msg := statusOf(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Cannot delete staff: it is still referenced by departments", msg)

	_, err = client.Update(ctx, "department", dept.ID(), record.Record{"hod": ""})
	require.NoError(t, err)
	require.NoError(t, client.Delete(ctx, "staff", head.ID()))
	require.NoError(t, client.Delete(ctx, "department", dept.ID()))

	depts, err := client.List(ctx, "department")
	require.NoError(t, err)
	assert.Empty(t, depts)
}
