// Package seed provides demo data for the reference backend.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/matthewbaird/collegeadmin/internal/record"
	"github.com/matthewbaird/collegeadmin/internal/repository"
)

// Admin credentials of the seeded operator account.
const (
	AdminEmail    = "admin@college.edu"
	AdminPassword = "admin123"
)

type row struct {
	entity string
	rec    record.Record
}

// College seeds a small, referentially consistent college: one department
// per discipline with its head, courses, students and their day-to-day
// records. If any user already exists, it skips seeding.
func College(ctx context.Context, store repository.Store, logger zerolog.Logger, now time.Time) error {
	users, err := store.List(ctx, "user")
	if err != nil {
		return fmt.Errorf("checking users: %w", err)
	}
	if len(users) > 0 {
		logger.Info().Int("users", len(users)).Msg("already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing admin password: %w", err)
	}

	stamp := now.UTC().Format(time.RFC3339)
	today := now.Format(record.DateLayout)

	// Departments and their heads reference each other, so both are
	// inserted with fixed ids.
	rows := []row{
		{"user", record.Record{"_id": "usr-admin", "username": "admin", "email": AdminEmail, "password": string(hash)}},

		{"department", record.Record{"_id": "dep-cs", "department_id": "CS", "name": "Computer Science", "hod": "stf-turing"}},
		{"department", record.Record{"_id": "dep-math", "department_id": "MATH", "name": "Mathematics", "hod": "stf-noether"}},

		{"staff", record.Record{
			"_id": "stf-turing", "faculty_id": "F-001", "name": "Alan Turing", "email": "turing@college.edu",
			"phone": "555-0101", "role": "HOD", "specialization": "Computation", "department_id": "dep-cs",
			"assigned_courses": []any{"crs-cs101"},
		}},
		{"staff", record.Record{
			"_id": "stf-hopper", "faculty_id": "F-002", "name": "Grace Hopper", "email": "hopper@college.edu",
			"phone": "555-0102", "role": "Teacher", "specialization": "Compilers", "department_id": "dep-cs",
			"assigned_courses": []any{"crs-cs201"},
		}},
		{"staff", record.Record{
			"_id": "stf-noether", "faculty_id": "F-003", "name": "Emmy Noether", "email": "noether@college.edu",
			"phone": "555-0103", "role": "HOD", "specialization": "Algebra", "department_id": "dep-math",
			"assigned_courses": []any{"crs-ma101"},
		}},

		{"course", record.Record{
			"_id": "crs-cs101", "course_id": "CS101", "name": "Introduction to Programming",
			"description": "Fundamentals of programming", "credits": 4.0, "semester": 1.0,
			"department_id": "dep-cs", "faculty_id": "stf-turing",
		}},
		{"course", record.Record{
			"_id": "crs-cs201", "course_id": "CS201", "name": "Compiler Construction",
			"description": "Lexing, parsing and code generation", "credits": 3.0, "semester": 3.0,
			"department_id": "dep-cs", "faculty_id": "stf-hopper",
		}},
		{"course", record.Record{
			"_id": "crs-ma101", "course_id": "MA101", "name": "Linear Algebra",
			"description": "Vectors, matrices and linear maps", "credits": 3.0, "semester": 1.0,
			"department_id": "dep-math", "faculty_id": "stf-noether",
		}},

		{"student", record.Record{
			"_id": "stu-ada", "student_id": "S-1001", "name": "Ada Lovelace", "email": "ada@student.college.edu",
			"phone": "555-0201", "dob": "2004-12-10", "gender": "Female", "address": "12 St James's Square",
			"department_id": "dep-cs", "course_ids": []any{"crs-cs101", "crs-ma101"},
		}},
		{"student", record.Record{
			"_id": "stu-carl", "student_id": "S-1002", "name": "Carl Gauss", "email": "gauss@student.college.edu",
			"phone": "555-0202", "dob": "2005-04-30", "gender": "Male", "address": "7 Brunswick Lane",
			"department_id": "dep-math", "course_ids": []any{"crs-ma101"},
		}},

		{"attendance", record.Record{"_id": "att-1", "attendance_id": "A-0001", "student_id": "stu-ada", "course_id": "crs-cs101", "status": "Present", "date": today}},
		{"attendance", record.Record{"_id": "att-2", "attendance_id": "A-0002", "student_id": "stu-carl", "course_id": "crs-ma101", "status": "Late", "date": today}},

		{"exam", record.Record{"_id": "exm-cs101-mid", "exam_id": "CS101-MID", "course_id": "crs-cs101", "date": today, "total_marks": 100.0}},
		{"exam", record.Record{"_id": "exm-ma101-mid", "exam_id": "MA101-MID", "course_id": "crs-ma101", "date": today, "total_marks": 50.0}},

		{"result", record.Record{"_id": "res-1", "student_id": "stu-ada", "exam_id": "exm-cs101-mid", "marks_obtained": 92.0, "grade": "A"}},
		{"result", record.Record{"_id": "res-2", "student_id": "stu-carl", "exam_id": "exm-ma101-mid", "marks_obtained": 48.0, "grade": "A"}},

		{"fee", record.Record{"_id": "fee-1", "student_id": "stu-ada", "amount": 1200.0, "status": "Paid", "date": today}},
		{"fee", record.Record{"_id": "fee-2", "student_id": "stu-carl", "amount": 1200.0, "status": "Pending", "date": today}},

		{"notice", record.Record{"_id": "ntc-1", "title": "Semester begins", "description": "Classes start on Monday.", "issued_by": "stf-turing", "date": today}},
	}

	counts := make(map[string]int)
	for _, r := range rows {
		r.rec["createdAt"] = stamp
		r.rec["updatedAt"] = stamp
		if _, err := store.Insert(ctx, r.entity, r.rec); err != nil {
			return fmt.Errorf("seeding %s %s: %w", r.entity, r.rec.ID(), err)
		}
		counts[r.entity]++
	}

	logger.Info().Interface("records", counts).Msg("seeded college data")
	return nil
}
