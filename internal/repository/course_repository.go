package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushq/classroom-api/internal/models"
)

// CourseRepository handles persistence of courses and their TA rosters.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `code, name, teacher_id, batch, branch, valid_until, resource_seq, created_at, updated_at`

// Create persists a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (code, name, teacher_id, batch, branch, valid_until, resource_seq, created_at, updated_at)
        VALUES (:code, :name, :teacher_id, :batch, :branch, :valid_until, :resource_seq, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByCode returns a course by its business code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE code = $1`, courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByTeacher returns courses owned by the given teacher, newest first.
func (r *CourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error) {
	query := fmt.Sprintf(`SELECT %s FROM courses WHERE teacher_id = $1 ORDER BY created_at DESC`, courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher courses: %w", err)
	}
	return courses, nil
}

// ListAvailableForStudent returns courses matching the student's cohort for
// which the student has no pending request or enrollment. This is the sole
// discovery path for students.
func (r *CourseRepository) ListAvailableForStudent(ctx context.Context, studentID string, batch models.Batch, branch models.Branch) ([]models.CourseDetail, error) {
	const query = `SELECT c.code, c.name, c.teacher_id, c.batch, c.branch, c.valid_until, c.resource_seq, c.created_at, c.updated_at,
        t.full_name AS teacher_name
        FROM courses c
        JOIN teachers t ON t.id = c.teacher_id
        WHERE c.batch = $1 AND c.branch = $2
          AND NOT EXISTS (
            SELECT 1 FROM enrollments e
            WHERE e.course_code = c.code AND e.student_id = $3 AND e.status IN ($4, $5)
          )
        ORDER BY c.code`
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, batch, branch, studentID,
		models.EnrollmentStatusRequested, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list available courses: %w", err)
	}
	return courses, nil
}

// AddTA appends a student to the course's TA roster. Idempotent.
func (r *CourseRepository) AddTA(ctx context.Context, courseCode, studentID string) error {
	const query = `INSERT INTO course_tas (course_code, student_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, courseCode, studentID); err != nil {
		return fmt.Errorf("add course ta: %w", err)
	}
	return nil
}

// IsTA reports whether the student is on the course's TA roster.
func (r *CourseRepository) IsTA(ctx context.Context, courseCode, studentID string) (bool, error) {
	const query = `SELECT 1 FROM course_tas WHERE course_code = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseCode, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course ta: %w", err)
	}
	return true, nil
}

// ListTAs returns the student ids on the course's TA roster.
func (r *CourseRepository) ListTAs(ctx context.Context, courseCode string) ([]string, error) {
	const query = `SELECT student_id FROM course_tas WHERE course_code = $1 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course tas: %w", err)
	}
	return ids, nil
}

// NextResourceSeq atomically increments and returns the per-course resource
// sequence counter used to mint resource ids.
func (r *CourseRepository) NextResourceSeq(ctx context.Context, courseCode string) (int, error) {
	const query = `UPDATE courses SET resource_seq = resource_seq + 1 WHERE code = $1 RETURNING resource_seq`
	var seq int
	if err := r.db.GetContext(ctx, &seq, query, courseCode); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("advance resource sequence: %w", err)
	}
	return seq, nil
}
