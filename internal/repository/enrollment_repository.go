package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/classroom-api/internal/models"
)

// EnrollmentRepository handles persistence of the per (student, course)
// enrollment state machine. One row per pair; status transitions are
// single-row updates, so a student can never be simultaneously requested
// and enrolled.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, course_code, student_id, status, requested_at, decided_at`

// FindByCourseAndStudent returns the pair's row, if any.
func (r *EnrollmentRepository) FindByCourseAndStudent(ctx context.Context, courseCode, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE course_code = $1 AND student_id = $2`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, courseCode, studentID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// CreateRequest inserts a fresh REQUESTED row for the pair.
func (r *EnrollmentRepository) CreateRequest(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.RequestedAt.IsZero() {
		enrollment.RequestedAt = time.Now().UTC()
	}
	enrollment.Status = models.EnrollmentStatusRequested
	const query = `INSERT INTO enrollments (id, course_code, student_id, status, requested_at, decided_at)
        VALUES (:id, :course_code, :student_id, :status, :requested_at, :decided_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment request: %w", err)
	}
	return nil
}

// Rerequest flips a REJECTED row back to REQUESTED with a fresh timestamp.
// Returns false when the row was not in the REJECTED state.
func (r *EnrollmentRepository) Rerequest(ctx context.Context, id string, requestedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, requested_at = $3, decided_at = NULL
        WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.EnrollmentStatusRequested, requestedAt, models.EnrollmentStatusRejected)
	if err != nil {
		return false, fmt.Errorf("re-request enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count re-requested rows: %w", err)
	}
	return affected == 1, nil
}

// Decide transitions a REQUESTED row to the given terminal status. The
// conditional update makes approval of a non-pending row a detectable no-op.
func (r *EnrollmentRepository) Decide(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt time.Time) (bool, error) {
	const query = `UPDATE enrollments SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedAt, models.EnrollmentStatusRequested)
	if err != nil {
		return false, fmt.Errorf("decide enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count decided rows: %w", err)
	}
	return affected == 1, nil
}

// ListPendingByCourse returns the course's pending requests with student info.
func (r *EnrollmentRepository) ListPendingByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.course_code, e.student_id, e.status, e.requested_at, e.decided_at,
        s.full_name AS student_name, s.roll_number, c.name AS course_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.code = e.course_code
        WHERE e.course_code = $1 AND e.status = $2
        ORDER BY e.requested_at`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, courseCode, models.EnrollmentStatusRequested); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return details, nil
}

// ListEnrolledByCourse returns the course roster with student info.
func (r *EnrollmentRepository) ListEnrolledByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.course_code, e.student_id, e.status, e.requested_at, e.decided_at,
        s.full_name AS student_name, s.roll_number, c.name AS course_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.code = e.course_code
        WHERE e.course_code = $1 AND e.status = $2
        ORDER BY s.roll_number`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, courseCode, models.EnrollmentStatusEnrolled); err != nil {
		return nil, fmt.Errorf("list course roster: %w", err)
	}
	return details, nil
}

// ListCourseCodesByStudent returns the course codes in the given status for
// a student.
func (r *EnrollmentRepository) ListCourseCodesByStudent(ctx context.Context, studentID string, status models.EnrollmentStatus) ([]string, error) {
	const query = `SELECT course_code FROM enrollments WHERE student_id = $1 AND status = $2 ORDER BY course_code`
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, studentID, status); err != nil {
		return nil, fmt.Errorf("list student course codes: %w", err)
	}
	return codes, nil
}

// IsEnrolled reports whether the student is enrolled in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, courseCode, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE course_code = $1 AND student_id = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, courseCode, studentID, models.EnrollmentStatusEnrolled); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}
