package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campushq/classroom-api/internal/models"
)

// LectureRepository handles persistence of lectures and attendance.
type LectureRepository struct {
	db *sqlx.DB
}

// NewLectureRepository constructs the repository.
func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

const lectureColumns = `id, course_code, teacher_id, title, sequence_no, starts_at, ends_at, teacher_ended, teacher_ended_at, created_at`

// Create persists a new lecture record.
func (r *LectureRepository) Create(ctx context.Context, lecture *models.Lecture) error {
	if lecture.ID == "" {
		lecture.ID = uuid.NewString()
	}
	if lecture.CreatedAt.IsZero() {
		lecture.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO lectures (id, course_code, teacher_id, title, sequence_no, starts_at, ends_at, teacher_ended, teacher_ended_at, created_at)
        VALUES (:id, :course_code, :teacher_id, :title, :sequence_no, :starts_at, :ends_at, :teacher_ended, :teacher_ended_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecture); err != nil {
		return fmt.Errorf("create lecture: %w", err)
	}
	return nil
}

// FindByID returns a lecture by its ID.
func (r *LectureRepository) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	query := fmt.Sprintf(`SELECT %s FROM lectures WHERE id = $1`, lectureColumns)
	var lecture models.Lecture
	if err := r.db.GetContext(ctx, &lecture, query, id); err != nil {
		return nil, err
	}
	return &lecture, nil
}

// ListByCourse returns the course's lectures with attendance counts, in
// sequence order.
func (r *LectureRepository) ListByCourse(ctx context.Context, courseCode string) ([]models.LectureDetail, error) {
	const query = `SELECT l.id, l.course_code, l.teacher_id, l.title, l.sequence_no, l.starts_at, l.ends_at, l.teacher_ended, l.teacher_ended_at, l.created_at,
        COUNT(a.student_id) AS joined_count
        FROM lectures l
        LEFT JOIN lecture_attendance a ON a.lecture_id = l.id
        WHERE l.course_code = $1
        GROUP BY l.id
        ORDER BY l.sequence_no`
	var lectures []models.LectureDetail
	if err := r.db.SelectContext(ctx, &lectures, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course lectures: %w", err)
	}
	return lectures, nil
}

// ListByTeacher returns all lectures owned by a teacher.
func (r *LectureRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error) {
	query := fmt.Sprintf(`SELECT %s FROM lectures WHERE teacher_id = $1 ORDER BY starts_at`, lectureColumns)
	var lectures []models.Lecture
	if err := r.db.SelectContext(ctx, &lectures, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher lectures: %w", err)
	}
	return lectures, nil
}

// MarkEnded sets the explicit end flag exactly once. Returns false when the
// flag was already set; the transition is irreversible.
func (r *LectureRepository) MarkEnded(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	const query = `UPDATE lectures SET teacher_ended = TRUE, teacher_ended_at = $2 WHERE id = $1 AND teacher_ended = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, endedAt)
	if err != nil {
		return false, fmt.Errorf("end lecture: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("count ended rows: %w", err)
	}
	return affected == 1, nil
}

// Join records a student's participation. Add-to-set semantics: joining
// twice has no additional effect.
func (r *LectureRepository) Join(ctx context.Context, lectureID, studentID string, joinedAt time.Time) error {
	const query = `INSERT INTO lecture_attendance (lecture_id, student_id, joined_at) VALUES ($1, $2, $3)
        ON CONFLICT (lecture_id, student_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, lectureID, studentID, joinedAt); err != nil {
		return fmt.Errorf("join lecture: %w", err)
	}
	return nil
}

// JoinedCount returns how many students joined a lecture.
func (r *LectureRepository) JoinedCount(ctx context.Context, lectureID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lecture_attendance WHERE lecture_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, lectureID); err != nil {
		return 0, fmt.Errorf("count lecture attendance: %w", err)
	}
	return count, nil
}
