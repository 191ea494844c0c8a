package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushq/classroom-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestEnrollmentRepositoryFindByCourseAndStudent(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_code", "student_id", "status", "requested_at", "decided_at"}).
		AddRow("enr-1", "CS101", "stu-1", models.EnrollmentStatusRequested, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course_code, student_id, status, requested_at, decided_at FROM enrollments WHERE course_code = $1 AND student_id = $2")).
		WithArgs("CS101", "stu-1").
		WillReturnRows(rows)

	enrollment, err := repo.FindByCourseAndStudent(context.Background(), "CS101", "stu-1")
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusRequested, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDecide(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, decidedAt, models.EnrollmentStatusRequested).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Decide(context.Background(), "enr-1", models.EnrollmentStatusEnrolled, decidedAt)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDecideNonPendingRowIsNoOp(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, decided_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("enr-1", models.EnrollmentStatusEnrolled, decidedAt, models.EnrollmentStatusRequested).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Decide(context.Background(), "enr-1", models.EnrollmentStatusEnrolled, decidedAt)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryRerequestOnlyFlipsRejectedRows(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	requestedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, requested_at = $3, decided_at = NULL")).
		WithArgs("enr-1", models.EnrollmentStatusRequested, requestedAt, models.EnrollmentStatusRejected).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Rerequest(context.Background(), "enr-1", requestedAt)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsEnrolled(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE course_code = $1 AND student_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("CS101", "stu-1", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	enrolled, err := repo.IsEnrolled(context.Background(), "CS101", "stu-1")
	require.NoError(t, err)
	require.True(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryIsEnrolledNoRow(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM enrollments WHERE course_code = $1 AND student_id = $2 AND status = $3 LIMIT 1")).
		WithArgs("CS101", "stu-2", models.EnrollmentStatusEnrolled).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	enrolled, err := repo.IsEnrolled(context.Background(), "CS101", "stu-2")
	require.NoError(t, err)
	require.False(t, enrolled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListPendingByCourse(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course_code", "student_id", "status", "requested_at", "decided_at", "student_name", "roll_number", "course_name"}).
		AddRow("enr-1", "CS101", "stu-1", models.EnrollmentStatusRequested, time.Now(), nil, "Asha Rao", "CS23B001", "Data Structures")
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments e")).
		WithArgs("CS101", models.EnrollmentStatusRequested).
		WillReturnRows(rows)

	pending, err := repo.ListPendingByCourse(context.Background(), "CS101")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "CS23B001", pending[0].RollNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}
