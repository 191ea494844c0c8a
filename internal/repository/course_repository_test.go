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

func newCourseRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"code", "name", "teacher_id", "batch", "branch", "valid_until", "resource_seq", "created_at", "updated_at"}).
		AddRow("CS101", "Data Structures", "tch-1", models.BatchBTech, models.BranchCSE, now.AddDate(0, 6, 0), 0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT code, name, teacher_id, batch, branch, valid_until, resource_seq, created_at, updated_at FROM courses WHERE code = $1")).
		WithArgs("CS101").
		WillReturnRows(rows)

	course, err := repo.FindByCode(context.Background(), "CS101")
	require.NoError(t, err)
	require.Equal(t, "tch-1", course.TeacherID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryNextResourceSeq(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE courses SET resource_seq = resource_seq + 1 WHERE code = $1 RETURNING resource_seq")).
		WithArgs("CS101").
		WillReturnRows(sqlmock.NewRows([]string{"resource_seq"}).AddRow(7))

	seq, err := repo.NextResourceSeq(context.Background(), "CS101")
	require.NoError(t, err)
	require.Equal(t, 7, seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryIsTA(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_tas WHERE course_code = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("CS101", "stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	isTA, err := repo.IsTA(context.Background(), "CS101", "stu-1")
	require.NoError(t, err)
	require.True(t, isTA)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM course_tas WHERE course_code = $1 AND student_id = $2 LIMIT 1")).
		WithArgs("CS101", "stu-2").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	isTA, err = repo.IsTA(context.Background(), "CS101", "stu-2")
	require.NoError(t, err)
	require.False(t, isTA)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListAvailableForStudentExcludesRequestedAndEnrolled(t *testing.T) {
	db, mock, cleanup := newCourseRepoMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"code", "name", "teacher_id", "batch", "branch", "valid_until", "resource_seq", "created_at", "updated_at", "teacher_name"}).
		AddRow("CS101", "Data Structures", "tch-1", models.BatchBTech, models.BranchCSE, now.AddDate(0, 6, 0), 0, now, now, "Prof. Menon")
	mock.ExpectQuery(regexp.QuoteMeta("NOT EXISTS")).
		WithArgs(models.BatchBTech, models.BranchCSE, "stu-1", models.EnrollmentStatusRequested, models.EnrollmentStatusEnrolled).
		WillReturnRows(rows)

	courses, err := repo.ListAvailableForStudent(context.Background(), "stu-1", models.BatchBTech, models.BranchCSE)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, "Prof. Menon", courses[0].TeacherName)
	require.NoError(t, mock.ExpectationsWereMet())
}
