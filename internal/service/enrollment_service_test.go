package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments  map[string]*models.Enrollment
	created      *models.Enrollment
	rerequested  []string
	decided      map[string]models.EnrollmentStatus
	decideOK     bool
	rerequestOK  bool
	pending      []models.EnrollmentDetail
	enrolledRows []models.EnrollmentDetail
}

func enrollmentKey(courseCode, studentID string) string {
	return courseCode + "/" + studentID
}

func (m *mockEnrollmentRepo) FindByCourseAndStudent(ctx context.Context, courseCode, studentID string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[enrollmentKey(courseCode, studentID)]; ok {
		copied := *e
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) CreateRequest(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollments == nil {
		m.enrollments = make(map[string]*models.Enrollment)
	}
	if enrollment.ID == "" {
		enrollment.ID = "enr-new"
	}
	enrollment.Status = models.EnrollmentStatusRequested
	m.enrollments[enrollmentKey(enrollment.CourseCode, enrollment.StudentID)] = enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Rerequest(ctx context.Context, id string, requestedAt time.Time) (bool, error) {
	m.rerequested = append(m.rerequested, id)
	return m.rerequestOK, nil
}

func (m *mockEnrollmentRepo) Decide(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt time.Time) (bool, error) {
	if m.decided == nil {
		m.decided = make(map[string]models.EnrollmentStatus)
	}
	if m.decideOK {
		m.decided[id] = status
	}
	return m.decideOK, nil
}

func (m *mockEnrollmentRepo) ListPendingByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error) {
	return m.pending, nil
}

func (m *mockEnrollmentRepo) ListEnrolledByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error) {
	return m.enrolledRows, nil
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := m.courses[code]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type mockAvailableLister struct {
	available []models.CourseDetail
}

func (m *mockAvailableLister) ListAvailableForStudent(ctx context.Context, studentID string, batch models.Batch, branch models.Branch) ([]models.CourseDetail, error) {
	return m.available, nil
}

type mockStudentStore struct {
	students map[string]*models.Student
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentFixture(repo *mockEnrollmentRepo) *EnrollmentService {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"CS101": {Code: "CS101", TeacherID: "t1", Batch: models.BatchBTech, Branch: models.BranchCSE},
	}}
	students := &mockStudentStore{students: map[string]*models.Student{
		"s1": {ID: "s1", FullName: "Asha Rao", Batch: models.BatchBTech, Branch: models.BranchCSE, Active: true},
	}}
	return NewEnrollmentService(repo, courses, &mockAvailableLister{}, students, validator.New(), zap.NewNop())
}

func TestEnrollmentServiceRequestCreates(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentFixture(repo)

	enrollment, err := svc.Request(context.Background(), "s1", "CS101")
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, models.EnrollmentStatusRequested, enrollment.Status)
	assert.Equal(t, "CS101", enrollment.CourseCode)
	assert.Equal(t, "s1", enrollment.StudentID)
}

func TestEnrollmentServiceRequestDuplicateConflict(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusRequested},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Request(context.Background(), "s1", "CS101")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRequestWhileEnrolledConflict(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Request(context.Background(), "s1", "CS101")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRequestAfterRejection(t *testing.T) {
	decidedAt := time.Now().UTC().Add(-time.Hour)
	repo := &mockEnrollmentRepo{
		rerequestOK: true,
		enrollments: map[string]*models.Enrollment{
			enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusRejected, DecidedAt: &decidedAt},
		},
	}
	svc := newEnrollmentFixture(repo)

	enrollment, err := svc.Request(context.Background(), "s1", "CS101")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRequested, enrollment.Status)
	assert.Nil(t, enrollment.DecidedAt)
	assert.Contains(t, repo.rerequested, "e1")
}

func TestEnrollmentServiceRequestUnknownCourse(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Request(context.Background(), "s1", "NOPE")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceApprove(t *testing.T) {
	repo := &mockEnrollmentRepo{
		decideOK: true,
		enrollments: map[string]*models.Enrollment{
			enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusRequested},
		},
	}
	svc := newEnrollmentFixture(repo)

	enrollment, err := svc.Approve(context.Background(), "t1", "CS101", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusEnrolled, enrollment.Status)
	require.NotNil(t, enrollment.DecidedAt)
	assert.Equal(t, models.EnrollmentStatusEnrolled, repo.decided["e1"])
}

func TestEnrollmentServiceRejectKeepsRow(t *testing.T) {
	repo := &mockEnrollmentRepo{
		decideOK: true,
		enrollments: map[string]*models.Enrollment{
			enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusRequested},
		},
	}
	svc := newEnrollmentFixture(repo)

	enrollment, err := svc.Reject(context.Background(), "t1", "CS101", "s1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusRejected, enrollment.Status)
	assert.Equal(t, models.EnrollmentStatusRejected, repo.decided["e1"])
}

func TestEnrollmentServiceDecideWithoutPendingRequest(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusEnrolled},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Approve(context.Background(), "t1", "CS101", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDecideForbiddenForOtherTeacher(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{
		enrollmentKey("CS101", "s1"): {ID: "e1", CourseCode: "CS101", StudentID: "s1", Status: models.EnrollmentStatusRequested},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Approve(context.Background(), "t2", "CS101", "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceListPendingForbiddenForOtherTeacher(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.ListPending(context.Background(), "t2", "CS101")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
