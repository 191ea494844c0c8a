package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByCourseAndStudent(ctx context.Context, courseCode, studentID string) (*models.Enrollment, error)
	CreateRequest(ctx context.Context, enrollment *models.Enrollment) error
	Rerequest(ctx context.Context, id string, requestedAt time.Time) (bool, error)
	Decide(ctx context.Context, id string, status models.EnrollmentStatus, decidedAt time.Time) (bool, error)
	ListPendingByCourse(ctx context.Context, courseCode string) ([]models.EnrollmentDetail, error)
}

type courseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

type availableCourseLister interface {
	ListAvailableForStudent(ctx context.Context, studentID string, batch models.Batch, branch models.Branch) ([]models.CourseDetail, error)
}

// EnrollmentService drives the per (student, course) state machine:
// NONE → REQUESTED → ENROLLED, with REJECTED returning the pair to NONE.
type EnrollmentService struct {
	enrollments enrollmentRepository
	courses     courseReader
	available   availableCourseLister
	students    studentReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(enrollments enrollmentRepository, courses courseReader, available availableCourseLister, students studentReader, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{enrollments: enrollments, courses: courses, available: available, students: students, validator: validate, logger: logger}
}

// Request asks for enrollment in a course. Duplicate requests and requests
// from already-enrolled students are rejected with a conflict, never
// silently ignored. Re-requesting after a rejection is allowed.
func (s *EnrollmentService) Request(ctx context.Context, studentID, courseCode string) (*models.Enrollment, error) {
	if _, err := s.courses.FindByCode(ctx, courseCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	existing, err := s.enrollments.FindByCourseAndStudent(ctx, courseCode, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment state")
	}

	if existing == nil {
		enrollment := &models.Enrollment{CourseCode: courseCode, StudentID: studentID, RequestedAt: time.Now().UTC()}
		if err := s.enrollments.CreateRequest(ctx, enrollment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment request")
		}
		return enrollment, nil
	}

	switch existing.Status {
	case models.EnrollmentStatusRequested:
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already requested")
	case models.EnrollmentStatusEnrolled:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already enrolled in course")
	}

	requestedAt := time.Now().UTC()
	ok, err := s.enrollments.Rerequest(ctx, existing.ID, requestedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-request enrollment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment state changed concurrently")
	}
	existing.Status = models.EnrollmentStatusRequested
	existing.RequestedAt = requestedAt
	existing.DecidedAt = nil
	return existing, nil
}

// Approve transitions REQUESTED → ENROLLED. Approving a student without a
// pending request is a NotFound, even if that student was enrolled before.
func (s *EnrollmentService) Approve(ctx context.Context, teacherID, courseCode, studentID string) (*models.Enrollment, error) {
	return s.decide(ctx, teacherID, courseCode, studentID, models.EnrollmentStatusEnrolled)
}

// Reject removes a pending request without enrolling the student.
func (s *EnrollmentService) Reject(ctx context.Context, teacherID, courseCode, studentID string) (*models.Enrollment, error) {
	return s.decide(ctx, teacherID, courseCode, studentID, models.EnrollmentStatusRejected)
}

func (s *EnrollmentService) decide(ctx context.Context, teacherID, courseCode, studentID string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may decide requests")
	}

	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, courseCode, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending request for student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment state")
	}
	if enrollment.Status != models.EnrollmentStatusRequested {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending request for student")
	}

	decidedAt := time.Now().UTC()
	ok, err := s.enrollments.Decide(ctx, enrollment.ID, status, decidedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending request for student")
	}
	enrollment.Status = status
	enrollment.DecidedAt = &decidedAt
	return enrollment, nil
}

// ListAvailable returns courses matching the student's batch and branch for
// which the student has neither a pending request nor an enrollment. This
// is the sole way courses become discoverable.
func (s *EnrollmentService) ListAvailable(ctx context.Context, studentID string) ([]models.CourseDetail, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	courses, err := s.available.ListAvailableForStudent(ctx, studentID, student.Batch, student.Branch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available courses")
	}
	return courses, nil
}

// ListPending returns the course's pending requests for its owning teacher.
func (s *EnrollmentService) ListPending(ctx context.Context, teacherID, courseCode string) ([]models.EnrollmentDetail, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may list requests")
	}
	pending, err := s.enrollments.ListPendingByCourse(ctx, courseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return pending, nil
}
