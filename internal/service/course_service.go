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

type courseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Course, error)
	AddTA(ctx context.Context, courseCode, studentID string) error
	IsTA(ctx context.Context, courseCode, studentID string) (bool, error)
	ListTAs(ctx context.Context, courseCode string) ([]string, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateCourseRequest describes course creation.
type CreateCourseRequest struct {
	Code       string        `json:"code" validate:"required,alphanum,uppercase"`
	Name       string        `json:"name" validate:"required"`
	Batch      models.Batch  `json:"batch" validate:"required,oneof=M.Tech B.Tech PhD MS"`
	Branch     models.Branch `json:"branch" validate:"required,oneof=CSE ECE"`
	ValidUntil time.Time     `json:"valid_until" validate:"required"`
	TAIDs      []string      `json:"ta_ids"`
}

// CourseService owns course definitions and TA rosters.
type CourseService struct {
	courses   courseRepository
	students  studentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(courses courseRepository, students studentReader, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{courses: courses, students: students, validator: validate, logger: logger}
}

// Create registers a new course owned by the calling teacher. Batch and
// branch membership is enforced at write time; TA candidates must be
// existing students carrying the TA flag.
func (s *CourseService) Create(ctx context.Context, teacherID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if _, err := s.courses.FindByCode(ctx, req.Code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}

	for _, taID := range req.TAIDs {
		student, err := s.students.FindByID(ctx, taID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown ta candidate")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ta candidate")
		}
		if !student.IsTA {
			return nil, appErrors.Clone(appErrors.ErrValidation, "ta candidate is not flagged as a teaching assistant")
		}
	}

	course := &models.Course{
		Code:       req.Code,
		Name:       req.Name,
		TeacherID:  teacherID,
		Batch:      req.Batch,
		Branch:     req.Branch,
		ValidUntil: req.ValidUntil,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	for _, taID := range req.TAIDs {
		if err := s.courses.AddTA(ctx, course.Code, taID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign ta")
		}
	}
	return course, nil
}

// ListOwned returns the teacher's courses.
func (s *CourseService) ListOwned(ctx context.Context, teacherID string) ([]models.Course, error) {
	courses, err := s.courses.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, nil
}

// Get returns a single course by code.
func (s *CourseService) Get(ctx context.Context, code string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
