package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type lectureRepository interface {
	Create(ctx context.Context, lecture *models.Lecture) error
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
	ListByCourse(ctx context.Context, courseCode string) ([]models.LectureDetail, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error)
	MarkEnded(ctx context.Context, id string, endedAt time.Time) (bool, error)
	Join(ctx context.Context, lectureID, studentID string, joinedAt time.Time) error
}

// CreateLectureRequest describes lecture scheduling.
type CreateLectureRequest struct {
	CourseCode string    `json:"course_code" validate:"required"`
	Title      string    `json:"title" validate:"required"`
	SequenceNo int       `json:"sequence_no" validate:"required,min=1"`
	StartsAt   time.Time `json:"starts_at" validate:"required"`
	EndsAt     time.Time `json:"ends_at" validate:"required"`
}

// LectureService owns lecture records. Liveness is derived from the stored
// window and the explicit end flag on every read; it is never persisted.
type LectureService struct {
	lectures  lectureRepository
	courses   courseReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLectureService constructs LectureService.
func NewLectureService(lectures lectureRepository, courses courseReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *LectureService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LectureService{lectures: lectures, courses: courses, cache: cache, validator: validate, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Create schedules a lecture on a course owned by the calling teacher.
func (s *LectureService) Create(ctx context.Context, teacherID string, req CreateLectureRequest) (*models.Lecture, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lecture payload")
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lecture end must be after start")
	}

	course, err := s.courses.FindByCode(ctx, req.CourseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may schedule lectures")
	}

	lecture := &models.Lecture{
		CourseCode: req.CourseCode,
		TeacherID:  teacherID,
		Title:      req.Title,
		SequenceNo: req.SequenceNo,
		StartsAt:   req.StartsAt.UTC(),
		EndsAt:     req.EndsAt.UTC(),
	}
	if err := s.lectures.Create(ctx, lecture); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lecture")
	}
	s.invalidateCourse(ctx, req.CourseCode)
	return lecture, nil
}

// Join records a student's participation. Joining is idempotent and not
// gated on liveness: it is a participation record, not a liveness check.
func (s *LectureService) Join(ctx context.Context, studentID, lectureID string) (*models.Lecture, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if err := s.lectures.Join(ctx, lectureID, studentID, s.now()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join lecture")
	}
	s.invalidateCourse(ctx, lecture.CourseCode)
	return lecture, nil
}

// End sets the explicit end flag exactly once. There is no reopen.
func (s *LectureService) End(ctx context.Context, teacherID, lectureID string) (*models.Lecture, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}
	if lecture.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may end the lecture")
	}

	endedAt := s.now()
	ok, err := s.lectures.MarkEnded(ctx, lectureID, endedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end lecture")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrConflict, "lecture already ended")
	}
	lecture.TeacherEnded = true
	lecture.TeacherEndedAt = &endedAt
	s.invalidateCourse(ctx, lecture.CourseCode)
	return lecture, nil
}

// ListLive scans the teacher's lectures and keeps those currently live.
// The predicate is evaluated fresh on every call; only the explicit end
// flag is trusted from storage.
func (s *LectureService) ListLive(ctx context.Context, teacherID string) ([]models.LectureDetail, error) {
	lectures, err := s.lectures.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
	}
	now := s.now()
	live := make([]models.LectureDetail, 0)
	for _, lecture := range lectures {
		if lecture.IsLiveAt(now) {
			live = append(live, models.LectureDetail{Lecture: lecture, Status: models.LectureStatusLive})
		}
	}
	return live, nil
}

// ListForCourse returns the course's lectures with statuses derived at
// read time. The row set may be cached; the status never is.
func (s *LectureService) ListForCourse(ctx context.Context, courseCode string) ([]models.LectureDetail, error) {
	if _, err := s.courses.FindByCode(ctx, courseCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	key := lectureListCacheKey(courseCode)
	var lectures []models.LectureDetail
	hit, err := s.cache.Get(ctx, key, &lectures)
	if err != nil {
		s.logger.Warn("lecture cache read failed", zap.String("course", courseCode), zap.Error(err))
	}
	if !hit {
		lectures, err = s.lectures.ListByCourse(ctx, courseCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lectures")
		}
		if err := s.cache.Set(ctx, key, lectures, 0); err != nil {
			s.logger.Warn("lecture cache write failed", zap.String("course", courseCode), zap.Error(err))
		}
	}

	now := s.now()
	for i := range lectures {
		lectures[i].Status = lectures[i].StatusAt(now)
	}
	return lectures, nil
}

func (s *LectureService) invalidateCourse(ctx context.Context, courseCode string) {
	if err := s.cache.Invalidate(ctx, lectureListCacheKey(courseCode)); err != nil {
		s.logger.Warn("lecture cache invalidation failed", zap.String("course", courseCode), zap.Error(err))
	}
}

func lectureListCacheKey(courseCode string) string {
	return fmt.Sprintf("lectures:course:%s", courseCode)
}
