package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type resourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	FindByID(ctx context.Context, id string) (*models.Resource, error)
	ListActiveByCourse(ctx context.Context, courseCode string) ([]models.Resource, error)
	ListActiveByLecture(ctx context.Context, courseCode, lectureID string) ([]models.Resource, error)
	Update(ctx context.Context, resource *models.Resource) error
	SoftDelete(ctx context.Context, id string, deletedAt time.Time) error
	Search(ctx context.Context, courseCode string, filter models.ResourceFilter) ([]models.Resource, error)
}

type resourceCourseRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	IsTA(ctx context.Context, courseCode, studentID string) (bool, error)
	NextResourceSeq(ctx context.Context, courseCode string) (int, error)
}

// AddResourceRequest describes a new course resource.
type AddResourceRequest struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	Kind        models.ResourceKind `json:"kind" validate:"required,oneof=text pdf video link image document"`
	Content     string              `json:"content"`
	URL         *string             `json:"url,omitempty" validate:"omitempty,url"`
	Tags        []string            `json:"tags,omitempty"`
	Topic       string              `json:"topic"`
	LectureIDs  []string            `json:"lecture_ids,omitempty"`
	AccessLevel models.AccessLevel  `json:"access_level" validate:"omitempty,oneof=public enrolled"`
}

// UpdateResourceRequest carries the mutable resource fields.
type UpdateResourceRequest struct {
	Title       string              `json:"title" validate:"required"`
	Description string              `json:"description"`
	Kind        models.ResourceKind `json:"kind" validate:"required,oneof=text pdf video link image document"`
	Content     string              `json:"content"`
	URL         *string             `json:"url,omitempty" validate:"omitempty,url"`
	Tags        []string            `json:"tags,omitempty"`
	Topic       string              `json:"topic"`
	LectureIDs  []string            `json:"lecture_ids,omitempty"`
	AccessLevel models.AccessLevel  `json:"access_level" validate:"omitempty,oneof=public enrolled"`
}

// ResourceService owns the course resource catalog. Resource ids are minted
// from a per-course counter so they stay human readable and stable.
type ResourceService struct {
	resources   resourceRepository
	courses     resourceCourseRepository
	enrollments enrollmentChecker
	lectures    lectureReader
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewResourceService constructs ResourceService.
func NewResourceService(
	resources resourceRepository,
	courses resourceCourseRepository,
	enrollments enrollmentChecker,
	lectures lectureReader,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
) *ResourceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResourceService{
		resources:   resources,
		courses:     courses,
		enrollments: enrollments,
		lectures:    lectures,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Add creates a resource on behalf of the course's owning teacher or a
// rostered TA.
func (s *ResourceService) Add(ctx context.Context, contributor models.SubjectInfo, courseCode string, req AddResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}

	course, err := s.loadCourse(ctx, courseCode)
	if err != nil {
		return nil, err
	}

	role, err := s.contributorRole(ctx, contributor, course)
	if err != nil {
		return nil, err
	}

	lectureIDs := dedupeStrings(req.LectureIDs)
	if err := s.checkLectureAssociations(ctx, courseCode, lectureIDs); err != nil {
		return nil, err
	}

	seq, err := s.courses.NextResourceSeq(ctx, courseCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mint resource id")
	}

	accessLevel := req.AccessLevel
	if accessLevel == "" {
		accessLevel = models.AccessEnrolled
	}
	topic := req.Topic
	if topic == "" {
		topic = models.DefaultTopic
	}

	resource := &models.Resource{
		ID:              fmt.Sprintf("RES_%s_%03d", courseCode, seq),
		CourseCode:      courseCode,
		Title:           req.Title,
		Description:     req.Description,
		Kind:            req.Kind,
		Content:         req.Content,
		URL:             req.URL,
		Tags:            req.Tags,
		Topic:           topic,
		LectureIDs:      lectureIDs,
		ContributorID:   contributor.ID,
		ContributorRole: role,
		AccessLevel:     accessLevel,
		Active:          true,
	}
	if err := s.resources.Create(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resource")
	}
	s.invalidateCourse(ctx, courseCode)
	return resource, nil
}

// GetCourseResources returns the course's active resources grouped by topic.
// Grouping happens at read time; topics sort alphabetically.
func (s *ResourceService) GetCourseResources(ctx context.Context, requester models.SubjectInfo, courseCode string) ([]models.TopicGroup, error) {
	course, err := s.loadCourse(ctx, courseCode)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, requester, course); err != nil {
		return nil, err
	}

	key := resourceListCacheKey(courseCode)
	var resources []models.Resource
	hit, err := s.cache.Get(ctx, key, &resources)
	if err != nil {
		s.logger.Warn("resource cache read failed", zap.String("course", courseCode), zap.Error(err))
	}
	if !hit {
		resources, err = s.resources.ListActiveByCourse(ctx, courseCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list resources")
		}
		if err := s.cache.Set(ctx, key, resources, s.cache.ResourceTTL()); err != nil {
			s.logger.Warn("resource cache write failed", zap.String("course", courseCode), zap.Error(err))
		}
	}

	return groupByTopic(resources), nil
}

// GetLectureResources returns the active resources associated with a lecture.
func (s *ResourceService) GetLectureResources(ctx context.Context, requester models.SubjectInfo, lectureID string) ([]models.Resource, error) {
	lecture, err := s.lectures.FindByID(ctx, lectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}

	course, err := s.loadCourse(ctx, lecture.CourseCode)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, requester, course); err != nil {
		return nil, err
	}

	resources, err := s.resources.ListActiveByLecture(ctx, lecture.CourseCode, lectureID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lecture resources")
	}
	return resources, nil
}

// Update rewrites the mutable fields of an active resource. Permitted for
// the original contributor and the course's owning teacher.
func (s *ResourceService) Update(ctx context.Context, requester models.SubjectInfo, resourceID string, req UpdateResourceRequest) (*models.Resource, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resource payload")
	}

	resource, course, err := s.loadForWrite(ctx, requester, resourceID)
	if err != nil {
		return nil, err
	}
	if !resource.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
	}

	lectureIDs := dedupeStrings(req.LectureIDs)
	if err := s.checkLectureAssociations(ctx, course.Code, lectureIDs); err != nil {
		return nil, err
	}

	resource.Title = req.Title
	resource.Description = req.Description
	resource.Kind = req.Kind
	resource.Content = req.Content
	resource.URL = req.URL
	resource.Tags = req.Tags
	resource.Topic = req.Topic
	if resource.Topic == "" {
		resource.Topic = models.DefaultTopic
	}
	resource.LectureIDs = lectureIDs
	if req.AccessLevel != "" {
		resource.AccessLevel = req.AccessLevel
	}

	if err := s.resources.Update(ctx, resource); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update resource")
	}
	s.invalidateCourse(ctx, course.Code)
	return resource, nil
}

// Delete soft-deletes a resource. Deleting an already deleted resource is a
// no-op; the row stays addressable by id.
func (s *ResourceService) Delete(ctx context.Context, requester models.SubjectInfo, resourceID string) error {
	resource, course, err := s.loadForWrite(ctx, requester, resourceID)
	if err != nil {
		return err
	}
	if !resource.Active {
		return nil
	}

	if err := s.resources.SoftDelete(ctx, resourceID, s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete resource")
	}
	s.invalidateCourse(ctx, course.Code)
	return nil
}

// Search filters the course's active resources. Filters are conjunctive and
// absent filters match everything.
func (s *ResourceService) Search(ctx context.Context, requester models.SubjectInfo, courseCode string, filter models.ResourceFilter) ([]models.Resource, error) {
	course, err := s.loadCourse(ctx, courseCode)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, requester, course); err != nil {
		return nil, err
	}

	resources, err := s.resources.Search(ctx, courseCode, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search resources")
	}
	return resources, nil
}

func (s *ResourceService) loadCourse(ctx context.Context, courseCode string) (*models.Course, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// loadForWrite resolves the resource and its course, rejecting requesters
// who are neither the contributor nor the owning teacher.
func (s *ResourceService) loadForWrite(ctx context.Context, requester models.SubjectInfo, resourceID string) (*models.Resource, *models.Course, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "resource not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resource")
	}

	course, err := s.loadCourse(ctx, resource.CourseCode)
	if err != nil {
		return nil, nil, err
	}

	if requester.ID != resource.ContributorID && requester.ID != course.TeacherID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the contributor or the owning teacher may modify a resource")
	}
	return resource, course, nil
}

func (s *ResourceService) contributorRole(ctx context.Context, contributor models.SubjectInfo, course *models.Course) (models.ContributorRole, error) {
	if contributor.Role == models.RoleTeacher {
		if course.TeacherID != contributor.ID {
			return "", appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
		}
		return models.ContributorTeacher, nil
	}

	isTA, err := s.courses.IsTA(ctx, course.Code, contributor.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ta roster")
	}
	if !isTA {
		return "", appErrors.Clone(appErrors.ErrForbidden, "only course teaching assistants may add resources")
	}
	return models.ContributorTA, nil
}

func (s *ResourceService) authorizeRead(ctx context.Context, requester models.SubjectInfo, course *models.Course) error {
	if requester.Role == models.RoleTeacher {
		if course.TeacherID != requester.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another teacher")
		}
		return nil
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, course.Code, requester.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return nil
	}
	isTA, err := s.courses.IsTA(ctx, course.Code, requester.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ta roster")
	}
	if !isTA {
		return appErrors.Clone(appErrors.ErrForbidden, "course content requires enrollment")
	}
	return nil
}

// checkLectureAssociations verifies every referenced lecture exists and
// belongs to the given course.
func (s *ResourceService) checkLectureAssociations(ctx context.Context, courseCode string, lectureIDs []string) error {
	for _, lectureID := range lectureIDs {
		lecture, err := s.lectures.FindByID(ctx, lectureID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "referenced lecture does not exist: "+lectureID)
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
		}
		if lecture.CourseCode != courseCode {
			return appErrors.Clone(appErrors.ErrValidation, "referenced lecture belongs to another course: "+lectureID)
		}
	}
	return nil
}

func (s *ResourceService) invalidateCourse(ctx context.Context, courseCode string) {
	if err := s.cache.Invalidate(ctx, resourceListCacheKey(courseCode)); err != nil {
		s.logger.Warn("resource cache invalidation failed", zap.String("course", courseCode), zap.Error(err))
	}
}

func groupByTopic(resources []models.Resource) []models.TopicGroup {
	buckets := make(map[string][]models.Resource)
	for _, resource := range resources {
		topic := resource.Topic
		if topic == "" {
			topic = models.DefaultTopic
		}
		buckets[topic] = append(buckets[topic], resource)
	}

	topics := make([]string, 0, len(buckets))
	for topic := range buckets {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	groups := make([]models.TopicGroup, 0, len(topics))
	for _, topic := range topics {
		groups = append(groups, models.TopicGroup{Topic: topic, Resources: buckets[topic]})
	}
	return groups
}

func resourceListCacheKey(courseCode string) string {
	return fmt.Sprintf("resources:course:%s", courseCode)
}
