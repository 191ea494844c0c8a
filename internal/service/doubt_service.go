package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type doubtRepository interface {
	CreateQuestion(ctx context.Context, question *models.Question, resourceIDs []string) error
	FindQuestionByID(ctx context.Context, id string) (*models.Question, error)
	AddAnswer(ctx context.Context, answer *models.Answer) error
	MarkAnswered(ctx context.Context, questionID string) (bool, error)
	Upvote(ctx context.Context, questionID, studentID string) (bool, error)
	SetImportant(ctx context.Context, questionID string, important bool) error
	ListByCourse(ctx context.Context, courseCode string, answered *bool) ([]models.QuestionDetail, error)
	ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error)
}

type courseAccess interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
	IsTA(ctx context.Context, courseCode, studentID string) (bool, error)
}

type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseCode, studentID string) (bool, error)
}

type lectureReader interface {
	FindByID(ctx context.Context, id string) (*models.Lecture, error)
}

type resourceReader interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// AskQuestionRequest describes a student raising a doubt on a lecture.
type AskQuestionRequest struct {
	LectureID   string   `json:"lecture_id" validate:"required"`
	Text        string   `json:"text" validate:"required"`
	Context     *string  `json:"context,omitempty"`
	ResourceIDs []string `json:"resource_ids,omitempty"`
}

// AnswerQuestionRequest describes an answer attached to an open question.
type AnswerQuestionRequest struct {
	Content string            `json:"content" validate:"required"`
	Kind    models.AnswerKind `json:"kind" validate:"required,oneof=text file"`
}

// DoubtService owns the question and answer workflow. Answering is open to
// the course's owning teacher and its rostered TAs; everything a student can
// see is gated on enrollment.
type DoubtService struct {
	doubts      doubtRepository
	courses     courseAccess
	enrollments enrollmentChecker
	lectures    lectureReader
	resources   resourceReader
	students    studentReader
	teachers    teacherReader
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewDoubtService constructs DoubtService.
func NewDoubtService(
	doubts doubtRepository,
	courses courseAccess,
	enrollments enrollmentChecker,
	lectures lectureReader,
	resources resourceReader,
	students studentReader,
	teachers teacherReader,
	validate *validator.Validate,
	logger *zap.Logger,
) *DoubtService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoubtService{
		doubts:      doubts,
		courses:     courses,
		enrollments: enrollments,
		lectures:    lectures,
		resources:   resources,
		students:    students,
		teachers:    teachers,
		validator:   validate,
		logger:      logger,
	}
}

// Ask files a question against a lecture. Referenced resources must be
// active and belong to the lecture's course.
func (s *DoubtService) Ask(ctx context.Context, studentID string, req AskQuestionRequest) (*models.Question, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}

	lecture, err := s.lectures.FindByID(ctx, req.LectureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lecture not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecture")
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, lecture.CourseCode, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only enrolled students may ask questions")
	}

	resourceIDs := dedupeStrings(req.ResourceIDs)
	if len(resourceIDs) > 0 {
		found, err := s.resources.FindByIDs(ctx, resourceIDs)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load referenced resources")
		}
		byID := make(map[string]models.Resource, len(found))
		for _, resource := range found {
			byID[resource.ID] = resource
		}
		for _, id := range resourceIDs {
			resource, ok := byID[id]
			if !ok {
				return nil, appErrors.Clone(appErrors.ErrValidation, "referenced resource does not exist: "+id)
			}
			if resource.CourseCode != lecture.CourseCode {
				return nil, appErrors.Clone(appErrors.ErrValidation, "referenced resource belongs to another course: "+id)
			}
		}
	}

	question := &models.Question{
		LectureID:  req.LectureID,
		CourseCode: lecture.CourseCode,
		StudentID:  studentID,
		Text:       req.Text,
		Context:    req.Context,
	}
	if err := s.doubts.CreateQuestion(ctx, question, resourceIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// Answer attaches an answer and flips the answered flag on the first one.
// Permitted responders are the course's owning teacher and rostered TAs.
func (s *DoubtService) Answer(ctx context.Context, responder models.SubjectInfo, questionID string, req AnswerQuestionRequest) (*models.Answer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid answer payload")
	}

	question, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	role, name, err := s.authorizeResponder(ctx, responder, question.CourseCode)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		QuestionID:    question.ID,
		ResponderID:   responder.ID,
		ResponderName: name,
		ResponderRole: role,
		Content:       req.Content,
		Kind:          req.Kind,
	}
	if err := s.doubts.AddAnswer(ctx, answer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create answer")
	}
	if _, err := s.doubts.MarkAnswered(ctx, question.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark question answered")
	}
	return answer, nil
}

// Upvote records an enrolled student's vote. Repeat votes are accepted and
// leave the counter unchanged.
func (s *DoubtService) Upvote(ctx context.Context, studentID, questionID string) (*models.Question, error) {
	question, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enrollments.IsEnrolled(ctx, question.CourseCode, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only enrolled students may upvote")
	}

	counted, err := s.doubts.Upvote(ctx, questionID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upvote")
	}
	if counted {
		question.Upvotes++
	}
	return question, nil
}

// MarkImportant sets or clears the importance flag. Owner teacher only.
func (s *DoubtService) MarkImportant(ctx context.Context, teacherID, questionID string, important bool) (*models.Question, error) {
	question, err := s.loadQuestion(ctx, questionID)
	if err != nil {
		return nil, err
	}

	course, err := s.courses.FindByCode(ctx, question.CourseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may flag questions")
	}

	if err := s.doubts.SetImportant(ctx, questionID, important); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update question importance")
	}
	question.Important = important
	return question, nil
}

// ListForCourse returns the course's questions visible to the requester,
// optionally filtered by answered state. Answered questions come with their
// answers attached.
func (s *DoubtService) ListForCourse(ctx context.Context, requester models.SubjectInfo, courseCode string, answered *bool) ([]models.QuestionDetail, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if err := s.authorizeCourseRead(ctx, requester, course); err != nil {
		return nil, err
	}

	questions, err := s.doubts.ListByCourse(ctx, courseCode, answered)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}

	for i := range questions {
		if !questions[i].Answered {
			continue
		}
		answers, err := s.doubts.ListAnswers(ctx, questions[i].ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list answers")
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

func (s *DoubtService) loadQuestion(ctx context.Context, questionID string) (*models.Question, error) {
	question, err := s.doubts.FindQuestionByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	return question, nil
}

// authorizeResponder resolves the responder's display name and contributor
// role, rejecting teachers who do not own the course and students who are
// not on its TA roster.
func (s *DoubtService) authorizeResponder(ctx context.Context, responder models.SubjectInfo, courseCode string) (models.ContributorRole, string, error) {
	course, err := s.courses.FindByCode(ctx, courseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	switch responder.Role {
	case models.RoleTeacher:
		if course.TeacherID != responder.ID {
			return "", "", appErrors.Clone(appErrors.ErrForbidden, "only the owning teacher may answer")
		}
		teacher, err := s.teachers.FindByID(ctx, responder.ID)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
		}
		return models.ContributorTeacher, teacher.FullName, nil
	case models.RoleStudent:
		isTA, err := s.courses.IsTA(ctx, courseCode, responder.ID)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check ta roster")
		}
		if !isTA {
			return "", "", appErrors.Clone(appErrors.ErrForbidden, "only course teaching assistants may answer")
		}
		student, err := s.students.FindByID(ctx, responder.ID)
		if err != nil {
			return "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
		return models.ContributorTA, student.FullName, nil
	default:
		return "", "", appErrors.Clone(appErrors.ErrForbidden, "unknown responder role")
	}
}

func (s *DoubtService) authorizeCourseRead(ctx context.Context, requester models.SubjectInfo, course *models.Course) error {
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

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}
	return result
}
