package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushq/classroom-api/internal/models"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
)

type mockDoubtRepo struct {
	questions map[string]*models.Question
	answers   map[string][]models.Answer
	voted     map[string]bool
	created   *models.Question
	createdIn []string
	marked    []string
	important map[string]bool
	byCourse  []models.QuestionDetail
}

func (m *mockDoubtRepo) CreateQuestion(ctx context.Context, question *models.Question, resourceIDs []string) error {
	if m.questions == nil {
		m.questions = make(map[string]*models.Question)
	}
	if question.ID == "" {
		question.ID = "q-new"
	}
	m.questions[question.ID] = question
	m.created = question
	m.createdIn = resourceIDs
	return nil
}

func (m *mockDoubtRepo) FindQuestionByID(ctx context.Context, id string) (*models.Question, error) {
	if q, ok := m.questions[id]; ok {
		copied := *q
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDoubtRepo) AddAnswer(ctx context.Context, answer *models.Answer) error {
	if m.answers == nil {
		m.answers = make(map[string][]models.Answer)
	}
	if answer.ID == "" {
		answer.ID = "a-new"
	}
	m.answers[answer.QuestionID] = append(m.answers[answer.QuestionID], *answer)
	return nil
}

func (m *mockDoubtRepo) MarkAnswered(ctx context.Context, questionID string) (bool, error) {
	m.marked = append(m.marked, questionID)
	q, ok := m.questions[questionID]
	if !ok {
		return false, nil
	}
	flipped := !q.Answered
	q.Answered = true
	return flipped, nil
}

func (m *mockDoubtRepo) Upvote(ctx context.Context, questionID, studentID string) (bool, error) {
	if m.voted == nil {
		m.voted = make(map[string]bool)
	}
	key := questionID + "/" + studentID
	if m.voted[key] {
		return false, nil
	}
	m.voted[key] = true
	if q, ok := m.questions[questionID]; ok {
		q.Upvotes++
	}
	return true, nil
}

func (m *mockDoubtRepo) SetImportant(ctx context.Context, questionID string, important bool) error {
	if m.important == nil {
		m.important = make(map[string]bool)
	}
	m.important[questionID] = important
	return nil
}

func (m *mockDoubtRepo) ListByCourse(ctx context.Context, courseCode string, answered *bool) ([]models.QuestionDetail, error) {
	var list []models.QuestionDetail
	for _, q := range m.byCourse {
		if answered != nil && q.Answered != *answered {
			continue
		}
		list = append(list, q)
	}
	return list, nil
}

func (m *mockDoubtRepo) ListAnswers(ctx context.Context, questionID string) ([]models.Answer, error) {
	return m.answers[questionID], nil
}

type mockCourseAccess struct {
	courses map[string]*models.Course
	tas     map[string]bool
}

func (m *mockCourseAccess) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := m.courses[code]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseAccess) IsTA(ctx context.Context, courseCode, studentID string) (bool, error) {
	return m.tas[courseCode+"/"+studentID], nil
}

type mockEnrollmentChecker struct {
	enrolled map[string]bool
}

func (m *mockEnrollmentChecker) IsEnrolled(ctx context.Context, courseCode, studentID string) (bool, error) {
	return m.enrolled[courseCode+"/"+studentID], nil
}

type mockLectureStore struct {
	lectures map[string]*models.Lecture
}

func (m *mockLectureStore) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	if l, ok := m.lectures[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type mockResourceStore struct {
	resources map[string]models.Resource
}

func (m *mockResourceStore) FindByIDs(ctx context.Context, ids []string) ([]models.Resource, error) {
	var found []models.Resource
	for _, id := range ids {
		if r, ok := m.resources[id]; ok {
			found = append(found, r)
		}
	}
	return found, nil
}

type mockTeacherStore struct {
	teachers map[string]*models.Teacher
}

func (m *mockTeacherStore) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	if teacher, ok := m.teachers[id]; ok {
		return teacher, nil
	}
	return nil, sql.ErrNoRows
}

type doubtFixture struct {
	repo      *mockDoubtRepo
	courses   *mockCourseAccess
	enrolled  *mockEnrollmentChecker
	resources *mockResourceStore
	svc       *DoubtService
}

func newDoubtFixture() *doubtFixture {
	repo := &mockDoubtRepo{}
	courses := &mockCourseAccess{
		courses: map[string]*models.Course{"CS101": {Code: "CS101", TeacherID: "t1"}},
		tas:     map[string]bool{"CS101/ta1": true},
	}
	enrolled := &mockEnrollmentChecker{enrolled: map[string]bool{"CS101/s1": true}}
	lectures := &mockLectureStore{lectures: map[string]*models.Lecture{
		"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1"},
	}}
	resources := &mockResourceStore{resources: map[string]models.Resource{}}
	students := &mockStudentStore{students: map[string]*models.Student{
		"s1":  {ID: "s1", FullName: "Asha Rao"},
		"ta1": {ID: "ta1", FullName: "Vikram Iyer", IsTA: true},
	}}
	teachers := &mockTeacherStore{teachers: map[string]*models.Teacher{
		"t1": {ID: "t1", FullName: "Prof. Menon"},
	}}
	svc := NewDoubtService(repo, courses, enrolled, lectures, resources, students, teachers, validator.New(), zap.NewNop())
	return &doubtFixture{repo: repo, courses: courses, enrolled: enrolled, resources: resources, svc: svc}
}

func TestDoubtServiceAsk(t *testing.T) {
	f := newDoubtFixture()

	question, err := f.svc.Ask(context.Background(), "s1", AskQuestionRequest{LectureID: "lec-1", Text: "Why does BFS need a queue?"})
	require.NoError(t, err)
	assert.Equal(t, "CS101", question.CourseCode)
	assert.Equal(t, "s1", question.StudentID)
	require.NotNil(t, f.repo.created)
}

func TestDoubtServiceAskRequiresEnrollment(t *testing.T) {
	f := newDoubtFixture()

	_, err := f.svc.Ask(context.Background(), "s2", AskQuestionRequest{LectureID: "lec-1", Text: "Why does BFS need a queue?"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceAskRejectsForeignResourceReference(t *testing.T) {
	f := newDoubtFixture()
	f.resources.resources["RES_EE201_001"] = models.Resource{ID: "RES_EE201_001", CourseCode: "EE201"}

	_, err := f.svc.Ask(context.Background(), "s1", AskQuestionRequest{
		LectureID:   "lec-1",
		Text:        "Is this covered in the notes?",
		ResourceIDs: []string{"RES_EE201_001"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceAskRejectsUnknownResourceReference(t *testing.T) {
	f := newDoubtFixture()

	_, err := f.svc.Ask(context.Background(), "s1", AskQuestionRequest{
		LectureID:   "lec-1",
		Text:        "Is this covered in the notes?",
		ResourceIDs: []string{"RES_CS101_099"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceAskDeduplicatesResourceReferences(t *testing.T) {
	f := newDoubtFixture()
	f.resources.resources["RES_CS101_001"] = models.Resource{ID: "RES_CS101_001", CourseCode: "CS101"}

	_, err := f.svc.Ask(context.Background(), "s1", AskQuestionRequest{
		LectureID:   "lec-1",
		Text:        "Is this covered in the notes?",
		ResourceIDs: []string{"RES_CS101_001", "RES_CS101_001"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"RES_CS101_001"}, f.repo.createdIn)
}

func TestDoubtServiceAnswerByOwningTeacher(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	answer, err := f.svc.Answer(context.Background(), models.SubjectInfo{ID: "t1", Role: models.RoleTeacher}, "q1", AnswerQuestionRequest{Content: "The queue preserves level order.", Kind: models.AnswerKindText})
	require.NoError(t, err)
	assert.Equal(t, models.ContributorTeacher, answer.ResponderRole)
	assert.Equal(t, "Prof. Menon", answer.ResponderName)
	assert.Contains(t, f.repo.marked, "q1")
	assert.True(t, f.repo.questions["q1"].Answered)
}

func TestDoubtServiceAnswerByRosteredTA(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	answer, err := f.svc.Answer(context.Background(), models.SubjectInfo{ID: "ta1", Role: models.RoleStudent}, "q1", AnswerQuestionRequest{Content: "See lecture three.", Kind: models.AnswerKindText})
	require.NoError(t, err)
	assert.Equal(t, models.ContributorTA, answer.ResponderRole)
	assert.Equal(t, "Vikram Iyer", answer.ResponderName)
}

func TestDoubtServiceAnswerForbiddenForPlainStudent(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	_, err := f.svc.Answer(context.Background(), models.SubjectInfo{ID: "s1", Role: models.RoleStudent}, "q1", AnswerQuestionRequest{Content: "I think so.", Kind: models.AnswerKindText})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceAnswerForbiddenForOtherTeacher(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	_, err := f.svc.Answer(context.Background(), models.SubjectInfo{ID: "t2", Role: models.RoleTeacher}, "q1", AnswerQuestionRequest{Content: "Ask your own teacher.", Kind: models.AnswerKindText})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceUpvoteCountsOnce(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	question, err := f.svc.Upvote(context.Background(), "s1", "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, question.Upvotes)

	question, err = f.svc.Upvote(context.Background(), "s1", "q1")
	require.NoError(t, err)
	assert.Equal(t, 1, question.Upvotes)
}

func TestDoubtServiceUpvoteRequiresEnrollment(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	_, err := f.svc.Upvote(context.Background(), "s2", "q1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceMarkImportant(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	question, err := f.svc.MarkImportant(context.Background(), "t1", "q1", true)
	require.NoError(t, err)
	assert.True(t, question.Important)
	assert.True(t, f.repo.important["q1"])
}

func TestDoubtServiceMarkImportantForbiddenForOtherTeacher(t *testing.T) {
	f := newDoubtFixture()
	f.repo.questions = map[string]*models.Question{
		"q1": {ID: "q1", CourseCode: "CS101", LectureID: "lec-1", StudentID: "s1"},
	}

	_, err := f.svc.MarkImportant(context.Background(), "t2", "q1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDoubtServiceListForCourseAttachesAnswers(t *testing.T) {
	f := newDoubtFixture()
	f.repo.byCourse = []models.QuestionDetail{
		{Question: models.Question{ID: "q1", CourseCode: "CS101", Answered: true}},
		{Question: models.Question{ID: "q2", CourseCode: "CS101"}},
	}
	f.repo.answers = map[string][]models.Answer{
		"q1": {{ID: "a1", QuestionID: "q1", ResponderRole: models.ContributorTeacher}},
	}

	questions, err := f.svc.ListForCourse(context.Background(), models.SubjectInfo{ID: "t1", Role: models.RoleTeacher}, "CS101", nil)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Len(t, questions[0].Answers, 1)
	assert.Empty(t, questions[1].Answers)
}

func TestDoubtServiceListForCourseFiltersAnswered(t *testing.T) {
	f := newDoubtFixture()
	f.repo.byCourse = []models.QuestionDetail{
		{Question: models.Question{ID: "q1", CourseCode: "CS101", Answered: true}},
		{Question: models.Question{ID: "q2", CourseCode: "CS101"}},
	}

	answered := false
	questions, err := f.svc.ListForCourse(context.Background(), models.SubjectInfo{ID: "ta1", Role: models.RoleStudent}, "CS101", &answered)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "q2", questions[0].ID)
}

func TestDoubtServiceListForCourseForbiddenWithoutMembership(t *testing.T) {
	f := newDoubtFixture()

	_, err := f.svc.ListForCourse(context.Background(), models.SubjectInfo{ID: "s2", Role: models.RoleStudent}, "CS101", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
