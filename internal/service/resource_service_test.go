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

type mockResourceRepo struct {
	resources map[string]*models.Resource
	created   []*models.Resource
	updated   *models.Resource
	deleted   []string
	byCourse  []models.Resource
	searched  *models.ResourceFilter
}

func (m *mockResourceRepo) Create(ctx context.Context, resource *models.Resource) error {
	if m.resources == nil {
		m.resources = make(map[string]*models.Resource)
	}
	m.resources[resource.ID] = resource
	m.created = append(m.created, resource)
	return nil
}

func (m *mockResourceRepo) FindByID(ctx context.Context, id string) (*models.Resource, error) {
	if r, ok := m.resources[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceRepo) ListActiveByCourse(ctx context.Context, courseCode string) ([]models.Resource, error) {
	return m.byCourse, nil
}

func (m *mockResourceRepo) ListActiveByLecture(ctx context.Context, courseCode, lectureID string) ([]models.Resource, error) {
	return m.byCourse, nil
}

func (m *mockResourceRepo) Update(ctx context.Context, resource *models.Resource) error {
	m.updated = resource
	m.resources[resource.ID] = resource
	return nil
}

func (m *mockResourceRepo) SoftDelete(ctx context.Context, id string, deletedAt time.Time) error {
	m.deleted = append(m.deleted, id)
	if r, ok := m.resources[id]; ok {
		r.Active = false
	}
	return nil
}

func (m *mockResourceRepo) Search(ctx context.Context, courseCode string, filter models.ResourceFilter) ([]models.Resource, error) {
	m.searched = &filter
	return m.byCourse, nil
}

type mockResourceCourses struct {
	courses map[string]*models.Course
	tas     map[string]bool
	seq     int
}

func (m *mockResourceCourses) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := m.courses[code]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResourceCourses) IsTA(ctx context.Context, courseCode, studentID string) (bool, error) {
	return m.tas[courseCode+"/"+studentID], nil
}

func (m *mockResourceCourses) NextResourceSeq(ctx context.Context, courseCode string) (int, error) {
	m.seq++
	return m.seq, nil
}

type resourceFixture struct {
	repo     *mockResourceRepo
	courses  *mockResourceCourses
	enrolled *mockEnrollmentChecker
	lectures *mockLectureStore
	svc      *ResourceService
}

func newResourceFixture() *resourceFixture {
	repo := &mockResourceRepo{}
	courses := &mockResourceCourses{
		courses: map[string]*models.Course{"CS101": {Code: "CS101", TeacherID: "t1"}},
		tas:     map[string]bool{"CS101/ta1": true},
	}
	enrolled := &mockEnrollmentChecker{enrolled: map[string]bool{"CS101/s1": true}}
	lectures := &mockLectureStore{lectures: map[string]*models.Lecture{
		"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1"},
		"lec-x": {ID: "lec-x", CourseCode: "EE201", TeacherID: "t2"},
	}}
	svc := NewResourceService(repo, courses, enrolled, lectures, nil, validator.New(), zap.NewNop())
	return &resourceFixture{repo: repo, courses: courses, enrolled: enrolled, lectures: lectures, svc: svc}
}

func teacherSubjectInfo() models.SubjectInfo {
	return models.SubjectInfo{ID: "t1", Role: models.RoleTeacher}
}

func TestResourceServiceAddMintsSequentialIDs(t *testing.T) {
	f := newResourceFixture()

	first, err := f.svc.Add(context.Background(), teacherSubjectInfo(), "CS101", AddResourceRequest{Title: "Graph notes", Kind: models.ResourceKindText, Content: "BFS and DFS."})
	require.NoError(t, err)
	second, err := f.svc.Add(context.Background(), teacherSubjectInfo(), "CS101", AddResourceRequest{Title: "DP notes", Kind: models.ResourceKindText, Content: "Memoisation."})
	require.NoError(t, err)

	assert.Equal(t, "RES_CS101_001", first.ID)
	assert.Equal(t, "RES_CS101_002", second.ID)
	assert.Equal(t, models.ContributorTeacher, first.ContributorRole)
	assert.Equal(t, models.AccessEnrolled, first.AccessLevel)
	assert.Equal(t, models.DefaultTopic, first.Topic)
	assert.True(t, first.Active)
}

func TestResourceServiceAddByRosteredTA(t *testing.T) {
	f := newResourceFixture()

	resource, err := f.svc.Add(context.Background(), models.SubjectInfo{ID: "ta1", Role: models.RoleStudent}, "CS101", AddResourceRequest{Title: "Recitation sheet", Kind: models.ResourceKindPDF, Content: "Week 4 problems."})
	require.NoError(t, err)
	assert.Equal(t, models.ContributorTA, resource.ContributorRole)
}

func TestResourceServiceAddForbiddenForPlainStudent(t *testing.T) {
	f := newResourceFixture()

	_, err := f.svc.Add(context.Background(), models.SubjectInfo{ID: "s1", Role: models.RoleStudent}, "CS101", AddResourceRequest{Title: "My notes", Kind: models.ResourceKindText})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.repo.created)
}

func TestResourceServiceAddRejectsForeignLectureReference(t *testing.T) {
	f := newResourceFixture()

	_, err := f.svc.Add(context.Background(), teacherSubjectInfo(), "CS101", AddResourceRequest{
		Title:      "Graph notes",
		Kind:       models.ResourceKindText,
		LectureIDs: []string{"lec-x"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceCourseResourcesGroupedByTopic(t *testing.T) {
	f := newResourceFixture()
	f.repo.byCourse = []models.Resource{
		{ID: "RES_CS101_001", Topic: "Graphs"},
		{ID: "RES_CS101_002", Topic: ""},
		{ID: "RES_CS101_003", Topic: "Arrays"},
		{ID: "RES_CS101_004", Topic: "Graphs"},
	}

	groups, err := f.svc.GetCourseResources(context.Background(), teacherSubjectInfo(), "CS101")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "Arrays", groups[0].Topic)
	assert.Equal(t, models.DefaultTopic, groups[1].Topic)
	assert.Equal(t, "Graphs", groups[2].Topic)
	assert.Len(t, groups[2].Resources, 2)
}

func TestResourceServiceCourseResourcesForbiddenWithoutMembership(t *testing.T) {
	f := newResourceFixture()

	_, err := f.svc.GetCourseResources(context.Background(), models.SubjectInfo{ID: "s2", Role: models.RoleStudent}, "CS101")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceUpdateByContributor(t *testing.T) {
	f := newResourceFixture()
	f.repo.resources = map[string]*models.Resource{
		"RES_CS101_001": {ID: "RES_CS101_001", CourseCode: "CS101", ContributorID: "ta1", Active: true, Topic: "Graphs"},
	}

	updated, err := f.svc.Update(context.Background(), models.SubjectInfo{ID: "ta1", Role: models.RoleStudent}, "RES_CS101_001", UpdateResourceRequest{Title: "Revised notes", Kind: models.ResourceKindText})
	require.NoError(t, err)
	assert.Equal(t, "Revised notes", updated.Title)
	assert.Equal(t, models.DefaultTopic, updated.Topic)
	require.NotNil(t, f.repo.updated)
}

func TestResourceServiceUpdateDeletedResourceNotFound(t *testing.T) {
	f := newResourceFixture()
	f.repo.resources = map[string]*models.Resource{
		"RES_CS101_001": {ID: "RES_CS101_001", CourseCode: "CS101", ContributorID: "t1", Active: false},
	}

	_, err := f.svc.Update(context.Background(), teacherSubjectInfo(), "RES_CS101_001", UpdateResourceRequest{Title: "Revised notes", Kind: models.ResourceKindText})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceUpdateForbiddenForUnrelatedRequester(t *testing.T) {
	f := newResourceFixture()
	f.repo.resources = map[string]*models.Resource{
		"RES_CS101_001": {ID: "RES_CS101_001", CourseCode: "CS101", ContributorID: "ta1", Active: true},
	}

	_, err := f.svc.Update(context.Background(), models.SubjectInfo{ID: "s1", Role: models.RoleStudent}, "RES_CS101_001", UpdateResourceRequest{Title: "Revised notes", Kind: models.ResourceKindText})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResourceServiceDeleteIdempotent(t *testing.T) {
	f := newResourceFixture()
	f.repo.resources = map[string]*models.Resource{
		"RES_CS101_001": {ID: "RES_CS101_001", CourseCode: "CS101", ContributorID: "t1", Active: true},
	}

	require.NoError(t, f.svc.Delete(context.Background(), teacherSubjectInfo(), "RES_CS101_001"))
	require.NoError(t, f.svc.Delete(context.Background(), teacherSubjectInfo(), "RES_CS101_001"))
	assert.Len(t, f.repo.deleted, 1)
}

func TestResourceServiceSearchPassesFilterThrough(t *testing.T) {
	f := newResourceFixture()

	_, err := f.svc.Search(context.Background(), teacherSubjectInfo(), "CS101", models.ResourceFilter{Query: "bfs", Kind: models.ResourceKindText, Tags: []string{"graphs"}})
	require.NoError(t, err)
	require.NotNil(t, f.repo.searched)
	assert.Equal(t, "bfs", f.repo.searched.Query)
	assert.Equal(t, models.ResourceKindText, f.repo.searched.Kind)
	assert.Equal(t, []string{"graphs"}, f.repo.searched.Tags)
}
