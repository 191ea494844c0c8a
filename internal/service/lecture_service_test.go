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

type mockLectureRepo struct {
	lectures map[string]*models.Lecture
	created  *models.Lecture
	endedOK  bool
	ended    []string
	joins    map[string]int
	byCourse []models.LectureDetail
}

func (m *mockLectureRepo) Create(ctx context.Context, lecture *models.Lecture) error {
	if m.lectures == nil {
		m.lectures = make(map[string]*models.Lecture)
	}
	if lecture.ID == "" {
		lecture.ID = "lec-new"
	}
	m.lectures[lecture.ID] = lecture
	m.created = lecture
	return nil
}

func (m *mockLectureRepo) FindByID(ctx context.Context, id string) (*models.Lecture, error) {
	if l, ok := m.lectures[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLectureRepo) ListByCourse(ctx context.Context, courseCode string) ([]models.LectureDetail, error) {
	return m.byCourse, nil
}

func (m *mockLectureRepo) ListByTeacher(ctx context.Context, teacherID string) ([]models.Lecture, error) {
	var list []models.Lecture
	for _, l := range m.lectures {
		if l.TeacherID == teacherID {
			list = append(list, *l)
		}
	}
	return list, nil
}

func (m *mockLectureRepo) MarkEnded(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	m.ended = append(m.ended, id)
	return m.endedOK, nil
}

func (m *mockLectureRepo) Join(ctx context.Context, lectureID, studentID string, joinedAt time.Time) error {
	if m.joins == nil {
		m.joins = make(map[string]int)
	}
	// Mirrors the ON CONFLICT DO NOTHING insert: one row per pair.
	key := lectureID + "/" + studentID
	if _, ok := m.joins[key]; !ok {
		m.joins[key] = 1
	}
	return nil
}

func newLectureFixture(repo *mockLectureRepo, at time.Time) *LectureService {
	courses := &mockCourseReader{courses: map[string]*models.Course{
		"CS101": {Code: "CS101", TeacherID: "t1"},
	}}
	svc := NewLectureService(repo, courses, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc
}

func TestLectureServiceCreate(t *testing.T) {
	repo := &mockLectureRepo{}
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := newLectureFixture(repo, now)

	lecture, err := svc.Create(context.Background(), "t1", CreateLectureRequest{
		CourseCode: "CS101",
		Title:      "Graph traversal",
		SequenceNo: 3,
		StartsAt:   now.Add(time.Hour),
		EndsAt:     now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.Equal(t, "t1", lecture.TeacherID)
	assert.Equal(t, 3, lecture.SequenceNo)
}

func TestLectureServiceCreateRejectsInvertedWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := newLectureFixture(&mockLectureRepo{}, now)

	_, err := svc.Create(context.Background(), "t1", CreateLectureRequest{
		CourseCode: "CS101",
		Title:      "Graph traversal",
		SequenceNo: 3,
		StartsAt:   now.Add(2 * time.Hour),
		EndsAt:     now.Add(time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLectureServiceCreateForbiddenForOtherTeacher(t *testing.T) {
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc := newLectureFixture(&mockLectureRepo{}, now)

	_, err := svc.Create(context.Background(), "t2", CreateLectureRequest{
		CourseCode: "CS101",
		Title:      "Graph traversal",
		SequenceNo: 1,
		StartsAt:   now.Add(time.Hour),
		EndsAt:     now.Add(2 * time.Hour),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLectureServiceEnd(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := &mockLectureRepo{
		endedOK: true,
		lectures: map[string]*models.Lecture{
			"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		},
	}
	svc := newLectureFixture(repo, now)

	lecture, err := svc.End(context.Background(), "t1", "lec-1")
	require.NoError(t, err)
	assert.True(t, lecture.TeacherEnded)
	require.NotNil(t, lecture.TeacherEndedAt)
	assert.Equal(t, now, *lecture.TeacherEndedAt)
}

func TestLectureServiceEndTwiceConflict(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := &mockLectureRepo{
		endedOK: false,
		lectures: map[string]*models.Lecture{
			"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1", TeacherEnded: true, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		},
	}
	svc := newLectureFixture(repo, now)

	_, err := svc.End(context.Background(), "t1", "lec-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLectureServiceEndForbiddenForOtherTeacher(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := &mockLectureRepo{lectures: map[string]*models.Lecture{
		"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	}}
	svc := newLectureFixture(repo, now)

	_, err := svc.End(context.Background(), "t2", "lec-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.ended)
}

func TestLectureServiceJoinIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	repo := &mockLectureRepo{lectures: map[string]*models.Lecture{
		"lec-1": {ID: "lec-1", CourseCode: "CS101", TeacherID: "t1", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
	}}
	svc := newLectureFixture(repo, now)

	_, err := svc.Join(context.Background(), "s1", "lec-1")
	require.NoError(t, err)
	_, err = svc.Join(context.Background(), "s1", "lec-1")
	require.NoError(t, err)
	assert.Len(t, repo.joins, 1)
}

func TestLectureServiceJoinUnknownLecture(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	svc := newLectureFixture(&mockLectureRepo{}, now)

	_, err := svc.Join(context.Background(), "s1", "lec-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLectureServiceListLiveFiltersByWindowAndEndFlag(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := &mockLectureRepo{lectures: map[string]*models.Lecture{
		"past":    {ID: "past", TeacherID: "t1", StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(-2 * time.Hour)},
		"current": {ID: "current", TeacherID: "t1", StartsAt: now.Add(-30 * time.Minute), EndsAt: now.Add(30 * time.Minute)},
		"future":  {ID: "future", TeacherID: "t1", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)},
		"cut":     {ID: "cut", TeacherID: "t1", TeacherEnded: true, StartsAt: now.Add(-30 * time.Minute), EndsAt: now.Add(30 * time.Minute)},
	}}
	svc := newLectureFixture(repo, now)

	live, err := svc.ListLive(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "current", live[0].ID)
	assert.Equal(t, models.LectureStatusLive, live[0].Status)
}

func TestLectureServiceListForCourseDerivesStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := &mockLectureRepo{byCourse: []models.LectureDetail{
		{Lecture: models.Lecture{ID: "lec-1", CourseCode: "CS101", StartsAt: now.Add(-time.Hour), EndsAt: now.Add(-30 * time.Minute)}},
		{Lecture: models.Lecture{ID: "lec-2", CourseCode: "CS101", StartsAt: now.Add(-10 * time.Minute), EndsAt: now.Add(50 * time.Minute)}},
		{Lecture: models.Lecture{ID: "lec-3", CourseCode: "CS101", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)}},
	}}
	svc := newLectureFixture(repo, now)

	lectures, err := svc.ListForCourse(context.Background(), "CS101")
	require.NoError(t, err)
	require.Len(t, lectures, 3)
	assert.Equal(t, models.LectureStatusEnded, lectures[0].Status)
	assert.Equal(t, models.LectureStatusLive, lectures[1].Status)
	assert.Equal(t, models.LectureStatusScheduled, lectures[2].Status)
}
