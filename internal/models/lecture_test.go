package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLectureStatusAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	lecture := Lecture{StartsAt: start, EndsAt: end}

	assert.Equal(t, LectureStatusScheduled, lecture.StatusAt(start.Add(-time.Minute)))
	assert.Equal(t, LectureStatusLive, lecture.StatusAt(start))
	assert.Equal(t, LectureStatusLive, lecture.StatusAt(start.Add(30*time.Minute)))
	assert.Equal(t, LectureStatusLive, lecture.StatusAt(end))
	assert.Equal(t, LectureStatusEnded, lecture.StatusAt(end.Add(time.Second)))
}

func TestLectureStatusAtTeacherEndedWinsOverWindow(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	lecture := Lecture{StartsAt: start, EndsAt: start.Add(time.Hour), TeacherEnded: true}

	assert.Equal(t, LectureStatusEnded, lecture.StatusAt(start.Add(10*time.Minute)))
	assert.False(t, lecture.IsLiveAt(start.Add(10*time.Minute)))
}

func TestLectureIsLiveAt(t *testing.T) {
	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	lecture := Lecture{StartsAt: start, EndsAt: start.Add(time.Hour)}

	assert.False(t, lecture.IsLiveAt(start.Add(-time.Second)))
	assert.True(t, lecture.IsLiveAt(start.Add(time.Minute)))
	assert.False(t, lecture.IsLiveAt(start.Add(2*time.Hour)))
}
