package models

import "time"

// LectureStatus is the derived lifecycle state of a lecture. It is never
// persisted; StatusAt recomputes it from the stored window and end flag.
type LectureStatus string

// Possible lecture statuses.
const (
	LectureStatusScheduled LectureStatus = "SCHEDULED"
	LectureStatusLive      LectureStatus = "LIVE"
	LectureStatusEnded     LectureStatus = "ENDED"
)

// Lecture represents a scheduled class session within a course.
type Lecture struct {
	ID             string     `db:"id" json:"id"`
	CourseCode     string     `db:"course_code" json:"course_code"`
	TeacherID      string     `db:"teacher_id" json:"teacher_id"`
	Title          string     `db:"title" json:"title"`
	SequenceNo     int        `db:"sequence_no" json:"sequence_no"`
	StartsAt       time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time  `db:"ends_at" json:"ends_at"`
	TeacherEnded   bool       `db:"teacher_ended" json:"teacher_ended"`
	TeacherEndedAt *time.Time `db:"teacher_ended_at" json:"teacher_ended_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// StatusAt derives the lecture state at the given instant. An explicit
// teacher end wins over the window; wall-clock expiry ends the lecture
// without teacher action.
func (l Lecture) StatusAt(now time.Time) LectureStatus {
	if l.TeacherEnded || now.After(l.EndsAt) {
		return LectureStatusEnded
	}
	if now.Before(l.StartsAt) {
		return LectureStatusScheduled
	}
	return LectureStatusLive
}

// IsLiveAt reports whether the lecture is live at the given instant.
func (l Lecture) IsLiveAt(now time.Time) bool {
	return l.StatusAt(now) == LectureStatusLive
}

// LectureDetail enriches a lecture with its derived status and attendance.
type LectureDetail struct {
	Lecture
	Status      LectureStatus `db:"-" json:"status"`
	JoinedCount int           `db:"joined_count" json:"joined_count"`
}
