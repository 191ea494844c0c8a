package models

import "time"

// Course represents a taught course keyed by its business code (e.g. CS101).
type Course struct {
	Code        string    `db:"code" json:"code"`
	Name        string    `db:"name" json:"name"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	Batch       Batch     `db:"batch" json:"batch"`
	Branch      Branch    `db:"branch" json:"branch"`
	ValidUntil  time.Time `db:"valid_until" json:"valid_until"`
	ResourceSeq int       `db:"resource_seq" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches a course with the owning teacher's name.
type CourseDetail struct {
	Course
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// EnrollmentStatus represents the per (student, course) state machine.
// Absence of a row is the NONE state; REJECTED returns the pair to NONE
// for discovery purposes while keeping the row for re-requests.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusRequested EnrollmentStatus = "REQUESTED"
	EnrollmentStatusEnrolled  EnrollmentStatus = "ENROLLED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
)

// Enrollment captures a student's request/membership for a course.
// A single row per (student, course) makes the REQUESTED→ENROLLED
// transition atomic: the student can never be in both states at once.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	CourseCode  string           `db:"course_code" json:"course_code"`
	StudentID   string           `db:"student_id" json:"student_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	RequestedAt time.Time        `db:"requested_at" json:"requested_at"`
	DecidedAt   *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
}

// EnrollmentDetail enriches an enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	RollNumber  string `db:"roll_number" json:"roll_number"`
	CourseName  string `db:"course_name" json:"course_name"`
}
