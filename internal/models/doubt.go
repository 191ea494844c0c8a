package models

import (
	"time"

	"github.com/lib/pq"
)

// AnswerKind tags the content of an answer.
type AnswerKind string

// Supported answer content kinds.
const (
	AnswerKindText AnswerKind = "text"
	AnswerKindFile AnswerKind = "file"
)

// Valid reports whether the kind is known.
func (k AnswerKind) Valid() bool {
	return k == AnswerKindText || k == AnswerKindFile
}

// Question is a doubt raised by a student during a lecture.
type Question struct {
	ID         string    `db:"id" json:"id"`
	LectureID  string    `db:"lecture_id" json:"lecture_id"`
	CourseCode string    `db:"course_code" json:"course_code"`
	StudentID  string    `db:"student_id" json:"student_id"`
	Text       string    `db:"text" json:"text"`
	Context    *string   `db:"context" json:"context,omitempty"`
	Answered   bool      `db:"answered" json:"answered"`
	Important  bool      `db:"important" json:"important"`
	Upvotes    int       `db:"upvotes" json:"upvotes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// QuestionDetail enriches a question with the asker's name, attached
// answers and referenced resource ids.
type QuestionDetail struct {
	Question
	StudentName string         `db:"student_name" json:"student_name"`
	ResourceIDs pq.StringArray `db:"resource_ids" json:"resource_ids,omitempty"`
	Answers     []Answer       `db:"-" json:"answers,omitempty"`
}

// Answer is a response attached to a question. Immutable after creation.
type Answer struct {
	ID            string          `db:"id" json:"id"`
	QuestionID    string          `db:"question_id" json:"question_id"`
	ResponderID   string          `db:"responder_id" json:"responder_id"`
	ResponderName string          `db:"responder_name" json:"responder_name"`
	ResponderRole ContributorRole `db:"responder_role" json:"responder_role"`
	Content       string          `db:"content" json:"content"`
	Kind          AnswerKind      `db:"kind" json:"kind"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
