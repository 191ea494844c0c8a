package models

import (
	"time"

	"github.com/lib/pq"
)

// ResourceKind enumerates supported resource content kinds.
type ResourceKind string

// Supported resource kinds.
const (
	ResourceKindText     ResourceKind = "text"
	ResourceKindPDF      ResourceKind = "pdf"
	ResourceKindVideo    ResourceKind = "video"
	ResourceKindLink     ResourceKind = "link"
	ResourceKindImage    ResourceKind = "image"
	ResourceKindDocument ResourceKind = "document"
)

// Valid reports whether the kind is known.
func (k ResourceKind) Valid() bool {
	switch k {
	case ResourceKindText, ResourceKindPDF, ResourceKindVideo, ResourceKindLink, ResourceKindImage, ResourceKindDocument:
		return true
	}
	return false
}

// AccessLevel controls who may read a resource.
type AccessLevel string

// Supported access levels.
const (
	AccessPublic   AccessLevel = "public"
	AccessEnrolled AccessLevel = "enrolled"
)

// ContributorRole records which hat the contributor wore when adding
// the resource.
type ContributorRole string

// Supported contributor roles.
const (
	ContributorTeacher ContributorRole = "teacher"
	ContributorTA      ContributorRole = "ta"
)

// DefaultTopic buckets resources that carry no topic label.
const DefaultTopic = "General"

// Resource is supplementary material linked to a course and optionally to
// specific lectures. Binary payloads are out of scope; Content holds inline
// text and URL points at externally hosted material.
type Resource struct {
	ID              string          `db:"id" json:"id"`
	CourseCode      string          `db:"course_code" json:"course_code"`
	Title           string          `db:"title" json:"title"`
	Description     string          `db:"description" json:"description"`
	Kind            ResourceKind    `db:"kind" json:"kind"`
	Content         string          `db:"content" json:"content,omitempty"`
	URL             *string         `db:"url" json:"url,omitempty"`
	Tags            pq.StringArray  `db:"tags" json:"tags"`
	Topic           string          `db:"topic" json:"topic"`
	LectureIDs      pq.StringArray  `db:"lecture_ids" json:"lecture_ids"`
	ContributorID   string          `db:"contributor_id" json:"contributor_id"`
	ContributorRole ContributorRole `db:"contributor_role" json:"contributor_role"`
	AccessLevel     AccessLevel     `db:"access_level" json:"access_level"`
	Active          bool            `db:"active" json:"active"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ResourceFilter captures conjunctive search criteria; zero values are no-ops.
type ResourceFilter struct {
	Query string
	Kind  ResourceKind
	Topic string
	Tags  []string
}

// TopicGroup is the read-side grouping of course resources by topic.
type TopicGroup struct {
	Topic     string     `json:"topic"`
	Resources []Resource `json:"resources"`
}
