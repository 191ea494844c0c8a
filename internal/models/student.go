package models

import "time"

// Batch classifies the academic cohort a student belongs to.
type Batch string

// Supported batches.
const (
	BatchMTech Batch = "M.Tech"
	BatchBTech Batch = "B.Tech"
	BatchPhD   Batch = "PhD"
	BatchMS    Batch = "MS"
)

// Valid reports whether the batch is a known cohort.
func (b Batch) Valid() bool {
	switch b {
	case BatchMTech, BatchBTech, BatchPhD, BatchMS:
		return true
	}
	return false
}

// Branch classifies the academic department a student belongs to.
type Branch string

// Supported branches.
const (
	BranchCSE Branch = "CSE"
	BranchECE Branch = "ECE"
)

// Valid reports whether the branch is a known department.
func (b Branch) Valid() bool {
	switch b {
	case BranchCSE, BranchECE:
		return true
	}
	return false
}

// Student represents a learner registered in the institution.
type Student struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	RollNumber   string    `db:"roll_number" json:"roll_number"`
	IsTA         bool      `db:"is_ta" json:"is_ta"`
	Batch        Batch     `db:"batch" json:"batch"`
	Branch       Branch    `db:"branch" json:"branch"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
