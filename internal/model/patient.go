package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the subset of the user profile the pipeline reads and keeps
// in sync. CurrentAssignmentID is a denormalized pointer; the assignment
// record's own status is the source of truth for "active".
type Patient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	Name                string     `db:"name" json:"name"`
	DepartmentID        *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CurrentAssignmentID *uuid.UUID `db:"current_assignment_id" json:"current_assignment_id,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}
