package model

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is the subset of the user profile needed to validate assignments.
type Doctor struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	DepartmentID *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
