package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusEnded     AssignmentStatus = "ended"
	AssignmentStatusSuspended AssignmentStatus = "suspended"
)

// Assignment binds a patient to a doctor within a department. At most one
// assignment per patient may be active at any time.
type Assignment struct {
	ID           uuid.UUID        `db:"id" json:"id"`
	PatientID    uuid.UUID        `db:"patient_id" json:"patient_id"`
	DepartmentID uuid.UUID        `db:"department_id" json:"department_id"`
	DoctorID     uuid.UUID        `db:"doctor_id" json:"doctor_id"`
	ReferralID   *uuid.UUID       `db:"referral_id" json:"referral_id,omitempty"`
	Status       AssignmentStatus `db:"status" json:"status"`
	Notes        string           `db:"notes" json:"notes,omitempty"`
	StartAt      time.Time        `db:"start_at" json:"start_at"`
	EndAt        *time.Time       `db:"end_at" json:"end_at,omitempty"`
	CreatedBy    uuid.UUID        `db:"created_by" json:"created_by"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

type AssignmentFilters struct {
	PatientID    *uuid.UUID
	DepartmentID *uuid.UUID
	DoctorID     *uuid.UUID
	Status       *AssignmentStatus
}
