package model

import (
	"time"

	"github.com/google/uuid"
)

type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusAccepted  ReferralStatus = "accepted"
	ReferralStatusRejected  ReferralStatus = "rejected"
	ReferralStatusCancelled ReferralStatus = "cancelled"
)

type ReferralSource string

const (
	ReferralSourceIA      ReferralSource = "IA"
	ReferralSourceMedecin ReferralSource = "medecin"
	ReferralSourceAdmin   ReferralSource = "admin"
	ReferralSourcePatient ReferralSource = "patient"
)

// Referral proposes routing a patient to a department, pending a clinical
// decision. At most one pending referral may exist per (patient, department).
type Referral struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	PatientID    uuid.UUID      `db:"patient_id" json:"patient_id"`
	DepartmentID uuid.UUID      `db:"department_id" json:"department_id"`
	Status       ReferralStatus `db:"status" json:"status"`
	Source       ReferralSource `db:"source" json:"source"`
	Notes        string         `db:"notes" json:"notes,omitempty"`
	CreatedBy    *uuid.UUID     `db:"created_by" json:"created_by,omitempty"`
	ProcessedBy  *uuid.UUID     `db:"processed_by" json:"processed_by,omitempty"`
	ProcessedAt  *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

type ReferralFilters struct {
	PatientID    *uuid.UUID
	DepartmentID *uuid.UUID
	Status       *ReferralStatus
}
