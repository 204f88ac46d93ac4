package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertSeverity string

const (
	AlertSeverityNormal   AlertSeverity = "normal"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertPriority is the medical triage priority shown to clinical staff.
type AlertPriority string

const (
	AlertPriorityCritique AlertPriority = "critique"
	AlertPriorityElevee   AlertPriority = "elevee"
	AlertPriorityNormale  AlertPriority = "normale"
	AlertPriorityFaible   AlertPriority = "faible"
)

type AlertStatus string

const (
	AlertStatusNouvelle AlertStatus = "nouvelle"
	AlertStatusVue      AlertStatus = "vue"
	AlertStatusArchivee AlertStatus = "archivee"
)

type Alert struct {
	ID             uuid.UUID     `db:"id" json:"id"`
	PatientID      uuid.UUID     `db:"patient_id" json:"patient_id"`
	Message        string        `db:"message" json:"message"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Priority       AlertPriority `db:"priority" json:"priority"`
	VisiblePatient bool          `db:"visible_patient" json:"visible_patient"`
	Status         AlertStatus   `db:"status" json:"status"`
	ViewedBy       *uuid.UUID    `db:"viewed_by" json:"viewed_by,omitempty"`
	ViewedAt       *time.Time    `db:"viewed_at" json:"viewed_at,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

type AlertFilters struct {
	PatientID *uuid.UUID
	Status    *AlertStatus
	Severity  *AlertSeverity
}
