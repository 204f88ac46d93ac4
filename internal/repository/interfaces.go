package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
)

// All repository interfaces in one file
type (
	// MeasurementRepository reads device measurements. The collection is
	// append-only; the pipeline only ever resolves ids from notifications.
	MeasurementRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Measurement, error)
	}

	AlertRepository interface {
		Create(ctx context.Context, alert *model.Alert) error
		Get(ctx context.Context, id uuid.UUID) (*model.Alert, error)
		List(ctx context.Context, filters *model.AlertFilters) ([]*model.Alert, error)
		MarkSeen(ctx context.Context, id, viewerID uuid.UUID, viewedAt time.Time) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.AlertStatus) error
	}

	ReferralRepository interface {
		// CreatePending inserts the referral unless a pending referral for
		// the same (patient, department) already exists, as one atomic
		// operation. It returns the stored referral and whether the insert
		// happened; on a duplicate the existing pending referral is
		// returned instead.
		CreatePending(ctx context.Context, referral *model.Referral) (*model.Referral, bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Referral, error)
		// UpdateStatus transitions the referral out of pending, stamping
		// the processor. The update is conditional on the current status
		// still being pending and reports whether it applied.
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReferralStatus, processedBy uuid.UUID, processedAt time.Time, notes *string) (bool, error)
		List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error)
	}

	AssignmentRepository interface {
		// CreateActive inserts the assignment with status active unless the
		// patient already has an active one, as one atomic operation.
		// Reports whether the insert happened.
		CreateActive(ctx context.Context, assignment *model.Assignment) (bool, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error)
		// SetStatus updates the status conditional on the current status
		// matching from, and reports whether it applied.
		SetStatus(ctx context.Context, id uuid.UUID, from, to model.AssignmentStatus, endAt *time.Time) (bool, error)
		// Reactivate flips a suspended assignment back to active unless the
		// patient has another active assignment, atomically.
		Reactivate(ctx context.Context, id uuid.UUID) (bool, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, filters *model.AssignmentFilters) ([]*model.Assignment, error)
		CountActive(ctx context.Context, patientID uuid.UUID) (int, error)
	}

	DepartmentRepository interface {
		GetByCode(ctx context.Context, code string) (*model.Department, error)
		Get(ctx context.Context, id uuid.UUID) (*model.Department, error)
		List(ctx context.Context) ([]*model.Department, error)
		// Ensure inserts the department unless one with the same code
		// already exists; existing rows are never modified. Reports
		// whether the insert happened.
		Ensure(ctx context.Context, department *model.Department) (bool, error)
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		// SetCurrentAssignment updates the denormalized pointer; nil clears it.
		SetCurrentAssignment(ctx context.Context, patientID uuid.UUID, assignmentID *uuid.UUID) error
	}

	DoctorRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
	}
)
