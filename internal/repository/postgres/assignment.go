package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/pkg/errors"
)

// CreateActive enforces the single-active invariant with a guarded insert:
// the row is only written when no active assignment exists for the patient,
// in one statement. The partial unique index
//
//	CREATE UNIQUE INDEX assignments_one_active_idx
//	    ON assignments (patient_id) WHERE status = 'active';
//
// backs the same invariant against anything bypassing this repository.
func (r *assignmentRepository) CreateActive(ctx context.Context, assignment *model.Assignment) (bool, error) {
	query := `
		INSERT INTO assignments (
			id, patient_id, department_id, doctor_id, referral_id,
			status, notes, start_at, created_by, created_at, updated_at
		)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE NOT EXISTS (
			SELECT 1 FROM assignments
			WHERE patient_id = $2 AND status = 'active'
		)
		ON CONFLICT (patient_id) WHERE status = 'active'
		DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.PatientID,
		assignment.DepartmentID,
		assignment.DoctorID,
		assignment.ReferralID,
		model.AssignmentStatusActive,
		assignment.Notes,
		assignment.StartAt,
		assignment.CreatedBy,
		assignment.CreatedAt,
		assignment.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *assignmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Assignment, error) {
	query := `
		SELECT id, patient_id, department_id, doctor_id, referral_id,
			   status, notes, start_at, end_at, created_by, created_at, updated_at
		FROM assignments
		WHERE id = $1
	`
	var assignment model.Assignment
	err := r.db.GetContext(ctx, &assignment, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("assignment", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &assignment, nil
}

func (r *assignmentRepository) SetStatus(ctx context.Context, id uuid.UUID, from, to model.AssignmentStatus, endAt *time.Time) (bool, error) {
	query := `
		UPDATE assignments
		SET status = $1, end_at = COALESCE($2, end_at), updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, endAt, time.Now(), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update assignment status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Reactivate re-checks the single-active invariant in the same statement:
// another assignment may have gone active while this one was suspended.
func (r *assignmentRepository) Reactivate(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE assignments a
		SET status = 'active', end_at = NULL, updated_at = $1
		WHERE a.id = $2 AND a.status = 'suspended'
		AND NOT EXISTS (
			SELECT 1 FROM assignments other
			WHERE other.patient_id = a.patient_id
			AND other.status = 'active'
			AND other.id != a.id
		)
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to reactivate assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *assignmentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM assignments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("assignment", nil)
	}
	return nil
}

func (r *assignmentRepository) List(ctx context.Context, filters *model.AssignmentFilters) ([]*model.Assignment, error) {
	query := `
		SELECT id, patient_id, department_id, doctor_id, referral_id,
			   status, notes, start_at, end_at, created_by, created_at, updated_at
		FROM assignments
		WHERE 1=1
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.PatientID != nil {
			query += fmt.Sprintf(" AND patient_id = $%d", argCount)
			args = append(args, *filters.PatientID)
			argCount++
		}
		if filters.DepartmentID != nil {
			query += fmt.Sprintf(" AND department_id = $%d", argCount)
			args = append(args, *filters.DepartmentID)
			argCount++
		}
		if filters.DoctorID != nil {
			query += fmt.Sprintf(" AND doctor_id = $%d", argCount)
			args = append(args, *filters.DoctorID)
			argCount++
		}
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
	}

	query += " ORDER BY start_at DESC"

	var assignments []*model.Assignment
	err := r.db.SelectContext(ctx, &assignments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return assignments, nil
}

func (r *assignmentRepository) CountActive(ctx context.Context, patientID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM assignments WHERE patient_id = $1 AND status = 'active'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, patientID); err != nil {
		return 0, fmt.Errorf("failed to count active assignments: %w", err)
	}
	return count, nil
}
