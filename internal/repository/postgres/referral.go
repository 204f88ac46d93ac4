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

// CreatePending relies on the partial unique index
//
//	CREATE UNIQUE INDEX referrals_one_pending_idx
//	    ON referrals (patient_id, department_id) WHERE status = 'pending';
//
// so the duplicate check and the insert are a single atomic statement.
// Redelivered notifications and racing workers both land on the same row.
func (r *referralRepository) CreatePending(ctx context.Context, referral *model.Referral) (*model.Referral, bool, error) {
	query := `
		INSERT INTO referrals (
			id, patient_id, department_id, status, source,
			notes, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, department_id) WHERE status = 'pending'
		DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		referral.ID,
		referral.PatientID,
		referral.DepartmentID,
		model.ReferralStatusPending,
		referral.Source,
		referral.Notes,
		referral.CreatedBy,
		referral.CreatedAt,
		referral.UpdatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create referral: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return referral, true, nil
	}

	existing, err := r.getPending(ctx, referral.PatientID, referral.DepartmentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *referralRepository) getPending(ctx context.Context, patientID, departmentID uuid.UUID) (*model.Referral, error) {
	query := `
		SELECT id, patient_id, department_id, status, source, notes,
			   created_by, processed_by, processed_at, created_at, updated_at
		FROM referrals
		WHERE patient_id = $1 AND department_id = $2 AND status = $3
	`
	var referral model.Referral
	err := r.db.GetContext(ctx, &referral, query, patientID, departmentID, model.ReferralStatusPending)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("pending referral", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending referral: %w", err)
	}
	return &referral, nil
}

func (r *referralRepository) Get(ctx context.Context, id uuid.UUID) (*model.Referral, error) {
	query := `
		SELECT id, patient_id, department_id, status, source, notes,
			   created_by, processed_by, processed_at, created_at, updated_at
		FROM referrals
		WHERE id = $1
	`
	var referral model.Referral
	err := r.db.GetContext(ctx, &referral, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("referral", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral: %w", err)
	}
	return &referral, nil
}

// UpdateStatus is conditional on the referral still being pending, so two
// staff members deciding concurrently cannot both win.
func (r *referralRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.ReferralStatus, processedBy uuid.UUID, processedAt time.Time, notes *string) (bool, error) {
	query := `
		UPDATE referrals
		SET status = $1, processed_by = $2, processed_at = $3,
			notes = COALESCE($4, notes), updated_at = $5
		WHERE id = $6 AND status = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		status, processedBy, processedAt, notes, time.Now(), id, model.ReferralStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update referral status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *referralRepository) List(ctx context.Context, filters *model.ReferralFilters) ([]*model.Referral, error) {
	query := `
		SELECT id, patient_id, department_id, status, source, notes,
			   created_by, processed_by, processed_at, created_at, updated_at
		FROM referrals
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
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	var referrals []*model.Referral
	err := r.db.SelectContext(ctx, &referrals, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return referrals, nil
}
