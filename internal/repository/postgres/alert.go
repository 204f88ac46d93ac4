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

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	query := `
		INSERT INTO alerts (
			id, patient_id, message, severity, priority,
			visible_patient, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		alert.ID,
		alert.PatientID,
		alert.Message,
		alert.Severity,
		alert.Priority,
		alert.VisiblePatient,
		alert.Status,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	return nil
}

func (r *alertRepository) Get(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	query := `
		SELECT id, patient_id, message, severity, priority,
			   visible_patient, status, viewed_by, viewed_at, created_at
		FROM alerts
		WHERE id = $1
	`
	var alert model.Alert
	err := r.db.GetContext(ctx, &alert, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("alert", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &alert, nil
}

func (r *alertRepository) List(ctx context.Context, filters *model.AlertFilters) ([]*model.Alert, error) {
	query := `
		SELECT id, patient_id, message, severity, priority,
			   visible_patient, status, viewed_by, viewed_at, created_at
		FROM alerts
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
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
		if filters.Severity != nil {
			query += fmt.Sprintf(" AND severity = $%d", argCount)
			args = append(args, *filters.Severity)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	var alerts []*model.Alert
	err := r.db.SelectContext(ctx, &alerts, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// MarkSeen stamps the viewer once; a second viewer does not overwrite.
func (r *alertRepository) MarkSeen(ctx context.Context, id, viewerID uuid.UUID, viewedAt time.Time) error {
	query := `
		UPDATE alerts
		SET status = $1, viewed_by = $2, viewed_at = $3
		WHERE id = $4 AND viewed_by IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.AlertStatusVue, viewerID, viewedAt, id)
	if err != nil {
		return fmt.Errorf("failed to mark alert seen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.Conflict("alert already seen or not found")
	}
	return nil
}

func (r *alertRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AlertStatus) error {
	query := `UPDATE alerts SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("alert", nil)
	}
	return nil
}
