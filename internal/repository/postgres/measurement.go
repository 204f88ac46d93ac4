package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/pkg/errors"
)

func (r *measurementRepository) Get(ctx context.Context, id uuid.UUID) (*model.Measurement, error) {
	query := `
		SELECT id, device_id, patient_id, heart_rate, blood_pressure, oxygen_level, recorded_at
		FROM measurements
		WHERE id = $1
	`
	var m model.Measurement
	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("measurement", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get measurement: %w", err)
	}
	return &m, nil
}
