package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/pkg/errors"
)

func (r *departmentRepository) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	query := `
		SELECT id, name, code, description, is_active, created_at, updated_at
		FROM departments
		WHERE code = $1
	`
	var dept model.Department
	err := r.db.GetContext(ctx, &dept, query, code)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("department", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department by code: %w", err)
	}
	return &dept, nil
}

func (r *departmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Department, error) {
	query := `
		SELECT id, name, code, description, is_active, created_at, updated_at
		FROM departments
		WHERE id = $1
	`
	var dept model.Department
	err := r.db.GetContext(ctx, &dept, query, id)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("department", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return &dept, nil
}

func (r *departmentRepository) Ensure(ctx context.Context, department *model.Department) (bool, error) {
	// Relies on the unique index on departments(code).
	query := `
		INSERT INTO departments (id, name, code, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		department.ID, department.Name, department.Code, department.Description,
		department.IsActive, department.CreatedAt, department.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to ensure department: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to ensure department: %w", err)
	}
	return rows > 0, nil
}

func (r *departmentRepository) List(ctx context.Context) ([]*model.Department, error) {
	query := `
		SELECT id, name, code, description, is_active, created_at, updated_at
		FROM departments
		ORDER BY name ASC
	`
	var depts []*model.Department
	if err := r.db.SelectContext(ctx, &depts, query); err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	return depts, nil
}
