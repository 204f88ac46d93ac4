package repository

import (
	"context"
	"fmt"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/pkg/logger"
)

// EnsureDefaultDepartments inserts the default departments that are not
// present yet. Existing departments are left untouched, so the seed is
// safe to run on every startup.
func EnsureDefaultDepartments(ctx context.Context, repo DepartmentRepository, lg *logger.Logger) error {
	for _, dept := range model.DefaultDepartments() {
		created, err := repo.Ensure(ctx, dept)
		if err != nil {
			return fmt.Errorf("failed to seed department %s: %w", dept.Code, err)
		}
		if created {
			lg.Info("seeded department", "code", dept.Code, "name", dept.Name)
		}
	}
	return nil
}
