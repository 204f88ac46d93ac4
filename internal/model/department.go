package model

import (
	"time"

	"github.com/google/uuid"
)

// Well-known department codes. GENERAL is the fallback target when a
// suggested department is missing or inactive.
const (
	DepartmentCodeGeneral = "GENERAL"
	DepartmentCodeCardio  = "CARDIO"
	DepartmentCodePneumo  = "PNEUMO"
)

type Department struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description,omitempty"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultDepartments returns the departments every deployment starts
// with. The pipeline depends on GENERAL existing as the referral
// fallback target.
func DefaultDepartments() []*Department {
	now := time.Now()
	defaults := []struct {
		name, code, description string
	}{
		{"Médecine générale", DepartmentCodeGeneral, "Service de médecine générale"},
		{"Cardiologie", DepartmentCodeCardio, "Service de cardiologie"},
		{"Pneumologie", DepartmentCodePneumo, "Service de pneumologie"},
	}
	out := make([]*Department, 0, len(defaults))
	for _, d := range defaults {
		out = append(out, &Department{
			ID:          uuid.New(),
			Name:        d.name,
			Code:        d.code,
			Description: d.description,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}
