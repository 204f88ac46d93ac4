package triage

import (
	"github.com/santeia/triage-api/internal/model"
)

// RouteDepartment maps a finding to a department code. The precedence
// table is evaluated in order, first match wins:
//
//  1. HR > 120 or a tachycardia finding        -> CARDIO
//  2. SpO2 < 85 (severe hypoxia)               -> GENERAL (urgent generalist triage)
//  3. SpO2 < 92                                -> GENERAL
//  4. HR in [90, 120]                          -> CARDIO
//  5. otherwise                                -> GENERAL
//
// Unknown or inactive codes are resolved downstream by the referral
// orchestrator, not here.
func RouteDepartment(f Finding) string {
	if f.Kind == FindingTachycardia || (f.HeartRate != nil && *f.HeartRate > 120) {
		return model.DepartmentCodeCardio
	}
	if f.SpO2 != nil && *f.SpO2 < 85 {
		return model.DepartmentCodeGeneral
	}
	if f.SpO2 != nil && *f.SpO2 < 92 {
		return model.DepartmentCodeGeneral
	}
	if f.HeartRate != nil && *f.HeartRate >= 90 && *f.HeartRate <= 120 {
		return model.DepartmentCodeCardio
	}
	return model.DepartmentCodeGeneral
}
