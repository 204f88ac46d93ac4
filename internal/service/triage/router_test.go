package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/santeia/triage-api/internal/model"
)

func TestRouteDepartmentPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		finding  Finding
		expected string
	}{
		{
			"tachycardia finding routes to cardiology",
			Finding{Kind: FindingTachycardia, Severity: model.AlertSeverityWarning, HeartRate: floatPtr(105)},
			model.DepartmentCodeCardio,
		},
		{
			"very high heart rate routes to cardiology regardless of kind",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical, HeartRate: floatPtr(130), SpO2: floatPtr(91)},
			model.DepartmentCodeCardio,
		},
		{
			"severe hypoxia routes to urgent generalist triage",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical, SpO2: floatPtr(84)},
			model.DepartmentCodeGeneral,
		},
		{
			"moderate hypoxia routes to general",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical, SpO2: floatPtr(90)},
			model.DepartmentCodeGeneral,
		},
		{
			"elevated heart rate in band routes to cardiology",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical, HeartRate: floatPtr(95), SpO2: floatPtr(93)},
			model.DepartmentCodeCardio,
		},
		{
			"nothing notable falls back to general",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical, HeartRate: floatPtr(70), SpO2: floatPtr(95)},
			model.DepartmentCodeGeneral,
		},
		{
			"no vitals at all falls back to general",
			Finding{Kind: FindingHypoxia, Severity: model.AlertSeverityCritical},
			model.DepartmentCodeGeneral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RouteDepartment(tt.finding))
		})
	}
}
