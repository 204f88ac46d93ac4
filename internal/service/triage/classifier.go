package triage

import (
	"github.com/santeia/triage-api/internal/model"
)

// Default clinical thresholds, overridable via FC_MAX / SPO2_MIN.
const (
	DefaultFCMax   = 100
	DefaultSpO2Min = 92
)

type FindingKind string

const (
	FindingTachycardia FindingKind = "tachycardia"
	FindingHypoxia     FindingKind = "hypoxia"
)

// Finding is a single classifier output derived from one measurement.
type Finding struct {
	Kind      FindingKind
	Severity  model.AlertSeverity
	HeartRate *float64
	SpO2      *float64
}

// Thresholds holds the tunable rule parameters.
type Thresholds struct {
	FCMax   int `envconfig:"FC_MAX" default:"100"`
	SpO2Min int `envconfig:"SPO2_MIN" default:"92"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{FCMax: DefaultFCMax, SpO2Min: DefaultSpO2Min}
}

// Classify evaluates a measurement against the thresholds and returns the
// findings in a fixed order: tachycardia before hypoxia. The rules are
// independent; both may fire for one measurement. Boundary values are
// exclusive: HR equal to FCMax and SpO2 equal to SpO2Min stay silent.
func Classify(m *model.Measurement, t Thresholds) []Finding {
	var findings []Finding

	if m.HeartRate != nil && *m.HeartRate > float64(t.FCMax) {
		findings = append(findings, Finding{
			Kind:      FindingTachycardia,
			Severity:  model.AlertSeverityWarning,
			HeartRate: m.HeartRate,
			SpO2:      m.OxygenLevel,
		})
	}

	if m.OxygenLevel != nil && *m.OxygenLevel < float64(t.SpO2Min) {
		findings = append(findings, Finding{
			Kind:      FindingHypoxia,
			Severity:  model.AlertSeverityCritical,
			HeartRate: m.HeartRate,
			SpO2:      m.OxygenLevel,
		})
	}

	return findings
}
