package model

import (
	"time"

	"github.com/google/uuid"
)

// Measurement is a single physiological reading written by a monitoring
// device. Records are append-only; the pipeline never mutates them.
type Measurement struct {
	ID            uuid.UUID `db:"id" json:"id"`
	DeviceID      string    `db:"device_id" json:"device_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	HeartRate     *float64  `db:"heart_rate" json:"heart_rate,omitempty"`
	BloodPressure string    `db:"blood_pressure" json:"blood_pressure,omitempty"`
	OxygenLevel   *float64  `db:"oxygen_level" json:"oxygen_level,omitempty"`
	RecordedAt    time.Time `db:"recorded_at" json:"recorded_at"`
}

// MeasurementNotification is the bus payload published when a measurement
// is written.
type MeasurementNotification struct {
	MeasurementID string `json:"measurement_id"`
}
