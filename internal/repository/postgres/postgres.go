package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/santeia/triage-api/internal/repository"
)

type measurementRepository struct {
	db *sqlx.DB
}

type alertRepository struct {
	db *sqlx.DB
}

type referralRepository struct {
	db *sqlx.DB
}

type assignmentRepository struct {
	db *sqlx.DB
}

type departmentRepository struct {
	db *sqlx.DB
}

type patientRepository struct {
	db *sqlx.DB
}

type doctorRepository struct {
	db *sqlx.DB
}

func NewMeasurementRepository(db *sqlx.DB) repository.MeasurementRepository {
	return &measurementRepository{db: db}
}

func NewAlertRepository(db *sqlx.DB) repository.AlertRepository {
	return &alertRepository{db: db}
}

func NewReferralRepository(db *sqlx.DB) repository.ReferralRepository {
	return &referralRepository{db: db}
}

func NewAssignmentRepository(db *sqlx.DB) repository.AssignmentRepository {
	return &assignmentRepository{db: db}
}

func NewDepartmentRepository(db *sqlx.DB) repository.DepartmentRepository {
	return &departmentRepository{db: db}
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}
