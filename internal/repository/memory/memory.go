// Package memory provides in-memory repository implementations used by
// unit and concurrency tests. The guarded create operations take the same
// atomicity contract as the postgres implementations: check and insert
// happen under one lock.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/pkg/errors"
)

type Store struct {
	mu           sync.Mutex
	measurements map[uuid.UUID]*model.Measurement
	alerts       map[uuid.UUID]*model.Alert
	referrals    map[uuid.UUID]*model.Referral
	assignments  map[uuid.UUID]*model.Assignment
	departments  map[uuid.UUID]*model.Department
	patients     map[uuid.UUID]*model.Patient
	doctors      map[uuid.UUID]*model.Doctor
}

func NewStore() *Store {
	return &Store{
		measurements: make(map[uuid.UUID]*model.Measurement),
		alerts:       make(map[uuid.UUID]*model.Alert),
		referrals:    make(map[uuid.UUID]*model.Referral),
		assignments:  make(map[uuid.UUID]*model.Assignment),
		departments:  make(map[uuid.UUID]*model.Department),
		patients:     make(map[uuid.UUID]*model.Patient),
		doctors:      make(map[uuid.UUID]*model.Doctor),
	}
}

// Seed helpers

func (s *Store) AddMeasurement(m *model.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.measurements[m.ID] = &cp
}

func (s *Store) AddDepartment(d *model.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.departments[d.ID] = &cp
}

func (s *Store) AddPatient(p *model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.patients[p.ID] = &cp
}

func (s *Store) AddDoctor(d *model.Doctor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.doctors[d.ID] = &cp
}

// Measurements implements repository.MeasurementRepository.
func (s *Store) Measurements() *MeasurementRepo { return &MeasurementRepo{s} }

// Alerts implements repository.AlertRepository.
func (s *Store) Alerts() *AlertRepo { return &AlertRepo{s} }

// Referrals implements repository.ReferralRepository.
func (s *Store) Referrals() *ReferralRepo { return &ReferralRepo{s} }

// Assignments implements repository.AssignmentRepository.
func (s *Store) Assignments() *AssignmentRepo { return &AssignmentRepo{s} }

// Departments implements repository.DepartmentRepository.
func (s *Store) Departments() *DepartmentRepo { return &DepartmentRepo{s} }

// Patients implements repository.PatientRepository.
func (s *Store) Patients() *PatientRepo { return &PatientRepo{s} }

// Doctors implements repository.DoctorRepository.
func (s *Store) Doctors() *DoctorRepo { return &DoctorRepo{s} }

type MeasurementRepo struct{ s *Store }

func (r *MeasurementRepo) Get(_ context.Context, id uuid.UUID) (*model.Measurement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.measurements[id]
	if !ok {
		return nil, errors.NotFound("measurement", nil)
	}
	cp := *m
	return &cp, nil
}

type AlertRepo struct{ s *Store }

func (r *AlertRepo) Create(_ context.Context, alert *model.Alert) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *alert
	r.s.alerts[alert.ID] = &cp
	return nil
}

func (r *AlertRepo) Get(_ context.Context, id uuid.UUID) (*model.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *AlertRepo) List(_ context.Context, filters *model.AlertFilters) ([]*model.Alert, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Alert
	for _, a := range r.s.alerts {
		if filters != nil {
			if filters.PatientID != nil && a.PatientID != *filters.PatientID {
				continue
			}
			if filters.Status != nil && a.Status != *filters.Status {
				continue
			}
			if filters.Severity != nil && a.Severity != *filters.Severity {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AlertRepo) MarkSeen(_ context.Context, id, viewerID uuid.UUID, viewedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok || a.ViewedBy != nil {
		return errors.Conflict("alert already seen or not found")
	}
	a.Status = model.AlertStatusVue
	a.ViewedBy = &viewerID
	a.ViewedAt = &viewedAt
	return nil
}

func (r *AlertRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.AlertStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.alerts[id]
	if !ok {
		return errors.NotFound("alert", nil)
	}
	a.Status = status
	return nil
}

type ReferralRepo struct{ s *Store }

func (r *ReferralRepo) CreatePending(_ context.Context, referral *model.Referral) (*model.Referral, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.referrals {
		if existing.PatientID == referral.PatientID &&
			existing.DepartmentID == referral.DepartmentID &&
			existing.Status == model.ReferralStatusPending {
			cp := *existing
			return &cp, false, nil
		}
	}
	cp := *referral
	cp.Status = model.ReferralStatusPending
	r.s.referrals[referral.ID] = &cp
	out := cp
	return &out, true, nil
}

func (r *ReferralRepo) Get(_ context.Context, id uuid.UUID) (*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.referrals[id]
	if !ok {
		return nil, errors.NotFound("referral", nil)
	}
	cp := *ref
	return &cp, nil
}

func (r *ReferralRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.ReferralStatus, processedBy uuid.UUID, processedAt time.Time, notes *string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.referrals[id]
	if !ok || ref.Status != model.ReferralStatusPending {
		return false, nil
	}
	ref.Status = status
	ref.ProcessedBy = &processedBy
	ref.ProcessedAt = &processedAt
	if notes != nil {
		ref.Notes = *notes
	}
	ref.UpdatedAt = time.Now()
	return true, nil
}

func (r *ReferralRepo) List(_ context.Context, filters *model.ReferralFilters) ([]*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Referral
	for _, ref := range r.s.referrals {
		if filters != nil {
			if filters.PatientID != nil && ref.PatientID != *filters.PatientID {
				continue
			}
			if filters.DepartmentID != nil && ref.DepartmentID != *filters.DepartmentID {
				continue
			}
			if filters.Status != nil && ref.Status != *filters.Status {
				continue
			}
		}
		cp := *ref
		out = append(out, &cp)
	}
	return out, nil
}

type AssignmentRepo struct{ s *Store }

func (r *AssignmentRepo) CreateActive(_ context.Context, assignment *model.Assignment) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.assignments {
		if existing.PatientID == assignment.PatientID && existing.Status == model.AssignmentStatusActive {
			return false, nil
		}
	}
	cp := *assignment
	cp.Status = model.AssignmentStatusActive
	r.s.assignments[assignment.ID] = &cp
	return true, nil
}

func (r *AssignmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok {
		return nil, errors.NotFound("assignment", nil)
	}
	cp := *a
	return &cp, nil
}

func (r *AssignmentRepo) SetStatus(_ context.Context, id uuid.UUID, from, to model.AssignmentStatus, endAt *time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	if endAt != nil {
		a.EndAt = endAt
	}
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *AssignmentRepo) Reactivate(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.assignments[id]
	if !ok || a.Status != model.AssignmentStatusSuspended {
		return false, nil
	}
	for _, other := range r.s.assignments {
		if other.ID != id && other.PatientID == a.PatientID && other.Status == model.AssignmentStatusActive {
			return false, nil
		}
	}
	a.Status = model.AssignmentStatusActive
	a.EndAt = nil
	a.UpdatedAt = time.Now()
	return true, nil
}

func (r *AssignmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.assignments[id]; !ok {
		return errors.NotFound("assignment", nil)
	}
	delete(r.s.assignments, id)
	return nil
}

func (r *AssignmentRepo) List(_ context.Context, filters *model.AssignmentFilters) ([]*model.Assignment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Assignment
	for _, a := range r.s.assignments {
		if filters != nil {
			if filters.PatientID != nil && a.PatientID != *filters.PatientID {
				continue
			}
			if filters.DepartmentID != nil && a.DepartmentID != *filters.DepartmentID {
				continue
			}
			if filters.DoctorID != nil && a.DoctorID != *filters.DoctorID {
				continue
			}
			if filters.Status != nil && a.Status != *filters.Status {
				continue
			}
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (r *AssignmentRepo) CountActive(_ context.Context, patientID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, a := range r.s.assignments {
		if a.PatientID == patientID && a.Status == model.AssignmentStatusActive {
			count++
		}
	}
	return count, nil
}

type DepartmentRepo struct{ s *Store }

func (r *DepartmentRepo) GetByCode(_ context.Context, code string) (*model.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.departments {
		if d.Code == code {
			cp := *d
			return &cp, nil
		}
	}
	return nil, errors.NotFound("department", nil)
}

func (r *DepartmentRepo) Get(_ context.Context, id uuid.UUID) (*model.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.departments[id]
	if !ok {
		return nil, errors.NotFound("department", nil)
	}
	cp := *d
	return &cp, nil
}

func (r *DepartmentRepo) Ensure(_ context.Context, department *model.Department) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.departments {
		if d.Code == department.Code {
			return false, nil
		}
	}
	cp := *department
	r.s.departments[department.ID] = &cp
	return true, nil
}

func (r *DepartmentRepo) List(_ context.Context) ([]*model.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Department
	for _, d := range r.s.departments {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

type PatientRepo struct{ s *Store }

func (r *PatientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *PatientRepo) SetCurrentAssignment(_ context.Context, patientID uuid.UUID, assignmentID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[patientID]
	if !ok {
		return errors.NotFound("patient", nil)
	}
	p.CurrentAssignmentID = assignmentID
	p.UpdatedAt = time.Now()
	return nil
}

type DoctorRepo struct{ s *Store }

func (r *DoctorRepo) Get(_ context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, errors.NotFound("doctor", nil)
	}
	cp := *d
	return &cp, nil
}
