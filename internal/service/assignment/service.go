package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository"
	"github.com/santeia/triage-api/pkg/errors"
	"github.com/santeia/triage-api/pkg/logger"
)

type Service struct {
	repo        repository.AssignmentRepository
	patientRepo repository.PatientRepository
	doctorRepo  repository.DoctorRepository
	logger      *logger.Logger
}

func NewService(repo repository.AssignmentRepository, patientRepo repository.PatientRepository, doctorRepo repository.DoctorRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		patientRepo: patientRepo,
		doctorRepo:  doctorRepo,
		logger:      logger,
	}
}

// CreateFromReferral opens the active assignment implied by an accepted
// referral, with the accepting doctor as the responsible doctor.
func (s *Service) CreateFromReferral(ctx context.Context, referral *model.Referral, doctor model.Actor) (*model.Assignment, error) {
	referralID := referral.ID
	return s.create(ctx, referral.PatientID, referral.DepartmentID, doctor.ID, doctor.ID, &referralID, "")
}

// CreateManual opens an assignment created directly by staff.
func (s *Service) CreateManual(ctx context.Context, actor model.Actor, patientID, departmentID, doctorID uuid.UUID, referralID *uuid.UUID, notes string) (*model.Assignment, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleMedecin {
		return nil, errors.Forbidden("only doctors and admins may create assignments")
	}
	return s.create(ctx, patientID, departmentID, doctorID, actor.ID, referralID, notes)
}

func (s *Service) create(ctx context.Context, patientID, departmentID, doctorID, createdBy uuid.UUID, referralID *uuid.UUID, notes string) (*model.Assignment, error) {
	doctor, err := s.doctorRepo.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if doctor.DepartmentID == nil || *doctor.DepartmentID != departmentID {
		return nil, errors.BadRequest("doctor does not belong to the target department", nil)
	}

	now := time.Now()
	assignment := &model.Assignment{
		ID:           uuid.New(),
		PatientID:    patientID,
		DepartmentID: departmentID,
		DoctorID:     doctorID,
		ReferralID:   referralID,
		Status:       model.AssignmentStatusActive,
		Notes:        notes,
		StartAt:      now,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The existence check and insert are one atomic unit in the store;
	// a plain check-then-insert would race with concurrent creates.
	created, err := s.repo.CreateActive(ctx, assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}
	if !created {
		return nil, errors.Conflict("patient already has an active assignment")
	}

	if err := s.patientRepo.SetCurrentAssignment(ctx, patientID, &assignment.ID); err != nil {
		s.logger.Error(err, "failed to stamp patient assignment pointer",
			"patient_id", patientID.String(), "assignment_id", assignment.ID.String())
	}

	return assignment, nil
}

// UpdateStatus drives the assignment state machine:
//
//	active -> ended      clears the patient pointer, stamps end_at
//	active -> suspended  keeps the pointer
//	suspended -> active  re-validates the single-active invariant
func (s *Service) UpdateStatus(ctx context.Context, assignmentID uuid.UUID, actor model.Actor, newStatus model.AssignmentStatus, endAt *time.Time) (*model.Assignment, error) {
	assignment, err := s.repo.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanManageAssignment(assignment) {
		return nil, errors.Forbidden("not allowed to modify this assignment")
	}

	switch {
	case assignment.Status == model.AssignmentStatusActive && newStatus == model.AssignmentStatusEnded:
		if endAt == nil {
			now := time.Now()
			endAt = &now
		}
		applied, err := s.repo.SetStatus(ctx, assignmentID, model.AssignmentStatusActive, model.AssignmentStatusEnded, endAt)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, errors.InvalidTransition(string(assignment.Status), string(newStatus))
		}
		if err := s.patientRepo.SetCurrentAssignment(ctx, assignment.PatientID, nil); err != nil {
			s.logger.Error(err, "failed to clear patient assignment pointer",
				"patient_id", assignment.PatientID.String())
		}

	case assignment.Status == model.AssignmentStatusActive && newStatus == model.AssignmentStatusSuspended:
		applied, err := s.repo.SetStatus(ctx, assignmentID, model.AssignmentStatusActive, model.AssignmentStatusSuspended, nil)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, errors.InvalidTransition(string(assignment.Status), string(newStatus))
		}

	case assignment.Status == model.AssignmentStatusSuspended && newStatus == model.AssignmentStatusActive:
		// Another assignment may have gone active while this one was
		// suspended; the store re-checks atomically.
		applied, err := s.repo.Reactivate(ctx, assignmentID)
		if err != nil {
			return nil, err
		}
		if !applied {
			return nil, errors.Conflict("patient already has an active assignment")
		}
		if err := s.patientRepo.SetCurrentAssignment(ctx, assignment.PatientID, &assignment.ID); err != nil {
			s.logger.Error(err, "failed to stamp patient assignment pointer",
				"patient_id", assignment.PatientID.String())
		}

	default:
		return nil, errors.InvalidTransition(string(assignment.Status), string(newStatus))
	}

	return s.repo.Get(ctx, assignmentID)
}

// Delete removes an assignment record. Admin only; clears the patient
// pointer when the deleted assignment was the active one.
func (s *Service) Delete(ctx context.Context, assignmentID uuid.UUID, actor model.Actor) error {
	if !actor.CanDeleteAssignment() {
		return errors.Forbidden("only admins may delete assignments")
	}

	assignment, err := s.repo.Get(ctx, assignmentID)
	if err != nil {
		return err
	}

	if assignment.Status == model.AssignmentStatusActive {
		if err := s.patientRepo.SetCurrentAssignment(ctx, assignment.PatientID, nil); err != nil {
			s.logger.Error(err, "failed to clear patient assignment pointer",
				"patient_id", assignment.PatientID.String())
		}
	}

	return s.repo.Delete(ctx, assignmentID)
}

// List returns assignments scoped to the actor's role: patients see their
// own, doctors see the ones they are responsible for, admins see all.
func (s *Service) List(ctx context.Context, actor model.Actor, filters *model.AssignmentFilters) ([]*model.Assignment, error) {
	if filters == nil {
		filters = &model.AssignmentFilters{}
	}
	switch actor.Role {
	case model.RolePatient:
		filters.PatientID = &actor.ID
	case model.RoleMedecin:
		filters.DoctorID = &actor.ID
	case model.RoleAdmin:
	default:
		return nil, errors.Forbidden("access denied")
	}
	return s.repo.List(ctx, filters)
}
