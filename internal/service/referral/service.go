package referral

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository"
	"github.com/santeia/triage-api/pkg/errors"
	"github.com/santeia/triage-api/pkg/logger"
)

const (
	departmentCacheTTL     = 5 * time.Minute
	departmentCacheCleanup = 10 * time.Minute
)

// AssignmentCreator is the assignment manager surface the orchestrator
// needs when a referral is accepted by a doctor.
type AssignmentCreator interface {
	CreateFromReferral(ctx context.Context, referral *model.Referral, doctor model.Actor) (*model.Assignment, error)
}

type Service struct {
	repo        repository.ReferralRepository
	deptRepo    repository.DepartmentRepository
	assignments AssignmentCreator
	deptCache   *gocache.Cache
	logger      *logger.Logger
}

func NewService(repo repository.ReferralRepository, deptRepo repository.DepartmentRepository, assignments AssignmentCreator, logger *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		deptRepo:    deptRepo,
		assignments: assignments,
		deptCache:   gocache.New(departmentCacheTTL, departmentCacheCleanup),
		logger:      logger,
	}
}

// OpenResult reports the stored referral and whether this call created it.
type OpenResult struct {
	Referral *model.Referral
	Created  bool
}

// Open creates a pending referral for (patient, department) unless an
// equivalent pending one already exists, in which case the existing record
// is returned unchanged. The duplicate guard is atomic in the store, so
// redelivered notifications and racing workers converge on one row.
func (s *Service) Open(ctx context.Context, patientID uuid.UUID, departmentCode string, source model.ReferralSource, notes string, createdBy *uuid.UUID) (*OpenResult, error) {
	dept, err := s.resolveDepartment(ctx, departmentCode)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	referral := &model.Referral{
		ID:           uuid.New(),
		PatientID:    patientID,
		DepartmentID: dept.ID,
		Status:       model.ReferralStatusPending,
		Source:       source,
		Notes:        notes,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, created, err := s.repo.CreatePending(ctx, referral)
	if err != nil {
		return nil, fmt.Errorf("failed to open referral: %w", err)
	}
	if !created {
		s.logger.Debug("referral already pending, returning existing",
			"patient_id", patientID.String(), "department", dept.Code)
	}
	return &OpenResult{Referral: stored, Created: created}, nil
}

// Decide transitions a pending referral to accepted, rejected or
// cancelled. Accepting as a doctor opens the patient-doctor assignment.
func (s *Service) Decide(ctx context.Context, referralID uuid.UUID, actor model.Actor, newStatus model.ReferralStatus, notes *string) (*model.Referral, error) {
	switch newStatus {
	case model.ReferralStatusAccepted, model.ReferralStatusRejected, model.ReferralStatusCancelled:
	default:
		return nil, errors.InvalidTransition(string(model.ReferralStatusPending), string(newStatus))
	}

	referral, err := s.repo.Get(ctx, referralID)
	if err != nil {
		return nil, err
	}

	if newStatus == model.ReferralStatusCancelled {
		if !actor.CanCancelReferral(referral) {
			return nil, errors.Forbidden("not allowed to cancel this referral")
		}
	} else if !actor.CanDecideReferral(referral.DepartmentID) {
		return nil, errors.Forbidden("only a doctor of the proposed department or an admin may decide a referral")
	}

	applied, err := s.repo.UpdateStatus(ctx, referralID, newStatus, actor.ID, time.Now(), notes)
	if err != nil {
		return nil, fmt.Errorf("failed to decide referral: %w", err)
	}
	if !applied {
		return nil, errors.InvalidTransition(string(referral.Status), string(newStatus))
	}

	if newStatus == model.ReferralStatusAccepted && actor.Role == model.RoleMedecin {
		if _, err := s.assignments.CreateFromReferral(ctx, referral, actor); err != nil {
			// The referral decision stands; the assignment conflict is
			// surfaced so staff can resolve it explicitly.
			return nil, fmt.Errorf("referral accepted but assignment failed: %w", err)
		}
	}

	return s.repo.Get(ctx, referralID)
}

// List returns referrals scoped to the actor's role: patients see their
// own, doctors see their department's, admins see everything.
func (s *Service) List(ctx context.Context, actor model.Actor, filters *model.ReferralFilters) ([]*model.Referral, error) {
	if filters == nil {
		filters = &model.ReferralFilters{}
	}
	switch actor.Role {
	case model.RolePatient:
		filters.PatientID = &actor.ID
	case model.RoleMedecin:
		if actor.DepartmentID == nil {
			return []*model.Referral{}, nil
		}
		filters.DepartmentID = actor.DepartmentID
	case model.RoleAdmin:
	default:
		return nil, errors.Forbidden("access denied")
	}
	return s.repo.List(ctx, filters)
}

// resolveDepartment maps a code to an active department, falling back to
// GENERAL when the suggested one is missing or inactive. A deployment
// without a GENERAL department is a configuration error.
func (s *Service) resolveDepartment(ctx context.Context, code string) (*model.Department, error) {
	if dept := s.cachedDepartment(ctx, code); dept != nil && dept.IsActive {
		return dept, nil
	}

	if code != model.DepartmentCodeGeneral {
		s.logger.Debug("department missing or inactive, falling back",
			"code", code, "fallback", model.DepartmentCodeGeneral)
	}

	dept := s.cachedDepartment(ctx, model.DepartmentCodeGeneral)
	if dept == nil || !dept.IsActive {
		return nil, errors.Internal(fmt.Errorf("no active %s department configured", model.DepartmentCodeGeneral))
	}
	return dept, nil
}

func (s *Service) cachedDepartment(ctx context.Context, code string) *model.Department {
	if cached, found := s.deptCache.Get(code); found {
		return cached.(*model.Department)
	}
	dept, err := s.deptRepo.GetByCode(ctx, code)
	if err != nil {
		return nil
	}
	s.deptCache.Set(code, dept, gocache.DefaultExpiration)
	return dept
}
