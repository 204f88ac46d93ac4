package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMedecin Role = "medecin"
	RolePatient Role = "patient"
	RoleSystem  Role = "system"
)

// Actor is the authorization context passed explicitly into referral and
// assignment operations. Capability checks live here instead of being
// re-derived from role strings at every call site.
type Actor struct {
	ID           uuid.UUID
	Role         Role
	DepartmentID *uuid.UUID
}

// CanDecideReferral reports whether the actor may accept or reject a
// referral proposed to the given department: a doctor attached to that
// department, or an administrator.
func (a Actor) CanDecideReferral(departmentID uuid.UUID) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleMedecin:
		return a.DepartmentID != nil && *a.DepartmentID == departmentID
	default:
		return false
	}
}

// CanCancelReferral reports whether the actor may cancel the referral:
// staff who can decide it, or the patient it concerns.
func (a Actor) CanCancelReferral(r *Referral) bool {
	if a.Role == RolePatient {
		return a.ID == r.PatientID
	}
	return a.CanDecideReferral(r.DepartmentID)
}

// CanManageAssignment reports whether the actor may mutate the assignment:
// the responsible doctor or an administrator.
func (a Actor) CanManageAssignment(asg *Assignment) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleMedecin:
		return a.ID == asg.DoctorID
	default:
		return false
	}
}

// CanDeleteAssignment is restricted to administrators.
func (a Actor) CanDeleteAssignment() bool {
	return a.Role == RoleAdmin
}

// CanViewHiddenAlerts reports whether medically-filtered alerts are
// visible to the actor.
func (a Actor) CanViewHiddenAlerts() bool {
	return a.Role == RoleAdmin || a.Role == RoleMedecin
}
