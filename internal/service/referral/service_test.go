package referral

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository/memory"
	apperrors "github.com/santeia/triage-api/pkg/errors"
	"github.com/santeia/triage-api/pkg/logger"
)

type fakeAssignmentCreator struct {
	mu      sync.Mutex
	created []*model.Referral
	err     error
}

func (f *fakeAssignmentCreator) CreateFromReferral(_ context.Context, referral *model.Referral, _ model.Actor) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, referral)
	return &model.Assignment{ID: uuid.New(), PatientID: referral.PatientID}, nil
}

type fixture struct {
	svc         *Service
	store       *memory.Store
	assignments *fakeAssignmentCreator
	generalID   uuid.UUID
	cardioID    uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	general := &model.Department{ID: uuid.New(), Name: "Médecine générale", Code: model.DepartmentCodeGeneral, IsActive: true}
	cardio := &model.Department{ID: uuid.New(), Name: "Cardiologie", Code: model.DepartmentCodeCardio, IsActive: true}
	store.AddDepartment(general)
	store.AddDepartment(cardio)

	assignments := &fakeAssignmentCreator{}
	svc := NewService(store.Referrals(), store.Departments(), assignments, logger.NewLogger(nil))

	return &fixture{
		svc:         svc,
		store:       store,
		assignments: assignments,
		generalID:   general.ID,
		cardioID:    cardio.ID,
	}
}

func TestOpenCreatesPendingReferral(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	res, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "Tachycardie détectée", nil)
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Equal(t, patientID, res.Referral.PatientID)
	assert.Equal(t, f.cardioID, res.Referral.DepartmentID)
	assert.Equal(t, model.ReferralStatusPending, res.Referral.Status)
	assert.Equal(t, model.ReferralSourceIA, res.Referral.Source)
}

func TestOpenIsIdempotentWhilePending(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	first, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Referral.ID, second.Referral.ID)

	pending := model.ReferralStatusPending
	stored, err := f.store.Referrals().List(context.Background(), &model.ReferralFilters{PatientID: &patientID, Status: &pending})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestOpenConcurrentRaceLeavesOnePending(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	const attempts = 20
	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			_, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pending := model.ReferralStatusPending
	stored, err := f.store.Referrals().List(context.Background(), &model.ReferralFilters{PatientID: &patientID, Status: &pending})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestOpenFallsBackToGeneral(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	res, err := f.svc.Open(context.Background(), patientID, "NEURO", model.ReferralSourceIA, "", nil)
	require.NoError(t, err)
	assert.Equal(t, f.generalID, res.Referral.DepartmentID)
}

func TestOpenFallsBackWhenDepartmentInactive(t *testing.T) {
	store := memory.NewStore()
	general := &model.Department{ID: uuid.New(), Name: "Médecine générale", Code: model.DepartmentCodeGeneral, IsActive: true}
	cardio := &model.Department{ID: uuid.New(), Name: "Cardiologie", Code: model.DepartmentCodeCardio, IsActive: false}
	store.AddDepartment(general)
	store.AddDepartment(cardio)
	svc := NewService(store.Referrals(), store.Departments(), &fakeAssignmentCreator{}, logger.NewLogger(nil))

	res, err := svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)
	assert.Equal(t, general.ID, res.Referral.DepartmentID)
}

func TestOpenFailsWithoutDefaultDepartment(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Referrals(), store.Departments(), &fakeAssignmentCreator{}, logger.NewLogger(nil))

	_, err := svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.Error(t, err)
}

func TestDecideAcceptByDoctorCreatesAssignment(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	res, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	doctor := model.Actor{ID: uuid.New(), Role: model.RoleMedecin, DepartmentID: &f.cardioID}
	decided, err := f.svc.Decide(context.Background(), res.Referral.ID, doctor, model.ReferralStatusAccepted, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStatusAccepted, decided.Status)
	require.NotNil(t, decided.ProcessedBy)
	assert.Equal(t, doctor.ID, *decided.ProcessedBy)
	assert.NotNil(t, decided.ProcessedAt)
	require.Len(t, f.assignments.created, 1)
	assert.Equal(t, res.Referral.ID, f.assignments.created[0].ID)
}

func TestDecideRejectDoesNotCreateAssignment(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	doctor := model.Actor{ID: uuid.New(), Role: model.RoleMedecin, DepartmentID: &f.cardioID}
	decided, err := f.svc.Decide(context.Background(), res.Referral.ID, doctor, model.ReferralStatusRejected, nil)
	require.NoError(t, err)

	assert.Equal(t, model.ReferralStatusRejected, decided.Status)
	assert.Empty(t, f.assignments.created)
}

func TestDecideAlreadyDecidedIsInvalidTransition(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	doctor := model.Actor{ID: uuid.New(), Role: model.RoleMedecin, DepartmentID: &f.cardioID}
	_, err = f.svc.Decide(context.Background(), res.Referral.ID, doctor, model.ReferralStatusRejected, nil)
	require.NoError(t, err)

	_, err = f.svc.Decide(context.Background(), res.Referral.ID, doctor, model.ReferralStatusAccepted, nil)
	assert.True(t, apperrors.IsConflict(err))
}

func TestDecideRequiresMatchingDepartment(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	otherDept := uuid.New()
	outsider := model.Actor{ID: uuid.New(), Role: model.RoleMedecin, DepartmentID: &otherDept}
	_, err = f.svc.Decide(context.Background(), res.Referral.ID, outsider, model.ReferralStatusAccepted, nil)
	require.Error(t, err)

	stored, err := f.store.Referrals().Get(context.Background(), res.Referral.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusPending, stored.Status)
}

func TestPatientMayCancelOwnReferralOnly(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	res, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourcePatient, "", &patientID)
	require.NoError(t, err)

	stranger := model.Actor{ID: uuid.New(), Role: model.RolePatient}
	_, err = f.svc.Decide(context.Background(), res.Referral.ID, stranger, model.ReferralStatusCancelled, nil)
	require.Error(t, err)

	owner := model.Actor{ID: patientID, Role: model.RolePatient}
	decided, err := f.svc.Decide(context.Background(), res.Referral.ID, owner, model.ReferralStatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusCancelled, decided.Status)
}

func TestDecideRejectsUnknownTargetStatus(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	_, err = f.svc.Decide(context.Background(), res.Referral.ID, admin, model.ReferralStatusPending, nil)
	assert.True(t, apperrors.IsConflict(err))
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture(t)
	patientID := uuid.New()

	_, err := f.svc.Open(context.Background(), patientID, model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)
	_, err = f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeGeneral, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	patient := model.Actor{ID: patientID, Role: model.RolePatient}
	own, err := f.svc.List(context.Background(), patient, nil)
	require.NoError(t, err)
	assert.Len(t, own, 1)

	cardioDoctor := model.Actor{ID: uuid.New(), Role: model.RoleMedecin, DepartmentID: &f.cardioID}
	deptScoped, err := f.svc.List(context.Background(), cardioDoctor, nil)
	require.NoError(t, err)
	assert.Len(t, deptScoped, 1)

	unattached := model.Actor{ID: uuid.New(), Role: model.RoleMedecin}
	none, err := f.svc.List(context.Background(), unattached, nil)
	require.NoError(t, err)
	assert.Empty(t, none)

	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	all, err := f.svc.List(context.Background(), admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// A referral decided at exactly the same moment by two staff members must
// only apply once.
func TestDecideConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Open(context.Background(), uuid.New(), model.DepartmentCodeCardio, model.ReferralSourceIA, "", nil)
	require.NoError(t, err)

	admin := model.Actor{ID: uuid.New(), Role: model.RoleAdmin}
	const racers = 10
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.svc.Decide(context.Background(), res.Referral.ID, admin, model.ReferralStatusRejected, nil); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)

	stored, err := f.store.Referrals().Get(context.Background(), res.Referral.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReferralStatusRejected, stored.Status)
}
