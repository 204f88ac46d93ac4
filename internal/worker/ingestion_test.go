package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository/memory"
	"github.com/santeia/triage-api/internal/service/alert"
	"github.com/santeia/triage-api/internal/service/assignment"
	"github.com/santeia/triage-api/internal/service/referral"
	"github.com/santeia/triage-api/internal/service/triage"
	"github.com/santeia/triage-api/pkg/logger"
	"github.com/santeia/triage-api/pkg/messaging"
)

type busItem struct {
	payload []byte
	err     error
}

// fakeBroker scripts subscription failures and message/error delivery so
// tests can drive the worker's connection state machine.
type fakeBroker struct {
	mu             sync.Mutex
	failSubscribes int
	subscribeCalls int
	subscribeTimes []time.Time
	items          chan busItem
	published      []string
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{items: make(chan busItem, 64)}
}

func (b *fakeBroker) Publish(_ context.Context, channel string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, channel)
	return nil
}

func (b *fakeBroker) Subscribe(_ context.Context, _ string) (messaging.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribeCalls++
	b.subscribeTimes = append(b.subscribeTimes, time.Now())
	if b.failSubscribes > 0 {
		b.failSubscribes--
		return nil, errors.New("connection refused")
	}
	return &fakeSubscription{broker: b}, nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) subscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscribeCalls
}

func (b *fakeBroker) subscribeGaps() []time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	var gaps []time.Duration
	for i := 1; i < len(b.subscribeTimes); i++ {
		gaps = append(gaps, b.subscribeTimes[i].Sub(b.subscribeTimes[i-1]))
	}
	return gaps
}

func (b *fakeBroker) send(payload []byte) { b.items <- busItem{payload: payload} }
func (b *fakeBroker) fail(err error)      { b.items <- busItem{err: err} }

type fakeSubscription struct {
	broker *fakeBroker
}

func (s *fakeSubscription) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item := <-s.broker.items:
		return item.payload, item.err
	}
}

func (s *fakeSubscription) Close() error { return nil }

type fixture struct {
	worker *Ingestion
	broker *fakeBroker
	store  *memory.Store
}

func floatPtr(v float64) *float64 { return &v }

func newFixture(t *testing.T) *fixture {
	return newFixtureWithBackoff(t, time.Millisecond, 5*time.Millisecond)
}

func newFixtureWithBackoff(t *testing.T, initial, max time.Duration) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddDepartment(&model.Department{ID: uuid.New(), Name: "Médecine générale", Code: model.DepartmentCodeGeneral, IsActive: true})
	store.AddDepartment(&model.Department{ID: uuid.New(), Name: "Cardiologie", Code: model.DepartmentCodeCardio, IsActive: true})

	broker := newFakeBroker()
	lg := logger.NewLogger(nil)

	assignmentSvc := assignment.NewService(store.Assignments(), store.Patients(), store.Doctors(), lg)
	referralSvc := referral.NewService(store.Referrals(), store.Departments(), assignmentSvc, lg)
	alertSvc := alert.NewService(store.Alerts(), broker, lg)

	w := NewIngestion(broker, store.Measurements(), alertSvc, referralSvc, IngestionConfig{
		InitialBackoff: initial,
		MaxBackoff:     max,
	}, lg, nil)

	return &fixture{worker: w, broker: broker, store: store}
}

func (f *fixture) addMeasurement(hr, spo2 *float64) *model.Measurement {
	m := &model.Measurement{
		ID:          uuid.New(),
		DeviceID:    "device-1",
		PatientID:   uuid.New(),
		HeartRate:   hr,
		OxygenLevel: spo2,
		RecordedAt:  time.Now(),
	}
	f.store.AddMeasurement(m)
	return m
}

func (f *fixture) run(t *testing.T) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.worker.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not stop after cancellation")
		}
	}
}

func notification(id uuid.UUID) []byte {
	payload, _ := json.Marshal(model.MeasurementNotification{MeasurementID: id.String()})
	return payload
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func (f *fixture) pendingReferrals(patientID uuid.UUID) []*model.Referral {
	pending := model.ReferralStatusPending
	refs, _ := f.store.Referrals().List(context.Background(), &model.ReferralFilters{
		PatientID: &patientID, Status: &pending,
	})
	return refs
}

func (f *fixture) alerts(patientID uuid.UUID) []*model.Alert {
	alerts, _ := f.store.Alerts().List(context.Background(), &model.AlertFilters{PatientID: &patientID})
	return alerts
}

func TestTachycardiaEndToEnd(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(m.ID))

	waitFor(t, func() bool { return len(f.pendingReferrals(m.PatientID)) == 1 })

	alerts := f.alerts(m.PatientID)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Tachycardie détectée", alerts[0].Message)
	assert.Equal(t, model.AlertSeverityWarning, alerts[0].Severity)
	assert.True(t, alerts[0].VisiblePatient)

	refs := f.pendingReferrals(m.PatientID)
	require.Len(t, refs, 1)
	dept, err := f.store.Departments().Get(context.Background(), refs[0].DepartmentID)
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentCodeCardio, dept.Code)
	assert.Equal(t, model.ReferralSourceIA, refs[0].Source)
}

func TestHypoxiaEndToEnd(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(nil, floatPtr(84))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(m.ID))

	waitFor(t, func() bool { return len(f.pendingReferrals(m.PatientID)) == 1 })

	alerts := f.alerts(m.PatientID)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Hypoxie détectée", alerts[0].Message)
	assert.Equal(t, model.AlertSeverityCritical, alerts[0].Severity)
	assert.False(t, alerts[0].VisiblePatient)

	refs := f.pendingReferrals(m.PatientID)
	require.Len(t, refs, 1)
	dept, err := f.store.Departments().Get(context.Background(), refs[0].DepartmentID)
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentCodeGeneral, dept.Code)
}

func TestRedeliveredNotificationDoesNotDuplicateReferral(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(m.ID))
	f.broker.send(notification(m.ID))

	// Two alerts may exist (alert dedup across redelivery is out of
	// scope) but the pending referral must stay unique.
	waitFor(t, func() bool { return len(f.alerts(m.PatientID)) == 2 })
	assert.Len(t, f.pendingReferrals(m.PatientID), 1)
}

func TestMalformedNotificationDoesNotStopProcessing(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send([]byte("{not json"))
	f.broker.send([]byte(`{"measurement_id":"not-a-uuid"}`))
	f.broker.send(notification(m.ID))

	waitFor(t, func() bool { return len(f.pendingReferrals(m.PatientID)) == 1 })
}

func TestUnknownMeasurementIsNoOp(t *testing.T) {
	f := newFixture(t)
	known := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(uuid.New()))
	f.broker.send(notification(known.ID))

	waitFor(t, func() bool { return len(f.pendingReferrals(known.PatientID)) == 1 })
}

func TestNormalMeasurementProducesNothing(t *testing.T) {
	f := newFixture(t)
	normal := f.addMeasurement(floatPtr(75), floatPtr(98))
	abnormal := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(normal.ID))
	f.broker.send(notification(abnormal.ID))

	waitFor(t, func() bool { return len(f.pendingReferrals(abnormal.PatientID)) == 1 })
	assert.Empty(t, f.alerts(normal.PatientID))
	assert.Empty(t, f.pendingReferrals(normal.PatientID))
}

func TestReconnectsAfterReadFailure(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	waitFor(t, func() bool { return f.broker.subscribes() == 1 })

	f.broker.fail(fmt.Errorf("connection reset"))

	waitFor(t, func() bool { return f.broker.subscribes() >= 2 })

	f.broker.send(notification(m.ID))
	waitFor(t, func() bool { return len(f.pendingReferrals(m.PatientID)) == 1 })
}

func TestRetriesSubscriptionWithBackoff(t *testing.T) {
	f := newFixture(t)
	f.broker.failSubscribes = 3
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	waitFor(t, func() bool { return f.broker.subscribes() >= 4 })

	f.broker.send(notification(m.ID))
	waitFor(t, func() bool { return len(f.pendingReferrals(m.PatientID)) == 1 })
}

func TestReconnectBackoffDoublesFromInitialThenCaps(t *testing.T) {
	f := newFixtureWithBackoff(t, 40*time.Millisecond, 160*time.Millisecond)
	f.broker.failSubscribes = 5

	cancel := f.run(t)
	defer cancel()

	waitFor(t, func() bool { return f.broker.subscribes() >= 6 })

	// Expected waits between attempts: 40, 80, 160, 160, 160ms.
	gaps := f.broker.subscribeGaps()
	require.GreaterOrEqual(t, len(gaps), 5)

	assert.GreaterOrEqual(t, gaps[0], 35*time.Millisecond)
	assert.Less(t, gaps[0], 70*time.Millisecond)

	assert.Greater(t, gaps[1], gaps[0])
	assert.Less(t, gaps[1], 140*time.Millisecond)

	assert.Greater(t, gaps[2], gaps[1])

	for _, gap := range gaps[2:5] {
		assert.GreaterOrEqual(t, gap, 150*time.Millisecond)
		assert.Less(t, gap, 300*time.Millisecond)
	}
}

func TestStopsOnCancellation(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	waitFor(t, func() bool { return f.broker.subscribes() == 1 })
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestAlertCreatedNotificationPublished(t *testing.T) {
	f := newFixture(t)
	m := f.addMeasurement(floatPtr(130), floatPtr(98))

	cancel := f.run(t)
	defer cancel()

	f.broker.send(notification(m.ID))
	waitFor(t, func() bool {
		f.broker.mu.Lock()
		defer f.broker.mu.Unlock()
		return len(f.broker.published) == 1 && f.broker.published[0] == alert.ChannelAlertCreated
	})

	// Default thresholds were applied since the fixture sets none.
	assert.Equal(t, triage.DefaultFCMax, f.worker.config.Thresholds.FCMax)
}
