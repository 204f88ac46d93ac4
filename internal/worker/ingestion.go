package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository"
	"github.com/santeia/triage-api/internal/service/alert"
	"github.com/santeia/triage-api/internal/service/referral"
	"github.com/santeia/triage-api/internal/service/triage"
	"github.com/santeia/triage-api/pkg/errors"
	"github.com/santeia/triage-api/pkg/logger"
	"github.com/santeia/triage-api/pkg/messaging"
	"github.com/santeia/triage-api/pkg/metrics"
)

// ChannelMeasurementArrived carries {measurement_id} payloads published
// when a device measurement is written.
const ChannelMeasurementArrived = "measurement-arrived"

// Reconnect backoff: 1s doubling up to 60s, reset after a successful
// subscription.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
)

type connState string

const (
	stateDisconnected connState = "disconnected"
	stateConnecting   connState = "connecting"
	stateSubscribed   connState = "subscribed"
)

// IngestionConfig holds the worker's tunables.
type IngestionConfig struct {
	Channel        string
	Thresholds     triage.Thresholds
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (c *IngestionConfig) applyDefaults() {
	if c.Channel == "" {
		c.Channel = ChannelMeasurementArrived
	}
	if c.Thresholds.FCMax == 0 {
		c.Thresholds = triage.DefaultThresholds()
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = initialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = maxBackoff
	}
}

// Ingestion is the long-lived worker driving the triage pipeline:
// it subscribes to measurement notifications, classifies each resolved
// measurement and fans findings out into alerts and referrals.
type Ingestion struct {
	broker       messaging.Broker
	measurements repository.MeasurementRepository
	alerts       *alert.Service
	referrals    *referral.Service
	config       IngestionConfig
	logger       *logger.Logger
	metrics      *metrics.Metrics
	state        connState
}

func NewIngestion(
	broker messaging.Broker,
	measurements repository.MeasurementRepository,
	alerts *alert.Service,
	referrals *referral.Service,
	config IngestionConfig,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Ingestion {
	config.applyDefaults()
	return &Ingestion{
		broker:       broker,
		measurements: measurements,
		alerts:       alerts,
		referrals:    referrals,
		config:       config,
		logger:       logger,
		metrics:      m,
		state:        stateDisconnected,
	}
}

// Run drives the connection state machine until ctx is cancelled. Any
// read error drops the subscription and reconnects with exponential
// backoff; an in-flight measurement is allowed to finish before shutdown
// completes.
func (w *Ingestion) Run(ctx context.Context) error {
	w.logger.Info("starting ingestion worker", "channel", w.config.Channel)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.config.InitialBackoff
	bo.MaxInterval = w.config.MaxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	// The constructor primes currentInterval before the fields above are
	// set; reset so the first wait uses the configured initial interval.
	bo.Reset()

	for {
		if err := ctx.Err(); err != nil {
			w.logger.Info("ingestion worker stopped")
			return err
		}

		w.state = stateConnecting
		sub, err := w.broker.Subscribe(ctx, w.config.Channel)
		if err != nil {
			w.state = stateDisconnected
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			if w.metrics != nil {
				w.metrics.BusReconnects.Inc()
			}
			w.logger.Warn(err, "bus subscription failed, retrying",
				"channel", w.config.Channel, "backoff", wait.String())
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		w.state = stateSubscribed
		bo.Reset()
		w.logger.Info("subscribed to measurement notifications", "channel", w.config.Channel)

		err = w.receiveLoop(ctx, sub)
		sub.Close()
		w.state = stateDisconnected
		if ctx.Err() != nil {
			w.logger.Info("ingestion worker stopped")
			return ctx.Err()
		}
		w.logger.Warn(err, "bus read failed, reconnecting", "channel", w.config.Channel)
	}
}

// receiveLoop consumes notifications until a read error or cancellation.
// Failures of a single notification never terminate the loop.
func (w *Ingestion) receiveLoop(ctx context.Context, sub messaging.Subscription) error {
	for {
		payload, err := sub.Receive(ctx)
		if err != nil {
			return err
		}

		if err := w.handleNotification(ctx, payload); err != nil {
			if w.metrics != nil {
				w.metrics.MeasurementsFailed.Inc()
			}
			w.logger.Error(err, "failed to process measurement notification")
		}
	}
}

func (w *Ingestion) handleNotification(ctx context.Context, payload []byte) error {
	var timer *prometheus.Timer
	if w.metrics != nil {
		timer = prometheus.NewTimer(w.metrics.ProcessingLatency)
		defer timer.ObserveDuration()
	}

	var notif model.MeasurementNotification
	if err := json.Unmarshal(payload, &notif); err != nil {
		// Redelivery of the same malformed payload would not resolve;
		// drop it and keep going.
		if w.metrics != nil {
			w.metrics.NotificationsDropped.Inc()
		}
		w.logger.Warn(err, "dropping malformed notification", "payload", string(payload))
		return nil
	}

	measurementID, err := uuid.Parse(notif.MeasurementID)
	if err != nil {
		if w.metrics != nil {
			w.metrics.NotificationsDropped.Inc()
		}
		w.logger.Warn(err, "dropping notification with invalid measurement id",
			"measurement_id", notif.MeasurementID)
		return nil
	}

	m, err := w.measurements.Get(ctx, measurementID)
	if errors.IsNotFound(err) {
		// Already deleted; nothing to triage.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve measurement: %w", err)
	}

	return w.process(ctx, m)
}

// process runs one measurement through classifier, alert writer, router
// and referral orchestrator.
func (w *Ingestion) process(ctx context.Context, m *model.Measurement) error {
	findings := triage.Classify(m, w.config.Thresholds)
	if len(findings) == 0 {
		if w.metrics != nil {
			w.metrics.MeasurementsProcessed.Inc()
		}
		return nil
	}

	var firstErr error
	for _, f := range findings {
		a, err := w.alerts.CreateFromFinding(ctx, m, f)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			w.logger.Error(err, "failed to write alert",
				"patient_id", m.PatientID.String(), "finding", string(f.Kind))
			continue
		}
		if w.metrics != nil {
			w.metrics.AlertsCreated.WithLabelValues(string(a.Severity)).Inc()
		}

		deptCode := triage.RouteDepartment(f)
		res, err := w.referrals.Open(ctx, m.PatientID, deptCode, model.ReferralSourceIA, a.Message, nil)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			w.logger.Error(err, "failed to open referral",
				"patient_id", m.PatientID.String(), "department", deptCode)
			continue
		}
		if w.metrics != nil {
			if res.Created {
				w.metrics.ReferralsOpened.WithLabelValues(deptCode).Inc()
			} else {
				w.metrics.ReferralsDeduplicated.Inc()
			}
		}
	}

	if w.metrics != nil {
		w.metrics.MeasurementsProcessed.Inc()
	}
	return firstErr
}
