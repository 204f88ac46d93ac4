package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/santeia/triage-api/internal/model"
	"github.com/santeia/triage-api/internal/repository"
	"github.com/santeia/triage-api/internal/service/triage"
	"github.com/santeia/triage-api/pkg/logger"
	"github.com/santeia/triage-api/pkg/messaging"
)

// ChannelAlertCreated is the outbound bus channel for live-notification
// consumers such as dashboards.
const ChannelAlertCreated = "alert-created"

var findingMessages = map[triage.FindingKind]string{
	triage.FindingTachycardia: "Tachycardie détectée",
	triage.FindingHypoxia:     "Hypoxie détectée",
}

type Service struct {
	repo      repository.AlertRepository
	publisher messaging.Publisher
	logger    *logger.Logger
}

func NewService(repo repository.AlertRepository, publisher messaging.Publisher, logger *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateFromFinding persists one alert for the finding and notifies
// downstream consumers. A failed publish is logged but never fails the
// write: the alert record is the source of truth, the notification is
// best-effort.
func (s *Service) CreateFromFinding(ctx context.Context, m *model.Measurement, f triage.Finding) (*model.Alert, error) {
	a := &model.Alert{
		ID:             uuid.New(),
		PatientID:      m.PatientID,
		Message:        messageFor(f.Kind),
		Severity:       f.Severity,
		Priority:       priorityFor(f.Severity),
		VisiblePatient: visibleToPatient(f),
		Status:         model.AlertStatusNouvelle,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}

	if err := s.publisher.Publish(ctx, ChannelAlertCreated, a); err != nil {
		s.logger.Warn(err, "failed to publish alert notification", "alert_id", a.ID.String())
	}

	return a, nil
}

// MarkSeen records the first viewer of an alert. The viewer is stamped
// once; later calls return a conflict.
func (s *Service) MarkSeen(ctx context.Context, alertID uuid.UUID, viewer model.Actor) error {
	return s.repo.MarkSeen(ctx, alertID, viewer.ID, time.Now())
}

// Archive moves an alert to the archived state.
func (s *Service) Archive(ctx context.Context, alertID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, alertID, model.AlertStatusArchivee)
}

// List returns alerts visible to the actor. Patients only see their own
// alerts that passed medical filtering; staff see everything.
func (s *Service) List(ctx context.Context, actor model.Actor, filters *model.AlertFilters) ([]*model.Alert, error) {
	if actor.Role == model.RolePatient {
		if filters == nil {
			filters = &model.AlertFilters{}
		}
		filters.PatientID = &actor.ID
	}

	alerts, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	if actor.CanViewHiddenAlerts() {
		return alerts, nil
	}

	visible := make([]*model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a.VisiblePatient {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

func messageFor(kind triage.FindingKind) string {
	if msg, ok := findingMessages[kind]; ok {
		return msg
	}
	return fmt.Sprintf("Anomalie détectée (%s)", kind)
}

func priorityFor(severity model.AlertSeverity) model.AlertPriority {
	switch severity {
	case model.AlertSeverityCritical:
		return model.AlertPriorityCritique
	case model.AlertSeverityWarning:
		return model.AlertPriorityElevee
	default:
		return model.AlertPriorityNormale
	}
}

// Critical hypoxia alerts stay hidden from the patient until clinical
// review; everything else defaults visible.
func visibleToPatient(f triage.Finding) bool {
	if f.Kind == triage.FindingHypoxia && f.Severity == model.AlertSeverityCritical {
		return false
	}
	return true
}
