package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/repository"
)

// IAlertService defines the business logic for the alert lifecycle.
type IAlertService interface {
	Record(ctx context.Context, reading models.Reading, c models.BreachCandidate) (models.RecordResult, error)
	Acknowledge(ctx context.Context, orgID, alertID, clinicianID string) (models.AcknowledgeResult, error)
	GetAlert(ctx context.Context, orgID, alertID string) (*models.Alert, error)
	GetActiveAlerts(ctx context.Context, orgID string) ([]models.Alert, error)
	GetPatientAlerts(ctx context.Context, orgID, patientID string) ([]models.Alert, error)
	GetAlertHistory(ctx context.Context, orgID string, limit, offset int) (models.AlertPage, error)
	GetStatistics(ctx context.Context, orgID string) (map[string]int, error)
}

// AlertService is the only writer of alert records. Every write for an
// (org, patient, channel) key runs under that key's lock, which keeps at
// most one open alert per key and orders acknowledge against escalation.
type AlertService struct {
	repo    repository.IAlertRepository
	locks   *keyedMutex
	metrics *metrics.Metrics
	log     *logger.Logger
	now     func() time.Time
}

func NewAlertService(repo repository.IAlertRepository, m *metrics.Metrics, log *logger.Logger) *AlertService {
	return &AlertService{
		repo:    repo,
		locks:   newKeyedMutex(),
		metrics: m,
		log:     log.Component("alerts"),
		now:     time.Now,
	}
}

// recordAttempts bounds how often Record re-reads the open alert after
// another writer sharing the database changed it between read and write.
const recordAttempts = 3

// Record folds a breach into the store. It creates an alert when the key has
// no open one, otherwise refreshes the open alert in place and raises its
// severity if the breach is more urgent. Severity never drops.
func (s *AlertService) Record(ctx context.Context, reading models.Reading, c models.BreachCandidate) (models.RecordResult, error) {
	key := models.AlertKey{OrgID: reading.OrgID, PatientID: reading.PatientID, Channel: c.Channel}

	unlock := s.locks.Lock(key.String())
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= recordAttempts; attempt++ {
		open, err := s.repo.GetOpen(ctx, key)
		if err != nil {
			return models.RecordResult{}, fmt.Errorf("failed to load open alert %s: %w", key, err)
		}

		if open == nil {
			alert, err := s.create(ctx, reading, c)
			if err == nil {
				return models.RecordResult{Alert: *alert, Created: true}, nil
			}
			if !errors.Is(err, repository.ErrConflict) {
				return models.RecordResult{}, err
			}
			// Another writer opened it first; fold into theirs.
			lastErr = err
			continue
		}

		res, err := s.refresh(ctx, open, reading, c)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return models.RecordResult{}, err
		}
		// Acknowledged elsewhere after the read; the breach opens a new alert.
		s.log.Debug("Alert %s closed before refresh, retrying %s", open.ID, key)
		lastErr = err
	}

	return models.RecordResult{}, fmt.Errorf("failed to record breach for %s after %d attempts: %w", key, recordAttempts, lastErr)
}

func (s *AlertService) create(ctx context.Context, reading models.Reading, c models.BreachCandidate) (*models.Alert, error) {
	now := s.now().Unix()
	alert := &models.Alert{
		ID:          uuid.NewString(),
		OrgID:       reading.OrgID,
		PatientID:   reading.PatientID,
		Channel:     c.Channel,
		Value:       c.Value,
		Threshold:   c.Threshold,
		Direction:   c.Direction,
		Severity:    c.Severity,
		Message:     c.Message(),
		RecordedBy:  reading.RecordedBy,
		ReadingAt:   reading.RecordedAt,
		Occurrences: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, err
	}

	s.metrics.Transition(metrics.TransitionCreated)
	s.log.Warn("Alert triggered: org=%s patient=%s %s [%s]", alert.OrgID, alert.PatientID, alert.Message, alert.Severity)
	return alert, nil
}

func (s *AlertService) refresh(ctx context.Context, open *models.Alert, reading models.Reading, c models.BreachCandidate) (models.RecordResult, error) {
	prev := open.Severity

	// Out-of-order readings still count and may escalate, but never roll the
	// displayed value back to an older measurement.
	if reading.RecordedAt >= open.ReadingAt {
		open.Value = c.Value
		open.Threshold = c.Threshold
		open.Direction = c.Direction
		open.Message = c.Message()
		open.RecordedBy = reading.RecordedBy
		open.ReadingAt = reading.RecordedAt
	}
	open.Severity = models.MaxSeverity(prev, c.Severity)
	open.Occurrences++
	open.UpdatedAt = s.now().Unix()

	if err := s.repo.Refresh(ctx, open); err != nil {
		return models.RecordResult{}, fmt.Errorf("failed to refresh alert %s: %w", open.ID, err)
	}

	escalated := open.Severity.Exceeds(prev)
	if escalated {
		s.metrics.Transition(metrics.TransitionEscalated)
		s.log.Warn("Alert escalated: org=%s patient=%s %s [%s -> %s]", open.OrgID, open.PatientID, open.Message, prev, open.Severity)
	} else {
		s.metrics.Transition(metrics.TransitionRefreshed)
		s.log.Debug("Alert %s refreshed (occurrences=%d)", open.ID, open.Occurrences)
	}

	return models.RecordResult{Alert: *open, Escalated: escalated}, nil
}

// Acknowledge closes an open alert. Acknowledging a closed alert returns it
// unchanged with AlreadyAcknowledged set.
func (s *AlertService) Acknowledge(ctx context.Context, orgID, alertID, clinicianID string) (models.AcknowledgeResult, error) {
	if clinicianID == "" {
		return models.AcknowledgeResult{}, models.NewValidationError("acknowledged_by", "is required")
	}

	// The key of an alert never changes, so it is safe to read before locking.
	alert, err := s.GetAlert(ctx, orgID, alertID)
	if err != nil {
		return models.AcknowledgeResult{}, err
	}

	unlock := s.locks.Lock(alert.Key().String())
	defer unlock()

	alert, err = s.GetAlert(ctx, orgID, alertID)
	if err != nil {
		return models.AcknowledgeResult{}, err
	}
	if alert.Acknowledged {
		return models.AcknowledgeResult{Alert: *alert, AlreadyAcknowledged: true}, nil
	}

	now := s.now().Unix()
	alert.Acknowledged = true
	alert.AcknowledgedBy = clinicianID
	alert.AcknowledgedAt = now
	alert.UpdatedAt = now

	if err := s.repo.Acknowledge(ctx, alert); err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return models.AcknowledgeResult{}, fmt.Errorf("failed to acknowledge alert %s: %w", alertID, err)
		}
		// Closed by another writer sharing the database.
		closed, gerr := s.GetAlert(ctx, orgID, alertID)
		if gerr != nil {
			return models.AcknowledgeResult{}, gerr
		}
		return models.AcknowledgeResult{Alert: *closed, AlreadyAcknowledged: true}, nil
	}

	s.metrics.Transition(metrics.TransitionAcknowledged)
	s.log.Info("Alert %s acknowledged by %s", alertID, clinicianID)
	return models.AcknowledgeResult{Alert: *alert}, nil
}

func (s *AlertService) GetAlert(ctx context.Context, orgID, alertID string) (*models.Alert, error) {
	alert, err := s.repo.GetByID(ctx, orgID, alertID)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, fmt.Errorf("alert %s: %w", alertID, models.ErrNotFound)
	}
	return alert, nil
}

// GetActiveAlerts returns unacknowledged alerts, newest first.
func (s *AlertService) GetActiveAlerts(ctx context.Context, orgID string) ([]models.Alert, error) {
	return s.repo.ListOpen(ctx, orgID)
}

func (s *AlertService) GetPatientAlerts(ctx context.Context, orgID, patientID string) ([]models.Alert, error) {
	return s.repo.ListOpenByPatient(ctx, orgID, patientID)
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// GetAlertHistory returns open and acknowledged alerts, newest first.
func (s *AlertService) GetAlertHistory(ctx context.Context, orgID string, limit, offset int) (models.AlertPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	alerts, err := s.repo.ListHistory(ctx, orgID, limit, offset)
	if err != nil {
		return models.AlertPage{}, err
	}
	return models.AlertPage{Alerts: alerts, Limit: limit, Offset: offset}, nil
}

func (s *AlertService) GetStatistics(ctx context.Context, orgID string) (map[string]int, error) {
	return s.repo.GetStatistics(ctx, orgID)
}
