package repository

import (
	"context"
	"fmt"
	"sync"

	"WardWatchAPI/internal/models"
)

// MemoryAlertRepository keeps alerts in process. It is used when no database
// is configured and in tests. Returned alerts are copies.
type MemoryAlertRepository struct {
	mu     sync.RWMutex
	alerts []*models.Alert // creation order
	byID   map[string]*models.Alert
	open   map[models.AlertKey]*models.Alert
}

func NewMemoryAlertRepository() *MemoryAlertRepository {
	return &MemoryAlertRepository{
		byID: make(map[string]*models.Alert),
		open: make(map[models.AlertKey]*models.Alert),
	}
}

func (r *MemoryAlertRepository) Create(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists", alert.ID)
	}
	key := alert.Key()
	if !alert.Acknowledged {
		if _, exists := r.open[key]; exists {
			return fmt.Errorf("alert %s: %w", key, ErrConflict)
		}
	}

	stored := *alert
	r.alerts = append(r.alerts, &stored)
	r.byID[stored.ID] = &stored
	if !stored.Acknowledged {
		r.open[key] = &stored
	}
	return nil
}

func (r *MemoryAlertRepository) GetByID(_ context.Context, orgID, id string) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok || a.OrgID != orgID {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAlertRepository) GetOpen(_ context.Context, key models.AlertKey) (*models.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.open[key]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *MemoryAlertRepository) Refresh(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[alert.ID]
	if !ok || a.OrgID != alert.OrgID || a.Acknowledged {
		return fmt.Errorf("open alert %s: %w", alert.ID, models.ErrNotFound)
	}

	a.Value = alert.Value
	a.Threshold = alert.Threshold
	a.Direction = alert.Direction
	a.Severity = alert.Severity
	a.Message = alert.Message
	a.RecordedBy = alert.RecordedBy
	a.ReadingAt = alert.ReadingAt
	a.Occurrences = alert.Occurrences
	a.UpdatedAt = alert.UpdatedAt
	return nil
}

func (r *MemoryAlertRepository) Acknowledge(_ context.Context, alert *models.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[alert.ID]
	if !ok || a.OrgID != alert.OrgID || a.Acknowledged {
		return fmt.Errorf("open alert %s: %w", alert.ID, models.ErrNotFound)
	}

	a.Acknowledged = true
	a.AcknowledgedBy = alert.AcknowledgedBy
	a.AcknowledgedAt = alert.AcknowledgedAt
	a.UpdatedAt = alert.UpdatedAt
	delete(r.open, a.Key())
	return nil
}

func (r *MemoryAlertRepository) ListOpen(_ context.Context, orgID string) ([]models.Alert, error) {
	return r.collect(func(a *models.Alert) bool {
		return a.OrgID == orgID && !a.Acknowledged
	}, 0, -1), nil
}

func (r *MemoryAlertRepository) ListOpenByPatient(_ context.Context, orgID, patientID string) ([]models.Alert, error) {
	return r.collect(func(a *models.Alert) bool {
		return a.OrgID == orgID && a.PatientID == patientID && !a.Acknowledged
	}, 0, -1), nil
}

func (r *MemoryAlertRepository) ListHistory(_ context.Context, orgID string, limit, offset int) ([]models.Alert, error) {
	return r.collect(func(a *models.Alert) bool {
		return a.OrgID == orgID
	}, offset, limit), nil
}

// collect walks alerts newest first. A negative limit means no limit.
func (r *MemoryAlertRepository) collect(match func(*models.Alert) bool, offset, limit int) []models.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Alert, 0)
	skipped := 0
	for i := len(r.alerts) - 1; i >= 0; i-- {
		if limit >= 0 && len(out) >= limit {
			break
		}
		a := r.alerts[i]
		if !match(a) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, *a)
	}
	return out
}

func (r *MemoryAlertRepository) GetStatistics(_ context.Context, orgID string) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int)
	for key, a := range r.open {
		if key.OrgID == orgID {
			stats[string(a.Severity)]++
		}
	}
	return stats, nil
}
