package repository

import (
	"context"
	"sort"
	"sync"

	"WardWatchAPI/internal/models"
)

type patientKey struct {
	orgID     string
	patientID string
}

// MemoryThresholdRepository keeps threshold records in process.
type MemoryThresholdRepository struct {
	mu       sync.RWMutex
	orgs     map[string]models.OrgThresholds
	patients map[patientKey]models.PatientThresholds
}

func NewMemoryThresholdRepository() *MemoryThresholdRepository {
	return &MemoryThresholdRepository{
		orgs:     make(map[string]models.OrgThresholds),
		patients: make(map[patientKey]models.PatientThresholds),
	}
}

func (r *MemoryThresholdRepository) GetOrg(_ context.Context, orgID string) (*models.OrgThresholds, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.orgs[orgID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *MemoryThresholdRepository) SaveOrg(_ context.Context, t *models.OrgThresholds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orgs[t.OrgID] = *t
	return nil
}

func (r *MemoryThresholdRepository) CreateOrgIfAbsent(_ context.Context, t *models.OrgThresholds) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orgs[t.OrgID]; ok {
		return false, nil
	}
	r.orgs[t.OrgID] = *t
	return true, nil
}

func (r *MemoryThresholdRepository) GetPatient(_ context.Context, orgID, patientID string) (*models.PatientThresholds, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.patients[patientKey{orgID, patientID}]
	if !ok {
		return nil, nil
	}
	// Merge against an empty override deep-copies the pointer fields.
	t.ThresholdOverride = models.ThresholdOverride{}.Merge(t.ThresholdOverride)
	return &t, nil
}

func (r *MemoryThresholdRepository) SavePatient(_ context.Context, t *models.PatientThresholds) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *t
	stored.ThresholdOverride = models.ThresholdOverride{}.Merge(t.ThresholdOverride)
	r.patients[patientKey{t.OrgID, t.PatientID}] = stored
	return nil
}

func (r *MemoryThresholdRepository) DeletePatient(_ context.Context, orgID, patientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.patients, patientKey{orgID, patientID})
	return nil
}

func (r *MemoryThresholdRepository) ListPatients(_ context.Context, orgID string) ([]models.PatientThresholds, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.PatientThresholds
	for k, t := range r.patients {
		if k.orgID != orgID {
			continue
		}
		t.ThresholdOverride = models.ThresholdOverride{}.Merge(t.ThresholdOverride)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatientID < out[j].PatientID })
	return out, nil
}
