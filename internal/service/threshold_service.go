package service

import (
	"context"
	"fmt"
	"time"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/repository"
)

// IThresholdService owns organization limit sets and patient overrides.
type IThresholdService interface {
	InitOrg(ctx context.Context, orgID string) (*models.OrgThresholds, bool, error)
	GetOrg(ctx context.Context, orgID string) (*models.OrgThresholds, error)
	UpdateOrg(ctx context.Context, orgID string, patch models.ThresholdOverride) (*models.OrgThresholds, error)
	GetPatient(ctx context.Context, orgID, patientID string) (*models.PatientThresholds, error)
	UpdatePatient(ctx context.Context, orgID, patientID string, req models.UpdateThresholdsRequest) (*models.PatientThresholds, error)
	Resolve(ctx context.Context, orgID, patientID string) (*models.EffectiveThresholds, error)
}

type ThresholdService struct {
	repo  repository.IThresholdRepository
	locks *keyedMutex
	log   *logger.Logger
	now   func() time.Time
}

func NewThresholdService(repo repository.IThresholdRepository, log *logger.Logger) *ThresholdService {
	return &ThresholdService{
		repo:  repo,
		locks: newKeyedMutex(),
		log:   log.Component("thresholds"),
		now:   time.Now,
	}
}

func orgLockKey(orgID string) string {
	return "org:" + orgID
}

// InitOrg creates the default limit set when the organization has none.
// The bool result reports whether a record was created.
func (s *ThresholdService) InitOrg(ctx context.Context, orgID string) (*models.OrgThresholds, bool, error) {
	unlock := s.locks.Lock(orgLockKey(orgID))
	defer unlock()

	rec := &models.OrgThresholds{
		OrgID:      orgID,
		Thresholds: models.DefaultThresholds,
		UpdatedAt:  s.now().UTC(),
	}
	created, err := s.repo.CreateOrgIfAbsent(ctx, rec)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info("Initialized default thresholds for org %s", orgID)
		return rec, true, nil
	}

	existing, err := s.GetOrg(ctx, orgID)
	return existing, false, err
}

func (s *ThresholdService) GetOrg(ctx context.Context, orgID string) (*models.OrgThresholds, error) {
	rec, err := s.repo.GetOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("thresholds for org %s: %w", orgID, models.ErrNotFound)
	}
	return rec, nil
}

// UpdateOrg merges patch over the stored set, or over the defaults when the
// organization has no record yet. The update is rejected when it would leave
// any existing patient override with an inverted effective pair.
func (s *ThresholdService) UpdateOrg(ctx context.Context, orgID string, patch models.ThresholdOverride) (*models.OrgThresholds, error) {
	if err := models.Validate(patch); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(orgLockKey(orgID))
	defer unlock()

	base := models.DefaultThresholds
	existing, err := s.repo.GetOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		base = existing.Thresholds
	}

	merged := patch.Apply(base)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateOverrides(ctx, orgID, merged); err != nil {
		return nil, err
	}

	rec := &models.OrgThresholds{OrgID: orgID, Thresholds: merged, UpdatedAt: s.now().UTC()}
	if err := s.repo.SaveOrg(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("Updated org thresholds for %s: %v", orgID, patch.SetFields())
	return rec, nil
}

// validateOverrides checks every stored patient override against a candidate
// organization set. Field names are qualified with the patient id.
func (s *ThresholdService) validateOverrides(ctx context.Context, orgID string, org models.Thresholds) error {
	overrides, err := s.repo.ListPatients(ctx, orgID)
	if err != nil {
		return err
	}

	var errs models.ValidationErrors
	for _, o := range overrides {
		err := o.Apply(org).Validate()
		if err == nil {
			continue
		}
		ve, ok := models.AsValidation(err)
		if !ok {
			return err
		}
		for _, fe := range ve {
			q := *fe
			q.Field = fmt.Sprintf("patients[%s].%s", o.PatientID, fe.Field)
			errs = append(errs, &q)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// GetPatient returns the stored override; a patient without one gets an
// empty override rather than ErrNotFound.
func (s *ThresholdService) GetPatient(ctx context.Context, orgID, patientID string) (*models.PatientThresholds, error) {
	rec, err := s.repo.GetPatient(ctx, orgID, patientID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return &models.PatientThresholds{OrgID: orgID, PatientID: patientID}, nil
	}
	return rec, nil
}

// UpdatePatient merges req into the patient's override, drops the fields it
// names in Clear and validates the resulting effective set.
func (s *ThresholdService) UpdatePatient(ctx context.Context, orgID, patientID string, req models.UpdateThresholdsRequest) (*models.PatientThresholds, error) {
	if err := models.Validate(req.ThresholdOverride); err != nil {
		return nil, err
	}

	// Same lock as UpdateOrg, so each write validates against the other's result.
	unlock := s.locks.Lock(orgLockKey(orgID))
	defer unlock()

	org, err := s.GetOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	current, err := s.GetPatient(ctx, orgID, patientID)
	if err != nil {
		return nil, err
	}

	next, err := current.ThresholdOverride.Without(req.Clear)
	if err != nil {
		return nil, err
	}
	next = next.Merge(req.ThresholdOverride)

	if err := next.Apply(org.Thresholds).Validate(); err != nil {
		return nil, err
	}

	rec := &models.PatientThresholds{
		OrgID:             orgID,
		PatientID:         patientID,
		ThresholdOverride: next,
		UpdatedAt:         s.now().UTC(),
	}

	if next.IsEmpty() {
		if err := s.repo.DeletePatient(ctx, orgID, patientID); err != nil {
			return nil, err
		}
		s.log.Info("Cleared threshold override for patient %s/%s", orgID, patientID)
		return rec, nil
	}

	if err := s.repo.SavePatient(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("Updated threshold override for patient %s/%s: %v", orgID, patientID, next.SetFields())
	return rec, nil
}

// Resolve merges the organization set with the patient's override.
func (s *ThresholdService) Resolve(ctx context.Context, orgID, patientID string) (*models.EffectiveThresholds, error) {
	org, err := s.GetOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	override, err := s.repo.GetPatient(ctx, orgID, patientID)
	if err != nil {
		return nil, err
	}

	eff := &models.EffectiveThresholds{
		OrgID:      orgID,
		PatientID:  patientID,
		Thresholds: org.Thresholds,
		Overridden: []string{},
	}
	if override != nil {
		eff.Thresholds = override.Apply(org.Thresholds)
		eff.Overridden = override.SetFields()
	}
	return eff, nil
}
