package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/repository"
)

func ptr(v float64) *float64 { return &v }

func newThresholdService(t *testing.T) *ThresholdService {
	t.Helper()
	return NewThresholdService(repository.NewMemoryThresholdRepository(), logger.Nop())
}

func TestThresholdService_InitOrgIsIdempotent(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()

	rec, created, err := s.InitOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.DefaultThresholds, rec.Thresholds)

	_, err = s.UpdateOrg(ctx, "org-1", models.ThresholdOverride{HeartRateHigh: ptr(110)})
	require.NoError(t, err)

	rec, created, err = s.InitOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 110.0, rec.HeartRateHigh, "init must not reset an existing set")
}

func TestThresholdService_ResolveWithoutOrg(t *testing.T) {
	s := newThresholdService(t)

	_, err := s.Resolve(context.Background(), "missing", "p-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestThresholdService_ResolveRoundTrip(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()

	_, err := s.UpdateOrg(ctx, "org-1", models.ThresholdOverride{SpO2Low: ptr(90)})
	require.NoError(t, err)

	eff, err := s.Resolve(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 90.0, eff.SpO2Low)
	assert.Equal(t, models.DefaultThresholds.HeartRateHigh, eff.HeartRateHigh)
	assert.Empty(t, eff.Overridden)
}

func TestThresholdService_OverridePrecedence(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()
	_, _, err := s.InitOrg(ctx, "org-1")
	require.NoError(t, err)

	_, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{
		ThresholdOverride: models.ThresholdOverride{HeartRateHigh: ptr(130)},
	})
	require.NoError(t, err)

	eff, err := s.Resolve(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 130.0, eff.HeartRateHigh)
	assert.Equal(t, []string{"heart_rate_high"}, eff.Overridden)

	other, err := s.Resolve(ctx, "org-1", "p-2")
	require.NoError(t, err)
	assert.Equal(t, 100.0, other.HeartRateHigh)

	// A later org change still applies to fields the patient did not override.
	_, err = s.UpdateOrg(ctx, "org-1", models.ThresholdOverride{HeartRateLow: ptr(55), HeartRateHigh: ptr(105)})
	require.NoError(t, err)

	eff, err = s.Resolve(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 130.0, eff.HeartRateHigh)
	assert.Equal(t, 55.0, eff.HeartRateLow)
}

func TestThresholdService_OverrideValidatedAgainstEffectiveSet(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()
	_, _, err := s.InitOrg(ctx, "org-1")
	require.NoError(t, err)

	// 50 is below the org heart_rate_low of 60.
	_, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{
		ThresholdOverride: models.ThresholdOverride{HeartRateHigh: ptr(50)},
	})
	ve, ok := models.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "heart_rate_high", ve[0].Field)

	got, err := s.GetPatient(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty(), "rejected update must not be stored")
}

func TestThresholdService_ClearFields(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()
	_, _, err := s.InitOrg(ctx, "org-1")
	require.NoError(t, err)

	_, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{
		ThresholdOverride: models.ThresholdOverride{HeartRateHigh: ptr(130), SpO2Low: ptr(88)},
	})
	require.NoError(t, err)

	rec, err := s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{Clear: []string{"spo2_low"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"heart_rate_high"}, rec.SetFields())

	rec, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{Clear: []string{"heart_rate_high"}})
	require.NoError(t, err)
	assert.True(t, rec.IsEmpty())

	eff, err := s.Resolve(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultThresholds, eff.Thresholds)
}

func TestThresholdService_UpdateOrgRejectsInvertedBounds(t *testing.T) {
	s := newThresholdService(t)

	_, err := s.UpdateOrg(context.Background(), "org-1", models.ThresholdOverride{TemperatureLow: ptr(39)})
	_, ok := models.AsValidation(err)
	assert.True(t, ok)

	_, err = s.GetOrg(context.Background(), "org-1")
	assert.ErrorIs(t, err, models.ErrNotFound, "failed update must not create the org record")
}

func TestThresholdService_UpdateOrgRejectsInvertingPatientOverride(t *testing.T) {
	s := newThresholdService(t)
	ctx := context.Background()
	_, _, err := s.InitOrg(ctx, "org-1")
	require.NoError(t, err)

	_, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{
		ThresholdOverride: models.ThresholdOverride{HeartRateLow: ptr(90)},
	})
	require.NoError(t, err)

	// 85 is valid for the org (low 60) but below p-1's override low of 90.
	_, err = s.UpdateOrg(ctx, "org-1", models.ThresholdOverride{HeartRateHigh: ptr(85)})
	ve, ok := models.AsValidation(err)
	require.True(t, ok, "got %v", err)
	require.Len(t, ve, 1)
	assert.Equal(t, "patients[p-1].heart_rate_high", ve[0].Field)

	org, err := s.GetOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultThresholds.HeartRateHigh, org.HeartRateHigh, "rejected update must not be stored")

	eff, err := s.Resolve(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.NoError(t, eff.Thresholds.Validate())

	// Other organizations' overrides do not constrain this one.
	_, err = s.UpdateOrg(ctx, "org-2", models.ThresholdOverride{HeartRateHigh: ptr(85)})
	assert.NoError(t, err)

	// Once the override is cleared the same update goes through.
	_, err = s.UpdatePatient(ctx, "org-1", "p-1", models.UpdateThresholdsRequest{Clear: []string{"heart_rate_low"}})
	require.NoError(t, err)
	org, err = s.UpdateOrg(ctx, "org-1", models.ThresholdOverride{HeartRateHigh: ptr(85)})
	require.NoError(t, err)
	assert.Equal(t, 85.0, org.HeartRateHigh)
}
