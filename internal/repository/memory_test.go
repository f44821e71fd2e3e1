package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/models"
)

func TestMemoryAlertRepository_OpenUniqueness(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()

	a := sampleAlert()
	require.NoError(t, repo.Create(ctx, a))

	dup := sampleAlert()
	dup.ID = "a-2"
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrConflict)

	a.AcknowledgedBy = "dr-1"
	a.AcknowledgedAt = 1700000100
	require.NoError(t, repo.Acknowledge(ctx, a))

	require.NoError(t, repo.Create(ctx, dup), "a new alert may open once the previous one is acknowledged")

	open, err := repo.GetOpen(ctx, a.Key())
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "a-2", open.ID)
}

func TestMemoryAlertRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleAlert()))

	got, err := repo.GetByID(ctx, "org-1", "a-1")
	require.NoError(t, err)
	got.Value = 999

	again, err := repo.GetByID(ctx, "org-1", "a-1")
	require.NoError(t, err)
	assert.Equal(t, 130.0, again.Value)
}

func TestMemoryAlertRepository_OrgScoped(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, sampleAlert()))

	got, err := repo.GetByID(ctx, "org-2", "a-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	err = repo.Acknowledge(ctx, &models.Alert{ID: "a-1", OrgID: "org-2"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryAlertRepository_HistoryNewestFirst(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		a := sampleAlert()
		a.ID = fmt.Sprintf("a-%d", i)
		a.PatientID = fmt.Sprintf("p-%d", i)
		a.CreatedAt = int64(1700000000 + i)
		require.NoError(t, repo.Create(ctx, a))
	}

	page, err := repo.ListHistory(ctx, "org-1", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "a-3", page[0].ID)
	assert.Equal(t, "a-2", page[1].ID)

	open, err := repo.ListOpenByPatient(ctx, "org-1", "p-4")
	require.NoError(t, err)
	require.Len(t, open, 1)

	stats, err := repo.GetStatistics(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stats["warning"])
}

func TestMemoryThresholdRepository(t *testing.T) {
	repo := NewMemoryThresholdRepository()
	ctx := context.Background()

	created, err := repo.CreateOrgIfAbsent(ctx, &models.OrgThresholds{OrgID: "org-1", Thresholds: models.DefaultThresholds})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.CreateOrgIfAbsent(ctx, &models.OrgThresholds{OrgID: "org-1"})
	require.NoError(t, err)
	assert.False(t, created)

	org, err := repo.GetOrg(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultThresholds, org.Thresholds)

	v := 120.0
	rec := &models.PatientThresholds{OrgID: "org-1", PatientID: "p-1", ThresholdOverride: models.ThresholdOverride{HeartRateHigh: &v}}
	require.NoError(t, repo.SavePatient(ctx, rec))
	v = 1

	got, err := repo.GetPatient(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, *got.HeartRateHigh)

	require.NoError(t, repo.SavePatient(ctx, &models.PatientThresholds{OrgID: "org-1", PatientID: "p-0", ThresholdOverride: models.ThresholdOverride{SpO2Low: &v}}))
	require.NoError(t, repo.SavePatient(ctx, &models.PatientThresholds{OrgID: "org-2", PatientID: "p-9", ThresholdOverride: models.ThresholdOverride{SpO2Low: &v}}))
	list, err := repo.ListPatients(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p-0", list[0].PatientID)
	assert.Equal(t, "p-1", list[1].PatientID)

	require.NoError(t, repo.DeletePatient(ctx, "org-1", "p-1"))
	got, err = repo.GetPatient(ctx, "org-1", "p-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
