package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/evaluator"
	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
	"WardWatchAPI/internal/repository"
)

type published struct {
	orgID string
	event string
	alert models.Alert
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) PublishAlert(orgID, eventType string, alert models.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{orgID, eventType, alert})
}

func (p *recordingPublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type vitalsFixture struct {
	vitals     *VitalsService
	thresholds *ThresholdService
	alerts     *AlertService
	pub        *recordingPublisher
}

func newVitalsFixture(t *testing.T, autoInit bool) *vitalsFixture {
	t.Helper()
	log := logger.Nop()
	m := metrics.New(prometheus.NewRegistry())

	eval, err := evaluator.New(evaluator.DefaultPolicy())
	require.NoError(t, err)

	th := NewThresholdService(repository.NewMemoryThresholdRepository(), log)
	al := NewAlertService(repository.NewMemoryAlertRepository(), m, log)
	pub := &recordingPublisher{}
	v := NewVitalsService(th, eval, al, VitalsConfig{AutoInitOrgs: autoInit, BatchConcurrency: 4}, m, log, pub)

	return &vitalsFixture{vitals: v, thresholds: th, alerts: al, pub: pub}
}

func TestVitalsService_IngestPublishesOnlyCreateAndEscalate(t *testing.T) {
	f := newVitalsFixture(t, true)
	ctx := context.Background()

	res, err := f.vitals.Ingest(ctx, SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "p-1", HeartRate: ptr(130)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Breaches)
	require.Len(t, res.Alerts, 1)
	assert.NotZero(t, res.RecordedAt, "missing timestamp is stamped on ingestion")

	_, err = f.vitals.Ingest(ctx, SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "p-1", HeartRate: ptr(132)})
	require.NoError(t, err)

	// Desaturation makes the heart rate breach critical through the combination rule.
	_, err = f.vitals.Ingest(ctx, SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "p-1", HeartRate: ptr(135), SpO2: ptr(85)})
	require.NoError(t, err)

	events := f.pub.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, models.EventAlertCreated, events[0].event)
	assert.Equal(t, models.ChannelHeartRate, events[0].alert.Channel)
	assert.Equal(t, models.EventAlertEscalated, events[1].event)
	assert.Equal(t, models.SeverityCritical, events[1].alert.Severity)
	assert.Equal(t, models.EventAlertCreated, events[2].event)
	assert.Equal(t, models.ChannelSpO2, events[2].alert.Channel)
	for _, e := range events {
		assert.Equal(t, "org-1", e.orgID)
	}
}

func TestVitalsService_NoBreachNoAlert(t *testing.T) {
	f := newVitalsFixture(t, true)

	res, err := f.vitals.Ingest(context.Background(), SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "p-1", SpO2: ptr(95), HeartRate: ptr(80)})
	require.NoError(t, err)
	assert.Zero(t, res.Breaches)
	assert.Empty(t, f.pub.snapshot())
}

func TestVitalsService_UnknownOrgWithoutAutoInit(t *testing.T) {
	f := newVitalsFixture(t, false)

	_, err := f.vitals.Ingest(context.Background(), SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "p-1", HeartRate: ptr(130)})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVitalsService_PatientOverrideSuppressesBreach(t *testing.T) {
	f := newVitalsFixture(t, false)
	ctx := context.Background()
	_, _, err := f.thresholds.InitOrg(ctx, "org-1")
	require.NoError(t, err)
	_, err = f.thresholds.UpdatePatient(ctx, "org-1", "athlete", models.UpdateThresholdsRequest{
		ThresholdOverride: models.ThresholdOverride{HeartRateLow: ptr(40)},
	})
	require.NoError(t, err)

	res, err := f.vitals.Ingest(ctx, SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "athlete", HeartRate: ptr(48)})
	require.NoError(t, err)
	assert.Zero(t, res.Breaches)

	res, err = f.vitals.Ingest(ctx, SourceHTTP, models.Reading{OrgID: "org-1", PatientID: "other", HeartRate: ptr(48)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Breaches)
}

func TestVitalsService_BatchValidatesBeforeMutating(t *testing.T) {
	f := newVitalsFixture(t, true)
	ctx := context.Background()

	_, err := f.vitals.IngestBatch(ctx, SourceHTTP, []models.Reading{
		{OrgID: "org-1", PatientID: "p-1", HeartRate: ptr(130)},
		{OrgID: "org-1", PatientID: "p-2", Temperature: ptr(60)},
	})
	ve, ok := models.AsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "readings[1].temperature", ve[0].Field)

	active, err := f.alerts.GetActiveAlerts(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Empty(t, f.pub.snapshot())
}

func TestVitalsService_BatchKeepsOrder(t *testing.T) {
	f := newVitalsFixture(t, true)

	readings := make([]models.Reading, 20)
	for i := range readings {
		readings[i] = models.Reading{OrgID: "org-1", PatientID: fmt.Sprintf("p-%d", i), SpO2: ptr(85)}
	}

	results, err := f.vitals.IngestBatch(context.Background(), SourceHTTP, readings)
	require.NoError(t, err)
	require.Len(t, results, 20)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("p-%d", i), r.PatientID)
		require.Len(t, r.Alerts, 1)
		assert.True(t, r.Alerts[0].Created)
	}
	assert.Len(t, f.pub.snapshot(), 20)
}

func TestVitalsService_ProcessMessage(t *testing.T) {
	f := newVitalsFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.vitals.ProcessMessage(ctx, "org-9", []byte(`{"patient_id":"p-1","spo2":85,"recorded_by":"monitor-7"}`)))
	require.NoError(t, f.vitals.ProcessMessage(ctx, "org-9", []byte(` [{"patient_id":"p-2","heart_rate":130}]`)))

	active, err := f.alerts.GetActiveAlerts(ctx, "org-9")
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "p-2", active[0].PatientID)
	assert.Equal(t, "monitor-7", active[1].RecordedBy)

	assert.Error(t, f.vitals.ProcessMessage(ctx, "org-9", []byte(`not json`)))
	_, ok := models.AsValidation(f.vitals.ProcessMessage(ctx, "org-9", []byte(`{"patient_id":"p-3"}`)))
	assert.True(t, ok)
}
