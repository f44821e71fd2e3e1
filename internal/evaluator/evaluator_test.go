package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WardWatchAPI/internal/models"
)

func ptr(v float64) *float64 { return &v }

func newEvaluator(t *testing.T, p Policy) *Evaluator {
	t.Helper()
	e, err := New(p)
	require.NoError(t, err)
	return e
}

func TestEvaluate_HeartRateHigh(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())

	got := e.Evaluate(models.Reading{HeartRate: ptr(130)}, models.DefaultThresholds)

	require.Len(t, got, 1)
	assert.Equal(t, models.BreachCandidate{
		Channel:   models.ChannelHeartRate,
		Value:     130,
		Threshold: 100,
		Direction: models.DirectionHigh,
		Severity:  models.SeverityWarning,
	}, got[0])
}

func TestEvaluate_SpO2(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())

	got := e.Evaluate(models.Reading{SpO2: ptr(85)}, models.DefaultThresholds)
	require.Len(t, got, 1)
	assert.Equal(t, models.SeverityCritical, got[0].Severity)
	assert.Equal(t, models.DirectionLow, got[0].Direction)
	assert.Equal(t, 92.0, got[0].Threshold)

	assert.Empty(t, e.Evaluate(models.Reading{SpO2: ptr(95)}, models.DefaultThresholds))
}

func TestEvaluate_BoundsAreExclusive(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())

	r := models.Reading{HeartRate: ptr(100), SystolicBP: ptr(90), SpO2: ptr(92)}
	assert.Empty(t, e.Evaluate(r, models.DefaultThresholds))
}

func TestEvaluate_AbsentChannelsSkipped(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())

	assert.Empty(t, e.Evaluate(models.Reading{}, models.DefaultThresholds))
}

func TestEvaluate_MultipleBreachesInChannelOrder(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())

	r := models.Reading{
		RespiratoryRate: ptr(30),
		SpO2:            ptr(85),
		HeartRate:       ptr(130),
		Temperature:     ptr(35.2),
	}
	got := e.Evaluate(r, models.DefaultThresholds)

	require.Len(t, got, 4)
	assert.Equal(t, models.ChannelHeartRate, got[0].Channel)
	assert.Equal(t, models.ChannelTemperature, got[1].Channel)
	assert.Equal(t, models.ChannelSpO2, got[2].Channel)
	assert.Equal(t, models.ChannelRespiratoryRate, got[3].Channel)

	// High breaches alongside desaturation are critical, low breaches are not.
	assert.Equal(t, models.SeverityCritical, got[0].Severity)
	assert.Equal(t, models.SeverityWarning, got[1].Severity)
	assert.Equal(t, models.SeverityCritical, got[3].Severity)
}

func TestEvaluate_CombinationRuleDisabled(t *testing.T) {
	e := newEvaluator(t, Policy{Combination: false})

	got := e.Evaluate(models.Reading{HeartRate: ptr(130), SpO2: ptr(85)}, models.DefaultThresholds)

	require.Len(t, got, 2)
	assert.Equal(t, models.SeverityWarning, got[0].Severity)
	assert.Equal(t, models.SeverityCritical, got[1].Severity)
}

func TestEvaluate_CriticalMargin(t *testing.T) {
	e := newEvaluator(t, Policy{CriticalMargins: map[models.Channel]float64{
		models.ChannelHeartRate:   30,
		models.ChannelSystolicBP:  0,
		models.ChannelTemperature: 1.0,
	}})

	tests := []struct {
		name    string
		reading models.Reading
		want    models.Severity
	}{
		{"within margin high", models.Reading{HeartRate: ptr(130)}, models.SeverityWarning},
		{"past margin high", models.Reading{HeartRate: ptr(131)}, models.SeverityCritical},
		{"past margin low", models.Reading{HeartRate: ptr(29)}, models.SeverityCritical},
		{"zero margin disabled", models.Reading{SystolicBP: ptr(250)}, models.SeverityWarning},
		{"fractional margin", models.Reading{Temperature: ptr(39.6)}, models.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(tt.reading, models.DefaultThresholds)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Severity)
		})
	}
}

func TestEvaluate_UsesEffectiveThresholds(t *testing.T) {
	e := newEvaluator(t, DefaultPolicy())
	th := models.ThresholdOverride{HeartRateHigh: ptr(140)}.Apply(models.DefaultThresholds)

	assert.Empty(t, e.Evaluate(models.Reading{HeartRate: ptr(130)}, th))
}

func TestNew_RejectsBadPolicy(t *testing.T) {
	_, err := New(Policy{CriticalMargins: map[models.Channel]float64{"pulse": 5}})
	assert.Error(t, err)

	_, err = New(Policy{CriticalMargins: map[models.Channel]float64{models.ChannelHeartRate: -1}})
	assert.Error(t, err)
}
