package models

import (
	"fmt"
	"time"
)

// Thresholds is a fully populated limit set. It is the shape of both the
// organization record and the resolved per-patient effective set.
type Thresholds struct {
	HeartRateHigh       float64 `json:"heart_rate_high" db:"heart_rate_high" validate:"gt=0,lte=300"`
	HeartRateLow        float64 `json:"heart_rate_low" db:"heart_rate_low" validate:"gt=0,lte=300"`
	SystolicBPHigh      float64 `json:"systolic_bp_high" db:"systolic_bp_high" validate:"gt=0,lte=300"`
	SystolicBPLow       float64 `json:"systolic_bp_low" db:"systolic_bp_low" validate:"gt=0,lte=300"`
	DiastolicBPHigh     float64 `json:"diastolic_bp_high" db:"diastolic_bp_high" validate:"gt=0,lte=200"`
	DiastolicBPLow      float64 `json:"diastolic_bp_low" db:"diastolic_bp_low" validate:"gt=0,lte=200"`
	TemperatureHigh     float64 `json:"temperature_high" db:"temperature_high" validate:"gte=30,lte=45"`
	TemperatureLow      float64 `json:"temperature_low" db:"temperature_low" validate:"gte=30,lte=45"`
	SpO2Low             float64 `json:"spo2_low" db:"spo2_low" validate:"gt=0,lte=100"`
	RespiratoryRateHigh float64 `json:"respiratory_rate_high" db:"respiratory_rate_high" validate:"gt=0,lte=60"`
	RespiratoryRateLow  float64 `json:"respiratory_rate_low" db:"respiratory_rate_low" validate:"gt=0,lte=60"`
}

// DefaultThresholds seeds a newly initialized organization.
var DefaultThresholds = Thresholds{
	HeartRateHigh:       100,
	HeartRateLow:        60,
	SystolicBPHigh:      140,
	SystolicBPLow:       90,
	DiastolicBPHigh:     90,
	DiastolicBPLow:      60,
	TemperatureHigh:     38.5,
	TemperatureLow:      36.0,
	SpO2Low:             92,
	RespiratoryRateHigh: 20,
	RespiratoryRateLow:  12,
}

// ThresholdOverride holds only the fields explicitly set for one patient.
type ThresholdOverride struct {
	HeartRateHigh       *float64 `json:"heart_rate_high,omitempty" db:"heart_rate_high" validate:"omitempty,gt=0,lte=300"`
	HeartRateLow        *float64 `json:"heart_rate_low,omitempty" db:"heart_rate_low" validate:"omitempty,gt=0,lte=300"`
	SystolicBPHigh      *float64 `json:"systolic_bp_high,omitempty" db:"systolic_bp_high" validate:"omitempty,gt=0,lte=300"`
	SystolicBPLow       *float64 `json:"systolic_bp_low,omitempty" db:"systolic_bp_low" validate:"omitempty,gt=0,lte=300"`
	DiastolicBPHigh     *float64 `json:"diastolic_bp_high,omitempty" db:"diastolic_bp_high" validate:"omitempty,gt=0,lte=200"`
	DiastolicBPLow      *float64 `json:"diastolic_bp_low,omitempty" db:"diastolic_bp_low" validate:"omitempty,gt=0,lte=200"`
	TemperatureHigh     *float64 `json:"temperature_high,omitempty" db:"temperature_high" validate:"omitempty,gte=30,lte=45"`
	TemperatureLow      *float64 `json:"temperature_low,omitempty" db:"temperature_low" validate:"omitempty,gte=30,lte=45"`
	SpO2Low             *float64 `json:"spo2_low,omitempty" db:"spo2_low" validate:"omitempty,gt=0,lte=100"`
	RespiratoryRateHigh *float64 `json:"respiratory_rate_high,omitempty" db:"respiratory_rate_high" validate:"omitempty,gt=0,lte=60"`
	RespiratoryRateLow  *float64 `json:"respiratory_rate_low,omitempty" db:"respiratory_rate_low" validate:"omitempty,gt=0,lte=60"`
}

// OrgThresholds is the stored organization-level record.
type OrgThresholds struct {
	OrgID string `json:"org_id" db:"org_id"`
	Thresholds
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PatientThresholds is the stored per-patient override record.
type PatientThresholds struct {
	OrgID     string `json:"org_id" db:"org_id"`
	PatientID string `json:"patient_id" db:"patient_id"`
	ThresholdOverride
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveThresholds is the resolved limit set for one patient.
type EffectiveThresholds struct {
	OrgID     string `json:"org_id"`
	PatientID string `json:"patient_id"`
	Thresholds
	// Overridden lists the fields that came from the patient override.
	Overridden []string `json:"overridden"`
}

// UpdateThresholdsRequest is a partial update for either scope.
type UpdateThresholdsRequest struct {
	ThresholdOverride
	// Clear names override fields to drop so they defer to the org value.
	// Only patient override updates accept it.
	Clear []string `json:"clear,omitempty"`
}

type thresholdField struct {
	name   string
	value  func(*Thresholds) *float64
	option func(*ThresholdOverride) **float64
}

var thresholdFields = []thresholdField{
	{"heart_rate_high", func(t *Thresholds) *float64 { return &t.HeartRateHigh }, func(o *ThresholdOverride) **float64 { return &o.HeartRateHigh }},
	{"heart_rate_low", func(t *Thresholds) *float64 { return &t.HeartRateLow }, func(o *ThresholdOverride) **float64 { return &o.HeartRateLow }},
	{"systolic_bp_high", func(t *Thresholds) *float64 { return &t.SystolicBPHigh }, func(o *ThresholdOverride) **float64 { return &o.SystolicBPHigh }},
	{"systolic_bp_low", func(t *Thresholds) *float64 { return &t.SystolicBPLow }, func(o *ThresholdOverride) **float64 { return &o.SystolicBPLow }},
	{"diastolic_bp_high", func(t *Thresholds) *float64 { return &t.DiastolicBPHigh }, func(o *ThresholdOverride) **float64 { return &o.DiastolicBPHigh }},
	{"diastolic_bp_low", func(t *Thresholds) *float64 { return &t.DiastolicBPLow }, func(o *ThresholdOverride) **float64 { return &o.DiastolicBPLow }},
	{"temperature_high", func(t *Thresholds) *float64 { return &t.TemperatureHigh }, func(o *ThresholdOverride) **float64 { return &o.TemperatureHigh }},
	{"temperature_low", func(t *Thresholds) *float64 { return &t.TemperatureLow }, func(o *ThresholdOverride) **float64 { return &o.TemperatureLow }},
	{"spo2_low", func(t *Thresholds) *float64 { return &t.SpO2Low }, func(o *ThresholdOverride) **float64 { return &o.SpO2Low }},
	{"respiratory_rate_high", func(t *Thresholds) *float64 { return &t.RespiratoryRateHigh }, func(o *ThresholdOverride) **float64 { return &o.RespiratoryRateHigh }},
	{"respiratory_rate_low", func(t *Thresholds) *float64 { return &t.RespiratoryRateLow }, func(o *ThresholdOverride) **float64 { return &o.RespiratoryRateLow }},
}

// ThresholdFieldNames returns every limit field name in storage order.
func ThresholdFieldNames() []string {
	names := make([]string, len(thresholdFields))
	for i, f := range thresholdFields {
		names[i] = f.name
	}
	return names
}

// Fields returns pointers to every limit in ThresholdFieldNames order.
func (t *Thresholds) Fields() []*float64 {
	out := make([]*float64, len(thresholdFields))
	for i, f := range thresholdFields {
		out[i] = f.value(t)
	}
	return out
}

// Fields returns pointers to every optional limit in ThresholdFieldNames order.
func (o *ThresholdOverride) Fields() []**float64 {
	out := make([]**float64, len(thresholdFields))
	for i, f := range thresholdFields {
		out[i] = f.option(o)
	}
	return out
}

// Bounds returns the limits for a channel. SpO2 has no high bound.
func (t Thresholds) Bounds(ch Channel) (low, high float64, hasHigh bool) {
	switch ch {
	case ChannelHeartRate:
		return t.HeartRateLow, t.HeartRateHigh, true
	case ChannelSystolicBP:
		return t.SystolicBPLow, t.SystolicBPHigh, true
	case ChannelDiastolicBP:
		return t.DiastolicBPLow, t.DiastolicBPHigh, true
	case ChannelTemperature:
		return t.TemperatureLow, t.TemperatureHigh, true
	case ChannelSpO2:
		return t.SpO2Low, 0, false
	case ChannelRespiratoryRate:
		return t.RespiratoryRateLow, t.RespiratoryRateHigh, true
	}
	return 0, 0, false
}

// Validate checks field ranges and that every high bound is above its low bound.
func (t Thresholds) Validate() error {
	if err := Validate(t); err != nil {
		return err
	}

	var errs ValidationErrors
	for _, ch := range Channels {
		low, high, hasHigh := t.Bounds(ch)
		if hasHigh && high <= low {
			errs = append(errs, &ValidationError{
				Field:   string(ch) + "_high",
				Tag:     "gtfield",
				Value:   high,
				Message: fmt.Sprintf("must be greater than %s_low (%.1f)", ch, low),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Apply returns a copy of base with every field set in o replaced.
func (o ThresholdOverride) Apply(base Thresholds) Thresholds {
	out := base
	for _, f := range thresholdFields {
		if v := *f.option(&o); v != nil {
			*f.value(&out) = *v
		}
	}
	return out
}

// Merge returns o with every field set in patch replaced.
func (o ThresholdOverride) Merge(patch ThresholdOverride) ThresholdOverride {
	out := o
	for _, f := range thresholdFields {
		if v := *f.option(&patch); v != nil {
			val := *v
			*f.option(&out) = &val
		}
	}
	return out
}

// Without returns o with the named fields unset.
func (o ThresholdOverride) Without(fields []string) (ThresholdOverride, error) {
	out := o
	var errs ValidationErrors
	for _, name := range fields {
		found := false
		for _, f := range thresholdFields {
			if f.name == name {
				*f.option(&out) = nil
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, &ValidationError{
				Field:   "clear",
				Tag:     "oneof",
				Value:   name,
				Message: fmt.Sprintf("unknown threshold field %q", name),
			})
		}
	}
	if len(errs) > 0 {
		return o, errs
	}
	return out, nil
}

// SetFields lists the names of fields present in o.
func (o ThresholdOverride) SetFields() []string {
	var names []string
	for _, f := range thresholdFields {
		if *f.option(&o) != nil {
			names = append(names, f.name)
		}
	}
	return names
}

func (o ThresholdOverride) IsEmpty() bool {
	return len(o.SetFields()) == 0
}
