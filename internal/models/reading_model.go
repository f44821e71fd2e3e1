package models

// Reading is one immutable set of vital measurements for a patient.
// A nil channel value was not measured and is never evaluated.
type Reading struct {
	OrgID           string   `json:"org_id"`
	PatientID       string   `json:"patient_id" validate:"required,max=128"`
	HeartRate       *float64 `json:"heart_rate,omitempty" validate:"omitempty,min=0,max=300"`
	SystolicBP      *float64 `json:"systolic_bp,omitempty" validate:"omitempty,min=0,max=300"`
	DiastolicBP     *float64 `json:"diastolic_bp,omitempty" validate:"omitempty,min=0,max=200"`
	Temperature     *float64 `json:"temperature,omitempty" validate:"omitempty,min=30,max=45"`
	SpO2            *float64 `json:"spo2,omitempty" validate:"omitempty,min=0,max=100"`
	RespiratoryRate *float64 `json:"respiratory_rate,omitempty" validate:"omitempty,min=0,max=60"`
	RecordedBy      string   `json:"recorded_by"`
	// RecordedAt is epoch seconds; zero means "now" on ingestion.
	RecordedAt int64  `json:"recorded_at" validate:"gte=0"`
	Notes      string `json:"notes,omitempty" validate:"max=1024"`
}

// Value returns the measured value for ch, or nil when absent.
func (r Reading) Value(ch Channel) *float64 {
	switch ch {
	case ChannelHeartRate:
		return r.HeartRate
	case ChannelSystolicBP:
		return r.SystolicBP
	case ChannelDiastolicBP:
		return r.DiastolicBP
	case ChannelTemperature:
		return r.Temperature
	case ChannelSpO2:
		return r.SpO2
	case ChannelRespiratoryRate:
		return r.RespiratoryRate
	}
	return nil
}

// Validate rejects out-of-range measurements and readings with no values.
func (r Reading) Validate() error {
	if err := Validate(r); err != nil {
		return err
	}
	for _, ch := range Channels {
		if r.Value(ch) != nil {
			return nil
		}
	}
	return NewValidationError("reading", "at least one vital value is required")
}

// MaxBatchReadings bounds a single batch submission.
const MaxBatchReadings = 500

// BatchReadingsRequest carries several readings in one call.
type BatchReadingsRequest struct {
	Readings []Reading `json:"readings" validate:"required,min=1,max=500,dive"`
}

// IngestResult reports what one reading did to the alert store.
type IngestResult struct {
	PatientID  string         `json:"patient_id"`
	RecordedAt int64          `json:"recorded_at"`
	Breaches   int            `json:"breaches"`
	Alerts     []RecordResult `json:"alerts"`
}
