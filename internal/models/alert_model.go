package models

import "fmt"

// Severity of a breach or alert.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	}
	return 0
}

// Exceeds reports whether s is strictly more urgent than other.
func (s Severity) Exceeds(other Severity) bool {
	return s.rank() > other.rank()
}

// MaxSeverity returns the more urgent of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Exceeds(a) {
		return b
	}
	return a
}

// Direction of a threshold crossing.
type Direction string

const (
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// AlertState is the acknowledgment lifecycle of an alert.
type AlertState string

const (
	StateUnacknowledged AlertState = "unacknowledged"
	StateAcknowledged   AlertState = "acknowledged"
)

// Event types carried to real-time subscribers.
const (
	EventSnapshot       = "SNAPSHOT"
	EventAlertCreated   = "ALERT_CREATED"
	EventAlertEscalated = "ALERT_ESCALATED"
)

// BreachCandidate is one threshold crossing found in a reading.
type BreachCandidate struct {
	Channel   Channel   `json:"channel"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Direction Direction `json:"direction"`
	Severity  Severity  `json:"severity"`
}

// Message renders the human readable alert text for the candidate.
func (c BreachCandidate) Message() string {
	verb := "exceeds"
	if c.Direction == DirectionLow {
		verb = "below"
	}
	return fmt.Sprintf("%s %.1f %s %.1f", c.Channel.Label(), c.Value, verb, c.Threshold)
}

// Alert is the persistent record of a breach. Timestamps are epoch seconds.
type Alert struct {
	ID             string    `json:"id" db:"id"`
	OrgID          string    `json:"org_id" db:"org_id"`
	PatientID      string    `json:"patient_id" db:"patient_id"`
	Channel        Channel   `json:"channel" db:"channel"`
	Value          float64   `json:"value" db:"value"`
	Threshold      float64   `json:"threshold" db:"threshold"`
	Direction      Direction `json:"direction" db:"direction"`
	Severity       Severity  `json:"severity" db:"severity"`
	Message        string    `json:"message" db:"message"`
	Acknowledged   bool      `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt int64     `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	RecordedBy     string    `json:"recorded_by,omitempty" db:"recorded_by"`
	ReadingAt      int64     `json:"reading_at" db:"reading_at"`
	Occurrences    int       `json:"occurrences" db:"occurrences"`
	CreatedAt      int64     `json:"created_at" db:"created_at"`
	UpdatedAt      int64     `json:"updated_at" db:"updated_at"`
}

func (a Alert) State() AlertState {
	if a.Acknowledged {
		return StateAcknowledged
	}
	return StateUnacknowledged
}

// AlertKey identifies the open-alert slot a breach maps onto.
type AlertKey struct {
	OrgID     string
	PatientID string
	Channel   Channel
}

func (a Alert) Key() AlertKey {
	return AlertKey{OrgID: a.OrgID, PatientID: a.PatientID, Channel: a.Channel}
}

func (k AlertKey) String() string {
	return k.OrgID + "/" + k.PatientID + "/" + string(k.Channel)
}

// RecordResult is the outcome of folding one breach into the alert store.
type RecordResult struct {
	Alert     Alert `json:"alert"`
	Created   bool  `json:"created"`
	Escalated bool  `json:"escalated"`
}

// EventType returns the real-time event for the result, or "" when the
// result is a silent refresh that must not be published.
func (r RecordResult) EventType() string {
	switch {
	case r.Created:
		return EventAlertCreated
	case r.Escalated:
		return EventAlertEscalated
	}
	return ""
}

// AcknowledgeResult is returned by the acknowledge action.
type AcknowledgeResult struct {
	Alert               Alert `json:"alert"`
	AlreadyAcknowledged bool  `json:"already_acknowledged"`
}

// AlertPage is one page of alert history.
type AlertPage struct {
	Alerts []Alert `json:"alerts"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
