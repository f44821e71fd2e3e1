// Package evaluator classifies a single vital-sign reading against a
// resolved threshold set. It holds no state beyond its policy and does no I/O.
package evaluator

import (
	"fmt"

	"WardWatchAPI/internal/models"
)

// Policy controls severity assignment for paired high/low channels.
type Policy struct {
	// CriticalMargins is the distance past a bound beyond which a breach is
	// critical. A zero or missing margin disables the rule for that channel.
	CriticalMargins map[models.Channel]float64
	// Combination marks a high breach critical when the same reading is
	// also below the SpO2 low bound.
	Combination bool
}

// DefaultPolicy keeps margin escalation off and the combination rule on.
func DefaultPolicy() Policy {
	return Policy{
		CriticalMargins: map[models.Channel]float64{},
		Combination:     true,
	}
}

// IVitalEvaluator defines the breach classifier used by the ingestion path.
type IVitalEvaluator interface {
	Evaluate(reading models.Reading, thresholds models.Thresholds) []models.BreachCandidate
}

type Evaluator struct {
	margins     map[models.Channel]float64
	combination bool
}

// New copies the policy so later changes to the caller's map have no effect.
func New(p Policy) (*Evaluator, error) {
	margins := make(map[models.Channel]float64, len(p.CriticalMargins))
	for ch, m := range p.CriticalMargins {
		if !ch.Valid() {
			return nil, fmt.Errorf("critical margin for unknown channel %q", ch)
		}
		if m < 0 {
			return nil, fmt.Errorf("critical margin for %s must not be negative: %v", ch, m)
		}
		margins[ch] = m
	}
	return &Evaluator{margins: margins, combination: p.Combination}, nil
}

// Evaluate returns every breach in the reading, in channel order.
func (e *Evaluator) Evaluate(reading models.Reading, th models.Thresholds) []models.BreachCandidate {
	desaturated := false
	if v := reading.SpO2; v != nil && *v < th.SpO2Low {
		desaturated = true
	}

	var out []models.BreachCandidate
	for _, ch := range models.Channels {
		v := reading.Value(ch)
		if v == nil {
			continue
		}
		if c, ok := e.classify(ch, *v, th, desaturated); ok {
			out = append(out, c)
		}
	}
	return out
}

func (e *Evaluator) classify(ch models.Channel, value float64, th models.Thresholds, desaturated bool) (models.BreachCandidate, bool) {
	low, high, hasHigh := th.Bounds(ch)
	c := models.BreachCandidate{Channel: ch, Value: value}

	switch {
	case hasHigh && value > high:
		c.Direction = models.DirectionHigh
		c.Threshold = high
	case value < low:
		c.Direction = models.DirectionLow
		c.Threshold = low
	default:
		return c, false
	}

	c.Severity = e.severity(ch, c, desaturated)
	return c, true
}

func (e *Evaluator) severity(ch models.Channel, c models.BreachCandidate, desaturated bool) models.Severity {
	if ch == models.ChannelSpO2 {
		return models.SeverityCritical
	}
	if e.combination && desaturated && c.Direction == models.DirectionHigh {
		return models.SeverityCritical
	}

	excess := c.Value - c.Threshold
	if c.Direction == models.DirectionLow {
		excess = c.Threshold - c.Value
	}
	if m := e.margins[ch]; m > 0 && excess > m {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}
