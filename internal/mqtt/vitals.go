package mqtt

import (
	"context"
	"fmt"
	"time"

	"WardWatchAPI/internal/models"
)

const processTimeout = 10 * time.Second

// VitalsProcessor ingests a raw device payload on behalf of an organization.
type VitalsProcessor interface {
	ProcessMessage(ctx context.Context, orgID string, payload []byte) error
}

// AlertEnvelope is the body published on the alert topic.
type AlertEnvelope struct {
	Type  string       `json:"type"`
	Alert models.Alert `json:"alert"`
}

// SubscribeVitals routes the configured vitals topic into p. The organization
// is taken from the single-level wildcard segment of the topic.
func (c *Client) SubscribeVitals(p VitalsProcessor) error {
	pattern := c.cfg.VitalsTopic
	if _, err := wildcardIndex(pattern); err != nil {
		return err
	}
	return c.Subscribe(pattern, c.vitalsHandler(pattern, p))
}

func (c *Client) vitalsHandler(pattern string, p VitalsProcessor) MessageHandler {
	return func(topic string, payload []byte) error {
		orgID, err := orgFromTopic(pattern, topic)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(c.ctx, processTimeout)
		defer cancel()
		return p.ProcessMessage(ctx, orgID, payload)
	}
}

// PublishAlert mirrors alert events onto the organization's alert topic.
func (c *Client) PublishAlert(orgID, eventType string, alert models.Alert) {
	if !c.cfg.PublishAlerts {
		return
	}

	topic := fmt.Sprintf(c.cfg.AlertTopic, orgID)
	if err := c.PublishAsync(topic, AlertEnvelope{Type: eventType, Alert: alert}); err != nil {
		c.log.Warn("Dropping %s for alert %s: %v", eventType, alert.ID, err)
	}
}

func wildcardIndex(pattern string) (int, error) {
	for i, part := range splitTopic(pattern) {
		if part == "+" {
			return i, nil
		}
	}
	return 0, fmt.Errorf("vitals topic %q has no '+' segment for the org id", pattern)
}

func orgFromTopic(pattern, topic string) (string, error) {
	idx, err := wildcardIndex(pattern)
	if err != nil {
		return "", err
	}
	if !matchTopic(pattern, topic) {
		return "", fmt.Errorf("topic %s does not match %s", topic, pattern)
	}
	return splitTopic(topic)[idx], nil
}
