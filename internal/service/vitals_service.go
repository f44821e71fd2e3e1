package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"WardWatchAPI/internal/evaluator"
	"WardWatchAPI/internal/logger"
	"WardWatchAPI/internal/metrics"
	"WardWatchAPI/internal/models"
)

// AlertPublisher fans alert events out to subscribers. Implementations must
// not block the caller.
type AlertPublisher interface {
	PublishAlert(orgID, eventType string, alert models.Alert)
}

// Ingestion sources, used as a metrics label.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

type VitalsConfig struct {
	// AutoInitOrgs seeds default thresholds for an organization on its first reading.
	AutoInitOrgs     bool
	BatchConcurrency int
}

// VitalsService runs the ingestion pipeline: resolve limits, evaluate,
// record each breach and publish the results that created or escalated an alert.
type VitalsService struct {
	thresholds IThresholdService
	evaluator  evaluator.IVitalEvaluator
	alerts     IAlertService
	publishers []AlertPublisher
	cfg        VitalsConfig
	metrics    *metrics.Metrics
	log        *logger.Logger
	now        func() time.Time
}

func NewVitalsService(
	thresholds IThresholdService,
	eval evaluator.IVitalEvaluator,
	alerts IAlertService,
	cfg VitalsConfig,
	m *metrics.Metrics,
	log *logger.Logger,
	publishers ...AlertPublisher,
) *VitalsService {
	if cfg.BatchConcurrency < 1 {
		cfg.BatchConcurrency = 1
	}
	return &VitalsService{
		thresholds: thresholds,
		evaluator:  eval,
		alerts:     alerts,
		publishers: publishers,
		cfg:        cfg,
		metrics:    m,
		log:        log.Component("vitals"),
		now:        time.Now,
	}
}

// AddPublisher registers another subscriber for created and escalated alerts.
// It must be called before ingestion starts.
func (s *VitalsService) AddPublisher(p AlertPublisher) {
	s.publishers = append(s.publishers, p)
}

// Ingest validates and processes one reading.
func (s *VitalsService) Ingest(ctx context.Context, source string, reading models.Reading) (models.IngestResult, error) {
	if err := reading.Validate(); err != nil {
		s.metrics.Reading(source, "invalid")
		return models.IngestResult{}, err
	}
	return s.process(ctx, source, reading)
}

// IngestBatch validates every reading before processing any of them, then
// processes them concurrently. Results keep the input order.
func (s *VitalsService) IngestBatch(ctx context.Context, source string, readings []models.Reading) ([]models.IngestResult, error) {
	if len(readings) == 0 {
		return nil, models.NewValidationError("readings", "is required")
	}
	if len(readings) > models.MaxBatchReadings {
		return nil, models.NewValidationError("readings", fmt.Sprintf("at most %d readings per batch", models.MaxBatchReadings))
	}

	var verrs models.ValidationErrors
	for i, r := range readings {
		if err := r.Validate(); err != nil {
			ve, ok := models.AsValidation(err)
			if !ok {
				return nil, err
			}
			for _, fe := range ve {
				cp := *fe
				cp.Field = fmt.Sprintf("readings[%d].%s", i, fe.Field)
				verrs = append(verrs, &cp)
			}
		}
	}
	if len(verrs) > 0 {
		s.metrics.Reading(source, "invalid")
		return nil, verrs
	}

	results := make([]models.IngestResult, len(readings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.BatchConcurrency)

	for i := range readings {
		i := i
		g.Go(func() error {
			res, err := s.process(gctx, source, readings[i])
			if err != nil {
				return fmt.Errorf("reading %d (patient %s): %w", i, readings[i].PatientID, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *VitalsService) process(ctx context.Context, source string, reading models.Reading) (models.IngestResult, error) {
	start := s.now()
	defer func() { s.metrics.ObserveIngest(time.Since(start).Seconds()) }()

	if reading.RecordedAt == 0 {
		reading.RecordedAt = start.Unix()
	}

	eff, err := s.resolve(ctx, reading.OrgID, reading.PatientID)
	if err != nil {
		s.metrics.Reading(source, "error")
		return models.IngestResult{}, err
	}

	candidates := s.evaluator.Evaluate(reading, eff.Thresholds)
	result := models.IngestResult{
		PatientID:  reading.PatientID,
		RecordedAt: reading.RecordedAt,
		Breaches:   len(candidates),
		Alerts:     make([]models.RecordResult, 0, len(candidates)),
	}

	// Each breach is recorded independently; one failing channel does not
	// hide the others.
	var errs []error
	for _, c := range candidates {
		s.metrics.Breach(string(c.Channel), string(c.Severity))

		rec, err := s.alerts.Record(ctx, reading, c)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.Channel, err))
			continue
		}
		result.Alerts = append(result.Alerts, rec)
		s.publish(rec)
	}

	if len(errs) > 0 {
		s.metrics.Reading(source, "error")
		return result, errors.Join(errs...)
	}
	s.metrics.Reading(source, "ok")
	return result, nil
}

func (s *VitalsService) resolve(ctx context.Context, orgID, patientID string) (*models.EffectiveThresholds, error) {
	eff, err := s.thresholds.Resolve(ctx, orgID, patientID)
	if err == nil || !errors.Is(err, models.ErrNotFound) || !s.cfg.AutoInitOrgs {
		return eff, err
	}

	if _, _, err := s.thresholds.InitOrg(ctx, orgID); err != nil {
		return nil, fmt.Errorf("failed to initialize thresholds for org %s: %w", orgID, err)
	}
	return s.thresholds.Resolve(ctx, orgID, patientID)
}

func (s *VitalsService) publish(rec models.RecordResult) {
	event := rec.EventType()
	if event == "" {
		return
	}
	for _, p := range s.publishers {
		p.PublishAlert(rec.Alert.OrgID, event, rec.Alert)
	}
}

// ProcessMessage decodes a device payload for orgID. The payload is either a
// single reading object or an array of readings.
func (s *VitalsService) ProcessMessage(ctx context.Context, orgID string, payload []byte) error {
	s.log.Debug("Processing vitals message for org %s: %d bytes", orgID, len(payload))

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var readings []models.Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}
		for i := range readings {
			readings[i].OrgID = orgID
		}
		_, err := s.IngestBatch(ctx, SourceMQTT, readings)
		return err
	}

	var reading models.Reading
	if err := json.Unmarshal(trimmed, &reading); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	reading.OrgID = orgID

	res, err := s.Ingest(ctx, SourceMQTT, reading)
	if err != nil {
		return err
	}
	if res.Breaches > 0 {
		s.log.Debug("Reading for %s/%s produced %d breaches", orgID, reading.PatientID, res.Breaches)
	}
	return nil
}
