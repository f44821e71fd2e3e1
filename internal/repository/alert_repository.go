package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"WardWatchAPI/internal/models"
)

// IAlertRepository persists alert records. Lookups return (nil, nil) when
// nothing matches. Callers serialize writes per alert key.
type IAlertRepository interface {
	Create(ctx context.Context, alert *models.Alert) error
	GetByID(ctx context.Context, orgID, id string) (*models.Alert, error)
	GetOpen(ctx context.Context, key models.AlertKey) (*models.Alert, error)
	Refresh(ctx context.Context, alert *models.Alert) error
	Acknowledge(ctx context.Context, alert *models.Alert) error
	ListOpen(ctx context.Context, orgID string) ([]models.Alert, error)
	ListOpenByPatient(ctx context.Context, orgID, patientID string) ([]models.Alert, error)
	ListHistory(ctx context.Context, orgID string, limit, offset int) ([]models.Alert, error)
	GetStatistics(ctx context.Context, orgID string) (map[string]int, error)
}

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

const alertColumns = `id, org_id, patient_id, channel, value, threshold, direction, severity,
	message, acknowledged, acknowledged_by, acknowledged_at, recorded_by, reading_at,
	occurrences, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	a := &models.Alert{}
	err := row.Scan(
		&a.ID, &a.OrgID, &a.PatientID, &a.Channel, &a.Value, &a.Threshold,
		&a.Direction, &a.Severity, &a.Message, &a.Acknowledged, &a.AcknowledgedBy,
		&a.AcknowledgedAt, &a.RecordedBy, &a.ReadingAt, &a.Occurrences,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Create inserts a new open alert.
func (r *AlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		alert.ID,
		alert.OrgID,
		alert.PatientID,
		alert.Channel,
		alert.Value,
		alert.Threshold,
		alert.Direction,
		alert.Severity,
		alert.Message,
		alert.Acknowledged,
		alert.AcknowledgedBy,
		alert.AcknowledgedAt,
		alert.RecordedBy,
		alert.ReadingAt,
		alert.Occurrences,
		alert.CreatedAt,
		alert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("alert %s: %w", alert.Key(), ErrConflict)
		}
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// GetByID retrieves one alert scoped to its organization.
func (r *AlertRepository) GetByID(ctx context.Context, orgID, id string) (*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE org_id = $1 AND id = $2`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, orgID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert by id: %w", err)
	}

	return alert, nil
}

// GetOpen returns the unacknowledged alert for a key, if any.
func (r *AlertRepository) GetOpen(ctx context.Context, key models.AlertKey) (*models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE org_id = $1 AND patient_id = $2 AND channel = $3 AND NOT acknowledged
	`

	alert, err := scanAlert(r.db.QueryRowContext(ctx, query, key.OrgID, key.PatientID, key.Channel))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open alert: %w", err)
	}

	return alert, nil
}

// Refresh writes the dedup-update fields of an open alert.
func (r *AlertRepository) Refresh(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts
		SET value = $1, threshold = $2, direction = $3, severity = $4, message = $5,
		    recorded_by = $6, reading_at = $7, occurrences = $8, updated_at = $9
		WHERE org_id = $10 AND id = $11 AND NOT acknowledged
	`

	result, err := r.db.ExecContext(
		ctx, query,
		alert.Value,
		alert.Threshold,
		alert.Direction,
		alert.Severity,
		alert.Message,
		alert.RecordedBy,
		alert.ReadingAt,
		alert.Occurrences,
		alert.UpdatedAt,
		alert.OrgID,
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh alert: %w", err)
	}

	return expectOneRow(result, alert.ID)
}

// Acknowledge stores the acknowledgment of an open alert.
func (r *AlertRepository) Acknowledge(ctx context.Context, alert *models.Alert) error {
	query := `
		UPDATE alerts
		SET acknowledged = TRUE, acknowledged_by = $1, acknowledged_at = $2, updated_at = $3
		WHERE org_id = $4 AND id = $5 AND NOT acknowledged
	`

	result, err := r.db.ExecContext(
		ctx, query,
		alert.AcknowledgedBy,
		alert.AcknowledgedAt,
		alert.UpdatedAt,
		alert.OrgID,
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	return expectOneRow(result, alert.ID)
}

func expectOneRow(result sql.Result, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("open alert %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListOpen returns the organization's unacknowledged alerts, newest first.
func (r *AlertRepository) ListOpen(ctx context.Context, orgID string) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE org_id = $1 AND NOT acknowledged
		ORDER BY created_at DESC, seq DESC
	`

	return r.query(ctx, "open alerts", query, orgID)
}

// ListOpenByPatient returns one patient's unacknowledged alerts, newest first.
func (r *AlertRepository) ListOpenByPatient(ctx context.Context, orgID, patientID string) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE org_id = $1 AND patient_id = $2 AND NOT acknowledged
		ORDER BY created_at DESC, seq DESC
	`

	return r.query(ctx, "patient alerts", query, orgID, patientID)
}

// ListHistory returns a page of all alerts, newest first.
func (r *AlertRepository) ListHistory(ctx context.Context, orgID string, limit, offset int) ([]models.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE org_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3
	`

	return r.query(ctx, "alert history", query, orgID, limit, offset)
}

func (r *AlertRepository) query(ctx context.Context, what, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", what, err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", what, err)
	}

	return alerts, nil
}

// GetStatistics counts open alerts per severity.
func (r *AlertRepository) GetStatistics(ctx context.Context, orgID string) (map[string]int, error) {
	query := `
		SELECT severity, COUNT(*)
		FROM alerts
		WHERE org_id = $1 AND NOT acknowledged
		GROUP BY severity
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert statistics: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, err
		}
		stats[sev] = count
	}
	return stats, rows.Err()
}
