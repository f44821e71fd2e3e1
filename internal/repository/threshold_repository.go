package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"WardWatchAPI/internal/models"
)

// IThresholdRepository stores organization limit sets and patient overrides.
// Lookups return (nil, nil) when nothing is stored.
type IThresholdRepository interface {
	GetOrg(ctx context.Context, orgID string) (*models.OrgThresholds, error)
	SaveOrg(ctx context.Context, t *models.OrgThresholds) error
	CreateOrgIfAbsent(ctx context.Context, t *models.OrgThresholds) (bool, error)
	GetPatient(ctx context.Context, orgID, patientID string) (*models.PatientThresholds, error)
	SavePatient(ctx context.Context, t *models.PatientThresholds) error
	DeletePatient(ctx context.Context, orgID, patientID string) error
	ListPatients(ctx context.Context, orgID string) ([]models.PatientThresholds, error)
}

type ThresholdRepository struct {
	db *sql.DB
}

func NewThresholdRepository(db *sql.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

var (
	thresholdColumns = strings.Join(models.ThresholdFieldNames(), ", ")
	thresholdUpdates = func() string {
		names := models.ThresholdFieldNames()
		sets := make([]string, len(names))
		for i, n := range names {
			sets[i] = n + " = EXCLUDED." + n
		}
		return strings.Join(sets, ", ")
	}()
)

// placeholders returns "$from, $from+1, ..." for n parameters.
func placeholders(from, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ps, ", ")
}

func (r *ThresholdRepository) GetOrg(ctx context.Context, orgID string) (*models.OrgThresholds, error) {
	query := `SELECT org_id, ` + thresholdColumns + `, updated_at FROM org_thresholds WHERE org_id = $1`

	t := &models.OrgThresholds{}
	dest := []interface{}{&t.OrgID}
	for _, f := range t.Fields() {
		dest = append(dest, f)
	}
	dest = append(dest, &t.UpdatedAt)

	err := r.db.QueryRowContext(ctx, query, orgID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get org thresholds: %w", err)
	}
	return t, nil
}

func (r *ThresholdRepository) orgArgs(t *models.OrgThresholds) []interface{} {
	args := []interface{}{t.OrgID}
	for _, f := range t.Fields() {
		args = append(args, *f)
	}
	return append(args, t.UpdatedAt)
}

// SaveOrg inserts or replaces the organization limit set.
func (r *ThresholdRepository) SaveOrg(ctx context.Context, t *models.OrgThresholds) error {
	n := len(models.ThresholdFieldNames())
	query := `
		INSERT INTO org_thresholds (org_id, ` + thresholdColumns + `, updated_at)
		VALUES ($1, ` + placeholders(2, n) + fmt.Sprintf(", $%d", n+2) + `)
		ON CONFLICT (org_id) DO UPDATE SET ` + thresholdUpdates + `, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, r.orgArgs(t)...); err != nil {
		return fmt.Errorf("failed to save org thresholds: %w", err)
	}
	return nil
}

// CreateOrgIfAbsent inserts the set only when the organization has none.
func (r *ThresholdRepository) CreateOrgIfAbsent(ctx context.Context, t *models.OrgThresholds) (bool, error) {
	n := len(models.ThresholdFieldNames())
	query := `
		INSERT INTO org_thresholds (org_id, ` + thresholdColumns + `, updated_at)
		VALUES ($1, ` + placeholders(2, n) + fmt.Sprintf(", $%d", n+2) + `)
		ON CONFLICT (org_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, r.orgArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("failed to init org thresholds: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

func (r *ThresholdRepository) GetPatient(ctx context.Context, orgID, patientID string) (*models.PatientThresholds, error) {
	query := `
		SELECT org_id, patient_id, ` + thresholdColumns + `, updated_at
		FROM patient_thresholds
		WHERE org_id = $1 AND patient_id = $2
	`

	t := &models.PatientThresholds{}
	dest := []interface{}{&t.OrgID, &t.PatientID}
	for _, f := range t.Fields() {
		dest = append(dest, f)
	}
	dest = append(dest, &t.UpdatedAt)

	err := r.db.QueryRowContext(ctx, query, orgID, patientID).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient thresholds: %w", err)
	}
	return t, nil
}

// SavePatient inserts or replaces a patient override. Unset fields are stored as NULL.
func (r *ThresholdRepository) SavePatient(ctx context.Context, t *models.PatientThresholds) error {
	n := len(models.ThresholdFieldNames())
	query := `
		INSERT INTO patient_thresholds (org_id, patient_id, ` + thresholdColumns + `, updated_at)
		VALUES ($1, $2, ` + placeholders(3, n) + fmt.Sprintf(", $%d", n+3) + `)
		ON CONFLICT (org_id, patient_id) DO UPDATE SET ` + thresholdUpdates + `, updated_at = EXCLUDED.updated_at
	`

	args := []interface{}{t.OrgID, t.PatientID}
	for _, f := range t.Fields() {
		args = append(args, *f)
	}
	args = append(args, t.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save patient thresholds: %w", err)
	}
	return nil
}

func (r *ThresholdRepository) DeletePatient(ctx context.Context, orgID, patientID string) error {
	query := `DELETE FROM patient_thresholds WHERE org_id = $1 AND patient_id = $2`
	if _, err := r.db.ExecContext(ctx, query, orgID, patientID); err != nil {
		return fmt.Errorf("failed to delete patient thresholds: %w", err)
	}
	return nil
}

// ListPatients returns every patient override in the organization, ordered by patient id.
func (r *ThresholdRepository) ListPatients(ctx context.Context, orgID string) ([]models.PatientThresholds, error) {
	query := `
		SELECT org_id, patient_id, ` + thresholdColumns + `, updated_at
		FROM patient_thresholds
		WHERE org_id = $1
		ORDER BY patient_id
	`

	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patient thresholds: %w", err)
	}
	defer rows.Close()

	var out []models.PatientThresholds
	for rows.Next() {
		var t models.PatientThresholds
		dest := []interface{}{&t.OrgID, &t.PatientID}
		for _, f := range t.Fields() {
			dest = append(dest, f)
		}
		dest = append(dest, &t.UpdatedAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan patient thresholds: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
