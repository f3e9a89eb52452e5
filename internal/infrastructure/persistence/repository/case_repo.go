package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
	"github.com/garyjia/discharge-planner/internal/infrastructure/persistence/sqlite"
)

// CaseRepository implements port.CaseRepository. The audit trail lives in
// case_audit and is not part of the stored body.
type CaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *sql.DB, logger *zap.Logger) port.CaseRepository {
	return &CaseRepository{
		db:     db,
		logger: logger,
	}
}

func encodeCase(c *entity.Case) (string, error) {
	body := *c
	body.AuditHistory = nil
	b, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("failed to encode case: %w", err)
	}
	return string(b), nil
}

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *entity.Case) error {
	body, err := encodeCase(c)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO cases (
			tenant_id, id, patient_id, current_state, version, body, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		c.TenantID,
		c.ID,
		c.PatientID,
		c.CurrentState,
		c.Version,
		body,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return apperr.Conflict("case", c.ID)
	}
	if err != nil {
		r.logger.Error("Failed to create case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// Get retrieves a case without its audit trail
func (r *CaseRepository) Get(ctx context.Context, tenantID, id string) (*entity.Case, error) {
	query := `SELECT body FROM cases WHERE tenant_id = ? AND id = ?`

	var body string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tenantID, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("case", id)
	}
	if err != nil {
		r.logger.Error("Failed to get case", zap.String("case_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	var c entity.Case
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, fmt.Errorf("failed to decode case %s: %w", id, err)
	}
	return &c, nil
}

// Update stores c if the row still carries expectedVersion
func (r *CaseRepository) Update(ctx context.Context, c *entity.Case, expectedVersion int) error {
	body, err := encodeCase(c)
	if err != nil {
		return err
	}

	query := `
		UPDATE cases
		SET current_state = ?, version = ?, body = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ? AND version = ?
	`

	exec := sqlite.ExecutorFrom(ctx, r.db)
	result, err := exec.ExecContext(ctx, query,
		c.CurrentState,
		c.Version,
		body,
		c.UpdatedAt,
		c.TenantID,
		c.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update case", zap.String("case_id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update case: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var exists int
	err = exec.QueryRowContext(ctx, `SELECT 1 FROM cases WHERE tenant_id = ? AND id = ?`, c.TenantID, c.ID).Scan(&exists)
	if err == sql.ErrNoRows {
		return apperr.NotFound("case", c.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to check case: %w", err)
	}

	r.logger.Warn("Stale case update rejected",
		zap.String("case_id", c.ID),
		zap.Int("expected_version", expectedVersion))
	return apperr.Conflict("case", c.ID)
}

// List returns a page of a tenant's cases, newest first
func (r *CaseRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Case, error) {
	query := `
		SELECT body FROM cases
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list cases", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	cases := make([]*entity.Case, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		var c entity.Case
		if err := json.Unmarshal([]byte(body), &c); err != nil {
			return nil, fmt.Errorf("failed to decode case: %w", err)
		}
		cases = append(cases, &c)
	}
	return cases, rows.Err()
}
