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

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append records one audit entry. A second entry with the same sequence for
// the case is rejected as a conflict.
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}

	query := `
		INSERT INTO case_audit (
			id, tenant_id, case_id, sequence, action, from_state, to_state, body, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.TenantID,
		entry.CaseID,
		entry.Sequence,
		entry.Action,
		entry.FromState,
		entry.ToState,
		string(body),
		entry.Timestamp,
	)
	if isConstraintViolation(err) {
		return apperr.Conflict("audit entry", fmt.Sprintf("%s#%d", entry.CaseID, entry.Sequence))
	}
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("case_id", entry.CaseID),
			zap.Int("sequence", entry.Sequence),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ListByCase returns a case's audit trail ordered by sequence
func (r *AuditRepository) ListByCase(ctx context.Context, tenantID, caseID string) ([]entity.AuditEntry, error) {
	query := `
		SELECT body FROM case_audit
		WHERE tenant_id = ? AND case_id = ?
		ORDER BY sequence
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, tenantID, caseID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("case_id", caseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]entity.AuditEntry, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		var e entity.AuditEntry
		if err := json.Unmarshal([]byte(body), &e); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
