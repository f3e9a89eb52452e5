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

// SubjectStateRepository implements port.SubjectStateRepository
type SubjectStateRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubjectStateRepository creates a new subject state repository
func NewSubjectStateRepository(db *sql.DB, logger *zap.Logger) port.SubjectStateRepository {
	return &SubjectStateRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts or replaces a subject's state
func (r *SubjectStateRepository) Save(ctx context.Context, state *entity.SubjectWorkflowState) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode subject state: %w", err)
	}

	query := `
		INSERT INTO subject_states (
			tenant_id, definition_id, subject_id, current_node_id, body, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, definition_id, subject_id) DO UPDATE SET
			current_node_id = excluded.current_node_id,
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		state.TenantID,
		state.DefinitionID,
		state.SubjectID,
		state.CurrentNodeID,
		string(body),
		state.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save subject state",
			zap.String("definition_id", state.DefinitionID),
			zap.String("subject_id", state.SubjectID),
			zap.Error(err))
		return fmt.Errorf("failed to save subject state: %w", err)
	}
	return nil
}

// Get retrieves a subject's state
func (r *SubjectStateRepository) Get(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error) {
	query := `
		SELECT body FROM subject_states
		WHERE tenant_id = ? AND definition_id = ? AND subject_id = ?
	`

	var body string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tenantID, definitionID, subjectID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("subject", subjectID)
	}
	if err != nil {
		r.logger.Error("Failed to get subject state", zap.String("subject_id", subjectID), zap.Error(err))
		return nil, fmt.Errorf("failed to get subject state: %w", err)
	}

	var state entity.SubjectWorkflowState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return nil, fmt.Errorf("failed to decode subject state %s: %w", subjectID, err)
	}
	return &state, nil
}

// ListByDefinition returns every subject in a definition ordered by subject id
func (r *SubjectStateRepository) ListByDefinition(ctx context.Context, tenantID, definitionID string) ([]*entity.SubjectWorkflowState, error) {
	query := `
		SELECT body FROM subject_states
		WHERE tenant_id = ? AND definition_id = ?
		ORDER BY subject_id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, tenantID, definitionID)
	if err != nil {
		r.logger.Error("Failed to list subject states", zap.String("definition_id", definitionID), zap.Error(err))
		return nil, fmt.Errorf("failed to list subject states: %w", err)
	}
	defer rows.Close()

	states := make([]*entity.SubjectWorkflowState, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan subject state: %w", err)
		}
		var state entity.SubjectWorkflowState
		if err := json.Unmarshal([]byte(body), &state); err != nil {
			return nil, fmt.Errorf("failed to decode subject state: %w", err)
		}
		states = append(states, &state)
	}
	return states, rows.Err()
}
