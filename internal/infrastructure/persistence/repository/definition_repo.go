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

// DefinitionRepository implements port.DefinitionRepository
type DefinitionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sql.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Save inserts or replaces a definition
func (r *DefinitionRepository) Save(ctx context.Context, def *entity.ProcessDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	query := `
		INSERT INTO process_definitions (
			tenant_id, id, name, version, status, body, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			name = excluded.name,
			version = excluded.version,
			status = excluded.status,
			body = excluded.body,
			updated_at = excluded.updated_at
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		def.TenantID,
		def.ID,
		def.Name,
		def.Version,
		def.Status,
		string(body),
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save definition",
			zap.String("tenant_id", def.TenantID),
			zap.String("definition_id", def.ID),
			zap.Error(err))
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

// Get retrieves a definition by tenant and id
func (r *DefinitionRepository) Get(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error) {
	query := `SELECT body FROM process_definitions WHERE tenant_id = ? AND id = ?`

	var body string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tenantID, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("definition", id)
	}
	if err != nil {
		r.logger.Error("Failed to get definition", zap.String("definition_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	var def entity.ProcessDefinition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition %s: %w", id, err)
	}
	return &def, nil
}

// List returns a tenant's definitions ordered by creation time
func (r *DefinitionRepository) List(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error) {
	query := `
		SELECT body FROM process_definitions
		WHERE tenant_id = ?
		ORDER BY created_at, id
	`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, tenantID)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.String("tenant_id", tenantID), zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]*entity.ProcessDefinition, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		var def entity.ProcessDefinition
		if err := json.Unmarshal([]byte(body), &def); err != nil {
			return nil, fmt.Errorf("failed to decode definition: %w", err)
		}
		defs = append(defs, &def)
	}
	return defs, rows.Err()
}

// SavePublished stores the snapshot of a published version
func (r *DefinitionRepository) SavePublished(ctx context.Context, def *entity.ProcessDefinition) error {
	if def.PublishedAt == nil {
		return fmt.Errorf("definition %s version %d has no publish time", def.ID, def.Version)
	}
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to encode definition: %w", err)
	}

	query := `
		INSERT INTO published_definitions (tenant_id, id, version, body, published_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id, version) DO UPDATE SET
			body = excluded.body
	`

	_, err = sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		def.TenantID,
		def.ID,
		def.Version,
		string(body),
		*def.PublishedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save published definition",
			zap.String("tenant_id", def.TenantID),
			zap.String("definition_id", def.ID),
			zap.Int("version", def.Version),
			zap.Error(err))
		return fmt.Errorf("failed to save published definition: %w", err)
	}
	return nil
}

// GetPublished retrieves a published snapshot, the latest one when version is 0
func (r *DefinitionRepository) GetPublished(ctx context.Context, tenantID, id string, version int) (*entity.ProcessDefinition, error) {
	query := `
		SELECT body FROM published_definitions
		WHERE tenant_id = ? AND id = ? AND (? = 0 OR version = ?)
		ORDER BY version DESC
		LIMIT 1
	`

	var body string
	err := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx, query, tenantID, id, version, version).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("published definition", id)
	}
	if err != nil {
		r.logger.Error("Failed to get published definition",
			zap.String("definition_id", id),
			zap.Int("version", version),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get published definition: %w", err)
	}

	var def entity.ProcessDefinition
	if err := json.Unmarshal([]byte(body), &def); err != nil {
		return nil, fmt.Errorf("failed to decode published definition %s: %w", id, err)
	}
	return &def, nil
}
