package port

import (
	"context"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// Every repository is scoped by tenant. A lookup for an id that exists under a
// different tenant returns apperr.ErrNotFound.

// DefinitionRepository defines persistence operations for ProcessDefinition.
// Save and Get address the working copy authors edit. Published versions are
// kept as separate snapshots keyed by version and are what subjects run on.
type DefinitionRepository interface {
	// Save inserts or replaces the working copy
	Save(ctx context.Context, def *entity.ProcessDefinition) error
	Get(ctx context.Context, tenantID, id string) (*entity.ProcessDefinition, error)
	List(ctx context.Context, tenantID string) ([]*entity.ProcessDefinition, error)
	// SavePublished stores def as the snapshot of def.Version
	SavePublished(ctx context.Context, def *entity.ProcessDefinition) error
	// GetPublished returns the snapshot of version, or the highest published
	// version when version is 0. It returns apperr.ErrNotFound when absent.
	GetPublished(ctx context.Context, tenantID, id string, version int) (*entity.ProcessDefinition, error)
}

// SubjectStateRepository defines persistence operations for SubjectWorkflowState
type SubjectStateRepository interface {
	// Save inserts or replaces the state keyed by tenant, definition and subject
	Save(ctx context.Context, state *entity.SubjectWorkflowState) error
	Get(ctx context.Context, tenantID, definitionID, subjectID string) (*entity.SubjectWorkflowState, error)
	ListByDefinition(ctx context.Context, tenantID, definitionID string) ([]*entity.SubjectWorkflowState, error)
}

// CaseRepository defines persistence operations for Case
type CaseRepository interface {
	Create(ctx context.Context, c *entity.Case) error
	Get(ctx context.Context, tenantID, id string) (*entity.Case, error)
	// Update stores c only if the stored version still equals expectedVersion,
	// otherwise it returns apperr.ErrConflict
	Update(ctx context.Context, c *entity.Case, expectedVersion int) error
	List(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Case, error)
}

// AuditRepository defines the append-only case audit trail
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	// ListByCase returns entries ordered by sequence
	ListByCase(ctx context.Context, tenantID, caseID string) ([]entity.AuditEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
