package workflow

import (
	"context"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
)

// OpenCaseRequest carries the fields needed to open a discharge case
type OpenCaseRequest struct {
	TenantID    string
	PatientID   string
	PatientName string
	Contact     entity.Contact
}

// CaseEngine orchestrates the discharge case lifecycle
type CaseEngine interface {
	// OpenCase creates a case in the initial state
	OpenCase(ctx context.Context, req OpenCaseRequest) (*entity.Case, error)

	// Apply runs one action against the stored case. The state change and its
	// audit entry commit together or not at all.
	Apply(ctx context.Context, tenantID, caseID string, cmd Command) (*Result, error)

	// GetCase returns the case with its full audit history
	GetCase(ctx context.Context, tenantID, caseID string) (*entity.Case, error)

	// ListCases returns a page of cases for a tenant
	ListCases(ctx context.Context, tenantID string, limit, offset int) ([]*entity.Case, error)

	// PermittedActions lists the actions the case accepts now
	PermittedActions(ctx context.Context, tenantID, caseID string) ([]domainwf.Action, error)

	// Summary returns the outbound read model for the case
	Summary(ctx context.Context, tenantID, caseID string) (*entity.CaseSummary, error)
}
