package port

import (
	"context"
	"io"
	"time"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// CaseLocker serializes writers to one case across processes
type CaseLocker interface {
	// Lock blocks until the case lock is held or ctx is done.
	// The returned function releases the lock.
	Lock(ctx context.Context, tenantID, caseID string) (unlock func(context.Context) error, err error)
}

// Notifier forwards a case summary to an outbound channel
type Notifier interface {
	Notify(ctx context.Context, summary *entity.CaseSummary) error
}

// SummaryWriter turns a structured summary into a short human message
type SummaryWriter interface {
	WriteMessage(ctx context.Context, summary *entity.CaseSummary) (string, error)
}

// AuditExporter renders a case's audit trail as a downloadable document
type AuditExporter interface {
	ContentType() string
	Export(w io.Writer, c *entity.Case, entries []entity.AuditEntry) error
}

// Metrics records engine outcomes
type Metrics interface {
	ObserveTransition(tenantID, action, from, to string, d time.Duration)
	ObserveRejection(tenantID, action, state, kind string)
	ObserveSubjectMove(tenantID, definitionID string)
}
