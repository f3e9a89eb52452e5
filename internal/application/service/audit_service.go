package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// CaseReader loads a case with its audit history
type CaseReader interface {
	GetCase(ctx context.Context, tenantID, caseID string) (*entity.Case, error)
}

// AuditService exports a case's audit trail
type AuditService interface {
	ContentType() string
	ExportCase(ctx context.Context, tenantID, caseID string, w io.Writer) error
}

type auditServiceImpl struct {
	cases    CaseReader
	exporter port.AuditExporter
	logger   Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(cases CaseReader, exporter port.AuditExporter, logger Logger) AuditService {
	return &auditServiceImpl{
		cases:    cases,
		exporter: exporter,
		logger:   logger,
	}
}

// ContentType returns the MIME type of the exported document
func (s *auditServiceImpl) ContentType() string {
	return s.exporter.ContentType()
}

// ExportCase writes the audit trail of one case to w
func (s *auditServiceImpl) ExportCase(ctx context.Context, tenantID, caseID string, w io.Writer) error {
	c, err := s.cases.GetCase(ctx, tenantID, caseID)
	if err != nil {
		return err
	}

	if err := s.exporter.Export(w, c, c.AuditHistory); err != nil {
		s.logger.Error("Failed to export audit trail", "error", err, "tenant_id", tenantID, "case_id", caseID)
		return fmt.Errorf("export audit trail: %w", err)
	}

	s.logger.Info("Audit trail exported", "tenant_id", tenantID, "case_id", caseID, "entries", len(c.AuditHistory))
	return nil
}
