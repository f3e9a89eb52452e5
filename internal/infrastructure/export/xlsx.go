// Package export renders a case's audit trail as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/application/port"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

const (
	caseSheet  = "Case"
	auditSheet = "Audit"
)

var auditHeader = []interface{}{"Sequence", "Timestamp", "Action", "Actor ID", "Actor Name", "From", "To", "Snapshot"}

// XLSXExporter implements port.AuditExporter
type XLSXExporter struct {
	logger *zap.Logger
}

// NewXLSXExporter creates a spreadsheet exporter
func NewXLSXExporter(logger *zap.Logger) *XLSXExporter {
	return &XLSXExporter{logger: logger}
}

// ContentType returns the xlsx MIME type
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Export writes a workbook with a case overview sheet and one audit row per entry
func (e *XLSXExporter) Export(w io.Writer, c *entity.Case, entries []entity.AuditEntry) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			e.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	if err := f.SetSheetName("Sheet1", caseSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	overview := [][]interface{}{
		{"Case ID", c.ID},
		{"Tenant", c.TenantID},
		{"Patient ID", c.PatientID},
		{"Patient", c.PatientName},
		{"State", c.CurrentState},
		{"Version", c.Version},
		{"Opened", c.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if c.ClosedAt != nil {
		overview = append(overview, []interface{}{"Closed", c.ClosedAt.UTC().Format(time.RFC3339)})
	}
	for i, row := range overview {
		if err := e.setRow(f, caseSheet, i+1, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(auditSheet); err != nil {
		return fmt.Errorf("failed to create audit sheet: %w", err)
	}
	if err := e.setRow(f, auditSheet, 1, auditHeader); err != nil {
		return err
	}
	for i, entry := range entries {
		row := []interface{}{
			entry.Sequence,
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.Action,
			entry.Actor.ID,
			entry.Actor.Name,
			entry.FromState,
			entry.ToState,
			string(entry.Snapshot),
		}
		if err := e.setRow(f, auditSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(auditSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func (e *XLSXExporter) setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

var _ port.AuditExporter = (*XLSXExporter)(nil)
