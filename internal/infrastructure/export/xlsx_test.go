package export

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

func TestXLSXExporter_Export(t *testing.T) {
	t0 := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	closed := t0.Add(48 * time.Hour)
	c := &entity.Case{
		ID:           "case-1",
		TenantID:     "tenant-a",
		PatientID:    "p-1",
		PatientName:  "Ada",
		CurrentState: "S4",
		Version:      2,
		CreatedAt:    t0,
		ClosedAt:     &closed,
	}
	entries := []entity.AuditEntry{
		{Sequence: 1, Timestamp: t0, Action: "FLAG", Actor: entity.Actor{ID: "u1", Name: "Lee"}, FromState: "S0", ToState: "S1", Snapshot: json.RawMessage(`{"score":88}`)},
		{Sequence: 2, Timestamp: t0.Add(time.Hour), Action: "TERMINATE", Actor: entity.Actor{ID: "u2"}, FromState: "S1", ToState: "S4"},
	}

	exporter := NewXLSXExporter(zap.NewNop())
	assert.Contains(t, exporter.ContentType(), "spreadsheetml")

	var buf bytes.Buffer
	require.NoError(t, exporter.Export(&buf, c, entries))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Case", "Audit"}, f.GetSheetList())

	patient, err := f.GetCellValue("Case", "B4")
	require.NoError(t, err)
	assert.Equal(t, "Ada", patient)

	rows, err := f.GetRows("Audit")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Sequence", rows[0][0])
	assert.Equal(t, []string{"1", "2026-02-03T10:00:00Z", "FLAG", "u1", "Lee", "S0", "S1", `{"score":88}`}, rows[1])
	assert.Equal(t, "TERMINATE", rows[2][2])
}

func TestXLSXExporter_EmptyTrail(t *testing.T) {
	c := &entity.Case{ID: "case-2", TenantID: "tenant-a", CurrentState: "S0"}

	var buf bytes.Buffer
	require.NoError(t, NewXLSXExporter(zap.NewNop()).Export(&buf, c, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Audit")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
