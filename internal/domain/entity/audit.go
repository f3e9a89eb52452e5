package entity

import (
	"encoding/json"
	"time"
)

// AuditEntry is one applied action in a case's append-only trail.
// Snapshot holds the JSON encoding of the action payload at the time it was applied.
type AuditEntry struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId"`
	CaseID    string          `json:"caseId"`
	Sequence  int             `json:"sequence"`
	Timestamp time.Time       `json:"timestamp"`
	Action    string          `json:"action"`
	Actor     Actor           `json:"actor"`
	FromState string          `json:"fromState"`
	ToState   string          `json:"toState"`
	Snapshot  json.RawMessage `json:"snapshot,omitempty"`
}

// Clone returns a copy whose snapshot bytes are not shared
func (e AuditEntry) Clone() AuditEntry {
	if e.Snapshot != nil {
		e.Snapshot = append(json.RawMessage(nil), e.Snapshot...)
	}
	return e
}
