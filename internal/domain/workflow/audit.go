package workflow

import (
	"encoding/json"
	"fmt"

	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// NewAuditEntry builds the trail entry for a successful action. The payload is
// captured as its JSON encoding so later changes to the caller's value cannot reach it.
func NewAuditEntry(id string, req *Request, from, to State, sequence int) (*entity.AuditEntry, error) {
	var snapshot json.RawMessage
	if req.Payload != nil {
		b, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot %s payload: %w", req.Action, err)
		}
		snapshot = b
	}

	return &entity.AuditEntry{
		ID:        id,
		TenantID:  req.Case.TenantID,
		CaseID:    req.Case.ID,
		Sequence:  sequence,
		Timestamp: req.At,
		Action:    req.Action.String(),
		Actor:     req.Actor,
		FromState: from.String(),
		ToState:   to.String(),
		Snapshot:  snapshot,
	}, nil
}
