package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// FlagPayload carries the screening result
type FlagPayload struct {
	RiskSource string   `json:"riskSource"`
	Score      *float64 `json:"score"`
}

// OrdersPayload carries the ordering clinician
type OrdersPayload struct {
	ClinicianID string `json:"clinicianId"`
	Notes       string `json:"notes,omitempty"`
}

// PacStartPayload carries consult metadata
type PacStartPayload struct {
	ConsultantID string `json:"consultantId,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// PacFinishPayload carries the consult outcome
type PacFinishPayload struct {
	Status     string `json:"status"`
	FacilityID string `json:"facilityId,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// ReferralPayload carries referral notes
type ReferralPayload struct {
	Notes string `json:"notes,omitempty"`
}

// ClosePayload carries the closing note
type ClosePayload struct {
	Notes string `json:"notes,omitempty"`
}

// SuspendPayload carries the suspension reason
type SuspendPayload struct {
	Reason string `json:"reason,omitempty"`
}

// ResumePayload carries the resumption note
type ResumePayload struct {
	Notes string `json:"notes,omitempty"`
}

// TerminatePayload carries the termination type and transfer details
type TerminatePayload struct {
	Type            string                  `json:"type"`
	Reason          string                  `json:"reason,omitempty"`
	TransferDetails *entity.TransferDetails `json:"transferDetails,omitempty"`
}

// UpdatePlacementPayload replaces the placement
type UpdatePlacementPayload struct {
	Placement *entity.Placement `json:"placement"`
}

// UpdateAssessmentPayload replaces the assessment
type UpdateAssessmentPayload struct {
	Assessment *entity.Assessment `json:"assessment"`
}

// UpdateTodosPayload replaces the to-do list
type UpdateTodosPayload struct {
	Todos []entity.TodoItem `json:"todos"`
}

func newPayload(action Action) (any, bool) {
	switch action {
	case ActionFlag:
		return &FlagPayload{}, true
	case ActionOrders:
		return &OrdersPayload{}, true
	case ActionPacStart:
		return &PacStartPayload{}, true
	case ActionPacFinish:
		return &PacFinishPayload{}, true
	case ActionReferral:
		return &ReferralPayload{}, true
	case ActionClose:
		return &ClosePayload{}, true
	case ActionSuspend:
		return &SuspendPayload{}, true
	case ActionResume:
		return &ResumePayload{}, true
	case ActionTerminate:
		return &TerminatePayload{}, true
	case ActionUpdatePlacement:
		return &UpdatePlacementPayload{}, true
	case ActionUpdateAssessment:
		return &UpdateAssessmentPayload{}, true
	case ActionUpdateTodos:
		return &UpdateTodosPayload{}, true
	default:
		return nil, false
	}
}

// DecodePayload parses raw JSON into the typed payload for action taken from
// state. An empty body decodes to the zero payload.
func DecodePayload(state State, action Action, raw json.RawMessage) (any, error) {
	payload, ok := newPayload(action)
	if !ok {
		return nil, apperr.InvalidTransition(state.String(), action.String(), "unknown action")
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return payload, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, apperr.ValidationAt(state.String(), action.String(), fmt.Sprintf("malformed payload: %v", err))
	}
	return payload, nil
}

// payloadAs extracts a typed payload, accepting either a value or a pointer.
// A nil payload yields the zero value.
func payloadAs[T any](req *Request) (T, error) {
	var zero T
	switch p := req.Payload.(type) {
	case nil:
		return zero, nil
	case T:
		return p, nil
	case *T:
		if p == nil {
			return zero, nil
		}
		return *p, nil
	default:
		return zero, apperr.Validation(req.Action.String(), fmt.Sprintf("payload of type %T does not match action", req.Payload))
	}
}
