package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/discharge-planner/internal/domain/apperr"
	"github.com/garyjia/discharge-planner/internal/domain/entity"
)

// GuardFlag requires a risk source and a numeric score
func GuardFlag(_ context.Context, req *Request) error {
	p, err := payloadAs[FlagPayload](req)
	if err != nil {
		return err
	}
	var missing []string
	if strings.TrimSpace(p.RiskSource) == "" {
		missing = append(missing, "riskSource is required")
	}
	if p.Score == nil {
		missing = append(missing, "score is required")
	}
	if len(missing) > 0 {
		return apperr.Validation(req.Action.String(), missing...)
	}
	return nil
}

// RecordRisk stores the screening result on the case
func RecordRisk(_ context.Context, req *Request) error {
	p, err := payloadAs[FlagPayload](req)
	if err != nil {
		return err
	}
	req.Case.Risk = &entity.RiskFlag{Source: p.RiskSource, Score: *p.Score, FlaggedAt: req.At}
	return nil
}

// GuardOrders requires the ordering clinician
func GuardOrders(_ context.Context, req *Request) error {
	p, err := payloadAs[OrdersPayload](req)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.ClinicianID) == "" {
		return apperr.Validation(req.Action.String(), "clinicianId is required")
	}
	return nil
}

// RecordOrders stores the order on the case
func RecordOrders(_ context.Context, req *Request) error {
	p, err := payloadAs[OrdersPayload](req)
	if err != nil {
		return err
	}
	req.Case.Orders = &entity.Orders{ClinicianID: p.ClinicianID, Notes: p.Notes, OrderedAt: req.At}
	return nil
}

// GuardPacStart only checks the payload shape
func GuardPacStart(_ context.Context, req *Request) error {
	_, err := payloadAs[PacStartPayload](req)
	return err
}

// RecordPacStart opens a pending consult
func RecordPacStart(_ context.Context, req *Request) error {
	p, err := payloadAs[PacStartPayload](req)
	if err != nil {
		return err
	}
	req.Case.PacConsult = &entity.PacConsult{
		Status:       entity.PacStatusPending,
		ConsultantID: p.ConsultantID,
		Notes:        p.Notes,
		StartedAt:    req.At,
	}
	return nil
}

// GuardPacFinish requires a facility for an accepted consult and forbids one for a rejected consult
func GuardPacFinish(_ context.Context, req *Request) error {
	p, err := payloadAs[PacFinishPayload](req)
	if err != nil {
		return err
	}
	facility := strings.TrimSpace(p.FacilityID)
	switch p.Status {
	case entity.PacStatusAccepted:
		if facility == "" {
			return apperr.Validation(req.Action.String(), "facilityId is required when status is accepted")
		}
	case entity.PacStatusRejected:
		if facility != "" {
			return apperr.Validation(req.Action.String(), "facilityId must be empty when status is rejected")
		}
	default:
		return apperr.Validation(req.Action.String(), fmt.Sprintf("status must be accepted or rejected, got %q", p.Status))
	}
	return nil
}

// ApplyPacOutcome closes the consult and, when accepted, overwrites the placement
// with a transfer to the accepting facility
func ApplyPacOutcome(_ context.Context, req *Request) error {
	p, err := payloadAs[PacFinishPayload](req)
	if err != nil {
		return err
	}
	c := req.Case

	if p.Status == entity.PacStatusAccepted {
		if c.Placement == nil {
			return apperr.Automation(c.CurrentState, req.Action.String(), "no placement to update with accepting facility")
		}
		c.Placement = &entity.Placement{
			Type:     entity.PlacementTransfer,
			Transfer: &entity.Facility{Name: strings.TrimSpace(p.FacilityID)},
		}
	}

	finished := req.At
	if c.PacConsult == nil {
		c.PacConsult = &entity.PacConsult{StartedAt: req.At}
	}
	c.PacConsult.Status = p.Status
	c.PacConsult.FacilityID = strings.TrimSpace(p.FacilityID)
	c.PacConsult.FinishedAt = &finished
	if p.Notes != "" {
		c.PacConsult.Notes = p.Notes
	}
	return nil
}

// GuardReferral requires both placement and assessment
func GuardReferral(_ context.Context, req *Request) error {
	if _, err := payloadAs[ReferralPayload](req); err != nil {
		return err
	}
	var missing []string
	if req.Case.Placement == nil {
		missing = append(missing, "placement is required before referral")
	}
	if req.Case.Assessment == nil {
		missing = append(missing, "assessment is required before referral")
	}
	if len(missing) > 0 {
		return apperr.Validation(req.Action.String(), missing...)
	}
	return nil
}

// RecordReferral freezes the placement the referral was sent with
func RecordReferral(_ context.Context, req *Request) error {
	p, err := payloadAs[ReferralPayload](req)
	if err != nil {
		return err
	}
	req.Case.Referral = &entity.Referral{
		Placement: *req.Case.Placement.Clone(),
		Notes:     p.Notes,
		SentAt:    req.At,
	}
	return nil
}

// GuardClose only checks the payload shape
func GuardClose(_ context.Context, req *Request) error {
	_, err := payloadAs[ClosePayload](req)
	return err
}

// MarkClosed stamps the closing time
func MarkClosed(_ context.Context, req *Request) error {
	closed := req.At
	req.Case.ClosedAt = &closed
	return nil
}

// GuardSuspend only checks the payload shape
func GuardSuspend(_ context.Context, req *Request) error {
	_, err := payloadAs[SuspendPayload](req)
	return err
}

// SnapshotState records the state Resume returns to
func SnapshotState(_ context.Context, req *Request) error {
	Snapshot(req.Case)
	return nil
}

// GuardResume only checks the payload shape
func GuardResume(_ context.Context, req *Request) error {
	_, err := payloadAs[ResumePayload](req)
	return err
}

// DropSnapshot clears the recorded state
func DropSnapshot(_ context.Context, req *Request) error {
	ClearSnapshot(req.Case)
	return nil
}

// GuardTerminate requires transfer details if and only if the type is transfer
func GuardTerminate(_ context.Context, req *Request) error {
	p, err := payloadAs[TerminatePayload](req)
	if err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(p.Type) == "":
		return apperr.Validation(req.Action.String(), "termination type is required")
	case p.Type == entity.TerminationTransfer && p.TransferDetails == nil:
		return apperr.Validation(req.Action.String(), "transferDetails is required when type is transfer")
	case p.Type != entity.TerminationTransfer && p.TransferDetails != nil:
		return apperr.Validation(req.Action.String(), fmt.Sprintf("transferDetails is not allowed when type is %s", p.Type))
	}
	return nil
}

// RecordTermination ends the case and discards any suspension snapshot
func RecordTermination(_ context.Context, req *Request) error {
	p, err := payloadAs[TerminatePayload](req)
	if err != nil {
		return err
	}
	t := &entity.Termination{Type: p.Type, Reason: p.Reason, TerminatedAt: req.At}
	if p.TransferDetails != nil {
		td := *p.TransferDetails
		t.TransferDetails = &td
	}
	req.Case.Termination = t
	ClearSnapshot(req.Case)
	closed := req.At
	req.Case.ClosedAt = &closed
	return nil
}

var placementTypes = map[string]bool{
	entity.PlacementHome:         true,
	entity.PlacementTransfer:     true,
	entity.PlacementLongTermCare: true,
}

// GuardPlacement validates a placement edit
func GuardPlacement(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdatePlacementPayload](req)
	if err != nil {
		return err
	}
	if p.Placement == nil {
		return apperr.Validation(req.Action.String(), "placement is required")
	}
	if !placementTypes[p.Placement.Type] {
		return apperr.Validation(req.Action.String(), fmt.Sprintf("unknown placement type %q", p.Placement.Type))
	}
	if p.Placement.Type == entity.PlacementTransfer && (p.Placement.Transfer == nil || strings.TrimSpace(p.Placement.Transfer.Name) == "") {
		return apperr.Validation(req.Action.String(), "transfer placement requires a facility name")
	}
	return nil
}

// ReplacePlacement stores a copy of the new placement
func ReplacePlacement(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdatePlacementPayload](req)
	if err != nil {
		return err
	}
	req.Case.Placement = p.Placement.Clone()
	return nil
}

// GuardAssessment validates an assessment edit
func GuardAssessment(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdateAssessmentPayload](req)
	if err != nil {
		return err
	}
	if p.Assessment == nil {
		return apperr.Validation(req.Action.String(), "assessment is required")
	}
	if strings.TrimSpace(p.Assessment.Tool) == "" {
		return apperr.Validation(req.Action.String(), "assessment tool is required")
	}
	return nil
}

// ReplaceAssessment stores a copy of the new assessment
func ReplaceAssessment(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdateAssessmentPayload](req)
	if err != nil {
		return err
	}
	a := *p.Assessment
	if a.AssessedAt.IsZero() {
		a.AssessedAt = req.At
	}
	req.Case.Assessment = &a
	return nil
}

// GuardTodos requires an id and title on every item and unique ids
func GuardTodos(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdateTodosPayload](req)
	if err != nil {
		return err
	}
	var problems []string
	seen := make(map[string]bool, len(p.Todos))
	for i, item := range p.Todos {
		if strings.TrimSpace(item.ID) == "" {
			problems = append(problems, fmt.Sprintf("todos[%d].id is required", i))
		} else if seen[item.ID] {
			problems = append(problems, fmt.Sprintf("todos[%d].id %q is duplicated", i, item.ID))
		}
		seen[item.ID] = true
		if strings.TrimSpace(item.Title) == "" {
			problems = append(problems, fmt.Sprintf("todos[%d].title is required", i))
		}
	}
	if len(problems) > 0 {
		return apperr.Validation(req.Action.String(), problems...)
	}
	return nil
}

// ReplaceTodos stores a copy of the new to-do list
func ReplaceTodos(_ context.Context, req *Request) error {
	p, err := payloadAs[UpdateTodosPayload](req)
	if err != nil {
		return err
	}
	req.Case.Todos = entity.CloneTodos(p.Todos)
	return nil
}
