package entity

import "time"

// Placement type constants
const (
	PlacementHome         = "Home"
	PlacementTransfer     = "Transfer"
	PlacementLongTermCare = "LongTermCare"
)

// Termination type constants
const (
	TerminationTransfer = "transfer"
	TerminationDeath    = "death"
	TerminationAMA      = "ama"
	TerminationOther    = "other"
)

// PAC consult status constants
const (
	PacStatusPending  = "pending"
	PacStatusAccepted = "accepted"
	PacStatusRejected = "rejected"
)

// Facility names a destination of care
type Facility struct {
	Name string `json:"name"`
}

// Placement describes where the patient goes after discharge
type Placement struct {
	Type     string    `json:"type"`
	Transfer *Facility `json:"transfer,omitempty"`
	Address  string    `json:"address,omitempty"`
	Notes    string    `json:"notes,omitempty"`
}

// Assessment is the latest discharge-readiness score
type Assessment struct {
	Tool       string    `json:"tool"`
	Score      float64   `json:"score"`
	Level      string    `json:"level,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	AssessedAt time.Time `json:"assessedAt"`
}

// RiskFlag records the screening result that moved the case out of monitoring
type RiskFlag struct {
	Source    string    `json:"source"`
	Score     float64   `json:"score"`
	FlaggedAt time.Time `json:"flaggedAt"`
}

// Orders records the clinician order that starts assessment
type Orders struct {
	ClinicianID string    `json:"clinicianId"`
	Notes       string    `json:"notes,omitempty"`
	OrderedAt   time.Time `json:"orderedAt"`
}

// PacConsult tracks a post-acute care consult
type PacConsult struct {
	Status       string     `json:"status"`
	ConsultantID string     `json:"consultantId,omitempty"`
	FacilityID   string     `json:"facilityId,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Referral records the outbound referral that locks the case
type Referral struct {
	Placement Placement `json:"placement"`
	Notes     string    `json:"notes,omitempty"`
	SentAt    time.Time `json:"sentAt"`
}

// TransferDetails is required when a case terminates by transfer
type TransferDetails struct {
	Facility string `json:"facility"`
	Reason   string `json:"reason,omitempty"`
}

// Termination records why a case ended early
type Termination struct {
	Type            string           `json:"type"`
	Reason          string           `json:"reason,omitempty"`
	TransferDetails *TransferDetails `json:"transferDetails,omitempty"`
	TerminatedAt    time.Time        `json:"terminatedAt"`
}

// TodoItem is an ancillary discharge task
type TodoItem struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	DueAt    *time.Time `json:"dueAt,omitempty"`
	Done     bool       `json:"done"`
	Assignee string     `json:"assignee,omitempty"`
}

// Actor identifies who performed an action
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Contact is the party responsible for the case
type Contact struct {
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Channel string `json:"channel,omitempty"`
	Address string `json:"address,omitempty"`
}

// Case is a single patient's discharge-planning lifecycle.
// Version counts applied actions and equals the length of the audit trail.
type Case struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenantId"`
	PatientID     string       `json:"patientId"`
	PatientName   string       `json:"patientName"`
	CurrentState  string       `json:"currentState"`
	PreviousState string       `json:"previousState,omitempty"`
	Placement     *Placement   `json:"placement,omitempty"`
	Assessment    *Assessment  `json:"assessment,omitempty"`
	Risk          *RiskFlag    `json:"risk,omitempty"`
	Orders        *Orders      `json:"orders,omitempty"`
	PacConsult    *PacConsult  `json:"pacConsult,omitempty"`
	Referral      *Referral    `json:"referral,omitempty"`
	Termination   *Termination `json:"termination,omitempty"`
	Todos         []TodoItem   `json:"todos,omitempty"`
	Contact       Contact      `json:"contact"`
	AuditHistory  []AuditEntry `json:"auditHistory,omitempty"`
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	ClosedAt      *time.Time   `json:"closedAt,omitempty"`
}

// Clone returns a deep copy of the case; no pointer or slice is shared with c
func (c *Case) Clone() *Case {
	out := *c
	if c.Placement != nil {
		out.Placement = c.Placement.Clone()
	}
	if c.Assessment != nil {
		a := *c.Assessment
		out.Assessment = &a
	}
	if c.Risk != nil {
		r := *c.Risk
		out.Risk = &r
	}
	if c.Orders != nil {
		o := *c.Orders
		out.Orders = &o
	}
	if c.PacConsult != nil {
		p := *c.PacConsult
		p.FinishedAt = cloneTime(c.PacConsult.FinishedAt)
		out.PacConsult = &p
	}
	if c.Referral != nil {
		r := *c.Referral
		r.Placement = *c.Referral.Placement.Clone()
		out.Referral = &r
	}
	if c.Termination != nil {
		t := *c.Termination
		if c.Termination.TransferDetails != nil {
			td := *c.Termination.TransferDetails
			t.TransferDetails = &td
		}
		out.Termination = &t
	}
	out.Todos = CloneTodos(c.Todos)
	if c.AuditHistory != nil {
		out.AuditHistory = make([]AuditEntry, len(c.AuditHistory))
		for i, e := range c.AuditHistory {
			out.AuditHistory[i] = e.Clone()
		}
	}
	out.ClosedAt = cloneTime(c.ClosedAt)
	return &out
}

// Clone returns a deep copy of the placement
func (p *Placement) Clone() *Placement {
	out := *p
	if p.Transfer != nil {
		f := *p.Transfer
		out.Transfer = &f
	}
	return &out
}

// CloneTodos deep-copies a to-do list
func CloneTodos(todos []TodoItem) []TodoItem {
	if todos == nil {
		return nil
	}
	out := make([]TodoItem, len(todos))
	for i, t := range todos {
		out[i] = t
		out[i].DueAt = cloneTime(t.DueAt)
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
