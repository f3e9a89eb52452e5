package entity

import "time"

// CaseSummary is the read model handed to outbound channels after a transition
type CaseSummary struct {
	CaseID       string     `json:"caseId"`
	TenantID     string     `json:"tenantId"`
	PatientName  string     `json:"patientName"`
	CurrentState string     `json:"currentState"`
	StateLabel   string     `json:"stateLabel"`
	NextAction   string     `json:"nextAction,omitempty"`
	DueDate      *time.Time `json:"dueDate,omitempty"`
	Message      string     `json:"message"`
	Contact      Contact    `json:"contact"`
}
