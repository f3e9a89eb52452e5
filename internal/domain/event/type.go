package event

// Type identifies the type of domain event
type Type string

const (
	TypeCaseOpened          Type = "case.opened"
	TypeCaseTransitioned    Type = "case.transitioned"
	TypeDefinitionPublished Type = "definition.published"
	TypeSubjectEntered      Type = "subject.entered"
	TypeSubjectAdvanced     Type = "subject.advanced"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeCaseOpened,
		TypeCaseTransitioned,
		TypeDefinitionPublished,
		TypeSubjectEntered,
		TypeSubjectAdvanced:
		return true
	default:
		return false
	}
}
