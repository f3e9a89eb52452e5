package workflow

import (
	domainwf "github.com/garyjia/discharge-planner/internal/domain/workflow"
)

// editable configures the three data edits on a state
func editable(c domainwf.StateConfiguration) domainwf.StateConfiguration {
	return c.
		PermitReentry(domainwf.ActionUpdatePlacement, domainwf.GuardPlacement, domainwf.ReplacePlacement).
		PermitReentry(domainwf.ActionUpdateAssessment, domainwf.GuardAssessment, domainwf.ReplaceAssessment).
		PermitReentry(domainwf.ActionUpdateTodos, domainwf.GuardTodos, domainwf.ReplaceTodos)
}

// suspendable configures Suspend and Terminate on a non-terminal, non-suspended state
func suspendable(c domainwf.StateConfiguration) domainwf.StateConfiguration {
	return c.
		PermitIf(domainwf.ActionSuspend, domainwf.StateSuspended, domainwf.GuardSuspend, domainwf.SnapshotState).
		PermitIf(domainwf.ActionTerminate, domainwf.StateTerminated, domainwf.GuardTerminate, domainwf.RecordTermination)
}

// BuildCaseTable creates the discharge case lifecycle table
func BuildCaseTable() *domainwf.Table {
	builder := domainwf.NewBuilder()

	// S0 Monitoring
	editable(suspendable(builder.Configure(domainwf.StateMonitoring).
		PermitIf(domainwf.ActionFlag, domainwf.StateScreened, domainwf.GuardFlag, domainwf.RecordRisk)))

	// S1 Screened
	editable(suspendable(builder.Configure(domainwf.StateScreened).
		PermitIf(domainwf.ActionOrders, domainwf.StateAssessment, domainwf.GuardOrders, domainwf.RecordOrders).
		Block(domainwf.ActionReferral, "referral requires orders and assessment first")))

	// S2 Assessment
	editable(suspendable(builder.Configure(domainwf.StateAssessment).
		PermitIf(domainwf.ActionPacStart, domainwf.StatePacConsult, domainwf.GuardPacStart, domainwf.RecordPacStart).
		PermitIf(domainwf.ActionReferral, domainwf.StateLockedReferral, domainwf.GuardReferral, domainwf.RecordReferral)))

	// S5 PAC consult
	editable(suspendable(builder.Configure(domainwf.StatePacConsult).
		PermitIf(domainwf.ActionPacFinish, domainwf.StateAssessment, domainwf.GuardPacFinish, domainwf.ApplyPacOutcome).
		Block(domainwf.ActionReferral, "finish the PAC consult before referral")))

	// S3 Locked referral: only Close leaves it
	builder.Configure(domainwf.StateLockedReferral).
		PermitIf(domainwf.ActionClose, domainwf.StateClosed, domainwf.GuardClose, domainwf.MarkClosed)

	// E1 Suspended
	editable(builder.Configure(domainwf.StateSuspended).
		PermitDynamic(domainwf.ActionResume, domainwf.ResumeDestination, domainwf.GuardResume, domainwf.DropSnapshot).
		PermitIf(domainwf.ActionTerminate, domainwf.StateTerminated, domainwf.GuardTerminate, domainwf.RecordTermination))

	// S4 Closed and T1 Terminated are terminal states - no outgoing transitions

	return builder.Build()
}
