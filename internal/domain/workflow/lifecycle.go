package workflow

var (
	matchLifecycle   StateMachineBuilder
	invoiceLifecycle StateMachineBuilder
)

// Builders call State.IsValid through an interface, which package variable
// initialization order does not track, so the machines are built in init.
func init() {
	matchLifecycle = buildMatchLifecycle()
	invoiceLifecycle = buildInvoiceLifecycle()
}

// A proposal is either confirmed by a user or rejected when a sibling wins.
func buildMatchLifecycle() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateProposed).
		Permit(TriggerConfirm, StateConfirmed).
		Permit(TriggerReject, StateRejected)
	b.Configure(StateConfirmed)
	b.Configure(StateRejected)
	return b
}

// The engine only moves invoices OPEN -> MATCHED. PAID and CANCELLED are set
// by external bookkeeping; they are known states with no exits.
func buildInvoiceLifecycle() StateMachineBuilder {
	b := NewBuilder()
	b.Configure(StateOpen).
		Permit(TriggerMatch, StateMatched)
	b.Configure(StateMatched)
	b.Configure(StatePaid)
	b.Configure(StateCancelled)
	return b
}

// NewMatchLifecycle returns a match candidate state machine positioned at current
func NewMatchLifecycle(current State) (StateMachine, error) {
	return matchLifecycle.Build(current)
}

// NewInvoiceLifecycle returns an invoice state machine positioned at current
func NewInvoiceLifecycle(current State) (StateMachine, error) {
	return invoiceLifecycle.Build(current)
}
