package workflow

// State is a lifecycle state of a match candidate or an invoice
type State string

const (
	// Match candidate lifecycle
	StateProposed  State = "PROPOSED"
	StateConfirmed State = "CONFIRMED"
	StateRejected  State = "REJECTED"

	// Invoice lifecycle
	StateOpen      State = "OPEN"
	StateMatched   State = "MATCHED"
	StatePaid      State = "PAID"
	StateCancelled State = "CANCELLED"
)

// IsTerminal returns true if no further transitions leave the state
func (s State) IsTerminal() bool {
	switch s {
	case StateConfirmed, StateRejected, StatePaid, StateCancelled:
		return true
	default:
		return false
	}
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state belongs to a known lifecycle
func (s State) IsValid() bool {
	switch s {
	case StateProposed, StateConfirmed, StateRejected,
		StateOpen, StateMatched, StatePaid, StateCancelled:
		return true
	default:
		return false
	}
}
