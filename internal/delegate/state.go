package delegate

// State is a step of the delegate key handshake
type State int

const (
	StateIdle State = iota
	StateKeyGenerated
	StateMessageConstructed
	StateAwaitingSignature
	StateRegisteringWithBackend
	StateCompleted
	StateFailed
)

var stateNames = [...]string{
	StateIdle:                   "idle",
	StateKeyGenerated:           "key_generated",
	StateMessageConstructed:     "message_constructed",
	StateAwaitingSignature:      "awaiting_signature",
	StateRegisteringWithBackend: "registering_with_backend",
	StateCompleted:              "completed",
	StateFailed:                 "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether no further transition is possible
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
