package workflows

import "fmt"

// StateMachine enforces status transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from an explicit transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	allowed := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		allowed[from] = append([]string(nil), to...)
	}
	return &StateMachine{allowedTransitions: allowed}
}

// NewCertificateStateMachine creates the certificate lifecycle:
// pending -> generated | failed, and generated | failed -> archived
func NewCertificateStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"pending":   {"generated", "failed"},
		"generated": {"archived"},
		"failed":    {"archived"},
		"archived":  {},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// Transition returns an error when from -> to is not allowed
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether no transition leaves the status
func (sm *StateMachine) IsTerminal(status string) bool {
	return len(sm.GetAllowedTransitions(status)) == 0
}
