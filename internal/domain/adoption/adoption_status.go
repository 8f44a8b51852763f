package adoption

import "fmt"

// AdoptionStatus is the state of one application.
type AdoptionStatus string

const (
	StatusActive    AdoptionStatus = "active"
	StatusApproved  AdoptionStatus = "approved"
	StatusCancelled AdoptionStatus = "cancelled"
)

// validTransitions defines the application state machine. Approved and
// cancelled are terminal.
var validTransitions = map[AdoptionStatus][]AdoptionStatus{
	StatusActive:    {StatusApproved, StatusCancelled},
	StatusApproved:  {},
	StatusCancelled: {},
}

// IsValid returns true if the status is a recognized adoption status.
func (s AdoptionStatus) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s AdoptionStatus) CanTransitionTo(target AdoptionStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s AdoptionStatus) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	return !exists || len(allowed) == 0
}

// String returns the string representation of the status.
func (s AdoptionStatus) String() string { return string(s) }

// ParseAdoptionStatus converts a string to an AdoptionStatus.
func ParseAdoptionStatus(s string) (AdoptionStatus, error) {
	status := AdoptionStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid adoption status: %s", s)
	}
	return status, nil
}
