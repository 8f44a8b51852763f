package pet

import "fmt"

// PetStatus is the lifecycle state of a listing.
type PetStatus string

const (
	StatusListed    PetStatus = "listed"
	StatusWithdrawn PetStatus = "withdrawn"
)

var validTransitions = map[PetStatus][]PetStatus{
	StatusListed:    {StatusWithdrawn},
	StatusWithdrawn: {},
}

// IsValid returns true if the status is a recognized pet status.
func (s PetStatus) IsValid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo returns true if moving from s to target is allowed.
func (s PetStatus) CanTransitionTo(target PetStatus) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// String returns the string representation of the status.
func (s PetStatus) String() string { return string(s) }

// ParsePetStatus converts a string to a PetStatus.
func ParsePetStatus(s string) (PetStatus, error) {
	status := PetStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid pet status: %s", s)
	}
	return status, nil
}
