// Package notification shapes lifecycle events and hands them to a sink.
// Delivery to end users happens downstream of the sink.
package notification

import (
	"time"

	"github.com/google/uuid"
)

// TopicAdoptionEvents is the Kafka topic lifecycle events are published to.
const TopicAdoptionEvents = "adoption.events"

// EventType names a lifecycle notification.
type EventType string

const (
	NewApplication      EventType = "new_application"
	ApplicationApproved EventType = "application_approved"
	ApplicationRejected EventType = "application_rejected"
)

// CloudEventType returns the dotted CloudEvents type for t.
func (t EventType) CloudEventType() string {
	return "adoption." + string(t)
}

// Event is one notification addressed to one user.
type Event struct {
	Type        EventType `json:"type"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Payload     Payload   `json:"payload"`
}

// Payload is what the recipient needs to render the notification.
type Payload struct {
	PetID       uuid.UUID `json:"pet_id"`
	PetName     string    `json:"pet_name"`
	AdoptionID  uuid.UUID `json:"adoption_id"`
	ApplicantID uuid.UUID `json:"applicant_id"`
	Reason      string    `json:"reason,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
