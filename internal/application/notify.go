package application

import (
	"time"

	"github.com/google/uuid"

	adoptionDomain "github.com/Kilat-Pet-Delivery/service-adoption/internal/domain/adoption"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/notification"
)

func adoptionEvent(t notification.EventType, recipient uuid.UUID, petName string, a *adoptionDomain.Adoption) notification.Event {
	return notification.Event{
		Type:        t,
		RecipientID: recipient,
		Payload: notification.Payload{
			PetID:       a.PetID(),
			PetName:     petName,
			AdoptionID:  a.ID(),
			ApplicantID: a.ApplicantID(),
			Reason:      a.CancelReason(),
			OccurredAt:  time.Now().UTC(),
		},
	}
}

// rejectionEvents addresses one application_rejected event to each applicant
// in cancelled, skipping skip.
func rejectionEvents(petName string, cancelled []*adoptionDomain.Adoption, skip uuid.UUID) []notification.Event {
	events := make([]notification.Event, 0, len(cancelled))
	for _, a := range cancelled {
		if a.ApplicantID() == skip {
			continue
		}
		events = append(events, adoptionEvent(notification.ApplicationRejected, a.ApplicantID(), petName, a))
	}
	return events
}
