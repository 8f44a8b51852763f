// Package policy is the authorization gate for every lifecycle transition.
// Functions here are pure: they read the actor and a description of the
// target and never touch storage.
package policy

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/auth"
	"github.com/Kilat-Pet-Delivery/service-adoption/internal/common/domain"
)

// Action is a transition a caller asks for.
type Action string

const (
	ActionCreatePet          Action = "createPet"
	ActionEditPet            Action = "editPet"
	ActionWithdrawPet        Action = "withdrawPet"
	ActionApplyForAdoption   Action = "applyForAdoption"
	ActionCancelApplication  Action = "cancelApplication"
	ActionApproveApplication Action = "approveApplication"
	ActionViewApplication    Action = "viewApplication"
	ActionListApplications   Action = "listApplications"
	ActionViewOwnRecords     Action = "viewOwnRecords"
)

// Resource describes the target of an action. Only the fields relevant to the
// action need to be set.
type Resource struct {
	PetOwnerID  uuid.UUID
	ApplicantID uuid.UUID
}

// Authorize returns nil if actor may perform action on res, otherwise a
// Forbidden error naming the reason.
func Authorize(actor *auth.Actor, action Action, res Resource) error {
	if actor == nil || actor.ID == uuid.Nil {
		return domain.NewForbiddenError("authentication required")
	}

	switch action {
	case ActionCreatePet, ActionViewOwnRecords:
		return nil

	case ActionEditPet, ActionWithdrawPet, ActionApproveApplication, ActionListApplications:
		if actor.IsAdmin() || actor.ID == res.PetOwnerID {
			return nil
		}
		return deny(action, "only the pet owner or an admin may do this")

	case ActionApplyForAdoption:
		if actor.ID == res.PetOwnerID {
			return deny(action, "owners cannot apply for their own pet")
		}
		return nil

	case ActionCancelApplication:
		if actor.ID == res.ApplicantID {
			return nil
		}
		return deny(action, "only the applicant may cancel an application")

	case ActionViewApplication:
		if actor.IsAdmin() || actor.ID == res.ApplicantID || actor.ID == res.PetOwnerID {
			return nil
		}
		return deny(action, "only the applicant, the pet owner or an admin may view an application")
	}

	return deny(action, "unknown action")
}

func deny(action Action, reason string) error {
	return domain.NewForbiddenError(fmt.Sprintf("%s denied: %s", action, reason))
}
