package registrations

import (
	"errors"
	"fmt"
	"time"

	"github.com/mapease/backend/internal/models"
)

var (
	// ErrEventNotFound means the event is missing, inactive, or belongs to a
	// different tenant than the resolved one. The three cases are deliberately
	// indistinguishable to callers.
	ErrEventNotFound = errors.New("event not found")
	// ErrRegistrationNotFound means no registration matches the id within the
	// resolved tenant's event.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrAlreadyApproved means the registration is APPROVED with a live
	// credential; approving again is reported, not silently absorbed, so
	// callers can detect double submission.
	ErrAlreadyApproved = errors.New("registration already approved")
	// ErrCredentialNotFound means no approved registration in the event
	// matches the presented credential.
	ErrCredentialNotFound = errors.New("invalid credential or registration not approved")
)

// DuplicateError reports a second registration for the same (event, email)
// pair. Existing is the unchanged original record.
type DuplicateError struct {
	Existing *models.Registration
}

func (e *DuplicateError) Error() string {
	return "already registered for this event"
}

// FinalizedError reports a transition attempt on a registration that has
// already left PENDING.
type FinalizedError struct {
	Status models.RegistrationStatus
}

func (e *FinalizedError) Error() string {
	return fmt.Sprintf("registration already finalized as %s", e.Status)
}

// ConsumedError reports a scan of a credential that was already consumed.
// ConsumedAt is the winning scan's timestamp.
type ConsumedError struct {
	ConsumedAt time.Time
}

func (e *ConsumedError) Error() string {
	return "credential already consumed at " + e.ConsumedAt.Format(time.RFC3339)
}
