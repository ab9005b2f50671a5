package journey

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrJourneyNotFound     = errors.New("journey not found")
	ErrMeetingNotFound     = errors.New("meeting request not found")
	ErrNotParticipant      = errors.New("user is not part of this journey")
	ErrIllegalTransition   = errors.New("illegal stage transition")
	ErrVersionConflict     = errors.New("journey version conflict")
	ErrDuplicateFeedback   = errors.New("feedback already submitted for this meeting")
	ErrInvalidMeetingState = errors.New("meeting request is not in the required state")
	ErrSelfJourney         = errors.New("cannot create a journey with yourself")
)

// AlreadyExistsError is returned when a non-terminal journey already
// exists for the unordered pair; it points at the existing journey.
type AlreadyExistsError struct {
	ExistingID uuid.UUID
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("journey already exists for this pair: %s", e.ExistingID)
}

// StateConflictError is returned when a requested transition does not
// fit the current stage. Requests whose intent was already satisfied by
// a concurrent transition succeed instead of raising this.
type StateConflictError struct {
	Stage Stage
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict: journey is in stage %q", e.Stage)
}
