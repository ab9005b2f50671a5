package journey

import "fmt"

// Event is something that can move a journey between stages
type Event string

const (
	EventAccept           Event = "accept"
	EventDecline          Event = "decline"
	EventExpire           Event = "expire"
	EventProposeMeeting   Event = "propose_meeting"
	EventMeetingAccepted  Event = "meeting_accepted"
	EventMeetingFailed    Event = "meeting_failed" // declined or expired, retry budget left
	EventMeetingExhausted Event = "meeting_exhausted"
	EventMeetingCompleted Event = "meeting_completed"
	EventFeedbackClosed   Event = "feedback_closed"
)

// transitionTable is the full legal transition graph. Anything absent
// here is illegal; Declined and Expired are reachable from every
// non-terminal stage via the decline/expire rows.
var transitionTable = map[Stage]map[Event]Stage{
	StageProposed: {
		EventAccept:  StageMutualMatch,
		EventDecline: StageDeclined,
		EventExpire:  StageExpired,
	},
	StageMutualMatch: {
		// Entering mutual_match sets both consent flags, so the move to
		// guided_conversation is immediate; the row exists for the
		// automatic follow-up transition
		EventAccept:  StageGuidedConversation,
		EventDecline: StageDeclined,
		EventExpire:  StageExpired,
	},
	StageGuidedConversation: {
		EventProposeMeeting: StageMeetingProposed,
		EventDecline:        StageDeclined,
		EventExpire:         StageExpired,
	},
	StageMeetingProposed: {
		EventMeetingAccepted:  StageMeetingConfirmed,
		EventMeetingFailed:    StageGuidedConversation,
		EventMeetingExhausted: StageExpired,
		EventDecline:          StageDeclined,
		EventExpire:           StageExpired,
	},
	StageMeetingConfirmed: {
		EventMeetingCompleted: StagePostMeetingFeedback,
		EventDecline:          StageDeclined,
		EventExpire:           StageExpired,
	},
	StagePostMeetingFeedback: {
		EventFeedbackClosed: StageOngoing,
		EventDecline:        StageDeclined,
		EventExpire:         StageExpired,
	},
}

// Next applies the transition table. It is a pure function of
// (stage, event).
func Next(stage Stage, event Event) (Stage, error) {
	row, ok := transitionTable[stage]
	if !ok {
		return "", fmt.Errorf("%w: %q has no outgoing transitions", ErrIllegalTransition, stage)
	}
	next, ok := row[event]
	if !ok {
		return "", fmt.Errorf("%w: %q does not accept %q", ErrIllegalTransition, stage, event)
	}
	return next, nil
}

// CanAccept reports whether the event is legal in the stage
func CanAccept(stage Stage, event Event) bool {
	_, err := Next(stage, event)
	return err == nil
}
