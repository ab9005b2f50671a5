package journey

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is one discrete step in a journey's lifecycle
type Stage string

const (
	StageProposed            Stage = "proposed"
	StageMutualMatch         Stage = "mutual_match"
	StageGuidedConversation  Stage = "guided_conversation"
	StageMeetingProposed     Stage = "meeting_proposed"
	StageMeetingConfirmed    Stage = "meeting_confirmed"
	StagePostMeetingFeedback Stage = "post_meeting_feedback"
	StageOngoing             Stage = "ongoing"
	StageDeclined            Stage = "declined"
	StageExpired             Stage = "expired"
)

// Terminal reports whether no further transitions can leave the stage
func (s Stage) Terminal() bool {
	switch s {
	case StageOngoing, StageDeclined, StageExpired:
		return true
	}
	return false
}

// PairConsent records per-participant agreement for one stage
type PairConsent struct {
	User1 bool `json:"user1"`
	User2 bool `json:"user2"`
}

// ConsentLog is the per-stage consent record, stored as JSONB
type ConsentLog map[Stage]PairConsent

func (c ConsentLog) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(ConsentLog{})
	}
	return json.Marshal(c)
}

func (c *ConsentLog) Scan(src interface{}) error {
	if src == nil {
		*c = ConsentLog{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("consent log: unsupported scan type %T", src)
	}
	return json.Unmarshal(b, c)
}

// Journey is the stateful record of a matched pair's progression.
// Participants are stored with User1ID < User2ID so the unordered pair
// is canonical; Version backs the compare-and-swap discipline.
type Journey struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	User1ID        int64      `json:"user1_id" db:"user1_id"`
	User2ID        int64      `json:"user2_id" db:"user2_id"`
	Stage          Stage      `json:"stage" db:"stage"`
	Version        int64      `json:"version" db:"version"`
	Consents       ConsentLog `json:"consents" db:"consents"`
	Deadline       *time.Time `json:"deadline,omitempty" db:"deadline"`
	MeetingRetries int        `json:"meeting_retries" db:"meeting_retries"`
	InitiatedBy    int64      `json:"initiated_by" db:"initiated_by"`
	EndedBy        *int64     `json:"ended_by,omitempty" db:"ended_by"`
	EndReason      *string    `json:"end_reason,omitempty" db:"end_reason"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// HasParticipant reports whether the user belongs to the journey
func (j *Journey) HasParticipant(userID int64) bool {
	return j.User1ID == userID || j.User2ID == userID
}

// OtherParticipant returns the counterpart of the given user
func (j *Journey) OtherParticipant(userID int64) int64 {
	if j.User1ID == userID {
		return j.User2ID
	}
	return j.User1ID
}

// ConsentOf returns the user's consent flag for a stage
func (j *Journey) ConsentOf(stage Stage, userID int64) bool {
	c := j.Consents[stage]
	if j.User1ID == userID {
		return c.User1
	}
	return c.User2
}

// SetConsent records the user's consent for a stage
func (j *Journey) SetConsent(stage Stage, userID int64) {
	if j.Consents == nil {
		j.Consents = ConsentLog{}
	}
	c := j.Consents[stage]
	if j.User1ID == userID {
		c.User1 = true
	} else {
		c.User2 = true
	}
	j.Consents[stage] = c
}

// StageTransition is one append-only history entry. Actor is nil for
// sweep-driven transitions.
type StageTransition struct {
	ID         int64     `json:"id" db:"id"`
	JourneyID  uuid.UUID `json:"journey_id" db:"journey_id"`
	Stage      Stage     `json:"stage" db:"stage"`
	Actor      *int64    `json:"actor,omitempty" db:"actor"`
	OccurredAt time.Time `json:"occurred_at" db:"occurred_at"`
}

// MeetingStatus is the lifecycle of a single meeting request
type MeetingStatus string

const (
	MeetingPending   MeetingStatus = "pending"
	MeetingAccepted  MeetingStatus = "accepted"
	MeetingDeclined  MeetingStatus = "declined"
	MeetingCompleted MeetingStatus = "completed"
	MeetingExpired   MeetingStatus = "expired"
)

// MeetingRequest belongs to exactly one journey
type MeetingRequest struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	JourneyID    uuid.UUID     `json:"journey_id" db:"journey_id"`
	ProposedBy   int64         `json:"proposed_by" db:"proposed_by"`
	ProposedTime time.Time     `json:"proposed_time" db:"proposed_time"`
	Location     string        `json:"location" db:"location"`
	Status       MeetingStatus `json:"status" db:"status"`
	Deadline     time.Time     `json:"deadline" db:"deadline"`
	RespondedAt  *time.Time    `json:"responded_at,omitempty" db:"responded_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// Feedback is one participant's post-meeting report. At most one per
// (meeting request, submitter).
type Feedback struct {
	ID              uuid.UUID `json:"id" db:"id"`
	MeetingID       uuid.UUID `json:"meeting_id" db:"meeting_id"`
	SubmittedBy     int64     `json:"submitted_by" db:"submitted_by"`
	Rating          int       `json:"rating" db:"rating"`
	Comment         string    `json:"comment" db:"comment"`
	WantsToContinue bool      `json:"wants_to_continue" db:"wants_to_continue"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// OrderPair returns the pair in canonical (ascending) order
func OrderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}
