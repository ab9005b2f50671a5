package journey

// DTOs for API requests

type CreateJourneyDTO struct {
	OtherUserID int64 `json:"other_user_id" validate:"required"`
}

type RespondDTO struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

type ProposeMeetingDTO struct {
	ProposedTime string `json:"proposed_time" validate:"required"`
	Location     string `json:"location" validate:"required,min=2,max=200"`
}

type RespondToMeetingDTO struct {
	Decision string `json:"decision" validate:"required,oneof=accept decline"`
}

type SubmitFeedbackDTO struct {
	Rating          int    `json:"rating" validate:"required,min=1,max=5"`
	Comment         string `json:"comment" validate:"omitempty,max=1000"`
	WantsToContinue bool   `json:"wants_to_continue"`
}
