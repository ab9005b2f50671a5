// internal/notify/service.go

package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/ryvinapp/ryvin-backend/internal/journey"
)

// Service delivers journey updates to both participants over whichever
// channels they have on file. Failures are logged, never surfaced: the
// journey state machine has already committed by the time we run.
type Service struct {
	contacts ContactRepository
	email    EmailProvider
	sms      SMSProvider
}

// NewService creates a new notification service. Either provider may be
// nil, in which case that channel is skipped.
func NewService(contacts ContactRepository, email EmailProvider, sms SMSProvider) *Service {
	return &Service{
		contacts: contacts,
		email:    email,
		sms:      sms,
	}
}

// JourneyStageChanged implements journey.Notifier
func (s *Service) JourneyStageChanged(ctx context.Context, j *journey.Journey, stage Stage) {
	subject, body := stageMessage(stage)
	if subject == "" {
		return
	}

	for _, userID := range []int64{j.User1ID, j.User2ID} {
		s.deliver(ctx, userID, subject, body)
	}
}

func (s *Service) deliver(ctx context.Context, userID int64, subject, body string) {
	contact, err := s.contacts.GetContact(ctx, userID)
	if err != nil {
		log.Printf("notify: contact lookup failed for user %d: %v", userID, err)
		return
	}

	if s.email != nil && contact.Email.Valid {
		msg := &EmailMessage{
			To:      contact.Email.String,
			Name:    contact.DisplayName.String,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.SendEmail(ctx, msg); err != nil {
			log.Printf("notify: email to user %d failed: %v", userID, err)
		}
		return
	}

	if s.sms != nil && contact.PhoneNumber.Valid {
		msg := &SMSMessage{
			To:      contact.PhoneNumber.String,
			Message: fmt.Sprintf("%s %s", subject, body),
		}
		if err := s.sms.SendSMS(ctx, msg); err != nil {
			log.Printf("notify: sms to user %d failed: %v", userID, err)
		}
	}
}

// Stage aliases journey.Stage so providers stay import-light
type Stage = journey.Stage

func stageMessage(stage Stage) (subject, body string) {
	switch stage {
	case journey.StageProposed:
		return "You have a new match proposal", "Someone wants to start a journey with you. Open the app to respond."
	case journey.StageMutualMatch:
		return "It's a match!", "You both said yes. Your guided conversation is about to begin."
	case journey.StageGuidedConversation:
		return "Your conversation has started", "Take your time and get to know each other."
	case journey.StageMeetingProposed:
		return "Meeting proposed", "Your match suggested a time to meet. Check the details and respond."
	case journey.StageMeetingConfirmed:
		return "Meeting confirmed", "You are both in. See the app for when and where."
	case journey.StagePostMeetingFeedback:
		return "How did it go?", "Share your feedback on the meeting to keep things moving."
	case journey.StageOngoing:
		return "You both want to continue", "Your journey is now ongoing. Enjoy!"
	default:
		// declined and expired stay quiet
		return "", ""
	}
}
