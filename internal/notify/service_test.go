package notify

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryvinapp/ryvin-backend/internal/journey"
)

type staticContacts struct {
	contacts map[int64]*Contact
}

func (s *staticContacts) GetContact(ctx context.Context, userID int64) (*Contact, error) {
	c, ok := s.contacts[userID]
	if !ok {
		return nil, ErrContactNotFound
	}
	return c, nil
}

func emailContact(id int64, email string) *Contact {
	return &Contact{
		UserID: id,
		Email:  sql.NullString{String: email, Valid: true},
	}
}

func phoneContact(id int64, phone string) *Contact {
	return &Contact{
		UserID:      id,
		PhoneNumber: sql.NullString{String: phone, Valid: true},
	}
}

func TestService_NotifiesBothParticipants(t *testing.T) {
	email := NewMockEmailProvider()
	sms := NewMockSMSProvider()

	svc := NewService(&staticContacts{contacts: map[int64]*Contact{
		1: emailContact(1, "one@example.com"),
		2: emailContact(2, "two@example.com"),
	}}, email, sms)

	j := &journey.Journey{User1ID: 1, User2ID: 2}
	svc.JourneyStageChanged(context.Background(), j, journey.StageMutualMatch)

	require.Len(t, email.SentEmails, 2)
	assert.Equal(t, "one@example.com", email.SentEmails[0].To)
	assert.Equal(t, "two@example.com", email.SentEmails[1].To)
	assert.Empty(t, sms.SentMessages)
}

func TestService_FallsBackToSMS(t *testing.T) {
	email := NewMockEmailProvider()
	sms := NewMockSMSProvider()

	svc := NewService(&staticContacts{contacts: map[int64]*Contact{
		1: emailContact(1, "one@example.com"),
		2: phoneContact(2, "+33612345678"),
	}}, email, sms)

	j := &journey.Journey{User1ID: 1, User2ID: 2}
	svc.JourneyStageChanged(context.Background(), j, journey.StageMeetingConfirmed)

	require.Len(t, email.SentEmails, 1)
	require.Len(t, sms.SentMessages, 1)
	assert.Equal(t, "+33612345678", sms.SentMessages[0].To)
}

func TestService_TerminalStagesStayQuiet(t *testing.T) {
	email := NewMockEmailProvider()

	svc := NewService(&staticContacts{contacts: map[int64]*Contact{
		1: emailContact(1, "one@example.com"),
		2: emailContact(2, "two@example.com"),
	}}, email, nil)

	j := &journey.Journey{User1ID: 1, User2ID: 2}
	svc.JourneyStageChanged(context.Background(), j, journey.StageDeclined)
	svc.JourneyStageChanged(context.Background(), j, journey.StageExpired)

	assert.Empty(t, email.SentEmails)
}

func TestService_MissingContactIsNotFatal(t *testing.T) {
	email := NewMockEmailProvider()

	svc := NewService(&staticContacts{contacts: map[int64]*Contact{
		2: emailContact(2, "two@example.com"),
	}}, email, nil)

	j := &journey.Journey{User1ID: 1, User2ID: 2}
	svc.JourneyStageChanged(context.Background(), j, journey.StageOngoing)

	require.Len(t, email.SentEmails, 1)
	assert.Equal(t, "two@example.com", email.SentEmails[0].To)
}
