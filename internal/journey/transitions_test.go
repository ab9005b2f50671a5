package journey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext_HappyPath(t *testing.T) {
	steps := []struct {
		from  Stage
		event Event
		to    Stage
	}{
		{StageProposed, EventAccept, StageMutualMatch},
		{StageMutualMatch, EventAccept, StageGuidedConversation},
		{StageGuidedConversation, EventProposeMeeting, StageMeetingProposed},
		{StageMeetingProposed, EventMeetingAccepted, StageMeetingConfirmed},
		{StageMeetingConfirmed, EventMeetingCompleted, StagePostMeetingFeedback},
		{StagePostMeetingFeedback, EventFeedbackClosed, StageOngoing},
	}

	for _, step := range steps {
		next, err := Next(step.from, step.event)
		require.NoError(t, err, "%s + %s", step.from, step.event)
		assert.Equal(t, step.to, next)
	}
}

func TestNext_DeclineFromEveryNonTerminalStage(t *testing.T) {
	nonTerminal := []Stage{
		StageProposed,
		StageMutualMatch,
		StageGuidedConversation,
		StageMeetingProposed,
		StageMeetingConfirmed,
		StagePostMeetingFeedback,
	}

	for _, stage := range nonTerminal {
		next, err := Next(stage, EventDecline)
		require.NoError(t, err, "decline from %s", stage)
		assert.Equal(t, StageDeclined, next)

		next, err = Next(stage, EventExpire)
		require.NoError(t, err, "expire from %s", stage)
		assert.Equal(t, StageExpired, next)
	}
}

func TestNext_TerminalStagesHaveNoExits(t *testing.T) {
	events := []Event{
		EventAccept, EventDecline, EventExpire, EventProposeMeeting,
		EventMeetingAccepted, EventMeetingFailed, EventMeetingExhausted,
		EventMeetingCompleted, EventFeedbackClosed,
	}

	for _, stage := range []Stage{StageOngoing, StageDeclined, StageExpired} {
		require.True(t, stage.Terminal())
		for _, event := range events {
			_, err := Next(stage, event)
			assert.ErrorIs(t, err, ErrIllegalTransition, "%s + %s", stage, event)
		}
	}
}

func TestNext_IllegalSkips(t *testing.T) {
	cases := []struct {
		from  Stage
		event Event
	}{
		{StageProposed, EventProposeMeeting},
		{StageProposed, EventMeetingCompleted},
		{StageMutualMatch, EventFeedbackClosed},
		{StageGuidedConversation, EventAccept},
		{StageGuidedConversation, EventMeetingAccepted},
		{StageMeetingProposed, EventMeetingCompleted},
		{StageMeetingConfirmed, EventMeetingAccepted},
		{StagePostMeetingFeedback, EventProposeMeeting},
	}

	for _, tc := range cases {
		_, err := Next(tc.from, tc.event)
		assert.ErrorIs(t, err, ErrIllegalTransition, "%s + %s", tc.from, tc.event)
	}
}

func TestNext_MeetingFailureRouting(t *testing.T) {
	next, err := Next(StageMeetingProposed, EventMeetingFailed)
	require.NoError(t, err)
	assert.Equal(t, StageGuidedConversation, next)

	next, err = Next(StageMeetingProposed, EventMeetingExhausted)
	require.NoError(t, err)
	assert.Equal(t, StageExpired, next)
}

func TestCanAccept(t *testing.T) {
	assert.True(t, CanAccept(StageProposed, EventAccept))
	assert.False(t, CanAccept(StageOngoing, EventAccept))
	assert.False(t, CanAccept(StageProposed, EventFeedbackClosed))
}

func TestStageTerminal(t *testing.T) {
	assert.False(t, StageProposed.Terminal())
	assert.False(t, StagePostMeetingFeedback.Terminal())
	assert.True(t, StageOngoing.Terminal())
	assert.True(t, StageDeclined.Terminal())
	assert.True(t, StageExpired.Terminal())
}

func TestOrderPair(t *testing.T) {
	a, b := OrderPair(9, 3)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)

	a, b = OrderPair(3, 9)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)
}
