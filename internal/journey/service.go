package journey

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
)

// Config carries the journey timing and retry policy
type Config struct {
	ProposalTTL        time.Duration
	MeetingResponseTTL time.Duration
	FeedbackWindow     time.Duration
	MaxMeetingRetries  int
}

// casRetries bounds the reload-and-retry loop on version conflicts.
// Conflicts mean a concurrent writer advanced the journey; after a
// reload the idempotency rules usually resolve the request.
const casRetries = 3

type Service interface {
	CreateJourney(ctx context.Context, initiator, other int64) (*Journey, error)
	Respond(ctx context.Context, journeyID uuid.UUID, actor int64, accept bool) (*Journey, error)
	ProposeMeeting(ctx context.Context, journeyID uuid.UUID, actor int64, proposedTime time.Time, location string) (*MeetingRequest, error)
	RespondToMeeting(ctx context.Context, meetingID uuid.UUID, actor int64, accept bool) (*MeetingRequest, error)
	CompleteMeeting(ctx context.Context, meetingID uuid.UUID, actor int64) (*MeetingRequest, error)
	SubmitFeedback(ctx context.Context, meetingID uuid.UUID, actor int64, rating int, comment string, wantsToContinue bool) (*Feedback, error)

	GetJourney(ctx context.Context, journeyID uuid.UUID, actor int64) (*Journey, error)
	GetHistory(ctx context.Context, journeyID uuid.UUID, actor int64) ([]*StageTransition, error)
	ListUserJourneys(ctx context.Context, userID int64) ([]*Journey, error)
	ListMeetings(ctx context.Context, journeyID uuid.UUID, actor int64) ([]*MeetingRequest, error)
	GetUserFeedbackHistory(ctx context.Context, userID int64) ([]*Feedback, error)

	SweepDeadlines(ctx context.Context) error
}

type service struct {
	repo     Repository
	notifier Notifier
	cfg      Config
	now      func() time.Time
}

func NewService(repo Repository, notifier Notifier, cfg Config) Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &service{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (s *service) CreateJourney(ctx context.Context, initiator, other int64) (*Journey, error) {
	if initiator == other {
		return nil, ErrSelfJourney
	}

	// Canonical order before any consent is recorded, so the per-slot
	// flags refer to the stored participants
	user1, user2 := OrderPair(initiator, other)

	deadline := s.now().Add(s.cfg.ProposalTTL)
	j := &Journey{
		ID:          uuid.New(),
		User1ID:     user1,
		User2ID:     user2,
		Stage:       StageProposed,
		Version:     1,
		Consents:    ConsentLog{},
		Deadline:    &deadline,
		InitiatedBy: initiator,
	}
	j.SetConsent(StageProposed, initiator)

	if err := s.repo.CreateJourney(ctx, j); err != nil {
		return nil, err
	}

	RecordJourneyCreated()
	s.notify(j, StageProposed)
	return j, nil
}

// Respond records a participant's accept or decline of a proposed
// journey. A re-submitted decision whose effect has already been
// achieved by a concurrent transition succeeds idempotently.
func (s *service) Respond(ctx context.Context, journeyID uuid.UUID, actor int64, accept bool) (*Journey, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		j, err := s.repo.GetJourney(ctx, journeyID)
		if err != nil {
			return nil, err
		}
		if !j.HasParticipant(actor) {
			return nil, ErrNotParticipant
		}

		// Accept only makes sense on a proposed journey; decline is a
		// legal exit from any non-terminal stage
		if accept && j.Stage != StageProposed {
			return s.resolveRespondConflict(j, actor, accept)
		}
		if !accept && j.Stage.Terminal() {
			return s.resolveRespondConflict(j, actor, accept)
		}

		if accept && actor == j.InitiatedBy {
			// The initiator's consent was recorded at creation
			return j, nil
		}

		expected := j.Version
		var history []StageTransition
		var finalStage Stage

		if accept {
			j.SetConsent(StageProposed, actor)

			next, err := Next(j.Stage, EventAccept)
			if err != nil {
				return nil, err
			}
			// Mutual accept is the trigger, so both consent flags for
			// mutual_match are set and the journey rolls straight on to
			// guided_conversation
			j.Stage = next
			j.SetConsent(StageMutualMatch, j.User1ID)
			j.SetConsent(StageMutualMatch, j.User2ID)
			history = append(history, StageTransition{Stage: next, Actor: &actor})

			next, err = Next(j.Stage, EventAccept)
			if err != nil {
				return nil, err
			}
			j.Stage = next
			j.Deadline = nil
			history = append(history, StageTransition{Stage: next, Actor: &actor})
			finalStage = next
		} else {
			next, err := Next(j.Stage, EventDecline)
			if err != nil {
				return nil, err
			}
			j.Stage = next
			j.Deadline = nil
			j.EndedBy = &actor
			history = append(history, StageTransition{Stage: next, Actor: &actor})
			finalStage = next
		}

		err = s.repo.UpdateJourneyCAS(ctx, j, expected, history)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		RecordTransition(finalStage)
		s.notify(j, finalStage)
		return j, nil
	}

	// Concurrent writers kept winning; settle against the final state
	j, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	return s.resolveRespondConflict(j, actor, accept)
}

// resolveRespondConflict maps a respond call against an already-advanced
// journey to either idempotent success or a hard state conflict
func (s *service) resolveRespondConflict(j *Journey, actor int64, accept bool) (*Journey, error) {
	if accept {
		switch j.Stage {
		case StageMutualMatch, StageGuidedConversation, StageMeetingProposed,
			StageMeetingConfirmed, StagePostMeetingFeedback, StageOngoing:
			// The pair is matched; this actor's consent is part of how
			// it got there
			return j, nil
		default:
			return nil, &StateConflictError{Stage: j.Stage}
		}
	}

	switch j.Stage {
	case StageDeclined, StageExpired:
		// The journey already ended; the decline changes nothing
		return j, nil
	default:
		return nil, &StateConflictError{Stage: j.Stage}
	}
}

func (s *service) ProposeMeeting(ctx context.Context, journeyID uuid.UUID, actor int64, proposedTime time.Time, location string) (*MeetingRequest, error) {
	j, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}

	next, err := Next(j.Stage, EventProposeMeeting)
	if err != nil {
		return nil, &StateConflictError{Stage: j.Stage}
	}

	expected := j.Version
	j.Stage = next
	history := []StageTransition{{Stage: next, Actor: &actor}}

	if err := s.repo.UpdateJourneyCAS(ctx, j, expected, history); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			current, getErr := s.repo.GetJourney(ctx, journeyID)
			if getErr != nil {
				return nil, getErr
			}
			return nil, &StateConflictError{Stage: current.Stage}
		}
		return nil, err
	}

	m := &MeetingRequest{
		ID:           uuid.New(),
		JourneyID:    j.ID,
		ProposedBy:   actor,
		ProposedTime: proposedTime,
		Location:     location,
		Status:       MeetingPending,
		Deadline:     s.now().Add(s.cfg.MeetingResponseTTL),
	}

	if err := s.repo.CreateMeetingRequest(ctx, m); err != nil {
		return nil, err
	}

	RecordTransition(next)
	s.notify(j, next)
	return m, nil
}

func (s *service) RespondToMeeting(ctx context.Context, meetingID uuid.UUID, actor int64, accept bool) (*MeetingRequest, error) {
	m, err := s.repo.GetMeetingRequest(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	j, err := s.repo.GetJourney(ctx, m.JourneyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}
	if actor == m.ProposedBy {
		return nil, ErrNotParticipant
	}

	if m.Status != MeetingPending {
		// A re-submitted matching decision succeeds idempotently
		if (accept && m.Status == MeetingAccepted) || (!accept && m.Status == MeetingDeclined) {
			return m, nil
		}
		return nil, ErrInvalidMeetingState
	}

	// A pending meeting on a journey that already ended is dead; the
	// meeting lifecycle only runs while the journey is in flight
	if j.Stage.Terminal() {
		return nil, &StateConflictError{Stage: j.Stage}
	}

	now := s.now()
	m.RespondedAt = &now
	if accept {
		m.Status = MeetingAccepted
	} else {
		m.Status = MeetingDeclined
	}

	if err := s.repo.UpdateMeetingCAS(ctx, m, MeetingPending); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			// Concurrent responder or sweep won; settle on the result
			current, getErr := s.repo.GetMeetingRequest(ctx, meetingID)
			if getErr != nil {
				return nil, getErr
			}
			if (accept && current.Status == MeetingAccepted) || (!accept && current.Status == MeetingDeclined) {
				return current, nil
			}
			return nil, ErrInvalidMeetingState
		}
		return nil, err
	}

	if accept {
		err = s.advanceAfterMeetingAccepted(ctx, j, actor)
	} else {
		err = s.handleMeetingFailure(ctx, j, &actor)
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (s *service) advanceAfterMeetingAccepted(ctx context.Context, j *Journey, actor int64) error {
	next, err := Next(j.Stage, EventMeetingAccepted)
	if err != nil {
		// The journey moved under us; the accepted meeting stands
		return nil
	}

	expected := j.Version
	j.Stage = next
	j.Deadline = nil

	err = s.repo.UpdateJourneyCAS(ctx, j, expected, []StageTransition{{Stage: next, Actor: &actor}})
	if errors.Is(err, ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	RecordTransition(next)
	s.notify(j, next)
	return nil
}

// handleMeetingFailure routes a declined or expired meeting either back
// to guided_conversation or, once the retry budget is spent, to expired
func (s *service) handleMeetingFailure(ctx context.Context, j *Journey, actor *int64) error {
	event := EventMeetingFailed
	j.MeetingRetries++
	if j.MeetingRetries > s.cfg.MaxMeetingRetries {
		event = EventMeetingExhausted
	}

	next, err := Next(j.Stage, event)
	if err != nil {
		return nil
	}

	expected := j.Version
	j.Stage = next
	j.Deadline = nil

	err = s.repo.UpdateJourneyCAS(ctx, j, expected, []StageTransition{{Stage: next, Actor: actor}})
	if errors.Is(err, ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	RecordTransition(next)
	s.notify(j, next)
	return nil
}

func (s *service) CompleteMeeting(ctx context.Context, meetingID uuid.UUID, actor int64) (*MeetingRequest, error) {
	m, err := s.repo.GetMeetingRequest(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	j, err := s.repo.GetJourney(ctx, m.JourneyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}

	if m.Status != MeetingAccepted {
		if m.Status == MeetingCompleted {
			return m, nil
		}
		return nil, ErrInvalidMeetingState
	}

	if j.Stage.Terminal() {
		return nil, &StateConflictError{Stage: j.Stage}
	}

	now := s.now()
	m.Status = MeetingCompleted
	m.CompletedAt = &now

	if err := s.repo.UpdateMeetingCAS(ctx, m, MeetingAccepted); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			current, getErr := s.repo.GetMeetingRequest(ctx, meetingID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == MeetingCompleted {
				return current, nil
			}
			return nil, ErrInvalidMeetingState
		}
		return nil, err
	}

	next, err := Next(j.Stage, EventMeetingCompleted)
	if err == nil {
		expected := j.Version
		feedbackDeadline := now.Add(s.cfg.FeedbackWindow)
		j.Stage = next
		j.Deadline = &feedbackDeadline

		err = s.repo.UpdateJourneyCAS(ctx, j, expected, []StageTransition{{Stage: next, Actor: &actor}})
		if err != nil && !errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		if err == nil {
			RecordTransition(next)
			s.notify(j, next)
		}
	}

	return m, nil
}

func (s *service) SubmitFeedback(ctx context.Context, meetingID uuid.UUID, actor int64, rating int, comment string, wantsToContinue bool) (*Feedback, error) {
	m, err := s.repo.GetMeetingRequest(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if m.Status != MeetingCompleted {
		return nil, ErrInvalidMeetingState
	}

	j, err := s.repo.GetJourney(ctx, m.JourneyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}
	if j.Stage.Terminal() {
		return nil, &StateConflictError{Stage: j.Stage}
	}

	f := &Feedback{
		ID:              uuid.New(),
		MeetingID:       meetingID,
		SubmittedBy:     actor,
		Rating:          rating,
		Comment:         comment,
		WantsToContinue: wantsToContinue,
	}

	if err := s.repo.CreateFeedback(ctx, f); err != nil {
		return nil, err
	}
	RecordFeedback()

	submitted, err := s.repo.ListMeetingFeedback(ctx, meetingID)
	if err != nil {
		return f, nil
	}

	both := hasFeedbackFrom(submitted, j.User1ID) && hasFeedbackFrom(submitted, j.User2ID)
	if both {
		if err := s.closeFeedbackStage(ctx, j, &actor); err != nil {
			log.Printf("journey %s: feedback close failed: %v", j.ID, err)
		}
	}

	return f, nil
}

func hasFeedbackFrom(feedback []*Feedback, userID int64) bool {
	for _, f := range feedback {
		if f.SubmittedBy == userID {
			return true
		}
	}
	return false
}

// closeFeedbackStage moves a post_meeting_feedback journey to ongoing
func (s *service) closeFeedbackStage(ctx context.Context, j *Journey, actor *int64) error {
	next, err := Next(j.Stage, EventFeedbackClosed)
	if err != nil {
		return nil
	}

	expected := j.Version
	j.Stage = next
	j.Deadline = nil

	err = s.repo.UpdateJourneyCAS(ctx, j, expected, []StageTransition{{Stage: next, Actor: actor}})
	if errors.Is(err, ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	RecordTransition(next)
	s.notify(j, next)
	return nil
}

// Read operations

func (s *service) GetJourney(ctx context.Context, journeyID uuid.UUID, actor int64) (*Journey, error) {
	j, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}
	return j, nil
}

func (s *service) GetHistory(ctx context.Context, journeyID uuid.UUID, actor int64) ([]*StageTransition, error) {
	j, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}
	return s.repo.ListHistory(ctx, journeyID)
}

func (s *service) ListUserJourneys(ctx context.Context, userID int64) ([]*Journey, error) {
	return s.repo.ListUserJourneys(ctx, userID)
}

func (s *service) ListMeetings(ctx context.Context, journeyID uuid.UUID, actor int64) ([]*MeetingRequest, error) {
	j, err := s.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, err
	}
	if !j.HasParticipant(actor) {
		return nil, ErrNotParticipant
	}
	return s.repo.ListMeetingRequests(ctx, journeyID)
}

func (s *service) GetUserFeedbackHistory(ctx context.Context, userID int64) ([]*Feedback, error) {
	return s.repo.ListUserFeedback(ctx, userID)
}

// SweepDeadlines expires overdue journeys and meeting requests. It is
// idempotent: entities already handled by a concurrent accept or an
// earlier sweep are skipped via the same CAS discipline.
func (s *service) SweepDeadlines(ctx context.Context) error {
	now := s.now()

	journeys, err := s.repo.ListOverdueJourneys(ctx, now, 500)
	if err != nil {
		return err
	}
	for _, j := range journeys {
		if err := s.expireJourney(ctx, j); err != nil {
			log.Printf("sweep: journey %s: %v", j.ID, err)
		}
	}

	meetings, err := s.repo.ListOverdueMeetings(ctx, now, 500)
	if err != nil {
		return err
	}
	for _, m := range meetings {
		if err := s.expireMeeting(ctx, m); err != nil {
			log.Printf("sweep: meeting %s: %v", m.ID, err)
		}
	}

	return nil
}

func (s *service) expireJourney(ctx context.Context, j *Journey) error {
	if j.Stage.Terminal() {
		return nil
	}

	// A feedback window elapsing with at least one submission closes the
	// stage normally; the missing report is simply recorded as missing
	if j.Stage == StagePostMeetingFeedback {
		count, err := s.feedbackCount(ctx, j)
		if err != nil {
			return err
		}
		if count > 0 {
			RecordSweepExpiration("feedback_window")
			return s.closeFeedbackStage(ctx, j, nil)
		}
	}

	next, err := Next(j.Stage, EventExpire)
	if err != nil {
		return nil
	}

	expected := j.Version
	j.Stage = next
	j.Deadline = nil

	err = s.repo.UpdateJourneyCAS(ctx, j, expected, []StageTransition{{Stage: next}})
	if errors.Is(err, ErrVersionConflict) {
		// A legitimate transition raced the sweep and won
		return nil
	}
	if err != nil {
		return err
	}

	RecordTransition(next)
	RecordSweepExpiration("journey")
	s.notify(j, next)
	return nil
}

func (s *service) feedbackCount(ctx context.Context, j *Journey) (int, error) {
	meetings, err := s.repo.ListMeetingRequests(ctx, j.ID)
	if err != nil {
		return 0, err
	}
	for _, m := range meetings {
		if m.Status == MeetingCompleted {
			feedback, err := s.repo.ListMeetingFeedback(ctx, m.ID)
			if err != nil {
				return 0, err
			}
			return len(feedback), nil
		}
	}
	return 0, nil
}

func (s *service) expireMeeting(ctx context.Context, m *MeetingRequest) error {
	m.Status = MeetingExpired

	err := s.repo.UpdateMeetingCAS(ctx, m, MeetingPending)
	if errors.Is(err, ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	RecordSweepExpiration("meeting")

	j, err := s.repo.GetJourney(ctx, m.JourneyID)
	if err != nil {
		return err
	}
	return s.handleMeetingFailure(ctx, j, nil)
}

// notify dispatches a stage-change signal without blocking the caller
// or caring whether delivery works
func (s *service) notify(j *Journey, stage Stage) {
	jCopy := *j
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.notifier.JourneyStageChanged(ctx, &jCopy, stage)
	}()
}
