package journey

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type Repository interface {
	// Journeys
	CreateJourney(ctx context.Context, j *Journey) error
	GetJourney(ctx context.Context, id uuid.UUID) (*Journey, error)
	GetOpenJourneyByPair(ctx context.Context, userA, userB int64) (*Journey, error)
	UpdateJourneyCAS(ctx context.Context, j *Journey, expectedVersion int64, history []StageTransition) error
	ListUserJourneys(ctx context.Context, userID int64) ([]*Journey, error)
	ListHistory(ctx context.Context, journeyID uuid.UUID) ([]*StageTransition, error)
	ListOverdueJourneys(ctx context.Context, now time.Time, limit int) ([]*Journey, error)

	// Meeting requests
	CreateMeetingRequest(ctx context.Context, m *MeetingRequest) error
	GetMeetingRequest(ctx context.Context, id uuid.UUID) (*MeetingRequest, error)
	UpdateMeetingCAS(ctx context.Context, m *MeetingRequest, expected MeetingStatus) error
	ListMeetingRequests(ctx context.Context, journeyID uuid.UUID) ([]*MeetingRequest, error)
	ListOverdueMeetings(ctx context.Context, now time.Time, limit int) ([]*MeetingRequest, error)

	// Feedback
	CreateFeedback(ctx context.Context, f *Feedback) error
	ListMeetingFeedback(ctx context.Context, meetingID uuid.UUID) ([]*Feedback, error)
	ListUserFeedback(ctx context.Context, userID int64) ([]*Feedback, error)

	// Eligibility checks consumed by the ranker
	HasOpenJourney(ctx context.Context, userA, userB int64) (bool, error)
	DeclinedWithin(ctx context.Context, userA, userB int64, window time.Duration) (bool, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// Journey methods

// CreateJourney inserts a journey whose pair is already in canonical
// order. Reordering here would detach the consent slots from the stored
// participants, so a mis-ordered pair is left to fail the table's CHECK.
func (r *postgresRepository) CreateJourney(ctx context.Context, j *Journey) error {
	query := `
        INSERT INTO journeys (
            id, user1_id, user2_id, stage, version, consents,
            deadline, meeting_retries, initiated_by
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `

	err := r.db.QueryRowxContext(
		ctx, query,
		j.ID, j.User1ID, j.User2ID, j.Stage, j.Version, j.Consents,
		j.Deadline, j.MeetingRetries, j.InitiatedBy,
	).Scan(&j.CreatedAt, &j.UpdatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		existing, lookupErr := r.GetOpenJourneyByPair(ctx, j.User1ID, j.User2ID)
		if lookupErr != nil {
			return fmt.Errorf("journey exists but lookup failed: %w", lookupErr)
		}
		return &AlreadyExistsError{ExistingID: existing.ID}
	}
	if err != nil {
		return err
	}

	// Initial history entry
	_, err = r.db.ExecContext(ctx, `
        INSERT INTO journey_stage_history (journey_id, stage, actor)
        VALUES ($1, $2, $3)
    `, j.ID, j.Stage, j.InitiatedBy)
	return err
}

func (r *postgresRepository) GetJourney(ctx context.Context, id uuid.UUID) (*Journey, error) {
	var j Journey
	query := `SELECT * FROM journeys WHERE id = $1`

	err := r.db.GetContext(ctx, &j, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJourneyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *postgresRepository) GetOpenJourneyByPair(ctx context.Context, userA, userB int64) (*Journey, error) {
	lo, hi := OrderPair(userA, userB)

	var j Journey
	query := `
        SELECT * FROM journeys
        WHERE user1_id = $1 AND user2_id = $2
          AND stage NOT IN ('ongoing', 'declined', 'expired')
    `

	err := r.db.GetContext(ctx, &j, query, lo, hi)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJourneyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJourneyCAS persists a mutated journey guarded by the expected
// version, bumping the version and appending history rows in the same
// transaction. Zero rows updated means a concurrent writer won.
func (r *postgresRepository) UpdateJourneyCAS(ctx context.Context, j *Journey, expectedVersion int64, history []StageTransition) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        UPDATE journeys
        SET stage = $3, version = version + 1, consents = $4,
            deadline = $5, meeting_retries = $6, ended_by = $7,
            end_reason = $8, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1 AND version = $2
    `

	res, err := tx.ExecContext(
		ctx, query,
		j.ID, expectedVersion, j.Stage, j.Consents,
		j.Deadline, j.MeetingRetries, j.EndedBy, j.EndReason,
	)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}

	for _, h := range history {
		_, err := tx.ExecContext(ctx, `
            INSERT INTO journey_stage_history (journey_id, stage, actor)
            VALUES ($1, $2, $3)
        `, j.ID, h.Stage, h.Actor)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	j.Version = expectedVersion + 1
	return nil
}

func (r *postgresRepository) ListUserJourneys(ctx context.Context, userID int64) ([]*Journey, error) {
	var journeys []*Journey
	query := `
        SELECT * FROM journeys
        WHERE user1_id = $1 OR user2_id = $1
        ORDER BY created_at DESC
    `

	err := r.db.SelectContext(ctx, &journeys, query, userID)
	return journeys, err
}

func (r *postgresRepository) ListHistory(ctx context.Context, journeyID uuid.UUID) ([]*StageTransition, error) {
	var history []*StageTransition
	query := `
        SELECT * FROM journey_stage_history
        WHERE journey_id = $1
        ORDER BY id
    `

	err := r.db.SelectContext(ctx, &history, query, journeyID)
	return history, err
}

func (r *postgresRepository) ListOverdueJourneys(ctx context.Context, now time.Time, limit int) ([]*Journey, error) {
	var journeys []*Journey
	query := `
        SELECT * FROM journeys
        WHERE deadline IS NOT NULL AND deadline < $1
          AND stage NOT IN ('ongoing', 'declined', 'expired')
        ORDER BY deadline
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &journeys, query, now, limit)
	return journeys, err
}

// Meeting request methods

func (r *postgresRepository) CreateMeetingRequest(ctx context.Context, m *MeetingRequest) error {
	query := `
        INSERT INTO meeting_requests (
            id, journey_id, proposed_by, proposed_time, location, status, deadline
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at
    `

	return r.db.QueryRowxContext(
		ctx, query,
		m.ID, m.JourneyID, m.ProposedBy, m.ProposedTime, m.Location, m.Status, m.Deadline,
	).Scan(&m.CreatedAt)
}

func (r *postgresRepository) GetMeetingRequest(ctx context.Context, id uuid.UUID) (*MeetingRequest, error) {
	var m MeetingRequest
	query := `SELECT * FROM meeting_requests WHERE id = $1`

	err := r.db.GetContext(ctx, &m, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMeetingCAS updates a meeting request only if it still carries
// the expected status
func (r *postgresRepository) UpdateMeetingCAS(ctx context.Context, m *MeetingRequest, expected MeetingStatus) error {
	query := `
        UPDATE meeting_requests
        SET status = $3, responded_at = $4, completed_at = $5
        WHERE id = $1 AND status = $2
    `

	res, err := r.db.ExecContext(ctx, query, m.ID, expected, m.Status, m.RespondedAt, m.CompletedAt)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (r *postgresRepository) ListMeetingRequests(ctx context.Context, journeyID uuid.UUID) ([]*MeetingRequest, error) {
	var meetings []*MeetingRequest
	query := `
        SELECT * FROM meeting_requests
        WHERE journey_id = $1
        ORDER BY created_at DESC
    `

	err := r.db.SelectContext(ctx, &meetings, query, journeyID)
	return meetings, err
}

func (r *postgresRepository) ListOverdueMeetings(ctx context.Context, now time.Time, limit int) ([]*MeetingRequest, error) {
	var meetings []*MeetingRequest
	query := `
        SELECT * FROM meeting_requests
        WHERE status = 'pending' AND deadline < $1
        ORDER BY deadline
        LIMIT $2
    `

	err := r.db.SelectContext(ctx, &meetings, query, now, limit)
	return meetings, err
}

// Feedback methods

func (r *postgresRepository) CreateFeedback(ctx context.Context, f *Feedback) error {
	query := `
        INSERT INTO meeting_feedback (
            id, meeting_id, submitted_by, rating, comment, wants_to_continue
        ) VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at
    `

	err := r.db.QueryRowxContext(
		ctx, query,
		f.ID, f.MeetingID, f.SubmittedBy, f.Rating, f.Comment, f.WantsToContinue,
	).Scan(&f.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateFeedback
	}
	return err
}

func (r *postgresRepository) ListMeetingFeedback(ctx context.Context, meetingID uuid.UUID) ([]*Feedback, error) {
	var feedback []*Feedback
	query := `
        SELECT * FROM meeting_feedback
        WHERE meeting_id = $1
        ORDER BY created_at
    `

	err := r.db.SelectContext(ctx, &feedback, query, meetingID)
	return feedback, err
}

func (r *postgresRepository) ListUserFeedback(ctx context.Context, userID int64) ([]*Feedback, error) {
	var feedback []*Feedback
	query := `
        SELECT * FROM meeting_feedback
        WHERE submitted_by = $1
        ORDER BY created_at DESC
    `

	err := r.db.SelectContext(ctx, &feedback, query, userID)
	return feedback, err
}

// Eligibility methods

func (r *postgresRepository) HasOpenJourney(ctx context.Context, userA, userB int64) (bool, error) {
	lo, hi := OrderPair(userA, userB)

	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM journeys
            WHERE user1_id = $1 AND user2_id = $2
              AND stage NOT IN ('ongoing', 'declined', 'expired')
        )
    `

	err := r.db.GetContext(ctx, &exists, query, lo, hi)
	return exists, err
}

func (r *postgresRepository) DeclinedWithin(ctx context.Context, userA, userB int64, window time.Duration) (bool, error) {
	lo, hi := OrderPair(userA, userB)

	var exists bool
	query := `
        SELECT EXISTS(
            SELECT 1 FROM journeys
            WHERE user1_id = $1 AND user2_id = $2
              AND stage = 'declined'
              AND updated_at > $3
        )
    `

	err := r.db.GetContext(ctx, &exists, query, lo, hi, time.Now().Add(-window))
	return exists, err
}
