package matching

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

var ErrProfileNotFound = errors.New("user profile not found")

type Repository interface {
	GetProfile(ctx context.Context, userID int64) (*Profile, error)
	FindCandidates(ctx context.Context, userID int64, filters *CandidateFilters) ([]*Profile, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) GetProfile(ctx context.Context, userID int64) (*Profile, error) {
	var profile Profile
	query := `
        SELECT id AS user_id, gender,
               EXTRACT(YEAR FROM AGE(birth_date))::int AS age,
               latitude, longitude, is_verified,
               preferred_gender, preferred_min_age, preferred_max_age,
               preferred_distance_km
        FROM users
        WHERE id = $1
    `

	err := r.db.GetContext(ctx, &profile, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	return &profile, nil
}

func (r *postgresRepository) FindCandidates(ctx context.Context, userID int64, filters *CandidateFilters) ([]*Profile, error) {
	var candidates []*Profile

	// Coarse SQL prefilter; the mutual-preference and journey checks
	// run in process where both sides' preferences are available
	query := `
        SELECT id AS user_id, gender,
               EXTRACT(YEAR FROM AGE(birth_date))::int AS age,
               latitude, longitude, is_verified,
               preferred_gender, preferred_min_age, preferred_max_age,
               preferred_distance_km
        FROM users
        WHERE id != $1
          AND is_active = TRUE
          AND ($2 = '' OR gender = $2)
          AND EXTRACT(YEAR FROM AGE(birth_date))::int BETWEEN $3 AND $4
          AND ($5 = FALSE OR is_verified = TRUE)
        ORDER BY id
        LIMIT $6
    `

	err := r.db.SelectContext(ctx, &candidates, query,
		userID, filters.Gender, filters.MinAge, filters.MaxAge,
		filters.MustBeVerified, filters.Limit,
	)

	return candidates, err
}
