package questionnaire

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// Catalog. The version row is maintained by a trigger on the fields
	// table, so any out-of-band edit to the field set is reflected here.
	ListFields(ctx context.Context) ([]*Field, error)
	GetCatalogVersion(ctx context.Context) (int64, error)

	// Responses
	UpsertResponse(ctx context.Context, resp *Response) error
	GetUserResponses(ctx context.Context, userID int64) ([]*Response, error)
	GetResponsesForUsers(ctx context.Context, userIDs []int64) (map[int64]AnswerSet, error)
	CountUserResponses(ctx context.Context, userID int64) (int, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) ListFields(ctx context.Context) ([]*Field, error) {
	var fields []*Field
	query := `
        SELECT id, category, label, weight, answer_kind, comparison_rule,
               min_value, max_value, options, compat_table, deal_breaker,
               position, created_at
        FROM questionnaire_fields
        ORDER BY id
    `

	err := r.db.SelectContext(ctx, &fields, query)
	return fields, err
}

func (r *postgresRepository) GetCatalogVersion(ctx context.Context) (int64, error) {
	var version int64
	query := `SELECT version FROM catalog_version WHERE id = 1`

	err := r.db.GetContext(ctx, &version, query)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, nil
	}
	return version, err
}

func (r *postgresRepository) UpsertResponse(ctx context.Context, resp *Response) error {
	query := `
        INSERT INTO questionnaire_responses (user_id, field_id, value)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, field_id)
        DO UPDATE SET value = $3, updated_at = CURRENT_TIMESTAMP
        RETURNING updated_at
    `

	return r.db.QueryRowxContext(ctx, query, resp.UserID, resp.FieldID, resp.Value).
		Scan(&resp.UpdatedAt)
}

func (r *postgresRepository) GetUserResponses(ctx context.Context, userID int64) ([]*Response, error) {
	var responses []*Response
	query := `
        SELECT user_id, field_id, value, updated_at
        FROM questionnaire_responses
        WHERE user_id = $1
        ORDER BY field_id
    `

	err := r.db.SelectContext(ctx, &responses, query, userID)
	return responses, err
}

func (r *postgresRepository) GetResponsesForUsers(ctx context.Context, userIDs []int64) (map[int64]AnswerSet, error) {
	result := make(map[int64]AnswerSet, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`
        SELECT user_id, field_id, value, updated_at
        FROM questionnaire_responses
        WHERE user_id IN (?)
    `, userIDs)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var responses []*Response
	if err := r.db.SelectContext(ctx, &responses, query, args...); err != nil {
		return nil, err
	}

	for _, resp := range responses {
		set, ok := result[resp.UserID]
		if !ok {
			set = make(AnswerSet)
			result[resp.UserID] = set
		}
		set[resp.FieldID] = resp.Value
	}

	return result, nil
}

func (r *postgresRepository) CountUserResponses(ctx context.Context, userID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM questionnaire_responses WHERE user_id = $1`

	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
