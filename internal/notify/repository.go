// internal/notify/repository.go

package notify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrContactNotFound = errors.New("contact not found")

// Contact holds the delivery addresses for a user
type Contact struct {
	UserID      int64          `db:"id"`
	Email       sql.NullString `db:"email"`
	PhoneNumber sql.NullString `db:"phone_number"`
	DisplayName sql.NullString `db:"display_name"`
}

// ContactRepository looks up where to reach a user
type ContactRepository interface {
	GetContact(ctx context.Context, userID int64) (*Contact, error)
}

type postgresContactRepository struct {
	db *sqlx.DB
}

// NewContactRepository creates a new Postgres-backed contact repository
func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &postgresContactRepository{db: db}
}

func (r *postgresContactRepository) GetContact(ctx context.Context, userID int64) (*Contact, error) {
	var contact Contact
	query := `SELECT id, email, phone_number, display_name FROM users WHERE id = $1`

	err := r.db.GetContext(ctx, &contact, query, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}
