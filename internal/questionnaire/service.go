package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
)

var (
	ErrFieldNotFound = errors.New("questionnaire field not found")
	ErrInvalidAnswer = errors.New("answer value outside field domain")
)

// ScoreInvalidator is notified when a user's answers change so that
// cached compatibility scores can be dropped. Wired in main to avoid a
// package cycle with the matching layer.
type ScoreInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64) error
}

type Service interface {
	Catalog(ctx context.Context) *Catalog
	ReloadCatalog(ctx context.Context) error

	SubmitAnswer(ctx context.Context, userID int64, fieldID, value string) (*Response, error)
	GetAnswers(ctx context.Context, userID int64) ([]*Response, error)
	Completion(ctx context.Context, userID int64) (float64, error)
}

type service struct {
	repo        Repository
	holder      *Holder
	invalidator ScoreInvalidator
}

func NewService(repo Repository, holder *Holder, invalidator ScoreInvalidator) Service {
	return &service{repo: repo, holder: holder, invalidator: invalidator}
}

// LoadCatalog reads the field set and version from storage and builds a
// validated catalog
func LoadCatalog(ctx context.Context, repo Repository) (*Catalog, error) {
	fields, err := repo.ListFields(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog fields: %w", err)
	}

	version, err := repo.GetCatalogVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog version: %w", err)
	}

	return NewCatalog(version, fields)
}

func (s *service) Catalog(ctx context.Context) *Catalog {
	return s.holder.Current()
}

func (s *service) ReloadCatalog(ctx context.Context) error {
	catalog, err := LoadCatalog(ctx, s.repo)
	if err != nil {
		return err
	}
	s.holder.Replace(catalog)
	return nil
}

func (s *service) SubmitAnswer(ctx context.Context, userID int64, fieldID, value string) (*Response, error) {
	catalog := s.holder.Current()

	field, ok := catalog.Field(fieldID)
	if !ok {
		return nil, ErrFieldNotFound
	}

	if err := ValidateAnswer(field, value); err != nil {
		return nil, err
	}

	resp := &Response{
		UserID:  userID,
		FieldID: fieldID,
		Value:   value,
	}

	if err := s.repo.UpsertResponse(ctx, resp); err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateUser(ctx, userID); err != nil {
			// Stale cache entries expire on their own; not fatal
			log.Printf("score invalidation for user %d failed: %v", userID, err)
		}
	}

	return resp, nil
}

func (s *service) GetAnswers(ctx context.Context, userID int64) ([]*Response, error) {
	return s.repo.GetUserResponses(ctx, userID)
}

func (s *service) Completion(ctx context.Context, userID int64) (float64, error) {
	catalog := s.holder.Current()
	if catalog.Len() == 0 {
		return 0, nil
	}

	answered, err := s.repo.CountUserResponses(ctx, userID)
	if err != nil {
		return 0, err
	}

	return float64(answered) / float64(catalog.Len()), nil
}

// ValidateAnswer checks a raw value against the field's declared domain
func ValidateAnswer(field *Field, value string) error {
	switch field.Kind {
	case KindScale:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %q is not numeric", ErrInvalidAnswer, value)
		}
		if v < field.MinValue || v > field.MaxValue {
			return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidAnswer, v, field.MinValue, field.MaxValue)
		}
	case KindBoolean:
		if value != "true" && value != "false" {
			return fmt.Errorf("%w: %q is not a boolean", ErrInvalidAnswer, value)
		}
	case KindSingleChoice:
		for _, opt := range field.Options {
			if value == opt {
				return nil
			}
		}
		return fmt.Errorf("%w: %q is not a declared option", ErrInvalidAnswer, value)
	}
	return nil
}
