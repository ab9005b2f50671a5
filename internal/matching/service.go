package matching

import (
	"context"
	"errors"
	"log"

	"github.com/ryvinapp/ryvin-backend/internal/questionnaire"
)

var ErrNotEligible = errors.New("pairing excluded by eligibility filter")

type Service interface {
	// Score computes (or fetches from cache) the compatibility score
	// between two users under the current catalog
	Score(ctx context.Context, userA, userB int64) (*Score, error)

	// Rank produces the ordered candidate list for a user
	Rank(ctx context.Context, userID int64, limit int) (*Ranking, error)

	// CheckEligibility reports whether a specific pairing passes the
	// eligibility filter
	CheckEligibility(ctx context.Context, userA, userB int64) error
}

type service struct {
	repo      Repository
	responses questionnaire.Repository
	catalogs  *questionnaire.Holder
	ranker    *Ranker
	cache     *ScoreCache
	poolLimit int
}

func NewService(
	repo Repository,
	responses questionnaire.Repository,
	catalogs *questionnaire.Holder,
	ranker *Ranker,
	cache *ScoreCache,
	poolLimit int,
) Service {
	return &service{
		repo:      repo,
		responses: responses,
		catalogs:  catalogs,
		ranker:    ranker,
		cache:     cache,
		poolLimit: poolLimit,
	}
}

func (s *service) Score(ctx context.Context, userA, userB int64) (*Score, error) {
	catalog := s.catalogs.Current()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userA, userB, catalog.Version())
		if err != nil {
			// Cache trouble degrades to a recompute
			log.Printf("score cache read failed: %v", err)
		}
		RecordCacheLookup(cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	answers, err := s.responses.GetResponsesForUsers(ctx, []int64{userA, userB})
	if err != nil {
		return nil, err
	}

	score := ComputeScore(answers[userA], answers[userB], catalog)
	RecordCompatibilityScore(score.Overall)

	if s.cache != nil {
		if err := s.cache.Set(ctx, userA, userB, &score); err != nil {
			log.Printf("score cache write failed: %v", err)
		}
	}

	return &score, nil
}

func (s *service) Rank(ctx context.Context, userID int64, limit int) (*Ranking, error) {
	catalog := s.catalogs.Current()

	user, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	filters := &CandidateFilters{
		MinAge: 18,
		MaxAge: 120,
		Limit:  s.poolLimit,
	}
	if user.PreferredGender != nil {
		filters.Gender = *user.PreferredGender
	}
	if user.PreferredMinAge != nil {
		filters.MinAge = *user.PreferredMinAge
	}
	if user.PreferredMaxAge != nil {
		filters.MaxAge = *user.PreferredMaxAge
	}

	pool, err := s.repo.FindCandidates(ctx, userID, filters)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(pool)+1)
	ids = append(ids, userID)
	for _, c := range pool {
		ids = append(ids, c.UserID)
	}

	answers, err := s.responses.GetResponsesForUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	ranking, err := s.ranker.Rank(ctx, user, answers[userID], pool, answers, catalog)
	if err != nil {
		return nil, err
	}

	RecordRanking(len(pool))

	if limit > 0 && limit < ranking.Len() {
		ranking = &Ranking{items: ranking.Top(limit)}
	}

	return ranking, nil
}

func (s *service) CheckEligibility(ctx context.Context, userA, userB int64) error {
	a, err := s.repo.GetProfile(ctx, userA)
	if err != nil {
		return err
	}
	b, err := s.repo.GetProfile(ctx, userB)
	if err != nil {
		return err
	}

	eligible, err := s.ranker.eligible(ctx, a, b)
	if err != nil {
		return err
	}
	if !eligible {
		return ErrNotEligible
	}
	return nil
}
