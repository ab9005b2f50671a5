package matching

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/ryvinapp/ryvin-backend/internal/questionnaire"
)

// PairChecker answers journey-related eligibility questions. Implemented
// by the journey storage layer and wired in at startup.
type PairChecker interface {
	HasOpenJourney(ctx context.Context, userA, userB int64) (bool, error)
	DeclinedWithin(ctx context.Context, userA, userB int64, window time.Duration) (bool, error)
}

// Ranker scores a candidate pool for one user and orders it
// deterministically. It has no side effects and creates nothing.
type Ranker struct {
	pairs           PairChecker
	declineCooldown time.Duration
}

func NewRanker(pairs PairChecker, declineCooldown time.Duration) *Ranker {
	return &Ranker{pairs: pairs, declineCooldown: declineCooldown}
}

// Rank filters and orders candidates for the given user. Order: overall
// score descending, then mutually-answered field count descending, then
// candidate id ascending, for total determinism.
func (r *Ranker) Rank(
	ctx context.Context,
	user *Profile,
	userAnswers questionnaire.AnswerSet,
	pool []*Profile,
	poolAnswers map[int64]questionnaire.AnswerSet,
	catalog *questionnaire.Catalog,
) (*Ranking, error) {
	items := make([]RankedCandidate, 0, len(pool))

	for _, candidate := range pool {
		eligible, err := r.eligible(ctx, user, candidate)
		if err != nil {
			return nil, err
		}
		if !eligible {
			continue
		}

		score := ComputeScore(userAnswers, poolAnswers[candidate.UserID], catalog)
		if score.InsufficientData || score.DealBreakerHit {
			continue
		}

		items = append(items, RankedCandidate{
			UserID:         candidate.UserID,
			Overall:        score.Overall,
			FieldsCompared: score.FieldsCompared,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Overall != items[j].Overall {
			return items[i].Overall > items[j].Overall
		}
		if items[i].FieldsCompared != items[j].FieldsCompared {
			return items[i].FieldsCompared > items[j].FieldsCompared
		}
		return items[i].UserID < items[j].UserID
	})

	return &Ranking{items: items}, nil
}

// eligible applies the exclusion rules: self, open journey, mutual
// preference bounds, decline cooldown
func (r *Ranker) eligible(ctx context.Context, user, candidate *Profile) (bool, error) {
	if user.UserID == candidate.UserID {
		return false, nil
	}

	if !withinPreferences(user, candidate) || !withinPreferences(candidate, user) {
		return false, nil
	}

	open, err := r.pairs.HasOpenJourney(ctx, user.UserID, candidate.UserID)
	if err != nil {
		return false, err
	}
	if open {
		return false, nil
	}

	declined, err := r.pairs.DeclinedWithin(ctx, user.UserID, candidate.UserID, r.declineCooldown)
	if err != nil {
		return false, err
	}
	if declined {
		return false, nil
	}

	return true, nil
}

// withinPreferences checks whether other fits user's declared bounds
func withinPreferences(user, other *Profile) bool {
	if user.PreferredGender != nil && *user.PreferredGender != "" && other.Gender != *user.PreferredGender {
		return false
	}
	if user.PreferredMinAge != nil && other.Age < *user.PreferredMinAge {
		return false
	}
	if user.PreferredMaxAge != nil && other.Age > *user.PreferredMaxAge {
		return false
	}
	if user.PreferredDistance != nil {
		dist := haversineDistance(user.Latitude, user.Longitude, other.Latitude, other.Longitude)
		if dist > *user.PreferredDistance {
			return false
		}
	}
	return true
}

// haversineDistance returns the great-circle distance in km
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
