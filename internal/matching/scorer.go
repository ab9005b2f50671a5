package matching

import (
	"sort"
	"strconv"

	"github.com/ryvinapp/ryvin-backend/internal/questionnaire"
)

// CategoryScore is the weighted-similarity aggregate restricted to one category
type CategoryScore struct {
	Score          float64 `json:"score"`
	FieldsCompared int     `json:"fields_compared"`
}

// Score is the result of comparing two users' questionnaire answers.
// Overall is in [0,1]. InsufficientData distinguishes "no qualifying
// fields" from a genuine zero-compatibility score.
type Score struct {
	Overall            float64                  `json:"overall"`
	InsufficientData   bool                     `json:"insufficient_data"`
	FieldsCompared     int                      `json:"fields_compared"`
	DealBreakerHit     bool                     `json:"deal_breaker_hit"`
	DealBreakerReasons []string                 `json:"deal_breaker_reasons,omitempty"`
	Categories         map[string]CategoryScore `json:"categories,omitempty"`
	CatalogVersion     int64                    `json:"catalog_version"`
}

// ComputeScore compares two answer sets under a catalog. It is a pure
// function: identical inputs yield identical outputs, and the result is
// symmetric in its two answer arguments. Fields unanswered by either
// party are excluded from both numerator and denominator.
func ComputeScore(a, b questionnaire.AnswerSet, catalog *questionnaire.Catalog) Score {
	score := Score{
		Categories:     make(map[string]CategoryScore),
		CatalogVersion: catalog.Version(),
	}

	type catAccum struct {
		weighted float64
		weight   float64
		fields   int
	}

	var (
		weightedSum float64
		weightSum   float64
		perCategory = make(map[string]*catAccum)
	)

	// Catalog fields are pre-sorted by id; the walk order is fixed
	for _, field := range catalog.Fields() {
		av, aOK := a[field.ID]
		bv, bOK := b[field.ID]
		if !aOK || !bOK {
			continue
		}

		sim := fieldSimilarity(field, av, bv)

		if field.DealBreaker && sim == 0 {
			score.DealBreakerHit = true
			score.DealBreakerReasons = append(score.DealBreakerReasons, field.ID)
		}

		weightedSum += field.Weight * sim
		weightSum += field.Weight
		score.FieldsCompared++

		acc, ok := perCategory[field.Category]
		if !ok {
			acc = &catAccum{}
			perCategory[field.Category] = acc
		}
		acc.weighted += field.Weight * sim
		acc.weight += field.Weight
		acc.fields++
	}

	if score.FieldsCompared == 0 {
		score.InsufficientData = true
		return score
	}

	score.Overall = weightedSum / weightSum

	// A failed hard requirement zeroes the pairing regardless of how
	// well the remaining answers line up
	if score.DealBreakerHit {
		sort.Strings(score.DealBreakerReasons)
		score.Overall = 0
	}

	for category, acc := range perCategory {
		score.Categories[category] = CategoryScore{
			Score:          acc.weighted / acc.weight,
			FieldsCompared: acc.fields,
		}
	}

	return score
}

// fieldSimilarity computes the per-field similarity in [0,1]
func fieldSimilarity(field *questionnaire.Field, a, b string) float64 {
	switch field.Kind {
	case questionnaire.KindScale:
		av, errA := strconv.ParseFloat(a, 64)
		bv, errB := strconv.ParseFloat(b, 64)
		if errA != nil || errB != nil {
			return 0
		}
		span := field.MaxValue - field.MinValue
		diff := av - bv
		if diff < 0 {
			diff = -diff
		}
		if diff > span {
			diff = span
		}
		return 1 - diff/span

	case questionnaire.KindSingleChoice:
		if field.Rule == questionnaire.RuleSimilarity && field.CompatTable != nil {
			if v, ok := field.CompatTable.Lookup(a, b); ok {
				return v
			}
			// Pairs absent from the table fall back to equality
		}
		if a == b {
			return 1
		}
		return 0

	case questionnaire.KindBoolean:
		if a == b {
			return 1
		}
		return 0
	}

	return 0
}
