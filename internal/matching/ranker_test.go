package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryvinapp/ryvin-backend/internal/questionnaire"
)

type fakePairChecker struct {
	open     map[[2]int64]bool
	declined map[[2]int64]bool
}

func newFakePairChecker() *fakePairChecker {
	return &fakePairChecker{
		open:     make(map[[2]int64]bool),
		declined: make(map[[2]int64]bool),
	}
}

func pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (f *fakePairChecker) HasOpenJourney(ctx context.Context, userA, userB int64) (bool, error) {
	return f.open[pairKey(userA, userB)], nil
}

func (f *fakePairChecker) DeclinedWithin(ctx context.Context, userA, userB int64, window time.Duration) (bool, error) {
	return f.declined[pairKey(userA, userB)], nil
}

func testProfile(id int64, gender string, age int) *Profile {
	return &Profile{UserID: id, Gender: gender, Age: age}
}

func rankCatalog(t *testing.T) *questionnaire.Catalog {
	t.Helper()

	catalog, err := questionnaire.NewCatalog(1, []*questionnaire.Field{
		{
			ID:       "lifestyle.exercise",
			Category: "lifestyle",
			Weight:   1.0,
			Kind:     questionnaire.KindScale,
			Rule:     questionnaire.RuleSimilarity,
			MinValue: 1,
			MaxValue: 5,
		},
		{
			ID:       "values.family",
			Category: "values",
			Weight:   1.0,
			Kind:     questionnaire.KindBoolean,
			Rule:     questionnaire.RuleExactMatch,
		},
	})
	require.NoError(t, err)
	return catalog
}

func TestRanker_OrdersByScoreDescending(t *testing.T) {
	catalog := rankCatalog(t)
	ranker := NewRanker(newFakePairChecker(), 30*24*time.Hour)

	user := testProfile(1, "female", 30)
	pool := []*Profile{
		testProfile(2, "male", 31),
		testProfile(3, "male", 29),
		testProfile(4, "male", 33),
	}

	userAnswers := questionnaire.AnswerSet{
		"lifestyle.exercise": "1",
		"values.family":      "true",
	}
	poolAnswers := map[int64]questionnaire.AnswerSet{
		2: {"lifestyle.exercise": "5", "values.family": "true"},  // 0.5
		3: {"lifestyle.exercise": "1", "values.family": "true"},  // 1.0
		4: {"lifestyle.exercise": "3", "values.family": "true"},  // 0.75
	}

	ranking, err := ranker.Rank(context.Background(), user, userAnswers, pool, poolAnswers, catalog)
	require.NoError(t, err)
	require.Equal(t, 3, ranking.Len())

	ids := make([]int64, 0, 3)
	for {
		c, ok := ranking.Next()
		if !ok {
			break
		}
		ids = append(ids, c.UserID)
	}
	assert.Equal(t, []int64{3, 4, 2}, ids)
}

func TestRanker_TieBreaks(t *testing.T) {
	catalog := rankCatalog(t)
	ranker := NewRanker(newFakePairChecker(), 0)

	user := testProfile(1, "female", 30)
	pool := []*Profile{
		testProfile(5, "male", 30),
		testProfile(2, "male", 30),
		testProfile(9, "male", 30),
	}

	userAnswers := questionnaire.AnswerSet{
		"lifestyle.exercise": "3",
		"values.family":      "true",
	}
	// 9 and 2 both score 1.0 but 9 shares two answered fields; 2 and 5
	// both score 1.0 on one field, id breaks that tie
	poolAnswers := map[int64]questionnaire.AnswerSet{
		5: {"values.family": "true"},
		2: {"values.family": "true"},
		9: {"lifestyle.exercise": "3", "values.family": "true"},
	}

	ranking, err := ranker.Rank(context.Background(), user, userAnswers, pool, poolAnswers, catalog)
	require.NoError(t, err)

	top := ranking.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, int64(9), top[0].UserID)
	assert.Equal(t, int64(2), top[1].UserID)
	assert.Equal(t, int64(5), top[2].UserID)
}

func TestRanker_Exclusions(t *testing.T) {
	catalog := rankCatalog(t)

	answers := questionnaire.AnswerSet{
		"lifestyle.exercise": "3",
		"values.family":      "true",
	}

	t.Run("self is never ranked", func(t *testing.T) {
		ranker := NewRanker(newFakePairChecker(), 0)
		user := testProfile(1, "female", 30)

		ranking, err := ranker.Rank(context.Background(), user, answers,
			[]*Profile{testProfile(1, "female", 30)},
			map[int64]questionnaire.AnswerSet{1: answers}, catalog)
		require.NoError(t, err)
		assert.Zero(t, ranking.Len())
	})

	t.Run("open journey excludes the pair", func(t *testing.T) {
		pairs := newFakePairChecker()
		pairs.open[pairKey(1, 2)] = true
		ranker := NewRanker(pairs, 0)

		ranking, err := ranker.Rank(context.Background(), testProfile(1, "female", 30), answers,
			[]*Profile{testProfile(2, "male", 30)},
			map[int64]questionnaire.AnswerSet{2: answers}, catalog)
		require.NoError(t, err)
		assert.Zero(t, ranking.Len())
	})

	t.Run("recent decline excludes the pair", func(t *testing.T) {
		pairs := newFakePairChecker()
		pairs.declined[pairKey(1, 2)] = true
		ranker := NewRanker(pairs, 30*24*time.Hour)

		ranking, err := ranker.Rank(context.Background(), testProfile(1, "female", 30), answers,
			[]*Profile{testProfile(2, "male", 30)},
			map[int64]questionnaire.AnswerSet{2: answers}, catalog)
		require.NoError(t, err)
		assert.Zero(t, ranking.Len())
	})

	t.Run("preference bounds apply both ways", func(t *testing.T) {
		ranker := NewRanker(newFakePairChecker(), 0)

		user := testProfile(1, "female", 30)
		// Candidate fits the user's bounds but the user does not fit the
		// candidate's
		candidate := testProfile(2, "male", 30)
		maxAge := 25
		candidate.PreferredMaxAge = &maxAge

		ranking, err := ranker.Rank(context.Background(), user, answers,
			[]*Profile{candidate},
			map[int64]questionnaire.AnswerSet{2: answers}, catalog)
		require.NoError(t, err)
		assert.Zero(t, ranking.Len())
	})

	t.Run("insufficient data is skipped", func(t *testing.T) {
		ranker := NewRanker(newFakePairChecker(), 0)

		ranking, err := ranker.Rank(context.Background(), testProfile(1, "female", 30), answers,
			[]*Profile{testProfile(2, "male", 30)},
			map[int64]questionnaire.AnswerSet{2: {}}, catalog)
		require.NoError(t, err)
		assert.Zero(t, ranking.Len())
	})
}

func TestRanking_CursorRestartable(t *testing.T) {
	ranking := &Ranking{items: []RankedCandidate{
		{UserID: 3, Overall: 0.9},
		{UserID: 7, Overall: 0.8},
	}}

	first, ok := ranking.Next()
	require.True(t, ok)
	assert.Equal(t, int64(3), first.UserID)

	second, ok := ranking.Next()
	require.True(t, ok)
	assert.Equal(t, int64(7), second.UserID)

	_, ok = ranking.Next()
	assert.False(t, ok)

	ranking.Reset()
	again, ok := ranking.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestWithinPreferences_Distance(t *testing.T) {
	user := testProfile(1, "female", 30)
	user.Latitude, user.Longitude = 48.8566, 2.3522 // Paris

	far := testProfile(2, "male", 30)
	far.Latitude, far.Longitude = 43.2965, 5.3698 // Marseille

	limit := 100.0
	user.PreferredDistance = &limit
	assert.False(t, withinPreferences(user, far))

	limit = 1000.0
	assert.True(t, withinPreferences(user, far))
}
