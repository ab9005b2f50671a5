package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	scoreCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_score_cache_lookups_total",
			Help: "Score cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	rankingsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_rankings_generated_total",
			Help: "Total number of candidate rankings produced",
		},
	)

	rankingPoolSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_ranking_pool_size",
			Help:    "Candidate pool size per ranking request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

func RecordCompatibilityScore(score float64) {
	compatibilityScores.Observe(score)
}

func RecordCacheLookup(hit bool) {
	if hit {
		scoreCacheLookups.WithLabelValues("hit").Inc()
	} else {
		scoreCacheLookups.WithLabelValues("miss").Inc()
	}
}

func RecordRanking(poolSize int) {
	rankingsGenerated.Inc()
	rankingPoolSize.Observe(float64(poolSize))
}
