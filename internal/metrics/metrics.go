package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FavoriteTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardrunner_favorite_toggles_total",
		Help: "Completed favorite toggles by resulting state.",
	}, []string{"state"})

	ToggleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardrunner_favorite_toggle_duration_seconds",
		Help:    "Time to apply a favorite toggle, lock wait included.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	PartialWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardrunner_partial_writes_total",
		Help: "Multi-aggregate operations that failed after at least one write landed.",
	}, []string{"operation"})

	BizNumberCollisionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardrunner_biz_number_collisions_total",
		Help: "Business number draws rejected because the number was already in use.",
	})

	CascadeCardsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardrunner_cascade_cards_deleted_total",
		Help: "Cards removed because their publisher was deleted.",
	})

	CascadeRepairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardrunner_cascade_repairs_total",
		Help: "References removed by cascading deletion, by side of the relation.",
	}, []string{"side"})

	RepairFixesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cardrunner_repair_fixes_total",
		Help: "Relation entries corrected by the repair pass, by kind.",
	}, []string{"kind"})

	CardsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardrunner_cards_total",
		Help: "Total number of cards in the database.",
	})

	UsersTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cardrunner_users_total",
		Help: "Total number of registered users in the database.",
	})
)
