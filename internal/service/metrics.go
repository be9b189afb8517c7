package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricItemsClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_items_claimed_total",
		Help: "Job items successfully claimed by workers.",
	})

	metricClaimConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_claim_conflicts_total",
		Help: "Claim attempts lost to a concurrent worker and retried with another candidate.",
	})

	metricItemsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesmith_items_completed_total",
		Help: "Job items finished successfully, by kind.",
	}, []string{"kind"})

	metricItemsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storesmith_items_failed_total",
		Help: "Job items finished with an error, by kind.",
	}, []string{"kind"})

	metricGenerationSubmits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_generation_submits_total",
		Help: "Requests handed to the external generation provider.",
	})

	metricGenerationPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_generation_polls_total",
		Help: "Poll calls against the external generation provider.",
	})

	metricPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_publishes_total",
		Help: "Item results pushed to the external catalog.",
	})

	metricPublishConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storesmith_publish_conflicts_total",
		Help: "Duplicate publish attempts resolved to idempotent success.",
	})

	metricStaleItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "storesmith_stale_items",
		Help: "In-flight items older than the staleness threshold.",
	})
)
