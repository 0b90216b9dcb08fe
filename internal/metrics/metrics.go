package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Governor Prometheus metrics. The "governor" label carries the instance name (requests, operations).
var (
	GovernorActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kbassistant",
			Name:      "governor_active_operations",
			Help:      "Operations currently holding a governor slot",
		},
		[]string{"governor"},
	)

	GovernorQueued = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "kbassistant",
			Name:      "governor_queued_operations",
			Help:      "Admissions waiting for a governor slot",
		},
		[]string{"governor"},
	)

	GovernorOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbassistant",
			Name:      "governor_operations_total",
			Help:      "Governed operations by outcome",
		},
		[]string{"governor", "operation", "outcome"},
	)

	GovernorOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbassistant",
			Name:      "governor_operation_duration_seconds",
			Help:      "Time from slot grant to completion or timeout",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"governor", "operation"},
	)

	GovernorQueueWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "kbassistant",
			Name:      "governor_queue_wait_seconds",
			Help:      "Time spent queued before a slot was granted",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"governor"},
	)
)

// Resolution and transport metrics.
var (
	AnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbassistant",
			Name:      "answers_total",
			Help:      "Resolved answers by winning stage",
		},
		[]string{"source", "mode"},
	)

	StageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbassistant",
			Name:      "resolver_stage_failures_total",
			Help:      "Collaborator failures absorbed by a resolution stage",
		},
		[]string{"stage"},
	)

	DuplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "kbassistant",
			Name:      "inbound_duplicates_total",
			Help:      "Inbound events skipped because their id was already processed",
		},
		[]string{"origin"},
	)
)

var registered bool

// Register registers all collectors with the default registry. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		GovernorActive,
		GovernorQueued,
		GovernorOperationsTotal,
		GovernorOperationDuration,
		GovernorQueueWait,
		AnswersTotal,
		StageFailuresTotal,
		DuplicatesTotal,
	)
	registered = true
}

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
