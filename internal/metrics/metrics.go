package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters exposed on /metrics.
var (
	ScansIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badgetrack_scans_ingested_total",
		Help: "Raw scan log entries accepted by the API.",
	})

	ScansDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "badgetrack_scans_discarded_total",
		Help: "Scans the derivation engine discarded, by reason.",
	}, []string{"reason"})

	CheckInsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badgetrack_checkins_recorded_total",
		Help: "First-scan check-ins written to attendance records.",
	})

	CheckOutsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badgetrack_checkouts_recorded_total",
		Help: "Second-scan check-outs written to attendance records.",
	})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "badgetrack_classifications_total",
		Help: "Classifier outcomes, by stage and result.",
	}, []string{"stage", "result"})

	MaterializerRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badgetrack_materializer_runs_total",
		Help: "Successful active-session materializer cycles.",
	})

	SweeperFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "badgetrack_sweeper_fills_total",
		Help: "Absent records written by the absence sweeper.",
	})
)
