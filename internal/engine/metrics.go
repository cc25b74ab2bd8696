package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "duckview_engine_active_sessions",
			Help: "Number of engine sessions currently initialized.",
		},
	)

	initDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckview_engine_init_seconds",
			Help:    "Duration from bundle selection to dataset registered, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bundle"},
	)

	initsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_engine_inits_total",
			Help: "Session initializations by outcome (ok or the failing stage).",
		},
		[]string{"outcome"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckview_engine_query_seconds",
			Help:    "Query execution time including result conversion, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"bundle"},
	)

	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckview_engine_queries_total",
			Help: "Total number of queries executed.",
		},
		[]string{"bundle", "status"},
	)
)

func init() {
	prometheus.MustRegister(activeSessions)
	prometheus.MustRegister(initDuration)
	prometheus.MustRegister(initsTotal)
	prometheus.MustRegister(queryDuration)
	prometheus.MustRegister(queriesTotal)

	for _, outcome := range []string{"ok", StageBundle, StageWorker, StageFetch, StagePrepare, StageRegister, StageSetup} {
		initsTotal.WithLabelValues(outcome)
	}
}
