package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"

	OutcomeInserted  = "inserted"
	OutcomeDuplicate = "duplicate"
	OutcomeUpdated   = "updated"
)

var (
	ChannelLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observatory_channel_lookups_total",
		Help: "Channel metadata lookups by outcome",
	}, []string{"outcome"})

	MessagesRetrieved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observatory_messages_retrieved_total",
		Help: "The total number of channel messages retrieved from the API",
	}, []string{"channel"})

	HistoryPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observatory_history_pages_total",
		Help: "History pages requested by outcome",
	}, []string{"outcome"})

	FloodWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatory_flood_waits_total",
		Help: "Number of FLOOD_WAIT responses honoured",
	})

	FloodWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "observatory_flood_wait_seconds_total",
		Help: "Total seconds spent waiting on FLOOD_WAIT responses",
	})

	RecordsPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observatory_records_persisted_total",
		Help: "Records written per table by outcome",
	}, []string{"table", "outcome"})

	RetrievalRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "observatory_retrieval_run_duration_seconds",
		Help:    "Duration of retrieval runs",
		Buckets: []float64{10, 30, 60, 300, 900, 1800, 3600, 7200, 14400},
	}, []string{"kind", "status"})

	GraphBuildDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "observatory_graph_build_duration_seconds",
		Help:    "Duration of network construction including community detection",
		Buckets: prometheus.DefBuckets,
	}, []string{"network"})

	GraphNodes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "observatory_graph_nodes",
		Help: "Node count of the most recently built network",
	}, []string{"network"})

	GraphPruneThreshold = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "observatory_graph_prune_threshold",
		Help: "Edge weight threshold applied by the most recent size-bounded prune",
	}, []string{"network"})

	AnalysisCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "observatory_analysis_cache_lookups_total",
		Help: "Analysis network cache lookups by result",
	}, []string{"result"})
)

// RecordSave adds persisted record counts for a table.
func RecordSave(table string, inserted, duplicates, updated int) {
	RecordsPersisted.WithLabelValues(table, OutcomeInserted).Add(float64(inserted))
	RecordsPersisted.WithLabelValues(table, OutcomeDuplicate).Add(float64(duplicates))
	RecordsPersisted.WithLabelValues(table, OutcomeUpdated).Add(float64(updated))
}
