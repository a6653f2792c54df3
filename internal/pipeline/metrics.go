package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes pipeline run counters to the surrounding orchestration.
// The engine itself owns no scrape endpoint; the caller supplies the
// registerer.
type Metrics struct {
	RunsTotal           *prometheus.CounterVec
	RecordsIn           *prometheus.CounterVec
	RecordsOut          *prometheus.CounterVec
	MalformedRecords    *prometheus.CounterVec
	DuplicatesDiscarded *prometheus.CounterVec
	Violations          *prometheus.CounterVec
	StageDuration       *prometheus.HistogramVec
}

// NewMetrics creates and registers the pipeline metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by terminal stage",
		}, []string{"stage"}),
		RecordsIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "records_in_total",
			Help:      "Raw records received per entity",
		}, []string{"entity"}),
		RecordsOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "records_out_total",
			Help:      "Silver entities produced per entity",
		}, []string{"entity"}),
		MalformedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "malformed_records_total",
			Help:      "Records excluded as malformed per entity",
		}, []string{"entity"}),
		DuplicatesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "duplicates_discarded_total",
			Help:      "Duplicate records discarded per entity",
		}, []string{"entity"}),
		Violations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medallion",
			Name:      "dq_violations_total",
			Help:      "Data quality violations per entity and severity",
		}, []string{"entity", "severity"}),
		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medallion",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}
