package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics các metric Prometheus của service resolve
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	StageOutcomes   *prometheus.CounterVec
	CacheLookups    *prometheus.CounterVec
	RunningJobs     prometheus.Gauge
	Classifications *prometheus.CounterVec
}

// NewMetrics đăng ký metric vào reg. Test dùng prometheus.NewRegistry() để không trùng.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "address_resolutions_total",
			Help: "Total number of address resolutions by result status",
		}, []string{"status"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "address_resolve_duration_seconds",
			Help:    "Duration of a single address resolution, cache lookups included",
			Buckets: []float64{.0001, .0005, .001, .0025, .005, .01, .025, .05, .1, .5},
		}),
		StageOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "address_stage_outcomes_total",
			Help: "Total number of stage outcomes by level and outcome",
		}, []string{"level", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "address_cache_lookups_total",
			Help: "Total number of result cache lookups by result",
		}, []string{"result"}),
		RunningJobs: f.NewGauge(prometheus.GaugeOpts{
			Name: "address_batch_jobs_running",
			Help: "Current number of running batch jobs",
		}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "address_quality_classifications_total",
			Help: "Total number of classified low-rated records by category",
		}, []string{"category"}),
	}
}

func (m *Metrics) ObserveResolution(status string, seconds float64) {
	m.Resolutions.WithLabelValues(status).Inc()
	m.ResolveDuration.Observe(seconds)
}

func (m *Metrics) IncrementStage(level, outcome string) {
	m.StageOutcomes.WithLabelValues(level, outcome).Inc()
}

func (m *Metrics) IncrementCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementClassification(category string) {
	m.Classifications.WithLabelValues(category).Inc()
}
