package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "research"

// Collector holds every counter the pipeline records. A nil *Collector is
// valid and records nothing, so components can run without metrics in tests.
type Collector struct {
	sourceQueries *prometheus.CounterVec
	sourcePosts   *prometheus.CounterVec
	sourceSkips   *prometheus.CounterVec
	llmCalls      *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sourceQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_queries_total",
			Help:      "Source searches by outcome.",
		}, []string{"source", "outcome"}),
		sourcePosts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_posts_added_total",
			Help:      "Unique posts each source contributed to a corpus.",
		}, []string{"source"}),
		sourceSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_skips_total",
			Help:      "Sources skipped by the connectivity probe or abandoned by the circuit breaker.",
		}, []string{"source", "reason"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "LLM provider calls by outcome.",
		}, []string{"provider", "outcome"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Post classifications by the rung that resolved them.",
		}, []string{"resolution", "relevant"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole research runs.",
			Buckets:   []float64{10, 30, 60, 120, 300, 600, 1200, 1800},
		}, []string{"status"}),
	}

	reg.MustRegister(
		c.sourceQueries,
		c.sourcePosts,
		c.sourceSkips,
		c.llmCalls,
		c.resolutions,
		c.runDuration,
	)

	return c
}

func (c *Collector) RecordSourceQuery(source string, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.sourceQueries.WithLabelValues(source, outcome).Inc()
}

func (c *Collector) RecordSourcePosts(source string, added int) {
	if c == nil || added <= 0 {
		return
	}
	c.sourcePosts.WithLabelValues(source).Add(float64(added))
}

func (c *Collector) RecordSourceSkip(source, reason string) {
	if c == nil {
		return
	}
	c.sourceSkips.WithLabelValues(source, reason).Inc()
}

// RecordLLMCall records one provider call. outcome is success, rate_limited,
// skipped or error.
func (c *Collector) RecordLLMCall(provider, outcome string) {
	if c == nil {
		return
	}
	c.llmCalls.WithLabelValues(provider, outcome).Inc()
}

func (c *Collector) RecordResolution(resolution string, relevant bool) {
	if c == nil {
		return
	}
	c.resolutions.WithLabelValues(resolution, strconv.FormatBool(relevant)).Inc()
}

func (c *Collector) RecordRun(status string, d time.Duration) {
	if c == nil {
		return
	}
	c.runDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Handler serves the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
