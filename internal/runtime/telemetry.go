package runtime

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage names recorded by the orchestrator.
const (
	StageRetrieval = "retrieval"
	StageSynthesis = "synthesis"
	StagePersist   = "persist"
	StageVoices    = "voices"
)

// Metrics holds the service collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	stageDuration  *prometheus.HistogramVec
	scrapeFailures prometheus.Counter
	requests       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "voicesearch",
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each orchestration stage",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"stage", "outcome"}),
		scrapeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicesearch",
			Name:      "scrape_failures_total",
			Help:      "Candidate URLs skipped because scraping failed",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "voicesearch",
			Name:      "requests_total",
			Help:      "API requests by route and status code",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.stageDuration,
		m.scrapeFailures,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records how long stage took; err decides the outcome label.
func (m *Metrics) ObserveStage(stage string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(took.Seconds())
}

func (m *Metrics) ScrapeFailed() {
	if m == nil {
		return
	}
	m.scrapeFailures.Inc()
}

func (m *Metrics) Request(route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
// Disabled metrics answer 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
