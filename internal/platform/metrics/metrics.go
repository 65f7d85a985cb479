package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the mood pipeline.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	errorsTotal            prometheus.Counter
	ticksTotal             prometheus.Counter
	ticksSkippedTotal      prometheus.Counter
	inferenceFailuresTotal prometheus.Counter
	catalogFallbacksTotal  prometheus.Counter
	playlistsCreatedTotal  prometheus.Counter
	loopState              prometheus.Gauge
	wsClients              prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	ticksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_ticks_total",
		Help: "Total number of capture loop ticks that launched a pipeline",
	})
	ticksSkippedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_ticks_skipped_total",
		Help: "Total number of ticks dropped because a pipeline was in flight",
	})
	inferenceFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_inference_failures_total",
		Help: "Total number of failed mood classifications",
	})
	catalogFallbacksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_catalog_fallbacks_total",
		Help: "Total number of playlist resolutions served from the local fallback",
	})
	playlistsCreatedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mood_playlists_created_total",
		Help: "Total number of real catalog playlists created",
	})
	loopState := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mood_loop_state",
		Help: "Capture loop state (0=idle, 1=running, 2=paused)",
	})
	wsClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mood_ws_clients",
		Help: "Number of connected realtime video-mood clients",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		ticksTotal,
		ticksSkippedTotal,
		inferenceFailuresTotal,
		catalogFallbacksTotal,
		playlistsCreatedTotal,
		loopState,
		wsClients,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		errorsTotal:            errorsTotal,
		ticksTotal:             ticksTotal,
		ticksSkippedTotal:      ticksSkippedTotal,
		inferenceFailuresTotal: inferenceFailuresTotal,
		catalogFallbacksTotal:  catalogFallbacksTotal,
		playlistsCreatedTotal:  playlistsCreatedTotal,
		loopState:              loopState,
		wsClients:              wsClients,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncTicks increments the launched-pipeline tick counter.
func (m *Metrics) IncTicks() {
	m.ticksTotal.Inc()
}

// IncTicksSkipped increments the dropped tick counter.
func (m *Metrics) IncTicksSkipped() {
	m.ticksSkippedTotal.Inc()
}

// IncInferenceFailures increments the failed classification counter.
func (m *Metrics) IncInferenceFailures() {
	m.inferenceFailuresTotal.Inc()
}

// IncCatalogFallbacks increments the fallback resolution counter.
func (m *Metrics) IncCatalogFallbacks() {
	m.catalogFallbacksTotal.Inc()
}

// IncPlaylistsCreated increments the created playlist counter.
func (m *Metrics) IncPlaylistsCreated() {
	m.playlistsCreatedTotal.Inc()
}

// SetLoopState sets the loop state gauge.
func (m *Metrics) SetLoopState(s int) {
	m.loopState.Set(float64(s))
}

// IncWSClients increments the connected websocket client gauge.
func (m *Metrics) IncWSClients() {
	m.wsClients.Inc()
}

// DecWSClients decrements the connected websocket client gauge.
func (m *Metrics) DecWSClients() {
	m.wsClients.Dec()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
