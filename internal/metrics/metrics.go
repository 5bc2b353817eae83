// Package metrics exposes Prometheus collectors for the monitoring pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu  sync.RWMutex
	reg *prometheus.Registry

	probesTotal    *prometheus.CounterVec
	probeDuration  *prometheus.HistogramVec
	schedulerTicks *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec
	wsClients      prometheus.Gauge
	eventsDropped  prometheus.Counter
)

func init() {
	resetLocked()
}

// Reset clears and reinitializes all collectors. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resetLocked()
}

// Handler returns the Prometheus scrape endpoint.
func Handler() http.Handler {
	mu.RLock()
	registry := reg
	mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one completed probe with its outcome.
func ObserveProbe(serviceType, status string, duration time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	if probesTotal != nil {
		probesTotal.WithLabelValues(serviceType, status).Inc()
	}
	if probeDuration != nil {
		probeDuration.WithLabelValues(serviceType).Observe(duration.Seconds())
	}
}

// IncSchedulerTick counts a scheduler tick. outcome is "run", "shed" or
// "skipped".
func IncSchedulerTick(outcome string) {
	mu.RLock()
	defer mu.RUnlock()
	if schedulerTicks != nil {
		schedulerTicks.WithLabelValues(outcome).Inc()
	}
}

// SetQueueDepth records the current backlog of one task kind.
func SetQueueDepth(kind string, depth int) {
	mu.RLock()
	defer mu.RUnlock()
	if queueDepth != nil {
		queueDepth.WithLabelValues(kind).Set(float64(depth))
	}
}

// AddWSClients adjusts the connected websocket client gauge.
func AddWSClients(delta int) {
	mu.RLock()
	defer mu.RUnlock()
	if wsClients != nil {
		wsClients.Add(float64(delta))
	}
}

// IncEventsDropped counts events dropped by slow websocket subscribers.
func IncEventsDropped(n int64) {
	mu.RLock()
	defer mu.RUnlock()
	if eventsDropped != nil && n > 0 {
		eventsDropped.Add(float64(n))
	}
}

func resetLocked() {
	registry := prometheus.NewRegistry()

	probes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stamon",
		Name:      "probes_total",
		Help:      "Total completed probes grouped by service type and outcome status.",
	}, []string{"type", "status"})

	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stamon",
		Name:      "probe_duration_seconds",
		Help:      "Duration of probes by service type.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"type"})

	ticks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stamon",
		Name:      "scheduler_ticks_total",
		Help:      "Scheduler ticks grouped by outcome (run, shed, skipped).",
	}, []string{"outcome"})

	depth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "stamon",
		Name:      "queue_depth",
		Help:      "Current number of queued tasks by kind.",
	}, []string{"kind"})

	clients := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stamon",
		Name:      "ws_clients",
		Help:      "Currently connected websocket clients.",
	})

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stamon",
		Name:      "events_dropped_total",
		Help:      "Events dropped because a websocket subscriber lagged.",
	})

	registry.MustRegister(probes, durations, ticks, depth, clients, dropped)

	reg = registry
	probesTotal = probes
	probeDuration = durations
	schedulerTicks = ticks
	queueDepth = depth
	wsClients = clients
	eventsDropped = dropped
}
