// Package metrics exposes Prometheus instrumentation for the planner:
// model build cost, solve latency per backend, run outcomes, and HTTP
// traffic. Everything registers on a dedicated registry served at
// /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry backs the /metrics endpoint.
var Registry = prometheus.NewRegistry()

var (
	buildDuration = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "truckplan_model_build_seconds",
		Help:    "Wall time to build one optimization model.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
	})
	modelVariables = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "truckplan_model_variables",
		Help:    "Variable count of built models.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})
	modelConstraints = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "truckplan_model_constraints",
		Help:    "Constraint count of built models.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})
	solveDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truckplan_solve_seconds",
		Help:    "Solver wall time by backend and terminal status.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"backend", "status"})
	runsTotal = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "truckplan_runs_total",
		Help: "Completed plan runs by outcome.",
	}, []string{"status"})
	httpRequests = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "truckplan_http_requests_total",
		Help: "HTTP requests by method, route, and status code.",
	}, []string{"method", "route", "code"})
	httpDuration = promauto.With(Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "truckplan_http_request_seconds",
		Help:    "HTTP handler latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	webhookDeliveries = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "truckplan_webhook_deliveries_total",
		Help: "Webhook delivery attempts by outcome.",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// ObserveBuild records one model construction.
func ObserveBuild(d time.Duration, vars, constraints int) {
	buildDuration.Observe(d.Seconds())
	modelVariables.Observe(float64(vars))
	modelConstraints.Observe(float64(constraints))
}

// ObserveSolve records one solver invocation.
func ObserveSolve(backend, status string, d time.Duration) {
	solveDuration.WithLabelValues(backend, status).Observe(d.Seconds())
}

// ObserveRun counts one completed run by outcome.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTP records one handled request.
func ObserveHTTP(method, route string, code int, d time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveWebhook counts one webhook delivery attempt.
func ObserveWebhook(outcome string) {
	webhookDeliveries.WithLabelValues(outcome).Inc()
}
