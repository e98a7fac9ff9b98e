// Package metrics exposes the Prometheus series this module records
// around every request: a request counter, a duration histogram, and an
// attempts histogram labeled by service and operation; an error counter
// that adds an error-class label; and an HTTP phase histogram that adds
// a phase label.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethanadams/awscore/transport"
)

// Collector wraps the Prometheus series recorded by the executor.
type Collector struct {
	requestsTotal  *prometheus.CounterVec
	requestErrors  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	attempts       *prometheus.HistogramVec
	httpPhase      *prometheus.HistogramVec
}

// NewCollector registers and returns a new Collector. Registering the
// same series twice against the same registry panics, matching
// promauto's usual behavior — callers that build more than one Executor
// sharing a process should share one Collector.
func NewCollector() *Collector {
	return &Collector{
		requestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aws_requests_total",
				Help: "Total number of requests dispatched, labeled by service and operation.",
			},
			[]string{"service", "operation"},
		),
		requestErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aws_request_errors_total",
				Help: "Total number of requests that completed with an error, labeled by service, operation, and error class.",
			},
			[]string{"service", "operation", "class"},
		),
		requestLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aws_request_duration_seconds",
				Help:    "End-to-end request duration including retries, labeled by service and operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "operation"},
		),
		attempts: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aws_request_attempts",
				Help:    "Number of attempts (including the first) taken to complete a request.",
				Buckets: []float64{1, 2, 3, 4, 5, 8},
			},
			[]string{"service", "operation"},
		),
		httpPhase: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aws_request_http_phase_seconds",
				Help:    "Granular HTTP timing breakdown (dns, connect, tls, ttfb) for one round trip, labeled by service, operation, and phase.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"service", "operation", "phase"},
		),
	}
}

// RecordRequest records one completed operation, whatever the outcome.
func (c *Collector) RecordRequest(service, operation string, duration time.Duration, attempts int, errClass string) {
	c.requestsTotal.WithLabelValues(service, operation).Inc()
	c.requestLatency.WithLabelValues(service, operation).Observe(duration.Seconds())
	c.attempts.WithLabelValues(service, operation).Observe(float64(attempts))
	if errClass != "" {
		c.requestErrors.WithLabelValues(service, operation, errClass).Inc()
	}
}

// TimingObserver returns a transport.Observer that records a round
// trip's connection-setup breakdown under service/operation, for wiring
// into transport.WithTiming.
func (c *Collector) TimingObserver(service, operation string) transport.Observer {
	return func(status int, t transport.Timings) {
		if t.DNSLookup > 0 {
			c.httpPhase.WithLabelValues(service, operation, transport.PhaseDNS).Observe(t.DNSLookup.Seconds())
		}
		if t.TCPConnect > 0 {
			c.httpPhase.WithLabelValues(service, operation, transport.PhaseConnect).Observe(t.TCPConnect.Seconds())
		}
		if t.TLSHandshake > 0 {
			c.httpPhase.WithLabelValues(service, operation, transport.PhaseTLS).Observe(t.TLSHandshake.Seconds())
		}
		if t.TTFB > 0 {
			c.httpPhase.WithLabelValues(service, operation, transport.PhaseTTFB).Observe(t.TTFB.Seconds())
		}
	}
}
