// Package metrics holds the Prometheus collectors for provider calls and
// verification outcomes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "worldgate"

type Metrics struct {
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	logins           *prometheus.CounterVec
	proofs           *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		providerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Outbound identity provider requests by call and HTTP status (0 for transport errors).",
		}, []string{"call", "status"}),
		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of outbound identity provider requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"call"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Completed login attempts by outcome.",
		}, []string{"outcome"}),
		proofs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_verifications_total",
			Help:      "Proof verifications by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) ObserveProviderCall(call string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(call, strconv.Itoa(status)).Inc()
	m.providerDuration.WithLabelValues(call).Observe(elapsed.Seconds())
}

func (m *Metrics) LoginCompleted(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProofVerified(outcome string) {
	if m == nil {
		return
	}
	m.proofs.WithLabelValues(outcome).Inc()
}
