// Package metrics exposes Prometheus instrumentation for the broker, the
// leader service, and the follower client. Registration is lazy and
// guarded by sync.Once the same way the teacher's rotation health metrics
// are, so importing this package in a test binary that never calls
// InitMetrics is harmless.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	credentialRequestsTotal *prometheus.CounterVec
	credentialCacheHits     *prometheus.CounterVec
	credentialCacheMisses   *prometheus.CounterVec
	providerLatency         *prometheus.HistogramVec
	tokensIssuedTotal       *prometheus.CounterVec
	revocationsTotal        prometheus.Counter
	keyRotationsTotal       prometheus.Counter
	followerSyncTotal       *prometheus.CounterVec
	followerState           prometheus.Gauge

	once       sync.Once
	registered bool
)

// InitMetrics registers every collector. Safe to call more than once;
// only the first call has effect.
func InitMetrics() {
	once.Do(func() {
		credentialRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcred_credential_requests_total",
				Help: "Total credential issuance requests handled by the broker facade",
			},
			[]string{"provider", "result"},
		)
		credentialCacheHits = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcred_credential_cache_hits_total",
				Help: "Credential cache hits by provider",
			},
			[]string{"provider"},
		)
		credentialCacheMisses = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcred_credential_cache_misses_total",
				Help: "Credential cache misses by provider",
			},
			[]string{"provider"},
		)
		providerLatency = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcred_provider_issue_duration_seconds",
				Help:    "Upstream provider credential issuance latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"provider"},
		)
		tokensIssuedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcred_tokens_issued_total",
				Help: "Tokens issued by operation (create_root, delegate, refresh)",
			},
			[]string{"operation"},
		)
		revocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentcred_revocations_total",
			Help: "Total tokens revoked at the leader",
		})
		keyRotationsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "agentcred_signing_key_rotations_total",
			Help: "Total signing key rotations performed at the leader",
		})
		followerSyncTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcred_follower_sync_total",
				Help: "Follower sync attempts by result",
			},
			[]string{"result"},
		)
		followerState = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "agentcred_follower_state",
			Help: "Follower state machine: 0=healthy 1=degraded 2=limited 3=offline",
		})

		registered = true
	})
}

// RecordCredentialRequest records a get_credential outcome.
func RecordCredentialRequest(provider, result string) {
	if !registered {
		return
	}
	credentialRequestsTotal.WithLabelValues(provider, result).Inc()
}

// RecordCacheHit records a credential cache hit for provider.
func RecordCacheHit(provider string) {
	if !registered {
		return
	}
	credentialCacheHits.WithLabelValues(provider).Inc()
}

// RecordCacheMiss records a credential cache miss for provider.
func RecordCacheMiss(provider string) {
	if !registered {
		return
	}
	credentialCacheMisses.WithLabelValues(provider).Inc()
}

// ObserveProviderLatency records how long an upstream issuance call took.
func ObserveProviderLatency(provider string, seconds float64) {
	if !registered {
		return
	}
	providerLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordTokenIssued records a token-engine operation.
func RecordTokenIssued(operation string) {
	if !registered {
		return
	}
	tokensIssuedTotal.WithLabelValues(operation).Inc()
}

// RecordRevocation increments the revocation counter.
func RecordRevocation() {
	if !registered {
		return
	}
	revocationsTotal.Inc()
}

// RecordKeyRotation increments the signing key rotation counter.
func RecordKeyRotation() {
	if !registered {
		return
	}
	keyRotationsTotal.Inc()
}

// RecordFollowerSync records a sync attempt's result ("ok" or "failed").
func RecordFollowerSync(result string) {
	if !registered {
		return
	}
	followerSyncTotal.WithLabelValues(result).Inc()
}

// SetFollowerState publishes the follower's current state ordinal.
func SetFollowerState(state int) {
	if !registered {
		return
	}
	followerState.Set(float64(state))
}

// IsRegistered reports whether InitMetrics has run.
func IsRegistered() bool {
	return registered
}
