// Package metrics defines the prometheus collectors exported by the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flowauth"

// Authentication results used as the "result" label
const (
	ResultSuccess      = "success"
	ResultInvalidNonce = "invalid_nonce"
	ResultExpiredNonce = "expired_nonce"
	ResultInvalidProof = "invalid_account_proof"
	ResultError        = "error"
)

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	noncesIssued   prometheus.Counter
	noncesPurged   prometheus.Counter
	authAttempts   *prometheus.CounterVec
	verifyDuration prometheus.Histogram
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		noncesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_issued_total",
			Help:      "Number of authentication challenges issued.",
		}),
		noncesPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonces_purged_total",
			Help:      "Number of expired challenges removed by the janitor.",
		}),
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by result.",
		}, []string{"result"}),
		verifyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "account_proof_verify_seconds",
			Help:      "Latency of account proof verification against the ledger.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) NonceIssued() {
	if m == nil {
		return
	}
	m.noncesIssued.Inc()
}

func (m *Metrics) NoncesPurged(n int) {
	if m == nil {
		return
	}
	m.noncesPurged.Add(float64(n))
}

func (m *Metrics) AuthAttempt(result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.verifyDuration.Observe(d.Seconds())
}
