// Package metrics exposes registry and token counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	RowsIngested       *prometheus.CounterVec
	MembersCommitted   *prometheus.CounterVec
	CommitDuration     *prometheus.HistogramVec
	TokensIssued       *prometheus.CounterVec
	TokenVerifications *prometheus.CounterVec
	PhotoOperations    *prometheus.CounterVec
	MaskedFields       prometheus.Counter
}

// New registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RowsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_rows_ingested_total",
			Help: "Uploaded rows by validation outcome",
		}, []string{"outcome"}),
		MembersCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_members_committed_total",
			Help: "Registry rows changed by commits, by mode and change",
		}, []string{"mode", "change"}),
		CommitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "memberpass_commit_duration_seconds",
			Help:    "Latency of registry write transactions",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		TokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_tokens_issued_total",
			Help: "Signed tokens issued by domain",
		}, []string{"domain"}),
		TokenVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_token_verifications_total",
			Help: "Token verifications by domain and result",
		}, []string{"domain", "result"}),
		PhotoOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "memberpass_photo_operations_total",
			Help: "Photo vault operations by kind and result",
		}, []string{"op", "result"}),
		MaskedFields: factory.NewCounter(prometheus.CounterOpts{
			Name: "memberpass_masked_fields_total",
			Help: "Registry fields replaced by a placeholder after a decryption failure",
		}),
	}
}

func (m *Metrics) ObserveRow(valid bool) {
	if m == nil {
		return
	}
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	m.RowsIngested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveCommit(mode string, added, deleted int, started time.Time) {
	if m == nil {
		return
	}
	m.MembersCommitted.WithLabelValues(mode, "added").Add(float64(added))
	m.MembersCommitted.WithLabelValues(mode, "deleted").Add(float64(deleted))
	m.CommitDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
}

func (m *Metrics) TokenIssued(domain string) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(domain).Inc()
}

func (m *Metrics) TokenVerified(domain string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "rejected"
	}
	m.TokenVerifications.WithLabelValues(domain, result).Inc()
}

func (m *Metrics) PhotoOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PhotoOperations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) FieldMasked(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MaskedFields.Add(float64(n))
}
