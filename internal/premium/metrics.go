// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package premium

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts verification outcomes.
type Metrics struct {
	Lookups   *prometheus.CounterVec
	CacheHits prometheus.Counter
}

// NewMetrics creates and registers verification metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_premium_lookups_total",
				Help: "Total number of identity authority lookups by result",
			},
			[]string{"result"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_premium_cache_hits_total",
			Help: "Total number of verifications answered from the premium name cache",
		}),
	}

	reg.MustRegister(m.Lookups)
	reg.MustRegister(m.CacheHits)

	return m
}

func (m *Metrics) recordLookup(r Result) {
	if m == nil {
		return
	}
	m.Lookups.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}
