// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package cache

import "github.com/prometheus/client_golang/prometheus"

// Flush status labels.
const (
	statusOK    = "ok"
	statusError = "error"
)

// Metrics tracks cache size and flush outcomes.
type Metrics struct {
	Flushes        *prometheus.CounterVec
	FlushedRecords prometheus.Counter
	Entries        prometheus.GaugeFunc
}

// NewMetrics creates and registers cache metrics. The entries gauge reads c
// at scrape time.
func NewMetrics(reg prometheus.Registerer, c *PlayerCache) *Metrics {
	m := &Metrics{
		Flushes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_cache_flushes_total",
				Help: "Total number of cache flushes to the credential store by status",
			},
			[]string{"status"},
		),
		FlushedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authgate_cache_flushed_records_total",
			Help: "Total number of records written by successful cache flushes",
		}),
		Entries: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "authgate_cache_entries",
				Help: "Number of credential records held in the player cache",
			},
			func() float64 { return float64(c.Len()) },
		),
	}

	reg.MustRegister(m.Flushes, m.FlushedRecords, m.Entries)

	return m
}

func (m *Metrics) recordFlush(records int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Flushes.WithLabelValues(statusError).Inc()
		return
	}
	m.Flushes.WithLabelValues(statusOK).Inc()
	m.FlushedRecords.Add(float64(records))
}
