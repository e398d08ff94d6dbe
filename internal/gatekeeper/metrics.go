// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package gatekeeper

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts handshake decisions.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics creates and registers gatekeeper metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_handshake_decisions_total",
				Help: "Total number of handshake decisions by outcome",
			},
			[]string{"decision"},
		),
	}
	reg.MustRegister(m.Decisions)
	return m
}

func (m *Metrics) recordDecision(d Decision) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(d.String()).Inc()
}
