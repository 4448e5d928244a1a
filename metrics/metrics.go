// tagbox
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of tagbox.
//
// tagbox is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// tagbox is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with tagbox; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

// Package metrics exposes player counters in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/ZaparooProject/tagbox/card"
	"github.com/ZaparooProject/tagbox/mapper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "tagbox_"

// Metrics bundles the player metrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	CardEvents      *prometheus.CounterVec
	Resolves        *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
}

// New constructs and registers metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CardEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "card_events_total",
				Help: "Card events by kind",
			},
			[]string{"kind"},
		),
		Resolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "resolve_total",
				Help: "Mapping lookups by result code",
			},
			[]string{"code"},
		),
		ResolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "resolve_duration_seconds",
			Help:    "Mapping lookup duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
	m.registry.MustRegister(
		m.CardEvents,
		m.Resolves,
		m.ResolveDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CardEvent counts ev. NoChange is not counted, it is the idle poll.
func (m *Metrics) CardEvent(ev card.Event) {
	if ev.Kind == card.NoChange {
		return
	}
	m.CardEvents.WithLabelValues(ev.Kind.String()).Inc()
}

// ObserveResolve records one lookup. It matches mapper.Observer.
func (m *Metrics) ObserveResolve(code mapper.Code, d time.Duration) {
	m.Resolves.WithLabelValues(code.String()).Inc()
	m.ResolveDuration.Observe(d.Seconds())
}

// Registry returns the registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
