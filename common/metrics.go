/*
 *
 * conductor - synchronization engine for browser tests
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels of the wait metrics.
const (
	outcomeFound     = "found"
	outcomeExhausted = "exhausted"
	outcomeCanceled  = "canceled"
	outcomeFailed    = "failed"
)

// Metrics counts what the wait primitives do. A nil *Metrics records
// nothing.
type Metrics struct {
	WaitAttempts   *prometheus.CounterVec
	WaitOutcomes   *prometheus.CounterVec
	WaitDuration   *prometheus.HistogramVec
	WindowSwitches prometheus.Counter
	Screenshots    *prometheus.CounterVec
}

// NewMetrics creates the wait metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		WaitAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "wait_attempts_total",
			Help:      "Number of queries made by the waits, by kind of wait.",
		}, []string{"wait"}),
		WaitOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "wait_outcomes_total",
			Help:      "Number of finished waits, by kind of wait and outcome.",
		}, []string{"wait", "outcome"}),
		WaitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "conductor",
			Name:      "wait_duration_seconds",
			Help:      "Time spent in the waits, by kind of wait.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"wait"}),
		WindowSwitches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "window_switches_total",
			Help:      "Number of times the driver was switched into a window.",
		}),
		Screenshots: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conductor",
			Name:      "failure_screenshots_total",
			Help:      "Number of failure screenshots, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) attempt(wait string) {
	if m == nil {
		return
	}
	m.WaitAttempts.WithLabelValues(wait).Inc()
}

func (m *Metrics) finish(wait, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.WaitOutcomes.WithLabelValues(wait, outcome).Inc()
	m.WaitDuration.WithLabelValues(wait).Observe(seconds)
}

func (m *Metrics) windowSwitch() {
	if m == nil {
		return
	}
	m.WindowSwitches.Inc()
}

func (m *Metrics) screenshot(result string) {
	if m == nil {
		return
	}
	m.Screenshots.WithLabelValues(result).Inc()
}
