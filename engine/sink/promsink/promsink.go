// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package promsink implements an in-process MetricsSink that records
// each named point emitted by the engine as a Prometheus GaugeVec keyed
// by its graphite-safe path segments, feeding the same reporter the
// rest of the ambient stack scrapes.
package promsink

import (
	"context"
	"strings"

	"routingtables/common/reporter"
	"routingtables/engine"
)

// Configuration describes the Prometheus-backed MetricsSink. It has no
// options: points are always registered against whatever reporter it
// is handed.
type Configuration struct{}

// DefaultConfiguration returns the default (only) Prometheus sink
// configuration.
func DefaultConfiguration() Configuration {
	return Configuration{}
}

// NewMetricsSink instantiates the Prometheus sink, satisfying the
// metrics-sink provider interface registered by the command-line
// configuration.
func (c Configuration) NewMetricsSink(r *reporter.Reporter) (engine.MetricsSink, error) {
	return New(r), nil
}

// Sink is a MetricsSink that fans points into a single GaugeVec with
// one "path" label holding the whole metric path joined with '.', so a
// metric path of any depth maps onto the same label set.
type Sink struct {
	points *reporter.GaugeVec
}

// New creates a Prometheus-backed MetricsSink registered against r.
func New(r *reporter.Reporter) *Sink {
	return &Sink{
		points: r.GaugeVec(
			reporter.GaugeOpts{
				Name: "metric_points",
				Help: "Latest value of an engine metric point, keyed by its dotted path.",
			},
			[]string{"path"},
		),
	}
}

// EmitMetric records value for path at timestamp (ignored: a Prometheus
// gauge always reports its latest value, scraped on the pull-based
// /metrics endpoint rather than at the point's own timestamp).
func (s *Sink) EmitMetric(_ context.Context, path []string, value float64, _ int64) error {
	s.points.WithLabelValues(strings.Join(path, ".")).Set(value)
	return nil
}
