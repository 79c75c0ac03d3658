// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package httpserver

import "routingtables/common/reporter"

// metrics holds the Prometheus instruments used to wrap every handler
// registered through AddHandler, mirroring promhttp's own
// InstrumentHandler* helpers.
type metrics struct {
	requests   *reporter.CounterVec
	durations  *reporter.HistogramVec
	sizes      *reporter.HistogramVec
	inflights  reporter.Gauge
}

func (c *Component) initMetrics() {
	c.metrics.requests = c.r.CounterVec(
		reporter.CounterOpts{
			Name: "requests_total",
			Help: "Number of HTTP requests served.",
		},
		[]string{"handler", "code", "method"},
	)
	c.metrics.durations = c.r.HistogramVec(
		reporter.HistogramOpts{
			Name: "requests_duration_seconds",
			Help: "Duration of HTTP requests served.",
		},
		[]string{"handler"},
	)
	c.metrics.sizes = c.r.HistogramVec(
		reporter.HistogramOpts{
			Name: "responses_size_bytes",
			Help: "Size of HTTP responses served.",
		},
		[]string{"handler"},
	)
	c.metrics.inflights = c.r.Gauge(
		reporter.GaugeOpts{
			Name: "requests_inflight",
			Help: "Number of HTTP requests currently being served.",
		},
	)
}
