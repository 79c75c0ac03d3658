// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"context"

	"github.com/benbjohnson/clock"
)

// IntervalDriver marks the start and end of each publication interval,
// applies the full-feed filter and hands the resulting view to the
// configured sinks.
type IntervalDriver struct {
	clock  clock.Clock
	config Configuration

	view      *View
	views     MetricsSink
	viewSinks []ViewSink
}

// NewIntervalDriver creates an interval driver over view, publishing to
// sinks at each interval_end. c defaults to the real wall clock when
// nil.
func NewIntervalDriver(c clock.Clock, config Configuration, view *View, sinks []ViewSink, metrics MetricsSink) *IntervalDriver {
	if c == nil {
		c = clock.New()
	}
	return &IntervalDriver{clock: c, config: config, view: view, viewSinks: sinks, views: metrics}
}

// Start implements interval_start(t_start): sets view_time and
// snapshots the wall clock for the interval about to begin.
func (d *IntervalDriver) Start(tStart int64) {
	d.view.ViewTime = tStart
	d.view.WallTime = d.clock.Now().Unix()
}

// fullFeedFilter builds the full-feed predicate: a peer is accepted
// iff its Active v4 cell count reaches the v4 threshold or its Active
// v6 cell count reaches the v6 threshold.
func (d *IntervalDriver) fullFeedFilter() PeerAcceptFunc {
	v4Threshold, v6Threshold := d.config.effectiveThresholds()
	if v4Threshold == 0 && v6Threshold == 0 {
		return AcceptAllPeers
	}
	return func(id PeerID, _ *Peer) bool {
		v4, v6 := d.view.ActiveCellCount(id)
		return v4 >= v4Threshold || v6 >= v6Threshold
	}
}

// End implements interval_end(t_end): publishes the view to every
// configured sink behind the full-feed filter, then emits metrics.
// Sink errors are non-fatal and are all collected before returning, so
// that one broken sink never prevents the others from being tried.
// collectors supplies the per-collector bookkeeping records (owned by
// the engine, not the view) needed for the per-collector series.
func (d *IntervalDriver) End(ctx context.Context, tEnd int64, collectors map[string]*Collector) []error {
	published := &PublishedView{
		ViewTime: tEnd,
		Registry: d.view.registry,
		view:     d.view,
		accept:   d.fullFeedFilter(),
	}

	var errs []error
	for _, sink := range d.viewSinks {
		if err := sink.PublishView(ctx, published); err != nil {
			errs = append(errs, err)
		}
	}

	if d.config.MetricsEnabled && d.views != nil {
		if err := d.emitMetrics(ctx, tEnd); err != nil {
			errs = append(errs, err)
		}
		errs = append(errs, emitGraphiteMetrics(ctx, d.views, d.config.MetricPrefix, collectors, d.view, tEnd)...)
	}
	return errs
}

// emitMetrics reports the fullfeed.subnets.v4/v6 diagnostics (the /24
// and /64 subnet counts over every prefix in the view's tries) to the
// metrics sink.
func (d *IntervalDriver) emitMetrics(ctx context.Context, ts int64) error {
	v4Subnets := d.view.trieV4.CountSubnets(24)
	v6Subnets := d.view.trieV6.CountSubnets(64)

	if err := d.views.EmitMetric(ctx, []string{"fullfeed", "subnets", "v4"}, float64(v4Subnets), ts); err != nil {
		return err
	}
	if err := d.views.EmitMetric(ctx, []string{"fullfeed", "subnets", "v6"}, float64(v6Subnets), ts); err != nil {
		return err
	}
	return nil
}
