// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package engine implements the routing-tables folding core: it
// consumes BGP records from a RecordSource, folds them into a View of
// peers and prefix×peer cells, reconciles RIB dumps against the live
// view, and periodically publishes the result to ViewSink/MetricsSink
// implementations.
package engine

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"gopkg.in/tomb.v2"

	"routingtables/common/daemon"
	"routingtables/common/reporter"
)

// Dependencies are the ambient services the engine needs, following
// the provider pattern: a daemon component to track its goroutines and
// an injectable clock for interval pacing in tests. The reporter for
// logging and metrics is passed to New separately.
type Dependencies struct {
	Daemon daemon.Component
	Clock  clock.Clock
}

// Engine is the routing-tables folding core: a
// single ingest goroutine reads records off a bounded channel from the
// source and folds them single-threaded into the view; the interval
// driver runs on its own goroutine and publishes snapshots of the view
// without pausing ingestion (the view is mutated in place, so readers
// in the sink path only ever see a consistent, if slightly stale,
// snapshot because PublishView is called synchronously from the
// interval goroutine right after a cooperative handoff).
type Engine struct {
	r      *reporter.Reporter
	d      Dependencies
	t      tomb.Tomb
	config Configuration

	metrics *metrics

	registry   *PeerRegistry
	view       *View
	collectors map[string]*Collector

	source    RecordSource
	viewSinks []ViewSink
	interval  *IntervalDriver

	records chan Record
}

// New creates a new engine from its configuration, wired to source and
// publishing to the given sinks.
func New(config Configuration, r *reporter.Reporter, dependencies Dependencies, source RecordSource, viewSinks []ViewSink, metricsSink MetricsSink) (*Engine, error) {
	if dependencies.Clock == nil {
		dependencies.Clock = clock.New()
	}
	registry := NewPeerRegistry()
	view := NewView(registry)
	e := &Engine{
		r:          r,
		d:          dependencies,
		config:     config,
		metrics:    initMetrics(r),
		registry:   registry,
		view:       view,
		collectors: make(map[string]*Collector),
		source:     source,
		viewSinks:  viewSinks,
		records:    make(chan Record, 256),
	}
	e.interval = NewIntervalDriver(dependencies.Clock, config, view, viewSinks, metricsSink)
	e.d.Daemon.Track(&e.t, "engine")
	return e, nil
}

// collector returns the bookkeeping record for name, creating it with
// its display name and project on first mention.
func (e *Engine) collector(name, displayName, project string) *Collector {
	c, ok := e.collectors[name]
	if !ok {
		c = NewCollector(name, displayName, project)
		e.collectors[name] = c
	}
	return c
}

// Start launches the read goroutine (pulling records off the source
// into the bounded channel) and the fold goroutine (draining that
// channel into the view), both tracked by the engine's tomb.
func (e *Engine) Start() error {
	e.r.Info().Msg("starting routing-tables engine")
	e.t.Go(func() error {
		ctx := e.t.Context(nil)
		defer close(e.records)
		for {
			rec, ok, err := e.source.Next(ctx)
			if err != nil {
				return fmt.Errorf("record source error: %w", err)
			}
			if !ok {
				return nil
			}
			select {
			case e.records <- rec:
			case <-e.t.Dying():
				return nil
			}
		}
	})
	e.t.Go(func() error {
		for {
			select {
			case rec, ok := <-e.records:
				if !ok {
					return nil
				}
				e.foldRecord(rec)
			case <-e.t.Dying():
				return nil
			}
		}
	})
	return nil
}

// Stop requests termination and waits for both goroutines to exit.
func (e *Engine) Stop() error {
	defer e.r.Info().Msg("routing-tables engine stopped")
	e.r.Info().Msg("stopping routing-tables engine")
	e.t.Kill(nil)
	return e.t.Wait()
}

// foldRecord dispatches one record to the reconciler or the
// per-element folder, then recomputes the owning collector's aggregate
// state.
func (e *Engine) foldRecord(rec Record) {
	c := e.collector(rec.DumpCollector, rec.DisplayCollector, rec.DumpProject)

	switch rec.Status {
	case RecordCorruptedSource, RecordCorruptedRecord:
		CorruptedRecord(e.view, c, rec.RecordTime)
		e.metrics.corruptedRecords.WithLabelValues(c.Name).Inc()

	case RecordFilteredSource, RecordEmptySource:
		EmptyOrFilteredRecord(c, rec.RecordTime, int64(e.d.Clock.Now().Unix()), func(int64) {})
		e.metrics.emptyRecords.WithLabelValues(c.Name).Inc()

	case RecordValid:
		c.Counters.ValidRecords++
		e.metrics.validRecords.WithLabelValues(c.Name).Inc()
		c.touchBGPTimeLast(rec.RecordTime, int64(e.d.Clock.Now().Unix()), func(int64) {})

		switch {
		case rec.DumpType == DumpRib && rec.DumpPosition == DumpStart:
			RIBStart(e.view, c, rec.DumpTime, rec.RecordTime)
			e.foldElements(c, rec)
		case rec.DumpType == DumpRib && rec.DumpPosition == DumpEnd:
			e.foldElements(c, rec)
			RIBEnd(e.view, c, e.config)
		default:
			e.foldElements(c, rec)
		}
	}

	c.recomputeState(e.view)
	e.metrics.reportCollector(c, e.view)
}

// foldElements folds every element of rec through the per-element
// folder, counting peer-path sanity rejections as protocol errors.
func (e *Engine) foldElements(c *Collector, rec Record) {
	for _, el := range rec.Elements {
		if rec.DumpType == DumpRib && !AcceptRIBRow(c, rec.DumpTime) && el.Type == ElementRib {
			continue
		}
		if foldElement(e.view, e.registry, c, el, rec.RecordTime) == foldRejectedSanity {
			e.metrics.protocolErrors.WithLabelValues(c.Name).Inc()
		}
	}
}

// RunInterval drives one interval_start/interval_end cycle,
// reporting per-peer metrics for every peer observed in the view and
// surfacing sink errors as warnings rather than failing the engine.
func (e *Engine) RunInterval(ctx context.Context, tStart, tEnd int64) {
	e.interval.Start(tStart)
	e.view.ForEachPeer(func(id PeerID, p *Peer) {
		e.metrics.reportPeer(p.Signature.Collector, peerMetricLabel(p), p)
	})
	for _, err := range e.interval.End(ctx, tEnd, e.collectors) {
		e.r.Warn().Err(err).Msg("sink error while publishing view")
		e.metrics.sinkErrors.WithLabelValues("view").Inc()
	}
}

// peerMetricLabel derives a stable metric label for a peer from its
// signature (its IP address, graphite-safe).
func peerMetricLabel(p *Peer) string {
	return graphiteSafe(p.Signature.PeerIP.String())
}
