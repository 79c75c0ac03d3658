// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package cmd

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/tomb.v2"

	"routingtables/common/daemon"
)

// intervalRunner drives a periodic callback at a fixed cadence, on its
// own tomb-tracked goroutine, mirroring how the engine itself tracks
// its ingest and fold goroutines against the daemon component.
type intervalRunner struct {
	t      tomb.Tomb
	clock  clock.Clock
	period time.Duration
	run    func(ctx context.Context, tStart, tEnd int64)
}

// newIntervalRunner creates an interval runner calling run every
// period, tracked by d. c defaults to the real wall clock when nil.
func newIntervalRunner(d daemon.Component, c clock.Clock, period time.Duration, run func(context.Context, int64, int64)) *intervalRunner {
	if c == nil {
		c = clock.New()
	}
	ir := &intervalRunner{clock: c, period: period, run: run}
	d.Track(&ir.t, "interval-runner")
	return ir
}

// Start launches the periodic ticker goroutine.
func (ir *intervalRunner) Start() error {
	ir.t.Go(func() error {
		ticker := ir.clock.Ticker(ir.period)
		defer ticker.Stop()
		tStart := ir.clock.Now().Unix()
		for {
			select {
			case <-ticker.C:
				tEnd := ir.clock.Now().Unix()
				ir.run(ir.t.Context(nil), tStart, tEnd)
				tStart = tEnd
			case <-ir.t.Dying():
				return nil
			}
		}
	})
	return nil
}

// Stop requests termination and waits for the ticker goroutine to exit.
func (ir *intervalRunner) Stop() error {
	ir.t.Kill(nil)
	return ir.t.Wait()
}
