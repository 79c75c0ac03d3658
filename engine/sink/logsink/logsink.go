// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package logsink implements a trivial ViewSink that logs a summary of
// each published view at debug level, used by tests and as the
// zero-config default.
package logsink

import (
	"context"
	"net/netip"

	"routingtables/common/reporter"
	"routingtables/engine"
)

// Configuration describes the log-backed ViewSink. It has no options:
// it logs at debug level against whatever logger the reporter it is
// handed already carries.
type Configuration struct{}

// DefaultConfiguration returns the default (only) log sink configuration.
func DefaultConfiguration() Configuration {
	return Configuration{}
}

// NewViewSink instantiates the log sink, satisfying the view-sink
// provider interface registered by the command-line configuration.
func (c Configuration) NewViewSink(r *reporter.Reporter) (engine.ViewSink, error) {
	return New(r), nil
}

// Sink logs a summary of every published view.
type Sink struct {
	r *reporter.Reporter
}

// New creates a log-backed ViewSink.
func New(r *reporter.Reporter) *Sink {
	return &Sink{r: r}
}

// PublishView logs the number of accepted peers and cells in view.
func (s *Sink) PublishView(_ context.Context, view *engine.PublishedView) error {
	peers := 0
	cells := 0
	active := 0
	view.ForEachPeer(func(id engine.PeerID, _ engine.PeerSignature, _ *engine.Peer) {
		peers++
		view.ForEachCellOfPeer(id, func(_ netip.Prefix, cell *engine.Cell) {
			cells++
			if cell.Active {
				active++
			}
		})
	})
	s.r.Debug().
		Int64("view-time", view.ViewTime).
		Int("peers", peers).
		Int("cells", cells).
		Int("active-cells", active).
		Msg("published view")
	return nil
}
