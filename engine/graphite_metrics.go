// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "context"

// emitGraphiteMetrics pushes the same per-collector and per-peer series
// that reportCollector/reportPeer expose as native Prometheus gauges
// through sink instead, so a push-style metrics consumer sees them too.
// Every path segment taken from configuration or data (metric prefix,
// collector name, peer address) is passed through graphiteSafe before
// being handed to sink.
func emitGraphiteMetrics(ctx context.Context, sink MetricsSink, prefix string, collectors map[string]*Collector, view *View, ts int64) []error {
	var errs []error
	emit := func(value float64, segments ...string) {
		path := make([]string, 0, len(segments)+1)
		if prefix != "" {
			path = append(path, graphiteSafe(prefix))
		}
		path = append(path, segments...)
		if err := sink.EmitMetric(ctx, path, value, ts); err != nil {
			errs = append(errs, err)
		}
	}

	for _, c := range collectors {
		name := graphiteSafe(c.Name)
		active := 0
		for id := range c.PeerIDs {
			if p, ok := view.LookupPeer(id); ok && p.ViewState {
				active++
			}
		}
		emit(float64(c.State), name, "state")
		emit(float64(active), name, "active_peers")
		emit(float64(c.Counters.ValidRecords), name, "records_valid")
		emit(float64(c.Counters.CorruptedRecords), name, "records_corrupted")
		emit(float64(c.Counters.EmptyRecords), name, "records_empty")

		for id := range c.PeerIDs {
			p, ok := view.LookupPeer(id)
			if !ok {
				continue
			}
			peerLabel := graphiteSafe(p.Signature.PeerIP.String())
			emit(float64(p.FSMState), name, peerLabel, "fsm_state")
			emit(float64(p.RefRIBStartTS), name, peerLabel, "ref_rib_start_ts")
			emit(float64(p.UCRIBStartTS), name, peerLabel, "uc_rib_start_ts")
			emit(float64(p.Counters.UpdatesApplied), name, peerLabel, "updates_applied")
			emit(float64(p.Counters.RIBRows), name, peerLabel, "rib_rows")
			emit(float64(p.Counters.StateMessages), name, peerLabel, "state_messages")
			emit(float64(p.Counters.PositiveMismatches), name, peerLabel, "positive_mismatches")
			emit(float64(p.Counters.NegativeMismatches), name, peerLabel, "negative_mismatches")
			emit(float64(len(p.AnnouncingASes)), name, peerLabel, "announcing_ases")
			emit(float64(len(p.AnnouncedPrefixesV4)), name, peerLabel, "announced_prefixes_v4")
			emit(float64(len(p.AnnouncedPrefixesV6)), name, peerLabel, "announced_prefixes_v6")
			emit(float64(len(p.WithdrawnPrefixesV4)), name, peerLabel, "withdrawn_prefixes_v4")
			emit(float64(len(p.WithdrawnPrefixesV6)), name, peerLabel, "withdrawn_prefixes_v6")
		}
	}
	return errs
}
