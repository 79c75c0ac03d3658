// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "routingtables/common/reporter"

// metrics holds the Prometheus instruments exported by the engine,
// covering the per-collector and per-peer series plus the
// fullfeed_subnets diagnostics reported through the metrics sink.
type metrics struct {
	collectorState        *reporter.GaugeVec
	collectorActivePeers   *reporter.GaugeVec
	validRecords           *reporter.CounterVec
	corruptedRecords       *reporter.CounterVec
	emptyRecords           *reporter.CounterVec
	protocolErrors         *reporter.CounterVec
	sinkErrors             *reporter.CounterVec

	peerFSMState           *reporter.GaugeVec
	peerRefRIBStartTS      *reporter.GaugeVec
	peerUCRIBStartTS       *reporter.GaugeVec
	peerUpdatesApplied     *reporter.CounterVec
	peerRIBRows            *reporter.CounterVec
	peerStateMessages      *reporter.CounterVec
	peerPositiveMismatches *reporter.CounterVec
	peerNegativeMismatches *reporter.CounterVec
	peerAnnouncingASes     *reporter.GaugeVec
	peerAnnouncedPrefixes  *reporter.GaugeVec
	peerWithdrawnPrefixes  *reporter.GaugeVec

	fullfeedSubnets *reporter.GaugeVec
}

// initMetrics registers every instrument of metrics against r.
func initMetrics(r *reporter.Reporter) *metrics {
	m := &metrics{}

	m.collectorState = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "collector_state",
			Help: "Aggregate state of a collector (0=unknown, 1=down, 2=up).",
		},
		[]string{"collector"},
	)
	m.collectorActivePeers = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "collector_active_peers",
			Help: "Number of Active peers for a collector.",
		},
		[]string{"collector"},
	)
	m.validRecords = r.CounterVec(
		reporter.CounterOpts{
			Name: "records_valid_total",
			Help: "Number of valid records folded for a collector.",
		},
		[]string{"collector"},
	)
	m.corruptedRecords = r.CounterVec(
		reporter.CounterOpts{
			Name: "records_corrupted_total",
			Help: "Number of corrupted records seen for a collector.",
		},
		[]string{"collector"},
	)
	m.emptyRecords = r.CounterVec(
		reporter.CounterOpts{
			Name: "records_empty_total",
			Help: "Number of empty or filtered records seen for a collector.",
		},
		[]string{"collector"},
	)
	m.protocolErrors = r.CounterVec(
		reporter.CounterOpts{
			Name: "protocol_errors_total",
			Help: "Number of elements rejected by the peer-path sanity check.",
		},
		[]string{"collector"},
	)
	m.sinkErrors = r.CounterVec(
		reporter.CounterOpts{
			Name: "sink_errors_total",
			Help: "Number of errors reported by a downstream sink.",
		},
		[]string{"sink"},
	)

	m.peerFSMState = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_fsm_state",
			Help: "Current BGP FSM state of a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerRefRIBStartTS = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_ref_rib_start_timestamp",
			Help: "Timestamp at which the peer's current reference RIB began.",
		},
		[]string{"collector", "peer"},
	)
	m.peerUCRIBStartTS = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_uc_rib_start_timestamp",
			Help: "Timestamp at which the peer's under-construction RIB began, 0 if none in progress.",
		},
		[]string{"collector", "peer"},
	)
	m.peerUpdatesApplied = r.CounterVec(
		reporter.CounterOpts{
			Name: "peer_updates_applied_total",
			Help: "Number of announcement/withdrawal elements applied for a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerRIBRows = r.CounterVec(
		reporter.CounterOpts{
			Name: "peer_rib_rows_total",
			Help: "Number of RIB rows applied for a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerStateMessages = r.CounterVec(
		reporter.CounterOpts{
			Name: "peer_state_messages_total",
			Help: "Number of peer-state elements applied for a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerPositiveMismatches = r.CounterVec(
		reporter.CounterOpts{
			Name: "peer_positive_mismatches_total",
			Help: "Number of RIB-revealed missed withdrawals for a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerNegativeMismatches = r.CounterVec(
		reporter.CounterOpts{
			Name: "peer_negative_mismatches_total",
			Help: "Number of RIB-revealed missed announcements for a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerAnnouncingASes = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_announcing_ases",
			Help: "Number of distinct origin ASes announced by a peer.",
		},
		[]string{"collector", "peer"},
	)
	m.peerAnnouncedPrefixes = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_announced_prefixes",
			Help: "Number of distinct prefixes announced by a peer.",
		},
		[]string{"collector", "peer", "family"},
	)
	m.peerWithdrawnPrefixes = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "peer_withdrawn_prefixes",
			Help: "Number of distinct prefixes withdrawn by a peer.",
		},
		[]string{"collector", "peer", "family"},
	)

	m.fullfeedSubnets = r.GaugeVec(
		reporter.GaugeOpts{
			Name: "fullfeed_subnets",
			Help: "Count of covered subnets at a fixed prefix length, across full-feed peers.",
		},
		[]string{"family"},
	)

	return m
}

// reportPeer publishes the per-peer gauges for peer p at the current
// interval: FSM state, reference and under-construction RIB start
// times, and the announcing-AS and announced/withdrawn prefix set
// sizes. Of the per-peer counters it only creates the updates-applied
// series (at zero); the updates-applied, RIB-row, state-message and
// mismatch Prometheus counters are never incremented. p.Counters reach
// the metrics sink through emitGraphiteMetrics instead.
func (m *metrics) reportPeer(collector, peerLabel string, p *Peer) {
	m.peerFSMState.WithLabelValues(collector, peerLabel).Set(float64(p.FSMState))
	m.peerRefRIBStartTS.WithLabelValues(collector, peerLabel).Set(float64(p.RefRIBStartTS))
	m.peerUCRIBStartTS.WithLabelValues(collector, peerLabel).Set(float64(p.UCRIBStartTS))
	m.peerUpdatesApplied.WithLabelValues(collector, peerLabel).Add(0) // ensure series exists
	m.peerAnnouncingASes.WithLabelValues(collector, peerLabel).Set(float64(len(p.AnnouncingASes)))
	m.peerAnnouncedPrefixes.WithLabelValues(collector, peerLabel, "v4").Set(float64(len(p.AnnouncedPrefixesV4)))
	m.peerAnnouncedPrefixes.WithLabelValues(collector, peerLabel, "v6").Set(float64(len(p.AnnouncedPrefixesV6)))
	m.peerWithdrawnPrefixes.WithLabelValues(collector, peerLabel, "v4").Set(float64(len(p.WithdrawnPrefixesV4)))
	m.peerWithdrawnPrefixes.WithLabelValues(collector, peerLabel, "v6").Set(float64(len(p.WithdrawnPrefixesV6)))
}

// reportCollector publishes the per-collector gauges for c, counting
// its peers against view for the active-peer gauge.
func (m *metrics) reportCollector(c *Collector, view *View) {
	m.collectorState.WithLabelValues(c.Name).Set(float64(c.State))
	active := 0
	for id := range c.PeerIDs {
		if p, ok := view.LookupPeer(id); ok && p.ViewState {
			active++
		}
	}
	m.collectorActivePeers.WithLabelValues(c.Name).Set(float64(active))
}
