// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"net/netip"
	"testing"
)

func newReconcilerFixture(t *testing.T) (*View, *PeerRegistry, *Collector, PeerID, *Peer) {
	t.Helper()
	registry := NewPeerRegistry()
	view := NewView(registry)
	collector := NewCollector("rrc00", "rrc00-display", "ris")
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 65000}
	id := registry.GetOrCreate(sig)
	collector.addPeer(id)
	peer := view.Peer(id, sig)
	return view, registry, collector, id, peer
}

// TestRIBEndBacklogRuleKeepsLiveRoute is scenario S2: a live update just
// inside the backlog window survives a RIB dump that disagrees with it.
func TestRIBEndBacklogRuleKeepsLiveRoute(t *testing.T) {
	view, _, collector, id, peer := newReconcilerFixture(t)
	peer.FSMState = FSMEstablished
	peer.ViewState = true

	pfx := netip.MustParsePrefix("1.1.0.0/16")
	cell := view.Cell(pfx, id)
	cell.LastTS = 1000
	cell.OriginASN = 65002
	cell.Active = true

	RIBStart(view, collector, 42, 1050)
	peer.UCRIBStartTS = 1050
	peer.UCRIBEndTS = 1055
	cell.UCDeltaTS = 5 // uc_ts = 1055
	cell.UCOriginASN = 65999

	RIBEnd(view, collector, DefaultConfiguration())

	if cell.OriginASN != 65002 || cell.LastTS != 1000 {
		t.Fatalf("backlog rule should have kept the live route, got origin=%v last_ts=%d", cell.OriginASN, cell.LastTS)
	}
	if !peer.ViewState {
		t.Fatalf("peer should stay Active")
	}
	if peer.UCRIBStartTS != 0 || peer.UCRIBEndTS != 0 {
		t.Fatalf("UC window not cleared after RIB End")
	}
}

// TestRIBEndRevealsMissedWithdrawal is scenario S3: the RIB dump starts
// far enough after the live update that the backlog window no longer
// protects it, and the RIB's silence on the prefix is taken as a
// withdrawal.
func TestRIBEndRevealsMissedWithdrawal(t *testing.T) {
	view, _, collector, id, peer := newReconcilerFixture(t)
	peer.FSMState = FSMEstablished
	peer.ViewState = true

	pfx := netip.MustParsePrefix("2.2.0.0/16")
	cell := view.Cell(pfx, id)
	cell.LastTS = 1000
	cell.OriginASN = 65003
	cell.Active = true

	RIBStart(view, collector, 7, 2000)
	peer.UCRIBStartTS = 2000
	peer.UCRIBEndTS = 2010
	// no RIB row ever touched this cell: UCDeltaTS/UCOriginASN stay at
	// their zero values (0, OriginDown).

	RIBEnd(view, collector, DefaultConfiguration())

	if cell.Active {
		t.Fatalf("cell should be deactivated, RIB silence means withdrawn")
	}
	if cell.OriginASN != OriginDown || cell.LastTS != 0 {
		t.Fatalf("cell not reset to absent: origin=%v last_ts=%d", cell.OriginASN, cell.LastTS)
	}
	if peer.Counters.PositiveMismatches != 1 {
		t.Fatalf("peer.Counters.PositiveMismatches = %d, want 1", peer.Counters.PositiveMismatches)
	}
}

// TestPeerDownWipesUCStartedBeforeDowntime is the core transition of
// scenario S4: a peer going down at a timestamp at or after its UC
// window start wipes that UC window too.
func TestPeerDownWipesUCStartedBeforeDowntime(t *testing.T) {
	view, _, _, id, peer := newReconcilerFixture(t)
	peer.FSMState = FSMEstablished
	peer.ViewState = true
	peer.UCRIBStartTS = 520
	peer.UCRIBEndTS = 525

	pfx := netip.MustParsePrefix("3.3.0.0/16")
	cell := view.Cell(pfx, id)
	cell.LastTS = 510
	cell.OriginASN = 65004
	cell.Active = true
	cell.UCDeltaTS = 5
	cell.UCOriginASN = 65004

	applyPeerState(view, id, peer, FSMIdle, 530)

	if peer.ViewState || peer.FSMState != FSMIdle {
		t.Fatalf("peer not marked down: %+v", peer)
	}
	if peer.UCRIBStartTS != 0 || peer.UCRIBEndTS != 0 {
		t.Fatalf("UC window not cleared on down: %+v", peer)
	}
	if cell.Active || cell.LastTS != 0 || cell.OriginASN != OriginDown {
		t.Fatalf("live cell not reset: %+v", cell)
	}
	if cell.UCDeltaTS != 0 || cell.UCOriginASN != OriginDown {
		t.Fatalf("UC cell not cleared: %+v", cell)
	}
}

// TestCorruptedRecordMidUC is scenario S6.
func TestCorruptedRecordMidUC(t *testing.T) {
	view, registry, collector, id1, peer1 := newReconcilerFixture(t)
	sig2 := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.2"), PeerASN: 65001}
	id2 := registry.GetOrCreate(sig2)
	collector.addPeer(id2)
	peer2 := view.Peer(id2, sig2)

	RIBStart(view, collector, 1, 900)
	peer1.UCRIBStartTS = 900
	peer1.UCRIBEndTS = 905
	peer2.UCRIBStartTS = 900
	peer2.UCRIBEndTS = 902
	peer1.RefRIBStartTS = 800
	peer1.RefRIBEndTS = 800
	peer1.ViewState = true
	peer1.FSMState = FSMEstablished

	pfx := netip.MustParsePrefix("10.0.0.0/8")
	cell1 := view.Cell(pfx, id1)
	cell1.Active = true
	cell1.OriginASN = 65100
	cell1.LastTS = 800

	CorruptedRecord(view, collector, 910)

	if collector.Counters.CorruptedRecords != 1 {
		t.Fatalf("collector.Counters.CorruptedRecords = %d, want 1", collector.Counters.CorruptedRecords)
	}
	if peer1.ViewState || peer1.FSMState != FSMUnknown || peer1.RefRIBStartTS != 0 {
		t.Fatalf("peer1 live state not wiped: %+v", peer1)
	}
	if cell1.Active || cell1.OriginASN != OriginDown {
		t.Fatalf("cell1 live fields not wiped: %+v", cell1)
	}
	if peer1.UCRIBStartTS != 0 || peer2.UCRIBStartTS != 0 {
		t.Fatalf("UC windows not wiped for both peers: peer1=%+v peer2=%+v", peer1, peer2)
	}
}

func TestStopUCIsLeftInverseOfRIBRows(t *testing.T) {
	view, _, collector, id, peer := newReconcilerFixture(t)
	pfx := netip.MustParsePrefix("4.4.0.0/16")

	RIBStart(view, collector, 1, 100)
	applyRIBRow(view, id, peer, pfx, 100, 65005)
	applyRIBRow(view, id, peer, pfx, 110, 65005)

	cell, ok := view.LookupCell(pfx, id)
	if !ok || cell.UCOriginASN == OriginDown {
		t.Fatalf("RIB rows did not populate UC state")
	}

	StopUC(view, collector)

	if peer.UCRIBStartTS != 0 || peer.UCRIBEndTS != 0 {
		t.Fatalf("peer UC window not cleared by StopUC")
	}
	if cell.UCDeltaTS != 0 || cell.UCOriginASN != OriginDown {
		t.Fatalf("cell UC fields not cleared by StopUC: %+v", cell)
	}
	if collector.UCRIBDumpTime != 0 || collector.UCRIBStartTime != 0 {
		t.Fatalf("collector UC window not cleared by StopUC")
	}
}

// TestRIBEndNonPromotedLiveRouteEstablishesPeer checks that a peer
// whose live route survives RIB End without being promoted from UC
// (the backlog predicate does not hold, but a real origin is already
// live on the cell from an update folded while the peer was still
// Unknown) ends up Active with fsm Established, never Active with fsm
// Unknown.
func TestRIBEndNonPromotedLiveRouteEstablishesPeer(t *testing.T) {
	view, _, collector, id, peer := newReconcilerFixture(t)
	// peer starts brand-new: Inactive, fsm Unknown.

	pfx := netip.MustParsePrefix("6.6.0.0/16")
	cell := view.Cell(pfx, id)
	// A live update folded in while a RIB dump was already in progress
	// for this still-Unknown peer: the cell update is kept, but the
	// peer itself was left Inactive/Unknown for the reconciler to
	// settle at RIB End.
	cell.LastTS = 600
	cell.OriginASN = 65010

	RIBStart(view, collector, 1, 500)
	peer.UCRIBStartTS = 500
	peer.UCRIBEndTS = 505
	cell.UCDeltaTS = 5 // uc_ts = 505, older than the live update at 600

	RIBEnd(view, collector, DefaultConfiguration())

	if !peer.ViewState {
		t.Fatalf("peer should be Active: %+v", peer)
	}
	if peer.FSMState != FSMEstablished {
		t.Fatalf("peer Active but fsm = %v, want Established", peer.FSMState)
	}
}

func TestRIBStartTornDownPriorUC(t *testing.T) {
	view, _, collector, id, peer := newReconcilerFixture(t)
	pfx := netip.MustParsePrefix("5.5.0.0/16")

	RIBStart(view, collector, 1, 100)
	applyRIBRow(view, id, peer, pfx, 100, 65006)

	// A second RIB Start arrives before the first one ended.
	RIBStart(view, collector, 2, 300)

	if collector.UCRIBDumpTime != 2 || collector.UCRIBStartTime != 300 {
		t.Fatalf("new UC window not set: %+v", collector)
	}
	cell, ok := view.LookupCell(pfx, id)
	if !ok {
		t.Fatalf("cell missing")
	}
	if cell.UCOriginASN != OriginDown {
		t.Fatalf("abandoned UC data not cleared by the implicit stop_uc: %+v", cell)
	}
	if peer.UCRIBStartTS != 0 {
		t.Fatalf("peer UC window not cleared by implicit stop_uc")
	}
}
