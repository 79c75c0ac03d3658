// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"net/netip"
	"testing"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
)

func seqAsPath(asns ...uint32) *bgp.PathAttributeAsPath {
	if len(asns) == 0 {
		return bgp.NewPathAttributeAsPath(nil)
	}
	return bgp.NewPathAttributeAsPath([]bgp.AsPathParamInterface{
		bgp.NewAs4PathParam(bgp.BGP_ASPATH_ATTR_TYPE_SEQ, asns),
	})
}

func newTestFixture() (*View, *PeerRegistry, *Collector) {
	registry := NewPeerRegistry()
	view := NewView(registry)
	collector := NewCollector("rrc00", "rrc00-display", "ris")
	return view, registry, collector
}

func TestFoldElementRejectsBadFirstHop(t *testing.T) {
	view, registry, collector := newTestFixture()
	el := Element{
		Type:    ElementAnnouncement,
		PeerIP:  netip.MustParseAddr("192.0.2.1"),
		PeerASN: 64500,
		Prefix:  netip.MustParsePrefix("198.51.100.0/24"),
		ASPath:  seqAsPath(64999, 174),
	}
	if res := foldElement(view, registry, collector, el, 100); res != foldRejectedSanity {
		t.Fatalf("foldElement() = %v, want foldRejectedSanity", res)
	}
}

func TestFoldElementPromotesInactivePeerOnAnnouncement(t *testing.T) {
	view, registry, collector := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.FSMState = FSMEstablished // known, but inactive

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	el := Element{
		Type:    ElementAnnouncement,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
		ASPath:  seqAsPath(64500, 174),
	}
	if res := foldElement(view, registry, collector, el, 100); res != foldApplied {
		t.Fatalf("foldElement() = %v, want foldApplied", res)
	}
	if !peer.ViewState {
		t.Fatalf("peer not promoted to Active")
	}
	cell, ok := view.LookupCell(pfx, id)
	if !ok || !cell.Active {
		t.Fatalf("cell not active after promotion: %+v", cell)
	}
	if cell.OriginASN != 174 {
		t.Fatalf("cell.OriginASN = %v, want 174", cell.OriginASN)
	}
}

func TestFoldElementRevertsWhenNoUCInProgress(t *testing.T) {
	view, registry, collector := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	// FSM Unknown, no UC in progress: scenario S5's starting point.

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	el := Element{
		Type:    ElementAnnouncement,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
		ASPath:  seqAsPath(64500, 174),
	}
	foldElement(view, registry, collector, el, 100)

	if peer.ViewState {
		t.Fatalf("peer unexpectedly promoted with FSM Unknown and no UC")
	}
	cell, ok := view.LookupCell(pfx, id)
	if !ok {
		t.Fatalf("cell not created")
	}
	if cell.Active {
		t.Fatalf("cell unexpectedly active")
	}
	if cell.LastTS != 0 {
		t.Fatalf("cell.LastTS = %d, want 0 (reverted)", cell.LastTS)
	}
	if cell.Counters.Announcements != 0 {
		t.Fatalf("cell.Counters.Announcements = %d, want 0 (incremented then reverted)", cell.Counters.Announcements)
	}
	if peer.Counters.UpdatesApplied != 1 {
		t.Fatalf("peer.Counters.UpdatesApplied = %d, want 1 (not reverted)", peer.Counters.UpdatesApplied)
	}
}

func TestFoldElementKeptDuringUC(t *testing.T) {
	view, registry, collector := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.UCRIBStartTS = 50 // a RIB dump is in progress

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	el := Element{
		Type:    ElementAnnouncement,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
		ASPath:  seqAsPath(64500, 174),
	}
	foldElement(view, registry, collector, el, 100)

	cell, ok := view.LookupCell(pfx, id)
	if !ok {
		t.Fatalf("cell not created")
	}
	if cell.LastTS != 100 {
		t.Fatalf("cell.LastTS = %d, want 100 (kept, pending RIB End)", cell.LastTS)
	}
	if cell.Counters.Announcements != 1 {
		t.Fatalf("cell.Counters.Announcements = %d, want 1", cell.Counters.Announcements)
	}
	if cell.Active {
		t.Fatalf("cell must stay inactive until the reconciler promotes it")
	}
}

func TestFoldElementOutOfOrderSuppressed(t *testing.T) {
	view, registry, collector := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.FSMState = FSMEstablished
	peer.ViewState = true

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	cell := view.Cell(pfx, id)
	cell.LastTS = 200
	cell.Active = true
	cell.OriginASN = 174

	el := Element{
		Type:    ElementWithdrawal,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
	}
	foldElement(view, registry, collector, el, 100) // older than cell.LastTS

	if !cell.Active || cell.OriginASN != 174 || cell.LastTS != 200 {
		t.Fatalf("out-of-order withdrawal mutated the cell: %+v", cell)
	}
	if cell.Counters.Withdrawals != 0 {
		t.Fatalf("cell.Counters.Withdrawals = %d, want 0 (out-of-order, never applied to the cell)", cell.Counters.Withdrawals)
	}
	if peer.Counters.UpdatesApplied != 1 {
		t.Fatalf("peer.Counters.UpdatesApplied = %d, want 1 (per-peer counter still reflects what was received)", peer.Counters.UpdatesApplied)
	}
}

func TestFoldElementSkipsEmptyASPath(t *testing.T) {
	view, registry, collector := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	el := Element{
		Type:    ElementAnnouncement,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
		ASPath:  seqAsPath(),
	}
	if res := foldElement(view, registry, collector, el, 100); res != foldSkippedEmptyPath {
		t.Fatalf("foldElement() = %v, want foldSkippedEmptyPath", res)
	}
	if cell, ok := view.LookupCell(pfx, registry.GetOrCreate(sig)); ok && cell.Active {
		t.Fatalf("empty-path announcement must not be folded as locally originated: %+v", cell)
	}

	ribEl := Element{
		Type:    ElementRib,
		PeerIP:  sig.PeerIP,
		PeerASN: sig.PeerASN,
		Prefix:  pfx,
		ASPath:  seqAsPath(),
	}
	if res := foldElement(view, registry, collector, ribEl, 100); res != foldSkippedEmptyPath {
		t.Fatalf("foldElement() = %v, want foldSkippedEmptyPath for an empty-path RIB row", res)
	}
}

func TestApplyPeerStateEstablishedDropWipesLiveAndUC(t *testing.T) {
	view, registry, _ := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.FSMState = FSMEstablished
	peer.ViewState = true
	peer.UCRIBStartTS = 10
	peer.UCRIBEndTS = 20

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	cell := view.Cell(pfx, id)
	cell.Active = true
	cell.OriginASN = 174
	cell.LastTS = 90
	cell.UCDeltaTS = 5
	cell.UCOriginASN = 174

	applyPeerState(view, id, peer, FSMIdle, 100)

	if peer.ViewState {
		t.Fatalf("peer still marked active after going down")
	}
	if peer.UCRIBStartTS != 0 || peer.UCRIBEndTS != 0 {
		t.Fatalf("UC window not cleared: start=%d end=%d", peer.UCRIBStartTS, peer.UCRIBEndTS)
	}
	if cell.Active || cell.OriginASN != OriginDown || cell.LastTS != 0 {
		t.Fatalf("live cell fields not wiped: %+v", cell)
	}
	if cell.UCOriginASN != OriginDown || cell.UCDeltaTS != 0 {
		t.Fatalf("UC cell fields not wiped: %+v", cell)
	}
}

func TestApplyPeerStatePromotionToEstablished(t *testing.T) {
	view, registry, _ := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.FSMState = FSMOpenConfirm

	applyPeerState(view, id, peer, FSMEstablished, 50)

	if !peer.ViewState || peer.FSMState != FSMEstablished {
		t.Fatalf("peer not promoted: %+v", peer)
	}
	if peer.RefRIBStartTS != 50 || peer.RefRIBEndTS != 50 {
		t.Fatalf("ref RIB times not set: %+v", peer)
	}
}

func TestApplyRIBRowBootstrapsUCWindow(t *testing.T) {
	view, registry, _ := newTestFixture()
	sig := PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 64500}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)

	pfx := netip.MustParsePrefix("198.51.100.0/24")
	applyRIBRow(view, id, peer, pfx, 1000, 174)

	if peer.UCRIBStartTS != 1000 || peer.UCRIBEndTS != 1000 {
		t.Fatalf("UC window not bootstrapped: %+v", peer)
	}
	cell, ok := view.LookupCell(pfx, id)
	if !ok {
		t.Fatalf("cell not created")
	}
	if cell.UCDeltaTS != 0 || cell.UCOriginASN != 174 {
		t.Fatalf("cell UC fields wrong: %+v", cell)
	}

	applyRIBRow(view, id, peer, pfx, 1030, 174)
	if peer.UCRIBStartTS != 1000 || peer.UCRIBEndTS != 1030 {
		t.Fatalf("UC window not extended: %+v", peer)
	}
	if cell.UCDeltaTS != 30 {
		t.Fatalf("cell.UCDeltaTS = %d, want 30", cell.UCDeltaTS)
	}
	if peer.Counters.RIBRows != 2 {
		t.Fatalf("peer.Counters.RIBRows = %d, want 2", peer.Counters.RIBRows)
	}
}
