// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "net/netip"

// foldResult reports the outcome of folding one element, so the caller
// can bump the right protocol-error counter without the folder needing
// to know about reporter metrics.
type foldResult int

const (
	foldApplied foldResult = iota
	foldRejectedSanity
	foldSkippedEmptyPath
)

// foldElement applies one element to the view, returning whether it
// was applied, rejected by the peer-path sanity check, or skipped
// outright for carrying no AS path at all (a RIB row or announcement
// with an empty path is not folded as a locally-originated route).
// The collector is updated with the peer id so collector-level
// iteration (the reconciler, state recomputation) can find it.
func foldElement(view *View, registry *PeerRegistry, collector *Collector, el Element, ts int64) foldResult {
	sig := PeerSignature{Collector: collector.Name, PeerIP: el.PeerIP, PeerASN: el.PeerASN}
	id := registry.GetOrCreate(sig)
	collector.addPeer(id)
	peer := view.Peer(id, sig)
	peer.LastTS = maxInt64(peer.LastTS, ts)

	switch el.Type {
	case ElementPeerState:
		applyPeerState(view, id, peer, el.NewState, ts)
		return foldApplied

	case ElementRib:
		if emptyASPath(el.ASPath) {
			return foldSkippedEmptyPath
		}
		if !peerPathSane(el.ASPath, el.PeerASN) {
			return foldRejectedSanity
		}
		origin := extractOrigin(el.ASPath)
		applyRIBRow(view, id, peer, el.Prefix, ts, origin)
		return foldApplied

	case ElementAnnouncement:
		if emptyASPath(el.ASPath) {
			return foldSkippedEmptyPath
		}
		if !peerPathSane(el.ASPath, el.PeerASN) {
			return foldRejectedSanity
		}
		origin := extractOrigin(el.ASPath)
		applyUpdateElement(view, id, peer, el.Prefix, ts, true, origin)
		return foldApplied

	case ElementWithdrawal:
		// Peer-path sanity applies only to RIB rows and
		// announcements.
		applyUpdateElement(view, id, peer, el.Prefix, ts, false, OriginDown)
		return foldApplied
	}
	return foldApplied
}

// applyUpdateElement applies an announcement or withdrawal of pfx by
// peer p to the cell it identifies, updating counters, the per-peer
// observation sets, and the cell's activation state.
func applyUpdateElement(view *View, peerID PeerID, p *Peer, pfx netip.Prefix, ts int64, announce bool, origin Origin) {
	cell := view.Cell(pfx, peerID)

	// Step 1: update the per-peer counter and observation sets. These
	// reflect what was received, independent of whether the cell update
	// below is actually applied.
	p.Counters.UpdatesApplied++
	if announce {
		p.recordAnnouncement(pfx, origin)
	} else {
		p.recordWithdrawal(pfx)
	}

	// Step 2: out-of-order suppression. An element older than the cell's
	// current last_ts never touches the cell, so its counters must not
	// be bumped either.
	if ts < cell.LastTS {
		return
	}

	// Step 3: bump the per-cell counter and apply the cell update,
	// remembering the previous values in case the transition matrix
	// below reverts it.
	if announce {
		cell.Counters.Announcements++
	} else {
		cell.Counters.Withdrawals++
	}
	prevLastTS := cell.LastTS
	prevOrigin := cell.OriginASN
	cell.LastTS = ts
	if announce {
		cell.OriginASN = origin
	} else {
		cell.OriginASN = OriginDown
	}

	// Step 4: transition matrix.
	switch {
	case p.ViewState:
		if announce && !cell.Active {
			cell.Active = true
		} else if !announce && cell.Active {
			cell.Active = false
		}

	case p.FSMState == FSMUnknown:
		if p.UCRIBStartTS != 0 {
			// Leave everything inactive; the cell update is kept for
			// the RIB reconciler to pick up at RIB End.
			return
		}
		// No RIB context at all: revert the cell update and undo the
		// counter bump it caused.
		cell.LastTS = prevLastTS
		cell.OriginASN = prevOrigin
		if announce {
			cell.Counters.Announcements--
		} else {
			cell.Counters.Withdrawals--
		}

	default: // Inactive, FSM != Unknown: promote on any update.
		p.ViewState = true
		p.FSMState = FSMEstablished
		p.RefRIBStartTS = ts
		p.RefRIBEndTS = ts
		if announce {
			cell.Active = true
		}
	}
}

// applyPeerState applies a peer-state element, transitioning p's FSM
// state and, on a drop out of Established, deactivating every cell the
// peer holds and clearing any in-progress under-construction RIB.
func applyPeerState(view *View, peerID PeerID, p *Peer, newState FSMState, ts int64) {
	prior := p.FSMState
	p.Counters.StateMessages++

	switch {
	case prior == FSMEstablished && newState != FSMEstablished:
		p.FSMState = newState
		p.RefRIBStartTS = ts
		p.RefRIBEndTS = ts
		if ts >= p.UCRIBStartTS {
			p.UCRIBStartTS = 0
			p.UCRIBEndTS = 0
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				cell.UCDeltaTS = 0
				cell.UCOriginASN = OriginDown
			})
		}
		view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
			cell.LastTS = 0
			cell.OriginASN = OriginDown
			cell.Active = false
		})
		p.ViewState = false

	case prior != FSMEstablished && newState == FSMEstablished:
		p.ViewState = true
		p.FSMState = newState
		p.RefRIBStartTS = ts
		p.RefRIBEndTS = ts

	default:
		p.FSMState = newState
		p.RefRIBStartTS = ts
		p.RefRIBEndTS = ts
	}
}

// applyRIBRow applies one RIB row for peer p, extending its
// under-construction RIB window and stamping the cell's
// under-construction fields.
func applyRIBRow(view *View, peerID PeerID, p *Peer, pfx netip.Prefix, ts int64, origin Origin) {
	if p.UCRIBStartTS == 0 {
		p.UCRIBStartTS = ts
	}
	p.UCRIBEndTS = ts
	p.Counters.RIBRows++

	cell := view.Cell(pfx, peerID)
	cell.UCDeltaTS = ts - p.UCRIBStartTS
	cell.UCOriginASN = origin
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
