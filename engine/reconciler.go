// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "net/netip"

// AcceptRIBRow reports whether a RIB row belonging to dumpTime should be
// folded into collector c's under-construction state: rows from a dump
// other than the one currently being reconciled are ignored.
func AcceptRIBRow(c *Collector, dumpTime int64) bool {
	return dumpTime == c.UCRIBDumpTime
}

// RIBStart marks the start of a RIB dump for collector c. If a prior
// UC was left unfinalized, it is first torn down with StopUC.
func RIBStart(view *View, c *Collector, dumpTime, recordTime int64) {
	if c.UCRIBDumpTime != 0 {
		StopUC(view, c)
	}
	c.UCRIBDumpTime = dumpTime
	c.UCRIBStartTime = recordTime
}

// RIBEnd promotes under-construction state into live state across
// every cell of every peer of c, subject to the backlog rule, followed
// by the inactive-peer demotion sweep and the collector-level UC→ref
// promotion.
func RIBEnd(view *View, c *Collector, cfg Configuration) {
	backlogWindow := int64(cfg.BacklogWindow.Seconds())
	inactiveTimeout := int64(cfg.InactiveTimeout.Seconds())

	for peerID := range c.PeerIDs {
		peer, ok := view.LookupPeer(peerID)
		if !ok {
			continue
		}

		// Capture whether this peer received RIB rows this dump before
		// the UC window is cleared below, since that's the only record
		// of it once the clear runs.
		receivedRIB := peer.UCRIBStartTS != 0
		if receivedRIB {
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				reconcileCell(view, peer, cell, backlogWindow)
			})

			// This peer received RIB rows this dump: its UC window has
			// now been fully consumed, clear it along with the per-cell
			// UC staging fields.
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				cell.UCDeltaTS = 0
				cell.UCOriginASN = OriginDown
			})
			peer.UCRIBStartTS = 0
			peer.UCRIBEndTS = 0
			continue
		}

		// Demotion sweep: a peer that received no RIB rows this dump and
		// has gone silent past the inactivity timeout is dropped back to
		// Unknown.
		if peer.FSMState == FSMEstablished && peer.LastTS < c.BGPTimeLast-inactiveTimeout {
			peer.FSMState = FSMUnknown
			peer.ViewState = false
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				cell.Active = false
				cell.OriginASN = OriginDown
				cell.LastTS = 0
			})
		}
	}

	c.RefRIBDumpTime = c.UCRIBDumpTime
	c.RefRIBStartTime = c.UCRIBStartTime
	c.UCRIBDumpTime = 0
	c.UCRIBStartTime = 0
}

// reconcileCell applies the backlog predicate to one cell.
func reconcileCell(view *View, peer *Peer, cell *Cell, backlogWindow int64) {
	ucTS := cell.UCDeltaTS + peer.UCRIBStartTS
	backlogged := cell.LastTS > peer.UCRIBStartTS-backlogWindow
	promote := ucTS > cell.LastTS && !backlogged

	if promote {
		prevActive := cell.Active
		prevLastTS := cell.LastTS
		prevOrigin := cell.OriginASN

		if cell.UCOriginASN != OriginDown {
			cell.LastTS = ucTS
			cell.OriginASN = cell.UCOriginASN
			cell.Active = true
			peer.ViewState = true
			peer.FSMState = FSMEstablished
			peer.RefRIBStartTS = peer.UCRIBStartTS
			peer.RefRIBEndTS = peer.UCRIBEndTS
			if prevActive && prevLastTS != 0 && prevOrigin == OriginDown {
				peer.Counters.NegativeMismatches++
			}
		} else {
			cell.LastTS = 0
			cell.OriginASN = OriginDown
			cell.Active = false
			if prevActive {
				peer.Counters.PositiveMismatches++
			}
		}
		return
	}

	if cell.OriginASN != OriginDown {
		cell.Active = true
		peer.ViewState = true
		peer.FSMState = FSMEstablished
		peer.RefRIBStartTS = peer.UCRIBStartTS
		peer.RefRIBEndTS = peer.UCRIBEndTS
	}
}

// CorruptedRecord wipes, at ts, the half (reference or
// under-construction) of each peer's state whose window had already
// started at or before ts.
func CorruptedRecord(view *View, c *Collector, ts int64) {
	c.Counters.CorruptedRecords++
	for peerID := range c.PeerIDs {
		peer, ok := view.LookupPeer(peerID)
		if !ok {
			continue
		}
		if peer.RefRIBStartTS != 0 && ts >= peer.RefRIBStartTS {
			peer.ViewState = false
			peer.FSMState = FSMUnknown
			peer.RefRIBStartTS = 0
			peer.RefRIBEndTS = 0
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				cell.LastTS = 0
				cell.OriginASN = OriginDown
				cell.Active = false
			})
		}
		if peer.UCRIBStartTS != 0 && ts >= peer.UCRIBStartTS {
			peer.UCRIBStartTS = 0
			peer.UCRIBEndTS = 0
			view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
				cell.UCDeltaTS = 0
				cell.UCOriginASN = OriginDown
			})
		}
	}
}

// EmptyOrFilteredRecord applies no state change beyond the monotonic
// bgp_time_last touch and the record counter.
func EmptyOrFilteredRecord(c *Collector, ts int64, wallNow int64, refresh func(int64)) {
	c.Counters.EmptyRecords++
	c.touchBGPTimeLast(ts, wallNow, refresh)
}

// StopUC tears down the under-construction state of every peer of c
// without promoting it, used when a RIB dump is abandoned mid-way (a
// new RIB Start arrives before the current one ended).
func StopUC(view *View, c *Collector) {
	for peerID := range c.PeerIDs {
		peer, ok := view.LookupPeer(peerID)
		if !ok {
			continue
		}
		inactive := !peer.ViewState
		view.ForEachCellOfPeer(peerID, func(_ netip.Prefix, cell *Cell) {
			cell.UCDeltaTS = 0
			cell.UCOriginASN = OriginDown
			if inactive {
				cell.LastTS = 0
				cell.OriginASN = OriginDown
			}
		})
		peer.UCRIBStartTS = 0
		peer.UCRIBEndTS = 0
	}
	c.UCRIBDumpTime = 0
	c.UCRIBStartTime = 0
}
