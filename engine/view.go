// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "net/netip"

// CellCounters tracks the per-(prefix,peer) event counters.
type CellCounters struct {
	Announcements uint64
	Withdrawals   uint64
}

// Cell is the per-(prefix,peer) payload: the live and under-construction
// origin and activity state for one prefix as seen from one peer.
// Cells are created lazily on first mention and are never deleted.
type Cell struct {
	Active bool

	OriginASN Origin
	LastTS    int64

	UCDeltaTS   int64
	UCOriginASN Origin

	Counters CellCounters
}

// newCell creates a fresh, inactive cell with no live route.
func newCell() *Cell {
	return &Cell{OriginASN: OriginDown, UCOriginASN: OriginDown}
}

// cellKey identifies a cell by its prefix trie node and peer id. Using
// the node pointer (stable for the node's lifetime per the trie's
// guarantee) avoids storing the prefix twice and keeps cell lookup at
// the cost of a single map access once the node has been resolved by
// the trie.
type cellKey struct {
	node *trieNode
	peer PeerID
}

// View is the indexable container of peers and prefix×peer cells.
// Storage is flat: cells live in a map keyed by (prefix node, peer id)
// rather than through pointers between cells and peers. Every iterator
// walks the peer map or the cell map, so iteration order is not defined
// and is not sorted by prefix or peer id.
type View struct {
	registry *PeerRegistry

	trieV4 *Trie
	trieV6 *Trie

	peers map[PeerID]*Peer
	cells map[cellKey]*Cell

	// ViewTime is the nominal start of the current interval, set by
	// the interval driver's interval_start.
	ViewTime int64

	// WallTime is the wall-clock Unix time at which interval_start ran,
	// snapshotted from the interval driver's injected clock.
	WallTime int64

	// UserPayload is a slot for configuration handed to filter
	// predicates evaluated during iteration. The engine neither sets
	// nor reads it: the full-feed filter run at interval end takes its
	// thresholds from Configuration.
	UserPayload any
}

// NewView creates an empty view sharing the given peer registry.
func NewView(registry *PeerRegistry) *View {
	return &View{
		registry: registry,
		trieV4:   NewTrie(FamilyIPv4),
		trieV6:   NewTrie(FamilyIPv6),
		peers:    make(map[PeerID]*Peer),
		cells:    make(map[cellKey]*Cell),
	}
}

func (v *View) trieFor(pfx netip.Prefix) *Trie {
	if pfx.Addr().Is4() {
		return v.trieV4
	}
	return v.trieV6
}

// Peer returns the peer payload for id, creating it (inactive, FSM
// Unknown) on first use.
func (v *View) Peer(id PeerID, sig PeerSignature) *Peer {
	p, ok := v.peers[id]
	if !ok {
		p = newPeer(sig)
		v.peers[id] = p
	}
	return p
}

// LookupPeer returns the peer payload for id without creating it.
func (v *View) LookupPeer(id PeerID) (*Peer, bool) {
	p, ok := v.peers[id]
	return p, ok
}

// Cell returns the cell for (pfx, peer), creating it (inactive, origin
// ORIGIN_DOWN) on first use.
func (v *View) Cell(pfx netip.Prefix, peer PeerID) *Cell {
	node := v.trieFor(pfx).Insert(pfx)
	key := cellKey{node, peer}
	c, ok := v.cells[key]
	if !ok {
		c = newCell()
		v.cells[key] = c
	}
	return c
}

// LookupCell returns the cell for (pfx, peer) without creating it.
func (v *View) LookupCell(pfx netip.Prefix, peer PeerID) (*Cell, bool) {
	node := v.trieFor(pfx).SearchExact(pfx)
	if node == nil {
		return nil, false
	}
	c, ok := v.cells[cellKey{node, peer}]
	return c, ok
}

// AddPfxPeer creates the cell if absent, sets its origin to asn, and
// leaves it inactive.
func (v *View) AddPfxPeer(pfx netip.Prefix, peer PeerID, asn Origin) *Cell {
	c := v.Cell(pfx, peer)
	c.OriginASN = asn
	return c
}

// ForEachPeer calls fn for every peer currently in the view, in
// unspecified but stable-within-a-call order.
func (v *View) ForEachPeer(fn func(PeerID, *Peer)) {
	for id, p := range v.peers {
		fn(id, p)
	}
}

// ForEachCellOfPeer calls fn for every cell belonging to peer.
func (v *View) ForEachCellOfPeer(peer PeerID, fn func(netip.Prefix, *Cell)) {
	for key, cell := range v.cells {
		if key.peer != peer {
			continue
		}
		fn(key.node.Prefix(), cell)
	}
}

// ForEachCellOfPrefix calls fn for every cell attached to the exact
// prefix pfx, across all peers.
func (v *View) ForEachCellOfPrefix(pfx netip.Prefix, fn func(PeerID, *Cell)) {
	node := v.trieFor(pfx).SearchExact(pfx)
	if node == nil {
		return
	}
	for key, cell := range v.cells {
		if key.node != node {
			continue
		}
		fn(key.peer, cell)
	}
}

// ForEachCell calls fn for every (prefix, peer) cell in the view.
func (v *View) ForEachCell(fn func(netip.Prefix, PeerID, *Cell)) {
	for key, cell := range v.cells {
		fn(key.node.Prefix(), key.peer, cell)
	}
}

// ActiveCellCount returns, for peer, the number of Active cells in each
// address family. Used by the full-feed filter run at interval end.
func (v *View) ActiveCellCount(peer PeerID) (v4, v6 int) {
	for key, cell := range v.cells {
		if key.peer != peer || !cell.Active {
			continue
		}
		if key.node.Prefix().Addr().Is4() {
			v4++
		} else {
			v6++
		}
	}
	return
}
