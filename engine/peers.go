// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"net/netip"
	"sync"
)

// FSMState mirrors the BGP peer finite state machine. Only Established
// is ever paired with an Active view state.
type FSMState int

// The seven BGP FSM states.
const (
	FSMUnknown FSMState = iota
	FSMIdle
	FSMConnect
	FSMActive
	FSMOpenSent
	FSMOpenConfirm
	FSMEstablished
)

func (s FSMState) String() string {
	switch s {
	case FSMUnknown:
		return "unknown"
	case FSMIdle:
		return "idle"
	case FSMConnect:
		return "connect"
	case FSMActive:
		return "active"
	case FSMOpenSent:
		return "open-sent"
	case FSMOpenConfirm:
		return "open-confirm"
	case FSMEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// PeerSignature identifies a peering session across process restarts:
// the collector it belongs to, the peer's IP address and its ASN.
type PeerSignature struct {
	Collector string
	PeerIP    netip.Addr
	PeerASN   uint32
}

// PeerID is a stable, process-lifetime, non-zero identifier for a peer
// signature. Peer ids are never reused.
type PeerID uint32

// PeerRegistry is a bidirectional map between peer signatures and their
// compact peer ids. get_or_create is idempotent; ids are handed out
// sequentially starting at 1. Mutation is serialized with a mutex
// because the registry is shared between the view and the folder, even
// though in the engine's single-threaded cooperative core only the
// folder's goroutine ever calls GetOrCreate.
type PeerRegistry struct {
	mu        sync.Mutex
	bySig     map[PeerSignature]PeerID
	byID      map[PeerID]PeerSignature
	nextID    PeerID
}

// NewPeerRegistry creates an empty peer-signature registry.
func NewPeerRegistry() *PeerRegistry {
	return &PeerRegistry{
		bySig: make(map[PeerSignature]PeerID),
		byID:  make(map[PeerID]PeerSignature),
	}
}

// GetOrCreate returns the existing id for sig, allocating a new one on
// first sighting.
func (r *PeerRegistry) GetOrCreate(sig PeerSignature) PeerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.bySig[sig]; ok {
		return id
	}
	r.nextID++
	id := r.nextID
	r.bySig[sig] = id
	r.byID[id] = sig
	return id
}

// Lookup returns the signature for id, if known.
func (r *PeerRegistry) Lookup(id PeerID) (PeerSignature, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sig, ok := r.byID[id]
	return sig, ok
}

// Len returns the number of registered peer signatures.
func (r *PeerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySig)
}

// PeerCounters tracks the per-peer event counters.
type PeerCounters struct {
	RIBRows            uint64
	UpdatesApplied     uint64
	PositiveMismatches uint64
	NegativeMismatches uint64
	StateMessages      uint64
}

// Peer is the per-peer payload held by the view.
type Peer struct {
	Signature PeerSignature

	ViewState bool // true == Active
	FSMState  FSMState

	RefRIBStartTS int64
	RefRIBEndTS   int64
	UCRIBStartTS  int64
	UCRIBEndTS    int64

	LastTS int64

	Counters PeerCounters

	// AnnouncingASes is the set of distinct origin ASes this peer has
	// announced since the view was created.
	AnnouncingASes map[Origin]struct{}
	// AnnouncedPrefixesV4/V6 and WithdrawnPrefixesV4/V6 track distinct
	// prefix cardinality per address family.
	AnnouncedPrefixesV4 map[netip.Prefix]struct{}
	AnnouncedPrefixesV6 map[netip.Prefix]struct{}
	WithdrawnPrefixesV4 map[netip.Prefix]struct{}
	WithdrawnPrefixesV6 map[netip.Prefix]struct{}
}

// newPeer creates a fresh, inactive peer payload for sig.
func newPeer(sig PeerSignature) *Peer {
	return &Peer{
		Signature:           sig,
		FSMState:            FSMUnknown,
		AnnouncingASes:      make(map[Origin]struct{}),
		AnnouncedPrefixesV4: make(map[netip.Prefix]struct{}),
		AnnouncedPrefixesV6: make(map[netip.Prefix]struct{}),
		WithdrawnPrefixesV4: make(map[netip.Prefix]struct{}),
		WithdrawnPrefixesV6: make(map[netip.Prefix]struct{}),
	}
}

// recordAnnouncement updates the per-family announcing-AS and
// announced-prefix sets for an announcement of pfx with origin asn.
func (p *Peer) recordAnnouncement(pfx netip.Prefix, origin Origin) {
	p.AnnouncingASes[origin] = struct{}{}
	if pfx.Addr().Is4() {
		p.AnnouncedPrefixesV4[pfx] = struct{}{}
	} else {
		p.AnnouncedPrefixesV6[pfx] = struct{}{}
	}
}

// recordWithdrawal updates the per-family withdrawn-prefix set for a
// withdrawal of pfx.
func (p *Peer) recordWithdrawal(pfx netip.Prefix) {
	if pfx.Addr().Is4() {
		p.WithdrawnPrefixesV4[pfx] = struct{}{}
	} else {
		p.WithdrawnPrefixesV6[pfx] = struct{}{}
	}
}

// Cell fields are wiped by the folder and the reconciler through
// View.ForEachCellOfPeer (cells are owned by the view, not by the peer
// payload).
