// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"context"
	"net/netip"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
)

// RecordStatus classifies a record as delivered by a RecordSource.
type RecordStatus int

// The five record statuses a source may report.
const (
	RecordValid RecordStatus = iota
	RecordCorruptedSource
	RecordCorruptedRecord
	RecordFilteredSource
	RecordEmptySource
)

// DumpType distinguishes a full-table RIB dump from an incremental
// update stream.
type DumpType int

// The two dump types.
const (
	DumpRib DumpType = iota
	DumpUpdates
)

// DumpPosition locates a record within its dump.
type DumpPosition int

// The three positions a record can occupy within its dump.
const (
	DumpStart DumpPosition = iota
	DumpMiddle
	DumpEnd
)

// ElementType classifies one element of a record.
type ElementType int

// The four element types.
const (
	ElementRib ElementType = iota
	ElementAnnouncement
	ElementWithdrawal
	ElementPeerState
)

// Element is one observation inside a record: an RIB row, an
// announcement, a withdrawal, or a peer state change.
type Element struct {
	Type ElementType

	PeerIP  netip.Addr
	PeerASN uint32

	// Prefix is set for Rib, Announcement and Withdrawal elements.
	Prefix netip.Prefix
	// ASPath is set for Rib and Announcement elements. It is reused
	// directly from gobgp's decoded path-attribute representation
	// rather than a parallel invented type.
	ASPath *bgp.PathAttributeAsPath
	// NewState is set for PeerState elements.
	NewState FSMState
}

// Record is one unit of work yielded by a RecordSource: a RIB dump row
// batch, an update batch, or a control record signalling corruption or
// an empty/filtered source, each carrying zero or more elements.
type Record struct {
	Status RecordStatus

	DumpType     DumpType
	DumpPosition DumpPosition
	DumpTime     int64
	RecordTime   int64

	DumpProject   string
	DumpCollector string
	// DisplayCollector is the collector's human-readable label,
	// distinct from its wire name.
	DisplayCollector string

	Elements []Element
}

// RecordSource yields decoded records for the engine to fold into its
// view. Acquisition and parsing of the underlying BGP data is out of
// scope for the engine itself — a RecordSource is always an external
// collaborator.
type RecordSource interface {
	// Next blocks until a record is available, the source is
	// exhausted (returns ok=false, err=nil), or ctx is done.
	Next(ctx context.Context) (rec Record, ok bool, err error)
	// Close releases any resources held by the source.
	Close() error
}
