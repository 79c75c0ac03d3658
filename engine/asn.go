// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"strconv"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"
)

// Origin is the believed origin of a route: either a real ASN or one of
// three reserved sentinel values. The sentinels (65551-65553) sit in
// ASN space reserved by IANA so that they can never collide with a real
// public ASN while still fitting on the wire as a plain uint32.
type Origin uint32

// ReservedASNBase is the first value of the three consecutive sentinels.
// 65551 is the last value of RFC 5398's 65536-65551 documentation-use
// range; the two sentinels after it, 65552 and 65553, fall in the
// IANA-reserved 65552-131071 block. None of the three is ever allocated
// as a real ASN, so they are safe to use as sentinels on the wire.
const ReservedASNBase Origin = 65551

// The three sentinel origins, consecutive from ReservedASNBase.
const (
	// OriginLocal marks a route with an empty AS path: locally originated.
	OriginLocal Origin = ReservedASNBase + 0
	// OriginSetOrConfed marks a route whose last path segment is an
	// AS-set or AS-confederation-set rather than a single ASN.
	OriginSetOrConfed Origin = ReservedASNBase + 1
	// OriginDown marks the absence of a route.
	OriginDown Origin = ReservedASNBase + 2
)

// IsReserved tells whether an origin is one of the three sentinels.
func (o Origin) IsReserved() bool {
	return o >= ReservedASNBase && o <= ReservedASNBase+2
}

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginSetOrConfed:
		return "set-or-confed"
	case OriginDown:
		return "down"
	default:
		return strconv.FormatUint(uint64(o), 10)
	}
}

// emptyASPath reports whether aspath carries no AS hops at all, the
// case a RIB row or announcement must be skipped outright for rather
// than folded as a locally-originated route.
func emptyASPath(aspath *bgp.PathAttributeAsPath) bool {
	if aspath == nil || len(aspath.Value) == 0 {
		return true
	}
	for _, param := range aspath.Value {
		if len(param.GetAS()) > 0 {
			return false
		}
	}
	return true
}

// extractOrigin derives a route's origin from its AS path: empty path
// -> OriginLocal, last segment a single ASN -> that ASN, last segment
// a set/confed -> OriginSetOrConfed.
func extractOrigin(aspath *bgp.PathAttributeAsPath) Origin {
	if aspath == nil || len(aspath.Value) == 0 {
		return OriginLocal
	}
	last := aspath.Value[len(aspath.Value)-1]
	asList := last.GetAS()
	if len(asList) == 0 {
		return OriginLocal
	}
	switch last.GetType() {
	case bgp.BGP_ASPATH_ATTR_TYPE_SET, bgp.BGP_ASPATH_ATTR_TYPE_CONFED_SET:
		return OriginSetOrConfed
	default:
		return Origin(asList[len(asList)-1])
	}
}

// firstHopASN returns the first AS hop of the path: the first element
// of the first segment, when that segment is a SEQ or CONFED_SEQ with
// at least one ASN. The common case is a multi-hop SEQ, so this does
// not require the segment to hold exactly one ASN.
func firstHopASN(aspath *bgp.PathAttributeAsPath) (uint32, bool) {
	if aspath == nil || len(aspath.Value) == 0 {
		return 0, false
	}
	first := aspath.Value[0]
	switch first.GetType() {
	case bgp.BGP_ASPATH_ATTR_TYPE_SEQ, bgp.BGP_ASPATH_ATTR_TYPE_CONFED_SEQ:
		asList := first.GetAS()
		if len(asList) > 0 {
			return asList[0], true
		}
	}
	return 0, false
}

// peerPathSane reports whether an element's AS path is consistent with
// its peer: it is rejected if its first AS hop differs from the peer's
// own ASN. An empty path never fails this check (it is the valid
// OriginLocal case).
func peerPathSane(aspath *bgp.PathAttributeAsPath, peerASN uint32) bool {
	if aspath == nil || len(aspath.Value) == 0 {
		return true
	}
	asn, ok := firstHopASN(aspath)
	if !ok {
		return true
	}
	return asn == peerASN
}
