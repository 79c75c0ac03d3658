// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import (
	"context"
	"net/netip"
)

// PeerAcceptFunc is the peer-acceptance predicate handed to a ViewSink
// alongside a published view. The full-feed filter is one concrete
// instance of this type.
type PeerAcceptFunc func(PeerID, *Peer) bool

// AcceptAllPeers is a PeerAcceptFunc that accepts every peer; used when
// publish_partial_feeds is set (thresholds of 0).
func AcceptAllPeers(PeerID, *Peer) bool { return true }

// ViewSink is the downstream transport of published views. The
// sink observes peers (with their signatures) and cells (with origin
// and active flag) but never mutates them. Delivery is best-effort:
// sink errors are surfaced as non-fatal warnings by the caller and do
// not poison the engine.
type ViewSink interface {
	PublishView(ctx context.Context, view *PublishedView) error
}

// PublishedView is the immutable snapshot handed to a ViewSink at
// interval end. It exposes read-only iteration, never the live View
// the engine continues to mutate.
type PublishedView struct {
	ViewTime int64
	Registry *PeerRegistry
	view     *View
	accept   PeerAcceptFunc
}

// NewPublishedView wraps view as a PublishedView at viewTime, filtering
// peers through accept (nil accepts every peer). Exported so that
// out-of-package ViewSink implementations can exercise PublishView in
// their own tests without going through a full interval cycle.
func NewPublishedView(view *View, viewTime int64, accept PeerAcceptFunc) *PublishedView {
	return &PublishedView{ViewTime: viewTime, Registry: view.registry, view: view, accept: accept}
}

// ForEachPeer iterates accepted peers.
func (pv *PublishedView) ForEachPeer(fn func(PeerID, PeerSignature, *Peer)) {
	pv.view.ForEachPeer(func(id PeerID, p *Peer) {
		if pv.accept != nil && !pv.accept(id, p) {
			return
		}
		fn(id, p.Signature, p)
	})
}

// ForEachCellOfPeer iterates every cell of peer. It does not apply the
// acceptance predicate; callers pass ids obtained from ForEachPeer.
func (pv *PublishedView) ForEachCellOfPeer(peer PeerID, fn func(netip.Prefix, *Cell)) {
	pv.view.ForEachCellOfPeer(peer, fn)
}

// MetricsSink accepts named time-series points. Points are
// keyed as <prefix>.<collector>.<peer>.<metric> with graphite-safe path
// segments (see graphite.go). Sink errors are logged and never abort
// the engine.
type MetricsSink interface {
	EmitMetric(ctx context.Context, path []string, value float64, timestamp int64) error
}
