// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

// CollectorState is the aggregate health of a collector, recomputed
// after every record from its peers' view states.
type CollectorState int

// The three collector states.
const (
	CollectorUnknown CollectorState = iota
	CollectorDown
	CollectorUp
)

func (s CollectorState) String() string {
	switch s {
	case CollectorUnknown:
		return "unknown"
	case CollectorDown:
		return "down"
	case CollectorUp:
		return "up"
	default:
		return "unknown"
	}
}

// CollectorCounters tracks per-collector record-level counters.
type CollectorCounters struct {
	ValidRecords     uint64
	CorruptedRecords uint64
	EmptyRecords     uint64
}

// WallUpdatePeriod is the minimum advancement, in BGP record time
// seconds, of bgp_time_last required before the wall-clock snapshot is
// refreshed.
const WallUpdatePeriod = 60

// Collector is the per-collector bookkeeping record. A View's peers
// carry the collector name inside their signature; Collector adds the
// set of peer ids that belong to it plus the RIB/UC timestamps and
// counters that are meaningful only at the collector level.
type Collector struct {
	Name        string
	DisplayName string
	// Project is the vantage-point project the collector belongs to
	// (e.g. "ris" or "routeviews"), carried alongside the collector's
	// wire name and display name.
	Project string

	PeerIDs map[PeerID]struct{}

	BGPTimeLast int64
	// wallTimeLastRefreshedAt is the bgp_time_last value (BGP record
	// time) at which the refresh callback last ran, used to throttle
	// refreshes to every WallUpdatePeriod seconds of advancement.
	wallTimeLastRefreshedAt int64

	RefRIBDumpTime  int64
	RefRIBStartTime int64
	UCRIBDumpTime   int64
	UCRIBStartTime  int64

	State CollectorState

	Counters CollectorCounters
}

// NewCollector creates a fresh collector record.
func NewCollector(name, displayName, project string) *Collector {
	return &Collector{
		Name:        name,
		DisplayName: displayName,
		Project:     project,
		PeerIDs:     make(map[PeerID]struct{}),
	}
}

// addPeer records that peer belongs to this collector.
func (c *Collector) addPeer(id PeerID) {
	c.PeerIDs[id] = struct{}{}
}

// touchBGPTimeLast advances bgp_time_last monotonically and refreshes
// the wall-clock snapshot every WallUpdatePeriod seconds of BGP-time
// advancement. Unlike the upstream collector feed this is always
// monotonic, including on the empty/filtered-record path.
func (c *Collector) touchBGPTimeLast(ts int64, wallNow int64, refresh func(int64)) {
	if ts <= c.BGPTimeLast {
		return
	}
	c.BGPTimeLast = ts
	if ts-c.wallTimeLastRefreshedAt >= WallUpdatePeriod {
		c.wallTimeLastRefreshedAt = ts
		if refresh != nil {
			refresh(wallNow)
		}
	}
}

// recomputeState derives the collector's aggregate state from the view:
// Up iff at least one of the collector's peers is Active; Down if none
// are active but at least one has left FSMUnknown; Unknown otherwise.
func (c *Collector) recomputeState(v *View) {
	anyActive := false
	anyKnown := false
	for id := range c.PeerIDs {
		p, ok := v.LookupPeer(id)
		if !ok {
			continue
		}
		if p.ViewState {
			anyActive = true
			break
		}
		if p.FSMState != FSMUnknown {
			anyKnown = true
		}
	}
	switch {
	case anyActive:
		c.State = CollectorUp
	case anyKnown:
		c.State = CollectorDown
	default:
		c.State = CollectorUnknown
	}
}
