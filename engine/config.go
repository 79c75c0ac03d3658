// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package engine

import "time"

// DefaultV4FullfeedThreshold is a typical IPv4 full-table size, used as
// the default v4_fullfeed_threshold.
const DefaultV4FullfeedThreshold = 400000

// DefaultV6FullfeedThreshold is a typical IPv6 full-table size, used as
// the default v6_fullfeed_threshold.
const DefaultV6FullfeedThreshold = 20000

// DefaultBacklogWindow is the default backlog window duration.
const DefaultBacklogWindow = 60 * time.Second

// DefaultInactiveTimeout is the default peer inactivity timeout.
const DefaultInactiveTimeout = 3600 * time.Second

// Configuration holds the engine's recognised configuration options.
type Configuration struct {
	// V4FullfeedThreshold is the number of active IPv4 cells a peer
	// must carry to be considered a full-feed peer.
	V4FullfeedThreshold int `validate:"min=0"`
	// V6FullfeedThreshold is the IPv6 equivalent.
	V6FullfeedThreshold int `validate:"min=0"`
	// MetricPrefix prefixes every graphite-safe metric path emitted to
	// the metrics sink.
	MetricPrefix string
	// MetricsEnabled toggles metric emission at interval end.
	MetricsEnabled bool
	// PublishPartialFeeds, when true, sets both thresholds to 0 so
	// every peer is accepted by the full-feed filter.
	PublishPartialFeeds bool
	// BacklogWindow is the backlog-window duration used when
	// reconciling a RIB dump against the live view.
	BacklogWindow time.Duration `validate:"min=0s"`
	// InactiveTimeout is how far, in BGP record time, an Established
	// peer's last record may lag its collector's bgp_time_last before
	// RIB End demotes it to Unknown, for peers that received no RIB
	// rows in that dump.
	InactiveTimeout time.Duration `validate:"min=0s"`
	// IntervalDuration is the nominal length of one publication
	// interval driven by the interval driver.
	IntervalDuration time.Duration `validate:"min=1s"`
}

// DefaultConfiguration returns the default engine configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		V4FullfeedThreshold: DefaultV4FullfeedThreshold,
		V6FullfeedThreshold: DefaultV6FullfeedThreshold,
		MetricPrefix:        "bgp",
		MetricsEnabled:      true,
		PublishPartialFeeds: false,
		BacklogWindow:       DefaultBacklogWindow,
		InactiveTimeout:     DefaultInactiveTimeout,
		IntervalDuration:    5 * time.Minute,
	}
}

// effectiveThresholds returns the thresholds actually in effect,
// honoring PublishPartialFeeds.
func (c Configuration) effectiveThresholds() (v4, v6 int) {
	if c.PublishPartialFeeds {
		return 0, 0
	}
	return c.V4FullfeedThreshold, c.V6FullfeedThreshold
}
