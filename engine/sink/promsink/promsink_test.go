// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package promsink

import (
	"context"
	"testing"

	"routingtables/common/reporter"
)

func TestEmitMetricRecordsLatestValue(t *testing.T) {
	r := reporter.NewMock(t)
	s := New(r)

	if err := s.EmitMetric(context.Background(), []string{"fullfeed", "subnets", "v4"}, 42, 100); err != nil {
		t.Fatalf("EmitMetric() error: %v", err)
	}
	if err := s.EmitMetric(context.Background(), []string{"fullfeed", "subnets", "v4"}, 43, 160); err != nil {
		t.Fatalf("EmitMetric() error: %v", err)
	}

	got := r.GetMetrics("routingtables_engine_sink_promsink_", "metric_points")
	if len(got) != 1 {
		t.Fatalf("GetMetrics() = %v, want one series", got)
	}
	for _, v := range got {
		if v != "43" {
			t.Fatalf("metric value = %q, want 43", v)
		}
	}
}
