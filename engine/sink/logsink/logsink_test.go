// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package logsink

import (
	"context"
	"testing"

	"routingtables/common/reporter"
	"routingtables/engine"
)

func TestPublishViewDoesNotError(t *testing.T) {
	r := reporter.NewMock(t)
	registry := engine.NewPeerRegistry()
	view := engine.NewView(registry)
	sink := New(r)

	published := engine.NewPublishedView(view, 100, nil)
	if err := sink.PublishView(context.Background(), published); err != nil {
		t.Fatalf("PublishView() error: %v", err)
	}
}
