// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

package kafkasink

import (
	"context"
	"net/netip"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"routingtables/engine"
)

func newMockedSink(t *testing.T) *Sink {
	t.Helper()
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	mockProducer := mocks.NewSyncProducer(t, saramaConfig)
	t.Cleanup(func() { mockProducer.Close() })

	prior := createSyncProducer
	createSyncProducer = func(_ []string, _ *sarama.Config) (sarama.SyncProducer, error) {
		return mockProducer, nil
	}
	t.Cleanup(func() { createSyncProducer = prior })

	sink, err := New(DefaultConfiguration())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	mockProducer.ExpectSendMessageAndSucceed()
	return sink
}

func TestPublishViewSendsOneMessagePerPeer(t *testing.T) {
	sink := newMockedSink(t)

	registry := engine.NewPeerRegistry()
	view := engine.NewView(registry)
	sig := engine.PeerSignature{Collector: "rrc00", PeerIP: netip.MustParseAddr("192.0.2.1"), PeerASN: 65001}
	id := registry.GetOrCreate(sig)
	peer := view.Peer(id, sig)
	peer.FSMState = engine.FSMEstablished
	cell := view.Cell(netip.MustParsePrefix("10.0.0.0/24"), id)
	cell.Active = true

	published := engine.NewPublishedView(view, 100, nil)
	if err := sink.PublishView(context.Background(), published); err != nil {
		t.Fatalf("PublishView() error: %v", err)
	}
}

func TestEmitMetricSendsOneMessage(t *testing.T) {
	sink := newMockedSink(t)
	if err := sink.EmitMetric(context.Background(), []string{"fullfeed", "subnets", "v4"}, 42, 100); err != nil {
		t.Fatalf("EmitMetric() error: %v", err)
	}
}
