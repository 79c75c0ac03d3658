// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package kafkasink implements a ViewSink and a MetricsSink publishing
// serialized views and metric points to Kafka topics, mirroring how the
// teacher's outlet ships its own records to Kafka.
package kafkasink

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"

	"github.com/IBM/sarama"

	"routingtables/common/reporter"
	"routingtables/engine"
)

// Configuration describes the Kafka-backed sinks.
type Configuration struct {
	// Brokers is the list of Kafka broker addresses to connect to.
	Brokers []string `validate:"required,min=1"`
	// ViewTopic receives one JSON-encoded message per published peer.
	ViewTopic string `validate:"required"`
	// MetricsTopic receives one JSON-encoded message per metric point.
	MetricsTopic string `validate:"required"`
}

// DefaultConfiguration returns the default Kafka sink configuration.
func DefaultConfiguration() Configuration {
	return Configuration{
		Brokers:      []string{"127.0.0.1:9092"},
		ViewTopic:    "routingtables-views",
		MetricsTopic: "routingtables-metrics",
	}
}

// NewViewSink instantiates the Kafka sink, satisfying the view-sink
// provider interface registered by the command-line configuration.
func (c Configuration) NewViewSink(_ *reporter.Reporter) (engine.ViewSink, error) {
	return New(c)
}

// NewMetricsSink instantiates the Kafka sink, satisfying the
// metrics-sink provider interface registered by the command-line
// configuration. It builds a Sink with a producer of its own from the
// same Brokers setting, so when both the view sink and the metrics sink
// are Kafka, two producers are opened.
func (c Configuration) NewMetricsSink(_ *reporter.Reporter) (engine.MetricsSink, error) {
	return New(c)
}

// Sink is a ViewSink and a MetricsSink publishing to Kafka through a
// shared synchronous producer.
type Sink struct {
	producer     sarama.SyncProducer
	viewTopic    string
	metricsTopic string
}

// createSyncProducer is overridden in tests to inject a mocked
// producer.
var createSyncProducer = sarama.NewSyncProducer

// New creates a Kafka-backed sink from config.
func New(config Configuration) (*Sink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := createSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create Kafka producer: %w", err)
	}
	return &Sink{
		producer:     producer,
		viewTopic:    config.ViewTopic,
		metricsTopic: config.MetricsTopic,
	}, nil
}

// Close releases the underlying Kafka producer.
func (s *Sink) Close() error {
	return s.producer.Close()
}

// peerRecord is the JSON-on-the-wire shape of one published peer,
// including its cells, sent to ViewTopic.
type peerRecord struct {
	ViewTime  int64        `json:"view_time"`
	Collector string       `json:"collector"`
	PeerIP    string       `json:"peer_ip"`
	PeerASN   uint32       `json:"peer_asn"`
	FSMState  string       `json:"fsm_state"`
	Cells     []cellRecord `json:"cells"`
}

type cellRecord struct {
	Prefix    string `json:"prefix"`
	Active    bool   `json:"active"`
	OriginASN uint32 `json:"origin_asn"`
	LastTS    int64  `json:"last_ts"`
}

// PublishView encodes every accepted peer (with its cells) as one
// Kafka message on the view topic.
func (s *Sink) PublishView(_ context.Context, view *engine.PublishedView) error {
	var messages []*sarama.ProducerMessage
	view.ForEachPeer(func(id engine.PeerID, sig engine.PeerSignature, peer *engine.Peer) {
		rec := peerRecord{
			ViewTime:  view.ViewTime,
			Collector: sig.Collector,
			PeerIP:    sig.PeerIP.String(),
			PeerASN:   sig.PeerASN,
			FSMState:  peer.FSMState.String(),
		}
		view.ForEachCellOfPeer(id, func(pfx netip.Prefix, cell *engine.Cell) {
			rec.Cells = append(rec.Cells, cellRecord{
				Prefix:    pfx.String(),
				Active:    cell.Active,
				OriginASN: uint32(cell.OriginASN),
				LastTS:    cell.LastTS,
			})
		})
		payload, err := json.Marshal(rec)
		if err != nil {
			return
		}
		messages = append(messages, &sarama.ProducerMessage{
			Topic: s.viewTopic,
			Key:   sarama.StringEncoder(sig.Collector),
			Value: sarama.ByteEncoder(payload),
		})
	})
	if len(messages) == 0 {
		return nil
	}
	return s.producer.SendMessages(messages)
}

// metricPoint is the JSON-on-the-wire shape of one metric point, sent
// to MetricsTopic.
type metricPoint struct {
	Path      string  `json:"path"`
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// EmitMetric encodes one metric point as a Kafka message on the
// metrics topic.
func (s *Sink) EmitMetric(_ context.Context, path []string, value float64, timestamp int64) error {
	payload, err := json.Marshal(metricPoint{
		Path:      strings.Join(path, "."),
		Value:     value,
		Timestamp: timestamp,
	})
	if err != nil {
		return fmt.Errorf("unable to encode metric point: %w", err)
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.metricsTopic,
		Value: sarama.ByteEncoder(payload),
	})
	return err
}
