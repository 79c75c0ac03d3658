// SPDX-FileCopyrightText: 2022 Free Mobile
// SPDX-License-Identifier: AGPL-3.0-only

// Package filesource implements a RecordSource reading newline-delimited
// JSON records from a file or stdin, grounded on the record shape
// described for replaying captured BGPStream dumps.
package filesource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"

	"github.com/osrg/gobgp/v3/pkg/packet/bgp"

	"routingtables/common/reporter"
	"routingtables/engine"
)

// Configuration describes a file-backed record source.
type Configuration struct {
	// Path is the file to read records from. "-" or "" reads from
	// standard input.
	Path string
}

// DefaultConfiguration returns the default file-source configuration.
func DefaultConfiguration() Configuration {
	return Configuration{Path: "-"}
}

// NewSource instantiates the file source from its configuration,
// satisfying the record-source provider interface registered by the
// command-line configuration.
func (c Configuration) NewSource(_ *reporter.Reporter) (engine.RecordSource, error) {
	return New(c)
}

// wireElement is the JSON-on-the-wire representation of engine.Element.
type wireElement struct {
	Type     string   `json:"type"`
	PeerIP   string   `json:"peer_ip"`
	PeerASN  uint32   `json:"peer_asn"`
	Prefix   string   `json:"prefix,omitempty"`
	ASPath   []uint32 `json:"as_path,omitempty"`
	NewState string   `json:"new_state,omitempty"`
}

// wireRecord is the JSON-on-the-wire representation of engine.Record.
type wireRecord struct {
	Status           string        `json:"status"`
	DumpType         string        `json:"dump_type"`
	DumpPosition     string        `json:"dump_position,omitempty"`
	DumpTime         int64         `json:"dump_time,omitempty"`
	RecordTime       int64         `json:"record_time"`
	DumpProject      string        `json:"dump_project,omitempty"`
	DumpCollector    string        `json:"dump_collector"`
	DisplayCollector string        `json:"display_collector,omitempty"`
	Elements         []wireElement `json:"elements,omitempty"`
}

var statusByName = map[string]engine.RecordStatus{
	"valid":              engine.RecordValid,
	"corrupted-source":   engine.RecordCorruptedSource,
	"corrupted-record":   engine.RecordCorruptedRecord,
	"filtered-source":    engine.RecordFilteredSource,
	"empty-source":       engine.RecordEmptySource,
}

var dumpTypeByName = map[string]engine.DumpType{
	"rib":     engine.DumpRib,
	"updates": engine.DumpUpdates,
}

var dumpPositionByName = map[string]engine.DumpPosition{
	"start":  engine.DumpStart,
	"middle": engine.DumpMiddle,
	"end":    engine.DumpEnd,
}

var elementTypeByName = map[string]engine.ElementType{
	"rib":          engine.ElementRib,
	"announcement": engine.ElementAnnouncement,
	"withdrawal":   engine.ElementWithdrawal,
	"peer-state":   engine.ElementPeerState,
}

var fsmStateByName = map[string]engine.FSMState{
	"unknown":       engine.FSMUnknown,
	"idle":          engine.FSMIdle,
	"connect":       engine.FSMConnect,
	"active":        engine.FSMActive,
	"open-sent":     engine.FSMOpenSent,
	"open-confirm":  engine.FSMOpenConfirm,
	"established":   engine.FSMEstablished,
}

// Source reads records from an underlying newline-delimited JSON stream.
type Source struct {
	closer io.Closer
	lines  *bufio.Scanner
}

// New opens config.Path (or stdin) and returns a Source reading it.
func New(config Configuration) (*Source, error) {
	var r io.ReadCloser
	if config.Path == "" || config.Path == "-" {
		r = io.NopCloser(os.Stdin)
	} else {
		f, err := os.Open(config.Path)
		if err != nil {
			return nil, fmt.Errorf("unable to open record source: %w", err)
		}
		r = f
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Source{closer: r, lines: scanner}, nil
}

// Next decodes the next newline-delimited JSON record.
func (s *Source) Next(ctx context.Context) (engine.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return engine.Record{}, false, err
	}
	if !s.lines.Scan() {
		if err := s.lines.Err(); err != nil {
			return engine.Record{}, false, fmt.Errorf("unable to read record: %w", err)
		}
		return engine.Record{}, false, nil
	}
	line := s.lines.Bytes()
	if len(line) == 0 {
		return s.Next(ctx)
	}
	var wire wireRecord
	if err := json.Unmarshal(line, &wire); err != nil {
		return engine.Record{}, false, fmt.Errorf("unable to parse record: %w", err)
	}
	rec, err := decodeRecord(wire)
	if err != nil {
		return engine.Record{}, false, err
	}
	return rec, true, nil
}

// Close releases the underlying reader.
func (s *Source) Close() error {
	return s.closer.Close()
}

func decodeRecord(wire wireRecord) (engine.Record, error) {
	status, ok := statusByName[wire.Status]
	if !ok {
		return engine.Record{}, fmt.Errorf("unknown record status %q", wire.Status)
	}
	dumpType, ok := dumpTypeByName[wire.DumpType]
	if !ok {
		return engine.Record{}, fmt.Errorf("unknown dump type %q", wire.DumpType)
	}
	dumpPosition := dumpPositionByName[wire.DumpPosition]

	rec := engine.Record{
		Status:           status,
		DumpType:         dumpType,
		DumpPosition:     dumpPosition,
		DumpTime:         wire.DumpTime,
		RecordTime:       wire.RecordTime,
		DumpProject:      wire.DumpProject,
		DumpCollector:    wire.DumpCollector,
		DisplayCollector: wire.DisplayCollector,
	}
	for _, we := range wire.Elements {
		el, err := decodeElement(we)
		if err != nil {
			return engine.Record{}, err
		}
		rec.Elements = append(rec.Elements, el)
	}
	return rec, nil
}

func decodeElement(we wireElement) (engine.Element, error) {
	typ, ok := elementTypeByName[we.Type]
	if !ok {
		return engine.Element{}, fmt.Errorf("unknown element type %q", we.Type)
	}
	peerIP, err := netip.ParseAddr(we.PeerIP)
	if err != nil {
		return engine.Element{}, fmt.Errorf("unable to parse peer IP %q: %w", we.PeerIP, err)
	}
	el := engine.Element{Type: typ, PeerIP: peerIP, PeerASN: we.PeerASN}

	switch typ {
	case engine.ElementRib, engine.ElementAnnouncement, engine.ElementWithdrawal:
		pfx, err := netip.ParsePrefix(we.Prefix)
		if err != nil {
			return engine.Element{}, fmt.Errorf("unable to parse prefix %q: %w", we.Prefix, err)
		}
		el.Prefix = pfx
	}
	switch typ {
	case engine.ElementRib, engine.ElementAnnouncement:
		el.ASPath = asPathFromSequence(we.ASPath)
	case engine.ElementPeerState:
		state, ok := fsmStateByName[we.NewState]
		if !ok {
			return engine.Element{}, fmt.Errorf("unknown FSM state %q", we.NewState)
		}
		el.NewState = state
	}
	return el, nil
}

// asPathFromSequence builds a single-segment AS_SEQUENCE path attribute
// from a flat list of ASNs, the JSON wire's only representation of an
// AS path (sets and confederations are out of scope for the file
// source: they are a live-collection edge case, not a replay one).
func asPathFromSequence(asns []uint32) *bgp.PathAttributeAsPath {
	if len(asns) == 0 {
		return bgp.NewPathAttributeAsPath(nil)
	}
	return bgp.NewPathAttributeAsPath([]bgp.AsPathParamInterface{
		bgp.NewAs4PathParam(bgp.BGP_ASPATH_ATTR_TYPE_SEQ, asns),
	})
}
