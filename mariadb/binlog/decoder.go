// Copyright 2025 The Ultraverse Authors
// This file is part of Ultraverse.
//
// Ultraverse is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultraverse is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ultraverse. If not, see <http://www.gnu.org/licenses/>.

package binlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const commonHeaderLen = 19

// magicNumber is the 4-byte prefix ("\xfebin") every binlog file
// begins with, preceding the first event.
var magicNumber = []byte{0xfe, 'b', 'i', 'n'}

// Decoder turns a stream of binlog bytes into a sequence of Events. It
// is stateful: it tracks the active FDE (post-header lengths, checksum
// algorithm) and the TABLE_MAP_EVENT registry rows events resolve
// against, and it buffers the nested events a TRANSACTION_PAYLOAD_EVENT
// decompresses into.
type Decoder struct {
	log       *zap.Logger
	fde       *FDE
	tableMaps map[uint64]*TableMapEvent
	pending   []*Event

	sawMagic bool
}

// NewDecoder builds a Decoder. log may be nil, in which case decode
// diagnostics are discarded.
func NewDecoder(log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{log: log, tableMaps: make(map[uint64]*TableMapEvent)}
}

// Reset clears per-file state (FDE, table map registry, magic-number
// flag), which a SequentialBinlogReader calls when it opens a new
// binlog segment: FDE and TABLE_MAP_EVENT ids don't carry across
// files.
func (d *Decoder) Reset() {
	d.fde = nil
	d.tableMaps = make(map[uint64]*TableMapEvent)
	d.sawMagic = false
}

// FDE exposes the currently active format description, mainly for
// tests and diagnostics.
func (d *Decoder) FDE() *FDE { return d.fde }

// Next reads and decodes one logical event from r, skipping event
// kinds spec.md §4.1 doesn't surface (ROTATE, START_V3, STOP,
// heartbeats, the LOAD DATA family) and transparently unwrapping
// TRANSACTION_PAYLOAD_EVENT into the nested events it compresses.
// Returns io.EOF once r is exhausted at an event boundary.
func (d *Decoder) Next(r io.Reader) (*Event, error) {
	if len(d.pending) > 0 {
		ev := d.pending[0]
		d.pending = d.pending[1:]
		return ev, nil
	}

	if !d.sawMagic {
		magic := make([]byte, 4)
		if _, err := io.ReadFull(r, magic); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "binlog: read magic number")
		}
		if !bytes.Equal(magic, magicNumber) {
			return nil, errors.New("binlog: bad magic number")
		}
		d.sawMagic = true
	}

	for {
		header, body, err := d.readRawEvent(r)
		if err != nil {
			if ce, ok := err.(*corruptEventError); ok {
				d.log.Warn("binlog: dropping corrupt event, resyncing at next header", zap.String("reason", ce.msg))
				continue
			}
			return nil, err
		}
		ev, err := d.decodeBody(header, body)
		if err != nil {
			return nil, errors.Wrapf(err, "binlog: decode event type %d at pos %d", header.EventType, header.LogPos)
		}
		if ev != nil {
			return ev, nil
		}
		if len(d.pending) > 0 {
			ev := d.pending[0]
			d.pending = d.pending[1:]
			return ev, nil
		}
		// else: event was consumed internally (FDE, rotate, table map
		// dedup-only cases) or ignored; read the next one.
	}
}

// readRawEvent reads one event's common header plus its body. When the
// FDE declares CRC32 checksums, it validates the footer and returns the
// body with the footer stripped; a FORMAT_DESCRIPTION_EVENT body is
// returned with its footer still attached.
func (d *Decoder) readRawEvent(r io.Reader) (EventHeader, []byte, error) {
	hdr := make([]byte, commonHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		if err == io.EOF {
			return EventHeader{}, nil, io.EOF
		}
		return EventHeader{}, nil, errors.Wrap(err, "binlog: read event header")
	}
	h := EventHeader{
		Timestamp: binary.LittleEndian.Uint32(hdr[0:4]),
		EventType: EventType(hdr[4]),
		ServerID:  binary.LittleEndian.Uint32(hdr[5:9]),
		EventLen:  binary.LittleEndian.Uint32(hdr[9:13]),
		LogPos:    binary.LittleEndian.Uint32(hdr[13:17]),
		Flags:     binary.LittleEndian.Uint16(hdr[17:19]),
	}
	if h.EventLen < commonHeaderLen {
		return EventHeader{}, nil, errors.Errorf("binlog: event length %d shorter than header", h.EventLen)
	}
	body := make([]byte, h.EventLen-commonHeaderLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return EventHeader{}, nil, errors.Wrap(err, "binlog: read event body")
	}

	if h.EventType != FormatDescriptionEvent && d.fde != nil && d.fde.ChecksumAlg == ChecksumCRC32 {
		if len(body) < 4 {
			return EventHeader{}, nil, &corruptEventError{msg: fmt.Sprintf("event body too short for checksum footer at pos %d", h.LogPos)}
		}
		footer := body[len(body)-4:]
		body = body[:len(body)-4]
		want := binary.LittleEndian.Uint32(footer)
		got := crc32.ChecksumIEEE(append(append([]byte{}, hdr...), body...))
		if want != got {
			return EventHeader{}, nil, &corruptEventError{msg: fmt.Sprintf("checksum mismatch at pos %d: want %x got %x", h.LogPos, want, got)}
		}
	}
	return h, body, nil
}

// corruptEventError marks an event whose common header was read fully
// and whose declared length was honored when consuming its body (a
// checksum mismatch, or a body too short to hold its checksum footer),
// so the stream is already positioned at the next event's header.
// Next and decodeTransactionPayloadInto warn and resync on this error
// instead of treating it as terminal (spec.md §4.1/§7: "the event is
// dropped with a warning and the stream resynchronizes at the next
// header").
type corruptEventError struct{ msg string }

func (e *corruptEventError) Error() string { return "binlog: " + e.msg }

// decodeBody dispatches on event type. A nil, nil return means the
// event carried no payload Next should surface to its caller.
func (d *Decoder) decodeBody(header EventHeader, body []byte) (*Event, error) {
	c := newCursor(body)
	switch header.EventType {
	case FormatDescriptionEvent:
		fde, err := decodeFDE(c, header.EventLen)
		if err != nil {
			return nil, err
		}
		d.fde = fde
		return nil, nil

	case QueryEventType:
		e, err := decodeQuery(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, Query: e}, nil

	case XidEventType:
		e, err := decodeXID(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, XID: e}, nil

	case IntvarEventType:
		e, err := decodeIntVar(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, IntVar: e}, nil

	case RandEventType:
		e, err := decodeRand(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, Rand: e}, nil

	case UserVarEventType:
		e, err := decodeUserVar(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, UserVar: e}, nil

	case TableMapEventType:
		e, err := decodeTableMap(c, header)
		if err != nil {
			return nil, err
		}
		d.tableMaps[e.TableID] = e
		return &Event{Header: header, TableMap: e}, nil

	case RowsQueryEventType:
		e, err := decodeRowsQuery(c, header)
		if err != nil {
			return nil, err
		}
		return &Event{Header: header, RowsQuery: e}, nil

	case TransactionPayloadType:
		return nil, d.decodeTransactionPayloadInto(c)

	default:
		if header.EventType.IsRowsEvent() {
			postHeaderLen := d.fde.PostHeaderLength(header.EventType, 8)
			e, err := decodeRows(c, header, header.EventType, postHeaderLen)
			if err != nil {
				return nil, err
			}
			return &Event{Header: header, Row: e}, nil
		}
		// ROTATE, STOP, START_V3, heartbeats, LOAD DATA family, GTID
		// bookkeeping events: none are part of spec.md §4.1's surface.
		return nil, nil
	}
}

// decodeTransactionPayloadInto decompresses a TRANSACTION_PAYLOAD_EVENT
// and decodes the nested event stream it contains, queuing every
// resulting Event onto d.pending in order.
func (d *Decoder) decodeTransactionPayloadInto(c *cursor) error {
	pf, err := decodeTransactionPayload(c)
	if err != nil {
		return errors.Wrap(err, "binlog: decode transaction payload fields")
	}
	plain, err := pf.decompress()
	if err != nil {
		return err
	}
	nested := bytes.NewReader(plain)
	for {
		header, body, err := d.readRawEvent(nested)
		if err == io.EOF {
			break
		}
		if ce, ok := err.(*corruptEventError); ok {
			d.log.Warn("binlog: dropping corrupt nested event, resyncing at next header", zap.String("reason", ce.msg))
			continue
		}
		if err != nil {
			return errors.Wrap(err, "binlog: decode nested transaction payload event")
		}
		ev, err := d.decodeBody(header, body)
		if err != nil {
			return err
		}
		if ev != nil {
			d.pending = append(d.pending, ev)
		}
	}
	return nil
}
