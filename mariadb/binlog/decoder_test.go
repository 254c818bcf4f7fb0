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
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLogBuilder assembles a synthetic binlog byte stream for tests:
// magic number, an FDE, and whatever events are appended.
type fakeLogBuilder struct {
	buf      bytes.Buffer
	checksum bool
}

func newFakeLog(checksum bool) *fakeLogBuilder {
	b := &fakeLogBuilder{checksum: checksum}
	b.buf.Write(magicNumber)
	b.appendFDE()
	return b
}

func (b *fakeLogBuilder) appendHeader(typ EventType, bodyLen int) []byte {
	h := make([]byte, commonHeaderLen)
	binary.LittleEndian.PutUint32(h[0:4], 0)
	h[4] = byte(typ)
	binary.LittleEndian.PutUint32(h[5:9], 1)
	footer := 0
	if b.checksum {
		footer = 4
	}
	binary.LittleEndian.PutUint32(h[9:13], uint32(commonHeaderLen+bodyLen+footer))
	binary.LittleEndian.PutUint32(h[13:17], uint32(b.buf.Len()+commonHeaderLen+bodyLen+footer))
	return h
}

func (b *fakeLogBuilder) appendEvent(typ EventType, body []byte) {
	h := b.appendHeader(typ, len(body))
	b.buf.Write(h)
	b.buf.Write(body)
	if b.checksum {
		sum := crc32.ChecksumIEEE(append(append([]byte{}, h...), body...))
		var footer [4]byte
		binary.LittleEndian.PutUint32(footer[:], sum)
		b.buf.Write(footer[:])
	}
}

func (b *fakeLogBuilder) appendFDE() {
	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint16(4))
	sv := make([]byte, 50)
	copy(sv, "10.6.12-MariaDB")
	body.Write(sv)
	binary.Write(&body, binary.LittleEndian, uint32(0))
	body.WriteByte(19)

	// event_type_header_lengths: one entry per event type up to
	// TRANSACTION_PAYLOAD_EVENT (40), arbitrary but self-consistent
	// post-header lengths; index FormatDescriptionEvent-1 must equal
	// this FDE's own total extra length (2+50+4+1+len(array)).
	arrLen := int(TransactionPayloadType)
	arr := make([]byte, arrLen)
	for i := range arr {
		arr[i] = 8
	}
	selfLen := 2 + 50 + 4 + 1 + arrLen
	arr[FormatDescriptionEvent-1] = byte(selfLen)
	body.Write(arr)
	if b.checksum {
		body.WriteByte(byte(ChecksumCRC32))
	} else {
		body.WriteByte(byte(ChecksumOff))
	}

	b.appendEvent(FormatDescriptionEvent, body.Bytes())
}

func TestDecoderQueryEventRoundTrip(t *testing.T) {
	log := newFakeLog(false)

	var body bytes.Buffer
	binary.Write(&body, binary.LittleEndian, uint32(0))
	binary.Write(&body, binary.LittleEndian, uint32(0))
	body.WriteByte(byte(len("testdb")))
	body.Write([]byte{0, 0})
	binary.Write(&body, binary.LittleEndian, uint16(0))
	body.WriteString("testdb")
	body.WriteByte(0)
	body.WriteString("UPDATE users SET name='x' WHERE id=1")
	log.appendEvent(QueryEventType, body.Bytes())

	d := NewDecoder(nil)
	r := bytes.NewReader(log.buf.Bytes())
	ev, err := d.Next(r)
	require.NoError(t, err)
	require.NotNil(t, ev.Query)
	require.Equal(t, "testdb", ev.Query.Schema)
	require.Equal(t, "UPDATE users SET name='x' WHERE id=1", ev.Query.Statement)

	_, err = d.Next(r)
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoderChecksumValidated(t *testing.T) {
	log := newFakeLog(true)

	var body bytes.Buffer
	body.Write(make([]byte, 8))
	body.WriteByte(byte(len("db")))
	body.Write([]byte{0, 0})
	binary.Write(&body, binary.LittleEndian, uint16(0))
	body.WriteString("db")
	body.WriteByte(0)
	body.WriteString("SELECT 1")
	log.appendEvent(QueryEventType, body.Bytes())

	d := NewDecoder(nil)
	r := bytes.NewReader(log.buf.Bytes())
	ev, err := d.Next(r)
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", ev.Query.Statement)
}

func TestDecoderChecksumMismatchResyncsAtNextHeader(t *testing.T) {
	log := newFakeLog(true)
	var body bytes.Buffer
	body.Write(make([]byte, 8))
	body.WriteByte(0)
	body.Write([]byte{0, 0})
	binary.Write(&body, binary.LittleEndian, uint16(0))
	body.WriteByte(0)
	body.WriteString("SELECT 1")
	log.appendEvent(QueryEventType, body.Bytes())
	corruptedLen := log.buf.Len()

	var body2 bytes.Buffer
	body2.Write(make([]byte, 8))
	body2.WriteByte(0)
	body2.Write([]byte{0, 0})
	binary.Write(&body2, binary.LittleEndian, uint16(0))
	body2.WriteByte(0)
	body2.WriteString("SELECT 2")
	log.appendEvent(QueryEventType, body2.Bytes())

	corrupted := log.buf.Bytes()
	corrupted[corruptedLen-1] ^= 0xff // flip the first event's checksum footer

	d := NewDecoder(nil)
	ev, err := d.Next(bytes.NewReader(corrupted))
	require.NoError(t, err)
	require.Equal(t, "SELECT 2", ev.Query.Statement)
}

func TestDecoderTableMapAndRowsEvent(t *testing.T) {
	log := newFakeLog(false)

	var tm bytes.Buffer
	tm.Write([]byte{1, 0, 0, 0, 0, 0}) // table id = 1
	binary.Write(&tm, binary.LittleEndian, uint16(0))              // flags
	tm.WriteByte(byte(len("db")))
	tm.WriteString("db")
	tm.WriteByte(0)
	tm.WriteByte(byte(len("users")))
	tm.WriteString("users")
	tm.WriteByte(0)
	tm.WriteByte(2) // 2 columns
	tm.WriteByte(byte(typeLong))
	tm.WriteByte(byte(typeVarchar))
	tm.WriteByte(2) // meta length
	binary.Write(&tm, binary.LittleEndian, uint16(255))
	tm.WriteByte(0) // null bitmap, 1 byte for 2 cols, none nullable
	log.appendEvent(TableMapEventType, tm.Bytes())

	var rows bytes.Buffer
	rows.Write([]byte{1, 0, 0, 0, 0, 0}) // table id = 1
	binary.Write(&rows, binary.LittleEndian, uint16(0)) // flags
	binary.Write(&rows, binary.LittleEndian, uint16(2)) // v2 extra-info length (none)
	rows.WriteByte(2)                                   // numCols
	rows.WriteByte(0x03)                                 // before-image bitmap: both cols present
	rows.WriteString("rowpayload")
	log.appendEvent(WriteRowsEventV2, rows.Bytes())

	d := NewDecoder(nil)
	r := bytes.NewReader(log.buf.Bytes())

	ev1, err := d.Next(r)
	require.NoError(t, err)
	require.NotNil(t, ev1.TableMap)
	require.Equal(t, "users", ev1.TableMap.Table)
	require.Len(t, ev1.TableMap.Columns, 2)

	ev2, err := d.Next(r)
	require.NoError(t, err)
	require.NotNil(t, ev2.Row)
	require.Equal(t, RowInsert, ev2.Row.Type)
	require.Equal(t, uint64(1), ev2.Row.TableID)
	require.Equal(t, "rowpayload", string(ev2.Row.RowData))
	require.True(t, ev2.Row.BeforeColsBitmap.Contains(0))
	require.True(t, ev2.Row.BeforeColsBitmap.Contains(1))
}
