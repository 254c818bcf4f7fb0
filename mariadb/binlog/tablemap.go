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

import "github.com/RoaringBitmap/roaring/v2"

// bitmapFromBytes decodes a MySQL column bitmap (one bit per column,
// LSB-first within each byte) into a roaring.Bitmap of set column
// ordinals, the representation spec.md §4.1 asks RowEvent to carry.
func bitmapFromBytes(raw []byte, numCols int) *roaring.Bitmap {
	bm := roaring.New()
	for i := 0; i < numCols; i++ {
		if raw[i/8]&(1<<uint(i%8)) != 0 {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// decodeTableMap parses a TABLE_MAP_EVENT body. The optional
// name/charset/enum metadata block (only present when the server's
// binlog_row_metadata=FULL) is parsed when bytes remain after the
// column metadata and null bitmap.
func decodeTableMap(c *cursor, header EventHeader) (*TableMapEvent, error) {
	e := &TableMapEvent{Header: header}
	e.TableID = c.int6()
	c.skip(2) // flags, unused by downstream consumers
	c.skip(1) // schema name length, redundant with the NUL terminator
	e.DB = c.nulString()
	c.skip(1) // table name length
	e.Table = c.nulString()

	numCols := int(c.lenenc())
	rawTypes := make([]rawColumnType, numCols)
	for i := range rawTypes {
		rawTypes[i] = rawColumnType(c.int1())
	}

	metaLen := int(c.lenenc())
	metaBlock := c.bytes(metaLen)
	mc := newCursor(metaBlock)

	e.Columns = make([]Column, numCols)
	for i, rt := range rawTypes {
		e.Columns[i].RawType = uint8(rt)
		e.Columns[i].Logical = rt.logical()
		switch metaWidth(rt) {
		case 1:
			e.Columns[i].LengthHint = uint16(mc.int1())
		case 2:
			if rt == typeString {
				hi, lo := mc.int1(), mc.int1()
				e.Columns[i].LengthHint = uint16(hi)<<8 | uint16(lo)
			} else {
				e.Columns[i].LengthHint = mc.int2()
			}
		}
	}

	nullBitmap := c.bytes((numCols + 7) / 8)
	for i := range e.Columns {
		if nullBitmap[i/8]&(1<<uint(i%8)) != 0 {
			e.Columns[i].Nullable = true
		}
	}

	for c.more() {
		fieldType := c.int1()
		size := int(c.lenenc())
		if c.err != nil {
			break
		}
		body := c.bytes(size)
		fc := newCursor(body)
		switch fieldType {
		case 1: // signedness
			for i := range e.Columns {
				if !rawColumnType(e.Columns[i].RawType).isNumeric() {
					continue
				}
				byteIdx, bitIdx := i/8, 7-i%8
				if byteIdx < len(body) && body[byteIdx]&(1<<uint(bitIdx)) != 0 {
					e.Columns[i].Unsigned = true
				}
			}
		case 4: // column names
			e.HasNames = true
			for i := range e.Columns {
				e.Columns[i].Name = fc.lenencString()
			}
		default:
			// default/explicit charset, enum/set literals, geometry
			// subtype, key metadata, visibility: none of these affect
			// the coarse logical typing downstream consumers need.
		}
	}
	if !e.HasNames {
		for i := range e.Columns {
			e.Columns[i].Name = ""
		}
	}
	return e, c.err
}
