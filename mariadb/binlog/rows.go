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

import "fmt"

func rowEventKind(typ EventType) RowEventType {
	switch {
	case typ.IsWriteRows():
		return RowInsert
	case typ.IsUpdateRows(), typ == PartialUpdateRowsType:
		return RowUpdate
	default:
		return RowDelete
	}
}

// decodeRows parses a {WRITE,UPDATE,DELETE}_ROWS_EVENT body. The
// table id is returned as read and is not looked up against any
// TABLE_MAP_EVENT; decodeRows is table-definition agnostic, matching
// spec.md §4.1's requirement that RowEvent stand on its own (width,
// bitmaps, raw row image) without re-deriving the schema.
// postHeaderLen is the FDE's declared post-header length for this
// event type: 6 on servers old enough to encode the table id in 4
// bytes (tableID+flags == 6-byte post-header), 8 on every modern
// server (6-byte table id + 2-byte flags).
func decodeRows(c *cursor, header EventHeader, typ EventType, postHeaderLen int) (*RowEvent, error) {
	e := &RowEvent{Header: header, Type: rowEventKind(typ)}

	if postHeaderLen == 6 {
		e.TableID = uint64(c.int4())
	} else {
		e.TableID = c.int6()
	}
	e.Flags = c.int2()

	if typ.IsV2RowsEvent() {
		extraLen := c.int2()
		if extraLen < 2 {
			return nil, fmt.Errorf("binlog: rows event extra-info length %d < 2", extraLen)
		}
		c.skip(int(extraLen) - 2)
	}

	numCols := int(c.lenenc())
	e.Width = numCols
	if c.err != nil {
		return nil, c.err
	}

	beforeRaw := c.bytes((numCols + 7) / 8)
	e.BeforeColsBitmap = bitmapFromBytes(beforeRaw, numCols)

	kind := rowEventKind(typ)
	if kind == RowUpdate {
		afterRaw := c.bytes((numCols + 7) / 8)
		e.AfterColsBitmap = bitmapFromBytes(afterRaw, numCols)
	}

	e.RowData = c.remaining()
	return e, c.err
}
