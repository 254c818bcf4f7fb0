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

func decodeQuery(c *cursor, header EventHeader) (*QueryEvent, error) {
	e := &QueryEvent{Header: header, Timestamp: header.Timestamp}
	c.skip(4) // slave proxy id, unused
	c.skip(4) // execution time, unused
	schemaLen := c.int1()
	c.skip(2) // error code, unused
	statusVarsLen := c.int2()
	c.skip(int(statusVarsLen))
	e.Schema = c.fixedString(int(schemaLen))
	c.skip(1) // NUL terminator after schema
	e.Statement = string(c.remaining())
	return e, c.err
}

func decodeXID(c *cursor, header EventHeader) (*TransactionIDEvent, error) {
	e := &TransactionIDEvent{Header: header, Timestamp: header.Timestamp}
	e.XID = c.int8()
	return e, c.err
}

func decodeIntVar(c *cursor, header EventHeader) (*IntVarEvent, error) {
	e := &IntVarEvent{Header: header}
	e.Type = IntVarType(c.int1())
	e.Value = c.int8()
	return e, c.err
}

func decodeRand(c *cursor, header EventHeader) (*RandEvent, error) {
	e := &RandEvent{Header: header}
	e.Seed1 = c.int8()
	e.Seed2 = c.int8()
	return e, c.err
}

func decodeUserVar(c *cursor, header EventHeader) (*UserVarEvent, error) {
	e := &UserVarEvent{Header: header}
	nameLen := c.int4()
	e.Name = c.fixedString(int(nameLen))
	e.IsNull = c.int1() == 1
	if !e.IsNull {
		e.ValueType = UserVarValueType(c.int1())
		e.Charset = c.int4()
		valLen := c.int4()
		e.RawBytes = c.bytes(int(valLen))
		if c.more() {
			e.IsUnsigned = c.int1() != 0
		}
	}
	return e, c.err
}

func decodeRowsQuery(c *cursor, header EventHeader) (*RowsQueryEvent, error) {
	e := &RowsQueryEvent{Header: header}
	c.skip(1) // length byte, redundant with reading to EOF
	e.Statement = string(c.remaining())
	return e, c.err
}
