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
	"fmt"
)

// cursor reads MySQL's little-endian fixed-width and length-encoded
// integer encodings out of an in-memory event body, accumulating the
// first error seen so call sites can check it once at the end.
type cursor struct {
	b   []byte
	err error
}

func newCursor(b []byte) *cursor { return &cursor{b: b} }

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || n > len(c.b) {
		c.fail("binlog: short read: want %d have %d", n, len(c.b))
		return make([]byte, n)
	}
	out := c.b[:n]
	c.b = c.b[n:]
	return out
}

func (c *cursor) int1() uint8 {
	b := c.take(1)
	if len(b) < 1 {
		return 0
	}
	return b[0]
}

func (c *cursor) int2() uint16 {
	b := c.take(2)
	if len(b) < 2 {
		return 0
	}
	return uint16(b[0]) | uint16(b[1])<<8
}

func (c *cursor) int3() uint32 {
	b := c.take(3)
	if len(b) < 3 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func (c *cursor) int4() uint32 {
	b := c.take(4)
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (c *cursor) int6() uint64 {
	b := c.take(6)
	if len(b) < 6 {
		return 0
	}
	var v uint64
	for i := 5; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) int8() uint64 {
	b := c.take(8)
	if len(b) < 8 {
		return 0
	}
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) skip(n int) { c.take(n) }

func (c *cursor) bytes(n int) []byte {
	return append([]byte{}, c.take(n)...)
}

func (c *cursor) remaining() []byte {
	out := append([]byte{}, c.b...)
	c.b = nil
	return out
}

func (c *cursor) more() bool { return len(c.b) > 0 && c.err == nil }

func (c *cursor) fixedString(n int) string {
	return string(c.take(n))
}

// nulString reads a NUL-terminated string.
func (c *cursor) nulString() string {
	if c.err != nil {
		return ""
	}
	i := bytes.IndexByte(c.b, 0)
	if i < 0 {
		c.fail("binlog: unterminated string")
		return ""
	}
	s := string(c.b[:i])
	c.b = c.b[i+1:]
	return s
}

// lenenc reads MySQL's length-encoded-integer packed format.
func (c *cursor) lenenc() uint64 {
	if c.err != nil {
		return 0
	}
	first := c.int1()
	switch {
	case first < 0xfb:
		return uint64(first)
	case first == 0xfc:
		return uint64(c.int2())
	case first == 0xfd:
		return uint64(c.int3())
	case first == 0xfe:
		return c.int8()
	default:
		c.fail("binlog: invalid length-encoded integer prefix 0x%02x", first)
		return 0
	}
}

// lenencString reads a length-encoded string: a lenenc length prefix
// followed by that many bytes.
func (c *cursor) lenencString() string {
	n := c.lenenc()
	return string(c.take(int(n)))
}
