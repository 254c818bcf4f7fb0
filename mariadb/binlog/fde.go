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

// decodeFDE parses a FORMAT_DESCRIPTION_EVENT body. eventSize is the
// event's own declared length (header.EventLen), needed to locate the
// checksum footer before the checksum algorithm itself is known — the
// event_type_header_lengths array self-describes FDE's own post-header
// length at index FormatDescriptionEvent-1, which lets the footer size
// be derived without first stripping it.
func decodeFDE(c *cursor, eventSize uint32) (*FDE, error) {
	f := &FDE{}
	f.BinlogVersion = c.int2()
	f.ServerVersion = c.fixedString(50)
	if i := indexZero(f.ServerVersion); i >= 0 {
		f.ServerVersion = f.ServerVersion[:i]
	}
	f.CreateTimestamp = c.int4()
	f.EventHeaderLength = c.int1()
	rest := c.remaining()

	f.ChecksumAlg = ChecksumOff
	f.EventTypeHeaderLengths = rest
	if len(rest) <= int(FormatDescriptionEvent-1) {
		return f, c.err
	}
	fmeSize := int(rest[FormatDescriptionEvent-1])
	footerLen := int(eventSize) - 19 - fmeSize - 1
	if footerLen < 0 {
		return f, c.err
	}
	algIdx := len(rest) - footerLen - 1
	if algIdx < 0 || algIdx >= len(rest) {
		return f, c.err
	}
	f.ChecksumAlg = ChecksumAlg(rest[algIdx])
	f.EventTypeHeaderLengths = rest[:algIdx]
	return f, c.err
}

func indexZero(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return i
		}
	}
	return -1
}
