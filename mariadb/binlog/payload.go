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
	"io"

	"github.com/klauspost/compress/zstd"
)

const (
	payloadFieldEndMarker    = 0
	payloadFieldSize         = 1
	payloadFieldCompression  = 2
	payloadFieldUncompressed = 3
	payloadFieldData         = 4
)

const compressionAlgZSTD = 1

type payloadFields struct {
	compressionAlg  uint8
	uncompressedLen uint64
	data            []byte
}

// decodeTransactionPayload reads TRANSACTION_PAYLOAD_EVENT's
// type-length-value field list (libbinlogevents'
// Transaction_payload_event wire format).
func decodeTransactionPayload(c *cursor) (*payloadFields, error) {
	pf := &payloadFields{}
	for c.more() {
		fieldType := c.lenenc()
		if fieldType == payloadFieldEndMarker {
			break
		}
		length := c.lenenc()
		if fieldType == payloadFieldData {
			pf.data = c.bytes(int(length))
			continue
		}
		body := c.bytes(int(length))
		bc := newCursor(body)
		switch fieldType {
		case payloadFieldCompression:
			pf.compressionAlg = bc.int1()
		case payloadFieldUncompressed:
			pf.uncompressedLen = bc.lenenc()
		case payloadFieldSize:
			// redundant with the event's own length; ignored.
		}
	}
	return pf, c.err
}

// decompress expands pf.data per its declared compression algorithm.
// Uncompressed (alg 0) payloads are returned as-is.
func (pf *payloadFields) decompress() ([]byte, error) {
	if pf.compressionAlg == 0 {
		return pf.data, nil
	}
	if pf.compressionAlg != compressionAlgZSTD {
		return nil, fmt.Errorf("binlog: unsupported transaction payload compression algorithm %d", pf.compressionAlg)
	}
	zr, err := zstd.NewReader(bytes.NewReader(pf.data))
	if err != nil {
		return nil, fmt.Errorf("binlog: zstd init: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("binlog: zstd decompress: %w", err)
	}
	return out, nil
}
