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

package hash

import (
	"fmt"
	"math/big"

	"google.golang.org/protobuf/encoding/protowire"
)

// field numbers for the tagged encoding (see SPEC_FULL.md §3.1).
const (
	fieldModulus     = 1 // repeated bytes
	fieldAccumulator = 2 // repeated bytes
)

// MarshalUltra encodes the StateHash as repeated (modulus, accumulator)
// big-endian byte strings, tagged with protowire so the format is
// self-describing and forward-compatible with an extra accumulator pair.
func (h *StateHash) MarshalUltra() []byte {
	var b []byte
	for i := range h.moduli {
		b = protowire.AppendTag(b, fieldModulus, protowire.BytesType)
		b = protowire.AppendBytes(b, h.moduli[i].Bytes())
	}
	for i := range h.acc {
		b = protowire.AppendTag(b, fieldAccumulator, protowire.BytesType)
		b = protowire.AppendBytes(b, h.acc[i].Bytes())
	}
	return b
}

// UnmarshalUltra decodes a StateHash encoded by MarshalUltra. The wire
// format must carry exactly NumAccumulators moduli and NumAccumulators
// accumulators, in that order, matching MarshalUltra's emission order.
func (h *StateHash) UnmarshalUltra(b []byte) error {
	var moduli, accs []*big.Int
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("statehash: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldModulus, fieldAccumulator:
			if typ != protowire.BytesType {
				return fmt.Errorf("statehash: field %d: expected bytes wire type", num)
			}
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("statehash: bad bytes: %w", protowire.ParseError(n))
			}
			b = b[n:]
			val := new(big.Int).SetBytes(v)
			if num == fieldModulus {
				moduli = append(moduli, val)
			} else {
				accs = append(accs, val)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("statehash: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if len(moduli) != NumAccumulators || len(accs) != NumAccumulators {
		return fmt.Errorf("statehash: expected %d moduli and accumulators, got %d/%d", NumAccumulators, len(moduli), len(accs))
	}
	for i := 0; i < NumAccumulators; i++ {
		h.moduli[i] = moduli[i]
		h.acc[i] = accs[i]
	}
	return nil
}
