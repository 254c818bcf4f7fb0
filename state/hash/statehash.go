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

// Package hash implements StateHash, an incremental commutative multiset
// hash over a table's rows (spec.md §3). Two independent modular
// accumulators are kept so that two sets collide only if they agree on
// both moduli, at the cost of two md5/modpow passes per row.
package hash

import (
	"crypto/md5"
	"crypto/rand"
	"math/big"
)

// NumAccumulators is k in spec.md §3 ("For each of k = 2 distinct random
// primes").
const NumAccumulators = 2

// PrimeBits is L in spec.md §3.
const PrimeBits = 128

// StateHash is a tuple (moduli, accumulators). Moduli are generated once
// for the lifetime of a state log (by NewStateHash) and reused by every
// subsequent StateHash value sharing that log, per spec.md §3's
// lifecycle note.
type StateHash struct {
	moduli [NumAccumulators]*big.Int
	acc    [NumAccumulators]*big.Int
}

// New generates NumAccumulators distinct random PrimeBits-bit primes and
// returns an empty (accumulator = 1) StateHash over them.
func New() (*StateHash, error) {
	var moduli [NumAccumulators]*big.Int
	for i := 0; i < NumAccumulators; i++ {
		for {
			p, err := rand.Prime(rand.Reader, PrimeBits)
			if err != nil {
				return nil, err
			}
			if !containsPrime(moduli[:i], p) {
				moduli[i] = p
				break
			}
		}
	}
	return FromModuli(moduli), nil
}

func containsPrime(have []*big.Int, p *big.Int) bool {
	for _, q := range have {
		if q.Cmp(p) == 0 {
			return true
		}
	}
	return false
}

// FromModuli reconstructs an empty StateHash (accumulator = 1) over an
// existing set of moduli, as done when a reader re-opens a state log
// whose moduli were written with the first transaction.
func FromModuli(moduli [NumAccumulators]*big.Int) *StateHash {
	h := &StateHash{moduli: moduli}
	for i := range h.acc {
		h.acc[i] = big.NewInt(1)
	}
	return h
}

// Moduli returns the (shared) modulus set, for persistence.
func (h *StateHash) Moduli() [NumAccumulators]*big.Int { return h.moduli }

// Clone returns an independent copy with the same moduli and
// accumulators. Unlike the original C++ `StateHash::copyHashList`
// (which returns an empty list, so the C++ copy constructor silently
// drops the accumulators — see DESIGN.md open-question log), Clone
// here actually copies the accumulator state: Go gives us no implicit
// "copy constructor" to get wrong, and every caller of Clone needs the
// copy to be a real copy (e.g. RowCluster snapshotting a table's hash
// before applying a tentative row event).
func (h *StateHash) Clone() *StateHash {
	c := &StateHash{}
	for i := range h.moduli {
		c.moduli[i] = new(big.Int).Set(h.moduli[i])
		c.acc[i] = new(big.Int).Set(h.acc[i])
	}
	return c
}

// prime implements spec.md §3's `prime(h, p)`: repeat h <- md5(h) until
// h mod p != 0, then return h mod p.
func prime(record []byte, p *big.Int) *big.Int {
	sum := md5.Sum(record)
	h := new(big.Int).SetBytes(sum[:])
	mod := new(big.Int)
	for {
		mod.Mod(h, p)
		if mod.Sign() != 0 {
			return mod
		}
		next := md5.Sum(h.Bytes())
		h = new(big.Int).SetBytes(next[:])
	}
}

// Insert folds record into the hash: for each accumulator i,
// acc[i] = acc[i] * prime(record, p[i]) mod p[i].
func (h *StateHash) Insert(record []byte) {
	for i := range h.acc {
		factor := prime(record, h.moduli[i])
		h.acc[i].Mul(h.acc[i], factor)
		h.acc[i].Mod(h.acc[i], h.moduli[i])
	}
}

// Delete folds out record: multiplies in the modular inverse of
// prime(record, p[i]) instead of the value itself. prime() never
// returns 0 mod p, so the inverse always exists for prime moduli.
func (h *StateHash) Delete(record []byte) {
	for i := range h.acc {
		factor := prime(record, h.moduli[i])
		inv := new(big.Int).ModInverse(factor, h.moduli[i])
		h.acc[i].Mul(h.acc[i], inv)
		h.acc[i].Mod(h.acc[i], h.moduli[i])
	}
}

// Equal reports pairwise equality of both moduli and accumulators.
func (h *StateHash) Equal(o *StateHash) bool {
	if h == nil || o == nil {
		return h == o
	}
	for i := range h.moduli {
		if h.moduli[i].Cmp(o.moduli[i]) != 0 {
			return false
		}
		if h.acc[i].Cmp(o.acc[i]) != 0 {
			return false
		}
	}
	return true
}

// IsEmpty reports whether every accumulator is at its identity value
// (1), i.e. no record has ever been inserted (net of deletes).
func (h *StateHash) IsEmpty() bool {
	for _, a := range h.acc {
		if a.Cmp(big.NewInt(1)) != 0 {
			return false
		}
	}
	return true
}
