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

package statelog

// GID is the global transaction ordinal spec.md §3 defines: a dense,
// gap-free, monotonically increasing sequence number assigned to every
// committed transaction in the state log, distinct from the
// server-assigned XID found in XID_EVENT.
type GID uint64

// Transaction header flags, spec.md §3.
const (
	TxFlagIsProcedureCall uint8 = 1 << 0
)

// TransactionHeader is the small, fixed-shape record StateLogReader
// can scan without materializing the (potentially large) Transaction
// body — used by nextHeader/skipTransaction-style fast iteration.
// NextPos is the exact file offset of the byte following the
// serialized body (spec.md §3 invariant 2), filled in by the writer
// at append time.
type TransactionHeader struct {
	GID           GID
	XID           uint64
	Timestamp     uint64
	IsSuccessful  bool
	Flags         uint8
	NextPos       uint64
	QueryCount    uint32
	BodyLength    uint32
}

// IsProcedureCall reports whether this transaction was synthesized
// from a recorded CALL rather than decoded straight off the binlog.
func (h TransactionHeader) IsProcedureCall() bool {
	return h.Flags&TxFlagIsProcedureCall != 0
}

// Transaction is one committed unit of work: every Query statement
// that ran between a BEGIN and its closing XID_EVENT, in execution
// order.
type Transaction struct {
	Header  TransactionHeader
	Queries []*Query
}

// NewTransaction builds an (initially empty) Transaction for gid/xid.
func NewTransaction(gid GID, xid uint64, timestamp uint64) *Transaction {
	return &Transaction{Header: TransactionHeader{GID: gid, XID: xid, Timestamp: timestamp, IsSuccessful: true}}
}

// Append adds q to the transaction and keeps Header.QueryCount in sync.
func (t *Transaction) Append(q *Query) {
	t.Queries = append(t.Queries, q)
	t.Header.QueryCount = uint32(len(t.Queries))
}
