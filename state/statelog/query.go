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

// Package statelog implements the on-disk state log: a sequential
// stream of Transaction records (each a header plus one or more
// Query entries) with a GID-indexed offset table for random seek.
package statelog

import (
	"github.com/ogl-crest/ultraverse/state/hash"
	"github.com/ogl-crest/ultraverse/state/predicate"
)

// QueryType classifies a single statement within a Transaction.
type QueryType int32

const (
	QueryUnknown QueryType = iota
	QueryCreate
	QueryDrop
	QueryAlter
	QueryTruncate
	QueryRename
	QuerySelect
	QueryInsert
	QueryUpdate
	QueryDelete
)

// Query flags, bit-compatible in meaning with the original source's
// Query::FLAG_* constants (the bit values themselves are this
// package's own choice, not required to match byte-for-byte since the
// wire format here isn't shared with any other implementation).
const (
	FlagIsIgnorable            uint8 = 1 << 0
	FlagIsDDL                  uint8 = 1 << 1
	FlagIsProcCallRecovered    uint8 = 1 << 3
	FlagIsProcCallQuery        uint8 = 1 << 4
	FlagIsContinuous           uint8 = 1 << 7
)

// UserVarValueType mirrors binlog.UserVarValueType; kept distinct so
// statelog doesn't import the binlog package just for an enum.
type UserVarValueType uint8

const (
	UserVarString UserVarValueType = iota
	UserVarReal
	UserVarInt
	UserVarDecimal
)

// UserVar is a captured `@var` value needed to replay a statement that
// referenced a session user variable.
type UserVar struct {
	Name       string
	Type       UserVarValueType
	IsNull     bool
	IsUnsigned bool
	Charset    uint32
	Value      string
}

// StatementContext carries the INTVAR/RAND/USER_VAR state a statement
// depended on (spec.md §4.1's IntVarEvent/RandEvent/UserVarEvent),
// needed to make replay deterministic.
type StatementContext struct {
	HasLastInsertID bool
	LastInsertID    uint64
	HasInsertID     bool
	InsertID        uint64
	HasRandSeed     bool
	RandSeed1       uint64
	RandSeed2       uint64
	UserVars        []UserVar
}

// Empty reports whether the context carries no captured state at all.
func (c *StatementContext) Empty() bool {
	return c == nil || (!c.HasLastInsertID && !c.HasInsertID && !c.HasRandSeed && len(c.UserVars) == 0)
}

// Query is one statement within a Transaction: its read/write
// predicate sets, the column sets those predicates touch, the
// before/after StateHash per affected table, and enough statement
// context to replay it byte-identically.
type Query struct {
	Type      QueryType
	Timestamp uint64
	Database  string
	Statement string
	Flags     uint8

	BeforeHash map[string]*hash.StateHash
	AfterHash  map[string]*hash.StateHash

	ReadSet  []*predicate.StateItem
	WriteSet []*predicate.StateItem
	VarMap   []*predicate.StateItem

	ReadColumns  []string
	WriteColumns []string

	AffectedRows uint32

	Context *StatementContext
}

// IsDDL reports whether this query is a schema-changing statement.
func (q *Query) IsDDL() bool { return q.Flags&FlagIsDDL != 0 }

// IsIgnorable reports whether replay may skip this query outright
// (e.g. a SELECT captured only for context, never mutating state).
func (q *Query) IsIgnorable() bool { return q.Flags&FlagIsIgnorable != 0 }
