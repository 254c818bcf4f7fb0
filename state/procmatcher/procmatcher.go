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

// Package procmatcher reconstructs the statements a stored procedure
// ran that the binlog itself never captured (SELECTs have no row
// image), per spec.md §4.7: given the procedure's recorded CALL and
// its known body, align the statements the binlog did capture against
// the body in order and synthesize the gaps.
package procmatcher

import (
	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// ProcCall is one recorded invocation: the caller-assigned call id
// (carried from the procedure hint; no matcher in this package reads
// it), the procedure name, and its bound argument values in
// declaration order.
type ProcCall struct {
	CallID   uint64
	ProcName string
	Args     []predicate.Scalar
}

// ProcMatcher is the collaborator interface spec.md §4.7 describes.
// core depends on it to reconstruct a procedure-call transaction; it
// never constructs statements on its own.
type ProcMatcher interface {
	// Bind loads call's procedure body and substitutes its bound
	// arguments for the procedure's declared parameters, so the body
	// statements MatchForward compares against are textually identical
	// to what the binlog captured. Reconstruct calls this once per
	// procedure-call transaction before any MatchForward/AsQuery call.
	Bind(call ProcCall) error

	// MatchForward aligns stmt to the next matching statement in the
	// procedure body at or after startIdx, returning its index or -1
	// if no match is found before the body ends.
	MatchForward(stmt string, startIdx int) int

	// AsQuery materializes the body statement at idx as one or more
	// synthetic Query records (substituting call's bound arguments for
	// the procedure's parameters), used to fill in statements the
	// binlog never captured.
	AsQuery(idx int, call ProcCall, keyColumns []string) ([]*statelog.Query, error)

	// VariableSet returns call's parameter bindings as StateItem
	// equality leaves, one per declared parameter, suitable for a
	// synthetic CALL query's VarMap.
	VariableSet(call ProcCall) []*predicate.StateItem
}
