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

package procmatcher

import (
	"encoding/json"
	"strings"

	"github.com/ogl-crest/ultraverse/state/predicate"
)

// HintPrefix marks the in-band handoff statement spec.md §4.7 defines:
// a stored procedure emits this INSERT as its first statement so the
// state-logger can recover the call id, procedure name, and bound
// arguments from the binlog even though MySQL/MariaDB never log a
// CALL statement's own text.
const HintPrefix = "INSERT INTO __ULTRAVERSE_PROCEDURE_HINT"

// ParseHint extracts a ProcCall from stmt if it is a procedure-call
// hint: a JSON tuple [call_id, proc_name, args...] embedded somewhere
// in the statement text (typically as the literal value of the
// INSERT's single VALUES column).
func ParseHint(stmt string) (ProcCall, bool) {
	if !strings.Contains(stmt, HintPrefix) {
		return ProcCall{}, false
	}
	start := strings.IndexByte(stmt, '[')
	end := strings.LastIndexByte(stmt, ']')
	if start < 0 || end < start {
		return ProcCall{}, false
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(stmt[start:end+1]), &raw); err != nil || len(raw) < 2 {
		return ProcCall{}, false
	}

	var callID uint64
	if err := json.Unmarshal(raw[0], &callID); err != nil {
		return ProcCall{}, false
	}
	var procName string
	if err := json.Unmarshal(raw[1], &procName); err != nil {
		return ProcCall{}, false
	}

	args := make([]predicate.Scalar, 0, len(raw)-2)
	for _, a := range raw[2:] {
		args = append(args, scalarFromJSON(a))
	}
	return ProcCall{CallID: callID, ProcName: procName, Args: args}, true
}

func scalarFromJSON(raw json.RawMessage) predicate.Scalar {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return predicate.StringScalar(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if i := int64(f); float64(i) == f {
			return predicate.IntScalar(i)
		}
		return predicate.DoubleScalar(f)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return predicate.BoolScalar(b)
	}
	return predicate.NullScalar()
}
