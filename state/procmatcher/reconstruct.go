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
	"fmt"
	"strings"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

// Reconstruct rebuilds a procedure-call transaction's query list per
// spec.md §8 scenario 6: each query tx already holds is aligned, in
// order, against the procedure body via matcher.MatchForward; any body
// statement skipped over before the next match (a SELECT the binlog
// never captured, for instance) is synthesized via matcher.AsQuery and
// flagged FlagIsProcCallRecovered, and a final synthetic
// "CALL proc(args...)" statement flagged FlagIsProcCallQuery is
// appended. tx's own IsProcedureCall flag is set throughout.
func Reconstruct(tx *statelog.Transaction, call ProcCall, matcher ProcMatcher, keyColumns []string) error {
	if err := matcher.Bind(call); err != nil {
		return fmt.Errorf("procmatcher: bind %q: %w", call.ProcName, err)
	}
	tx.Header.Flags |= statelog.TxFlagIsProcedureCall

	rebuilt := make([]*statelog.Query, 0, len(tx.Queries)+1)
	bodyIdx := 0
	for _, q := range tx.Queries {
		idx := matcher.MatchForward(q.Statement, bodyIdx)
		if idx < 0 {
			rebuilt = append(rebuilt, q)
			continue
		}
		for gap := bodyIdx; gap < idx; gap++ {
			recovered, err := matcher.AsQuery(gap, call, keyColumns)
			if err != nil {
				return fmt.Errorf("procmatcher: reconstruct statement %d of %q: %w", gap, call.ProcName, err)
			}
			for _, rq := range recovered {
				rq.Flags |= statelog.FlagIsProcCallRecovered
				rebuilt = append(rebuilt, rq)
			}
		}
		rebuilt = append(rebuilt, q)
		bodyIdx = idx + 1
	}

	rebuilt = append(rebuilt, &statelog.Query{
		Statement: callStatement(call),
		Flags:     statelog.FlagIsProcCallQuery,
		VarMap:    matcher.VariableSet(call),
	})

	tx.Queries = rebuilt
	tx.Header.QueryCount = uint32(len(rebuilt))
	return nil
}

func callStatement(call ProcCall) string {
	parts := make([]string, len(call.Args))
	for i, a := range call.Args {
		parts[i] = a.SQLLiteral()
	}
	return fmt.Sprintf("CALL %s(%s)", call.ProcName, strings.Join(parts, ","))
}
