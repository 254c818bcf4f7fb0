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

package statechange

import (
	"fmt"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

// statementContextSQL renders the sequence of SET statements spec.md
// §4.8 prescribes to precede q's replay, in order, so the target
// server reproduces the original execution environment (timestamp,
// auto-increment, rand seed, user variables) byte-identically.
func statementContextSQL(q *statelog.Query) ([]string, error) {
	var stmts []string
	if q.Timestamp > 0 {
		stmts = append(stmts, fmt.Sprintf("SET TIMESTAMP=%d", q.Timestamp))
	}
	ctx := q.Context
	if ctx == nil {
		return stmts, nil
	}
	if ctx.HasLastInsertID {
		stmts = append(stmts, fmt.Sprintf("SET LAST_INSERT_ID=%d", ctx.LastInsertID))
	}
	if ctx.HasInsertID {
		stmts = append(stmts, fmt.Sprintf("SET INSERT_ID=%d", ctx.InsertID))
	}
	if ctx.HasRandSeed {
		stmts = append(stmts, fmt.Sprintf("SET @@RAND_SEED1=%d, @@RAND_SEED2=%d", ctx.RandSeed1, ctx.RandSeed2))
	}
	for _, uv := range ctx.UserVars {
		lit, err := userVarLiteral(uv)
		if err != nil {
			return nil, fmt.Errorf("statechange: format user var %q: %w", uv.Name, err)
		}
		stmts = append(stmts, fmt.Sprintf("SET @%s := %s", quoteIdent(uv.Name), lit))
	}
	return stmts, nil
}
