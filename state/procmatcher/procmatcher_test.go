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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func writeProcFile(t *testing.T, dir, name string) {
	t.Helper()
	content := "--params: p_id\n" +
		"UPDATE accounts SET balance = balance - 1 WHERE id = p_id;\n" +
		"-- housekeeping\n" +
		"INSERT INTO ledger(account_id, delta) VALUES (p_id, -1);\n" +
		"SELECT balance FROM accounts WHERE id = p_id;\n" +
		"UPDATE accounts SET last_touched = NOW() WHERE id = p_id;\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".proc"), []byte(content), 0o644))
}

// TestProcedureReconstruction exercises spec.md §8 scenario 6: body
// statements 1, 2, 4 were captured in the binlog (as statement 3, a
// SELECT, leaves no row image) and the finalized transaction must
// contain statement 1, statement 2, a synthetic recovered statement 3,
// statement 4, and a synthetic CALL flagged appropriately.
func TestProcedureReconstruction(t *testing.T) {
	dir := t.TempDir()
	writeProcFile(t, dir, "debit_account")

	matcher := NewFileProcMatcher(dir)

	call := ProcCall{CallID: 1, ProcName: "debit_account", Args: []predicate.Scalar{predicate.IntScalar(7)}}

	tx := statelog.NewTransaction(1, 100, 1000)
	tx.Append(&statelog.Query{Statement: "UPDATE accounts SET balance = balance - 1 WHERE id = 7"})
	tx.Append(&statelog.Query{Statement: "INSERT INTO ledger(account_id, delta) VALUES (7, -1)"})
	tx.Append(&statelog.Query{Statement: "UPDATE accounts SET last_touched = NOW() WHERE id = 7"})

	require.NoError(t, Reconstruct(tx, call, matcher, nil))

	require.True(t, tx.Header.IsProcedureCall())
	require.Len(t, tx.Queries, 5)

	require.Equal(t, "UPDATE accounts SET balance = balance - 1 WHERE id = 7", tx.Queries[0].Statement)
	require.Zero(t, tx.Queries[0].Flags)

	require.Equal(t, "INSERT INTO ledger(account_id, delta) VALUES (7, -1)", tx.Queries[1].Statement)
	require.Zero(t, tx.Queries[1].Flags)

	require.Equal(t, statelog.QuerySelect, tx.Queries[2].Type)
	require.Equal(t, "SELECT balance FROM accounts WHERE id = 7", tx.Queries[2].Statement)
	require.NotZero(t, tx.Queries[2].Flags&statelog.FlagIsProcCallRecovered)

	require.Equal(t, "UPDATE accounts SET last_touched = NOW() WHERE id = 7", tx.Queries[3].Statement)
	require.Zero(t, tx.Queries[3].Flags)

	last := tx.Queries[4]
	require.Equal(t, "CALL debit_account(7)", last.Statement)
	require.NotZero(t, last.Flags&statelog.FlagIsProcCallQuery)
	require.Len(t, last.VarMap, 1)
	require.Equal(t, "p_id", last.VarMap[0].Name)
}

func TestParseHint(t *testing.T) {
	stmt := `INSERT INTO __ULTRAVERSE_PROCEDURE_HINT VALUES ('[42, "debit_account", 7, "bonus"]')`
	call, ok := ParseHint(stmt)
	require.True(t, ok)
	require.Equal(t, uint64(42), call.CallID)
	require.Equal(t, "debit_account", call.ProcName)
	require.Len(t, call.Args, 2)
	require.Equal(t, predicate.IntScalar(7), call.Args[0])
	require.Equal(t, predicate.StringScalar("bonus"), call.Args[1])
}

func TestParseHintRejectsUnrelatedStatement(t *testing.T) {
	_, ok := ParseHint("UPDATE accounts SET balance = 1 WHERE id = 1")
	require.False(t, ok)
}

func TestMatchForwardIsForwardOnly(t *testing.T) {
	dir := t.TempDir()
	writeProcFile(t, dir, "debit_account")
	matcher := NewFileProcMatcher(dir)
	call := ProcCall{CallID: 1, ProcName: "debit_account", Args: []predicate.Scalar{predicate.IntScalar(7)}}
	require.NoError(t, matcher.Bind(call))

	idx := matcher.MatchForward("INSERT INTO ledger(account_id, delta) VALUES (7, -1)", 0)
	require.Equal(t, 1, idx)

	// a statement already passed over cannot match again.
	idx = matcher.MatchForward("UPDATE accounts SET balance = balance - 1 WHERE id = 7", idx+1)
	require.Equal(t, -1, idx)
}
