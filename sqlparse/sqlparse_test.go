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

package sqlparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func TestParseQuerySelect(t *testing.T) {
	r, err := ParseQuery("SELECT id, name FROM users WHERE id = 42")
	require.NoError(t, err)
	require.Equal(t, statelog.QuerySelect, r.Type)
	require.False(t, r.IsDDL)
	require.Equal(t, []string{"users"}, r.ReadTables)
	require.Len(t, r.ReadSet, 1)
	require.Equal(t, "users.id", r.ReadSet[0].Name)
	require.Equal(t, predicate.FnEq, r.ReadSet[0].FunctionType)
	require.Equal(t, predicate.IntScalar(42), r.ReadSet[0].DataList[0])
}

func TestParseQueryUpdate(t *testing.T) {
	r, err := ParseQuery("UPDATE accounts SET balance = balance - 1 WHERE id = 7")
	require.NoError(t, err)
	require.Equal(t, statelog.QueryUpdate, r.Type)
	require.Equal(t, []string{"accounts"}, r.WriteTables)
	require.Len(t, r.WriteSet, 1)
	require.Equal(t, "accounts.id", r.WriteSet[0].Name)
}

func TestParseQueryDelete(t *testing.T) {
	r, err := ParseQuery("DELETE FROM sessions WHERE expires_at <= 1000")
	require.NoError(t, err)
	require.Equal(t, statelog.QueryDelete, r.Type)
	require.Equal(t, predicate.FnLe, r.WriteSet[0].FunctionType)
}

func TestParseQueryInsertIsWholeTableWrite(t *testing.T) {
	r, err := ParseQuery("INSERT INTO ledger(account_id, delta) VALUES (7, -1)")
	require.NoError(t, err)
	require.Equal(t, statelog.QueryInsert, r.Type)
	require.Equal(t, []string{"ledger"}, r.WriteTables)
	require.Len(t, r.WriteSet, 1)
	require.Equal(t, predicate.FnWildcard, r.WriteSet[0].FunctionType)
}

func TestParseQueryDDL(t *testing.T) {
	r, err := ParseQuery("ALTER TABLE accounts ADD COLUMN nickname VARCHAR(32)")
	require.NoError(t, err)
	require.True(t, r.IsDDL)
	require.Equal(t, statelog.QueryAlter, r.Type)
	require.Equal(t, []string{"accounts"}, r.WriteTables)
}

func TestParseQueryRejectsGarbage(t *testing.T) {
	_, err := ParseQuery("THIS IS NOT @@ VALID SQL ((")
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
}

func TestParseQueryDDLFallbackOnUnparsableStatement(t *testing.T) {
	// a syntactically broken DDL statement (stray tokens after the
	// column list) still recovers a table-level write-set.
	r, err := ParseQuery("CREATE TABLE widgets (id INT) !@#$ GARBAGE TOKENS")
	require.NoError(t, err)
	require.True(t, r.IsDDL)
	require.Equal(t, statelog.QueryCreate, r.Type)
	require.Equal(t, []string{"widgets"}, r.WriteTables)
}
