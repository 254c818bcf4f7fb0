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

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "test")
	require.NoError(t, err)

	for gid := GID(1); gid <= 3; gid++ {
		tx := NewTransaction(gid, uint64(gid)*10, 1000+uint64(gid))
		tx.Append(&Query{Type: QueryInsert, Statement: "INSERT INTO t VALUES (1)"})
		require.NoError(t, w.Append(tx))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(dir, "test", nil)
	require.NoError(t, err)
	defer r.Close()

	var gids []GID
	for {
		tx, err := r.NextTransaction()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.NotNil(t, tx)
		gids = append(gids, tx.Header.GID)
		require.Len(t, tx.Queries, 1)
		require.Equal(t, "INSERT INTO t VALUES (1)", tx.Queries[0].Statement)
	}
	require.Equal(t, []GID{1, 2, 3}, gids)
}

func TestReaderSeekGID(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "test")
	require.NoError(t, err)
	for gid := GID(1); gid <= 5; gid++ {
		tx := NewTransaction(gid, uint64(gid), 0)
		tx.Append(&Query{Type: QuerySelect, Statement: "SELECT 1"})
		require.NoError(t, w.Append(tx))
	}
	require.NoError(t, w.Close())

	r, err := OpenReader(dir, "test", nil)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SeekGID(3))
	tx, err := r.NextTransaction()
	require.NoError(t, err)
	require.Equal(t, GID(3), tx.Header.GID)
}

func TestSecondWriterRejected(t *testing.T) {
	dir := t.TempDir()
	w, err := OpenWriter(dir, "test")
	require.NoError(t, err)
	defer w.Close()

	_, err = OpenWriter(dir, "test")
	require.Error(t, err)
}
