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

package dbhandle

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeHandle wraps a sqlmock-backed *sql.DB in a DbHandle, bypassing
// Open's real dialer (no live MySQL server is ever touched by these
// tests).
func fakeHandle(t *testing.T) (*DbHandle, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &DbHandle{db: db, log: zap.NewNop()}, mock
}

func TestOpenWiresOpenerAndPings(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	opened := false
	opener := func(driverName, dsn string) (*sql.DB, error) {
		opened = true
		require.Equal(t, "fake", driverName)
		return db, nil
	}

	h, err := open(context.Background(), "fake", Config{Host: "db", Port: 3306, User: "u", Database: "d"}, 4, nil, opener)
	require.NoError(t, err)
	require.True(t, opened)
	require.NoError(t, mock.ExpectationsWereMet())
	mock.ExpectClose()
	require.NoError(t, h.Close())
}

func TestOpenPropagatesPingFailure(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	_, err = open(context.Background(), "fake", Config{}, 1, nil, func(string, string) (*sql.DB, error) { return db, nil })
	require.Error(t, err)
}

func TestExecuteReturnsRowsAffected(t *testing.T) {
	h, mock := fakeHandle(t)
	mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := h.Execute(context.Background(), "UPDATE accounts SET balance = 0 WHERE id > 1")
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchRowsMaterializesResultSet(t *testing.T) {
	h, mock := fakeHandle(t)
	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "alice").
		AddRow(int64(2), "bob")
	mock.ExpectQuery("SELECT id, name FROM accounts").WillReturnRows(rows)

	got, err := h.FetchRows(context.Background(), "SELECT id, name FROM accounts")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(1), got[0]["id"])
	require.Equal(t, "alice", got[0]["name"])
	require.Equal(t, "bob", got[1]["name"])
}

func TestConsumeMultiResultDrainsEverySet(t *testing.T) {
	h, mock := fakeHandle(t)
	first := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
	second := sqlmock.NewRows([]string{"ok"}).AddRow(int64(1))
	mock.ExpectQuery("CALL debit_account").WillReturnRows(first, second).RowsWillBeClosed()

	sets, err := h.ConsumeMultiResult(context.Background(), "CALL debit_account(7)")
	require.NoError(t, err)
	require.Len(t, sets, 2)
	require.Equal(t, int64(1), sets[0][0]["id"])
}

func TestSetAutocommit(t *testing.T) {
	h, mock := fakeHandle(t)
	mock.ExpectExec("SET autocommit=0").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, h.SetAutocommit(context.Background(), false))

	mock.ExpectExec("SET autocommit=1").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, h.SetAutocommit(context.Background(), true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigDSN(t *testing.T) {
	c := Config{Host: "db.internal", Port: 3306, User: "ultra", Password: "s3cret", Database: "shop"}
	require.Equal(t, "ultra:s3cret@tcp(db.internal:3306)/shop?parseTime=true&multiStatements=true", c.DSN())
}
