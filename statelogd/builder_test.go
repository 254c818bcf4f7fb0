package statelogd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/mariadb/binlog"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func queryEvent(stmt string, ts uint32) *binlog.Event {
	return &binlog.Event{Query: &binlog.QueryEvent{Schema: "shop", Statement: stmt, Timestamp: ts}}
}

func xidEvent(xid uint64) *binlog.Event {
	return &binlog.Event{XID: &binlog.TransactionIDEvent{XID: xid}}
}

func TestFoldBuildsTransactionBetweenBeginAndXID(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 0)

	tx, err := b.Fold(queryEvent("BEGIN", 100))
	require.NoError(t, err)
	require.Nil(t, tx)

	tx, err = b.Fold(queryEvent("UPDATE orders SET status='shipped' WHERE id=1", 100))
	require.NoError(t, err)
	require.Nil(t, tx)

	tx, err = b.Fold(xidEvent(555))
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Equal(t, statelog.GID(0), tx.Header.GID)
	require.Equal(t, uint64(555), tx.Header.XID)
	require.Len(t, tx.Queries, 1)
	require.Equal(t, statelog.QueryUpdate, tx.Queries[0].Type)
	require.Contains(t, tx.Queries[0].ReadColumns, "orders.id")
}

func TestFoldAssignsIncreasingGIDsStartingFromStartGID(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 7)

	b.Fold(queryEvent("BEGIN", 1))
	b.Fold(queryEvent("UPDATE orders SET status='shipped' WHERE id=1", 1))
	tx1, _ := b.Fold(xidEvent(1))

	b.Fold(queryEvent("BEGIN", 2))
	b.Fold(queryEvent("UPDATE orders SET status='paid' WHERE id=2", 2))
	tx2, _ := b.Fold(xidEvent(2))

	require.Equal(t, statelog.GID(7), tx1.Header.GID)
	require.Equal(t, statelog.GID(8), tx2.Header.GID)
}

func TestFoldStandaloneAutocommitStatementClosesImmediately(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 0)

	tx, err := b.Fold(queryEvent("CREATE TABLE orders (id INT)", 100))
	require.NoError(t, err)
	require.NotNil(t, tx)
	require.Len(t, tx.Queries, 1)
	require.True(t, tx.Queries[0].IsDDL())
}

func TestFoldCapturesUserVarContextForNextStatement(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 0)

	b.Fold(queryEvent("BEGIN", 1))
	_, err := b.Fold(&binlog.Event{UserVar: &binlog.UserVarEvent{Name: "x", ValueType: binlog.UserVarString, RawBytes: []byte("ab")}})
	require.NoError(t, err)

	b.Fold(queryEvent("UPDATE orders SET status=@x WHERE id=1", 1))
	tx, _ := b.Fold(xidEvent(1))

	require.NotNil(t, tx.Queries[0].Context)
	require.Len(t, tx.Queries[0].Context.UserVars, 1)
	require.Equal(t, "x", tx.Queries[0].Context.UserVars[0].Name)
}

func TestFoldRollbackDiscardsTransaction(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 0)

	b.Fold(queryEvent("BEGIN", 1))
	b.Fold(queryEvent("UPDATE orders SET status='shipped' WHERE id=1", 1))
	tx, err := b.Fold(queryEvent("ROLLBACK", 1))
	require.NoError(t, err)
	require.Nil(t, tx)

	tx, err = b.Fold(xidEvent(1))
	require.NoError(t, err)
	require.Nil(t, tx, "XID_EVENT with no open transaction must be ignored")
}

func TestFoldUnparseableStatementFallsBackToDDLOnlyRecord(t *testing.T) {
	b := NewBuilder(nil, nil, nil, 0)

	b.Fold(queryEvent("BEGIN", 1))
	tx, err := b.Fold(queryEvent("THIS IS NOT SQL AT ALL ((()", 1))
	require.NoError(t, err)
	require.Nil(t, tx)

	tx, err = b.Fold(xidEvent(1))
	require.NoError(t, err)
	require.Len(t, tx.Queries, 1)
	require.True(t, tx.Queries[0].IsDDL())
}
