package statechange

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ogl-crest/ultraverse/mariadb/dbhandle"
	"github.com/ogl-crest/ultraverse/mocks"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func TestReplayTransactionAppliesStatementsAndCommits(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockDbHandle(ctrl)

	gomock.InOrder(
		db.EXPECT().SetAutocommit(gomock.Any(), false).Return(nil),
		db.EXPECT().Execute(gomock.Any(), "SET TIMESTAMP=123").Return(int64(0), nil),
		db.EXPECT().Execute(gomock.Any(), "UPDATE orders SET status='shipped' WHERE id=1").Return(int64(1), nil),
		db.EXPECT().Execute(gomock.Any(), "COMMIT").Return(int64(0), nil),
	)

	sc := New(nil, nil, 1)
	tx := statelog.NewTransaction(1, 10, 0)
	tx.Append(&statelog.Query{Timestamp: 123, Statement: "UPDATE orders SET status='shipped' WHERE id=1"})

	require.NoError(t, sc.replayTransaction(context.Background(), db, tx, false))
}

func TestReplayTransactionRollsBackOnQueryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockDbHandle(ctrl)

	gomock.InOrder(
		db.EXPECT().SetAutocommit(gomock.Any(), false).Return(nil),
		db.EXPECT().Execute(gomock.Any(), "BAD SQL").Return(int64(0), assertError("syntax error")),
		db.EXPECT().Execute(gomock.Any(), "ROLLBACK").Return(int64(0), nil),
	)

	sc := New(nil, nil, 1)
	tx := statelog.NewTransaction(1, 10, 0)
	tx.Append(&statelog.Query{Statement: "BAD SQL"})

	require.Error(t, sc.replayTransaction(context.Background(), db, tx, false))
}

func TestReplayTransactionSkipsRecoveredProcCallSiblings(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := mocks.NewMockDbHandle(ctrl)

	gomock.InOrder(
		db.EXPECT().SetAutocommit(gomock.Any(), false).Return(nil),
		db.EXPECT().Execute(gomock.Any(), "CALL sp_ship(1)").Return(int64(0), nil),
		db.EXPECT().Execute(gomock.Any(), "COMMIT").Return(int64(0), nil),
	)

	sc := New(nil, nil, 1)
	tx := statelog.NewTransaction(1, 10, 0)
	tx.Header.Flags = statelog.TxFlagIsProcedureCall
	tx.Append(&statelog.Query{Statement: "CALL sp_ship(1)", Flags: statelog.FlagIsProcCallQuery})
	tx.Append(&statelog.Query{Statement: "UPDATE orders SET status='shipped' WHERE id=1", Flags: statelog.FlagIsProcCallRecovered})

	require.NoError(t, sc.replayTransaction(context.Background(), db, tx, false))
}

func TestFullReplayOpensCreatesAndAppliesTransactions(t *testing.T) {
	dir := t.TempDir()
	name := "sample"
	writeSampleStateLog(t, dir, name)

	ctrl := gomock.NewController(t)
	db := mocks.NewMockDbHandle(ctrl)
	db.EXPECT().Execute(gomock.Any(), gomock.Any()).Return(int64(0), nil).AnyTimes()
	db.EXPECT().SetAutocommit(gomock.Any(), false).Return(nil).AnyTimes()
	db.EXPECT().Close().Return(nil).AnyTimes()

	dial := func(ctx context.Context, cfg dbhandle.Config, maxConns int) (DbHandle, error) {
		return db, nil
	}

	sc := New(nil, dial, 1)
	report, err := sc.FullReplay(context.Background(), &StateChangePlan{
		StateLogPath: dir,
		StateLogName: name,
		DBName:       "intermediate",
	})
	require.NoError(t, err)
	require.Equal(t, 1, report.Applied)
}

type assertError string

func (e assertError) Error() string { return string(e) }
