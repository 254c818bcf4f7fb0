package statechange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

func TestStatementContextSQLEmpty(t *testing.T) {
	stmts, err := statementContextSQL(&statelog.Query{})
	require.NoError(t, err)
	require.Empty(t, stmts)
}

func TestStatementContextSQLTimestamp(t *testing.T) {
	stmts, err := statementContextSQL(&statelog.Query{Timestamp: 1700000000})
	require.NoError(t, err)
	require.Equal(t, []string{"SET TIMESTAMP=1700000000"}, stmts)
}

func TestStatementContextSQLFullContext(t *testing.T) {
	q := &statelog.Query{
		Timestamp: 42,
		Context: &statelog.StatementContext{
			HasLastInsertID: true,
			LastInsertID:    7,
			HasInsertID:     true,
			InsertID:        8,
			HasRandSeed:     true,
			RandSeed1:       1,
			RandSeed2:       2,
			UserVars: []statelog.UserVar{
				{Name: "x", Type: statelog.UserVarString, Value: "ab"},
			},
		},
	}
	stmts, err := statementContextSQL(q)
	require.NoError(t, err)
	require.Equal(t, []string{
		"SET TIMESTAMP=42",
		"SET LAST_INSERT_ID=7",
		"SET INSERT_ID=8",
		"SET @@RAND_SEED1=1, @@RAND_SEED2=2",
		"SET @`x` := _binary 0x6162",
	}, stmts)
}

func TestStatementContextSQLPropagatesUserVarError(t *testing.T) {
	q := &statelog.Query{
		Context: &statelog.StatementContext{
			UserVars: []statelog.UserVar{
				{Name: "bad", Type: statelog.UserVarReal, Value: "short"},
			},
		},
	}
	_, err := statementContextSQL(q)
	require.Error(t, err)
}
