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

// Package dbhandle implements the DbHandle capability spec.md §1 keeps
// external to the core: connect, execute, fetch-rows, consume-multi-
// result, set-autocommit. It is a thin `database/sql` wrapper wired to
// the pure-Go `github.com/go-sql-driver/mysql` wire driver by default.
package dbhandle

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DriverName is the database/sql driver DbHandle dials by default.
const DriverName = "mysql"

// driverOpener is swapped out in tests so DbHandle never needs a live
// server; sql.Open itself never dials (the driver lazily connects on
// first use), so this indirection exists purely to let tests supply a
// fake *sql.DB-compatible driver registered under a different name.
type driverOpener func(driverName, dataSourceName string) (*sql.DB, error)

// Config names the connection DbHandle dials (DSN assembly only — the
// credentials themselves come from config.Config, never hardcoded).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders c as a go-sql-driver/mysql data source name.
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// DbHandle wraps one pooled *sql.DB connection to a MySQL-family
// server, exposing exactly the capability surface the replay core
// needs (spec.md §1): connect, execute, fetch rows, consume a
// multi-result-set response, toggle autocommit.
type DbHandle struct {
	log *zap.Logger
	db  *sql.DB
}

// Open dials cfg via driverName ("mysql" in production, a fake name
// registered by tests otherwise), returning a DbHandle whose pool is
// sized to maxConns (spec.md §5's `thread_count = 2 x
// hardware_concurrency` default, chosen by the caller).
func Open(ctx context.Context, driverName string, cfg Config, maxConns int, log *zap.Logger) (*DbHandle, error) {
	return open(ctx, driverName, cfg, maxConns, log, sql.Open)
}

func open(ctx context.Context, driverName string, cfg Config, maxConns int, log *zap.Logger, opener driverOpener) (*DbHandle, error) {
	db, err := opener(driverName, cfg.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "dbhandle: open %s", driverName)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "dbhandle: ping")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DbHandle{log: log, db: db}, nil
}

// Close releases the underlying pool.
func (h *DbHandle) Close() error { return h.db.Close() }

// SetAutocommit toggles the session's autocommit mode, used by
// StateChanger to demarcate per-transaction replay boundaries
// explicitly rather than relying on implicit statement-level commits.
func (h *DbHandle) SetAutocommit(ctx context.Context, on bool) error {
	v := "0"
	if on {
		v = "1"
	}
	_, err := h.db.ExecContext(ctx, "SET autocommit="+v)
	if err != nil {
		return errors.Wrap(err, "dbhandle: set autocommit")
	}
	return nil
}

// Execute runs stmt (INSERT/UPDATE/DELETE/DDL/SET/CALL) and reports
// the number of affected rows, 0 for statements that don't report one.
func (h *DbHandle) Execute(ctx context.Context, stmt string) (int64, error) {
	res, err := h.db.ExecContext(ctx, stmt)
	if err != nil {
		return 0, errors.Wrapf(err, "dbhandle: execute %q", truncate(stmt))
	}
	n, err := res.RowsAffected()
	if err != nil {
		// not every driver/statement reports RowsAffected; that's not
		// itself a failure worth surfacing to the replay loop.
		return 0, nil
	}
	return n, nil
}

// Row is one fetched row, column name to its driver-native value
// (never type-asserted further here — interpreting a value is a
// caller concern, not DbHandle's).
type Row map[string]interface{}

// FetchRows runs a SELECT and materializes every row.
func (h *DbHandle) FetchRows(ctx context.Context, query string) ([]Row, error) {
	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "dbhandle: query %q", truncate(query))
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "dbhandle: columns")
	}
	var out []Row
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "dbhandle: scan")
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "dbhandle: rows")
	}
	return out, nil
}

// ConsumeMultiResult runs a statement that may produce several result
// sets (a CALL into a stored procedure, chiefly) and drains every one,
// returning each as its own []Row. go-sql-driver/mysql requires
// multiStatements/CLIENT_MULTI_RESULTS for this; Config.DSN() enables it.
func (h *DbHandle) ConsumeMultiResult(ctx context.Context, stmt string) ([][]Row, error) {
	rows, err := h.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, errors.Wrapf(err, "dbhandle: multi-result %q", truncate(stmt))
	}
	defer rows.Close()

	var results [][]Row
	for {
		set, err := scanRows(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, set)
		if !rows.NextResultSet() {
			break
		}
	}
	return results, nil
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
