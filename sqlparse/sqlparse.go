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

// Package sqlparse implements the `parse_query(stmt) -> (read_set,
// write_set, var_map, is_ddl)` oracle spec.md §1 treats as an external
// collaborator: a minimal but real DML/DDL parser. Statement-type
// classification and syntax validation go through
// github.com/dolthub/vitess's MySQL-dialect parser; read/write item
// extraction walks the statement's table and WHERE-clause text
// directly rather than vitess's AST, since the oracle only needs flat
// column/literal comparisons and that keeps it decoupled from AST
// shapes that have shifted across vitess releases.
package sqlparse

import (
	"strings"

	"github.com/dolthub/vitess/go/vt/sqlparser"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// Result is the parse_query oracle's output.
type Result struct {
	Type        statelog.QueryType
	IsDDL       bool
	ReadSet     []*predicate.StateItem
	WriteSet    []*predicate.StateItem
	VarMap      []*predicate.StateItem
	ReadTables  []string
	WriteTables []string
}

// ParseQuery classifies stmt and extracts its read/write predicate
// sets. A statement vitess's parser rejects falls back to a DDL-only
// extraction (spec.md §7's Parse error policy: "attempt DDL-only
// fallback to extract at least a write-set; continue") when it still
// looks like schema DDL by keyword, or returns an error otherwise.
func ParseQuery(stmt string) (*Result, error) {
	qtype := classify(stmt)

	if _, err := sqlparser.Parse(stmt); err != nil {
		if isDDLType(qtype) {
			return ddlFallback(stmt, qtype), nil
		}
		return nil, &ParseError{Statement: stmt, Cause: err}
	}

	tables := extractTables(stmt)
	predicates := extractPredicates(stmt)
	// a bare column in a single-table statement is qualified with that
	// table, so every item is named table.column.
	if len(tables) == 1 {
		for _, p := range predicates {
			if !strings.Contains(p.Name, ".") {
				p.Name = tables[0] + "." + p.Name
			}
		}
	}

	r := &Result{Type: qtype, IsDDL: isDDLType(qtype)}
	switch qtype {
	case statelog.QuerySelect:
		r.ReadSet = predicates
		r.ReadTables = tables
	case statelog.QueryInsert:
		r.WriteSet = tableWildcards(tables)
		r.WriteTables = tables
	case statelog.QueryUpdate, statelog.QueryDelete:
		r.ReadSet = predicates
		r.WriteSet = predicates
		r.ReadTables = tables
		r.WriteTables = tables
	case statelog.QueryCreate, statelog.QueryDrop, statelog.QueryAlter, statelog.QueryTruncate, statelog.QueryRename:
		r.WriteSet = tableWildcards(tables)
		r.WriteTables = tables
	}
	return r, nil
}

// ParseError reports a statement vitess's parser rejected and that did
// not qualify for the DDL-only fallback.
type ParseError struct {
	Statement string
	Cause     error
}

func (e *ParseError) Error() string {
	return "sqlparse: cannot parse statement: " + e.Cause.Error()
}

func (e *ParseError) Unwrap() error { return e.Cause }

func ddlFallback(stmt string, qtype statelog.QueryType) *Result {
	tables := extractTables(stmt)
	return &Result{
		Type:        qtype,
		IsDDL:       true,
		WriteSet:    tableWildcards(tables),
		WriteTables: tables,
	}
}

func isDDLType(t statelog.QueryType) bool {
	switch t {
	case statelog.QueryCreate, statelog.QueryDrop, statelog.QueryAlter, statelog.QueryTruncate, statelog.QueryRename:
		return true
	default:
		return false
	}
}

// classify names stmt's QueryType. DDL gets its CREATE/DROP/ALTER/
// TRUNCATE/RENAME subtype from its leading keyword (vitess's Preview
// only reports a single undifferentiated StmtDDL bucket for all of
// them); everything else defers to vitess's classification.
func classify(stmt string) statelog.QueryType {
	head := strippedTrimUpper(stmt)
	switch {
	case strings.HasPrefix(head, "CREATE"):
		return statelog.QueryCreate
	case strings.HasPrefix(head, "DROP"):
		return statelog.QueryDrop
	case strings.HasPrefix(head, "ALTER"):
		return statelog.QueryAlter
	case strings.HasPrefix(head, "TRUNCATE"):
		return statelog.QueryTruncate
	case strings.HasPrefix(head, "RENAME"):
		return statelog.QueryRename
	}
	switch sqlparser.Preview(stmt) {
	case sqlparser.StmtSelect:
		return statelog.QuerySelect
	case sqlparser.StmtInsert:
		return statelog.QueryInsert
	case sqlparser.StmtUpdate:
		return statelog.QueryUpdate
	case sqlparser.StmtDelete:
		return statelog.QueryDelete
	default:
		return statelog.QueryUnknown
	}
}

func strippedTrimUpper(stmt string) string {
	return strings.ToUpper(strings.TrimSpace(stmt))
}
