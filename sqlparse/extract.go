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
	"regexp"
	"strconv"
	"strings"

	"github.com/ogl-crest/ultraverse/state/predicate"
)

var tableRefRe = regexp.MustCompile(`(?i)(?:FROM|INTO|UPDATE|JOIN|TABLE)\s+` + "`?" + `([A-Za-z_][A-Za-z0-9_]*)` + "`?")

// extractTables returns every table name referenced after a FROM,
// INTO, UPDATE, JOIN, or (ALTER/DROP/TRUNCATE) TABLE keyword, in
// first-seen order, deduplicated.
func extractTables(stmt string) []string {
	matches := tableRefRe.FindAllStringSubmatch(stmt, -1)
	seen := map[string]struct{}{}
	var out []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func tableWildcards(tables []string) []*predicate.StateItem {
	out := make([]*predicate.StateItem, 0, len(tables))
	for _, t := range tables {
		out = append(out, predicate.NewLeaf(t+".*", predicate.FnWildcard))
	}
	return out
}

var wherePredicateRe = regexp.MustCompile(
	`(?i)([A-Za-z_][A-Za-z0-9_]*\.)?([A-Za-z_][A-Za-z0-9_]*)\s*(=|<>|!=|<=|>=|<|>)\s*('(?:[^']|'')*'|-?\d+(?:\.\d+)?|NULL)`)

// extractPredicates scans stmt's WHERE clause (and, harmlessly, any
// earlier clause text matching the same shape, since this is a flat
// textual scan rather than an AST walk) for `[table.]column op
// literal` comparisons and builds one StateItem leaf per match. This
// is the "minimal" half of the oracle: it only recognizes flat
// equality/inequality comparisons against a literal, not nested
// boolean expressions, subqueries, or column-to-column comparisons —
// those fall out of the read/write set the same way the original
// would treat a statement it can't fully resolve, leaving var_map
// and row-image-derived sets to carry the rest.
func extractPredicates(stmt string) []*predicate.StateItem {
	where := whereClause(stmt)
	if where == "" {
		return nil
	}
	matches := wherePredicateRe.FindAllStringSubmatch(where, -1)
	out := make([]*predicate.StateItem, 0, len(matches))
	for _, m := range matches {
		col := strings.ToLower(strings.TrimSuffix(m[1], ".") + "." + m[2])
		if m[1] == "" {
			col = strings.ToLower(m[2])
		}
		fn := fnFor(m[3])
		out = append(out, predicate.NewLeaf(col, fn, scalarFor(m[4])))
	}
	return out
}

func whereClause(stmt string) string {
	upper := strings.ToUpper(stmt)
	idx := strings.Index(upper, "WHERE")
	if idx < 0 {
		return ""
	}
	rest := stmt[idx+len("WHERE"):]
	for _, stop := range []string{"ORDER BY", "GROUP BY", "LIMIT", "HAVING"} {
		if si := strings.Index(strings.ToUpper(rest), stop); si >= 0 {
			rest = rest[:si]
		}
	}
	return rest
}

func fnFor(op string) predicate.FunctionType {
	switch op {
	case "=":
		return predicate.FnEq
	case "<>", "!=":
		return predicate.FnNeq
	case "<":
		return predicate.FnLt
	case "<=":
		return predicate.FnLe
	case ">":
		return predicate.FnGt
	case ">=":
		return predicate.FnGe
	default:
		return predicate.FnEq
	}
}

func scalarFor(lit string) predicate.Scalar {
	if strings.EqualFold(lit, "NULL") {
		return predicate.NullScalar()
	}
	if strings.HasPrefix(lit, "'") {
		unquoted := strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
		return predicate.StringScalar(unquoted)
	}
	if strings.Contains(lit, ".") {
		if f, err := strconv.ParseFloat(lit, 64); err == nil {
			return predicate.DoubleScalar(f)
		}
	}
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return predicate.IntScalar(i)
	}
	return predicate.StringScalar(lit)
}
