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

package graph

import "strings"

// TableDependencyGraph is a directed graph over lowercase table names:
// an edge from R to W means some recorded query read R and wrote W
// (spec.md §3, §4.5).
type TableDependencyGraph struct {
	index map[string]int
	names []string
	edges map[int]map[int]struct{}
}

// NewTableGraph builds an empty TableDependencyGraph.
func NewTableGraph() *TableDependencyGraph {
	return &TableDependencyGraph{index: map[string]int{}, edges: map[int]map[int]struct{}{}}
}

func tableOf(columnName string) string {
	table, _, ok := strings.Cut(columnName, ".")
	if !ok {
		return strings.ToLower(columnName)
	}
	return strings.ToLower(table)
}

func (g *TableDependencyGraph) vertex(table string) int {
	if idx, ok := g.index[table]; ok {
		return idx
	}
	idx := len(g.names)
	g.index[table] = idx
	g.names = append(g.names, table)
	g.edges[idx] = map[int]struct{}{}
	return idx
}

// addRelationship inserts (if absent) the two vertices for from/to and
// a directed edge between them, reporting whether the edge was newly
// added.
func (g *TableDependencyGraph) addRelationship(from, to string) bool {
	f, t := g.vertex(from), g.vertex(to)
	if _, ok := g.edges[f][t]; ok {
		return false
	}
	g.edges[f][t] = struct{}{}
	return true
}

// AddRelationship implements spec.md §3/§4.5's addRelationship(readSet,
// writeSet): extracts table names from each table.column entry, and for
// every (read-table, write-table) pair (the cartesian product) adds a
// directed edge. An empty write set is a no-op; an empty read set is
// replaced by the write set so write-only DML (INSERT ... VALUES,
// TRUNCATE, DROP) still produces self/peer edges among its targets.
func (g *TableDependencyGraph) AddRelationship(readColumns, writeColumns []string) bool {
	if len(writeColumns) == 0 {
		return false
	}
	readTables := tableSet(readColumns)
	writeTables := tableSet(writeColumns)
	if len(readTables) == 0 {
		readTables = writeTables
	}
	changed := false
	for _, r := range readTables {
		for _, w := range writeTables {
			if g.addRelationship(r, w) {
				changed = true
			}
		}
	}
	return changed
}

func tableSet(columns []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range columns {
		t := tableOf(c)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// IsRelated reports whether there is a direct edge from -> to.
func (g *TableDependencyGraph) IsRelated(from, to string) bool {
	f, fok := g.index[strings.ToLower(from)]
	t, tok := g.index[strings.ToLower(to)]
	if !fok || !tok {
		return false
	}
	_, ok := g.edges[f][t]
	return ok
}

// ReachableFrom computes transitive reachability via depth-first
// traversal, the caller-side responsibility spec.md §4.5 leaves to the
// caller rather than baking into IsRelated.
func (g *TableDependencyGraph) ReachableFrom(table string) []string {
	start, ok := g.index[strings.ToLower(table)]
	if !ok {
		return nil
	}
	visited := map[int]bool{start: true}
	stack := []int{start}
	var out []string
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.edges[cur] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, g.names[next])
			stack = append(stack, next)
		}
	}
	return out
}

// Tables lists every vertex name currently in the graph.
func (g *TableDependencyGraph) Tables() []string {
	return append([]string(nil), g.names...)
}
