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

// Package graph implements ColumnDependencyGraph and
// TableDependencyGraph (spec.md §3, §4.4, §4.5): the two arena-indexed
// dependency graphs StateChanger builds from a fully-written state log,
// per spec.md §9's "shared-ownership graphs -> index-based arenas"
// redesign note.
package graph

import (
	"sort"
	"strings"

	"github.com/spaolacci/murmur3"
)

// AccessType distinguishes a read-only column-set vertex from a
// write-touching one; a shared-column edge always starts at an existing
// WRITE vertex and ends at a newly added vertex of either type
// (spec.md §4.4).
type AccessType uint8

const (
	AccessRead AccessType = iota
	AccessWrite
)

// ForeignKey is a single (table.column) -> (table.column) reference,
// the shape ColumnDependencyGraph.Add and RowCluster's FK resolution
// both consume.
type ForeignKey struct {
	FromTable, FromColumn string
	ToTable, ToColumn     string
}

// columnVertex is one arena entry: the column set it covers, whether it
// was a read or write set, and the 64-bit hash Add uses for O(1)
// dedup lookup.
type columnVertex struct {
	columns []string
	access  AccessType
	hash    uint64
}

// ColumnDependencyGraph is an undirected graph whose vertices are
// (column_set, access_type, hash64) and whose edges connect a WRITE
// vertex to any later vertex sharing a column (after FK chase and
// table-wildcard expansion).
type ColumnDependencyGraph struct {
	vertices []columnVertex
	byHash   map[uint64]int
	adj      map[int]map[int]struct{}
}

// New builds an empty ColumnDependencyGraph.
func New() *ColumnDependencyGraph {
	return &ColumnDependencyGraph{
		byHash: make(map[uint64]int),
		adj:    make(map[int]map[int]struct{}),
	}
}

// hashColumns computes a stable 64-bit hash of a column set,
// independent of input order (spec.md §4.4 step 1).
func hashColumns(columns []string) uint64 {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	return murmur3.Sum64([]byte(strings.Join(sorted, "\x00")))
}

func normalizeColumn(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

// resolveEndpoint chases fks once to the referenced column, the "after
// resolving foreign keys to their referenced endpoint" step spec.md
// §4.4 describes; it does not recurse further (a single hop is what
// the column graph needs — full transitive FK chase belongs to
// state/cluster's ResolveForeignKey).
func resolveEndpoint(col string, fks []ForeignKey) string {
	col = normalizeColumn(col)
	table, column, ok := strings.Cut(col, ".")
	if !ok {
		return col
	}
	for _, fk := range fks {
		if normalizeColumn(fk.FromTable) == table && normalizeColumn(fk.FromColumn) == column {
			return normalizeColumn(fk.ToTable) + "." + normalizeColumn(fk.ToColumn)
		}
	}
	return col
}

// sharesColumn reports whether a and b name the same resolved column,
// or whether one is a table wildcard ("t.*") and an fk couples the two
// tables through the other's column (spec.md §4.4 step 2).
func sharesColumn(a, b string, fks []ForeignKey) bool {
	ra, rb := resolveEndpoint(a, fks), resolveEndpoint(b, fks)
	if ra == rb {
		return true
	}
	// the wildcard check uses the names as written: resolving the
	// non-wildcard side first would replace the column the fk couples
	// through with its referenced endpoint.
	aTable, aCol, _ := strings.Cut(normalizeColumn(a), ".")
	bTable, bCol, _ := strings.Cut(normalizeColumn(b), ".")
	if aCol == "*" {
		return fkCouples(aTable, bTable, bCol, fks)
	}
	if bCol == "*" {
		return fkCouples(bTable, aTable, aCol, fks)
	}
	return false
}

// fkCouples reports whether an fk edge links wildcardTable to
// otherTable through otherColumn, in either direction.
func fkCouples(wildcardTable, otherTable, otherColumn string, fks []ForeignKey) bool {
	for _, fk := range fks {
		from, fromCol := normalizeColumn(fk.FromTable), normalizeColumn(fk.FromColumn)
		to, toCol := normalizeColumn(fk.ToTable), normalizeColumn(fk.ToColumn)
		if from == wildcardTable && to == otherTable && toCol == otherColumn {
			return true
		}
		if to == wildcardTable && from == otherTable && fromCol == otherColumn {
			return true
		}
	}
	return false
}

// Add inserts a vertex for columns/access. If an equal-hash vertex
// already exists the graph is left unchanged and the existing vertex
// index is returned (spec.md §4.4 step 1: "return unchanged"). fks is
// consulted only for the new-vertex edge-wiring step.
func (g *ColumnDependencyGraph) Add(columns []string, access AccessType, fks []ForeignKey) int {
	h := hashColumns(columns)
	if idx, ok := g.byHash[h]; ok {
		return idx
	}
	idx := len(g.vertices)
	g.vertices = append(g.vertices, columnVertex{columns: append([]string(nil), columns...), access: access, hash: h})
	g.byHash[h] = idx
	g.adj[idx] = map[int]struct{}{}

	for other := 0; other < idx; other++ {
		if g.vertices[other].access != AccessWrite {
			continue
		}
		if columnSetsShare(g.vertices[other].columns, columns, fks) {
			g.addEdge(other, idx)
		}
	}
	return idx
}

func columnSetsShare(a, b []string, fks []ForeignKey) bool {
	for _, ac := range a {
		for _, bc := range b {
			if sharesColumn(ac, bc, fks) {
				return true
			}
		}
	}
	return false
}

func (g *ColumnDependencyGraph) addEdge(a, b int) {
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// IsRelated reports adjacency between two previously Add-ed vertex
// indices.
func (g *ColumnDependencyGraph) IsRelated(a, b int) bool {
	if a < 0 || a >= len(g.vertices) {
		return false
	}
	_, ok := g.adj[a][b]
	return ok
}

// VertexCount reports how many distinct column-set vertices the graph
// holds, mainly for tests and diagnostics.
func (g *ColumnDependencyGraph) VertexCount() int { return len(g.vertices) }
