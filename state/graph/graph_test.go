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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestColumnDependencyGraphSharedColumnEdge(t *testing.T) {
	g := New()
	w := g.Add([]string{"orders.user_id"}, AccessWrite, nil)
	r := g.Add([]string{"orders.user_id", "orders.total"}, AccessRead, nil)
	require.True(t, g.IsRelated(w, r))
}

func TestColumnDependencyGraphNoEdgeWithoutSharedColumn(t *testing.T) {
	g := New()
	w := g.Add([]string{"orders.total"}, AccessWrite, nil)
	r := g.Add([]string{"users.name"}, AccessRead, nil)
	require.False(t, g.IsRelated(w, r))
}

func TestColumnDependencyGraphDedupByHash(t *testing.T) {
	g := New()
	a := g.Add([]string{"orders.id"}, AccessWrite, nil)
	b := g.Add([]string{"orders.id"}, AccessWrite, nil)
	require.Equal(t, a, b)
	require.Equal(t, 1, g.VertexCount())
}

func TestColumnDependencyGraphForeignKeyWildcard(t *testing.T) {
	fks := []ForeignKey{{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"}}
	g := New()
	w := g.Add([]string{"users.*"}, AccessWrite, fks)
	r := g.Add([]string{"orders.user_id"}, AccessRead, fks)
	require.True(t, g.IsRelated(w, r))
}

func TestColumnDependencyGraphEncodingRoundTrip(t *testing.T) {
	g := New()
	g.Add([]string{"orders.user_id"}, AccessWrite, nil)
	g.Add([]string{"orders.user_id", "orders.total"}, AccessRead, nil)

	var decoded ColumnDependencyGraph
	require.NoError(t, decoded.UnmarshalUltra(g.MarshalUltra()))
	require.Equal(t, g.VertexCount(), decoded.VertexCount())
	require.True(t, decoded.IsRelated(0, 1))
}

func TestTableDependencyGraphEmptyReadSetUsesWriteSet(t *testing.T) {
	withRead := NewTableGraph()
	withRead.AddRelationship([]string{"orders.id"}, []string{"orders.id"})

	emptyRead := NewTableGraph()
	changed := emptyRead.AddRelationship(nil, []string{"orders.id"})
	require.True(t, changed)
	require.True(t, emptyRead.IsRelated("orders", "orders"))
}

func TestTableDependencyGraphEmptyWriteSetNoOp(t *testing.T) {
	g := NewTableGraph()
	require.False(t, g.AddRelationship([]string{"orders.id"}, nil))
}

func TestTableDependencyGraphCartesianProduct(t *testing.T) {
	g := NewTableGraph()
	g.AddRelationship([]string{"a.x", "b.y"}, []string{"c.z", "d.w"})
	require.True(t, g.IsRelated("a", "c"))
	require.True(t, g.IsRelated("a", "d"))
	require.True(t, g.IsRelated("b", "c"))
	require.True(t, g.IsRelated("b", "d"))
}

func TestTableDependencyGraphReachability(t *testing.T) {
	g := NewTableGraph()
	g.AddRelationship([]string{"a.x"}, []string{"b.y"})
	g.AddRelationship([]string{"b.y"}, []string{"c.z"})
	reach := g.ReachableFrom("a")
	require.ElementsMatch(t, []string{"b", "c"}, reach)
}

func TestTableDependencyGraphEncodingRoundTrip(t *testing.T) {
	g := NewTableGraph()
	g.AddRelationship([]string{"a.x"}, []string{"b.y"})

	var decoded TableDependencyGraph
	require.NoError(t, decoded.UnmarshalUltra(g.MarshalUltra()))
	require.True(t, decoded.IsRelated("a", "b"))
}
