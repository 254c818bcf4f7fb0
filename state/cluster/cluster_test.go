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

package cluster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/graph"
	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func pt(v int64) *predicate.StateRange { return predicate.NewPointRange(predicate.IntScalar(v)) }
func pr(lo, hi int64) *predicate.StateRange {
	return predicate.NewPairRange(predicate.IntScalar(lo), predicate.IntScalar(hi))
}

// Scenario 1: sequential merge.
func TestSequentialMerge(t *testing.T) {
	c := New()
	c.AddKeyRange("users.id", pt(1), 1)
	c.AddKeyRange("users.id", pr(1, 2), 2)
	c.AddKeyRange("users.id", pt(2), 3)
	require.NoError(t, c.MergeCluster("users.id"))

	entries := c.Entries("users.id")
	require.Len(t, entries, 1)
	var gids []statelog.GID
	gids = append(gids, entries[0].GIDs...)
	require.ElementsMatch(t, []statelog.GID{1, 2, 3}, gids)
	require.Equal(t, "users.id BETWEEN 1 AND 2", entries[0].Range.MakeWhereQuery("users.id"))
}

// Scenario 2: disjoint retention.
func TestDisjointRetention(t *testing.T) {
	c := New()
	c.AddKeyRange("users.id", pt(1), 1)
	c.AddKeyRange("users.id", pt(10), 2)
	c.AddKeyRange("users.id", pt(20), 3)
	require.NoError(t, c.MergeCluster("users.id"))
	require.Len(t, c.Entries("users.id"), 3)
}

// Scenario 3: wildcard fusion.
func TestWildcardFusion(t *testing.T) {
	c := New()
	c.SetWildcard("users.id", true)
	c.AddKeyRange("users.id", pt(1), 1)
	c.AddKeyRange("users.id", pt(10), 2)
	c.AddKeyRange("users.id", pt(20), 3)
	require.NoError(t, c.MergeCluster("users.id"))

	entries := c.Entries("users.id")
	require.Len(t, entries, 1)
	where := entries[0].Range.MakeWhereQuery("users.id")
	require.True(t, strings.Contains(where, "users.id=1"))
	require.True(t, strings.Contains(where, "users.id=10"))
}

// Scenario 4: alias coercion. The registered example pairs
// ("users.uid_str","000042") with ("users.id",42); a query against a
// different value ("000043") must still coerce to the real column
// instead of only matching the exact registered literal.
func TestAliasCoercion(t *testing.T) {
	c := New()
	alias := predicate.NewLeaf("users.uid_str", predicate.FnEq, predicate.StringScalar("000042"))
	real := predicate.NewLeaf("users.id", predicate.FnEq, predicate.IntScalar(42))
	c.aliases.AddAlias("users.uid_str", alias, real)

	query := QueryRelevanceQuery{
		ReadSet: []*predicate.StateItem{
			predicate.NewLeaf("users.uid_str", predicate.FnEq, predicate.StringScalar("000043")),
		},
	}
	related := IsQueryRelated("users.id", pt(43), query, nil, c.aliases, nil)
	require.True(t, related)
}

// Scenario 5: implicit FK.
func TestImplicitForeignKey(t *testing.T) {
	implicit := map[string]struct{}{"users": {}}
	query := QueryRelevanceQuery{
		WriteSet: []*predicate.StateItem{
			predicate.NewLeaf("orders.user_id", predicate.FnEq, predicate.IntScalar(7)),
		},
	}
	related := IsQueryRelated("users.id", pt(7), query, nil, NewAliasMap(), implicit)
	require.True(t, related)
}

func TestResolveForeignKeyChase(t *testing.T) {
	fks := []graph.ForeignKey{{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"}}
	resolved := ResolveForeignKey("orders.user_id", fks, nil)
	require.Equal(t, "users.id", resolved)
}

func TestCompositeKeyMerge(t *testing.T) {
	c := New()
	id := c.AddCompositeKey([]string{"a", "b"})
	require.Equal(t, "a|b", id)

	c.AddCompositeKeyRange([]string{"a", "b"}, []*predicate.StateRange{pt(1), pt(1)}, 1)
	c.AddCompositeKeyRange([]string{"b", "a"}, []*predicate.StateRange{pt(1), pt(1)}, 2)
	c.MergeComposite(id)

	entries := c.CompositeEntries(id)
	require.Len(t, entries, 1)
	require.ElementsMatch(t, []statelog.GID{1, 2}, entries[0].GIDs)
}

func TestIsTransactionRelated(t *testing.T) {
	require.True(t, IsTransactionRelated(2, []statelog.GID{1, 2, 3}))
	require.False(t, IsTransactionRelated(9, []statelog.GID{1, 2, 3}))
}

func TestRowClusterEncodingRoundTrip(t *testing.T) {
	c := New()
	c.AddKeyRange("users.id", pt(1), 1)
	c.AddKeyRange("users.id", pt(2), 2)
	require.NoError(t, c.MergeCluster("users.id"))

	var decoded RowCluster
	require.NoError(t, decoded.UnmarshalUltra(c.MarshalUltra()))
	require.Len(t, decoded.Entries("users.id"), 2)
}
