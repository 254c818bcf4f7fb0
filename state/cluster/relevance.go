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
	"github.com/ogl-crest/ultraverse/state/graph"
	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// QueryRelevanceQuery is the minimal view of a statelog.Query
// IsQueryRelated needs: its flattened-by-the-caller read/write sets.
// Kept separate from *statelog.Query so this package doesn't need to
// import the query's full shape just to walk two slices.
type QueryRelevanceQuery struct {
	ReadSet, WriteSet []*predicate.StateItem
}

// FromQuery adapts a *statelog.Query into a QueryRelevanceQuery.
func FromQuery(q *statelog.Query) QueryRelevanceQuery {
	return QueryRelevanceQuery{ReadSet: q.ReadSet, WriteSet: q.WriteSet}
}

// IsQueryRelated implements spec.md §4.6: flatten every item of
// readSet ∪ writeSet through ArgList/SubQueryList, resolve each leaf's
// column through fks and aliases, and report true on the first leaf
// whose resolved name equals k and whose materialized range intersects
// keyRange.
func IsQueryRelated(k string, keyRange *predicate.StateRange, q QueryRelevanceQuery, fks []graph.ForeignKey, aliases *AliasMap, implicitTables map[string]struct{}) bool {
	for _, leaf := range flattenAll(q) {
		if leaf.Name == "" {
			continue
		}
		resolved, item := resolveLeafColumn(leaf, fks, aliases, implicitTables)
		if resolved != k {
			continue
		}
		if predicate.IsIntersects(item.MakeRange2(), keyRange) {
			return true
		}
	}
	return false
}

// IsQueryRelatedComposite reports whether q relates to every component
// of a composite key simultaneously (spec.md §4.6).
func IsQueryRelatedComposite(ks []string, keyRanges []*predicate.StateRange, q QueryRelevanceQuery, fks []graph.ForeignKey, aliases *AliasMap, implicitTables map[string]struct{}) bool {
	if len(ks) != len(keyRanges) {
		return false
	}
	for i, k := range ks {
		if !IsQueryRelated(k, keyRanges[i], q, fks, aliases, implicitTables) {
			return false
		}
	}
	return true
}

func flattenAll(q QueryRelevanceQuery) []*predicate.StateItem {
	var out []*predicate.StateItem
	for _, it := range q.ReadSet {
		out = append(out, it.Flatten()...)
	}
	for _, it := range q.WriteSet {
		out = append(out, it.Flatten()...)
	}
	return out
}

// resolveLeafColumn resolves a leaf's column name through fk chase and
// (when the leaf's recorded value was seen in the alias table) alias
// substitution, per spec.md §4.6's two-step resolution: fk chase first,
// then alias lookup on the fk-resolved name. It returns the resolved
// name alongside the StateItem whose range should be tested against
// it: the real item when an alias substitution fired (its value domain
// is what the key range is expressed in), the original leaf otherwise.
func resolveLeafColumn(leaf *predicate.StateItem, fks []graph.ForeignKey, aliases *AliasMap, implicitTables map[string]struct{}) (string, *predicate.StateItem) {
	resolved := ResolveForeignKey(leaf.Name, fks, implicitTables)
	if aliases == nil || len(leaf.DataList) == 0 {
		return resolved, leaf
	}
	if real, ok := aliases.Resolve(resolved, leaf.DataList[0]); ok {
		return ResolveForeignKey(real.Name, fks, implicitTables), real
	}
	return resolved, leaf
}
