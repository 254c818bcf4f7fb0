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
	"strconv"
	"sync"

	"github.com/ogl-crest/ultraverse/state/predicate"
)

// aliasEntry records that observing value on column's alias spelling
// should be interpreted as realItem (spec.md §4.6).
type aliasEntry struct {
	value    predicate.Scalar
	realItem *predicate.StateItem
}

// AliasMap implements spec.md §4.6's column/alias resolution: a
// column -> recorded (value, real_item) list with two lookup modes,
// direct and coercion.
type AliasMap struct {
	mu      sync.Mutex
	entries map[string][]aliasEntry
}

// NewAliasMap builds an empty AliasMap.
func NewAliasMap() *AliasMap {
	return &AliasMap{entries: map[string][]aliasEntry{}}
}

// AddAlias records that column's observed value alias.DataList[0]
// should resolve to real.
func (m *AliasMap) AddAlias(column string, alias, real *predicate.StateItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(alias.DataList) == 0 {
		return
	}
	m.entries[column] = append(m.entries[column], aliasEntry{value: alias.DataList[0], realItem: real})
}

// Resolve looks up column's recorded alias for value, trying a direct
// lookup first. On a miss, if value is a decimal-digit string and the
// column has at least one registered entry whose real item carries an
// integer value, value is parsed as base-10 and a fresh StateItem is
// built directly on the real column: the registered entry only tells
// Resolve the real column's name and that it's integer-typed, it is
// not itself the thing being matched against (spec.md §4.6 scenario 4:
// a value that was never registered, e.g. a different row's id, still
// coerces against an alias registered for a sibling row).
func (m *AliasMap) Resolve(column string, value predicate.Scalar) (*predicate.StateItem, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byValue, ok := m.entries[column]
	if !ok || len(byValue) == 0 {
		return nil, false
	}
	for _, e := range byValue {
		if predicate.Equal(e.value, value) {
			return e.realItem, true
		}
	}

	if value.Kind != predicate.KindString {
		return nil, false
	}
	sample := byValue[0].realItem
	if len(sample.DataList) == 0 {
		return nil, false
	}
	switch sample.DataList[0].Kind {
	case predicate.KindInt64:
		n, err := strconv.ParseInt(value.S, 10, 64)
		if err != nil {
			return nil, false
		}
		return coercedRealItem(sample, predicate.IntScalar(n)), true
	case predicate.KindUint64:
		n, err := strconv.ParseUint(value.S, 10, 64)
		if err != nil {
			return nil, false
		}
		return coercedRealItem(sample, predicate.UintScalar(n)), true
	default:
		return nil, false
	}
}

// coercedRealItem builds a new StateItem on sample's column carrying
// data in place of sample's own DataList, keeping sample's comparison
// shape (ConditionType/FunctionType) intact.
func coercedRealItem(sample *predicate.StateItem, data predicate.Scalar) *predicate.StateItem {
	return &predicate.StateItem{
		ConditionType: sample.ConditionType,
		FunctionType:  sample.FunctionType,
		Name:          sample.Name,
		DataList:      []predicate.Scalar{data},
	}
}
