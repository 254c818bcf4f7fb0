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

package predicate

// ConditionType joins sibling StateItems together (spec.md §3).
type ConditionType uint8

const (
	CondNone ConditionType = iota
	CondAnd
	CondOr
)

// FunctionType names the comparison (or boolean combinator) a leaf
// StateItem performs.
type FunctionType uint8

const (
	FnNone FunctionType = iota
	FnEq
	FnNeq
	FnLt
	FnLe
	FnGt
	FnGe
	FnBetween
	FnInInternal
	FnLike
	FnWildcard
)

// StateItem is a predicate tree node: a leaf compares Name against
// DataList via FunctionType; AND/OR nodes combine ArgList children.
// SubQueryList holds nested subquery predicates (uncorrelated IN
// (SELECT ...) shapes the parser could not flatten further).
type StateItem struct {
	ConditionType ConditionType
	FunctionType  FunctionType
	Name          string // "table.column"
	DataList      []Scalar
	ArgList       []*StateItem
	SubQueryList  []*StateItem

	rangeCache *StateRange
}

// NewLeaf builds a comparison leaf.
func NewLeaf(name string, fn FunctionType, data ...Scalar) *StateItem {
	return &StateItem{FunctionType: fn, Name: name, DataList: data}
}

// NewCombinator builds an AND/OR node over children.
func NewCombinator(cond ConditionType, children ...*StateItem) *StateItem {
	return &StateItem{ConditionType: cond, ArgList: children}
}

// MakeRange2 materializes (and caches) the StateRange implied by this
// leaf's FunctionType + DataList. The name echoes the original source's
// `MakeRange2` (a second-generation replacement for an earlier
// `MakeRange` that didn't cache); kept rather than renamed since this is
// a widely-referenced accessor and the original name carries no
// confusing baggage here.
func (s *StateItem) MakeRange2() *StateRange {
	if s.rangeCache != nil {
		return s.rangeCache
	}
	var r *StateRange
	switch s.FunctionType {
	case FnEq:
		if len(s.DataList) > 0 {
			r = NewPointRange(s.DataList[0])
		}
	case FnNeq:
		if len(s.DataList) > 0 {
			r = NewNotEqualRange(s.DataList[0])
		}
	case FnLt:
		if len(s.DataList) > 0 {
			r = NewUnboundedRange(s.DataList[0], false, false)
		}
	case FnLe:
		if len(s.DataList) > 0 {
			r = NewUnboundedRange(s.DataList[0], false, true)
		}
	case FnGt:
		if len(s.DataList) > 0 {
			r = NewUnboundedRange(s.DataList[0], true, false)
		}
	case FnGe:
		if len(s.DataList) > 0 {
			r = NewUnboundedRange(s.DataList[0], true, true)
		}
	case FnBetween:
		if len(s.DataList) >= 2 {
			r = NewPairRange(s.DataList[0], s.DataList[1])
		}
	case FnInInternal:
		r = NewListRange(s.DataList)
	case FnLike, FnWildcard:
		r = NewWildcardRange()
	default:
		r = NewWildcardRange()
	}
	if r == nil {
		r = NewWildcardRange()
	}
	s.rangeCache = r
	return r
}

// Flatten walks this item and every descendant reachable through
// ArgList/SubQueryList, depth-first, yielding every item with a
// non-empty Name (whatever its FunctionType) exactly once. Used by RowCluster.isQueryRelated
// (spec.md §4.6) to test each leaf against a key range without caring
// about the AND/OR structure connecting them.
func (s *StateItem) Flatten() []*StateItem {
	var out []*StateItem
	var walk func(*StateItem)
	walk = func(it *StateItem) {
		if it == nil {
			return
		}
		if it.Name != "" {
			out = append(out, it)
		}
		for _, c := range it.ArgList {
			walk(c)
		}
		for _, c := range it.SubQueryList {
			walk(c)
		}
	}
	walk(s)
	return out
}
