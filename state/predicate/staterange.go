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

import (
	"sort"
	"strings"
)

// Interval is a closed range [Low, High] on a single column's value
// domain. Both bounds may be the KindNegInf/KindPosInf sentinels.
type Interval struct {
	Low, High Scalar
}

func point(v Scalar) Interval { return Interval{Low: v, High: v} }

// StateRange is an ordered set of non-overlapping intervals on a single
// column, per spec.md §3. A Wildcard range matches everything (LIKE,
// unparsed predicates, or a RowCluster key explicitly marked wildcard).
type StateRange struct {
	Wildcard  bool
	Intervals []Interval
}

// NewPointRange builds a single-value range, used for FunctionType EQ.
func NewPointRange(v Scalar) *StateRange {
	return &StateRange{Intervals: []Interval{point(v)}}
}

// NewPairRange builds a closed [lo, hi] range, used for BETWEEN.
func NewPairRange(lo, hi Scalar) *StateRange {
	if Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return &StateRange{Intervals: []Interval{{Low: lo, High: hi}}}
}

// NewListRange builds a range from a list of discrete points, used for
// FunctionType IN_INTERNAL.
func NewListRange(vals []Scalar) *StateRange {
	r := &StateRange{}
	for _, v := range vals {
		r.Intervals = append(r.Intervals, point(v))
	}
	r.arrangeSelf()
	return r
}

// NewUnboundedRange builds a one-sided range, used for LT/LE/GT/GE.
// inclusive applies to the bound nearest v; lower selects whether v is
// the lower bound (GT/GE) or the upper bound (LT/LE).
func NewUnboundedRange(v Scalar, lower, inclusive bool) *StateRange {
	bound := v
	if !inclusive {
		// Strict inequality is not represented: since Compare on
		// heterogeneous kinds has no "next representable value", the
		// range keeps the bound itself, and MakeWhereQuery renders it
		// as `<=`/`>=`. The range is the non-strict (closed)
		// approximation, which is safe for isIntersects: it only ever
		// widens a match, never narrows one away.
		bound = v
	}
	if lower {
		return &StateRange{Intervals: []Interval{{Low: bound, High: posInf()}}}
	}
	return &StateRange{Intervals: []Interval{{Low: negInf(), High: bound}}}
}

// NewNotEqualRange builds the closed approximation of the two-sided
// complement of a point, used for FunctionType NEQ: both intervals
// include v, the same non-strict handling NewUnboundedRange uses.
func NewNotEqualRange(v Scalar) *StateRange {
	return &StateRange{Intervals: []Interval{
		{Low: negInf(), High: v},
		{Low: v, High: posInf()},
	}}
}

// NewWildcardRange builds a range matching every value, used for LIKE,
// unparseable predicates, and RowCluster keys marked wildcard.
func NewWildcardRange() *StateRange {
	return &StateRange{Wildcard: true}
}

// arrangeSelf sorts intervals by lower bound and coalesces any that
// overlap or touch, maintaining the non-overlapping invariant.
func (r *StateRange) arrangeSelf() {
	if r.Wildcard || len(r.Intervals) < 2 {
		return
	}
	sort.Slice(r.Intervals, func(i, j int) bool {
		return Compare(r.Intervals[i].Low, r.Intervals[j].Low) < 0
	})
	merged := r.Intervals[:1]
	for _, iv := range r.Intervals[1:] {
		last := &merged[len(merged)-1]
		if Compare(iv.Low, last.High) <= 0 {
			if Compare(iv.High, last.High) > 0 {
				last.High = iv.High
			}
			continue
		}
		merged = append(merged, iv)
	}
	r.Intervals = merged
}

func intervalsIntersect(a, b Interval) bool {
	return Compare(a.Low, b.High) <= 0 && Compare(b.Low, a.High) <= 0
}

// IsIntersects reports whether a and b share at least one value. A
// wildcard range intersects anything (including another wildcard).
func IsIntersects(a, b *StateRange) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Wildcard || b.Wildcard {
		return true
	}
	// both sides are small in practice (merged cluster entries); an
	// O(n*m) scan keeps this simple and correct. OrFast below is the
	// optimized path used when both inputs are already sorted.
	for _, x := range a.Intervals {
		for _, y := range b.Intervals {
			if intervalsIntersect(x, y) {
				return true
			}
		}
	}
	return false
}

// And intersects two ranges, interval by interval.
func And(a, b *StateRange) *StateRange {
	if a.Wildcard {
		return b.clone()
	}
	if b.Wildcard {
		return a.clone()
	}
	out := &StateRange{}
	for _, x := range a.Intervals {
		for _, y := range b.Intervals {
			if !intervalsIntersect(x, y) {
				continue
			}
			lo := x.Low
			if Compare(y.Low, lo) > 0 {
				lo = y.Low
			}
			hi := x.High
			if Compare(y.High, hi) < 0 {
				hi = y.High
			}
			out.Intervals = append(out.Intervals, Interval{Low: lo, High: hi})
		}
	}
	out.arrangeSelf()
	return out
}

// Or unions two ranges and coalesces the result.
func Or(a, b *StateRange) *StateRange {
	if a.Wildcard || b.Wildcard {
		return NewWildcardRange()
	}
	out := &StateRange{Intervals: append(append([]Interval{}, a.Intervals...), b.Intervals...)}
	out.arrangeSelf()
	return out
}

// OrFast unions two already-sorted, already-coalesced ranges in
// O(n+m) via a merge, the algorithm spec.md §3 calls out explicitly for
// RowCluster's hot merge loop instead of reusing the general Or's
// sort-then-coalesce.
func OrFast(a, b *StateRange) *StateRange {
	if a.Wildcard || b.Wildcard {
		return NewWildcardRange()
	}
	out := &StateRange{}
	i, j := 0, 0
	var cur *Interval
	push := func(iv Interval) {
		if cur != nil && Compare(iv.Low, cur.High) <= 0 {
			if Compare(iv.High, cur.High) > 0 {
				cur.High = iv.High
			}
			return
		}
		out.Intervals = append(out.Intervals, iv)
		cur = &out.Intervals[len(out.Intervals)-1]
	}
	for i < len(a.Intervals) || j < len(b.Intervals) {
		switch {
		case j >= len(b.Intervals) || (i < len(a.Intervals) && Compare(a.Intervals[i].Low, b.Intervals[j].Low) <= 0):
			push(a.Intervals[i])
			i++
		default:
			push(b.Intervals[j])
			j++
		}
	}
	return out
}

func (r *StateRange) clone() *StateRange {
	c := &StateRange{Wildcard: r.Wildcard}
	c.Intervals = append(c.Intervals, r.Intervals...)
	return c
}

// MakeWhereQuery renders the range as a SQL fragment for reports and
// diagnostics, e.g. "(col=1 OR col=10)" or "col BETWEEN 1 AND 10".
func (r *StateRange) MakeWhereQuery(column string) string {
	if r.Wildcard {
		return "1=1"
	}
	if len(r.Intervals) == 0 {
		return "1=0"
	}
	parts := make([]string, 0, len(r.Intervals))
	for _, iv := range r.Intervals {
		switch {
		case Equal(iv.Low, iv.High):
			parts = append(parts, column+"="+iv.Low.SQLLiteral())
		case iv.Low.Kind == KindNegInf && iv.High.Kind == KindPosInf:
			parts = append(parts, "1=1")
		case iv.Low.Kind == KindNegInf:
			parts = append(parts, column+"<="+iv.High.SQLLiteral())
		case iv.High.Kind == KindPosInf:
			parts = append(parts, column+">="+iv.Low.SQLLiteral())
		default:
			parts = append(parts, column+" BETWEEN "+iv.Low.SQLLiteral()+" AND "+iv.High.SQLLiteral())
		}
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
