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
	"sort"
	"strings"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

// CompositeEntry is one merged multi-column range tuple with its
// owning GIDs, spec.md §4.6's composite-key entry shape.
type CompositeEntry struct {
	Ranges []*predicate.StateRange
	GIDs   []statelog.GID
}

type compositeState struct {
	cols    []string // normalized, sorted component columns
	entries []CompositeEntry
}

// NormalizeCompositeKey lowercases and sorts cols, then joins them with
// "|" into the identifier spec.md §4.6 uses for composite keys, so
// AddCompositeKey([a,b]) and AddCompositeKey([b,a]) name the same key.
func NormalizeCompositeKey(cols []string) (string, []string) {
	norm := make([]string, len(cols))
	for i, c := range cols {
		norm[i] = strings.ToLower(strings.TrimSpace(c))
	}
	sort.Strings(norm)
	return strings.Join(norm, "|"), norm
}

// AddCompositeKey registers the composite key named by cols (order
// independent), a no-op if already registered.
func (c *RowCluster) AddCompositeKey(cols []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, norm := NormalizeCompositeKey(cols)
	if _, ok := c.composite[id]; !ok {
		c.composite[id] = &compositeState{cols: norm}
	}
	return id
}

// AddCompositeKeyRange appends one (range-vector, gid) tuple to the
// composite key's entry list. ranges must be in the same order as the
// cols the key was registered with.
func (c *RowCluster) AddCompositeKeyRange(cols []string, ranges []*predicate.StateRange, gid statelog.GID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, norm := NormalizeCompositeKey(cols)
	cs, ok := c.composite[id]
	if !ok {
		cs = &compositeState{cols: norm}
		c.composite[id] = cs
	}
	cs.entries = append(cs.entries, CompositeEntry{Ranges: ranges, GIDs: []statelog.GID{gid}})
}

func compositeEntriesIntersect(a, b CompositeEntry) bool {
	if len(a.Ranges) != len(b.Ranges) {
		return false
	}
	for i := range a.Ranges {
		if !predicate.IsIntersects(a.Ranges[i], b.Ranges[i]) {
			return false
		}
	}
	return true
}

func mergeCompositeEntries(a, b CompositeEntry) CompositeEntry {
	out := CompositeEntry{Ranges: make([]*predicate.StateRange, len(a.Ranges))}
	for i := range a.Ranges {
		out.Ranges[i] = predicate.Or(a.Ranges[i], b.Ranges[i])
	}
	out.GIDs = append(append([]statelog.GID{}, a.GIDs...), b.GIDs...)
	return out
}

// MergeComposite coalesces a composite key's entries: a pairwise
// quadratic scan that merges the first intersecting pair found and
// restarts, terminating when no intersecting pair remains (spec.md
// §4.6's documented complexity for the composite-key merge path).
func (c *RowCluster) MergeComposite(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.composite[id]
	if !ok {
		return
	}
	for {
		merged := false
		for i := 0; i < len(cs.entries) && !merged; i++ {
			for j := i + 1; j < len(cs.entries); j++ {
				if !compositeEntriesIntersect(cs.entries[i], cs.entries[j]) {
					continue
				}
				fused := mergeCompositeEntries(cs.entries[i], cs.entries[j])
				cs.entries[i] = fused
				cs.entries = append(cs.entries[:j], cs.entries[j+1:]...)
				merged = true
				break
			}
		}
		if !merged {
			return
		}
	}
}

// CompositeEntries returns the composite key's current entry list.
func (c *RowCluster) CompositeEntries(id string) []CompositeEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, ok := c.composite[id]
	if !ok {
		return nil
	}
	return append([]CompositeEntry(nil), cs.entries...)
}
