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
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

const (
	rcKey = 1 // repeated key message

	keyName     = 1
	keyWildcard = 2
	keyEntry    = 3

	entryRange = 1
	entryGID   = 2 // repeated varint
)

func appendEntry(b []byte, num protowire.Number, e Entry) []byte {
	var eb []byte
	eb = protowire.AppendTag(eb, entryRange, protowire.BytesType)
	eb = protowire.AppendBytes(eb, e.Range.MarshalUltra())
	for _, g := range e.GIDs {
		eb = protowire.AppendTag(eb, entryGID, protowire.VarintType)
		eb = protowire.AppendVarint(eb, uint64(g))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, eb)
}

func consumeEntry(raw []byte) (Entry, error) {
	var e Entry
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return e, fmt.Errorf("cluster: bad entry tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case entryRange:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return e, fmt.Errorf("cluster: bad entry range: %w", protowire.ParseError(n))
			}
			r := &predicate.StateRange{}
			if err := r.UnmarshalUltra(v); err != nil {
				return e, err
			}
			e.Range = r
			raw = raw[n:]
		case entryGID:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return e, fmt.Errorf("cluster: bad entry gid: %w", protowire.ParseError(n))
			}
			e.GIDs = append(e.GIDs, statelog.GID(v))
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return e, fmt.Errorf("cluster: skip entry field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return e, nil
}

// MarshalUltra encodes every registered key column's wildcard flag and
// current entry list as a tagged message. Composite keys, the helper
// graph, and the alias table are not persisted: the helper graph is
// rebuilt from entries on next MergeCluster, and composite keys /
// aliases are reloaded from configuration (spec.md §6's keyColumns /
// columnAliases), not the binlog-derived cluster.
func (c *RowCluster) MarshalUltra() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	for name, ks := range c.keys {
		var kb []byte
		kb = protowire.AppendTag(kb, keyName, protowire.BytesType)
		kb = protowire.AppendBytes(kb, []byte(name))
		kb = protowire.AppendTag(kb, keyWildcard, protowire.VarintType)
		wc := uint64(0)
		if ks.wildcard {
			wc = 1
		}
		kb = protowire.AppendVarint(kb, wc)
		for _, e := range ks.entries {
			kb = appendEntry(kb, keyEntry, e)
		}
		b = protowire.AppendTag(b, rcKey, protowire.BytesType)
		b = protowire.AppendBytes(b, kb)
	}
	return b
}

// UnmarshalUltra decodes a RowCluster encoded by MarshalUltra. Decoded
// keys start with a fresh (edge-less) helper graph sized to the
// restored entry count; callers that need MergeCluster's intersection
// invariant re-verified after a reload should call it again, which is
// idempotent once entries are already disjoint.
func (c *RowCluster) UnmarshalUltra(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = map[string]*keyState{}
	if c.composite == nil {
		c.composite = map[string]*compositeState{}
	}
	if c.aliases == nil {
		c.aliases = NewAliasMap()
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("cluster: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		if num != rcKey {
			nn := protowire.ConsumeFieldValue(num, typ, b)
			if nn < 0 {
				return fmt.Errorf("cluster: skip field %d: %w", num, protowire.ParseError(nn))
			}
			b = b[nn:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return fmt.Errorf("cluster: bad key message: %w", protowire.ParseError(n))
		}
		name, ks, err := decodeKeyState(raw)
		if err != nil {
			return err
		}
		c.keys[name] = ks
		b = b[n:]
	}
	return nil
}

func decodeKeyState(raw []byte) (string, *keyState, error) {
	var name string
	ks := &keyState{edges: map[int]map[int]struct{}{}}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return "", nil, fmt.Errorf("cluster: bad key field tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case keyName:
			v, n := protowire.ConsumeBytes(raw)
			name = string(v)
			raw = raw[n:]
		case keyWildcard:
			v, n := protowire.ConsumeVarint(raw)
			ks.wildcard = v != 0
			raw = raw[n:]
		case keyEntry:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return "", nil, fmt.Errorf("cluster: bad key entry: %w", protowire.ParseError(n))
			}
			e, err := consumeEntry(v)
			if err != nil {
				return "", nil, err
			}
			idx := len(ks.entries)
			ks.entries = append(ks.entries, e)
			ks.edges[idx] = map[int]struct{}{}
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return "", nil, fmt.Errorf("cluster: skip key field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return name, ks, nil
}
