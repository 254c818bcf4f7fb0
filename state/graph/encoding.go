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
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	cgVertex  = 1 // repeated vertex message
	cgEdge    = 2 // repeated "a,b" edge message

	cvColumn = 1 // repeated string
	cvAccess = 2
	cvHash   = 3
)

// MarshalUltra encodes the ColumnDependencyGraph's vertex arena and
// edge set as a tagged message, per SPEC_FULL.md §3.1.
func (g *ColumnDependencyGraph) MarshalUltra() []byte {
	var b []byte
	for _, v := range g.vertices {
		var vb []byte
		for _, c := range v.columns {
			vb = protowire.AppendTag(vb, cvColumn, protowire.BytesType)
			vb = protowire.AppendBytes(vb, []byte(c))
		}
		vb = protowire.AppendTag(vb, cvAccess, protowire.VarintType)
		vb = protowire.AppendVarint(vb, uint64(v.access))
		vb = protowire.AppendTag(vb, cvHash, protowire.Fixed64Type)
		vb = protowire.AppendFixed64(vb, v.hash)
		b = protowire.AppendTag(b, cgVertex, protowire.BytesType)
		b = protowire.AppendBytes(b, vb)
	}
	for a, peers := range g.adj {
		for bIdx := range peers {
			if bIdx < a {
				continue // undirected: emit each edge once
			}
			var eb []byte
			eb = protowire.AppendVarint(eb, uint64(a))
			eb = protowire.AppendVarint(eb, uint64(bIdx))
			b = protowire.AppendTag(b, cgEdge, protowire.BytesType)
			b = protowire.AppendBytes(b, eb)
		}
	}
	return b
}

// UnmarshalUltra decodes a ColumnDependencyGraph encoded by MarshalUltra.
func (g *ColumnDependencyGraph) UnmarshalUltra(b []byte) error {
	*g = ColumnDependencyGraph{byHash: map[uint64]int{}, adj: map[int]map[int]struct{}{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("graph: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case cgVertex:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("graph: bad vertex: %w", protowire.ParseError(n))
			}
			v, err := decodeVertex(raw)
			if err != nil {
				return err
			}
			idx := len(g.vertices)
			g.vertices = append(g.vertices, v)
			g.byHash[v.hash] = idx
			g.adj[idx] = map[int]struct{}{}
			b = b[n:]
		case cgEdge:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("graph: bad edge: %w", protowire.ParseError(n))
			}
			a, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return fmt.Errorf("graph: bad edge endpoint: %w", protowire.ParseError(m))
			}
			raw = raw[m:]
			bv, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return fmt.Errorf("graph: bad edge endpoint: %w", protowire.ParseError(m))
			}
			g.addEdge(int(a), int(bv))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("graph: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func decodeVertex(raw []byte) (columnVertex, error) {
	var v columnVertex
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return v, fmt.Errorf("graph: bad vertex tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case cvColumn:
			s, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return v, fmt.Errorf("graph: bad vertex column: %w", protowire.ParseError(n))
			}
			v.columns = append(v.columns, string(s))
			raw = raw[n:]
		case cvAccess:
			u, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return v, fmt.Errorf("graph: bad vertex access: %w", protowire.ParseError(n))
			}
			v.access = AccessType(u)
			raw = raw[n:]
		case cvHash:
			u, n := protowire.ConsumeFixed64(raw)
			if n < 0 {
				return v, fmt.Errorf("graph: bad vertex hash: %w", protowire.ParseError(n))
			}
			v.hash = u
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return v, fmt.Errorf("graph: skip vertex field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return v, nil
}

const (
	tgName = 1 // repeated string, index == position
	tgEdge = 2 // repeated "a,b" edge message
)

// MarshalUltra encodes the TableDependencyGraph's vertex names (in
// arena order) and edges.
func (g *TableDependencyGraph) MarshalUltra() []byte {
	var b []byte
	for _, name := range g.names {
		b = protowire.AppendTag(b, tgName, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(name))
	}
	for a, peers := range g.edges {
		for bIdx := range peers {
			var eb []byte
			eb = protowire.AppendVarint(eb, uint64(a))
			eb = protowire.AppendVarint(eb, uint64(bIdx))
			b = protowire.AppendTag(b, tgEdge, protowire.BytesType)
			b = protowire.AppendBytes(b, eb)
		}
	}
	return b
}

// UnmarshalUltra decodes a TableDependencyGraph encoded by MarshalUltra.
func (g *TableDependencyGraph) UnmarshalUltra(b []byte) error {
	*g = TableDependencyGraph{index: map[string]int{}, edges: map[int]map[int]struct{}{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("graph: bad table-graph tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case tgName:
			s, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("graph: bad table name: %w", protowire.ParseError(n))
			}
			idx := len(g.names)
			g.names = append(g.names, string(s))
			g.index[string(s)] = idx
			g.edges[idx] = map[int]struct{}{}
			b = b[n:]
		case tgEdge:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("graph: bad table edge: %w", protowire.ParseError(n))
			}
			a, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return fmt.Errorf("graph: bad table edge endpoint: %w", protowire.ParseError(m))
			}
			raw = raw[m:]
			bv, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return fmt.Errorf("graph: bad table edge endpoint: %w", protowire.ParseError(m))
			}
			if g.edges[int(a)] == nil {
				g.edges[int(a)] = map[int]struct{}{}
			}
			g.edges[int(a)][int(bv)] = struct{}{}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("graph: skip table-graph field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}
