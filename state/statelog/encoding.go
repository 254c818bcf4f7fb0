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

package statelog

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ogl-crest/ultraverse/state/hash"
	"github.com/ogl-crest/ultraverse/state/predicate"
)

const (
	qType         = 1
	qTimestamp    = 2
	qDatabase     = 3
	qStatement    = 4
	qFlags        = 5
	qAffectedRows = 6
	qBeforeHash   = 7
	qAfterHash    = 8
	qReadSet      = 9
	qWriteSet     = 10
	qVarMap       = 11
	qReadColumn   = 12
	qWriteColumn  = 13
	qContext      = 14
)

const (
	hashEntryName = 1
	hashEntryBody = 2
)

const (
	ctxHasLastInsertID = 1
	ctxLastInsertID    = 2
	ctxHasInsertID     = 3
	ctxInsertID        = 4
	ctxHasRandSeed     = 5
	ctxRandSeed1       = 6
	ctxRandSeed2       = 7
	ctxUserVar         = 8
)

const (
	uvName       = 1
	uvType       = 2
	uvIsNull     = 3
	uvIsUnsigned = 4
	uvCharset    = 5
	uvValue      = 6
)

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	u := uint64(0)
	if v {
		u = 1
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, u)
}

func appendStr(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, []byte(s))
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendHashEntry(b []byte, num protowire.Number, name string, h *hash.StateHash) []byte {
	var entry []byte
	entry = appendStr(entry, hashEntryName, name)
	entry = protowire.AppendTag(entry, hashEntryBody, protowire.BytesType)
	entry = protowire.AppendBytes(entry, h.MarshalUltra())
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, entry)
}

func appendUserVar(b []byte, uv UserVar) []byte {
	var m []byte
	m = appendStr(m, uvName, uv.Name)
	m = appendUint(m, uvType, uint64(uv.Type))
	m = appendBool(m, uvIsNull, uv.IsNull)
	m = appendBool(m, uvIsUnsigned, uv.IsUnsigned)
	m = appendUint(m, uvCharset, uint64(uv.Charset))
	m = appendStr(m, uvValue, uv.Value)
	b = protowire.AppendTag(b, ctxUserVar, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func appendContext(b []byte, num protowire.Number, ctx *StatementContext) []byte {
	var m []byte
	m = appendBool(m, ctxHasLastInsertID, ctx.HasLastInsertID)
	m = appendUint(m, ctxLastInsertID, ctx.LastInsertID)
	m = appendBool(m, ctxHasInsertID, ctx.HasInsertID)
	m = appendUint(m, ctxInsertID, ctx.InsertID)
	m = appendBool(m, ctxHasRandSeed, ctx.HasRandSeed)
	m = appendUint(m, ctxRandSeed1, ctx.RandSeed1)
	m = appendUint(m, ctxRandSeed2, ctx.RandSeed2)
	for _, uv := range ctx.UserVars {
		m = appendUserVar(m, uv)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

// MarshalUltra encodes q as a tagged message (see state/predicate's
// encoding.go for the same scheme applied to StateItem).
func (q *Query) MarshalUltra() []byte {
	var b []byte
	b = appendUint(b, qType, uint64(q.Type))
	b = appendUint(b, qTimestamp, q.Timestamp)
	b = appendStr(b, qDatabase, q.Database)
	b = appendStr(b, qStatement, q.Statement)
	b = appendUint(b, qFlags, uint64(q.Flags))
	b = appendUint(b, qAffectedRows, uint64(q.AffectedRows))
	for name, h := range q.BeforeHash {
		b = appendHashEntry(b, qBeforeHash, name, h)
	}
	for name, h := range q.AfterHash {
		b = appendHashEntry(b, qAfterHash, name, h)
	}
	for _, it := range q.ReadSet {
		b = protowire.AppendTag(b, qReadSet, protowire.BytesType)
		b = protowire.AppendBytes(b, it.MarshalUltra())
	}
	for _, it := range q.WriteSet {
		b = protowire.AppendTag(b, qWriteSet, protowire.BytesType)
		b = protowire.AppendBytes(b, it.MarshalUltra())
	}
	for _, it := range q.VarMap {
		b = protowire.AppendTag(b, qVarMap, protowire.BytesType)
		b = protowire.AppendBytes(b, it.MarshalUltra())
	}
	for _, c := range q.ReadColumns {
		b = appendStr(b, qReadColumn, c)
	}
	for _, c := range q.WriteColumns {
		b = appendStr(b, qWriteColumn, c)
	}
	if !q.Context.Empty() {
		b = appendContext(b, qContext, q.Context)
	}
	return b
}

func consumeHashEntry(raw []byte) (string, *hash.StateHash, error) {
	var name string
	h := &hash.StateHash{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return "", nil, fmt.Errorf("statelog: bad hash entry tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case hashEntryName:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return "", nil, fmt.Errorf("statelog: bad hash entry name: %w", protowire.ParseError(n))
			}
			name = string(v)
			raw = raw[n:]
		case hashEntryBody:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return "", nil, fmt.Errorf("statelog: bad hash entry body: %w", protowire.ParseError(n))
			}
			if err := h.UnmarshalUltra(v); err != nil {
				return "", nil, err
			}
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return "", nil, fmt.Errorf("statelog: skip hash entry field: %w", protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return name, h, nil
}

func consumeUserVar(raw []byte) (UserVar, error) {
	var uv UserVar
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return uv, fmt.Errorf("statelog: bad uservar tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case uvName:
			v, n := protowire.ConsumeBytes(raw)
			uv.Name = string(v)
			raw = raw[n:]
		case uvType:
			v, n := protowire.ConsumeVarint(raw)
			uv.Type = UserVarValueType(v)
			raw = raw[n:]
		case uvIsNull:
			v, n := protowire.ConsumeVarint(raw)
			uv.IsNull = v != 0
			raw = raw[n:]
		case uvIsUnsigned:
			v, n := protowire.ConsumeVarint(raw)
			uv.IsUnsigned = v != 0
			raw = raw[n:]
		case uvCharset:
			v, n := protowire.ConsumeVarint(raw)
			uv.Charset = uint32(v)
			raw = raw[n:]
		case uvValue:
			v, n := protowire.ConsumeBytes(raw)
			uv.Value = string(v)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			raw = raw[n:]
		}
	}
	return uv, nil
}

func consumeContext(raw []byte) (*StatementContext, error) {
	ctx := &StatementContext{}
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("statelog: bad context tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case ctxHasLastInsertID:
			v, n := protowire.ConsumeVarint(raw)
			ctx.HasLastInsertID = v != 0
			raw = raw[n:]
		case ctxLastInsertID:
			v, n := protowire.ConsumeVarint(raw)
			ctx.LastInsertID = v
			raw = raw[n:]
		case ctxHasInsertID:
			v, n := protowire.ConsumeVarint(raw)
			ctx.HasInsertID = v != 0
			raw = raw[n:]
		case ctxInsertID:
			v, n := protowire.ConsumeVarint(raw)
			ctx.InsertID = v
			raw = raw[n:]
		case ctxHasRandSeed:
			v, n := protowire.ConsumeVarint(raw)
			ctx.HasRandSeed = v != 0
			raw = raw[n:]
		case ctxRandSeed1:
			v, n := protowire.ConsumeVarint(raw)
			ctx.RandSeed1 = v
			raw = raw[n:]
		case ctxRandSeed2:
			v, n := protowire.ConsumeVarint(raw)
			ctx.RandSeed2 = v
			raw = raw[n:]
		case ctxUserVar:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return nil, fmt.Errorf("statelog: bad uservar: %w", protowire.ParseError(n))
			}
			uv, err := consumeUserVar(v)
			if err != nil {
				return nil, err
			}
			ctx.UserVars = append(ctx.UserVars, uv)
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return nil, fmt.Errorf("statelog: skip context field: %w", protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return ctx, nil
}

// UnmarshalUltra decodes a Query encoded by MarshalUltra.
func (q *Query) UnmarshalUltra(b []byte) error {
	*q = Query{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("statelog: bad query tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case qType:
			v, n := protowire.ConsumeVarint(b)
			q.Type = QueryType(v)
			b = b[n:]
		case qTimestamp:
			v, n := protowire.ConsumeVarint(b)
			q.Timestamp = v
			b = b[n:]
		case qDatabase:
			v, n := protowire.ConsumeBytes(b)
			q.Database = string(v)
			b = b[n:]
		case qStatement:
			v, n := protowire.ConsumeBytes(b)
			q.Statement = string(v)
			b = b[n:]
		case qFlags:
			v, n := protowire.ConsumeVarint(b)
			q.Flags = uint8(v)
			b = b[n:]
		case qAffectedRows:
			v, n := protowire.ConsumeVarint(b)
			q.AffectedRows = uint32(v)
			b = b[n:]
		case qBeforeHash, qAfterHash:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("statelog: bad hash map entry: %w", protowire.ParseError(n))
			}
			name, h, err := consumeHashEntry(raw)
			if err != nil {
				return err
			}
			if num == qBeforeHash {
				if q.BeforeHash == nil {
					q.BeforeHash = map[string]*hash.StateHash{}
				}
				q.BeforeHash[name] = h
			} else {
				if q.AfterHash == nil {
					q.AfterHash = map[string]*hash.StateHash{}
				}
				q.AfterHash[name] = h
			}
			b = b[n:]
		case qReadSet, qWriteSet, qVarMap:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("statelog: bad predicate item: %w", protowire.ParseError(n))
			}
			item := &predicate.StateItem{}
			if err := item.UnmarshalUltra(raw); err != nil {
				return err
			}
			switch num {
			case qReadSet:
				q.ReadSet = append(q.ReadSet, item)
			case qWriteSet:
				q.WriteSet = append(q.WriteSet, item)
			case qVarMap:
				q.VarMap = append(q.VarMap, item)
			}
			b = b[n:]
		case qReadColumn:
			v, n := protowire.ConsumeBytes(b)
			q.ReadColumns = append(q.ReadColumns, string(v))
			b = b[n:]
		case qWriteColumn:
			v, n := protowire.ConsumeBytes(b)
			q.WriteColumns = append(q.WriteColumns, string(v))
			b = b[n:]
		case qContext:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("statelog: bad statement context: %w", protowire.ParseError(n))
			}
			ctx, err := consumeContext(raw)
			if err != nil {
				return err
			}
			q.Context = ctx
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("statelog: skip query field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

const (
	txGID          = 1
	txXID          = 2
	txTimestamp    = 3
	txQuery        = 4
	txIsSuccessful = 5
	txFlags        = 6
	txNextPos      = 7
)

// MarshalUltra encodes t (header fields plus every query) as a tagged
// message; QueryCount/BodyLength in the header are derived on decode
// rather than persisted, since they're redundant with len(Queries) and
// the length of the encoded body UnmarshalUltra is given. NextPos is
// likewise not persisted here: the writer stamps it into the fixed-size
// on-disk TransactionHeader record, not the variable-length body, so
// reader.go's seek_gid/next_header path can read it without decoding
// the body at all.
func (t *Transaction) MarshalUltra() []byte {
	var b []byte
	b = appendUint(b, txGID, uint64(t.Header.GID))
	b = appendUint(b, txXID, t.Header.XID)
	b = appendUint(b, txTimestamp, t.Header.Timestamp)
	b = appendBool(b, txIsSuccessful, t.Header.IsSuccessful)
	b = appendUint(b, txFlags, uint64(t.Header.Flags))
	for _, q := range t.Queries {
		b = protowire.AppendTag(b, txQuery, protowire.BytesType)
		b = protowire.AppendBytes(b, q.MarshalUltra())
	}
	return b
}

// UnmarshalUltra decodes a Transaction encoded by MarshalUltra.
func (t *Transaction) UnmarshalUltra(b []byte) error {
	*t = Transaction{}
	bodyLen := len(b)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("statelog: bad transaction tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case txGID:
			v, n := protowire.ConsumeVarint(b)
			t.Header.GID = GID(v)
			b = b[n:]
		case txXID:
			v, n := protowire.ConsumeVarint(b)
			t.Header.XID = v
			b = b[n:]
		case txTimestamp:
			v, n := protowire.ConsumeVarint(b)
			t.Header.Timestamp = v
			b = b[n:]
		case txIsSuccessful:
			v, n := protowire.ConsumeVarint(b)
			t.Header.IsSuccessful = v != 0
			b = b[n:]
		case txFlags:
			v, n := protowire.ConsumeVarint(b)
			t.Header.Flags = uint8(v)
			b = b[n:]
		case txNextPos:
			v, n := protowire.ConsumeVarint(b)
			t.Header.NextPos = v
			b = b[n:]
		case txQuery:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("statelog: bad transaction query: %w", protowire.ParseError(n))
			}
			q := &Query{}
			if err := q.UnmarshalUltra(raw); err != nil {
				return err
			}
			t.Append(q)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("statelog: skip transaction field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	t.Header.BodyLength = uint32(bodyLen)
	return nil
}
