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
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldCondType = 1
	fieldFnType   = 2
	fieldName     = 3
	fieldDataItem = 4
	fieldArgItem  = 5
	fieldSubQItem = 6
)

func doubleBits(f float64) uint64 { return math.Float64bits(f) }
func bitsDouble(u uint64) float64 { return math.Float64frombits(u) }

func appendScalar(b []byte, s Scalar) []byte {
	var v []byte
	v = protowire.AppendVarint(v, uint64(s.Kind))
	switch s.Kind {
	case KindBool:
		u := uint64(0)
		if s.Bl {
			u = 1
		}
		v = protowire.AppendVarint(v, u)
	case KindInt64:
		v = protowire.AppendVarint(v, uint64(s.I))
	case KindUint64:
		v = protowire.AppendVarint(v, s.U)
	case KindDouble:
		v = protowire.AppendFixed64(v, doubleBits(s.F))
	case KindString:
		v = protowire.AppendBytes(v, []byte(s.S))
	case KindBytes:
		v = protowire.AppendBytes(v, s.B)
	}
	return protowire.AppendBytes(b, v)
}

// consumeScalar decodes a scalar from raw, the already-unwrapped bytes
// content of a fieldDataItem entry (the caller has already consumed the
// outer length-prefixed bytes field).
func consumeScalar(raw []byte) (Scalar, error) {
	kindU, m := protowire.ConsumeVarint(raw)
	if m < 0 {
		return Scalar{}, fmt.Errorf("stateitem: bad scalar kind: %w", protowire.ParseError(m))
	}
	raw = raw[m:]
	kind := ScalarKind(kindU)
	var s Scalar
	s.Kind = kind
	switch kind {
	case KindBool:
		v, mm := protowire.ConsumeVarint(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad bool: %w", protowire.ParseError(mm))
		}
		s.Bl = v != 0
	case KindInt64:
		v, mm := protowire.ConsumeVarint(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad int64: %w", protowire.ParseError(mm))
		}
		s.I = int64(v)
	case KindUint64:
		v, mm := protowire.ConsumeVarint(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad uint64: %w", protowire.ParseError(mm))
		}
		s.U = v
	case KindDouble:
		v, mm := protowire.ConsumeFixed64(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad double: %w", protowire.ParseError(mm))
		}
		s.F = bitsDouble(v)
	case KindString:
		v, mm := protowire.ConsumeBytes(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad string: %w", protowire.ParseError(mm))
		}
		s.S = string(v)
	case KindBytes:
		v, mm := protowire.ConsumeBytes(raw)
		if mm < 0 {
			return Scalar{}, fmt.Errorf("stateitem: bad bytes: %w", protowire.ParseError(mm))
		}
		s.B = append([]byte{}, v...)
	}
	return s, nil
}

// MarshalUltra encodes the StateItem tree as a tagged message.
func (s *StateItem) MarshalUltra() []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldCondType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.ConditionType))
	b = protowire.AppendTag(b, fieldFnType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(s.FunctionType))
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(s.Name))
	for _, d := range s.DataList {
		b = protowire.AppendTag(b, fieldDataItem, protowire.BytesType)
		b = appendScalar(b, d)
	}
	for _, c := range s.ArgList {
		b = protowire.AppendTag(b, fieldArgItem, protowire.BytesType)
		b = protowire.AppendBytes(b, c.MarshalUltra())
	}
	for _, c := range s.SubQueryList {
		b = protowire.AppendTag(b, fieldSubQItem, protowire.BytesType)
		b = protowire.AppendBytes(b, c.MarshalUltra())
	}
	return b
}

// UnmarshalUltra decodes a StateItem tree encoded by MarshalUltra.
func (s *StateItem) UnmarshalUltra(b []byte) error {
	*s = StateItem{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("stateitem: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldCondType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("stateitem: bad cond type: %w", protowire.ParseError(n))
			}
			s.ConditionType = ConditionType(v)
			b = b[n:]
		case fieldFnType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("stateitem: bad fn type: %w", protowire.ParseError(n))
			}
			s.FunctionType = FunctionType(v)
			b = b[n:]
		case fieldName:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("stateitem: bad name: %w", protowire.ParseError(n))
			}
			s.Name = string(v)
			b = b[n:]
		case fieldDataItem:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("stateitem: bad data item: %w", protowire.ParseError(n))
			}
			sc, err := consumeScalar(raw)
			if err != nil {
				return err
			}
			s.DataList = append(s.DataList, sc)
			b = b[n:]
		case fieldArgItem, fieldSubQItem:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("stateitem: bad child: %w", protowire.ParseError(n))
			}
			child := &StateItem{}
			if err := child.UnmarshalUltra(raw); err != nil {
				return err
			}
			if typ != protowire.BytesType {
				return fmt.Errorf("stateitem: field %d: expected bytes wire type", num)
			}
			if num == fieldArgItem {
				s.ArgList = append(s.ArgList, child)
			} else {
				s.SubQueryList = append(s.SubQueryList, child)
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("stateitem: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

const (
	fieldRangeWildcard = 1
	fieldRangeInterval = 2
	fieldIntervalLow   = 1
	fieldIntervalHigh  = 2
)

// MarshalUltra encodes the StateRange as a tagged message: a wildcard
// flag plus the (possibly empty) coalesced interval list.
func (r *StateRange) MarshalUltra() []byte {
	var b []byte
	wc := uint64(0)
	if r.Wildcard {
		wc = 1
	}
	b = protowire.AppendTag(b, fieldRangeWildcard, protowire.VarintType)
	b = protowire.AppendVarint(b, wc)
	for _, iv := range r.Intervals {
		var ib []byte
		ib = protowire.AppendTag(ib, fieldIntervalLow, protowire.BytesType)
		ib = appendScalar(ib, iv.Low)
		ib = protowire.AppendTag(ib, fieldIntervalHigh, protowire.BytesType)
		ib = appendScalar(ib, iv.High)
		b = protowire.AppendTag(b, fieldRangeInterval, protowire.BytesType)
		b = protowire.AppendBytes(b, ib)
	}
	return b
}

// UnmarshalUltra decodes a StateRange encoded by MarshalUltra.
func (r *StateRange) UnmarshalUltra(b []byte) error {
	*r = StateRange{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("staterange: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldRangeWildcard:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("staterange: bad wildcard flag: %w", protowire.ParseError(n))
			}
			r.Wildcard = v != 0
			b = b[n:]
		case fieldRangeInterval:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("staterange: bad interval: %w", protowire.ParseError(n))
			}
			iv, err := consumeInterval(raw)
			if err != nil {
				return err
			}
			r.Intervals = append(r.Intervals, iv)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("staterange: skip field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return nil
}

func consumeInterval(raw []byte) (Interval, error) {
	var iv Interval
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return iv, fmt.Errorf("staterange: bad interval tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]
		switch num {
		case fieldIntervalLow, fieldIntervalHigh:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return iv, fmt.Errorf("staterange: bad interval bound: %w", protowire.ParseError(n))
			}
			sc, err := consumeScalar(v)
			if err != nil {
				return iv, err
			}
			if num == fieldIntervalLow {
				iv.Low = sc
			} else {
				iv.High = sc
			}
			raw = raw[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return iv, fmt.Errorf("staterange: skip interval field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}
	return iv, nil
}
