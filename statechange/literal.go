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

// Package statechange implements StateChanger: the orchestrator that
// builds clusters/graphs from a state log, plans rollback/replay, and
// drives an intermediate database through the recorded transactions
// (spec.md §4.8).
package statechange

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

// quoteIdent backtick-quotes a MySQL identifier, doubling any internal
// backtick, spec.md §4.8's "Identifiers are backtick-quoted, with
// internal backticks doubled."
func quoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// userVarLiteral renders uv's raw captured bytes as the SQL literal
// spec.md §4.8 prescribes for its Type, so a replayed statement sees
// exactly the session variable value the binlog recorded.
func userVarLiteral(uv statelog.UserVar) (string, error) {
	if uv.IsNull {
		return "NULL", nil
	}
	raw := []byte(uv.Value)
	switch uv.Type {
	case statelog.UserVarString:
		return fmt.Sprintf("_binary 0x%x", raw), nil
	case statelog.UserVarReal:
		if len(raw) != 8 {
			return "", fmt.Errorf("statechange: real user var %q: want 8 bytes, got %d", uv.Name, len(raw))
		}
		bits := binary.LittleEndian.Uint64(raw)
		f := int64ToFloat(bits)
		return strconv.FormatFloat(f, 'g', 17, 64), nil
	case statelog.UserVarInt:
		if len(raw) != 8 {
			return "", fmt.Errorf("statechange: int user var %q: want 8 bytes, got %d", uv.Name, len(raw))
		}
		bits := binary.LittleEndian.Uint64(raw)
		if uv.IsUnsigned {
			return strconv.FormatUint(bits, 10), nil
		}
		return strconv.FormatInt(int64(bits), 10), nil
	case statelog.UserVarDecimal:
		return decimalLiteral(raw)
	default:
		return "", fmt.Errorf("statechange: user var %q: unknown type %d", uv.Name, uv.Type)
	}
}

func int64ToFloat(bits uint64) float64 {
	return math.Float64frombits(bits)
}

// decimalLiteral decodes spec.md §4.8's packed-decimal encoding:
// (precision, scale, bytes), sign bit XOR-toggled on the first byte,
// split into an integer half and a fractional half at
// ((precision-scale)+1)/2 bytes.
func decimalLiteral(raw []byte) (string, error) {
	if len(raw) < 3 {
		return "", fmt.Errorf("statechange: decimal user var: need at least 3 bytes, got %d", len(raw))
	}
	precision := int(raw[0])
	scale := int(raw[1])
	body := append([]byte(nil), raw[2:]...)
	if len(body) == 0 {
		return "", fmt.Errorf("statechange: decimal user var: empty body")
	}
	body[0] ^= 0x80
	negative := body[0]&0x80 == 0

	split := ((precision - scale) + 1) / 2
	if split > len(body) {
		split = len(body)
	}
	hi := new(big.Int).SetBytes(body[:split])
	lo := new(big.Int).SetBytes(body[split:])

	loStr := lo.String()
	if scale > 0 {
		for len(loStr) < scale {
			loStr = "0" + loStr
		}
		if len(loStr) > scale {
			loStr = loStr[len(loStr)-scale:]
		}
	} else {
		loStr = ""
	}

	sign := ""
	if negative {
		sign = "-"
	}
	if scale == 0 {
		return sign + hi.String(), nil
	}
	return sign + hi.String() + "." + loStr, nil
}
