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

package binlog

// rawColumnType mirrors the wire byte found in TABLE_MAP_EVENT's column
// type array (include/mysql_com.h's enum_field_types).
type rawColumnType uint8

const (
	typeDecimal    rawColumnType = 0
	typeTiny       rawColumnType = 1
	typeShort      rawColumnType = 2
	typeLong       rawColumnType = 3
	typeFloat      rawColumnType = 4
	typeDouble     rawColumnType = 5
	typeNull       rawColumnType = 6
	typeTimestamp  rawColumnType = 7
	typeLonglong   rawColumnType = 8
	typeInt24      rawColumnType = 9
	typeDate       rawColumnType = 10
	typeTime       rawColumnType = 11
	typeDatetime   rawColumnType = 12
	typeYear       rawColumnType = 13
	typeNewDate    rawColumnType = 14
	typeVarchar    rawColumnType = 15
	typeBit        rawColumnType = 16
	typeTimestamp2 rawColumnType = 17
	typeDatetime2  rawColumnType = 18
	typeTime2      rawColumnType = 19
	typeJSON       rawColumnType = 245
	typeNewDecimal rawColumnType = 246
	typeEnum       rawColumnType = 247
	typeSet        rawColumnType = 248
	typeTinyBlob   rawColumnType = 249
	typeMediumBlob rawColumnType = 250
	typeLongBlob   rawColumnType = 251
	typeBlob       rawColumnType = 252
	typeVarString  rawColumnType = 253
	typeString     rawColumnType = 254
	typeGeometry   rawColumnType = 255
)

func (t rawColumnType) isNumeric() bool {
	switch t {
	case typeDecimal, typeTiny, typeShort, typeLong, typeFloat, typeDouble,
		typeLonglong, typeInt24, typeNewDecimal, typeYear:
		return true
	}
	return false
}

func (t rawColumnType) isString() bool {
	switch t {
	case typeVarchar, typeVarString, typeString, typeTinyBlob, typeMediumBlob,
		typeLongBlob, typeBlob, typeJSON:
		return true
	}
	return false
}

func (t rawColumnType) isEnumSet() bool {
	return t == typeEnum || t == typeSet
}

func (t rawColumnType) logical() ColumnLogicalType {
	switch {
	case t.isNumeric() && t != typeFloat && t != typeDouble && t != typeDecimal && t != typeNewDecimal:
		return ColInteger
	case t == typeFloat || t == typeDouble:
		return ColFloat
	case t == typeDecimal || t == typeNewDecimal:
		return ColDecimal
	case t == typeDate || t == typeTime || t == typeDatetime || t == typeTimestamp ||
		t == typeTime2 || t == typeDatetime2 || t == typeTimestamp2 || t == typeYear:
		return ColDateTime
	case t.isString() || t.isEnumSet() || t == typeBit:
		return ColString
	default:
		return ColUnknown
	}
}

// metaWidth returns how many bytes of per-column metadata typ carries
// in TABLE_MAP_EVENT's metadata block, per the layout santhosh-tekuri's
// rbr.go decodes.
func metaWidth(t rawColumnType) int {
	switch t {
	case typeBlob, typeDouble, typeFloat, typeGeometry, typeJSON,
		typeTime2, typeDatetime2, typeTimestamp2:
		return 1
	case typeVarchar, typeBit, typeDecimal, typeNewDecimal,
		typeSet, typeEnum, typeVarString:
		return 2
	case typeString:
		return 2
	default:
		return 0
	}
}
