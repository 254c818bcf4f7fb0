package statechange

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/statelog"
)

func TestQuoteIdent(t *testing.T) {
	require.Equal(t, "`col`", quoteIdent("col"))
	require.Equal(t, "`we``ird`", quoteIdent("we`ird"))
}

func TestUserVarLiteralNull(t *testing.T) {
	lit, err := userVarLiteral(statelog.UserVar{IsNull: true})
	require.NoError(t, err)
	require.Equal(t, "NULL", lit)
}

func TestUserVarLiteralString(t *testing.T) {
	lit, err := userVarLiteral(statelog.UserVar{Type: statelog.UserVarString, Value: "ab"})
	require.NoError(t, err)
	require.Equal(t, "_binary 0x6162", lit)
}

func TestUserVarLiteralInt(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(int64(-42)))
	lit, err := userVarLiteral(statelog.UserVar{Type: statelog.UserVarInt, Value: string(buf)})
	require.NoError(t, err)
	require.Equal(t, "-42", lit)
}

func TestUserVarLiteralUnsignedInt(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, 42)
	lit, err := userVarLiteral(statelog.UserVar{Type: statelog.UserVarInt, Value: string(buf), IsUnsigned: true})
	require.NoError(t, err)
	require.Equal(t, "42", lit)
}

func TestUserVarLiteralReal(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(3.5))
	lit, err := userVarLiteral(statelog.UserVar{Type: statelog.UserVarReal, Value: string(buf)})
	require.NoError(t, err)
	require.Equal(t, "3.5", lit)
}

func TestUserVarLiteralRealWrongLength(t *testing.T) {
	_, err := userVarLiteral(statelog.UserVar{Type: statelog.UserVarReal, Value: "short"})
	require.Error(t, err)
}

func TestDecimalLiteralPositive(t *testing.T) {
	// precision=1, scale=0: single-byte body, pre-toggle 0x01 becomes
	// 0x81 after the sign-bit XOR, whose top bit reads as non-negative.
	raw := []byte{1, 0, 0x01}
	lit, err := decimalLiteral(raw)
	require.NoError(t, err)
	require.Equal(t, "129", lit)
}

func TestDecimalLiteralNegative(t *testing.T) {
	// pre-toggle 0x81 becomes 0x01 after the XOR, whose cleared top bit
	// reads as negative.
	raw := []byte{1, 0, 0x81}
	lit, err := decimalLiteral(raw)
	require.NoError(t, err)
	require.Equal(t, "-1", lit)
}

func TestDecimalLiteralWithScale(t *testing.T) {
	// precision=5, scale=2 -> split = ((5-2)+1)/2 = 2: a 2-byte integer
	// half and a 1-byte fractional half, fractional half left-padded to
	// scale digits.
	raw := []byte{5, 2, 0x01, 0x23, 0x05}
	lit, err := decimalLiteral(raw)
	require.NoError(t, err)
	require.Equal(t, "33059.05", lit)
}

func TestDecimalLiteralTooShort(t *testing.T) {
	_, err := decimalLiteral([]byte{1, 2})
	require.Error(t, err)
}
