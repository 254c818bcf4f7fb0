package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommutativity(t *testing.T) {
	h1, err := New()
	require.NoError(t, err)
	h2 := FromModuli(h1.Moduli())

	h1.Insert([]byte("r1"))
	h1.Insert([]byte("r2"))

	h2.Insert([]byte("r2"))
	h2.Insert([]byte("r1"))

	require.True(t, h1.Equal(h2))
}

func TestInverse(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	empty := FromModuli(h.Moduli())

	h.Insert([]byte("row"))
	h.Delete([]byte("row"))

	require.True(t, h.Equal(empty))
	require.True(t, h.IsEmpty())
}

func TestIdempotentPairing(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	single := FromModuli(h.Moduli())
	single.Insert([]byte("row"))

	h.Insert([]byte("row"))
	h.Insert([]byte("row"))
	h.Delete([]byte("row"))

	require.True(t, h.Equal(single))
}

func TestCloneIsIndependentCopy(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	h.Insert([]byte("a"))

	c := h.Clone()
	require.True(t, h.Equal(c))

	c.Insert([]byte("b"))
	require.False(t, h.Equal(c))
}

func TestEncodingRoundTrip(t *testing.T) {
	h, err := New()
	require.NoError(t, err)
	h.Insert([]byte("x"))
	h.Insert([]byte("y"))
	h.Delete([]byte("x"))

	b := h.MarshalUltra()
	var got StateHash
	require.NoError(t, got.UnmarshalUltra(b))
	require.True(t, h.Equal(&got))
}
