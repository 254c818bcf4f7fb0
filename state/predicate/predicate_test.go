package predicate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArrangeSelfCoalesces(t *testing.T) {
	r := &StateRange{Intervals: []Interval{
		point(IntScalar(2)),
		point(IntScalar(1)),
		{Low: IntScalar(1), High: IntScalar(2)},
	}}
	r.arrangeSelf()
	require.Len(t, r.Intervals, 1)
	require.True(t, Equal(r.Intervals[0].Low, IntScalar(1)))
	require.True(t, Equal(r.Intervals[0].High, IntScalar(2)))
}

func TestOrFastMatchesOr(t *testing.T) {
	a := NewListRange([]Scalar{IntScalar(1), IntScalar(5)})
	b := NewListRange([]Scalar{IntScalar(3), IntScalar(5)})

	viaOr := Or(a, b)
	viaFast := OrFast(a, b)
	require.Equal(t, len(viaOr.Intervals), len(viaFast.Intervals))
	for i := range viaOr.Intervals {
		require.True(t, Equal(viaOr.Intervals[i].Low, viaFast.Intervals[i].Low))
		require.True(t, Equal(viaOr.Intervals[i].High, viaFast.Intervals[i].High))
	}
}

func TestIsIntersectsWildcard(t *testing.T) {
	w := NewWildcardRange()
	p := NewPointRange(IntScalar(7))
	require.True(t, IsIntersects(w, p))
	require.True(t, IsIntersects(p, w))
	require.True(t, IsIntersects(w, w))
}

func TestIsIntersectsDisjoint(t *testing.T) {
	a := NewPointRange(IntScalar(1))
	b := NewPointRange(IntScalar(2))
	require.False(t, IsIntersects(a, b))
}

func TestMakeRange2Between(t *testing.T) {
	item := NewLeaf("users.id", FnBetween, IntScalar(1), IntScalar(10))
	r := item.MakeRange2()
	require.Len(t, r.Intervals, 1)
	require.Equal(t, "users.id BETWEEN 1 AND 10", r.MakeWhereQuery("users.id"))
}

func TestMakeRange2CachesResult(t *testing.T) {
	item := NewLeaf("users.id", FnEq, IntScalar(42))
	r1 := item.MakeRange2()
	r2 := item.MakeRange2()
	require.Same(t, r1, r2)
}

func TestFlattenVisitsArgsAndSubqueries(t *testing.T) {
	leaf1 := NewLeaf("a.x", FnEq, IntScalar(1))
	leaf2 := NewLeaf("a.y", FnEq, IntScalar(2))
	sub := NewLeaf("b.z", FnEq, IntScalar(3))
	leaf1.SubQueryList = []*StateItem{sub}
	root := NewCombinator(CondAnd, leaf1, leaf2)

	flat := root.Flatten()
	require.Len(t, flat, 3)
}

func TestWhereQueryMultipleIntervals(t *testing.T) {
	r := NewListRange([]Scalar{IntScalar(1), IntScalar(10), IntScalar(20)})
	q := r.MakeWhereQuery("users.id")
	require.Contains(t, q, "users.id=1")
	require.Contains(t, q, "users.id=10")
	require.Contains(t, q, "users.id=20")
}

func TestEncodingRoundTrip(t *testing.T) {
	leaf := NewLeaf("orders.user_id", FnInInternal, IntScalar(7), UintScalar(9), StringScalar("s"), DoubleScalar(1.5), BoolScalar(true), NullScalar())
	root := NewCombinator(CondOr, leaf, NewLeaf("orders.total", FnGe, DoubleScalar(99.5)))

	b := root.MarshalUltra()
	var got StateItem
	require.NoError(t, got.UnmarshalUltra(b))

	require.Equal(t, root.ConditionType, got.ConditionType)
	require.Len(t, got.ArgList, 2)
	require.Equal(t, "orders.user_id", got.ArgList[0].Name)
	require.Len(t, got.ArgList[0].DataList, 6)
	require.Equal(t, "orders.total", got.ArgList[1].Name)
}
