package statechange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/cluster"
	"github.com/ogl-crest/ultraverse/state/graph"
	"github.com/ogl-crest/ultraverse/state/predicate"
	"github.com/ogl-crest/ultraverse/state/statelog"
)

func writeSampleStateLog(t *testing.T, dir, name string) {
	t.Helper()
	w, err := statelog.OpenWriter(dir, name)
	require.NoError(t, err)
	defer w.Close()

	tx := statelog.NewTransaction(1, 100, 1700000000)
	tx.Append(&statelog.Query{
		Type:         statelog.QueryUpdate,
		Statement:    "UPDATE orders SET status='shipped' WHERE id=42",
		ReadColumns:  []string{"orders.id"},
		WriteColumns: []string{"orders.id"},
		ReadSet:      []*predicate.StateItem{predicate.NewLeaf("orders.id", predicate.FnEq, predicate.IntScalar(42))},
		WriteSet:     []*predicate.StateItem{predicate.NewLeaf("orders.id", predicate.FnEq, predicate.IntScalar(42))},
	})
	require.NoError(t, w.Append(tx))
}

func TestResolveLeafPlain(t *testing.T) {
	leaf := predicate.NewLeaf("orders.id", predicate.FnEq, predicate.IntScalar(5))
	resolved, item := resolveLeaf(leaf, nil, cluster.NewAliasMap(), nil)
	require.Equal(t, "orders.id", resolved)
	require.Same(t, leaf, item)
}

func TestResolveLeafFollowsForeignKey(t *testing.T) {
	fks := []graph.ForeignKey{{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"}}
	leaf := predicate.NewLeaf("orders.user_id", predicate.FnEq, predicate.IntScalar(3))
	resolved, _ := resolveLeaf(leaf, fks, cluster.NewAliasMap(), nil)
	require.Equal(t, "users.id", resolved)
}

func TestResolveLeafAlias(t *testing.T) {
	aliases := cluster.NewAliasMap()
	real := predicate.NewLeaf("users.id", predicate.FnEq, predicate.IntScalar(99))
	aliases.AddAlias("users.id", predicate.NewLeaf("users.id", predicate.FnEq, predicate.StringScalar("alice")), real)

	leaf := predicate.NewLeaf("users.id", predicate.FnEq, predicate.StringScalar("alice"))
	resolved, item := resolveLeaf(leaf, nil, aliases, nil)
	require.Equal(t, "users.id", resolved)
	require.Same(t, real, item)
}

func TestRangesForCompositeFillsWildcardForMissingColumns(t *testing.T) {
	flattened := []*predicate.StateItem{
		predicate.NewLeaf("orders.tenant_id", predicate.FnEq, predicate.IntScalar(1)),
	}
	ranges, ok := rangesForComposite([]string{"orders.tenant_id", "orders.region"}, flattened, nil, cluster.NewAliasMap(), nil)
	require.True(t, ok)
	require.Len(t, ranges, 2)
	require.False(t, ranges[0].Wildcard)
	require.True(t, ranges[1].Wildcard)
}

func TestRangesForCompositeNoMatchAtAll(t *testing.T) {
	flattened := []*predicate.StateItem{
		predicate.NewLeaf("unrelated.col", predicate.FnEq, predicate.IntScalar(1)),
	}
	_, ok := rangesForComposite([]string{"tenant_id", "region"}, flattened, nil, cluster.NewAliasMap(), nil)
	require.False(t, ok)
}

func TestMakeClusterBuildsAndPersistsAuxFiles(t *testing.T) {
	dir := t.TempDir()
	name := "sample"
	writeSampleStateLog(t, dir, name)

	sc := New(nil, nil, 1)
	plan := &StateChangePlan{
		StateLogPath:    dir,
		StateLogName:    name,
		KeyColumnGroups: []KeyColumnGroup{{Columns: []string{"orders.id"}}},
	}
	require.NoError(t, sc.MakeCluster(plan))

	rc := cluster.New()
	require.NoError(t, statelog.ReadAux(dir, name, statelog.AuxCluster, rc))
	entries := rc.Entries("orders.id")
	require.NotEmpty(t, entries)
}
