package statechange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ogl-crest/ultraverse/state/graph"
)

func TestStateChangeContextPrimaryKeys(t *testing.T) {
	ctx := NewStateChangeContext()
	require.Nil(t, ctx.PrimaryKeys("users"))

	ctx.UpdatePrimaryKeys("users", []string{"id"})
	require.Equal(t, []string{"id"}, ctx.PrimaryKeys("users"))

	ctx.UpdatePrimaryKeys("users", []string{"id", "tenant_id"})
	require.Equal(t, []string{"id", "tenant_id"}, ctx.PrimaryKeys("users"))
}

func TestStateChangeContextForeignKeys(t *testing.T) {
	ctx := NewStateChangeContext()
	require.Empty(t, ctx.ForeignKeys())

	fk := graph.ForeignKey{FromTable: "orders", FromColumn: "user_id", ToTable: "users", ToColumn: "id"}
	ctx.UpdateForeignKeys([]graph.ForeignKey{fk})
	require.Equal(t, []graph.ForeignKey{fk}, ctx.ForeignKeys())

	snapshot := ctx.ForeignKeys()
	snapshot[0].ToTable = "mutated"
	require.Equal(t, "users", ctx.ForeignKeys()[0].ToTable)
}

func TestStateChangeContextRenameChain(t *testing.T) {
	ctx := NewStateChangeContext()
	require.Equal(t, "widgets", ctx.ResolveTable("widgets"))

	ctx.RenameTable("widgets", "gadgets")
	ctx.RenameTable("gadgets", "gizmos")
	require.Equal(t, "gizmos", ctx.ResolveTable("widgets"))
	require.Equal(t, "gizmos", ctx.ResolveTable("gadgets"))
}

func TestStateChangeContextRenameCycleTerminates(t *testing.T) {
	ctx := NewStateChangeContext()
	ctx.RenameTable("a", "b")
	ctx.RenameTable("b", "a")
	require.NotPanics(t, func() { ctx.ResolveTable("a") })
}

func TestStateChangeContextAutoIncrement(t *testing.T) {
	ctx := NewStateChangeContext()
	require.Equal(t, uint64(0), ctx.AutoIncrement("orders"))

	ctx.ObserveAutoIncrement("orders", 5)
	require.Equal(t, uint64(5), ctx.AutoIncrement("orders"))

	ctx.ObserveAutoIncrement("orders", 3)
	require.Equal(t, uint64(5), ctx.AutoIncrement("orders"))

	ctx.ObserveAutoIncrement("orders", 9)
	require.Equal(t, uint64(9), ctx.AutoIncrement("orders"))
}
