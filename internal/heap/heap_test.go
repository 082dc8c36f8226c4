package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uow/internal/command"
	"github.com/roach88/uow/internal/ir"
)

type user struct{ name string }

func TestHeap_AttachGetDetach(t *testing.T) {
	h := NewHeap()
	u := &user{name: "ada"}
	node := NewNode("user", Loaded, ir.Row{"id": ir.Int(1)})

	h.Attach(u, node)
	got, ok := h.Get(u)
	require.True(t, ok)
	assert.Same(t, node, got)
	assert.Equal(t, NodeID(0), node.ID())
	assert.Equal(t, 1, h.Len())

	h.Detach(u)
	_, ok = h.Get(u)
	assert.False(t, ok)
	assert.Equal(t, NodeID(-1), node.ID())
	assert.Equal(t, 0, h.Len())
}

func TestHeap_IdentityNotEquality(t *testing.T) {
	h := NewHeap()
	a := &user{name: "same"}
	b := &user{name: "same"}

	h.Attach(a, NewNode("user", New, nil))
	assert.True(t, h.Has(a))
	assert.False(t, h.Has(b), "equal values with different identity are distinct")
}

func TestHeap_ReattachKeepsSlot(t *testing.T) {
	h := NewHeap()
	u := &user{}
	first := NewNode("user", New, nil)
	second := NewNode("user", Loaded, nil)

	h.Attach(u, first)
	h.Attach(u, second)

	got, ok := h.Node(first.ID())
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, h.Len())
}

func TestHeap_DetachUnknownIsNoop(t *testing.T) {
	h := NewHeap()
	assert.NotPanics(t, func() { h.Detach(&user{}) })
}

func TestHeap_Find(t *testing.T) {
	h := NewHeap()
	u1, u2 := &user{}, &user{}
	h.Attach(u1, NewNode("user", Loaded, ir.Row{"id": ir.Int(1)}))
	h.Attach(u2, NewNode("user", Loaded, ir.Row{"id": ir.Int(2)}))
	h.Attach(&user{}, NewNode("post", Loaded, ir.Row{"id": ir.Int(2)}))

	got, ok := h.Find("user", "id", ir.Int(2))
	require.True(t, ok)
	assert.Same(t, u2, got)

	_, ok = h.Find("user", "id", ir.Int(3))
	assert.False(t, ok)

	_, ok = h.Find("user", "id", ir.Null{})
	assert.False(t, ok)
}

func TestHeap_Select(t *testing.T) {
	h := NewHeap()
	p1, p2, p3 := &user{}, &user{}, &user{}
	h.Attach(p1, NewNode("post", Loaded, ir.Row{"user_id": ir.Int(1), "id": ir.Int(10)}))
	h.Attach(p2, NewNode("post", Loaded, ir.Row{"user_id": ir.Int(2), "id": ir.Int(11)}))
	h.Attach(p3, NewNode("post", Loaded, ir.Row{"user_id": ir.Int(1), "id": ir.Int(12)}))

	got := h.Select("post", ir.Row{"user_id": ir.Int(1)})
	require.Len(t, got, 2)
	assert.Same(t, p1, got[0])
	assert.Same(t, p3, got[1])

	assert.Len(t, h.Select("post", ir.Row{"user_id": ir.Int(1), "id": ir.Int(12)}), 1)
	assert.Empty(t, h.Select("post", ir.Row{"user_id": ir.Null{}}))

	h.Detach(p1)
	assert.Len(t, h.Select("post", ir.Row{"user_id": ir.Int(1)}), 1)
}

func TestHeap_EntityAndNodeSlots(t *testing.T) {
	h := NewHeap()
	u := &user{}
	node := NewNode("user", New, nil)
	h.Attach(u, node)

	e, ok := h.Entity(node.ID())
	require.True(t, ok)
	assert.Same(t, u, e)

	_, ok = h.Node(NodeID(5))
	assert.False(t, ok)
}

func TestHeap_BeginCycleResetsVisited(t *testing.T) {
	h := NewHeap()
	node := NewNode("user", Loaded, nil)
	h.Attach(&user{}, node)

	node.MarkVisited("posts")
	require.True(t, node.Visited("posts"))

	h.BeginCycle()
	assert.False(t, node.Visited("posts"))
}

func TestHeap_Clean(t *testing.T) {
	h := NewHeap()
	u := &user{}
	h.Attach(u, NewNode("user", Loaded, nil))

	h.Clean()
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Has(u))
}

// =============================================================================
// Node Tests
// =============================================================================

func TestNode_DataIsOwned(t *testing.T) {
	src := ir.Row{"name": ir.String("ada")}
	node := NewNode("user", New, src)
	src["name"] = ir.String("grace")

	data := node.Data()
	data["name"] = ir.String("linus")

	assert.Equal(t, ir.String("ada"), node.Get("name"))
}

func TestNode_SetDataFiresListenersOnChange(t *testing.T) {
	node := NewNode("user", Loaded, ir.Row{"id": ir.Int(1)})
	var seen []ir.Value
	node.OnChange(func(n *Node) { seen = append(seen, n.Get("id")) })

	node.SetData(ir.Row{"id": ir.Int(1)})
	assert.Empty(t, seen, "no change, no listener call")
	assert.Equal(t, 0, node.Version())

	node.SetData(ir.Row{"id": ir.Int(2)})
	assert.Equal(t, []ir.Value{ir.Int(2)}, seen)
	assert.Equal(t, 1, node.Version())
}

func TestNode_SetDataMerges(t *testing.T) {
	node := NewNode("user", Loaded, ir.Row{"id": ir.Int(1), "name": ir.String("a")})
	node.SetData(ir.Row{"name": ir.String("b")})

	assert.Equal(t, ir.Row{"id": ir.Int(1), "name": ir.String("b")}, node.Data())
}

func TestNode_ReplaceData(t *testing.T) {
	node := NewNode("user", Loaded, ir.Row{"id": ir.Int(1), "name": ir.String("a")})
	calls := 0
	node.OnChange(func(*Node) { calls++ })

	node.ReplaceData(ir.Row{"id": ir.Int(1)})
	assert.Equal(t, ir.Row{"id": ir.Int(1)}, node.Data())
	assert.Equal(t, 1, calls)

	node.ReplaceData(ir.Row{"id": ir.Int(1)})
	assert.Equal(t, 1, calls)
}

func TestNode_ListenerAddedDuringFireWaits(t *testing.T) {
	node := NewNode("user", Loaded, nil)
	late := 0
	node.OnChange(func(n *Node) {
		n.OnChange(func(*Node) { late++ })
	})

	node.SetData(ir.Row{"id": ir.Int(1)})
	assert.Equal(t, 0, late)

	node.SetData(ir.Row{"id": ir.Int(2)})
	assert.Equal(t, 1, late)
}

func TestNode_RelationsAndActiveCommand(t *testing.T) {
	node := NewNode("user", Loaded, nil)
	assert.False(t, node.HasRelation("posts"))

	node.SetRelation("posts", nil)
	assert.True(t, node.HasRelation("posts"), "explicit nil is a recorded slot")
	assert.Nil(t, node.Relation("posts"))

	cmd := command.NewNil()
	node.SetActiveCommand(cmd)
	assert.Same(t, cmd, node.ActiveCommand())
	node.SetActiveCommand(nil)
	assert.Nil(t, node.ActiveCommand())
}

func TestLifecycle_String(t *testing.T) {
	assert.Equal(t, "new", New.String())
	assert.Equal(t, "scheduled_insert", ScheduledInsert.String())
	assert.Equal(t, "scheduled_update", ScheduledUpdate.String())
	assert.Equal(t, "scheduled_delete", ScheduledDelete.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.True(t, ScheduledDelete.Scheduled())
	assert.False(t, Loaded.Scheduled())
}

func TestNode_CancelListener(t *testing.T) {
	node := NewNode("user", Loaded, nil)
	calls := 0
	cancel := node.OnChange(func(*Node) { calls++ })
	require.Equal(t, 1, node.Listeners())

	node.SetData(ir.Row{"id": ir.Int(1)})
	cancel()
	cancel()
	node.SetData(ir.Row{"id": ir.Int(2)})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, node.Listeners())
}

func TestNode_CancelDuringFireSkipsLaterListener(t *testing.T) {
	node := NewNode("user", Loaded, nil)
	second := 0
	var cancelSecond func()
	node.OnChange(func(*Node) { cancelSecond() })
	cancelSecond = node.OnChange(func(*Node) { second++ })

	node.SetData(ir.Row{"id": ir.Int(1)})
	assert.Equal(t, 0, second)
}
