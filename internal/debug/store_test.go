package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/varscope/internal/debug/dap"
)

func TestStoreSetsAreCopies(t *testing.T) {
	store := NewMemoryStore()
	store.MarkFetched("s1", 10)

	refs := store.FetchedRefs("s1")
	refs[99] = struct{}{}

	assert.NotContains(t, store.FetchedRefs("s1"), 99, "returned sets are snapshots")
	assert.Contains(t, store.FetchedRefs("s1"), 10)
}

func TestStorePublishRecordsIdentities(t *testing.T) {
	store := NewMemoryStore()
	store.Publish("s1", &VariableNode{Ref: 1, Children: []dap.Variable{
		{Name: "a", Value: "Obj@1"},
		{Name: "b", Value: "Obj@2", VariablesReference: 2},
	}})

	ids := store.KnownIdentities("s1")
	assert.Contains(t, ids, "Obj@1")
	assert.Contains(t, ids, "Obj@2")
}

func TestStorePublishIdempotentPerRef(t *testing.T) {
	store := NewMemoryStore()
	store.Publish("s1", &VariableNode{Ref: 1, Children: []dap.Variable{{Name: "old"}}})
	store.Publish("s1", &VariableNode{Ref: 1, Children: []dap.Variable{{Name: "new"}}})

	nodes := store.Nodes("s1")
	require.Len(t, nodes, 1, "re-publishing a reference replaces, not appends")
	assert.Equal(t, "new", nodes[0].Children[0].Name)
}

func TestStorePublishOrder(t *testing.T) {
	store := NewMemoryStore()
	store.Publish("s1", &VariableNode{Ref: 3})
	store.Publish("s1", &VariableNode{Ref: 1})
	store.Publish("s1", &VariableNode{Ref: 2})

	nodes := store.Nodes("s1")
	assert.Equal(t, []int{3, 1, 2}, nodeRefs(nodes))
}

func TestStoreSessionsAreIsolated(t *testing.T) {
	store := NewMemoryStore()
	store.MarkFetched("s1", 1)
	store.Publish("s1", &VariableNode{Ref: 1, Children: []dap.Variable{{Value: "X@1"}}})

	assert.Empty(t, store.FetchedRefs("s2"))
	assert.Empty(t, store.KnownIdentities("s2"))
	assert.Empty(t, store.Nodes("s2"))
}

func TestStoreReset(t *testing.T) {
	store := NewMemoryStore()
	store.MarkFetched("s1", 1)
	store.Publish("s1", &VariableNode{Ref: 1})
	store.MarkFetched("s2", 2)

	store.Reset("s1")

	assert.Empty(t, store.FetchedRefs("s1"))
	assert.Empty(t, store.Nodes("s1"))
	assert.Contains(t, store.FetchedRefs("s2"), 2, "other sessions unaffected")
}

func TestStoreOnPublish(t *testing.T) {
	store := NewMemoryStore()

	var seen []int
	store.OnPublish(func(sessionID string, node *VariableNode) {
		seen = append(seen, node.Ref)
	})

	store.Publish("s1", &VariableNode{Ref: 1})
	store.Publish("s1", &VariableNode{Ref: 2})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestStoreNodeLookup(t *testing.T) {
	store := NewMemoryStore()
	store.Publish("s1", &VariableNode{Ref: 7, FrameID: 3})

	node, ok := store.Node("s1", 7)
	require.True(t, ok)
	assert.Equal(t, 3, node.FrameID)

	_, ok = store.Node("s1", 8)
	assert.False(t, ok)
}
