package debug

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/varscope/internal/debug/dap"
)

// fakeResolver serves canned variables responses and records every
// reference it was asked for.
type fakeResolver struct {
	children map[int][]dap.Variable
	fail     map[int]error
	requests []int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		children: make(map[int][]dap.Variable),
		fail:     make(map[int]error),
	}
}

func (r *fakeResolver) Variables(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error) {
	r.requests = append(r.requests, args.VariablesReference)
	if err, ok := r.fail[args.VariablesReference]; ok {
		return nil, err
	}
	return r.children[args.VariablesReference], nil
}

func leaf(name, value string) dap.Variable {
	return dap.Variable{Name: name, Value: value}
}

func container(name, value string, ref int) dap.Variable {
	return dap.Variable{Name: name, Value: value, VariablesReference: ref}
}

func lazyContainer(name, value string, ref int) dap.Variable {
	v := container(name, value, ref)
	v.PresentationHint = &dap.VariablePresentationHint{Lazy: true}
	return v
}

func fetchRefs(t *testing.T, f *TreeFetcher, refs []int, force bool) []*VariableNode {
	t.Helper()
	nodes, err := f.FetchVariables(context.Background(), FetchContext{
		SessionID: "s1",
		FrameID:   1,
		Refs:      refs,
		Force:     force,
	})
	require.NoError(t, err)
	return nodes
}

func nodeRefs(nodes []*VariableNode) []int {
	refs := make([]int, len(nodes))
	for i, n := range nodes {
		refs[i] = n.Ref
	}
	return refs
}

func TestFetchSkipsZeroHandle(t *testing.T) {
	resolver := newFakeResolver()
	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes := fetchRefs(t, f, []int{0}, false)
	assert.Empty(t, nodes)
	assert.Empty(t, resolver.requests, "zero is the no-children sentinel, never requested")
}

func TestFetchRecursesIntoChildren(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[100] = []dap.Variable{
		leaf("x", "5"),
		container("arr", "[1,2]", 200),
	}
	resolver.children[200] = []dap.Variable{
		leaf("0", "1"),
		leaf("1", "2"),
	}

	store := NewMemoryStore()
	f := NewTreeFetcher(resolver, store)

	nodes := fetchRefs(t, f, []int{100}, false)

	assert.Equal(t, []int{100, 200}, nodeRefs(nodes))
	assert.Equal(t, []int{100, 200}, resolver.requests)

	refs := store.FetchedRefs("s1")
	assert.Contains(t, refs, 100)
	assert.Contains(t, refs, 200)
}

func TestFetchDepthFirstOrder(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[1] = []dap.Variable{container("inner", "{...}", 2)}
	resolver.children[2] = []dap.Variable{container("deep", "{...}", 3)}
	resolver.children[3] = []dap.Variable{leaf("v", "1")}
	resolver.children[4] = []dap.Variable{leaf("w", "2")}

	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes := fetchRefs(t, f, []int{1, 4}, false)
	assert.Equal(t, []int{1, 2, 3, 4}, nodeRefs(nodes),
		"each node is followed by its descendants before the next sibling")
}

func TestFetchDepthCutoff(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[1] = []dap.Variable{container("inner", "{...}", 2)}
	resolver.children[2] = []dap.Variable{leaf("v", "1")}

	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes, err := f.FetchVariablesDepth(context.Background(), FetchContext{
		SessionID: "s1",
		Refs:      []int{1},
	}, 0)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, nodeRefs(nodes), "at the bound the node itself is still fetched")
	assert.Equal(t, []int{1}, resolver.requests, "but its children are not expanded")
}

func TestFetchSkipsAlreadyFetchedHandle(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[7] = []dap.Variable{leaf("v", "1")}

	store := NewMemoryStore()
	store.MarkFetched("s1", 7)
	f := NewTreeFetcher(resolver, store)

	nodes := fetchRefs(t, f, []int{7}, false)
	assert.Empty(t, nodes)
	assert.Empty(t, resolver.requests)
}

func TestFetchSkipsDuplicateInSameBatch(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[5] = []dap.Variable{leaf("v", "1")}

	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes := fetchRefs(t, f, []int{5, 5}, false)
	assert.Equal(t, []int{5}, nodeRefs(nodes))
	assert.Equal(t, []int{5}, resolver.requests)
}

func TestFetchSkipsFetchedChild(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[1] = []dap.Variable{
		container("self", "{...}", 1), // reference cycle back to the root
		container("other", "{...}", 2),
	}
	resolver.children[2] = []dap.Variable{leaf("v", "1")}

	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes := fetchRefs(t, f, []int{1}, false)
	assert.Equal(t, []int{1, 2}, nodeRefs(nodes))
	assert.Equal(t, []int{1, 2}, resolver.requests, "the cycle edge is not followed")
}

func TestFetchLazyChildren(t *testing.T) {
	makeResolver := func() *fakeResolver {
		r := newFakeResolver()
		r.children[1] = []dap.Variable{lazyContainer("expensive", "<computed>", 2)}
		r.children[2] = []dap.Variable{leaf("v", "1")}
		return r
	}

	t.Run("skipped by default", func(t *testing.T) {
		resolver := makeResolver()
		f := NewTreeFetcher(resolver, NewMemoryStore())

		nodes := fetchRefs(t, f, []int{1}, false)
		assert.Equal(t, []int{1}, nodeRefs(nodes))
	})

	t.Run("expanded when forced", func(t *testing.T) {
		resolver := makeResolver()
		f := NewTreeFetcher(resolver, NewMemoryStore())

		nodes := fetchRefs(t, f, []int{1}, true)
		assert.Equal(t, []int{1, 2}, nodeRefs(nodes))
	})
}

func TestFetchIdentityGuard(t *testing.T) {
	resolver := newFakeResolver()
	// Fresh handle, but the display value marks an already materialized
	// object (java-debug style identity rendering).
	resolver.children[1] = []dap.Variable{container("dup", "String@8", 9)}

	store := NewMemoryStore()
	store.Publish("s1", &VariableNode{Ref: 50, Children: []dap.Variable{
		container("original", "String@8", 51),
	}})
	store.MarkFetched("s1", 50)

	f := NewTreeFetcher(resolver, store)

	nodes := fetchRefs(t, f, []int{1}, false)
	assert.Equal(t, []int{1}, nodeRefs(nodes), "known identity suppresses recursion")
	assert.Equal(t, []int{1}, resolver.requests)
}

func TestFetchIdentitySnapshotIsFixedPerCall(t *testing.T) {
	resolver := newFakeResolver()
	// The root's own children introduce the identity "Obj@1"; within
	// the same call that must not suppress recursion into them.
	resolver.children[1] = []dap.Variable{container("a", "Obj@1", 2)}
	resolver.children[2] = []dap.Variable{leaf("v", "1")}

	store := NewMemoryStore()
	f := NewTreeFetcher(resolver, store)

	nodes := fetchRefs(t, f, []int{1}, false)
	assert.Equal(t, []int{1, 2}, nodeRefs(nodes))

	// A later call sees the identity through the store.
	resolver.children[3] = []dap.Variable{container("b", "Obj@1", 4)}
	nodes = fetchRefs(t, f, []int{3}, false)
	assert.Equal(t, []int{3}, nodeRefs(nodes))
}

func TestFetchFailureKeepsPartialResults(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[1] = []dap.Variable{leaf("v", "1")}
	resolver.fail[2] = errors.New("adapter went away")

	store := NewMemoryStore()
	f := NewTreeFetcher(resolver, store)

	_, err := f.FetchVariables(context.Background(), FetchContext{
		SessionID: "s1",
		Refs:      []int{1, 2},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "resolve children of 2")

	node, ok := store.Node("s1", 1)
	require.True(t, ok, "nodes published before the failure survive")
	assert.Equal(t, "v", node.Children[0].Name)

	_, ok = store.Node("s1", 2)
	assert.False(t, ok)
}

func TestFetchPublishesBeforeRecursing(t *testing.T) {
	resolver := newFakeResolver()
	resolver.children[1] = []dap.Variable{container("inner", "{...}", 2)}
	resolver.fail[2] = errors.New("timeout")

	store := NewMemoryStore()
	f := NewTreeFetcher(resolver, store)

	_, err := f.FetchVariables(context.Background(), FetchContext{
		SessionID: "s1",
		Refs:      []int{1},
	})
	require.Error(t, err)

	_, ok := store.Node("s1", 1)
	assert.True(t, ok, "parent was published before its child failed")
}

func TestFetchEmptyRefs(t *testing.T) {
	resolver := newFakeResolver()
	f := NewTreeFetcher(resolver, NewMemoryStore())

	nodes := fetchRefs(t, f, nil, false)
	assert.Empty(t, nodes)
	assert.Empty(t, resolver.requests)
}
