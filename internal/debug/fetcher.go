package debug

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/varscope/internal/debug/dap"
)

// DefaultMaxDepth bounds tree fetches that do not choose their own
// depth. At the bound a reference is still resolved into a node, but
// its children are not expanded further.
const DefaultMaxDepth = 10

// VariablesResolver issues a single variables request against the
// debug adapter. *dap.Client and *Session both satisfy it.
type VariablesResolver interface {
	Variables(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error)
}

// FetchContext describes one tree-fetch invocation. It is created per
// call and discarded when the call returns.
//
// Parent and Scope are caller bookkeeping: at most one is set, and the
// fetcher never reads either. Recursive calls carry the just-created
// node as Parent.
type FetchContext struct {
	// SessionID selects the session's variable state in the store.
	SessionID string

	// FrameID is the stack frame this fetch is rooted at.
	FrameID int

	// Refs are the references to resolve, in order. Zero entries are
	// skipped; zero is the protocol's "no children" sentinel and is
	// never sent in a request.
	Refs []int

	// Parent is the node whose children are being resolved, if any.
	Parent *VariableNode

	// Scope is the scope the fetch started from, if any.
	Scope *VariableScope

	// Force expands children the adapter marked lazy.
	Force bool
}

// TreeFetcher materializes a session's variable graph by resolving
// references depth-first and publishing each resulting node to the
// session's variable store as it is created.
//
// Fetch calls are serialized per session: the reference and identity
// dedup sets are only coherent within a single traversal, and two
// interleaved traversals would resolve the same subtrees twice.
type TreeFetcher struct {
	resolver VariablesResolver
	store    VariableStore
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// FetcherOption configures a TreeFetcher.
type FetcherOption func(*TreeFetcher)

// WithFetcherLogger sets the fetcher logger. The default is a no-op
// logger.
func WithFetcherLogger(logger *zap.Logger) FetcherOption {
	return func(f *TreeFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewTreeFetcher creates a fetcher that resolves through resolver and
// publishes into store.
func NewTreeFetcher(resolver VariablesResolver, store VariableStore, opts ...FetcherOption) *TreeFetcher {
	f := &TreeFetcher{
		resolver: resolver,
		store:    store,
		logger:   zap.NewNop(),
		sessions: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchVariables resolves fc.Refs and their eligible descendants up to
// DefaultMaxDepth. See FetchVariablesDepth.
func (f *TreeFetcher) FetchVariables(ctx context.Context, fc FetchContext) ([]*VariableNode, error) {
	return f.FetchVariablesDepth(ctx, fc, DefaultMaxDepth)
}

// FetchVariablesDepth resolves fc.Refs and recurses into each node's
// eligible children until maxDepth. The returned sequence is
// depth-first, left-to-right: each node is followed by its fully
// recursed descendants before the next sibling's subtree begins.
//
// Every successfully resolved node is published to the store before
// recursion continues, so nodes fetched before a failure remain
// available even though the call itself returns the error. The first
// failed protocol request aborts the whole call; nothing is retried.
func (f *TreeFetcher) FetchVariablesDepth(ctx context.Context, fc FetchContext, maxDepth int) ([]*VariableNode, error) {
	mu := f.sessionLock(fc.SessionID)
	mu.Lock()
	defer mu.Unlock()

	tr := &traversal{
		refs: f.store.FetchedRefs(fc.SessionID),
		ids:  f.store.KnownIdentities(fc.SessionID),
	}
	return f.fetch(ctx, fc, tr, maxDepth, 0)
}

// sessionLock returns the mutex serializing fetches for a session.
func (f *TreeFetcher) sessionLock(sessionID string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()

	mu, ok := f.sessions[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		f.sessions[sessionID] = mu
	}
	return mu
}

// traversal carries the dedup state of one top-level fetch. Both sets
// are snapshots of the store taken when the call started; refs grows
// as the traversal resolves references, ids stays fixed for the whole
// call.
type traversal struct {
	refs map[int]struct{}
	ids  map[string]struct{}
}

// refFetched is the structural cycle check: has this reference already
// been resolved, either in an earlier call or earlier in this one.
func (t *traversal) refFetched(ref int) bool {
	_, ok := t.refs[ref]
	return ok
}

// identityKnown is the content-based cycle check: some adapters (the
// Java debug adapter is the known case) hand out a fresh reference for
// every occurrence of the same object and signal identity only through
// a stable display value such as "String@8". A known identity means
// the subtree is already materialized, even though the reference
// itself was never fetched. Two distinct objects with equal display
// values are indistinguishable here; that imprecision is deliberate.
func (t *traversal) identityKnown(value string) bool {
	_, ok := t.ids[value]
	return ok
}

func (t *traversal) markFetched(ref int) {
	t.refs[ref] = struct{}{}
}

func (f *TreeFetcher) fetch(ctx context.Context, fc FetchContext, tr *traversal, maxDepth, depth int) ([]*VariableNode, error) {
	var nodes []*VariableNode

	for _, ref := range fc.Refs {
		if ref == 0 || tr.refFetched(ref) {
			continue
		}

		children, err := f.resolver.Variables(ctx, dap.VariablesArguments{
			VariablesReference: ref,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve children of %d: %w", ref, err)
		}

		tr.markFetched(ref)
		f.store.MarkFetched(fc.SessionID, ref)

		node := &VariableNode{
			Ref:      ref,
			FrameID:  fc.FrameID,
			Children: children,
		}
		nodes = append(nodes, node)
		f.store.Publish(fc.SessionID, node)

		f.logger.Debug("resolved variables reference",
			zap.String("session", fc.SessionID),
			zap.Int("ref", ref),
			zap.Int("children", len(children)),
			zap.Int("depth", depth))

		if depth >= maxDepth {
			continue
		}

		eligible := f.eligibleChildren(fc, node, tr)
		if len(eligible) == 0 {
			continue
		}

		child := fc
		child.Refs = eligible
		child.Parent = node
		child.Scope = nil

		sub, err := f.fetch(ctx, child, tr, maxDepth, depth+1)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, sub...)
	}

	return nodes, nil
}

// eligibleChildren selects the child references worth recursing into:
// real references that no traversal has resolved, that are not lazy
// unless the caller forces expansion, and whose value identity is not
// already materialized in the session.
func (f *TreeFetcher) eligibleChildren(fc FetchContext, node *VariableNode, tr *traversal) []int {
	var refs []int
	for _, child := range node.Children {
		if !child.HasChildren() {
			continue
		}
		if tr.refFetched(child.VariablesReference) {
			continue
		}
		if child.IsLazy() && !fc.Force {
			continue
		}
		if tr.identityKnown(child.Value) {
			continue
		}
		refs = append(refs, child.VariablesReference)
	}
	return refs
}
