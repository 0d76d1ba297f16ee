package debug

import (
	"sync"

	"github.com/dshills/varscope/internal/debug/dap"
)

// VariableStore is the session-scoped sink and dedup memory for fetched
// variable nodes. The fetcher reads snapshots of both sets at the start
// of a traversal, marks references as it resolves them, and publishes
// every node immediately so partial progress survives a later failure.
//
// Publish must not block and must be idempotent per reference: the
// same node published twice replaces the earlier entry instead of
// duplicating it.
type VariableStore interface {
	// FetchedRefs returns a copy of the session's resolved references.
	FetchedRefs(sessionID string) map[int]struct{}

	// KnownIdentities returns a copy of the session's value-identity
	// strings across all published nodes.
	KnownIdentities(sessionID string) map[string]struct{}

	// MarkFetched records that ref has been resolved for the session.
	MarkFetched(sessionID string, ref int)

	// Publish appends one node to the session's variable state.
	Publish(sessionID string, node *VariableNode)
}

// NodeHandler observes nodes as they are published.
type NodeHandler func(sessionID string, node *VariableNode)

// MemoryStore is the in-process VariableStore. Variable state is
// session-local and dies with the process; reference handles do not
// outlive adapter-side execution state anyway.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionVariables
	handlers []NodeHandler
}

type sessionVariables struct {
	fetched map[int]struct{}
	ids     map[string]struct{}
	nodes   []*VariableNode
	byRef   map[int]int // ref -> index into nodes
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionVariables),
	}
}

// OnPublish registers a handler called after each node is stored.
// Handlers run synchronously on the publishing goroutine and must not
// block.
func (s *MemoryStore) OnPublish(handler NodeHandler) {
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

func (s *MemoryStore) session(sessionID string) *sessionVariables {
	sv, ok := s.sessions[sessionID]
	if !ok {
		sv = &sessionVariables{
			fetched: make(map[int]struct{}),
			ids:     make(map[string]struct{}),
			byRef:   make(map[int]int),
		}
		s.sessions[sessionID] = sv
	}
	return sv
}

// FetchedRefs returns a copy of the resolved-reference set.
func (s *MemoryStore) FetchedRefs(sessionID string) map[int]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.sessions[sessionID]
	if !ok {
		return map[int]struct{}{}
	}

	refs := make(map[int]struct{}, len(sv.fetched))
	for ref := range sv.fetched {
		refs[ref] = struct{}{}
	}
	return refs
}

// KnownIdentities returns a copy of the value-identity set.
func (s *MemoryStore) KnownIdentities(sessionID string) map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.sessions[sessionID]
	if !ok {
		return map[string]struct{}{}
	}

	ids := make(map[string]struct{}, len(sv.ids))
	for id := range sv.ids {
		ids[id] = struct{}{}
	}
	return ids
}

// MarkFetched records ref as resolved for the session.
func (s *MemoryStore) MarkFetched(sessionID string, ref int) {
	s.mu.Lock()
	s.session(sessionID).fetched[ref] = struct{}{}
	s.mu.Unlock()
}

// Publish stores one node and records its children's value identities.
// Re-publishing a reference replaces the stored node in place.
func (s *MemoryStore) Publish(sessionID string, node *VariableNode) {
	s.mu.Lock()
	sv := s.session(sessionID)

	if i, ok := sv.byRef[node.Ref]; ok {
		sv.nodes[i] = node
	} else {
		sv.byRef[node.Ref] = len(sv.nodes)
		sv.nodes = append(sv.nodes, node)
	}

	for _, child := range node.Children {
		sv.ids[child.Value] = struct{}{}
	}

	handlers := make([]NodeHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(sessionID, node)
	}
}

// Nodes returns the session's published nodes in publish order.
func (s *MemoryStore) Nodes(sessionID string) []*VariableNode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return append([]*VariableNode{}, sv.nodes...)
}

// Node returns the published node for ref, if any.
func (s *MemoryStore) Node(sessionID string, ref int) (*VariableNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sv, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	i, ok := sv.byRef[ref]
	if !ok {
		return nil, false
	}
	return sv.nodes[i], true
}

// Reset drops all variable state for the session. Called when the
// debuggee resumes, since reference handles die on continue/step.
func (s *MemoryStore) Reset(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// VariableNode is the materialized result of resolving one variables
// reference: the originating request plus the ordered child
// descriptors the adapter returned. The node owns its descriptor
// slice.
type VariableNode struct {
	// Ref is the reference that was resolved.
	Ref int

	// FrameID is the stack frame the fetch was rooted at.
	FrameID int

	// Children are the adapter's child descriptors, in response order.
	Children []dap.Variable
}
