package debug

import (
	"context"
	"fmt"
	"sync"

	"github.com/dshills/varscope/internal/debug/dap"
)

// ScopeType classifies a variable scope.
type ScopeType string

const (
	// ScopeLocals represents local variables.
	ScopeLocals ScopeType = "locals"
	// ScopeArguments represents function arguments.
	ScopeArguments ScopeType = "arguments"
	// ScopeGlobals represents global variables.
	ScopeGlobals ScopeType = "globals"
	// ScopeRegisters represents CPU registers.
	ScopeRegisters ScopeType = "registers"
)

// VariableScope is a scope containing variables, rooted at a frame.
type VariableScope struct {
	// Name is the scope name as reported by the adapter.
	Name string

	// Type is the mapped scope type.
	Type ScopeType

	// FrameID is the stack frame this scope belongs to.
	FrameID int

	// VariablesReference resolves the scope's variables.
	VariablesReference int

	// NamedVariables is the number of named variables.
	NamedVariables int

	// IndexedVariables is the number of indexed variables.
	IndexedVariables int

	// Expensive indicates the adapter considers fetching costly.
	Expensive bool
}

// mapScopeType maps a DAP presentation hint to a scope type.
func mapScopeType(hint string) ScopeType {
	switch hint {
	case "locals":
		return ScopeLocals
	case "arguments":
		return ScopeArguments
	case "globals":
		return ScopeGlobals
	case "registers":
		return ScopeRegisters
	default:
		return ScopeLocals
	}
}

// Inspector provides scope listing, tree fetching, watch expressions
// and expression evaluation for one session. Fetched subtrees live in
// the session's variable store, not in the inspector.
type Inspector struct {
	session *Session
	fetcher *TreeFetcher

	mu           sync.RWMutex
	watches      []string
	watchResults []WatchResult
}

// WatchResult is the latest evaluation of one watch expression.
type WatchResult struct {
	Expression string
	Value      string
	Type       string
	Err        error
}

// NewInspector creates an inspector for session, fetching through
// fetcher.
func NewInspector(session *Session, fetcher *TreeFetcher) *Inspector {
	return &Inspector{
		session: session,
		fetcher: fetcher,
	}
}

// Scopes returns the variable scopes of a stack frame.
func (in *Inspector) Scopes(ctx context.Context, frameID int) ([]*VariableScope, error) {
	scopes, err := in.session.Scopes(ctx, frameID)
	if err != nil {
		return nil, err
	}

	result := make([]*VariableScope, len(scopes))
	for i, s := range scopes {
		result[i] = &VariableScope{
			Name:               s.Name,
			Type:               mapScopeType(s.PresentationHint),
			FrameID:            frameID,
			VariablesReference: s.VariablesReference,
			NamedVariables:     s.NamedVariables,
			IndexedVariables:   s.IndexedVariables,
			Expensive:          s.Expensive,
		}
	}
	return result, nil
}

// FetchScope materializes the variable tree rooted at a scope.
func (in *Inspector) FetchScope(ctx context.Context, scope *VariableScope, force bool) ([]*VariableNode, error) {
	return in.FetchScopeDepth(ctx, scope, force, DefaultMaxDepth)
}

// FetchScopeDepth is FetchScope with an explicit depth bound.
func (in *Inspector) FetchScopeDepth(ctx context.Context, scope *VariableScope, force bool, maxDepth int) ([]*VariableNode, error) {
	return in.fetcher.FetchVariablesDepth(ctx, FetchContext{
		SessionID: in.session.ID(),
		FrameID:   scope.FrameID,
		Refs:      []int{scope.VariablesReference},
		Scope:     scope,
		Force:     force,
	}, maxDepth)
}

// FetchChildren materializes the subtree below one child descriptor of
// an already fetched node. Used for on-demand expansion of variables
// the depth bound or lazy policy left unexpanded.
func (in *Inspector) FetchChildren(ctx context.Context, parent *VariableNode, child dap.Variable, force bool) ([]*VariableNode, error) {
	if !child.HasChildren() {
		return nil, nil
	}
	return in.fetcher.FetchVariables(ctx, FetchContext{
		SessionID: in.session.ID(),
		FrameID:   parent.FrameID,
		Refs:      []int{child.VariablesReference},
		Parent:    parent,
		Force:     force,
	})
}

// SetVariable assigns a new value to a container child and returns the
// adapter's rendering of the stored value.
func (in *Inspector) SetVariable(ctx context.Context, ref int, name, value string) (string, error) {
	return in.session.SetVariable(ctx, ref, name, value)
}

// Evaluate evaluates an expression in the given evaluation context.
func (in *Inspector) Evaluate(ctx context.Context, expression string, frameID int, evalContext string) (*dap.EvaluateResponseBody, error) {
	return in.session.Evaluate(ctx, expression, frameID, evalContext)
}

// EvaluateForHover evaluates an expression for hover display.
func (in *Inspector) EvaluateForHover(ctx context.Context, expression string, frameID int) (*dap.EvaluateResponseBody, error) {
	caps := in.session.Capabilities()
	if caps == nil || !caps.SupportsEvaluateForHovers {
		return nil, fmt.Errorf("hover evaluation not supported")
	}
	return in.Evaluate(ctx, expression, frameID, "hover")
}

// AddWatch adds a watch expression.
func (in *Inspector) AddWatch(expression string) {
	in.mu.Lock()
	in.watches = append(in.watches, expression)
	in.mu.Unlock()
}

// RemoveWatch removes a watch expression by index.
func (in *Inspector) RemoveWatch(index int) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if index < 0 || index >= len(in.watches) {
		return fmt.Errorf("watch index %d out of range", index)
	}

	in.watches = append(in.watches[:index], in.watches[index+1:]...)
	if index < len(in.watchResults) {
		in.watchResults = append(in.watchResults[:index], in.watchResults[index+1:]...)
	}
	return nil
}

// ClearWatches removes all watch expressions.
func (in *Inspector) ClearWatches() {
	in.mu.Lock()
	in.watches = nil
	in.watchResults = nil
	in.mu.Unlock()
}

// Watches returns the current watch expressions.
func (in *Inspector) Watches() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]string{}, in.watches...)
}

// WatchResults returns the most recent watch evaluations.
func (in *Inspector) WatchResults() []WatchResult {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return append([]WatchResult{}, in.watchResults...)
}

// UpdateWatches re-evaluates every watch expression against a frame.
// Individual evaluation failures are recorded in the result, not
// returned; a watch on a not-yet-declared variable is normal.
func (in *Inspector) UpdateWatches(ctx context.Context, frameID int) {
	in.mu.RLock()
	watches := append([]string{}, in.watches...)
	in.mu.RUnlock()

	results := make([]WatchResult, len(watches))
	for i, expr := range watches {
		res, err := in.Evaluate(ctx, expr, frameID, "watch")
		if err != nil {
			results[i] = WatchResult{Expression: expr, Err: err}
			continue
		}
		results[i] = WatchResult{Expression: expr, Value: res.Result, Type: res.Type}
	}

	in.mu.Lock()
	in.watchResults = results
	in.mu.Unlock()
}

// FindVariable resolves a reference and returns the child with the
// given name.
func (in *Inspector) FindVariable(ctx context.Context, ref int, name string) (*dap.Variable, error) {
	vars, err := in.session.Variables(ctx, dap.VariablesArguments{VariablesReference: ref})
	if err != nil {
		return nil, err
	}
	for i := range vars {
		if vars[i].Name == name {
			return &vars[i], nil
		}
	}
	return nil, fmt.Errorf("variable %s not found", name)
}

// VariablePath walks the published nodes of a session from rootRef and
// returns the chain of child names leading to targetRef, nil when no
// published node reaches it.
func VariablePath(store *MemoryStore, sessionID string, rootRef, targetRef int) []string {
	seen := make(map[int]struct{})
	var walk func(ref int) []string
	walk = func(ref int) []string {
		if _, ok := seen[ref]; ok {
			return nil
		}
		seen[ref] = struct{}{}
		node, ok := store.Node(sessionID, ref)
		if !ok {
			return nil
		}
		for _, child := range node.Children {
			if child.VariablesReference == targetRef {
				return []string{child.Name}
			}
			if child.VariablesReference > 0 {
				if rest := walk(child.VariablesReference); rest != nil {
					return append([]string{child.Name}, rest...)
				}
			}
		}
		return nil
	}
	return walk(rootRef)
}

// FormatVariable renders one child descriptor for display.
func FormatVariable(v dap.Variable) string {
	if v.Type != "" {
		return fmt.Sprintf("%s: %s = %s", v.Name, v.Type, v.Value)
	}
	return fmt.Sprintf("%s = %s", v.Name, v.Value)
}
