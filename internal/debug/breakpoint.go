package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dshills/varscope/internal/debug/dap"
)

// BreakpointKind classifies a user breakpoint.
type BreakpointKind int

const (
	// BreakLine stops at a source line.
	BreakLine BreakpointKind = iota
	// BreakConditional stops at a line when a condition holds.
	BreakConditional
	// BreakLogPoint logs a message without stopping.
	BreakLogPoint
	// BreakFunction stops when entering a function.
	BreakFunction
)

// String returns the kind name.
func (k BreakpointKind) String() string {
	switch k {
	case BreakLine:
		return "line"
	case BreakConditional:
		return "conditional"
	case BreakLogPoint:
		return "logpoint"
	case BreakFunction:
		return "function"
	default:
		return "unknown"
	}
}

// UserBreakpoint is a breakpoint as the user defined it, independent of
// any session. Verified and ActualLine reflect the adapter's answer
// after the last sync.
type UserBreakpoint struct {
	ID           int            `json:"id"`
	Kind         BreakpointKind `json:"kind"`
	Path         string         `json:"path,omitempty"`
	Line         int            `json:"line,omitempty"`
	Condition    string         `json:"condition,omitempty"`
	HitCondition string         `json:"hitCondition,omitempty"`
	LogMessage   string         `json:"logMessage,omitempty"`
	FunctionName string         `json:"functionName,omitempty"`
	Enabled      bool           `json:"enabled"`
	Verified     bool           `json:"verified,omitempty"`
	Message      string         `json:"message,omitempty"`
	ActualLine   int            `json:"actualLine,omitempty"`
}

// Breakpoints holds the user's breakpoints and syncs them to a session.
// The set survives sessions; a JSON file keeps it across runs.
type Breakpoints struct {
	mu          sync.RWMutex
	byID        map[int]*UserBreakpoint
	byPath      map[string][]*UserBreakpoint
	functions   []*UserBreakpoint
	nextID      int
	persistPath string
}

// NewBreakpoints creates an empty breakpoint set.
func NewBreakpoints() *Breakpoints {
	return &Breakpoints{
		byID:   make(map[int]*UserBreakpoint),
		byPath: make(map[string][]*UserBreakpoint),
		nextID: 1,
	}
}

// SetPersistPath sets the JSON file used by Save and Load.
func (b *Breakpoints) SetPersistPath(path string) {
	b.mu.Lock()
	b.persistPath = path
	b.mu.Unlock()
}

// AddLine adds a line breakpoint; condition and logMessage select the
// conditional and logpoint kinds.
func (b *Breakpoints) AddLine(path string, line int, condition, logMessage string) *UserBreakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	kind := BreakLine
	switch {
	case logMessage != "":
		kind = BreakLogPoint
	case condition != "":
		kind = BreakConditional
	}

	bp := &UserBreakpoint{
		ID:         b.nextID,
		Kind:       kind,
		Path:       path,
		Line:       line,
		Condition:  condition,
		LogMessage: logMessage,
		Enabled:    true,
	}
	b.nextID++

	b.byID[bp.ID] = bp
	b.byPath[path] = append(b.byPath[path], bp)
	return bp
}

// AddFunction adds a function breakpoint.
func (b *Breakpoints) AddFunction(name, condition string) *UserBreakpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	bp := &UserBreakpoint{
		ID:           b.nextID,
		Kind:         BreakFunction,
		FunctionName: name,
		Condition:    condition,
		Enabled:      true,
	}
	b.nextID++

	b.byID[bp.ID] = bp
	b.functions = append(b.functions, bp)
	return bp
}

// Toggle removes the breakpoint at path:line if one exists, otherwise
// adds a line breakpoint. The second result is true when added.
func (b *Breakpoints) Toggle(path string, line int) (*UserBreakpoint, bool) {
	b.mu.Lock()
	for _, bp := range b.byPath[path] {
		if bp.Line == line {
			b.removeLocked(bp)
			b.mu.Unlock()
			return bp, false
		}
	}
	b.mu.Unlock()
	return b.AddLine(path, line, "", ""), true
}

// Remove deletes a breakpoint by ID.
func (b *Breakpoints) Remove(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bp, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("breakpoint %d not found", id)
	}
	b.removeLocked(bp)
	return nil
}

func (b *Breakpoints) removeLocked(bp *UserBreakpoint) {
	delete(b.byID, bp.ID)

	if bp.Kind == BreakFunction {
		b.functions = removeByID(b.functions, bp.ID)
		return
	}

	b.byPath[bp.Path] = removeByID(b.byPath[bp.Path], bp.ID)
	if len(b.byPath[bp.Path]) == 0 {
		delete(b.byPath, bp.Path)
	}
}

func removeByID(bps []*UserBreakpoint, id int) []*UserBreakpoint {
	for i, bp := range bps {
		if bp.ID == id {
			return append(bps[:i], bps[i+1:]...)
		}
	}
	return bps
}

// SetEnabled enables or disables a breakpoint.
func (b *Breakpoints) SetEnabled(id int, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bp, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("breakpoint %d not found", id)
	}
	bp.Enabled = enabled
	return nil
}

// Get returns a breakpoint by ID.
func (b *Breakpoints) Get(id int) (*UserBreakpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bp, ok := b.byID[id]
	return bp, ok
}

// ForPath returns the breakpoints of one source file, in line order.
func (b *Breakpoints) ForPath(path string) []*UserBreakpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := append([]*UserBreakpoint{}, b.byPath[path]...)
	sort.Slice(result, func(i, j int) bool { return result[i].Line < result[j].Line })
	return result
}

// All returns every breakpoint, ordered by ID.
func (b *Breakpoints) All() []*UserBreakpoint {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]*UserBreakpoint, 0, len(b.byID))
	for _, bp := range b.byID {
		result = append(result, bp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Paths returns every file that has breakpoints.
func (b *Breakpoints) Paths() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	paths := make([]string, 0, len(b.byPath))
	for path := range b.byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// At returns the breakpoint at path:line, if any.
func (b *Breakpoints) At(path string, line int) (*UserBreakpoint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, bp := range b.byPath[path] {
		if bp.Line == line {
			return bp, true
		}
	}
	return nil, false
}

// Clear removes all breakpoints.
func (b *Breakpoints) Clear() {
	b.mu.Lock()
	b.byID = make(map[int]*UserBreakpoint)
	b.byPath = make(map[string][]*UserBreakpoint)
	b.functions = nil
	b.mu.Unlock()
}

// Sync pushes every enabled breakpoint to the session and records the
// adapter's verification results.
func (b *Breakpoints) Sync(ctx context.Context, session *Session) error {
	for _, path := range b.Paths() {
		if err := b.syncPath(ctx, session, path); err != nil {
			return fmt.Errorf("sync breakpoints for %s: %w", path, err)
		}
	}
	return b.syncFunctions(ctx, session)
}

func (b *Breakpoints) syncPath(ctx context.Context, session *Session, path string) error {
	enabled := make([]*UserBreakpoint, 0)
	for _, bp := range b.ForPath(path) {
		if bp.Enabled {
			enabled = append(enabled, bp)
		}
	}

	source := make([]dap.SourceBreakpoint, len(enabled))
	for i, bp := range enabled {
		source[i] = dap.SourceBreakpoint{
			Line:         bp.Line,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
			LogMessage:   bp.LogMessage,
		}
	}

	result, err := session.SetBreakpoints(ctx, path, source)
	if err != nil {
		return err
	}

	b.mu.Lock()
	for i, bp := range enabled {
		if i >= len(result) {
			break
		}
		bp.Verified = result[i].Verified
		bp.Message = result[i].Message
		if result[i].Line > 0 {
			bp.ActualLine = result[i].Line
		}
	}
	b.mu.Unlock()
	return nil
}

func (b *Breakpoints) syncFunctions(ctx context.Context, session *Session) error {
	b.mu.RLock()
	enabled := make([]*UserBreakpoint, 0, len(b.functions))
	for _, bp := range b.functions {
		if bp.Enabled {
			enabled = append(enabled, bp)
		}
	}
	b.mu.RUnlock()

	if len(enabled) == 0 {
		return nil
	}

	caps := session.Capabilities()
	if caps == nil || !caps.SupportsFunctionBreakpoints {
		// The adapter cannot honor them; leave them unverified.
		return nil
	}

	funcBPs := make([]dap.FunctionBreakpoint, len(enabled))
	for i, bp := range enabled {
		funcBPs[i] = dap.FunctionBreakpoint{
			Name:         bp.FunctionName,
			Condition:    bp.Condition,
			HitCondition: bp.HitCondition,
		}
	}

	result, err := session.SetFunctionBreakpoints(ctx, funcBPs)
	if err != nil {
		return fmt.Errorf("sync function breakpoints: %w", err)
	}

	b.mu.Lock()
	for i, bp := range enabled {
		if i >= len(result) {
			break
		}
		bp.Verified = result[i].Verified
		bp.Message = result[i].Message
	}
	b.mu.Unlock()
	return nil
}

// breakpointFile is the persisted JSON shape.
type breakpointFile struct {
	Version     int               `json:"version"`
	Breakpoints []*UserBreakpoint `json:"breakpoints"`
}

// Save writes the breakpoint set to the persist path.
func (b *Breakpoints) Save() error {
	b.mu.RLock()
	path := b.persistPath
	b.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("persist path not set")
	}

	content, err := json.MarshalIndent(breakpointFile{
		Version:     1,
		Breakpoints: b.All(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal breakpoints: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write breakpoints: %w", err)
	}
	return nil
}

// Load replaces the breakpoint set with the persisted one. A missing
// file leaves the set empty and is not an error.
func (b *Breakpoints) Load() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.persistPath == "" {
		return fmt.Errorf("persist path not set")
	}

	content, err := os.ReadFile(b.persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read breakpoints: %w", err)
	}

	var file breakpointFile
	if err := json.Unmarshal(content, &file); err != nil {
		return fmt.Errorf("unmarshal breakpoints: %w", err)
	}

	b.byID = make(map[int]*UserBreakpoint)
	b.byPath = make(map[string][]*UserBreakpoint)
	b.functions = nil

	maxID := 0
	for _, bp := range file.Breakpoints {
		b.byID[bp.ID] = bp
		if bp.ID > maxID {
			maxID = bp.ID
		}
		if bp.Kind == BreakFunction {
			b.functions = append(b.functions, bp)
		} else {
			b.byPath[bp.Path] = append(b.byPath[bp.Path], bp)
		}
	}
	b.nextID = maxID + 1
	return nil
}
