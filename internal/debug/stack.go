package debug

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dshills/varscope/internal/debug/dap"
)

// Frame is one stack frame with its fetched scopes.
type Frame struct {
	// ID is the adapter's frame identifier, used to root fetches.
	ID int

	// Name is the function name.
	Name string

	// Source is the source file, if known.
	Source *dap.Source

	// Line and Column locate the frame in Source.
	Line   int
	Column int

	// CanRestart indicates the adapter can restart this frame.
	CanRestart bool

	// PresentationHint is "normal", "label" or "subtle".
	PresentationHint string

	// Scopes are the frame's variable scopes once fetched.
	Scopes []*VariableScope

	// Current marks the selected frame of its stack.
	Current bool
}

// HasSource reports whether the frame maps to a source file.
func (f *Frame) HasSource() bool {
	return f.Source != nil && f.Source.Path != ""
}

// Location renders the frame position as "file.go:42". Delve only
// populates the source path, so fall back to its basename when the
// adapter sends no display name.
func (f *Frame) Location() string {
	name := ""
	if f.Source != nil {
		name = f.Source.Name
		if name == "" && f.Source.Path != "" {
			name = filepath.Base(f.Source.Path)
		}
	}
	if name == "" {
		return fmt.Sprintf("<unknown>:%d", f.Line)
	}
	return fmt.Sprintf("%s:%d", name, f.Line)
}

// CallStack is the loaded portion of one thread's stack.
type CallStack struct {
	// ThreadID is the owning thread.
	ThreadID int

	// ThreadName is the thread's display name.
	ThreadName string

	// Frames are the loaded frames, top of stack first.
	Frames []*Frame

	// TotalFrames is the adapter's full frame count, which may exceed
	// len(Frames) until paging completes.
	TotalFrames int

	// Selected is the index of the selected frame.
	Selected int
}

// SelectedFrame returns the selected frame, nil if out of range.
func (c *CallStack) SelectedFrame() *Frame {
	if c.Selected < 0 || c.Selected >= len(c.Frames) {
		return nil
	}
	return c.Frames[c.Selected]
}

// Navigator pages and navigates call stacks per thread.
type Navigator struct {
	session   *Session
	inspector *Inspector

	mu            sync.RWMutex
	stacks        map[int]*CallStack
	currentThread int
	pageSize      int
}

// NewNavigator creates a navigator for session. Scope fetching goes
// through inspector.
func NewNavigator(session *Session, inspector *Inspector) *Navigator {
	return &Navigator{
		session:   session,
		inspector: inspector,
		stacks:    make(map[int]*CallStack),
		pageSize:  20,
	}
}

// SetPageSize sets how many frames each stackTrace request asks for.
func (n *Navigator) SetPageSize(size int) {
	n.mu.Lock()
	if size > 0 {
		n.pageSize = size
	}
	n.mu.Unlock()
}

// Load fetches the first page of a thread's call stack and selects its
// top frame.
func (n *Navigator) Load(ctx context.Context, threadID int) (*CallStack, error) {
	n.mu.RLock()
	pageSize := n.pageSize
	n.mu.RUnlock()

	frames, total, err := n.session.StackTrace(ctx, threadID, 0, pageSize)
	if err != nil {
		return nil, fmt.Errorf("get stack trace: %w", err)
	}

	threadName := fmt.Sprintf("Thread %d", threadID)
	if threads, err := n.session.GetThreads(ctx); err == nil {
		for _, t := range threads {
			if t.ID == threadID {
				threadName = t.Name
				break
			}
		}
	}

	stack := &CallStack{
		ThreadID:    threadID,
		ThreadName:  threadName,
		Frames:      make([]*Frame, len(frames)),
		TotalFrames: total,
	}
	for i, f := range frames {
		stack.Frames[i] = newFrame(f)
	}
	if len(stack.Frames) > 0 {
		stack.Frames[0].Current = true
	}

	n.mu.Lock()
	n.stacks[threadID] = stack
	n.currentThread = threadID
	n.mu.Unlock()

	return stack, nil
}

func newFrame(f dap.StackFrame) *Frame {
	return &Frame{
		ID:               f.ID,
		Name:             f.Name,
		Source:           f.Source,
		Line:             f.Line,
		Column:           f.Column,
		CanRestart:       f.CanRestart,
		PresentationHint: f.PresentationHint,
	}
}

// LoadMore appends the next page of frames for a thread.
func (n *Navigator) LoadMore(ctx context.Context, threadID int) error {
	n.mu.RLock()
	stack, ok := n.stacks[threadID]
	pageSize := n.pageSize
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no call stack for thread %d", threadID)
	}
	if len(stack.Frames) >= stack.TotalFrames {
		return nil
	}

	frames, total, err := n.session.StackTrace(ctx, threadID, len(stack.Frames), pageSize)
	if err != nil {
		return fmt.Errorf("get more frames: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	stack.TotalFrames = total
	for _, f := range frames {
		stack.Frames = append(stack.Frames, newFrame(f))
	}
	return nil
}

// Select marks a frame as the stack's selected frame.
func (n *Navigator) Select(threadID, frameIndex int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	stack, ok := n.stacks[threadID]
	if !ok {
		return fmt.Errorf("no call stack for thread %d", threadID)
	}
	if frameIndex < 0 || frameIndex >= len(stack.Frames) {
		return fmt.Errorf("frame index %d out of range [0, %d)", frameIndex, len(stack.Frames))
	}

	if stack.Selected < len(stack.Frames) {
		stack.Frames[stack.Selected].Current = false
	}
	stack.Frames[frameIndex].Current = true
	stack.Selected = frameIndex
	return nil
}

// SelectUp moves the selection one frame toward the caller.
func (n *Navigator) SelectUp(threadID int) error {
	n.mu.RLock()
	stack, ok := n.stacks[threadID]
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no call stack for thread %d", threadID)
	}
	if stack.Selected >= len(stack.Frames)-1 {
		return fmt.Errorf("already at bottom of stack")
	}
	return n.Select(threadID, stack.Selected+1)
}

// SelectDown moves the selection one frame toward the callee.
func (n *Navigator) SelectDown(threadID int) error {
	n.mu.RLock()
	stack, ok := n.stacks[threadID]
	n.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no call stack for thread %d", threadID)
	}
	if stack.Selected <= 0 {
		return fmt.Errorf("already at top of stack")
	}
	return n.Select(threadID, stack.Selected-1)
}

// Stack returns the loaded stack for a thread, nil when absent.
func (n *Navigator) Stack(threadID int) *CallStack {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stacks[threadID]
}

// CurrentThread returns the thread of the last loaded stack.
func (n *Navigator) CurrentThread() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.currentThread
}

// FrameScopes fetches and attaches the variable scopes of a frame.
func (n *Navigator) FrameScopes(ctx context.Context, frame *Frame) ([]*VariableScope, error) {
	scopes, err := n.inspector.Scopes(ctx, frame.ID)
	if err != nil {
		return nil, err
	}
	frame.Scopes = scopes
	return scopes, nil
}

// Clear drops all loaded stacks, e.g. when the debuggee resumes.
func (n *Navigator) Clear() {
	n.mu.Lock()
	n.stacks = make(map[int]*CallStack)
	n.currentThread = 0
	n.mu.Unlock()
}

// RestartFrame restarts execution from a frame, when supported.
func (n *Navigator) RestartFrame(ctx context.Context, frameID int) error {
	caps := n.session.Capabilities()
	if caps == nil || !caps.SupportsRestartFrame {
		return fmt.Errorf("restart frame not supported")
	}
	return n.session.Client().RestartFrame(ctx, dap.RestartFrameArguments{FrameID: frameID})
}

// StepInTargets lists the possible step-in targets of a frame, when
// supported.
func (n *Navigator) StepInTargets(ctx context.Context, frameID int) ([]dap.StepInTarget, error) {
	caps := n.session.Capabilities()
	if caps == nil || !caps.SupportsStepInTargetsRequest {
		return nil, fmt.Errorf("step-in targets not supported")
	}
	return n.session.Client().StepInTargets(ctx, dap.StepInTargetsArguments{FrameID: frameID})
}

// GotoTargets lists the goto targets for a source line, when supported.
func (n *Navigator) GotoTargets(ctx context.Context, source dap.Source, line int) ([]dap.GotoTarget, error) {
	caps := n.session.Capabilities()
	if caps == nil || !caps.SupportsGotoTargetsRequest {
		return nil, fmt.Errorf("goto targets not supported")
	}
	return n.session.Client().GotoTargets(ctx, dap.GotoTargetsArguments{Source: source, Line: line})
}

// Goto moves execution to a target, when supported.
func (n *Navigator) Goto(ctx context.Context, threadID, targetID int) error {
	caps := n.session.Capabilities()
	if caps == nil || !caps.SupportsGotoTargetsRequest {
		return fmt.Errorf("goto not supported")
	}
	return n.session.Client().Goto(ctx, dap.GotoArguments{ThreadID: threadID, TargetID: targetID})
}

// Format renders the loaded stack of a thread for display.
func (n *Navigator) Format(threadID int) string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	stack, ok := n.stacks[threadID]
	if !ok {
		return ""
	}

	var b strings.Builder
	for i, frame := range stack.Frames {
		marker := "  "
		if i == stack.Selected {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d %s at %s\n", marker, i, frame.Name, frame.Location())
	}
	if len(stack.Frames) < stack.TotalFrames {
		fmt.Fprintf(&b, "  ... (%d more frames)\n", stack.TotalFrames-len(stack.Frames))
	}
	return b.String()
}
