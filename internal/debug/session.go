package debug

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/varscope/internal/debug/dap"
)

// SessionState is the lifecycle state of a debug session.
type SessionState int

const (
	// StateInitializing is the initial state before connection.
	StateInitializing SessionState = iota
	// StateConnected is after transport is established.
	StateConnected
	// StateConfiguring is after initialize but before configurationDone.
	StateConfiguring
	// StateRunning is when the debuggee is running.
	StateRunning
	// StateStopped is when the debuggee is stopped.
	StateStopped
	// StateTerminated is when the debuggee has exited.
	StateTerminated
	// StateDisconnected is when the adapter connection is gone.
	StateDisconnected
)

// String returns the state name.
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConnected:
		return "connected"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one debug session against one adapter. Each session gets
// a unique ID that keys its variable state in the store.
type Session struct {
	id     string
	client *dap.Client
	store  *MemoryStore
	logger *zap.Logger

	capabilities *dap.Capabilities

	stateMu       sync.RWMutex
	state         SessionState
	currentThread int

	threadsMu sync.RWMutex
	threads   []dap.Thread

	handlersMu sync.RWMutex
	handlers   SessionHandlers

	// Adapter subprocess, when this session owns one.
	cmd *exec.Cmd
}

// SessionHandlers are callbacks for session events. All callbacks run
// on the client's receive goroutine and must return quickly.
type SessionHandlers struct {
	// OnStateChanged is called when the session state changes.
	OnStateChanged func(old, new SessionState)

	// OnStopped is called when the debuggee stops.
	OnStopped func(reason string, threadID int, allStopped bool)

	// OnOutput is called when the debuggee produces output.
	OnOutput func(category, output string)

	// OnBreakpointChanged is called when breakpoints change adapter-side.
	OnBreakpointChanged func(reason string, breakpoint dap.Breakpoint)

	// OnThreadChanged is called when threads start or exit.
	OnThreadChanged func(reason string, threadID int)

	// OnTerminated is called when the debuggee terminates.
	OnTerminated func()
}

// SessionConfig configures the initialize handshake.
type SessionConfig struct {
	// AdapterID is the debug adapter identifier.
	AdapterID string

	// ClientID is this client's identifier.
	ClientID string

	// ClientName is this client's display name.
	ClientName string

	// LinesStartAt1 indicates 1-based line numbers.
	LinesStartAt1 bool

	// ColumnsStartAt1 indicates 1-based column numbers.
	ColumnsStartAt1 bool

	// PathFormat is "path" or "uri".
	PathFormat string
}

// DefaultSessionConfig returns the handshake defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AdapterID:       "generic",
		ClientID:        "varscope",
		ClientName:      "varscope",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a session over an established client, bound to
// store for its variable state.
func NewSession(client *dap.Client, store *MemoryStore, opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		client: client,
		store:  store,
		logger: zap.NewNop(),
		state:  StateConnected,
	}
	for _, opt := range opts {
		opt(s)
	}

	client.OnInitialized(s.onInitialized)
	client.OnStopped(s.onStopped)
	client.OnContinued(s.onContinued)
	client.OnExited(s.onExited)
	client.OnTerminated(s.onTerminated)
	client.OnThread(s.onThread)
	client.OnOutput(s.onOutput)
	client.OnBreakpoint(s.onBreakpoint)
	client.OnInvalidated(s.onInvalidated)

	return s
}

// NewStdioSession starts the adapter as a subprocess and speaks DAP
// over its stdio.
func NewStdioSession(store *MemoryStore, command string, args ...string) (*Session, error) {
	return NewCommandSession(store, exec.Command(command, args...))
}

// NewCommandSession starts a prepared adapter command and speaks DAP
// over its stdio. The command must not have been started.
func NewCommandSession(store *MemoryStore, cmd *exec.Cmd, opts ...SessionOption) (*Session, error) {
	transport, err := dap.NewStdioTransport(cmd)
	if err != nil {
		return nil, fmt.Errorf("create stdio transport: %w", err)
	}

	session := NewSession(dap.NewClient(transport), store, opts...)
	session.cmd = cmd
	return session, nil
}

// NewSocketSession connects to an adapter listening on address.
func NewSocketSession(store *MemoryStore, address string, opts ...SessionOption) (*Session, error) {
	transport, err := dap.NewSocketTransport(address)
	if err != nil {
		return nil, fmt.Errorf("create socket transport: %w", err)
	}
	return NewSession(dap.NewClient(transport), store, opts...), nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Store returns the session's variable store.
func (s *Session) Store() *MemoryStore {
	return s.store
}

// SetHandlers sets the session event handlers.
func (s *Session) SetHandlers(handlers SessionHandlers) {
	s.handlersMu.Lock()
	s.handlers = handlers
	s.handlersMu.Unlock()
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.stateMu.Lock()
	old := s.state
	s.state = state
	s.stateMu.Unlock()

	if old != state {
		s.logger.Debug("session state changed",
			zap.String("session", s.id),
			zap.Stringer("from", old),
			zap.Stringer("to", state))
	}

	s.handlersMu.RLock()
	handler := s.handlers.OnStateChanged
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(old, state)
	}
}

// Capabilities returns the adapter capabilities, nil before initialize.
func (s *Session) Capabilities() *dap.Capabilities {
	return s.capabilities
}

// CurrentThread returns the thread the session last stopped on.
func (s *Session) CurrentThread() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.currentThread
}

// Threads returns the cached thread list.
func (s *Session) Threads() []dap.Thread {
	s.threadsMu.RLock()
	defer s.threadsMu.RUnlock()
	return append([]dap.Thread{}, s.threads...)
}

// Initialize performs the initialize handshake.
func (s *Session) Initialize(ctx context.Context, config SessionConfig) error {
	caps, err := s.client.Initialize(ctx, dap.InitializeRequestArguments{
		ClientID:             config.ClientID,
		ClientName:           config.ClientName,
		AdapterID:            config.AdapterID,
		LinesStartAt1:        config.LinesStartAt1,
		ColumnsStartAt1:      config.ColumnsStartAt1,
		PathFormat:           config.PathFormat,
		SupportsVariableType: true,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.capabilities = caps
	s.setState(StateConfiguring)
	return nil
}

// ConfigurationDone ends the configuration sequence.
func (s *Session) ConfigurationDone(ctx context.Context) error {
	if err := s.client.ConfigurationDone(ctx); err != nil {
		return fmt.Errorf("configurationDone: %w", err)
	}
	s.setState(StateRunning)
	return nil
}

// Launch starts the debuggee with adapter-specific arguments.
func (s *Session) Launch(ctx context.Context, launchArgs any) error {
	if err := s.client.Launch(ctx, launchArgs); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	return nil
}

// Attach attaches to a running process.
func (s *Session) Attach(ctx context.Context, attachArgs any) error {
	if err := s.client.Attach(ctx, attachArgs); err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	return nil
}

// Disconnect disconnects from the adapter, optionally terminating the
// debuggee.
func (s *Session) Disconnect(ctx context.Context, terminate bool) error {
	err := s.client.Disconnect(ctx, dap.DisconnectArguments{
		TerminateDebuggee: terminate,
	})
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.setState(StateDisconnected)
	return nil
}

// Close tears down the session and its variable state.
func (s *Session) Close() error {
	s.setState(StateDisconnected)
	if s.store != nil {
		s.store.Reset(s.id)
	}
	return s.client.Close()
}

// SetBreakpoints replaces the breakpoints of one source file.
func (s *Session) SetBreakpoints(ctx context.Context, path string, bps []dap.SourceBreakpoint) ([]dap.Breakpoint, error) {
	return s.client.SetBreakpoints(ctx, dap.SetBreakpointsArguments{
		Source:      dap.Source{Path: path},
		Breakpoints: bps,
	})
}

// SetFunctionBreakpoints replaces all function breakpoints.
func (s *Session) SetFunctionBreakpoints(ctx context.Context, bps []dap.FunctionBreakpoint) ([]dap.Breakpoint, error) {
	return s.client.SetFunctionBreakpoints(ctx, dap.SetFunctionBreakpointsArguments{
		Breakpoints: bps,
	})
}

// Continue resumes execution of a thread.
func (s *Session) Continue(ctx context.Context, threadID int) error {
	if _, err := s.client.Continue(ctx, dap.ContinueArguments{ThreadID: threadID}); err != nil {
		return err
	}
	s.onResume()
	s.setState(StateRunning)
	return nil
}

// Next steps over the current line.
func (s *Session) Next(ctx context.Context, threadID int) error {
	if err := s.client.Next(ctx, dap.NextArguments{ThreadID: threadID}); err != nil {
		return err
	}
	s.onResume()
	s.setState(StateRunning)
	return nil
}

// StepIn steps into the current call.
func (s *Session) StepIn(ctx context.Context, threadID int) error {
	if err := s.client.StepIn(ctx, dap.StepInArguments{ThreadID: threadID}); err != nil {
		return err
	}
	s.onResume()
	s.setState(StateRunning)
	return nil
}

// StepOut steps out of the current function.
func (s *Session) StepOut(ctx context.Context, threadID int) error {
	if err := s.client.StepOut(ctx, dap.StepOutArguments{ThreadID: threadID}); err != nil {
		return err
	}
	s.onResume()
	s.setState(StateRunning)
	return nil
}

// Pause suspends a running thread.
func (s *Session) Pause(ctx context.Context, threadID int) error {
	return s.client.Pause(ctx, dap.PauseArguments{ThreadID: threadID})
}

// GetThreads refreshes and returns the thread list.
func (s *Session) GetThreads(ctx context.Context) ([]dap.Thread, error) {
	threads, err := s.client.Threads(ctx)
	if err != nil {
		return nil, err
	}

	s.threadsMu.Lock()
	s.threads = threads
	s.threadsMu.Unlock()
	return threads, nil
}

// StackTrace retrieves a slice of a thread's call stack.
func (s *Session) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dap.StackFrame, int, error) {
	result, err := s.client.StackTrace(ctx, dap.StackTraceArguments{
		ThreadID:   threadID,
		StartFrame: startFrame,
		Levels:     levels,
	})
	if err != nil {
		return nil, 0, err
	}
	return result.StackFrames, result.TotalFrames, nil
}

// Scopes retrieves the variable scopes of a stack frame.
func (s *Session) Scopes(ctx context.Context, frameID int) ([]dap.Scope, error) {
	return s.client.Scopes(ctx, dap.ScopesArguments{FrameID: frameID})
}

// Variables resolves the children of a variables reference. Session
// satisfies VariablesResolver through this method.
func (s *Session) Variables(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error) {
	return s.client.Variables(ctx, args)
}

// SetVariable assigns a new value to a container child.
func (s *Session) SetVariable(ctx context.Context, ref int, name, value string) (string, error) {
	result, err := s.client.SetVariable(ctx, dap.SetVariableArguments{
		VariablesReference: ref,
		Name:               name,
		Value:              value,
	})
	if err != nil {
		return "", err
	}
	return result.Value, nil
}

// Evaluate evaluates an expression in a frame context.
func (s *Session) Evaluate(ctx context.Context, expression string, frameID int, context string) (*dap.EvaluateResponseBody, error) {
	return s.client.Evaluate(ctx, dap.EvaluateArguments{
		Expression: expression,
		FrameID:    frameID,
		Context:    context,
	})
}

// Client exposes the underlying DAP client for requests the session
// does not wrap.
func (s *Session) Client() *dap.Client {
	return s.client
}

// onResume invalidates variable state: reference handles issued while
// stopped are dead once the debuggee runs again.
func (s *Session) onResume() {
	if s.store != nil {
		s.store.Reset(s.id)
	}
}

// Event handlers.

func (s *Session) onInitialized() {
	s.setState(StateConfiguring)
}

func (s *Session) onStopped(body dap.StoppedEventBody) {
	s.stateMu.Lock()
	s.currentThread = body.ThreadID
	s.stateMu.Unlock()

	s.setState(StateStopped)

	s.handlersMu.RLock()
	handler := s.handlers.OnStopped
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Reason, body.ThreadID, body.AllThreadsStopped)
	}
}

func (s *Session) onContinued(body dap.ContinuedEventBody) {
	s.onResume()
	s.setState(StateRunning)
}

func (s *Session) onExited(body dap.ExitedEventBody) {
	s.setState(StateTerminated)
}

func (s *Session) onTerminated(body dap.TerminatedEventBody) {
	s.setState(StateTerminated)

	s.handlersMu.RLock()
	handler := s.handlers.OnTerminated
	s.handlersMu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (s *Session) onThread(body dap.ThreadEventBody) {
	s.handlersMu.RLock()
	handler := s.handlers.OnThreadChanged
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Reason, body.ThreadID)
	}
}

func (s *Session) onOutput(body dap.OutputEventBody) {
	s.handlersMu.RLock()
	handler := s.handlers.OnOutput
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Category, body.Output)
	}
}

func (s *Session) onBreakpoint(body dap.BreakpointEventBody) {
	s.handlersMu.RLock()
	handler := s.handlers.OnBreakpointChanged
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Reason, body.Breakpoint)
	}
}

func (s *Session) onInvalidated(body dap.InvalidatedEventBody) {
	for _, area := range body.Areas {
		if area == "all" || area == "variables" {
			s.onResume()
			return
		}
	}
	if len(body.Areas) == 0 {
		s.onResume()
	}
}
