package dap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Client correlates DAP requests with responses and dispatches adapter
// events to registered handlers. One receive goroutine runs for the
// lifetime of the client.
type Client struct {
	transport Transport
	logger    *zap.Logger
	seq       int64

	pendingMu sync.Mutex
	pending   map[int]*pendingRequest

	handlerMu sync.RWMutex
	handlers  eventHandlers

	done      chan struct{}
	closeOnce sync.Once

	errMu sync.RWMutex
	err   error
}

// pendingRequest tracks one in-flight request.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	response  *Response
	err       error
}

func (p *pendingRequest) finish() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

type eventHandlers struct {
	onInitialized func()
	onStopped     func(StoppedEventBody)
	onContinued   func(ContinuedEventBody)
	onExited      func(ExitedEventBody)
	onTerminated  func(TerminatedEventBody)
	onThread      func(ThreadEventBody)
	onOutput      func(OutputEventBody)
	onBreakpoint  func(BreakpointEventBody)
	onInvalidated func(InvalidatedEventBody)
	onAny         func(Event)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client on transport and starts its receive loop.
func NewClient(transport Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		logger:    zap.NewNop(),
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.receiveLoop()
	return c
}

// Close stops the receive loop and closes the transport. In-flight
// requests fail with the transport's close error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return c.transport.Close()
}

// Err returns the receive-loop error, if one has occurred.
func (c *Client) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

func (c *Client) receiveLoop() {
	for {
		content, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			c.logger.Debug("dap receive failed", zap.Error(err))

			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()

			c.pendingMu.Lock()
			for _, req := range c.pending {
				req.err = err
				req.finish()
			}
			c.pending = make(map[int]*pendingRequest)
			c.pendingMu.Unlock()
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.dispatch(content)
	}
}

func (c *Client) dispatch(content json.RawMessage) {
	var base ProtocolMessage
	if err := json.Unmarshal(content, &base); err != nil {
		c.logger.Debug("dap message not parseable", zap.Error(err))
		return
	}

	switch base.Type {
	case "response":
		c.dispatchResponse(content)
	case "event":
		c.dispatchEvent(content)
	}
}

func (c *Client) dispatchResponse(content json.RawMessage) {
	var resp Response
	if err := json.Unmarshal(content, &resp); err != nil {
		return
	}

	c.pendingMu.Lock()
	req, ok := c.pending[resp.RequestSeq]
	if ok {
		delete(c.pending, resp.RequestSeq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("response without pending request",
			zap.Int("request_seq", resp.RequestSeq),
			zap.String("command", resp.Command))
		return
	}

	req.response = &resp
	req.finish()
}

// fireEvent decodes an event body and invokes the handler if both the
// handler is set and the body parses.
func fireEvent[T any](raw json.RawMessage, handler func(T)) {
	if handler == nil {
		return
	}
	var body T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			return
		}
	}
	handler(body)
}

func (c *Client) dispatchEvent(content json.RawMessage) {
	var evt Event
	if err := json.Unmarshal(content, &evt); err != nil {
		return
	}

	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()

	switch evt.Event {
	case "initialized":
		if handlers.onInitialized != nil {
			handlers.onInitialized()
		}
	case "stopped":
		fireEvent(evt.Body, handlers.onStopped)
	case "continued":
		fireEvent(evt.Body, handlers.onContinued)
	case "exited":
		fireEvent(evt.Body, handlers.onExited)
	case "terminated":
		fireEvent(evt.Body, handlers.onTerminated)
	case "thread":
		fireEvent(evt.Body, handlers.onThread)
	case "output":
		fireEvent(evt.Body, handlers.onOutput)
	case "breakpoint":
		fireEvent(evt.Body, handlers.onBreakpoint)
	case "invalidated":
		fireEvent(evt.Body, handlers.onInvalidated)
	}

	if handlers.onAny != nil {
		handlers.onAny(evt)
	}
}

// sendRequest sends one request and blocks until its response arrives,
// the context is cancelled, or the transport fails.
func (c *Client) sendRequest(ctx context.Context, command string, args any) (*Response, error) {
	seq := int(atomic.AddInt64(&c.seq, 1))

	var argsJSON json.RawMessage
	if args != nil {
		var err error
		argsJSON, err = json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("marshal %s arguments: %w", command, err)
		}
	}

	content, err := json.Marshal(Request{
		ProtocolMessage: ProtocolMessage{Seq: seq, Type: "request"},
		Command:         command,
		Arguments:       argsJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", command, err)
	}

	pending := &pendingRequest{done: make(chan struct{})}

	c.pendingMu.Lock()
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	if err := c.transport.Send(content); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, fmt.Errorf("send %s request: %w", command, err)
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, seq)
		c.pendingMu.Unlock()
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		return pending.response, nil
	}
}

// call sends a request and decodes the successful response body into T.
func call[T any](c *Client, ctx context.Context, command string, args any) (*T, error) {
	resp, err := c.sendRequest(ctx, command, args)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%s failed: %s", command, resp.Message)
	}

	var body T
	if len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, fmt.Errorf("unmarshal %s response: %w", command, err)
		}
	}
	return &body, nil
}

// callVoid sends a request whose response body is not needed.
func callVoid(c *Client, ctx context.Context, command string, args any) error {
	resp, err := c.sendRequest(ctx, command, args)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s failed: %s", command, resp.Message)
	}
	return nil
}

// Event handler setters.

// OnInitialized sets the handler for the initialized event.
func (c *Client) OnInitialized(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onInitialized = handler
	c.handlerMu.Unlock()
}

// OnStopped sets the handler for the stopped event.
func (c *Client) OnStopped(handler func(StoppedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onStopped = handler
	c.handlerMu.Unlock()
}

// OnContinued sets the handler for the continued event.
func (c *Client) OnContinued(handler func(ContinuedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onContinued = handler
	c.handlerMu.Unlock()
}

// OnExited sets the handler for the exited event.
func (c *Client) OnExited(handler func(ExitedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onExited = handler
	c.handlerMu.Unlock()
}

// OnTerminated sets the handler for the terminated event.
func (c *Client) OnTerminated(handler func(TerminatedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onTerminated = handler
	c.handlerMu.Unlock()
}

// OnThread sets the handler for the thread event.
func (c *Client) OnThread(handler func(ThreadEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onThread = handler
	c.handlerMu.Unlock()
}

// OnOutput sets the handler for the output event.
func (c *Client) OnOutput(handler func(OutputEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onOutput = handler
	c.handlerMu.Unlock()
}

// OnBreakpoint sets the handler for the breakpoint event.
func (c *Client) OnBreakpoint(handler func(BreakpointEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onBreakpoint = handler
	c.handlerMu.Unlock()
}

// OnInvalidated sets the handler for the invalidated event.
func (c *Client) OnInvalidated(handler func(InvalidatedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onInvalidated = handler
	c.handlerMu.Unlock()
}

// OnAnyEvent sets a handler invoked for every event after the specific
// handler, if any, has run.
func (c *Client) OnAnyEvent(handler func(Event)) {
	c.handlerMu.Lock()
	c.handlers.onAny = handler
	c.handlerMu.Unlock()
}

// Request methods.

// Initialize sends the initialize request and returns the adapter's
// capabilities.
func (c *Client) Initialize(ctx context.Context, args InitializeRequestArguments) (*Capabilities, error) {
	return call[Capabilities](c, ctx, "initialize", args)
}

// ConfigurationDone signals the end of the configuration sequence.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	return callVoid(c, ctx, "configurationDone", nil)
}

// Launch sends the launch request. Arguments are adapter-specific.
func (c *Client) Launch(ctx context.Context, args any) error {
	return callVoid(c, ctx, "launch", args)
}

// Attach sends the attach request. Arguments are adapter-specific.
func (c *Client) Attach(ctx context.Context, args any) error {
	return callVoid(c, ctx, "attach", args)
}

// Disconnect sends the disconnect request.
func (c *Client) Disconnect(ctx context.Context, args DisconnectArguments) error {
	return callVoid(c, ctx, "disconnect", args)
}

// Terminate sends the terminate request.
func (c *Client) Terminate(ctx context.Context, args TerminateArguments) error {
	return callVoid(c, ctx, "terminate", args)
}

// SetBreakpoints replaces the breakpoints of one source file.
func (c *Client) SetBreakpoints(ctx context.Context, args SetBreakpointsArguments) ([]Breakpoint, error) {
	body, err := call[SetBreakpointsResponseBody](c, ctx, "setBreakpoints", args)
	if err != nil {
		return nil, err
	}
	return body.Breakpoints, nil
}

// SetFunctionBreakpoints replaces all function breakpoints.
func (c *Client) SetFunctionBreakpoints(ctx context.Context, args SetFunctionBreakpointsArguments) ([]Breakpoint, error) {
	body, err := call[SetBreakpointsResponseBody](c, ctx, "setFunctionBreakpoints", args)
	if err != nil {
		return nil, err
	}
	return body.Breakpoints, nil
}

// SetExceptionBreakpoints configures exception breakpoint filters.
func (c *Client) SetExceptionBreakpoints(ctx context.Context, args SetExceptionBreakpointsArguments) error {
	return callVoid(c, ctx, "setExceptionBreakpoints", args)
}

// Continue resumes execution of a thread.
func (c *Client) Continue(ctx context.Context, args ContinueArguments) (*ContinueResponseBody, error) {
	return call[ContinueResponseBody](c, ctx, "continue", args)
}

// Next steps over the current line.
func (c *Client) Next(ctx context.Context, args NextArguments) error {
	return callVoid(c, ctx, "next", args)
}

// StepIn steps into the current call.
func (c *Client) StepIn(ctx context.Context, args StepInArguments) error {
	return callVoid(c, ctx, "stepIn", args)
}

// StepOut steps out of the current function.
func (c *Client) StepOut(ctx context.Context, args StepOutArguments) error {
	return callVoid(c, ctx, "stepOut", args)
}

// Pause suspends a running thread.
func (c *Client) Pause(ctx context.Context, args PauseArguments) error {
	return callVoid(c, ctx, "pause", args)
}

// Threads lists the debuggee's threads.
func (c *Client) Threads(ctx context.Context) ([]Thread, error) {
	body, err := call[ThreadsResponseBody](c, ctx, "threads", nil)
	if err != nil {
		return nil, err
	}
	return body.Threads, nil
}

// StackTrace retrieves a slice of a thread's call stack.
func (c *Client) StackTrace(ctx context.Context, args StackTraceArguments) (*StackTraceResponseBody, error) {
	return call[StackTraceResponseBody](c, ctx, "stackTrace", args)
}

// Scopes retrieves the variable scopes of a stack frame.
func (c *Client) Scopes(ctx context.Context, args ScopesArguments) ([]Scope, error) {
	body, err := call[ScopesResponseBody](c, ctx, "scopes", args)
	if err != nil {
		return nil, err
	}
	return body.Scopes, nil
}

// Variables resolves the children of a variables reference.
func (c *Client) Variables(ctx context.Context, args VariablesArguments) ([]Variable, error) {
	body, err := call[VariablesResponseBody](c, ctx, "variables", args)
	if err != nil {
		return nil, err
	}
	return body.Variables, nil
}

// SetVariable assigns a new value to a container child.
func (c *Client) SetVariable(ctx context.Context, args SetVariableArguments) (*SetVariableResponseBody, error) {
	return call[SetVariableResponseBody](c, ctx, "setVariable", args)
}

// Evaluate evaluates an expression in a frame context.
func (c *Client) Evaluate(ctx context.Context, args EvaluateArguments) (*EvaluateResponseBody, error) {
	return call[EvaluateResponseBody](c, ctx, "evaluate", args)
}

// RestartFrame restarts execution at the start of a frame.
func (c *Client) RestartFrame(ctx context.Context, args RestartFrameArguments) error {
	return callVoid(c, ctx, "restartFrame", args)
}

// StepInTargets lists the possible stepIn targets of a frame.
func (c *Client) StepInTargets(ctx context.Context, args StepInTargetsArguments) ([]StepInTarget, error) {
	body, err := call[StepInTargetsResponseBody](c, ctx, "stepInTargets", args)
	if err != nil {
		return nil, err
	}
	return body.Targets, nil
}

// GotoTargets lists the possible goto targets for a source location.
func (c *Client) GotoTargets(ctx context.Context, args GotoTargetsArguments) ([]GotoTarget, error) {
	body, err := call[GotoTargetsResponseBody](c, ctx, "gotoTargets", args)
	if err != nil {
		return nil, err
	}
	return body.Targets, nil
}

// Goto moves execution to a previously listed goto target.
func (c *Client) Goto(ctx context.Context, args GotoArguments) error {
	return callVoid(c, ctx, "goto", args)
}

// Source retrieves source content for a source reference.
func (c *Client) Source(ctx context.Context, args SourceArguments) (*SourceResponseBody, error) {
	return call[SourceResponseBody](c, ctx, "source", args)
}
