package debug

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dshills/varscope/internal/debug/dap"
)

func stackSession(t *testing.T) *Session {
	t.Helper()
	session, _ := newTestSession(t, func(req dap.Request) []json.RawMessage {
		switch req.Command {
		case "stackTrace":
			var args dap.StackTraceArguments
			_ = json.Unmarshal(req.Arguments, &args)
			if args.StartFrame == 0 {
				return bodyResponse(req, `{"stackFrames":[
					{"id":10,"name":"main.handler","source":{"path":"/src/handler.go"},"line":42,"column":2},
					{"id":11,"name":"main.main","source":{"path":"/src/main.go"},"line":12,"column":1}],
					"totalFrames":3}`)
			}
			return bodyResponse(req, `{"stackFrames":[
				{"id":12,"name":"runtime.main","line":250}],"totalFrames":3}`)
		case "threads":
			return bodyResponse(req, `{"threads":[{"id":1,"name":"goroutine 1"}]}`)
		default:
			return okFor(req)
		}
	})
	return session
}

func newTestNavigator(t *testing.T, session *Session) *Navigator {
	t.Helper()
	fetcher := NewTreeFetcher(session, session.Store())
	return NewNavigator(session, NewInspector(session, fetcher))
}

func TestNavigatorLoad(t *testing.T) {
	session := stackSession(t)
	nav := newTestNavigator(t, session)

	stack, err := nav.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if stack.ThreadName != "goroutine 1" {
		t.Errorf("ThreadName = %q, want %q", stack.ThreadName, "goroutine 1")
	}
	if len(stack.Frames) != 2 || stack.TotalFrames != 3 {
		t.Fatalf("frames = %d/%d, want 2/3", len(stack.Frames), stack.TotalFrames)
	}
	if !stack.Frames[0].Current {
		t.Error("top frame should be current")
	}
	if got := stack.SelectedFrame(); got == nil || got.ID != 10 {
		t.Errorf("SelectedFrame() = %+v, want frame 10", got)
	}
}

func TestNavigatorLoadMore(t *testing.T) {
	session := stackSession(t)
	nav := newTestNavigator(t, session)

	if _, err := nav.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := nav.LoadMore(context.Background(), 1); err != nil {
		t.Fatalf("LoadMore() error = %v", err)
	}

	stack := nav.Stack(1)
	if len(stack.Frames) != 3 {
		t.Fatalf("frames = %d, want 3", len(stack.Frames))
	}
	if stack.Frames[2].Name != "runtime.main" {
		t.Errorf("Frames[2].Name = %q", stack.Frames[2].Name)
	}

	// Fully loaded; further calls are a no-op.
	if err := nav.LoadMore(context.Background(), 1); err != nil {
		t.Fatalf("LoadMore() after full load error = %v", err)
	}
	if len(nav.Stack(1).Frames) != 3 {
		t.Error("no frames should be appended past TotalFrames")
	}
}

func TestNavigatorSelect(t *testing.T) {
	session := stackSession(t)
	nav := newTestNavigator(t, session)

	if _, err := nav.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := nav.Select(1, 1); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got := nav.Stack(1).SelectedFrame(); got.ID != 11 {
		t.Errorf("SelectedFrame().ID = %d, want 11", got.ID)
	}

	if err := nav.Select(1, 9); err == nil {
		t.Error("Select() out of range should fail")
	}
	if err := nav.SelectUp(1); err == nil {
		t.Error("SelectUp() past the last loaded frame should fail")
	}
	if err := nav.SelectDown(1); err != nil {
		t.Fatalf("SelectDown() error = %v", err)
	}
	if got := nav.Stack(1).SelectedFrame(); got.ID != 10 {
		t.Errorf("after SelectDown, SelectedFrame().ID = %d, want 10", got.ID)
	}
	if err := nav.SelectDown(1); err == nil {
		t.Error("SelectDown() at the top frame should fail")
	}
}

func TestNavigatorFormat(t *testing.T) {
	session := stackSession(t)
	nav := newTestNavigator(t, session)

	if _, err := nav.Load(context.Background(), 1); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	out := nav.Format(1)
	if !strings.Contains(out, "> #0 main.handler at handler.go:42") {
		t.Errorf("Format() missing selected top frame:\n%s", out)
	}
	if !strings.Contains(out, "  #1 main.main at main.go:12") {
		t.Errorf("Format() missing second frame:\n%s", out)
	}
	if !strings.Contains(out, "(1 more frames)") {
		t.Errorf("Format() missing truncation marker:\n%s", out)
	}
}

func TestNavigatorCapabilityGates(t *testing.T) {
	// No initialize has run, so the session reports nil capabilities.
	session, _ := newTestSession(t, okFor)
	nav := newTestNavigator(t, session)

	if err := nav.RestartFrame(context.Background(), 10); err == nil ||
		!strings.Contains(err.Error(), "not supported") {
		t.Errorf("RestartFrame() error = %v, want not supported", err)
	}
	if _, err := nav.StepInTargets(context.Background(), 10); err == nil ||
		!strings.Contains(err.Error(), "not supported") {
		t.Errorf("StepInTargets() error = %v, want not supported", err)
	}
	if err := nav.Goto(context.Background(), 1, 5); err == nil ||
		!strings.Contains(err.Error(), "not supported") {
		t.Errorf("Goto() error = %v, want not supported", err)
	}
}

func TestFrameLocation(t *testing.T) {
	withSource := &Frame{Name: "f", Source: &dap.Source{Path: "/src/main.go"}, Line: 12}
	if got := withSource.Location(); got != "main.go:12" {
		t.Errorf("Location() = %q, want main.go:12", got)
	}
	if !withSource.HasSource() {
		t.Error("frame with path should have source")
	}

	bare := &Frame{Name: "runtime.goexit", Line: 0}
	if bare.HasSource() {
		t.Error("frame without source should not report one")
	}
}
