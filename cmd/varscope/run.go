package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/varscope/internal/debug"
	"github.com/dshills/varscope/internal/debug/adapters"
	"github.com/dshills/varscope/internal/launch"
)

var (
	breakFlags []string
	depthFlag  int
	forceFlag  bool
	onceFlag   bool
)

var runCmd = &cobra.Command{
	Use:   "run [configuration]",
	Short: "Debug a program and dump its variable trees at every stop",
	Long: `Starts the configured debug adapter, launches (or attaches to) the
debuggee, and whenever it stops prints the call stack and the full
variable tree of the top frame's scopes.

With one configuration in the file the name may be omitted.

Example:
  varscope run api --break main.go:42 --depth 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDebug,
}

func init() {
	runCmd.Flags().StringArrayVarP(&breakFlags, "break", "b", nil, "breakpoint as file:line or file:line:condition (repeatable)")
	runCmd.Flags().IntVarP(&depthFlag, "depth", "d", 0, "maximum fetch depth (overrides the configuration)")
	runCmd.Flags().BoolVarP(&forceFlag, "force", "f", false, "expand lazy variables")
	runCmd.Flags().BoolVar(&onceFlag, "once", false, "disconnect after the first stop")
}

func runDebug(cmd *cobra.Command, args []string) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	spec, err := loadSpec(name)
	if err != nil {
		return err
	}
	if depthFlag > 0 {
		spec.MaxDepth = depthFlag
	}
	if spec.MaxDepth == 0 {
		spec.MaxDepth = debug.DefaultMaxDepth
	}
	force := forceFlag || spec.ForceLazy

	adapter, body, err := spec.Resolve(adapters.NewRegistry())
	if err != nil {
		return err
	}

	bps := debug.NewBreakpoints()
	for _, flag := range breakFlags {
		if err := addBreakFlag(bps, flag); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := debug.NewMemoryStore()
	session, err := startSession(ctx, store, adapter)
	if err != nil {
		return err
	}
	defer session.Close()

	stopped := make(chan int, 4)
	terminated := make(chan struct{}, 1)
	session.SetHandlers(debug.SessionHandlers{
		OnStopped: func(reason string, threadID int, allStopped bool) {
			fmt.Printf("\nstopped (%s)\n", reason)
			stopped <- threadID
		},
		OnOutput: func(category, output string) {
			if category == "stdout" || category == "stderr" {
				fmt.Print(output)
			}
		},
		OnTerminated: func() {
			select {
			case terminated <- struct{}{}:
			default:
			}
		},
	})

	config := debug.DefaultSessionConfig()
	config.AdapterID = string(adapter.Kind())
	if err := session.Initialize(ctx, config); err != nil {
		return err
	}

	if spec.Request == "attach" {
		err = session.Attach(ctx, body)
	} else {
		err = session.Launch(ctx, body)
	}
	if err != nil {
		return err
	}

	if err := bps.Sync(ctx, session); err != nil {
		return err
	}
	for _, bp := range bps.All() {
		if !bp.Verified {
			logger.Warn("breakpoint not verified",
				zap.String("path", bp.Path), zap.Int("line", bp.Line), zap.String("message", bp.Message))
		}
	}

	if err := session.ConfigurationDone(ctx); err != nil {
		return err
	}

	fetcher := debug.NewTreeFetcher(session, store, debug.WithFetcherLogger(logger))
	inspector := debug.NewInspector(session, fetcher)
	navigator := debug.NewNavigator(session, inspector)

	for {
		select {
		case <-ctx.Done():
			return session.Disconnect(context.Background(), true)
		case <-terminated:
			fmt.Println("\ndebuggee terminated")
			return nil
		case threadID := <-stopped:
			if err := reportStop(ctx, session, navigator, inspector, store, threadID, spec.MaxDepth, force); err != nil {
				return err
			}
			if onceFlag {
				return session.Disconnect(ctx, true)
			}
			if err := session.Continue(ctx, threadID); err != nil {
				return err
			}
		}
	}
}

// loadSpec reads the launch file and selects one configuration.
func loadSpec(name string) (*launch.Spec, error) {
	file, err := launch.Load(configPath)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, fmt.Errorf("launch file %s not found", configPath)
	}
	return file.Select(name)
}

// startSession starts the adapter process and connects to it.
func startSession(ctx context.Context, store *debug.MemoryStore, adapter adapters.Adapter) (*debug.Session, error) {
	command, err := adapter.Command()
	if err != nil {
		return nil, err
	}

	opts := []debug.SessionOption{debug.WithSessionLogger(logger)}

	if adapter.Connection() == "stdio" {
		return debug.NewCommandSession(store, command, opts...)
	}

	if err := command.Start(); err != nil {
		return nil, fmt.Errorf("start adapter: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := adapters.WaitForPort(waitCtx, adapter.Address()); err != nil {
		_ = command.Process.Kill()
		return nil, err
	}

	session, err := debug.NewSocketSession(store, adapter.Address(), opts...)
	if err != nil {
		_ = command.Process.Kill()
		return nil, err
	}
	return session, nil
}

// addBreakFlag parses file:line or file:line:condition.
func addBreakFlag(bps *debug.Breakpoints, flag string) error {
	parts := strings.SplitN(flag, ":", 3)
	if len(parts) < 2 {
		return fmt.Errorf("invalid breakpoint %q, want file:line", flag)
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line <= 0 {
		return fmt.Errorf("invalid breakpoint line in %q", flag)
	}
	condition := ""
	if len(parts) == 3 {
		condition = parts[2]
	}
	bps.AddLine(parts[0], line, condition, "")
	return nil
}

// reportStop prints the call stack and the variable trees of the top
// frame's scopes.
func reportStop(ctx context.Context, session *debug.Session, navigator *debug.Navigator, inspector *debug.Inspector, store *debug.MemoryStore, threadID, maxDepth int, force bool) error {
	if _, err := navigator.Load(ctx, threadID); err != nil {
		return fmt.Errorf("load stack: %w", err)
	}
	fmt.Print(navigator.Format(threadID))

	frame := navigator.Stack(threadID).SelectedFrame()
	if frame == nil {
		return nil
	}

	scopes, err := inspector.Scopes(ctx, frame.ID)
	if err != nil {
		return fmt.Errorf("scopes: %w", err)
	}

	for _, scope := range scopes {
		if scope.Expensive {
			continue
		}
		if _, err := inspector.FetchScopeDepth(ctx, scope, force, maxDepth); err != nil {
			return fmt.Errorf("fetch %s: %w", scope.Name, err)
		}
		fmt.Printf("\n%s:\n", scope.Name)
		printTree(store, session.ID(), scope.VariablesReference, 1)
	}
	return nil
}

// printTree renders a fetched variable tree from the store.
func printTree(store *debug.MemoryStore, sessionID string, ref, indent int) {
	printTreeSeen(store, sessionID, ref, indent, map[int]bool{ref: true})
}

func printTreeSeen(store *debug.MemoryStore, sessionID string, ref, indent int, seen map[int]bool) {
	node, ok := store.Node(sessionID, ref)
	if !ok {
		return
	}
	pad := strings.Repeat("  ", indent)
	for _, child := range node.Children {
		fmt.Printf("%s%s\n", pad, debug.FormatVariable(child))
		childRef := child.VariablesReference
		if childRef > 0 && !seen[childRef] {
			seen[childRef] = true
			printTreeSeen(store, sessionID, childRef, indent+1, seen)
		}
	}
}
