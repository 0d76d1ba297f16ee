// Package debug implements a Debug Adapter Protocol (DAP) client built
// around recursive variable inspection.
//
// The package speaks DAP to any compatible adapter (Go/Delve,
// Python/debugpy, JavaScript/js-debug, Java) and, whenever the debuggee
// stops, can fetch an entire variable tree in one call instead of the
// usual one-level-at-a-time expansion.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────┐
//	│                        Session                             │
//	│  - Manages the adapter connection and lifecycle            │
//	│  - Tracks threads, state, capabilities                     │
//	│  - Resolves variables requests for the fetcher             │
//	└────────────────────────────────────────────────────────────┘
//	              │                              │
//	              ▼                              ▼
//	┌──────────────────────────┐   ┌──────────────────────────────┐
//	│       TreeFetcher        │   │        VariableStore         │
//	│  - Depth-first traversal │   │  - Fetched reference handles │
//	│  - Handle + identity     │   │  - Known value identities    │
//	│    cycle guards          │   │  - Published variable nodes  │
//	│  - Lazy/depth policy     │   └──────────────────────────────┘
//	└──────────────────────────┘
//
// # Variable Trees
//
// TreeFetcher.FetchVariables expands a set of variablesReference
// handles recursively, publishing each node to the store before
// descending so partial results survive a mid-traversal failure.
// Traversal stops at children that:
//
//   - carry no handle (variablesReference of 0)
//   - were already fetched this session (reference cycle)
//   - match a previously seen display value (adapters that reuse
//     handles per request but render object identity into the value)
//   - are marked lazy, unless forced
//   - sit past the depth limit
//
// The store resets whenever execution resumes; handles are only valid
// while the debuggee is stopped.
//
// # Usage
//
//	store := debug.NewMemoryStore()
//	session, err := debug.NewStdioSession(store, "dlv", "dap")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	session.Initialize(ctx)
//	session.Launch(ctx, launchArgs)
//
//	// When stopped:
//	fetcher := debug.NewTreeFetcher(session, store)
//	inspector := debug.NewInspector(session, fetcher)
//	scopes, _ := inspector.Scopes(ctx, frameID)
//	nodes, _ := inspector.FetchScope(ctx, scopes[0], false)
//
// # Subpackages
//
//   - adapters: adapter launch configuration (Delve, debugpy, js-debug, Java)
//   - dap: Debug Adapter Protocol types and client
package debug
