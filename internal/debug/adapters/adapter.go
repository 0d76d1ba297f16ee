// Package adapters provides launch configuration for debug adapters.
package adapters

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

// Kind identifies a debug adapter.
type Kind string

const (
	// KindDelve is the Go debugger (delve).
	KindDelve Kind = "delve"
	// KindPython is the Python debugger (debugpy).
	KindPython Kind = "python"
	// KindNodeJS is the Node.js debugger (js-debug).
	KindNodeJS Kind = "nodejs"
	// KindJava is the Java debugger (java-debug over JDWP).
	KindJava Kind = "java"
)

// Config is the adapter-independent part of a debug configuration.
type Config struct {
	// Kind selects the adapter.
	Kind Kind `json:"kind"`

	// Name is a human-readable name for this configuration.
	Name string `json:"name"`

	// Request is "launch" or "attach".
	Request string `json:"request"`

	// Program is the program to debug.
	Program string `json:"program,omitempty"`

	// Module is the module to run (Python, Node.js).
	Module string `json:"module,omitempty"`

	// Args are the program's arguments.
	Args []string `json:"args,omitempty"`

	// Cwd is the debuggee working directory.
	Cwd string `json:"cwd,omitempty"`

	// Env are extra environment variables for the debuggee.
	Env map[string]string `json:"env,omitempty"`

	// StopOnEntry stops at the program entry point.
	StopOnEntry bool `json:"stopOnEntry,omitempty"`

	// Host and Port address a socket adapter or attach target.
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`

	// ProcessID is the process to attach to.
	ProcessID int `json:"processId,omitempty"`

	// AdapterPath overrides the adapter executable found in PATH.
	AdapterPath string `json:"adapterPath,omitempty"`
}

// Address returns the host:port pair, defaulting to loopback.
func (c Config) Address() string {
	host := c.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d", host, c.Port)
}

// Adapter describes how to start and talk to one debug adapter.
type Adapter interface {
	// Kind returns the adapter kind.
	Kind() Kind

	// Name returns a human-readable adapter name.
	Name() string

	// Validate checks the configuration for the configured request.
	Validate() error

	// Command returns the command that starts the adapter process.
	Command() (*exec.Cmd, error)

	// LaunchArguments returns the body of the launch request.
	LaunchArguments() (map[string]any, error)

	// AttachArguments returns the body of the attach request.
	AttachArguments() (map[string]any, error)

	// Connection returns "stdio" or "socket".
	Connection() string

	// Address returns the socket address when Connection is "socket".
	Address() string
}

// Factory builds an adapter from a base configuration.
type Factory func(Config) (Adapter, error)

// Registry maps adapter kinds to factories.
type Registry struct {
	factories map[Kind]Factory
}

// NewRegistry returns a registry with the built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[Kind]Factory)}
	r.Register(KindDelve, NewDelve)
	r.Register(KindPython, NewPython)
	r.Register(KindNodeJS, NewNodeJS)
	r.Register(KindJava, NewJava)
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.factories[kind] = factory
}

// Create builds an adapter for the configuration's kind.
func (r *Registry) Create(config Config) (Adapter, error) {
	factory, ok := r.factories[config.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown adapter kind: %s", config.Kind)
	}
	return factory(config)
}

// Kinds returns the registered adapter kinds, sorted.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Detect guesses the adapter kind from a file name. An empty kind means
// no adapter claims the extension.
func Detect(filename string) Kind {
	switch filepath.Ext(filename) {
	case ".go":
		return KindDelve
	case ".py":
		return KindPython
	case ".js", ".ts", ".mjs", ".cjs":
		return KindNodeJS
	case ".java":
		return KindJava
	default:
		return ""
	}
}

func findExecutable(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// WaitForPort polls until the address accepts TCP connections or the
// context ends. Socket adapters need a moment to start listening.
func WaitForPort(ctx context.Context, address string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", address, ctx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", address, 50*time.Millisecond)
			if err == nil {
				conn.Close()
				return nil
			}
		}
	}
}
