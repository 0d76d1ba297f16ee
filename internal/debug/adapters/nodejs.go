package adapters

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// NodeJSConfig extends Config with js-debug options.
type NodeJSConfig struct {
	Config

	// RuntimeExecutable overrides the node binary found in PATH.
	RuntimeExecutable string `json:"runtimeExecutable,omitempty"`

	// RuntimeArgs are passed to the runtime ahead of the program.
	RuntimeArgs []string `json:"runtimeArgs,omitempty"`

	// SourceMaps enables source map resolution.
	SourceMaps bool `json:"sourceMaps,omitempty"`

	// SkipFiles are glob patterns skipped while stepping.
	SkipFiles []string `json:"skipFiles,omitempty"`

	// DapServerPath is the js-debug dapDebugServer.js entry point.
	DapServerPath string `json:"dapServerPath,omitempty"`
}

// NodeJS starts the js-debug DAP server. js-debug only speaks DAP over
// a socket, so Port is required.
type NodeJS struct {
	config NodeJSConfig
}

// NewNodeJS creates a Node.js adapter with defaults.
func NewNodeJS(base Config) (Adapter, error) {
	return &NodeJS{config: NodeJSConfig{
		Config:     base,
		SourceMaps: true,
		SkipFiles:  []string{"<node_internals>/**"},
	}}, nil
}

// NewNodeJSWithConfig creates a Node.js adapter from a full configuration.
func NewNodeJSWithConfig(config NodeJSConfig) *NodeJS {
	return &NodeJS{config: config}
}

// Kind returns the adapter kind.
func (a *NodeJS) Kind() Kind { return KindNodeJS }

// Name returns a human-readable adapter name.
func (a *NodeJS) Name() string { return "js-debug (Node.js)" }

// Validate checks the configuration.
func (a *NodeJS) Validate() error {
	if a.config.Port == 0 {
		return fmt.Errorf("port is required")
	}
	switch a.config.Request {
	case "launch", "":
		if a.config.Program == "" {
			return fmt.Errorf("program is required for launch")
		}
	case "attach":
	default:
		return fmt.Errorf("invalid request type: %s", a.config.Request)
	}
	return nil
}

// Command returns the js-debug server command.
func (a *NodeJS) Command() (*exec.Cmd, error) {
	node := a.config.RuntimeExecutable
	if node == "" {
		var err error
		node, err = findExecutable("node")
		if err != nil {
			return nil, fmt.Errorf("node not found: %w", err)
		}
	}

	server := a.config.DapServerPath
	if server == "" {
		server = a.config.AdapterPath
	}
	if server == "" {
		return nil, fmt.Errorf("dapServerPath is required (path to js-debug dapDebugServer.js)")
	}

	cmd := exec.Command(node, server, strconv.Itoa(a.config.Port))
	if a.config.Cwd != "" {
		cmd.Dir = a.config.Cwd
	}
	cmd.Env = os.Environ()
	for k, v := range a.config.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	return cmd, nil
}

// LaunchArguments returns the launch request body.
func (a *NodeJS) LaunchArguments() (map[string]any, error) {
	args := map[string]any{
		"type":        "pwa-node",
		"request":     "launch",
		"program":     a.config.Program,
		"stopOnEntry": a.config.StopOnEntry,
		"sourceMaps":  a.config.SourceMaps,
	}
	if len(a.config.Args) > 0 {
		args["args"] = a.config.Args
	}
	if len(a.config.RuntimeArgs) > 0 {
		args["runtimeArgs"] = a.config.RuntimeArgs
	}
	if a.config.RuntimeExecutable != "" {
		args["runtimeExecutable"] = a.config.RuntimeExecutable
	}
	if a.config.Cwd != "" {
		args["cwd"] = a.config.Cwd
	}
	if len(a.config.Env) > 0 {
		args["env"] = a.config.Env
	}
	if len(a.config.SkipFiles) > 0 {
		args["skipFiles"] = a.config.SkipFiles
	}
	return args, nil
}

// AttachArguments returns the attach request body.
func (a *NodeJS) AttachArguments() (map[string]any, error) {
	host := a.config.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return map[string]any{
		"type":    "pwa-node",
		"request": "attach",
		"address": host,
		"port":    a.config.Port,
	}, nil
}

// Connection returns "socket"; js-debug has no stdio mode.
func (a *NodeJS) Connection() string { return "socket" }

// Address returns the socket address.
func (a *NodeJS) Address() string { return a.config.Address() }
