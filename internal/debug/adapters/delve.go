package adapters

import (
	"fmt"
	"os"
	"os/exec"
)

// DelveConfig extends Config with Delve options.
type DelveConfig struct {
	Config

	// Mode is the debug mode: "debug", "test", "exec".
	Mode string `json:"mode,omitempty"`

	// BuildFlags are passed to go build.
	BuildFlags string `json:"buildFlags,omitempty"`

	// ShowGlobalVariables includes package globals in scopes.
	ShowGlobalVariables bool `json:"showGlobalVariables,omitempty"`

	// HideSystemGoroutines hides runtime goroutines from the thread list.
	HideSystemGoroutines bool `json:"hideSystemGoroutines,omitempty"`

	// StackTraceDepth bounds stack trace responses.
	StackTraceDepth int `json:"stackTraceDepth,omitempty"`
}

// Delve starts dlv in DAP mode for Go programs.
type Delve struct {
	config DelveConfig
}

// NewDelve creates a Delve adapter with defaults.
func NewDelve(base Config) (Adapter, error) {
	return &Delve{config: DelveConfig{
		Config:          base,
		Mode:            "debug",
		StackTraceDepth: 50,
	}}, nil
}

// NewDelveWithConfig creates a Delve adapter from a full configuration.
func NewDelveWithConfig(config DelveConfig) *Delve {
	if config.Mode == "" {
		config.Mode = "debug"
	}
	if config.StackTraceDepth == 0 {
		config.StackTraceDepth = 50
	}
	return &Delve{config: config}
}

// Kind returns the adapter kind.
func (a *Delve) Kind() Kind { return KindDelve }

// Name returns a human-readable adapter name.
func (a *Delve) Name() string { return "Delve (Go)" }

// Validate checks the configuration.
func (a *Delve) Validate() error {
	switch a.config.Request {
	case "launch", "":
		if a.config.Program == "" {
			return fmt.Errorf("program is required for launch")
		}
	case "attach":
		if a.config.ProcessID == 0 && a.config.Port == 0 {
			return fmt.Errorf("processId or port is required for attach")
		}
	default:
		return fmt.Errorf("invalid request type: %s", a.config.Request)
	}
	return nil
}

// Command returns the dlv dap command.
func (a *Delve) Command() (*exec.Cmd, error) {
	dlv := a.config.AdapterPath
	if dlv == "" {
		var err error
		dlv, err = findExecutable("dlv")
		if err != nil {
			return nil, fmt.Errorf("delve not found: %w (go install github.com/go-delve/delve/cmd/dlv@latest)", err)
		}
	}

	args := []string{"dap"}
	if a.config.Port > 0 {
		args = append(args, "--listen", a.config.Address())
	}

	cmd := exec.Command(dlv, args...)
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
func (a *Delve) LaunchArguments() (map[string]any, error) {
	args := map[string]any{
		"mode":        a.config.Mode,
		"program":     a.config.Program,
		"stopOnEntry": a.config.StopOnEntry,
	}
	if len(a.config.Args) > 0 {
		args["args"] = a.config.Args
	}
	if a.config.Cwd != "" {
		args["cwd"] = a.config.Cwd
	}
	if len(a.config.Env) > 0 {
		args["env"] = a.config.Env
	}
	if a.config.BuildFlags != "" {
		args["buildFlags"] = a.config.BuildFlags
	}
	if a.config.ShowGlobalVariables {
		args["showGlobalVariables"] = true
	}
	if a.config.HideSystemGoroutines {
		args["hideSystemGoroutines"] = true
	}
	if a.config.StackTraceDepth > 0 {
		args["stackTraceDepth"] = a.config.StackTraceDepth
	}
	return args, nil
}

// AttachArguments returns the attach request body.
func (a *Delve) AttachArguments() (map[string]any, error) {
	args := map[string]any{
		"mode":        "local",
		"stopOnEntry": a.config.StopOnEntry,
	}
	if a.config.ProcessID > 0 {
		args["processId"] = a.config.ProcessID
	}
	if a.config.StackTraceDepth > 0 {
		args["stackTraceDepth"] = a.config.StackTraceDepth
	}
	return args, nil
}

// Connection returns "stdio" or "socket".
func (a *Delve) Connection() string {
	if a.config.Port > 0 {
		return "socket"
	}
	return "stdio"
}

// Address returns the socket address.
func (a *Delve) Address() string {
	if a.config.Port > 0 {
		return a.config.Address()
	}
	return ""
}
