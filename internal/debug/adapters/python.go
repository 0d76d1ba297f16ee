package adapters

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// PythonConfig extends Config with debugpy options.
type PythonConfig struct {
	Config

	// PythonPath overrides the interpreter found in PATH.
	PythonPath string `json:"pythonPath,omitempty"`

	// JustMyCode limits stepping and scopes to user code.
	JustMyCode bool `json:"justMyCode,omitempty"`

	// RedirectOutput routes debuggee output through the adapter.
	RedirectOutput bool `json:"redirectOutput,omitempty"`

	// ShowReturnValue surfaces return values as synthetic variables.
	ShowReturnValue bool `json:"showReturnValue,omitempty"`

	// SubProcess debugs child processes too.
	SubProcess bool `json:"subProcess,omitempty"`
}

// Python starts debugpy's DAP adapter.
type Python struct {
	config PythonConfig
}

// NewPython creates a Python adapter with defaults.
func NewPython(base Config) (Adapter, error) {
	return &Python{config: PythonConfig{
		Config:          base,
		JustMyCode:      true,
		RedirectOutput:  true,
		ShowReturnValue: true,
	}}, nil
}

// NewPythonWithConfig creates a Python adapter from a full configuration.
func NewPythonWithConfig(config PythonConfig) *Python {
	return &Python{config: config}
}

// Kind returns the adapter kind.
func (a *Python) Kind() Kind { return KindPython }

// Name returns a human-readable adapter name.
func (a *Python) Name() string { return "debugpy (Python)" }

// Validate checks the configuration.
func (a *Python) Validate() error {
	switch a.config.Request {
	case "launch", "":
		if a.config.Program == "" && a.config.Module == "" {
			return fmt.Errorf("program or module is required for launch")
		}
	case "attach":
		if a.config.Port == 0 && a.config.ProcessID == 0 {
			return fmt.Errorf("port or processId is required for attach")
		}
	default:
		return fmt.Errorf("invalid request type: %s", a.config.Request)
	}
	return nil
}

// Command returns the debugpy adapter command.
func (a *Python) Command() (*exec.Cmd, error) {
	python := a.config.PythonPath
	if python == "" {
		var err error
		python, err = findExecutable("python3")
		if err != nil {
			python, err = findExecutable("python")
			if err != nil {
				return nil, fmt.Errorf("python not found in PATH (pip install debugpy)")
			}
		}
	}

	args := []string{"-m", "debugpy.adapter"}
	if a.config.Port > 0 {
		host := a.config.Host
		if host == "" {
			host = "127.0.0.1"
		}
		args = append(args, "--host", host, "--port", strconv.Itoa(a.config.Port))
	}

	cmd := exec.Command(python, args...)
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
func (a *Python) LaunchArguments() (map[string]any, error) {
	args := map[string]any{
		"type":           "python",
		"request":        "launch",
		"stopOnEntry":    a.config.StopOnEntry,
		"justMyCode":     a.config.JustMyCode,
		"redirectOutput": a.config.RedirectOutput,
	}
	if a.config.Program != "" {
		args["program"] = a.config.Program
	}
	if a.config.Module != "" {
		args["module"] = a.config.Module
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
	if a.config.ShowReturnValue {
		args["showReturnValue"] = true
	}
	if a.config.SubProcess {
		args["subProcess"] = true
	}
	return args, nil
}

// AttachArguments returns the attach request body.
func (a *Python) AttachArguments() (map[string]any, error) {
	args := map[string]any{
		"type":           "python",
		"request":        "attach",
		"justMyCode":     a.config.JustMyCode,
		"redirectOutput": a.config.RedirectOutput,
	}
	if a.config.Port > 0 {
		host := a.config.Host
		if host == "" {
			host = "127.0.0.1"
		}
		args["connect"] = map[string]any{"host": host, "port": a.config.Port}
	}
	if a.config.ProcessID > 0 {
		args["processId"] = a.config.ProcessID
	}
	return args, nil
}

// Connection returns "stdio" or "socket".
func (a *Python) Connection() string {
	if a.config.Port > 0 {
		return "socket"
	}
	return "stdio"
}

// Address returns the socket address.
func (a *Python) Address() string {
	if a.config.Port > 0 {
		return a.config.Address()
	}
	return ""
}
