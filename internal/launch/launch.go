// Package launch loads debug launch configurations from TOML, YAML, and
// JSON files and resolves them into adapter configurations.
package launch

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/varscope/internal/debug/adapters"
)

// Spec is one named launch configuration. Fields the adapters share are
// typed; adapter-specific keys land in Extra and are merged into the
// launch request body verbatim.
type Spec struct {
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	Request     string            `json:"request,omitempty"`
	Program     string            `json:"program,omitempty"`
	Module      string            `json:"module,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	StopOnEntry bool              `json:"stopOnEntry,omitempty"`
	Host        string            `json:"host,omitempty"`
	Port        int               `json:"port,omitempty"`
	ProcessID   int               `json:"processId,omitempty"`
	AdapterPath string            `json:"adapterPath,omitempty"`

	// MaxDepth bounds recursive variable fetches for this configuration.
	MaxDepth int `json:"maxDepth,omitempty"`

	// ForceLazy expands lazy variables during recursive fetches.
	ForceLazy bool `json:"forceLazy,omitempty"`

	// Extra holds adapter-specific keys not covered above.
	Extra map[string]any `json:"-"`
}

// specKeys are the typed Spec fields; anything else in a configuration
// map goes to Extra.
var specKeys = map[string]bool{
	"name": true, "kind": true, "request": true, "program": true,
	"module": true, "args": true, "cwd": true, "env": true,
	"stopOnEntry": true, "host": true, "port": true, "processId": true,
	"adapterPath": true, "maxDepth": true, "forceLazy": true,
}

// specFromMap decodes a configuration map into a Spec, routing unknown
// keys into Extra.
func specFromMap(raw map[string]any) (*Spec, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode configuration: %w", err)
	}

	var spec Spec
	if err := json.Unmarshal(encoded, &spec); err != nil {
		return nil, fmt.Errorf("decode configuration %q: %w", raw["name"], err)
	}

	for key, value := range raw {
		if specKeys[key] {
			continue
		}
		if spec.Extra == nil {
			spec.Extra = make(map[string]any)
		}
		spec.Extra[key] = value
	}
	return &spec, nil
}

// Validate checks the fields every adapter needs.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("configuration has no name")
	}
	if s.Kind == "" {
		return fmt.Errorf("configuration %q has no kind", s.Name)
	}
	return nil
}

// AdapterConfig converts the spec into the adapter-independent config.
func (s *Spec) AdapterConfig() adapters.Config {
	return adapters.Config{
		Kind:        adapters.Kind(s.Kind),
		Name:        s.Name,
		Request:     s.Request,
		Program:     s.Program,
		Module:      s.Module,
		Args:        s.Args,
		Cwd:         s.Cwd,
		Env:         s.Env,
		StopOnEntry: s.StopOnEntry,
		Host:        s.Host,
		Port:        s.Port,
		ProcessID:   s.ProcessID,
		AdapterPath: s.AdapterPath,
	}
}

// Resolve builds the adapter and the launch or attach request body,
// with Extra keys merged over the adapter's arguments.
func (s *Spec) Resolve(registry *adapters.Registry) (adapters.Adapter, json.RawMessage, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	adapter, err := registry.Create(s.AdapterConfig())
	if err != nil {
		return nil, nil, err
	}
	if err := adapter.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration %q: %w", s.Name, err)
	}

	var base map[string]any
	if s.Request == "attach" {
		base, err = adapter.AttachArguments()
	} else {
		base, err = adapter.LaunchArguments()
	}
	if err != nil {
		return nil, nil, err
	}

	body, err := MergeArguments(base, s.Extra)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration %q: %w", s.Name, err)
	}
	return adapter, body, nil
}
