package launch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File is a parsed launch configuration file.
type File struct {
	// Path is where the file was loaded from.
	Path string

	// Defaults are merged under every configuration.
	Defaults map[string]any

	// Configurations are the named launch specs, in file order.
	Configurations []*Spec
}

// fileShape is the raw decoded form before spec resolution.
type fileShape struct {
	Defaults       map[string]any   `json:"defaults" yaml:"defaults" toml:"defaults"`
	Configurations []map[string]any `json:"configurations" yaml:"configurations" toml:"configurations"`
}

// Load reads a launch file; the extension selects the format. A missing
// file returns nil without error.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read launch file %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes launch file content. The path's extension selects the
// format; unknown extensions parse as TOML.
func Parse(path string, data []byte) (*File, error) {
	var shape fileShape
	var err error

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &shape)
	case ".json":
		err = json.Unmarshal(data, &shape)
	default:
		err = toml.Unmarshal(data, &shape)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	file := &File{Path: path, Defaults: shape.Defaults}
	for _, raw := range shape.Configurations {
		merged := deepMerge(clone(shape.Defaults), raw)
		spec, err := specFromMap(merged)
		if err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		if err := spec.Validate(); err != nil {
			return nil, &ParseError{Path: path, Err: err}
		}
		file.Configurations = append(file.Configurations, spec)
	}
	return file, nil
}

// Select returns the named configuration, or the only one when name is
// empty and the file defines exactly one.
func (f *File) Select(name string) (*Spec, error) {
	if name == "" {
		if len(f.Configurations) == 1 {
			return f.Configurations[0], nil
		}
		return nil, fmt.Errorf("%s defines %d configurations, pick one by name", f.Path, len(f.Configurations))
	}
	for _, spec := range f.Configurations {
		if spec.Name == name {
			return spec, nil
		}
	}
	return nil, fmt.Errorf("configuration %q not found in %s", name, f.Path)
}

// Names returns the configuration names in file order.
func (f *File) Names() []string {
	names := make([]string, len(f.Configurations))
	for i, spec := range f.Configurations {
		names[i] = spec.Name
	}
	return names
}

// ParseError wraps a launch file decode failure with its path.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// deepMerge merges src over dst. Maps merge recursively, everything
// else replaces.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		if dstMap, ok := dst[key].(map[string]any); ok {
			if srcMap, ok := srcVal.(map[string]any); ok {
				dst[key] = deepMerge(dstMap, srcMap)
				continue
			}
		}
		dst[key] = srcVal
	}
	return dst
}

func clone(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for key, val := range src {
		switch v := val.(type) {
		case map[string]any:
			dst[key] = clone(v)
		case []any:
			dst[key] = append([]any(nil), v...)
		default:
			dst[key] = val
		}
	}
	return dst
}
