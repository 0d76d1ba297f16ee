package launch

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MergeArguments overlays extra keys onto the base request body. Extra
// keys win; dotted keys ("connect.port") address nested values.
func MergeArguments(base map[string]any, extra map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}

	// Deterministic application order so later keys win predictably.
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		body, err = sjson.SetBytes(body, key, extra[key])
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", key, err)
		}
	}
	return body, nil
}

// Overridden reports which extra keys replace a value the adapter
// already set, for warning the user about shadowed defaults.
func Overridden(base map[string]any, extra map[string]any) []string {
	body, err := json.Marshal(base)
	if err != nil {
		return nil
	}

	var clobbered []string
	for key := range extra {
		if gjson.GetBytes(body, key).Exists() {
			clobbered = append(clobbered, key)
		}
	}
	sort.Strings(clobbered)
	return clobbered
}
