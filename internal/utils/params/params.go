package params

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var paramKeyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ParseSpecs parses `key=value` effect parameter specs. Values are decoded as YAML
// scalars so `0.8` is a number, `true` a bool and `anime` a string.
func ParseSpecs(specs []string) (map[string]any, error) {
	params := make(map[string]any, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("parameter spec cannot be empty")
		}

		key, value, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("parameter spec %q must be in key=value format", spec)
		}
		if !paramKeyRegexp.MatchString(key) {
			return nil, fmt.Errorf("invalid parameter key %q", key)
		}

		v, err := decodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter %q value: %w", key, err)
		}
		params[key] = v
	}

	return params, nil
}

func decodeValue(value string) (any, error) {
	if value == "" {
		return "", nil
	}

	var v any
	if err := yaml.Unmarshal([]byte(value), &v); err != nil {
		return nil, err
	}

	// Only scalars, anything else is kept as the raw string.
	switch v.(type) {
	case map[string]any, []any:
		return value, nil
	case nil:
		return value, nil
	}

	return v, nil
}

// MergeMaps returns a new map with the base values overridden by the override ones.
func MergeMaps(base, override map[string]any) map[string]any {
	if len(base) == 0 && len(override) == 0 {
		return map[string]any{}
	}

	merged := make(map[string]any, len(base)+len(override))
	maps.Copy(merged, base)
	maps.Copy(merged, override)

	return merged
}
