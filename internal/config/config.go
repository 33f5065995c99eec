// Package config implements the nested key-value descriptor documents that
// select and parameterize encodings and networks.
package config

import (
	"fmt"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Descriptor is a nested configuration document. Values are the usual
// decoded-JSON types: string, float64, bool, map[string]any, []any.
type Descriptor map[string]any

// FromJSON parses a descriptor from JSON.
func FromJSON(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: parse json descriptor: %w", err)
	}
	return d, nil
}

// FromYAML parses a descriptor from YAML. Nested maps are normalized to
// the same shape FromJSON produces.
func FromYAML(data []byte) (Descriptor, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse yaml descriptor: %w", err)
	}
	return Descriptor(normalizeMap(raw)), nil
}

// normalizeMap rewrites yaml's map[string]any values recursively so Sub()
// works regardless of the source format.
func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}

// Str returns the string at key, or def when absent.
func (d Descriptor) Str(key, def string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer at key, or def when absent.
// JSON numbers decode as float64; integral values are accepted.
func (d Descriptor) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Float returns the float at key, or def when absent.
func (d Descriptor) Float(key string, def float64) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Bool returns the bool at key, or def when absent.
func (d Descriptor) Bool(key string, def bool) bool {
	if v, ok := d[key].(bool); ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (d Descriptor) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Sub returns the nested descriptor at key, or nil when absent or not a map.
func (d Descriptor) Sub(key string) Descriptor {
	if v, ok := d[key].(map[string]any); ok {
		return Descriptor(v)
	}
	if v, ok := d[key].(Descriptor); ok {
		return v
	}
	return nil
}
