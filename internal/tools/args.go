// ABOUTME: Schema narrowing: promotes only declared parameters of a tool's JSON schema
// ABOUTME: Undeclared keys are dropped and reported; untyped nested objects pass through as maps

package tools

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
)

// Args holds tool arguments narrowed against the tool's declared parameters.
type Args struct {
	values  map[string]any
	dropped []string
	raw     map[string]any
}

// schemaNode is the subset of JSON Schema that narrowing understands.
type schemaNode struct {
	Type       any                    `json:"type"`
	Properties map[string]*schemaNode `json:"properties"`
	Items      *schemaNode            `json:"items"`
}

// primaryType returns the first non-null type of a node. JSON Schema allows
// either a string or a list of strings.
func (n *schemaNode) primaryType() string {
	switch t := n.Type.(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

// Narrow keeps the keys of raw declared in schema's "properties" and converts
// each to its declared type. A nil or unparsable schema declares nothing.
func Narrow(schema json.RawMessage, raw map[string]any) Args {
	args := Args{values: make(map[string]any), raw: raw}

	var root schemaNode
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &root); err != nil {
			root = schemaNode{}
		}
	}

	for key, v := range raw {
		prop, ok := root.Properties[key]
		if !ok || prop == nil {
			args.dropped = append(args.dropped, key)
			continue
		}
		args.values[key] = narrowValue(prop, v)
	}
	slices.Sort(args.dropped)
	return args
}

// narrowValue converts v to the type declared by node. Values that cannot be
// converted are kept unchanged so the tool can report the mismatch.
func narrowValue(node *schemaNode, v any) any {
	switch node.primaryType() {
	case "string":
		if s, ok := v.(string); ok {
			return s
		}
	case "integer":
		if n, ok := toInt(v); ok {
			return n
		}
	case "number":
		if f, ok := toFloat(v); ok {
			return f
		}
	case "boolean":
		switch b := v.(type) {
		case bool:
			return b
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed
			}
		}
	case "array":
		items, ok := v.([]any)
		if !ok || node.Items == nil {
			return v
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = narrowValue(node.Items, item)
		}
		return out
	case "object":
		m, ok := v.(map[string]any)
		if !ok || len(node.Properties) == 0 {
			return v
		}
		return narrowObject(node, m)
	}
	return v
}

// narrowObject narrows an object parameter with declared properties.
func narrowObject(node *schemaNode, m map[string]any) map[string]any {
	out := make(map[string]any, len(node.Properties))
	for key, v := range m {
		if prop, ok := node.Properties[key]; ok && prop != nil {
			out[key] = narrowValue(prop, v)
		}
	}
	return out
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) || n >= float64(math.MaxInt64) || n < float64(math.MinInt64) {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// Get returns the narrowed value for key.
func (a Args) Get(key string) (any, bool) {
	v, ok := a.values[key]
	return v, ok
}

// Has reports whether key was declared and supplied.
func (a Args) Has(key string) bool {
	_, ok := a.values[key]
	return ok
}

// Len returns the number of narrowed arguments.
func (a Args) Len() int { return len(a.values) }

// Keys returns the narrowed argument names in sorted order.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String returns a string argument or def when absent or mistyped.
func (a Args) String(key, def string) string {
	if s, ok := a.values[key].(string); ok {
		return s
	}
	return def
}

// Int returns an integer argument or def when absent or mistyped.
func (a Args) Int(key string, def int64) int64 {
	if n, ok := a.values[key].(int64); ok {
		return n
	}
	return def
}

// Float returns a number argument or def when absent or mistyped.
func (a Args) Float(key string, def float64) float64 {
	if f, ok := a.values[key].(float64); ok {
		return f
	}
	return def
}

// Bool returns a boolean argument or def when absent or mistyped.
func (a Args) Bool(key string, def bool) bool {
	if b, ok := a.values[key].(bool); ok {
		return b
	}
	return def
}

// Map returns an object argument.
func (a Args) Map(key string) (map[string]any, bool) {
	m, ok := a.values[key].(map[string]any)
	return m, ok
}

// Slice returns an array argument.
func (a Args) Slice(key string) ([]any, bool) {
	s, ok := a.values[key].([]any)
	return s, ok
}

// Dropped lists the supplied keys that the schema does not declare, sorted.
func (a Args) Dropped() []string { return a.dropped }

// Raw returns the untouched input map.
func (a Args) Raw() map[string]any { return a.raw }
