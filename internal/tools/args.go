package tools

import (
	"encoding/json"
	"fmt"
)

// String returns args[i] as a string. A non-string value is an error so the
// dispatcher reports it as an internal error, matching a strict-typed callee.
func String(args []any, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("argument %d missing", i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("argument %d must be of type string, %s given", i+1, typeName(args[i]))
	}
	return s, nil
}

// Float returns args[i] as a float64. JSON numbers decode as float64.
func Float(args []any, i int) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("argument %d missing", i+1)
	}
	switch v := args[i].(type) {
	case float64:
		return v, nil
	case json.Number:
		return v.Float64()
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("argument %d must be of type number, %s given", i+1, typeName(args[i]))
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, json.Number, int:
		return "number"
	case bool:
		return "bool"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
