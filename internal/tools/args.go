package tools

import (
	"encoding/json"
	"strconv"
)

// DecodeArgs parses a tool call's raw JSON argument object against d's
// schema and coerces numeric-looking string values for any property typed
// "number" or "integer". The original implementation coerced arguments
// inconsistently per-tool (some handlers parsed strings themselves, most
// didn't), so a parameter declared numeric but sent quoted by the model
// worked for one tool and silently misbehaved in another. This applies the
// same coercion uniformly for every registered tool.
func DecodeArgs(d Descriptor, raw []byte) (map[string]interface{}, error) {
	var args map[string]interface{}
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}

	for name, prop := range d.Parameters.Properties {
		if prop.Type != "number" && prop.Type != "integer" {
			continue
		}
		v, ok := args[name]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			args[name] = f
		}
	}

	return args, nil
}
