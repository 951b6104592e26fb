package agentloop

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// validateArguments checks args against a JSON-schema object: required keys,
// primitive property types, and unknown keys when additionalProperties is
// false. Nested schemas are not descended into.
func validateArguments(schema map[string]interface{}, args map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	required, err := requiredFields(schema["required"])
	if err != nil {
		return err
	}
	for _, field := range required {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required argument %q", field)
		}
	}

	properties, hasProperties := schema["properties"].(map[string]interface{})
	additionalAllowed := true
	if raw, ok := schema["additionalProperties"]; ok {
		b, ok := raw.(bool)
		if !ok {
			return errors.New(`schema "additionalProperties" must be a bool`)
		}
		additionalAllowed = b
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		prop, known := properties[key]
		if !known {
			if hasProperties && !additionalAllowed {
				return fmt.Errorf("unknown argument %q", key)
			}
			continue
		}
		propMap, ok := prop.(map[string]interface{})
		if !ok {
			continue
		}
		want, ok := propMap["type"].(string)
		if !ok {
			continue
		}
		if !matchesType(want, args[key]) {
			return fmt.Errorf("argument %q must be of type %s", key, want)
		}
	}
	return nil
}

func requiredFields(raw interface{}) ([]string, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.New(`schema "required" entries must be strings`)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New(`schema "required" must be an array`)
	}
}

// matchesType reports whether a decoded JSON value has the schema type want.
// Values come from encoding/json, so numbers are float64.
func matchesType(want string, value interface{}) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}
