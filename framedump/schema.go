package framedump

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mickamy/unwind"
)

const schemaURL = "https://unwind.mickamy.dev/schema/frame-dump.json"

// Schema is the JSON Schema every dump is validated against.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["frames"],
  "properties": {
    "error": {
      "type": "object",
      "properties": {
        "type": {"type": "string"},
        "message": {"type": "string"}
      }
    },
    "frames": {
      "type": "array",
      "items": {"$ref": "#/$defs/frame"}
    }
  },
  "$defs": {
    "frame": {
      "type": "object",
      "required": ["file", "line"],
      "additionalProperties": false,
      "properties": {
        "file": {"type": "string"},
        "line": {"type": "integer", "minimum": 0},
        "function": {"type": "string"},
        "source": {"type": "string"},
        "outer": {"type": "boolean"},
        "locals": {"$ref": "#/$defs/bindings"},
        "globals": {"$ref": "#/$defs/bindings"},
        "builtins": {"$ref": "#/$defs/bindings"}
      }
    },
    "bindings": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/value"}
    },
    "value": {
      "if": {"type": "object", "minProperties": 1, "maxProperties": 1, "propertyNames": {"pattern": "^\\$"}},
      "then": {
        "oneOf": [
          {"required": ["$callable"], "properties": {"$callable": {"$ref": "#/$defs/callable"}}},
          {"required": ["$class"], "properties": {"$class": {"type": "string", "minLength": 1}}},
          {"required": ["$exception"], "properties": {"$exception": {"$ref": "#/$defs/exception"}}}
        ]
      }
    },
    "callable": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "params": {"type": "array", "items": {"type": "string"}},
        "varargs": {"type": "string"}
      }
    },
    "exception": {
      "type": "object",
      "required": ["class"],
      "properties": {
        "class": {"type": "string", "minLength": 1},
        "args": {"type": "array"}
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(Schema)); err != nil {
		return nil, fmt.Errorf("add dump schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

func validate(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return unwind.WrapErrorf(err, "compile dump schema").WithCode(unwind.Internal)
	}
	err = schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return unwind.WrapErrorf(err, "validate dump").WithCode(unwind.Internal)
	}
	violations := leafViolations(ve)
	return unwind.NewError("invalid frame dump", "violations", len(violations)).
		WithCode(unwind.InvalidArgument).
		WithDetails(unwind.BadRequest(violations...))
}

// leafViolations flattens a validation error tree into its most specific
// causes, ordered by instance location.
func leafViolations(ve *jsonschema.ValidationError) []unwind.BadRequestFieldViolation {
	var out []unwind.BadRequestFieldViolation
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := e.InstanceLocation
			if field == "" {
				field = "/"
			}
			out = append(out, unwind.BadRequestFieldViolation{Field: field, Description: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// normalize converts the values produced by the YAML and CBOR decoders
// into the generic JSON values the schema validator accepts.
func normalize(v any, path string) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, json.Number:
		return x, nil
	case int:
		return json.Number(strconv.Itoa(x)), nil
	case int64:
		return json.Number(strconv.FormatInt(x, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(x, 10)), nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, badValue(path, "non-finite number")
		}
		return json.Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case float32:
		return normalize(float64(x), path)
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case []byte:
		return string(x), nil
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			n, err := normalize(it, path+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, it := range x {
			n, err := normalize(it, path+"/"+k)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, it := range x {
			key, ok := k.(string)
			if !ok {
				return nil, badValue(path, fmt.Sprintf("non-string key %v", k))
			}
			n, err := normalize(it, path+"/"+key)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	}
	return nil, badValue(path, fmt.Sprintf("unsupported value of type %T", v))
}

func badValue(path, description string) error {
	if path == "" {
		path = "/"
	}
	return unwind.NewError("invalid frame dump").
		WithCode(unwind.InvalidArgument).
		WithDetails(unwind.FieldViolation(path, description))
}
