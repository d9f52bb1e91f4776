package unwind

import (
	"encoding/json"
	"math"
)

// maxJSONDepth bounds the nesting of values rendered into JSON; deeper
// values are rendered as their repr.
const maxJSONDepth = 8

type jsonContext struct {
	File      string         `json:"file"`
	Line      int            `json:"line"`
	Function  string         `json:"function"`
	Window    []string       `json:"window,omitempty"`
	Statement string         `json:"statement"`
	Locals    map[string]any `json:"locals"`
}

type jsonException struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

type jsonCall struct {
	Callable string         `json:"callable"`
	Args     map[string]any `json:"args"`
}

type jsonOperation struct {
	Names map[string]any `json:"names"`
}

type jsonRecord struct {
	Flag        Flag           `json:"flag"`
	Description string         `json:"description"`
	Context     jsonContext    `json:"context"`
	Exception   *jsonException `json:"exception,omitempty"`
	Call        *jsonCall      `json:"call,omitempty"`
	Operation   *jsonOperation `json:"operation,omitempty"`
}

// MarshalJSON renders the record with JSON-safe values: values without a
// JSON counterpart (callables, classes, Go structs) become their repr.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.jsonRecord(""))
}

// MarshalRecords renders records as a JSON array with flag descriptions
// in the locale that best matches the given BCP 47 tag.
func MarshalRecords(records []Record, locale string) ([]byte, error) {
	out := make([]jsonRecord, len(records))
	for i, r := range records {
		out[i] = r.jsonRecord(locale)
	}
	return json.Marshal(out)
}

func (r Record) jsonRecord(locale string) jsonRecord {
	ctx := r.Context
	jr := jsonRecord{
		Flag:        r.Flag,
		Description: r.Flag.Describe(locale),
		Context: jsonContext{
			File:      ctx.File,
			Line:      ctx.Line,
			Function:  ctx.Function,
			Window:    ctx.Window,
			Statement: ctx.Statement,
			Locals:    jsonMap(ctx.Locals, 0),
		},
	}
	switch {
	case r.Exception != nil:
		jr.Exception = &jsonException{Type: r.Exception.Type.Name, Content: jsonValue(r.Exception.Content, 0)}
	case r.Call != nil:
		jr.Call = &jsonCall{Callable: str(r.Call.Callable), Args: jsonArgs(r.Call.Args)}
	case r.Operation != nil:
		jr.Operation = &jsonOperation{Names: jsonArgs(r.Operation.Names)}
	}
	return jr
}

func jsonArgs(a Args) map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = jsonValue(arg.Value, 0)
	}
	return m
}

func jsonMap[M ~map[string]any](m M, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = jsonValue(v, depth+1)
	}
	return out
}

func jsonValue(v any, depth int) any {
	if depth > maxJSONDepth {
		return repr(v)
	}
	switch x := v.(type) {
	case nil, bool, string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return formatFloat(x)
		}
		return x
	case float32:
		return jsonValue(float64(x), depth)
	case json.Number:
		return x
	case []any:
		return jsonSlice(x, depth)
	case Tuple:
		return jsonSlice(x, depth)
	case map[string]any:
		return jsonMap(x, depth)
	case Namespace:
		return jsonMap(x, depth)
	case *Exception:
		return map[string]any{"class": x.Class.Name, "args": jsonSlice(x.Args, depth)}
	case *ExceptionClass:
		return x.Name
	}
	if i, ok := asInt(v); ok {
		return i
	}
	return repr(v)
}

func jsonSlice(items []any, depth int) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = jsonValue(it, depth+1)
	}
	return out
}
