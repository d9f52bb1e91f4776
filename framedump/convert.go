package framedump

import (
	"encoding/json"
	"maps"

	"github.com/mickamy/unwind"
)

// converter turns validated generic values into frame bindings. Classes
// named in one dump share a single *unwind.ExceptionClass.
type converter struct {
	classes map[string]*unwind.ExceptionClass
}

func newConverter() *converter {
	return &converter{classes: map[string]*unwind.ExceptionClass{}}
}

func (c *converter) frame(raw map[string]any) unwind.Frame {
	f := unwind.Frame{}
	f.File, _ = raw["file"].(string)
	if n, ok := raw["line"].(json.Number); ok {
		line, _ := n.Int64()
		f.Line = int(line)
	}
	f.Function, _ = raw["function"].(string)
	f.Source, _ = raw["source"].(string)
	f.Outer, _ = raw["outer"].(bool)
	f.Scopes = unwind.Scopes{
		Local:  c.namespace(raw["locals"]),
		Global: c.namespace(raw["globals"]),
	}
	if b, ok := raw["builtins"].(map[string]any); ok {
		builtins := unwind.DefaultBuiltins().Clone()
		maps.Copy(builtins, c.namespace(b))
		f.Scopes.Builtin = builtins
	}
	return f
}

func (c *converter) namespace(v any) unwind.Namespace {
	m, ok := v.(map[string]any)
	if !ok {
		return unwind.Namespace{}
	}
	ns := make(unwind.Namespace, len(m))
	for k, it := range m {
		ns[k] = c.value(it)
	}
	return ns
}

func (c *converter) value(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return int(i)
		}
		f, _ := x.Float64()
		return f
	case []any:
		out := make([]any, len(x))
		for i, it := range x {
			out[i] = c.value(it)
		}
		return out
	case map[string]any:
		if len(x) == 1 {
			if tagged, ok := c.tagged(x); ok {
				return tagged
			}
		}
		out := make(map[string]any, len(x))
		for k, it := range x {
			out[k] = c.value(it)
		}
		return out
	}
	return v
}

func (c *converter) tagged(m map[string]any) (any, bool) {
	if raw, ok := m["$callable"].(map[string]any); ok {
		fn := &unwind.Func{}
		fn.Name, _ = raw["name"].(string)
		fn.Variadic, _ = raw["varargs"].(string)
		if params, ok := raw["params"].([]any); ok {
			for _, p := range params {
				if s, ok := p.(string); ok {
					fn.Params = append(fn.Params, s)
				}
			}
		}
		return fn, true
	}
	if name, ok := m["$class"].(string); ok {
		return c.class(name), true
	}
	if raw, ok := m["$exception"].(map[string]any); ok {
		name, _ := raw["class"].(string)
		var args []any
		if a, ok := raw["args"].([]any); ok {
			args = c.value(a).([]any)
		}
		return c.class(name).New(args...), true
	}
	return nil, false
}

func (c *converter) class(name string) *unwind.ExceptionClass {
	if cls, ok := unwind.BuiltinClass(name); ok {
		return cls
	}
	if cls, ok := c.classes[name]; ok {
		return cls
	}
	base, _ := unwind.BuiltinClass("Exception")
	cls := &unwind.ExceptionClass{Name: name, Base: base}
	c.classes[name] = cls
	return cls
}
