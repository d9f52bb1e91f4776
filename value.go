package unwind

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Tuple is an immutable sequence produced by the safe evaluator for tuple
// expressions. It renders with parentheses.
type Tuple []any

func (t Tuple) String() string {
	if len(t) == 1 {
		return "(" + repr(t[0]) + ",)"
	}
	return "(" + joinRepr(t) + ")"
}

// Repr renders v the way reports display values: strings quoted,
// sequences and maps recursively, everything else via its String method
// or fmt's default format.
func Repr(v any) string { return repr(v) }

func repr(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return quote(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case Tuple:
		return x.String()
	case []any:
		return "[" + joinRepr(x) + "]"
	case Namespace:
		return reprMap(x)
	case map[string]any:
		return reprMap(x)
	case fmt.Stringer:
		return x.String()
	case error:
		return fmt.Sprintf("%s(%s)", typeName(x), quote(x.Error()))
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Func {
		return fmt.Sprintf("<func %s>", rv.Type())
	}
	return fmt.Sprintf("%v", v)
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return repr(v)
}

func joinRepr(items []any) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = repr(it)
	}
	return strings.Join(parts, ", ")
}

func reprMap[M ~map[string]any](m M) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = quote(k) + ": " + repr(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return strconv.Quote(s)
	}
	q := strconv.Quote(s)
	body := strings.ReplaceAll(q[1:len(q)-1], `\"`, `"`)
	return "'" + strings.ReplaceAll(body, "'", `\'`) + "'"
}

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eIn") {
		s += ".0"
	}
	return s
}

func typeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case string:
		return "str"
	case Tuple:
		return "tuple"
	case []any:
		return "list"
	case Namespace, map[string]any:
		return "dict"
	case *Exception:
		return x.Class.Name
	}
	if _, ok := asInt(v); ok {
		return "int"
	}
	if _, ok := asFloat(v); ok {
		return "float"
	}
	return fmt.Sprintf("%T", v)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case Tuple:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case Namespace:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if i, ok := asInt(v); ok {
		return i != 0
	}
	if f, ok := asFloat(v); ok {
		return f != 0
	}
	return true
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int8:
		return int(x), true
	case int16:
		return int(x), true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case uint:
		return int(x), true
	case uint8:
		return int(x), true
	case uint16:
		return int(x), true
	case uint32:
		return int(x), true
	case uint64:
		return int(x), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

var errNotIterable = errors.New("object is not iterable")

func iterate(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case Tuple:
		return []any(x), nil
	case string:
		out := make([]any, 0, len(x))
		for _, r := range x {
			out = append(out, string(r))
		}
		return out, nil
	case Namespace:
		return sortedKeys(x), nil
	case map[string]any:
		return sortedKeys(x), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: %w", typeName(v), errNotIterable)
}

func sortedKeys[M ~map[string]any](m M) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}

func equal(a, b any) bool {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return ai == bi
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two numbers, two strings or two sequences.
func compare(a, b any) (int, error) {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return cmpOrdered(ai, bi), nil
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return cmpOrdered(af, bf), nil
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	as, aerr := sequence(a)
	bs, berr := sequence(b)
	if aerr == nil && berr == nil {
		for i := 0; i < len(as) && i < len(bs); i++ {
			c, err := compare(as[i], bs[i])
			if err != nil || c != 0 {
				return c, err
			}
		}
		return cmpOrdered(len(as), len(bs)), nil
	}
	return 0, fmt.Errorf("cannot order %s and %s", typeName(a), typeName(b))
}

func sequence(v any) ([]any, error) {
	switch x := v.(type) {
	case []any:
		return x, nil
	case Tuple:
		return []any(x), nil
	}
	return nil, errNotIterable
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
