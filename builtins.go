package unwind

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// BaseException is the root exception class. Reports use it as the generic
// error marker when the raised type cannot be resolved.
var BaseException = &ExceptionClass{Name: "BaseException"}

var exceptionClass = &ExceptionClass{Name: "Exception", Base: BaseException}

var builtinClasses = []*ExceptionClass{
	BaseException,
	exceptionClass,
	{Name: "RuntimeError", Base: exceptionClass},
	{Name: "ValueError", Base: exceptionClass},
	{Name: "TypeError", Base: exceptionClass},
	{Name: "KeyError", Base: exceptionClass},
	{Name: "IndexError", Base: exceptionClass},
	{Name: "AttributeError", Base: exceptionClass},
	{Name: "NameError", Base: exceptionClass},
	{Name: "ZeroDivisionError", Base: exceptionClass},
	{Name: "StopIteration", Base: exceptionClass},
	{Name: "AssertionError", Base: exceptionClass},
	{Name: "NotImplementedError", Base: exceptionClass},
	{Name: "OSError", Base: exceptionClass},
}

var errBuiltinArgs = errors.New("bad arguments")

var defaultBuiltins = sync.OnceValue(func() Namespace {
	ns := Namespace{}
	for _, c := range builtinClasses {
		ns[c.Name] = c
	}
	for _, f := range []*Func{
		{Name: "len", Call: builtinLen},
		{Name: "str", Call: unary(func(v any) (any, error) { return str(v), nil })},
		{Name: "repr", Call: unary(func(v any) (any, error) { return repr(v), nil })},
		{Name: "int", Call: unary(builtinInt)},
		{Name: "float", Call: unary(builtinFloat)},
		{Name: "bool", Call: unary(func(v any) (any, error) { return truthy(v), nil })},
		{Name: "abs", Call: unary(builtinAbs)},
		{Name: "min", Call: extreme(-1)},
		{Name: "max", Call: extreme(1)},
		{Name: "list", Call: unary(func(v any) (any, error) { return iterate(v) })},
		{Name: "tuple", Call: unary(func(v any) (any, error) {
			items, err := iterate(v)
			return Tuple(items), err
		})},
		{Name: "sorted", Call: unary(builtinSorted)},
		{Name: "range", Call: builtinRange},
	} {
		ns[f.Name] = f
	}
	return ns
})

// DefaultBuiltins returns the builtin namespace used when a frame's
// [Scopes] carries none. The returned namespace is shared and must not be
// modified; clone it to extend it.
func DefaultBuiltins() Namespace {
	return defaultBuiltins()
}

// BuiltinClass returns the builtin exception class with the given name.
func BuiltinClass(name string) (*ExceptionClass, bool) {
	for _, c := range builtinClasses {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func unary(fn func(any) (any, error)) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(args) != 1 || len(kwargs) != 0 {
			return nil, errBuiltinArgs
		}
		return fn(args[0])
	}
}

func builtinLen(args []any, kwargs map[string]any) (any, error) {
	if len(args) != 1 || len(kwargs) != 0 {
		return nil, errBuiltinArgs
	}
	switch v := args[0].(type) {
	case string:
		return len([]rune(v)), nil
	case map[string]any:
		return len(v), nil
	case Namespace:
		return len(v), nil
	}
	items, err := iterate(args[0])
	if err != nil {
		return nil, err
	}
	return len(items), nil
}

func builtinInt(v any) (any, error) {
	switch x := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("invalid literal for int(): %q", x)
		}
		return i, nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	if i, ok := asInt(v); ok {
		return i, nil
	}
	if f, ok := asFloat(v); ok {
		return int(math.Trunc(f)), nil
	}
	return nil, fmt.Errorf("int() argument must be a number, not %s", typeName(v))
}

func builtinFloat(v any) (any, error) {
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("could not convert string to float: %q", s)
		}
		return f, nil
	}
	if f, ok := asFloat(v); ok {
		return f, nil
	}
	return nil, fmt.Errorf("float() argument must be a number, not %s", typeName(v))
}

func builtinAbs(v any) (any, error) {
	if i, ok := asInt(v); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	if f, ok := asFloat(v); ok {
		return math.Abs(f), nil
	}
	return nil, fmt.Errorf("bad operand type for abs(): %s", typeName(v))
}

func extreme(sign int) func([]any, map[string]any) (any, error) {
	return func(args []any, kwargs map[string]any) (any, error) {
		if len(kwargs) != 0 || len(args) == 0 {
			return nil, errBuiltinArgs
		}
		items := args
		if len(args) == 1 {
			var err error
			if items, err = iterate(args[0]); err != nil {
				return nil, err
			}
		}
		if len(items) == 0 {
			return nil, errors.New("empty sequence")
		}
		best := items[0]
		for _, it := range items[1:] {
			c, err := compare(it, best)
			if err != nil {
				return nil, err
			}
			if c*sign > 0 {
				best = it
			}
		}
		return best, nil
	}
}

func builtinSorted(v any) (any, error) {
	items, err := iterate(v)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(items)
	var cmpErr error
	slices.SortStableFunc(out, func(a, b any) int {
		c, err := compare(a, b)
		if err != nil {
			cmpErr = err
		}
		return c
	})
	return out, cmpErr
}

func builtinRange(args []any, kwargs map[string]any) (any, error) {
	if len(kwargs) != 0 || len(args) == 0 || len(args) > 3 {
		return nil, errBuiltinArgs
	}
	bounds := make([]int, len(args))
	for i, a := range args {
		n, ok := asInt(a)
		if !ok {
			return nil, fmt.Errorf("range() argument must be int, not %s", typeName(a))
		}
		bounds[i] = n
	}
	start, stop, step := 0, bounds[0], 1
	if len(bounds) > 1 {
		start, stop = bounds[0], bounds[1]
	}
	if len(bounds) > 2 {
		step = bounds[2]
	}
	if step == 0 {
		return nil, errors.New("range() arg 3 must not be zero")
	}
	var out []any
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		if len(out) >= maxRangeLen {
			return nil, fmt.Errorf("range: %w", errTooLarge)
		}
		out = append(out, i)
	}
	if out == nil {
		out = []any{}
	}
	return out, nil
}

const (
	maxRangeLen = 1 << 16
	// maxValueLen bounds the bytes or items a single string or list
	// operation may produce.
	maxValueLen = 1 << 20
)

var errTooLarge = errors.New("value too large to evaluate")

// checkSize reports errTooLarge when n copies of something unit long
// would exceed maxValueLen.
func checkSize(n, unit int) error {
	if n > 0 && unit > 0 && n > maxValueLen/unit {
		return errTooLarge
	}
	return nil
}
