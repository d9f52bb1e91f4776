package unwind

import (
	"fmt"
	"strings"
)

// UnknownName is the parameter name used for arguments that cannot be
// attributed to a declared parameter, and for iterables or contexts that
// could only be evaluated, not resolved by name.
const UnknownName = "_unknown_name"

// Signature describes the declared parameter shape of a callable.
type Signature interface {
	// PositionalNames returns the ordered names of the parameters that
	// may be passed positionally.
	PositionalNames() []string
	// VariadicName returns the name of the variadic parameter, if any.
	VariadicName() (string, bool)
}

// Named is implemented by callables that know the name they were defined
// with. It lets the call-argument resolver recognize an alias bound under
// a different name.
type Named interface {
	FuncName() string
}

// Func is a callable binding. It declares its parameter shape and may carry
// an implementation used by the safe evaluator.
type Func struct {
	Name     string
	Params   []string
	Variadic string
	// Call, when set, implements the function for the safe evaluator.
	Call func(args []any, kwargs map[string]any) (any, error)
}

var (
	_ Signature = (*Func)(nil)
	_ Named     = (*Func)(nil)
)

// PositionalNames implements [Signature].
func (f *Func) PositionalNames() []string { return f.Params }

// VariadicName implements [Signature].
func (f *Func) VariadicName() (string, bool) { return f.Variadic, f.Variadic != "" }

// FuncName implements [Named].
func (f *Func) FuncName() string { return f.Name }

func (f *Func) String() string {
	return fmt.Sprintf("<function %s>", f.Name)
}

// shapeOf returns the positional parameter names and the variadic slot
// name of v. Callables without a [Signature] have no positional names and
// the [UnknownName] slot; so do signatures without a variadic parameter.
func shapeOf(v any) (names []string, variadic string) {
	sig, ok := v.(Signature)
	if !ok {
		return nil, UnknownName
	}
	variadic, ok = sig.VariadicName()
	if !ok || variadic == "" {
		variadic = UnknownName
	}
	return sig.PositionalNames(), variadic
}

// ExceptionClass is an error type as seen by a report: a name and an
// optional base class.
type ExceptionClass struct {
	Name string
	Base *ExceptionClass
}

// IsSubclass reports whether c is base or derives from it.
func (c *ExceptionClass) IsSubclass(base *ExceptionClass) bool {
	for k := c; k != nil; k = k.Base {
		if k == base || (base != nil && k.Name == base.Name) {
			return true
		}
	}
	return false
}

func (c *ExceptionClass) String() string {
	return fmt.Sprintf("<class '%s'>", c.Name)
}

// New instantiates the class with args.
func (c *ExceptionClass) New(args ...any) *Exception {
	return &Exception{Class: c, Args: args}
}

// Exception is a raised error value: its class and constructor arguments.
type Exception struct {
	Class *ExceptionClass
	Args  []any
}

func (e *Exception) Error() string {
	switch len(e.Args) {
	case 0:
		return e.Class.Name
	case 1:
		return fmt.Sprintf("%s: %v", e.Class.Name, e.Args[0])
	default:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = repr(a)
		}
		return fmt.Sprintf("%s: (%s)", e.Class.Name, strings.Join(parts, ", "))
	}
}

func (e *Exception) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = repr(a)
	}
	return fmt.Sprintf("%s(%s)", e.Class.Name, strings.Join(parts, ", "))
}
