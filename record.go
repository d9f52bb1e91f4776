package unwind

import (
	"fmt"
	"strings"
)

// TraceContext is the snapshot of one stack level a record describes.
// Locals is a copy of the frame's local namespace taken when the record was
// built; later changes to the frame's bindings do not show through.
type TraceContext struct {
	File      string
	Line      int
	Function  string
	Window    []string
	Statement string
	Locals    Namespace
}

func (c TraceContext) String() string {
	var b strings.Builder
	b.WriteString("TraceContext(\n")
	fmt.Fprintf(&b, "    file=%s\n", quote(c.File))
	fmt.Fprintf(&b, "    line=%d\n", c.Line)
	fmt.Fprintf(&b, "    name=%s\n", quote(c.Function))
	b.WriteString("####====context====####\n")
	b.WriteString(strings.Join(c.Window, "\n"))
	b.WriteString("\n####====context====####\n")
	fmt.Fprintf(&b, "    error_line=%s\n", quote(c.Statement))
	fmt.Fprintf(&b, "    locals=%s\n", repr(c.Locals))
	b.WriteString(")")
	return b.String()
}

// Arg is one resolved name → value pair.
type Arg struct {
	Name  string
	Value any
}

// Args is an ordered set of resolved bindings. Setting a name that is
// already present replaces its value in place.
type Args []Arg

// Get returns the value bound to name.
func (a Args) Get(name string) (any, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is bound.
func (a Args) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Map returns the bindings as a map.
func (a Args) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// Names returns the bound names in order.
func (a Args) Names() []string {
	names := make([]string, len(a))
	for i, arg := range a {
		names[i] = arg.Name
	}
	return names
}

func (a *Args) set(name string, v any) {
	for i := range *a {
		if (*a)[i].Name == name {
			(*a)[i].Value = v
			return
		}
	}
	*a = append(*a, Arg{Name: name, Value: v})
}

func (a Args) String() string {
	parts := make([]string, len(a))
	for i, arg := range a {
		parts[i] = quote(arg.Name) + ": " + repr(arg.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// ExceptionReport is the payload of a [FlagActive] record.
type ExceptionReport struct {
	// Type is the raised class, or BaseException when it could not be resolved.
	Type *ExceptionClass
	// Content is the constructor-argument text, the live exception's
	// arguments, "..." for a bare class, or the raised value itself.
	Content any
}

// CallReport is the payload of call, await, iteration and
// context-entry records.
type CallReport struct {
	// Callable is the resolved callable, or its textual path when it
	// could not be resolved.
	Callable any
	Args     Args
}

// OperationReport is the payload of [FlagOperate] and [FlagUnknown] records.
type OperationReport struct {
	// Names holds every word of the statement that resolved to a binding.
	Names Args
}

// Record is one entry of a crash report. Flag selects the payload: exactly
// one of Exception, Call and Operation is non-nil.
type Record struct {
	Flag      Flag
	Context   TraceContext
	Exception *ExceptionReport
	Call      *CallReport
	Operation *OperationReport
}

func newExceptionRecord(ctx TraceContext, typ *ExceptionClass, content any) Record {
	return Record{Flag: FlagActive, Context: ctx, Exception: &ExceptionReport{Type: typ, Content: content}}
}

func newCallRecord(ctx TraceContext, flag Flag, callable any, args Args) Record {
	if flag.payload() != payloadCall {
		panic(fmt.Sprintf("unwind: flag %q does not carry a call payload", flag))
	}
	if args == nil {
		args = Args{}
	}
	return Record{Flag: flag, Context: ctx, Call: &CallReport{Callable: callable, Args: args}}
}

func newOperationRecord(ctx TraceContext, flag Flag, names Args) Record {
	if flag.payload() != payloadOperation {
		panic(fmt.Sprintf("unwind: flag %q does not carry an operation payload", flag))
	}
	if names == nil {
		names = Args{}
	}
	return Record{Flag: flag, Context: ctx, Operation: &OperationReport{Names: names}}
}

// Summary renders the record as a single line: location, statement and flag.
func (r Record) Summary() string {
	return fmt.Sprintf("%s:%d in %s: %s [%s]", r.Context.File, r.Context.Line, r.Context.Function, r.Context.Statement, r.Flag)
}

func (r Record) String() string {
	var b strings.Builder
	b.WriteString("\n---------report--------\n")
	fmt.Fprintf(&b, "flag = %s\n", r.Flag)
	switch {
	case r.Exception != nil:
		fmt.Fprintf(&b, "type = %s\n", repr(r.Exception.Type))
		fmt.Fprintf(&b, "content = %s\n", str(r.Exception.Content))
	case r.Call != nil:
		fmt.Fprintf(&b, "callable = %s\n", str(r.Call.Callable))
		fmt.Fprintf(&b, "args = %s\n", r.Call.Args)
	case r.Operation != nil:
		fmt.Fprintf(&b, "args = %s\n", r.Operation.Names)
	}
	fmt.Fprintf(&b, "info = %s\n", r.Context)
	b.WriteString("---------end-----------")
	return b.String()
}
