package unwind

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/mickamy/unwind/internal/lex"
)

var (
	patRaise     = regexp.MustCompile(`^\s*raise (?P<exc>.+?)$`)
	patPanic     = regexp.MustCompile(`^\s*panic\((?P<exc>.*)\)\s*$`)
	patException = regexp.MustCompile(`^(?P<type>[^(]+)(?P<content>\(.*\))`)
	patCall      = regexp.MustCompile(`^.*?(?P<path>[^(=]+?)\((?P<args>.*)\)\s?$`)
	patKeyValue  = regexp.MustCompile(`(?s)^\s*(?P<key>[\p{L}_][\p{L}\p{N}_]*)\s*=(?P<value>[^=].*)$`)
	patIter      = regexp.MustCompile(`^(?:async\s+)?for\s+.+?\s+in\s+(?P<iterable>.+?):?$`)
	patContext   = regexp.MustCompile(`^(?:async\s+)?with\s+(?P<context>.+?)(?:\s+as\s+.+?)?:?$`)
	patAwait     = regexp.MustCompile(`^.*?await (?P<path>[^(=]+?)\s?$`)
)

// group returns the named submatch of m.
func group(re *regexp.Regexp, m []string, name string) string {
	return m[re.SubexpIndex(name)]
}

// Classify builds the record for the statement in ctx.
//
// Statement shapes are tried in order: raise (or panic), for-iteration,
// with-context, trailing await, trailing call, and finally plain
// operation. next is the name of the function the next inner frame is
// executing; it selects the active call when the statement nests calls.
// An empty statement yields a [FlagUnknown] record.
func Classify(ctx TraceContext, s Scopes, next string) Record {
	stmt := strings.TrimSpace(ctx.Statement)
	if stmt == "" {
		return newOperationRecord(ctx, FlagUnknown, nil)
	}
	c := &classifier{ctx: ctx, scopes: s, next: next}

	if m := patRaise.FindStringSubmatch(stmt); m != nil {
		return c.exception(group(patRaise, m, "exc"))
	}
	if m := patPanic.FindStringSubmatch(stmt); m != nil {
		return c.exception(group(patPanic, m, "exc"))
	}
	if m := patIter.FindStringSubmatch(stmt); m != nil {
		return c.target(FlagIter, group(patIter, m, "iterable"))
	}
	if m := patContext.FindStringSubmatch(stmt); m != nil {
		return c.target(FlagEnter, group(patContext, m, "context"))
	}
	if m := patAwait.FindStringSubmatch(stmt); m != nil {
		fields := strings.Fields(group(patAwait, m, "path"))
		if len(fields) > 0 {
			return newCallRecord(ctx, FlagAwait, c.callable(fields[len(fields)-1]), nil)
		}
	}
	if m := patCall.FindStringSubmatch(stmt); m != nil {
		return c.call("", group(patCall, m, "path"), group(patCall, m, "args"))
	}
	return c.operation(stmt)
}

type classifier struct {
	ctx    TraceContext
	scopes Scopes
	next   string
}

func (c *classifier) exception(exc string) Record {
	exc = strings.TrimSpace(exc)
	if m := patException.FindStringSubmatch(exc); m != nil {
		typ := BaseException
		if cls, ok := Evaluate(group(patException, m, "type"), c.scopes).Value.(*ExceptionClass); ok {
			typ = cls
		}
		content := group(patException, m, "content")
		return newExceptionRecord(c.ctx, typ, content[1:len(content)-1])
	}

	r := Evaluate(exc, c.scopes)
	if !r.OK {
		return newExceptionRecord(c.ctx, BaseException, r.Text)
	}
	switch v := r.Value.(type) {
	case *Exception:
		return newExceptionRecord(c.ctx, v.Class, v.Args)
	case *ExceptionClass:
		return newExceptionRecord(c.ctx, v, "...")
	case error:
		cls := &ExceptionClass{Name: fmt.Sprintf("%T", v), Base: exceptionClass}
		return newExceptionRecord(c.ctx, cls, []any{v.Error()})
	default:
		return newExceptionRecord(c.ctx, BaseException, v)
	}
}

// target handles the iterable of a for statement and the context of a
// with statement.
func (c *classifier) target(flag Flag, expr string) Record {
	expr = strings.TrimSpace(expr)
	if m := patCall.FindStringSubmatch(expr); m != nil {
		return c.call(flag, group(patCall, m, "path"), group(patCall, m, "args"))
	}
	if v, ok := c.scopes.Resolve(expr); ok {
		return newCallRecord(c.ctx, flag, v, Args{{Name: expr, Value: v}})
	}
	v := EvalOrText(expr, c.scopes)
	return newCallRecord(c.ctx, flag, v, Args{{Name: UnknownName, Value: v}})
}

func (c *classifier) operation(stmt string) Record {
	var names Args
	for _, word := range strings.Fields(stmt) {
		if v, ok := c.scopes.Lookup(word); ok {
			names.set(word, v)
		}
	}
	return newOperationRecord(c.ctx, FlagOperate, names)
}

// call resolves a call of path with the raw argument text args. A
// non-empty flag overrides the call/await decision.
func (c *classifier) call(flag Flag, path, args string) Record {
	frags := Split("(" + args + ")")
	paths := strings.Fields(path)

	if next := c.alias(); next != "" && lastSegment(paths) != next {
		for _, frag := range frags {
			start := callSite(frag, next)
			if start < 0 {
				continue
			}
			end := start + len(next)
			paths = strings.Fields(Boundary(frag[:end]))
			if sel := frag[end:]; strings.Contains(sel, "(") && strings.Contains(sel, ")") {
				frags = Split(sel)
			} else {
				frags = nil
			}
			break
		}
	}

	if flag == "" {
		flag = FlagCall
		if len(paths) > 1 && slices.Contains(paths[:len(paths)-1], "await") {
			flag = FlagAwait
		}
	}
	target := ""
	if len(paths) > 0 {
		target = paths[len(paths)-1]
	}
	callable := c.callable(target)
	return newCallRecord(c.ctx, flag, callable, c.bind(callable, frags))
}

// alias returns the name under which the next inner frame's function is
// bound in this frame, or the function name itself.
func (c *classifier) alias() string {
	if c.next == "" {
		return ""
	}
	for _, ns := range c.scopes.tiers() {
		for _, k := range sortedKeys(ns) {
			name := k.(string)
			if fn, ok := ns[name].(Named); ok && fn.FuncName() == c.next {
				return name
			}
		}
	}
	return c.next
}

// callable resolves the call target path: a binding, else an evaluated
// value, else the text itself.
func (c *classifier) callable(path string) any {
	if v, ok := c.scopes.Resolve(path); ok {
		return v
	}
	return EvalOrText(path, c.scopes)
}

// bind maps argument fragments to parameter names.
//
// Starred fragments, name=value fragments and bare local names bind under
// their own name first. The remaining fragments are zipped, in order,
// with the declared positional names that are still unbound; whatever is
// left over is collected as a list under the variadic name.
func (c *classifier) bind(callable any, frags []string) Args {
	names, variadic := shapeOf(callable)
	out := Args{}
	var rest []string
	for _, frag := range frags {
		switch {
		case strings.HasPrefix(frag, "*"):
			name := strings.TrimLeft(frag, "*")
			out.set(name, c.value(name))
		case patKeyValue.MatchString(frag):
			m := patKeyValue.FindStringSubmatch(frag)
			out.set(group(patKeyValue, m, "key"), c.value(strings.TrimSpace(group(patKeyValue, m, "value"))))
		default:
			if v, ok := c.scopes.Local[frag]; ok {
				out.set(frag, v)
				continue
			}
			rest = append(rest, frag)
		}
	}

	i := 0
	for _, name := range names {
		if i == len(rest) {
			break
		}
		if out.Has(name) {
			continue
		}
		out.set(name, c.value(rest[i]))
		i++
	}
	if i < len(rest) {
		values := make([]any, 0, len(rest)-i)
		for _, frag := range rest[i:] {
			values = append(values, c.value(frag))
		}
		out.set(variadic, values)
	}
	return out
}

func (c *classifier) value(frag string) any {
	if v, ok := c.scopes.Local[frag]; ok {
		return v
	}
	return EvalOrText(frag, c.scopes)
}

func lastSegment(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	last := paths[len(paths)-1]
	if i := strings.LastIndex(last, "."); i >= 0 {
		return last[i+1:]
	}
	return last
}

// callSite returns the byte offset of the first name token in frag that
// is name and is called or dereferenced, or -1. Occurrences inside string
// literals and keyword argument names do not count.
func callSite(frag, name string) int {
	if name == "" {
		return -1
	}
	toks := lex.Tokens(frag)
	for i, tok := range toks[:max(len(toks)-1, 0)] {
		if tok.Kind != lex.Name || tok.Text != name {
			continue
		}
		if after := toks[i+1]; after.Is("(") || after.Is(".") {
			return tok.Col
		}
	}
	return -1
}
