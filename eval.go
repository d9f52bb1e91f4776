package unwind

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Result is the outcome of a safe evaluation: either a value, or the
// untouched source text when the text could not be evaluated.
type Result struct {
	Value any
	Text  string
	OK    bool
}

// Or returns the evaluated value, or the original text if evaluation failed.
func (r Result) Or() any {
	if r.OK {
		return r.Value
	}
	return r.Text
}

// Evaluate evaluates expr against the bindings in s.
//
// The text is parsed as a single expression with the tree-sitter Python
// grammar and interpreted over a small, side-effect free subset: literals,
// names, attributes, subscripts, calls of [*Func] implementations, exception
// classes, Go functions and string methods, collection displays, and the
// arithmetic, boolean, comparison and conditional operators.
//
// Evaluate is total. Syntax errors, unknown names, unsupported constructs,
// failing calls and panics all produce Result{Text: expr}.
func Evaluate(expr string, s Scopes) (res Result) {
	res = Result{Text: expr}
	defer func() {
		if recover() != nil {
			res = Result{Text: expr}
		}
	}()

	src := []byte(strings.TrimSpace(expr))
	if len(src) == 0 {
		return res
	}
	node, done, ok := parseExpression(src)
	if !ok {
		return res
	}
	defer done()

	ev := &evaluator{src: src, scopes: s}
	v, err := ev.eval(node)
	if err != nil {
		return res
	}
	return Result{Value: v, Text: expr, OK: true}
}

// EvalOrText is Evaluate(expr, s).Or().
func EvalOrText(expr string, s Scopes) any {
	return Evaluate(expr, s).Or()
}

// parseExpression parses src and returns its only expression node.
// done releases the syntax tree.
func parseExpression(src []byte) (node *sitter.Node, done func(), ok bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil, nil, false
	}
	root := tree.RootNode()
	if root == nil || root.HasError() {
		tree.Close()
		return nil, nil, false
	}
	stmts := namedChildren(root)
	if len(stmts) != 1 || stmts[0].Type() != "expression_statement" {
		tree.Close()
		return nil, nil, false
	}
	exprs := namedChildren(stmts[0])
	switch len(exprs) {
	case 0:
		tree.Close()
		return nil, nil, false
	case 1:
		return exprs[0], tree.Close, true
	default:
		// "a, b" parses as a statement with several expressions.
		return stmts[0], tree.Close, true
	}
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

var (
	errUnsupported = errors.New("unsupported expression")
	errNotCallable = errors.New("object is not callable")
)

// NameError reports a name that no scope defines.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

type evaluator struct {
	src    []byte
	scopes Scopes
}

func (e *evaluator) text(n *sitter.Node) string {
	return n.Content(e.src)
}

func (e *evaluator) eval(n *sitter.Node) (any, error) {
	switch n.Type() {
	case "integer":
		return parseInt(e.text(n))
	case "float":
		return parseFloat(e.text(n))
	case "string":
		return decodeString(e.text(n))
	case "concatenated_string":
		var b strings.Builder
		for _, part := range namedChildren(n) {
			s, err := decodeString(e.text(part))
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "none":
		return nil, nil
	case "identifier":
		name := e.text(n)
		if v, ok := e.scopes.Lookup(name); ok {
			return v, nil
		}
		return nil, &NameError{Name: name}
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) != 1 {
			return nil, errUnsupported
		}
		return e.eval(inner[0])
	case "attribute":
		obj, err := e.eval(n.ChildByFieldName("object"))
		if err != nil {
			return nil, err
		}
		return attribute(obj, e.text(n.ChildByFieldName("attribute")))
	case "subscript":
		return e.subscript(n)
	case "call":
		return e.call(n)
	case "list":
		return e.items(n)
	case "tuple", "expression_statement", "expression_list":
		items, err := e.items(n)
		return Tuple(items), err
	case "dictionary":
		return e.dict(n)
	case "unary_operator":
		return e.unary(n)
	case "not_operator":
		v, err := e.eval(n.ChildByFieldName("argument"))
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case "boolean_operator":
		return e.boolean(n)
	case "binary_operator":
		l, err := e.eval(n.ChildByFieldName("left"))
		if err != nil {
			return nil, err
		}
		r, err := e.eval(n.ChildByFieldName("right"))
		if err != nil {
			return nil, err
		}
		return binary(n.ChildByFieldName("operator").Type(), l, r)
	case "comparison_operator":
		return e.comparison(n)
	case "conditional_expression":
		parts := namedChildren(n)
		if len(parts) != 3 {
			return nil, errUnsupported
		}
		cond, err := e.eval(parts[1])
		if err != nil {
			return nil, err
		}
		if truthy(cond) {
			return e.eval(parts[0])
		}
		return e.eval(parts[2])
	default:
		return nil, fmt.Errorf("%s: %w", n.Type(), errUnsupported)
	}
}

func (e *evaluator) items(n *sitter.Node) ([]any, error) {
	out := []any{}
	for _, c := range namedChildren(n) {
		if c.Type() == "list_splat" {
			inner := namedChildren(c)
			if len(inner) != 1 {
				return nil, errUnsupported
			}
			v, err := e.eval(inner[0])
			if err != nil {
				return nil, err
			}
			spread, err := iterate(v)
			if err != nil {
				return nil, err
			}
			out = append(out, spread...)
			continue
		}
		v, err := e.eval(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (e *evaluator) dict(n *sitter.Node) (any, error) {
	out := map[string]any{}
	for _, c := range namedChildren(n) {
		switch c.Type() {
		case "pair":
			k, err := e.eval(c.ChildByFieldName("key"))
			if err != nil {
				return nil, err
			}
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("dict key %s: %w", typeName(k), errUnsupported)
			}
			v, err := e.eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			out[key] = v
		case "dictionary_splat":
			inner := namedChildren(c)
			if len(inner) != 1 {
				return nil, errUnsupported
			}
			v, err := e.eval(inner[0])
			if err != nil {
				return nil, err
			}
			m, ok := asMap(v)
			if !ok {
				return nil, errUnsupported
			}
			for k, mv := range m {
				out[k] = mv
			}
		default:
			return nil, errUnsupported
		}
	}
	return out, nil
}

func (e *evaluator) subscript(n *sitter.Node) (any, error) {
	v, err := e.eval(n.ChildByFieldName("value"))
	if err != nil {
		return nil, err
	}
	key, err := e.eval(n.ChildByFieldName("subscript"))
	if err != nil {
		return nil, err
	}
	if m, ok := asMap(v); ok {
		k, isStr := key.(string)
		if !isStr {
			return nil, errUnsupported
		}
		got, found := m[k]
		if !found {
			return nil, fmt.Errorf("key %q not found", k)
		}
		return got, nil
	}
	idx, ok := asInt(key)
	if !ok {
		return nil, errUnsupported
	}
	var items []any
	if s, isStr := v.(string); isStr {
		items, _ = iterate(s)
	} else if items, err = iterate(v); err != nil {
		return nil, err
	}
	if idx < 0 {
		idx += len(items)
	}
	if idx < 0 || idx >= len(items) {
		return nil, errors.New("index out of range")
	}
	return items[idx], nil
}

func (e *evaluator) call(n *sitter.Node) (any, error) {
	fn, err := e.eval(n.ChildByFieldName("function"))
	if err != nil {
		return nil, err
	}
	argList := n.ChildByFieldName("arguments")
	if argList == nil || argList.Type() != "argument_list" {
		return nil, errUnsupported
	}
	var args []any
	kwargs := map[string]any{}
	for _, c := range namedChildren(argList) {
		switch c.Type() {
		case "keyword_argument":
			v, err := e.eval(c.ChildByFieldName("value"))
			if err != nil {
				return nil, err
			}
			kwargs[e.text(c.ChildByFieldName("name"))] = v
		case "list_splat":
			inner := namedChildren(c)
			if len(inner) != 1 {
				return nil, errUnsupported
			}
			v, err := e.eval(inner[0])
			if err != nil {
				return nil, err
			}
			spread, err := iterate(v)
			if err != nil {
				return nil, err
			}
			args = append(args, spread...)
		case "dictionary_splat":
			inner := namedChildren(c)
			if len(inner) != 1 {
				return nil, errUnsupported
			}
			v, err := e.eval(inner[0])
			if err != nil {
				return nil, err
			}
			m, ok := asMap(v)
			if !ok {
				return nil, errUnsupported
			}
			for k, mv := range m {
				kwargs[k] = mv
			}
		default:
			v, err := e.eval(c)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
	}
	return invoke(fn, args, kwargs)
}

func (e *evaluator) unary(n *sitter.Node) (any, error) {
	v, err := e.eval(n.ChildByFieldName("argument"))
	if err != nil {
		return nil, err
	}
	op := n.ChildByFieldName("operator").Type()
	if i, ok := asInt(v); ok {
		switch op {
		case "-":
			return -i, nil
		case "+":
			return i, nil
		case "~":
			return ^i, nil
		}
	}
	if f, ok := asFloat(v); ok {
		switch op {
		case "-":
			return -f, nil
		case "+":
			return f, nil
		}
	}
	return nil, fmt.Errorf("bad operand type for unary %s: %s", op, typeName(v))
}

func (e *evaluator) boolean(n *sitter.Node) (any, error) {
	l, err := e.eval(n.ChildByFieldName("left"))
	if err != nil {
		return nil, err
	}
	switch n.ChildByFieldName("operator").Type() {
	case "and":
		if !truthy(l) {
			return l, nil
		}
	case "or":
		if truthy(l) {
			return l, nil
		}
	default:
		return nil, errUnsupported
	}
	return e.eval(n.ChildByFieldName("right"))
}

func (e *evaluator) comparison(n *sitter.Node) (any, error) {
	var (
		left    any
		haveL   bool
		pending []string
	)
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if !c.IsNamed() {
			pending = append(pending, c.Type())
			continue
		}
		if c.Type() == "comment" {
			continue
		}
		right, err := e.eval(c)
		if err != nil {
			return nil, err
		}
		if haveL {
			ok, err := compareOp(strings.Join(pending, " "), left, right)
			if err != nil {
				return nil, err
			}
			if !ok {
				return false, nil
			}
		}
		left, haveL, pending = right, true, nil
	}
	return true, nil
}

func compareOp(op string, l, r any) (bool, error) {
	switch op {
	case "==":
		return equal(l, r), nil
	case "!=", "<>":
		return !equal(l, r), nil
	case "in":
		return contains(r, l)
	case "not in":
		ok, err := contains(r, l)
		return !ok, err
	case "is":
		return identical(l, r), nil
	case "is not":
		return !identical(l, r), nil
	}
	c, err := compare(l, r)
	if err != nil {
		return false, err
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return false, fmt.Errorf("operator %q: %w", op, errUnsupported)
}

func contains(container, item any) (bool, error) {
	if s, ok := container.(string); ok {
		sub, isStr := item.(string)
		if !isStr {
			return false, errors.New("'in <string>' requires string as left operand")
		}
		return strings.Contains(s, sub), nil
	}
	if m, ok := asMap(container); ok {
		k, isStr := item.(string)
		if !isStr {
			return false, nil
		}
		_, found := m[k]
		return found, nil
	}
	items, err := iterate(container)
	if err != nil {
		return false, err
	}
	for _, it := range items {
		if equal(it, item) {
			return true, nil
		}
	}
	return false, nil
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

func binary(op string, l, r any) (any, error) {
	li, lInt := asInt(l)
	ri, rInt := asInt(r)
	if lInt && rInt {
		return intOp(op, li, ri)
	}
	lf, lNum := asFloat(l)
	rf, rNum := asFloat(r)
	if lNum && rNum {
		return floatOp(op, lf, rf)
	}
	switch op {
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				if err := checkSize(1, len(ls)+len(rs)); err != nil {
					return nil, err
				}
				return ls + rs, nil
			}
		}
		if ls, ok := l.([]any); ok {
			if rs, ok := r.([]any); ok {
				if err := checkSize(1, len(ls)+len(rs)); err != nil {
					return nil, err
				}
				return append(append([]any{}, ls...), rs...), nil
			}
		}
		if ls, ok := l.(Tuple); ok {
			if rs, ok := r.(Tuple); ok {
				if err := checkSize(1, len(ls)+len(rs)); err != nil {
					return nil, err
				}
				return append(append(Tuple{}, ls...), rs...), nil
			}
		}
	case "*":
		if s, ok := l.(string); ok && rInt {
			return repeatString(s, ri)
		}
		if s, ok := r.(string); ok && lInt {
			return repeatString(s, li)
		}
		if items, ok := l.([]any); ok && rInt {
			return repeatList(items, ri)
		}
		if items, ok := r.([]any); ok && lInt {
			return repeatList(items, li)
		}
	}
	return nil, fmt.Errorf("unsupported operand types for %s: %s and %s", op, typeName(l), typeName(r))
}

func repeatString(s string, n int) (any, error) {
	n = max(n, 0)
	if err := checkSize(n, len(s)); err != nil {
		return nil, err
	}
	return strings.Repeat(s, n), nil
}

func repeatList(items []any, n int) (any, error) {
	n = max(n, 0)
	if err := checkSize(n, len(items)); err != nil {
		return nil, err
	}
	out := make([]any, 0, n*len(items))
	for range n {
		if len(items) == 0 {
			break
		}
		out = append(out, items...)
	}
	return out, nil
}

var (
	errZeroDivision = errors.New("division by zero")
	errIntOverflow  = errors.New("integer result too large to evaluate")
)

func addInt(a, b int) (int, error) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, errIntOverflow
	}
	return c, nil
}

func subInt(a, b int) (int, error) {
	c := a - b
	if (b > 0 && c > a) || (b < 0 && c < a) {
		return 0, errIntOverflow
	}
	return c, nil
}

func mulInt(a, b int) (int, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == -1 && b == math.MinInt) || (b == -1 && a == math.MinInt) {
		return 0, errIntOverflow
	}
	c := a * b
	if c/b != a {
		return 0, errIntOverflow
	}
	return c, nil
}

// powInt computes a**b for b >= 0 by repeated squaring.
func powInt(a, b int) (int, error) {
	out := 1
	for b > 0 {
		var err error
		if b&1 == 1 {
			if out, err = mulInt(out, a); err != nil {
				return 0, err
			}
		}
		b >>= 1
		if b > 0 {
			if a, err = mulInt(a, a); err != nil {
				return 0, err
			}
		}
	}
	return out, nil
}

func intOp(op string, a, b int) (any, error) {
	switch op {
	case "+":
		return addInt(a, b)
	case "-":
		return subInt(a, b)
	case "*":
		return mulInt(a, b)
	case "/":
		if b == 0 {
			return nil, errZeroDivision
		}
		return float64(a) / float64(b), nil
	case "//":
		if b == 0 {
			return nil, errZeroDivision
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case "%":
		if b == 0 {
			return nil, errZeroDivision
		}
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	case "**":
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		return powInt(a, b)
	case "&":
		return a & b, nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "<<":
		if b < 0 {
			return nil, errors.New("negative shift count")
		}
		if a == 0 {
			return 0, nil
		}
		if b >= strconv.IntSize-1 || (a<<uint(b))>>uint(b) != a {
			return nil, errIntOverflow
		}
		return a << uint(b), nil
	case ">>":
		if b < 0 {
			return nil, errors.New("negative shift count")
		}
		return a >> uint(b), nil
	}
	return nil, fmt.Errorf("operator %q: %w", op, errUnsupported)
}

func floatOp(op string, a, b float64) (any, error) {
	switch op {
	case "+":
		return addInt(a, b)
	case "-":
		return subInt(a, b)
	case "*":
		return mulInt(a, b)
	case "/":
		if b == 0 {
			return nil, errZeroDivision
		}
		return a / b, nil
	case "//":
		if b == 0 {
			return nil, errZeroDivision
		}
		return math.Floor(a / b), nil
	case "%":
		if b == 0 {
			return nil, errZeroDivision
		}
		return a - b*math.Floor(a/b), nil
	case "**":
		return math.Pow(a, b), nil
	}
	return nil, fmt.Errorf("operator %q: %w", op, errUnsupported)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Namespace:
		return m, true
	}
	return nil, false
}

// attribute resolves obj.name, including the string and dict methods the
// evaluator implements.
func attribute(obj any, name string) (any, error) {
	if s, ok := obj.(string); ok {
		if m, ok := stringMethod(s, name); ok {
			return m, nil
		}
		return nil, fmt.Errorf("'str' object has no attribute %q", name)
	}
	if m, ok := asMap(obj); ok {
		if f, ok := dictMethod(m, name); ok {
			return f, nil
		}
	}
	if v, ok := Attr(obj, name); ok {
		return v, nil
	}
	return nil, fmt.Errorf("%s object has no attribute %q", typeName(obj), name)
}

// invoke calls fn with positional and keyword arguments.
func invoke(fn any, args []any, kwargs map[string]any) (any, error) {
	switch f := fn.(type) {
	case *Func:
		if f.Call == nil {
			return nil, fmt.Errorf("%s: %w", f.Name, errNotCallable)
		}
		return f.Call(args, kwargs)
	case *ExceptionClass:
		if len(kwargs) != 0 {
			return nil, errUnsupported
		}
		return f.New(args...), nil
	}
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return nil, fmt.Errorf("%s: %w", typeName(fn), errNotCallable)
	}
	if len(kwargs) != 0 {
		return nil, errUnsupported
	}
	return callReflect(rv, args)
}

var errorType = reflect.TypeFor[error]()

func callReflect(fn reflect.Value, args []any) (any, error) {
	t := fn.Type()
	n := t.NumIn()
	if (!t.IsVariadic() && len(args) != n) || (t.IsVariadic() && len(args) < n-1) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", t, n, len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var want reflect.Type
		if t.IsVariadic() && i >= n-1 {
			want = t.In(n - 1).Elem()
		} else {
			want = t.In(i)
		}
		v, err := convertArg(a, want)
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}
	if last := out[len(out)-1]; last.Type().Implements(errorType) {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}

func convertArg(a any, want reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot pass None as %s", want)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(want) {
		return v, nil
	}
	numeric := func(k reflect.Kind) bool {
		return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
	}
	from, to := v.Kind(), want.Kind()
	if (numeric(from) && numeric(to)) || (from == reflect.String && to == reflect.String) {
		return v.Convert(want), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot pass %s as %s", typeName(a), want)
}

func parseInt(text string) (any, error) {
	if strings.ContainsAny(text, "jJlL") {
		return nil, errUnsupported
	}
	i, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		return nil, err
	}
	return int(i), nil
}

func parseFloat(text string) (any, error) {
	if strings.ContainsAny(text, "jJ") {
		return nil, errUnsupported
	}
	return strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
}

// decodeString decodes a string literal, including its prefix and quotes.
// Formatted string literals are not supported.
func decodeString(lit string) (string, error) {
	q := strings.IndexAny(lit, `'"`)
	if q < 0 {
		return "", errUnsupported
	}
	prefix := strings.ToLower(lit[:q])
	if strings.Contains(prefix, "f") {
		return "", fmt.Errorf("formatted string: %w", errUnsupported)
	}
	body := lit[q:]
	delim := body[:1]
	if strings.HasPrefix(body, strings.Repeat(delim, 3)) && len(body) >= 6 {
		delim = strings.Repeat(delim, 3)
	}
	if !strings.HasSuffix(body, delim) || len(body) < 2*len(delim) {
		return "", errUnsupported
	}
	body = body[len(delim) : len(body)-len(delim)]
	if strings.Contains(prefix, "r") {
		return body, nil
	}
	return unescape(body)
}

func unescape(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
		case '\n':
		case '\\', '\'', '"':
			b.WriteByte(e)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[e]
			if i+width >= len(s) {
				return "", errors.New("truncated escape")
			}
			r, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", err
			}
			b.WriteRune(rune(r))
			i += width
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			r, _ := strconv.ParseUint(s[i:j], 8, 32)
			b.WriteRune(rune(r))
			i = j - 1
		default:
			b.WriteByte('\\')
			b.WriteByte(e)
		}
	}
	return b.String(), nil
}
