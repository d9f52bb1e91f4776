package unwind_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mickamy/unwind"
)

func classify(stmt string, s unwind.Scopes, next string) unwind.Record {
	return unwind.Classify(unwind.TraceContext{File: "app.py", Line: 1, Function: "main", Statement: stmt}, s, next)
}

func TestClassify_CallBinding(t *testing.T) {
	t.Parallel()

	foo := &unwind.Func{Name: "foo", Params: []string{"a", "b", "c", "d"}, Variadic: "args"}
	r := classify(`foo(1, 2, 3, "x", d="y".ljust(3,'a'), a=1, b=2, c=3)`,
		unwind.Scopes{Global: unwind.Namespace{"foo": foo}}, "foo")

	if r.Flag != unwind.FlagCall {
		t.Fatalf("flag = %q, want %q", r.Flag, unwind.FlagCall)
	}
	if r.Call.Callable != foo {
		t.Errorf("callable = %v, want foo", r.Call.Callable)
	}
	want := map[string]any{
		"a":    1,
		"b":    2,
		"c":    3,
		"d":    "yaa",
		"args": []any{1, 2, 3, "x"},
	}
	if diff := cmp.Diff(want, r.Call.Args.Map()); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_Calls(t *testing.T) {
	t.Parallel()

	g := &unwind.Func{Name: "g", Params: []string{"a", "b"}}
	f := &unwind.Func{Name: "f", Params: []string{"x", "y"}}
	get := &unwind.Func{Name: "get", Params: []string{"target"}}
	ratio := &unwind.Func{Name: "ratio", Params: []string{"a", "b"}}
	scopes := unwind.Scopes{
		Local: unwind.Namespace{
			"total":  10,
			"url":    "http://x",
			"client": map[string]any{"get": get},
			"items":  []any{4, 5},
			"alias":  ratio,
		},
		Global: unwind.Namespace{"g": g, "f": f, "ratio": ratio},
	}

	tests := []struct {
		name     string
		stmt     string
		next     string
		flag     unwind.Flag
		callable any
		args     map[string]any
	}{
		{
			name: "positional zip", stmt: "f(1, 2)",
			flag: unwind.FlagCall, callable: f, args: map[string]any{"x": 1, "y": 2},
		},
		{
			name: "bare local binds under its own name", stmt: "ratio(total, 0)", next: "ratio",
			flag: unwind.FlagCall, callable: ratio, args: map[string]any{"total": 10, "a": 0},
		},
		{
			name: "nested call selected by next frame", stmt: "total = f(g(1, 2), 3)", next: "g",
			flag: unwind.FlagCall, callable: g, args: map[string]any{"a": 1, "b": 2},
		},
		{
			name: "nested call after a string naming it", stmt: `h("g", g(1))`, next: "g",
			flag: unwind.FlagCall, callable: g, args: map[string]any{"a": 1},
		},
		{
			name: "string with a lookalike call", stmt: `f("g(", g(1, 2))`, next: "g",
			flag: unwind.FlagCall, callable: g, args: map[string]any{"a": 1, "b": 2},
		},
		{
			name: "keyword named like the nested call", stmt: "h(g=1, q=g(2))", next: "g",
			flag: unwind.FlagCall, callable: g, args: map[string]any{"a": 2},
		},
		{
			name: "outer call when next frame matches", stmt: "total = f(g(1, 2), 3)", next: "f",
			flag: unwind.FlagCall, callable: f, args: map[string]any{"x": "g(1, 2)", "y": 3},
		},
		{
			name: "aliased callable", stmt: "alias(1, 2)", next: "ratio",
			flag: unwind.FlagCall, callable: ratio, args: map[string]any{"a": 1, "b": 2},
		},
		{
			name: "starred argument", stmt: "f(*items)",
			flag: unwind.FlagCall, callable: f, args: map[string]any{"items": []any{4, 5}},
		},
		{
			name: "leftovers without signature", stmt: "missing(1, 'two')",
			flag: unwind.FlagCall, callable: "missing", args: map[string]any{unwind.UnknownName: []any{1, "two"}},
		},
		{
			name: "awaited call", stmt: "data = await client.get(url)",
			flag: unwind.FlagAwait, callable: get, args: map[string]any{"url": "http://x"},
		},
		{
			name: "iteration over a name", stmt: "for item in items:",
			flag: unwind.FlagIter, callable: []any{4, 5}, args: map[string]any{"items": []any{4, 5}},
		},
		{
			name: "iteration over a call", stmt: "async for row in f(total, 2):",
			flag: unwind.FlagIter, callable: f, args: map[string]any{"total": 10, "x": 2},
		},
		{
			name: "iteration over an expression", stmt: "for x in [1, 2]:",
			flag: unwind.FlagIter, callable: []any{1, 2}, args: map[string]any{unwind.UnknownName: []any{1, 2}},
		},
		{
			name: "context entry", stmt: "with g(url) as conn:",
			flag: unwind.FlagEnter, callable: g, args: map[string]any{"url": "http://x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := classify(tt.stmt, scopes, tt.next)
			if r.Flag != tt.flag {
				t.Fatalf("flag = %q, want %q", r.Flag, tt.flag)
			}
			if r.Call == nil {
				t.Fatal("record has no call payload")
			}
			if diff := cmp.Diff(tt.callable, r.Call.Callable); diff != "" {
				t.Errorf("callable mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.args, r.Call.Args.Map()); diff != "" {
				t.Errorf("args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_Await(t *testing.T) {
	t.Parallel()

	fetch := &unwind.Func{Name: "fetch"}
	r := classify("result = await fetch", unwind.Scopes{Local: unwind.Namespace{"fetch": fetch}}, "")
	if r.Flag != unwind.FlagAwait {
		t.Fatalf("flag = %q, want %q", r.Flag, unwind.FlagAwait)
	}
	if r.Call.Callable != fetch {
		t.Errorf("callable = %v, want fetch", r.Call.Callable)
	}
	if len(r.Call.Args) != 0 {
		t.Errorf("args = %v, want none", r.Call.Args)
	}
}

func TestClassify_Exceptions(t *testing.T) {
	t.Parallel()

	custom := &unwind.ExceptionClass{Name: "QuotaError"}
	valueError, _ := unwind.BuiltinClass("ValueError")
	scopes := unwind.Scopes{
		Local: unwind.Namespace{
			"exc":   valueError.New("bad"),
			"err":   errors.New("boom"),
			"limit": 3,
		},
		Global: unwind.Namespace{"QuotaError": custom},
	}

	tests := []struct {
		name    string
		stmt    string
		typ     string
		content any
	}{
		{name: "builtin class", stmt: `raise RuntimeError("A")`, typ: "RuntimeError", content: `"A"`},
		{name: "global class", stmt: "raise QuotaError(limit, 'per day')", typ: "QuotaError", content: "limit, 'per day'"},
		{name: "unresolved class", stmt: "raise make_error()", typ: "BaseException", content: ""},
		{name: "bare class", stmt: "raise ValueError", typ: "ValueError", content: "..."},
		{name: "exception value", stmt: "raise exc", typ: "ValueError", content: []any{"bad"}},
		{name: "re-raise", stmt: "raise", typ: "", content: nil},
		{name: "go error", stmt: "panic(err)", typ: "*errors.errorString", content: []any{"boom"}},
		{name: "go panic value", stmt: `panic("x")`, typ: "BaseException", content: "x"},
		{name: "go panic expression", stmt: "panic(undefined.thing)", typ: "BaseException", content: "undefined.thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := classify(tt.stmt, scopes, "")
			if tt.typ == "" {
				if r.Flag == unwind.FlagActive {
					t.Fatalf("%q should not classify as raising", tt.stmt)
				}
				return
			}
			if r.Flag != unwind.FlagActive {
				t.Fatalf("flag = %q, want %q", r.Flag, unwind.FlagActive)
			}
			if r.Exception.Type.Name != tt.typ {
				t.Errorf("type = %q, want %q", r.Exception.Type.Name, tt.typ)
			}
			if diff := cmp.Diff(tt.content, r.Exception.Content); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestClassify_Operation(t *testing.T) {
	t.Parallel()

	scopes := unwind.Scopes{Local: unwind.Namespace{"a": 1, "b": 0}, Global: unwind.Namespace{"LIMIT": 9}}

	r := classify("x = a / b + LIMIT", scopes, "")
	if r.Flag != unwind.FlagOperate {
		t.Fatalf("flag = %q, want %q", r.Flag, unwind.FlagOperate)
	}
	want := map[string]any{"a": 1, "b": 0, "LIMIT": 9}
	if diff := cmp.Diff(want, r.Operation.Names.Map()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if got := r.Operation.Names.Names(); !cmp.Equal(got, []string{"a", "b", "LIMIT"}) {
		t.Errorf("names order = %q", got)
	}
}

func TestClassify_Unknown(t *testing.T) {
	t.Parallel()

	r := classify("   ", unwind.Scopes{}, "")
	if r.Flag != unwind.FlagUnknown {
		t.Fatalf("flag = %q, want %q", r.Flag, unwind.FlagUnknown)
	}
	if r.Operation == nil || len(r.Operation.Names) != 0 {
		t.Errorf("operation = %+v, want an empty payload", r.Operation)
	}
}
