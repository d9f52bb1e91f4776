package framedump_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/require"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/framedump"
)

const jsonDump = `{
  "error": {"type": "RuntimeError", "message": "A"},
  "frames": [
    {
      "file": "/nonexistent/app.py",
      "line": 20,
      "function": "main",
      "source": "foo(1, 2, 3, \"x\", d=\"y\".ljust(3,'a'), a=1, b=2, c=3)",
      "globals": {
        "foo": {"$callable": {"name": "foo", "params": ["a", "b", "c", "d"], "varargs": "args"}}
      }
    },
    {
      "file": "/nonexistent/app.py",
      "line": 4,
      "function": "foo",
      "source": "raise RuntimeError(\"A\")",
      "locals": {"a": 1, "ratio": 0.5, "tags": ["x", "y"], "err": {"$exception": {"class": "Custom", "args": ["boom"]}}}
    }
  ]
}`

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	d, err := framedump.Decode([]byte(jsonDump), framedump.JSON)
	require.NoError(t, err)
	require.Equal(t, &framedump.Cause{Type: "RuntimeError", Message: "A"}, d.Cause)
	require.Len(t, d.Frames, 2)

	inner := d.Frames[1]
	require.Equal(t, "foo", inner.Function)
	require.Equal(t, 4, inner.Line)
	require.Equal(t, 1, inner.Scopes.Local["a"])
	require.Equal(t, 0.5, inner.Scopes.Local["ratio"])
	require.Equal(t, []any{"x", "y"}, inner.Scopes.Local["tags"])

	exc, ok := inner.Scopes.Local["err"].(*unwind.Exception)
	require.True(t, ok)
	require.Equal(t, "Custom", exc.Class.Name)
	require.Equal(t, []any{"boom"}, exc.Args)

	fn, ok := d.Frames[0].Scopes.Global["foo"].(*unwind.Func)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b", "c", "d"}, fn.Params)
	require.Equal(t, "args", fn.Variadic)
}

func TestDump_Records(t *testing.T) {
	t.Parallel()

	d, err := framedump.Decode([]byte(jsonDump), framedump.JSON)
	require.NoError(t, err)

	records := d.Records()
	require.Len(t, records, 2)

	call := records[0]
	require.Equal(t, unwind.FlagCall, call.Flag)
	require.Equal(t, map[string]any{
		"a":    1,
		"b":    2,
		"c":    3,
		"d":    "yaa",
		"args": []any{1, 2, 3, "x"},
	}, call.Call.Args.Map())

	raise := records[1]
	require.Equal(t, unwind.FlagActive, raise.Flag)
	require.Equal(t, "RuntimeError", raise.Exception.Type.Name)
	require.Equal(t, `"A"`, raise.Exception.Content)
}

func TestDump_Err(t *testing.T) {
	t.Parallel()

	d, err := framedump.Decode([]byte(jsonDump), framedump.JSON)
	require.NoError(t, err)

	crash := d.Err()
	require.Equal(t, "RuntimeError: A", crash.Error())
	require.Equal(t, unwind.Unknown, crash.Code())

	records, fp, ok := unwind.ReportOf(unwind.WrapErrorf(crash, "replay"))
	require.True(t, ok)
	require.Len(t, records, 2)
	require.Equal(t, unwind.Fingerprint(d.Records()), fp)

	fields := unwind.Fields(crash)
	require.Len(t, fields, 1)
	require.Equal(t, "type", fields[0].Key)

	bare := (&framedump.Dump{Frames: d.Frames}).Err()
	require.Equal(t, "unknown error", bare.Error())
	_, bareFP, ok := unwind.ReportOf(bare)
	require.True(t, ok)
	require.Equal(t, fp, bareFP)
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	const doc = `
frames:
  - file: /nonexistent/job.py
    line: 7
    function: run
    source: "for item in items:"
    locals:
      items: [1, 2]
      kind: {$class: ValueError}
`
	d, err := framedump.Decode([]byte(doc), framedump.YAML)
	require.NoError(t, err)
	require.Nil(t, d.Cause)
	require.Len(t, d.Frames, 1)

	cls, ok := d.Frames[0].Scopes.Local["kind"].(*unwind.ExceptionClass)
	require.True(t, ok)
	require.Equal(t, "ValueError", cls.Name)

	records := d.Records()
	require.Equal(t, unwind.FlagIter, records[0].Flag)
	require.Equal(t, []any{1, 2}, records[0].Call.Callable)
}

func TestDecode_CBOR(t *testing.T) {
	t.Parallel()

	data, err := cbor.Marshal(map[string]any{
		"frames": []any{
			map[string]any{
				"file":     "/nonexistent/a.py",
				"line":     3,
				"function": "f",
				"source":   "x = y + 1",
				"locals":   map[string]any{"y": -4},
			},
		},
	})
	require.NoError(t, err)

	d, err := framedump.Decode(data, framedump.CBOR)
	require.NoError(t, err)
	require.Equal(t, -4, d.Frames[0].Scopes.Local["y"])
}

func TestDecode_SchemaViolations(t *testing.T) {
	t.Parallel()

	const doc = `{"frames": [{"file": "a.py", "line": "three", "extra": true}]}`
	_, err := framedump.Decode([]byte(doc), framedump.JSON)
	require.Error(t, err)
	require.True(t, unwind.IsCode(err, unwind.InvalidArgument))

	details := unwind.DetailsOf(err)
	require.Len(t, details, 1)
	br, ok := details[0].(*unwind.BadRequestDetail)
	require.True(t, ok)
	require.NotEmpty(t, br.Violations)

	var fields []string
	for _, v := range br.Violations {
		fields = append(fields, v.Field)
	}
	require.Contains(t, fields, "/frames/0/line")
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		format framedump.Format
		target error
		code   unwind.Code
	}{
		{name: "empty frames", data: `{"frames": []}`, format: framedump.JSON, target: unwind.ErrEmptyDump, code: unwind.InvalidArgument},
		{name: "unknown format", data: `{}`, format: "toml", target: unwind.ErrUnsupportedFormat, code: unwind.InvalidArgument},
		{name: "malformed json", data: `{"frames": [`, format: framedump.JSON, code: unwind.InvalidArgument},
		{name: "missing frames", data: `{}`, format: framedump.JSON, code: unwind.InvalidArgument},
		{name: "bad tagged value", data: `{"frames": [{"file": "a", "line": 1, "locals": {"x": {"$class": ""}}}]}`, format: framedump.JSON, code: unwind.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := framedump.Decode([]byte(tt.data), tt.format)
			require.Error(t, err)
			if tt.target != nil {
				require.True(t, errors.Is(err, tt.target), "errors.Is(%v, %v)", err, tt.target)
			}
			require.Equal(t, tt.code, unwind.CodeOf(err))
		})
	}
}

func TestFormatOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want framedump.Format
		ok   bool
	}{
		{"dump.json", framedump.JSON, true},
		{"dump.YAML", framedump.YAML, true},
		{"dump.yml", framedump.YAML, true},
		{"dump.cbor", framedump.CBOR, true},
		{"dump.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, err := framedump.FormatOf(tt.path)
			if !tt.ok {
				require.ErrorIs(t, err, unwind.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	got, err := framedump.ParseFormat("application/yaml; charset=utf-8")
	require.NoError(t, err)
	require.Equal(t, framedump.YAML, got)

	got, err = framedump.ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, framedump.JSON, got)

	_, err = framedump.ParseFormat("text/plain")
	require.ErrorIs(t, err, unwind.ErrUnsupportedFormat)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "crash.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonDump), 0o600))

	d, err := framedump.Load(path)
	require.NoError(t, err)
	require.Len(t, d.Frames, 2)

	_, err = framedump.Load(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	require.True(t, unwind.IsCode(err, unwind.NotFound))
	details := unwind.DetailsOf(err)
	require.Len(t, details, 1)
	ri, ok := details[0].(*unwind.ResourceInfoDetail)
	require.True(t, ok)
	require.Equal(t, "frame_dump", ri.ResourceType)
}
