// Package framedump decodes frame dumps produced outside the process: a
// captured stack with the source location, function name and variable
// bindings of every frame, encoded as JSON, YAML or CBOR.
//
// A dump looks like this (JSON):
//
//	{
//	  "error": {"type": "RuntimeError", "message": "A"},
//	  "frames": [
//	    {"file": "app.py", "line": 12, "function": "main",
//	     "locals": {"n": 3, "foo": {"$callable": {"name": "foo", "params": ["a", "b"]}}}},
//	    {"file": "app.py", "line": 4, "function": "foo", "source": "raise RuntimeError(\"A\")"}
//	  ]
//	}
//
// Frames are listed outermost first. Binding values are plain JSON values
// or one of the tagged objects
//
//	{"$callable": {"name": "f", "params": ["a"], "varargs": "rest"}}
//	{"$class": "ValueError"}
//	{"$exception": {"class": "ValueError", "args": ["bad"]}}
//
// which decode to *unwind.Func, *unwind.ExceptionClass and
// *unwind.Exception respectively.
package framedump

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/mickamy/unwind"
)

// Format is the encoding of a dump.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	CBOR Format = "cbor"
)

// MaxSize is the largest dump [DecodeReader] and [Load] accept.
const MaxSize = 32 << 20

// Cause describes the error the dumped stack belongs to.
type Cause struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Dump is a decoded frame dump.
type Dump struct {
	Cause  *Cause
	Frames []unwind.Frame
}

// Records generates the report for the dump.
func (d *Dump) Records(opts ...unwind.Option) []unwind.Record {
	return unwind.Generate(d.Frames, opts...)
}

// Err returns the dumped failure as an error carrying the dump's report.
// Its message is "Type: message" from the dump's cause, or "unknown error"
// when the dump records none.
func (d *Dump) Err(opts ...unwind.Option) *unwind.Error {
	err := unwind.NewError("unknown error")
	if d.Cause != nil {
		err = unwind.NewError(d.Cause.Type+": "+d.Cause.Message, "type", d.Cause.Type)
	}
	return err.WithCode(unwind.Unknown).WithReport(d.Records(opts...))
}

// FormatOf returns the format selected by the extension of path.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON, nil
	case ".yaml", ".yml":
		return YAML, nil
	case ".cbor":
		return CBOR, nil
	}
	return "", unwind.WrapError(unwind.ErrUnsupportedFormat, "path", path)
}

// ParseFormat parses a format name such as "json" or a media type such as
// "application/yaml".
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	switch s {
	case "", "json", "application/json":
		return JSON, nil
	case "yaml", "yml", "application/yaml", "application/x-yaml", "text/yaml":
		return YAML, nil
	case "cbor", "application/cbor":
		return CBOR, nil
	}
	return "", unwind.WrapError(unwind.ErrUnsupportedFormat, "format", s)
}

// Load reads and decodes the dump at path.
func Load(path string) (*Dump, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, unwind.WrapErrorf(err, "load dump").
				WithCode(unwind.NotFound).
				WithDetails(unwind.ResourceInfo("frame_dump", path, "", "dump file does not exist"))
		}
		return nil, unwind.WrapErrorf(err, "load dump").WithCode(unwind.Internal)
	}
	defer file.Close()
	return DecodeReader(file, f)
}

// DecodeReader reads at most [MaxSize] bytes from r and decodes them.
func DecodeReader(r io.Reader, f Format) (*Dump, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, unwind.WrapErrorf(err, "read dump").WithCode(unwind.DataLoss)
	}
	if len(data) > MaxSize {
		return nil, unwind.NewError("dump too large", "limit", MaxSize).WithCode(unwind.InvalidArgument)
	}
	return Decode(data, f)
}

// Decode decodes and validates a dump.
//
// The document is checked against the dump schema before any value is
// converted; violations are reported as an invalid_argument error carrying
// an [unwind.BadRequestDetail] with one violation per failing location.
func Decode(data []byte, f Format) (*Dump, error) {
	doc, err := parse(data, f)
	if err != nil {
		return nil, err
	}
	if err := validate(doc); err != nil {
		return nil, err
	}

	root := doc.(map[string]any)
	d := &Dump{}
	if c, ok := root["error"].(map[string]any); ok {
		d.Cause = &Cause{}
		d.Cause.Type, _ = c["type"].(string)
		d.Cause.Message, _ = c["message"].(string)
	}

	conv := newConverter()
	for _, raw := range root["frames"].([]any) {
		d.Frames = append(d.Frames, conv.frame(raw.(map[string]any)))
	}
	if len(d.Frames) == 0 {
		return nil, unwind.ErrEmptyDump
	}
	return d, nil
}

// parse decodes data into generic JSON values: map[string]any, []any,
// json.Number, string, bool and nil.
func parse(data []byte, f Format) (any, error) {
	var (
		doc any
		err error
	)
	switch f {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		err = dec.Decode(&doc)
	case YAML:
		err = yaml.Unmarshal(data, &doc)
	case CBOR:
		err = cborMode.Unmarshal(data, &doc)
	default:
		return nil, unwind.WrapError(unwind.ErrUnsupportedFormat, "format", string(f))
	}
	if err != nil {
		return nil, unwind.WrapErrorf(err, "decode %s dump", f).WithCode(unwind.InvalidArgument)
	}
	doc, err = normalize(doc, "")
	if err != nil {
		return nil, err
	}
	return doc, nil
}

var cborMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType:        reflect.TypeOf(map[string]any(nil)),
		DefaultByteStringType: reflect.TypeOf(""),
		IntDec:                cbor.IntDecConvertSignedOrFail,
	}.DecMode()
	if err != nil {
		panic("framedump: cbor decode mode: " + err.Error())
	}
	return mode
}()
