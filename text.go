package unwind

import (
	"errors"
	"fmt"
	"io"
)

// Write renders records as a human-readable report, with flag
// descriptions in English.
func Write(w io.Writer, records []Record) error {
	return WriteLocalized(w, records, "")
}

// WriteLocalized is like [Write] but describes flags in the locale that
// best matches the given BCP 47 tag.
//
// Each record is written as its location, the flag and its description,
// the source window with the reported line marked, and the payload:
//
//	File "app.py", line 12, in load
//	  [call_callable] this statement is calling a callable
//	     10 |     cfg = read()
//	  >  12 |     load(cfg, strict=True)
//	  callable: <function load>
//	  args: {'cfg': {...}, 'strict': True}
func WriteLocalized(w io.Writer, records []Record, locale string) error {
	rw := &reportWriter{W: w}
	for i, r := range records {
		if i > 0 {
			rw.writeString("\n")
		}
		rw.writeRecord(r, locale)
	}
	return rw.e
}

type reportWriter struct {
	W io.Writer
	e error
}

func (p *reportWriter) err(err error) {
	p.e = errors.Join(p.e, err)
}

func (p *reportWriter) writeString(s string) {
	_, err := io.WriteString(p.W, s)
	p.err(err)
}

func (p *reportWriter) printf(format string, args ...any) {
	_, err := fmt.Fprintf(p.W, format, args...)
	p.err(err)
}

func (p *reportWriter) writeRecord(r Record, locale string) {
	ctx := r.Context
	p.printf("File %q, line %d, in %s\n", ctx.File, ctx.Line, ctx.Function)
	p.printf("  [%s] %s\n", r.Flag, r.Flag.Describe(locale))

	if len(ctx.Window) > 0 {
		first := max(ctx.Line-windowMargin, 1)
		for i, l := range ctx.Window {
			n := first + i
			marker := "   "
			if n == ctx.Line {
				marker = ">  "
			}
			p.printf("  %s%4d | %s\n", marker, n, l)
		}
	} else if ctx.Statement != "" {
		p.printf("  >  %s\n", ctx.Statement)
	}

	switch {
	case r.Exception != nil:
		p.printf("  type: %s\n", r.Exception.Type.Name)
		p.printf("  content: %s\n", str(r.Exception.Content))
	case r.Call != nil:
		p.printf("  callable: %s\n", str(r.Call.Callable))
		p.printf("  args: %s\n", r.Call.Args)
	case r.Operation != nil && len(r.Operation.Names) > 0:
		p.printf("  names: %s\n", r.Operation.Names)
	}
}
