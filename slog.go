package unwind

import (
	"errors"
	"log/slog"
	"strconv"
)

// LogValue implements slog.LogValuer, allowing *Error to be logged directly as a structured value.
// Fields are collected from the entire error chain (outermost first).
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, 4)
	attrs = append(attrs, slog.String("msg", e.Error()))
	if c := e.Code(); c != "" {
		attrs = append(attrs, slog.String("code", c.String()))
	}
	attrs = append(attrs, Fields(e)...)
	if _, fp, ok := ReportOf(e); ok {
		attrs = append(attrs, slog.String("fingerprint", fp))
	}
	return slog.GroupValue(attrs...)
}

// SlogAttr builds a slog.Attr from the entire error chain.
// Fields are collected outermost-first; code is taken from the first Coder in the chain.
// The first crash report in the chain contributes its fingerprint, and a
// *PanicError the frame that panicked.
func SlogAttr(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}

	attrs := make([]slog.Attr, 0, 4)
	attrs = append(attrs, slog.String("msg", err.Error()))

	if c := CodeOf(err); c != "" {
		attrs = append(attrs, slog.String("code", c.String()))
	}

	attrs = append(attrs, Fields(err)...)

	if _, fp, ok := ReportOf(err); ok {
		attrs = append(attrs, slog.String("fingerprint", fp))
	}
	var pe *PanicError
	if errors.As(err, &pe) {
		if inner, ok := pe.Innermost(); ok {
			attrs = append(attrs, slog.Group("caller",
				slog.String("function", inner.Context.Function),
				slog.String("file", inner.Context.File),
				slog.Int("line", inner.Context.Line),
			))
		}
	}

	return slog.Attr{Key: "error", Value: slog.GroupValue(attrs...)}
}

// LogValue implements slog.LogValuer: flag, location and statement, plus
// the resolved callable or exception type.
func (r Record) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("flag", r.Flag.String()),
		slog.String("file", r.Context.File),
		slog.Int("line", r.Context.Line),
		slog.String("function", r.Context.Function),
		slog.String("statement", r.Context.Statement),
	}
	switch {
	case r.Exception != nil:
		attrs = append(attrs, slog.String("type", r.Exception.Type.Name))
	case r.Call != nil:
		attrs = append(attrs,
			slog.String("callable", str(r.Call.Callable)),
			slog.String("args", r.Call.Args.String()),
		)
	}
	return slog.GroupValue(attrs...)
}

// ReportAttr builds a slog.Attr holding the fingerprint and one group per
// record, keyed by position.
func ReportAttr(records []Record) slog.Attr {
	attrs := make([]slog.Attr, 0, len(records)+1)
	attrs = append(attrs, slog.String("fingerprint", Fingerprint(records)))
	for i, r := range records {
		attrs = append(attrs, slog.Attr{Key: strconv.Itoa(i), Value: r.LogValue()})
	}
	return slog.Attr{Key: "report", Value: slog.GroupValue(attrs...)}
}

// Ensure *Error and Record implement slog.LogValuer at compile time.
var (
	_ slog.LogValuer = (*Error)(nil)
	_ slog.LogValuer = Record{}
)
