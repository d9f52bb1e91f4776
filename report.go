package unwind

import (
	"io/fs"
	"slices"
)

// Frame is one level of a captured stack.
type Frame struct {
	File     string
	Line     int
	Function string
	// Source is the already-known text of the line, used when File cannot
	// be read.
	Source string
	Scopes Scopes
	// Outer marks a frame outside the error's propagation path, such as a
	// caller of the function that recovered it.
	Outer bool
}

// Option configures [Generate].
type Option func(*options)

type options struct {
	mostRecentFirst bool
	wholeTrace      bool
	innermostFirst  bool
	source          fs.FS
}

// WithMostRecentFirst puts the record of the innermost frame first.
// By default records are most-recent-last, like a traceback.
func WithMostRecentFirst(v bool) Option {
	return func(o *options) { o.mostRecentFirst = v }
}

// WithWholeTrace also reports frames marked [Frame.Outer].
func WithWholeTrace(v bool) Option {
	return func(o *options) { o.wholeTrace = v }
}

// WithInnermostFirst declares that the frames passed to [Generate] are
// ordered innermost first. By default they are expected outermost first.
func WithInnermostFirst() Option {
	return func(o *options) { o.innermostFirst = true }
}

// WithSourceFS reads frame source files from fsys instead of the local
// filesystem (see [ReconstructFS]). A nil fsys disables reading entirely:
// each record is built from [Frame.Source] alone and has no window.
func WithSourceFS(fsys fs.FS) Option {
	return func(o *options) { o.source = fsys }
}

// Generate builds one record per frame.
//
// Each record is built independently: an unreadable file, an unresolvable
// name or a failing evaluation degrades that record only.
func Generate(frames []Frame, opts ...Option) []Record {
	o := options{source: localFS{}}
	for _, opt := range opts {
		opt(&o)
	}

	inner := make([]Frame, 0, len(frames))
	for _, f := range frames {
		if f.Outer && !o.wholeTrace {
			continue
		}
		inner = append(inner, f)
	}
	if !o.innermostFirst {
		slices.Reverse(inner)
	}

	records := make([]Record, len(inner))
	for i, f := range inner {
		next := ""
		if i > 0 {
			next = inner[i-1].Function
		}
		records[i] = buildRecord(o.source, f, next)
	}
	if !o.mostRecentFirst {
		slices.Reverse(records)
	}
	return records
}

func buildRecord(source fs.FS, f Frame, next string) (rec Record) {
	stmt, window, ok := ReconstructFS(source, f.File, f.Line, f.Source)
	ctx := TraceContext{
		File:      f.File,
		Line:      f.Line,
		Function:  f.Function,
		Window:    window,
		Statement: stmt,
		Locals:    f.Scopes.Local.Clone(),
	}
	if !ok {
		return newOperationRecord(ctx, FlagUnknown, nil)
	}
	defer func() {
		if recover() != nil {
			rec = newOperationRecord(ctx, FlagUnknown, nil)
		}
	}()
	return Classify(ctx, f.Scopes, next)
}
