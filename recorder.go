package unwind

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// pkgPrefix prefixes the fully qualified names of this package's functions.
const pkgPrefix = "github.com/mickamy/unwind."

const maxCapturedFrames = 64

// RecorderOption configures a [Recorder].
type RecorderOption func(*Recorder)

// WithLogger sets the logger captured panics are logged to.
// The default is slog.Default.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithHub sets the hub captured panics are dispatched to.
// The default is [DefaultHub].
func WithHub(h *Hub) RecorderOption {
	return func(r *Recorder) { r.hub = h }
}

// WithSuppress controls whether a captured panic is turned into a returned
// *PanicError (true, the default) or re-raised after it was reported.
func WithSuppress(v bool) RecorderOption {
	return func(r *Recorder) { r.suppress = v }
}

// WithGoroutineDump also captures the stacks of all goroutines.
func WithGoroutineDump(v bool) RecorderOption {
	return func(r *Recorder) { r.goroutines = v }
}

// WithGlobals binds names that statements of captured frames may refer
// to, such as package-level functions and variables.
func WithGlobals(ns Namespace) RecorderOption {
	return func(r *Recorder) { r.globals = ns }
}

// WithReportOptions sets the options reports are generated with.
func WithReportOptions(opts ...Option) RecorderOption {
	return func(r *Recorder) { r.reportOpts = opts }
}

// Recorder captures panics of the functions it runs and reports them.
type Recorder struct {
	logger     *slog.Logger
	hub        *Hub
	suppress   bool
	goroutines bool
	globals    Namespace
	reportOpts []Option
}

// NewRecorder returns a Recorder configured by opts.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{suppress: true}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.hub == nil {
		r.hub = DefaultHub()
	}
	return r
}

// Run calls fn and returns its error.
//
// If fn panics, the stack from the panic site up to Run is reported: the
// records are generated, dispatched to the hub and logged. Run then
// returns a *PanicError, or re-panics with the original value when
// suppression is off.
func (r *Recorder) Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		pe := r.capture(ctx, v)
		if !r.suppress {
			panic(v)
		}
		err = pe
	}()
	return fn(ctx)
}

func (r *Recorder) capture(ctx context.Context, v any) *PanicError {
	opts := append([]Option{WithInnermostFirst()}, r.reportOpts...)
	records := Generate(r.panicFrames(), opts...)
	pe := &PanicError{Value: v, Records: records, Fingerprint: Fingerprint(records), innermost: -1}
	if len(records) > 0 {
		var o options
		for _, opt := range opts {
			opt(&o)
		}
		pe.innermost = len(records) - 1
		if o.mostRecentFirst {
			pe.innermost = 0
		}
	}

	var dumps []string
	if r.goroutines {
		dumps = append(dumps, goroutineDump())
	}
	r.hub.Dispatch(ctx, Crash{Err: pe, Records: records, Fingerprint: pe.Fingerprint, Dumps: dumps})

	attrs := []any{slog.String("fingerprint", pe.Fingerprint)}
	if inner, ok := pe.Innermost(); ok {
		attrs = append(attrs, slog.Any("record", inner))
	}
	r.logger.ErrorContext(ctx, "unwind: recovered panic", append(attrs, slog.Any("panic", v))...)
	return pe
}

// panicFrames returns the frames from the panic site up to Run, innermost
// first, followed by the callers of Run marked Outer.
func (r *Recorder) panicFrames() []Frame {
	pcs := make([]uintptr, maxCapturedFrames)
	n := runtime.Callers(1, pcs)
	iter := runtime.CallersFrames(pcs[:n])

	var (
		out       []Frame
		panicking bool
		outer     bool
	)
	for {
		f, more := iter.Next()
		switch {
		case f.Function == "runtime.gopanic":
			panicking = true
		case !panicking:
		case strings.HasPrefix(f.Function, "runtime."):
		case strings.HasPrefix(f.Function, pkgPrefix):
			if strings.Contains(f.Function, "(*Recorder).Run") {
				outer = true
			}
		default:
			out = append(out, Frame{
				File:     f.File,
				Line:     f.Line,
				Function: shortFuncName(f.Function),
				Scopes:   Scopes{Global: r.globals},
				Outer:    outer,
			})
		}
		if !more {
			break
		}
	}
	return out
}

// shortFuncName strips the import path from a fully qualified function
// name: "github.com/a/b.(*T).M" becomes "(*T).M".
func shortFuncName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func goroutineDump() string {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16<<20 {
			return string(buf[:n])
		}
		buf = make([]byte, 2*len(buf))
	}
}

// PanicError is returned by [Recorder.Run] for a captured panic.
type PanicError struct {
	Value       any
	Records     []Record
	Fingerprint string

	innermost int
}

var (
	_ Coder          = (*PanicError)(nil)
	_ Localizable    = (*PanicError)(nil)
	_ slog.LogValuer = (*PanicError)(nil)
)

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Code implements [Coder].
func (e *PanicError) Code() Code { return Internal }

// Report implements [Reporter].
func (e *PanicError) Report() ([]Record, string) { return e.Records, e.Fingerprint }

// Innermost returns the record of the frame that panicked.
func (e *PanicError) Innermost() (Record, bool) {
	if e.innermost < 0 || e.innermost >= len(e.Records) {
		return Record{}, false
	}
	return e.Records[e.innermost], true
}

// Localize implements [Localizable]: the panic message followed by the
// description of the statement that panicked.
func (e *PanicError) Localize(locale string) string {
	inner, ok := e.Innermost()
	if !ok {
		return e.Error()
	}
	return fmt.Sprintf("%s (%s: %s)", e.Error(), inner.Context.Statement, inner.Flag.Describe(locale))
}

// LogValue implements slog.LogValuer.
func (e *PanicError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", e.Error()),
		slog.String("code", e.Code().String()),
		slog.String("fingerprint", e.Fingerprint),
	}
	if inner, ok := e.Innermost(); ok {
		attrs = append(attrs, slog.Any("record", inner))
	}
	return slog.GroupValue(attrs...)
}
