package unwind_test

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/mickamy/unwind"
)

func newTestRecorder(h *unwind.Hub, opts ...unwind.RecorderOption) *unwind.Recorder {
	base := []unwind.RecorderOption{
		unwind.WithHub(h),
		unwind.WithLogger(slog.New(slog.DiscardHandler)),
	}
	return unwind.NewRecorder(append(base, opts...)...)
}

func TestRecorder_Run_NoPanic(t *testing.T) {
	t.Parallel()

	h := newTestHub()
	rec := newTestRecorder(h)

	if err := rec.Run(t.Context(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}

	cause := errors.New("plain failure")
	if err := rec.Run(t.Context(), func(context.Context) error { return cause }); err != cause {
		t.Errorf("Run() = %v, want %v", err, cause)
	}
	if _, ok := h.Last(); ok {
		t.Error("returned errors should not be dispatched")
	}
}

func TestRecorder_Run_Panic(t *testing.T) {
	t.Parallel()

	h := newTestHub()
	rec := newTestRecorder(h)

	err := rec.Run(t.Context(), func(context.Context) error {
		panic("recorder exploded")
	})

	var pe *unwind.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() = %v, want *PanicError", err)
	}
	if pe.Value != "recorder exploded" {
		t.Errorf("Value = %v", pe.Value)
	}
	if got := unwind.CodeOf(err); got != unwind.Internal {
		t.Errorf("CodeOf() = %q, want %q", got, unwind.Internal)
	}
	if err.Error() != "panic: recorder exploded" {
		t.Errorf("Error() = %q", err.Error())
	}
	if len(pe.Fingerprint) != 24 {
		t.Errorf("Fingerprint = %q, want 24 hex digits", pe.Fingerprint)
	}

	inner, ok := pe.Innermost()
	if !ok {
		t.Fatal("Innermost() should report the panicking frame")
	}
	if inner.Flag != unwind.FlagActive {
		t.Errorf("innermost flag = %q, want %q", inner.Flag, unwind.FlagActive)
	}
	if inner.Context.Statement != `panic("recorder exploded")` {
		t.Errorf("innermost statement = %q", inner.Context.Statement)
	}
	if !strings.HasSuffix(inner.Context.File, "recorder_test.go") {
		t.Errorf("innermost file = %q", inner.Context.File)
	}
	if !strings.HasPrefix(inner.Context.Function, "TestRecorder_Run_Panic") {
		t.Errorf("innermost function = %q", inner.Context.Function)
	}
	for _, r := range pe.Records {
		if strings.Contains(r.Context.Function, "Recorder") && !strings.HasPrefix(r.Context.Function, "TestRecorder") {
			t.Errorf("recorder frame leaked into the report: %s", r.Summary())
		}
	}

	c, ok := h.Last()
	if !ok {
		t.Fatal("panic should be dispatched to the hub")
	}
	if c.Fingerprint != pe.Fingerprint || c.Err != err {
		t.Errorf("dispatched crash = %+v", c)
	}
}

func boom(err error) {
	panic(err)
}

func TestRecorder_Run_PanicWithError(t *testing.T) {
	t.Parallel()

	cause := errors.New("wrapped cause")
	err := newTestRecorder(newTestHub()).Run(t.Context(), func(context.Context) error {
		boom(cause)
		return nil
	})

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false for %v", err)
	}
	var pe *unwind.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() = %v, want *PanicError", err)
	}
	if len(pe.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(pe.Records))
	}
	outer, inner := pe.Records[0], pe.Records[1]
	if outer.Flag != unwind.FlagCall || outer.Context.Statement != "boom(cause)" {
		t.Errorf("outer record = %s", outer.Summary())
	}
	if inner.Context.Function != "boom" || inner.Flag != unwind.FlagActive {
		t.Errorf("inner record = %s", inner.Summary())
	}
}

func TestRecorder_Run_MostRecentFirst(t *testing.T) {
	t.Parallel()

	rec := newTestRecorder(newTestHub(), unwind.WithReportOptions(unwind.WithMostRecentFirst(true)))
	err := rec.Run(t.Context(), func(context.Context) error {
		boom(errors.New("first"))
		return nil
	})

	var pe *unwind.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() = %v, want *PanicError", err)
	}
	inner, ok := pe.Innermost()
	if !ok || inner.Context.Function != "boom" {
		t.Errorf("Innermost() = %s, want the boom frame", inner.Summary())
	}
	if pe.Records[0].Context.Function != "boom" {
		t.Errorf("first record = %s, want the boom frame", pe.Records[0].Summary())
	}
}

func TestRecorder_Run_NoSuppress(t *testing.T) {
	t.Parallel()

	h := newTestHub()
	rec := newTestRecorder(h, unwind.WithSuppress(false))

	defer func() {
		if v := recover(); v != "not suppressed" {
			t.Errorf("recovered %v, want the original panic value", v)
		}
		if _, ok := h.Last(); !ok {
			t.Error("panic should be dispatched before it is re-raised")
		}
	}()
	_ = rec.Run(t.Context(), func(context.Context) error {
		panic("not suppressed")
	})
	t.Error("Run should re-panic")
}

func TestRecorder_Run_GoroutineDump(t *testing.T) {
	t.Parallel()

	h := newTestHub()
	rec := newTestRecorder(h, unwind.WithGoroutineDump(true))
	_ = rec.Run(t.Context(), func(context.Context) error {
		panic("dump")
	})

	c, ok := h.Last()
	if !ok {
		t.Fatal("panic should be dispatched")
	}
	if len(c.Dumps) != 1 || !strings.Contains(c.Dumps[0], "goroutine ") {
		t.Errorf("Dumps = %q", c.Dumps)
	}
}

func TestPanicError_Localize(t *testing.T) {
	t.Parallel()

	err := newTestRecorder(newTestHub()).Run(t.Context(), func(context.Context) error {
		panic("localized")
	})

	var pe *unwind.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Run() = %v, want *PanicError", err)
	}
	want := `panic: localized (panic("localized"): 此处代码主动抛出了一个错误)`
	if got := pe.Localize("zh"); got != want {
		t.Errorf("Localize(zh) = %q, want %q", got, want)
	}
	empty := &unwind.PanicError{Value: "bare"}
	if got := empty.Localize("en"); got != "panic: bare" {
		t.Errorf("Localize() without records = %q", got)
	}
}
