package gunwind_test

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/proto"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/gunwind"
)

func TestFieldViolation(t *testing.T) {
	t.Parallel()

	br := gunwind.FieldViolation("frames", "required")
	if len(br.GetFieldViolations()) != 1 {
		t.Fatalf("violations length = %d, want 1", len(br.GetFieldViolations()))
	}
	v := br.GetFieldViolations()[0]
	if v.GetField() != "frames" || v.GetDescription() != "required" {
		t.Errorf("got field=%q desc=%q", v.GetField(), v.GetDescription())
	}
}

func TestBadRequest(t *testing.T) {
	t.Parallel()

	br := gunwind.BadRequest(
		gunwind.NewFieldViolation("/frames/0/line", "expected integer"),
		gunwind.NewFieldViolation("/frames/1", "additional property"),
	)
	if len(br.GetFieldViolations()) != 2 {
		t.Fatalf("violations length = %d, want 2", len(br.GetFieldViolations()))
	}
}

func TestResourceInfo(t *testing.T) {
	t.Parallel()

	ri := gunwind.ResourceInfo("frame_dump", "crash.json", "ops", "missing")
	if ri.GetResourceType() != "frame_dump" || ri.GetResourceName() != "crash.json" ||
		ri.GetOwner() != "ops" || ri.GetDescription() != "missing" {
		t.Errorf("unexpected resource info: %v", ri)
	}
}

func TestErrorInfo(t *testing.T) {
	t.Parallel()

	ei := gunwind.ErrorInfo(gunwind.ReasonPanic, gunwind.Domain, map[string]string{"fingerprint": "abc"})
	if ei.GetReason() != gunwind.ReasonPanic || ei.GetDomain() != gunwind.Domain {
		t.Errorf("got reason=%q domain=%q", ei.GetReason(), ei.GetDomain())
	}
	if ei.GetMetadata()["fingerprint"] != "abc" {
		t.Errorf("metadata = %v", ei.GetMetadata())
	}
}

func TestReportDebugInfo(t *testing.T) {
	t.Parallel()

	records := []unwind.Record{
		{Flag: unwind.FlagCall, Context: unwind.TraceContext{File: "app.py", Line: 9, Function: "main", Statement: "run()"}},
		{Flag: unwind.FlagActive, Context: unwind.TraceContext{File: "app.py", Line: 2, Function: "run", Statement: "raise E"}},
	}
	di := gunwind.ReportDebugInfo(records, "panic: boom")
	if di.GetDetail() != "panic: boom" {
		t.Errorf("detail = %q", di.GetDetail())
	}
	entries := di.GetStackEntries()
	if len(entries) != 2 {
		t.Fatalf("entries length = %d, want 2", len(entries))
	}
	if !strings.HasPrefix(entries[0], "app.py:9 in main") || !strings.HasSuffix(entries[1], "[active]") {
		t.Errorf("entries = %q", entries)
	}
}

func TestLocalizedMessage(t *testing.T) {
	t.Parallel()

	lm := gunwind.LocalizedMessage("zh", "此处代码主动抛出了一个错误")
	want := gunwind.LocalizedMessage("zh", "此处代码主动抛出了一个错误")
	if !proto.Equal(lm, want) {
		t.Errorf("got %v, want %v", lm, want)
	}
}
