package unwind_test

import (
	"errors"
	"testing"

	"github.com/mickamy/unwind"
)

func TestSentinel_Error(t *testing.T) {
	t.Parallel()

	s := unwind.NewSentinel("not found", unwind.NotFound)
	if s.Error() != "not found" {
		t.Errorf("Error() = %q, want %q", s.Error(), "not found")
	}
	if s.Code() != unwind.NotFound {
		t.Errorf("Code() = %q, want %q", s.Code(), unwind.NotFound)
	}
}

func TestSentinel_ErrorsIs(t *testing.T) {
	t.Parallel()

	t.Run("direct match", func(t *testing.T) {
		t.Parallel()
		if !errors.Is(unwind.ErrEmptyDump, unwind.ErrEmptyDump) {
			t.Error("errors.Is should match sentinel with itself")
		}
	})

	t.Run("wrapped match", func(t *testing.T) {
		t.Parallel()
		err := unwind.WrapError(unwind.ErrUnsupportedFormat, "path", "dump.toml")
		if !errors.Is(err, unwind.ErrUnsupportedFormat) {
			t.Error("errors.Is should find sentinel through WrapError")
		}
		if errors.Is(err, unwind.ErrEmptyDump) {
			t.Error("errors.Is should not match a different sentinel")
		}
	})

	t.Run("double wrapped match", func(t *testing.T) {
		t.Parallel()
		err := unwind.WrapErrorf(unwind.WrapError(unwind.ErrEmptyDump), "load %s", "dump.json")
		if !errors.Is(err, unwind.ErrEmptyDump) {
			t.Error("errors.Is should find sentinel through multiple wraps")
		}
	})
}

func TestSentinel_CodeOverride(t *testing.T) {
	t.Parallel()

	err := unwind.WrapError(unwind.ErrEmptyDump).WithCode(unwind.DataLoss)

	if err.Code() != unwind.DataLoss {
		t.Errorf("Code() = %q, want %q (outer should override)", err.Code(), unwind.DataLoss)
	}
	if unwind.CodeOf(unwind.WrapError(unwind.ErrEmptyDump)) != unwind.InvalidArgument {
		t.Error("wrapped sentinel should keep its code")
	}
}
