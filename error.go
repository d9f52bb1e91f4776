package unwind

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Error is the structured error returned by the dump decoder, the report
// endpoints and the recorder: a message, an optional cause, a [Code],
// slog fields, opaque detail objects and optionally the crash report of
// the failure it describes.
type Error struct {
	msg     string
	cause   error
	code    Code
	fields  []slog.Attr
	details []any

	records     []Record
	fingerprint string
}

// Reporter is implemented by errors that carry a crash report.
// An empty fingerprint means no report.
type Reporter interface {
	Report() (records []Record, fingerprint string)
}

var (
	_ Reporter = (*Error)(nil)
	_ Reporter = (*PanicError)(nil)
)

// NewError creates an Error with the given message and optional slog-style fields.
func NewError(msg string, args ...any) *Error {
	return &Error{
		msg:    msg,
		fields: argsToAttrs(args),
	}
}

// WrapError wraps err with optional fields. Returns nil if err is nil.
func WrapError(err error, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		cause:  err,
		fields: argsToAttrs(args),
	}
}

// WrapErrorf wraps err with a formatted message. Returns nil if err is nil.
func WrapErrorf(err error, format string, fmtArgs ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		msg:   fmt.Sprintf(format, fmtArgs...),
		cause: err,
	}
}

// With returns a copy of the error with additional fields appended.
func (e *Error) With(args ...any) *Error {
	cp := *e
	cp.fields = append(append([]slog.Attr(nil), e.fields...), argsToAttrs(args)...)
	return &cp
}

// WithCode returns a copy of the error with the given code set.
func (e *Error) WithCode(c Code) *Error {
	cp := *e
	cp.code = c
	return &cp
}

// WithDetails returns a copy of the error with the given detail objects appended.
func (e *Error) WithDetails(details ...any) *Error {
	cp := *e
	cp.details = append(append([]any(nil), e.details...), details...)
	return &cp
}

// WithReport returns a copy of the error carrying records as its crash
// report, fingerprinted with [Fingerprint].
func (e *Error) WithReport(records []Record) *Error {
	cp := *e
	cp.records = slices.Clone(records)
	cp.fingerprint = Fingerprint(records)
	return &cp
}

// Report implements [Reporter]. It returns only the report attached to e
// itself; use [ReportOf] to search the chain.
func (e *Error) Report() ([]Record, string) {
	return e.records, e.fingerprint
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.msg == "" && e.cause != nil {
		return e.cause.Error()
	}
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Code returns the code of this error, walking the cause chain if unset.
func (e *Error) Code() Code {
	if e.code != "" {
		return e.code
	}
	return CodeOf(e.cause)
}

// Fields collects all structured fields from the error chain (outermost first).
func Fields(err error) []slog.Attr {
	var attrs []slog.Attr
	for err != nil {
		var ex *Error
		if !errors.As(err, &ex) {
			break
		}
		attrs = append(attrs, ex.fields...)
		err = ex.cause
	}
	return attrs
}

// DetailsOf collects all detail objects from the error chain (outermost first).
func DetailsOf(err error) []any {
	var details []any
	for err != nil {
		var ex *Error
		if !errors.As(err, &ex) {
			break
		}
		details = append(details, ex.details...)
		err = ex.cause
	}
	return details
}

// ReportOf returns the crash report of the outermost error in err's chain
// that carries one.
func ReportOf(err error) (records []Record, fingerprint string, ok bool) {
	for err != nil {
		if r, isReporter := err.(Reporter); isReporter {
			if records, fingerprint = r.Report(); fingerprint != "" {
				return records, fingerprint, true
			}
		}
		err = errors.Unwrap(err)
	}
	return nil, "", false
}

// Localizable is implemented by errors that can describe themselves in a
// given BCP 47 locale.
type Localizable interface {
	Localize(locale string) string
}

// argsToAttrs converts slog-style args (alternating key/value or slog.Attr) into []slog.Attr.
// A lone key without a value gets the key "!BADKEY", as in slog.
func argsToAttrs(args []any) []slog.Attr {
	var attrs []slog.Attr
	for i := 0; i < len(args); {
		switch v := args[i].(type) {
		case slog.Attr:
			attrs = append(attrs, v)
			i++
		case string:
			if i+1 < len(args) {
				attrs = append(attrs, slog.Any(v, args[i+1]))
				i += 2
			} else {
				attrs = append(attrs, slog.String("!BADKEY", v))
				i++
			}
		default:
			attrs = append(attrs, slog.Any("!BADKEY", v))
			i++
		}
	}
	return attrs
}
