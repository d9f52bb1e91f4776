// Package cunwind carries crash reports over Connect: an interceptor that
// recovers panicking handlers, and conversions between errors and
// *connect.Error with google.rpc error details.
package cunwind

import (
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/protobuf/proto"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/gunwind"
)

// FingerprintHeader is the error metadata key holding the fingerprint of
// a recovered panic.
const FingerprintHeader = "Unwind-Fingerprint"

// ToConnectCode maps an unwind.Code to a connect.Code.
// Unknown or user-defined codes map to connect.CodeUnknown.
func ToConnectCode(c unwind.Code) connect.Code {
	if cc, ok := codeToConnect[c]; ok {
		return cc
	}
	return connect.CodeUnknown
}

// ToCode maps a connect.Code to an unwind.Code.
// Zero value (no error) maps to the zero value ("").
func ToCode(c connect.Code) unwind.Code {
	if ec, ok := connectToCode[c]; ok {
		return ec
	}
	return unwind.Unknown
}

// ToConnectError converts an error to a *connect.Error.
// If the error carries an unwind.Code, it is mapped to a Connect code.
// Detail objects attached via unwind.Error.WithDetails are included as
// Connect error details; unrecognized details are ignored. A
// *unwind.PanicError in the chain adds an ErrorInfo detail and the
// [FingerprintHeader] metadata.
func ToConnectError(err error) *connect.Error {
	if err == nil {
		return nil
	}
	c := unwind.CodeOf(err)
	ce := connect.NewError(ToConnectCode(c), err)

	details := unwind.DetailsOf(err)
	var pe *unwind.PanicError
	if errors.As(err, &pe) {
		ce.Meta().Set(FingerprintHeader, pe.Fingerprint)
		details = append(details, gunwind.ErrorInfo(gunwind.ReasonPanic, gunwind.Domain, map[string]string{
			"fingerprint": pe.Fingerprint,
		}))
	}
	for _, d := range details {
		pm := toProtoDetail(d)
		if pm == nil {
			continue
		}
		detail, detailErr := connect.NewErrorDetail(pm)
		if detailErr != nil {
			continue
		}
		ce.AddDetail(detail)
	}
	return ce
}

// FromConnectError converts a *connect.Error to an *unwind.Error.
// Returns nil if err is nil.
// Any Connect error details are restored via unwind.Error.WithDetails.
func FromConnectError(err *connect.Error) *unwind.Error {
	if err == nil {
		return nil
	}
	ex := unwind.NewError(err.Message()).WithCode(ToCode(err.Code()))
	if fp := err.Meta().Get(FingerprintHeader); fp != "" {
		ex = ex.With("fingerprint", fp)
	}
	var details []any
	for _, d := range err.Details() {
		v, valErr := d.Value()
		if valErr != nil {
			continue
		}
		details = append(details, v)
	}
	if len(details) > 0 {
		ex = ex.WithDetails(details...)
	}
	return ex
}

var codeToConnect = map[unwind.Code]connect.Code{
	unwind.Canceled:         connect.CodeCanceled,
	unwind.Unknown:          connect.CodeUnknown,
	unwind.InvalidArgument:  connect.CodeInvalidArgument,
	unwind.DeadlineExceeded: connect.CodeDeadlineExceeded,
	unwind.NotFound:         connect.CodeNotFound,
	unwind.Unimplemented:    connect.CodeUnimplemented,
	unwind.Internal:         connect.CodeInternal,
	unwind.Unavailable:      connect.CodeUnavailable,
	unwind.DataLoss:         connect.CodeDataLoss,
}

// toProtoDetail converts an unwind detail type to a proto.Message.
// If the detail is already a proto.Message, it is returned as-is.
// Returns nil for unrecognized types.
func toProtoDetail(d any) proto.Message {
	switch v := d.(type) {
	case *unwind.BadRequestDetail:
		violations := make([]*errdetails.BadRequest_FieldViolation, len(v.Violations))
		for i, fv := range v.Violations {
			violations[i] = gunwind.NewFieldViolation(fv.Field, fv.Description)
		}
		return gunwind.BadRequest(violations...)
	case *unwind.ResourceInfoDetail:
		return gunwind.ResourceInfo(v.ResourceType, v.ResourceName, v.Owner, v.Description)
	case *unwind.ErrorInfoDetail:
		return gunwind.ErrorInfo(v.Reason, v.Domain, v.Metadata)
	case *unwind.DebugInfoDetail:
		return gunwind.DebugInfo(v.StackEntries, v.Detail)
	default:
		if pm, ok := d.(proto.Message); ok {
			return pm
		}
		return nil
	}
}

var connectToCode = map[connect.Code]unwind.Code{
	0:                            "",
	connect.CodeCanceled:         unwind.Canceled,
	connect.CodeUnknown:          unwind.Unknown,
	connect.CodeInvalidArgument:  unwind.InvalidArgument,
	connect.CodeDeadlineExceeded: unwind.DeadlineExceeded,
	connect.CodeNotFound:         unwind.NotFound,
	connect.CodeUnimplemented:    unwind.Unimplemented,
	connect.CodeInternal:         unwind.Internal,
	connect.CodeUnavailable:      unwind.Unavailable,
	connect.CodeDataLoss:         unwind.DataLoss,
}
