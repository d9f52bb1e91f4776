// Package gunwind carries crash reports over gRPC: server interceptors that
// recover panicking handlers, and conversions between errors and
// *status.Status with google.rpc error details.
package gunwind

import (
	"errors"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"

	"github.com/mickamy/unwind"
)

// ReasonPanic is the ErrorInfo reason attached to statuses of recovered
// panics.
const ReasonPanic = "PANIC"

// Domain is the ErrorInfo domain of details produced by this package.
const Domain = "unwind.mickamy.dev"

// ToGRPCCode maps an unwind.Code to a gRPC codes.Code.
// Unknown or user-defined codes map to codes.Unknown.
func ToGRPCCode(c unwind.Code) codes.Code {
	if gc, ok := codeToGRPC[c]; ok {
		return gc
	}
	return codes.Unknown
}

// ToCode maps a gRPC codes.Code to an unwind.Code.
// codes.OK maps to the zero value ("").
func ToCode(c codes.Code) unwind.Code {
	if ec, ok := grpcToCode[c]; ok {
		return ec
	}
	return unwind.Unknown
}

// ToStatus converts an error to a *status.Status.
// If the error carries an unwind.Code, it is mapped to a gRPC code.
// The error message is used as the status message.
// Detail objects attached via unwind.Error.WithDetails are included as
// gRPC status details; unrecognized details are ignored. A *unwind.PanicError
// in the chain adds an ErrorInfo holding its fingerprint.
func ToStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	c := unwind.CodeOf(err)
	st := status.New(ToGRPCCode(c), err.Error())

	var protoDetails []protoadapt.MessageV1
	for _, d := range unwind.DetailsOf(err) {
		if pm := toProtoDetail(d); pm != nil {
			protoDetails = append(protoDetails, pm)
		}
	}
	var pe *unwind.PanicError
	if errors.As(err, &pe) {
		protoDetails = append(protoDetails, ErrorInfo(ReasonPanic, Domain, map[string]string{
			"fingerprint": pe.Fingerprint,
		}))
	}
	if len(protoDetails) > 0 {
		if withDetails, detailErr := st.WithDetails(protoDetails...); detailErr == nil {
			st = withDetails
		}
	}
	return st
}

// FromStatus converts a *status.Status to an *unwind.Error.
// Returns nil if the status code is OK.
// Any gRPC status details are restored via unwind.Error.WithDetails.
func FromStatus(st *status.Status) *unwind.Error {
	if st.Code() == codes.OK {
		return nil
	}
	err := unwind.NewError(st.Message()).WithCode(ToCode(st.Code()))
	if details := st.Details(); len(details) > 0 {
		err = err.WithDetails(details...)
	}
	return err
}

// FingerprintOf returns the crash fingerprint carried by st, if any.
func FingerprintOf(st *status.Status) (string, bool) {
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetReason() != ReasonPanic || info.GetDomain() != Domain {
			continue
		}
		fp, ok := info.GetMetadata()["fingerprint"]
		return fp, ok
	}
	return "", false
}

var codeToGRPC = map[unwind.Code]codes.Code{
	unwind.Canceled:         codes.Canceled,
	unwind.Unknown:          codes.Unknown,
	unwind.InvalidArgument:  codes.InvalidArgument,
	unwind.DeadlineExceeded: codes.DeadlineExceeded,
	unwind.NotFound:         codes.NotFound,
	unwind.Unimplemented:    codes.Unimplemented,
	unwind.Internal:         codes.Internal,
	unwind.Unavailable:      codes.Unavailable,
	unwind.DataLoss:         codes.DataLoss,
}

// toProtoDetail converts an unwind detail type to a proto.Message.
// If the detail is already a proto.Message, it is returned as-is.
// Returns nil for unrecognized types.
func toProtoDetail(d any) protoadapt.MessageV1 {
	switch v := d.(type) {
	case *unwind.BadRequestDetail:
		violations := make([]*errdetails.BadRequest_FieldViolation, len(v.Violations))
		for i, fv := range v.Violations {
			violations[i] = NewFieldViolation(fv.Field, fv.Description)
		}
		return BadRequest(violations...)
	case *unwind.ResourceInfoDetail:
		return ResourceInfo(v.ResourceType, v.ResourceName, v.Owner, v.Description)
	case *unwind.ErrorInfoDetail:
		return ErrorInfo(v.Reason, v.Domain, v.Metadata)
	case *unwind.DebugInfoDetail:
		return DebugInfo(v.StackEntries, v.Detail)
	default:
		if pm, ok := d.(protoadapt.MessageV1); ok {
			return pm
		}
		return nil
	}
}

var grpcToCode = map[codes.Code]unwind.Code{
	codes.OK:               "",
	codes.Canceled:         unwind.Canceled,
	codes.Unknown:          unwind.Unknown,
	codes.InvalidArgument:  unwind.InvalidArgument,
	codes.DeadlineExceeded: unwind.DeadlineExceeded,
	codes.NotFound:         unwind.NotFound,
	codes.Unimplemented:    unwind.Unimplemented,
	codes.Internal:         unwind.Internal,
	codes.Unavailable:      unwind.Unavailable,
	codes.DataLoss:         unwind.DataLoss,
}
