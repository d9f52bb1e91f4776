package gunwind

import (
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/mickamy/unwind"
)

// FieldViolation creates a BadRequest with a single field violation.
func FieldViolation(field, description string) *errdetails.BadRequest {
	return &errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{
			{Field: field, Description: description},
		},
	}
}

// BadRequest creates a BadRequest with the given field violations.
func BadRequest(violations ...*errdetails.BadRequest_FieldViolation) *errdetails.BadRequest {
	return &errdetails.BadRequest{
		FieldViolations: violations,
	}
}

// NewFieldViolation creates a single BadRequest_FieldViolation.
func NewFieldViolation(field, description string) *errdetails.BadRequest_FieldViolation {
	return &errdetails.BadRequest_FieldViolation{
		Field:       field,
		Description: description,
	}
}

// ResourceInfo creates a ResourceInfo detail.
func ResourceInfo(resourceType, resourceName, owner, description string) *errdetails.ResourceInfo {
	return &errdetails.ResourceInfo{
		ResourceType: resourceType,
		ResourceName: resourceName,
		Owner:        owner,
		Description:  description,
	}
}

// ErrorInfo creates an ErrorInfo detail.
func ErrorInfo(reason, domain string, metadata map[string]string) *errdetails.ErrorInfo {
	return &errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   domain,
		Metadata: metadata,
	}
}

// DebugInfo creates a DebugInfo detail.
func DebugInfo(stackEntries []string, detail string) *errdetails.DebugInfo {
	return &errdetails.DebugInfo{
		StackEntries: stackEntries,
		Detail:       detail,
	}
}

// ReportDebugInfo creates a DebugInfo detail with one stack entry per
// record, in report order.
func ReportDebugInfo(records []unwind.Record, detail string) *errdetails.DebugInfo {
	entries := make([]string, len(records))
	for i, r := range records {
		entries[i] = r.Summary()
	}
	return DebugInfo(entries, detail)
}

// LocalizedMessage creates a LocalizedMessage detail.
func LocalizedMessage(locale, message string) *errdetails.LocalizedMessage {
	return &errdetails.LocalizedMessage{
		Locale:  locale,
		Message: message,
	}
}
