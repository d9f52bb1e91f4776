package unwind

// BadRequestDetail describes violations in a submitted frame dump.
type BadRequestDetail struct {
	Violations []BadRequestFieldViolation
}

// BadRequestFieldViolation describes a single field-level violation.
type BadRequestFieldViolation struct {
	Field       string
	Description string
}

// FieldViolation creates a BadRequestDetail with a single field violation.
func FieldViolation(field, description string) *BadRequestDetail {
	return &BadRequestDetail{
		Violations: []BadRequestFieldViolation{{Field: field, Description: description}},
	}
}

// BadRequest creates a BadRequestDetail with the given violations.
func BadRequest(violations ...BadRequestFieldViolation) *BadRequestDetail {
	return &BadRequestDetail{Violations: violations}
}

// ResourceInfoDetail describes the resource that is being accessed.
type ResourceInfoDetail struct {
	ResourceType string
	ResourceName string
	Owner        string
	Description  string
}

// ResourceInfo creates a ResourceInfoDetail.
func ResourceInfo(resourceType, resourceName, owner, description string) *ResourceInfoDetail {
	return &ResourceInfoDetail{
		ResourceType: resourceType,
		ResourceName: resourceName,
		Owner:        owner,
		Description:  description,
	}
}

// ErrorInfoDetail describes the cause of the error with structured details.
type ErrorInfoDetail struct {
	Reason   string
	Domain   string
	Metadata map[string]string
}

// ErrorInfo creates an ErrorInfoDetail.
func ErrorInfo(reason, domain string, metadata map[string]string) *ErrorInfoDetail {
	return &ErrorInfoDetail{
		Reason:   reason,
		Domain:   domain,
		Metadata: metadata,
	}
}

// DebugInfoDetail carries a rendered crash report: one entry per record,
// most recent call last, and a free-form detail line.
type DebugInfoDetail struct {
	StackEntries []string
	Detail       string
}

// DebugInfo creates a DebugInfoDetail.
func DebugInfo(stackEntries []string, detail string) *DebugInfoDetail {
	return &DebugInfoDetail{StackEntries: stackEntries, Detail: detail}
}
