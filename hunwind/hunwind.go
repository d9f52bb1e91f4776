// Package hunwind serves crash reports over HTTP: RFC 9457 problem details
// for failed and panicking handlers, and an endpoint that turns POSTed
// frame dumps into reports.
package hunwind

import (
	"encoding/json"
	"net/http"

	"github.com/mickamy/unwind"
)

// MethodNotAllowed is the code of requests using a method an endpoint does
// not serve.
const MethodNotAllowed unwind.Code = "method_not_allowed"

// RegisterCode registers a custom mapping between an unwind.Code and an HTTP status code.
// Both forward (unwind → HTTP) and reverse (HTTP → unwind) mappings are registered.
// Must be called at program initialization (e.g. in init()), before serving requests.
func RegisterCode(c unwind.Code, status int) {
	codeToHTTP[c] = status
	httpToCode[status] = c
}

// ToHTTPStatus maps an unwind.Code to an HTTP status code.
// Unknown or user-defined codes map to 500.
func ToHTTPStatus(c unwind.Code) int {
	if s, ok := codeToHTTP[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ToCode maps an HTTP status code to an unwind.Code.
// Unmapped status codes return unwind.Unknown.
func ToCode(status int) unwind.Code {
	if c, ok := httpToCode[status]; ok {
		return c
	}
	return unwind.Unknown
}

// ProblemDetail is an RFC 9457 Problem Details response.
// Standard members (type, title, status, detail, instance) follow the RFC.
// Extension members carry the error code, details, localized message and,
// for recovered panics, the crash fingerprint and report.
type ProblemDetail struct {
	// RFC 9457 standard members.
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`

	// Extension members.
	Code             string           `json:"code,omitempty"`
	Errors           []map[string]any `json:"errors,omitempty"`
	LocalizedMessage *LocalizedMsg    `json:"localized_message,omitempty"`
	Fingerprint      string           `json:"fingerprint,omitempty"`
	Report           json.RawMessage  `json:"report,omitempty"`
}

// LocalizedMsg holds a locale-specific error message.
type LocalizedMsg struct {
	Locale  string `json:"locale"`
	Message string `json:"message"`
}

// ProblemDetailOption configures a [ProblemDetail] built by [ToProblemDetail].
type ProblemDetailOption func(*problemConfig)

type problemConfig struct {
	instance string
	typeURI  string
	report   bool
	locale   string
}

// WithInstance sets the instance URI on the problem detail.
func WithInstance(instance string) ProblemDetailOption {
	return func(c *problemConfig) {
		c.instance = instance
	}
}

// WithType sets the type URI on the problem detail.
// Defaults to "about:blank" if not set.
func WithType(typeURI string) ProblemDetailOption {
	return func(c *problemConfig) {
		c.typeURI = typeURI
	}
}

// WithReport embeds the crash report carried by the error, such as the
// report of a recovered panic, with flag descriptions in locale.
func WithReport(locale string) ProblemDetailOption {
	return func(c *problemConfig) {
		c.report = true
		c.locale = locale
	}
}

// ToProblemDetail converts an error to an RFC 9457 [ProblemDetail].
// Returns nil if err is nil.
func ToProblemDetail(err error, opts ...ProblemDetailOption) *ProblemDetail {
	if err == nil {
		return nil
	}
	cfg := &problemConfig{typeURI: "about:blank"}
	for _, o := range opts {
		o(cfg)
	}

	c := unwind.CodeOf(err)
	status := ToHTTPStatus(c)

	code := string(c)
	if code == "" {
		code = string(unwind.Unknown)
	}

	title := http.StatusText(status)
	if title == "" {
		title = code
	}

	p := &ProblemDetail{
		Type:     cfg.typeURI,
		Title:    title,
		Status:   status,
		Detail:   err.Error(),
		Instance: cfg.instance,
		Code:     code,
	}

	for _, d := range unwind.DetailsOf(err) {
		if m := toDetailJSON(d); m != nil {
			p.Errors = append(p.Errors, m)
		}
	}

	if records, fp, ok := unwind.ReportOf(err); ok {
		p.Fingerprint = fp
		if cfg.report {
			if b, mErr := unwind.MarshalRecords(records, cfg.locale); mErr == nil {
				p.Report = b
			}
		}
	}

	return p
}

// FromProblemDetail converts an RFC 9457 [ProblemDetail] back to an [*unwind.Error].
// Returns nil if p is nil.
func FromProblemDetail(p *ProblemDetail) *unwind.Error {
	if p == nil {
		return nil
	}
	code := unwind.Code(p.Code)
	if code == "" {
		code = ToCode(p.Status)
	}
	err := unwind.NewError(p.Detail).WithCode(code)
	if p.Fingerprint != "" {
		err = err.With("fingerprint", p.Fingerprint)
	}
	return err
}

// WriteError writes an RFC 9457 JSON error response to w.
// Does nothing if err is nil.
func WriteError(w http.ResponseWriter, err error, opts ...ProblemDetailOption) {
	if err == nil {
		return
	}
	writeProblemDetail(w, ToProblemDetail(err, opts...))
}

func writeProblemDetail(w http.ResponseWriter, p *ProblemDetail) {
	b, marshalErr := json.Marshal(p)
	if marshalErr != nil {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Internal Server Error","status":500}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func toDetailJSON(d any) map[string]any {
	switch v := d.(type) {
	case *unwind.BadRequestDetail:
		violations := make([]map[string]any, len(v.Violations))
		for i, fv := range v.Violations {
			violations[i] = map[string]any{
				"field":       fv.Field,
				"description": fv.Description,
			}
		}
		return map[string]any{
			"type":       "BadRequest",
			"violations": violations,
		}
	case *unwind.ResourceInfoDetail:
		return map[string]any{
			"type":          "ResourceInfo",
			"resource_type": v.ResourceType,
			"resource_name": v.ResourceName,
			"owner":         v.Owner,
			"description":   v.Description,
		}
	case *unwind.ErrorInfoDetail:
		return map[string]any{
			"type":     "ErrorInfo",
			"reason":   v.Reason,
			"domain":   v.Domain,
			"metadata": v.Metadata,
		}
	case *unwind.DebugInfoDetail:
		return map[string]any{
			"type":          "DebugInfo",
			"stack_entries": v.StackEntries,
			"detail":        v.Detail,
		}
	default:
		return nil
	}
}

var codeToHTTP = map[unwind.Code]int{
	unwind.InvalidArgument:  http.StatusBadRequest,
	unwind.NotFound:         http.StatusNotFound,
	MethodNotAllowed:        http.StatusMethodNotAllowed,
	unwind.Canceled:         499,
	unwind.Internal:         http.StatusInternalServerError,
	unwind.Unknown:          http.StatusInternalServerError,
	unwind.DataLoss:         http.StatusInternalServerError,
	unwind.Unimplemented:    http.StatusNotImplemented,
	unwind.Unavailable:      http.StatusServiceUnavailable,
	unwind.DeadlineExceeded: http.StatusGatewayTimeout,
}

var httpToCode = map[int]unwind.Code{
	http.StatusBadRequest:          unwind.InvalidArgument,
	http.StatusNotFound:            unwind.NotFound,
	http.StatusMethodNotAllowed:    MethodNotAllowed,
	499:                            unwind.Canceled,
	http.StatusInternalServerError: unwind.Internal,
	http.StatusNotImplemented:      unwind.Unimplemented,
	http.StatusServiceUnavailable:  unwind.Unavailable,
	http.StatusGatewayTimeout:      unwind.DeadlineExceeded,
}
