package hunwind

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/framedump"
)

var errMethodNotAllowed = unwind.NewSentinel("method not allowed", MethodNotAllowed)

// ReportResponse is the body [ReportHandler] answers with.
type ReportResponse struct {
	Fingerprint string           `json:"fingerprint"`
	Cause       *framedump.Cause `json:"error,omitempty"`
	Records     json.RawMessage  `json:"records"`
}

// ReportHandler returns a handler that generates the report of a POSTed
// frame dump.
//
// The dump encoding is taken from the Content-Type header (JSON when
// absent). The query parameters most_recent_first and whole_trace set the
// report options. Flag descriptions follow the request locale.
//
// No file named by the dump is read unless [WithSourceFS] grants a source
// tree. Without one, records carry the dumped source lines and no window.
func ReportHandler(opts ...MiddlewareOption) http.Handler {
	cfg := newMiddlewareConfig(opts)
	return Handler(func(w http.ResponseWriter, r *http.Request) error {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			return unwind.WrapError(errMethodNotAllowed, "method", r.Method)
		}

		format, err := framedump.ParseFormat(r.Header.Get("Content-Type"))
		if err != nil {
			return err
		}
		reportOpts, err := reportOptions(r)
		if err != nil {
			return err
		}

		dump, err := framedump.DecodeReader(r.Body, format)
		if err != nil {
			return err
		}
		records := dump.Records(append(reportOpts, unwind.WithSourceFS(cfg.sourceFS))...)

		body, err := unwind.MarshalRecords(records, cfg.localeFunc(r.Header))
		if err != nil {
			return unwind.WrapErrorf(err, "encode report").WithCode(unwind.Internal)
		}
		b, err := json.Marshal(ReportResponse{
			Fingerprint: unwind.Fingerprint(records),
			Cause:       dump.Cause,
			Records:     body,
		})
		if err != nil {
			return unwind.WrapErrorf(err, "encode report").WithCode(unwind.Internal)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
		_, _ = w.Write([]byte("\n"))
		return nil
	}, opts...)
}

func reportOptions(r *http.Request) ([]unwind.Option, error) {
	q := r.URL.Query()
	var opts []unwind.Option
	for _, p := range []struct {
		name string
		opt  func(bool) unwind.Option
	}{
		{"most_recent_first", unwind.WithMostRecentFirst},
		{"whole_trace", unwind.WithWholeTrace},
	} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, unwind.WrapErrorf(err, "parse %s", p.name).
				WithCode(unwind.InvalidArgument).
				WithDetails(unwind.FieldViolation(p.name, "must be a boolean"))
		}
		opts = append(opts, p.opt(v))
	}
	return opts, nil
}
