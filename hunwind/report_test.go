package hunwind_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/hunwind"
)

const reportDump = `{
  "error": {"type": "ZeroDivisionError", "message": "division by zero"},
  "frames": [
    {"file": "/srv/app.py", "line": 9, "function": "main", "source": "ratio(total, 0)",
     "locals": {"total": 10},
     "globals": {"ratio": {"$callable": {"name": "ratio", "params": ["a", "b"]}}}},
    {"file": "/srv/app.py", "line": 2, "function": "ratio", "source": "return a / b",
     "locals": {"a": 10, "b": 0}}
  ]
}`

func postDump(t *testing.T, h http.Handler, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestReportHandler(t *testing.T) {
	t.Parallel()

	h := hunwind.ReportHandler()
	w := postDump(t, h, "/report", "application/json", reportDump)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp struct {
		Fingerprint string `json:"fingerprint"`
		Error       struct {
			Type string `json:"type"`
		} `json:"error"`
		Records []struct {
			Flag string         `json:"flag"`
			Call map[string]any `json:"call"`
		} `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Fingerprint == "" {
		t.Error("fingerprint is empty")
	}
	if resp.Error.Type != "ZeroDivisionError" {
		t.Errorf("error.type = %q", resp.Error.Type)
	}
	if len(resp.Records) != 2 {
		t.Fatalf("records length = %d, want 2", len(resp.Records))
	}
	if resp.Records[0].Flag != string(unwind.FlagCall) {
		t.Errorf("records[0].flag = %q, want %q", resp.Records[0].Flag, unwind.FlagCall)
	}
	args, _ := resp.Records[0].Call["args"].(map[string]any)
	if args["total"] != float64(10) || args["a"] != float64(0) {
		t.Errorf("records[0].call.args = %v", args)
	}
	if resp.Records[1].Flag != string(unwind.FlagOperate) {
		t.Errorf("records[1].flag = %q, want %q", resp.Records[1].Flag, unwind.FlagOperate)
	}
}

func TestReportHandler_MostRecentFirst(t *testing.T) {
	t.Parallel()

	w := postDump(t, hunwind.ReportHandler(), "/report?most_recent_first=true", "", reportDump)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Records []struct {
			Context struct {
				Function string `json:"function"`
			} `json:"context"`
		} `json:"records"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 2 || resp.Records[0].Context.Function != "ratio" {
		t.Errorf("records = %+v, want ratio first", resp.Records)
	}
}

func singleFrameDump(t *testing.T, file string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"frames": []map[string]any{
			{"file": file, "line": 2, "function": "main", "source": "ratio(total, 0)"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

type windowResponse struct {
	Records []struct {
		Context struct {
			Window    []string `json:"window"`
			Statement string   `json:"statement"`
		} `json:"context"`
	} `json:"records"`
}

func decodeWindow(t *testing.T, w *httptest.ResponseRecorder) windowResponse {
	t.Helper()
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Records) != 1 {
		t.Fatalf("records length = %d, want 1", len(resp.Records))
	}
	return resp
}

func TestReportHandler_DoesNotReadServerFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "secret.py")
	if err := os.WriteFile(path, []byte("API_KEY = 'hunter2'\nratio(total, 0)\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	w := postDump(t, hunwind.ReportHandler(), "/report", "", singleFrameDump(t, path))
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Fatalf("response leaks the server file: %s", w.Body.String())
	}
	resp := decodeWindow(t, w)
	ctx := resp.Records[0].Context
	if len(ctx.Window) != 0 {
		t.Errorf("window = %q, want none", ctx.Window)
	}
	if ctx.Statement != "ratio(total, 0)" {
		t.Errorf("statement = %q, want the dumped source line", ctx.Statement)
	}
}

func TestReportHandler_WithSourceFS(t *testing.T) {
	t.Parallel()

	src := fstest.MapFS{
		"srv/app.py": {Data: []byte("total = 10\nratio(total,\n      0)\nprint(total)\n")},
	}
	h := hunwind.ReportHandler(hunwind.WithSourceFS(src))

	resp := decodeWindow(t, postDump(t, h, "/report", "", singleFrameDump(t, "/srv/app.py")))
	ctx := resp.Records[0].Context
	if ctx.Statement != "ratio(total,0)" {
		t.Errorf("statement = %q, want the reconstructed call", ctx.Statement)
	}
	want := []string{"total = 10", "ratio(total,", "      0)", "print(total)"}
	if strings.Join(ctx.Window, "|") != strings.Join(want, "|") {
		t.Errorf("window = %q, want %q", ctx.Window, want)
	}

	escape := decodeWindow(t, postDump(t, h, "/report", "", singleFrameDump(t, "../../etc/passwd")))
	if got := escape.Records[0].Context.Window; len(got) != 0 {
		t.Errorf("window outside the source tree = %q, want none", got)
	}
}

func TestReportHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		status      int
		code        string
	}{
		{
			name:   "wrong method",
			method: http.MethodGet,
			target: "/report",
			status: http.StatusMethodNotAllowed,
			code:   "method_not_allowed",
		},
		{
			name:        "unsupported content type",
			method:      http.MethodPost,
			target:      "/report",
			contentType: "text/plain",
			body:        reportDump,
			status:      http.StatusBadRequest,
			code:        "invalid_argument",
		},
		{
			name:   "bad query flag",
			method: http.MethodPost,
			target: "/report?whole_trace=maybe",
			body:   reportDump,
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
		{
			name:   "schema violation",
			method: http.MethodPost,
			target: "/report",
			body:   `{"frames": [{"file": "a.py"}]}`,
			status: http.StatusBadRequest,
			code:   "invalid_argument",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			hunwind.ReportHandler().ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var p hunwind.ProblemDetail
			if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
				t.Fatal(err)
			}
			if p.Code != tt.code {
				t.Errorf("Code = %q, want %q", p.Code, tt.code)
			}
		})
	}
}
