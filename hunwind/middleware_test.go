package hunwind_test

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/hunwind"
)

func quietRecorder(hub *unwind.Hub) *unwind.Recorder {
	return unwind.NewRecorder(
		unwind.WithHub(hub),
		unwind.WithLogger(slog.New(slog.DiscardHandler)),
	)
}

func TestHandler_Success(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return nil
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", w.Body.String(), "ok")
	}
}

func TestHandler_CodedError(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(func(_ http.ResponseWriter, _ *http.Request) error {
		return unwind.NewError("dump not found").
			WithCode(unwind.NotFound).
			WithDetails(unwind.ResourceInfo("frame_dump", "a.json", "", "missing"))
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Code != "not_found" {
		t.Errorf("Code = %q, want %q", p.Code, "not_found")
	}
	if len(p.Errors) != 1 || p.Errors[0]["type"] != "ResourceInfo" {
		t.Errorf("Errors = %v", p.Errors)
	}
}

func TestHandler_PlainError(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(func(_ http.ResponseWriter, _ *http.Request) error {
		return errors.New("something broke")
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Code != "unknown" {
		t.Errorf("Code = %q, want %q", p.Code, "unknown")
	}
}

func TestHandler_Panic(t *testing.T) {
	t.Parallel()

	hub := unwind.NewHub(nil)
	h := hunwind.Handler(func(_ http.ResponseWriter, _ *http.Request) error {
		panic("handler exploded")
	}, hunwind.WithRecorder(quietRecorder(hub)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.Code != "internal" {
		t.Errorf("Code = %q, want %q", p.Code, "internal")
	}
	if p.Detail != "panic: handler exploded" {
		t.Errorf("Detail = %q", p.Detail)
	}
	if p.Report != nil {
		t.Errorf("Report = %s, want none by default", p.Report)
	}
	if p.LocalizedMessage == nil || !strings.HasPrefix(p.LocalizedMessage.Message, "panic: handler exploded") {
		t.Errorf("LocalizedMessage = %+v", p.LocalizedMessage)
	}

	crash, ok := hub.Last()
	if !ok {
		t.Fatal("hub has no crash")
	}
	if p.Fingerprint == "" || p.Fingerprint != crash.Fingerprint {
		t.Errorf("Fingerprint = %q, hub has %q", p.Fingerprint, crash.Fingerprint)
	}
}

func TestRecover_ExposeReport(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("plain handler exploded")
	})
	h := hunwind.Recover(next,
		hunwind.WithRecorder(quietRecorder(unwind.NewHub(nil))),
		hunwind.WithExposeReport(true),
	)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	var records []map[string]any
	if err := json.Unmarshal(p.Report, &records); err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("report is empty")
	}
	last := records[len(records)-1]
	if last["flag"] != string(unwind.FlagActive) {
		t.Errorf("innermost flag = %v, want %s", last["flag"], unwind.FlagActive)
	}
}

type localizableError struct {
	messages map[string]string
}

func (e *localizableError) Error() string { return "validation error" }

func (e *localizableError) Localize(locale string) string {
	if msg, ok := e.messages[locale]; ok {
		return msg
	}
	return e.messages["en"]
}

func TestHandler_Localizable(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(func(_ http.ResponseWriter, _ *http.Request) error {
		return unwind.WrapError(&localizableError{
			messages: map[string]string{
				"en": "Frame dump is required",
				"zh": "需要提供帧转储",
			},
		}).WithCode(unwind.InvalidArgument)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "zh")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.LocalizedMessage == nil {
		t.Fatal("localized_message should not be nil")
	}
	if p.LocalizedMessage.Locale != "zh" {
		t.Errorf("locale = %q, want %q", p.LocalizedMessage.Locale, "zh")
	}
	if p.LocalizedMessage.Message != "需要提供帧转储" {
		t.Errorf("message = %q", p.LocalizedMessage.Message)
	}
}

func TestHandler_Localizable_NoHeader(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(func(_ http.ResponseWriter, _ *http.Request) error {
		return unwind.WrapError(&localizableError{
			messages: map[string]string{"en": "Frame dump is required"},
		}).WithCode(unwind.InvalidArgument)
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.LocalizedMessage != nil {
		t.Error("localized_message should be nil when no Accept-Language")
	}
}

func TestHandler_WithLocaleFunc(t *testing.T) {
	t.Parallel()

	h := hunwind.Handler(
		func(_ http.ResponseWriter, _ *http.Request) error {
			return unwind.WrapError(&localizableError{
				messages: map[string]string{
					"en":    "Frame dump is required",
					"zh-CN": "需要提供帧转储",
				},
			}).WithCode(unwind.InvalidArgument)
		},
		hunwind.WithLocaleFunc(func(h http.Header) string {
			return h.Get("X-Locale")
		}),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Locale", "zh-CN")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var p hunwind.ProblemDetail
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatal(err)
	}
	if p.LocalizedMessage == nil {
		t.Fatal("localized_message should not be nil")
	}
	if p.LocalizedMessage.Locale != "zh-CN" {
		t.Errorf("locale = %q, want %q", p.LocalizedMessage.Locale, "zh-CN")
	}
}
