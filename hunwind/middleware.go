package hunwind

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/mickamy/unwind"
)

// MiddlewareOption configures the HTTP error middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	localeFunc func(http.Header) string
	recorder   *unwind.Recorder
	report     bool
	sourceFS   fs.FS
}

// WithLocaleFunc sets a custom function to extract locale from request headers.
// The default extracts the "Accept-Language" header value.
func WithLocaleFunc(f func(http.Header) string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if f == nil {
			return
		}
		cfg.localeFunc = f
	}
}

// WithRecorder sets the recorder handlers run under.
// The default is a recorder reporting to [unwind.DefaultHub].
func WithRecorder(r *unwind.Recorder) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if r == nil {
			return
		}
		cfg.recorder = r
	}
}

// WithExposeReport embeds the report of a recovered panic in the response.
// Reports contain variable values; enable it only for trusted clients.
func WithExposeReport(v bool) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.report = v
	}
}

// WithSourceFS lets [ReportHandler] read the source files a dump names
// from fsys, typically an [os.DirFS] of the deployed sources. By default
// the handler reads no files and builds records from each frame's source
// line only.
func WithSourceFS(fsys fs.FS) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.sourceFS = fsys
	}
}

func newMiddlewareConfig(opts []MiddlewareOption) *middlewareConfig {
	cfg := &middlewareConfig{
		localeFunc: defaultLocaleFunc,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.recorder == nil {
		cfg.recorder = unwind.NewRecorder()
	}
	return cfg
}

func defaultLocaleFunc(h http.Header) string {
	return unwind.ParseAcceptLanguage(h.Get("Accept-Language"))
}

// HandlerFunc is an HTTP handler that returns an error.
// If a non-nil error is returned, the middleware writes an RFC 9457 JSON response.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handler wraps a [HandlerFunc] into an [http.Handler].
// The handler runs under the configured recorder, so a panic is reported
// and answered like a returned internal error.
// If the error implements [unwind.Localizable] and the request carries an Accept-Language header,
// a localized message is automatically included.
func Handler(h HandlerFunc, opts ...MiddlewareOption) http.Handler {
	cfg := newMiddlewareConfig(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := cfg.recorder.Run(r.Context(), func(ctx context.Context) error {
			return h(w, r.WithContext(ctx))
		})
		if err != nil {
			cfg.writeErrorWithLocale(w, r.Header, err)
		}
	})
}

// Recover wraps next so that a panic is reported and answered with a 500
// problem detail instead of tearing down the connection.
func Recover(next http.Handler, opts ...MiddlewareOption) http.Handler {
	return Handler(func(w http.ResponseWriter, r *http.Request) error {
		next.ServeHTTP(w, r)
		return nil
	}, opts...)
}

func (cfg *middlewareConfig) writeErrorWithLocale(w http.ResponseWriter, header http.Header, err error) {
	locale := cfg.localeFunc(header)

	var popts []ProblemDetailOption
	if cfg.report {
		popts = append(popts, WithReport(locale))
	}
	p := ToProblemDetail(err, popts...)

	var l unwind.Localizable
	if errors.As(err, &l) {
		if locale != "" {
			if msg := l.Localize(locale); msg != "" {
				p.LocalizedMessage = &LocalizedMsg{Locale: locale, Message: msg}
			}
		}
	}

	writeProblemDetail(w, p)
}
