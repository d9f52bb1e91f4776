package cunwind

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"golang.org/x/text/language"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/gunwind"
)

// InterceptorOption configures the Connect server interceptor.
type InterceptorOption func(*interceptorConfig)

type interceptorConfig struct {
	localeFunc    func(http.Header) string
	defaultLocale language.Tag
	recorder      *unwind.Recorder
	report        bool
}

// WithLocaleFunc sets a custom function to extract locale from request headers.
// The default parses the "Accept-Language" header and returns the highest-priority
// language tag as a BCP 47 string.
func WithLocaleFunc(f func(http.Header) string) InterceptorOption {
	return func(cfg *interceptorConfig) {
		if f == nil {
			return
		}
		cfg.localeFunc = f
	}
}

// WithDefaultLocale sets a fallback locale used when the locale function
// returns an empty string (e.g. no Accept-Language header).
func WithDefaultLocale(tag language.Tag) InterceptorOption {
	return func(cfg *interceptorConfig) {
		cfg.defaultLocale = tag
	}
}

// WithRecorder sets the recorder handlers run under.
// The default is a recorder reporting to [unwind.DefaultHub].
func WithRecorder(r *unwind.Recorder) InterceptorOption {
	return func(cfg *interceptorConfig) {
		if r == nil {
			return
		}
		cfg.recorder = r
	}
}

// WithExposeReport attaches the report of a recovered panic to the error
// as a DebugInfo detail.
func WithExposeReport(v bool) InterceptorOption {
	return func(cfg *interceptorConfig) {
		cfg.report = v
	}
}

func newInterceptorConfig(opts []InterceptorOption) *interceptorConfig {
	cfg := &interceptorConfig{
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

// NewInterceptor returns a Connect interceptor that runs handlers under the
// configured recorder and converts returned errors, including recovered
// panics, to Connect errors using ToConnectError.
// If the error implements unwind.Localizable, a LocalizedMessage detail
// is automatically appended based on the request's Accept-Language header.
func NewInterceptor(opts ...InterceptorOption) connect.Interceptor {
	cfg := newInterceptorConfig(opts)
	return &interceptor{cfg: cfg}
}

var _ connect.Interceptor = (*interceptor)(nil)

type interceptor struct {
	cfg *interceptorConfig
}

func (i *interceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		var resp connect.AnyResponse
		err := i.cfg.recorder.Run(ctx, func(ctx context.Context) error {
			var nErr error
			resp, nErr = next(ctx, req)
			return nErr
		})
		if err != nil {
			return nil, i.cfg.toConnectError(req.Header(), err)
		}
		return resp, nil
	}
}

func (i *interceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (i *interceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		err := i.cfg.recorder.Run(ctx, func(ctx context.Context) error {
			return next(ctx, conn)
		})
		if err != nil {
			return i.cfg.toConnectError(conn.RequestHeader(), err)
		}
		return nil
	}
}

func (cfg *interceptorConfig) toConnectError(header http.Header, err error) error {
	var extra []any
	var l unwind.Localizable
	if errors.As(err, &l) {
		locale := cfg.localeFunc(header)
		if locale == "" && cfg.defaultLocale != language.Und {
			locale = cfg.defaultLocale.String()
		}
		if locale != "" {
			if msg := l.Localize(locale); msg != "" {
				extra = append(extra, gunwind.LocalizedMessage(locale, msg))
			}
		}
	}
	if records, _, ok := unwind.ReportOf(err); cfg.report && ok {
		extra = append(extra, gunwind.ReportDebugInfo(records, err.Error()))
	}
	if len(extra) > 0 {
		var ex *unwind.Error
		if errors.As(err, &ex) {
			err = ex.WithDetails(extra...)
		} else {
			err = unwind.WrapError(err).WithDetails(extra...)
		}
	}
	return ToConnectError(err)
}
