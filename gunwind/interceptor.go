package gunwind

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/mickamy/unwind"
)

// InterceptorOption configures the gRPC server interceptors.
type InterceptorOption func(*interceptorConfig)

type interceptorConfig struct {
	localeFunc func(context.Context) string
	recorder   *unwind.Recorder
	report     bool
}

// WithLocaleFunc sets a custom function to extract locale from context.
// The default parses the first value of the "accept-language" gRPC metadata key.
func WithLocaleFunc(f func(context.Context) string) InterceptorOption {
	return func(cfg *interceptorConfig) {
		if f == nil {
			return
		}
		cfg.localeFunc = f
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

// WithExposeReport attaches the report of a recovered panic to the status
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

func defaultLocaleFunc(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("accept-language")
	if len(vals) == 0 {
		return ""
	}
	return unwind.ParseAcceptLanguage(vals[0])
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that runs
// the handler under the configured recorder and converts returned errors,
// including recovered panics, to gRPC status errors using ToStatus.
// If the error implements unwind.Localizable, a LocalizedMessage detail
// is automatically appended.
func UnaryServerInterceptor(opts ...InterceptorOption) grpc.UnaryServerInterceptor {
	cfg := newInterceptorConfig(opts)
	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		var resp any
		err := cfg.recorder.Run(ctx, func(ctx context.Context) error {
			var hErr error
			resp, hErr = handler(ctx, req)
			return hErr
		})
		if err != nil {
			return nil, cfg.toStatusError(ctx, err)
		}
		return resp, nil
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// runs the handler under the configured recorder and converts returned
// errors to gRPC status errors using ToStatus.
func StreamServerInterceptor(opts ...InterceptorOption) grpc.StreamServerInterceptor {
	cfg := newInterceptorConfig(opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		_ *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		err := cfg.recorder.Run(ss.Context(), func(context.Context) error {
			return handler(srv, ss)
		})
		if err != nil {
			return cfg.toStatusError(ss.Context(), err)
		}
		return nil
	}
}

// toStatusError converts an error to a gRPC status error, appending a
// LocalizedMessage detail for localizable errors and a DebugInfo detail
// for exposed panic reports.
func (cfg *interceptorConfig) toStatusError(ctx context.Context, err error) error {
	var extra []any
	var l unwind.Localizable
	if errors.As(err, &l) {
		if locale := cfg.localeFunc(ctx); locale != "" {
			if msg := l.Localize(locale); msg != "" {
				extra = append(extra, LocalizedMessage(locale, msg))
			}
		}
	}
	if records, _, ok := unwind.ReportOf(err); cfg.report && ok {
		extra = append(extra, ReportDebugInfo(records, err.Error()))
	}
	if len(extra) > 0 {
		var ex *unwind.Error
		if errors.As(err, &ex) {
			err = ex.WithDetails(extra...)
		} else {
			err = unwind.WrapError(err).WithDetails(extra...)
		}
	}
	return ToStatus(err).Err() //nolint:wrapcheck // intentionally returns gRPC status error
}
