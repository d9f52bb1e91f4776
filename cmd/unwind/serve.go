package main

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/hunwind"
)

const shutdownTimeout = 5 * time.Second

var errNoCrash = unwind.NewSentinel("no crash recorded", unwind.NotFound)

func (a *app) newServeCmd() *cobra.Command {
	var addr, sourceRoot string
	var expose bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the report endpoint over HTTP",
		Long: `Serve the report endpoint over HTTP.

  POST /report         decode the frame dump in the body and answer with its report
  GET  /crashes/last   the report of the last panic recovered by the server
  GET  /healthz        liveness check

Source files named by posted dumps are read only under --source-root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var sourceFS fs.FS
			if sourceRoot != "" {
				info, err := os.Stat(sourceRoot)
				if err != nil {
					return unwind.WrapErrorf(err, "source root").WithCode(unwind.NotFound).With("dir", sourceRoot)
				}
				if !info.IsDir() {
					return unwind.NewError("source root is not a directory", "dir", sourceRoot).WithCode(unwind.InvalidArgument)
				}
				sourceFS = os.DirFS(sourceRoot)
			}
			return a.serve(cmd.Context(), addr, expose, sourceFS)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&expose, "expose-report", false, "Include crash reports in 500 responses")
	cmd.Flags().StringVar(&sourceRoot, "source-root", "", "Directory /report may read dumped source files from (none when empty)")
	return cmd
}

func (a *app) serve(ctx context.Context, addr string, expose bool, sourceFS fs.FS) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.newMux(unwind.NewHub(a.logger), expose, sourceFS),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.InfoContext(ctx, "serving", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return unwind.WrapErrorf(err, "listen").WithCode(unwind.Unavailable).With("addr", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	a.logger.InfoContext(ctx, "shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return unwind.WrapErrorf(err, "shutdown").WithCode(unwind.Internal)
	}
	return nil
}

func (a *app) newMux(hub *unwind.Hub, expose bool, sourceFS fs.FS) http.Handler {
	hub.AddListener(func(ctx context.Context, c unwind.Crash) {
		a.logger.DebugContext(ctx, "crash report", unwind.ReportAttr(c.Records))
	})
	rec := unwind.NewRecorder(unwind.WithHub(hub), unwind.WithLogger(a.logger))
	opts := []hunwind.MiddlewareOption{
		hunwind.WithRecorder(rec),
		hunwind.WithExposeReport(expose),
	}

	mux := http.NewServeMux()
	mux.Handle("/report", hunwind.ReportHandler(append(opts, hunwind.WithSourceFS(sourceFS))...))
	mux.Handle("GET /crashes/last", hunwind.Handler(func(w http.ResponseWriter, r *http.Request) error {
		c, ok := hub.Last()
		if !ok {
			return errNoCrash
		}
		records, err := unwind.MarshalRecords(c.Records, unwind.ParseAcceptLanguage(r.Header.Get("Accept-Language")))
		if err != nil {
			return unwind.WrapErrorf(err, "marshal report").WithCode(unwind.Internal)
		}
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(hunwind.ReportResponse{
			Fingerprint: c.Fingerprint,
			Records:     records,
		})
	}, opts...))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	return hunwind.Recover(mux, opts...)
}
