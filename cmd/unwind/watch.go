package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/framedump"
)

func (a *app) newWatchCmd() *cobra.Command {
	var o renderOptions
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Print a report for every frame dump written to a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.prepare(); err != nil {
				return err
			}
			return a.watch(cmd.Context(), cmd.OutOrStdout(), args[0], &o, nil)
		},
	}
	o.addFlags(cmd)
	return cmd
}

// watch reports dumps created or written in dir until ctx is done.
// ready, if non-nil, is closed once the directory is being watched.
func (a *app) watch(ctx context.Context, w io.Writer, dir string, o *renderOptions, ready chan<- struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return unwind.WrapErrorf(err, "create watcher").WithCode(unwind.Internal)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return unwind.WrapErrorf(err, "watch directory").
			WithCode(unwind.NotFound).
			WithDetails(unwind.ResourceInfo("directory", dir, "", "directory cannot be watched"))
	}
	a.logger.InfoContext(ctx, "watching for frame dumps", slog.String("dir", dir))
	if ready != nil {
		close(ready)
	}

	// last fingerprint reported per file; repeated writes of the same
	// crash print once
	seen := map[string]string{}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if _, err := framedump.FormatOf(ev.Name); err != nil {
				continue
			}
			a.reportFile(ctx, w, ev.Name, o, seen)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.WarnContext(ctx, "watcher error", slog.Any("error", err))
		}
	}
}

func (a *app) reportFile(ctx context.Context, w io.Writer, path string, o *renderOptions, seen map[string]string) {
	d, err := framedump.Load(path)
	if err != nil {
		a.logger.WarnContext(ctx, "skipping frame dump", slog.String("path", path), unwind.SlogAttr(err))
		return
	}
	crash := d.Err()
	_, fp, _ := unwind.ReportOf(crash)
	if seen[path] == fp {
		return
	}
	seen[path] = fp

	a.logger.DebugContext(ctx, "frame dump", slog.String("path", path), unwind.SlogAttr(crash))
	if _, err := fmt.Fprintf(w, "==> %s <==\n", path); err != nil {
		a.logger.ErrorContext(ctx, "write report", slog.Any("error", err))
		return
	}
	if err := o.render(w, d); err != nil {
		a.logger.ErrorContext(ctx, "write report", slog.String("path", path), unwind.SlogAttr(err))
	}
}
