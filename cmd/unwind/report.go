package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/mickamy/unwind"
	"github.com/mickamy/unwind/framedump"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// renderOptions are the flags shared by the commands that print reports.
type renderOptions struct {
	mostRecentFirst bool
	wholeTrace      bool
	format          string
	query           string
	lang            string

	code *gojq.Code
}

func (o *renderOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.mostRecentFirst, "most-recent-first", false, "List the innermost frame first")
	f.BoolVar(&o.wholeTrace, "whole-trace", false, "Keep frames outside the reported region")
	f.StringVarP(&o.format, "format", "o", formatText, "Output format: text or json")
	f.StringVarP(&o.query, "query", "q", "", "jq filter applied to the JSON report (implies --format json)")
	f.StringVar(&o.lang, "lang", "", "BCP 47 language of flag descriptions")
}

// prepare validates the flags and compiles the query.
func (o *renderOptions) prepare() error {
	switch o.format {
	case formatText, formatJSON:
	default:
		return unwind.NewError("unknown output format", "format", o.format).
			WithCode(unwind.InvalidArgument).
			WithDetails(unwind.FieldViolation("format", "must be text or json"))
	}
	if o.query == "" {
		return nil
	}
	q, err := gojq.Parse(o.query)
	if err != nil {
		return unwind.WrapErrorf(err, "parse query").
			WithCode(unwind.InvalidArgument).
			WithDetails(unwind.FieldViolation("query", err.Error()))
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return unwind.WrapErrorf(err, "compile query").WithCode(unwind.InvalidArgument)
	}
	o.code = code
	return nil
}

func (o *renderOptions) reportOptions() []unwind.Option {
	return []unwind.Option{
		unwind.WithMostRecentFirst(o.mostRecentFirst),
		unwind.WithWholeTrace(o.wholeTrace),
	}
}

func (o *renderOptions) render(w io.Writer, d *framedump.Dump) error {
	records := d.Records(o.reportOptions()...)
	if o.code != nil {
		return runQuery(w, o.code, records, o.lang)
	}
	if o.format == formatJSON {
		b, err := unwind.MarshalRecords(records, o.lang)
		if err != nil {
			return unwind.WrapErrorf(err, "marshal report").WithCode(unwind.Internal)
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}

	if err := unwind.WriteLocalized(w, records, o.lang); err != nil {
		return err
	}
	if d.Cause != nil {
		_, err := fmt.Fprintf(w, "%s: %s\n", d.Cause.Type, d.Cause.Message)
		return err
	}
	return nil
}

// runQuery runs code over the JSON report and prints every result on its
// own line.
func runQuery(w io.Writer, code *gojq.Code, records []unwind.Record, locale string) error {
	b, err := unwind.MarshalRecords(records, locale)
	if err != nil {
		return unwind.WrapErrorf(err, "marshal report").WithCode(unwind.Internal)
	}
	var input any
	if err := json.Unmarshal(b, &input); err != nil {
		return unwind.WrapErrorf(err, "decode report").WithCode(unwind.Internal)
	}

	enc := json.NewEncoder(w)
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				return nil
			}
			return unwind.WrapErrorf(err, "run query").WithCode(unwind.InvalidArgument)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
	}
}

func (a *app) newReportCmd() *cobra.Command {
	var o renderOptions
	var input string
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Print the crash report of a frame dump",
		Long: `Print the crash report of a frame dump.

The dump format follows the file extension (.json, .yaml, .yml, .cbor).
Pass "-" to read the dump from standard input in the --input format.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.prepare(); err != nil {
				return err
			}
			d, err := loadDump(cmd.InOrStdin(), args[0], input)
			if err != nil {
				return err
			}
			a.logger.DebugContext(cmd.Context(), "dump loaded",
				"path", args[0],
				"frames", len(d.Frames),
			)
			return o.render(cmd.OutOrStdout(), d)
		},
	}
	o.addFlags(cmd)
	cmd.Flags().StringVar(&input, "input", string(framedump.JSON), "Format of a dump read from standard input")
	return cmd
}

func loadDump(stdin io.Reader, path, input string) (*framedump.Dump, error) {
	if path != "-" {
		return framedump.Load(path)
	}
	f, err := framedump.ParseFormat(input)
	if err != nil {
		return nil, err
	}
	return framedump.DecodeReader(stdin, f)
}
