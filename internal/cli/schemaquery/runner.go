package schemaquery

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schemaquery/schemaquery/internal/artifact"
	"github.com/schemaquery/schemaquery/internal/dialect"
	"github.com/schemaquery/schemaquery/internal/observability"
	"github.com/schemaquery/schemaquery/internal/pipeline"
	"github.com/schemaquery/schemaquery/internal/query"
	"github.com/schemaquery/schemaquery/internal/schema"
)

type Options struct {
	Service  *pipeline.Service
	Resolver *artifact.Resolver
	Gatherer prometheus.Gatherer
	Stdout   io.Writer
	Stderr   io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	if defaults.Service == nil {
		_, _ = fmt.Fprintln(stderr, "schemaquery: service is not configured")
		return 1
	}
	resolver := defaults.Resolver
	if resolver == nil {
		resolver = &artifact.Resolver{}
	}

	fs := flag.NewFlagSet("schemaquery", flag.ContinueOnError)
	fs.SetOutput(stderr)

	previewRows := fs.Int("preview-rows", 0, "sample rows per table for extract (0 uses the configured value)")
	timeout := fs.Duration("timeout", 0, "query execution timeout (0 uses the configured value)")
	trace := fs.Bool("trace", false, "translate: print each rewrite stage instead of the final script")
	dumpMetrics := fs.Bool("metrics", false, "write Prometheus metrics to stderr after the command")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 2 {
		writeUsage(stderr)
		return 2
	}

	service := *defaults.Service
	if *previewRows > 0 {
		service.ExtractOptions.PreviewRows = *previewRows
	}
	if *timeout > 0 {
		service.ExecutionTimeout = *timeout
	}

	command := strings.TrimSpace(fs.Arg(0))
	ref := fs.Arg(1)
	var code int
	switch command {
	case "extract":
		code = runExtract(ctx, &service, resolver, ref, stdout, stderr)
	case "translate":
		code = runTranslate(ctx, resolver, ref, *trace, stdout, stderr)
	case "ask":
		question := strings.TrimSpace(strings.Join(fs.Args()[2:], " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			writeUsage(stderr)
			return 2
		}
		code = runAsk(ctx, &service, resolver, ref, question, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	if *dumpMetrics {
		if err := observability.WriteMetrics(stderr, defaults.Gatherer); err != nil {
			_, _ = fmt.Fprintf(stderr, "write metrics: %v\n", err)
			return 1
		}
	}
	return code
}

func runExtract(ctx context.Context, service *pipeline.Service, resolver *artifact.Resolver, ref string, stdout, stderr io.Writer) int {
	art, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return fail(stderr, err)
	}
	extracted, err := service.Extract(ctx, art)
	if err != nil {
		return fail(stderr, err)
	}
	return writeJSON(stdout, stderr, extracted)
}

func runTranslate(ctx context.Context, resolver *artifact.Resolver, ref string, trace bool, stdout, stderr io.Writer) int {
	art, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return fail(stderr, err)
	}
	if art.Kind != schema.KindSQL {
		return fail(stderr, fmt.Errorf("translate: %w: %s is not a SQL script", schema.ErrUnsupportedFormat, art.Name))
	}
	if trace {
		statements, stages := dialect.Trace(string(art.Content))
		return writeJSON(stdout, stderr, map[string]any{"statements": statements, "stages": stages})
	}
	_, _ = io.WriteString(stdout, dialect.Translate(string(art.Content)))
	return 0
}

func runAsk(ctx context.Context, service *pipeline.Service, resolver *artifact.Resolver, ref, question string, stdout, stderr io.Writer) int {
	start := time.Now()
	art, err := resolver.Resolve(ctx, ref)
	if err != nil {
		return fail(stderr, err)
	}
	answer, err := service.Ask(ctx, art, question)
	var execErr *query.ExecutionError
	switch {
	case errors.As(err, &execErr):
		if code := writeJSON(stdout, stderr, answer); code != 0 {
			return code
		}
		return 1
	case err != nil:
		return fail(stderr, err)
	}
	if code := writeJSON(stdout, stderr, answer); code != 0 {
		return code
	}
	_, _ = fmt.Fprintf(stderr, "%d row(s) in %s\n", len(answer.Result.Rows), time.Since(start).Round(time.Millisecond))
	return 0
}

func fail(stderr io.Writer, err error) int {
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func writeJSON(stdout, stderr io.Writer, value any) int {
	formatted, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fail(stderr, fmt.Errorf("encode output: %w", err))
	}
	_, _ = fmt.Fprintln(stdout, string(formatted))
	return 0
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: schemaquery [flags] <command> <file|s3://key> [question...]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  extract     preview tables, columns and sample rows")
	_, _ = fmt.Fprintln(w, "  translate   rewrite a MySQL-style script for the embedded engine")
	_, _ = fmt.Fprintln(w, "  ask         answer a natural-language question against the file")
}
