// Package pipeline runs one artifact and one question through extraction,
// loading, generation and execution on a request-scoped engine.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/schemaquery/schemaquery/internal/artifact"
	"github.com/schemaquery/schemaquery/internal/loader"
	"github.com/schemaquery/schemaquery/internal/nl2sql"
	"github.com/schemaquery/schemaquery/internal/observability"
	"github.com/schemaquery/schemaquery/internal/query"
	"github.com/schemaquery/schemaquery/internal/schema"
)

var ErrEmptyQuestion = errors.New("question is required")

type Service struct {
	Opener           query.Opener
	Generator        nl2sql.Generator
	Logger           *slog.Logger
	ExecutionTimeout time.Duration
	ExtractOptions   schema.Options
}

// Answer is the outcome of one question. Error is set when the generated
// query failed to run; Result is meaningful otherwise.
type Answer struct {
	RequestID      string
	SQL            string
	GeneratedBy    string
	Provider       string
	Model          string
	FallbackReason string
	Schema         schema.SchemaContext
	Result         query.Result
	Error          string
	LoadFailures   []loader.Failure
}

type answerMeta struct {
	RequestID      string               `json:"request_id,omitempty"`
	GeneratedBy    string               `json:"generated_by,omitempty"`
	Provider       string               `json:"provider,omitempty"`
	Model          string               `json:"model,omitempty"`
	FallbackReason string               `json:"fallback_reason,omitempty"`
	Schema         schema.SchemaContext `json:"schema"`
	LoadFailures   []loader.Failure     `json:"load_failures,omitempty"`
}

// MarshalJSON encodes {sql, result} on success and {sql, error} when the
// query failed, plus provenance fields.
func (a Answer) MarshalJSON() ([]byte, error) {
	meta := answerMeta{
		RequestID:      a.RequestID,
		GeneratedBy:    a.GeneratedBy,
		Provider:       a.Provider,
		Model:          a.Model,
		FallbackReason: a.FallbackReason,
		Schema:         a.Schema,
		LoadFailures:   a.LoadFailures,
	}
	if a.Error != "" {
		return json.Marshal(struct {
			SQL   string `json:"sql"`
			Error string `json:"error"`
			answerMeta
		}{SQL: a.SQL, Error: a.Error, answerMeta: meta})
	}
	rows := a.Result.Rows
	if rows == nil {
		rows = []query.Record{}
	}
	return json.Marshal(struct {
		SQL     string         `json:"sql"`
		Result  []query.Record `json:"result"`
		Columns []string       `json:"columns"`
		answerMeta
	}{SQL: a.SQL, Result: rows, Columns: a.Result.Columns, answerMeta: meta})
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func (s *Service) generator() nl2sql.Generator {
	if s.Generator == nil {
		return &nl2sql.HeuristicOnly{Logger: s.logger()}
	}
	return s.Generator
}

// Extract builds the preview of art without touching an engine.
func (s *Service) Extract(ctx context.Context, art artifact.Artifact) (schema.ExtractedSchema, error) {
	opts := s.ExtractOptions
	opts.Name = art.Name
	extracted, err := schema.Extract(art.Content, art.Kind, opts)
	observability.ObserveExtraction(string(art.Kind), err)
	if err != nil {
		observability.RequestLogger(ctx, s.logger()).Warn("extraction failed", "artifact", art.Name, "error", err)
		return nil, err
	}
	return extracted, nil
}

// Ask loads art into a fresh engine, generates a query for question and runs
// it. The engine is closed before Ask returns. When the query fails the
// populated Answer is returned together with the *query.ExecutionError.
func (s *Service) Ask(ctx context.Context, art artifact.Artifact, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, ErrEmptyQuestion
	}
	if s.Opener == nil {
		return Answer{}, fmt.Errorf("engine opener is required")
	}
	ctx, requestID := observability.StartRequest(ctx)
	logger := observability.RequestLogger(ctx, s.logger())
	answer := Answer{RequestID: requestID}

	var tabular schema.Tabular
	switch {
	case art.Kind.IsTabular():
		parsed, err := schema.ParseTabular(art.Content, art.Kind)
		observability.ObserveExtraction(string(art.Kind), err)
		if err != nil {
			return answer, fmt.Errorf("extract %s: %w", art.Kind, err)
		}
		tabular = parsed
	case art.Kind == schema.KindSQL:
		observability.ObserveExtraction(string(art.Kind), nil)
	default:
		err := fmt.Errorf("%w: %q", schema.ErrUnsupportedFormat, art.Kind)
		observability.ObserveExtraction(string(art.Kind), err)
		return answer, err
	}

	var execErr error
	err := query.WithSession(ctx, s.Opener, func(session query.Session) error {
		var sc schema.SchemaContext
		if art.Kind.IsTabular() {
			loaded, err := loader.LoadTabular(ctx, session, tabular)
			if err != nil {
				return err
			}
			sc = loaded
		} else {
			report, err := loader.LoadDDL(ctx, session, string(art.Content), logger)
			if err != nil {
				return err
			}
			sc = report.Context
			answer.LoadFailures = report.Failures
		}
		answer.Schema = sc

		generated := s.generator().Generate(ctx, nl2sql.Request{Question: question, Schema: sc})
		answer.SQL = generated.SQL
		answer.GeneratedBy = generated.GeneratedBy
		answer.Provider = generated.Provider
		answer.Model = generated.Model
		answer.FallbackReason = generated.FallbackReason

		result, err := s.execute(ctx, session, generated.SQL)
		if err != nil {
			answer.Error = err.Error()
			execErr = err
			return nil
		}
		answer.Result = result
		return nil
	})
	if err != nil {
		logger.Error("ask failed", "artifact", art.Name, "error", err)
		return answer, err
	}
	if execErr != nil {
		logger.Warn("query execution failed", "sql", answer.SQL, "error", execErr)
		return answer, execErr
	}

	logger.Info("question answered",
		"artifact", art.Name,
		"generated_by", answer.GeneratedBy,
		"rows", len(answer.Result.Rows),
		"duration_ms", answer.Result.Duration.Milliseconds(),
	)
	return answer, nil
}

func (s *Service) execute(ctx context.Context, session query.Session, sqlText string) (query.Result, error) {
	if s.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.ExecutionTimeout)
		defer cancel()
	}
	start := time.Now()
	result, err := query.Execute(ctx, session, sqlText)
	status := "ok"
	switch {
	case errors.Is(err, query.ErrTimeout):
		status = "timeout"
	case err != nil:
		status = "error"
	}
	observability.ObserveExecution(status, time.Since(start))
	return result, err
}
