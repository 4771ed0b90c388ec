package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/schemaquery/schemaquery/internal/observability"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

var errEmptyCompletion = errors.New("model returned empty SQL")

// Model is one chat-style completion backend.
type Model interface {
	Provider() string
	Name() string
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ModelBacked asks Model once and falls back to HeuristicSQL on any failure.
type ModelBacked struct {
	Model   Model
	Timeout time.Duration
	Logger  *slog.Logger
}

func (m *ModelBacked) Generate(ctx context.Context, req Request) GeneratedQuery {
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	inspectQuestion(ctx, logger, req.Question)

	sqlText, err := m.complete(ctx, req)
	if err != nil {
		query := GeneratedQuery{
			SQL:            HeuristicSQL(req.Schema),
			GeneratedBy:    GeneratedByHeuristic,
			Provider:       m.Model.Provider(),
			Model:          m.Model.Name(),
			FallbackReason: err.Error(),
		}
		observability.RequestLogger(ctx, logger).Warn("model generation failed, using heuristic",
			"provider", query.Provider,
			"model", query.Model,
			"error", err,
		)
		observability.ObserveGeneration(query.GeneratedBy)
		return query
	}

	observability.ObserveGeneration(GeneratedByModel)
	return GeneratedQuery{
		SQL:         sqlText,
		GeneratedBy: GeneratedByModel,
		Provider:    m.Model.Provider(),
		Model:       m.Model.Name(),
	}
}

// complete runs the single model call. Panics from the client are reported
// as errors so the heuristic still answers.
func (m *ModelBacked) complete(ctx context.Context, req Request) (sqlText string, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("model call panicked: %v", recovered)
		}
	}()

	if m.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	content, err := m.Model.Complete(ctx, systemPrompt, BuildPrompt(req))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("model call timed out: %w", err)
		}
		return "", fmt.Errorf("model call: %w", err)
	}
	sqlText = CleanModelSQL(content)
	if strings.TrimSpace(strings.TrimSuffix(sqlText, ";")) == "" {
		return "", errEmptyCompletion
	}
	return sqlText, nil
}
