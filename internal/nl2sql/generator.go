package nl2sql

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/schemaquery/schemaquery/internal/config"
	"github.com/schemaquery/schemaquery/internal/observability"
	"github.com/schemaquery/schemaquery/internal/schema"
)

const (
	GeneratedByModel     = "model"
	GeneratedByHeuristic = "heuristic"
)

type Request struct {
	Question string               `json:"question"`
	Schema   schema.SchemaContext `json:"schema"`
}

// GeneratedQuery records the query text and where it came from. Provider,
// Model and FallbackReason are empty on the heuristic-only path.
type GeneratedQuery struct {
	SQL            string `json:"sql"`
	GeneratedBy    string `json:"generated_by"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Fallback reports whether a configured model was bypassed.
func (q GeneratedQuery) Fallback() bool {
	return q.GeneratedBy == GeneratedByHeuristic && q.FallbackReason != ""
}

// Generator turns a question into a query. Generate never fails; degraded
// paths are reported through GeneratedQuery.
type Generator interface {
	Generate(ctx context.Context, req Request) GeneratedQuery
}

// NewGenerator picks the model-backed strategy when an API key is configured
// and the heuristic otherwise.
func NewGenerator(cfg config.AIConfig, logger *slog.Logger) (Generator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if !cfg.ModelConfigured() {
		return &HeuristicOnly{Logger: logger}, nil
	}

	var (
		model Model
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderOpenAI, "":
		model, err = NewOpenAIModel(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case ProviderAnthropic:
		model, err = NewAnthropicModel(AnthropicConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s model: %w", cfg.Provider, err)
	}
	return &ModelBacked{Model: model, Timeout: cfg.Timeout, Logger: logger}, nil
}

// HeuristicOnly answers every question with the fixed heuristic query.
type HeuristicOnly struct {
	Logger *slog.Logger
}

func (h *HeuristicOnly) Generate(ctx context.Context, req Request) GeneratedQuery {
	inspectQuestion(ctx, h.Logger, req.Question)
	query := GeneratedQuery{SQL: HeuristicSQL(req.Schema), GeneratedBy: GeneratedByHeuristic}
	observability.ObserveGeneration(query.GeneratedBy)
	return query
}

// HeuristicSQL averages a marks column when one exists and counts rows
// otherwise. It is total over every schema context.
func HeuristicSQL(sc schema.SchemaContext) string {
	table := strings.TrimSpace(sc.TableName)
	if table == "" {
		table = schema.DefaultTableName
	}
	for _, column := range sc.Columns {
		if strings.EqualFold(column, "marks") {
			return fmt.Sprintf("SELECT AVG(marks) AS average_marks FROM %s;", table)
		}
	}
	return fmt.Sprintf("SELECT COUNT(*) AS row_count FROM %s;", table)
}

// inspectQuestion logs questions that look like SQL injection payloads. The
// question is never rewritten or rejected here.
func inspectQuestion(ctx context.Context, logger *slog.Logger, question string) {
	if strings.TrimSpace(question) == "" {
		return
	}
	isSQLi, fingerprint := libinjection.IsSQLi(question)
	if !isSQLi {
		return
	}
	observability.IncrementSuspiciousRequest()
	observability.RequestLogger(ctx, logger).Warn("question resembles sql injection", "fingerprint", string(fingerprint))
}
