package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-5-20250929"
	defaultAnthropicMaxTokens = 512
)

type AnthropicConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// AnthropicModel calls the Anthropic messages API.
type AnthropicModel struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewAnthropicModel(cfg AnthropicConfig) (*AnthropicModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var opts []anthropic.ClientOption
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(baseURL, "/")))
	}

	return &AnthropicModel{
		client:      anthropic.NewClient(apiKey, opts...),
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   maxTokens,
	}, nil
}

func (m *AnthropicModel) Provider() string { return ProviderAnthropic }

func (m *AnthropicModel) Name() string { return m.model }

func (m *AnthropicModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	temperature := m.temperature
	resp, err := m.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(m.model),
		MaxTokens: m.maxTokens,
		System:    system,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("message has no text content")
}
