package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// AnthropicProvider implements ports.CompletionProvider with the Claude Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider creates a Claude provider. SDK retries are disabled; the
// completion client owns the retry policy.
func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(cfg.httpClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicProvider{client: anthropic.NewClient(opts...)}
}

// Name identifies the provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Complete sends one Messages API request. System blocks become the top-level system prompt.
func (p *AnthropicProvider) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	system, rest := splitSystem(req.Messages)

	msgs := make([]anthropic.MessageParam, 0, len(rest))
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == entities.RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  msgs,
	}
	params.Temperature = anthropic.Float(float64(req.Temperature))
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", &entities.CompletionError{Class: ClassifyAnthropicError(err), Provider: p.Name(), Model: req.Model, Err: err}
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return "", &entities.CompletionError{Class: entities.ErrorUnknown, Provider: p.Name(), Model: req.Model, Err: entities.ErrEmptyResponse}
	}
	return out.String(), nil
}

// ClassifyAnthropicError maps an error from anthropic-sdk-go to an error class.
func ClassifyAnthropicError(err error) entities.ErrorClass {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return classifyTransport(err)
	}

	msg := strings.ToLower(apiErr.Error())
	switch {
	case containsAny(msg, "credit balance", "billing"):
		return entities.ErrorQuotaExceeded
	case containsAny(msg, "prompt is too long", "too many tokens", "request_too_large"):
		return entities.ErrorContextTooLarge
	case apiErr.StatusCode == 529:
		return entities.ErrorServiceUnreachable
	case apiErr.StatusCode == 400 || strings.Contains(msg, "invalid_request_error"):
		return entities.ErrorModelUnavailable
	}
	return classifyStatus(apiErr.StatusCode)
}
