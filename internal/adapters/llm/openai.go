package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// OpenAIProvider implements ports.CompletionProvider with the OpenAI chat API.
// Any OpenAI-compatible endpoint (a local Ollama, for example) works through BaseURL.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI provider.
func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.HTTPClient = cfg.httpClient()
	return &OpenAIProvider{client: openai.NewClientWithConfig(c)}
}

// Name identifies the provider.
func (p *OpenAIProvider) Name() string { return "openai" }

// Complete sends one chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content}
	}

	// go-openai omits a zero temperature, which the API reads as 1.
	temperature := req.Temperature
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", &entities.CompletionError{Class: ClassifyOpenAIError(err), Provider: p.Name(), Model: req.Model, Err: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &entities.CompletionError{Class: entities.ErrorUnknown, Provider: p.Name(), Model: req.Model, Err: entities.ErrEmptyResponse}
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIRole(r entities.Role) string {
	switch r {
	case entities.RoleSystem:
		return openai.ChatMessageRoleSystem
	case entities.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// ClassifyOpenAIError maps an error from go-openai to an error class.
func ClassifyOpenAIError(err error) entities.ErrorClass {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if apiErr.Code != nil {
			code = strings.ToLower(fmt.Sprint(apiErr.Code))
		}
		typ := strings.ToLower(apiErr.Type)
		msg := strings.ToLower(apiErr.Message)
		status := apiErr.HTTPStatusCode

		switch {
		case code == "insufficient_quota" || typ == "insufficient_quota":
			return entities.ErrorQuotaExceeded
		case code == "context_length_exceeded" || code == "invalid_image_format" ||
			containsAny(msg, "maximum context length", "invalid mime type"):
			return entities.ErrorContextTooLarge
		case code == "rate_limit_exceeded" || status == 429:
			return entities.ErrorRateLimited
		case code == "invalid_api_key" || status == 401 || status == 403:
			return entities.ErrorInvalidCredentials
		case code == "model_not_found" || status == 404 || typ == "invalid_request_error":
			return entities.ErrorModelUnavailable
		case status >= 500:
			return entities.ErrorServiceUnreachable
		}
		return classifyStatus(status)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode)
	}
	return classifyTransport(err)
}
