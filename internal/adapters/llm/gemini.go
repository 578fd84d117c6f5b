package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// GeminiProvider implements ports.CompletionProvider with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name identifies the provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Complete sends one generateContent request.
func (p *GeminiProvider) Complete(ctx context.Context, req entities.CompletionRequest) (string, error) {
	system, rest := splitSystem(req.Messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, m := range rest {
		var role string
		if m.Role == entities.RoleAssistant {
			role = genai.RoleModel
		} else {
			role = genai.RoleUser
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return "", &entities.CompletionError{Class: ClassifyGeminiError(err), Provider: p.Name(), Model: req.Model, Err: err}
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &entities.CompletionError{Class: entities.ErrorUnknown, Provider: p.Name(), Model: req.Model, Err: entities.ErrEmptyResponse}
	}
	return text, nil
}

// ClassifyGeminiError maps an error from the genai SDK to an error class.
func ClassifyGeminiError(err error) entities.ErrorClass {
	var (
		code   int
		status string
		msg    string
	)
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code, status, msg = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, msg = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	default:
		return classifyTransport(err)
	}

	msg = strings.ToLower(msg)
	switch {
	case containsAny(msg, "api key not valid", "api_key_invalid") || status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED":
		return entities.ErrorInvalidCredentials
	case containsAny(msg, "exceeds the maximum number of tokens", "input token count", "request payload size exceeds"):
		return entities.ErrorContextTooLarge
	case status == "INVALID_ARGUMENT" || status == "FAILED_PRECONDITION":
		return entities.ErrorModelUnavailable
	case status == "RESOURCE_EXHAUSTED":
		if containsAny(msg, "billing", "exceeded your current quota") {
			return entities.ErrorQuotaExceeded
		}
		return entities.ErrorRateLimited
	case status == "NOT_FOUND":
		return entities.ErrorModelUnavailable
	case status == "UNAVAILABLE" || status == "DEADLINE_EXCEEDED" || status == "INTERNAL":
		return entities.ErrorServiceUnreachable
	}
	return classifyStatus(code)
}
