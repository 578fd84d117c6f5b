package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

func testRequest() entities.CompletionRequest {
	return entities.CompletionRequest{
		Model: "gpt-4o",
		Messages: []entities.ChatMessage{
			{Role: entities.RoleSystem, Content: "sys"},
			{Role: entities.RoleUser, Content: "earlier"},
			{Role: entities.RoleAssistant, Content: "reply"},
			{Role: entities.RoleUser, Content: "What is the Trove timeline?"},
		},
		MaxTokens:   1500,
		Temperature: 0.7,
	}
}

func openAIError(status int, typ, code, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": message, "type": typ, "code": code},
		})
	}
}

func TestOpenAIProvider_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openai.ChatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o", req.Model)
		assert.Equal(t, 1500, req.MaxTokens)
		require.Len(t, req.Messages, 4)
		assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
		assert.Equal(t, openai.ChatMessageRoleAssistant, req.Messages[2].Role)

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "gpt-4o",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "Four phases."}}},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider(Config{APIKey: "sk-test", BaseURL: server.URL})
	text, err := p.Complete(context.Background(), testRequest())

	require.NoError(t, err)
	assert.Equal(t, "Four phases.", text)
	assert.Equal(t, "openai", p.Name())
}

func TestOpenAIProvider_ZeroTemperatureIsSent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		temperature, ok := body["temperature"].(float64)
		assert.True(t, ok, "temperature missing from request")
		assert.InDelta(t, 0, temperature, 1e-6)

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": "ok"}}},
		})
	}))
	defer server.Close()

	req := testRequest()
	req.Temperature = 0
	_, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL}).Complete(context.Background(), req)
	require.NoError(t, err)
}

func TestOpenAIProvider_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "x", "choices": []any{}})
	}))
	defer server.Close()

	_, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL}).Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, entities.ErrEmptyResponse)
}

func TestOpenAIProvider_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    entities.ErrorClass
	}{
		{"quota", openAIError(429, "insufficient_quota", "insufficient_quota", "You exceeded your current quota"), entities.ErrorQuotaExceeded},
		{"rate", openAIError(429, "requests", "rate_limit_exceeded", "Rate limit reached"), entities.ErrorRateLimited},
		{"key", openAIError(401, "invalid_request_error", "invalid_api_key", "Incorrect API key provided"), entities.ErrorInvalidCredentials},
		{"model", openAIError(404, "invalid_request_error", "model_not_found", "The model `gpt-4o` does not exist"), entities.ErrorModelUnavailable},
		{"context", openAIError(400, "invalid_request_error", "context_length_exceeded", "This model's maximum context length is 128000 tokens"), entities.ErrorContextTooLarge},
		{"mime", openAIError(400, "invalid_request_error", "", "Invalid MIME type. Only image types are supported."), entities.ErrorContextTooLarge},
		{"server", openAIError(503, "server_error", "", "The server is overloaded"), entities.ErrorServiceUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()

			_, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL}).Complete(context.Background(), testRequest())

			var ce *entities.CompletionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.want, ce.Class)
			assert.Equal(t, "openai", ce.Provider)
			assert.Equal(t, "gpt-4o", ce.Model)
		})
	}
}

func TestOpenAIProvider_NonJSONErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	_, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL}).Complete(context.Background(), testRequest())
	assert.Equal(t, entities.ErrorServiceUnreachable, entities.ClassOf(err))
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	_, err := NewOpenAIProvider(Config{APIKey: "k", BaseURL: server.URL, Timeout: 50 * time.Millisecond}).
		Complete(context.Background(), testRequest())
	assert.Equal(t, entities.ErrorServiceUnreachable, entities.ClassOf(err))
}

func TestClassifyStatus(t *testing.T) {
	assert.Equal(t, entities.ErrorInvalidCredentials, classifyStatus(403))
	assert.Equal(t, entities.ErrorContextTooLarge, classifyStatus(413))
	assert.Equal(t, entities.ErrorServiceUnreachable, classifyStatus(408))
	assert.Equal(t, entities.ErrorUnknown, classifyStatus(418))
}

func TestClassifyTransport(t *testing.T) {
	assert.Equal(t, entities.ErrorServiceUnreachable, classifyTransport(context.DeadlineExceeded))
	assert.Equal(t, entities.ErrorUnknown, classifyTransport(context.Canceled))
	assert.Equal(t, entities.ErrorUnknown, classifyTransport(errors.New("boom")))
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem(testRequest().Messages)
	assert.Equal(t, "sys", system)
	require.Len(t, rest, 3)
	assert.Equal(t, entities.RoleUser, rest[0].Role)
}
