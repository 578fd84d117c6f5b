package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/varvet/trove-advisor/internal/config"
	"github.com/varvet/trove-advisor/internal/domain/usecases"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timeline.txt"), []byte("Phase 1 ends in June."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("ignored"), 0644))

	cfg := config.NewDefaultConfig()
	cfg.Documents.Dir = dir
	cfg.Documents.Extensions = []string{".txt"}
	cfg.LLM.PrimaryModel = "gpt-4o"
	cfg.LLM.FallbackModel = "gpt-4"
	return cfg
}

func TestNew_EchoModeWithoutKey(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	assert.Equal(t, "echo", app.ProviderName())
	assert.True(t, app.Client.Degraded())
	assert.Equal(t, []string{"timeline"}, app.Documents.Names())

	reply, err := app.Ask(context.Background(), "U1", "When does phase 1 end?")
	require.NoError(t, err)
	assert.True(t, reply.Degraded)
	assert.Equal(t, usecases.PathEcho, reply.Path)
	assert.Contains(t, reply.Text, "When does phase 1 end?")
	assert.Empty(t, app.History.Get("U1"))
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "cohere"

	_, err := New(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestNew_SelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{config.ProviderOpenAI, "openai"},
		{config.ProviderAnthropic, "anthropic"},
		{config.ProviderGemini, "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.LLM.Provider = tt.provider
			cfg.LLM.APIKey = "test-key"

			app, err := New(context.Background(), cfg, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, app.ProviderName())
			assert.False(t, app.Client.Degraded())
		})
	}
}

func TestAsk_ThroughOpenAICompatibleEndpoint(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var body struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel = body.Model

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","model":"gpt-4o","choices":[` +
			`{"index":0,"message":{"role":"assistant","content":"Phase 1 ends in June."},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.LLM.APIKey = "test-key"
	cfg.LLM.BaseURL = server.URL

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	reply, err := app.Ask(context.Background(), "U1", "When does phase 1 end?")
	require.NoError(t, err)
	assert.Equal(t, "Phase 1 ends in June.", reply.Text)
	assert.Equal(t, usecases.PathPrimary, reply.Path)
	assert.Equal(t, 1, reply.Documents)
	assert.Equal(t, "gpt-4o", gotModel)
	assert.Len(t, app.History.Get("U1"), 2)
}

func TestServe_RequiresSlackCredentials(t *testing.T) {
	app, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)

	err = app.Serve(context.Background())
	assert.ErrorContains(t, err, "SLACK_BOT_TOKEN")
}

func TestServe_HTTPModeWithoutAdminAPI(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	cfg := testConfig(t)
	cfg.Slack.Mode = config.SlackModeHTTP
	cfg.Slack.BotToken = "xoxb-test"
	cfg.Slack.SigningSecret = "secret"
	cfg.Server.Enabled = false
	cfg.Server.Addr = addr
	cfg.Documents.Watch = false
	cfg.Heartbeat.Interval = "0"

	app, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	client := &http.Client{Timeout: time.Second, Transport: &http.Transport{DisableKeepAlives: true}}
	base := "http://" + addr

	require.Eventually(t, func() bool {
		resp, err := client.Post(base+"/slack/events", "application/json", strings.NewReader(`{}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusUnauthorized
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := client.Post(base+"/api/query", "application/json", strings.NewReader(`{"message":"When does phase 1 end?"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = client.Get(base + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestHeartbeat(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.DebugLevel)
	app, err := New(context.Background(), testConfig(t), zap.New(core))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.heartbeat(ctx, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		return logs.FilterMessage("heartbeat").Len() > 0
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	entry := logs.FilterMessage("heartbeat").All()[0]
	assert.Equal(t, int64(1), entry.ContextMap()["documents"])
}
