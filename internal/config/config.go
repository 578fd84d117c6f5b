// Package config loads the bot configuration.
// Priority: defaults -> TOML file -> environment variables -> CLI flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/varvet/trove-advisor/internal/prompts"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// Slack transport modes.
const (
	SlackModeSocket = "socket"
	SlackModeHTTP   = "http"
)

// placeholderAPIKey is the value shipped in example env files.
const placeholderAPIKey = "sk-your-openai-api-key-here"

type Config struct {
	Slack     SlackConfig     `toml:"slack"`
	LLM       LLMConfig       `toml:"llm"`
	Documents DocumentsConfig `toml:"documents"`
	History   HistoryConfig   `toml:"history"`
	Prompt    PromptConfig    `toml:"prompt"`
	Server    ServerConfig    `toml:"server"`
	Heartbeat HeartbeatConfig `toml:"heartbeat"`
}

type SlackConfig struct {
	BotToken          string `toml:"bot_token"`
	AppToken          string `toml:"app_token"`      // socket mode only
	SigningSecret     string `toml:"signing_secret"` // http mode only
	Mode              string `toml:"mode"`           // "socket" or "http"
	FallbackBotUserID string `toml:"fallback_bot_user_id"`
	CommandName       string `toml:"command_name"`
}

type LLMConfig struct {
	Provider          string  `toml:"provider"` // "openai", "anthropic" or "gemini"
	APIKey            string  `toml:"api_key"`
	BaseURL           string  `toml:"base_url"` // OpenAI-compatible endpoint override
	PrimaryModel      string  `toml:"primary_model"`
	FallbackModel     string  `toml:"fallback_model"`
	MaxTokens         int     `toml:"max_tokens"`
	FallbackMaxTokens int     `toml:"fallback_max_tokens"`
	Temperature       float32 `toml:"temperature"`
	Timeout           string  `toml:"timeout"`           // e.g. "60s"
	MaxPromptTokens   int     `toml:"max_prompt_tokens"` // 0 disables the proactive size check
}

type DocumentsConfig struct {
	Dir        string   `toml:"dir"`
	Extensions []string `toml:"extensions"`
	Debounce   string   `toml:"debounce"` // e.g. "1s"
	Watch      bool     `toml:"watch"`
	MaxChars   int      `toml:"max_chars"` // per-document excerpt bound
}

type HistoryConfig struct {
	MaxEntries             int `toml:"max_entries"`
	WindowWithDocuments    int `toml:"window_with_documents"`
	WindowWithoutDocuments int `toml:"window_without_documents"`
	ModelFallbackWindow    int `toml:"model_fallback_window"`
	SizeFallbackWindow     int `toml:"size_fallback_window"`
	MaxUsers               int `toml:"max_users"`
	RetainUsers            int `toml:"retain_users"`
}

type PromptConfig struct {
	Mode string `toml:"mode"` // default, casual, technical, brief
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

type HeartbeatConfig struct {
	Interval string `toml:"interval"` // "0" disables
}

// NewDefaultConfig returns the built-in configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Slack: SlackConfig{
			Mode:        SlackModeSocket,
			CommandName: "/chat",
		},
		LLM: LLMConfig{
			Provider:          ProviderOpenAI,
			MaxTokens:         1500,
			FallbackMaxTokens: 1000,
			Temperature:       0.7,
			Timeout:           "60s",
		},
		Documents: DocumentsConfig{
			Dir:        "documents",
			Extensions: []string{".pdf"},
			Debounce:   "1s",
			Watch:      true,
			MaxChars:   12000,
		},
		History: HistoryConfig{
			MaxEntries:             20,
			WindowWithDocuments:    6,
			WindowWithoutDocuments: 15,
			ModelFallbackWindow:    15,
			SizeFallbackWindow:     8,
			MaxUsers:               100,
			RetainUsers:            50,
		},
		Prompt: PromptConfig{Mode: string(prompts.ModeDefault)},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:3000",
		},
		Heartbeat: HeartbeatConfig{Interval: "30s"},
	}
}

// Load reads defaults, then path (if non-empty), then environment overrides.
// Provider model defaults are filled in last so that switching provider alone
// picks sensible models.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyProviderDefaults()
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Slack
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		cfg.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		cfg.Slack.AppToken = v
	}
	if v := os.Getenv("SLACK_SIGNING_SECRET"); v != "" {
		cfg.Slack.SigningSecret = v
	}
	if v := os.Getenv("TROVE_SLACK_MODE"); v != "" {
		cfg.Slack.Mode = v
	}
	if v := os.Getenv("TROVE_FALLBACK_BOT_USER_ID"); v != "" {
		cfg.Slack.FallbackBotUserID = v
	}

	// LLM
	if v := os.Getenv("TROVE_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(apiKeyEnv(cfg.LLM.Provider)); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("TROVE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("TROVE_PRIMARY_MODEL"); v != "" {
		cfg.LLM.PrimaryModel = v
	}
	if v := os.Getenv("TROVE_FALLBACK_MODEL"); v != "" {
		cfg.LLM.FallbackModel = v
	}
	if v := os.Getenv("TROVE_LLM_TIMEOUT"); v != "" {
		cfg.LLM.Timeout = v
	}
	if v := os.Getenv("TROVE_MAX_PROMPT_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LLM.MaxPromptTokens = n
		}
	}

	// Documents
	if v := os.Getenv("TROVE_DOCUMENTS_DIR"); v != "" {
		cfg.Documents.Dir = v
	}

	// Prompt
	if v := os.Getenv("TROVE_PROMPT_MODE"); v != "" {
		cfg.Prompt.Mode = v
	}

	// Server
	if v := os.Getenv("TROVE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}

	if strings.TrimSpace(cfg.LLM.APIKey) == placeholderAPIKey {
		cfg.LLM.APIKey = ""
	}
}

func apiKeyEnv(provider string) string {
	switch provider {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

func (c *Config) applyProviderDefaults() {
	var primary, fallback string
	switch c.LLM.Provider {
	case ProviderAnthropic:
		primary, fallback = "claude-sonnet-4-20250514", "claude-3-5-haiku-latest"
	case ProviderGemini:
		primary, fallback = "gemini-2.5-pro", "gemini-2.5-flash"
	default:
		primary, fallback = "gpt-4o", "gpt-4"
	}
	if c.LLM.PrimaryModel == "" {
		c.LLM.PrimaryModel = primary
	}
	if c.LLM.FallbackModel == "" {
		c.LLM.FallbackModel = fallback
	}
}

// Validate rejects configurations the bot cannot run with. A missing
// completion API key is allowed; the bot then runs in echo mode.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	if _, err := prompts.ForMode(c.Prompt.Mode); err != nil {
		return err
	}

	for name, d := range map[string]string{
		"llm.timeout":        c.LLM.Timeout,
		"documents.debounce": c.Documents.Debounce,
		"heartbeat.interval": c.Heartbeat.Interval,
	} {
		if _, err := parseDuration(d); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	for name, n := range map[string]int{
		"llm.max_tokens":                   c.LLM.MaxTokens,
		"llm.fallback_max_tokens":          c.LLM.FallbackMaxTokens,
		"llm.max_prompt_tokens":            c.LLM.MaxPromptTokens,
		"documents.max_chars":              c.Documents.MaxChars,
		"history.max_entries":              c.History.MaxEntries,
		"history.window_with_documents":    c.History.WindowWithDocuments,
		"history.window_without_documents": c.History.WindowWithoutDocuments,
		"history.model_fallback_window":    c.History.ModelFallbackWindow,
		"history.size_fallback_window":     c.History.SizeFallbackWindow,
		"history.max_users":                c.History.MaxUsers,
		"history.retain_users":             c.History.RetainUsers,
	} {
		if n < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, n)
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2], got %v", c.LLM.Temperature)
	}
	if c.History.RetainUsers > c.History.MaxUsers && c.History.MaxUsers > 0 {
		return fmt.Errorf("history.retain_users (%d) exceeds history.max_users (%d)", c.History.RetainUsers, c.History.MaxUsers)
	}
	return nil
}

// ValidateSlack checks the credentials the chosen transport needs. Only the
// serve command calls it.
func (c *Config) ValidateSlack() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	switch c.Slack.Mode {
	case SlackModeSocket:
		if c.Slack.AppToken == "" {
			return fmt.Errorf("SLACK_APP_TOKEN is required in socket mode")
		}
	case SlackModeHTTP:
		if c.Slack.SigningSecret == "" {
			return fmt.Errorf("SLACK_SIGNING_SECRET is required in http mode")
		}
	default:
		return fmt.Errorf("unknown slack mode %q", c.Slack.Mode)
	}
	return nil
}

// HasCompletionKey reports whether a completion API credential is configured.
func (c *Config) HasCompletionKey() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}

// LLMTimeout returns the completion request timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, _ := parseDuration(c.LLM.Timeout)
	return d
}

// ReloadDebounce returns the document reload debounce.
func (c *Config) ReloadDebounce() time.Duration {
	d, _ := parseDuration(c.Documents.Debounce)
	return d
}

// HeartbeatInterval returns the heartbeat interval; zero disables it.
func (c *Config) HeartbeatInterval() time.Duration {
	d, _ := parseDuration(c.Heartbeat.Interval)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}
