package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const (
	DefaultPrimaryModel        = "gpt-4o"
	DefaultFallbackModel       = "gpt-4"
	DefaultMaxTokens           = 1500
	DefaultFallbackMaxTokens   = 1000
	DefaultTemperature         = 0.7
	DefaultModelFallbackWindow = 15
	DefaultSizeFallbackWindow  = 8

	// NoResponseText replaces an empty completion.
	NoResponseText = "Sorry, I could not generate a response."
)

// CompletionPath records which call produced a Completion.
type CompletionPath string

const (
	PathPrimary       CompletionPath = "primary"
	PathModelFallback CompletionPath = "model_fallback"
	PathSizeFallback  CompletionPath = "size_fallback"
	PathEcho          CompletionPath = "echo"
)

// Completion is a successful send.
type Completion struct {
	Text  string
	Model string
	Path  CompletionPath

	// Degraded is set when Text is not a model answer (echo mode or an empty
	// completion). Degraded replies are not recorded in history.
	Degraded bool
}

// CompletionConfig configures a CompletionClient.
type CompletionConfig struct {
	PrimaryModel        string
	FallbackModel       string
	MaxTokens           int
	FallbackMaxTokens   int
	Temperature         float32
	ModelFallbackWindow int
	SizeFallbackWindow  int

	// MaxPromptTokens, when > 0, routes payloads with documents whose estimated
	// size exceeds it straight to the size fallback.
	MaxPromptTokens int
}

// CompletionClient sends payloads to a provider and applies at most one fallback.
// A nil provider puts the client in echo mode.
type CompletionClient struct {
	provider  ports.CompletionProvider
	assembler *PromptAssembler
	cfg       CompletionConfig
	logger    *zap.Logger
}

// NewCompletionClient creates a client. provider may be nil.
func NewCompletionClient(cfg CompletionConfig, provider ports.CompletionProvider, assembler *PromptAssembler, logger *zap.Logger) *CompletionClient {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = DefaultPrimaryModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.FallbackMaxTokens <= 0 {
		cfg.FallbackMaxTokens = DefaultFallbackMaxTokens
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.ModelFallbackWindow <= 0 {
		cfg.ModelFallbackWindow = DefaultModelFallbackWindow
	}
	if cfg.SizeFallbackWindow <= 0 {
		cfg.SizeFallbackWindow = DefaultSizeFallbackWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompletionClient{
		provider:  provider,
		assembler: assembler,
		cfg:       cfg,
		logger:    logger.Named("completion"),
	}
}

// Degraded reports whether the client runs without a provider.
func (c *CompletionClient) Degraded() bool {
	return c.provider == nil
}

// Send runs payload through the provider. Model-unavailable and context-too-large
// failures get one retry each; every other failure is returned as is.
func (c *CompletionClient) Send(ctx context.Context, payload entities.RequestPayload) (Completion, error) {
	if c.provider == nil {
		return Completion{Text: EchoText(payload.UserText), Path: PathEcho, Degraded: true}, nil
	}

	log := c.logger.With(zap.String("user", payload.UserID), zap.String("provider", c.provider.Name()))

	if c.cfg.MaxPromptTokens > 0 && payload.IncludesDocuments {
		if est := EstimateTokens(payload.Messages); est > c.cfg.MaxPromptTokens {
			log.Warn("prompt over token budget, sending without documents",
				zap.Int("estimated_tokens", est),
				zap.Int("max_prompt_tokens", c.cfg.MaxPromptTokens))
			return c.fallback(ctx, payload, entities.FallbackSize, log)
		}
	}

	out, err := c.complete(ctx, c.cfg.PrimaryModel, payload.Messages, c.cfg.MaxTokens, PathPrimary)
	if err == nil {
		return out, nil
	}

	class := entities.ClassOf(err)
	strategy := class.Fallback()
	if strategy == entities.FallbackNone {
		log.Warn("completion failed", zap.Stringer("class", class), zap.Error(err))
		return Completion{}, err
	}

	log.Warn("completion failed, retrying with fallback",
		zap.Stringer("class", class),
		zap.String("model", c.cfg.PrimaryModel),
		zap.Error(err))
	return c.fallback(ctx, payload, strategy, log)
}

func (c *CompletionClient) fallback(ctx context.Context, payload entities.RequestPayload, strategy entities.FallbackStrategy, log *zap.Logger) (Completion, error) {
	names := c.assembler.DocumentNames()

	var (
		model string
		path  CompletionPath
		opts  = PromptOptions{ExcludeDocuments: true}
	)
	switch strategy {
	case entities.FallbackModel:
		model, path = c.cfg.FallbackModel, PathModelFallback
		opts.HistoryWindow = c.cfg.ModelFallbackWindow
		if len(names) > 0 {
			opts.Note = fmt.Sprintf("Note: I have %d document(s) available (%s) but cannot access them in fallback mode.",
				len(names), strings.Join(names, ", "))
		}
	case entities.FallbackSize:
		model, path = c.cfg.PrimaryModel, PathSizeFallback
		opts.HistoryWindow = c.cfg.SizeFallbackWindow
		if len(names) > 0 {
			opts.Note = "Note: Reference documents are available but were not included due to context limits."
		}
	default:
		return Completion{}, fmt.Errorf("unsupported fallback strategy %d", strategy)
	}

	retry := c.assembler.AssembleWith(payload.UserID, payload.UserText, opts)
	out, err := c.complete(ctx, model, retry.Messages, c.cfg.FallbackMaxTokens, path)
	if err != nil {
		log.Warn("fallback failed",
			zap.String("path", string(path)),
			zap.String("model", model),
			zap.Stringer("class", entities.ClassOf(err)),
			zap.Error(err))
		return Completion{}, err
	}
	log.Info("fallback succeeded", zap.String("path", string(path)), zap.String("model", model))
	return out, nil
}

func (c *CompletionClient) complete(ctx context.Context, model string, msgs []entities.ChatMessage, maxTokens int, path CompletionPath) (Completion, error) {
	text, err := c.provider.Complete(ctx, entities.CompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: c.cfg.Temperature,
	})
	if errors.Is(err, entities.ErrEmptyResponse) || (err == nil && strings.TrimSpace(text) == "") {
		return Completion{Text: NoResponseText, Model: model, Path: path, Degraded: true}, nil
	}
	if err != nil {
		return Completion{}, err
	}
	return Completion{Text: strings.TrimSpace(text), Model: model, Path: path}, nil
}

// EchoText is the diagnostic reply used when no completion API key is configured.
func EchoText(userText string) string {
	return fmt.Sprintf("I'm currently running without a language model connection. Your message was: %q\n\n"+
		"Please configure a completion API key (for example OPENAI_API_KEY) to enable AI responses.", userText)
}
