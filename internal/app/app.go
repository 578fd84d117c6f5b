// Package app wires the bot's components together and runs them.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/varvet/trove-advisor/internal/adapters/filewatcher"
	"github.com/varvet/trove-advisor/internal/adapters/llm"
	"github.com/varvet/trove-advisor/internal/adapters/loader"
	"github.com/varvet/trove-advisor/internal/adapters/parser"
	"github.com/varvet/trove-advisor/internal/config"
	"github.com/varvet/trove-advisor/internal/domain/ports"
	"github.com/varvet/trove-advisor/internal/domain/usecases"
	httpserver "github.com/varvet/trove-advisor/internal/infrastructure/http"
	"github.com/varvet/trove-advisor/internal/infrastructure/slackbot"
	"github.com/varvet/trove-advisor/internal/prompts"
)

// App holds the bot's components.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	Documents    *usecases.DocumentStore
	History      *usecases.HistoryTracker
	Assembler    *usecases.PromptAssembler
	Client       *usecases.CompletionClient
	Conversation *usecases.Conversation

	provider ports.CompletionProvider
}

// New builds every component that does not need Slack and loads the documents.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	systemPrompt, err := prompts.ForMode(cfg.Prompt.Mode)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", cfg.LLM.Provider, err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		provider: provider,
	}

	pdfParser := parser.NewPDFParser()
	a.Documents = usecases.NewDocumentStore(usecases.DocumentStoreConfig{
		Dir:        cfg.Documents.Dir,
		Extensions: cfg.Documents.Extensions,
		Debounce:   cfg.ReloadDebounce(),
	}, loader.NewMultiLoader(pdfParser, logger), logger)

	a.History = usecases.NewHistoryTracker(cfg.History.MaxEntries)

	a.Assembler = usecases.NewPromptAssembler(usecases.PromptConfig{
		SystemPrompt:               systemPrompt,
		HistoryWindowWithDocuments: cfg.History.WindowWithDocuments,
		HistoryWindow:              cfg.History.WindowWithoutDocuments,
		MaxDocumentChars:           cfg.Documents.MaxChars,
	}, a.Documents, a.History)

	a.Client = usecases.NewCompletionClient(usecases.CompletionConfig{
		PrimaryModel:        cfg.LLM.PrimaryModel,
		FallbackModel:       cfg.LLM.FallbackModel,
		MaxTokens:           cfg.LLM.MaxTokens,
		FallbackMaxTokens:   cfg.LLM.FallbackMaxTokens,
		Temperature:         cfg.LLM.Temperature,
		ModelFallbackWindow: cfg.History.ModelFallbackWindow,
		SizeFallbackWindow:  cfg.History.SizeFallbackWindow,
		MaxPromptTokens:     cfg.LLM.MaxPromptTokens,
	}, provider, a.Assembler, logger)

	a.Conversation = usecases.NewConversation(usecases.ConversationConfig{
		MaxUsers:    cfg.History.MaxUsers,
		RetainUsers: cfg.History.RetainUsers,
	}, a.Assembler, a.Client, a.History, logger)

	if err := a.Documents.LoadAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	if provider == nil {
		logger.Warn("no completion API key configured, running in echo mode", zap.String("provider", cfg.LLM.Provider))
	} else {
		logger.Info("completion provider ready",
			zap.String("provider", provider.Name()),
			zap.String("primary_model", cfg.LLM.PrimaryModel),
			zap.String("fallback_model", cfg.LLM.FallbackModel))
	}
	return a, nil
}

// newProvider returns nil when no API key is configured.
func newProvider(ctx context.Context, cfg *config.Config) (ports.CompletionProvider, error) {
	if !cfg.HasCompletionKey() {
		return nil, nil
	}
	llmCfg := llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLMTimeout(),
	}
	switch cfg.LLM.Provider {
	case config.ProviderAnthropic:
		return llm.NewAnthropicProvider(llmCfg), nil
	case config.ProviderGemini:
		p, err := llm.NewGeminiProvider(ctx, llmCfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return llm.NewOpenAIProvider(llmCfg), nil
	}
}

// ProviderName returns the configured provider, or "echo" without a key.
func (a *App) ProviderName() string {
	if a.provider == nil {
		return "echo"
	}
	return a.provider.Name()
}

// Ask runs one message through the conversation pipeline.
func (a *App) Ask(ctx context.Context, userID, text string) (usecases.Reply, error) {
	return a.Conversation.Respond(ctx, userID, text)
}

// Serve connects to Slack and runs until ctx is cancelled. The document watcher,
// heartbeat and admin server run alongside the Slack transport.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Config.ValidateSlack(); err != nil {
		return err
	}

	var opts []slack.Option
	if a.Config.Slack.Mode == config.SlackModeSocket {
		opts = append(opts, slack.OptionAppLevelToken(a.Config.Slack.AppToken))
	}
	api := slack.New(a.Config.Slack.BotToken, opts...)

	router := usecases.NewRouter(usecases.RouterConfig{
		FallbackBotUserID: a.Config.Slack.FallbackBotUserID,
		CommandName:       a.Config.Slack.CommandName,
	}, a.Conversation, slackbot.NewMessenger(api), slackbot.NewIdentity(api), a.Logger)

	g, gctx := errgroup.WithContext(ctx)

	if a.Config.Documents.Watch {
		g.Go(func() error {
			return a.watchDocuments(gctx)
		})
	}

	if interval := a.Config.HeartbeatInterval(); interval > 0 {
		g.Go(func() error {
			a.heartbeat(gctx, interval)
			return nil
		})
	}

	server := httpserver.NewServer(httpserver.Config{
		Addr:       a.Config.Server.Addr,
		Provider:   a.ProviderName(),
		Degraded:   a.Client.Degraded(),
		DisableAPI: !a.Config.Server.Enabled,
	}, a.Documents, a.Conversation, a.Logger)

	switch a.Config.Slack.Mode {
	case config.SlackModeHTTP:
		events := slackbot.NewEventsHandler(gctx, a.Config.Slack.SigningSecret, router, a.Logger)
		server.Mount(events.Register)
		g.Go(func() error {
			defer events.Wait()
			return server.Start(gctx)
		})
	default:
		runner := slackbot.NewSocketRunner(api, router, a.Logger)
		g.Go(func() error {
			return runner.Run(gctx)
		})
		if a.Config.Server.Enabled {
			g.Go(func() error {
				return server.Start(gctx)
			})
		}
	}

	a.Logger.Info("trove advisor running",
		zap.String("slack_mode", a.Config.Slack.Mode),
		zap.String("provider", a.ProviderName()),
		zap.Int("documents", a.Documents.Count()))

	return g.Wait()
}

func (a *App) watchDocuments(ctx context.Context) error {
	watcher, err := filewatcher.NewFSNotifyWatcher(a.Config.Documents.Extensions, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create document watcher: %w", err)
	}
	return a.Documents.Watch(ctx, watcher)
}

func (a *App) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Logger.Debug("heartbeat",
				zap.Int("documents", a.Documents.Count()),
				zap.Int("tracked_users", a.History.Users()))
		}
	}
}
