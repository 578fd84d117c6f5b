package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const (
	DefaultMaxTrackedUsers = 100
	DefaultRetainedUsers   = 50
)

// Reply is the outcome of one conversation turn.
type Reply struct {
	TurnID    string
	Text      string
	Model     string
	Path      CompletionPath
	Degraded  bool
	Documents int
	Elapsed   time.Duration
}

// ConversationConfig bounds the number of users whose history is kept.
type ConversationConfig struct {
	MaxUsers    int // housekeeping runs when more users than this are tracked
	RetainUsers int // users kept by housekeeping
}

// Conversation runs one user turn: assemble, send, record.
type Conversation struct {
	assembler *PromptAssembler
	client    *CompletionClient
	history   ports.HistoryStore
	cfg       ConversationConfig
	logger    *zap.Logger
}

// NewConversation wires a conversation from its collaborators.
func NewConversation(cfg ConversationConfig, assembler *PromptAssembler, client *CompletionClient, history ports.HistoryStore, logger *zap.Logger) *Conversation {
	if cfg.MaxUsers <= 0 {
		cfg.MaxUsers = DefaultMaxTrackedUsers
	}
	if cfg.RetainUsers <= 0 || cfg.RetainUsers > cfg.MaxUsers {
		cfg.RetainUsers = min(DefaultRetainedUsers, cfg.MaxUsers)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Conversation{
		assembler: assembler,
		client:    client,
		history:   history,
		cfg:       cfg,
		logger:    logger.Named("conversation"),
	}
}

// Respond answers text for userID. History is updated only when the reply is a
// real model answer.
func (c *Conversation) Respond(ctx context.Context, userID, text string) (Reply, error) {
	turn := uuid.NewString()
	start := time.Now()
	log := c.logger.With(zap.String("turn", turn), zap.String("user", userID))

	payload := c.assembler.Assemble(userID, text)
	log.Debug("prompt assembled",
		zap.Int("messages", len(payload.Messages)),
		zap.Bool("documents", payload.IncludesDocuments),
		zap.Int("estimated_tokens", EstimateTokens(payload.Messages)))

	out, err := c.client.Send(ctx, payload)
	if err != nil {
		log.Warn("turn failed", zap.Stringer("class", entities.ClassOf(err)), zap.Duration("elapsed", time.Since(start)))
		return Reply{TurnID: turn}, err
	}

	if !out.Degraded {
		c.history.AppendExchange(userID, text, out.Text)
		if c.history.Users() > c.cfg.MaxUsers {
			c.history.EvictOldest(c.cfg.RetainUsers)
			log.Info("history housekeeping", zap.Int("retained_users", c.cfg.RetainUsers))
		}
	}

	reply := Reply{
		TurnID:    turn,
		Text:      out.Text,
		Model:     out.Model,
		Path:      out.Path,
		Degraded:  out.Degraded,
		Documents: payload.DocumentCount,
		Elapsed:   time.Since(start),
	}
	log.Info("turn completed",
		zap.String("model", reply.Model),
		zap.String("path", string(reply.Path)),
		zap.Bool("degraded", reply.Degraded),
		zap.Duration("elapsed", reply.Elapsed))
	return reply, nil
}
