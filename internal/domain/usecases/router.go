package usecases

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const defaultDedupeSize = 1024

// Responder produces a reply for one user message.
type Responder interface {
	Respond(ctx context.Context, userID, text string) (Reply, error)
}

// RouterConfig configures a Router.
type RouterConfig struct {
	// FallbackBotUserID is used when the identity lookup fails.
	FallbackBotUserID string
	// CommandName appears in the usage hint for an empty slash command.
	CommandName string
	DedupeSize  int
}

// Router decides whether an inbound event gets a reply and where it goes.
type Router struct {
	responder Responder
	messenger ports.Messenger
	identity  ports.IdentityResolver
	cfg       RouterConfig
	logger    *zap.Logger

	seen *seenSet
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig, responder Responder, messenger ports.Messenger, identity ports.IdentityResolver, logger *zap.Logger) *Router {
	if cfg.CommandName == "" {
		cfg.CommandName = "/chat"
	}
	if cfg.DedupeSize <= 0 {
		cfg.DedupeSize = defaultDedupeSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		responder: responder,
		messenger: messenger,
		identity:  identity,
		cfg:       cfg,
		logger:    logger.Named("router"),
		seen:      newSeenSet(cfg.DedupeSize),
	}
}

// Handle routes one event. Callers run it in its own goroutine.
func (r *Router) Handle(ctx context.Context, ev entities.Event) error {
	switch e := ev.(type) {
	case entities.MessageEvent:
		return r.handleMessage(ctx, e)
	case entities.MentionEvent:
		return r.handleMention(ctx, e)
	case entities.CommandEvent:
		return r.handleCommand(ctx, e)
	case entities.ConnectionEvent:
		r.logger.Info("connection", zap.String("state", e.State), zap.String("detail", e.Detail))
		return nil
	case entities.UnknownEvent:
		r.logger.Debug("ignoring event", zap.String("type", e.Type))
		return nil
	default:
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

func (r *Router) handleMessage(ctx context.Context, e entities.MessageEvent) error {
	if e.FromBot() || e.UserID == "" || strings.TrimSpace(e.Text) == "" {
		return nil
	}

	text := strings.TrimSpace(e.Text)
	if e.Kind() == entities.EventChannelMessage {
		var mentioned bool
		text, mentioned = StripMention(e.Text, r.botUserID(ctx))
		if !mentioned {
			return nil
		}
	}
	if text == "" || !r.seen.add(e.ChannelID, e.TimeStamp) {
		return nil
	}

	return r.reply(ctx, e.UserID, text, entities.ReplyTarget{ChannelID: e.ChannelID, ThreadTimeStamp: e.ThreadTimeStamp}, e.Kind())
}

func (r *Router) handleMention(ctx context.Context, e entities.MentionEvent) error {
	if e.BotID != "" || e.UserID == "" {
		return nil
	}

	text, _ := StripMention(e.Text, r.botUserID(ctx))
	if text == "" || !r.seen.add(e.ChannelID, e.TimeStamp) {
		return nil
	}

	return r.reply(ctx, e.UserID, text, entities.ReplyTarget{ChannelID: e.ChannelID, ThreadTimeStamp: e.ThreadTimeStamp}, e.Kind())
}

func (r *Router) handleCommand(ctx context.Context, e entities.CommandEvent) error {
	if e.Ack != nil {
		e.Ack()
	}

	log := r.logger.With(zap.String("user", e.UserID), zap.String("channel", e.ChannelID), zap.String("command", e.Command))

	text := strings.TrimSpace(e.Text)
	if text == "" {
		return r.messenger.RespondToCommand(ctx, e.ResponseURL, UsageText(r.commandName(e)), true)
	}

	reply, err := r.responder.Respond(ctx, e.UserID, text)
	if err != nil {
		class := entities.ClassOf(err)
		log.Warn("command failed", zap.Stringer("class", class), zap.Error(err))
		return r.messenger.RespondToCommand(ctx, e.ResponseURL, class.UserMessage(), true)
	}
	if err := r.messenger.RespondToCommand(ctx, e.ResponseURL, reply.Text, false); err != nil {
		return fmt.Errorf("respond to %s: %w", e.Command, err)
	}
	return nil
}

func (r *Router) reply(ctx context.Context, userID, text string, target entities.ReplyTarget, kind entities.EventKind) error {
	log := r.logger.With(
		zap.String("user", userID),
		zap.String("channel", target.ChannelID),
		zap.Stringer("kind", kind))

	msg := ""
	reply, err := r.responder.Respond(ctx, userID, text)
	if err != nil {
		class := entities.ClassOf(err)
		log.Warn("reply failed", zap.Stringer("class", class), zap.Error(err))
		msg = class.UserMessage()
	} else {
		msg = reply.Text
	}

	if err := r.messenger.PostMessage(ctx, target, msg); err != nil {
		return fmt.Errorf("post reply to %s: %w", target.ChannelID, err)
	}
	return nil
}

func (r *Router) botUserID(ctx context.Context) string {
	if r.identity != nil {
		id, err := r.identity.BotUserID(ctx)
		if err == nil && id != "" {
			return id
		}
		r.logger.Warn("bot identity lookup failed, using fallback id",
			zap.String("fallback", r.cfg.FallbackBotUserID), zap.Error(err))
	}
	return r.cfg.FallbackBotUserID
}

func (r *Router) commandName(e entities.CommandEvent) string {
	if e.Command != "" {
		return e.Command
	}
	return r.cfg.CommandName
}

// UsageText is the hint sent for an empty slash command.
func UsageText(command string) string {
	return fmt.Sprintf("Please provide a message to chat with me! Usage: `%s How can you help me?`", command)
}

// mentionPattern matches a user mention, <@ID> or <@ID|label>, capturing the ID.
var mentionPattern = regexp.MustCompile(`<@([^>|]+)(?:\|[^>]*)?>`)

// StripMention removes every mention of botID (<@ID> or <@ID|label>) from text and
// trims the result. The second result reports whether a mention was present.
func StripMention(text, botID string) (string, bool) {
	if botID == "" {
		return strings.TrimSpace(text), false
	}
	found := false
	out := mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		if mentionPattern.FindStringSubmatch(m)[1] != botID {
			return m
		}
		found = true
		return ""
	})
	return strings.TrimSpace(out), found
}

// seenSet remembers the last n (channel, ts) keys.
type seenSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
	ring []string
	next int
}

func newSeenSet(n int) *seenSet {
	return &seenSet{keys: make(map[string]struct{}, n), ring: make([]string, n)}
}

// add records the key and reports whether it was new. Messages without a
// timestamp are always new.
func (s *seenSet) add(channel, ts string) bool {
	if ts == "" {
		return true
	}
	key := channel + ":" + ts

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.keys, old)
	}
	s.ring[s.next] = key
	s.keys[key] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}
