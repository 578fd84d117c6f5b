package slackbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// Messenger implements ports.Messenger on the Slack Web API.
type Messenger struct {
	api *slack.Client
}

// NewMessenger creates a messenger.
func NewMessenger(api *slack.Client) *Messenger {
	return &Messenger{api: api}
}

// PostMessage posts text to the target channel, in its thread when one is set.
func (m *Messenger) PostMessage(ctx context.Context, target entities.ReplyTarget, text string) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if target.ThreadTimeStamp != "" {
		opts = append(opts, slack.MsgOptionTS(target.ThreadTimeStamp))
	}
	if _, _, err := m.api.PostMessageContext(ctx, target.ChannelID, opts...); err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return nil
}

// RespondToCommand answers a slash command through its response URL.
func (m *Messenger) RespondToCommand(ctx context.Context, responseURL, text string, ephemeral bool) error {
	responseType := "in_channel"
	if ephemeral {
		responseType = "ephemeral"
	}
	err := slack.PostWebhookContext(ctx, responseURL, &slack.WebhookMessage{
		Text:         text,
		ResponseType: responseType,
	})
	if err != nil {
		return fmt.Errorf("respond to command: %w", err)
	}
	return nil
}

// Identity implements ports.IdentityResolver with auth.test. A successful lookup
// is cached; failures are retried on the next call.
type Identity struct {
	api *slack.Client

	mu sync.Mutex
	id string
}

// NewIdentity creates an identity resolver.
func NewIdentity(api *slack.Client) *Identity {
	return &Identity{api: api}
}

// BotUserID returns the bot's own user id.
func (i *Identity) BotUserID(ctx context.Context) (string, error) {
	i.mu.Lock()
	id := i.id
	i.mu.Unlock()
	if id != "" {
		return id, nil
	}

	resp, err := i.api.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("auth test: %w", err)
	}

	i.mu.Lock()
	i.id = resp.UserID
	i.mu.Unlock()
	return resp.UserID, nil
}
