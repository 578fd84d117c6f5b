// Package llm provides completion API adapters.
// Clean Architecture: Adapters implementing ports.CompletionProvider. Each adapter
// classifies its failures into an entities.ErrorClass exactly once.
package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 60 * time.Second

// Config is shared by every provider.
type Config struct {
	APIKey  string
	BaseURL string // empty selects the provider's public endpoint
	Timeout time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// classifyStatus maps an HTTP status code to an error class.
func classifyStatus(code int) entities.ErrorClass {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return entities.ErrorInvalidCredentials
	case code == http.StatusNotFound:
		return entities.ErrorModelUnavailable
	case code == http.StatusRequestEntityTooLarge:
		return entities.ErrorContextTooLarge
	case code == http.StatusTooManyRequests:
		return entities.ErrorRateLimited
	case code == http.StatusRequestTimeout || code >= 500:
		return entities.ErrorServiceUnreachable
	default:
		return entities.ErrorUnknown
	}
}

// classifyTransport recognizes failures that never reached the API.
func classifyTransport(err error) entities.ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return entities.ErrorServiceUnreachable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return entities.ErrorServiceUnreachable
	}
	return entities.ErrorUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// splitSystem separates system blocks from the conversational messages.
func splitSystem(msgs []entities.ChatMessage) (string, []entities.ChatMessage) {
	var system []string
	rest := make([]entities.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == entities.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
