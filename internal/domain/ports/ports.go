// Package ports defines interfaces for external dependencies.
// Usecases depend on these abstractions; adapters and infrastructure implement them.
package ports

import (
	"context"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// CompletionProvider sends one completion request to a language model API.
// Failures are returned as *entities.CompletionError carrying the classified ErrorClass.
type CompletionProvider interface {
	Complete(ctx context.Context, req entities.CompletionRequest) (string, error)

	// Name identifies the provider in logs ("openai", "anthropic", ...).
	Name() string
}

// DocumentLoader reads and parses documents from various formats.
type DocumentLoader interface {
	// Load reads a document from the given path.
	Load(ctx context.Context, path string) (*entities.Document, error)

	// SupportedExtensions returns file extensions this loader handles.
	SupportedExtensions() []string
}

// DocumentParser extracts text from binary document formats.
type DocumentParser interface {
	// Parse extracts text content from document bytes.
	Parse(ctx context.Context, data []byte, filename string) (string, error)

	// SupportedFormats returns formats this parser handles (e.g., "pdf").
	SupportedFormats() []string
}

// DocumentSource is the read side of the document store.
type DocumentSource interface {
	List() []entities.Document
	Count() int
	HasAny() bool
	Names() []string
}

// HistoryStore keeps per-user conversation history.
type HistoryStore interface {
	Get(userID string) []entities.ChatMessage
	AppendExchange(userID, userText, reply string)
	Users() int
	EvictOldest(maxUsers int)
}

// Messenger posts replies back to the messaging platform.
type Messenger interface {
	PostMessage(ctx context.Context, target entities.ReplyTarget, text string) error

	// RespondToCommand answers a slash command through its response URL.
	RespondToCommand(ctx context.Context, responseURL, text string, ephemeral bool) error
}

// IdentityResolver returns the bot's own platform user id.
type IdentityResolver interface {
	BotUserID(ctx context.Context) (string, error)
}

// EventHandler consumes inbound platform events.
type EventHandler interface {
	Handle(ctx context.Context, ev entities.Event) error
}

// FileWatcher monitors a directory for changes.
type FileWatcher interface {
	// Watch starts monitoring the directory and emits events.
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)

	// Stop stops the watcher.
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
	FileRenamed
)

func (op FileOperation) String() string {
	switch op {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	case FileRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}
