package usecases

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/varvet/trove-advisor/internal/domain/entities"
	"github.com/varvet/trove-advisor/internal/domain/ports"
)

const (
	DefaultHistoryWindowWithDocuments = 6
	DefaultHistoryWindow              = 15
	DefaultMaxDocumentChars           = 12000
)

// PromptConfig configures a PromptAssembler.
type PromptConfig struct {
	SystemPrompt               string
	HistoryWindowWithDocuments int // entries kept when documents are attached
	HistoryWindow              int // entries kept otherwise
	MaxDocumentChars           int // excerpt bound per document
}

// PromptOptions adjust a single assembly. Fallback retries use them.
type PromptOptions struct {
	ExcludeDocuments bool
	HistoryWindow    int    // > 0 overrides the configured window
	Note             string // appended to the user block
}

// PromptAssembler builds the ordered request payload for one user message.
type PromptAssembler struct {
	cfg     PromptConfig
	docs    ports.DocumentSource
	history ports.HistoryStore
}

// NewPromptAssembler creates an assembler reading from docs and history.
func NewPromptAssembler(cfg PromptConfig, docs ports.DocumentSource, history ports.HistoryStore) *PromptAssembler {
	if cfg.HistoryWindowWithDocuments <= 0 {
		cfg.HistoryWindowWithDocuments = DefaultHistoryWindowWithDocuments
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.MaxDocumentChars <= 0 {
		cfg.MaxDocumentChars = DefaultMaxDocumentChars
	}
	return &PromptAssembler{cfg: cfg, docs: docs, history: history}
}

// Assemble builds the default payload for text.
func (a *PromptAssembler) Assemble(userID, text string) entities.RequestPayload {
	return a.AssembleWith(userID, text, PromptOptions{})
}

// AssembleWith builds a payload: system block, trailing history window, then the
// user block. Documents are serialized after the user text when any are loaded and
// not excluded; otherwise the user block is text unchanged, plus any note.
func (a *PromptAssembler) AssembleWith(userID, text string, opts PromptOptions) entities.RequestPayload {
	var docs []entities.Document
	if !opts.ExcludeDocuments && a.docs.HasAny() {
		docs = a.docs.List()
	}
	attach := len(docs) > 0

	window := a.cfg.HistoryWindow
	if attach {
		window = a.cfg.HistoryWindowWithDocuments
	}
	if opts.HistoryWindow > 0 {
		window = opts.HistoryWindow
	}

	history := a.history.Get(userID)
	if len(history) > window {
		history = history[len(history)-window:]
	}

	msgs := make([]entities.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, entities.ChatMessage{Role: entities.RoleSystem, Content: a.cfg.SystemPrompt})
	msgs = append(msgs, history...)

	content := text
	if attach {
		content = text + "\n\n" + SerializeDocuments(docs, a.cfg.MaxDocumentChars)
	}
	if opts.Note != "" {
		content += "\n\n" + opts.Note
	}
	msgs = append(msgs, entities.ChatMessage{Role: entities.RoleUser, Content: content})

	return entities.RequestPayload{
		UserID:            userID,
		UserText:          text,
		Messages:          msgs,
		IncludesDocuments: attach,
		DocumentCount:     len(docs),
	}
}

// DocumentNames returns the display names of the loaded documents.
func (a *PromptAssembler) DocumentNames() []string {
	return a.docs.Names()
}

const separator = "=================================================="

// SerializeDocuments renders docs as one text block: metadata and a bounded text
// excerpt per document. Raw binary content is never included.
func SerializeDocuments(docs []entities.Document, maxChars int) string {
	var b strings.Builder
	b.WriteString(separator + "\nREFERENCE DOCUMENTS\n" + separator + "\n")

	for _, d := range docs {
		fmt.Fprintf(&b, "\nDOCUMENT: %s\n", d.Name)
		fmt.Fprintf(&b, "File: %s\n", d.FileName)
		fmt.Fprintf(&b, "Size: %s\n", humanize.IBytes(uint64(d.SizeBytes)))
		fmt.Fprintf(&b, "Modified: %s\n", d.LastModified.UTC().Format("2006-01-02 15:04 MST"))
		b.WriteString("--- CONTENT START ---\n")
		b.WriteString(excerpt(d, maxChars))
		b.WriteString("\n--- CONTENT END ---\n")
	}

	b.WriteString(separator)
	return b.String()
}

func excerpt(d entities.Document, maxChars int) string {
	text := strings.TrimSpace(d.Text)
	if text == "" {
		return fmt.Sprintf("%q is a %s document of %s. Its text could not be extracted; refer to it by name.",
			d.Name, strings.TrimPrefix(strings.ToLower(filepath.Ext(d.FileName)), "."), humanize.IBytes(uint64(d.SizeBytes)))
	}

	runes := []rune(text)
	if maxChars > 0 && len(runes) > maxChars {
		return string(runes[:maxChars]) + "\n[... truncated ...]"
	}
	return text
}

// EstimateTokens approximates the token count of a payload at four characters per token.
func EstimateTokens(msgs []entities.ChatMessage) int {
	chars := 0
	for _, m := range msgs {
		chars += len(m.Content)
	}
	return (chars + 3) / 4
}
