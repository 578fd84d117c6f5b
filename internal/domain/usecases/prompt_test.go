package usecases

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

func seededHistory(user string, n int) *HistoryTracker {
	h := NewHistoryTracker(100)
	for i := 0; i < n; i++ {
		h.Append(user, entities.RoleUser, fmt.Sprintf("h%d", i))
	}
	return h
}

func TestPromptAssembler_NoDocumentsSendsRawText(t *testing.T) {
	a := NewPromptAssembler(PromptConfig{SystemPrompt: "sys"}, &stubDocs{}, seededHistory("U1", 20))

	p := a.Assemble("U1", "  hello there ")

	require.Len(t, p.Messages, 1+15+1)
	assert.Equal(t, entities.ChatMessage{Role: entities.RoleSystem, Content: "sys"}, p.Messages[0])
	assert.Equal(t, "h5", p.Messages[1].Content)
	assert.Equal(t, entities.ChatMessage{Role: entities.RoleUser, Content: "  hello there "}, p.Messages[len(p.Messages)-1])
	assert.False(t, p.IncludesDocuments)
	assert.Zero(t, p.DocumentCount)
}

func TestPromptAssembler_WithDocuments(t *testing.T) {
	a := NewPromptAssembler(PromptConfig{SystemPrompt: "sys"}, troveDocs(), seededHistory("U1", 20))

	p := a.Assemble("U1", "What is the Trove timeline?")

	require.Len(t, p.Messages, 1+6+1)
	assert.Equal(t, entities.RoleSystem, p.Messages[0].Role)
	assert.Equal(t, "h14", p.Messages[1].Content)
	assert.Equal(t, "h19", p.Messages[6].Content)

	last := p.Messages[len(p.Messages)-1]
	assert.Equal(t, entities.RoleUser, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "What is the Trove timeline?\n\n"))
	assert.Contains(t, last.Content, "DOCUMENT: Trove Overview")
	assert.Contains(t, last.Content, "Size: 2.0 KiB")
	assert.Contains(t, last.Content, "Phase 4 Build Dec-March.")
	assert.True(t, p.IncludesDocuments)
	assert.Equal(t, 1, p.DocumentCount)
}

func TestPromptAssembler_ShortHistoryKeepsAll(t *testing.T) {
	a := NewPromptAssembler(PromptConfig{SystemPrompt: "sys"}, troveDocs(), seededHistory("U1", 2))

	p := a.Assemble("U1", "hi")
	assert.Len(t, p.Messages, 4)
	assert.Len(t, a.Assemble("U2", "hi").Messages, 2)
}

func TestPromptAssembler_Options(t *testing.T) {
	a := NewPromptAssembler(PromptConfig{SystemPrompt: "sys"}, troveDocs(), seededHistory("U1", 20))

	p := a.AssembleWith("U1", "hi", PromptOptions{ExcludeDocuments: true, HistoryWindow: 8, Note: "Note: docs omitted."})

	require.Len(t, p.Messages, 1+8+1)
	assert.Equal(t, "hi\n\nNote: docs omitted.", p.Messages[len(p.Messages)-1].Content)
	assert.False(t, p.IncludesDocuments)
}

func TestSerializeDocuments_TruncatesAndSummarizes(t *testing.T) {
	docs := []entities.Document{
		{Name: "long", FileName: "long.pdf", SizeBytes: 10, Text: strings.Repeat("x", 50)},
		{Name: "scanned", FileName: "scanned.pdf", SizeBytes: 3 << 20, Content: []byte{0x25, 0x50, 0x44, 0x46}},
	}

	out := SerializeDocuments(docs, 20)

	assert.Contains(t, out, strings.Repeat("x", 20)+"\n[... truncated ...]")
	assert.NotContains(t, out, strings.Repeat("x", 21))
	assert.Contains(t, out, `"scanned" is a pdf document of 3.0 MiB`)
	assert.NotContains(t, out, "%PDF")
	assert.Equal(t, 2, strings.Count(out, "--- CONTENT END ---"))
}

func TestEstimateTokens(t *testing.T) {
	msgs := []entities.ChatMessage{{Content: "abcd"}, {Content: "efghi"}}
	assert.Equal(t, 3, EstimateTokens(msgs))
	assert.Zero(t, EstimateTokens(nil))
}
