// Package entities contains core business entities.
// These are pure domain objects with no external dependencies.
package entities

import "time"

// Document represents a reference document loaded from the documents directory.
// A Document is immutable after load; identity is its FileName.
type Document struct {
	Name         string // display name, file name without extension
	FileName     string
	Path         string
	SizeBytes    int64
	Content      []byte // raw file bytes, never sent to the completion API
	Text         string // extracted plain text
	LastModified time.Time
}

// DocumentMetadata is the public view of a Document.
type DocumentMetadata struct {
	Name         string    `json:"name"`
	FileName     string    `json:"file_name"`
	Size         string    `json:"size"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
}

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage represents a conversation turn.
type ChatMessage struct {
	Role    Role
	Content string
}

// RequestPayload is the ordered message list for one completion request.
// Messages[0] is always the system block and the last entry is the current user block.
type RequestPayload struct {
	UserID            string
	UserText          string
	Messages          []ChatMessage
	IncludesDocuments bool
	DocumentCount     int
}

// CompletionRequest is what a provider receives.
type CompletionRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float32
}

// ReplyTarget identifies where a reply goes. An empty ThreadTimeStamp posts to the channel.
type ReplyTarget struct {
	ChannelID       string
	ThreadTimeStamp string
}
