package usecases

import (
	"sync"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

// DefaultMaxHistoryEntries caps each user's history.
const DefaultMaxHistoryEntries = 20

// HistoryTracker keeps a bounded, per-user ordered log of chat messages.
// Every write stores a fresh slice, so slices returned by Get are never mutated.
type HistoryTracker struct {
	mu         sync.Mutex
	maxEntries int
	byUser     map[string][]entities.ChatMessage
	order      []string // user ids in first-insertion order
}

// NewHistoryTracker creates a tracker capping each user at maxEntries messages.
func NewHistoryTracker(maxEntries int) *HistoryTracker {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxHistoryEntries
	}
	return &HistoryTracker{
		maxEntries: maxEntries,
		byUser:     make(map[string][]entities.ChatMessage),
	}
}

// Append adds one message to the user's history, evicting the oldest entries over the cap.
func (h *HistoryTracker) Append(userID string, role entities.Role, content string) {
	h.appendLocked(userID, entities.ChatMessage{Role: role, Content: content})
}

// AppendExchange records a user message and the assistant reply as one write.
func (h *HistoryTracker) AppendExchange(userID, userText, reply string) {
	h.appendLocked(userID,
		entities.ChatMessage{Role: entities.RoleUser, Content: userText},
		entities.ChatMessage{Role: entities.RoleAssistant, Content: reply},
	)
}

func (h *HistoryTracker) appendLocked(userID string, msgs ...entities.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, seen := h.byUser[userID]
	if !seen {
		h.order = append(h.order, userID)
	}

	next := make([]entities.ChatMessage, 0, len(prev)+len(msgs))
	next = append(next, prev...)
	next = append(next, msgs...)
	if over := len(next) - h.maxEntries; over > 0 {
		next = next[over:]
	}
	h.byUser[userID] = next
}

// Get returns the user's history, oldest first. Unknown users get an empty slice.
func (h *HistoryTracker) Get(userID string) []entities.ChatMessage {
	h.mu.Lock()
	s := h.byUser[userID]
	h.mu.Unlock()
	return s[:len(s):len(s)]
}

// Users returns the number of tracked users.
func (h *HistoryTracker) Users() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser)
}

// EvictOldest keeps only the maxUsers most recently inserted users.
func (h *HistoryTracker) EvictOldest(maxUsers int) {
	if maxUsers < 0 {
		maxUsers = 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.order) <= maxUsers {
		return
	}
	drop := len(h.order) - maxUsers
	for _, id := range h.order[:drop] {
		delete(h.byUser, id)
	}
	h.order = append([]string(nil), h.order[drop:]...)
}
