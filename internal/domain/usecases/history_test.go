package usecases

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varvet/trove-advisor/internal/domain/entities"
)

func TestHistoryTracker_CapEvictsOldestFirst(t *testing.T) {
	h := NewHistoryTracker(4)
	for i := 1; i <= 6; i++ {
		h.Append("U1", entities.RoleUser, fmt.Sprintf("m%d", i))
	}

	got := h.Get("U1")
	require.Len(t, got, 4)
	assert.Equal(t, "m3", got[0].Content)
	assert.Equal(t, "m6", got[3].Content)
}

func TestHistoryTracker_AppendExchange(t *testing.T) {
	h := NewHistoryTracker(0)
	h.AppendExchange("U1", "question", "answer")

	assert.Equal(t, []entities.ChatMessage{
		{Role: entities.RoleUser, Content: "question"},
		{Role: entities.RoleAssistant, Content: "answer"},
	}, h.Get("U1"))
}

func TestHistoryTracker_PerUserIsolation(t *testing.T) {
	h := NewHistoryTracker(10)
	h.Append("U1", entities.RoleUser, "from one")
	h.Append("U2", entities.RoleUser, "from two")

	assert.Len(t, h.Get("U1"), 1)
	assert.Equal(t, "from two", h.Get("U2")[0].Content)
	assert.Empty(t, h.Get("U3"))
	assert.Equal(t, 2, h.Users())
}

func TestHistoryTracker_ReturnedSliceIsStable(t *testing.T) {
	h := NewHistoryTracker(2)
	h.Append("U1", entities.RoleUser, "a")
	h.Append("U1", entities.RoleAssistant, "b")
	snapshot := h.Get("U1")

	h.Append("U1", entities.RoleUser, "c")
	snapshot = append(snapshot, entities.ChatMessage{Role: entities.RoleUser, Content: "local"})

	assert.Equal(t, "a", snapshot[0].Content)
	assert.Equal(t, "b", snapshot[1].Content)
	assert.Equal(t, []string{"b", "c"}, contents(h.Get("U1")))
}

func TestHistoryTracker_EvictOldestKeepsRecentlyInserted(t *testing.T) {
	h := NewHistoryTracker(10)
	for i := 1; i <= 5; i++ {
		h.Append(fmt.Sprintf("U%d", i), entities.RoleUser, "hi")
	}
	// Later writes by U1 do not change its insertion position.
	h.Append("U1", entities.RoleUser, "again")

	h.EvictOldest(2)

	assert.Equal(t, 2, h.Users())
	assert.Empty(t, h.Get("U1"))
	assert.Empty(t, h.Get("U3"))
	assert.NotEmpty(t, h.Get("U4"))
	assert.NotEmpty(t, h.Get("U5"))

	h.Append("U1", entities.RoleUser, "back")
	h.EvictOldest(2)
	assert.Empty(t, h.Get("U4"))
	assert.NotEmpty(t, h.Get("U1"))
}

func TestHistoryTracker_EvictOldestUnderThreshold(t *testing.T) {
	h := NewHistoryTracker(10)
	h.Append("U1", entities.RoleUser, "hi")
	h.EvictOldest(5)
	assert.Equal(t, 1, h.Users())
}

func TestHistoryTracker_ConcurrentAppends(t *testing.T) {
	h := NewHistoryTracker(1000)

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			user := fmt.Sprintf("U%d", u)
			for i := 0; i < 50; i++ {
				h.AppendExchange(user, "q", "a")
				_ = h.Get(user)
			}
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 8, h.Users())
	for u := 0; u < 8; u++ {
		assert.Len(t, h.Get(fmt.Sprintf("U%d", u)), 100)
	}
}

func contents(msgs []entities.ChatMessage) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
