// Package chat keeps a bounded in-memory log of broadcast chat messages,
// independent of poll state.
package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classpulse/backend/internal/apperr"
	"github.com/classpulse/backend/internal/models"
)

// DefaultHistoryLimit is the number of messages retained when no limit is
// configured.
const DefaultHistoryLimit = 50

// Buffer is a mutex-guarded ring of the most recent messages; the oldest is
// evicted first once the bound is exceeded.
type Buffer struct {
	mu       sync.Mutex
	limit    int
	messages []models.ChatMessage
	now      func() time.Time
}

// NewBuffer creates a chat buffer retaining at most limit messages.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Buffer{limit: limit, now: time.Now}
}

// Add appends a message with a fresh id and timestamp. Empty text after
// trimming is rejected.
func (b *Buffer) Add(role models.Role, name, text string) (models.ChatMessage, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return models.ChatMessage{}, apperr.Validation("message cannot be empty")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      role,
		Message:   trimmed,
		Timestamp: b.now().UnixMilli(),
	}
	b.messages = append(b.messages, msg)
	if len(b.messages) > b.limit {
		b.messages = b.messages[len(b.messages)-b.limit:]
	}
	return msg, nil
}

// History returns the retained messages in chronological order.
func (b *Buffer) History() []models.ChatMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.ChatMessage, len(b.messages))
	copy(out, b.messages)
	return out
}
