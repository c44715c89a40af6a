// Package client provides the client-side pieces of the messaging service:
// an ordered conversation store that reconciles fetched history with live
// push events, and an SSE subscriber that feeds it.
package client

import (
	"sort"
	"sync"

	"messaging-service/internal/models"
)

// Conversation holds the ordered messages for one open conversation between
// self and a single counterpart. History loads and live pushes are merged,
// deduplicated by message id, and kept sorted ascending by creation time.
type Conversation struct {
	mu          sync.Mutex
	selfID      string
	counterpart string
	messages    []models.Message
	seen        map[int64]struct{}

	// Notify is invoked for pushed messages that belong to a different
	// conversation. It must not call back into the store.
	Notify func(models.Message)
}

// NewConversation creates a store for the conversation between selfID and
// counterpartID.
func NewConversation(selfID, counterpartID string) *Conversation {
	return &Conversation{
		selfID:      selfID,
		counterpart: counterpartID,
		seen:        make(map[int64]struct{}),
	}
}

// Load replaces the current sequence with fetched history, sorted ascending
// by creation time. The sort is stable, so equal timestamps keep their
// fetch order.
func (c *Conversation) Load(history []models.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = c.messages[:0]
	c.seen = make(map[int64]struct{}, len(history))
	for _, msg := range history {
		if _, dup := c.seen[msg.ID]; dup {
			continue
		}
		c.seen[msg.ID] = struct{}{}
		c.messages = append(c.messages, msg)
	}
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})
}

// Append merges one message into the sequence: live push events and the
// synchronous response of a send both land here. Messages already present
// (same id) are ignored, so a message that arrives through both paths is
// displayed once. A pushed message from a different conversation is not
// stored; it is handed to Notify instead. Reports whether the message was
// added.
func (c *Conversation) Append(msg models.Message) bool {
	c.mu.Lock()

	if !c.belongs(msg) {
		notify := c.Notify
		c.mu.Unlock()
		if notify != nil {
			notify(msg)
		}
		return false
	}

	defer c.mu.Unlock()
	if _, dup := c.seen[msg.ID]; dup {
		return false
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	// Pushes are normally newer than everything present, so this is a
	// cheap re-sort in the common case.
	sort.SliceStable(c.messages, func(i, j int) bool {
		return c.messages[i].CreatedAt.Before(c.messages[j].CreatedAt)
	})
	return true
}

func (c *Conversation) belongs(msg models.Message) bool {
	switch msg.FromUserID {
	case c.counterpart:
		return msg.ToUserID == c.selfID
	case c.selfID:
		return msg.ToUserID == c.counterpart
	default:
		return false
	}
}

// Messages returns a copy of the current ordered sequence.
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len reports the number of stored messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Clear empties the store, called when the user navigates away from the
// conversation.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.seen = make(map[int64]struct{})
}
