package push

import (
	"errors"
	"sync"

	"messaging-service/internal/models"
)

var (
	// ErrChannelClosed is returned when sending on a closed channel.
	// Callers treat it as a no-op: the message is already stored.
	ErrChannelClosed = errors.New("live channel closed")
	// ErrChannelFull is returned when the channel buffer is exhausted.
	ErrChannelFull = errors.New("live channel buffer full")
)

const defaultBuffer = 16

// Channel is the handle for one recipient's live delivery stream.
type Channel struct {
	events chan models.Message
	done   chan struct{}
	once   sync.Once
}

func newChannel(buffer int) *Channel {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Channel{
		events: make(chan models.Message, buffer),
		done:   make(chan struct{}),
	}
}

// Send queues a message for delivery. It never blocks: a closed channel
// returns ErrChannelClosed, a full buffer ErrChannelFull.
func (c *Channel) Send(msg models.Message) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.events <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	default:
		return ErrChannelFull
	}
}

// Events exposes the delivery stream to the transport.
func (c *Channel) Events() <-chan models.Message {
	return c.events
}

// Done is closed when the channel is closed (disconnect or replacement).
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close shuts the channel down. Safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() { close(c.done) })
}

// Registry maps a recipient id to its single active live channel. It is an
// injectable service so tests can run independent instances side by side.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	buffer   int
}

// NewRegistry creates an empty registry.
func NewRegistry(buffer int) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		buffer:   buffer,
	}
}

// Register opens a channel for the recipient, replacing and closing any
// previous registration. Last registration wins.
func (r *Registry) Register(recipientID string) *Channel {
	ch := newChannel(r.buffer)
	r.mu.Lock()
	old := r.channels[recipientID]
	r.channels[recipientID] = ch
	r.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return ch
}

// Unregister removes the registration only if the stored handle still
// matches, so a stale disconnect cannot clobber a newer registration.
func (r *Registry) Unregister(recipientID string, ch *Channel) {
	if ch == nil {
		return
	}
	r.mu.Lock()
	if r.channels[recipientID] == ch {
		delete(r.channels, recipientID)
	}
	r.mu.Unlock()
	ch.Close()
}

// Lookup returns the active channel for a recipient, if any.
func (r *Registry) Lookup(recipientID string) (*Channel, bool) {
	r.mu.RLock()
	ch, ok := r.channels[recipientID]
	r.mu.RUnlock()
	return ch, ok
}

// Active reports the number of registered channels.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
