package hub

import (
	"errors"
	"sync"
)

var (
	// ErrClientGone means the client was closed before the send.
	ErrClientGone = errors.New("client gone")
	// ErrBufferFull means the client's outbound buffer is saturated,
	// usually a reader that stopped draining its socket.
	ErrBufferFull = errors.New("client send buffer full")
)

// Client is one local WebSocket participant. Payloads queued with Send
// are drained by the connection's write pump; the hub never blocks on a
// slow consumer.
type Client struct {
	ID     string
	RoomID string

	mu       sync.Mutex
	username string
	language string
	closed   bool
	send     chan []byte
}

// NewClient creates a client with an outbound buffer of the given size.
func NewClient(id, roomID, language, username string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:       id,
		RoomID:   roomID,
		language: language,
		username: username,
		send:     make(chan []byte, buffer),
	}
}

// Send queues a payload for delivery. It never blocks: a closed client
// returns ErrClientGone and a saturated buffer returns ErrBufferFull.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientGone
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrBufferFull
	}
}

// Outbound is the channel the write pump drains. It is closed when the
// client is closed.
func (c *Client) Outbound() <-chan []byte {
	return c.send
}

// Close shuts the outbound channel. Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Language returns the client's current preferred language.
func (c *Client) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// SetLanguage updates the client's preferred language.
func (c *Client) SetLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = lang
}

// Username returns the client's display name.
func (c *Client) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}
