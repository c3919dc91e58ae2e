package core

import (
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultOutboundQueue = 64

// Client is one live connection as seen by channels: an owner and a
// bounded outbound queue. A user may hold several clients at once.
type Client struct {
	ID     string
	User   User
	Events chan *Event

	dropped atomic.Uint64
	rec     Recorder
}

// NewClient constructs a client with an outbound queue of queueSize events.
func NewClient(user User, queueSize int, rec Recorder) *Client {
	if queueSize <= 0 {
		queueSize = defaultOutboundQueue
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Client{
		ID:     uuid.NewString(),
		User:   user,
		Events: make(chan *Event, queueSize),
		rec:    rec,
	}
}

// Deliver enqueues ev without blocking. When the queue is full the event is
// dropped for this client only and the drop is counted.
func (c *Client) Deliver(ev *Event) bool {
	select {
	case c.Events <- ev:
		return true
	default:
		c.dropped.Add(1)
		c.rec.EventDropped()
		return false
	}
}

// Dropped returns how many events were discarded for this client.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}
