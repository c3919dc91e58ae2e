package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInboxSize       = 64
	defaultMaxMessageBytes = 4096
)

// ChannelState is the lifecycle state of a channel.
type ChannelState int

const (
	ChannelActive ChannelState = iota
	ChannelClosed
)

func (s ChannelState) String() string {
	if s == ChannelClosed {
		return "closed"
	}
	return "active"
}

// Info is a read-only snapshot of a channel. It may be stale by the time
// the caller looks at it.
type Info struct {
	Name        string
	Topic       string
	MemberCount int
	CreatedAt   time.Time
}

// JoinResult is returned to a joining connection for display.
type JoinResult struct {
	Name        string
	Topic       string
	MemberCount int
}

type channelOptions struct {
	inboxSize       int
	maxMessageBytes int
	log             *zerolog.Logger
	rec             Recorder
	now             func() time.Time
}

// Channel owns the membership of one named topic. All state below the
// mailbox is touched only by the channel's own goroutine.
type Channel struct {
	name      string
	topic     string
	createdAt time.Time

	inbox chan func()
	done  chan struct{}

	maxMessageBytes int
	log             zerolog.Logger
	rec             Recorder
	now             func() time.Time

	members map[*Client]struct{}
	seq     uint64
	state   ChannelState
}

func newChannel(name, topic string, opts channelOptions) *Channel {
	if opts.inboxSize <= 0 {
		opts.inboxSize = defaultInboxSize
	}
	if opts.maxMessageBytes <= 0 {
		opts.maxMessageBytes = defaultMaxMessageBytes
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	logger := zerolog.Nop()
	if opts.log != nil {
		logger = opts.log.With().Str("channel", name).Logger()
	}
	if opts.rec == nil {
		opts.rec = nopRecorder{}
	}

	c := &Channel{
		name:            name,
		topic:           topic,
		createdAt:       opts.now(),
		inbox:           make(chan func(), opts.inboxSize),
		done:            make(chan struct{}),
		maxMessageBytes: opts.maxMessageBytes,
		log:             logger,
		rec:             opts.rec,
		now:             opts.now,
		members:         make(map[*Client]struct{}),
	}
	go c.run()
	return c
}

// Name returns the channel's name.
func (c *Channel) Name() string { return c.name }

// Topic returns the channel's topic.
func (c *Channel) Topic() string { return c.topic }

// Done is closed once the channel has stopped.
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) run() {
	defer close(c.done)
	for op := range c.inbox {
		op()
		if c.state == ChannelClosed {
			return
		}
	}
}

// do runs fn on the channel goroutine and waits for it to finish.
// A panic inside fn is contained to this operation.
func (c *Channel) do(ctx context.Context, op string, fn func() error) error {
	reply := make(chan error, 1)
	req := func() {
		reply <- c.safely(op, fn)
	}

	select {
	case c.inbox <- req:
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrChannelClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Channel) safely(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("op", op).Interface("panic", r).Msg("channel operation panicked")
			err = fmt.Errorf("%s: %w", op, ErrInternal)
		}
	}()
	return fn()
}

// Join adds cl to the members. Joining twice is a no-op; the joiner is
// always sent a joined event carrying the topic and member count, other
// members only when the membership actually changed.
func (c *Channel) Join(ctx context.Context, cl *Client) (JoinResult, error) {
	var res JoinResult
	err := c.do(ctx, "join", func() error {
		if c.state == ChannelClosed {
			return ErrChannelClosed
		}
		_, already := c.members[cl]
		c.members[cl] = struct{}{}

		ev := &Event{
			Kind:        EventJoined,
			Channel:     c.name,
			User:        cl.User.ID,
			Topic:       c.topic,
			MemberCount: len(c.members),
		}
		if already {
			cl.Deliver(ev)
		} else {
			c.broadcast(ev)
		}
		res = JoinResult{Name: c.name, Topic: c.topic, MemberCount: len(c.members)}
		return nil
	})
	return res, err
}

// Leave removes cl from the members and returns the remaining count.
// Leaving a channel one is not a member of, or a closed one, is a no-op.
func (c *Channel) Leave(ctx context.Context, cl *Client) (int, error) {
	var count int
	err := c.do(ctx, "leave", func() error {
		if _, ok := c.members[cl]; !ok {
			count = len(c.members)
			return nil
		}
		delete(c.members, cl)
		count = len(c.members)

		ev := &Event{Kind: EventLeft, Channel: c.name, User: cl.User.ID, MemberCount: count}
		c.broadcast(ev)
		cl.Deliver(ev)
		return nil
	})
	if errors.Is(err, ErrChannelClosed) {
		return 0, nil
	}
	return count, err
}

// Post delivers text from sender to every member, in the order posts reach
// the channel. Delivery is best-effort per member.
func (c *Channel) Post(ctx context.Context, sender *Client, text string) (Message, error) {
	var msg Message
	err := c.do(ctx, "post", func() error {
		if c.state == ChannelClosed {
			return ErrChannelClosed
		}
		if _, ok := c.members[sender]; !ok {
			return ErrNotAMember
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("empty message: %w", ErrBadRequest)
		}
		if len(text) > c.maxMessageBytes {
			return fmt.Errorf("message exceeds %d bytes: %w", c.maxMessageBytes, ErrBadRequest)
		}
		c.seq++
		msg = Message{
			Seq:        c.seq,
			Channel:    c.name,
			From:       sender.User.ID,
			FromName:   sender.User.DisplayName,
			Text:       text,
			ServerTime: c.now().UTC(),
		}
		c.broadcast(&Event{Kind: EventMessage, Channel: c.name, Message: msg})
		c.rec.MessagePosted()
		return nil
	})
	return msg, err
}

// Describe returns a snapshot of the channel.
func (c *Channel) Describe(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, "describe", func() error {
		info = Info{
			Name:        c.name,
			Topic:       c.topic,
			MemberCount: len(c.members),
			CreatedAt:   c.createdAt,
		}
		return nil
	})
	return info, err
}

// Close moves the channel to the closed state, notifies and drops every
// member and stops the channel goroutine.
func (c *Channel) Close(ctx context.Context) error {
	err := c.do(ctx, "close", func() error {
		c.broadcast(&Event{Kind: EventClosed, Channel: c.name})
		c.members = make(map[*Client]struct{})
		c.state = ChannelClosed
		return nil
	})
	if errors.Is(err, ErrChannelClosed) {
		return nil
	}
	return err
}

// broadcast sends an event to all members without blocking.
func (c *Channel) broadcast(ev *Event) {
	for member := range c.members {
		if !member.Deliver(ev) {
			c.log.Debug().Str("client_id", member.ID).Str("event", ev.Kind.String()).Msg("dropped event for slow member")
		}
	}
}
