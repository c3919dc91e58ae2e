package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/proto"
)

const (
	defaultMaxFrameBytes = 64 << 10
	commandQueueSize     = 16
	leaveTimeout         = 5 * time.Second
)

type bridgeOptions struct {
	maxFrameBytes int
	rateLimit     int
	log           *zerolog.Logger
	onClose       func(*Bridge)
}

// Bridge owns the lifecycle of one stream: it decodes client frames into
// commands, runs them against channels, tracks subscriptions and writes
// queued events back to the stream. The subscription set is touched only
// by the bridge's command loop.
type Bridge struct {
	client   *Client
	stream   Stream
	registry *Registry

	commands   chan *Command
	closing    chan struct{}
	closeOnce  sync.Once
	writerDone chan struct{}
	done       chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	subs    map[string]*Channel
	limiter *rateLimiter

	maxFrameBytes int
	log           zerolog.Logger
	onClose       func(*Bridge)
}

func newBridge(cl *Client, stream Stream, registry *Registry, opts bridgeOptions) *Bridge {
	if opts.maxFrameBytes <= 0 {
		opts.maxFrameBytes = defaultMaxFrameBytes
	}
	logger := zerolog.Nop()
	if opts.log != nil {
		logger = opts.log.With().
			Str("client_id", cl.ID).
			Str("user_id", string(cl.User.ID)).
			Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		client:        cl,
		stream:        stream,
		registry:      registry,
		commands:      make(chan *Command, commandQueueSize),
		closing:       make(chan struct{}),
		writerDone:    make(chan struct{}),
		done:          make(chan struct{}),
		ctx:           ctx,
		cancel:        cancel,
		subs:          make(map[string]*Channel),
		limiter:       newRateLimiter(opts.rateLimit),
		maxFrameBytes: opts.maxFrameBytes,
		log:           logger,
		onClose:       opts.onClose,
	}
}

func (b *Bridge) start() {
	go b.run()
	go b.readLoop()
	go b.writeLoop()
}

// Client returns the connection the bridge serves.
func (b *Bridge) Client() *Client { return b.client }

// Done is closed after the bridge has left all channels and released the stream.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Close asks the bridge to shut down. It does not wait; use Done for that.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.closing) })
}

// Join subscribes the connection to an existing channel.
func (b *Bridge) Join(ctx context.Context, name string) (JoinResult, error) {
	res, err := b.send(ctx, &Command{Kind: CommandJoin, Channel: name})
	return res.join, err
}

// JoinOrCreate subscribes the connection, creating the channel with topic if needed.
func (b *Bridge) JoinOrCreate(ctx context.Context, name, topic string) (JoinResult, error) {
	res, err := b.send(ctx, &Command{Kind: CommandJoinOrCreate, Channel: name, Topic: topic})
	return res.join, err
}

// Leave unsubscribes the connection and returns the channel's remaining member count.
func (b *Bridge) Leave(ctx context.Context, name string) (int, error) {
	res, err := b.send(ctx, &Command{Kind: CommandLeave, Channel: name})
	return res.count, err
}

// Post sends text to a channel the connection belongs to.
func (b *Bridge) Post(ctx context.Context, name, text string) (Message, error) {
	res, err := b.send(ctx, &Command{Kind: CommandPost, Channel: name, Text: text})
	return res.msg, err
}

// Subscriptions returns the sorted names of joined channels.
func (b *Bridge) Subscriptions(ctx context.Context) ([]string, error) {
	res, err := b.send(ctx, &Command{Kind: CommandSubscriptions})
	return res.subs, err
}

func (b *Bridge) send(ctx context.Context, cmd *Command) (commandResult, error) {
	cmd.reply = make(chan commandResult, 1)

	select {
	case b.commands <- cmd:
	case <-b.closing:
		return commandResult{}, ErrStreamClosed
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-b.done:
		select {
		case res := <-cmd.reply:
			return res, res.err
		default:
			return commandResult{}, ErrStreamClosed
		}
	case <-ctx.Done():
		return commandResult{}, ctx.Err()
	}
}

// run is the bridge's command loop.
func (b *Bridge) run() {
	for {
		select {
		case cmd := <-b.commands:
			b.handle(cmd)
		case <-b.closing:
			b.shutdown()
			return
		}
	}
}

func (b *Bridge) handle(cmd *Command) {
	res := b.execute(cmd)
	if cmd.reply != nil {
		cmd.reply <- res
		return
	}
	if res.err != nil {
		b.client.Deliver(errorEvent(cmd.Channel, res.err))
	}
}

func (b *Bridge) execute(cmd *Command) (res commandResult) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Str("channel", cmd.Channel).Msg("bridge command panicked")
			res = commandResult{err: ErrInternal}
		}
	}()

	switch cmd.Kind {
	case CommandJoin:
		ch, err := b.registry.Lookup(cmd.Channel)
		if err != nil {
			return commandResult{err: err}
		}
		join, err := ch.Join(b.ctx, b.client)
		if err != nil {
			return commandResult{err: err}
		}
		b.subs[cmd.Channel] = ch
		return commandResult{join: join}
	case CommandJoinOrCreate:
		ch, join, err := b.registry.JoinOrCreate(b.ctx, cmd.Channel, cmd.Topic, b.client)
		if err != nil {
			return commandResult{err: err}
		}
		b.subs[cmd.Channel] = ch
		return commandResult{join: join}
	case CommandLeave:
		ch, ok := b.subscription(cmd.Channel)
		if !ok {
			var err error
			if ch, err = b.registry.Lookup(cmd.Channel); err != nil {
				return commandResult{err: err}
			}
		}
		count, err := ch.Leave(b.ctx, b.client)
		if err != nil {
			return commandResult{err: err}
		}
		delete(b.subs, cmd.Channel)
		return commandResult{count: count}
	case CommandPost:
		ch, ok := b.subscription(cmd.Channel)
		if !ok {
			return commandResult{err: fmt.Errorf("channel %q: %w", cmd.Channel, ErrNotAMember)}
		}
		if !b.limiter.allow() {
			return commandResult{err: ErrRateLimited}
		}
		msg, err := ch.Post(b.ctx, b.client, cmd.Text)
		if errors.Is(err, ErrChannelClosed) || errors.Is(err, ErrNotAMember) {
			delete(b.subs, cmd.Channel)
		}
		return commandResult{msg: msg, err: err}
	case CommandPing:
		b.client.Deliver(&Event{Kind: EventPong})
		return commandResult{}
	case CommandSubscriptions:
		names := make([]string, 0, len(b.subs))
		for name := range b.subs {
			names = append(names, name)
		}
		sort.Strings(names)
		return commandResult{subs: names}
	default:
		return commandResult{err: ErrBadRequest}
	}
}

// subscription returns the joined channel called name. A subscription to a
// closed channel whose name now belongs to a new one is dropped.
func (b *Bridge) subscription(name string) (*Channel, bool) {
	ch, ok := b.subs[name]
	if !ok {
		return nil, false
	}
	if cur, err := b.registry.Lookup(name); err == nil && cur != ch {
		delete(b.subs, name)
		return nil, false
	}
	return ch, true
}

// shutdown leaves every subscribed channel before releasing the stream.
func (b *Bridge) shutdown() {
	b.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	for name, ch := range b.subs {
		if _, err := ch.Leave(ctx, b.client); err != nil {
			b.log.Warn().Err(err).Str("channel", name).Msg("leave on close")
		}
	}
	b.subs = make(map[string]*Channel)

	if err := b.stream.Close(); err != nil {
		b.log.Debug().Err(err).Msg("close stream")
	}
	<-b.writerDone

	if b.onClose != nil {
		b.onClose(b)
	}
	b.log.Debug().Uint64("dropped", b.client.Dropped()).Msg("connection closed")
	close(b.done)
}

func (b *Bridge) readLoop() {
	defer b.Close()

	for {
		frame, err := b.stream.Receive(b.ctx)
		if err != nil {
			if isStreamEnd(err) || b.ctx.Err() != nil {
				b.log.Debug().Err(err).Msg("stream ended")
			} else {
				b.log.Warn().Err(err).Msg("read frame")
			}
			return
		}

		if len(frame) > b.maxFrameBytes {
			b.client.Deliver(errorEvent("", protocolError("frame too large")))
			continue
		}
		in, err := proto.DecodeInbound(frame)
		if err != nil {
			b.client.Deliver(errorEvent("", protocolError("malformed frame")))
			continue
		}
		cmd, perr := commandFromInbound(in)
		if perr != nil {
			b.client.Deliver(errorEvent("", perr))
			continue
		}

		select {
		case b.commands <- cmd:
		case <-b.closing:
			return
		}
	}
}

func (b *Bridge) writeLoop() {
	defer close(b.writerDone)

	for {
		select {
		case ev := <-b.client.Events:
			frame, err := proto.EncodeOutbound(outboundFromEvent(ev))
			if err != nil {
				b.log.Error().Err(err).Msg("encode event")
				continue
			}
			if err := b.stream.Send(b.ctx, frame); err != nil {
				if !isStreamEnd(err) && b.ctx.Err() == nil {
					b.log.Warn().Err(err).Msg("write frame")
				}
				b.Close()
				return
			}
		case <-b.closing:
			return
		}
	}
}

func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrStreamClosed) || errors.Is(err, context.Canceled)
}
