package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/store"
)

const hubQueueSize = 64

// Options configures a Hub. Zero values pick defaults.
type Options struct {
	Logger *zerolog.Logger
	// Users persists resolved identities. Nil keeps them in memory.
	Users store.UserStore
	// Catalog records administratively created channels so they can be
	// seeded again on the next start. Nil disables it.
	Catalog  store.ChannelStore
	Recorder Recorder

	OutboundQueueSize  int
	InboundQueueSize   int
	MaxMessageBytes    int
	MaxFrameBytes      int
	RateLimitPerMinute int

	// Now overrides the clock used for message timestamps.
	Now func() time.Time
}

// ChannelSeed is a channel provisioned at startup.
type ChannelSeed struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Topic string `mapstructure:"topic" yaml:"topic"`
}

// Greeting is the answer to Hello.
type Greeting struct {
	UserID      UserID
	DisplayName string
	Connections int
}

// Stats is a diagnostic snapshot.
type Stats struct {
	Channels      int
	Connections   int
	Users         int
	DroppedEvents uint64
}

// Hub is the single entry point of the chat core. It owns the channel and
// identity registries and tracks live connections per user. Construct it
// once and pass it to every transport; Run must be running for
// connection-scoped calls to make progress.
type Hub struct {
	identities *Identities
	registry   *Registry
	catalog    store.ChannelStore
	tally      *tally
	log        zerolog.Logger
	opts       Options

	requests chan func()
	stopped  chan struct{}

	// owned by Run
	conns    map[UserID][]*Bridge
	lastSeen map[UserID]time.Time
}

// NewHub creates a new chat hub instance.
func NewHub(opts Options) *Hub {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	t := newTally(opts.Recorder)

	return &Hub{
		identities: NewIdentities(opts.Users),
		registry: NewRegistry(channelOptions{
			inboxSize:       opts.InboundQueueSize,
			maxMessageBytes: opts.MaxMessageBytes,
			log:             &logger,
			rec:             t,
			now:             opts.Now,
		}),
		catalog:  opts.Catalog,
		tally:    t,
		log:      logger,
		opts:     opts,
		requests: make(chan func(), hubQueueSize),
		stopped:  make(chan struct{}),
		conns:    make(map[UserID][]*Bridge),
		lastSeen: make(map[UserID]time.Time),
	}
}

// Run processes connection bookkeeping until ctx is cancelled. On exit it
// closes every open connection and channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case req := <-h.requests:
			h.safely(req)
		case <-ctx.Done():
			h.shutdown()
			return
		}
	}
}

func (h *Hub) shutdown() {
	for _, bridges := range h.conns {
		for _, b := range bridges {
			b.Close()
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), leaveTimeout)
	defer cancel()
	h.registry.CloseAll(ctx)
	h.log.Info().Msg("hub stopped")
}

func (h *Hub) safely(req func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("hub request panicked")
		}
	}()
	req()
}

// do runs fn on the hub goroutine and waits for it.
func (h *Hub) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	var panicked bool
	req := func() {
		defer close(finished)
		defer func() {
			if r := recover(); r != nil {
				panicked = true
				h.log.Error().Interface("panic", r).Msg("hub request panicked")
			}
		}()
		fn()
	}

	select {
	case h.requests <- req:
	case <-h.stopped:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		if panicked {
			return ErrInternal
		}
		return nil
	case <-h.stopped:
		select {
		case <-finished:
			if panicked {
				return ErrInternal
			}
			return nil
		default:
			return ErrUnavailable
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterUser resolves an external identity to a user id.
func (h *Hub) RegisterUser(ctx context.Context, externalID, displayName string) (UserID, error) {
	id, err := h.identities.Resolve(ctx, externalID, displayName)
	if err != nil {
		return "", err
	}
	h.log.Debug().Str("user_id", string(id)).Msg("user resolved")
	return id, nil
}

// User returns the record of a registered user.
func (h *Hub) User(ctx context.Context, id UserID) (User, error) {
	return h.identities.Lookup(ctx, id)
}

// Hello acknowledges a user and records presence.
func (h *Hub) Hello(ctx context.Context, id UserID) (Greeting, error) {
	user, err := h.identities.Lookup(ctx, id)
	if err != nil {
		return Greeting{}, err
	}
	g := Greeting{UserID: user.ID, DisplayName: user.DisplayName}
	err = h.do(ctx, func() {
		h.lastSeen[id] = time.Now()
		g.Connections = len(h.conns[id])
	})
	return g, err
}

// LastSeen returns when the user last said hello or connected.
func (h *Hub) LastSeen(ctx context.Context, id UserID) (time.Time, bool, error) {
	var (
		at time.Time
		ok bool
	)
	err := h.do(ctx, func() {
		at, ok = h.lastSeen[id]
	})
	return at, ok, err
}

// ListChannels returns a snapshot of all channels ordered by creation.
func (h *Hub) ListChannels(ctx context.Context, _ UserID) ([]Info, error) {
	return h.registry.List(ctx)
}

// ChannelInfo describes one channel.
func (h *Hub) ChannelInfo(ctx context.Context, _ UserID, name string) (Info, error) {
	ch, err := h.registry.Lookup(name)
	if err != nil {
		return Info{}, err
	}
	info, err := ch.Describe(ctx)
	if errors.Is(err, ErrChannelClosed) {
		return Info{}, fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	return info, err
}

// Join subscribes the user's active connection to an existing channel.
func (h *Hub) Join(ctx context.Context, id UserID, name string) (JoinResult, error) {
	b, err := h.activeBridge(ctx, id)
	if err != nil {
		return JoinResult{}, err
	}
	return b.Join(ctx, name)
}

// JoinOrCreate subscribes the user's active connection, creating the channel if needed.
func (h *Hub) JoinOrCreate(ctx context.Context, id UserID, name, topic string) (JoinResult, error) {
	b, err := h.activeBridge(ctx, id)
	if err != nil {
		return JoinResult{}, err
	}
	return b.JoinOrCreate(ctx, name, topic)
}

// Leave unsubscribes the user's active connection from a channel.
func (h *Hub) Leave(ctx context.Context, id UserID, name string) (int, error) {
	b, err := h.activeBridge(ctx, id)
	if err != nil {
		return 0, err
	}
	return b.Leave(ctx, name)
}

// activeBridge returns the user's most recently opened connection.
func (h *Hub) activeBridge(ctx context.Context, id UserID) (*Bridge, error) {
	var b *Bridge
	err := h.do(ctx, func() {
		if bridges := h.conns[id]; len(bridges) > 0 {
			b = bridges[len(bridges)-1]
		}
	})
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrNotConnected
	}
	return b, nil
}

// Connect binds stream to the user and starts serving it. It returns as
// soon as the bridge is running.
func (h *Hub) Connect(ctx context.Context, id UserID, stream Stream) (*Bridge, error) {
	user, err := h.identities.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	client := NewClient(user, h.opts.OutboundQueueSize, h.tally)
	b := newBridge(client, stream, h.registry, bridgeOptions{
		maxFrameBytes: h.opts.MaxFrameBytes,
		rateLimit:     h.opts.RateLimitPerMinute,
		log:           &h.log,
		onClose:       h.unregister,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Once queued, the registration runs even if ctx is cancelled, so it
	// must not be abandoned half way.
	if err := h.do(context.WithoutCancel(ctx), func() {
		h.conns[id] = append(h.conns[id], b)
		h.lastSeen[id] = time.Now()
	}); err != nil {
		return nil, err
	}

	h.tally.ConnectionOpened()
	b.start()
	if err := ctx.Err(); err != nil {
		b.Close()
		<-b.Done()
		return nil, err
	}
	h.log.Info().Str("user_id", string(id)).Str("client_id", client.ID).Msg("client connected")
	return b, nil
}

// ConnectAndWait is Connect followed by waiting for the stream to close or
// ctx to be cancelled.
func (h *Hub) ConnectAndWait(ctx context.Context, id UserID, stream Stream) error {
	b, err := h.Connect(ctx, id, stream)
	if err != nil {
		return err
	}
	select {
	case <-b.Done():
	case <-ctx.Done():
		b.Close()
		<-b.Done()
	}
	return nil
}

func (h *Hub) unregister(b *Bridge) {
	h.tally.ConnectionClosed()
	id := b.client.User.ID
	remove := func() {
		bridges := h.conns[id]
		for i, other := range bridges {
			if other == b {
				bridges = append(bridges[:i], bridges[i+1:]...)
				break
			}
		}
		if len(bridges) == 0 {
			delete(h.conns, id)
		} else {
			h.conns[id] = bridges
		}
	}
	// Run may be gone already during shutdown; nothing to clean then.
	_ = h.do(context.Background(), remove)
	h.log.Info().Str("user_id", string(id)).Str("client_id", b.client.ID).Msg("client disconnected")
}

// NewChannel provisions a channel out of band. The name must be free.
func (h *Hub) NewChannel(ctx context.Context, name, topic string) (Info, error) {
	ch, err := h.registry.Create(name, topic)
	if err != nil {
		return Info{}, err
	}
	if h.catalog != nil {
		rec := &store.Channel{Name: name, Topic: topic, CreatedAt: ch.createdAt}
		if err := h.catalog.SaveChannel(ctx, rec); err != nil {
			h.log.Warn().Err(err).Str("channel", name).Msg("failed to record channel")
		}
	}
	return ch.Describe(ctx)
}

// CloseChannel closes a channel, notifying and dropping its members, and
// frees the name.
func (h *Hub) CloseChannel(ctx context.Context, name string) error {
	if err := h.registry.Remove(ctx, name); err != nil {
		return err
	}
	if h.catalog != nil {
		if err := h.catalog.DeleteChannel(ctx, name); err != nil {
			h.log.Warn().Err(err).Str("channel", name).Msg("failed to drop channel record")
		}
	}
	h.log.Info().Str("channel", name).Msg("channel closed")
	return nil
}

// Seed creates the catalog's channels followed by seeds. Names that already
// exist are skipped.
func (h *Hub) Seed(ctx context.Context, seeds []ChannelSeed) error {
	var all []ChannelSeed
	if h.catalog != nil {
		recorded, err := h.catalog.ListChannels(ctx)
		if err != nil {
			return fmt.Errorf("load channel catalog: %w", err)
		}
		for _, rec := range recorded {
			all = append(all, ChannelSeed{Name: rec.Name, Topic: rec.Topic})
		}
	}
	all = append(all, seeds...)

	for _, seed := range all {
		if _, err := h.registry.Create(seed.Name, seed.Topic); err != nil {
			if errors.Is(err, ErrChannelExists) {
				continue
			}
			return fmt.Errorf("seed channel %q: %w", seed.Name, err)
		}
	}
	return nil
}

// Stats returns diagnostic counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	s := Stats{
		Channels:      h.registry.Len(),
		DroppedEvents: h.tally.dropped.Load(),
	}
	err := h.do(ctx, func() {
		for _, bridges := range h.conns {
			s.Connections += len(bridges)
		}
		s.Users = len(h.conns)
	})
	return s, err
}
