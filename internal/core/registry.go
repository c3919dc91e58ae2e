package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode"
	"unicode/utf8"
)

const maxChannelNameBytes = 64

// Registry maps channel names to channels. The name map is the only shared
// structure in the core guarded by a lock; everything else is owned by a
// single goroutine.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
	order    []*Channel // creation order

	opts channelOptions
}

// NewRegistry creates an empty registry whose channels use opts.
func NewRegistry(opts channelOptions) *Registry {
	if opts.rec == nil {
		opts.rec = nopRecorder{}
	}
	return &Registry{
		channels: make(map[string]*Channel),
		opts:     opts,
	}
}

// ValidateChannelName reports whether name can be used for a channel.
func ValidateChannelName(name string) error {
	if name == "" || len(name) > maxChannelNameBytes || !utf8.ValidString(name) {
		return fmt.Errorf("invalid channel name %q: %w", name, ErrBadRequest)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("invalid channel name %q: %w", name, ErrBadRequest)
		}
	}
	return nil
}

// Create registers a new active channel. It fails with ErrChannelExists if
// the name is taken.
func (r *Registry) Create(name, topic string) (*Channel, error) {
	if err := ValidateChannelName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[name]; ok {
		return nil, fmt.Errorf("channel %q: %w", name, ErrChannelExists)
	}
	return r.insertLocked(name, topic), nil
}

// loadOrCreate returns the channel called name, creating it with topic if
// absent. The check and the insert happen under one lock.
func (r *Registry) loadOrCreate(name, topic string) (*Channel, bool, error) {
	if err := ValidateChannelName(name); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[name]; ok {
		return ch, false, nil
	}
	return r.insertLocked(name, topic), true, nil
}

func (r *Registry) insertLocked(name, topic string) *Channel {
	ch := newChannel(name, topic, r.opts)
	r.channels[name] = ch
	r.order = append(r.order, ch)
	r.opts.rec.ChannelCreated()
	if r.opts.log != nil {
		r.opts.log.Info().Str("channel", name).Str("topic", topic).Msg("channel created")
	}
	return ch
}

// JoinOrCreate makes sure a channel called name exists and joins cl to it.
// The topic is used only when the channel is created by this call.
func (r *Registry) JoinOrCreate(ctx context.Context, name, topic string, cl *Client) (*Channel, JoinResult, error) {
	// A concurrent Remove may close the channel between lookup and join;
	// retry against the fresh entry.
	for attempt := 0; attempt < 3; attempt++ {
		ch, _, err := r.loadOrCreate(name, topic)
		if err != nil {
			return nil, JoinResult{}, err
		}
		res, err := ch.Join(ctx, cl)
		if errors.Is(err, ErrChannelClosed) {
			continue
		}
		if err != nil {
			return nil, JoinResult{}, err
		}
		return ch, res, nil
	}
	return nil, JoinResult{}, fmt.Errorf("channel %q: %w", name, ErrChannelClosed)
}

// Lookup returns the channel called name or ErrNotFound.
func (r *Registry) Lookup(name string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return nil, fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	return ch, nil
}

// List describes every channel, ordered by creation time. Channels closed
// while the listing runs are skipped.
func (r *Registry) List(ctx context.Context) ([]Info, error) {
	r.mu.Lock()
	snapshot := make([]*Channel, len(r.order))
	copy(snapshot, r.order)
	r.mu.Unlock()

	infos := make([]Info, 0, len(snapshot))
	for _, ch := range snapshot {
		info, err := ch.Describe(ctx)
		if errors.Is(err, ErrChannelClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Remove unregisters the channel called name and closes it.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	ch, ok := r.channels[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("channel %q: %w", name, ErrNotFound)
	}
	r.removeLocked(ch)
	r.mu.Unlock()

	return ch.Close(ctx)
}

func (r *Registry) removeLocked(ch *Channel) {
	delete(r.channels, ch.name)
	for i, c := range r.order {
		if c == ch {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.opts.rec.ChannelRemoved()
}

// CloseAll closes every channel and empties the registry.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := r.order
	r.order = nil
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, ch := range all {
		r.opts.rec.ChannelRemoved()
		if err := ch.Close(ctx); err != nil && r.opts.log != nil {
			r.opts.log.Warn().Err(err).Str("channel", ch.name).Msg("close channel")
		}
	}
}
