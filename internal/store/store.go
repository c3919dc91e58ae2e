package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// User represents a resolved login identity.
type User struct {
	ID          string
	ExternalID  string
	DisplayName string
	CreatedAt   time.Time
}

// Channel is the catalog record of an administratively provisioned channel.
// Membership and messages are never persisted.
type Channel struct {
	Name      string
	Topic     string
	CreatedAt time.Time
}

// UserStore handles user persistence.
type UserStore interface {
	// PutUserIfAbsent inserts u unless a user with the same ID already
	// exists, and returns the stored record either way.
	PutUserIfAbsent(ctx context.Context, u *User) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*User, error)
}

// ChannelStore handles the channel catalog.
type ChannelStore interface {
	// SaveChannel records a provisioned channel.
	SaveChannel(ctx context.Context, ch *Channel) error

	// DeleteChannel removes a channel from the catalog. Missing names are ignored.
	DeleteChannel(ctx context.Context, name string) error

	// ListChannels returns catalog entries ordered by creation time.
	ListChannels(ctx context.Context) ([]*Channel, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ChannelStore

	// Close closes the underlying database connection.
	Close() error
}
