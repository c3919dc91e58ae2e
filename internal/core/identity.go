package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vovakirdan/channelchat/internal/store"
)

const (
	maxExternalIDBytes = 256
	maxDisplayNameRune = 64
)

// identityNamespace seeds the name-based UUIDs that become user ids.
// Changing it changes every user id.
var identityNamespace = uuid.MustParse("6f1c7a52-3b7e-4f0e-9d0a-5f2f8d3c9e41")

// UserID is the stable internal identifier of a user.
type UserID string

// User is a resolved login identity. Immutable once created.
type User struct {
	ID          UserID
	ExternalID  string
	DisplayName string
	CreatedAt   time.Time
}

// Identities resolves external login identities to users.
// Safe for concurrent use.
type Identities struct {
	mu    sync.Mutex
	users map[UserID]User
	store store.UserStore
}

// NewIdentities creates a registry. st may be nil, in which case users
// live only in memory.
func NewIdentities(st store.UserStore) *Identities {
	return &Identities{
		users: make(map[UserID]User),
		store: st,
	}
}

// UserIDFor returns the id a given external identity resolves to.
func UserIDFor(externalID string) UserID {
	return UserID(uuid.NewSHA1(identityNamespace, []byte(externalID)).String())
}

// Resolve returns the user id for externalID, creating the user on first sight.
func (r *Identities) Resolve(ctx context.Context, externalID, displayName string) (UserID, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" || len(externalID) > maxExternalIDBytes || !utf8.ValidString(externalID) {
		return "", ErrInvalidIdentity
	}
	displayName = normalizeDisplayName(displayName, externalID)

	id := UserIDFor(externalID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[id]; ok {
		return id, nil
	}

	user := User{
		ID:          id,
		ExternalID:  externalID,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if r.store != nil {
		stored, err := r.store.PutUserIfAbsent(ctx, &store.User{
			ID:          string(id),
			ExternalID:  externalID,
			DisplayName: displayName,
			CreatedAt:   user.CreatedAt,
		})
		if err != nil {
			return "", fmt.Errorf("persist user: %w", err)
		}
		user = userFromStore(stored)
	}
	r.users[id] = user

	return id, nil
}

// Lookup returns the user record for id.
func (r *Identities) Lookup(ctx context.Context, id UserID) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		return u, nil
	}
	if r.store == nil {
		return User{}, ErrNotFound
	}

	stored, err := r.store.GetUserByID(ctx, string(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("load user: %w", err)
	}
	u := userFromStore(stored)
	r.users[id] = u
	return u, nil
}

func userFromStore(u *store.User) User {
	return User{
		ID:          UserID(u.ID),
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func normalizeDisplayName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fallback
	}
	if utf8.RuneCountInString(name) > maxDisplayNameRune {
		name = string([]rune(name)[:maxDisplayNameRune])
	}
	return name
}
