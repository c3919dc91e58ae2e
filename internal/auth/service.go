package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/vovakirdan/channelchat/internal/core"
)

// Identities is the part of the hub the auth service needs.
type Identities interface {
	RegisterUser(ctx context.Context, externalID, displayName string) (core.UserID, error)
	User(ctx context.Context, id core.UserID) (core.User, error)
}

// Session is the result of a successful login.
type Session struct {
	Token       string
	UserID      core.UserID
	DisplayName string
}

// Service provides authentication operations.
type Service struct {
	users     Identities
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users Identities, jwtConfig *JWTConfig) *Service {
	return &Service{
		users:     users,
		jwtConfig: jwtConfig,
	}
}

// Login resolves an external identity that an upstream provider already
// verified and issues a session token for it. Logging in again with the
// same external id yields the same user.
func (s *Service) Login(ctx context.Context, externalID, displayName string) (Session, error) {
	id, err := s.users.RegisterUser(ctx, externalID, displayName)
	if err != nil {
		return Session{}, err
	}
	return s.issue(ctx, id, false)
}

// CreateGuestUser registers a throwaway identity and returns its session.
func (s *Service) CreateGuestUser(ctx context.Context) (Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return Session{}, fmt.Errorf("generate session ID: %w", err)
	}

	id, err := s.users.RegisterUser(ctx, "guest:"+sessionID, "guest-"+sessionID[:8])
	if err != nil {
		return Session{}, fmt.Errorf("create guest user: %w", err)
	}
	return s.issue(ctx, id, true)
}

func (s *Service) issue(ctx context.Context, id core.UserID, isGuest bool) (Session, error) {
	user, err := s.users.User(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, string(user.ID), user.DisplayName, isGuest)
	if err != nil {
		return Session{}, fmt.Errorf("generate token: %w", err)
	}
	return Session{Token: token, UserID: user.ID, DisplayName: user.DisplayName}, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// generateSessionID generates a random session ID for guest users.
func generateSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
