package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/channelchat/internal/core"
	"github.com/vovakirdan/channelchat/internal/store/sqlite"
)

func newTestAuthService(t *testing.T) *Service {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return NewService(core.NewHub(core.Options{Users: st}), jwtConfig)
}

func TestLogin_RejectsInvalidIdentity(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	if _, err := svc.Login(ctx, "", "nobody"); !errors.Is(err, core.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}

	// Should be validated after trimming whitespace.
	if _, err := svc.Login(ctx, "   ", "nobody"); !errors.Is(err, core.ErrInvalidIdentity) {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

func TestLogin_SameExternalIDSameUser(t *testing.T) {
	svc := newTestAuthService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, "github:alice", "Alice")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if first.Token == "" {
		t.Fatalf("expected non-empty token")
	}

	second, err := svc.Login(ctx, " github:alice ", "Someone Else")
	if err != nil {
		t.Fatalf("expected login success, got %v", err)
	}
	if first.UserID != second.UserID {
		t.Fatalf("expected same user id, got %s and %s", first.UserID, second.UserID)
	}
	if second.DisplayName != "Alice" {
		t.Fatalf("expected first display name to stick, got %q", second.DisplayName)
	}

	claims, err := svc.ValidateToken(second.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.UserID != string(first.UserID) || claims.IsGuest {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCreateGuestUser(t *testing.T) {
	svc := newTestAuthService(t)

	sess, err := svc.CreateGuestUser(context.Background())
	if err != nil {
		t.Fatalf("create guest: %v", err)
	}
	if !strings.HasPrefix(sess.DisplayName, "guest-") {
		t.Fatalf("unexpected guest name %q", sess.DisplayName)
	}

	claims, err := svc.ValidateToken(sess.Token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if !claims.IsGuest {
		t.Fatalf("expected guest claim")
	}
}

func TestValidateToken_RejectsForeignTokens(t *testing.T) {
	cfg := &JWTConfig{Secret: []byte("one"), Issuer: "a", Audience: "b", TTL: time.Hour}

	token, err := GenerateToken(cfg, "u1", "User", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := ValidateToken(&JWTConfig{Secret: []byte("two"), Issuer: "a", Audience: "b"}, token); err == nil {
		t.Fatalf("expected signature failure")
	}
	if _, err := ValidateToken(&JWTConfig{Secret: []byte("one"), Issuer: "other", Audience: "b"}, token); err == nil {
		t.Fatalf("expected issuer failure")
	}
	if _, err := ValidateToken(&JWTConfig{Secret: []byte("one"), Issuer: "a", Audience: "other"}, token); err == nil {
		t.Fatalf("expected audience failure")
	}

	expired, err := GenerateToken(&JWTConfig{Secret: []byte("one"), TTL: -time.Minute}, "u1", "User", false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(&JWTConfig{Secret: []byte("one")}, expired); err == nil {
		t.Fatalf("expected expiry failure")
	}
}

func TestAdminKey(t *testing.T) {
	hash, err := HashAdminKey("s3cret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CompareAdminKey(hash, "s3cret"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CompareAdminKey(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch")
	}
	if err := CompareAdminKey("", "s3cret"); !errors.Is(err, ErrAdminDisabled) {
		t.Fatalf("expected ErrAdminDisabled, got %v", err)
	}
	if _, err := HashAdminKey(""); err == nil {
		t.Fatalf("expected empty key rejection")
	}
}
