package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/config"
	"github.com/vovakirdan/channelchat/internal/core"
	"github.com/vovakirdan/channelchat/internal/metrics"
	"github.com/vovakirdan/channelchat/internal/proto"
	"github.com/vovakirdan/channelchat/internal/store/sqlite"
)

const testAdminKey = "let-me-in"

type testEnv struct {
	ts  *httptest.Server
	hub *core.Hub
}

// startTestServer runs a hub backed by in-memory sqlite behind the full router.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hash, err := auth.HashAdminKey(testAdminKey)
	if err != nil {
		t.Fatalf("hash admin key: %v", err)
	}

	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.JWTSecret = "test-secret"
	cfg.AdminKeyHash = hash
	if mutate != nil {
		mutate(&cfg)
	}

	reg := prometheus.NewRegistry()
	disabledLogger := zerolog.Nop()

	opts := cfg.HubOptions()
	opts.Users = st
	opts.Catalog = st
	opts.Recorder = metrics.New(reg)
	hub := core.NewHub(opts)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	authService := auth.NewService(hub, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      time.Hour,
	})

	server := NewServer(hub, authService, reg, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, hub: hub}
}

// do sends a JSON request and decodes the JSON response into out when set.
func (e *testEnv) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := stdhttp.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if strings.HasPrefix(path, "/api/admin") && token == "" {
		req.Header.Set(AdminKeyHeader, testAdminKey)
	}

	resp, err := e.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) login(t *testing.T, externalID, name string) AuthResponse {
	t.Helper()

	var resp AuthResponse
	status := e.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{ExternalID: externalID, DisplayName: name}, &resp)
	if status != stdhttp.StatusOK {
		t.Fatalf("login %s: status %d", externalID, status)
	}
	return resp
}

func (e *testEnv) dial(t *testing.T, ctx context.Context, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// waitConnected polls Hello until the user has n live connections.
func (e *testEnv) waitConnected(t *testing.T, token string, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var hello HelloResponse
		if e.do(t, stdhttp.MethodPost, "/api/hello", token, nil, &hello) == stdhttp.StatusOK && hello.Connections == n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user never reached %d connections", n)
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	frame, err := proto.EncodeInbound(typ, data)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		t.Fatalf("send %s: %v", typ, err)
	}
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) proto.Outbound {
	t.Helper()

	for {
		var out proto.Outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if out.Type == typ {
			return out
		}
	}
}
