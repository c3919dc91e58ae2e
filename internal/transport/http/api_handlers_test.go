package http

import (
	"io"
	stdhttp "net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/channelchat/internal/config"
	"github.com/vovakirdan/channelchat/internal/core"
)

func TestHealthEndpoint(t *testing.T) {
	env := startTestServer(t, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
}

func TestLoginIsStable(t *testing.T) {
	env := startTestServer(t, nil)

	first := env.login(t, "github:1", "Alice")
	second := env.login(t, "github:1", "Alicia")
	require.Equal(t, first.UserID, second.UserID)
	require.Equal(t, "Alice", second.DisplayName)

	status := env.do(t, stdhttp.MethodPost, "/api/login", "", LoginRequest{ExternalID: "   "}, nil)
	require.Equal(t, stdhttp.StatusBadRequest, status)

	status = env.do(t, stdhttp.MethodPost, "/api/login", "", map[string]string{}, nil)
	require.Equal(t, stdhttp.StatusBadRequest, status)
}

func TestGuestLogin(t *testing.T) {
	env := startTestServer(t, nil)

	var guest AuthResponse
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, "/api/guest", "", nil, &guest))
	require.NotEmpty(t, guest.Token)

	var hello HelloResponse
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodPost, "/api/hello", guest.Token, nil, &hello))
	require.Equal(t, guest.UserID, hello.UserID)
	require.Zero(t, hello.Connections)
}

func TestAuthenticatedRoutesRequireToken(t *testing.T) {
	env := startTestServer(t, nil)

	require.Equal(t, stdhttp.StatusUnauthorized, env.do(t, stdhttp.MethodGet, "/api/channels", "", nil, nil))
	require.Equal(t, stdhttp.StatusUnauthorized, env.do(t, stdhttp.MethodGet, "/api/channels", "garbage", nil, nil))
}

func TestListAndDescribeChannels(t *testing.T) {
	env := startTestServer(t, nil)
	require.NoError(t, env.hub.Seed(t.Context(), []core.ChannelSeed{{Name: "general", Topic: "Anything goes"}, {Name: "random", Topic: "off topic"}}))

	alice := env.login(t, "github:1", "Alice")

	var channels []ChannelResponse
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/channels", alice.Token, nil, &channels))
	require.Len(t, channels, 2)
	require.Equal(t, "general", channels[0].Name)
	require.Equal(t, "random", channels[1].Name)

	var info ChannelResponse
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/channels/random", alice.Token, nil, &info))
	require.Equal(t, "off topic", info.Topic)
	require.Zero(t, info.MemberCount)

	require.Equal(t, stdhttp.StatusNotFound, env.do(t, stdhttp.MethodGet, "/api/channels/missing", alice.Token, nil, nil))
}

func TestJoinWithoutConnection(t *testing.T) {
	env := startTestServer(t, nil)
	alice := env.login(t, "github:1", "Alice")

	status := env.do(t, stdhttp.MethodPost, "/api/channels/general/join-or-create", alice.Token, TopicRequest{Topic: "x"}, nil)
	require.Equal(t, stdhttp.StatusConflict, status)
}

func TestAdminChannelLifecycle(t *testing.T) {
	env := startTestServer(t, nil)

	var created ChannelResponse
	status := env.do(t, stdhttp.MethodPost, "/api/admin/channels", "", CreateChannelRequest{Name: "ops", Topic: "on call"}, &created)
	require.Equal(t, stdhttp.StatusCreated, status)
	require.Equal(t, "ops", created.Name)

	status = env.do(t, stdhttp.MethodPost, "/api/admin/channels", "", CreateChannelRequest{Name: "ops"}, nil)
	require.Equal(t, stdhttp.StatusConflict, status)

	status = env.do(t, stdhttp.MethodPost, "/api/admin/channels", "", CreateChannelRequest{Name: "bad\nname"}, nil)
	require.Equal(t, stdhttp.StatusBadRequest, status)

	var stats StatsResponse
	require.Equal(t, stdhttp.StatusOK, env.do(t, stdhttp.MethodGet, "/api/admin/stats", "", nil, &stats))
	require.Equal(t, 1, stats.Channels)

	require.Equal(t, stdhttp.StatusNoContent, env.do(t, stdhttp.MethodDelete, "/api/admin/channels/ops", "", nil, nil))
	require.Equal(t, stdhttp.StatusNotFound, env.do(t, stdhttp.MethodDelete, "/api/admin/channels/ops", "", nil, nil))
}

func TestAdminRejectsBadKey(t *testing.T) {
	env := startTestServer(t, nil)

	req, err := stdhttp.NewRequest(stdhttp.MethodPost, env.ts.URL+"/api/admin/channels", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, err)
	req.Header.Set(AdminKeyHeader, "wrong")
	resp, err := env.ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	disabled := startTestServer(t, func(cfg *config.Config) { cfg.AdminKeyHash = "" })
	require.Equal(t, stdhttp.StatusForbidden, disabled.do(t, stdhttp.MethodGet, "/api/admin/stats", "", nil, nil))
}

func TestMetricsEndpoint(t *testing.T) {
	env := startTestServer(t, nil)
	env.do(t, stdhttp.MethodPost, "/api/admin/channels", "", CreateChannelRequest{Name: "ops"}, nil)

	resp, err := env.ts.Client().Get(env.ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "channelchat_core_channels 1")
}
