package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/core"
)

// wsReadLimitFactor lets frames somewhat above the core frame limit reach
// the bridge, which answers them with a protocol error. Only frames past
// this bound tear the socket down.
const wsReadLimitFactor = 4

// WSHandler authenticates the upgrade request and hands the socket to the hub.
type WSHandler struct {
	hub         *core.Hub
	authService *auth.Service
	readLimit   int64
	log         *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, authService: authService, log: logger}
}

// WithFrameLimit sets the largest frame the socket reads before closing.
func (h *WSHandler) WithFrameLimit(maxFrameBytes int) *WSHandler {
	if maxFrameBytes > 0 {
		h.readLimit = int64(maxFrameBytes) * wsReadLimitFactor
	}
	return h
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	claims, err := h.authenticate(r)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth failed")
		stdhttp.Error(w, "unauthorized", stdhttp.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	stream := &wsStream{conn: conn}
	err = h.hub.ConnectAndWait(r.Context(), core.UserID(claims.UserID), stream)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotFound):
		// Token for a user this hub has never seen.
		conn.Close(websocket.StatusPolicyViolation, "unknown user")
	case errors.Is(err, core.ErrUnavailable):
		conn.Close(websocket.StatusTryAgainLater, "server shutting down")
	default:
		h.log.Warn().Err(err).Str("user_id", claims.UserID).Msg("ws connection failed")
		conn.Close(websocket.StatusInternalError, "internal error")
	}
}

func (h *WSHandler) authenticate(r *stdhttp.Request) (*auth.Claims, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	return h.authService.ValidateToken(token)
}

// wsStream adapts a WebSocket connection to core.Stream. One text message
// is one frame.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (s *wsStream) Send(ctx context.Context, frame []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, frame)
}

func (s *wsStream) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}
