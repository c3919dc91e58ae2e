package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/auth"
	"github.com/vovakirdan/channelchat/internal/core"
)

// APIHandlers provides HTTP handlers for login and session endpoints.
type APIHandlers struct {
	hub         *core.Hub
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:         hub,
		authService: authService,
		log:         logger,
	}
}

// LoginRequest carries an identity already verified by an upstream provider.
type LoginRequest struct {
	ExternalID  string `json:"external_id" binding:"required"`
	DisplayName string `json:"display_name"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// HelloResponse is the answer to POST /api/hello.
type HelloResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Connections int    `json:"connections"`
}

// StatsResponse is the admin diagnostics snapshot.
type StatsResponse struct {
	Channels      int    `json:"channels"`
	Connections   int    `json:"connections"`
	Users         int    `json:"users"`
	DroppedEvents uint64 `json:"dropped_events"`
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	sess, err := h.authService.Login(c.Request.Context(), req.ExternalID, req.DisplayName)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", string(sess.UserID)).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: sess.Token, UserID: string(sess.UserID), DisplayName: sess.DisplayName})
}

// GuestLogin creates a guest user and returns a token.
// POST /api/guest
func (h *APIHandlers) GuestLogin(c *gin.Context) {
	sess, err := h.authService.CreateGuestUser(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().Str("user_id", string(sess.UserID)).Msg("guest user created")
	c.JSON(http.StatusOK, AuthResponse{Token: sess.Token, UserID: string(sess.UserID), DisplayName: sess.DisplayName})
}

// Hello acknowledges the caller and records presence.
// POST /api/hello
func (h *APIHandlers) Hello(c *gin.Context) {
	uid, ok := userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return
	}

	g, err := h.hub.Hello(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, HelloResponse{UserID: string(g.UserID), DisplayName: g.DisplayName, Connections: g.Connections})
}

// Stats returns hub counters.
// GET /api/admin/stats
func (h *APIHandlers) Stats(c *gin.Context) {
	st, err := h.hub.Stats(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, StatsResponse{
		Channels:      st.Channels,
		Connections:   st.Connections,
		Users:         st.Users,
		DroppedEvents: st.DroppedEvents,
	})
}
