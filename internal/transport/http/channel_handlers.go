package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/core"
)

// ChannelHandlers provides HTTP handlers for channel endpoints. Join,
// join-or-create and leave act on the caller's most recent WebSocket
// connection.
type ChannelHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewChannelHandlers creates a new channel handlers instance.
func NewChannelHandlers(hub *core.Hub, logger *zerolog.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		hub: hub,
		log: logger,
	}
}

// CreateChannelRequest represents the admin create channel request body.
type CreateChannelRequest struct {
	Name  string `json:"name" binding:"required"`
	Topic string `json:"topic"`
}

// TopicRequest is the optional body of join-or-create.
type TopicRequest struct {
	Topic string `json:"topic"`
}

// LeaveResponse reports the remaining member count.
type LeaveResponse struct {
	Name        string `json:"name"`
	MemberCount int    `json:"member_count"`
}

// ListChannels handles listing channels.
// GET /api/channels
func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	infos, err := h.hub.ListChannels(c.Request.Context(), uid)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	response := make([]ChannelResponse, 0, len(infos))
	for _, info := range infos {
		response = append(response, channelFromInfo(info))
	}
	c.JSON(http.StatusOK, response)
}

// ChannelInfo describes one channel.
// GET /api/channels/:name
func (h *ChannelHandlers) ChannelInfo(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	info, err := h.hub.ChannelInfo(c.Request.Context(), uid, c.Param("name"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, channelFromInfo(info))
}

// Join subscribes the caller's active connection to an existing channel.
// POST /api/channels/:name/join
func (h *ChannelHandlers) Join(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	res, err := h.hub.Join(c.Request.Context(), uid, c.Param("name"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, channelFromJoin(res))
}

// JoinOrCreate subscribes the caller, creating the channel if needed.
// POST /api/channels/:name/join-or-create
func (h *ChannelHandlers) JoinOrCreate(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req TopicRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
			return
		}
	}

	res, err := h.hub.JoinOrCreate(c.Request.Context(), uid, c.Param("name"), req.Topic)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, channelFromJoin(res))
}

// Leave unsubscribes the caller's active connection.
// POST /api/channels/:name/leave
func (h *ChannelHandlers) Leave(c *gin.Context) {
	uid, ok := h.requireUser(c)
	if !ok {
		return
	}

	name := c.Param("name")
	count, err := h.hub.Leave(c.Request.Context(), uid, name)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, LeaveResponse{Name: name, MemberCount: count})
}

// CreateChannel provisions a channel.
// POST /api/admin/channels
func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create channel request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: core.ErrCodeBadRequest})
		return
	}

	info, err := h.hub.NewChannel(c.Request.Context(), req.Name, req.Topic)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().Str("channel", info.Name).Msg("channel created via admin api")
	c.JSON(http.StatusCreated, channelFromInfo(info))
}

// CloseChannel closes a channel and removes it from the registry.
// DELETE /api/admin/channels/:name
func (h *ChannelHandlers) CloseChannel(c *gin.Context) {
	name := c.Param("name")
	if err := h.hub.CloseChannel(c.Request.Context(), name); err != nil {
		writeError(c, h.log, err)
		return
	}

	h.log.Info().Str("channel", name).Msg("channel closed via admin api")
	c.Status(http.StatusNoContent)
}

func (h *ChannelHandlers) requireUser(c *gin.Context) (core.UserID, bool) {
	uid, ok := userFromContext(c)
	if !ok {
		h.log.Error().Msg("user_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
	}
	return uid, ok
}
