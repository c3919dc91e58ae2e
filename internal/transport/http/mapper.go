package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/channelchat/internal/core"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ChannelResponse represents a channel in API responses.
type ChannelResponse struct {
	Name        string `json:"name"`
	Topic       string `json:"topic"`
	MemberCount int    `json:"member_count"`
	CreatedAt   string `json:"created_at,omitempty"`
}

func channelFromInfo(info core.Info) ChannelResponse {
	resp := ChannelResponse{
		Name:        info.Name,
		Topic:       info.Topic,
		MemberCount: info.MemberCount,
	}
	if !info.CreatedAt.IsZero() {
		resp.CreatedAt = info.CreatedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func channelFromJoin(res core.JoinResult) ChannelResponse {
	return ChannelResponse{Name: res.Name, Topic: res.Topic, MemberCount: res.MemberCount}
}

// statusFor maps a core error code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	case core.ErrCodeChannelExists, core.ErrCodeNotConnected, core.ErrCodeChannelClosed:
		return http.StatusConflict
	case core.ErrCodeNotAMember:
		return http.StatusForbidden
	case core.ErrCodeInvalidIdentity, core.ErrCodeBadRequest, core.ErrCodeProtocol:
		return http.StatusBadRequest
	case core.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case core.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as JSON. Internal failures are logged and their
// details hidden from the client.
func writeError(c *gin.Context, logger *zerolog.Logger, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled", Code: core.ErrCodeUnavailable})
		return
	}

	var ce *core.CoreError
	if !errors.As(err, &ce) || ce.Code == core.ErrCodeInternal {
		logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: core.ErrCodeInternal})
		return
	}
	c.JSON(statusFor(ce.Code), ErrorResponse{Error: err.Error(), Code: ce.Code})
}
