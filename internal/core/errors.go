package core

import "errors"

// Error codes for domain errors. They are sent to clients verbatim.
const (
	ErrCodeInvalidIdentity = "invalid_identity"
	ErrCodeChannelExists   = "channel_exists"
	ErrCodeNotFound        = "not_found"
	ErrCodeNotAMember      = "not_a_member"
	ErrCodeProtocol        = "protocol_error"
	ErrCodeStreamClosed    = "stream_closed"
	ErrCodeChannelClosed   = "channel_closed"
	ErrCodeNotConnected    = "not_connected"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeUnavailable     = "unavailable"
	ErrCodeInternal        = "internal"
)

var (
	ErrInvalidIdentity = coreError(ErrCodeInvalidIdentity, "invalid identity")
	ErrChannelExists   = coreError(ErrCodeChannelExists, "channel already exists")
	ErrNotFound        = coreError(ErrCodeNotFound, "not found")
	ErrNotAMember      = coreError(ErrCodeNotAMember, "not a member of channel")
	ErrProtocol        = coreError(ErrCodeProtocol, "protocol error")
	ErrStreamClosed    = coreError(ErrCodeStreamClosed, "stream closed")
	ErrChannelClosed   = coreError(ErrCodeChannelClosed, "channel closed")
	ErrNotConnected    = coreError(ErrCodeNotConnected, "user has no active connection")
	ErrBadRequest      = coreError(ErrCodeBadRequest, "bad request")
	ErrRateLimited     = coreError(ErrCodeRateLimited, "rate limit exceeded")
	ErrUnavailable     = coreError(ErrCodeUnavailable, "server is shutting down")
	ErrInternal        = coreError(ErrCodeInternal, "internal error")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// CodeOf returns the wire code carried by err, or ErrCodeInternal when err
// does not wrap a *CoreError.
func CodeOf(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ErrCodeInternal
}
