package proto

import (
	"encoding/json"
	"errors"
)

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"
	InboundTypeMsg   = "msg"
	InboundTypePing  = "ping"

	OutboundTypeMessage = "message"
	OutboundTypeJoined  = "joined"
	OutboundTypeLeft    = "left"
	OutboundTypeClosed  = "closed"
	OutboundTypePong    = "pong"
	OutboundTypeError   = "error"
)

// ErrMissingType is returned for envelopes without a type.
var ErrMissingType = errors.New("missing message type")

// JoinData requests to join a channel. With Create set the channel is
// created with Topic when it does not exist yet.
type JoinData struct {
	Channel string `json:"channel"`
	Topic   string `json:"topic,omitempty"`
	Create  bool   `json:"create,omitempty"`
}

// LeaveData requests to leave a channel.
type LeaveData struct {
	Channel string `json:"channel"`
}

// MsgData is a chat message from the client.
type MsgData struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// Outbound is sent to the client. It is a flat tagged union keyed by Type;
// every channel-scoped frame carries Channel.
type Outbound struct {
	Type        string `json:"type"`
	Channel     string `json:"channel,omitempty"`
	Sender      string `json:"sender,omitempty"`
	SenderName  string `json:"sender_name,omitempty"`
	Text        string `json:"text,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"` // unix milliseconds, server clock
	Seq         uint64 `json:"seq,omitempty"`
	User        string `json:"user,omitempty"`
	Topic       string `json:"topic,omitempty"`
	MemberCount *int   `json:"member_count,omitempty"`
	Code        string `json:"code,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// DecodeInbound parses one client frame.
func DecodeInbound(frame []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, ErrMissingType
	}
	return in, nil
}

// EncodeInbound builds a client frame; used by clients and tests.
func EncodeInbound(typ string, data any) ([]byte, error) {
	in := Inbound{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		in.Data = raw
	}
	return json.Marshal(in)
}

// EncodeOutbound serializes a server frame.
func EncodeOutbound(out Outbound) ([]byte, error) {
	return json.Marshal(out)
}

// DecodeOutbound parses a server frame; used by clients and tests.
func DecodeOutbound(frame []byte) (Outbound, error) {
	var out Outbound
	err := json.Unmarshal(frame, &out)
	return out, err
}

// Count returns a pointer for Outbound.MemberCount.
func Count(n int) *int {
	return &n
}
