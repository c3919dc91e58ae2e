package core

import (
	"encoding/json"

	"github.com/vovakirdan/channelchat/internal/proto"
)

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandPost delivers a chat message to channel members.
	CommandPost CommandKind = iota
	// CommandJoin subscribes the connection to an existing channel.
	CommandJoin
	// CommandJoinOrCreate subscribes the connection, creating the channel if needed.
	CommandJoinOrCreate
	// CommandLeave unsubscribes the connection from a channel.
	CommandLeave
	// CommandPing asks for a pong.
	CommandPing
	// CommandSubscriptions reports the channels the connection belongs to.
	CommandSubscriptions
)

// Command represents an action requested by a client. Commands decoded
// from the stream carry no reply channel; their failures go back to the
// client as error events.
type Command struct {
	Kind    CommandKind
	Channel string
	Topic   string
	Text    string

	reply chan commandResult
}

type commandResult struct {
	join  JoinResult
	msg   Message
	count int
	subs  []string
	err   error
}

func protocolError(detail string) *CoreError {
	return &CoreError{Code: ErrCodeProtocol, Message: detail}
}

// commandFromInbound maps a decoded frame to a command.
func commandFromInbound(in proto.Inbound) (*Command, *CoreError) {
	switch in.Type {
	case proto.InboundTypeJoin:
		var join proto.JoinData
		if err := json.Unmarshal(in.Data, &join); err != nil {
			return nil, protocolError("malformed join payload")
		}
		if join.Channel == "" {
			return nil, protocolError("channel is required")
		}
		kind := CommandJoin
		if join.Create {
			kind = CommandJoinOrCreate
		}
		return &Command{Kind: kind, Channel: join.Channel, Topic: join.Topic}, nil
	case proto.InboundTypeLeave:
		var leave proto.LeaveData
		if err := json.Unmarshal(in.Data, &leave); err != nil {
			return nil, protocolError("malformed leave payload")
		}
		if leave.Channel == "" {
			return nil, protocolError("channel is required")
		}
		return &Command{Kind: CommandLeave, Channel: leave.Channel}, nil
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(in.Data, &msg); err != nil {
			return nil, protocolError("malformed msg payload")
		}
		if msg.Channel == "" {
			return nil, protocolError("channel is required")
		}
		return &Command{Kind: CommandPost, Channel: msg.Channel, Text: msg.Text}, nil
	case proto.InboundTypePing:
		return &Command{Kind: CommandPing}, nil
	default:
		return nil, protocolError("unknown message type " + in.Type)
	}
}

// outboundFromEvent maps a core event to its wire form.
func outboundFromEvent(ev *Event) proto.Outbound {
	switch ev.Kind {
	case EventMessage:
		return proto.Outbound{
			Type:       proto.OutboundTypeMessage,
			Channel:    ev.Channel,
			Sender:     string(ev.Message.From),
			SenderName: ev.Message.FromName,
			Text:       ev.Message.Text,
			Timestamp:  ev.Message.ServerTime.UnixMilli(),
			Seq:        ev.Message.Seq,
		}
	case EventJoined:
		return proto.Outbound{
			Type:        proto.OutboundTypeJoined,
			Channel:     ev.Channel,
			User:        string(ev.User),
			Topic:       ev.Topic,
			MemberCount: proto.Count(ev.MemberCount),
		}
	case EventLeft:
		return proto.Outbound{
			Type:        proto.OutboundTypeLeft,
			Channel:     ev.Channel,
			User:        string(ev.User),
			MemberCount: proto.Count(ev.MemberCount),
		}
	case EventClosed:
		return proto.Outbound{Type: proto.OutboundTypeClosed, Channel: ev.Channel}
	case EventPong:
		return proto.Outbound{Type: proto.OutboundTypePong}
	case EventError:
		if ev.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Channel: ev.Channel, Code: ErrCodeInternal, Detail: "unknown error"}
		}
		return proto.Outbound{
			Type:    proto.OutboundTypeError,
			Channel: ev.Channel,
			Code:    ev.Error.Code,
			Detail:  ev.Error.Message,
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Code: ErrCodeInternal, Detail: "unknown event"}
	}
}
