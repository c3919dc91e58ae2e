package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage carries a message posted to a channel.
	EventMessage EventKind = iota
	// EventJoined notifies members that a connection joined a channel.
	EventJoined
	// EventLeft notifies members that a connection left a channel.
	EventLeft
	// EventClosed notifies members that a channel was closed by an administrator.
	EventClosed
	// EventError reports a failed command back to the issuing connection.
	EventError
	// EventPong answers a client ping.
	EventPong
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventJoined:
		return "joined"
	case EventLeft:
		return "left"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	case EventPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
// Channel is set on every channel-scoped event so clients can demultiplex.
type Event struct {
	Kind        EventKind
	Channel     string
	User        UserID // joiner/leaver for EventJoined/EventLeft
	Topic       string // set on EventJoined
	MemberCount int
	Message     Message
	Error       *CoreError
}

func errorEvent(channel string, err error) *Event {
	ce := &CoreError{Code: CodeOf(err), Message: err.Error()}
	return &Event{Kind: EventError, Channel: channel, Error: ce}
}

// Message is the domain model for a chat message.
type Message struct {
	Seq        uint64
	Channel    string
	From       UserID
	FromName   string
	Text       string
	ServerTime time.Time
}
