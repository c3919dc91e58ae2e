package core

import "context"

// Stream is an authenticated full-duplex link to one client. Transports
// (WebSocket, tests) implement it; the core never sees the wire.
//
// Receive blocks for the next frame. It returns io.EOF or ErrStreamClosed
// once the peer is gone; any other error also ends the connection.
// Send and Receive may be called concurrently with each other, and Close
// must unblock both.
type Stream interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, frame []byte) error
	Close() error
}
