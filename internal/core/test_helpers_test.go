package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/channelchat/internal/proto"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// pipeStream is an in-memory Stream. Frames written by the test through
// push are received by the bridge; frames the bridge sends land in out.
type pipeStream struct {
	in     chan []byte
	out    chan []byte
	closed chan struct{}
	once   sync.Once

	// gate, when set, stalls every Send until it is closed.
	gate chan struct{}
}

func newPipeStream() *pipeStream {
	return &pipeStream{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (p *pipeStream) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		return frame, nil
	case <-p.closed:
		return nil, ErrStreamClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeStream) Send(ctx context.Context, frame []byte) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-p.closed:
			return ErrStreamClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.closed:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeStream) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeStream) push(t *testing.T, typ string, data any) {
	t.Helper()

	frame, err := proto.EncodeInbound(typ, data)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	p.pushRaw(t, frame)
}

func (p *pipeStream) pushRaw(t *testing.T, frame []byte) {
	t.Helper()

	select {
	case p.in <- frame:
	case <-time.After(2 * time.Second):
		t.Fatalf("bridge is not reading frames")
	}
}

// mustOutbound waits for a frame of the given type, skipping others.
func (p *pipeStream) mustOutbound(t *testing.T, typ string) proto.Outbound {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case frame := <-p.out:
			out, err := proto.DecodeOutbound(frame)
			if err != nil {
				t.Fatalf("decode outbound %s: %v", frame, err)
			}
			if out.Type == typ {
				return out
			}
		case <-deadline:
			t.Fatalf("expected %q frame not received", typ)
			return proto.Outbound{}
		}
	}
}

// noOutbound fails if a frame of the given type arrives within wait.
func (p *pipeStream) noOutbound(t *testing.T, typ string, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case frame := <-p.out:
			out, err := proto.DecodeOutbound(frame)
			if err != nil {
				t.Fatalf("decode outbound %s: %v", frame, err)
			}
			if out.Type == typ {
				t.Fatalf("unexpected %q frame: %s", typ, frame)
			}
		case <-deadline:
			return
		}
	}
}

func startHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(opts)
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// connectUser registers externalID and connects it over a fresh pipe.
func connectUser(t *testing.T, hub *Hub, externalID string) (UserID, *Bridge, *pipeStream) {
	t.Helper()

	ctx := context.Background()
	id, err := hub.RegisterUser(ctx, externalID, externalID)
	if err != nil {
		t.Fatalf("register %s: %v", externalID, err)
	}
	stream := newPipeStream()
	b, err := hub.Connect(ctx, id, stream)
	if err != nil {
		t.Fatalf("connect %s: %v", externalID, err)
	}
	t.Cleanup(func() {
		b.Close()
		<-b.Done()
	})
	return id, b, stream
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}
