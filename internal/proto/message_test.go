package proto

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecodeInbound(t *testing.T) {
	frame, err := EncodeInbound(InboundTypeMsg, MsgData{Channel: "Test", Text: "hi"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	in, err := DecodeInbound(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.Type != InboundTypeMsg {
		t.Fatalf("unexpected type %q", in.Type)
	}

	var msg MsgData
	if err := json.Unmarshal(in.Data, &msg); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if msg.Channel != "Test" || msg.Text != "hi" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
}

func TestDecodeInboundRejectsGarbage(t *testing.T) {
	if _, err := DecodeInbound([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed frame")
	}
	if _, err := DecodeInbound([]byte(`{"data":{}}`)); !errors.Is(err, ErrMissingType) {
		t.Fatalf("expected ErrMissingType, got %v", err)
	}
}

func TestEncodeOutboundKeepsZeroMemberCount(t *testing.T) {
	data, err := EncodeOutbound(Outbound{Type: OutboundTypeLeft, Channel: "Test", MemberCount: Count(0)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), `"member_count":0`) {
		t.Fatalf("member_count missing from %s", data)
	}

	data, err = EncodeOutbound(Outbound{Type: OutboundTypePong})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Fatalf("unexpected pong frame %s", data)
	}
}
