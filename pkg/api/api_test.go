package api

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestPacketDecode(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"t":"join-room","p":{"room":"abc123","name":"Alice"}}`)

	var in In
	if err := json.Unmarshal(raw, &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if in.T != JoinRoom {
		t.Fatalf("event = %q", in.T)
	}
	rq := Unwrap[JoinRoomRequest](in.Payload)
	if rq == nil || rq.Room != "abc123" || rq.Name != "Alice" {
		t.Fatalf("payload = %+v", rq)
	}
}

func TestUnwrapMalformed(t *testing.T) {
	t.Parallel()
	if v := Unwrap[JoinRoomRequest]([]byte(`{"room":42}`)); v != nil {
		t.Fatalf("unwrap of garbage = %+v", v)
	}
}

func TestSignalKeepsDataOpaque(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"to":"x","data":{"sdp":"v=0","type":"offer"}}`)
	s := Unwrap[Signal](raw)
	if s == nil || string(s.Data) != `{"sdp":"v=0","type":"offer"}` {
		t.Fatalf("signal = %+v", s)
	}
}

func TestIsSignal(t *testing.T) {
	t.Parallel()
	for _, ev := range []Ev{Offer, Answer, IceCandidate} {
		if !ev.IsSignal() {
			t.Fatalf("%q is not a signal", ev)
		}
	}
	for _, ev := range []Ev{JoinRoom, ChatMessage, UserControls, UserLeft} {
		if ev.IsSignal() {
			t.Fatalf("%q is a signal", ev)
		}
	}
}

func TestControlsPartial(t *testing.T) {
	t.Parallel()
	c := Unwrap[Controls]([]byte(`{"audioMuted":true}`))
	if c == nil || c.AudioMuted == nil || !*c.AudioMuted {
		t.Fatalf("controls = %+v", c)
	}
	// absent field stays unknown, not false
	if c.VideoOff != nil {
		t.Fatalf("videoOff = %v, want nil", *c.VideoOff)
	}
}
