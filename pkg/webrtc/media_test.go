package webrtc

import (
	"testing"
	"time"

	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/pion/webrtc/v3/pkg/media"
)

func TestMediaGates(t *testing.T) {
	t.Parallel()

	m, err := NewMedia(logger.New(false), nil)
	if err != nil {
		t.Fatalf("media init: %v", err)
	}
	defer m.Close()

	if m.Muted() || m.VideoOff() {
		t.Fatalf("fresh media should have both gates open")
	}
	m.SetMuted(true)
	m.SetVideoOff(true)
	if !m.Muted() || !m.VideoOff() {
		t.Fatalf("gates did not flip")
	}

	sample := media.Sample{Data: []byte{0x00}, Duration: 20 * time.Millisecond}
	if err := m.WriteAudio(sample); err != nil {
		t.Fatalf("muted write should be a silent no-op, got %v", err)
	}
	if err := m.WriteVideo(sample); err != nil {
		t.Fatalf("video-off write should be a silent no-op, got %v", err)
	}

	m.SetMuted(false)
	m.SetVideoOff(false)
	// unbound tracks accept samples without error
	if err := m.WriteAudio(sample); err != nil {
		t.Fatalf("audio write: %v", err)
	}
	if err := m.WriteVideo(sample); err != nil {
		t.Fatalf("video write: %v", err)
	}
}

func TestMediaClosesOnce(t *testing.T) {
	t.Parallel()

	released := 0
	m, err := NewMedia(logger.New(false), func() { released++ })
	if err != nil {
		t.Fatalf("media init: %v", err)
	}
	m.Close()
	m.Close()
	if released != 1 {
		t.Fatalf("capture released %d times, want 1", released)
	}

	sample := media.Sample{Data: []byte{0x00}, Duration: 20 * time.Millisecond}
	if err := m.WriteAudio(sample); err != nil {
		t.Fatalf("write after close should be dropped, got %v", err)
	}
}
