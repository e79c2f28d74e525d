package webrtc

import (
	"sync"

	"github.com/pion/webrtc/v3"
)

// RemoteTrack is one inbound media track with a local playout gate.
// Control announcements from the owning peer toggle the gate; the
// playout path checks Enabled before rendering.
type RemoteTrack interface {
	Kind() string
	Enabled() bool
	SetEnabled(enabled bool)
}

type remoteTrack struct {
	track *webrtc.TrackRemote

	mu      sync.Mutex
	enabled bool
}

func newRemoteTrack(track *webrtc.TrackRemote) *remoteTrack {
	return &remoteTrack{track: track, enabled: true}
}

func (t *remoteTrack) Kind() string { return t.track.Kind().String() }

func (t *remoteTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *remoteTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}
