package webrtc

import (
	"sync"

	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
)

// Media holds the session-wide local capture tracks. The tracks are
// acquired once and shared read-only by every peer link; Close releases
// them exactly once no matter how many links existed.
type Media struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample
	log   *logger.Logger

	mu       sync.Mutex
	muted    bool
	videoOff bool
	closed   bool
	closeFn  func()
}

// NewMedia allocates the local audio/video source tracks.
// The closeFn param releases the underlying capture device, may be nil.
func NewMedia(log *logger.Logger, closeFn func()) (*Media, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "camera")
	if err != nil {
		return nil, err
	}
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "camera")
	if err != nil {
		return nil, err
	}
	return &Media{audio: audio, video: video, log: log, closeFn: closeFn}, nil
}

func (m *Media) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{m.audio, m.video}
}

// WriteAudio pushes one encoded audio sample unless muted.
func (m *Media) WriteAudio(sample media.Sample) error {
	m.mu.Lock()
	skip := m.muted || m.closed
	m.mu.Unlock()
	if skip {
		return nil
	}
	return m.audio.WriteSample(sample)
}

// WriteVideo pushes one encoded video sample unless the camera is off.
func (m *Media) WriteVideo(sample media.Sample) error {
	m.mu.Lock()
	skip := m.videoOff || m.closed
	m.mu.Unlock()
	if skip {
		return nil
	}
	return m.video.WriteSample(sample)
}

func (m *Media) SetMuted(muted bool)  { m.mu.Lock(); m.muted = muted; m.mu.Unlock() }
func (m *Media) SetVideoOff(off bool) { m.mu.Lock(); m.videoOff = off; m.mu.Unlock() }

func (m *Media) Muted() bool    { m.mu.Lock(); defer m.mu.Unlock(); return m.muted }
func (m *Media) VideoOff() bool { m.mu.Lock(); defer m.mu.Unlock(); return m.videoOff }

// Close releases the capture source. Safe to call more than once.
func (m *Media) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	if m.closeFn != nil {
		m.closeFn()
	}
	m.log.Debug().Msg("Local media released")
}
