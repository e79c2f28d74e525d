package client

import (
	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/webrtc"
	pion "github.com/pion/webrtc/v3"
)

// Negotiator is the per-link media connection: it emits and consumes
// negotiation artifacts as opaque blobs. Everything above this line is
// plain message plumbing and is testable without a network.
type Negotiator interface {
	OnIceCandidate(fn func(data json.RawMessage))
	OnRemoteTrack(fn func(t webrtc.RemoteTrack))
	CreateOffer() (json.RawMessage, error)
	AcceptOffer(data json.RawMessage) (json.RawMessage, error)
	AcceptAnswer(data json.RawMessage) error
	AddCandidate(data json.RawMessage) error
	HasRemoteDescription() bool
	Close() error
}

// Engine mints one Negotiator per mesh pair.
type Engine interface {
	NewNegotiator() (Negotiator, error)
}

// mediaEngine builds pion peers with the local tracks already
// attached. With no media it produces receive-only connections, which
// keeps the link usable for chat-only participants.
type mediaEngine struct {
	api   *webrtc.ApiFactory
	media *webrtc.Media
	log   *logger.Logger
}

func newMediaEngine(api *webrtc.ApiFactory, media *webrtc.Media, log *logger.Logger) *mediaEngine {
	return &mediaEngine{api: api, media: media, log: log}
}

func (e *mediaEngine) NewNegotiator() (Negotiator, error) {
	peer, err := webrtc.NewPeer(e.api, e.log)
	if err != nil {
		return nil, err
	}
	var tracks []pion.TrackLocal
	if e.media != nil {
		tracks = e.media.Tracks()
	}
	if err = peer.AttachTracks(tracks); err != nil {
		_ = peer.Close()
		return nil, err
	}
	return peer, nil
}
