package webrtc

import (
	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/pion/webrtc/v3"
)

// Peer wraps one pion connection for a single mesh pair. It only moves
// negotiation artifacts in and out; who offers and when is decided a
// level above.
type Peer struct {
	conn *webrtc.PeerConnection
	log  *logger.Logger

	onRemoteTrack func(t RemoteTrack)
}

func NewPeer(api *ApiFactory, log *logger.Logger) (*Peer, error) {
	conn, err := api.NewPeerConnection()
	if err != nil {
		return nil, err
	}
	p := &Peer{conn: conn, log: log}
	conn.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		p.log.Debug().Msgf("Got [%s] track", track.Codec().MimeType)
		if p.onRemoteTrack != nil {
			p.onRemoteTrack(newRemoteTrack(track))
		}
	})
	conn.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		p.log.Debug().Str(".state", state.String()).Msg("ICE")
	})
	return p, nil
}

// OnRemoteTrack registers the inbound track callback, fired once per
// track the remote side sends.
func (p *Peer) OnRemoteTrack(fn func(t RemoteTrack)) { p.onRemoteTrack = fn }

// OnIceCandidate registers the local candidate callback. A nil payload
// marks the end of gathering and is not forwarded.
func (p *Peer) OnIceCandidate(fn func(data json.RawMessage)) {
	p.conn.OnICECandidate(func(ice *webrtc.ICECandidate) {
		if ice == nil {
			p.log.Debug().Msg("ICE gathering complete")
			return
		}
		candidate := ice.ToJSON()
		data, err := json.Marshal(candidate)
		if err != nil {
			p.log.Error().Err(err).Msg("encode candidate")
			return
		}
		fn(data)
	})
}

// AttachTracks plugs the local media tracks into the connection.
// With no tracks the connection is made receive-only so that
// negotiation still exchanges media sections (chat-only mode).
func (p *Peer) AttachTracks(tracks []webrtc.TrackLocal) error {
	if len(tracks) == 0 {
		for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
			if _, err := p.conn.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
				Direction: webrtc.RTPTransceiverDirectionRecvonly,
			}); err != nil {
				return err
			}
		}
		return nil
	}
	for _, track := range tracks {
		sender, err := p.conn.AddTrack(track)
		if err != nil {
			return err
		}
		// Drain incoming RTCP so the interceptors keep working.
		go func() {
			rtcpBuf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(rtcpBuf); err != nil {
					return
				}
			}
		}()
	}
	return nil
}

// CreateOffer makes an offer and sets it as the local description.
func (p *Peer) CreateOffer() (json.RawMessage, error) {
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(offer); err != nil {
		return nil, err
	}
	p.log.Debug().Msg("Created Offer")
	return json.Marshal(offer)
}

// AcceptOffer applies a remote offer and answers it.
func (p *Peer) AcceptOffer(data json.RawMessage) (json.RawMessage, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, err
	}
	if err := p.conn.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	if err = p.conn.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	p.log.Debug().Msg("Created Answer")
	return json.Marshal(answer)
}

// AcceptAnswer applies the remote answer to an offer in flight.
func (p *Peer) AcceptAnswer(data json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(data, &answer); err != nil {
		return err
	}
	if err := p.conn.SetRemoteDescription(answer); err != nil {
		p.log.Error().Err(err).Msg("Set remote description failed")
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

func (p *Peer) AddCandidate(data json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(data, &candidate); err != nil {
		return err
	}
	return p.conn.AddICECandidate(candidate)
}

func (p *Peer) HasRemoteDescription() bool { return p.conn.RemoteDescription() != nil }

func (p *Peer) Close() error { return p.conn.Close() }
