package client

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/webrtc"
)

type linkState int

const (
	linkIdle linkState = iota
	linkOffering
	linkAnswering
	linkConnected
	linkClosed
)

func (s linkState) String() string {
	switch s {
	case linkIdle:
		return "idle"
	case linkOffering:
		return "offering"
	case linkAnswering:
		return "answering"
	case linkConnected:
		return "connected"
	case linkClosed:
		return "closed"
	}
	return "unknown"
}

// signalFn ships one negotiation artifact to a named peer through the
// relay.
type signalFn func(t api.Ev, to com.Uid, data json.RawMessage)

// link drives one directed mesh pair end to end. Exactly one side
// ever calls initiate, so the two ends of a pair never produce
// colliding offers. Remote candidates that arrive before the remote
// description are buffered and drained afterwards, in arrival order.
type link struct {
	remote com.Uid
	name   string
	neg    Negotiator
	send   signalFn
	log    *logger.Logger

	mu        sync.Mutex
	state     linkState
	dirty     bool // renegotiation requested while one is in flight
	sentLocal bool // local description has been shipped
	remoteBuf []json.RawMessage
	localBuf  []json.RawMessage

	// tracks are the remote media received over this link, gated by
	// the peer's last announced state.
	tracks     []webrtc.RemoteTrack
	audioMuted bool
	videoOff   bool
}

func newLink(remote com.Uid, name string, neg Negotiator, send signalFn, log *logger.Logger) *link {
	l := &link{remote: remote, name: name, neg: neg, send: send,
		log: log.Extend(log.With().Str("peer", remote.Short()))}
	neg.OnIceCandidate(l.onLocalCandidate)
	neg.OnRemoteTrack(l.onRemoteTrack)
	return l
}

// onRemoteTrack records an inbound track and gates it by the state the
// peer announced so far; tracks can land after the announcement.
func (l *link) onRemoteTrack(t webrtc.RemoteTrack) {
	l.mu.Lock()
	if l.state == linkClosed {
		l.mu.Unlock()
		return
	}
	l.tracks = append(l.tracks, t)
	muted, off := l.audioMuted, l.videoOff
	l.mu.Unlock()
	gate(t, muted, off)
}

// applyControls toggles the playout gates on the peer's recorded
// remote tracks.
func (l *link) applyControls(ctl api.Controls) {
	l.mu.Lock()
	if ctl.AudioMuted != nil {
		l.audioMuted = *ctl.AudioMuted
	}
	if ctl.VideoOff != nil {
		l.videoOff = *ctl.VideoOff
	}
	tracks := append([]webrtc.RemoteTrack(nil), l.tracks...)
	muted, off := l.audioMuted, l.videoOff
	l.mu.Unlock()
	for _, t := range tracks {
		gate(t, muted, off)
	}
}

func gate(t webrtc.RemoteTrack, muted, off bool) {
	switch t.Kind() {
	case "audio":
		t.SetEnabled(!muted)
	case "video":
		t.SetEnabled(!off)
	}
}

// initiate starts the exchange from the offering side.
func (l *link) initiate() {
	l.mu.Lock()
	if l.state != linkIdle {
		l.mu.Unlock()
		l.log.Warn().Msgf("initiate in state %v ignored", l.state)
		return
	}
	l.state = linkOffering
	l.mu.Unlock()
	l.offer()
}

func (l *link) offer() {
	data, err := l.neg.CreateOffer()
	if err != nil {
		l.log.Error().Err(err).Msg("offer failed")
		return
	}
	l.send(api.Offer, l.remote, data)
	l.flushLocal()
}

// handleOffer answers an inbound offer. An offer while we are
// offering ourselves means both sides thought they were the
// initiator; the exchange in flight wins and the stray offer is
// dropped.
func (l *link) handleOffer(data json.RawMessage) {
	l.mu.Lock()
	switch l.state {
	case linkOffering:
		l.mu.Unlock()
		l.log.Warn().Msg("offer collision, dropped")
		return
	case linkClosed:
		l.mu.Unlock()
		return
	}
	l.state = linkAnswering
	l.mu.Unlock()

	answer, err := l.neg.AcceptOffer(data)
	if err != nil {
		l.log.Error().Err(err).Msg("answer failed")
		return
	}
	l.send(api.Answer, l.remote, answer)
	l.flushLocal()
	l.drainRemote()
	l.settle()
}

// handleAnswer completes the exchange on the offering side.
func (l *link) handleAnswer(data json.RawMessage) {
	l.mu.Lock()
	if l.state != linkOffering {
		l.mu.Unlock()
		l.log.Warn().Msgf("answer in state %v ignored", l.state)
		return
	}
	l.mu.Unlock()
	if err := l.neg.AcceptAnswer(data); err != nil {
		l.log.Error().Err(err).Msg("accept answer failed")
		return
	}
	l.drainRemote()
	l.settle()
}

// handleCandidate applies a remote candidate, or parks it until the
// remote description lands.
func (l *link) handleCandidate(data json.RawMessage) {
	l.mu.Lock()
	if l.state == linkClosed {
		l.mu.Unlock()
		return
	}
	if !l.neg.HasRemoteDescription() {
		l.remoteBuf = append(l.remoteBuf, data)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	if err := l.neg.AddCandidate(data); err != nil {
		l.log.Error().Err(err).Msg("add candidate failed")
	}
}

// drainRemote replays buffered candidates once the remote description
// is set, preserving arrival order.
func (l *link) drainRemote() {
	l.mu.Lock()
	buf := l.remoteBuf
	l.remoteBuf = nil
	l.mu.Unlock()
	for _, data := range buf {
		if err := l.neg.AddCandidate(data); err != nil {
			l.log.Error().Err(err).Msg("add buffered candidate failed")
		}
	}
}

// onLocalCandidate ships local candidates, holding them back until the
// matching description went out first.
func (l *link) onLocalCandidate(data json.RawMessage) {
	l.mu.Lock()
	if l.state == linkClosed {
		l.mu.Unlock()
		return
	}
	if !l.sentLocal {
		l.localBuf = append(l.localBuf, data)
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()
	l.send(api.IceCandidate, l.remote, data)
}

func (l *link) flushLocal() {
	l.mu.Lock()
	l.sentLocal = true
	buf := l.localBuf
	l.localBuf = nil
	l.mu.Unlock()
	for _, data := range buf {
		l.send(api.IceCandidate, l.remote, data)
	}
}

// settle marks the exchange complete and starts the deferred
// renegotiation if one queued up meanwhile.
func (l *link) settle() {
	l.mu.Lock()
	if l.state == linkClosed {
		l.mu.Unlock()
		return
	}
	l.state = linkConnected
	redo := l.dirty
	l.dirty = false
	if redo {
		l.state = linkOffering
	}
	l.mu.Unlock()
	if redo {
		l.offer()
	}
}

// renegotiate re-runs the exchange, e.g. after local tracks changed.
// While an exchange is in flight it only flags the intent; an
// answering side never flips to offering mid-exchange.
func (l *link) renegotiate() {
	l.mu.Lock()
	switch l.state {
	case linkClosed:
		l.mu.Unlock()
		return
	case linkOffering, linkAnswering:
		l.dirty = true
		l.mu.Unlock()
		return
	}
	l.state = linkOffering
	l.mu.Unlock()
	l.offer()
}

// close tears the link down and discards anything still buffered.
// Idempotent.
func (l *link) close() {
	l.mu.Lock()
	if l.state == linkClosed {
		l.mu.Unlock()
		return
	}
	l.state = linkClosed
	l.remoteBuf, l.localBuf = nil, nil
	l.tracks = nil
	l.mu.Unlock()
	if err := l.neg.Close(); err != nil {
		l.log.Error().Err(err).Msg("close failed")
	}
}
