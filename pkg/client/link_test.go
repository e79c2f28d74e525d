package client

import (
	"fmt"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/webrtc"
)

// fakeNeg records the negotiation calls instead of doing any media.
type fakeNeg struct {
	mu         sync.Mutex
	onIce      func(data json.RawMessage)
	onTrack    func(t webrtc.RemoteTrack)
	hasRemote  bool
	offers     int
	accepted   int
	candidates []string
	closes     int
}

func (f *fakeNeg) OnIceCandidate(fn func(data json.RawMessage)) { f.onIce = fn }

func (f *fakeNeg) OnRemoteTrack(fn func(t webrtc.RemoteTrack)) { f.onTrack = fn }

func (f *fakeNeg) CreateOffer() (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offers++
	return json.RawMessage(fmt.Sprintf(`{"sdp":"offer-%d"}`, f.offers)), nil
}

func (f *fakeNeg) AcceptOffer(json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted++
	f.hasRemote = true
	return json.RawMessage(`{"sdp":"answer"}`), nil
}

func (f *fakeNeg) AcceptAnswer(json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasRemote = true
	return nil
}

func (f *fakeNeg) AddCandidate(data json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candidates = append(f.candidates, string(data))
	return nil
}

func (f *fakeNeg) HasRemoteDescription() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasRemote
}

func (f *fakeNeg) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// emit pushes a local candidate through the registered callback.
func (f *fakeNeg) emit(s string) { f.onIce(json.RawMessage(s)) }

// emitTrack delivers an incoming media track, as the peer would on
// the first inbound RTP packet.
func (f *fakeNeg) emitTrack(t webrtc.RemoteTrack) { f.onTrack(t) }

// fakeTrack is a RemoteTrack with just the playout gate.
type fakeTrack struct {
	kind string

	mu      sync.Mutex
	enabled bool
}

func newFakeTrack(kind string) *fakeTrack { return &fakeTrack{kind: kind, enabled: true} }

func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

type sentMsg struct {
	t    api.Ev
	to   com.Uid
	data string
}

// recorder collects everything a link ships out, in order.
type recorder struct {
	mu   sync.Mutex
	msgs []sentMsg
}

func (r *recorder) send(t api.Ev, to com.Uid, data json.RawMessage) {
	r.mu.Lock()
	r.msgs = append(r.msgs, sentMsg{t: t, to: to, data: string(data)})
	r.mu.Unlock()
}

func (r *recorder) sent() []sentMsg {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMsg(nil), r.msgs...)
}

func testLink(t *testing.T) (*link, *fakeNeg, *recorder) {
	t.Helper()
	neg := &fakeNeg{}
	rec := &recorder{}
	return newLink(com.NewUid(), "Bob", neg, rec.send, logger.New(false)), neg, rec
}

func TestLinkOfferAnswer(t *testing.T) {
	t.Parallel()
	l, neg, rec := testLink(t)

	l.initiate()
	if neg.offers != 1 {
		t.Fatalf("offers = %d, want 1", neg.offers)
	}
	if sent := rec.sent(); len(sent) != 1 || sent[0].t != api.Offer || sent[0].to != l.remote {
		t.Fatalf("sent = %+v", sent)
	}

	l.handleAnswer(json.RawMessage(`{"sdp":"answer"}`))
	if !neg.hasRemote {
		t.Fatal("answer was not applied")
	}
	if l.state != linkConnected {
		t.Fatalf("state = %v, want connected", l.state)
	}
}

func TestLinkAnswersInboundOffer(t *testing.T) {
	t.Parallel()
	l, neg, rec := testLink(t)

	l.handleOffer(json.RawMessage(`{"sdp":"offer"}`))
	if neg.accepted != 1 {
		t.Fatalf("accepted = %d, want 1", neg.accepted)
	}
	if sent := rec.sent(); len(sent) != 1 || sent[0].t != api.Answer {
		t.Fatalf("sent = %+v", sent)
	}
	if l.state != linkConnected {
		t.Fatalf("state = %v, want connected", l.state)
	}
}

func TestLinkBuffersEarlyCandidates(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	l.handleCandidate(json.RawMessage(`"c1"`))
	l.handleCandidate(json.RawMessage(`"c2"`))
	if len(neg.candidates) != 0 {
		t.Fatalf("candidates applied before the description: %v", neg.candidates)
	}

	l.handleOffer(json.RawMessage(`{"sdp":"offer"}`))
	if len(neg.candidates) != 2 || neg.candidates[0] != `"c1"` || neg.candidates[1] != `"c2"` {
		t.Fatalf("candidates = %v, want arrival order", neg.candidates)
	}

	// later candidates go straight through
	l.handleCandidate(json.RawMessage(`"c3"`))
	if len(neg.candidates) != 3 || neg.candidates[2] != `"c3"` {
		t.Fatalf("candidates = %v", neg.candidates)
	}
}

func TestLinkOfferCollision(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	l.initiate()
	l.handleOffer(json.RawMessage(`{"sdp":"offer"}`))
	if neg.accepted != 0 {
		t.Fatal("colliding offer was accepted")
	}
	if l.state != linkOffering {
		t.Fatalf("state = %v, want offering", l.state)
	}
}

func TestLinkQueuesLocalCandidates(t *testing.T) {
	t.Parallel()
	l, neg, rec := testLink(t)

	neg.emit(`"early"`)
	if len(rec.sent()) != 0 {
		t.Fatal("candidate shipped before the description")
	}

	l.initiate()
	sent := rec.sent()
	if len(sent) != 2 || sent[0].t != api.Offer || sent[1].t != api.IceCandidate || sent[1].data != `"early"` {
		t.Fatalf("sent = %+v, want offer then candidate", sent)
	}

	neg.emit(`"late"`)
	sent = rec.sent()
	if len(sent) != 3 || sent[2].data != `"late"` {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestLinkDefersRenegotiation(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	l.initiate()
	l.renegotiate()
	if neg.offers != 1 {
		t.Fatalf("offers = %d, renegotiation was not deferred", neg.offers)
	}

	l.handleAnswer(json.RawMessage(`{"sdp":"answer"}`))
	if neg.offers != 2 {
		t.Fatalf("offers = %d, deferred renegotiation did not fire", neg.offers)
	}
	if l.state != linkOffering {
		t.Fatalf("state = %v, want offering", l.state)
	}
}

func TestLinkRenegotiateWhenSettled(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	l.handleOffer(json.RawMessage(`{"sdp":"offer"}`))
	l.renegotiate()
	if neg.offers != 1 {
		t.Fatalf("offers = %d, want re-offer after settling", neg.offers)
	}
}

func TestLinkClose(t *testing.T) {
	t.Parallel()
	l, neg, rec := testLink(t)

	l.handleCandidate(json.RawMessage(`"c1"`))
	l.close()
	l.close()
	if neg.closes != 1 {
		t.Fatalf("closes = %d, want 1", neg.closes)
	}

	// a closed link ignores everything
	l.handleOffer(json.RawMessage(`{"sdp":"offer"}`))
	l.handleCandidate(json.RawMessage(`"c2"`))
	neg.emit(`"local"`)
	if neg.accepted != 0 || len(neg.candidates) != 0 || len(rec.sent()) != 0 {
		t.Fatal("closed link kept working")
	}
}

func TestLinkAppliesControls(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	audio := newFakeTrack("audio")
	video := newFakeTrack("video")
	neg.emitTrack(audio)
	neg.emitTrack(video)

	muted := true
	l.applyControls(api.Controls{AudioMuted: &muted})
	if audio.Enabled() {
		t.Fatal("mute did not reach the audio track")
	}
	if !video.Enabled() {
		t.Fatal("mute spilled over onto the video track")
	}

	off := true
	l.applyControls(api.Controls{VideoOff: &off})
	if video.Enabled() {
		t.Fatal("camera-off did not reach the video track")
	}
	if audio.Enabled() {
		t.Fatal("camera-off re-enabled the audio track")
	}

	// absent fields leave the gates alone
	l.applyControls(api.Controls{})
	if audio.Enabled() || video.Enabled() {
		t.Fatal("empty update flipped a gate")
	}

	unmuted := false
	l.applyControls(api.Controls{AudioMuted: &unmuted})
	if !audio.Enabled() {
		t.Fatal("unmute did not reach the audio track")
	}
}

func TestLinkGatesLateTrack(t *testing.T) {
	t.Parallel()
	l, neg, _ := testLink(t)

	// the peer announced mute before any of its media arrived
	muted := true
	l.applyControls(api.Controls{AudioMuted: &muted})

	audio := newFakeTrack("audio")
	neg.emitTrack(audio)
	if audio.Enabled() {
		t.Fatal("late audio track was not gated on arrival")
	}

	video := newFakeTrack("video")
	neg.emitTrack(video)
	if !video.Enabled() {
		t.Fatal("late video track should play, only audio is muted")
	}
}
