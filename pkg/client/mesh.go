package client

import (
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/logger"
)

// mesh keeps one link per room peer and decides who initiates. The
// rule is fixed: whoever learns about a peer through the arrival
// notice offers, the arriving side answers. Both ends of a pair see
// the opposite event, so every pair negotiates exactly once.
type mesh struct {
	engine Engine
	send   signalFn
	log    *logger.Logger
	links  com.Map[com.Uid, *link]
}

func newMesh(engine Engine, send signalFn, log *logger.Logger) *mesh {
	return &mesh{engine: engine, send: send, log: log, links: com.NewMap[com.Uid, *link]()}
}

// onRoster prepares a passive link per existing member; their offers
// will arrive shortly.
func (m *mesh) onRoster(roster []api.Participant) {
	for _, p := range roster {
		id, err := com.UidFromString(p.Id)
		if err != nil {
			m.log.Error().Msgf("bad peer id %q", p.Id)
			continue
		}
		if _, err = m.ensure(id, p.Name); err != nil {
			m.log.Error().Err(err).Msgf("link to %s failed", p.Name)
		}
	}
}

// onJoined reacts to a new arrival by opening the link and offering.
func (m *mesh) onJoined(p api.Participant) {
	id, err := com.UidFromString(p.Id)
	if err != nil {
		m.log.Error().Msgf("bad peer id %q", p.Id)
		return
	}
	l, err := m.ensure(id, p.Name)
	if err != nil {
		m.log.Error().Err(err).Msgf("link to %s failed", p.Name)
		return
	}
	l.initiate()
}

// onLeft closes the pair link right away without waiting for ICE to
// notice the peer is gone.
func (m *mesh) onLeft(p api.Participant) {
	id, err := com.UidFromString(p.Id)
	if err != nil {
		return
	}
	if l, ok := m.links.Pop(id); ok {
		l.close()
		m.log.Info().Msgf("closed link to %s", p.Name)
	}
}

// onSignal routes one relayed artifact to its pair link. Artifacts
// from unknown peers open a passive link, signals can outrun the
// roster.
func (m *mesh) onSignal(t api.Ev, s api.Signal) {
	from, err := com.UidFromString(s.From)
	if err != nil {
		m.log.Error().Msgf("bad sender id %q", s.From)
		return
	}
	l, err := m.ensure(from, "")
	if err != nil {
		m.log.Error().Err(err).Msg("link failed")
		return
	}
	switch t {
	case api.Offer:
		l.handleOffer(s.Data)
	case api.Answer:
		l.handleAnswer(s.Data)
	case api.IceCandidate:
		l.handleCandidate(s.Data)
	}
}

// onControls applies a media state announcement to the sender's
// recorded remote tracks.
func (m *mesh) onControls(ctl api.Controls) {
	from, err := com.UidFromString(ctl.From)
	if err != nil {
		m.log.Error().Msgf("bad sender id %q", ctl.From)
		return
	}
	if l, err := m.links.Find(from); err == nil {
		l.applyControls(ctl)
	}
}

func (m *mesh) ensure(id com.Uid, name string) (*link, error) {
	if l, err := m.links.Find(id); err == nil {
		return l, nil
	}
	neg, err := m.engine.NewNegotiator()
	if err != nil {
		return nil, err
	}
	l := newLink(id, name, neg, m.send, m.log)
	m.links.Put(id, l)
	return l, nil
}

// renegotiateAll re-offers on every settled link, used when the local
// tracks changed.
func (m *mesh) renegotiateAll() { m.links.ForEach(func(l *link) { l.renegotiate() }) }

// closeAll tears down every link, e.g. on leave or reconnect.
func (m *mesh) closeAll() {
	for _, l := range m.links.Drain() {
		l.close()
	}
}

func (m *mesh) size() int { return m.links.Len() }
