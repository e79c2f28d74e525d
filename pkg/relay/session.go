package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
)

// session is the relay-side state of one connection channel.
type session struct {
	hub  *Hub
	conn *com.SocketClient

	mu     sync.Mutex
	room   string
	name   string
	joined bool
}

func newSession(h *Hub, conn *com.SocketClient) *session {
	return &session{hub: h, conn: conn}
}

// handle dispatches one inbound packet. Malformed payloads are logged
// and dropped, they never affect other sessions.
func (s *session) handle(in api.In) {
	if in.T.IsSignal() {
		rq := api.Unwrap[api.Signal](in.Payload)
		if rq == nil {
			s.conn.Log().Error().Msgf("%v: %v", api.ErrMalformed, in.T)
			return
		}
		s.signal(in.T, *rq)
		return
	}
	switch in.T {
	case api.JoinRoom:
		rq := api.Unwrap[api.JoinRoomRequest](in.Payload)
		if rq == nil {
			s.conn.Log().Error().Msgf("%v: %v", api.ErrMalformed, in.T)
			return
		}
		s.join(*rq)
	case api.ChatMessage:
		rq := api.Unwrap[api.ChatPost](in.Payload)
		if rq == nil {
			s.conn.Log().Error().Msgf("%v: %v", api.ErrMalformed, in.T)
			return
		}
		s.chat(*rq)
	case api.UserControls:
		rq := api.Unwrap[api.Controls](in.Payload)
		if rq == nil {
			s.conn.Log().Error().Msgf("%v: %v", api.ErrMalformed, in.T)
			return
		}
		s.controls(*rq)
	default:
		s.conn.Log().Warn().Msgf("unknown event: %v", in.T)
	}
}

// join admits the session into a room: the joiner gets the prior
// roster (excluding itself), everyone already there gets the arrival
// notice.
func (s *session) join(rq api.JoinRoomRequest) {
	name := rq.Name
	if name == "" {
		name = fmt.Sprintf("User-%s", s.conn.Id().String()[:4])
	}

	s.mu.Lock()
	if s.joined {
		s.mu.Unlock()
		s.conn.Log().Warn().Msg("repeated join ignored")
		return
	}
	s.room, s.name, s.joined = rq.Room, name, true
	s.mu.Unlock()

	me := Participant{Id: s.conn.Id(), Name: name}
	prior := s.hub.registry.Join(rq.Room, me)
	s.hub.metrics.participants.Inc()

	roster := make([]api.Participant, len(prior))
	for i, p := range prior {
		roster[i] = api.Participant{Id: p.Id.String(), Name: p.Name}
	}
	// roster first, then the arrival fan-out
	s.conn.Notify(api.RoomParticipants, roster)
	s.hub.broadcast(rq.Room, api.UserJoined, api.Participant{Id: me.Id.String(), Name: me.Name}, me.Id)
	s.conn.Log().Info().Msgf("%s joined room %s", name, rq.Room)
}

// signal forwards one negotiation artifact to exactly the named
// target. The sender id is attributed here, a client-supplied value
// never survives the hop.
func (s *session) signal(t api.Ev, rq api.Signal) {
	target, err := com.UidFromString(rq.To)
	if err != nil {
		s.conn.Log().Error().Msgf("%v: bad target %q", t, rq.To)
		return
	}
	s.hub.routeTo(target, t, api.Signal{From: s.conn.Id().String(), Data: rq.Data})
}

// chat broadcasts to the whole room, sender included: everyone,
// including the author, renders the same relay-ordered stream.
func (s *session) chat(rq api.ChatPost) {
	s.mu.Lock()
	room, name, joined := s.room, s.name, s.joined
	s.mu.Unlock()
	if !joined {
		return
	}
	s.hub.broadcast(room, api.ChatMessage, api.Chat{
		Id:     uuid.Must(uuid.NewV4()).String(),
		Text:   rq.Text,
		Sender: name,
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
	}, com.NilUid)
}

// controls fans out a media state announcement to everyone else.
func (s *session) controls(rq api.Controls) {
	s.mu.Lock()
	room, joined := s.room, s.joined
	s.mu.Unlock()
	if !joined {
		return
	}
	rq.From = s.conn.Id().String()
	s.hub.broadcast(room, api.UserControls, rq, s.conn.Id())
}

// leave runs the common cleanup for explicit exits and dead channels:
// remove from the registry, tell the remaining members, drop the room
// when it became empty.
func (s *session) leave() {
	s.mu.Lock()
	joined := s.joined
	s.joined = false
	s.mu.Unlock()
	if !joined {
		return
	}
	roomId, left, remaining, ok := s.hub.registry.Leave(s.conn.Id())
	if !ok {
		return
	}
	s.hub.metrics.participants.Dec()
	s.hub.notifyLeave(remaining, left)
	s.conn.Log().Info().Msgf("%s left room %s", left.Name, roomId)
}
