package relay

import (
	"net/http"

	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// Hub ties the room registry to the live connection channels and does
// all the message routing. Delivery is fire-and-forget: a message for
// a connection that is gone is dropped, the departure notice is the
// mechanism that corrects the peers (not delivery errors).
type Hub struct {
	conf      config.Relay
	log       *logger.Logger
	registry  *Registry
	sessions  com.Map[com.Uid, *session]
	connector *com.Connector
	metrics   *metrics
}

func NewHub(conf config.Relay, log *logger.Logger, reg prometheus.Registerer) *Hub {
	registry := NewRegistry(conf.Rooms)
	return &Hub{
		conf:      conf,
		log:       log,
		registry:  registry,
		sessions:  com.NewMap[com.Uid, *session](),
		connector: com.NewConnector(com.WithOrigin(conf.Origin), com.WithTag("relay")),
		metrics:   newMetrics(registry, reg),
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// handleConnection serves one connection channel for its whole life.
// Packet handlers are guarded on the reader pump; this recover covers
// the upgrade and teardown path so one session cannot take the relay
// down.
func (h *Hub) handleConnection(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if v := recover(); v != nil {
			h.log.Error().Msgf("recovered session panic: %v", v)
		}
	}()

	conn, err := h.connector.NewServer(w, r, h.log)
	if err != nil {
		h.log.Error().Err(err).Msg("couldn't upgrade the connection")
		return
	}
	user := newSession(h, conn)
	h.sessions.Put(conn.Id(), user)
	conn.OnPacket(user.handle)
	conn.Listen()

	<-conn.Wait()
	h.sessions.RemoveByKey(conn.Id())
	// a dropped channel cleans up the same way an explicit leave does
	user.leave()
}

// routeTo delivers to exactly one connection, dropping on a miss.
func (h *Hub) routeTo(target com.Uid, t api.Ev, payload any) {
	user, err := h.sessions.Find(target)
	if err != nil {
		h.metrics.drops.Inc()
		h.log.Debug().Msgf("drop %v for %v: target gone", t, target.Short())
		return
	}
	user.conn.Notify(t, payload)
	h.metrics.relayed.WithLabelValues(string(t)).Inc()
}

// broadcast delivers to every member of the room, except one optional
// connection (pass com.NilUid to include everybody).
func (h *Hub) broadcast(roomId string, t api.Ev, payload any, except com.Uid) {
	for _, member := range h.registry.Members(roomId) {
		if member.Id == except {
			continue
		}
		if user, err := h.sessions.Find(member.Id); err == nil {
			user.conn.Notify(t, payload)
		}
	}
	h.metrics.relayed.WithLabelValues(string(t)).Inc()
}

// notifyLeave is sent to a concrete member list because the room may
// already be deleted by the time the notice goes out.
func (h *Hub) notifyLeave(members []Participant, left Participant) {
	out := api.Participant{Id: left.Id.String(), Name: left.Name}
	for _, member := range members {
		if user, err := h.sessions.Find(member.Id); err == nil {
			user.conn.Notify(api.UserLeft, out)
		}
	}
	h.metrics.relayed.WithLabelValues(string(api.UserLeft)).Inc()
}
