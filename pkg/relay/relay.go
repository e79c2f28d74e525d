package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/network/httpx"
	"github.com/prometheus/client_golang/prometheus"
)

// Relay is the public HTTP surface: the signaling endpoint plus the
// small room management API and a background sweeper for stale
// pre-created rooms.
type Relay struct {
	hub    *Hub
	server *httpx.Server
	log    *logger.Logger
	sweep  time.Duration
	done   chan struct{}
}

func New(conf config.RelayConfig, log *logger.Logger) (*Relay, error) {
	hub := NewHub(conf.Relay, log, prometheus.DefaultRegisterer)
	server, err := httpx.NewServer(
		conf.Relay.Server.Address,
		func(*httpx.Server) http.Handler {
			mux := http.NewServeMux()
			mux.HandleFunc("/", index)
			mux.HandleFunc("/ws", hub.handleConnection)
			mux.HandleFunc("/api/rooms", hub.handleCreateRoom)
			mux.HandleFunc("/api/rooms/", hub.handleRoomInfo)
			return mux
		},
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	ttl := conf.Relay.Rooms.EmptyTTL
	return &Relay{hub: hub, server: server, log: log, sweep: ttl, done: make(chan struct{})}, nil
}

func (r *Relay) Hub() *Hub { return r.hub }

func (r *Relay) Run() {
	r.server.Run()
	go r.sweeper()
}

// sweeper periodically drops pre-created rooms nobody ever joined.
func (r *Relay) sweeper() {
	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.hub.Registry().Sweep(); n > 0 {
				r.log.Debug().Msgf("swept %d stale room(s)", n)
			}
		case <-r.done:
			return
		}
	}
}

func (r *Relay) Shutdown(ctx context.Context) error {
	close(r.done)
	return r.server.Shutdown(ctx)
}

func (r *Relay) String() string { return "relay::" + r.server.Addr }
