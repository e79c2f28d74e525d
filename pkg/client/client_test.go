package client

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/webrtc"
)

func TestRunReleasesMediaOnExhaustion(t *testing.T) {
	t.Parallel()

	log := logger.New(false)
	released := 0
	med, err := webrtc.NewMedia(log, func() { released++ })
	if err != nil {
		t.Fatalf("media init: %v", err)
	}

	conf := config.ClientConfig{}
	conf.Client.Relay.Address = "127.0.0.1:1"
	conf.Client.Relay.Endpoint = "/ws"
	conf.Client.Reconnect.Attempts = 1
	conf.Client.Reconnect.Delay = time.Millisecond

	c := &Client{
		conf:  conf,
		log:   log,
		media: med,
		mesh:  newMesh(&fakeEngine{}, func(_ api.Ev, _ com.Uid, _ json.RawMessage) {}, log),
		done:  make(chan struct{}),
	}

	// nothing listens on the address, so the re-dial budget runs out
	c.run()
	if released != 1 {
		t.Fatalf("capture released %d times on exhaustion, want 1", released)
	}
}
