package client

import (
	"context"
	"net/url"
	"sync"

	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/meetup-rtc/meetup/pkg/network"
	"github.com/meetup-rtc/meetup/pkg/webrtc"
	"github.com/pion/webrtc/v3/pkg/media"
)

// Client is one meeting participant: it holds the relay channel, the
// local media and the peer mesh, and survives relay drops by
// re-dialing and re-joining from scratch.
type Client struct {
	conf config.ClientConfig
	log  *logger.Logger

	engine Engine
	media  *webrtc.Media
	mesh   *mesh

	mu   sync.Mutex
	conn *com.SocketClient
	done chan struct{}

	// OnChat and OnControls surface room traffic to the embedding
	// application.
	OnChat     func(msg api.Chat)
	OnControls func(c api.Controls)
}

func New(conf config.ClientConfig, log *logger.Logger) (*Client, error) {
	conf.Webrtc.AddIceServersEnv()
	factory, err := webrtc.NewApiFactory(conf.Webrtc, log, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{conf: conf, log: log, done: make(chan struct{})}

	// No capture device degrades to a chat-only participant with
	// receive-only links instead of failing the whole session.
	var media *webrtc.Media
	if !conf.Client.ChatOnly {
		if media, err = webrtc.NewMedia(log, nil); err != nil {
			log.Warn().Err(err).Msg("no local media, joining chat-only")
			media = nil
		}
	}
	c.media = media
	c.engine = newMediaEngine(factory, media, log)
	c.mesh = newMesh(c.engine, c.signal, log)
	return c, nil
}

// Run dials the relay and keeps the session alive until Shutdown.
// Every successful dial starts a fresh join; the mesh is rebuilt from
// the new roster.
func (c *Client) Run() { go c.run() }

func (c *Client) run() {
	// the shared capture is released on every exit path, not only the
	// clean one
	defer c.release()
	retry := network.NewRetry(c.conf.Client.Reconnect.Attempts, c.conf.Client.Reconnect.Delay)
	for {
		conn, err := c.dial()
		if err != nil {
			c.log.Error().Err(err).Msgf("relay dial failed, attempt %d", retry.Attempts()+1)
			if !retry.Fail() {
				c.log.Error().Msg("relay is unreachable, giving up")
				return
			}
			continue
		}
		retry.Success()

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		conn.OnPacket(c.handle)
		conn.Listen()
		c.join(conn)

		select {
		case <-conn.Wait():
		case <-c.done:
			conn.Disconnect()
			return
		}
		// the channel died under us; drop the stale mesh and re-dial
		c.log.Warn().Msg("relay channel lost")
		c.mesh.closeAll()
		if !retry.Fail() {
			c.log.Error().Msg("relay is unreachable, giving up")
			return
		}
	}
}

// release tears the session state down in order: links first, then the
// shared local media. Safe to call more than once.
func (c *Client) release() {
	c.mesh.closeAll()
	if c.media != nil {
		c.media.Close()
	}
}

func (c *Client) dial() (*com.SocketClient, error) {
	scheme := "ws"
	if c.conf.Client.Relay.Secure {
		scheme = "wss"
	}
	address := url.URL{Scheme: scheme, Host: c.conf.Client.Relay.Address, Path: c.conf.Client.Relay.Endpoint}
	connector := com.NewConnector(com.WithTag("client"))
	return connector.NewClient(address, c.log)
}

func (c *Client) join(conn *com.SocketClient) {
	conn.Notify(api.JoinRoom, api.JoinRoomRequest{Room: c.conf.Client.Room, Name: c.conf.Client.Name})
}

func (c *Client) handle(in api.In) {
	if in.T.IsSignal() {
		rq := api.Unwrap[api.Signal](in.Payload)
		if rq == nil {
			return
		}
		c.mesh.onSignal(in.T, *rq)
		return
	}
	switch in.T {
	case api.RoomParticipants:
		rq := api.Unwrap[[]api.Participant](in.Payload)
		if rq == nil {
			c.log.Error().Msgf("%v: %v", api.ErrMalformed, in.T)
			return
		}
		c.log.Info().Msgf("joined, %d peer(s) present", len(*rq))
		c.mesh.onRoster(*rq)
	case api.UserJoined:
		rq := api.Unwrap[api.Participant](in.Payload)
		if rq == nil {
			return
		}
		c.log.Info().Msgf("%s joined", rq.Name)
		c.mesh.onJoined(*rq)
	case api.UserLeft:
		rq := api.Unwrap[api.Participant](in.Payload)
		if rq == nil {
			return
		}
		c.mesh.onLeft(*rq)
	case api.ChatMessage:
		rq := api.Unwrap[api.Chat](in.Payload)
		if rq == nil {
			return
		}
		if c.OnChat != nil {
			c.OnChat(*rq)
		}
	case api.UserControls:
		rq := api.Unwrap[api.Controls](in.Payload)
		if rq == nil {
			return
		}
		c.mesh.onControls(*rq)
		if c.OnControls != nil {
			c.OnControls(*rq)
		}
	default:
		c.log.Warn().Msgf("unknown event: %v", in.T)
	}
}

// signal ships one negotiation artifact through the relay. The relay
// fills From on the way through.
func (c *Client) signal(t api.Ev, to com.Uid, data json.RawMessage) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Notify(t, api.Signal{To: to.String(), Data: data})
}

// SendChat posts a text message to the room. The echo with the final
// id and timestamp comes back through OnChat like everyone else's.
func (c *Client) SendChat(text string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Notify(api.ChatMessage, api.ChatPost{Text: text})
}

// WriteAudio feeds one encoded audio sample into the shared capture
// track. A no-op in chat-only mode.
func (c *Client) WriteAudio(sample media.Sample) error {
	if c.media == nil {
		return nil
	}
	return c.media.WriteAudio(sample)
}

// WriteVideo feeds one encoded video sample into the shared capture
// track. A no-op in chat-only mode.
func (c *Client) WriteVideo(sample media.Sample) error {
	if c.media == nil {
		return nil
	}
	return c.media.WriteVideo(sample)
}

// SetMuted flips the audio gate and announces the new state.
func (c *Client) SetMuted(muted bool) {
	if c.media != nil {
		c.media.SetMuted(muted)
	}
	c.announce(api.Controls{AudioMuted: &muted})
}

// SetVideoOff flips the video gate and announces the new state.
func (c *Client) SetVideoOff(off bool) {
	if c.media != nil {
		c.media.SetVideoOff(off)
	}
	c.announce(api.Controls{VideoOff: &off})
}

func (c *Client) announce(ctl api.Controls) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	conn.Notify(api.UserControls, ctl)
}

// Renegotiate re-runs the exchange on every settled link, used after
// the local track set changes.
func (c *Client) Renegotiate() { c.mesh.renegotiateAll() }

// Peers reports how many mesh links are currently open.
func (c *Client) Peers() int { return c.mesh.size() }

func (c *Client) Shutdown(context.Context) error {
	close(c.done)
	return nil
}

func (c *Client) String() string { return "client::" + c.conf.Client.Relay.Address }
