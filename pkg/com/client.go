package com

import (
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/logger"
)

// SocketClient is one end of a connection channel: it delivers decoded
// protocol packets in read order and serializes outgoing ones.
type SocketClient struct {
	id   Uid
	ws   *WS
	log  *logger.Logger // carries the connection id in every line
	tag  string
	fn   func(in api.In)
	sent func(ev api.Ev) // optional send hook, used for metrics
}

type Connector struct {
	tag string
	wu  *websocket.Upgrader
}

type Option = func(c *Connector)

func WithOrigin(origin string) Option { return func(c *Connector) { c.wu = NewUpgrader(origin) } }
func WithTag(tag string) Option       { return func(c *Connector) { c.tag = tag } }

func NewConnector(opts ...Option) *Connector {
	c := &Connector{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewServer upgrades an HTTP request into a server-side channel with a
// freshly assigned connection id.
func (co *Connector) NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*SocketClient, error) {
	ws, err := NewServerWS(w, r, co.wu, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(ws, co.tag, NewUid(), log), nil
}

// NewClient dials the relay.
func (co *Connector) NewClient(address url.URL, log *logger.Logger) (*SocketClient, error) {
	ws, err := NewClientWS(address, log)
	if err != nil {
		return nil, err
	}
	return newSocketClient(ws, co.tag, NewUid(), log), nil
}

func newSocketClient(ws *WS, tag string, id Uid, log *logger.Logger) *SocketClient {
	dirLog := log.Extend(log.With().Str("cid", id.Short()))
	dirLog.Debug().Msg("Connect")
	return &SocketClient{id: id, ws: ws, tag: tag, log: dirLog}
}

func (c *SocketClient) OnPacket(fn func(in api.In)) { c.fn = fn }
func (c *SocketClient) OnSent(fn func(ev api.Ev))   { c.sent = fn }

// Listen starts the pumps; packets flow into the OnPacket callback.
func (c *SocketClient) Listen() {
	c.ws.OnMessage = c.handleMessage
	c.ws.Listen()
}

func (c *SocketClient) handleMessage(message []byte) {
	var in api.In
	if err := json.Unmarshal(message, &in); err != nil {
		c.log.Error().Err(err).Msg("undecodable packet")
		return
	}
	c.log.Debug().Msgf("← %v", in.T)
	if c.fn != nil {
		c.fn(in)
	}
}

// Notify just sends a message and goes further, no ack expected.
func (c *SocketClient) Notify(t api.Ev, payload any) {
	data, err := json.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		c.log.Error().Err(err).Msgf("encode %v", t)
		return
	}
	c.log.Debug().Msgf("→ %v", t)
	c.ws.Write(data)
	if c.sent != nil {
		c.sent(t)
	}
}

func (c *SocketClient) Disconnect() {
	c.ws.Close()
	c.log.Debug().Msg("Close")
}

func (c *SocketClient) Id() Uid             { return c.id }
func (c *SocketClient) Wait() chan struct{} { return c.ws.Done }
func (c *SocketClient) String() string      { return c.tag + ":" + c.id.String() }
func (c *SocketClient) Log() *logger.Logger { return c.log }
