package com

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/meetup-rtc/meetup/pkg/logger"
)

const (
	maxMessageSize = 32 * 1024
	pongTime       = 60 * time.Second
	pingTime       = pongTime * 9 / 10
	writeWait      = 10 * time.Second
)

// WS wraps one websocket connection with serialized reads and writes.
// The server side keeps the link alive with ping/pong frames.
type WS struct {
	conn     *websocket.Conn
	send     chan []byte
	pingPong bool
	log      *logger.Logger

	OnMessage func(message []byte)

	mu     sync.Mutex
	closed bool

	// Done closes when both pumps have stopped and the socket is dead.
	Done chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
}

// NewUpgrader makes an upgrader which accepts only a fixed origin.
// An empty origin keeps the default same-host check.
func NewUpgrader(origin string) *websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		WriteBufferPool: &sync.Pool{},
	}
	switch origin {
	case "":
	case "*":
		u.CheckOrigin = func(r *http.Request) bool { return true }
	default:
		u.CheckOrigin = func(r *http.Request) bool { return r.Header.Get("Origin") == origin }
	}
	return &u
}

// NewServerWS upgrades an incoming HTTP request into a websocket.
func NewServerWS(w http.ResponseWriter, r *http.Request, up *websocket.Upgrader, log *logger.Logger) (*WS, error) {
	if up == nil {
		up = &upgrader
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, true, log), nil
}

// NewClientWS dials a websocket server.
func NewClientWS(address url.URL, log *logger.Logger) (*WS, error) {
	conn, _, err := websocket.DefaultDialer.Dial(address.String(), nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, false, log), nil
}

func newSocket(conn *websocket.Conn, pingPong bool, log *logger.Logger) *WS {
	return &WS{
		conn:     conn,
		send:     make(chan []byte, 64),
		pingPong: pingPong,
		log:      log,
		Done:     make(chan struct{}),
	}
}

// Listen starts both pumps. OnMessage must be set before the call.
func (ws *WS) Listen() {
	go ws.writer()
	go ws.reader()
}

// Write enqueues a message for the writer pump. A closed socket
// swallows the message, the protocol is fire-and-forget.
func (ws *WS) Write(data []byte) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	select {
	case ws.send <- data:
	default:
		ws.log.Warn().Msg("ws send queue overflow, message dropped")
	}
}

// Close stops the writer pump; the reader drains out on its own once
// the peer confirms (or the socket breaks).
func (ws *WS) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	ws.closed = true
	close(ws.send)
}

// reader pumps messages from the websocket connection to the OnMessage
// callback. Blocking, serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.Close()
		_ = ws.conn.Close()
		close(ws.Done)
	}()
	ws.conn.SetReadLimit(maxMessageSize)
	if ws.pingPong {
		_ = ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		ws.conn.SetPongHandler(func(string) error {
			return ws.conn.SetReadDeadline(time.Now().Add(pongTime))
		})
	}
	for {
		_, message, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Err(err).Msg("ws read")
			}
			return
		}
		if !ws.dispatch(message) {
			return
		}
	}
}

// dispatch guards the message callback: a panic in a handler tears
// down only this connection, never the process.
func (ws *WS) dispatch(message []byte) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			ws.log.Error().Msgf("recovered message handler panic: %v", v)
		}
	}()
	ws.OnMessage(message)
	return true
}

// writer pumps messages from the send channel to the websocket
// connection. Blocking, serializes all websocket writes.
func (ws *WS) writer() {
	var tick <-chan time.Time
	if ws.pingPong {
		ticker := time.NewTicker(pingTime)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case message, ok := <-ws.send:
			if !ok {
				_ = ws.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-tick:
			if err := ws.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ws *WS) write(t int, message []byte) error {
	if err := ws.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.conn.WriteMessage(t, message)
}
