// Package api defines the relay wire protocol shared by the server and clients.
//
// Each message is a JSON-encoded packet of the following structure:
//
//	t - (required) one of the predefined event names;
//	p - (optional) packet payload with event-specific data.
//
// Packets differentiate by their event name, with which it is possible
// to unwrap the payload into distinct request/response data structures.
//
// Example:
//
//	{"t":"user-joined","p":{"id":"cfv68irdrc3ifu3jn6bg","name":"Alice"}}
package api

import (
	"errors"

	"github.com/goccy/go-json"
)

// Ev is a protocol event name.
type Ev string

const (
	JoinRoom         Ev = "join-room"
	RoomParticipants Ev = "room-participants"
	UserJoined       Ev = "user-joined"
	UserLeft         Ev = "user-left"
	Offer            Ev = "offer"
	Answer           Ev = "answer"
	IceCandidate     Ev = "ice-candidate"
	ChatMessage      Ev = "chat-message"
	UserControls     Ev = "user-controls"
)

type In struct {
	T       Ev              `json:"t"`
	Payload json.RawMessage `json:"p,omitempty"` // 2-pass unmarshal
}

type Out struct {
	T       Ev  `json:"t"`
	Payload any `json:"p,omitempty"`
}

var ErrMalformed = errors.New("malformed")

// Unwrap decodes a raw payload into T, nil on any decode error.
func Unwrap[T any](data []byte) *T {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil
	}
	return out
}

// IsSignal reports whether the event is one of the point-to-point
// negotiation relays.
func (e Ev) IsSignal() bool { return e == Offer || e == Answer || e == IceCandidate }
