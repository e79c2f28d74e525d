package api

import "github.com/goccy/go-json"

// Participant is the public identity of one connection in a room.
type Participant struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type JoinRoomRequest struct {
	Room string `json:"room"`
	Name string `json:"name,omitempty"`
}

// Signal carries one opaque negotiation artifact (an SDP or an ICE
// candidate). Clients address it with To; the relay replaces that with
// the authenticated From before forwarding. The payload is never
// interpreted by the relay.
type Signal struct {
	To   string          `json:"to,omitempty"`
	From string          `json:"from,omitempty"`
	Data json.RawMessage `json:"data"`
}

type ChatPost struct {
	Text string `json:"text"`
}

type Chat struct {
	Id     string `json:"id"`
	Text   string `json:"text"`
	Sender string `json:"sender"`
	Ts     string `json:"ts"`
}

// Controls is a compact media state announcement. Pointer fields
// distinguish "unchanged" from an explicit false.
type Controls struct {
	AudioMuted *bool  `json:"audioMuted,omitempty"`
	VideoOff   *bool  `json:"videoOff,omitempty"`
	From       string `json:"from,omitempty"`
}

// Room HTTP API bodies.
type (
	RoomCreated struct {
		RoomId string `json:"roomId"`
	}
	RoomInfo struct {
		Exists       bool `json:"exists"`
		Participants int  `json:"participants"`
	}
)
