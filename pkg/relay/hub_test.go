package relay

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/meetup-rtc/meetup/pkg/api"
	"github.com/meetup-rtc/meetup/pkg/config"
	"github.com/meetup-rtc/meetup/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	conf := config.Relay{Origin: "*", Rooms: config.Rooms{IdLength: 8, EmptyTTL: time.Minute}}
	h := NewHub(conf, logger.New(false), prometheus.NewPedanticRegistry())
	ts := httptest.NewServer(http.HandlerFunc(h.handleConnection))
	t.Cleanup(ts.Close)
	return h, ts
}

// testPeer drives one raw connection channel from the client side.
type testPeer struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialPeer(t *testing.T, ts *httptest.Server) *testPeer {
	t.Helper()
	address := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(address, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &testPeer{t: t, conn: conn}
}

func (p *testPeer) send(t api.Ev, payload any) {
	p.t.Helper()
	data, err := json.Marshal(api.Out{T: t, Payload: payload})
	if err != nil {
		p.t.Fatalf("marshal: %v", err)
	}
	if err = p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

func (p *testPeer) recv(want api.Ev) api.In {
	p.t.Helper()
	_ = p.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := p.conn.ReadMessage()
	if err != nil {
		p.t.Fatalf("read: %v", err)
	}
	var in api.In
	if err = json.Unmarshal(data, &in); err != nil {
		p.t.Fatalf("decode %q: %v", data, err)
	}
	if in.T != want {
		p.t.Fatalf("got event %q, want %q (payload %s)", in.T, want, in.Payload)
	}
	return in
}

func unwrap[T any](t *testing.T, in api.In) T {
	t.Helper()
	v := api.Unwrap[T](in.Payload)
	if v == nil {
		t.Fatalf("malformed %q payload: %s", in.T, in.Payload)
	}
	return *v
}

func TestSignalingFlow(t *testing.T) {
	t.Parallel()
	h, ts := testHub(t)

	alice := dialPeer(t, ts)
	alice.send(api.JoinRoom, api.JoinRoomRequest{Room: "abc123", Name: "Alice"})
	if roster := unwrap[[]api.Participant](t, alice.recv(api.RoomParticipants)); len(roster) != 0 {
		t.Fatalf("first joiner roster = %+v, want empty", roster)
	}

	bob := dialPeer(t, ts)
	bob.send(api.JoinRoom, api.JoinRoomRequest{Room: "abc123", Name: "Bob"})
	roster := unwrap[[]api.Participant](t, bob.recv(api.RoomParticipants))
	if len(roster) != 1 || roster[0].Name != "Alice" {
		t.Fatalf("second joiner roster = %+v, want [Alice]", roster)
	}
	aliceId := roster[0].Id

	joined := unwrap[api.Participant](t, alice.recv(api.UserJoined))
	if joined.Name != "Bob" {
		t.Fatalf("arrival notice = %+v, want Bob", joined)
	}
	bobId := joined.Id

	// the relay must overwrite the sender id, a spoofed From never
	// reaches the target
	alice.send(api.Offer, api.Signal{To: bobId, From: "spoofed", Data: json.RawMessage(`{"sdp":"o1"}`)})
	offer := unwrap[api.Signal](t, bob.recv(api.Offer))
	if offer.From != aliceId {
		t.Fatalf("offer from %q, want %q", offer.From, aliceId)
	}
	if string(offer.Data) != `{"sdp":"o1"}` {
		t.Fatalf("offer data = %s", offer.Data)
	}

	bob.send(api.Answer, api.Signal{To: aliceId, Data: json.RawMessage(`{"sdp":"a1"}`)})
	answer := unwrap[api.Signal](t, alice.recv(api.Answer))
	if answer.From != bobId || string(answer.Data) != `{"sdp":"a1"}` {
		t.Fatalf("answer = %+v", answer)
	}

	bob.send(api.IceCandidate, api.Signal{To: aliceId, Data: json.RawMessage(`{"candidate":"c1"}`)})
	ice := unwrap[api.Signal](t, alice.recv(api.IceCandidate))
	if ice.From != bobId || string(ice.Data) != `{"candidate":"c1"}` {
		t.Fatalf("candidate = %+v", ice)
	}

	// chat fans out to everyone including the author, with the name
	// resolved on the relay side
	bob.send(api.ChatMessage, api.ChatPost{Text: "hi"})
	for _, p := range []*testPeer{alice, bob} {
		msg := unwrap[api.Chat](t, p.recv(api.ChatMessage))
		if msg.Sender != "Bob" || msg.Text != "hi" || msg.Id == "" {
			t.Fatalf("chat = %+v", msg)
		}
		if _, err := time.Parse(time.RFC3339Nano, msg.Ts); err != nil {
			t.Fatalf("chat ts %q: %v", msg.Ts, err)
		}
	}

	// controls go to everyone but the author
	muted := true
	alice.send(api.UserControls, api.Controls{AudioMuted: &muted})
	ctl := unwrap[api.Controls](t, bob.recv(api.UserControls))
	if ctl.From != aliceId || ctl.AudioMuted == nil || !*ctl.AudioMuted {
		t.Fatalf("controls = %+v", ctl)
	}

	// a dropped channel produces the same departure notice as an
	// explicit leave
	_ = bob.conn.Close()
	left := unwrap[api.Participant](t, alice.recv(api.UserLeft))
	if left.Id != bobId || left.Name != "Bob" {
		t.Fatalf("departure = %+v", left)
	}

	waitFor(t, func() bool {
		_, n := h.Registry().Lookup("abc123")
		return n == 1
	})
}

func TestDefaultName(t *testing.T) {
	t.Parallel()
	_, ts := testHub(t)

	alice := dialPeer(t, ts)
	alice.send(api.JoinRoom, api.JoinRoomRequest{Room: "abc123", Name: "Alice"})
	alice.recv(api.RoomParticipants)

	anon := dialPeer(t, ts)
	anon.send(api.JoinRoom, api.JoinRoomRequest{Room: "abc123"})
	anon.recv(api.RoomParticipants)

	joined := unwrap[api.Participant](t, alice.recv(api.UserJoined))
	if !strings.HasPrefix(joined.Name, "User-") {
		t.Fatalf("default name = %q, want User- prefix", joined.Name)
	}
}

func TestRouteMiss(t *testing.T) {
	t.Parallel()
	h, ts := testHub(t)

	alice := dialPeer(t, ts)
	alice.send(api.JoinRoom, api.JoinRoomRequest{Room: "abc123", Name: "Alice"})
	alice.recv(api.RoomParticipants)

	alice.send(api.Offer, api.Signal{To: "cfv68irdrc3ifu3jn6bg", Data: json.RawMessage(`{}`)})
	waitFor(t, func() bool { return testutil.ToFloat64(h.metrics.drops) == 1 })
}

func TestRoomHTTPApi(t *testing.T) {
	t.Parallel()
	conf := config.Relay{Origin: "*", Rooms: config.Rooms{IdLength: 8, EmptyTTL: time.Minute}}
	h := NewHub(conf, logger.New(false), prometheus.NewPedanticRegistry())
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms", h.handleCreateRoom)
	mux.HandleFunc("/api/rooms/", h.handleRoomInfo)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	res, err := http.Post(ts.URL+"/api/rooms", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var created api.RoomCreated
	if err = json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(created.RoomId) != 8 {
		t.Fatalf("room id = %q", created.RoomId)
	}

	for id, want := range map[string]bool{created.RoomId: true, "missing0": false} {
		res, err := http.Get(ts.URL + "/api/rooms/" + id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		var info api.RoomInfo
		err = json.NewDecoder(res.Body).Decode(&info)
		res.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if info.Exists != want || info.Participants != 0 {
			t.Fatalf("info(%s) = %+v", id, info)
		}
	}

	// method guard
	res2, err := http.Get(ts.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", res2.StatusCode)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
