package relay

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/meetup-rtc/meetup/pkg/com"
	"github.com/meetup-rtc/meetup/pkg/config"
)

// Participant is one live connection inside a room.
type Participant struct {
	Id   com.Uid
	Name string
}

type room struct {
	id string
	// participants keep insertion order, the roster depends on it
	participants []Participant
	created      time.Time
}

// Registry owns every live room. All operations are atomic with
// respect to each other; none of them blocks on anything but the lock.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room

	idLen    int
	emptyTTL time.Duration
	now      func() time.Time
}

var errNoFreeIds = errors.New("no free room ids")

const createAttempts = 42

func NewRegistry(conf config.Rooms) *Registry {
	return &Registry{
		rooms:    make(map[string]*room, 10),
		idLen:    conf.IdLength,
		emptyTTL: conf.EmptyTTL,
		now:      time.Now,
	}
}

// Create allocates a fresh empty room for the create-meeting flow.
// The id is guaranteed not to collide with any live room. The room is
// exempt from empty-room deletion until its first join, the sweeper
// removes it when nobody joins in time.
func (r *Registry) Create() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < createAttempts; i++ {
		id := strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")[:r.idLen]
		if _, taken := r.rooms[id]; taken {
			continue
		}
		r.rooms[id] = &room{id: id, created: r.now()}
		return id, nil
	}
	return "", errNoFreeIds
}

// Lookup is a read-only existence check.
func (r *Registry) Lookup(id string) (exists bool, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[id]; ok {
		return true, len(rm.participants)
	}
	return false, 0
}

// Join adds the participant to the end of the room's ordered list and
// returns the previous membership, excluding the joiner. An unknown
// room id creates the room, joins are idempotent on room existence.
func (r *Registry) Join(roomId string, p Participant) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomId]
	if !ok {
		rm = &room{id: roomId, created: r.now()}
		r.rooms[roomId] = rm
	}
	prior := make([]Participant, len(rm.participants))
	copy(prior, rm.participants)
	rm.participants = append(rm.participants, p)
	return prior
}

// Leave scans all rooms for the connection (it belongs to at most one),
// removes it and deletes the room when it became empty. It returns the
// remaining membership for the departure notice. The ok result is
// false when the connection was not a member of any room.
func (r *Registry) Leave(id com.Uid) (roomId string, left Participant, remaining []Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.rooms {
		for i, p := range rm.participants {
			if p.Id != id {
				continue
			}
			rm.participants = append(rm.participants[:i], rm.participants[i+1:]...)
			if len(rm.participants) == 0 {
				delete(r.rooms, rm.id)
			} else {
				remaining = make([]Participant, len(rm.participants))
				copy(remaining, rm.participants)
			}
			return rm.id, p, remaining, true
		}
	}
	return "", Participant{}, nil, false
}

// Members returns a membership snapshot for broadcasts.
func (r *Registry) Members(roomId string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomId]
	if !ok {
		return nil
	}
	members := make([]Participant, len(rm.participants))
	copy(members, rm.participants)
	return members
}

// Find resolves a participant by connection id.
func (r *Registry) Find(id com.Uid) (roomId string, p Participant, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rm := range r.rooms {
		for _, m := range rm.participants {
			if m.Id == id {
				return rm.id, m, true
			}
		}
	}
	return "", Participant{}, false
}

// Sweep removes pre-created rooms that stayed empty past their TTL.
func (r *Registry) Sweep() (removed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deadline := r.now().Add(-r.emptyTTL)
	for id, rm := range r.rooms {
		if len(rm.participants) == 0 && rm.created.Before(deadline) {
			delete(r.rooms, id)
			removed++
		}
	}
	return
}

// Size is the number of live rooms.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
