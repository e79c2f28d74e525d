package relay

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/meetup-rtc/meetup/pkg/api"
)

// handleCreateRoom pre-allocates an empty room id, so it can be shared
// out-of-band before anyone connects.
func (h *Hub) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	id, err := h.registry.Create()
	if err != nil {
		h.log.Error().Err(err).Msg("room allocation failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, api.RoomCreated{RoomId: id})
}

// handleRoomInfo reports whether a room exists and how many
// participants it currently holds. Unknown rooms are a normal answer,
// not a 404.
func (h *Hub) handleRoomInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/rooms/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	exists, n := h.registry.Lookup(id)
	writeJSON(w, http.StatusOK, api.RoomInfo{Exists: exists, Participants: n})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("meetup relay\n"))
}
