package ws

import "sync"

// Rooms groups connections by meeting for broadcast fan-out. Rooms are
// created lazily on first join and removed once empty; an absent room
// means "no live connections", not "meeting finished".
type Rooms struct {
	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[string]map[*Conn]struct{})}
}

// Join attaches c to the meeting's room. A nil connection is a legal
// no-op: the user joined through the REST boundary and has not opened
// a transport connection yet.
func (r *Rooms) Join(meetingID string, c *Conn) {
	if c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[meetingID]
	if !ok {
		room = make(map[*Conn]struct{})
		r.rooms[meetingID] = room
	}
	room[c] = struct{}{}
}

// Leave detaches c and drops the room when it empties.
func (r *Rooms) Leave(meetingID string, c *Conn) {
	if c == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[meetingID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, meetingID)
		}
	}
}

// Members returns a copy of the room's connection set.
func (r *Rooms) Members(meetingID string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[meetingID]
	members := make([]*Conn, 0, len(room))
	for c := range room {
		members = append(members, c)
	}
	return members
}

func (r *Rooms) Size(meetingID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[meetingID])
}
