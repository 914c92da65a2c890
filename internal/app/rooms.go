package app

import (
	"errors"
	"sync"

	"github.com/dkeye/meethub/internal/core"
	"github.com/dkeye/meethub/internal/domain"
	"github.com/rs/zerolog/log"
)

// Rooms is a threadsafe meetingId -> connections index.
// A room exists only while it has members.
type Rooms struct {
	mu    sync.RWMutex
	rooms map[domain.MeetingID]map[core.ConnID]*core.Connection
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.MeetingID]map[core.ConnID]*core.Connection)}
}

// Join adds c to the room of its meeting and returns the room size.
func (r *Rooms) Join(c *core.Connection) int {
	m := c.MeetingID()
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[m]
	if !ok {
		room = make(map[core.ConnID]*core.Connection)
		r.rooms[m] = room
		log.Info().Str("module", "app.rooms").Str("meeting", string(m)).Msg("room created")
	}
	room[c.ID()] = c
	return len(room)
}

// Leave removes c and deletes the room when it becomes empty.
// It returns the remaining size and whether c was a member.
func (r *Rooms) Leave(c *core.Connection) (int, bool) {
	m := c.MeetingID()
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[m]
	if !ok {
		return 0, false
	}
	if _, ok := room[c.ID()]; !ok {
		return len(room), false
	}
	delete(room, c.ID())
	if len(room) == 0 {
		delete(r.rooms, m)
		log.Info().Str("module", "app.rooms").Str("meeting", string(m)).Msg("room removed")
		return 0, true
	}
	return len(room), true
}

func (r *Rooms) Members(m domain.MeetingID) []*core.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[m]
	out := make([]*core.Connection, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) Size(m domain.MeetingID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[m])
}

// Len is the number of live rooms.
func (r *Rooms) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Rooms) List() []core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(r.rooms))
	for m, room := range r.rooms {
		out = append(out, core.RoomInfo{MeetingID: m, MemberCount: len(room)})
	}
	return out
}

// All returns every open connection across rooms.
func (r *Rooms) All() []*core.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*core.Connection
	for _, room := range r.rooms {
		for _, c := range room {
			out = append(out, c)
		}
	}
	return out
}

// Broadcast sends f to a snapshot of the room, skipping exclude.
// Sends happen after the lock is released.
func (r *Rooms) Broadcast(m domain.MeetingID, f core.Frame, exclude *core.Connection) core.PublishResult {
	res := core.PublishResult{}
	for _, c := range r.Members(m) {
		if c == exclude {
			continue
		}
		if err := c.Send(f); err != nil {
			if errors.Is(err, core.ErrBackpressure) {
				res.Dropped = append(res.Dropped, c)
			}
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.rooms").Str("meeting", string(m)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
