package realtime

import (
	"sync"

	"support-relay-backend/internal/common/logger"
	"support-relay-backend/internal/common/metrics"
)

// Member is a live connection as seen by the room table.
type Member interface {
	ID() string
	Send(payload []byte) error
}

// Rooms tracks which live connections belong to which delivery group. A member
// holds at most one room at a time. Safe for concurrent use.
type Rooms struct {
	mu          sync.RWMutex
	rooms       map[string]map[string]Member // room -> member id -> member
	memberRooms map[string]string            // member id -> room
}

func NewRooms() *Rooms {
	return &Rooms{
		rooms:       make(map[string]map[string]Member),
		memberRooms: make(map[string]string),
	}
}

// Join registers m under room, replacing any prior membership. Rejoining the
// same room is a no-op.
func (r *Rooms) Join(room string, m Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.memberRooms[m.ID()]; ok {
		if prev == room {
			return
		}
		r.removeLocked(prev, m.ID())
	}

	members := r.rooms[room]
	if members == nil {
		members = make(map[string]Member)
		r.rooms[room] = members
	}
	members[m.ID()] = m
	r.memberRooms[m.ID()] = room

	logger.Debug().Str("room", room).Str("conn_id", m.ID()).Msg("joined room")
}

// Leave drops m from its room and returns the room it held, if any.
func (r *Rooms) Leave(m Member) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.memberRooms[m.ID()]
	if !ok {
		return "", false
	}
	r.removeLocked(room, m.ID())
	delete(r.memberRooms, m.ID())

	logger.Debug().Str("room", room).Str("conn_id", m.ID()).Msg("left room")
	return room, true
}

// RoomOf returns the room a member id currently holds.
func (r *Rooms) RoomOf(memberID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.memberRooms[memberID]
	return room, ok
}

// Members returns the number of live members of room.
func (r *Rooms) Members(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}

// Broadcast hands payload to every member of room and returns how many
// accepted it. An empty room is a silent no-op.
func (r *Rooms) Broadcast(room string, payload []byte) int {
	r.mu.RLock()
	members := make([]Member, 0, len(r.rooms[room]))
	for _, m := range r.rooms[room] {
		members = append(members, m)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range members {
		if err := m.Send(payload); err != nil {
			logger.Debug().Err(err).Str("room", room).Str("conn_id", m.ID()).Msg("push dropped")
			continue
		}
		delivered++
	}
	metrics.LiveDeliveries.Add(float64(delivered))
	return delivered
}

func (r *Rooms) removeLocked(room, memberID string) {
	members := r.rooms[room]
	delete(members, memberID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}
}
