// Package room owns every chat room held in memory.
package room

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// room is the per-session aggregate. It never leaves the registry; callers get
// copies through Info, GetHistory and Members.
type room struct {
	sessionID string
	createdAt time.Time
	messages  []*types.Message
	members   map[string]interfaces.Connection
	order     []string // member ids in join order
	nextSeq   uint64
}

// Info is a read-only view of one room.
type Info struct {
	SessionID string    `json:"session_id"`
	Members   int       `json:"members"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats summarizes the whole registry.
type Stats struct {
	Rooms    int `json:"rooms"`
	Members  int `json:"members"` // distinct connections in at least one room
	Messages int `json:"messages"`
}

// Registry maps session id to room.
// ARCHITECTURAL DISCOVERY: one owning map plus a reverse index (connection -> session
// ids) keeps teardown in one place and makes disconnect cleanup proportional to the
// rooms a connection is in rather than to all rooms.
type Registry struct {
	mu     sync.RWMutex // TECHNICAL DISCOVERY: mutations come from the hub loop, reads also from HTTP handlers
	rooms  map[string]*room
	byConn map[string]map[string]struct{}

	now   func() time.Time
	newID func() string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]*room),
		byConn: make(map[string]map[string]struct{}),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func (r *room) info() Info {
	return Info{
		SessionID: r.sessionID,
		Members:   len(r.members),
		Messages:  len(r.messages),
		CreatedAt: r.createdAt,
	}
}

// EnsureRoom returns the room for sessionID, creating an empty one if needed.
// Calling it again for the same id is a no-op that reports created=false.
func (r *Registry) EnsureRoom(sessionID string) (Info, bool, error) {
	if sessionID == "" {
		return Info{}, false, ErrEmptySessionID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[sessionID]; ok {
		return existing.info(), false, nil
	}

	created := &room{
		sessionID: sessionID,
		createdAt: r.now(),
		members:   make(map[string]interfaces.Connection),
	}
	r.rooms[sessionID] = created
	return created.info(), true, nil
}

// AddMember adds conn to the room. Adding a present member is a no-op.
func (r *Registry) AddMember(sessionID string, conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return interfaces.ErrRoomNotFound
	}

	id := conn.ID()
	if _, present := rm.members[id]; present {
		return nil
	}
	rm.members[id] = conn
	rm.order = append(rm.order, id)

	if r.byConn[id] == nil {
		r.byConn[id] = make(map[string]struct{})
	}
	r.byConn[id][sessionID] = struct{}{}
	return nil
}

// RemoveMember removes connectionID from one room and deletes the room, history
// included, once it has no members. It reports whether the connection was a
// member and whether the room was torn down. Idempotent.
func (r *Registry) RemoveMember(sessionID, connectionID string) (removed, tornDown bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeMemberLocked(sessionID, connectionID)
}

func (r *Registry) removeMemberLocked(sessionID, connectionID string) (removed, tornDown bool) {
	rm, ok := r.rooms[sessionID]
	if !ok {
		return false, false
	}
	if _, present := rm.members[connectionID]; !present {
		return false, false
	}

	delete(rm.members, connectionID)
	rm.order = lo.Without(rm.order, connectionID)

	if sessions, ok := r.byConn[connectionID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.byConn, connectionID)
		}
	}

	if len(rm.members) == 0 {
		delete(r.rooms, sessionID)
		return true, true
	}
	return true, false
}

// RemoveMemberFromAll removes connectionID from every room it belongs to and
// returns the session ids it was removed from, sorted.
func (r *Registry) RemoveMemberFromAll(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := lo.Keys(r.byConn[connectionID])
	sort.Strings(sessions)
	for _, sessionID := range sessions {
		r.removeMemberLocked(sessionID, connectionID)
	}
	return sessions
}

// AppendMessage stores msg at the end of the room's history. The registry
// assigns ID, Seq, SessionID and Timestamp; Text and Author come from the caller.
// It fails with interfaces.ErrRoomNotFound and changes nothing when there is no room.
func (r *Registry) AppendMessage(sessionID string, msg types.Message) (*types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return nil, interfaces.ErrRoomNotFound
	}

	rm.nextSeq++
	msg.ID = r.newID()
	msg.Seq = rm.nextSeq
	msg.SessionID = sessionID
	msg.Timestamp = r.now()

	stored := &msg
	rm.messages = append(rm.messages, stored)
	return stored, nil
}

// GetHistory returns the room's messages in append order. Unknown rooms have
// an empty history.
func (r *Registry) GetHistory(sessionID string) []*types.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return []*types.Message{}
	}
	history := make([]*types.Message, len(rm.messages))
	copy(history, rm.messages)
	return history
}

// Members returns the room's connections in join order.
func (r *Registry) Members(sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return nil
	}
	return lo.Map(rm.order, func(id string, _ int) interfaces.Connection {
		return rm.members[id]
	})
}

func (r *Registry) IsMember(sessionID, connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return false
	}
	_, present := rm.members[connectionID]
	return present
}

// SessionsOf returns the session ids connectionID is a member of, sorted.
func (r *Registry) SessionsOf(connectionID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := lo.Keys(r.byConn[connectionID])
	sort.Strings(sessions)
	return sessions
}

// Room returns the view of one room.
func (r *Registry) Room(sessionID string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[sessionID]
	if !ok {
		return Info{}, false
	}
	return rm.info(), true
}

// Len is the number of rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Snapshot lists every room, sorted by session id.
func (r *Registry) Snapshot() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := lo.MapToSlice(r.rooms, func(_ string, rm *room) Info {
		return rm.info()
	})
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].SessionID < infos[j].SessionID
	})
	return infos
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	messages := lo.SumBy(lo.Values(r.rooms), func(rm *room) int {
		return len(rm.messages)
	})
	return Stats{
		Rooms:    len(r.rooms),
		Members:  len(r.byConn),
		Messages: messages,
	}
}
