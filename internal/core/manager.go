package core

import (
	"sync"

	"github.com/samber/lo"

	"github.com/sidebarhq/sidebar/internal/domain"
)

// RoomInfo is a read-only room summary for APIs.
type RoomInfo struct {
	Code             domain.RoomCode `json:"code"`
	ShareURL         string          `json:"share_url"`
	ParticipantCount int             `json:"participant_count"`
	GroupCount       int             `json:"group_count"`
}

// RoomManager owns the live rooms, keyed by issued room code. Rooms
// and groups share one issuer so codes are unique across both kinds.
type RoomManager struct {
	mu        sync.RWMutex
	issuer    *CodeIssuer
	shareBase string
	rooms     map[domain.RoomCode]*Room
}

func NewRoomManager(shareBase string) *RoomManager {
	return &RoomManager{
		issuer:    NewCodeIssuer(),
		shareBase: shareBase,
		rooms:     make(map[domain.RoomCode]*Room),
	}
}

// CreateRoom allocates a room with a fresh code.
func (m *RoomManager) CreateRoom() *Room {
	room := NewRoom(m.issuer, m.shareBase)
	m.mu.Lock()
	m.rooms[room.Code()] = room
	m.mu.Unlock()
	return room
}

// GetRoom resolves a room code to a live, open room.
func (m *RoomManager) GetRoom(code domain.RoomCode) (*Room, bool) {
	m.mu.RLock()
	room, ok := m.rooms[code]
	m.mu.RUnlock()
	if !ok || room.IsClosed() {
		return nil, false
	}
	return room, true
}

// CloseRoom closes the room and drops it from the manager. Returns
// domain.ErrRoomClosed when the code no longer resolves.
func (m *RoomManager) CloseRoom(code domain.RoomCode) error {
	m.mu.Lock()
	room, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()
	if !ok {
		return domain.ErrRoomClosed
	}
	return room.Close()
}

// List returns summaries of the open rooms.
func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	open := lo.Filter(lo.Values(m.rooms), func(r *Room, _ int) bool { return !r.IsClosed() })
	return lo.Map(open, func(r *Room, _ int) RoomInfo {
		return RoomInfo{
			Code:             r.Code(),
			ShareURL:         r.ShareURL(),
			ParticipantCount: len(r.Participants()),
			GroupCount:       len(r.Groups()),
		}
	})
}
