package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/sidebarhq/sidebar/internal/domain"
)

func (ctl *Controller) handleCreateRoom(sid SessionID, conn *WsSignalConn) {
	room := ctl.Rooms.CreateRoom()
	ctl.WireRoom(room)
	_ = sendJSON(conn, struct {
		Type     string `json:"type"`
		Room     string `json:"room"`
		ShareURL string `json:"share_url"`
	}{"room_created", string(room.Code()), room.ShareURL()})
}

func (ctl *Controller) handleJoinRoom(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room, ok := ctl.Rooms.GetRoom(domain.RoomCode(p.Room))
	if !ok {
		_ = sendJSON(conn, map[string]any{"type": "error", "error": "room_not_found"})
		return
	}
	ctl.WireRoom(room)

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join room")
	if err := e.Participant.TryJoinRoom(room); err != nil {
		sendError(conn, err)
		return
	}
	// Snapshot after commit; the caller enumerates current state here
	// and relies on events only for what happens next.
	_ = sendJSON(conn, roomState(room))
}

func (ctl *Controller) handleLeaveRoom(sid SessionID, conn *WsSignalConn) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room := e.Participant.CurrentRoom()
	left := false
	if room != nil {
		left = e.Participant.TryLeaveRoom(room.Code())
	}
	_ = sendJSON(conn, map[string]any{"type": "left_room", "ok": left})
}

func (ctl *Controller) handleCloseRoom(sid SessionID, conn *WsSignalConn) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room := e.Participant.CurrentRoom()
	if room == nil {
		sendError(conn, domain.ErrNotInRoom)
		return
	}
	if !room.IsHost(e.Participant) {
		sendError(conn, domain.ErrAccessDenied)
		return
	}
	if err := ctl.Rooms.CloseRoom(room.Code()); err != nil {
		sendError(conn, err)
		return
	}
	_ = sendJSON(conn, map[string]any{"type": "room_closed", "room": string(room.Code())})
}

func (ctl *Controller) handleAddHost(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		User string `json:"user"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.User == "" {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room := e.Participant.CurrentRoom()
	if room == nil {
		sendError(conn, domain.ErrNotInRoom)
		return
	}
	if err := room.AddHost(p.User); err != nil {
		sendError(conn, err)
		return
	}
	// Host reach changed; routing must follow immediately.
	ctl.Fanout.Resync(room)
	ctl.broadcastRoom(room, map[string]any{"type": "host_added", "user": p.User})
}

func (ctl *Controller) handleAllowUsers(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type  string   `json:"type"`
		Users []string `json:"users"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.Users) == 0 {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room := e.Participant.CurrentRoom()
	if room == nil {
		sendError(conn, domain.ErrNotInRoom)
		return
	}
	users := lo.Map(p.Users, func(name string, _ int) domain.User { return domain.User{Username: name} })
	updated, err := room.AddUsersToAllowedUsers(users...)
	if err != nil {
		sendError(conn, err)
		return
	}
	_ = sendJSON(conn, struct {
		Type  string        `json:"type"`
		Users []domain.User `json:"users"`
	}{"allowed_users", updated})
}

func (ctl *Controller) handleMuteAll(sid SessionID, conn *WsSignalConn) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	room := e.Participant.CurrentRoom()
	if room == nil {
		sendError(conn, domain.ErrNotInRoom)
		return
	}
	if !room.IsHost(e.Participant) {
		sendError(conn, domain.ErrAccessDenied)
		return
	}
	if err := room.MuteParticipants(); err != nil {
		sendError(conn, err)
		return
	}
	for _, m := range room.Participants() {
		if m.AudioMutedForAll() {
			ctl.Fanout.SetMuted(m.UserInfo().Username, "audio", true)
		}
	}
	ctl.broadcastRoom(room, map[string]any{"type": "muted_all"})
}
