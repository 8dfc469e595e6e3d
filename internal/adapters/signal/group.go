package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/domain"
)

func (ctl *Controller) handleCreateGroup(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	if !ctl.Limiter.Allow(e.Participant.UserInfo().Username) {
		_ = sendJSON(conn, map[string]any{"type": "error", "error": "rate_limited"})
		return
	}
	group, err := e.Participant.CreateGroup()
	if err != nil {
		sendError(conn, err)
		return
	}
	// The creator may have left the room by now; the group's back
	// reference is always set.
	room := group.Room()
	ctl.wireGroup(room, group)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("group", string(group.Code())).Msg("group created")
	ctl.broadcastRoom(room, struct {
		Type  string   `json:"type"`
		Group groupDTO `json:"group"`
	}{"group_created", groupDTO{Code: string(group.Code()), Name: group.Name()}})
}

func (ctl *Controller) handleAddGroups(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type   string             `json:"type"`
		Groups []domain.GroupInfo `json:"groups"`
	}
	if err := json.Unmarshal(data, &p); err != nil || len(p.Groups) == 0 {
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
	before := make(map[domain.GroupCode]struct{})
	for _, g := range room.Groups() {
		before[g.Code()] = struct{}{}
	}
	all, err := room.AddGroups(p.Groups...)
	if err != nil {
		sendError(conn, err)
		return
	}
	for _, g := range all {
		if _, existed := before[g.Code()]; !existed {
			ctl.wireGroup(room, g)
		}
	}
	_ = sendJSON(conn, roomState(room))
}

func (ctl *Controller) handleJoinGroup(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Group string `json:"group"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Group == "" {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	if err := e.Participant.TryJoinGroup(domain.GroupCode(p.Group)); err != nil {
		sendError(conn, err)
		return
	}
	_ = sendJSON(conn, map[string]any{"type": "group_state", "group": p.Group})
}

func (ctl *Controller) handleLeaveGroup(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Group string `json:"group"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Group == "" {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	left := e.Participant.TryLeaveGroup(domain.GroupCode(p.Group))
	cur := ""
	if g := e.Participant.CurrentGroup(); g != nil {
		cur = string(g.Code())
	}
	_ = sendJSON(conn, map[string]any{"type": "left_group", "ok": left, "group": cur})
}

// handleInvite adds the target to the group's invited set and pokes
// the invitee directly. Invitation is advisory; the invitee can join
// any open group regardless.
func (ctl *Controller) handleInvite(sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type  string `json:"type"`
		Group string `json:"group"`
		User  string `json:"user"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Group == "" || p.User == "" {
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
	group, ok := room.GroupByCode(domain.GroupCode(p.Group))
	if !ok {
		sendError(conn, domain.ErrGroupNotFound)
		return
	}
	target, ok := ctl.Registry.ParticipantOf(p.User)
	if !ok || target.CurrentRoom() != room {
		sendError(conn, domain.ErrNotInRoom)
		return
	}
	group.InviteParticipant(target)
	if targetConn, ok := ctl.Registry.ConnOf(p.User); ok {
		_ = sendJSON(targetConn, map[string]any{
			"type":  "group_invite",
			"group": p.Group,
			"from":  e.Participant.UserInfo().Username,
		})
	}
	_ = sendJSON(conn, struct {
		Type    string        `json:"type"`
		Group   string        `json:"group"`
		Invited []domain.User `json:"invited"`
	}{"invited", p.Group, users(group.InvitedParticipants())})
}
