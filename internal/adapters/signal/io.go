package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/core"
	"github.com/sidebarhq/sidebar/internal/domain"
)

func (ctl *Controller) writePump(ctx context.Context, c *WsSignalConn) {
	pingPeriod := ctl.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump ping error")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, sid SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.teardown(sid)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.dispatch(ctx, sid, c, data)
		}
	}
}

func (ctl *Controller) dispatch(ctx context.Context, sid SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "create_room":
		ctl.handleCreateRoom(sid, c)
	case "join_room":
		ctl.handleJoinRoom(sid, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(sid, c)
	case "close_room":
		ctl.handleCloseRoom(sid, c)
	case "add_host":
		ctl.handleAddHost(sid, c, data)
	case "allow_users":
		ctl.handleAllowUsers(sid, c, data)
	case "mute_all":
		ctl.handleMuteAll(sid, c)
	case "create_group":
		ctl.handleCreateGroup(sid, c, data)
	case "add_groups":
		ctl.handleAddGroups(sid, c, data)
	case "join_group":
		ctl.handleJoinGroup(sid, c, data)
	case "leave_group":
		ctl.handleLeaveGroup(sid, c, data)
	case "invite":
		ctl.handleInvite(sid, c, data)
	case "mute_audio":
		ctl.handleSelfMute(sid, c, "audio", true)
	case "unmute_audio":
		ctl.handleSelfMute(sid, c, "audio", false)
	case "mute_video":
		ctl.handleSelfMute(sid, c, "video", true)
	case "unmute_video":
		ctl.handleSelfMute(sid, c, "video", false)
	case "sources":
		ctl.handleSources(ctx, sid, c, data)
	case "set_stream":
		ctl.handleSetStream(ctx, sid, c, data)
	case "permission_denied":
		ctl.handlePermissionDenied(sid)
	case "offer":
		ctl.handleOffer(ctx, sid, c, data)
	case "candidate":
		ctl.handleCandidate(sid, c, data)
	case "whoami":
		ctl.handleWhoAmI(sid, c)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func sendJSON(c core.SignalConnection, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return err
	}
	return c.TrySend(b)
}

// sendError maps core error kinds onto wire error codes so clients
// can branch on retry vs abandon.
func sendError(c *WsSignalConn, err error) {
	_ = sendJSON(c, map[string]any{
		"type":  "error",
		"error": errKind(err),
	})
}

func errKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, domain.ErrAlreadyInRoom):
		return "already_in_room"
	case errors.Is(err, domain.ErrRoomClosed):
		return "room_closed"
	case errors.Is(err, domain.ErrGroupNotFound):
		return "group_not_found"
	case errors.Is(err, domain.ErrGroupClosed):
		return "group_closed"
	case errors.Is(err, domain.ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, domain.ErrDefaultGroup):
		return "default_group"
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "internal"
	}
}

func sendBadPayload(c *WsSignalConn) {
	_ = sendJSON(c, map[string]any{
		"type":  "error",
		"error": "bad_payload",
	})
}
