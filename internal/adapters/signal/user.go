package signal

func (ctl *Controller) handleWhoAmI(sid SessionID, conn *WsSignalConn) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	p := e.Participant
	resp := struct {
		Type       string `json:"type"`
		Username   string `json:"username"`
		Room       string `json:"room,omitempty"`
		Group      string `json:"group,omitempty"`
		AudioMuted bool   `json:"audio_muted"`
		VideoMuted bool   `json:"video_muted"`
	}{
		Type:       "whoami",
		Username:   p.UserInfo().Username,
		AudioMuted: p.AudioMutedForAll(),
		VideoMuted: p.VideoMutedForAll(),
	}
	if room := p.CurrentRoom(); room != nil {
		resp.Room = string(room.Code())
		resp.Group = string(p.CurrentGroup().Code())
	}
	_ = sendJSON(conn, resp)
}

// handleSelfMute flips the participant's own mute-for-all flag and
// propagates it to the matching relay in the fanout.
func (ctl *Controller) handleSelfMute(sid SessionID, conn *WsSignalConn, kind string, muted bool) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	p := e.Participant
	switch kind {
	case "audio":
		if muted {
			p.MuteAudioForAll()
		} else {
			p.UnmuteAudioForAll()
		}
	case "video":
		if muted {
			p.MuteVideoForAll()
		} else {
			p.UnmuteVideoForAll()
		}
	}
	ctl.Fanout.SetMuted(p.UserInfo().Username, kind, muted)
	if room := p.CurrentRoom(); room != nil {
		ctl.broadcastRoom(room, map[string]any{
			"type":  "mute_changed",
			"user":  p.UserInfo().Username,
			"kind":  kind,
			"muted": muted,
		})
	}
}
