package signal

import (
	"context"
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/adapters/rtc"
	"github.com/sidebarhq/sidebar/internal/core"
)

func (ctl *Controller) sendCandidate(c *WsSignalConn, ci webrtc.ICECandidateInit) {
	resp := struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid,omitempty"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
	}{
		Type:      "candidate",
		Candidate: ci.Candidate,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		resp.SDPMLineIndex = *ci.SDPMLineIndex
	}
	_ = sendJSON(c, resp)
}

func (ctl *Controller) handleOffer(ctx context.Context, sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		SDP  string `json:"sdp"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	user := e.Participant.UserInfo().Username

	peer, err := rtc.NewPeer(rtc.DefaultWebRTCConfig(), user)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new peer")
		return
	}

	peer.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendCandidate(conn, ci)
	})
	peer.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		// Announce the new source; the client decides whether to
		// activate it via set_stream.
		_ = sendJSON(conn, struct {
			Type   string           `json:"type"`
			Source core.MediaSource `json:"source"`
		}{"source_added", core.MediaSource{ID: track.ID(), Kind: track.Kind().String(), Label: track.StreamID()}})
	})
	peer.OnClosed(func() {
		e.Transport.DetachPeerIf(peer)
	})

	if err = peer.Start(ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		peer.Close()
		return
	}

	offer := webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  p.SDP,
	}
	answer, err := peer.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		peer.Close()
		return
	}

	e.Transport.AttachPeer(peer)
	if room := e.Participant.CurrentRoom(); room != nil {
		ctl.Fanout.Resync(room)
	}

	_ = sendJSON(conn, map[string]string{
		"type": "answer",
		"sdp":  answer.SDP,
	})
}

func (ctl *Controller) handleCandidate(sid SessionID, _ *WsSignalConn, data []byte) {
	var p struct {
		Type          string `json:"type"`
		Candidate     string `json:"candidate"`
		SDPMid        string `json:"sdpMid"`
		SDPMLineIndex uint16 `json:"sdpMLineIndex"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}

	cand := webrtc.ICECandidateInit{
		Candidate: p.Candidate,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	cand.SDPMLineIndex = &p.SDPMLineIndex

	e, ok := ctl.Registry.Get(sid)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("candidate: no session")
		return
	}
	if err := e.Transport.AddICECandidate(cand); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

func (ctl *Controller) handleSources(ctx context.Context, sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	var (
		sources []core.MediaSource
		err     error
	)
	switch p.Kind {
	case "video":
		sources, err = e.Participant.RequestVideoSources(ctx)
	default:
		sources, err = e.Participant.RequestAudioSources(ctx)
	}
	if err != nil {
		sendError(conn, err)
		return
	}
	_ = sendJSON(conn, struct {
		Type    string             `json:"type"`
		Kind    string             `json:"kind"`
		Sources []core.MediaSource `json:"sources"`
	}{"sources", p.Kind, sources})
}

func (ctl *Controller) handleSetStream(ctx context.Context, sid SessionID, conn *WsSignalConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Kind string `json:"kind"`
		ID   string `json:"id"` // empty detaches
	}
	if err := json.Unmarshal(data, &p); err != nil {
		sendBadPayload(conn)
		return
	}
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	var src *core.MediaSource
	if p.ID != "" {
		src = &core.MediaSource{ID: p.ID, Kind: p.Kind}
	}
	var (
		set bool
		err error
	)
	switch p.Kind {
	case "video":
		set, err = e.Participant.SetVideoStream(ctx, src)
	default:
		set, err = e.Participant.SetAudioStream(ctx, src)
	}
	if err != nil {
		sendError(conn, err)
		return
	}
	_ = sendJSON(conn, map[string]any{"type": "stream_set", "kind": p.Kind, "ok": set})
}

func (ctl *Controller) handlePermissionDenied(sid SessionID) {
	if e, ok := ctl.Registry.Get(sid); ok {
		e.Transport.MarkPermissionDenied()
	}
}
