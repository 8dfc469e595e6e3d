package rtc

import (
	"sync/atomic"

	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// OutTrack is one outgoing copy of a speaker's stream, wired into a
// single listener's peer.
type OutTrack struct {
	Track  *webrtc.TrackLocalStaticRTP
	sender *webrtc.RTPSender
	peer   *Peer
	state  atomic.Int32 // zero value is TrackStateOk
}

func NewOutTrack(track *webrtc.TrackLocalStaticRTP, sender *webrtc.RTPSender, peer *Peer) *OutTrack {
	return &OutTrack{Track: track, sender: sender, peer: peer}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}

// detach removes the track from the listener's peer. Safe to call
// after the peer has closed; pion reports an error we ignore.
func (ot *OutTrack) detach() {
	if ot.peer != nil && ot.sender != nil {
		_ = ot.peer.RemoveTrack(ot.sender)
	}
}
