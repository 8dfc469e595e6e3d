package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/sidebarhq/sidebar/internal/core"
	"github.com/sidebarhq/sidebar/internal/domain"
)

// Transport is the per-participant media collaborator handed to the
// core. Sources are the tracks the client has published on its peer;
// setting a stream hands the matching track to the fanout, which
// routes it per the routing overlay.
type Transport struct {
	fanout *Fanout

	mu     sync.Mutex
	peer   *Peer
	owner  *core.Participant
	denied bool
}

var _ core.MediaTransport = (*Transport)(nil)

func NewTransport(fanout *Fanout) *Transport {
	return &Transport{fanout: fanout}
}

// Bind ties the transport to the participant it serves. Called once,
// right after the participant is constructed.
func (t *Transport) Bind(p *core.Participant) {
	t.mu.Lock()
	t.owner = p
	t.mu.Unlock()
}

// AttachPeer installs the negotiated peer connection and registers it
// as a subscription target.
func (t *Transport) AttachPeer(peer *Peer) {
	t.mu.Lock()
	old := t.peer
	t.peer = peer
	user := ""
	if t.owner != nil {
		user = t.owner.UserInfo().Username
	}
	t.mu.Unlock()
	if old != nil {
		old.Close()
	}
	if user != "" {
		t.fanout.RegisterPeer(user, peer)
	}
}

// DetachPeer drops the current peer on disconnect.
func (t *Transport) DetachPeer() {
	t.detach(nil)
}

// DetachPeerIf drops the peer only while it is still the current one.
// A replaced peer's close callback fires after its successor is
// attached and must not tear the successor down.
func (t *Transport) DetachPeerIf(peer *Peer) {
	t.detach(peer)
}

func (t *Transport) detach(expect *Peer) {
	t.mu.Lock()
	if expect != nil && t.peer != expect {
		t.mu.Unlock()
		return
	}
	peer := t.peer
	t.peer = nil
	user := ""
	if t.owner != nil {
		user = t.owner.UserInfo().Username
	}
	t.mu.Unlock()
	if user != "" {
		t.fanout.UnregisterPeer(user)
	}
	if peer != nil {
		peer.Close()
	}
}

// AddICECandidate forwards a remote candidate to the current peer.
func (t *Transport) AddICECandidate(ci webrtc.ICECandidateInit) error {
	t.mu.Lock()
	peer := t.peer
	t.mu.Unlock()
	if peer == nil {
		return errors.New("no peer connection")
	}
	return peer.AddICECandidate(ci)
}

// MarkPermissionDenied records that the client refused capture
// permission; subsequent source requests reject.
func (t *Transport) MarkPermissionDenied() {
	t.mu.Lock()
	t.denied = true
	t.mu.Unlock()
}

func (t *Transport) RequestAudioSources(ctx context.Context) ([]core.MediaSource, error) {
	return t.sources(ctx, webrtc.RTPCodecTypeAudio)
}

func (t *Transport) RequestVideoSources(ctx context.Context) ([]core.MediaSource, error) {
	return t.sources(ctx, webrtc.RTPCodecTypeVideo)
}

func (t *Transport) sources(ctx context.Context, kind webrtc.RTPCodecType) ([]core.MediaSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	peer, denied := t.peer, t.denied
	t.mu.Unlock()
	if denied || peer == nil {
		return nil, fmt.Errorf("enumerate %s sources: %w", kind, domain.ErrPermissionDenied)
	}
	tracks := peer.RemoteTracks(kind)
	out := make([]core.MediaSource, 0, len(tracks))
	for _, tr := range tracks {
		out = append(out, core.MediaSource{
			ID:    tr.ID(),
			Kind:  kind.String(),
			Label: tr.StreamID(),
		})
	}
	return out, nil
}

func (t *Transport) SetAudioStream(ctx context.Context, src *core.MediaSource) (bool, error) {
	return t.setStream(ctx, "audio", src)
}

func (t *Transport) SetVideoStream(ctx context.Context, src *core.MediaSource) (bool, error) {
	return t.setStream(ctx, "video", src)
}

func (t *Transport) setStream(ctx context.Context, kind string, src *core.MediaSource) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	peer, owner := t.peer, t.owner
	t.mu.Unlock()
	if owner == nil {
		return false, nil
	}
	user := owner.UserInfo().Username

	if src == nil {
		t.fanout.Unpublish(user, kind)
		return true, nil
	}
	if peer == nil {
		return false, nil
	}
	track, ok := peer.RemoteTrack(src.ID)
	if !ok {
		return false, nil
	}
	t.fanout.Publish(ctx, owner, track)
	return true, nil
}
