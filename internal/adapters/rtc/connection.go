package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Peer wraps a pion PeerConnection for one participant. It tracks the
// remote tracks the client has published so the transport can present
// them as media sources.
type Peer struct {
	pc     *webrtc.PeerConnection
	user   string
	cancel context.CancelFunc

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
	onClosed func()

	mu     sync.RWMutex
	remote map[string]*webrtc.TrackRemote // by track ID
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

func NewPeer(cfg webrtc.Configuration, user string) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Peer{pc: pc, user: user, remote: make(map[string]*webrtc.TrackRemote)}, nil
}

// Start configures internal callbacks and binds the peer lifetime to ctx.
func (p *Peer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("user", p.user).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateDisconnected ||
			s == webrtc.ICEConnectionStateFailed ||
			s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})

	p.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("user", p.user).Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			if p.onClosed != nil {
				p.onClosed()
			}
		}
	})

	p.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && p.onICE != nil {
			p.onICE(cand.ToJSON())
		}
	})

	p.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("user", p.user).
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Msg("remote track")
		p.mu.Lock()
		p.remote[track.ID()] = track
		p.mu.Unlock()
		if p.onTrack != nil {
			p.onTrack(ctx, track, receiver)
		}
	})

	return nil
}

// ApplyOfferAndCreateAnswer runs the answering side of the handshake,
// waiting for ICE gathering to complete.
func (p *Peer) ApplyOfferAndCreateAnswer(offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}

	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return p.pc.LocalDescription(), nil
}

func (p *Peer) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.pc != nil {
		if err := p.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("user", p.user).Msg("close error")
		}
	}
	if p.onClosed != nil {
		p.onClosed()
	}
}

func (p *Peer) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(ci)
}

func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) { p.onICE = fn }

// OnTrack sets the application-level callback for remote tracks.
func (p *Peer) OnTrack(fn func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)) {
	p.onTrack = fn
}

// OnClosed sets the application-level cleanup callback.
func (p *Peer) OnClosed(fn func()) { p.onClosed = fn }

// AddLocalTrack attaches a local static RTP track to the peer.
func (p *Peer) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return p.pc.AddTrack(track)
}

// RemoveTrack detaches a previously added local track.
func (p *Peer) RemoveTrack(sender *webrtc.RTPSender) error {
	return p.pc.RemoveTrack(sender)
}

// RemoteTrack resolves a published remote track by ID.
func (p *Peer) RemoteTrack(id string) (*webrtc.TrackRemote, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.remote[id]
	return t, ok
}

// RemoteTracks lists the published remote tracks of the given kind.
func (p *Peer) RemoteTracks(kind webrtc.RTPCodecType) []*webrtc.TrackRemote {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*webrtc.TrackRemote, 0, len(p.remote))
	for _, t := range p.remote {
		if t.Kind() == kind {
			out = append(out, t)
		}
	}
	return out
}
