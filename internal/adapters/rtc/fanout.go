package rtc

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/core"
)

// Fanout relays each speaker's published RTP to the listeners the
// routing overlay says should hear them. It keeps no routing state of
// its own: Resync re-derives every relay's subscriber set from
// core.ReceiverSet after each membership change.
type Fanout struct {
	mu     sync.RWMutex
	peers  map[string]*Peer  // listener username -> peer
	relays map[string]*Relay // speaker username + "/" + kind
}

func NewFanout() *Fanout {
	return &Fanout{
		peers:  make(map[string]*Peer),
		relays: make(map[string]*Relay),
	}
}

func relayKey(user, kind string) string { return user + "/" + kind }

// RegisterPeer makes a participant's peer available as a subscription
// target. Call once the peer handshake completes.
func (f *Fanout) RegisterPeer(user string, p *Peer) {
	f.mu.Lock()
	f.peers[user] = p
	f.mu.Unlock()
}

// UnregisterPeer drops the peer and every track routed to or from it.
func (f *Fanout) UnregisterPeer(user string) {
	f.mu.Lock()
	delete(f.peers, user)
	for key, relay := range f.relays {
		if relay.speaker == user {
			relay.stop()
			delete(f.relays, key)
			continue
		}
		relay.dropListener(user)
	}
	f.mu.Unlock()
	log.Info().Str("module", "rtc.fanout").Str("user", user).Msg("peer unregistered")
}

// Publish starts relaying a speaker's track. An existing relay for
// the same speaker and kind is replaced.
func (f *Fanout) Publish(ctx context.Context, speaker *core.Participant, track *webrtc.TrackRemote) {
	user := speaker.UserInfo().Username
	kind := track.Kind().String()
	logger := log.With().
		Str("module", "rtc.fanout").
		Str("user", user).
		Str("kind", kind).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(speaker, track, cancel)

	key := relayKey(user, kind)
	f.mu.Lock()
	if old, ok := f.relays[key]; ok {
		logger.Info().Msg("replacing existing relay")
		old.stop()
	}
	f.relays[key] = relay
	f.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger)

	f.syncRelay(relay)
}

// Unpublish stops relaying the speaker's track of the given kind.
func (f *Fanout) Unpublish(user, kind string) {
	key := relayKey(user, kind)
	f.mu.Lock()
	relay, ok := f.relays[key]
	if ok {
		delete(f.relays, key)
	}
	f.mu.Unlock()
	if ok {
		relay.stop()
	}
}

// SetMuted applies a speaker's mute-for-all flag to its relay of the
// given kind ("audio" or "video").
func (f *Fanout) SetMuted(user, kind string, muted bool) {
	f.mu.RLock()
	relay, ok := f.relays[relayKey(user, kind)]
	f.mu.RUnlock()
	if ok {
		relay.muted.Store(muted)
	}
}

// Resync recomputes every relay's subscriber set. Call after any
// membership mutation (join/leave/host/close). Reconciling by relay
// rather than by roster also detaches the listeners of a speaker who
// has just left the room: their receiver set is empty.
func (f *Fanout) Resync(room *core.Room) {
	f.mu.RLock()
	relays := make([]*Relay, 0, len(f.relays))
	for _, relay := range f.relays {
		relays = append(relays, relay)
	}
	f.mu.RUnlock()

	log.Debug().Str("module", "rtc.fanout").Str("room", string(room.Code())).
		Int("relays", len(relays)).Msg("resync")
	for _, relay := range relays {
		f.syncRelay(relay)
	}
}

// syncRelay reconciles one relay's out-tracks against the routing
// overlay's receiver set for its speaker.
func (f *Fanout) syncRelay(relay *Relay) {
	want := make(map[string]struct{})
	for _, m := range core.ReceiverSet(relay.owner) {
		want[m.UserInfo().Username] = struct{}{}
	}

	relay.mu.Lock()
	for user, ot := range relay.outTracks {
		if _, keep := want[user]; !keep {
			ot.MarkDelete()
			ot.detach()
			delete(relay.outTracks, user)
		}
	}
	have := make(map[string]struct{}, len(relay.outTracks))
	for user := range relay.outTracks {
		have[user] = struct{}{}
	}
	relay.mu.Unlock()

	for user := range want {
		if _, ok := have[user]; ok {
			continue
		}
		f.mu.RLock()
		peer, ok := f.peers[user]
		f.mu.RUnlock()
		if !ok {
			continue
		}
		local, err := webrtc.NewTrackLocalStaticRTP(
			relay.Src.Codec().RTPCodecCapability, relay.Src.ID(), relay.Src.StreamID())
		if err != nil {
			log.Error().Err(err).Str("module", "rtc.fanout").Str("listener", user).Msg("new local track")
			continue
		}
		sender, err := peer.AddLocalTrack(local)
		if err != nil {
			log.Error().Err(err).Str("module", "rtc.fanout").Str("listener", user).Msg("add local track")
			continue
		}
		relay.AddOutTrack(user, NewOutTrack(local, sender, peer))
	}
}

// Relay copies one speaker's RTP stream to its subscribed listeners.
type Relay struct {
	Src     *webrtc.TrackRemote
	owner   *core.Participant
	speaker string

	mu        sync.RWMutex
	outTracks map[string]*OutTrack // by listener username

	muted  atomic.Bool
	cancel context.CancelFunc
}

func NewRelay(owner *core.Participant, src *webrtc.TrackRemote, cancel context.CancelFunc) *Relay {
	return &Relay{
		Src:       src,
		owner:     owner,
		speaker:   owner.UserInfo().Username,
		outTracks: make(map[string]*OutTrack),
		cancel:    cancel,
	}
}

// loop reads RTP packets from the source track and forwards them.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			r.markAllDelete()
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Error().Err(err).Msg("relay read RTP error, stopping")
			r.markAllDelete()
			return
		}
		if r.muted.Load() {
			continue
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[string]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	dirty := make([]string, 0, len(snapshot))
	for listener, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, listener)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Track.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("listener", listener).
					Msg("relay write RTP error, marking out track for delete")
				ot.MarkDelete()
				dirty = append(dirty, listener)
			}
		}
	}

	// Cleanup runs outside the read lock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, listener := range dirty {
		if ot, ok := r.outTracks[listener]; ok {
			ot.detach()
			delete(r.outTracks, listener)
		}
	}
}

func (r *Relay) markAllDelete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ot := range r.outTracks {
		ot.MarkDelete()
		ot.detach()
	}
}

func (r *Relay) dropListener(user string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ot, ok := r.outTracks[user]; ok {
		ot.MarkDelete()
		delete(r.outTracks, user)
	}
}

func (r *Relay) stop() {
	r.markAllDelete()
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Relay) AddOutTrack(listener string, ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[listener] = ot
}
