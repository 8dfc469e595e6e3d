package rtc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidebarhq/sidebar/internal/core"
	"github.com/sidebarhq/sidebar/internal/domain"
)

func join(t *testing.T, room *core.Room, username string) *core.Participant {
	t.Helper()
	p := core.NewParticipant(domain.User{Username: username}, nil)
	require.NoError(t, p.TryJoinRoom(room))
	return p
}

// installRelay registers a relay with a pre-wired out-track, standing
// in for a published stream without a negotiated remote track.
func installRelay(f *Fanout, speaker *core.Participant, kind string, listeners ...string) *Relay {
	relay := NewRelay(speaker, nil, nil)
	for _, l := range listeners {
		relay.AddOutTrack(l, NewOutTrack(nil, nil, nil))
	}
	f.mu.Lock()
	f.relays[relayKey(speaker.UserInfo().Username, kind)] = relay
	f.mu.Unlock()
	return relay
}

func (r *Relay) listenerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.outTracks)
}

func TestFanout_Resync_Detaches_Listeners_Of_Departed_Speaker(t *testing.T) {
	req := require.New(t)
	room := core.NewRoom(core.NewCodeIssuer(), "https://sidebar.test")
	speaker := join(t, room, "speaker")
	join(t, room, "listener")

	f := NewFanout()
	relay := installRelay(f, speaker, "audio", "listener")

	// While the speaker is in the room the subscription survives resync
	f.Resync(room)
	req.Equal(1, relay.listenerCount())

	// When the speaker leaves the room, resync must drop the listener:
	// a departed speaker's receiver set is empty
	req.True(speaker.TryLeaveRoom(room.Code()))
	f.Resync(room)
	req.Zero(relay.listenerCount())
}

func TestFanout_Resync_Detaches_Listener_Who_Left_The_Group(t *testing.T) {
	req := require.New(t)
	room := core.NewRoom(core.NewCodeIssuer(), "https://sidebar.test")
	speaker := join(t, room, "speaker")
	listener := join(t, room, "listener")
	g, err := speaker.CreateGroup()
	req.NoError(err)
	req.NoError(speaker.TryJoinGroup(g.Code()))
	req.NoError(listener.TryJoinGroup(g.Code()))

	f := NewFanout()
	relay := installRelay(f, speaker, "audio", "listener")

	req.True(listener.TryLeaveGroup(g.Code()))
	f.Resync(room)

	req.Zero(relay.listenerCount())
}

func TestFanout_SetMuted_Targets_The_Relay_Of_Its_Kind(t *testing.T) {
	req := require.New(t)
	room := core.NewRoom(core.NewCodeIssuer(), "https://sidebar.test")
	speaker := join(t, room, "speaker")

	f := NewFanout()
	audio := installRelay(f, speaker, "audio")
	video := installRelay(f, speaker, "video")

	f.SetMuted("speaker", "video", true)
	req.False(audio.muted.Load())
	req.True(video.muted.Load())

	f.SetMuted("speaker", "audio", true)
	f.SetMuted("speaker", "video", false)
	req.True(audio.muted.Load())
	req.False(video.muted.Load())

	// Unknown relays are ignored
	f.SetMuted("nobody", "audio", true)
}
