package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidebarhq/sidebar/internal/domain"
)

func usernames(ps []*Participant) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserInfo().Username)
	}
	return out
}

func TestAudibleSet_Is_Own_Group_Plus_Hosts(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	req.NoError(room.AddHost("h"))

	// h sits in the default group, p in a separate group
	h := join(t, room, "h")
	p := join(t, room, "p")
	g, err := p.CreateGroup()
	req.NoError(err)
	req.NoError(p.TryJoinGroup(g.Code()))

	// p hears its own group plus the host, despite differing groups
	req.ElementsMatch([]string{"p", "h"}, usernames(AudibleSet(p)))
	req.Equal(AudibleSet(p), VisibleSet(p))

	// h hears its own group; h is a member there like anyone else
	req.ElementsMatch([]string{"h"}, usernames(AudibleSet(h)))
	_ = h
}

func TestAudibleSet_Includes_Hosts_For_Entire_Room_Lifetime(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	req.NoError(room.AddHost("h"))
	h := join(t, room, "h")
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")

	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))
	req.NoError(bob.TryJoinGroup(g.Code()))

	// Hosts are audible in every group configuration
	req.Contains(usernames(AudibleSet(alice)), "h")
	req.Contains(usernames(AudibleSet(bob)), "h")

	// Even after the host itself moves into a group
	req.NoError(h.TryJoinGroup(g.Code()))
	req.ElementsMatch([]string{"alice", "bob", "h"}, usernames(AudibleSet(alice)))

	req.True(h.TryLeaveGroup(g.Code()))
	req.Contains(usernames(AudibleSet(alice)), "h")
}

func TestAudibleSet_Deduplicates_Host_Group_Members(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	req.NoError(room.AddHost("h"))
	h := join(t, room, "h")
	alice := join(t, room, "alice")

	// h shares alice's group, so h is both member and host
	set := AudibleSet(alice)
	req.ElementsMatch([]string{"alice", "h"}, usernames(set))
	_ = h
}

func TestReceiverSet_Host_Reaches_Whole_Room(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	req.NoError(room.AddHost("h"))
	h := join(t, room, "h")
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")

	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))

	// The host's outbound media reaches everyone, across groups
	req.ElementsMatch([]string{"alice", "bob"}, usernames(ReceiverSet(h)))

	// A regular speaker reaches only its own group, minus itself
	req.ElementsMatch([]string{"h"}, usernames(ReceiverSet(bob)))
	req.Empty(usernames(ReceiverSet(alice)))
}

func TestRoutingSets_Are_Nil_Outside_A_Room(t *testing.T) {
	req := require.New(t)
	p := NewParticipant(domain.User{Username: "loner"}, nil)

	req.Nil(AudibleSet(p))
	req.Nil(ReceiverSet(p))
}

func TestRoutingSets_Follow_Membership_Changes(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")

	req.ElementsMatch([]string{"alice", "bob"}, usernames(AudibleSet(alice)))

	g, err := bob.CreateGroup()
	req.NoError(err)
	req.NoError(bob.TryJoinGroup(g.Code()))

	// Derived fresh on every call; nothing cached went stale.
	req.ElementsMatch([]string{"alice"}, usernames(AudibleSet(alice)))
	req.ElementsMatch([]string{"bob"}, usernames(AudibleSet(bob)))
}
