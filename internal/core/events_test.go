package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListeners_Fire_In_Registration_Order_After_Commit(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)

	var order []string
	room.OnParticipantConnected(func(p *Participant) {
		// The mutation is fully applied before listeners run.
		require.Len(t, room.Participants(), 1)
		require.Equal(t, room.DefaultGroup(), p.CurrentGroup())
		order = append(order, "first")
	})
	room.OnParticipantConnected(func(p *Participant) {
		order = append(order, "second")
	})

	join(t, room, "alice")

	req.Equal([]string{"first", "second"}, order)
}

func TestListeners_Are_Not_Replayed_For_Late_Subscribers(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	join(t, room, "alice")

	fired := false
	room.OnParticipantConnected(func(*Participant) { fired = true })

	// Nothing is replayed; the subscriber enumerates current state
	// itself via Participants().
	req.False(fired)
	req.Len(room.Participants(), 1)

	join(t, room, "bob")
	req.True(fired)
}

func TestGroup_Events_Pair_Joined_And_Left_Per_Scope(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	def := room.DefaultGroup()
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)

	var trace []string
	def.OnParticipantJoinedGroup(func(p *Participant) { trace = append(trace, "def+"+p.UserInfo().Username) })
	def.OnParticipantLeftGroup(func(p *Participant) { trace = append(trace, "def-"+p.UserInfo().Username) })
	g.OnParticipantJoinedGroup(func(p *Participant) { trace = append(trace, "g+"+p.UserInfo().Username) })
	g.OnParticipantLeftGroup(func(p *Participant) { trace = append(trace, "g-"+p.UserInfo().Username) })

	req.NoError(alice.TryJoinGroup(g.Code()))
	req.True(alice.TryLeaveGroup(g.Code()))
	req.True(alice.TryLeaveRoom(room.Code()))

	// Departure precedes arrival for each move; every scope pairs a
	// left with a prior joined.
	req.Equal([]string{
		"def-alice", "g+alice", // join group
		"g-alice", "def+alice", // leave group
		"def-alice", // leave room
	}, trace)
}

func TestRoom_Join_Emits_Connected_And_Default_Group_Joined(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)

	var trace []string
	room.OnParticipantConnected(func(p *Participant) { trace = append(trace, "connected") })
	room.DefaultGroup().OnParticipantJoinedGroup(func(p *Participant) { trace = append(trace, "joined-default") })

	join(t, room, "alice")

	req.Equal([]string{"connected", "joined-default"}, trace)
}

func TestGroup_Close_Notifies_Relocated_Members(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))
	req.NoError(bob.TryJoinGroup(g.Code()))

	var left []string
	var landed []string
	g.OnParticipantLeftGroup(func(p *Participant) { left = append(left, p.UserInfo().Username) })
	room.DefaultGroup().OnParticipantJoinedGroup(func(p *Participant) {
		landed = append(landed, p.UserInfo().Username)
	})

	req.NoError(g.Close())

	req.ElementsMatch([]string{"alice", "bob"}, left)
	req.ElementsMatch([]string{"alice", "bob"}, landed)
}

func TestListener_Sees_Consistent_State_On_Group_Move(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)

	g.OnParticipantJoinedGroup(func(p *Participant) {
		// Post-state: already a member here, gone from the default.
		require.Contains(t, g.Participants(), p)
		require.NotContains(t, room.DefaultGroup().Participants(), p)
		require.Equal(t, g, p.CurrentGroup())
	})

	req.NoError(alice.TryJoinGroup(g.Code()))
}
