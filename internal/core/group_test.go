package core

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidebarhq/sidebar/internal/domain"
)

func TestGroup_Create_Join_Leave_Scenario(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	def := room.DefaultGroup()

	// Given alice joined the room
	alice := join(t, room, "alice")
	req.Equal(def, alice.CurrentGroup())

	// When she creates a group, she is not moved into it
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.Equal(def, alice.CurrentGroup())
	req.Empty(g.Participants())

	// When she joins it, the default group is pushed onto her history
	req.NoError(alice.TryJoinGroup(g.Code()))
	req.Equal(g, alice.CurrentGroup())
	req.Equal([]*Group{def}, alice.PreviousGroups())
	req.Empty(def.Participants())

	// When she leaves it, she pops back to the default group
	req.True(alice.TryLeaveGroup(g.Code()))
	req.Equal(def, alice.CurrentGroup())
	req.Empty(alice.PreviousGroups())
	requireInExactlyOneGroup(t, room, alice)
}

func TestGroup_Leave_Twice_Returns_True_Then_False(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))

	req.True(alice.TryLeaveGroup(g.Code()))
	req.False(alice.TryLeaveGroup(g.Code()))
}

func TestGroup_Join_Unknown_Code_Fails_With_GroupNotFound(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")

	req.ErrorIs(alice.TryJoinGroup("no-such-code"), domain.ErrGroupNotFound)
	req.Equal(room.DefaultGroup(), alice.CurrentGroup())
}

func TestGroup_Join_Closed_Group_Fails_With_GroupClosed(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(g.Close())

	req.ErrorIs(alice.TryJoinGroup(g.Code()), domain.ErrGroupClosed)
}

func TestGroup_Join_Current_Group_Is_A_NoOp(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))

	req.NoError(alice.TryJoinGroup(g.Code()))

	// No duplicate history entry from re-joining.
	req.Equal([]*Group{room.DefaultGroup()}, alice.PreviousGroups())
}

func TestGroup_Join_Without_Room_Fails_With_NotInRoom(t *testing.T) {
	req := require.New(t)
	alice := NewParticipant(domain.User{Username: "alice"}, nil)

	req.ErrorIs(alice.TryJoinGroup("whatever"), domain.ErrNotInRoom)
	_, err := alice.CreateGroup()
	req.ErrorIs(err, domain.ErrNotInRoom)
	req.False(alice.TryLeaveGroup("whatever"))
}

func TestGroup_Invite_Is_Advisory_And_Idempotent(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")
	g, err := alice.CreateGroup()
	req.NoError(err)

	// Inviting twice keeps one pending invite
	g.InviteParticipant(bob).InviteParticipant(bob)
	req.Equal([]*Participant{bob}, g.InvitedParticipants())

	// Joining consumes the invite
	req.NoError(bob.TryJoinGroup(g.Code()))
	req.Empty(g.InvitedParticipants())

	// Inviting a member is a no-op
	g.InviteParticipant(bob)
	req.Empty(g.InvitedParticipants())

	// An uninvited participant can join regardless
	req.NoError(alice.TryJoinGroup(g.Code()))
	req.Len(g.Participants(), 2)
}

func TestGroup_Close_Restores_Each_Member_To_Own_History(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	def := room.DefaultGroup()
	alice := join(t, room, "alice")
	bob := join(t, room, "bob")

	// alice: default -> g1 -> g2; bob: default -> g2
	g1, err := alice.CreateGroup()
	req.NoError(err)
	g2, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g1.Code()))
	req.NoError(alice.TryJoinGroup(g2.Code()))
	req.NoError(bob.TryJoinGroup(g2.Code()))

	// When g2 closes, each member lands on its own previous group
	req.NoError(g2.Close())

	req.Equal(g1, alice.CurrentGroup())
	req.Equal(def, bob.CurrentGroup())
	req.True(g2.IsClosed())
	req.Empty(g2.Participants())
	requireInExactlyOneGroup(t, room, alice)
	requireInExactlyOneGroup(t, room, bob)
}

func TestGroup_Close_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)

	req.NoError(g.Close())
	req.NoError(g.Close())
}

func TestGroup_Default_Group_Cannot_Be_Closed(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)

	req.ErrorIs(room.DefaultGroup().Close(), domain.ErrDefaultGroup)
	req.False(room.DefaultGroup().IsClosed())
}

func TestGroup_History_Skips_Groups_Closed_In_The_Meantime(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	def := room.DefaultGroup()
	alice := join(t, room, "alice")

	g1, err := alice.CreateGroup()
	req.NoError(err)
	g2, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g1.Code()))
	req.NoError(alice.TryJoinGroup(g2.Code()))
	req.Equal([]*Group{g1, def}, alice.PreviousGroups())

	// g1 closes while alice is in g2; leaving g2 must skip it
	req.NoError(g1.Close())
	req.True(alice.TryLeaveGroup(g2.Code()))

	req.Equal(def, alice.CurrentGroup())
	req.Empty(alice.PreviousGroups())
}

func TestGroup_Leave_Stays_Put_When_History_Leads_Back(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")

	g1, err := alice.CreateGroup()
	req.NoError(err)
	g2, err := alice.CreateGroup()
	req.NoError(err)

	// default -> g2 -> g1 -> g2 leaves history [g1, g2, default]
	req.NoError(alice.TryJoinGroup(g2.Code()))
	req.NoError(alice.TryJoinGroup(g1.Code()))
	req.NoError(alice.TryJoinGroup(g2.Code()))
	req.Equal([]*Group{g1, g2, room.DefaultGroup()}, alice.PreviousGroups())
	req.NoError(g1.Close())

	var left int
	g2.OnParticipantLeftGroup(func(*Participant) { left++ })

	// Leaving g2 skips closed g1 and pops g2 itself: the move is
	// degenerate, so membership holds and no events fire.
	req.True(alice.TryLeaveGroup(g2.Code()))

	req.Equal(g2, alice.CurrentGroup())
	req.Zero(left)
	req.Equal([]*Group{room.DefaultGroup()}, alice.PreviousGroups())
	requireInExactlyOneGroup(t, room, alice)
}

func TestGroup_Room_BackReference_Survives_Creator_Departure(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)

	req.True(alice.TryLeaveRoom(room.Code()))

	req.Equal(room, g.Room())
	req.False(g.IsClosed())
}

func TestGroup_Closed_Collection_Shrinks_But_Code_Still_Resolves(t *testing.T) {
	req := require.New(t)
	room := newTestRoom(t)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.Len(room.Groups(), 2)

	req.NoError(g.Close())

	req.Len(room.Groups(), 1)
	resolved, ok := room.GroupByCode(g.Code())
	req.True(ok)
	req.True(resolved.IsClosed())
}

func TestGroup_Room_Join_Resets_History(t *testing.T) {
	req := require.New(t)
	issuer := NewCodeIssuer()
	room := NewRoom(issuer, shareBase)
	other := NewRoom(issuer, shareBase)
	alice := join(t, room, "alice")
	g, err := alice.CreateGroup()
	req.NoError(err)
	req.NoError(alice.TryJoinGroup(g.Code()))
	req.NotEmpty(alice.PreviousGroups())

	req.NoError(alice.TryJoinRoom(other))

	req.Empty(alice.PreviousGroups())
	req.Equal(other.DefaultGroup(), alice.CurrentGroup())
}
