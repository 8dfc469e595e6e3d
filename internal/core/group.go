package core

import (
	"sort"

	"github.com/samber/lo"

	"github.com/sidebarhq/sidebar/internal/domain"
)

// Group is a side conversation inside a room. Members hear each other
// (plus the room's hosts, via the routing overlay). The room owns the
// group; all membership fields are guarded by the owning room's lock.
type Group struct {
	code domain.GroupCode
	name string
	room *Room // back-reference, not ownership

	members map[string]*Participant
	invited map[string]*Participant
	closed  bool

	joined []GroupListener
	left   []GroupListener
}

func newGroup(code domain.GroupCode, name string, room *Room) *Group {
	return &Group{
		code:    code,
		name:    name,
		room:    room,
		members: make(map[string]*Participant),
		invited: make(map[string]*Participant),
	}
}

func (g *Group) Code() domain.GroupCode { return g.code }
func (g *Group) Name() string           { return g.name }
func (g *Group) Room() *Room            { return g.room }

// IsDefault reports whether this is the room's default group.
func (g *Group) IsDefault() bool { return g.room.defaultGroup == g }

func (g *Group) IsClosed() bool {
	g.room.mu.RLock()
	defer g.room.mu.RUnlock()
	return g.closed
}

// Participants returns a snapshot of the member set.
func (g *Group) Participants() []*Participant {
	g.room.mu.RLock()
	defer g.room.mu.RUnlock()
	return sortedParticipants(g.members)
}

// InvitedParticipants returns a snapshot of the pending invitees.
func (g *Group) InvitedParticipants() []*Participant {
	g.room.mu.RLock()
	defer g.room.mu.RUnlock()
	return sortedParticipants(g.invited)
}

// InviteParticipant adds the target to the invited set and returns
// the group for chaining. It is a no-op when the target is already
// invited or already a member, or when the group is closed. Inviting
// does not move anyone; invitation is advisory, not an access gate.
func (g *Group) InviteParticipant(p *Participant) *Group {
	g.room.mu.Lock()
	defer g.room.mu.Unlock()
	if g.closed || g.room.closed {
		return g
	}
	u := p.UserInfo().Username
	if _, member := g.members[u]; member {
		return g
	}
	g.invited[u] = p
	return g
}

// Close evicts every member back to the top of its own previous-group
// history (or the default group), clears the invited set and releases
// the group code. Closing an already-closed group is a no-op; the
// default group cannot be closed directly.
func (g *Group) Close() error {
	return g.room.closeGroup(g, false)
}

// OnParticipantJoinedGroup registers a listener invoked after a
// participant has been added to the member set. Listeners run in
// registration order, after the state change is applied.
func (g *Group) OnParticipantJoinedGroup(fn GroupListener) {
	g.room.mu.Lock()
	g.joined = append(g.joined, fn)
	g.room.mu.Unlock()
}

// OnParticipantLeftGroup registers a listener invoked after a
// participant has been removed from the member set.
func (g *Group) OnParticipantLeftGroup(fn GroupListener) {
	g.room.mu.Lock()
	g.left = append(g.left, fn)
	g.room.mu.Unlock()
}

func sortedParticipants(m map[string]*Participant) []*Participant {
	out := lo.Values(m)
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserInfo().Username < out[j].UserInfo().Username
	})
	return out
}
