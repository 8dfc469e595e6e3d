package core

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/domain"
)

// Room is a top-level session: a roster of participants, a host set,
// an allow-list and a collection of groups including the always-open
// default group. One lock serializes every mutation of the room and
// its groups, so concurrent invites/joins/leaves never interleave
// partially. Listener callbacks are queued under the lock and fired
// after release, before the mutating call returns.
type Room struct {
	code      domain.RoomCode
	issuer    *CodeIssuer
	shareBase string

	mu     sync.RWMutex
	closed bool
	allow  *AllowList
	hosts  map[string]struct{}
	// groups keeps closed entries so their codes still resolve to a
	// "group closed" failure instead of "not found"; groupOrder keeps
	// creation order and is what Groups() filters.
	groups       map[domain.GroupCode]*Group
	groupOrder   []*Group
	roster       map[string]*Participant
	defaultGroup *Group

	connected    []RoomListener
	disconnected []RoomListener
}

// NewRoom allocates a room with a fresh code and its default group.
func NewRoom(issuer *CodeIssuer, shareBase string) *Room {
	r := &Room{
		code:      domain.RoomCode(issuer.Issue()),
		issuer:    issuer,
		shareBase: strings.TrimRight(shareBase, "/"),
		allow:     NewAllowList(),
		hosts:     make(map[string]struct{}),
		groups:    make(map[domain.GroupCode]*Group),
		roster:    make(map[string]*Participant),
	}
	def := newGroup(domain.GroupCode(issuer.Issue()), "main", r)
	r.defaultGroup = def
	r.groups[def.code] = def
	r.groupOrder = append(r.groupOrder, def)
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Msg("room created")
	return r
}

func (r *Room) Code() domain.RoomCode { return r.code }

// ShareURL returns the stable join link for this room.
func (r *Room) ShareURL() string {
	return r.shareBase + "/r/" + string(r.code)
}

// DefaultGroup is where participants land on room join and after
// exhausting their history stack. It cannot be closed.
func (r *Room) DefaultGroup() *Group { return r.defaultGroup }

// Groups returns the open groups in creation order, default first.
func (r *Room) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.openGroupsLocked()
}

func (r *Room) openGroupsLocked() []*Group {
	out := make([]*Group, 0, len(r.groupOrder))
	for _, g := range r.groupOrder {
		if !g.closed {
			out = append(out, g)
		}
	}
	return out
}

// Participants returns a snapshot of the roster.
func (r *Room) Participants() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedParticipants(r.roster)
}

// Hosts returns the current participants registered as hosts.
func (r *Room) Hosts() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostsLocked()
}

func (r *Room) hostsLocked() []*Participant {
	out := make(map[string]*Participant, len(r.hosts))
	for u := range r.hosts {
		if p, ok := r.roster[u]; ok {
			out[u] = p
		}
	}
	return sortedParticipants(out)
}

// IsHost reports whether the participant's user is a registered host.
func (r *Room) IsHost(p *Participant) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.hosts[p.UserInfo().Username]
	return ok
}

// AddHost registers a username as host for the room's lifetime. Any
// current or future participant with that username is globally
// audible via the routing overlay. There is no host removal.
func (r *Room) AddHost(username string) error {
	if username == "" {
		return domain.ErrUsernameEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRoomClosed
	}
	r.hosts[username] = struct{}{}
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("host", username).Msg("host added")
	return nil
}

// AddUsersToAllowedUsers unions users into the allow-list and returns
// the updated list. Duplicates are ignored.
func (r *Room) AddUsersToAllowedUsers(users ...domain.User) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	return r.allow.Add(users...), nil
}

// AllowedUsers returns the allow-list; empty means the room is open.
func (r *Room) AllowedUsers() []domain.User {
	return r.allow.Users()
}

// AddGroups batch-creates groups from descriptors and returns all of
// the room's open groups, pre-existing plus new, for convenience.
func (r *Room) AddGroups(infos ...domain.GroupInfo) ([]*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	for _, info := range infos {
		r.newGroupLocked(info.Name)
	}
	return r.openGroupsLocked(), nil
}

func (r *Room) createGroup(name string) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRoomClosed
	}
	return r.newGroupLocked(name), nil
}

func (r *Room) newGroupLocked(name string) *Group {
	g := newGroup(domain.GroupCode(r.issuer.Issue()), name, r)
	r.groups[g.code] = g
	r.groupOrder = append(r.groupOrder, g)
	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("group", string(g.code)).Msg("group created")
	return g
}

// GroupByCode resolves a group code within this room. Closed groups
// still resolve until their code is reissued.
func (r *Room) GroupByCode(code domain.GroupCode) (*Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[code]
	return g, ok
}

// MuteParticipants sets the mute-for-all audio flag on every current
// non-host participant. Hosts are exempt.
func (r *Room) MuteParticipants() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return domain.ErrRoomClosed
	}
	for u, p := range r.roster {
		if _, host := r.hosts[u]; host {
			continue
		}
		p.MuteAudioForAll()
	}
	return nil
}

// OnParticipantConnected registers a room-scope listener invoked, in
// registration order, after a participant has been admitted.
func (r *Room) OnParticipantConnected(fn RoomListener) {
	r.mu.Lock()
	r.connected = append(r.connected, fn)
	r.mu.Unlock()
}

// OnParticipantDisconnected registers a room-scope listener invoked
// after a participant has left or been evicted.
func (r *Room) OnParticipantDisconnected(fn RoomListener) {
	r.mu.Lock()
	r.disconnected = append(r.disconnected, fn)
	r.mu.Unlock()
}

// precheck reports whether a user would currently be admitted.
func (r *Room) precheck(u domain.User) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch {
	case r.closed:
		return domain.ErrRoomClosed
	case !r.allow.Allows(u):
		return domain.ErrAccessDenied
	default:
		return nil
	}
}

// admit places a participant into the room's default group, clearing
// its previous-group history.
func (r *Room) admit(p *Participant) error {
	u := p.UserInfo()
	var q notifyQueue
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoomClosed
	}
	if !r.allow.Allows(u) {
		r.mu.Unlock()
		return domain.ErrAccessDenied
	}
	if _, ok := r.roster[u.Username]; ok {
		r.mu.Unlock()
		return domain.ErrAlreadyInRoom
	}
	r.roster[u.Username] = p
	r.defaultGroup.members[u.Username] = p
	p.setSession(r, r.defaultGroup)
	p.clearPrev()
	q.roomEvent(r.connected, p)
	q.groupEvent(r.defaultGroup.joined, p)
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("user", u.Username).Msg("participant connected")
	q.fire()
	return nil
}

// evict removes a participant from its current group, the roster and
// every pending invite. Reports false when the participant is not in
// the room.
func (r *Room) evict(p *Participant) bool {
	u := p.UserInfo().Username
	var q notifyQueue
	r.mu.Lock()
	if r.roster[u] != p {
		r.mu.Unlock()
		return false
	}
	g := p.currentGroupIn(r)
	delete(g.members, u)
	delete(r.roster, u)
	for _, other := range r.groups {
		delete(other.invited, u)
	}
	p.setSession(nil, nil)
	q.groupEvent(g.left, p)
	q.roomEvent(r.disconnected, p)
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("user", u).Msg("participant disconnected")
	q.fire()
	return true
}

// joinGroup moves a participant into the group with the given code,
// pushing the current group onto its history stack and consuming any
// pending invite. Joining the current group is a no-op.
func (r *Room) joinGroup(p *Participant, code domain.GroupCode) error {
	u := p.UserInfo().Username
	var q notifyQueue
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoomClosed
	}
	if r.roster[u] != p {
		r.mu.Unlock()
		return domain.ErrNotInRoom
	}
	g, ok := r.groups[code]
	if !ok {
		r.mu.Unlock()
		return domain.ErrGroupNotFound
	}
	if g.closed {
		r.mu.Unlock()
		return domain.ErrGroupClosed
	}
	src := p.currentGroupIn(r)
	if src == g {
		r.mu.Unlock()
		return nil
	}
	p.pushPrev(src)
	delete(src.members, u)
	delete(g.invited, u)
	g.members[u] = p
	p.setSession(r, g)
	q.groupEvent(src.left, p)
	q.groupEvent(g.joined, p)
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("user", u).
		Str("from", string(src.code)).Str("to", string(g.code)).Msg("participant joined group")
	q.fire()
	return nil
}

// leaveGroup moves a participant out of the group with the given code
// and back to the top of its history stack, defaulting to the default
// group. Reports false when the participant is not in that group.
func (r *Room) leaveGroup(p *Participant, code domain.GroupCode) bool {
	u := p.UserInfo().Username
	var q notifyQueue
	r.mu.Lock()
	if r.roster[u] != p {
		r.mu.Unlock()
		return false
	}
	g, ok := r.groups[code]
	if !ok || p.currentGroupIn(r) != g {
		r.mu.Unlock()
		return false
	}
	dst := r.fallbackLocked(p)
	if dst == g {
		// History led back to the group being left; stay put.
		r.mu.Unlock()
		return true
	}
	r.moveLocked(p, g, dst, &q)
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("user", u).
		Str("from", string(g.code)).Str("to", string(dst.code)).Msg("participant left group")
	q.fire()
	return true
}

// closeGroup relocates every member to its own fallback group, clears
// the invited set, releases the code and marks the group closed.
// Idempotent on an already-closed group. The default group can only
// be closed as part of the room teardown.
func (r *Room) closeGroup(g *Group, force bool) error {
	var q notifyQueue
	r.mu.Lock()
	if g.closed {
		r.mu.Unlock()
		return nil
	}
	if g == r.defaultGroup && !force {
		r.mu.Unlock()
		return domain.ErrDefaultGroup
	}
	g.closed = true
	for _, m := range sortedParticipants(g.members) {
		r.moveLocked(m, g, r.fallbackLocked(m), &q)
	}
	g.invited = make(map[string]*Participant)
	r.issuer.Release(string(g.code))
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Str("group", string(g.code)).Msg("group closed")
	q.fire()
	return nil
}

// Close evicts every participant, closes every group including the
// default, releases the room code and makes the room terminal: all
// further operations fail with domain.ErrRoomClosed.
func (r *Room) Close() error {
	var q notifyQueue
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRoomClosed
	}
	r.closed = true
	for _, p := range sortedParticipants(r.roster) {
		g := p.currentGroupIn(r)
		delete(g.members, p.UserInfo().Username)
		p.setSession(nil, nil)
		p.clearPrev()
		q.groupEvent(g.left, p)
		q.roomEvent(r.disconnected, p)
	}
	r.roster = make(map[string]*Participant)
	for _, g := range r.groupOrder {
		if !g.closed {
			g.closed = true
			g.invited = make(map[string]*Participant)
			r.issuer.Release(string(g.code))
		}
	}
	r.issuer.Release(string(r.code))
	r.mu.Unlock()

	log.Info().Str("module", "core.room").Str("room", string(r.code)).Msg("room closed")
	q.fire()
	return nil
}

// IsClosed reports whether the room has been closed.
func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// fallbackLocked pops the history stack until it finds an open group
// of this room, falling back to the default group. Entries for closed
// or foreign groups are discarded on the way.
func (r *Room) fallbackLocked(p *Participant) *Group {
	for {
		g := p.popPrev()
		if g == nil {
			return r.defaultGroup
		}
		if g.room == r && !g.closed {
			return g
		}
	}
}

func (r *Room) moveLocked(p *Participant, from, to *Group, q *notifyQueue) {
	u := p.UserInfo().Username
	delete(from.members, u)
	delete(to.invited, u)
	to.members[u] = p
	p.setSession(r, to)
	q.groupEvent(from.left, p)
	q.groupEvent(to.joined, p)
}
