package core

import (
	"context"
	"sync"

	"github.com/sidebarhq/sidebar/internal/domain"
)

// session ties a participant to a room and its current group inside
// that room. A nil session means "not in any room"; a non-nil session
// always carries both fields, so an in-room participant is never
// without a group.
type session struct {
	room  *Room
	group *Group
}

// Participant is the per-user view of the system: current placement,
// previous-group history, mute flags and media handles. Placement is
// mutated only through room transitions, which hold the owning room's
// lock; the participant's own mutex guards its fields for readers.
type Participant struct {
	user  domain.User
	media MediaTransport

	mu   sync.Mutex
	sess *session
	prev []*Group // previous-group history, most recent first

	audioMutedForAll bool
	videoMutedForAll bool
	hasAudio         bool
	hasVideo         bool
}

func NewParticipant(user domain.User, media MediaTransport) *Participant {
	return &Participant{user: user, media: media}
}

func (p *Participant) UserInfo() domain.User { return p.user }

// CurrentRoom returns the room the participant is in, or nil.
func (p *Participant) CurrentRoom() *Room {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return nil
	}
	return p.sess.room
}

// CurrentGroup returns the participant's group within its current
// room, or nil when not in a room.
func (p *Participant) CurrentGroup() *Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil {
		return nil
	}
	return p.sess.group
}

// PreviousGroups returns the history stack, most recent first.
func (p *Participant) PreviousGroups() []*Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Group, len(p.prev))
	copy(out, p.prev)
	return out
}

// TryJoinRoom enters a room, landing in its default group and
// clearing the previous-group history. Joining while in another room
// leaves that room first. Fails with domain.ErrAccessDenied,
// domain.ErrAlreadyInRoom or domain.ErrRoomClosed.
func (p *Participant) TryJoinRoom(room *Room) error {
	if cur := p.CurrentRoom(); cur != nil {
		if cur == room {
			return domain.ErrAlreadyInRoom
		}
		// Do not leave the old room for a target that would reject us.
		if err := room.precheck(p.user); err != nil {
			return err
		}
		cur.evict(p)
		if err := room.admit(p); err != nil {
			// The target changed its mind between precheck and admit
			// (allow-list grew, room closed). Restore the old room
			// membership so a failed switch never strands us roomless.
			_ = cur.admit(p)
			return err
		}
		return nil
	}
	return room.admit(p)
}

// TryLeaveRoom leaves the room with the given code. Returns false,
// not an error, when the participant is not in that room.
func (p *Participant) TryLeaveRoom(code domain.RoomCode) bool {
	cur := p.CurrentRoom()
	if cur == nil || cur.Code() != code {
		return false
	}
	return cur.evict(p)
}

// CreateGroup allocates a fresh group in the participant's current
// room. The creator is not moved into it; movement happens only via
// TryJoinGroup.
func (p *Participant) CreateGroup() (*Group, error) {
	cur := p.CurrentRoom()
	if cur == nil {
		return nil, domain.ErrNotInRoom
	}
	return cur.createGroup("")
}

// TryJoinGroup moves the participant into the group with the given
// code, pushing the current group onto the history stack. Joining the
// current group is a no-op. An invitation is advisory, not required.
func (p *Participant) TryJoinGroup(code domain.GroupCode) error {
	cur := p.CurrentRoom()
	if cur == nil {
		return domain.ErrNotInRoom
	}
	return cur.joinGroup(p, code)
}

// TryLeaveGroup leaves the group with the given code, returning the
// participant to the top of its history stack or to the default
// group. Returns false when not currently in that group.
func (p *Participant) TryLeaveGroup(code domain.GroupCode) bool {
	cur := p.CurrentRoom()
	if cur == nil {
		return false
	}
	return cur.leaveGroup(p, code)
}

func (p *Participant) MuteAudioForAll() {
	p.mu.Lock()
	p.audioMutedForAll = true
	p.mu.Unlock()
}

func (p *Participant) UnmuteAudioForAll() {
	p.mu.Lock()
	p.audioMutedForAll = false
	p.mu.Unlock()
}

func (p *Participant) MuteVideoForAll() {
	p.mu.Lock()
	p.videoMutedForAll = true
	p.mu.Unlock()
}

func (p *Participant) UnmuteVideoForAll() {
	p.mu.Lock()
	p.videoMutedForAll = false
	p.mu.Unlock()
}

func (p *Participant) AudioMutedForAll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audioMutedForAll
}

func (p *Participant) VideoMutedForAll() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.videoMutedForAll
}

// RequestAudioSources asks the transport collaborator for usable
// audio sources. Rejection surfaces domain.ErrPermissionDenied.
func (p *Participant) RequestAudioSources(ctx context.Context) ([]MediaSource, error) {
	if p.media == nil {
		return nil, domain.ErrPermissionDenied
	}
	return p.media.RequestAudioSources(ctx)
}

func (p *Participant) RequestVideoSources(ctx context.Context) ([]MediaSource, error) {
	if p.media == nil {
		return nil, domain.ErrPermissionDenied
	}
	return p.media.RequestVideoSources(ctx)
}

// SetAudioStream attaches (or, with a nil source, detaches) the
// participant's outbound audio via the transport collaborator, which
// reports success as a boolean.
func (p *Participant) SetAudioStream(ctx context.Context, src *MediaSource) (bool, error) {
	if p.media == nil {
		return false, nil
	}
	ok, err := p.media.SetAudioStream(ctx, src)
	if err == nil && ok {
		p.mu.Lock()
		p.hasAudio = src != nil
		p.mu.Unlock()
	}
	return ok, err
}

func (p *Participant) SetVideoStream(ctx context.Context, src *MediaSource) (bool, error) {
	if p.media == nil {
		return false, nil
	}
	ok, err := p.media.SetVideoStream(ctx, src)
	if err == nil && ok {
		p.mu.Lock()
		p.hasVideo = src != nil
		p.mu.Unlock()
	}
	return ok, err
}

func (p *Participant) HasAudioStream() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasAudio
}

func (p *Participant) HasVideoStream() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasVideo
}

// Placement helpers below are called by Room transitions with the
// room lock held. They must never acquire a room lock themselves.

func (p *Participant) setSession(r *Room, g *Group) {
	p.mu.Lock()
	if r == nil {
		p.sess = nil
	} else {
		p.sess = &session{room: r, group: g}
	}
	p.mu.Unlock()
}

func (p *Participant) currentGroupIn(r *Room) *Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sess == nil || p.sess.room != r {
		return nil
	}
	return p.sess.group
}

func (p *Participant) pushPrev(g *Group) {
	p.mu.Lock()
	p.prev = append([]*Group{g}, p.prev...)
	p.mu.Unlock()
}

// popPrev removes and returns the top of the history stack, or nil
// when the stack is empty.
func (p *Participant) popPrev() *Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prev) == 0 {
		return nil
	}
	g := p.prev[0]
	p.prev = p.prev[1:]
	return g
}

func (p *Participant) clearPrev() {
	p.mu.Lock()
	p.prev = nil
	p.mu.Unlock()
}
