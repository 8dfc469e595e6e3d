package core

import "github.com/samber/lo"

// Routing overlay: pure functions over room/group state, recomputed
// on demand so the answer can never go stale. The transport adapter
// consults these whenever membership changes to decide which tracks
// to wire where.

// AudibleSet returns the participants whose media p should receive:
// the members of p's current group plus every host of p's current
// room, regardless of the hosts' groups. Nil when p is not in a room.
func AudibleSet(p *Participant) []*Participant {
	r := p.CurrentRoom()
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g := p.currentGroupIn(r)
	if g == nil {
		return nil
	}
	set := append(sortedParticipants(g.members), r.hostsLocked()...)
	return lo.UniqBy(set, func(m *Participant) string { return m.UserInfo().Username })
}

// VisibleSet mirrors AudibleSet; audio and video route identically.
func VisibleSet(p *Participant) []*Participant {
	return AudibleSet(p)
}

// ReceiverSet is the outbound view: who should receive media from
// speaker. Hosts reach every participant in the room; everyone else
// reaches only their own group. The speaker itself is excluded.
func ReceiverSet(speaker *Participant) []*Participant {
	r := speaker.CurrentRoom()
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var set []*Participant
	if _, host := r.hosts[speaker.UserInfo().Username]; host {
		set = sortedParticipants(r.roster)
	} else {
		g := speaker.currentGroupIn(r)
		if g == nil {
			return nil
		}
		set = sortedParticipants(g.members)
	}
	return lo.Reject(set, func(m *Participant, _ int) bool { return m == speaker })
}
