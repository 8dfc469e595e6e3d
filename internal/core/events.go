package core

// RoomListener observes room-scope membership events
// (participant connected / disconnected).
type RoomListener func(*Participant)

// GroupListener observes group-scope membership events
// (participant joined / left the group).
type GroupListener func(*Participant)

// notifyQueue collects listener invocations during a mutation so they
// can run after the room lock is released. Listeners therefore always
// observe fully applied state, and a mutating call returns only after
// its notifications have been delivered. Invocation order is queue
// order, which follows registration order within each event.
type notifyQueue struct {
	fns []func()
}

func (q *notifyQueue) roomEvent(listeners []RoomListener, p *Participant) {
	for _, fn := range listeners {
		fn := fn
		q.fns = append(q.fns, func() { fn(p) })
	}
}

func (q *notifyQueue) groupEvent(listeners []GroupListener, p *Participant) {
	for _, fn := range listeners {
		fn := fn
		q.fns = append(q.fns, func() { fn(p) })
	}
}

func (q *notifyQueue) fire() {
	for _, fn := range q.fns {
		fn()
	}
	q.fns = nil
}
