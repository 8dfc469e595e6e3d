package signal

import "github.com/sidebarhq/sidebar/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropMessage
	KickSubscriber
)

// Policy decides what to do with a subscriber whose signaling
// connection cannot keep up with room broadcasts.
type Policy interface {
	OnBackpressure(room *core.Room, p *core.Participant) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackpressure(room *core.Room, p *core.Participant) BackpressureAction {
	return KickSubscriber
}
