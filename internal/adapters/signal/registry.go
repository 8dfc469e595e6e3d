package signal

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/adapters/rtc"
	"github.com/sidebarhq/sidebar/internal/core"
)

// SessionID is the client token carried by the signaling connection.
type SessionID string

type sessionEntry struct {
	Participant *core.Participant
	Transport   *rtc.Transport
	Conn        core.SignalConnection
	Cancel      context.CancelFunc
}

// Registry binds client tokens to participants and their transports
// so handlers and broadcasts can resolve either way.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionEntry
	byUser   map[string]SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[SessionID]*sessionEntry),
		byUser:   make(map[string]SessionID),
	}
}

// Bind associates a connection with a participant. The participant's
// username also becomes resolvable for broadcasts.
func (r *Registry) Bind(sid SessionID, p *core.Participant, t *rtc.Transport, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Participant: p, Transport: t, Conn: conn, Cancel: cancel}
	r.byUser[p.UserInfo().Username] = sid
	log.Info().Str("module", "signal.registry").Str("sid", string(sid)).
		Str("user", p.UserInfo().Username).Msg("bound session")
}

func (r *Registry) Get(sid SessionID) (*sessionEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	return e, ok
}

// ConnOf resolves a participant's signaling connection by username.
func (r *Registry) ConnOf(username string) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[username]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[sid]
	if !ok || e.Conn == nil {
		return nil, false
	}
	return e.Conn, true
}

// ParticipantOf resolves a participant by username.
func (r *Registry) ParticipantOf(username string) (*core.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[username]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Participant, true
}

// Unbind drops the session and its username mapping.
func (r *Registry) Unbind(sid SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.sessions[sid]; ok {
		delete(r.byUser, e.Participant.UserInfo().Username)
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "signal.registry").Str("sid", string(sid)).Msg("unbound session")
}

// Cancel tears down the session's context, which closes its pumps.
func (r *Registry) Cancel(sid SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "signal.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// UsernameTaken reports whether a live session already owns the name.
func (r *Registry) UsernameTaken(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[username]
	return ok
}
