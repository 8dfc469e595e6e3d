package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/sidebarhq/sidebar/internal/adapters/rtc"
	"github.com/sidebarhq/sidebar/internal/core"
	"github.com/sidebarhq/sidebar/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// Controller terminates signaling websockets and translates the wire
// protocol into core room/group operations. Core listeners it
// registers push membership events back out and resync the fanout.
type Controller struct {
	Rooms    *core.RoomManager
	Fanout   *rtc.Fanout
	Registry *Registry
	Policy   Policy
	Limiter  *GroupRateLimiter

	ReadLimit  int64
	PingPeriod time.Duration

	wiredMu sync.Mutex
	wired   map[domain.RoomCode]struct{}
}

func NewController(rooms *core.RoomManager, fanout *rtc.Fanout, limiter *GroupRateLimiter, readLimit int64, pingPeriod time.Duration) *Controller {
	return &Controller{
		Rooms:      rooms,
		Fanout:     fanout,
		Registry:   NewRegistry(),
		Policy:     SimplePolicy{},
		Limiter:    limiter,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		wired:      make(map[domain.RoomCode]struct{}),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the connection, builds the participant and
// its media transport, and starts the IO pumps. The username comes
// from the "name" query param; it is the participant's identity and
// cannot change afterwards.
func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := SessionID(c.GetString("client_token"))

	name := c.Query("name")
	if name == "" {
		name = "guest-" + string(sid[:min(8, len(sid))])
	}
	user, err := domain.NewUser(name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if ctl.Registry.UsernameTaken(user.Username) {
		c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	transport := rtc.NewTransport(ctl.Fanout)
	participant := core.NewParticipant(user, transport)
	transport.Bind(participant)

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, participant, transport, conn, cancel)
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("user", user.Username).Msg("new WS connection")

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, conn)
}

// teardown runs when a session's read pump exits: the participant
// leaves its room, media is dropped, and the binding is removed.
func (ctl *Controller) teardown(sid SessionID) {
	e, ok := ctl.Registry.Get(sid)
	if !ok {
		return
	}
	if room := e.Participant.CurrentRoom(); room != nil {
		e.Participant.TryLeaveRoom(room.Code())
	}
	e.Transport.DetachPeer()
	ctl.Registry.Unbind(sid)
}

// broadcastRoom fans a message out to every participant of the room.
// Subscribers that cannot keep up are handled per the backpressure
// policy.
func (ctl *Controller) broadcastRoom(room *core.Room, v any) {
	for _, p := range room.Participants() {
		username := p.UserInfo().Username
		conn, ok := ctl.Registry.ConnOf(username)
		if !ok {
			continue
		}
		if err := sendJSON(conn, v); err != nil {
			switch ctl.Policy.OnBackpressure(room, p) {
			case KickSubscriber:
				log.Warn().Str("module", "signal").Str("user", username).Msg("kicking slow subscriber")
				p.TryLeaveRoom(room.Code())
			case NoAction, DropMessage:
			}
		}
	}
}

// WireRoom registers the controller's listeners on a room exactly
// once. Listeners observe committed state, so broadcasting snapshots
// from inside them is safe.
func (ctl *Controller) WireRoom(room *core.Room) {
	ctl.wiredMu.Lock()
	if _, done := ctl.wired[room.Code()]; done {
		ctl.wiredMu.Unlock()
		return
	}
	ctl.wired[room.Code()] = struct{}{}
	ctl.wiredMu.Unlock()

	room.OnParticipantConnected(func(p *core.Participant) {
		ctl.Fanout.Resync(room)
		ctl.broadcastRoom(room, eventMsg{Type: "participant_connected", User: p.UserInfo()})
	})
	room.OnParticipantDisconnected(func(p *core.Participant) {
		ctl.Fanout.Resync(room)
		ctl.broadcastRoom(room, eventMsg{Type: "participant_disconnected", User: p.UserInfo()})
	})
	ctl.wireGroup(room, room.DefaultGroup())
}

func (ctl *Controller) wireGroup(room *core.Room, g *core.Group) {
	g.OnParticipantJoinedGroup(func(p *core.Participant) {
		ctl.Fanout.Resync(room)
		ctl.broadcastRoom(room, eventMsg{Type: "group_joined", Group: string(g.Code()), User: p.UserInfo()})
	})
	g.OnParticipantLeftGroup(func(p *core.Participant) {
		ctl.Fanout.Resync(room)
		ctl.broadcastRoom(room, eventMsg{Type: "group_left", Group: string(g.Code()), User: p.UserInfo()})
	})
}

type eventMsg struct {
	Type  string      `json:"type"`
	Group string      `json:"group,omitempty"`
	User  domain.User `json:"user"`
}

type groupDTO struct {
	Code         string        `json:"code"`
	Name         string        `json:"name,omitempty"`
	Default      bool          `json:"default"`
	Participants []domain.User `json:"participants"`
}

type roomStateDTO struct {
	Type         string        `json:"type"`
	Room         string        `json:"room"`
	ShareURL     string        `json:"share_url"`
	Groups       []groupDTO    `json:"groups"`
	Participants []domain.User `json:"participants"`
	Hosts        []domain.User `json:"hosts"`
}

func users(ps []*core.Participant) []domain.User {
	return lo.Map(ps, func(p *core.Participant, _ int) domain.User { return p.UserInfo() })
}

func roomState(room *core.Room) roomStateDTO {
	return roomStateDTO{
		Type:     "room_state",
		Room:     string(room.Code()),
		ShareURL: room.ShareURL(),
		Groups: lo.Map(room.Groups(), func(g *core.Group, _ int) groupDTO {
			return groupDTO{
				Code:         string(g.Code()),
				Name:         g.Name(),
				Default:      g.IsDefault(),
				Participants: users(g.Participants()),
			}
		}),
		Participants: users(room.Participants()),
		Hosts:        users(room.Hosts()),
	}
}
