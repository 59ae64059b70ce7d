package link

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/Alia5/airmouse/identity"
)

// EventKind distinguishes link notifications.
type EventKind int

const (
	Connected EventKind = iota
	Disconnected
)

func (k EventKind) String() string {
	if k == Connected {
		return "connect"
	}
	return "disconnect"
}

// Event is an immutable link notification queued for the polling loop.
type Event struct {
	Kind EventKind
	Conn Conn
}

// Session is the guard's view of the current link.
type Session struct {
	Connected bool
	Handle    uuid.UUID
	Peer      identity.PeerAddress
}

// DefaultQueueSize bounds the number of notifications buffered between ticks.
const DefaultQueueSize = 32

// Guard enforces host pinning. Radio callbacks only enqueue events; the
// polling loop applies them with Drain, which makes it the single writer of
// the session, the pinned target and the advertising decisions.
type Guard struct {
	radio  Radio
	logger *slog.Logger
	events chan Event

	pinned  *identity.PeerAddress
	session Session
}

// NewGuard returns a guard driving radio. It registers itself as the radio's
// connection observer.
func NewGuard(radio Radio, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{
		radio:  radio,
		logger: logger,
		events: make(chan Event, DefaultQueueSize),
	}
	radio.Observe(g)
	return g
}

// OnConnect implements ConnectionObserver.
func (g *Guard) OnConnect(c Conn) { g.enqueue(Event{Kind: Connected, Conn: c}) }

// OnDisconnect implements ConnectionObserver.
func (g *Guard) OnDisconnect(c Conn) { g.enqueue(Event{Kind: Disconnected, Conn: c}) }

// enqueue never blocks the radio. Once the polling loop has stopped draining
// and the queue is full, further events are dropped.
func (g *Guard) enqueue(ev Event) {
	select {
	case g.events <- ev:
	default:
		g.logger.Warn("link event queue full, dropping event", "event", ev.Kind, "peer", ev.Conn.Peer)
	}
}

// Pin restricts future connections to peer.
func (g *Guard) Pin(peer identity.PeerAddress) {
	p := peer
	g.pinned = &p
}

// Reset clears the pinned target and forgets the current session.
func (g *Guard) Reset() {
	g.pinned = nil
	g.session = Session{}
}

// Pinned returns the pinned target, if any.
func (g *Guard) Pinned() (identity.PeerAddress, bool) {
	if g.pinned == nil {
		return identity.PeerAddress{}, false
	}
	return *g.pinned, true
}

// Session returns the current link state.
func (g *Guard) Session() Session { return g.session }

// Drain applies every queued notification and returns how many it handled.
func (g *Guard) Drain() int {
	n := 0
	for {
		select {
		case ev := <-g.events:
			g.apply(ev)
			n++
		default:
			return n
		}
	}
}

func (g *Guard) apply(ev Event) {
	c := ev.Conn
	switch ev.Kind {
	case Connected:
		if g.pinned != nil && !g.pinned.Equal(c.Peer) {
			g.logger.Info("rejecting connection from unexpected host", "peer", c.Peer, "pinned", *g.pinned)
			if err := g.radio.Disconnect(c.Handle); err != nil {
				g.logger.Warn("failed to terminate rejected link", "peer", c.Peer, "error", err)
			}
			return
		}
		g.session = Session{Connected: true, Handle: c.Handle, Peer: c.Peer}
		if err := g.radio.StopAdvertising(); err != nil {
			g.logger.Warn("failed to stop advertising", "error", err)
		}
		g.logger.Info("host connected", "peer", c.Peer, "handle", c.Handle)

	case Disconnected:
		g.logger.Info("host disconnected", "peer", c.Peer, "handle", c.Handle)
		if g.session.Connected && g.session.Handle == c.Handle {
			g.session.Connected = false
		}
		if g.pinned != nil && g.pinned.Equal(c.Peer) {
			if err := g.radio.StartAdvertising(); err != nil {
				g.logger.Warn("failed to resume advertising", "error", err)
			}
		}
	}
}
