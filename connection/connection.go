// Package connection drives slot selection, advertising, first-time pairing
// and the hand-over to steady pointer operation.
//
// The machine is polled once per tick from the pointer loop. Within one tick
// it keeps stepping while states hand over immediately, so a boot straight
// into a paired slot configures the radio on the very first tick.
package connection

import (
	"log/slog"
	"time"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/link"
	"github.com/Alia5/airmouse/slots"
	"github.com/Alia5/airmouse/ui"
)

// State of the connection machine.
type State int

const (
	PreStart State = iota
	SelectSlot
	StartSlot
	PairingOrConnecting
	Connected
	ConnectedIdle
)

var stateNames = [...]string{
	PreStart:            "PreStart",
	SelectSlot:          "SelectSlot",
	StartSlot:           "StartSlot",
	PairingOrConnecting: "PairingOrConnecting",
	Connected:           "Connected",
	ConnectedIdle:       "ConnectedIdle",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// DefaultLongPress is how long the decide button must be held to erase a slot.
const DefaultLongPress = 5 * time.Second

// BatteryLevel is the fixed battery level advertised to hosts.
const BatteryLevel = 100

// SlotStore persists the pairing table.
type SlotStore interface {
	Load() (slots.Table, int)
	Save(t slots.Table, active int) error
}

// Guard is the part of the link guard the machine drives.
type Guard interface {
	Pin(peer identity.PeerAddress)
	Reset()
	Session() link.Session
}

// Config holds the fixed identity inputs and timings.
type Config struct {
	Base       identity.Address
	NamePrefix string
	Vendor     string
	LongPress  time.Duration

	// Now is the clock used for long-press timing. Defaults to time.Now.
	Now func() time.Time
	// OnTransition, when set, observes every state change.
	OnTransition func(from, to State)
}

// Machine is the connection state machine. It is not safe for concurrent use;
// only the polling loop may call it.
type Machine struct {
	cfg     Config
	store   SlotStore
	guard   Guard
	radio   link.Radio
	surface ui.Surface
	logger  *slog.Logger

	state  State
	table  slots.Table
	active int

	lastA, lastB bool
	aArmed       bool
	aReleased    bool
	bPressed     bool
	bHeld        bool
	bReleased    bool
	pressing     bool
	pressedAt    time.Time

	shown    string
	linkLost bool
}

// New returns a machine in PreStart.
func New(cfg Config, store SlotStore, guard Guard, radio link.Radio, surface ui.Surface, logger *slog.Logger) *Machine {
	if cfg.LongPress <= 0 {
		cfg.LongPress = DefaultLongPress
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "AirMouse"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:     cfg,
		store:   store,
		guard:   guard,
		radio:   radio,
		surface: surface,
		logger:  logger,
	}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// ActiveSlot returns the slot currently selected.
func (m *Machine) ActiveSlot() int { return m.active }

// Table returns the machine's working copy of the pairing table.
func (m *Machine) Table() slots.Table { return m.table }

// LinkUp reports whether a host link is currently established.
func (m *Machine) LinkUp() bool { return m.guard.Session().Connected }

// Tick advances the machine with this tick's inputs and reports whether the
// pointer is ready for steady operation.
func (m *Machine) Tick(in ui.Inputs) bool {
	if !m.lastA && in.A {
		m.aArmed = true
	}
	m.aReleased = m.lastA && !in.A
	m.bPressed = !m.lastB && in.B
	m.bHeld = m.lastB && in.B
	m.bReleased = m.lastB && !in.B

	for m.step(in) {
	}

	m.lastA, m.lastB = in.A, in.B
	return m.state == ConnectedIdle
}

func (m *Machine) setState(s State) {
	if s == m.state {
		return
	}
	from := m.state
	m.state = s
	m.logger.Debug("connection state", "from", from, "to", s, "slot", m.active)
	if m.cfg.OnTransition != nil {
		m.cfg.OnTransition(from, s)
	}
}

// step runs the current state once and reports whether another state should
// run within the same tick.
func (m *Machine) step(in ui.Inputs) bool {
	switch m.state {
	case PreStart:
		return m.preStart(in)
	case SelectSlot:
		return m.selectSlot()
	case StartSlot:
		return m.startSlot()
	case PairingOrConnecting:
		return m.pairingOrConnecting(in)
	case Connected:
		m.show(ui.Screen{Color: ui.ColorBlack})
		m.surface.SetPowerSave(true)
		m.setState(ConnectedIdle)
		return false
	case ConnectedIdle:
		m.idle()
		return false
	}
	return false
}

func (m *Machine) preStart(in ui.Inputs) bool {
	m.surface.SetPowerSave(false)

	// Buttons already down at boot do not count as presses.
	m.lastA, m.lastB = in.A, in.B
	m.aReleased, m.bPressed, m.bHeld, m.bReleased = false, false, false, false
	m.aArmed, m.pressing = false, false

	m.table, m.active = m.store.Load()
	cur := m.table[m.active]
	if in.Screen || !cur.Paired {
		m.setState(SelectSlot)
		return true
	}
	// Resuming the last bound host: only that host may reconnect.
	m.guard.Reset()
	m.guard.Pin(cur.Peer)
	m.logger.Info("resuming bound host", "slot", m.active, "peer", cur.Peer)
	m.setState(StartSlot)
	return true
}

func (m *Machine) selectSlot() bool {
	var s ui.Screen
	s.Color = ui.ColorDarkGreen
	s.Printf("SelSlot: %d", m.active)
	if cur := m.table[m.active]; cur.Paired {
		s.Printf("Paired: %s", cur.Peer.Addr)
	} else {
		s.Printf("Not paired")
	}
	s.Printf("A: Slot++")
	s.Printf("B: Decide")
	s.Printf("B(long): ErasePairing")
	m.show(s)

	if m.aReleased && m.aArmed {
		m.active = slots.Next(m.active)
		m.aReleased, m.aArmed = false, false
		m.logger.Debug("slot selected", "slot", m.active)
	}

	switch {
	case m.bPressed:
		m.pressing = true
		m.pressedAt = m.cfg.Now()
		m.bPressed = false
	case m.bHeld && m.pressing:
		if m.cfg.Now().Sub(m.pressedAt) >= m.cfg.LongPress && m.table[m.active].Paired {
			m.table[m.active].Paired = false
			m.logger.Info("pairing erased", "slot", m.active)
			m.save()
		}
	case m.bReleased && m.pressing:
		m.pressing = false
		m.bReleased = false
		if m.cfg.Now().Sub(m.pressedAt) >= m.cfg.LongPress {
			return false
		}
		m.guard.Reset()
		if cur := m.table[m.active]; cur.Paired {
			m.guard.Pin(cur.Peer)
			m.logger.Info("slot decided, pinning host", "slot", m.active, "peer", cur.Peer)
		} else {
			m.logger.Info("slot decided, waiting for a new host", "slot", m.active)
		}
		m.save()
		m.setState(StartSlot)
		return true
	}
	return false
}

func (m *Machine) startSlot() bool {
	addr, name := identity.Derive(m.cfg.Base, m.cfg.NamePrefix, m.active)
	id := link.Identity{Address: addr, Name: name, Vendor: m.cfg.Vendor, Battery: BatteryLevel}
	if err := m.radio.Begin(id); err != nil {
		m.logger.Error("failed to start advertising", "slot", m.active, "error", err)
	} else {
		m.logger.Info("advertising", "slot", m.active, "name", name, "address", addr)
	}
	m.linkLost = false
	m.setState(PairingOrConnecting)
	return true
}

func (m *Machine) pairingOrConnecting(in ui.Inputs) bool {
	var s ui.Screen
	s.Color = ui.ColorDarkCyan
	s.Printf("Slot: %d", m.active)

	next := false
	sess := m.guard.Session()
	cur := &m.table[m.active]
	switch {
	case sess.Connected && !cur.Paired:
		cur.Peer = sess.Peer
		cur.Paired = true
		m.logger.Info("paired new host", "slot", m.active, "peer", sess.Peer)
		m.save()
		s.Printf("Paired: %s", sess.Peer.Addr)
	case sess.Connected && cur.Peer.Equal(sess.Peer):
		m.setState(Connected)
		next = true
	case cur.Paired:
		s.Printf("Wait Connecting...:")
		s.Printf("%s", cur.Peer.Addr)
	default:
		s.Printf("Wait Pairing...")
	}
	s.Printf("Screen: Return Sel")

	if in.Screen {
		m.setState(SelectSlot)
		return true
	}
	if !next {
		m.show(s)
	}
	return next
}

// idle is the steady state. A dropped link does not leave it: the guard
// re-advertises for the pinned host and pointer reports pause until the
// host is back.
func (m *Machine) idle() {
	up := m.guard.Session().Connected
	switch {
	case !up && !m.linkLost:
		m.linkLost = true
		m.logger.Warn("host link lost, waiting for reconnect", "slot", m.active)
	case up && m.linkLost:
		m.linkLost = false
		m.logger.Info("host link restored", "slot", m.active)
	}
}

func (m *Machine) save() {
	if err := m.store.Save(m.table, m.active); err != nil {
		m.logger.Error("failed to persist pairing table", "error", err)
	}
}

func (m *Machine) show(s ui.Screen) {
	key := s.String()
	if key == m.shown {
		return
	}
	m.shown = key
	m.surface.Show(s)
}
