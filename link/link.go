// Package link defines the radio link the pointer talks to hosts through and
// the guard that decides which hosts may stay connected.
package link

import (
	"github.com/google/uuid"

	"github.com/Alia5/airmouse/identity"
)

// Identity is what the radio presents to hosts while advertising.
type Identity struct {
	Address identity.Address
	Name    string
	Vendor  string
	// Battery level in percent.
	Battery uint8
}

// Buttons bitfield of a pointer report.
const (
	ButtonPrimary uint8 = 1 << iota
	ButtonSecondary
	ButtonMiddle
)

// Report is one relative pointer update.
type Report struct {
	Buttons uint8
	DX, DY  int
}

// Conn describes one link as seen in connect and disconnect notifications.
type Conn struct {
	Handle uuid.UUID
	Peer   identity.PeerAddress
}

// ConnectionObserver receives link notifications. Radios call it from their
// own goroutines, so implementations must not block for long.
type ConnectionObserver interface {
	OnConnect(c Conn)
	OnDisconnect(c Conn)
}

// Radio is the wireless transport. Begin reconfigures the advertised identity
// (tearing down any existing link) and starts advertising.
type Radio interface {
	Observe(o ConnectionObserver)
	Begin(id Identity) error
	StartAdvertising() error
	StopAdvertising() error
	// Disconnect terminates the link identified by handle.
	Disconnect(handle uuid.UUID) error
	// Send delivers a pointer report over the current link.
	Send(r Report) error
}
