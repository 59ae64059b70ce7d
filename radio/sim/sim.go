// Package sim is an in-process radio. Hosts are driven from code (tests,
// scenarios, the dry-run CLI) and every connection notification is delivered
// from a separate goroutine, like a real radio stack would.
package sim

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/link"
)

var (
	ErrNotAdvertising = errors.New("sim: radio is not advertising")
	ErrNotConnected   = errors.New("sim: no host connected")
	ErrUnknownLink    = errors.New("sim: unknown link")
)

// Delivery is a report as received by one host.
type Delivery struct {
	Peer   identity.PeerAddress
	Report link.Report
}

// Radio implements link.Radio.
type Radio struct {
	mu          sync.Mutex
	observer    link.ConnectionObserver
	id          link.Identity
	begun       int
	advertising bool
	links       map[uuid.UUID]identity.PeerAddress
	order       []uuid.UUID
	deliveries  []Delivery

	pending sync.WaitGroup
}

// New returns an idle radio.
func New() *Radio {
	return &Radio{links: map[uuid.UUID]identity.PeerAddress{}}
}

func (r *Radio) Observe(o link.ConnectionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Begin drops every link, adopts id and starts advertising.
func (r *Radio) Begin(id link.Identity) error {
	r.mu.Lock()
	dropped := r.dropAllLocked()
	r.id = id
	r.begun++
	r.advertising = true
	r.mu.Unlock()

	for _, c := range dropped {
		r.notify(c, false, false)
	}
	return nil
}

func (r *Radio) StartAdvertising() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advertising = true
	return nil
}

func (r *Radio) StopAdvertising() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.advertising = false
	return nil
}

// Disconnect terminates a link from the device side.
func (r *Radio) Disconnect(handle uuid.UUID) error {
	r.mu.Lock()
	c, ok := r.removeLocked(handle)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownLink
	}
	r.notify(c, false, false)
	return nil
}

// Send delivers the report to every connected host.
func (r *Radio) Send(rep link.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.order) == 0 {
		return ErrNotConnected
	}
	for _, h := range r.order {
		r.deliveries = append(r.deliveries, Delivery{Peer: r.links[h], Report: rep})
	}
	return nil
}

// Connect simulates peer establishing a link. It returns once the
// connect notification has been handed to the observer.
func (r *Radio) Connect(peer identity.PeerAddress) (uuid.UUID, error) {
	r.mu.Lock()
	if !r.advertising {
		r.mu.Unlock()
		return uuid.Nil, ErrNotAdvertising
	}
	h := uuid.New()
	r.links[h] = peer
	r.order = append(r.order, h)
	r.mu.Unlock()

	r.notify(link.Conn{Handle: h, Peer: peer}, true, true)
	return h, nil
}

// Drop simulates the host closing the link identified by handle.
func (r *Radio) Drop(handle uuid.UUID) error {
	r.mu.Lock()
	c, ok := r.removeLocked(handle)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownLink
	}
	r.notify(c, false, true)
	return nil
}

// Wait blocks until every notification in flight has been delivered.
func (r *Radio) Wait() { r.pending.Wait() }

// Advertising reports whether the radio is currently advertising.
func (r *Radio) Advertising() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.advertising
}

// Identity returns the identity passed to the last Begin.
func (r *Radio) Identity() link.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Begun returns how many times Begin was called.
func (r *Radio) Begun() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begun
}

// Links returns the peers currently linked, oldest first.
func (r *Radio) Links() []identity.PeerAddress {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]identity.PeerAddress, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.links[h])
	}
	return out
}

// Deliveries returns every report delivered so far.
func (r *Radio) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

func (r *Radio) removeLocked(handle uuid.UUID) (link.Conn, bool) {
	peer, ok := r.links[handle]
	if !ok {
		return link.Conn{}, false
	}
	delete(r.links, handle)
	for i, h := range r.order {
		if h == handle {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return link.Conn{Handle: handle, Peer: peer}, true
}

func (r *Radio) dropAllLocked() []link.Conn {
	var out []link.Conn
	for _, h := range r.order {
		out = append(out, link.Conn{Handle: h, Peer: r.links[h]})
	}
	r.links = map[uuid.UUID]identity.PeerAddress{}
	r.order = nil
	return out
}

// notify delivers c from a fresh goroutine. Host-initiated events wait for
// delivery; device-initiated ones do not, since the observer may be draining
// on the caller's goroutine.
func (r *Radio) notify(c link.Conn, connect, wait bool) {
	r.mu.Lock()
	o := r.observer
	r.mu.Unlock()
	if o == nil {
		return
	}
	done := make(chan struct{})
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer close(done)
		if connect {
			o.OnConnect(c)
		} else {
			o.OnDisconnect(c)
		}
	}()
	if wait {
		<-done
	}
}
