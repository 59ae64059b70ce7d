// Package bridge binds the air mouse to host computers running a VIIPER
// server. Every configured host is a potential peer: while advertising, the
// radio pings the hosts in order and the first one that answers connects.
// Reports for an accepted link are written to a virtual mouse the bridge
// creates on that host.
package bridge

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/internal/log"
	"github.com/Alia5/airmouse/link"
)

const (
	DefaultRetry = 2 * time.Second
	DefaultBus   = 1
	deviceType   = "mouse"
)

var (
	ErrNoHosts      = errors.New("no hosts configured")
	ErrNotConnected = errors.New("no host connected")
	ErrUnknownLink  = errors.New("unknown link")
)

// RadioConfig lists the hosts and how to reach them.
type RadioConfig struct {
	Hosts     []string
	Password  string
	BusID     uint32
	Retry     time.Duration
	Transport *Config
}

// Radio implements link.Radio on top of VIIPER hosts.
// Begin, Send and Disconnect are called from the polling loop and never touch
// the network: the radio's own goroutine discovers hosts and watches live
// links, and every link has a writer goroutine that owns its host device.
type Radio struct {
	cfg    RadioConfig
	logger *slog.Logger
	raw    log.RawLogger

	clients map[string]*Client
	wake    chan struct{}
	cancel  context.CancelFunc
	ctx     context.Context
	wg      sync.WaitGroup // poll goroutine
	writers sync.WaitGroup // link writers
	pending sync.WaitGroup // observer callbacks

	mu          sync.Mutex
	observer    link.ConnectionObserver
	id          link.Identity
	advertising bool
	links       map[uuid.UUID]*hostLink
	refused     map[string]bool
}

type hostLink struct {
	conn   link.Conn
	host   string
	client *Client

	ctx     context.Context
	cancel  context.CancelFunc
	reports chan link.Report

	// owned by the writer goroutine
	dev    *Device
	stream *DeviceStream
}

// offer queues rep for the writer. A report still waiting is merged into
// rep: deltas add up and the newer buttons win.
func (l *hostLink) offer(rep link.Report) {
	for {
		select {
		case l.reports <- rep:
			return
		default:
		}
		select {
		case old := <-l.reports:
			rep.DX += old.DX
			rep.DY += old.DY
		default:
		}
	}
}

// NewRadio starts the discovery goroutine. It stops when ctx is done or
// Close is called.
func NewRadio(ctx context.Context, cfg RadioConfig, logger *slog.Logger, raw log.RawLogger) (*Radio, error) {
	if len(cfg.Hosts) == 0 {
		return nil, ErrNoHosts
	}
	if cfg.Retry <= 0 {
		cfg.Retry = DefaultRetry
	}
	if cfg.BusID == 0 {
		cfg.BusID = DefaultBus
	}
	if raw == nil {
		raw = log.NewRaw(nil)
	}
	tc := defaultConfig()
	if cfg.Transport != nil {
		tc = *cfg.Transport
	}
	tc.Password = cfg.Password

	r := &Radio{
		cfg:     cfg,
		logger:  logger,
		raw:     raw,
		clients: make(map[string]*Client, len(cfg.Hosts)),
		wake:    make(chan struct{}, 1),
		links:   make(map[uuid.UUID]*hostLink),
		refused: make(map[string]bool),
	}
	for _, h := range cfg.Hosts {
		r.clients[h] = NewClient(h, &tc)
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run()
	return r, nil
}

// PeerFor derives the stable peer identity of a host from its address and
// the server name it reports.
func PeerFor(host, server string) identity.PeerAddress {
	sum := sha256.Sum256([]byte(host + "\x00" + server))
	var p identity.PeerAddress
	copy(p.Addr[:], sum[:len(p.Addr)])
	p.Type = identity.AddrRandom
	return p
}

func (r *Radio) Observe(o link.ConnectionObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = o
}

// Begin drops every link, forgets refused hosts and starts advertising as id.
func (r *Radio) Begin(id link.Identity) error {
	r.mu.Lock()
	dropped := make([]*hostLink, 0, len(r.links))
	for h, l := range r.links {
		dropped = append(dropped, l)
		delete(r.links, h)
	}
	r.refused = make(map[string]bool)
	r.id = id
	r.advertising = true
	r.mu.Unlock()

	for _, l := range dropped {
		l.cancel()
		r.notify(l.conn, false)
	}
	r.logger.Info("advertising", "name", id.Name, "address", id.Address.String())
	r.kick()
	return nil
}

func (r *Radio) StartAdvertising() error {
	r.mu.Lock()
	r.advertising = true
	r.mu.Unlock()
	r.kick()
	return nil
}

func (r *Radio) StopAdvertising() error {
	r.mu.Lock()
	r.advertising = false
	r.mu.Unlock()
	return nil
}

// Disconnect terminates a link. The host is not offered again until the
// next Begin.
func (r *Radio) Disconnect(handle uuid.UUID) error {
	r.mu.Lock()
	l, ok := r.links[handle]
	if ok {
		delete(r.links, handle)
		r.refused[l.host] = true
	}
	r.mu.Unlock()
	if !ok {
		return ErrUnknownLink
	}
	l.cancel()
	r.notify(l.conn, false)
	r.kick()
	return nil
}

// Send queues the report for every linked host. Write failures surface as
// disconnect notifications.
func (r *Radio) Send(rep link.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.links) == 0 {
		return ErrNotConnected
	}
	for _, l := range r.links {
		l.offer(rep)
	}
	return nil
}

// serve writes queued reports to the host, creating the virtual mouse on
// first use, and removes it again once the link ends.
func (r *Radio) serve(l *hostLink) {
	defer r.writers.Done()
	defer r.teardown(l)
	for {
		select {
		case <-l.ctx.Done():
			return
		case rep := <-l.reports:
			if err := r.write(l, rep); err != nil {
				if l.ctx.Err() == nil {
					r.lost(l, err)
				}
				return
			}
		}
	}
}

func (r *Radio) write(l *hostLink, rep link.Report) error {
	if l.stream == nil {
		if err := r.attach(l); err != nil {
			return err
		}
	}
	data, err := l.stream.WriteBinary(FromReport(rep))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	r.raw.Log(true, data)
	return nil
}

func (r *Radio) attach(l *hostLink) error {
	ctx := l.ctx
	if _, err := l.client.BusCreate(ctx, r.cfg.BusID); err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != StatusConflict {
			return fmt.Errorf("create bus: %w", err)
		}
	}
	dev, err := l.client.DeviceAdd(ctx, r.cfg.BusID, deviceType)
	if err != nil {
		return fmt.Errorf("add device: %w", err)
	}
	l.dev = dev
	stream, err := l.client.OpenStream(ctx, dev.BusID, dev.DevID)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	l.stream = stream
	r.mu.Lock()
	name := r.id.Name
	r.mu.Unlock()
	r.logger.Info("host device attached", "host", l.host, "as", name, "bus", dev.BusID, "device", dev.DevID)
	return nil
}

// Close stops discovery and tears down every link without notifying.
func (r *Radio) Close() error {
	r.cancel()
	r.wg.Wait()
	r.mu.Lock()
	for h := range r.links {
		delete(r.links, h)
	}
	r.mu.Unlock()
	r.writers.Wait()
	r.pending.Wait()
	return nil
}

// Wait blocks until every queued observer callback has returned.
func (r *Radio) Wait() { r.pending.Wait() }

func (r *Radio) run() {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.Retry)
	defer t.Stop()
	for {
		r.poll()
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
		case <-r.wake:
		}
	}
}

func (r *Radio) poll() {
	r.mu.Lock()
	advertising := r.advertising
	live := make([]*hostLink, 0, len(r.links))
	for _, l := range r.links {
		live = append(live, l)
	}
	var candidates []string
	for _, h := range r.cfg.Hosts {
		if !r.refused[h] {
			candidates = append(candidates, h)
		}
	}
	r.mu.Unlock()

	for _, l := range live {
		if _, err := l.client.Ping(r.ctx); err != nil && r.ctx.Err() == nil {
			r.lost(l, err)
		}
	}
	if !advertising || len(live) > 0 {
		return
	}

	for _, host := range candidates {
		resp, err := r.clients[host].Ping(r.ctx)
		if err != nil {
			r.logger.Debug("host not reachable", "host", host, "error", err)
			continue
		}
		l := &hostLink{
			conn:    link.Conn{Handle: uuid.New(), Peer: PeerFor(host, resp.Server)},
			host:    host,
			client:  r.clients[host],
			reports: make(chan link.Report, 1),
		}
		r.mu.Lock()
		if !r.advertising || len(r.links) > 0 || r.refused[host] {
			r.mu.Unlock()
			return
		}
		l.ctx, l.cancel = context.WithCancel(r.ctx)
		r.links[l.conn.Handle] = l
		r.writers.Add(1)
		go r.serve(l)
		r.mu.Unlock()

		r.logger.Debug("host connected", "host", host, "server", resp.Server, "version", resp.Version, "peer", l.conn.Peer.String())
		r.notify(l.conn, true)
		return
	}
}

// lost removes a link that failed underneath us and reports the disconnect.
func (r *Radio) lost(l *hostLink, cause error) {
	r.mu.Lock()
	_, ok := r.links[l.conn.Handle]
	delete(r.links, l.conn.Handle)
	r.mu.Unlock()
	if !ok {
		return
	}
	l.cancel()
	r.logger.Warn("host link lost", "host", l.host, "error", cause)
	r.notify(l.conn, false)
}

func (r *Radio) teardown(l *hostLink) {
	if l.stream != nil {
		_ = l.stream.Close()
	}
	if l.dev == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := l.client.DeviceRemove(ctx, l.dev.BusID, l.dev.DevID); err != nil {
		r.logger.Debug("remove host device", "host", l.host, "error", err)
	}
}

func (r *Radio) kick() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// notify runs the observer off the caller's goroutine so a full guard queue
// never blocks the polling loop.
func (r *Radio) notify(c link.Conn, connect bool) {
	r.mu.Lock()
	o := r.observer
	r.mu.Unlock()
	if o == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if connect {
			o.OnConnect(c)
		} else {
			o.OnDisconnect(c)
		}
	}()
}
