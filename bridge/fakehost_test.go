package bridge_test

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Alia5/airmouse/bridge"

	"github.com/stretchr/testify/require"
)

// fakeHost is a loopback VIIPER server answering the requests the bridge
// makes. Stream input is delivered on reports. Requests whose path ends in
// holdPath are answered only once hold is closed.
type fakeHost struct {
	ln       net.Listener
	password string

	holdPath string
	hold     chan struct{}

	reports chan []byte
	removed chan string

	mu       sync.Mutex
	requests []string
}

func newFakeHost(t *testing.T, password string) *fakeHost {
	t.Helper()
	return startFakeHost(t, &fakeHost{password: password})
}

func startFakeHost(t *testing.T, h *fakeHost) *fakeHost {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h.ln = ln
	h.reports = make(chan []byte, 64)
	h.removed = make(chan string, 4)
	go h.accept()
	t.Cleanup(func() { _ = ln.Close() })
	return h
}

// deadAddr returns a loopback address nothing listens on.
func deadAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// holdingHost returns a host that stalls every request ending in path until
// the returned release func is called.
func holdingHost(t *testing.T, path string) (*fakeHost, func()) {
	t.Helper()
	h := startFakeHost(t, &fakeHost{holdPath: path, hold: make(chan struct{})})
	var once sync.Once
	release := func() { once.Do(func() { close(h.hold) }) }
	t.Cleanup(release)
	return h, release
}

// nextReport waits for one record from the stream.
func (h *fakeHost) nextReport(t *testing.T) bridge.MouseState {
	t.Helper()
	var got bridge.MouseState
	select {
	case rec := <-h.reports:
		require.NoError(t, got.UnmarshalBinary(rec))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report")
	}
	return got
}

func (h *fakeHost) Addr() string { return h.ln.Addr().String() }

func (h *fakeHost) Close() { _ = h.ln.Close() }

func (h *fakeHost) Requests() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.requests...)
}

func (h *fakeHost) accept() {
	for {
		c, err := h.ln.Accept()
		if err != nil {
			return
		}
		go h.serve(c)
	}
}

func (h *fakeHost) serve(c net.Conn) {
	defer c.Close()
	var w io.Writer = c
	r := bufio.NewReader(c)

	if h.password != "" {
		hdr := make([]byte, len(bridge.HandshakeMagic)+2*bridge.NonceSize)
		if _, err := io.ReadFull(r, hdr); err != nil {
			return
		}
		if string(hdr[:len(bridge.HandshakeMagic)]) != bridge.HandshakeMagic {
			return
		}
		clientNonce := hdr[len(bridge.HandshakeMagic) : len(bridge.HandshakeMagic)+bridge.NonceSize]
		clientAuth := hdr[len(bridge.HandshakeMagic)+bridge.NonceSize:]
		key, err := bridge.DeriveKey(h.password)
		if err != nil {
			return
		}
		if !hmac.Equal(clientAuth, bridge.ClientAuth(key, clientNonce)) {
			_, _ = io.WriteString(c, `{"status":401,"title":"Unauthorized","detail":"invalid password"}`+"\n")
			return
		}
		serverNonce := make([]byte, bridge.NonceSize)
		_, _ = rand.Read(serverNonce)
		if _, err := c.Write(append([]byte("OK\x00"), serverNonce...)); err != nil {
			return
		}
		sc, err := bridge.WrapConn(c, r, bridge.DeriveSessionKey(key, serverNonce, clientNonce))
		if err != nil {
			return
		}
		w = sc
		r = bufio.NewReader(sc)
	}

	line, err := r.ReadString(0)
	if err != nil {
		return
	}
	line = strings.TrimSuffix(line, "\x00")
	h.mu.Lock()
	h.requests = append(h.requests, line)
	h.mu.Unlock()

	path, payload, _ := strings.Cut(line, " ")
	if h.hold != nil && strings.HasSuffix(path, h.holdPath) {
		<-h.hold
	}
	switch {
	case path == "ping":
		_, _ = io.WriteString(w, `{"server":"VIIPER","version":"test"}`+"\n")
	case path == "bus/create":
		_, _ = fmt.Fprintf(w, `{"busId":%s}`+"\n", payload)
	case strings.HasSuffix(path, "/add"):
		_, _ = io.WriteString(w, `{"busId":1,"devId":"1","vid":"0x2e8a","pid":"0x0011","type":"mouse"}`+"\n")
	case strings.HasSuffix(path, "/remove"):
		h.removed <- payload
		_, _ = fmt.Fprintf(w, `{"busId":1,"devId":%q}`+"\n", payload)
	case path == "bus/1/1":
		for {
			rec := make([]byte, bridge.ReportSize)
			if _, err := io.ReadFull(r, rec); err != nil {
				return
			}
			h.reports <- rec
		}
	default:
		_, _ = io.WriteString(w, `{"status":404,"title":"Not Found","detail":"unknown path"}`+"\n")
	}
}
