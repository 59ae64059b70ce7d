package sim_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/link"
	"github.com/Alia5/airmouse/radio/sim"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) OnConnect(c link.Conn)    { r.add("connect " + c.Peer.Addr.String()) }
func (r *recorder) OnDisconnect(c link.Conn) { r.add("disconnect " + c.Peer.Addr.String()) }
func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, s)
}
func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

var peer = identity.PeerAddress{Addr: identity.Address{1, 2, 3, 4, 5, 6}}

func TestConnectRequiresAdvertising(t *testing.T) {
	r := sim.New()
	_, err := r.Connect(peer)
	assert.ErrorIs(t, err, sim.ErrNotAdvertising)

	require.NoError(t, r.Begin(link.Identity{Name: "AirMouse#1"}))
	_, err = r.Connect(peer)
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Begun())
	assert.Equal(t, "AirMouse#1", r.Identity().Name)
}

func TestNotificationsAndDelivery(t *testing.T) {
	r := sim.New()
	obs := &recorder{}
	r.Observe(obs)
	require.NoError(t, r.Begin(link.Identity{}))

	assert.ErrorIs(t, r.Send(link.Report{DX: 1}), sim.ErrNotConnected)

	h, err := r.Connect(peer)
	require.NoError(t, err)
	require.NoError(t, r.Send(link.Report{DX: 1}))
	assert.Equal(t, []sim.Delivery{{Peer: peer, Report: link.Report{DX: 1}}}, r.Deliveries())

	require.NoError(t, r.Disconnect(h))
	r.Wait()
	assert.Equal(t, []string{"connect 01:02:03:04:05:06", "disconnect 01:02:03:04:05:06"}, obs.list())
	assert.ErrorIs(t, r.Disconnect(h), sim.ErrUnknownLink)
	assert.ErrorIs(t, r.Drop(uuid.New()), sim.ErrUnknownLink)
}

func TestBeginDropsExistingLinks(t *testing.T) {
	r := sim.New()
	obs := &recorder{}
	r.Observe(obs)
	require.NoError(t, r.Begin(link.Identity{}))
	_, err := r.Connect(peer)
	require.NoError(t, err)
	require.NoError(t, r.StopAdvertising())
	assert.False(t, r.Advertising())

	require.NoError(t, r.Begin(link.Identity{Name: "again"}))
	r.Wait()
	assert.Empty(t, r.Links())
	assert.True(t, r.Advertising())
	assert.Len(t, obs.list(), 2)
}
