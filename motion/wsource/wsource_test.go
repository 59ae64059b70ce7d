package wsource_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alia5/airmouse/motion"
	"github.com/Alia5/airmouse/motion/wsource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startStreamer(t *testing.T, msgs []wsource.Message, hold chan struct{}) string {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, m := range msgs {
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		}
		<-hold
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSourceDeliversLatestSample(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	url := startStreamer(t, []wsource.Message{
		{AZ: 1, GX: 1},
		{AZ: 1, GX: 2, GY: 3, DT: 0.02},
	}, hold)

	src, err := wsource.Dial(context.Background(), url, quietLogger())
	require.NoError(t, err)
	defer src.Close()

	var got motion.Sample
	require.Eventually(t, func() bool {
		s, err := src.Next(context.Background())
		if err != nil || s.GX != 2 {
			return false
		}
		got = s
		return true
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, motion.Sample{AZ: 1, GX: 2, GY: 3, DT: 0.02}, got)

	stale, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, motion.Sample{AZ: 1}, stale, "stale samples keep gravity but drop rotation")
}

func TestSourceAccumulatesFastStreams(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	// two 10ms messages per 20ms tick
	url := startStreamer(t, []wsource.Message{
		{AZ: 1, GY: 100, DT: 0.01},
		{AZ: 1, GY: 100, DT: 0.01},
	}, hold)

	src, err := wsource.Dial(context.Background(), url, quietLogger())
	require.NoError(t, err)
	defer src.Close()

	tr := motion.NewTransform(motion.DefaultSensitivity)
	var dx int
	var covered float64
	require.Eventually(t, func() bool {
		s, err := src.Next(context.Background())
		if err != nil {
			return false
		}
		covered += s.DT
		x, _ := tr.Step(s, true)
		dx += x
		return covered >= 0.0199
	}, 2*time.Second, 10*time.Millisecond)

	assert.InDelta(t, 0.02, covered, 1e-9)
	assert.Equal(t, 40, dx, "no rotation is lost between ticks")
}

func TestSourceMergesWindow(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	url := startStreamer(t, []wsource.Message{
		{AZ: 1, GX: 50, DT: 0.01},
		{AZ: 1, GX: 150, DT: 0.01},
		{AX: 0.5, AZ: 0.5, GX: 100, DT: 0.02},
	}, hold)

	src, err := wsource.Dial(context.Background(), url, quietLogger())
	require.NoError(t, err)
	defer src.Close()

	var last motion.Sample
	var rot, covered float64
	require.Eventually(t, func() bool {
		s, err := src.Next(context.Background())
		if err != nil {
			return false
		}
		last = s
		rot += s.GX * s.DT
		covered += s.DT
		return covered >= 0.0399
	}, 2*time.Second, 10*time.Millisecond)

	assert.InDelta(t, 4.0, rot, 1e-9, "degrees turned across all messages")
	assert.Equal(t, 0.5, last.AX, "acceleration comes from the newest message")
	assert.Equal(t, 0.5, last.AZ)
}

func TestSourceReportsClosedStream(t *testing.T) {
	hold := make(chan struct{})
	close(hold)
	url := startStreamer(t, nil, hold)

	src, err := wsource.Dial(context.Background(), url, quietLogger())
	require.NoError(t, err)
	defer src.Close()

	require.Eventually(t, func() bool {
		_, err := src.Next(context.Background())
		return err != nil && err != wsource.ErrNoSample
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDialFailure(t *testing.T) {
	_, err := wsource.Dial(context.Background(), "ws://127.0.0.1:1/none", quietLogger())
	assert.Error(t, err)
}
