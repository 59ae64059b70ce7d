// Package wsource reads inertial samples streamed over a websocket, e.g. from
// a phone app or a sensor bridge sitting next to the IMU.
//
// Every text message is one JSON object:
//
//	{"ax":0.01,"ay":-0.02,"az":0.99,"gx":1.5,"gy":-0.3,"gz":0.0,"dt":0.02}
package wsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alia5/airmouse/motion"
)

// ErrNoSample is returned by Next before the first sample arrived.
var ErrNoSample = errors.New("wsource: no sample received yet")

// Message is the wire form of one sample.
type Message struct {
	AX float64 `json:"ax"`
	AY float64 `json:"ay"`
	AZ float64 `json:"az"`
	GX float64 `json:"gx"`
	GY float64 `json:"gy"`
	GZ float64 `json:"gz"`
	DT float64 `json:"dt,omitempty"`
}

// Sample converts the message.
func (m Message) Sample() motion.Sample {
	return motion.Sample{AX: m.AX, AY: m.AY, AZ: m.AZ, GX: m.GX, GY: m.GY, GZ: m.GZ, DT: m.DT}
}

// window collects the messages received between two Next calls.
type window struct {
	// rotation in degrees and its duration, from messages carrying dt
	rot [3]float64
	dt  float64
	// rate sum and count, from messages without dt
	rates [3]float64
	n     int
}

func (w *window) add(m Message) {
	if m.DT > 0 {
		w.rot[0] += m.GX * m.DT
		w.rot[1] += m.GY * m.DT
		w.rot[2] += m.GZ * m.DT
		w.dt += m.DT
		return
	}
	w.rates[0] += m.GX
	w.rates[1] += m.GY
	w.rates[2] += m.GZ
	w.n++
}

func (w *window) empty() bool { return w.dt == 0 && w.n == 0 }

// mean returns the mean angular rate of the window. Timed messages win over
// untimed ones; without any timing DT stays zero for the caller to fill in.
func (w *window) mean() (g [3]float64, dt float64) {
	if w.dt > 0 {
		for i := range g {
			g[i] = w.rot[i] / w.dt
		}
		return g, w.dt
	}
	for i := range g {
		g[i] = w.rates[i] / float64(w.n)
	}
	return g, 0
}

// Source turns the stream into one sample per Next call. Rotation received
// since the previous call is accumulated so a streamer running faster than
// the tick loses no movement; acceleration is taken from the newest message.
type Source struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu      sync.Mutex
	latest  Message
	have    bool
	pending window
	err     error
	done    chan struct{}
}

// Dial connects to url and starts reading in the background.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	s := &Source{conn: conn, logger: logger, done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

func (s *Source) readLoop() {
	defer close(s.done)
	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			s.logger.Warn("motion stream closed", "error", err)
			return
		}
		if !msg.Sample().Finite() {
			s.logger.Debug("dropping non-finite motion message")
			continue
		}
		s.mu.Lock()
		s.latest = msg
		s.have = true
		s.pending.add(msg)
		s.mu.Unlock()
	}
}

// Next returns the rotation accumulated since the previous call together with
// the newest acceleration. When nothing arrived in between the rates are zero,
// so a stalled stream holds the pointer still.
func (s *Source) Next(ctx context.Context) (motion.Sample, error) {
	if err := ctx.Err(); err != nil {
		return motion.Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return motion.Sample{}, fmt.Errorf("motion stream: %w", s.err)
	}
	if !s.have {
		return motion.Sample{}, ErrNoSample
	}
	out := motion.Sample{AX: s.latest.AX, AY: s.latest.AY, AZ: s.latest.AZ}
	if !s.pending.empty() {
		g, dt := s.pending.mean()
		out.GX, out.GY, out.GZ, out.DT = g[0], g[1], g[2], dt
	}
	s.pending = window{}
	return out, nil
}

// Close closes the stream and waits for the reader to stop.
func (s *Source) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := s.conn.Close()
	<-s.done
	return err
}
