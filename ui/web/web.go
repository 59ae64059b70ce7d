// Package web serves the air mouse display and buttons to a browser.
//
// GET /api/screen returns the current frame, POST /api/inputs sets button
// levels and /ws/screen pushes every frame while accepting level updates.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Alia5/airmouse/ui"
)

//go:embed index.html
var indexHTML string

const (
	writeWait  = 5 * time.Second
	clientSend = 16
)

// View is the frame pushed to browsers.
type View struct {
	Screen    ui.Screen `json:"screen"`
	PowerSave bool      `json:"powerSave"`
}

// Server implements ui.Surface over HTTP.
type Server struct {
	app    *fiber.App
	logger *slog.Logger

	mu      sync.Mutex
	held    ui.Inputs
	taps    ui.Inputs
	view    View
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func New(logger *slog.Logger) *Server {
	s := &Server{logger: logger, clients: make(map[*client]struct{})}

	app := fiber.New(fiber.Config{
		AppName:               "airmouse",
		DisableStartupMessage: true,
	})
	app.Get("/", func(c *fiber.Ctx) error {
		c.Type("html")
		return c.SendString(indexHTML)
	})
	api := app.Group("/api")
	api.Get("/screen", s.handleScreen)
	api.Post("/inputs", s.handleInputs)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/screen", websocket.New(s.handleScreenWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Serve runs the server on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.mu.Lock()
		for c := range s.clients {
			close(c.send)
			delete(s.clients, c)
		}
		s.mu.Unlock()
		if err := s.app.ShutdownWithTimeout(time.Second); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("web surface listening", "addr", ln.Addr().String())
	return s.Serve(ctx, ln)
}

// SetInputs records new button levels. A press is reported for at least one
// Inputs call even when released before the next tick.
func (s *Server) SetInputs(in ui.Inputs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taps.A = s.taps.A || (in.A && !s.held.A)
	s.taps.B = s.taps.B || (in.B && !s.held.B)
	s.taps.Screen = s.taps.Screen || (in.Screen && !s.held.Screen)
	s.held = in
}

func (s *Server) Inputs() ui.Inputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	in := ui.Inputs{
		A:      s.held.A || s.taps.A,
		B:      s.held.B || s.taps.B,
		Screen: s.held.Screen || s.taps.Screen,
	}
	s.taps = ui.Inputs{}
	return in
}

func (s *Server) Show(sc ui.Screen) {
	s.update(func(v *View) { v.Screen = sc })
}

func (s *Server) SetPowerSave(on bool) {
	s.update(func(v *View) { v.PowerSave = on })
}

func (s *Server) update(fn func(*View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.view)
	data, err := json.Marshal(s.view)
	if err != nil {
		s.logger.Error("encode view", "error", err)
		return
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Debug("web client too slow, frame dropped")
		}
	}
}

func (s *Server) handleScreen(c *fiber.Ctx) error {
	s.mu.Lock()
	v := s.view
	s.mu.Unlock()
	return c.JSON(v)
}

func (s *Server) handleInputs(c *fiber.Ctx) error {
	var in ui.Inputs
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	s.SetInputs(in)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleScreenWS(conn *websocket.Conn) {
	cl := &client{conn: conn, send: make(chan []byte, clientSend)}

	s.mu.Lock()
	first, _ := json.Marshal(s.view)
	cl.send <- first
	s.clients[cl] = struct{}{}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range cl.send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	for {
		var in ui.Inputs
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		s.SetInputs(in)
	}

	s.mu.Lock()
	if _, ok := s.clients[cl]; ok {
		delete(s.clients, cl)
		close(cl.send)
	}
	s.mu.Unlock()
	<-done
}
