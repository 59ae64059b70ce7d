package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/airmouse/bridge"
	"github.com/Alia5/airmouse/connection"
	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/internal/configpaths"
	"github.com/Alia5/airmouse/internal/log"
	"github.com/Alia5/airmouse/link"
	"github.com/Alia5/airmouse/motion"
	"github.com/Alia5/airmouse/motion/modbus"
	"github.com/Alia5/airmouse/motion/replay"
	"github.com/Alia5/airmouse/motion/wsource"
	"github.com/Alia5/airmouse/pointer"
	"github.com/Alia5/airmouse/radio/sim"
	"github.com/Alia5/airmouse/slots"
	"github.com/Alia5/airmouse/store"
	"github.com/Alia5/airmouse/ui"
	"github.com/Alia5/airmouse/ui/term"
	"github.com/Alia5/airmouse/ui/web"
)

type StoreConfig struct {
	Dir string `help:"Directory of the durable pairing store (defaults to the user data dir)" env:"AIRMOUSE_STORE_DIR"`
}

type IdentityConfig struct {
	Base      string        `help:"Factory radio address slots are derived from (defaults to the first NIC)" env:"AIRMOUSE_IDENTITY_BASE"`
	Name      string        `help:"Advertised name prefix" default:"AirMouse" env:"AIRMOUSE_IDENTITY_NAME"`
	Vendor    string        `help:"Advertised manufacturer" default:"AirMouse Labs" env:"AIRMOUSE_IDENTITY_VENDOR"`
	LongPress time.Duration `help:"Hold time that erases a slot" default:"5s" env:"AIRMOUSE_IDENTITY_LONG_PRESS"`
}

type MotionConfig struct {
	Source      string  `help:"Motion source" enum:"idle,replay,ws,modbus" default:"idle" env:"AIRMOUSE_MOTION_SOURCE"`
	File        string  `help:"CSV recording for the replay source" env:"AIRMOUSE_MOTION_FILE"`
	Loop        bool    `help:"Restart the recording when it ends" default:"true" env:"AIRMOUSE_MOTION_LOOP"`
	URL         string  `name:"url" help:"Websocket URL of an IMU stream" env:"AIRMOUSE_MOTION_URL"`
	Modbus      string  `help:"Modbus TCP endpoint (host:port) of an IMU" env:"AIRMOUSE_MOTION_MODBUS"`
	UnitID      uint8   `name:"unit-id" help:"Modbus unit id" default:"1" env:"AIRMOUSE_MOTION_UNIT_ID"`
	Register    uint16  `help:"First of six input registers holding the sample" default:"0" env:"AIRMOUSE_MOTION_REGISTER"`
	Sensitivity float64 `help:"Counts per degree of rotation" default:"20" env:"AIRMOUSE_MOTION_SENSITIVITY"`
}

type RadioConfig struct {
	Kind     string        `help:"Radio backend" enum:"bridge,sim" default:"bridge" env:"AIRMOUSE_RADIO_KIND"`
	Hosts    []string      `help:"VIIPER hosts (host:port) the bridge may bind to" env:"AIRMOUSE_RADIO_HOSTS"`
	Password string        `help:"VIIPER API password" env:"AIRMOUSE_RADIO_PASSWORD"`
	Bus      uint32        `help:"Virtual bus the mouse is attached to" default:"1" env:"AIRMOUSE_RADIO_BUS"`
	Retry    time.Duration `help:"Host discovery interval while advertising" default:"2s" env:"AIRMOUSE_RADIO_RETRY"`
	SimHost  string        `help:"With the sim radio, a host address that connects whenever the device advertises" env:"AIRMOUSE_RADIO_SIM_HOST"`
}

type UIConfig struct {
	Kind   string `help:"UI surface" enum:"term,web" default:"term" env:"AIRMOUSE_UI_KIND"`
	Listen string `help:"Listen address of the web surface" default:"127.0.0.1:8080" env:"AIRMOUSE_UI_LISTEN"`
}

// Run is the device command.
type Run struct {
	Tick     time.Duration  `help:"Polling period" default:"20ms" env:"AIRMOUSE_TICK"`
	Store    StoreConfig    `embed:"" prefix:"store."`
	Identity IdentityConfig `embed:"" prefix:"identity."`
	Motion   MotionConfig   `embed:"" prefix:"motion."`
	Radio    RadioConfig    `embed:"" prefix:"radio."`
	UI       UIConfig       `embed:"" prefix:"ui."`
}

// Run is called by Kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Start(ctx, logger, rawLogger)
}

// Start wires every collaborator and blocks in the polling loop until ctx is
// done or the UI quits.
func (r *Run) Start(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	base, err := r.Identity.base()
	if err != nil {
		return err
	}
	kv, err := openStore(r.Store.Dir)
	if err != nil {
		return err
	}
	logger.Info("pairing store", "dir", kv.Dir())

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	surface, c, err := r.UI.open(ctx, cancel, logger)
	if err != nil {
		return err
	}
	closers = append(closers, c)

	radio, c, err := r.Radio.open(ctx, logger, rawLogger)
	if err != nil {
		return err
	}
	closers = append(closers, c)

	source, c := r.Motion.open(ctx, logger)
	closers = append(closers, c)

	guard := link.NewGuard(radio, logger)
	machine := connection.New(connection.Config{
		Base:       base,
		NamePrefix: r.Identity.Name,
		Vendor:     r.Identity.Vendor,
		LongPress:  r.Identity.LongPress,
	}, slots.New(kv, logger), guard, radio, surface, logger)

	dev := &pointer.Device{
		Machine:   machine,
		Guard:     guard,
		Radio:     radio,
		Surface:   surface,
		Source:    source,
		Transform: motion.NewTransform(r.Motion.Sensitivity),
		Logger:    logger,
		Tick:      r.Tick,
	}
	return dev.Run(ctx)
}

func openStore(dir string) (*store.File, error) {
	if dir == "" {
		d, err := configpaths.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve store dir: %w", err)
		}
		dir = d
	}
	return store.OpenFile(dir)
}

func (c IdentityConfig) base() (identity.Address, error) {
	if c.Base == "" {
		return identity.FactoryAddress(), nil
	}
	a, err := identity.ParseAddress(c.Base)
	if err != nil {
		return identity.Address{}, fmt.Errorf("identity base: %w", err)
	}
	return a, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

func (c UIConfig) open(ctx context.Context, quit context.CancelFunc, logger *slog.Logger) (ui.Surface, io.Closer, error) {
	switch c.Kind {
	case "web":
		s := web.New(logger)
		go func() {
			if err := s.ListenAndServe(ctx, c.Listen); err != nil {
				logger.Error("web surface stopped", "error", err)
				quit()
			}
		}()
		return s, nopCloser, nil
	default:
		t, err := term.Open()
		if err != nil {
			return nil, nil, err
		}
		go func() {
			if err := t.Run(ctx); err != nil {
				logger.Error("terminal input", "error", err)
			}
			quit()
		}()
		return t, t, nil
	}
}

func (c RadioConfig) open(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) (link.Radio, io.Closer, error) {
	if c.Kind == "sim" {
		r := sim.New()
		if c.SimHost == "" {
			return r, nopCloser, nil
		}
		addr, err := identity.ParseAddress(c.SimHost)
		if err != nil {
			return nil, nil, fmt.Errorf("sim host: %w", err)
		}
		go simulateHost(ctx, r, identity.PeerAddress{Addr: addr}, c.Retry, logger)
		return r, nopCloser, nil
	}

	r, err := bridge.NewRadio(ctx, bridge.RadioConfig{
		Hosts:    c.Hosts,
		Password: c.Password,
		BusID:    c.Bus,
		Retry:    c.Retry,
	}, logger, rawLogger)
	if err != nil {
		if errors.Is(err, bridge.ErrNoHosts) {
			return nil, nil, errors.New("the bridge radio needs at least one --radio.hosts entry")
		}
		return nil, nil, err
	}
	return r, r, nil
}

// simulateHost connects peer to the sim radio whenever it advertises.
func simulateHost(ctx context.Context, r *sim.Radio, peer identity.PeerAddress, every time.Duration, logger *slog.Logger) {
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if !r.Advertising() || len(r.Links()) > 0 {
			continue
		}
		if _, err := r.Connect(peer); err != nil {
			logger.Debug("simulated host connect", "error", err)
		}
	}
}

func (c MotionConfig) open(ctx context.Context, logger *slog.Logger) (motion.Source, io.Closer) {
	src, closer, err := c.dial(ctx, logger)
	if err != nil {
		logger.Error("motion source unavailable, pointer stays still", "source", c.Source, "error", err)
		return motion.Idle{}, nopCloser
	}
	return src, closer
}

func (c MotionConfig) dial(ctx context.Context, logger *slog.Logger) (motion.Source, io.Closer, error) {
	switch c.Source {
	case "replay":
		if c.File == "" {
			return nil, nil, errors.New("--motion.file is required for the replay source")
		}
		s, err := replay.Open(c.File, c.Loop)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser, nil
	case "ws":
		if c.URL == "" {
			return nil, nil, errors.New("--motion.url is required for the ws source")
		}
		s, err := wsource.Dial(ctx, c.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "modbus":
		if c.Modbus == "" {
			return nil, nil, errors.New("--motion.modbus is required for the modbus source")
		}
		s, err := modbus.Dial(modbus.Config{Endpoint: c.Modbus, UnitID: c.UnitID, Addr: c.Register, Timeout: time.Second})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return motion.Idle{}, nopCloser, nil
	}
}
