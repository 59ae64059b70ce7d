// Package scenario replays scripted button presses, host connections and
// motion against the simulated radio and checks where the device ends up.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Alia5/airmouse/connection"
	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/link"
	"github.com/Alia5/airmouse/motion"
	"github.com/Alia5/airmouse/pointer"
	"github.com/Alia5/airmouse/radio/sim"
	"github.com/Alia5/airmouse/slots"
	"github.com/Alia5/airmouse/store"
	"github.com/Alia5/airmouse/ui"
)

// Scenario is one scripted run.
type Scenario struct {
	Name        string           `yaml:"name"`
	Tick        time.Duration    `yaml:"tick"`
	Base        identity.Address `yaml:"base"`
	Sensitivity float64          `yaml:"sensitivity"`
	Slots       []SeedSlot       `yaml:"slots"`
	Active      int              `yaml:"active"`
	Steps       []Step           `yaml:"steps"`
	Expect      Expect           `yaml:"expect"`
}

// SeedSlot pre-pairs a slot before boot.
type SeedSlot struct {
	Slot   int              `yaml:"slot"`
	Peer   identity.Address `yaml:"peer"`
	Random bool             `yaml:"random"`
}

// Host names a peer in a step.
type Host struct {
	Addr   identity.Address `yaml:"addr"`
	Random bool             `yaml:"random"`
}

func (h Host) peer() identity.PeerAddress {
	p := identity.PeerAddress{Addr: h.Addr, Type: identity.AddrPublic}
	if h.Random {
		p.Type = identity.AddrRandom
	}
	return p
}

// Step is applied before its ticks run. Repeat or For stretch it over
// several ticks with the same inputs and sample.
type Step struct {
	Connect *Host         `yaml:"connect"`
	Drop    *Host         `yaml:"drop"`
	Inputs  ui.Inputs     `yaml:"inputs"`
	Sample  *Sample       `yaml:"sample"`
	Repeat  int           `yaml:"repeat"`
	For     time.Duration `yaml:"for"`
}

// Sample is one motion reading; unset fields are zero except az, which
// defaults to 1g.
type Sample struct {
	AX float64  `yaml:"ax"`
	AY float64  `yaml:"ay"`
	AZ *float64 `yaml:"az"`
	GX float64  `yaml:"gx"`
	GY float64  `yaml:"gy"`
	GZ float64  `yaml:"gz"`
	DT float64  `yaml:"dt"`
}

func (s *Sample) motion() motion.Sample {
	if s == nil {
		return motion.Sample{AZ: 1}
	}
	out := motion.Sample{AX: s.AX, AY: s.AY, AZ: 1, GX: s.GX, GY: s.GY, GZ: s.GZ, DT: s.DT}
	if s.AZ != nil {
		out.AZ = *s.AZ
	}
	return out
}

// Expect is checked against the Result by Verify. Zero fields are skipped.
type Expect struct {
	State      string                   `yaml:"state"`
	Active     *int                     `yaml:"active"`
	Advertised string                   `yaml:"advertised"`
	Paired     map[int]identity.Address `yaml:"paired"`
	Unpaired   []int                    `yaml:"unpaired"`
	Visited    []string                 `yaml:"visited"`
	Reports    *int                     `yaml:"reports"`
}

// Result is where the device ended up.
type Result struct {
	Ticks    int
	State    connection.State
	Active   int
	Table    slots.Table
	Trace    []connection.State
	Identity link.Identity
	Reports  []link.Report
	Screen   ui.Screen
	Events   []string
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a scenario. Unknown keys are rejected.
func Parse(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if sc.Tick <= 0 {
		sc.Tick = pointer.DefaultTick
	}
	if !slots.Valid(sc.Active) {
		return nil, fmt.Errorf("active slot %d out of range", sc.Active)
	}
	for _, s := range sc.Slots {
		if !slots.Valid(s.Slot) {
			return nil, fmt.Errorf("seed slot %d out of range", s.Slot)
		}
	}
	return &sc, nil
}

type scripted struct{ next motion.Sample }

func (s *scripted) Next(context.Context) (motion.Sample, error) { return s.next, nil }

// Run plays the scenario on a fresh in-memory device.
func Run(ctx context.Context, sc *Scenario, logger *slog.Logger) (*Result, error) {
	kv := store.NewMemory()
	table := slots.Table{}
	for _, s := range sc.Slots {
		h := Host{Addr: s.Peer, Random: s.Random}
		table[s.Slot] = slots.Slot{Paired: true, Peer: h.peer()}
	}
	st := slots.New(kv, logger)
	if err := st.Save(table, sc.Active); err != nil {
		return nil, fmt.Errorf("seed slots: %w", err)
	}

	res := &Result{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	radio := sim.New()
	guard := link.NewGuard(radio, logger)
	surface := &ui.Recorder{}
	machine := connection.New(connection.Config{
		Base: sc.Base,
		Now:  func() time.Time { return now },
		OnTransition: func(_, to connection.State) {
			res.Trace = append(res.Trace, to)
		},
	}, st, guard, radio, surface, logger)
	src := &scripted{}
	dev := &pointer.Device{
		Machine:   machine,
		Guard:     guard,
		Radio:     radio,
		Surface:   surface,
		Source:    src,
		Transform: motion.NewTransform(sc.Sensitivity),
		Logger:    logger,
		Tick:      sc.Tick,
	}

	handles := map[identity.PeerAddress]link.Conn{}
	for i, step := range sc.Steps {
		if step.Connect != nil {
			p := step.Connect.peer()
			h, err := radio.Connect(p)
			if err != nil {
				res.Events = append(res.Events, fmt.Sprintf("step %d: connect %s: %v", i, p, err))
			} else {
				handles[p] = link.Conn{Handle: h, Peer: p}
				res.Events = append(res.Events, fmt.Sprintf("step %d: connect %s", i, p))
			}
		}
		if step.Drop != nil {
			p := step.Drop.peer()
			c, ok := handles[p]
			if !ok {
				return nil, fmt.Errorf("step %d: drop %s: never connected", i, p)
			}
			if err := radio.Drop(c.Handle); err != nil {
				res.Events = append(res.Events, fmt.Sprintf("step %d: drop %s: %v", i, p, err))
			} else {
				res.Events = append(res.Events, fmt.Sprintf("step %d: drop %s", i, p))
			}
			delete(handles, p)
		}

		surface.Set(step.Inputs)
		src.next = step.Sample.motion()
		for range step.ticks(sc.Tick) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			radio.Wait()
			now = now.Add(sc.Tick)
			dev.Step(ctx)
			res.Ticks++
		}
	}
	radio.Wait()
	guard.Drain()

	res.State = machine.State()
	res.Active = machine.ActiveSlot()
	res.Table = machine.Table()
	res.Identity = radio.Identity()
	for _, d := range radio.Deliveries() {
		res.Reports = append(res.Reports, d.Report)
	}
	res.Screen, _ = surface.Last()
	return res, nil
}

func (s Step) ticks(tick time.Duration) int {
	n := max(s.Repeat, 1)
	if s.For > 0 {
		n = max(n, int(math.Ceil(float64(s.For)/float64(tick))))
	}
	return n
}

// Verify compares a result with the scenario's expectations and returns
// every mismatch joined into one error.
func (sc *Scenario) Verify(res *Result) error {
	var errs []error
	want := sc.Expect
	if want.State != "" && res.State.String() != want.State {
		errs = append(errs, fmt.Errorf("state: got %s, want %s", res.State, want.State))
	}
	if want.Active != nil && res.Active != *want.Active {
		errs = append(errs, fmt.Errorf("active slot: got %d, want %d", res.Active, *want.Active))
	}
	if want.Advertised != "" && res.Identity.Name != want.Advertised {
		errs = append(errs, fmt.Errorf("advertised name: got %q, want %q", res.Identity.Name, want.Advertised))
	}
	for slot, addr := range want.Paired {
		if !slots.Valid(slot) {
			errs = append(errs, fmt.Errorf("paired: slot %d out of range", slot))
			continue
		}
		got := res.Table[slot]
		if !got.Paired || got.Peer.Addr != addr {
			errs = append(errs, fmt.Errorf("slot %d: got %s, want paired to %s", slot, describe(got), addr))
		}
	}
	for _, slot := range want.Unpaired {
		if slots.Valid(slot) && res.Table[slot].Paired {
			errs = append(errs, fmt.Errorf("slot %d: got %s, want unpaired", slot, describe(res.Table[slot])))
		}
	}
	names := make([]string, len(res.Trace))
	for i, s := range res.Trace {
		names[i] = s.String()
	}
	for _, v := range want.Visited {
		if !slices.Contains(names, v) {
			errs = append(errs, fmt.Errorf("state %s never visited (trace %s)", v, strings.Join(names, " > ")))
		}
	}
	if want.Reports != nil && len(res.Reports) != *want.Reports {
		errs = append(errs, fmt.Errorf("reports: got %d, want %d", len(res.Reports), *want.Reports))
	}
	return errors.Join(errs...)
}

func describe(s slots.Slot) string {
	if !s.Paired {
		return "unpaired"
	}
	return "paired to " + s.Peer.String()
}
