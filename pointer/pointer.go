// Package pointer runs the device's cooperative polling loop: one tick reads
// the buttons, advances the connection machine and, once a host is bound,
// turns the newest motion sample into a pointer report.
package pointer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Alia5/airmouse/connection"
	"github.com/Alia5/airmouse/link"
	"github.com/Alia5/airmouse/motion"
	"github.com/Alia5/airmouse/ui"
)

// DefaultTick is the nominal polling period.
const DefaultTick = 20 * time.Millisecond

// Drainer applies queued link notifications.
type Drainer interface {
	Drain() int
}

// Device wires the collaborators of one polling loop together.
type Device struct {
	Machine   *connection.Machine
	Guard     Drainer
	Radio     link.Radio
	Surface   ui.Surface
	Source    motion.Source
	Transform *motion.Transform
	Logger    *slog.Logger
	Tick      time.Duration

	sendFailing bool
}

func (d *Device) period() time.Duration {
	if d.Tick <= 0 {
		return DefaultTick
	}
	return d.Tick
}

func (d *Device) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// Step runs one tick and returns the report it sent, if any.
func (d *Device) Step(ctx context.Context) (link.Report, bool) {
	d.Guard.Drain()
	in := d.Surface.Inputs()
	if !d.Machine.Tick(in) {
		return link.Report{}, false
	}

	var dx, dy int
	sample, err := d.Source.Next(ctx)
	if err != nil {
		// A missing sample is a still tick; the reference angle is kept.
		d.logger().Debug("no motion sample", "error", err)
	} else {
		if sample.DT <= 0 {
			sample.DT = d.period().Seconds()
		}
		dx, dy = d.Transform.Step(sample, in.B)
	}

	if !d.Machine.LinkUp() {
		return link.Report{}, false
	}
	rep := link.Report{DX: dx, DY: dy}
	if in.A {
		rep.Buttons |= link.ButtonPrimary
	}
	if err := d.Radio.Send(rep); err != nil {
		if !d.sendFailing {
			d.logger().Warn("failed to send pointer report", "error", err)
		}
		d.sendFailing = true
		return rep, false
	}
	if d.sendFailing {
		d.logger().Info("pointer reports flowing again")
	}
	d.sendFailing = false
	return rep, true
}

// Run ticks until ctx is cancelled.
func (d *Device) Run(ctx context.Context) error {
	t := time.NewTicker(d.period())
	defer t.Stop()
	d.logger().Info("pointer loop started", "tick", d.period())
	for {
		d.Step(ctx)
		select {
		case <-ctx.Done():
			d.logger().Info("pointer loop stopped")
			return nil
		case <-t.C:
		}
	}
}
