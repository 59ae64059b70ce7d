package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/Alia5/airmouse/scenario"
)

// Scenario replays a YAML script against the simulated radio.
type Scenario struct {
	File string `arg:"" type:"existingfile" help:"Scenario file"`

	out io.Writer
}

func (c *Scenario) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sc, err := scenario.Load(c.File)
	if err != nil {
		return err
	}
	res, err := scenario.Run(ctx, sc, logger)
	if err != nil {
		return err
	}

	w := writer(c.out)
	trace := make([]string, len(res.Trace))
	for i, s := range res.Trace {
		trace[i] = s.String()
	}
	fmt.Fprintf(w, "scenario: %s\n", sc.Name)
	fmt.Fprintf(w, "ticks: %d, reports: %d\n", res.Ticks, len(res.Reports))
	fmt.Fprintf(w, "trace: %s\n", strings.Join(trace, " > "))
	fmt.Fprintf(w, "advertised: %s (%s)\n", res.Identity.Name, res.Identity.Address)
	for _, e := range res.Events {
		fmt.Fprintf(w, "event: %s\n", e)
	}
	if err := printTable(w, res.Table, res.Active); err != nil {
		return err
	}
	if err := sc.Verify(res); err != nil {
		return fmt.Errorf("scenario %q failed:\n%w", sc.Name, err)
	}
	fmt.Fprintln(w, "ok")
	return nil
}
