package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/Alia5/airmouse/slots"
)

// LogConfig controls the process logger and the report tracer.
type LogConfig struct {
	Level   string `help:"Log level" enum:"trace,debug,info,warn,error" default:"info" env:"AIRMOUSE_LOG_LEVEL"`
	Format  string `help:"Log record format" enum:"text,json" default:"text" env:"AIRMOUSE_LOG_FORMAT"`
	File    string `help:"Also write logs to this file" env:"AIRMOUSE_LOG_FILE"`
	RawFile string `help:"Hex-dump every report sent to a host into this file" env:"AIRMOUSE_LOG_RAW_FILE"`
}

// Slots groups the pairing table subcommands.
type Slots struct {
	List   SlotsList   `cmd:"" default:"1" help:"Show every slot and the active one"`
	Erase  SlotsErase  `cmd:"" help:"Forget the host bound to a slot"`
	Select SlotsSelect `cmd:"" help:"Make a slot the one used at next boot"`
}

type SlotsList struct {
	Store StoreConfig `embed:"" prefix:"store."`

	out io.Writer
}

func (c *SlotsList) Run(logger *slog.Logger) error {
	st, err := openSlots(c.Store, logger)
	if err != nil {
		return err
	}
	t, active := st.Load()
	return printTable(writer(c.out), t, active)
}

type SlotsErase struct {
	Store StoreConfig `embed:"" prefix:"store."`
	Slot  int         `arg:"" help:"Slot number (0-4)"`
}

func (c *SlotsErase) Run(logger *slog.Logger) error {
	if !slots.Valid(c.Slot) {
		return fmt.Errorf("slot %d out of range 0-%d", c.Slot, slots.Count-1)
	}
	st, err := openSlots(c.Store, logger)
	if err != nil {
		return err
	}
	t, active := st.Load()
	t[c.Slot] = slots.Slot{}
	if err := st.Save(t, active); err != nil {
		return err
	}
	logger.Info("pairing erased", "slot", c.Slot)
	return nil
}

type SlotsSelect struct {
	Store StoreConfig `embed:"" prefix:"store."`
	Slot  int         `arg:"" help:"Slot number (0-4)"`
}

func (c *SlotsSelect) Run(logger *slog.Logger) error {
	if !slots.Valid(c.Slot) {
		return fmt.Errorf("slot %d out of range 0-%d", c.Slot, slots.Count-1)
	}
	st, err := openSlots(c.Store, logger)
	if err != nil {
		return err
	}
	t, _ := st.Load()
	if err := st.Save(t, c.Slot); err != nil {
		return err
	}
	logger.Info("active slot changed", "slot", c.Slot)
	return nil
}

func openSlots(c StoreConfig, logger *slog.Logger) (*slots.Store, error) {
	kv, err := openStore(c.Dir)
	if err != nil {
		return nil, err
	}
	return slots.New(kv, logger), nil
}

func printTable(w io.Writer, t slots.Table, active int) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tSTATE\tPEER")
	for i, s := range t {
		mark := " "
		if i == active {
			mark = "*"
		}
		if s.Paired {
			fmt.Fprintf(tw, "%s%d\tpaired\t%s\n", mark, i, s.Peer)
		} else {
			fmt.Fprintf(tw, "%s%d\tempty\t-\n", mark, i)
		}
	}
	return tw.Flush()
}

func writer(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
