// Package term is a keyboard-and-ANSI UI surface for running the air mouse
// from a terminal.
//
// Keys: a / b tap a button for one tick, A / B latch it down or up, s taps
// the screen gesture, q or Ctrl-C quits.
package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Alia5/airmouse/ui"
)

const (
	width   = 28
	ctrlC   = 0x03
	clear   = "\x1b[2J\x1b[H"
	resetFG = "\x1b[0m"
)

var backgrounds = map[ui.Color]string{
	ui.ColorDarkGreen: "\x1b[42;97m",
	ui.ColorDarkCyan:  "\x1b[46;97m",
	ui.ColorBlack:     "\x1b[40;37m",
}

// Terminal implements ui.Surface.
type Terminal struct {
	in      io.Reader
	out     io.Writer
	restore func() error

	mu        sync.Mutex
	held      ui.Inputs
	taps      ui.Inputs
	last      ui.Screen
	powerSave bool

	done     chan struct{}
	doneOnce sync.Once
}

// New wraps arbitrary streams. Nothing is put into raw mode.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: in, out: out, restore: func() error { return nil }, done: make(chan struct{})}
}

// Open puts stdin into raw mode when it is a terminal. Close restores it.
func Open() (*Terminal, error) {
	t := New(os.Stdin, os.Stdout)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return t, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw mode: %w", err)
	}
	t.restore = func() error { return term.Restore(fd, state) }
	return t, nil
}

// Close restores the terminal.
func (t *Terminal) Close() error {
	_, _ = io.WriteString(t.out, resetFG+"\r\n")
	return t.restore()
}

// Done is closed once the user quits or input ends.
func (t *Terminal) Done() <-chan struct{} { return t.done }

// Run reads keys until ctx is done, input ends or the user quits.
func (t *Terminal) Run(ctx context.Context) error {
	defer t.quit()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	keys := make(chan byte)
	errs := make(chan error, 1)
	go func() {
		r := bufio.NewReader(t.in)
		for {
			b, err := r.ReadByte()
			if err != nil {
				errs <- err
				return
			}
			select {
			case keys <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errs:
			if err == io.EOF {
				return nil
			}
			return err
		case k := <-keys:
			if !t.key(k) {
				return nil
			}
		}
	}
}

func (t *Terminal) key(k byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch k {
	case 'a':
		t.taps.A = true
	case 'b':
		t.taps.B = true
	case 'A':
		t.held.A = !t.held.A
	case 'B':
		t.held.B = !t.held.B
	case 's', ' ':
		t.taps.Screen = true
	case 'q', ctrlC:
		return false
	}
	return true
}

func (t *Terminal) quit() { t.doneOnce.Do(func() { close(t.done) }) }

// Inputs returns the latched levels plus any pending taps; taps are consumed.
func (t *Terminal) Inputs() ui.Inputs {
	t.mu.Lock()
	defer t.mu.Unlock()
	in := ui.Inputs{
		A:      t.held.A || t.taps.A,
		B:      t.held.B || t.taps.B,
		Screen: t.held.Screen || t.taps.Screen,
	}
	t.taps = ui.Inputs{}
	return in
}

func (t *Terminal) Show(s ui.Screen) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = s
	if !t.powerSave {
		t.draw(s)
	}
}

func (t *Terminal) SetPowerSave(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if on == t.powerSave {
		return
	}
	t.powerSave = on
	if on {
		_, _ = io.WriteString(t.out, clear+resetFG+"(display off)\r\n")
		return
	}
	t.draw(t.last)
}

func (t *Terminal) draw(s ui.Screen) {
	var b strings.Builder
	b.WriteString(clear)
	b.WriteString(backgrounds[s.Color])
	for _, l := range s.Lines {
		if len(l) < width {
			l += strings.Repeat(" ", width-len(l))
		}
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	b.WriteString(resetFG)
	_, _ = io.WriteString(t.out, b.String())
}
