// Package ui describes the pointer's tiny display and its buttons.
package ui

import (
	"fmt"
	"strings"
	"sync"
)

// Inputs holds the logical button levels sampled for one tick. The hardware
// buttons are active-low; surfaces report true for "pressed".
type Inputs struct {
	// A cycles slots while selecting and is the primary click when ready.
	A bool `json:"a"`
	// B decides (short press) or erases (long hold) while selecting and
	// engages pointing when ready.
	B bool `json:"b"`
	// Screen is the touch gesture that forces or returns to slot selection.
	Screen bool `json:"screen"`
}

// Color is a full-screen background color.
type Color string

const (
	ColorDarkGreen Color = "darkgreen"
	ColorDarkCyan  Color = "darkcyan"
	ColorBlack     Color = "black"
)

// Screen is one full frame: a background color and a few lines of text.
type Screen struct {
	Color Color    `json:"color"`
	Lines []string `json:"lines"`
}

// Printf appends a formatted line.
func (s *Screen) Printf(format string, args ...any) {
	s.Lines = append(s.Lines, fmt.Sprintf(format, args...))
}

func (s Screen) String() string {
	return "[" + string(s.Color) + "] " + strings.Join(s.Lines, " | ")
}

// Surface is the display plus buttons.
type Surface interface {
	Inputs() Inputs
	Show(s Screen)
	// SetPowerSave dims (true) or wakes (false) the display.
	SetPowerSave(on bool)
}

// Recorder is a Surface driven from code. It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	in        Inputs
	screens   []Screen
	powerSave bool
}

// Set replaces the current input levels.
func (r *Recorder) Set(in Inputs) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.in = in
}

func (r *Recorder) Inputs() Inputs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.in
}

func (r *Recorder) Show(s Screen) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screens = append(r.screens, s)
}

func (r *Recorder) SetPowerSave(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.powerSave = on
}

// Last returns the most recent screen.
func (r *Recorder) Last() (Screen, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.screens) == 0 {
		return Screen{}, false
	}
	return r.screens[len(r.screens)-1], true
}

// PowerSave reports the last power state requested.
func (r *Recorder) PowerSave() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.powerSave
}
