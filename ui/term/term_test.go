package term_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Alia5/airmouse/ui"
	"github.com/Alia5/airmouse/ui/term"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysDriveInputs(t *testing.T) {
	testCases := []struct {
		name     string
		keys     string
		expected []ui.Inputs
	}{
		{"tap a", "a", []ui.Inputs{{A: true}, {}}},
		{"latch B", "B", []ui.Inputs{{B: true}, {B: true}}},
		{"latch and release", "BB", []ui.Inputs{{}, {}}},
		{"screen gesture", "s", []ui.Inputs{{Screen: true}, {}}},
		{"quit stops reading", "qa", []ui.Inputs{{}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tm := term.New(strings.NewReader(tc.keys), &bytes.Buffer{})
			require.NoError(t, tm.Run(context.Background()))
			<-tm.Done()
			for _, want := range tc.expected {
				assert.Equal(t, want, tm.Inputs())
			}
		})
	}
}

func TestShowAndPowerSave(t *testing.T) {
	var out bytes.Buffer
	tm := term.New(strings.NewReader(""), &out)

	s := ui.Screen{Color: ui.ColorDarkGreen}
	s.Printf("SelSlot: %d", 2)
	tm.Show(s)
	assert.Contains(t, out.String(), "SelSlot: 2")
	assert.Contains(t, out.String(), "\x1b[42")

	out.Reset()
	tm.SetPowerSave(true)
	assert.Contains(t, out.String(), "(display off)")

	out.Reset()
	tm.Show(ui.Screen{Color: ui.ColorBlack, Lines: []string{"hidden"}})
	assert.Empty(t, out.String())

	tm.SetPowerSave(false)
	assert.Contains(t, out.String(), "hidden")
}
