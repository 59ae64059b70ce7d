package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		in       string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.in))
		})
	}
}

func TestSetupSplitsStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	logger, closers, err := setup("debug", "", "text", &out, &errOut)
	require.NoError(t, err)
	assert.Empty(t, closers)

	logger.Debug("slot selected", "slot", 2)
	logger.Error("store unwritable")

	assert.Contains(t, out.String(), "slot selected")
	assert.NotContains(t, out.String(), "store unwritable")
	assert.Contains(t, errOut.String(), "store unwritable")
	assert.NotContains(t, errOut.String(), "slot selected")
}

func TestSetupWithFile(t *testing.T) {
	var out, errOut bytes.Buffer
	path := filepath.Join(t.TempDir(), "airmouse.log")
	logger, closers, err := setup("trace", path, "json", &out, &errOut)
	require.NoError(t, err)
	require.Len(t, closers, 1)

	logger.Log(t.Context(), LevelTrace, "report sent")
	require.NoError(t, closers[0].Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"level":"TRACE"`)
	assert.Contains(t, errOut.String(), "report sent")
	assert.Empty(t, out.String())
}

func TestRawLogger(t *testing.T) {
	var buf bytes.Buffer
	r := &rawLogger{w: &buf, now: func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }}
	r.Log(true, []byte{0x01, 0xff, 0x00})
	r.Log(false, nil)
	assert.Equal(t, "2026/01/02 03:04:05.000 D->H report: 3 bytes, hex: 01 ff 00\n", buf.String())

	NewRaw(nil).Log(true, []byte{1})
}
