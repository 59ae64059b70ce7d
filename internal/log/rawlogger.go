package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger traces report bytes exchanged with a host.
type RawLogger interface {
	Log(toHost bool, data []byte)
}

type rawLogger struct {
	w   io.Writer
	now func() time.Time
	mu  sync.Mutex
}

// NewRaw returns a tracer writing to w. A nil w discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

// Log writes one line: timestamp, direction, length and hex dump.
func (r *rawLogger) Log(toHost bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}
	dir := "H->D"
	if toHost {
		dir = "D->H"
	}
	line := fmt.Sprintf("%s %s report: %d bytes, hex: % x\n",
		r.now().Format("2006/01/02 15:04:05.000"), dir, len(data), data)

	r.mu.Lock()
	_, _ = io.WriteString(r.w, line)
	r.mu.Unlock()
}
