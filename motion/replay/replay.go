// Package replay plays back inertial recordings stored as CSV.
//
// Each row holds ax, ay, az, gx, gy, gz and optionally dt. A leading header
// row is skipped when its first field is not a number.
package replay

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Alia5/airmouse/motion"
)

// Source replays a fixed list of samples.
type Source struct {
	mu      sync.Mutex
	samples []motion.Sample
	pos     int
	loop    bool
}

// New returns a source over samples. With loop set the recording restarts
// after the last sample instead of reporting io.EOF.
func New(samples []motion.Sample, loop bool) *Source {
	return &Source{samples: samples, loop: loop}
}

// Open reads a CSV recording from path.
func Open(path string, loop bool) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()
	samples, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return New(samples, loop), nil
}

// Parse decodes a CSV recording.
func Parse(r io.Reader) ([]motion.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []motion.Sample
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if line == 1 && !numeric(rec[0]) {
			continue
		}
		if len(rec) != 6 && len(rec) != 7 {
			return nil, fmt.Errorf("line %d: want 6 or 7 fields, got %d", line, len(rec))
		}
		var vals [7]float64
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d field %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		out = append(out, motion.Sample{
			AX: vals[0], AY: vals[1], AZ: vals[2],
			GX: vals[3], GY: vals[4], GZ: vals[5],
			DT: vals[6],
		})
	}
}

func numeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// Len returns the number of samples in the recording.
func (s *Source) Len() int { return len(s.samples) }

func (s *Source) Next(ctx context.Context) (motion.Sample, error) {
	if err := ctx.Err(); err != nil {
		return motion.Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.samples) {
		if !s.loop || len(s.samples) == 0 {
			return motion.Sample{}, io.EOF
		}
		s.pos = 0
	}
	out := s.samples[s.pos]
	s.pos++
	return out, nil
}
