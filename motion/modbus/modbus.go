// Package modbus polls an IMU exposed as Modbus TCP input registers, the way
// industrial inclinometers and many sensor gateways publish their readings.
//
// Six consecutive input registers starting at Config.Addr hold signed 16-bit
// values: ax, ay, az in milli-g followed by gx, gy, gz in centi-degrees per
// second.
package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/Alia5/airmouse/motion"
)

// Registers is the number of input registers read per sample.
const Registers = 6

const (
	accelScale = 1000.0
	gyroScale  = 100.0
)

type Config struct {
	Endpoint string
	UnitID   uint8
	Addr     uint16
	Timeout  time.Duration
}

// Source reads one sample per Next call. Requests are serialized.
type Source struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
	addr    uint16
}

// Dial connects to the endpoint.
func Dial(cfg Config) (*Source, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus source: endpoint required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus connect %s: %w", cfg.Endpoint, err)
	}

	return &Source{
		handler: h,
		client:  modbus.NewClient(h),
		addr:    cfg.Addr,
	}, nil
}

// Next reads the register block. DT is left zero so the caller's tick
// interval applies.
func (s *Source) Next(ctx context.Context) (motion.Sample, error) {
	if err := ctx.Err(); err != nil {
		return motion.Sample{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.client.ReadInputRegisters(s.addr, Registers)
	if err != nil {
		return motion.Sample{}, fmt.Errorf("read input registers: %w", err)
	}
	return Decode(raw)
}

// Decode converts a big-endian register block into a sample.
func Decode(raw []byte) (motion.Sample, error) {
	if len(raw) != Registers*2 {
		return motion.Sample{}, fmt.Errorf("modbus source: got %d bytes, want %d", len(raw), Registers*2)
	}
	var v [Registers]float64
	for i := range v {
		v[i] = float64(int16(binary.BigEndian.Uint16(raw[2*i:])))
	}
	return motion.Sample{
		AX: v[0] / accelScale, AY: v[1] / accelScale, AZ: v[2] / accelScale,
		GX: v[3] / gyroScale, GY: v[4] / gyroScale, GZ: v[5] / gyroScale,
	}, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Close()
}
