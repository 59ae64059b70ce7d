package bridge

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// Client is the subset of the VIIPER host API the bridge needs.
type Client struct{ transport *Transport }

// NewClient builds a client for the host at addr.
func NewClient(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransport(addr, cfg)}
}

// WithTransport builds a client on an existing transport.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the host's server name and version.
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	raw, err := c.transport.Do(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[PingResponse](raw)
}

// BusCreate creates virtual bus busID on the host.
func (c *Client) BusCreate(ctx context.Context, busID uint32) (*BusCreateResponse, error) {
	raw, err := c.transport.Do(ctx, "bus/create", strconv.FormatUint(uint64(busID), 10), nil)
	if err != nil {
		return nil, err
	}
	return parse[BusCreateResponse](raw)
}

// DeviceAdd attaches a new device of devType to the bus.
func (c *Client) DeviceAdd(ctx context.Context, busID uint32, devType string) (*Device, error) {
	params := map[string]string{"id": strconv.FormatUint(uint64(busID), 10)}
	raw, err := c.transport.Do(ctx, "bus/{id}/add", deviceCreateRequest{Type: devType}, params)
	if err != nil {
		return nil, err
	}
	return parse[Device](raw)
}

// DeviceRemove detaches a device from the bus.
func (c *Client) DeviceRemove(ctx context.Context, busID uint32, devID string) (*DeviceRemoveResponse, error) {
	params := map[string]string{"id": strconv.FormatUint(uint64(busID), 10)}
	raw, err := c.transport.Do(ctx, "bus/{id}/remove", devID, params)
	if err != nil {
		return nil, err
	}
	return parse[DeviceRemoveResponse](raw)
}

// OpenStream connects to the input stream of an existing device.
func (c *Client) OpenStream(ctx context.Context, busID uint32, devID string) (*DeviceStream, error) {
	if c.transport.mock != nil {
		return nil, errors.New("stream connections not supported with mock transport")
	}
	conn, err := c.transport.dial(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(conn, "bus/%d/%s\x00", busID, devID); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	return &DeviceStream{conn: conn, BusID: busID, DevID: devID, writeTimeout: c.transport.cfg.WriteTimeout}, nil
}

// DeviceStream carries device input from the bridge to the host.
type DeviceStream struct {
	BusID uint32
	DevID string

	mu           sync.Mutex
	conn         net.Conn
	writeTimeout time.Duration
	closed       bool
}

var errStreamClosed = errors.New("stream closed")

// WriteBinary marshals v and writes it as one input record.
func (s *DeviceStream) WriteBinary(v encoding.BinaryMarshaler) ([]byte, error) {
	data, err := v.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errStreamClosed
	}
	var deadline time.Time
	if s.writeTimeout > 0 {
		deadline = time.Now().Add(s.writeTimeout)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	if _, err := s.conn.Write(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the stream. Closing twice is a no-op.
func (s *DeviceStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem APIError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
