package bridge

import (
	"io"
	"math"

	"github.com/Alia5/airmouse/link"
)

// ReportSize is the length of one mouse input record on a device stream.
const ReportSize = 9

// MouseState is the host-side mouse input record.
//
//	Byte 0:    buttons (bit 0 left, 1 right, 2 middle)
//	Bytes 1-2: DX, int16 little-endian
//	Bytes 3-4: DY
//	Bytes 5-6: wheel
//	Bytes 7-8: pan
type MouseState struct {
	Buttons    uint8
	DX, DY     int16
	Wheel, Pan int16
}

// FromReport converts a HID report, saturating deltas to the int16 range.
func FromReport(r link.Report) MouseState {
	return MouseState{Buttons: r.Buttons, DX: clamp16(r.DX), DY: clamp16(r.DY)}
}

func clamp16(v int) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

func (m MouseState) MarshalBinary() ([]byte, error) {
	b := make([]byte, ReportSize)
	b[0] = m.Buttons
	b[1] = byte(m.DX)
	b[2] = byte(m.DX >> 8)
	b[3] = byte(m.DY)
	b[4] = byte(m.DY >> 8)
	b[5] = byte(m.Wheel)
	b[6] = byte(m.Wheel >> 8)
	b[7] = byte(m.Pan)
	b[8] = byte(m.Pan >> 8)
	return b, nil
}

func (m *MouseState) UnmarshalBinary(data []byte) error {
	if len(data) < ReportSize {
		return io.ErrUnexpectedEOF
	}
	m.Buttons = data[0]
	m.DX = int16(data[1]) | int16(data[2])<<8
	m.DY = int16(data[3]) | int16(data[4])<<8
	m.Wheel = int16(data[5]) | int16(data[6])<<8
	m.Pan = int16(data[7]) | int16(data[8])<<8
	return nil
}
