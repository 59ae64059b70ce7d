// Package identity derives the per-slot hardware address and advertised name
// the pointer uses when it binds to a host.
//
// Every slot gets its own address so that each host remembers its own bond
// and sees a stable, distinct device. Addresses are the factory address with
// the last byte shifted by a multiple of 4, which keeps the low two bits (used
// by some stacks to derive companion addresses) untouched.
package identity

import (
	"encoding/hex"
	"fmt"
	"net"
	"strings"
)

// SlotStride is the last-byte distance between two neighbouring slot addresses.
const SlotStride = 4

// Address is a 6-byte hardware address, most significant byte first.
type Address [6]byte

// PeerAddress identifies a remote host: 6 address bytes plus the address type.
type PeerAddress struct {
	Addr Address
	Type byte
}

// Address types as reported by the link layer.
const (
	AddrPublic byte = 0x00
	AddrRandom byte = 0x01
)

// fallbackFactory is a locally administered unicast address used when the
// host has no usable hardware interface.
var fallbackFactory = Address{0x02, 0xA1, 0x2B, 0x5E, 0x00, 0x00}

// Derive returns the address and advertised name for slot.
func Derive(base Address, prefix string, slot int) (Address, string) {
	addr := base
	addr[5] += byte(SlotStride * slot)
	return addr, fmt.Sprintf("%s#%d", prefix, slot)
}

// SlotOf inverts Derive for the address part. It reports false when addr is
// not a slot address of base for any slot in [0, count).
func SlotOf(base, addr Address, count int) (int, bool) {
	for slot := 0; slot < count; slot++ {
		if d, _ := Derive(base, "", slot); d == addr {
			return slot, true
		}
	}
	return 0, false
}

// FactoryAddress returns the hardware address of the first non-loopback
// interface, standing in for the address burned into the radio at the factory.
func FactoryAddress() Address {
	ifaces, err := net.Interfaces()
	if err != nil {
		return fallbackFactory
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) != 6 {
			continue
		}
		var a Address
		copy(a[:], iface.HardwareAddr)
		return a
	}
	return fallbackFactory
}

// ParseAddress parses "aa:bb:cc:dd:ee:ff" (or '-' separated) into an Address.
func ParseAddress(s string) (Address, error) {
	var a Address
	hw, err := net.ParseMAC(strings.TrimSpace(s))
	if err != nil {
		return a, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(hw) != len(a) {
		return a, fmt.Errorf("parse address %q: want 6 bytes, got %d", s, len(hw))
	}
	copy(a[:], hw)
	return a, nil
}

func (a Address) String() string {
	parts := make([]string, len(a))
	for i, b := range a {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return strings.Join(parts, ":")
}

// IsZero reports whether no address bytes are set.
func (a Address) IsZero() bool { return a == Address{} }

// UnmarshalText lets kong and the config loaders accept textual addresses.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Equal compares address and address type.
func (p PeerAddress) Equal(o PeerAddress) bool { return p == o }

func (p PeerAddress) String() string {
	kind := "public"
	if p.Type == AddrRandom {
		kind = "random"
	}
	return p.Addr.String() + " (" + kind + ")"
}
