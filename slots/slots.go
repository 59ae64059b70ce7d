// Package slots owns the persisted table of host bindings and the index of
// the slot the pointer is currently bound to.
package slots

import (
	"fmt"
	"log/slog"

	"github.com/Alia5/airmouse/identity"
	"github.com/Alia5/airmouse/store"
)

// Count is the number of host bindings the pointer can remember.
const Count = 5

// SlotSize is the encoded size of one Slot.
//
// Record layout (8 bytes):
//
//	Byte 0: paired flag (0 or 1)
//	Byte 1: peer address type
//	Bytes 2-7: peer address, most significant byte first
const SlotSize = 8

// RecordSize is the exact size of a valid stored table.
const RecordSize = Count * SlotSize

// Durable store layout.
const (
	Namespace = "pairing"
	KeySlots  = "pairing_slots"
	KeyActive = "active_slot"
)

// Slot is one remembered host binding. Peer is only meaningful when Paired.
type Slot struct {
	Paired bool
	Peer   identity.PeerAddress
}

// Table is the full set of slots, indexed by slot number.
type Table [Count]Slot

// Next returns the slot after i, wrapping around.
func Next(i int) int { return (i + 1) % Count }

// Valid reports whether i indexes a slot.
func Valid(i int) bool { return i >= 0 && i < Count }

// MarshalBinary encodes the table into its fixed-size record.
func (t *Table) MarshalBinary() ([]byte, error) {
	b := make([]byte, RecordSize)
	for i, s := range t {
		off := i * SlotSize
		if s.Paired {
			b[off] = 1
		}
		b[off+1] = s.Peer.Type
		copy(b[off+2:off+SlotSize], s.Peer.Addr[:])
	}
	return b, nil
}

// UnmarshalBinary decodes a record. Any size other than RecordSize is corrupt.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data) != RecordSize {
		return fmt.Errorf("pairing record is %d bytes, want %d", len(data), RecordSize)
	}
	var out Table
	for i := range out {
		off := i * SlotSize
		out[i].Paired = data[off] != 0
		out[i].Peer.Type = data[off+1]
		copy(out[i].Peer.Addr[:], data[off+2:off+SlotSize])
	}
	*t = out
	return nil
}

// Store loads and saves the table through a durable store. It keeps no cache:
// every call performs I/O.
type Store struct {
	kv     store.Store
	logger *slog.Logger
}

// New returns a slot store backed by kv.
func New(kv store.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, logger: logger}
}

// Load returns the persisted table and active slot. A missing or wrong-sized
// record is treated as corrupt: the table is reset to all-unpaired and the
// reset is written back before returning. Load never fails.
func (s *Store) Load() (Table, int) {
	var t Table
	raw, ok, err := s.kv.Bytes(Namespace, KeySlots)
	switch {
	case err != nil:
		s.logger.Warn("pairing table unreadable, resetting", "error", err)
		s.reset(&t)
	case !ok:
		s.logger.Info("no pairing table stored, initializing")
		s.reset(&t)
	default:
		if err := t.UnmarshalBinary(raw); err != nil {
			s.logger.Warn("pairing table corrupt, resetting", "error", err)
			s.reset(&t)
		}
	}

	active, err := s.kv.Int(Namespace, KeyActive, 0)
	if err != nil {
		s.logger.Warn("active slot unreadable, using slot 0", "error", err)
		active = 0
	}
	if !Valid(active) {
		s.logger.Warn("active slot out of range, using slot 0", "slot", active)
		active = 0
	}
	return t, active
}

func (s *Store) reset(t *Table) {
	*t = Table{}
	b, _ := t.MarshalBinary()
	if err := s.kv.PutBytes(Namespace, KeySlots, b); err != nil {
		s.logger.Error("failed to persist reset pairing table", "error", err)
	}
}

// Save writes the table and the active slot.
func (s *Store) Save(t Table, active int) error {
	if !Valid(active) {
		return fmt.Errorf("active slot %d out of range [0,%d)", active, Count)
	}
	b, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	if err := s.kv.PutBytes(Namespace, KeySlots, b); err != nil {
		return fmt.Errorf("save pairing table: %w", err)
	}
	if err := s.kv.PutInt(Namespace, KeyActive, active); err != nil {
		return fmt.Errorf("save active slot: %w", err)
	}
	return nil
}
