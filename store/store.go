// Package store provides the durable key-value storage the pointer keeps its
// pairing table in. Values live in namespaces, mirroring the preferences
// partition of the original hardware.
package store

import "errors"

// ErrWrongType is returned when a key holds a value of another kind.
var ErrWrongType = errors.New("store: value has a different type")

// Store is a namespaced key-value store with byte and integer values.
// A successful put is durable; a put interrupted by power loss leaves the
// previous value of the namespace intact.
type Store interface {
	// Bytes returns the value of key and whether it exists.
	Bytes(ns, key string) ([]byte, bool, error)
	PutBytes(ns, key string, v []byte) error
	// Int returns the value of key, or def when it does not exist.
	Int(ns, key string, def int) (int, error)
	PutInt(ns, key string, v int) error
}

// value is the stored form of a single key.
type value struct {
	Bytes []byte `json:"bytes,omitempty"`
	Int   *int64 `json:"int,omitempty"`
}

func bytesOf(v value, ok bool) ([]byte, bool, error) {
	if !ok {
		return nil, false, nil
	}
	if v.Int != nil {
		return nil, false, ErrWrongType
	}
	out := make([]byte, len(v.Bytes))
	copy(out, v.Bytes)
	return out, true, nil
}

func intOf(v value, ok bool, def int) (int, error) {
	if !ok {
		return def, nil
	}
	if v.Int == nil {
		return def, ErrWrongType
	}
	return int(*v.Int), nil
}

func bytesValue(b []byte) value {
	out := make([]byte, len(b))
	copy(out, b)
	return value{Bytes: out}
}

func intValue(i int) value {
	n := int64(i)
	return value{Int: &n}
}
