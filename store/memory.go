package store

import "sync"

// Memory is a Store kept in process memory. It is used by tests and by dry
// runs that must not touch the persisted table.
type Memory struct {
	mu   sync.Mutex
	data map[string]map[string]value
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: map[string]map[string]value{}}
}

func (m *Memory) get(ns, key string) (value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[ns][key]
	return v, ok
}

func (m *Memory) put(ns, key string, v value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[ns] == nil {
		m.data[ns] = map[string]value{}
	}
	m.data[ns][key] = v
}

func (m *Memory) Bytes(ns, key string) ([]byte, bool, error) {
	v, ok := m.get(ns, key)
	return bytesOf(v, ok)
}

func (m *Memory) PutBytes(ns, key string, b []byte) error {
	m.put(ns, key, bytesValue(b))
	return nil
}

func (m *Memory) Int(ns, key string, def int) (int, error) {
	v, ok := m.get(ns, key)
	return intOf(v, ok, def)
}

func (m *Memory) PutInt(ns, key string, i int) error {
	m.put(ns, key, intValue(i))
	return nil
}

// Delete removes key from ns.
func (m *Memory) Delete(ns, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[ns], key)
}
