package value

import "github.com/dolthub/swiss"

// Map is a string-keyed mapping to Values, backed by dolthub/swiss's
// SwissTable map.
type Map struct {
	m *swiss.Map[string, Value]
}

// NewMap returns a map with initial capacity for at least size entries.
func NewMap(size int) *Map {
	if size < 1 {
		size = 1
	}
	return &Map{m: swiss.NewMap[string, Value](uint32(size))}
}

func (m *Map) Len() int { return m.m.Count() }

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (Value, bool) { return m.m.Get(key) }

// Set inserts or overwrites key.
func (m *Map) Set(key string, v Value) { m.m.Put(key, v) }

// Delete removes key, reporting whether it was present.
func (m *Map) Delete(key string) bool { return m.m.Delete(key) }

// Range iterates every entry in implementation-defined order; scripts must
// not depend on it.
func (m *Map) Range(f func(key string, v Value) bool) { m.m.Iter(f) }
