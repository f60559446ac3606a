package value

import "sync"

// StringObj is the heap representation of an interned string. Two Values of
// Kind KString compare equal with == iff they point at the same *StringObj,
// which Interner guarantees for any two strings with identical bytes.
type StringObj struct {
	s string
}

func (so *StringObj) String() string { return so.s }

// Interner is the engine-wide string table: every
// string value presented to the runtime (literals, concatenation results,
// conversions) is interned here so that identity comparison implements
// content equality.
type Interner struct {
	mu    sync.Mutex
	table map[string]*StringObj
}

// NewInterner returns an empty string table.
func NewInterner() *Interner {
	return &Interner{table: make(map[string]*StringObj)}
}

// Intern returns the canonical *StringObj for s, creating and storing one if
// this is the first time s is seen.
func (in *Interner) Intern(s string) *StringObj {
	in.mu.Lock()
	defer in.mu.Unlock()
	if so, ok := in.table[s]; ok {
		return so
	}
	so := &StringObj{s: s}
	in.table[s] = so
	return so
}

// String returns a Value wrapping the interned form of s.
func (in *Interner) String(s string) Value {
	return Value{Kind: KString, Ref: in.Intern(s)}
}

// Len reports how many distinct strings are currently interned, for tests
// and diagnostics.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.table)
}
