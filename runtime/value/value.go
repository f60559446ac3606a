// Package value implements the tagged value union of the runtime: the
// representation of every script-visible datum, plus the heap
// object kinds it can reference (strings, arrays, maps, class/struct
// instances, native class/struct instances, closures, functions, and
// process references).
//
// A Value is a small value type (no heap allocation for nil/bool/int/float)
// carrying an interface{} payload for heap-allocated kinds.
package value

import (
	"fmt"
	"math"
)

// Value is the fundamental datum scripts manipulate. The zero Value is Nil.
type Value struct {
	Kind Kind
	I    int64   // KBool (0/1), KInt, KProcess (process ID)
	F    float64 // KFloat
	Gen  uint32  // KProcess (process generation)
	Ref  any     // heap kinds: *StringObj, *Array, *Map, *ClassInstance, ...
}

// Nil is the nil value.
var Nil = Value{Kind: KNil}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	if b {
		return Value{Kind: KBool, I: 1}
	}
	return Value{Kind: KBool, I: 0}
}

// Int returns an integer Value.
func Int(i int64) Value { return Value{Kind: KInt, I: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{Kind: KFloat, F: f} }

// Process returns a process-reference Value, identified by its ID and the
// generation stamped on it at spawn time; the generation tag
// invalidates stale references once the record is recycled.
func Process(id int64, gen uint32) Value { return Value{Kind: KProcess, I: id, Gen: gen} }

// IsNil reports whether v is the Nil value.
func (v Value) IsNil() bool { return v.Kind == KNil }

// Truthy reports whether v counts as true in a boolean context: nil and
// false are falsy, every other value (including 0, 0.0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KNil:
		return false
	case KBool:
		return v.I != 0
	default:
		return true
	}
}

func (v Value) AsBool() bool   { return v.I != 0 }
func (v Value) AsInt() int64   { return v.I }
func (v Value) AsFloat() float64 {
	if v.Kind == KInt {
		return float64(v.I)
	}
	return v.F
}

func (v Value) AsString() *StringObj { return v.Ref.(*StringObj) }
func (v Value) AsArray() *Array      { return v.Ref.(*Array) }
func (v Value) AsMap() *Map          { return v.Ref.(*Map) }
func (v Value) AsClassInstance() *ClassInstance             { return v.Ref.(*ClassInstance) }
func (v Value) AsStructInstance() *StructInstance           { return v.Ref.(*StructInstance) }
func (v Value) AsNativeClassInstance() *NativeClassInstance { return v.Ref.(*NativeClassInstance) }
func (v Value) AsNativeStructInstance() *NativeStructInstance {
	return v.Ref.(*NativeStructInstance)
}
func (v Value) AsClosure() *Closure   { return v.Ref.(*Closure) }
func (v Value) AsFunction() *Function { return v.Ref.(*Function) }
func (v Value) AsError() *RuntimeError { return v.Ref.(*RuntimeError) }
func (v Value) AsNativeFunc() *NativeFuncEntry { return v.Ref.(*NativeFuncEntry) }
func (v Value) AsBoundMethod() *BoundMethod    { return v.Ref.(*BoundMethod) }

// Type returns the script-visible type name of v.
func (v Value) Type() string { return v.Kind.String() }

// GoString renders v for diagnostics and the disassembler; it is not the
// script-level string conversion (there is none in the core: string
// formatting of values is a host/embedder concern).
func (v Value) GoString() string {
	switch v.Kind {
	case KNil:
		return "nil"
	case KBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KInt:
		return fmt.Sprintf("%d", v.I)
	case KFloat:
		return formatFloat(v.F)
	case KString:
		return v.AsString().String()
	case KArray:
		return fmt.Sprintf("array(%d)", v.AsArray().Len())
	case KMap:
		return fmt.Sprintf("map(%d)", v.AsMap().Len())
	case KClassInstance:
		return fmt.Sprintf("%s(%p)", v.AsClassInstance().Def.Name, v.Ref)
	case KStructInstance:
		return fmt.Sprintf("%s(%p)", v.AsStructInstance().Def.Name, v.Ref)
	case KNativeClassInstance:
		return fmt.Sprintf("%s(%p)", v.AsNativeClassInstance().Def.Name, v.Ref)
	case KNativeStructInstance:
		return fmt.Sprintf("%s(%p)", v.AsNativeStructInstance().Def.Name, v.Ref)
	case KClosure:
		return fmt.Sprintf("closure(%s)", v.AsClosure().Fn.Name)
	case KFunction:
		return fmt.Sprintf("function(%s)", v.AsFunction().Name)
	case KProcess:
		return fmt.Sprintf("process(%d)", v.I)
	case KError:
		return v.AsError().Error()
	case KNativeFunc:
		return fmt.Sprintf("native_function(%s)", v.AsNativeFunc().Name)
	case KBoundMethod:
		return "bound_method"
	default:
		return "?"
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "+inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%g", f)
}

// Equal implements ==: structural for primitives, identity
// for heap objects other than strings (strings are interned, so pointer
// identity already implements content equality).
func Equal(x, y Value) bool {
	if isNumeric(x.Kind) && isNumeric(y.Kind) {
		return numEqual(x, y)
	}
	if x.Kind != y.Kind {
		return false
	}
	switch x.Kind {
	case KNil:
		return true
	case KBool:
		return x.I == y.I
	case KProcess:
		return x.I == y.I && x.Gen == y.Gen
	default:
		// strings included: interning makes identity equivalent to content
		// equality.
		return x.Ref == y.Ref
	}
}

func isNumeric(k Kind) bool { return k == KInt || k == KFloat }

func numEqual(x, y Value) bool {
	if x.Kind == KInt && y.Kind == KInt {
		return x.I == y.I
	}
	return x.AsFloat() == y.AsFloat()
}
