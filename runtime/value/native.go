package value

import (
	"encoding/binary"
	"math"
)

// PrimType is one of the fixed-width primitive types a NativeStructDef field
// may have.
type PrimType uint8

const (
	I8 PrimType = iota
	U8
	I16
	U16
	I32
	U32
	F32
	F64
)

// Size reports the byte width of the primitive type.
func (t PrimType) Size() int {
	switch t {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case F64:
		return 8
	default:
		return 0
	}
}

// NativeField describes one typed field of a NativeStructDef: its name, its
// byte offset within the instance buffer, and its primitive type.
type NativeField struct {
	Name   string
	Offset int
	Type   PrimType
}

// NativeStructCtor builds the raw byte buffer for a new instance from its
// constructor arguments.
type NativeStructCtor func(args []Value) ([]byte, error)

// NativeStructDtor runs any cleanup needed when an instance becomes
// unreachable (e.g. releasing a handle embedded in the buffer).
type NativeStructDtor func(buf []byte)

// NativeStructDef is a host-registered POD layout: name, total
// instance size, constructor/destructor callbacks, and an ordered field
// table giving bit-exact load/store access at each field's byte offset.
type NativeStructDef struct {
	Name       string
	Size       int
	Ctor       NativeStructCtor
	Dtor       NativeStructDtor
	Fields     []NativeField
	FieldIndex map[string]int
}

// NativeStructInstance is a live instance: Def plus a raw byte buffer of
// Def.Size bytes.
type NativeStructInstance struct {
	Def *NativeStructDef
	Buf []byte
}

// GetField reads the named field with a memcpy-style bit-exact decode at its
// declared offset and primitive type, returning it as a Value (int fields as
// KInt, float fields as KFloat).
func (ns *NativeStructInstance) GetField(idx int) Value {
	f := ns.Def.Fields[idx]
	b := ns.Buf[f.Offset:]
	switch f.Type {
	case I8:
		return Int(int64(int8(b[0])))
	case U8:
		return Int(int64(b[0]))
	case I16:
		return Int(int64(int16(binary.LittleEndian.Uint16(b))))
	case U16:
		return Int(int64(binary.LittleEndian.Uint16(b)))
	case I32:
		return Int(int64(int32(binary.LittleEndian.Uint32(b))))
	case U32:
		return Int(int64(binary.LittleEndian.Uint32(b)))
	case F32:
		return Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case F64:
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	default:
		return Nil
	}
}

// SetField writes v into the named field with a memcpy-style bit-exact
// encode at its declared offset and primitive type.
func (ns *NativeStructInstance) SetField(idx int, v Value) {
	f := ns.Def.Fields[idx]
	b := ns.Buf[f.Offset:]
	switch f.Type {
	case I8, U8:
		b[0] = byte(v.AsInt())
	case I16, U16:
		binary.LittleEndian.PutUint16(b, uint16(v.AsInt()))
	case I32, U32:
		binary.LittleEndian.PutUint32(b, uint32(v.AsInt()))
	case F32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v.AsFloat())))
	case F64:
		binary.LittleEndian.PutUint64(b, math.Float64bits(v.AsFloat()))
	}
}

// NativeClassCtor constructs a new opaque native object and returns the
// owning handle.
type NativeClassCtor func(args []Value) (any, error)

// NativeClassDtor frees a handle previously returned by a NativeClassCtor.
type NativeClassDtor func(handle any)

// NativeMethodFunc is a C-callable-style thunk dispatched by method name; it
// receives the instance handle and the call arguments and returns the
// results to push back on the operand stack.
type NativeMethodFunc func(handle any, args []Value) ([]Value, error)

// NativeGetter reads a property value from handle.
type NativeGetter func(handle any) (Value, error)

// NativeSetter writes a property value to handle. A property without a
// setter is read-only: assignment raises ReadOnlyError.
type NativeSetter func(handle any, v Value) error

// NativeProperty is a (getter, optional setter) pair.
type NativeProperty struct {
	Get NativeGetter
	Set NativeSetter // nil if read-only
}

// NativeClassDef is a host-registered opaque object type.
type NativeClassDef struct {
	Name       string
	Ctor       NativeClassCtor
	Dtor       NativeClassDtor
	Arity      int
	Methods    map[string]NativeMethodFunc
	Properties map[string]NativeProperty
}

// NativeClassInstance is a live instance: Def plus the opaque handle
// returned by Def.Ctor.
type NativeClassInstance struct {
	Def    *NativeClassDef
	Handle any
}
