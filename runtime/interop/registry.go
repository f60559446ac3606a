// Package interop implements the host-facing registration surface of the
// runtime: native functions, native process-bound functions,
// native structs with typed fields, and native classes with methods and
// properties, plus the built-in natives every engine carries.
package interop

import (
	"fmt"

	"github.com/mna/divm/runtime/value"
)

// Registry holds every host registration, looked up by the interpreter's
// UNIVERSAL opcode through the engine.
type Registry struct {
	Funcs   map[string]*value.NativeFuncEntry
	Structs map[string]*value.NativeStructDef
	Classes map[string]*value.NativeClassDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		Funcs:   make(map[string]*value.NativeFuncEntry),
		Structs: make(map[string]*value.NativeStructDef),
		Classes: make(map[string]*value.NativeClassDef),
	}
}

// RegisterFunc registers a native function under name. An arity of -1
// accepts any argument count.
func (r *Registry) RegisterFunc(name string, fn value.NativeFunc, arity int) {
	r.Funcs[name] = &value.NativeFuncEntry{Name: name, Arity: arity, Fn: fn}
}

// RegisterProcessFunc registers a native function that additionally
// receives the currently-executing process; calling it without a current
// process raises ContextError.
func (r *Registry) RegisterProcessFunc(name string, fn value.NativeProcessFunc, arity int) {
	r.Funcs[name] = &value.NativeFuncEntry{Name: name, Arity: arity, ProcFn: fn, IsProcessFunc: true}
}

// RegisterStruct registers a native POD layout and returns its definition
// handle for AddStructField. A nil ctor zero-fills the instance buffer.
func (r *Registry) RegisterStruct(name string, size int, ctor value.NativeStructCtor, dtor value.NativeStructDtor) *value.NativeStructDef {
	def := &value.NativeStructDef{
		Name:       name,
		Size:       size,
		Ctor:       ctor,
		Dtor:       dtor,
		FieldIndex: make(map[string]int),
	}
	r.Structs[name] = def
	return def
}

// AddStructField declares a typed field at a byte offset of the struct's
// instance buffer.
func (r *Registry) AddStructField(def *value.NativeStructDef, name string, offset int, typ value.PrimType) error {
	if offset < 0 || offset+typ.Size() > def.Size {
		return fmt.Errorf("interop: field %s.%s at offset %d overflows the %d-byte instance", def.Name, name, offset, def.Size)
	}
	def.FieldIndex[name] = len(def.Fields)
	def.Fields = append(def.Fields, value.NativeField{Name: name, Offset: offset, Type: typ})
	return nil
}

// RegisterClass registers a native opaque object type and returns its
// definition handle for AddMethod and AddProperty.
func (r *Registry) RegisterClass(name string, ctor value.NativeClassCtor, dtor value.NativeClassDtor, arity int) *value.NativeClassDef {
	def := &value.NativeClassDef{
		Name:       name,
		Ctor:       ctor,
		Dtor:       dtor,
		Arity:      arity,
		Methods:    make(map[string]value.NativeMethodFunc),
		Properties: make(map[string]value.NativeProperty),
	}
	r.Classes[name] = def
	return def
}

// AddMethod declares a named method on the class.
func (r *Registry) AddMethod(def *value.NativeClassDef, name string, fn value.NativeMethodFunc) {
	def.Methods[name] = fn
}

// AddProperty declares a named property; a nil setter makes it read-only.
func (r *Registry) AddProperty(def *value.NativeClassDef, name string, get value.NativeGetter, set value.NativeSetter) {
	def.Properties[name] = value.NativeProperty{Get: get, Set: set}
}
