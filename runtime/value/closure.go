package value

import "github.com/mna/divm/lang/compiler"

// Function is a compiled, named, immutable function record: a top-level
// chunk's main body, a named fn, a process constructor, or a class method.
// Constants are resolved once at load time into Consts, so the interpreter
// never re-derives a Value from the raw constant pool on every CONSTANT
// opcode.
type Function struct {
	Name      string
	Code      *compiler.Funcode
	Consts    []Value // one Value per Code.Prog.Constants entry, materialized at load
	Arity     int     // NumParams; -1 if HasVarArg (variadic, always accepted)
	NumLocals int

	// GlobalMap translates the compiled program's global slot indices into
	// the engine's global table, so chunks compiled separately (incremental
	// runs, loaded bytecode) share one global namespace. One shared slice per
	// loaded program.
	GlobalMap []int

	// Closures holds the materialized Function for every closure-literal
	// Funcode of the program, indexed by the MAKEFUNC operand. One shared
	// slice per loaded program.
	Closures []*Function
}

// ClosureFn returns the materialized target of a MAKEFUNC operand.
func (fn *Function) ClosureFn(i int) *Function { return fn.Closures[i] }

// Cell is a box holding one Value, used for a local variable captured by a
// nested closure: a captured local is a still-live stack slot while its
// frame runs, and a closed-over value after it exits. Representing the box
// as a heap pointer from the start sidesteps the frame-exit transition: the
// cell already lives on the heap, whether or not its owning frame is still
// on the fiber's frame stack.
type Cell struct{ V Value }

// CellValue wraps a cell box so it can occupy a local slot; see KCell.
func CellValue(c *Cell) Value { return Value{Kind: KCell, Ref: c} }

// AsCell returns the cell box held in a KCell value.
func (v Value) AsCell() *Cell { return v.Ref.(*Cell) }

// Closure is a Function plus its captured upvalues, one Cell per entry in
// Code.Freevars.
type Closure struct {
	Fn      *Function
	Upvals  []*Cell
}

// NativeFunc is a host-registered native function: it
// receives the positional arguments and returns the result values to leave
// on the operand stack.
type NativeFunc func(args []Value) ([]Value, error)

// NativeProcessFunc is like NativeFunc but additionally receives the
// currently-executing process, as an opaque handle to avoid an import cycle
// between runtime/value and runtime/process. The interop
// layer is responsible for the type assertion back to *process.Process.
type NativeProcessFunc func(proc any, args []Value) ([]Value, error)

// NativeFuncEntry is the Value payload for a registered native function or
// native process function, looked up by name through the UNIVERSAL opcode.
type NativeFuncEntry struct {
	Name          string
	Arity         int // -1 means variadic, always accepted
	Fn            NativeFunc
	ProcFn        NativeProcessFunc
	IsProcessFunc bool
}

// BoundMethod is the Value produced by ATTR when the named attribute of a
// class or native-class instance resolves to a method rather than
// a field: the receiver plus either a script Function or a native method
// thunk, ready to be invoked by CALL without re-resolving the receiver.
type BoundMethod struct {
	Recv   Value
	Fn     *Function        // set for a script class method
	Native NativeMethodFunc // set for a native class method
}
