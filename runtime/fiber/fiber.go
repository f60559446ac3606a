// Package fiber implements the suspendable execution context of the runtime
// and the bytecode interpreter that drives it. A fiber owns an operand
// stack, a call-frame stack and a gosub return-address stack; the
// interpreter advances the fiber one quantum at a time, returning an Exit
// describing why it stopped (done, time-based yield, frame yield, or error).
//
// The interpreter reaches everything outside the fiber itself (globals,
// native registrations, process operations, the current process's private
// slots) through the Host interface, implemented by runtime/engine.
package fiber

import (
	"github.com/mna/divm/runtime/value"
)

// State is the lifecycle state of a fiber, and of the process that owns
// it.
type State uint8

const (
	Dead State = iota
	Running
	Suspended
	Frozen
)

var stateNames = [...]string{
	Dead:      "dead",
	Running:   "running",
	Suspended: "suspended",
	Frozen:    "frozen",
}

func (s State) String() string { return stateNames[s] }

const (
	// DefaultStackCap is the fixed operand stack capacity of a fiber.
	DefaultStackCap = 256
	// MaxFrames bounds the call-frame stack.
	MaxFrames = 64
	// MaxGosubs bounds the gosub return-address stack.
	MaxGosubs = 32
)

// Frame is one entry of the call-frame stack: the function being executed,
// its closure when called through one, the saved instruction pointer, and
// the operand-stack index of the callable slot. Slot Base holds the callable
// itself, Base+1..Base+NumLocals its local variable region, and the operand
// temporaries grow above that.
type Frame struct {
	Fn  *value.Function
	Clo *value.Closure
	PC  uint32
	// Base is the operand-stack index of the callable slot.
	Base int
	// GosubBase and IterBase are the fiber's gosub-stack and iterator-stack
	// depths when this frame was pushed; returning from (or unwinding) the
	// frame truncates back to them.
	GosubBase int
	IterBase  int
}

// Iterator is one entry of a fiber's active-iterator stack (a for-in loop in
// progress). Map iteration snapshots the key set when the loop starts, so
// mutating the map inside the loop does not invalidate the iterator.
type Iterator struct {
	arr  *value.Array
	keys []*value.StringObj
	i    int
}

// Next returns the next element (arrays) or key (maps) and whether one
// remained.
func (it *Iterator) Next() (value.Value, bool) {
	if it.arr != nil {
		if v, ok := it.arr.Get(it.i); ok {
			it.i++
			return v, true
		}
		return value.Nil, false
	}
	if it.i < len(it.keys) {
		so := it.keys[it.i]
		it.i++
		return value.Value{Kind: value.KString, Ref: so}, true
	}
	return value.Nil, false
}

// Fiber is a suspendable execution context.
type Fiber struct {
	Stack  []value.Value
	SP     int
	Frames []Frame
	Gosubs []uint32
	Iters  []Iterator

	State      State
	ResumeTime float64 // absolute seconds, meaningful only when Suspended

	// MaxSteps aborts a runaway quantum after this many instructions when
	// non-zero; Steps accumulates across the fiber's lifetime.
	MaxSteps int64
	Steps    int64
}

// New returns a dead fiber with the default stack capacity.
func New() *Fiber {
	return &Fiber{
		Stack:  make([]value.Value, DefaultStackCap),
		Frames: make([]Frame, 0, 8),
	}
}

// Reset returns the fiber to its freshly-created state: dead, empty stacks,
// retained allocations. Stack slots are zeroed so recycled fibers do not
// root heap objects from their previous life.
func (f *Fiber) Reset() {
	for i := range f.Stack[:f.SP] {
		f.Stack[i] = value.Nil
	}
	f.SP = 0
	f.Frames = f.Frames[:0]
	f.Gosubs = f.Gosubs[:0]
	f.Iters = f.Iters[:0]
	f.State = Dead
	f.ResumeTime = 0
	f.Steps = 0
}

// Alive reports whether the fiber still has work: any state but Dead.
func (f *Fiber) Alive() bool { return f.State != Dead }

// push appends v, the caller must have checked capacity.
func (f *Fiber) push(v value.Value) {
	f.Stack[f.SP] = v
	f.SP++
}

// PushFrame arranges the stack for a call to callee with the argc arguments
// currently on top of the stack (callee below them), checks arity, reserves
// the local region and wraps cell locals, and pushes the call frame. It is
// used both by the interpreter's CALL and by the engine to start a fiber at
// its entry function.
func (f *Fiber) PushFrame(fn *value.Function, clo *value.Closure, argc int) *value.RuntimeError {
	if len(f.Frames) >= MaxFrames {
		return value.NewError(value.StackOverflowError, 0, "call stack limit of %d frames exceeded", MaxFrames)
	}
	if fn.Arity >= 0 && argc != fn.Arity {
		return value.NewError(value.ArgumentError, 0, "%s expects %d arguments, got %d", fn.Name, fn.Arity, argc)
	}

	base := f.SP - argc - 1
	floor := base + 1 + fn.NumLocals
	if floor+fn.Code.MaxStack > len(f.Stack) {
		return value.NewError(value.StackOverflowError, 0, "operand stack exhausted calling %s", fn.Name)
	}

	// A variadic function accepts any count: extras are dropped, missing
	// parameters read as nil.
	np := fn.Code.NumParams
	for i := base + 1 + argc; i < floor; i++ {
		f.Stack[i] = value.Nil
	}
	if argc > np {
		for i := base + 1 + np; i <= base+argc; i++ {
			f.Stack[i] = value.Nil
		}
	}
	f.SP = floor

	for _, idx := range fn.Code.Cells {
		slot := base + 1 + idx
		f.Stack[slot] = value.CellValue(&value.Cell{V: f.Stack[slot]})
	}

	f.Frames = append(f.Frames, Frame{Fn: fn, Clo: clo, Base: base, GosubBase: len(f.Gosubs), IterBase: len(f.Iters)})
	return nil
}

// ExitReason says why a quantum ended.
type ExitReason uint8

const (
	// ExitDone means the fiber's last frame returned; the fiber is dead.
	ExitDone ExitReason = iota
	// ExitYield is a WAIT: the fiber suspends for YieldMs milliseconds.
	ExitYield
	// ExitFrame is a FRAME: the owning process suspends until FramePct
	// percent of the next host frame has elapsed.
	ExitFrame
	// ExitError means an error unwound past the last handler; the fiber is
	// dead and Err carries the error.
	ExitError
)

// Exit describes how a quantum ended.
type Exit struct {
	Reason   ExitReason
	YieldMs  float64
	FramePct float64
	Err      *value.RuntimeError
	// Result is the value returned by the outermost frame, meaningful for
	// ExitDone (used by the engine's synchronous call entry points).
	Result value.Value
}
