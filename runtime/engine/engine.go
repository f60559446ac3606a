// Package engine implements the embedding API of the runtime: one
// Interpreter owns the string intern table, the global variable table,
// the native registrations, the process definition registry and the
// scheduler — there are no package-level singletons. The host drives it
// with Update and Render once per tick and projects script state onto its
// entities through the hooks.
package engine

import (
	"fmt"
	"os"
	"runtime"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/lang/parser"
	"github.com/mna/divm/lang/resolver"
	"github.com/mna/divm/runtime/fiber"
	"github.com/mna/divm/runtime/interop"
	"github.com/mna/divm/runtime/process"
	"github.com/mna/divm/runtime/value"
)

// FileLoader resolves an include directive to the source blob it names.
type FileLoader func(path string) ([]byte, error)

// Interpreter is the runtime engine. The zero value is not usable; create
// one with New.
type Interpreter struct {
	interner *value.Interner
	registry *interop.Registry
	sched    *process.Scheduler

	globals     []value.Value
	globalIndex map[string]int

	classes map[string]*value.ClassDef
	structs map[string]*value.StructDef

	// consts are host-provided universal values (the signal kind names and
	// anything the embedder adds with SetConst).
	consts map[string]value.Value

	fileLoader FileLoader
	errSink    func(error)
}

// New returns an engine with the built-in natives and signal constants
// registered.
func New() *Interpreter {
	it := &Interpreter{
		interner:    value.NewInterner(),
		registry:    interop.NewRegistry(),
		globalIndex: make(map[string]int),
		classes:     make(map[string]*value.ClassDef),
		structs:     make(map[string]*value.StructDef),
		consts:      make(map[string]value.Value),
	}
	it.sched = process.NewScheduler(it)
	interop.RegisterBuiltins(it.registry)

	it.consts["s_kill"] = value.Int(process.SigKill)
	it.consts["s_freeze"] = value.Int(process.SigFreeze)
	it.consts["s_wake"] = value.Int(process.SigWake)
	it.consts["s_hide"] = value.Int(process.SigHide)
	it.consts["s_show"] = value.Int(process.SigShow)
	return it
}

// SetHooks installs the host callbacks fired by the scheduler.
func (it *Interpreter) SetHooks(h process.Hooks) { it.sched.Hooks = h }

// SetErrorSink routes every runtime error that kills a process through sink;
// the engine never writes to stdout or stderr itself.
func (it *Interpreter) SetErrorSink(sink func(error)) {
	it.errSink = sink
	it.sched.ErrSink = sink
}

// SetFileLoader installs the callback resolving include directives.
func (it *Interpreter) SetFileLoader(l FileLoader) { it.fileLoader = l }

// SetMaxSteps bounds each fiber's lifetime instruction count (0 disables).
func (it *Interpreter) SetMaxSteps(n int64) { it.sched.MaxSteps = n }

// SetConst exposes a host-provided universal value under name.
func (it *Interpreter) SetConst(name string, v value.Value) { it.consts[name] = v }

// RegisterNative registers a native function callable from script.
func (it *Interpreter) RegisterNative(name string, fn value.NativeFunc, arity int) {
	it.registry.RegisterFunc(name, fn, arity)
}

// RegisterNativeProcess registers a native function that receives the
// currently-executing process.
func (it *Interpreter) RegisterNativeProcess(name string, fn value.NativeProcessFunc, arity int) {
	it.registry.RegisterProcessFunc(name, fn, arity)
}

// RegisterNativeStruct registers a native POD type; add its fields with
// AddStructField.
func (it *Interpreter) RegisterNativeStruct(name string, size int, ctor value.NativeStructCtor, dtor value.NativeStructDtor) *value.NativeStructDef {
	return it.registry.RegisterStruct(name, size, ctor, dtor)
}

// AddStructField declares a typed field on a registered native struct.
func (it *Interpreter) AddStructField(def *value.NativeStructDef, name string, offset int, typ value.PrimType) error {
	return it.registry.AddStructField(def, name, offset, typ)
}

// RegisterNativeClass registers a native opaque object type; add its
// methods and properties with AddNativeMethod and AddNativeProperty.
func (it *Interpreter) RegisterNativeClass(name string, ctor value.NativeClassCtor, dtor value.NativeClassDtor, arity int) *value.NativeClassDef {
	return it.registry.RegisterClass(name, ctor, dtor, arity)
}

// AddNativeMethod declares a named method on a registered native class.
func (it *Interpreter) AddNativeMethod(def *value.NativeClassDef, name string, fn value.NativeMethodFunc) {
	it.registry.AddMethod(def, name, fn)
}

// AddNativeProperty declares a named property; a nil setter makes it
// read-only.
func (it *Interpreter) AddNativeProperty(def *value.NativeClassDef, name string, get value.NativeGetter, set value.NativeSetter) {
	it.registry.AddProperty(def, name, get, set)
}

// Update advances the scheduler one tick.
func (it *Interpreter) Update(dt float64) { it.sched.Update(dt) }

// Render fires on_render for every alive, initialized process.
func (it *Interpreter) Render() { it.sched.Render() }

// GetTotalAlive reports the number of processes on the alive list.
func (it *Interpreter) GetTotalAlive() int { return it.sched.TotalAlive() }

// GetTotalProcesses reports the cumulative number of spawns.
func (it *Interpreter) GetTotalProcesses() int64 { return it.sched.TotalProcesses() }

// FindProcessByID returns the alive process with that ID, or nil.
func (it *Interpreter) FindProcessByID(id int64) *process.Process { return it.sched.FindByID(id) }

// KillAll marks every alive process dead; the next Update reaps them.
func (it *Interpreter) KillAll() { it.sched.KillAll() }

// Freeze and Unfreeze exclude and readmit a process from scheduling.
func (it *Interpreter) Freeze(id int64) bool   { return it.sched.Freeze(id) }
func (it *Interpreter) Unfreeze(id int64) bool { return it.sched.Unfreeze(id) }

// Scheduler exposes the underlying scheduler for host inspection between
// ticks.
func (it *Interpreter) Scheduler() *process.Scheduler { return it.sched }

// Interner returns the engine-wide string intern table.
func (it *Interpreter) Interner() *value.Interner { return it.interner }

// TryGetGlobal returns the value of a global by name.
func (it *Interpreter) TryGetGlobal(name string) (value.Value, bool) {
	i, ok := it.globalIndex[name]
	if !ok {
		return value.Nil, false
	}
	return it.globals[i], true
}

// SetGlobalByName overwrites a declared global, reporting whether it
// exists.
func (it *Interpreter) SetGlobalByName(name string, v value.Value) bool {
	i, ok := it.globalIndex[name]
	if !ok {
		return false
	}
	it.globals[i] = v
	return true
}

// CallProcess spawns the named process definition with the given arguments
// and runs it to its first yield, exactly as a script-level spawn would.
func (it *Interpreter) CallProcess(name string, args ...value.Value) (*process.Process, error) {
	def, ok := it.sched.DefByName(name)
	if !ok {
		return nil, fmt.Errorf("engine: unknown process %q", name)
	}
	p, rerr := it.sched.Spawn(def, args)
	if rerr != nil {
		return nil, rerr
	}
	return p, nil
}

// CallFunction invokes a global function (or any callable global) by name,
// synchronously, and returns its result. The callee may not suspend: a wait
// or frame at this level is an error.
func (it *Interpreter) CallFunction(name string, args ...value.Value) (value.Value, error) {
	v, ok := it.TryGetGlobal(name)
	if !ok {
		if entry, found := it.registry.Funcs[name]; found {
			v = value.Value{Kind: value.KNativeFunc, Ref: entry}
		} else {
			return value.Nil, fmt.Errorf("engine: unknown function %q", name)
		}
	}
	return it.callSync(v, args)
}

// callSync runs callee on a scratch fiber until completion.
func (it *Interpreter) callSync(callee value.Value, args []value.Value) (value.Value, error) {
	var fn *value.Function
	var clo *value.Closure
	switch callee.Kind {
	case value.KFunction:
		fn = callee.AsFunction()
	case value.KClosure:
		clo = callee.AsClosure()
		fn = clo.Fn
	case value.KNativeFunc:
		entry := callee.AsNativeFunc()
		if entry.Arity >= 0 && len(args) != entry.Arity {
			return value.Nil, value.NewError(value.ArgumentError, 0, "%s expects %d arguments, got %d", entry.Name, entry.Arity, len(args))
		}
		if entry.IsProcessFunc {
			return value.Nil, value.NewError(value.ContextError, 0, "%s requires a current process", entry.Name)
		}
		vals, err := entry.Fn(args)
		if err != nil {
			return value.Nil, err
		}
		if len(vals) == 0 {
			return value.Nil, nil
		}
		return vals[0], nil
	default:
		return value.Nil, value.NewError(value.TypeError, 0, "%s value is not callable", callee.Type())
	}

	f := fiber.New()
	f.MaxSteps = it.sched.MaxSteps
	f.Stack[0] = callee
	copy(f.Stack[1:], args)
	f.SP = 1 + len(args)
	if err := f.PushFrame(fn, clo, len(args)); err != nil {
		return value.Nil, err
	}
	f.State = fiber.Running

	ex := fiber.Run(it, f)
	switch ex.Reason {
	case fiber.ExitDone:
		return ex.Result, nil
	case fiber.ExitError:
		return value.Nil, ex.Err
	default:
		return value.Nil, value.NewError(value.ContextError, 0, "%s suspended outside of a process", fn.Name)
	}
}

// --- fiber.Host implementation -------------------------------------------

// Global returns the value in the engine-wide global slot.
func (it *Interpreter) Global(idx int) value.Value { return it.globals[idx] }

// SetGlobal overwrites the engine-wide global slot.
func (it *Interpreter) SetGlobal(idx int, v value.Value) { it.globals[idx] = v }

// Universal resolves a name the resolver left dynamic: a built-in or
// host-registered native, a native class or struct constructor (callable,
// so `Accumulator(40)` works without `new`), a host constant, or a global
// declared by a previously loaded chunk.
func (it *Interpreter) Universal(name string) (value.Value, bool) {
	if entry, ok := it.registry.Funcs[name]; ok {
		return value.Value{Kind: value.KNativeFunc, Ref: entry}, true
	}
	if def, ok := it.registry.Classes[name]; ok {
		return it.classCtorValue(def), true
	}
	if def, ok := it.registry.Structs[name]; ok {
		return it.structCtorValue(def), true
	}
	if v, ok := it.consts[name]; ok {
		return v, true
	}
	if i, ok := it.globalIndex[name]; ok {
		return it.globals[i], true
	}
	return value.Nil, false
}

// classCtorValue wraps a native class constructor as a callable value.
func (it *Interpreter) classCtorValue(def *value.NativeClassDef) value.Value {
	entry := &value.NativeFuncEntry{
		Name:  def.Name,
		Arity: def.Arity,
		Fn: func(args []value.Value) ([]value.Value, error) {
			v, err := it.newNativeClass(def, args)
			if err != nil {
				return nil, err
			}
			return []value.Value{v}, nil
		},
	}
	return value.Value{Kind: value.KNativeFunc, Ref: entry}
}

func (it *Interpreter) structCtorValue(def *value.NativeStructDef) value.Value {
	entry := &value.NativeFuncEntry{
		Name:  def.Name,
		Arity: -1,
		Fn: func(args []value.Value) ([]value.Value, error) {
			v, err := it.newNativeStruct(def, args)
			if err != nil {
				return nil, err
			}
			return []value.Value{v}, nil
		},
	}
	return value.Value{Kind: value.KNativeFunc, Ref: entry}
}

func (it *Interpreter) newNativeClass(def *value.NativeClassDef, args []value.Value) (value.Value, *value.RuntimeError) {
	if def.Arity >= 0 && len(args) != def.Arity {
		return value.Nil, value.NewError(value.ArgumentError, 0, "%s expects %d arguments, got %d", def.Name, def.Arity, len(args))
	}
	handle, err := def.Ctor(args)
	if err != nil {
		if rerr, ok := err.(*value.RuntimeError); ok {
			return value.Nil, rerr
		}
		return value.Nil, value.NewError(value.ScriptError, 0, "%s", err.Error())
	}
	inst := &value.NativeClassInstance{Def: def, Handle: handle}
	if def.Dtor != nil {
		// the destructor owns the handle; it runs when the instance becomes
		// unreachable from every script and host root.
		runtime.SetFinalizer(inst, func(i *value.NativeClassInstance) {
			i.Def.Dtor(i.Handle)
		})
	}
	return value.Value{Kind: value.KNativeClassInstance, Ref: inst}, nil
}

func (it *Interpreter) newNativeStruct(def *value.NativeStructDef, args []value.Value) (value.Value, *value.RuntimeError) {
	var buf []byte
	if def.Ctor != nil {
		b, err := def.Ctor(args)
		if err != nil {
			if rerr, ok := err.(*value.RuntimeError); ok {
				return value.Nil, rerr
			}
			return value.Nil, value.NewError(value.ScriptError, 0, "%s", err.Error())
		}
		buf = b
	} else {
		buf = make([]byte, def.Size)
	}
	if len(buf) != def.Size {
		return value.Nil, value.NewError(value.ScriptError, 0, "%s constructor returned %d bytes, declared size is %d", def.Name, len(buf), def.Size)
	}
	inst := &value.NativeStructInstance{Def: def, Buf: buf}
	if def.Dtor != nil {
		runtime.SetFinalizer(inst, func(i *value.NativeStructInstance) {
			i.Def.Dtor(i.Buf)
		})
	}
	return value.Value{Kind: value.KNativeStructInstance, Ref: inst}, nil
}

// NewInstance instantiates a script class, a native class or a native
// struct by name: script classes initialize their fields positionally.
func (it *Interpreter) NewInstance(name string, args []value.Value) (value.Value, *value.RuntimeError) {
	if cd, ok := it.classes[name]; ok {
		if len(args) > len(cd.Fields) {
			return value.Nil, value.NewError(value.ArgumentError, 0, "%s has %d fields, got %d constructor arguments", name, len(cd.Fields), len(args))
		}
		inst := value.NewClassInstance(cd)
		copy(inst.Fields, args)
		return value.Value{Kind: value.KClassInstance, Ref: inst}, nil
	}
	if def, ok := it.registry.Classes[name]; ok {
		return it.newNativeClass(def, args)
	}
	if def, ok := it.registry.Structs[name]; ok {
		return it.newNativeStruct(def, args)
	}
	return value.Nil, value.NewError(value.FieldError, 0, "unknown class %q", name)
}

// NewStructInstance instantiates a script struct with positional field
// values.
func (it *Interpreter) NewStructInstance(name string, args []value.Value) (value.Value, *value.RuntimeError) {
	sd, ok := it.structs[name]
	if !ok {
		return value.Nil, value.NewError(value.FieldError, 0, "unknown struct %q", name)
	}
	if len(args) > len(sd.Fields) {
		return value.Nil, value.NewError(value.ArgumentError, 0, "%s has %d fields, got %d constructor arguments", name, len(sd.Fields), len(args))
	}
	inst := value.NewStructInstance(sd)
	copy(inst.Fields, args)
	return value.Value{Kind: value.KStructInstance, Ref: inst}, nil
}

// Spawn implements the SPAWN opcode: look up the definition and spawn.
func (it *Interpreter) Spawn(name string, args []value.Value) (value.Value, *value.RuntimeError) {
	def, ok := it.sched.DefByName(name)
	if !ok {
		return value.Nil, value.NewError(value.FieldError, 0, "unknown process %q", name)
	}
	p, err := it.sched.Spawn(def, args)
	if err != nil {
		return value.Nil, err
	}
	return p.Ref(), nil
}

// Kill implements the KILL opcode: nil kills every alive process, a
// process reference or an ID kills one. Killing an already-gone process is
// a no-op.
func (it *Interpreter) Kill(target value.Value) *value.RuntimeError {
	switch target.Kind {
	case value.KNil:
		it.sched.KillAll()
		return nil
	case value.KProcess, value.KInt:
		it.sched.Kill(target.AsInt())
		return nil
	default:
		return value.NewError(value.TypeError, 0, "kill target must be a process or an id, got %s", target.Type())
	}
}

// SendSignal implements the SIGNAL opcode.
func (it *Interpreter) SendSignal(id, kind value.Value) *value.RuntimeError {
	switch id.Kind {
	case value.KProcess, value.KInt:
		it.sched.Signal(id.AsInt(), kind)
		return nil
	default:
		return value.NewError(value.TypeError, 0, "signal target must be a process or an id, got %s", id.Type())
	}
}

// Private reads the current process's private slot.
func (it *Interpreter) Private(idx int) (value.Value, *value.RuntimeError) {
	p := it.sched.Current()
	if p == nil {
		return value.Nil, value.NewError(value.ContextError, 0, "private slot access outside of a process")
	}
	return p.Privates[idx], nil
}

// SetPrivate writes the current process's private slot.
func (it *Interpreter) SetPrivate(idx int, v value.Value) *value.RuntimeError {
	p := it.sched.Current()
	if p == nil {
		return value.NewError(value.ContextError, 0, "private slot access outside of a process")
	}
	p.Privates[idx] = v
	return nil
}

// ProcessAttr reads another process's private slot through a reference.
// A stale reference (the process died) reads as nil, so scripts can probe
// a possibly-dead target without a try block.
func (it *Interpreter) ProcessAttr(ref value.Value, name string) (value.Value, *value.RuntimeError) {
	p := it.sched.Resolve(ref)
	if p == nil {
		return value.Nil, nil
	}
	def := it.sched.Def(p.DefIndex)
	idx, ok := def.PrivateIndex[name]
	if !ok {
		return value.Nil, value.NewError(value.FieldError, 0, "process %s has no private %q", p.Name, name)
	}
	return p.Privates[idx], nil
}

// SetProcessAttr writes another process's private slot through a
// reference; writes to a stale reference are dropped.
func (it *Interpreter) SetProcessAttr(ref value.Value, name string, v value.Value) *value.RuntimeError {
	p := it.sched.Resolve(ref)
	if p == nil {
		return nil
	}
	def := it.sched.Def(p.DefIndex)
	idx, ok := def.PrivateIndex[name]
	if !ok {
		return value.NewError(value.FieldError, 0, "process %s has no private %q", p.Name, name)
	}
	p.Privates[idx] = v
	return nil
}

// CurrentProcess returns the executing process for native process
// functions, nil at toplevel.
func (it *Interpreter) CurrentProcess() any {
	if p := it.sched.Current(); p != nil {
		return p
	}
	return nil
}

// --- compile and run ------------------------------------------------------

// Run compiles and executes source: declarations are registered and the
// top-level statements run synchronously. Incremental runs share the
// engine's global namespace with previously run chunks.
func (it *Interpreter) Run(name string, src []byte) error {
	prog, err := it.CompileSource(name, src)
	if err != nil {
		return err
	}
	return it.RunProgram(prog)
}

// CompileSource resolves includes, parses, resolves and compiles source
// without executing it.
func (it *Interpreter) CompileSource(name string, src []byte) (*compiler.Program, error) {
	src, err := it.expandIncludes(src, 0)
	if err != nil {
		return nil, err
	}
	chunk, err := parser.Parse(name, src)
	if err != nil {
		return nil, err
	}
	res, err := resolver.Resolve(chunk)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(res), nil
}

// RunProgram loads a compiled program into the engine and executes its
// top-level statements.
func (it *Interpreter) RunProgram(prog *compiler.Program) error {
	toplevel, err := it.loadProgram(prog)
	if err != nil {
		return err
	}
	_, err = it.callSync(value.Value{Kind: value.KFunction, Ref: toplevel}, nil)
	return err
}

// CompileToBytecode compiles source and writes the on-disk bytecode format
// to path.
func (it *Interpreter) CompileToBytecode(name string, src []byte, path string) error {
	prog, err := it.CompileSource(name, src)
	if err != nil {
		return err
	}
	return os.WriteFile(path, compiler.Serialize(prog), 0o644)
}

// LoadBytecode reads a bytecode file written by CompileToBytecode and
// executes it exactly as Run would have executed its source.
func (it *Interpreter) LoadBytecode(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := compiler.Deserialize(data)
	if err != nil {
		return err
	}
	return it.RunProgram(prog)
}
