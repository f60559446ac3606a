package fiber

import (
	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/lang/token"
	"github.com/mna/divm/runtime/value"
)

// Host is everything the interpreter needs from outside the fiber: the
// string interner, the engine-wide global table, host-registered universal
// names, and the process operations. runtime/engine implements it; keeping
// it an interface here avoids an import cycle between the interpreter and
// the process scheduler.
type Host interface {
	Interner() *value.Interner

	Global(idx int) value.Value
	SetGlobal(idx int, v value.Value)

	// Universal resolves a name that the resolver could not bind statically:
	// a native function, a native class or struct constructor, or a
	// host-provided constant.
	Universal(name string) (value.Value, bool)

	// NewInstance instantiates a script class, a native class or a native
	// struct by name; NewStructInstance a script struct.
	NewInstance(name string, args []value.Value) (value.Value, *value.RuntimeError)
	NewStructInstance(name string, args []value.Value) (value.Value, *value.RuntimeError)

	// Spawn creates a process from the named definition, runs it to its
	// first yield, and returns the process reference.
	Spawn(name string, args []value.Value) (value.Value, *value.RuntimeError)
	// Kill marks the target process dead; a nil target kills every alive
	// process.
	Kill(target value.Value) *value.RuntimeError
	// SendSignal delivers kind to the target's signal slot (or kills it when
	// kind is the kill signal).
	SendSignal(id, kind value.Value) *value.RuntimeError

	// Private and SetPrivate access the currently-executing process's
	// private slot array; they fail with ContextError when no process is
	// current.
	Private(idx int) (value.Value, *value.RuntimeError)
	SetPrivate(idx int, v value.Value) *value.RuntimeError

	// ProcessAttr and SetProcessAttr implement `ref.x` access to another
	// process's privileged private slots through a process reference.
	ProcessAttr(ref value.Value, name string) (value.Value, *value.RuntimeError)
	SetProcessAttr(ref value.Value, name string, v value.Value) *value.RuntimeError

	// CurrentProcess returns the process whose fiber is executing, as an
	// opaque handle for native process functions, or nil at toplevel.
	CurrentProcess() any
}

// Run advances f until it yields, finishes or dies on an unhandled error,
// and reports how it stopped. The caller (the process scheduler, or the
// engine's synchronous call entry points) owns the resulting state
// transition; Run itself only marks the fiber Dead on ExitDone/ExitError.
func Run(host Host, f *Fiber) Exit {
	if len(f.Frames) == 0 {
		f.State = Dead
		return Exit{Reason: ExitDone, Result: value.Nil}
	}

	var (
		fr   = &f.Frames[len(f.Frames)-1]
		fn   = fr.Fn
		code = fn.Code.Code
		pc   = fr.PC
		sp   = f.SP

		inFlight *value.RuntimeError
	)
	in := host.Interner()
	stack := f.Stack

	reload := func() {
		fr = &f.Frames[len(f.Frames)-1]
		fn = fr.Fn
		code = fn.Code.Code
		pc = fr.PC
		sp = f.SP
	}
	// errPos resolves the source position of the current instruction for
	// error reporting.
	errPos := func() token.Pos { return fn.Code.PosAt(fr.PC) }
	fail := func(kind value.ErrorKind, format string, args ...any) {
		inFlight = value.NewError(kind, errPos(), format, args...)
	}
	failErr := func(err *value.RuntimeError) {
		if err.Pos == 0 {
			err.Pos = errPos()
		}
		inFlight = err
	}

	for {
		f.Steps++
		if f.MaxSteps > 0 && f.Steps > f.MaxSteps {
			err := value.NewError(value.ScriptError, errPos(), "step budget of %d instructions exceeded", f.MaxSteps)
			f.Reset()
			return Exit{Reason: ExitError, Err: err}
		}

		insnStart := pc
		fr.PC = pc // instruction start, for error positions and catch ranges
		op := compiler.Opcode(code[pc])
		pc++
		var arg uint32
		if op >= compiler.OpcodeArgMin {
			for s := uint(0); ; s += 7 {
				b := code[pc]
				pc++
				arg |= uint32(b&0x7f) << s
				if b < 0x80 {
					break
				}
			}
		}

		switch op {
		case compiler.NOP:
			// nop

		case compiler.DUP:
			stack[sp] = stack[sp-1]
			sp++

		case compiler.DUP2:
			stack[sp] = stack[sp-2]
			stack[sp+1] = stack[sp-1]
			sp += 2

		case compiler.POP:
			sp--

		case compiler.EXCH:
			stack[sp-2], stack[sp-1] = stack[sp-1], stack[sp-2]

		case compiler.LT, compiler.LE, compiler.GT, compiler.GE,
			compiler.EQL, compiler.NEQ,
			compiler.PLUS, compiler.MINUS, compiler.STAR, compiler.SLASH,
			compiler.SLASHSLASH, compiler.PERCENT, compiler.CIRCUMFLEX,
			compiler.AMPERSAND, compiler.PIPE, compiler.LTLT, compiler.GTGT:
			y := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			z, err := value.BinaryOp(op, x, y, in, errPos())
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = z
			sp++

		case compiler.UMINUS, compiler.NOT, compiler.TILDE:
			x := stack[sp-1]
			sp--
			z, err := value.UnaryOp(op, x, errPos())
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = z
			sp++

		case compiler.NIL:
			stack[sp] = value.Nil
			sp++

		case compiler.TRUE:
			stack[sp] = value.Bool(true)
			sp++

		case compiler.FALSE:
			stack[sp] = value.Bool(false)
			sp++

		case compiler.JMP:
			pc = arg

		case compiler.CJMP:
			cond := stack[sp-1]
			sp--
			if !cond.Truthy() {
				pc = arg
			}

		case compiler.ITERPUSH:
			x := stack[sp-1]
			sp--
			switch x.Kind {
			case value.KArray:
				f.Iters = append(f.Iters, Iterator{arr: x.AsArray()})
			case value.KMap:
				var keys []*value.StringObj
				x.AsMap().Range(func(k string, _ value.Value) bool {
					keys = append(keys, in.Intern(k))
					return true
				})
				f.Iters = append(f.Iters, Iterator{keys: keys})
			default:
				fail(value.TypeError, "%s value is not iterable", x.Type())
			}

		case compiler.ITERJMP:
			it := &f.Iters[len(f.Iters)-1]
			if v, ok := it.Next(); ok {
				stack[sp] = v
				sp++
			} else {
				pc = arg
			}

		case compiler.ITERPOP:
			f.Iters = f.Iters[:len(f.Iters)-1]

		case compiler.GOSUB:
			if len(f.Gosubs) >= MaxGosubs {
				fail(value.StackOverflowError, "gosub stack limit of %d exceeded", MaxGosubs)
				break
			}
			f.Gosubs = append(f.Gosubs, pc)
			pc = arg

		case compiler.RETSUB:
			if len(f.Gosubs) <= fr.GosubBase {
				fail(value.ScriptError, "retsub without a matching gosub")
				break
			}
			pc = f.Gosubs[len(f.Gosubs)-1]
			f.Gosubs = f.Gosubs[:len(f.Gosubs)-1]

		case compiler.RETURN:
			result := stack[sp-1]
			sp--
			f.Gosubs = f.Gosubs[:fr.GosubBase]
			f.Iters = f.Iters[:fr.IterBase]
			base := fr.Base
			f.Frames = f.Frames[:len(f.Frames)-1]
			if len(f.Frames) == 0 {
				f.SP = sp
				f.Reset()
				return Exit{Reason: ExitDone, Result: result}
			}
			// the callable slot becomes the call's result.
			for i := base + 1; i < sp; i++ {
				stack[i] = value.Nil
			}
			stack[base] = result
			f.SP = base + 1
			reload()

		case compiler.THROW:
			v := stack[sp-1]
			sp--
			if v.Kind == value.KError {
				failErr(v.AsError())
			} else {
				err := value.NewError(value.ScriptError, errPos(), "%s", v.GoString())
				err.Value = v
				inFlight = err
			}

		case compiler.CONSTANT:
			stack[sp] = fn.Consts[arg]
			sp++

		case compiler.MAKEARRAY:
			n := int(arg)
			arr := value.NewArray(stack[sp-n : sp])
			sp -= n
			stack[sp] = value.Value{Kind: value.KArray, Ref: arr}
			sp++

		case compiler.MAKEMAP0:
			stack[sp] = value.Value{Kind: value.KMap, Ref: value.NewMap(4)}
			sp++

		case compiler.MAKEFUNC:
			target := fn.ClosureFn(int(arg))
			ups := make([]*value.Cell, len(target.Code.FreeSrc))
			for i, src := range target.Code.FreeSrc {
				if src.FromCell {
					ups[i] = stack[fr.Base+1+src.Index].AsCell()
				} else {
					ups[i] = fr.Clo.Upvals[src.Index]
				}
			}
			stack[sp] = value.Value{Kind: value.KClosure, Ref: &value.Closure{Fn: target, Upvals: ups}}
			sp++

		case compiler.LOAD:
			stack[sp] = stack[fr.Base+1+int(arg)]
			sp++

		case compiler.SETLOCAL:
			stack[fr.Base+1+int(arg)] = stack[sp-1]
			sp--

		case compiler.LOCALCELL:
			stack[sp] = stack[fr.Base+1+int(arg)].AsCell().V
			sp++

		case compiler.SETLOCALCELL:
			stack[fr.Base+1+int(arg)].AsCell().V = stack[sp-1]
			sp--

		case compiler.FREE:
			stack[sp] = fr.Clo.Upvals[arg].V
			sp++

		case compiler.SETFREE:
			fr.Clo.Upvals[arg].V = stack[sp-1]
			sp--

		case compiler.GLOBAL:
			stack[sp] = host.Global(fn.GlobalMap[arg])
			sp++

		case compiler.SETGLOBAL:
			host.SetGlobal(fn.GlobalMap[arg], stack[sp-1])
			sp--

		case compiler.UNIVERSAL:
			name := fn.Code.Prog.Names[arg]
			v, ok := host.Universal(name)
			if !ok {
				fail(value.FieldError, "undefined name %q", name)
				break
			}
			stack[sp] = v
			sp++

		case compiler.PRIVATE:
			v, err := host.Private(int(arg))
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = v
			sp++

		case compiler.SETPRIVATE:
			if err := host.SetPrivate(int(arg), stack[sp-1]); err != nil {
				failErr(err)
				break
			}
			sp--

		case compiler.FIELD:
			inst, err := methodReceiver(f, fr)
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = inst.Fields[arg]
			sp++

		case compiler.SETFIELD:
			inst, err := methodReceiver(f, fr)
			if err != nil {
				failErr(err)
				break
			}
			inst.Fields[arg] = stack[sp-1]
			sp--

		case compiler.INDEX:
			y := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			v, err := indexGet(x, y, in, errPos())
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = v
			sp++

		case compiler.SETINDEX:
			nv := stack[sp-1]
			y := stack[sp-2]
			x := stack[sp-3]
			sp -= 3
			if err := indexSet(x, y, nv, errPos()); err != nil {
				failErr(err)
			}

		case compiler.APPEND:
			el := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			if x.Kind != value.KArray {
				fail(value.TypeError, "cannot append to %s", x.Type())
				break
			}
			x.AsArray().Append(el)

		case compiler.ATTR:
			x := stack[sp-1]
			sp--
			v, err := attrGet(host, x, fn.Code.Prog.Names[arg], in, errPos())
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = v
			sp++

		case compiler.SETATTR:
			y := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			if err := attrSet(host, x, fn.Code.Prog.Names[arg], y, errPos()); err != nil {
				failErr(err)
			}

		case compiler.NEWCLASS, compiler.NEWSTRUCT:
			nameIdx, argc := compiler.UnpackNameArgc(arg)
			name := fn.Code.Prog.Names[nameIdx]
			args := append([]value.Value(nil), stack[sp-argc:sp]...)
			sp -= argc
			var v value.Value
			var err *value.RuntimeError
			if op == compiler.NEWSTRUCT {
				v, err = host.NewStructInstance(name, args)
			} else {
				v, err = host.NewInstance(name, args)
			}
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = v
			sp++

		case compiler.SPAWN:
			nameIdx, argc := compiler.UnpackNameArgc(arg)
			name := fn.Code.Prog.Names[nameIdx]
			args := append([]value.Value(nil), stack[sp-argc:sp]...)
			sp -= argc
			f.SP = sp
			ref, err := host.Spawn(name, args)
			if err != nil {
				failErr(err)
				break
			}
			stack[sp] = ref
			sp++

		case compiler.WAIT:
			ms := stack[sp-1]
			sp--
			if ms.Kind != value.KInt && ms.Kind != value.KFloat {
				fail(value.TypeError, "wait expects a number of milliseconds, got %s", ms.Type())
				break
			}
			fr.PC = pc
			f.SP = sp
			return Exit{Reason: ExitYield, YieldMs: ms.AsFloat()}

		case compiler.FRAME:
			pct := stack[sp-1]
			sp--
			if pct.Kind != value.KInt && pct.Kind != value.KFloat {
				fail(value.TypeError, "frame expects a percentage, got %s", pct.Type())
				break
			}
			fr.PC = pc
			f.SP = sp
			return Exit{Reason: ExitFrame, FramePct: pct.AsFloat()}

		case compiler.KILL:
			target := stack[sp-1]
			sp--
			if err := host.Kill(target); err != nil {
				failErr(err)
			}

		case compiler.SIGNAL:
			kind := stack[sp-1]
			id := stack[sp-2]
			sp -= 2
			if err := host.SendSignal(id, kind); err != nil {
				failErr(err)
			}

		case compiler.CALL:
			argc := int(arg)
			callee := stack[sp-argc-1]
			switch callee.Kind {
			case value.KFunction:
				fr.PC = pc
				f.SP = sp
				if err := f.PushFrame(callee.AsFunction(), nil, argc); err != nil {
					fr.PC = insnStart
					failErr(err)
					break
				}
				reload()

			case value.KClosure:
				clo := callee.AsClosure()
				fr.PC = pc
				f.SP = sp
				if err := f.PushFrame(clo.Fn, clo, argc); err != nil {
					fr.PC = insnStart
					failErr(err)
					break
				}
				reload()

			case value.KNativeFunc:
				entry := callee.AsNativeFunc()
				args := append([]value.Value(nil), stack[sp-argc:sp]...)
				sp -= argc + 1
				res, err := callNative(host, entry, args, errPos())
				if err != nil {
					failErr(err)
					break
				}
				stack[sp] = res
				sp++

			case value.KBoundMethod:
				bm := callee.AsBoundMethod()
				if bm.Native != nil {
					args := append([]value.Value(nil), stack[sp-argc:sp]...)
					sp -= argc + 1
					vals, err := bm.Native(bm.Recv.AsNativeClassInstance().Handle, args)
					if err != nil {
						failErr(asRuntimeError(err))
						break
					}
					stack[sp] = boxResults(vals, in)
					sp++
				} else {
					fr.PC = pc
					f.SP = sp
					// the callable slot keeps the bound method, so FIELD and
					// SETFIELD can reach the receiver.
					if err := f.PushFrame(bm.Fn, nil, argc); err != nil {
						fr.PC = insnStart
						failErr(err)
						break
					}
					reload()
				}

			default:
				fail(value.TypeError, "%s value is not callable", callee.Type())
			}

		default:
			fail(value.ScriptError, "illegal opcode %d", op)
		}

		if inFlight != nil {
			f.SP = sp
			if !f.unwind(inFlight) {
				f.Reset()
				return Exit{Reason: ExitError, Err: inFlight}
			}
			inFlight = nil
			reload()
		}
	}
}

// unwind walks the frame stack looking for an active try handler covering
// the faulting pc. When one is found the operand stack is cut back to the
// frame's local floor (statement depth), the error is bound to the catch
// variable if any, and execution is redirected to the handler. Returns false
// when no handler exists; the fiber is then dead.
func (f *Fiber) unwind(err *value.RuntimeError) bool {
	for len(f.Frames) > 0 {
		fr := &f.Frames[len(f.Frames)-1]
		catches := fr.Fn.Code.Catches
		// scan from the end: inner (later-reserved) entries win.
		for i := len(catches) - 1; i >= 0; i-- {
			c := catches[i]
			if c.PC0 <= fr.PC && fr.PC < c.PC1 {
				floor := fr.Base + 1 + fr.Fn.NumLocals
				for j := floor; j < f.SP; j++ {
					f.Stack[j] = value.Nil
				}
				f.SP = floor
				if c.HasVar {
					slot := fr.Base + 1 + c.VarLocal
					ev := value.ErrorValue(err)
					if f.Stack[slot].Kind == value.KCell {
						f.Stack[slot].AsCell().V = ev
					} else {
						f.Stack[slot] = ev
					}
				}
				fr.PC = c.StartPC
				return true
			}
		}
		f.Gosubs = f.Gosubs[:fr.GosubBase]
		f.Iters = f.Iters[:fr.IterBase]
		for j := fr.Base; j < f.SP; j++ {
			f.Stack[j] = value.Nil
		}
		f.SP = fr.Base
		f.Frames = f.Frames[:len(f.Frames)-1]
	}
	return false
}

func methodReceiver(f *Fiber, fr *Frame) (*value.ClassInstance, *value.RuntimeError) {
	v := f.Stack[fr.Base]
	if v.Kind != value.KBoundMethod {
		return nil, value.NewError(value.ContextError, 0, "instance field access outside of a method")
	}
	recv := v.AsBoundMethod().Recv
	if recv.Kind != value.KClassInstance {
		return nil, value.NewError(value.ContextError, 0, "instance field access on %s receiver", recv.Type())
	}
	return recv.AsClassInstance(), nil
}

func callNative(host Host, entry *value.NativeFuncEntry, args []value.Value, pos token.Pos) (value.Value, *value.RuntimeError) {
	if entry.Arity >= 0 && len(args) != entry.Arity {
		return value.Nil, value.NewError(value.ArgumentError, pos, "%s expects %d arguments, got %d", entry.Name, entry.Arity, len(args))
	}
	var (
		vals []value.Value
		err  error
	)
	if entry.IsProcessFunc {
		proc := host.CurrentProcess()
		if proc == nil {
			return value.Nil, value.NewError(value.ContextError, pos, "%s requires a current process", entry.Name)
		}
		vals, err = entry.ProcFn(proc, args)
	} else {
		vals, err = entry.Fn(args)
	}
	if err != nil {
		rerr := asRuntimeError(err)
		if rerr.Pos == 0 {
			rerr.Pos = pos
		}
		return value.Nil, rerr
	}
	return boxResults(vals, host.Interner()), nil
}

func asRuntimeError(err error) *value.RuntimeError {
	if rerr, ok := err.(*value.RuntimeError); ok {
		return rerr
	}
	return value.NewError(value.ScriptError, 0, "%s", err.Error())
}

// boxResults implements the native call convention's "count of result values
// left on the stack": zero results push nil, one pushes the value, several
// are boxed into an array so the stack discipline the compiler assumes (one
// result per call) holds.
func boxResults(vals []value.Value, _ *value.Interner) value.Value {
	switch len(vals) {
	case 0:
		return value.Nil
	case 1:
		return vals[0]
	default:
		return value.Value{Kind: value.KArray, Ref: value.NewArray(vals)}
	}
}

func indexGet(x, y value.Value, in *value.Interner, pos token.Pos) (value.Value, *value.RuntimeError) {
	switch x.Kind {
	case value.KArray:
		if y.Kind != value.KInt {
			return value.Nil, value.NewError(value.TypeError, pos, "array index must be an int, got %s", y.Type())
		}
		v, ok := x.AsArray().Get(int(y.I))
		if !ok {
			return value.Nil, value.NewError(value.IndexError, pos, "array index %d out of range [0,%d)", y.I, x.AsArray().Len())
		}
		return v, nil
	case value.KMap:
		if y.Kind != value.KString {
			return value.Nil, value.NewError(value.TypeError, pos, "map key must be a string, got %s", y.Type())
		}
		v, ok := x.AsMap().Get(y.AsString().String())
		if !ok {
			return value.Nil, value.NewError(value.KeyError, pos, "missing map key %q", y.AsString().String())
		}
		return v, nil
	case value.KString:
		if y.Kind != value.KInt {
			return value.Nil, value.NewError(value.TypeError, pos, "string index must be an int, got %s", y.Type())
		}
		s := x.AsString().String()
		i := int(y.I)
		if i < 0 || i >= len(s) {
			return value.Nil, value.NewError(value.IndexError, pos, "string index %d out of range [0,%d)", i, len(s))
		}
		return in.String(s[i : i+1]), nil
	default:
		return value.Nil, value.NewError(value.TypeError, pos, "cannot index %s", x.Type())
	}
}

func indexSet(x, y, nv value.Value, pos token.Pos) *value.RuntimeError {
	switch x.Kind {
	case value.KArray:
		if y.Kind != value.KInt {
			return value.NewError(value.TypeError, pos, "array index must be an int, got %s", y.Type())
		}
		if !x.AsArray().Set(int(y.I), nv) {
			return value.NewError(value.IndexError, pos, "array index %d out of range [0,%d)", y.I, x.AsArray().Len())
		}
		return nil
	case value.KMap:
		if y.Kind != value.KString {
			return value.NewError(value.TypeError, pos, "map key must be a string, got %s", y.Type())
		}
		x.AsMap().Set(y.AsString().String(), nv)
		return nil
	default:
		return value.NewError(value.TypeError, pos, "cannot index-assign %s", x.Type())
	}
}

func attrGet(host Host, x value.Value, name string, in *value.Interner, pos token.Pos) (value.Value, *value.RuntimeError) {
	switch x.Kind {
	case value.KClassInstance:
		ci := x.AsClassInstance()
		if idx, ok := ci.Def.FieldIndex[name]; ok {
			return ci.Fields[idx], nil
		}
		if m, ok := ci.Def.Method(name); ok {
			return value.Value{Kind: value.KBoundMethod, Ref: &value.BoundMethod{Recv: x, Fn: m}}, nil
		}
		return value.Nil, value.NewError(value.FieldError, pos, "%s has no field or method %q", ci.Def.Name, name)
	case value.KStructInstance:
		si := x.AsStructInstance()
		if idx, ok := si.Def.FieldIndex[name]; ok {
			return si.Fields[idx], nil
		}
		return value.Nil, value.NewError(value.FieldError, pos, "%s has no field %q", si.Def.Name, name)
	case value.KNativeStructInstance:
		ns := x.AsNativeStructInstance()
		if idx, ok := ns.Def.FieldIndex[name]; ok {
			return ns.GetField(idx), nil
		}
		return value.Nil, value.NewError(value.FieldError, pos, "%s has no field %q", ns.Def.Name, name)
	case value.KNativeClassInstance:
		nc := x.AsNativeClassInstance()
		if prop, ok := nc.Def.Properties[name]; ok {
			v, err := prop.Get(nc.Handle)
			if err != nil {
				return value.Nil, asRuntimeError(err)
			}
			return v, nil
		}
		if m, ok := nc.Def.Methods[name]; ok {
			return value.Value{Kind: value.KBoundMethod, Ref: &value.BoundMethod{Recv: x, Native: m}}, nil
		}
		return value.Nil, value.NewError(value.FieldError, pos, "%s has no property or method %q", nc.Def.Name, name)
	case value.KMap:
		v, ok := x.AsMap().Get(name)
		if !ok {
			return value.Nil, value.NewError(value.KeyError, pos, "missing map key %q", name)
		}
		return v, nil
	case value.KProcess:
		return host.ProcessAttr(x, name)
	case value.KError:
		e := x.AsError()
		switch name {
		case "kind":
			return in.String(e.Kind.String()), nil
		case "message":
			return in.String(e.Msg), nil
		case "value":
			return e.Value, nil
		}
		return value.Nil, value.NewError(value.FieldError, pos, "error has no field %q", name)
	default:
		return value.Nil, value.NewError(value.FieldError, pos, "%s has no fields", x.Type())
	}
}

func attrSet(host Host, x value.Value, name string, y value.Value, pos token.Pos) *value.RuntimeError {
	switch x.Kind {
	case value.KClassInstance:
		ci := x.AsClassInstance()
		if idx, ok := ci.Def.FieldIndex[name]; ok {
			ci.Fields[idx] = y
			return nil
		}
		return value.NewError(value.FieldError, pos, "%s has no field %q", ci.Def.Name, name)
	case value.KStructInstance:
		si := x.AsStructInstance()
		if idx, ok := si.Def.FieldIndex[name]; ok {
			si.Fields[idx] = y
			return nil
		}
		return value.NewError(value.FieldError, pos, "%s has no field %q", si.Def.Name, name)
	case value.KNativeStructInstance:
		ns := x.AsNativeStructInstance()
		idx, ok := ns.Def.FieldIndex[name]
		if !ok {
			return value.NewError(value.FieldError, pos, "%s has no field %q", ns.Def.Name, name)
		}
		if y.Kind != value.KInt && y.Kind != value.KFloat {
			return value.NewError(value.TypeError, pos, "%s.%s requires a number, got %s", ns.Def.Name, name, y.Type())
		}
		ns.SetField(idx, y)
		return nil
	case value.KNativeClassInstance:
		nc := x.AsNativeClassInstance()
		if prop, ok := nc.Def.Properties[name]; ok {
			if prop.Set == nil {
				return value.NewError(value.ReadOnlyError, pos, "property %s.%s is read-only", nc.Def.Name, name)
			}
			if err := prop.Set(nc.Handle, y); err != nil {
				return asRuntimeError(err)
			}
			return nil
		}
		if _, ok := nc.Def.Methods[name]; ok {
			return value.NewError(value.ReadOnlyError, pos, "method %s.%s cannot be assigned", nc.Def.Name, name)
		}
		return value.NewError(value.FieldError, pos, "%s has no property %q", nc.Def.Name, name)
	case value.KMap:
		x.AsMap().Set(name, y)
		return nil
	case value.KProcess:
		return host.SetProcessAttr(x, name, y)
	default:
		return value.NewError(value.FieldError, pos, "%s has no fields", x.Type())
	}
}
