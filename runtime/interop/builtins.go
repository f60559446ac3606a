package interop

import (
	"math"

	"github.com/mna/divm/runtime/process"
	"github.com/mna/divm/runtime/value"
)

// Privileged private slot indices the movement builtins operate on, fixed
// by the runtime's private name table.
var (
	idxX, _     = value.PrivateIndex("x")
	idxY, _     = value.PrivateIndex("y")
	idxAngle, _ = value.PrivateIndex("angle")
	idxXold, _  = value.PrivateIndex("xold")
	idxYold, _  = value.PrivateIndex("yold")
)

// RegisterBuiltins installs the natives every engine carries: small value
// helpers plus the process-bound movement and lifecycle functions.
func RegisterBuiltins(r *Registry) {
	r.RegisterFunc("len", builtinLen, 1)
	r.RegisterFunc("push", builtinPush, 2)
	r.RegisterFunc("divmod", builtinDivmod, 2)
	r.RegisterFunc("abs", builtinAbs, 1)
	r.RegisterFunc("sqrt", builtinSqrt, 1)
	r.RegisterFunc("sin", builtinSin, 1)
	r.RegisterFunc("cos", builtinCos, 1)

	r.RegisterProcessFunc("advance", builtinAdvance, 1)
	r.RegisterProcessFunc("xadvance", builtinXAdvance, 2)
	r.RegisterProcessFunc("get_signal", builtinGetSignal, 0)
	r.RegisterProcessFunc("exit", builtinExit, 1)
}

func builtinLen(args []value.Value) ([]value.Value, error) {
	x := args[0]
	switch x.Kind {
	case value.KArray:
		return []value.Value{value.Int(int64(x.AsArray().Len()))}, nil
	case value.KMap:
		return []value.Value{value.Int(int64(x.AsMap().Len()))}, nil
	case value.KString:
		return []value.Value{value.Int(int64(len(x.AsString().String())))}, nil
	default:
		return nil, value.NewError(value.TypeError, 0, "len of %s", x.Type())
	}
}

func builtinPush(args []value.Value) ([]value.Value, error) {
	if args[0].Kind != value.KArray {
		return nil, value.NewError(value.TypeError, 0, "push to %s", args[0].Type())
	}
	args[0].AsArray().Append(args[1])
	return nil, nil
}

// builtinDivmod returns both the quotient and the remainder, exercising the
// multiple-result native call convention.
func builtinDivmod(args []value.Value) ([]value.Value, error) {
	a, b := args[0], args[1]
	if a.Kind != value.KInt || b.Kind != value.KInt {
		return nil, value.NewError(value.TypeError, 0, "divmod requires two ints, got %s and %s", a.Type(), b.Type())
	}
	if b.I == 0 {
		return nil, value.NewError(value.ArithmeticError, 0, "integer division by zero")
	}
	return []value.Value{value.Int(a.I / b.I), value.Int(a.I % b.I)}, nil
}

func builtinAbs(args []value.Value) ([]value.Value, error) {
	switch x := args[0]; x.Kind {
	case value.KInt:
		if x.I < 0 {
			return []value.Value{value.Int(-x.I)}, nil
		}
		return []value.Value{x}, nil
	case value.KFloat:
		return []value.Value{value.Float(math.Abs(x.F))}, nil
	default:
		return nil, value.NewError(value.TypeError, 0, "abs of %s", x.Type())
	}
}

func numArg(args []value.Value, i int, name string) (float64, error) {
	x := args[i]
	if x.Kind != value.KInt && x.Kind != value.KFloat {
		return 0, value.NewError(value.TypeError, 0, "%s requires a number, got %s", name, x.Type())
	}
	return x.AsFloat(), nil
}

func builtinSqrt(args []value.Value) ([]value.Value, error) {
	f, err := numArg(args, 0, "sqrt")
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Float(math.Sqrt(f))}, nil
}

func builtinSin(args []value.Value) ([]value.Value, error) {
	f, err := numArg(args, 0, "sin")
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Float(math.Sin(f))}, nil
}

func builtinCos(args []value.Value) ([]value.Value, error) {
	f, err := numArg(args, 0, "cos")
	if err != nil {
		return nil, err
	}
	return []value.Value{value.Float(math.Cos(f))}, nil
}

// builtinAdvance moves the current process distance units along its own
// angle (radians), remembering the previous position in xold/yold.
func builtinAdvance(proc any, args []value.Value) ([]value.Value, error) {
	p := proc.(*process.Process)
	d, err := numArg(args, 0, "advance")
	if err != nil {
		return nil, err
	}
	angle := p.Privates[idxAngle].AsFloat()
	return nil, advanceBy(p, d, angle)
}

// builtinXAdvance is advance with an explicit angle, leaving the process's
// own angle untouched.
func builtinXAdvance(proc any, args []value.Value) ([]value.Value, error) {
	p := proc.(*process.Process)
	d, err := numArg(args, 0, "xadvance")
	if err != nil {
		return nil, err
	}
	angle, err := numArg(args, 1, "xadvance")
	if err != nil {
		return nil, err
	}
	return nil, advanceBy(p, d, angle)
}

func advanceBy(p *process.Process, d, angle float64) error {
	x := p.Privates[idxX].AsFloat()
	y := p.Privates[idxY].AsFloat()
	p.Privates[idxXold] = p.Privates[idxX]
	p.Privates[idxYold] = p.Privates[idxY]
	p.Privates[idxX] = value.Float(x + math.Cos(angle)*d)
	p.Privates[idxY] = value.Float(y + math.Sin(angle)*d)
	return nil
}

// builtinGetSignal returns and clears the current process's signal slot;
// nil when no signal is pending.
func builtinGetSignal(proc any, _ []value.Value) ([]value.Value, error) {
	p := proc.(*process.Process)
	sig := p.Signal
	p.Signal = value.Nil
	return []value.Value{sig}, nil
}

// builtinExit records the script-visible exit code reported to the
// on_destroy hook; it does not terminate the process by itself.
func builtinExit(proc any, args []value.Value) ([]value.Value, error) {
	p := proc.(*process.Process)
	code := args[0]
	if code.Kind != value.KInt {
		return nil, value.NewError(value.TypeError, 0, "exit requires an int code, got %s", code.Type())
	}
	p.ExitCode = code.I
	return nil, nil
}
