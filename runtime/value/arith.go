package value

import (
	"math"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/lang/token"
)

// BinaryOp implements the arithmetic, bitwise and comparison opcodes: any numeric pair (int, float) is accepted and
// produces int when both operands are int and the operator preserves
// integrality, otherwise float; string PLUS concatenates (interned via in);
// EQL/NEQ are structural/identity per Equal; other comparisons require two
// numbers or two strings.
func BinaryOp(op compiler.Opcode, x, y Value, in *Interner, pos token.Pos) (Value, *RuntimeError) {
	switch op {
	case compiler.EQL:
		return Bool(Equal(x, y)), nil
	case compiler.NEQ:
		return Bool(!Equal(x, y)), nil
	case compiler.LT, compiler.LE, compiler.GT, compiler.GE:
		return compareOp(op, x, y, pos)
	case compiler.PLUS:
		if x.Kind == KString || y.Kind == KString {
			if x.Kind != KString || y.Kind != KString {
				return Nil, NewError(TypeError, pos, "cannot add %s and %s", x.Type(), y.Type())
			}
			return in.String(x.AsString().String() + y.AsString().String()), nil
		}
		return numericOp(op, x, y, pos)
	case compiler.MINUS, compiler.STAR, compiler.SLASH, compiler.SLASHSLASH,
		compiler.PERCENT, compiler.CIRCUMFLEX, compiler.AMPERSAND, compiler.PIPE,
		compiler.LTLT, compiler.GTGT:
		return numericOp(op, x, y, pos)
	default:
		return Nil, NewError(TypeError, pos, "unsupported binary operator %s", op)
	}
}

func compareOp(op compiler.Opcode, x, y Value, pos token.Pos) (Value, *RuntimeError) {
	if isNumeric(x.Kind) && isNumeric(y.Kind) {
		xf, yf := x.AsFloat(), y.AsFloat()
		var b bool
		switch op {
		case compiler.LT:
			b = xf < yf
		case compiler.LE:
			b = xf <= yf
		case compiler.GT:
			b = xf > yf
		case compiler.GE:
			b = xf >= yf
		}
		return Bool(b), nil
	}
	if x.Kind == KString && y.Kind == KString {
		xs, ys := x.AsString().String(), y.AsString().String()
		var b bool
		switch op {
		case compiler.LT:
			b = xs < ys
		case compiler.LE:
			b = xs <= ys
		case compiler.GT:
			b = xs > ys
		case compiler.GE:
			b = xs >= ys
		}
		return Bool(b), nil
	}
	return Nil, NewError(TypeError, pos, "cannot compare %s and %s", x.Type(), y.Type())
}

func numericOp(op compiler.Opcode, x, y Value, pos token.Pos) (Value, *RuntimeError) {
	isBitwise := op == compiler.AMPERSAND || op == compiler.PIPE || op == compiler.CIRCUMFLEX ||
		op == compiler.LTLT || op == compiler.GTGT
	if isBitwise {
		if x.Kind != KInt || y.Kind != KInt {
			return Nil, NewError(TypeError, pos, "bitwise operator requires two ints, got %s and %s", x.Type(), y.Type())
		}
		return bitwiseOp(op, x.I, y.I)
	}
	if !isNumeric(x.Kind) || !isNumeric(y.Kind) {
		return Nil, NewError(TypeError, pos, "arithmetic operator requires two numbers, got %s and %s", x.Type(), y.Type())
	}
	bothInt := x.Kind == KInt && y.Kind == KInt
	switch op {
	case compiler.MINUS:
		if bothInt {
			return Int(x.I - y.I), nil
		}
		return Float(x.AsFloat() - y.AsFloat()), nil
	case compiler.STAR:
		if bothInt {
			return Int(x.I * y.I), nil
		}
		return Float(x.AsFloat() * y.AsFloat()), nil
	case compiler.PLUS:
		if bothInt {
			return Int(x.I + y.I), nil
		}
		return Float(x.AsFloat() + y.AsFloat()), nil
	case compiler.SLASH:
		if bothInt {
			if y.I == 0 {
				return Nil, NewError(ArithmeticError, pos, "integer division by zero")
			}
			if x.I%y.I == 0 {
				return Int(x.I / y.I), nil
			}
			return Float(float64(x.I) / float64(y.I)), nil
		}
		return Float(x.AsFloat() / y.AsFloat()), nil // IEEE-754 +/-Inf on zero divisor
	case compiler.SLASHSLASH:
		if bothInt {
			if y.I == 0 {
				return Nil, NewError(ArithmeticError, pos, "integer division by zero")
			}
			return Int(floorDivInt(x.I, y.I)), nil
		}
		return Float(math.Floor(x.AsFloat() / y.AsFloat())), nil
	case compiler.PERCENT:
		if bothInt {
			if y.I == 0 {
				return Nil, NewError(ArithmeticError, pos, "integer modulo by zero")
			}
			return Int(floorModInt(x.I, y.I)), nil
		}
		return Float(math.Mod(x.AsFloat(), y.AsFloat())), nil
	default:
		return Nil, NewError(TypeError, pos, "unsupported numeric operator %s", op)
	}
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorModInt(a, b int64) int64 {
	m := a % b
	if m != 0 && ((a < 0) != (b < 0)) {
		m += b
	}
	return m
}

func bitwiseOp(op compiler.Opcode, x, y int64) (Value, *RuntimeError) {
	switch op {
	case compiler.AMPERSAND:
		return Int(x & y), nil
	case compiler.PIPE:
		return Int(x | y), nil
	case compiler.CIRCUMFLEX:
		return Int(x ^ y), nil
	case compiler.LTLT:
		return Int(x << uint(y)), nil
	case compiler.GTGT:
		return Int(x >> uint(y)), nil
	default:
		panic("unreachable")
	}
}

// UnaryOp implements UMINUS, NOT and TILDE.
func UnaryOp(op compiler.Opcode, x Value, pos token.Pos) (Value, *RuntimeError) {
	switch op {
	case compiler.UMINUS:
		switch x.Kind {
		case KInt:
			return Int(-x.I), nil
		case KFloat:
			return Float(-x.F), nil
		default:
			return Nil, NewError(TypeError, pos, "cannot negate %s", x.Type())
		}
	case compiler.NOT:
		return Bool(!x.Truthy()), nil
	case compiler.TILDE:
		if x.Kind != KInt {
			return Nil, NewError(TypeError, pos, "cannot apply ~ to %s", x.Type())
		}
		return Int(^x.I), nil
	default:
		return Nil, NewError(TypeError, pos, "unsupported unary operator %s", op)
	}
}
