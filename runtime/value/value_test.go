package value_test

import (
	"testing"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/runtime/value"
	"github.com/stretchr/testify/require"
)

func TestInternerIdentity(t *testing.T) {
	in := value.NewInterner()
	a := in.String("hello")
	b := in.String("hello")
	require.Equal(t, a.Ref, b.Ref, "two interned strings with equal bytes share identity")
	require.True(t, value.Equal(a, b))

	c := in.String("world")
	require.NotEqual(t, a.Ref, c.Ref)
	require.False(t, value.Equal(a, c))
}

func TestArithmeticIntegrality(t *testing.T) {
	v, err := value.BinaryOp(compiler.PLUS, value.Int(2), value.Int(3), nil, 0)
	require.Nil(t, err)
	require.Equal(t, value.KInt, v.Kind)
	require.Equal(t, int64(5), v.I)

	v, err = value.BinaryOp(compiler.PLUS, value.Int(2), value.Float(3.5), nil, 0)
	require.Nil(t, err)
	require.Equal(t, value.KFloat, v.Kind)
	require.Equal(t, 5.5, v.F)

	v, err = value.BinaryOp(compiler.SLASH, value.Int(6), value.Int(3), nil, 0)
	require.Nil(t, err)
	require.Equal(t, value.KInt, v.Kind, "evenly divisible int/int stays int")
	require.Equal(t, int64(2), v.I)

	v, err = value.BinaryOp(compiler.SLASH, value.Int(7), value.Int(2), nil, 0)
	require.Nil(t, err)
	require.Equal(t, value.KFloat, v.Kind, "non-evenly divisible int/int becomes float")
}

func TestIntegerDivisionByZero(t *testing.T) {
	_, err := value.BinaryOp(compiler.SLASH, value.Int(1), value.Int(0), nil, 0)
	require.NotNil(t, err)
	require.Equal(t, value.ArithmeticError, err.Kind)
}

func TestFloatDivisionByZeroIsInf(t *testing.T) {
	v, err := value.BinaryOp(compiler.SLASH, value.Float(1), value.Float(0), nil, 0)
	require.Nil(t, err)
	require.Equal(t, value.KFloat, v.Kind)
	require.True(t, v.F > 0)
}

func TestStringConcat(t *testing.T) {
	in := value.NewInterner()
	v, err := value.BinaryOp(compiler.PLUS, in.String("foo"), in.String("bar"), in, 0)
	require.Nil(t, err)
	require.Equal(t, "foobar", v.AsString().String())
}

func TestCrossTypeComparisonIsTypeError(t *testing.T) {
	in := value.NewInterner()
	_, err := value.BinaryOp(compiler.LT, in.String("a"), value.Int(1), in, 0)
	require.NotNil(t, err)
	require.Equal(t, value.TypeError, err.Kind)
}

func TestNativeStructFieldRoundtrip(t *testing.T) {
	def := &value.NativeStructDef{
		Name: "Point",
		Size: 8,
		Fields: []value.NativeField{
			{Name: "x", Offset: 0, Type: value.F32},
			{Name: "y", Offset: 4, Type: value.F32},
		},
	}
	inst := &value.NativeStructInstance{Def: def, Buf: make([]byte, def.Size)}
	inst.SetField(0, value.Float(1.5))
	inst.SetField(1, value.Float(-2.25))
	require.Equal(t, 1.5, inst.GetField(0).AsFloat())
	require.Equal(t, -2.25, inst.GetField(1).AsFloat())
}
