package fiber

import (
	"testing"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/runtime/value"
	"github.com/stretchr/testify/require"
)

func testFn(name string, params, locals, maxStack int) *value.Function {
	code := &compiler.Funcode{
		Name:      name,
		Code:      []byte{byte(compiler.NIL), byte(compiler.RETURN)},
		NumParams: params,
		MaxStack:  maxStack,
	}
	for i := 0; i < locals; i++ {
		code.Locals = append(code.Locals, compiler.Binding{})
	}
	return &value.Function{Name: name, Code: code, Arity: params, NumLocals: locals}
}

func TestPushFrameArity(t *testing.T) {
	f := New()
	fn := testFn("two", 2, 2, 1)

	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.Stack[1] = value.Int(1)
	f.SP = 2
	err := f.PushFrame(fn, nil, 1)
	require.NotNil(t, err)
	require.Equal(t, value.ArgumentError, err.Kind)
	require.Empty(t, f.Frames)
}

func TestPushFrameVariadicPadsAndDrops(t *testing.T) {
	f := New()
	fn := testFn("va", 1, 1, 1)
	fn.Arity = -1
	fn.Code.HasVarArg = true

	// more arguments than parameters: extras are dropped.
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.Stack[1] = value.Int(1)
	f.Stack[2] = value.Int(2)
	f.Stack[3] = value.Int(3)
	f.SP = 4
	require.Nil(t, f.PushFrame(fn, nil, 3))
	require.Equal(t, 2, f.SP) // callable + 1 local
	require.Equal(t, value.Int(1), f.Stack[1])

	f.Reset()

	// fewer arguments than parameters: missing read as nil.
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.SP = 1
	require.Nil(t, f.PushFrame(fn, nil, 0))
	require.True(t, f.Stack[1].IsNil())
}

func TestPushFrameOverflow(t *testing.T) {
	f := New()
	fn := testFn("deep", 0, 0, 1)
	for i := 0; i < MaxFrames; i++ {
		f.Stack[f.SP] = value.Value{Kind: value.KFunction, Ref: fn}
		f.SP++
		require.Nil(t, f.PushFrame(fn, nil, 0))
	}
	f.Stack[f.SP] = value.Value{Kind: value.KFunction, Ref: fn}
	f.SP++
	err := f.PushFrame(fn, nil, 0)
	require.NotNil(t, err)
	require.Equal(t, value.StackOverflowError, err.Kind)
}

func TestPushFrameOperandOverflow(t *testing.T) {
	f := New()
	fn := testFn("wide", 0, 0, DefaultStackCap+1)
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.SP = 1
	err := f.PushFrame(fn, nil, 0)
	require.NotNil(t, err)
	require.Equal(t, value.StackOverflowError, err.Kind)
}

func TestPushFrameWrapsCells(t *testing.T) {
	f := New()
	fn := testFn("cells", 1, 1, 1)
	fn.Code.Cells = []int{0}

	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.Stack[1] = value.Int(9)
	f.SP = 2
	require.Nil(t, f.PushFrame(fn, nil, 1))
	slot := f.Stack[1]
	require.Equal(t, value.KCell, slot.Kind)
	require.Equal(t, value.Int(9), slot.AsCell().V)
}

func TestResetClearsEverything(t *testing.T) {
	f := New()
	fn := testFn("fn", 0, 0, 1)
	f.Stack[0] = value.Value{Kind: value.KFunction, Ref: fn}
	f.SP = 1
	require.Nil(t, f.PushFrame(fn, nil, 0))
	f.Gosubs = append(f.Gosubs, 5)
	f.State = Running
	f.ResumeTime = 1.5

	f.Reset()
	require.Zero(t, f.SP)
	require.Empty(t, f.Frames)
	require.Empty(t, f.Gosubs)
	require.Equal(t, Dead, f.State)
	require.Zero(t, f.ResumeTime)
	require.True(t, f.Stack[0].IsNil())
}

func TestIterator(t *testing.T) {
	arr := value.NewArray([]value.Value{value.Int(1), value.Int(2)})
	it := Iterator{arr: arr}
	v, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, value.Int(1), v)
	v, ok = it.Next()
	require.True(t, ok)
	require.Equal(t, value.Int(2), v)
	_, ok = it.Next()
	require.False(t, ok)
}
