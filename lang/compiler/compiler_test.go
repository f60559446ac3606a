package compiler

import (
	"strings"
	"testing"

	"github.com/mna/divm/lang/parser"
	"github.com/mna/divm/lang/resolver"
	"github.com/mna/divm/runtime/value"
	"github.com/stretchr/testify/require"
)

func compileSrc(t *testing.T, src string) *Program {
	t.Helper()
	chunk, err := parser.Parse("test.divm", []byte(src))
	require.NoError(t, err)
	res, err := resolver.Resolve(chunk)
	require.NoError(t, err)
	return Compile(res)
}

func TestCompileTicker(t *testing.T) {
	prog := compileSrc(t, `
process ticker()
begin
	private x = 0
	while (true)
	begin
		x = x + 1
		frame(100)
	end
end
`)
	require.Len(t, prog.Processes, 1)
	pd := prog.Processes[0]
	require.Equal(t, "ticker", pd.Name)
	// x is one of the privileged names, so no extra private slot is added.
	require.Equal(t, value.NumPrivates, pd.NumPrivates)
	require.Empty(t, pd.PrivateNames)

	dis := Disassemble(prog)
	require.Contains(t, dis, "setprivate")
	require.Contains(t, dis, "private")
	require.Contains(t, dis, "frame")
	require.Contains(t, dis, "cjmp")
	require.Contains(t, dis, "jmp")
	require.Greater(t, pd.Ctor.MaxStack, 0)
}

func TestCompileExtraPrivates(t *testing.T) {
	prog := compileSrc(t, `
process timer()
begin
	private elapsed = 0, ticks
	frame(100)
end
`)
	pd := prog.Processes[0]
	require.Equal(t, value.NumPrivates+2, pd.NumPrivates)
	require.Equal(t, []string{"elapsed", "ticks"}, pd.PrivateNames)
}

func TestCompileGosub(t *testing.T) {
	prog := compileSrc(t, `
fn compute()
begin
	var acc = 0
	gosub add_two
	gosub add_two
	return acc

	label add_two
	acc = acc + 2
	retsub
end
`)
	require.Len(t, prog.Functions, 1)
	dis := Disassemble(prog)
	require.Contains(t, dis, "gosub")
	require.Contains(t, dis, "retsub")

	// the forward gosub targets must have been patched to a non-zero
	// address.
	fn := prog.Functions[0]
	var sawGosub bool
	for pc := uint32(0); pc < uint32(len(fn.Code)); {
		op := Opcode(fn.Code[pc])
		pc++
		if op < OpcodeArgMin {
			continue
		}
		var arg uint32
		for s := uint(0); ; s += 7 {
			b := fn.Code[pc]
			pc++
			arg |= uint32(b&0x7f) << s
			if b < 0x80 {
				break
			}
		}
		if op == GOSUB {
			sawGosub = true
			require.NotZero(t, arg)
			require.Less(t, arg, uint32(len(fn.Code)))
		}
	}
	require.True(t, sawGosub)
}

func TestCompileTryCatchOrder(t *testing.T) {
	prog := compileSrc(t, `
fn f()
begin
	try
	begin
		try
		begin
			throw "inner"
		end
		catch begin end
	end
	catch (e) begin end
end
`)
	fn := prog.Functions[0]
	require.Len(t, fn.Catches, 2)
	outer, inner := fn.Catches[0], fn.Catches[1]
	// the outer entry is reserved first so a scan from the end finds the
	// innermost applicable handler.
	require.LessOrEqual(t, outer.PC0, inner.PC0)
	require.True(t, inner.PC1 <= outer.PC1)
	for _, c := range fn.Catches {
		require.Less(t, c.PC0, c.PC1)
		require.LessOrEqual(t, c.PC1, c.StartPC)
	}
	require.True(t, outer.HasVar)
	require.False(t, inner.HasVar)
}

func TestCompileClosureCapture(t *testing.T) {
	prog := compileSrc(t, `
fn counter()
begin
	var n = 0
	return fn()
	begin
		n = n + 1
		return n
	end
end
`)
	require.Len(t, prog.Closures, 1)
	outer := prog.Functions[0]
	require.Equal(t, []int{0}, outer.Cells, "captured local must become a cell")

	clo := prog.Closures[0]
	require.Len(t, clo.Freevars, 1)
	require.Equal(t, "n", clo.Freevars[0].Name)
	require.True(t, clo.FreeSrc[0].FromCell)
	require.Equal(t, 0, clo.FreeSrc[0].Index)

	dis := Disassemble(prog)
	require.Contains(t, dis, "makefunc")
	require.Contains(t, dis, "setfree")
	require.Contains(t, dis, "free")
}

func TestCompileShortCircuit(t *testing.T) {
	prog := compileSrc(t, `
global r
r = true and false or 3
`)
	dis := Disassemble(prog)
	require.Contains(t, dis, "cjmp")
	require.Contains(t, dis, "dup")
	require.Contains(t, dis, "setglobal")
}

func TestCompileConstantsDeduped(t *testing.T) {
	prog := compileSrc(t, `
global a, b
a = 42
b = 42
`)
	count := 0
	for _, c := range prog.Constants {
		if c == int64(42) {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestCompileSpawnPacksNameAndArgc(t *testing.T) {
	prog := compileSrc(t, `
process child(a, b) begin frame(100) end
spawn child(1, 2)
`)
	dis := Disassemble(prog)
	require.Contains(t, dis, "spawn name=")
	require.Contains(t, dis, "argc=2")

	arg := PackNameArgc(3, 2)
	name, argc := UnpackNameArgc(arg)
	require.Equal(t, 3, name)
	require.Equal(t, 2, argc)
}

func TestCompileForIn(t *testing.T) {
	prog := compileSrc(t, `
fn sum(items)
begin
	var total = 0
	for it in items
	begin
		total = total + it
	end
	return total
end
`)
	dis := Disassemble(prog)
	for _, want := range []string{"iterpush", "iterjmp", "iterpop"} {
		require.Contains(t, dis, want)
	}
}

func TestCompilePosTable(t *testing.T) {
	prog := compileSrc(t, `
global a
a = 1
a = 2
`)
	top := prog.Toplevel
	require.NotEmpty(t, top.PosTable)
	// positions are recorded in increasing pc order.
	for i := 1; i < len(top.PosTable); i++ {
		require.Less(t, top.PosTable[i-1].PC, top.PosTable[i].PC)
	}
	line, _ := top.PosAt(0).LineCol()
	require.Equal(t, 3, line)
}

func TestToplevelExcludesDeclarations(t *testing.T) {
	prog := compileSrc(t, `
process p() begin frame(100) end
class c begin var f end
struct s begin var g end
fn h() begin return 1 end
global ready
ready = true
`)
	require.Len(t, prog.Processes, 1)
	require.Len(t, prog.Classes, 1)
	require.Len(t, prog.Structs, 1)
	require.Len(t, prog.Functions, 1)
	// toplevel only carries the global assignment plus the implicit return.
	dis := Disassemble(prog)
	idx := strings.Index(dis, "function <toplevel>")
	require.GreaterOrEqual(t, idx, 0)
}
