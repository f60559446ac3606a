package parser

import (
	"testing"

	"github.com/mna/divm/lang/ast"
	"github.com/stretchr/testify/require"
)

func TestParseTicker(t *testing.T) {
	src := `
process ticker()
begin
	private x = 0
	while (true)
	begin
		x = x + 1
		frame(100)
	end
end
`
	chunk, err := Parse("ticker.divm", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunk.Stmts, 1)

	proc, ok := chunk.Stmts[0].(*ast.ProcessStmt)
	require.True(t, ok)
	require.Equal(t, "ticker", proc.Name)
	require.Len(t, proc.Body.Stmts, 2)

	decl, ok := proc.Body.Stmts[0].(*ast.DeclStmt)
	require.True(t, ok)
	require.Equal(t, "x", decl.Names[0].Name)

	wh, ok := proc.Body.Stmts[1].(*ast.WhileStmt)
	require.True(t, ok)
	require.Len(t, wh.Body.Stmts, 2)
}

func TestParseClassAndNew(t *testing.T) {
	src := `
class Accumulator
begin
	var value, count
	fn add(n)
	begin
		value = value + n
		count = count + 1
		return value
	end
end

var a = new Accumulator(40)
a.add(2)
`
	chunk, err := Parse("acc.divm", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunk.Stmts, 3)

	cls, ok := chunk.Stmts[0].(*ast.ClassStmt)
	require.True(t, ok)
	require.Equal(t, []string{"value", "count"}, fieldNames(cls.Fields))
	require.Len(t, cls.Methods, 1)
	require.Equal(t, "add", cls.Methods[0].Name)

	decl, ok := chunk.Stmts[1].(*ast.DeclStmt)
	require.True(t, ok)
	newExpr, ok := decl.Values[0].(*ast.NewExpr)
	require.True(t, ok)
	require.Equal(t, "Accumulator", newExpr.Name)
}

func TestParseSpawnFrameWaitSignal(t *testing.T) {
	src := `
process parent()
begin
	var c = spawn child()
	frame(100)
	wait(1000)
	signal(c, 1)
	kill(c)
	kill()
end
process child()
begin
end
`
	chunk, err := Parse("spawn.divm", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunk.Stmts, 2)

	proc := chunk.Stmts[0].(*ast.ProcessStmt)
	require.IsType(t, &ast.DeclStmt{}, proc.Body.Stmts[0])
	require.IsType(t, &ast.FrameStmt{}, proc.Body.Stmts[1])
	require.IsType(t, &ast.WaitStmt{}, proc.Body.Stmts[2])
	require.IsType(t, &ast.SignalStmt{}, proc.Body.Stmts[3])
	killWithID := proc.Body.Stmts[4].(*ast.KillStmt)
	require.NotNil(t, killWithID.ID)
	killAll := proc.Body.Stmts[5].(*ast.KillStmt)
	require.Nil(t, killAll.ID)
}

func TestParseTryCatchThrow(t *testing.T) {
	src := `
try
begin
	throw "boom"
end
catch (e)
begin
	x = e
end
`
	chunk, err := Parse("try.divm", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunk.Stmts, 1)
	tr := chunk.Stmts[0].(*ast.TryStmt)
	require.Equal(t, "e", tr.CatchVar)
	require.IsType(t, &ast.ThrowStmt{}, tr.Body.Stmts[0])
}

func TestParseIfElseChain(t *testing.T) {
	src := `
if (a < 1)
begin
	b = 1
end
else if (a < 2)
begin
	b = 2
end
else
begin
	b = 3
end
`
	chunk, err := Parse("if.divm", []byte(src))
	require.NoError(t, err)
	require.Len(t, chunk.Stmts, 1)

	st := chunk.Stmts[0].(*ast.IfStmt)
	require.NotNil(t, st.Else)
	elseIf, ok := st.Else.Stmts[0].(*ast.IfStmt)
	require.True(t, ok)
	require.NotNil(t, elseIf.Else)
	require.Len(t, elseIf.Else.Stmts, 1)
}

func TestParseErrorRecovery(t *testing.T) {
	_, err := Parse("bad.divm", []byte(`var = `))
	require.Error(t, err)
}

func fieldNames(fs []ast.Field) []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}
