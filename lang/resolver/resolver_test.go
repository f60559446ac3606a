package resolver

import (
	"testing"

	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/parser"
	"github.com/mna/divm/runtime/private"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *ast.Chunk {
	t.Helper()
	chunk, err := parser.Parse("test.divm", []byte(src))
	require.NoError(t, err)
	return chunk
}

func identIn(stmts []ast.Stmt, name string) *ast.IdentExpr {
	var found *ast.IdentExpr
	var walkExpr func(e ast.Expr)
	var walkStmt func(s ast.Stmt)
	walkExpr = func(e ast.Expr) {
		if found != nil || e == nil {
			return
		}
		switch e := e.(type) {
		case *ast.IdentExpr:
			if e.Name == name {
				found = e
			}
		case *ast.BinOpExpr:
			walkExpr(e.X)
			walkExpr(e.Y)
		case *ast.UnaryOpExpr:
			walkExpr(e.X)
		case *ast.CallExpr:
			walkExpr(e.Fn)
			for _, a := range e.Args {
				walkExpr(a)
			}
		case *ast.ParenExpr:
			walkExpr(e.X)
		}
	}
	walkStmt = func(s ast.Stmt) {
		if found != nil || s == nil {
			return
		}
		switch s := s.(type) {
		case *ast.ExprStmt:
			walkExpr(s.X)
		case *ast.AssignStmt:
			walkExpr(s.RHS)
			walkExpr(s.LHS)
		case *ast.DeclStmt:
			for _, v := range s.Values {
				walkExpr(v)
			}
		case *ast.IfStmt:
			for _, st := range s.Then.Stmts {
				walkStmt(st)
			}
		case *ast.WhileStmt:
			for _, st := range s.Body.Stmts {
				walkStmt(st)
			}
		case *ast.ProcessStmt:
			for _, st := range s.Body.Stmts {
				walkStmt(st)
			}
		case *ast.FuncStmt:
			for _, st := range s.Fn.Body.Stmts {
				walkStmt(st)
			}
		}
	}
	for _, s := range stmts {
		walkStmt(s)
	}
	return found
}

func TestResolvePrivilegedPrivateName(t *testing.T) {
	chunk := mustParse(t, `
process ticker()
begin
	x = x + 1
	frame(100)
end
`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)

	proc := chunk.Stmts[0].(*ast.ProcessStmt)
	ident := identIn([]ast.Stmt{proc}, "x")
	require.NotNil(t, ident)

	bdg := prog.Idents[ident]
	require.Equal(t, Private, bdg.Scope)
	idx, ok := private.PrivateIndex("x")
	require.True(t, ok)
	require.Equal(t, idx, bdg.Index)
}

func TestResolveExplicitProcessPrivate(t *testing.T) {
	chunk := mustParse(t, `
process counter()
begin
	private n = 0
	n = n + 1
end
`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)

	pi := prog.Processes["counter"]
	require.Contains(t, pi.PrivateIndex, "n")
	require.Equal(t, private.NumPrivates, pi.PrivateIndex["n"])
	require.Equal(t, []string{"n"}, pi.PrivateNames)
}

func TestResolvePrivateOutsideProcessIsError(t *testing.T) {
	chunk := mustParse(t, `private n = 0`)
	_, err := Resolve(chunk)
	require.Error(t, err)
}

func TestResolveGlobalSharedAcrossFunctions(t *testing.T) {
	chunk := mustParse(t, `
global score
fn add(n)
begin
	global score
	score = score + n
end
fn reset()
begin
	global score
	score = 0
end
`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)
	require.Equal(t, []string{"add", "reset", "score"}, prog.Globals)

	addFn := prog.Funcs["add"]
	require.NotNil(t, addFn)
	resetFn := prog.Funcs["reset"]
	require.NotNil(t, resetFn)
}

func TestResolveSpawnForwardReference(t *testing.T) {
	chunk := mustParse(t, `
process parent()
begin
	var c = spawn child()
end
process child()
begin
end
`)
	_, err := Resolve(chunk)
	require.NoError(t, err)
}

func TestResolveSpawnUndeclaredProcessIsError(t *testing.T) {
	chunk := mustParse(t, `
process parent()
begin
	var c = spawn nosuch()
end
`)
	_, err := Resolve(chunk)
	require.Error(t, err)
}

func TestResolveClassFieldAccess(t *testing.T) {
	chunk := mustParse(t, `
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
`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)

	ci := prog.Classes["Accumulator"]
	require.Equal(t, []string{"value", "count"}, ci.Fields)

	addFn := ci.Decl.Methods[0]
	ident := identIn([]ast.Stmt{addFn}, "value")
	require.NotNil(t, ident)
	bdg := prog.Idents[ident]
	require.Equal(t, Field, bdg.Scope)
	require.Equal(t, 0, bdg.Index)
}

func TestResolveClosureCapturesLocalAsCell(t *testing.T) {
	chunk := mustParse(t, `
fn counter()
begin
	var n = 0
	var inc = fn()
	begin
		n = n + 1
		return n
	end
	return inc
end
`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)

	outer := prog.Funcs["counter"]
	require.NotNil(t, outer)
	require.Equal(t, Cell, outer.Locals[0].Scope) // n, promoted from Local

	inner := chunk.Stmts[0].(*ast.FuncStmt).Fn.Body.Stmts[1].(*ast.DeclStmt).Values[0].(*ast.FuncExpr)
	innerIdent := identIn([]ast.Stmt{&ast.FuncStmt{Fn: inner}}, "n")
	require.NotNil(t, innerIdent)
	bdg := prog.Idents[innerIdent]
	require.Equal(t, Free, bdg.Scope)
}

func TestResolveGosubLabel(t *testing.T) {
	chunk := mustParse(t, `
process p()
begin
	gosub sub
	label sub
	retsub
end
`)
	_, err := Resolve(chunk)
	require.NoError(t, err)
}

func TestResolveGosubUndeclaredLabelIsError(t *testing.T) {
	chunk := mustParse(t, `
process p()
begin
	gosub nosuch
end
`)
	_, err := Resolve(chunk)
	require.Error(t, err)
}

func TestResolveUndeclaredNameIsUniversal(t *testing.T) {
	// a bare name declared nowhere in the chunk may still be a native the
	// host registers before running, so it resolves dynamically.
	chunk := mustParse(t, `fn f() begin var r = some_native end`)
	prog, err := Resolve(chunk)
	require.NoError(t, err)

	fnStmt := chunk.Stmts[0].(*ast.FuncStmt)
	ident := identIn([]ast.Stmt{fnStmt}, "some_native")
	require.NotNil(t, ident)
	require.Equal(t, Universal, prog.Idents[ident].Scope)
}

func TestResolveAssignToUndeclaredIsError(t *testing.T) {
	chunk := mustParse(t, `fn f() begin some_native = 1 end`)
	_, err := Resolve(chunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot assign")
}

func TestResolveBreakOutsideLoopIsError(t *testing.T) {
	chunk := mustParse(t, `fn f() begin break end`)
	_, err := Resolve(chunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "outside of a loop")
}

func TestResolveProcessCannotCaptureChunkLocal(t *testing.T) {
	// a process runs on its own fiber without a closure, so it cannot
	// reference a chunk-level local; only globals are shared.
	chunk := mustParse(t, `
var counter = 0
process p()
begin
	counter = counter + 1
end
`)
	_, err := Resolve(chunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot capture")
}

func TestResolveForInSingleName(t *testing.T) {
	chunk := mustParse(t, `
fn f(items)
begin
	for a, b in items begin end
end
`)
	_, err := Resolve(chunk)
	require.Error(t, err)
	require.Contains(t, err.Error(), "exactly one name")
}
