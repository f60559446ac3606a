// Package compiler takes a parsed and resolved AST and compiles it to the
// bytecode executed by the runtime's fiber interpreter. It also provides a
// disassembler for diagnostics and golden tests, and the on-disk bytecode
// format reader/writer.
package compiler

import (
	"fmt"

	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/resolver"
	"github.com/mna/divm/lang/token"
	"golang.org/x/exp/slices"
)

// Compile turns a successfully resolved chunk into an executable Program.
//
// An AST that resulted in errors in the resolve phase should never be passed
// to the compiler; a valid resolved AST always generates a valid, executable
// compiled program, so Compile does not return an error.
func Compile(res *resolver.Program) *Program {
	pcomp := &pcomp{
		res: res,
		prog: &Program{
			Filename: res.Chunk.Name,
			Globals:  append([]string(nil), res.Globals...),
		},
		constants: make(map[interface{}]uint32),
		names:     make(map[string]uint32),
	}

	start, _ := res.Chunk.Span()
	pcomp.prog.Toplevel = pcomp.function("<toplevel>", start, toplevelStmts(res.Chunk), res.Main, nil, nil)

	// Remaining declarations compile in chunk order so that function and
	// process table indices are stable across compilations of the same
	// source.
	for _, s := range res.Chunk.Stmts {
		switch s := s.(type) {
		case *ast.FuncStmt:
			fc := pcomp.function(s.Name, s.FnPos, s.Fn.Body.Stmts, res.Funcs[s.Name], nil, nil)
			pcomp.prog.Functions = append(pcomp.prog.Functions, fc)

		case *ast.ProcessStmt:
			pi := res.Processes[s.Name]
			fc := pcomp.function(s.Name, s.ProcessPos, s.Body.Stmts, pi.Fn, pi, nil)
			pcomp.prog.Processes = append(pcomp.prog.Processes, &ProcessDef{
				Name:         s.Name,
				Ctor:         fc,
				NumPrivates:  len(pi.PrivateIndex),
				PrivateNames: append([]string(nil), pi.PrivateNames...),
			})

		case *ast.ClassStmt:
			ci := res.Classes[s.Name]
			cd := &ClassDef{
				Name:    s.Name,
				Base:    s.Base,
				Fields:  append([]string(nil), ci.Fields...),
				Methods: make(map[string]*Funcode, len(s.Methods)),
			}
			for _, m := range s.Methods {
				cd.Methods[m.Name] = pcomp.function(s.Name+"."+m.Name, m.FnPos, m.Fn.Body.Stmts, ci.Methods[m.Name], nil, ci)
			}
			pcomp.prog.Classes = append(pcomp.prog.Classes, cd)

		case *ast.StructStmt:
			si := res.Structs[s.Name]
			pcomp.prog.Structs = append(pcomp.prog.Structs, &StructDef{
				Name:   s.Name,
				Fields: append([]string(nil), si.Fields...),
			})
		}
	}
	return pcomp.prog
}

// toplevelStmts filters out the declarations compiled into their own tables,
// leaving the statements that execute when the chunk runs.
func toplevelStmts(chunk *ast.Chunk) []ast.Stmt {
	var out []ast.Stmt
	for _, s := range chunk.Stmts {
		switch s.(type) {
		case *ast.ProcessStmt, *ast.ClassStmt, *ast.StructStmt, *ast.FuncStmt:
		default:
			out = append(out, s)
		}
	}
	return out
}

// A pcomp holds the compiler state shared by every function of a Program.
type pcomp struct {
	prog *Program
	res  *resolver.Program

	constants map[interface{}]uint32
	names     map[string]uint32
}

func (pcomp *pcomp) constantIndex(v interface{}) uint32 {
	if i, ok := pcomp.constants[v]; ok {
		return i
	}
	i := uint32(len(pcomp.prog.Constants))
	pcomp.prog.Constants = append(pcomp.prog.Constants, v)
	pcomp.constants[v] = i
	return i
}

func (pcomp *pcomp) nameIndex(name string) uint32 {
	if i, ok := pcomp.names[name]; ok {
		return i
	}
	i := uint32(len(pcomp.prog.Names))
	pcomp.prog.Names = append(pcomp.prog.Names, name)
	pcomp.names[name] = i
	return i
}

// function compiles one function body: the toplevel, a process body, a named
// fn, a closure literal, or a class method. proc is non-nil when compiling
// inside a process declaration (it carries the private slot table), class
// when compiling a method body.
func (pcomp *pcomp) function(name string, pos token.Pos, stmts []ast.Stmt, rfn *resolver.Function, proc *resolver.ProcessInfo, class *resolver.ClassInfo) *Funcode {
	fcomp := &fcomp{
		pcomp: pcomp,
		rfn:   rfn,
		proc:  proc,
		class: class,
		fn: &Funcode{
			Prog:      pcomp.prog,
			Pos:       pos,
			Name:      name,
			NumParams: numParams(rfn),
			HasVarArg: rfn.HasVarArg,
		},
		labels: make(map[string]uint32),
		gosubs: make(map[string][]int),
	}

	for i, l := range rfn.Locals {
		fcomp.fn.Locals = append(fcomp.fn.Locals, Binding{Name: l.Name})
		if l.Scope == resolver.Cell {
			fcomp.fn.Cells = append(fcomp.fn.Cells, i)
		}
	}
	for _, fv := range rfn.FreeVars {
		// Each FreeVars entry is the binding the variable resolves to in the
		// immediately-enclosing function: a Cell local of that function, or a
		// Free variable that function itself captured.
		fcomp.fn.Freevars = append(fcomp.fn.Freevars, Binding{Name: fv.Name})
		fcomp.fn.FreeSrc = append(fcomp.fn.FreeSrc, FreeVarSource{
			FromCell: fv.Scope == resolver.Cell,
			Index:    fv.Index,
		})
	}

	for _, s := range stmts {
		fcomp.stmt(s)
	}
	fcomp.setPos(pos)
	fcomp.emit(NIL)
	fcomp.emit(RETURN)

	fcomp.patchGosubs()

	fcomp.fn.Code = fcomp.code
	fcomp.fn.MaxStack = fcomp.maxDepth
	return fcomp.fn
}

func numParams(rfn *resolver.Function) int {
	switch def := rfn.Definition.(type) {
	case *ast.ProcessStmt:
		return len(def.Params)
	case *ast.FuncExpr:
		return len(def.Params)
	case *ast.FuncStmt:
		return len(def.Fn.Params)
	default: // *ast.Chunk
		return 0
	}
}

// An fcomp holds the compiler state for a single Funcode.
type fcomp struct {
	pcomp *pcomp
	fn    *Funcode
	rfn   *resolver.Function
	proc  *resolver.ProcessInfo
	class *resolver.ClassInfo

	code            []byte
	depth, maxDepth int
	loops           []loop
	labels          map[string]uint32
	gosubs          map[string][]int
	pos             token.Pos
}

// loop tracks the enclosing loop's continue target and the break jump sites
// to patch once the loop's end address is known.
type loop struct {
	start  uint32
	breaks []int
}

type insn struct {
	op  Opcode
	arg uint32
}

func (fcomp *fcomp) setPos(pos token.Pos) {
	if pos == fcomp.pos || pos == 0 {
		return
	}
	fcomp.pos = pos
	pc := uint32(len(fcomp.code))
	if n := len(fcomp.fn.PosTable); n > 0 && fcomp.fn.PosTable[n-1].PC == pc {
		fcomp.fn.PosTable[n-1].Pos = pos
		return
	}
	fcomp.fn.PosTable = append(fcomp.fn.PosTable, PCPos{PC: pc, Pos: pos})
}

func (fcomp *fcomp) adjust(in insn) {
	var se int
	if in.op == ITERJMP {
		se = 1 // the fallthrough path pushes the element
	} else {
		se = in.stackeffect()
	}
	fcomp.depth += se
	if fcomp.depth > fcomp.maxDepth {
		fcomp.maxDepth = fcomp.depth
	}
}

func (fcomp *fcomp) emit(op Opcode) {
	fcomp.code = encodeInsn(fcomp.code, op, 0)
	fcomp.adjust(insn{op: op})
}

func (fcomp *fcomp) emitArg(op Opcode, arg uint32) {
	fcomp.code = encodeInsn(fcomp.code, op, arg)
	fcomp.adjust(insn{op: op, arg: arg})
}

// emitJump emits op with a placeholder target and returns the patch site to
// pass to patchJump once the target address is known. Jump operands are
// padded to 4 bytes (see encodeInsn) so patching never resizes the code.
func (fcomp *fcomp) emitJump(op Opcode) int {
	fcomp.adjust(insn{op: op})
	fcomp.code = append(fcomp.code, byte(op))
	site := len(fcomp.code)
	fcomp.code = addUint32(fcomp.code, 0, 4)
	return site
}

func (fcomp *fcomp) patchJump(site int, target uint32) {
	buf := fcomp.code[site:site:site+4]
	addUint32(buf, target, 4)
}

func (fcomp *fcomp) pc() uint32 { return uint32(len(fcomp.code)) }

func (fcomp *fcomp) patchGosubs() {
	for name, sites := range fcomp.gosubs {
		addr, ok := fcomp.labels[name]
		if !ok {
			panic(fmt.Sprintf("compiler: gosub to unresolved label %q in %s", name, fcomp.fn.Name))
		}
		for _, site := range sites {
			fcomp.patchJump(site, addr)
		}
	}
}

// encodeInsn appends op and its operand to code. Operands are 7-bit
// little-endian varints, except that a jump's operand is always padded to 4
// bytes so a backpatch never has to resize the code buffer.
func encodeInsn(code []byte, op Opcode, arg uint32) []byte {
	code = append(code, byte(op))
	if op >= OpcodeArgMin {
		if isJump(op) {
			code = addUint32(code, arg, 4)
		} else {
			code = addUint32(code, arg, 0)
		}
	}
	return code
}

// addUint32 encodes x as a 7-bit little-endian varint, padding the operand
// with NOPs to exactly min bytes.
func addUint32(code []byte, x uint32, min int) []byte {
	end := len(code) + min
	for x >= 0x80 {
		code = append(code, byte(x)|0x80)
		x >>= 7
	}
	code = append(code, byte(x))
	for len(code) < end {
		code = append(code, byte(NOP))
	}
	return code
}

var binOpcode = map[token.Token]Opcode{
	token.PLUS:       PLUS,
	token.MINUS:      MINUS,
	token.STAR:       STAR,
	token.SLASH:      SLASH,
	token.SLASHSLASH: SLASHSLASH,
	token.PERCENT:    PERCENT,
	token.CIRCUMFLEX: CIRCUMFLEX,
	token.AMPERSAND:  AMPERSAND,
	token.PIPE:       PIPE,
	token.LTLT:       LTLT,
	token.GTGT:       GTGT,
	token.LT:         LT,
	token.LE:         LE,
	token.GT:         GT,
	token.GE:         GE,
	token.EQL:        EQL,
	token.NEQ:        NEQ,
}

var augOpcode = map[token.Token]Opcode{
	token.PLUS_EQ:       PLUS,
	token.MINUS_EQ:      MINUS,
	token.STAR_EQ:       STAR,
	token.SLASH_EQ:      SLASH,
	token.SLASHSLASH_EQ: SLASHSLASH,
	token.PERCENT_EQ:    PERCENT,
	token.AMP_EQ:        AMPERSAND,
	token.PIPE_EQ:       PIPE,
	token.CIRCUMFLEX_EQ: CIRCUMFLEX,
	token.LTLT_EQ:       LTLT,
	token.GTGT_EQ:       GTGT,
}

func (fcomp *fcomp) stmt(s ast.Stmt) {
	start, _ := s.Span()
	fcomp.setPos(start)

	switch s := s.(type) {
	case *ast.BadStmt:
		// unreachable on a successful parse+resolve.

	case *ast.ExprStmt:
		fcomp.expr(s.X)
		fcomp.emit(POP)

	case *ast.DeclStmt:
		fcomp.declStmt(s)

	case *ast.AssignStmt:
		fcomp.assignStmt(s)

	case *ast.IfStmt:
		fcomp.expr(s.Cond)
		elseJmp := fcomp.emitJump(CJMP)
		fcomp.stmts(s.Then.Stmts)
		if s.Else != nil {
			endJmp := fcomp.emitJump(JMP)
			fcomp.patchJump(elseJmp, fcomp.pc())
			fcomp.stmts(s.Else.Stmts)
			fcomp.patchJump(endJmp, fcomp.pc())
		} else {
			fcomp.patchJump(elseJmp, fcomp.pc())
		}

	case *ast.WhileStmt:
		start := fcomp.pc()
		fcomp.expr(s.Cond)
		endJmp := fcomp.emitJump(CJMP)
		fcomp.loops = append(fcomp.loops, loop{start: start})
		fcomp.stmts(s.Body.Stmts)
		jmp := fcomp.emitJump(JMP)
		fcomp.patchJump(jmp, start)
		end := fcomp.pc()
		fcomp.patchJump(endJmp, end)
		fcomp.patchBreaks(end)

	case *ast.ForInStmt:
		fcomp.expr(s.X)
		fcomp.emit(ITERPUSH)
		start := fcomp.pc()
		endJmp := fcomp.emitJump(ITERJMP)
		fcomp.storeBinding(fcomp.pcomp.res.Decls[&s.Names[0]], s.ForPos)
		fcomp.loops = append(fcomp.loops, loop{start: start})
		fcomp.stmts(s.Body.Stmts)
		jmp := fcomp.emitJump(JMP)
		fcomp.patchJump(jmp, start)
		end := fcomp.pc()
		fcomp.patchJump(endJmp, end)
		fcomp.patchBreaks(end)
		fcomp.emit(ITERPOP)

	case *ast.ReturnStmt:
		if s.X != nil {
			fcomp.expr(s.X)
		} else {
			fcomp.emit(NIL)
		}
		fcomp.emit(RETURN)

	case *ast.BranchStmt:
		if len(fcomp.loops) == 0 {
			panic(fmt.Sprintf("compiler: %s outside of a loop", s.Tok))
		}
		l := &fcomp.loops[len(fcomp.loops)-1]
		if s.Tok == token.CONTINUE {
			jmp := fcomp.emitJump(JMP)
			fcomp.patchJump(jmp, l.start)
		} else {
			l.breaks = append(l.breaks, fcomp.emitJump(JMP))
		}

	case *ast.LabelStmt:
		fcomp.labels[s.Name] = fcomp.pc()

	case *ast.GosubStmt:
		if addr, ok := fcomp.labels[s.Name]; ok {
			fcomp.emitArg(GOSUB, addr)
		} else {
			fcomp.gosubs[s.Name] = append(fcomp.gosubs[s.Name], fcomp.emitJump(GOSUB))
		}

	case *ast.RetsubStmt:
		fcomp.emit(RETSUB)

	case *ast.TryStmt:
		// The Catch entry is reserved at try-start so that an outer try's
		// entry always precedes any nested one: the interpreter scans the
		// table from the end and finds the innermost applicable handler
		// first.
		catchIdx := len(fcomp.fn.Catches)
		fcomp.fn.Catches = append(fcomp.fn.Catches, Catch{PC0: fcomp.pc()})
		fcomp.stmts(s.Body.Stmts)
		fcomp.fn.Catches[catchIdx].PC1 = fcomp.pc()
		endJmp := fcomp.emitJump(JMP)
		fcomp.fn.Catches[catchIdx].StartPC = fcomp.pc()
		if s.CatchVar != "" {
			bdg := fcomp.pcomp.res.Decls[s]
			fcomp.fn.Catches[catchIdx].HasVar = true
			fcomp.fn.Catches[catchIdx].VarLocal = bdg.Index
		}
		fcomp.stmts(s.Catch.Stmts)
		fcomp.patchJump(endJmp, fcomp.pc())

	case *ast.ThrowStmt:
		fcomp.expr(s.X)
		fcomp.emit(THROW)

	case *ast.FrameStmt:
		fcomp.expr(s.Percent)
		fcomp.emit(FRAME)

	case *ast.WaitStmt:
		fcomp.expr(s.Ms)
		fcomp.emit(WAIT)

	case *ast.KillStmt:
		if s.ID != nil {
			fcomp.expr(s.ID)
		} else {
			fcomp.emit(NIL)
		}
		fcomp.emit(KILL)

	case *ast.SignalStmt:
		fcomp.expr(s.ID)
		fcomp.expr(s.Kind)
		fcomp.emit(SIGNAL)

	case *ast.FuncStmt:
		// nested named fn: compiles like a closure literal, bound to a local.
		fcomp.expr(s.Fn)
		fcomp.storeBinding(fcomp.pcomp.res.Decls[s], s.FnPos)

	default:
		panic(fmt.Sprintf("compiler: unexpected stmt %T", s))
	}
}

func (fcomp *fcomp) stmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		fcomp.stmt(s)
	}
}

func (fcomp *fcomp) patchBreaks(end uint32) {
	l := fcomp.loops[len(fcomp.loops)-1]
	fcomp.loops = fcomp.loops[:len(fcomp.loops)-1]
	for _, site := range l.breaks {
		fcomp.patchJump(site, end)
	}
}

func (fcomp *fcomp) declStmt(s *ast.DeclStmt) {
	for i := range s.Names {
		f := &s.Names[i]
		var val ast.Expr
		if i < len(s.Values) {
			val = s.Values[i]
		}
		switch s.Kind {
		case token.GLOBAL:
			if val == nil {
				continue // globals zero-init to nil in the engine table
			}
			fcomp.expr(val)
			idx := slices.Index(fcomp.pcomp.prog.Globals, f.Name)
			fcomp.emitArg(SETGLOBAL, uint32(idx))
		case token.PRIVATE:
			if val == nil {
				continue // keeps the slot's spawn-time initial value
			}
			fcomp.expr(val)
			fcomp.emitArg(SETPRIVATE, uint32(fcomp.proc.PrivateIndex[f.Name]))
		default: // VAR
			if val != nil {
				fcomp.expr(val)
			} else {
				fcomp.emit(NIL)
			}
			fcomp.storeBinding(fcomp.pcomp.res.Decls[f], f.Pos)
		}
	}
}

func (fcomp *fcomp) assignStmt(s *ast.AssignStmt) {
	aug, isAug := augOpcode[s.Op]

	switch lhs := s.LHS.(type) {
	case *ast.IdentExpr:
		bdg := fcomp.pcomp.res.Idents[lhs]
		if isAug {
			fcomp.loadBinding(bdg, lhs.NamePos)
			fcomp.expr(s.RHS)
			fcomp.emit(aug)
		} else {
			fcomp.expr(s.RHS)
		}
		fcomp.storeBinding(bdg, lhs.NamePos)

	case *ast.DotExpr:
		fcomp.expr(lhs.X)
		n := fcomp.pcomp.nameIndex(lhs.Name)
		if isAug {
			fcomp.emit(DUP)
			fcomp.emitArg(ATTR, n)
			fcomp.expr(s.RHS)
			fcomp.emit(aug)
		} else {
			fcomp.expr(s.RHS)
		}
		fcomp.emitArg(SETATTR, n)

	case *ast.IndexExpr:
		fcomp.expr(lhs.X)
		fcomp.expr(lhs.Y)
		if isAug {
			fcomp.emit(DUP2)
			fcomp.emit(INDEX)
			fcomp.expr(s.RHS)
			fcomp.emit(aug)
		} else {
			fcomp.expr(s.RHS)
		}
		fcomp.emit(SETINDEX)

	default:
		panic(fmt.Sprintf("compiler: cannot assign to %T", s.LHS))
	}
}

func (fcomp *fcomp) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.BadExpr:
		// unreachable on a successful parse+resolve.

	case *ast.LiteralExpr:
		fcomp.setPos(e.TokPos)
		switch e.Tok {
		case token.NIL:
			fcomp.emit(NIL)
		case token.TRUE:
			fcomp.emit(TRUE)
		case token.FALSE:
			fcomp.emit(FALSE)
		default:
			fcomp.emitArg(CONSTANT, fcomp.pcomp.constantIndex(e.Value))
		}

	case *ast.IdentExpr:
		fcomp.loadBinding(fcomp.pcomp.res.Idents[e], e.NamePos)

	case *ast.UnaryOpExpr:
		fcomp.expr(e.X)
		fcomp.setPos(e.OpPos)
		switch e.Op {
		case token.MINUS:
			fcomp.emit(UMINUS)
		case token.NOT:
			fcomp.emit(NOT)
		case token.TILDE:
			fcomp.emit(TILDE)
		default:
			panic(fmt.Sprintf("compiler: unexpected unary op %s", e.Op))
		}

	case *ast.BinOpExpr:
		switch e.Op {
		case token.AND:
			// X and Y keeps X when X is falsy, otherwise evaluates to Y.
			fcomp.expr(e.X)
			fcomp.emit(DUP)
			end := fcomp.emitJump(CJMP)
			fcomp.emit(POP)
			fcomp.expr(e.Y)
			fcomp.patchJump(end, fcomp.pc())
		case token.OR:
			fcomp.expr(e.X)
			fcomp.emit(DUP)
			fcomp.emit(NOT)
			end := fcomp.emitJump(CJMP)
			fcomp.emit(POP)
			fcomp.expr(e.Y)
			fcomp.patchJump(end, fcomp.pc())
		default:
			fcomp.expr(e.X)
			fcomp.expr(e.Y)
			fcomp.setPos(e.OpPos)
			op, ok := binOpcode[e.Op]
			if !ok {
				panic(fmt.Sprintf("compiler: unexpected binary op %s", e.Op))
			}
			fcomp.emit(op)
		}

	case *ast.ParenExpr:
		fcomp.expr(e.X)

	case *ast.CallExpr:
		fcomp.expr(e.Fn)
		for _, a := range e.Args {
			fcomp.expr(a)
		}
		fcomp.setPos(e.LParen)
		fcomp.emitArg(CALL, uint32(len(e.Args)))

	case *ast.DotExpr:
		fcomp.expr(e.X)
		fcomp.setPos(e.NamePos)
		fcomp.emitArg(ATTR, fcomp.pcomp.nameIndex(e.Name))

	case *ast.IndexExpr:
		fcomp.expr(e.X)
		fcomp.expr(e.Y)
		fcomp.setPos(e.LBrack)
		fcomp.emit(INDEX)

	case *ast.ArrayExpr:
		for _, el := range e.Elems {
			fcomp.expr(el)
		}
		fcomp.emitArg(MAKEARRAY, uint32(len(e.Elems)))

	case *ast.MapExpr:
		fcomp.emit(MAKEMAP0)
		for _, ent := range e.Entries {
			fcomp.emit(DUP)
			fcomp.expr(ent.Key)
			fcomp.expr(ent.Value)
			fcomp.emit(SETINDEX)
		}

	case *ast.FuncExpr:
		rfn := fcomp.pcomp.res.Closures[e]
		name := fmt.Sprintf("%s$%d", fcomp.fn.Name, len(fcomp.pcomp.prog.Closures)+1)
		fc := fcomp.pcomp.function(name, e.FnPos, e.Body.Stmts, rfn, fcomp.proc, fcomp.class)
		idx := uint32(len(fcomp.pcomp.prog.Closures))
		fcomp.pcomp.prog.Closures = append(fcomp.pcomp.prog.Closures, fc)
		fcomp.emitArg(MAKEFUNC, idx)

	case *ast.NewExpr:
		for _, a := range e.Args {
			fcomp.expr(a)
		}
		fcomp.setPos(e.NewPos)
		arg := PackNameArgc(int(fcomp.pcomp.nameIndex(e.Name)), len(e.Args))
		if _, isStruct := fcomp.pcomp.res.Structs[e.Name]; isStruct {
			fcomp.emitArg(NEWSTRUCT, arg)
		} else {
			// script classes and host-registered native classes/structs all
			// resolve dynamically through NEWCLASS.
			fcomp.emitArg(NEWCLASS, arg)
		}

	case *ast.SpawnExpr:
		for _, a := range e.Args {
			fcomp.expr(a)
		}
		fcomp.setPos(e.SpawnPos)
		fcomp.emitArg(SPAWN, PackNameArgc(int(fcomp.pcomp.nameIndex(e.Name)), len(e.Args)))

	default:
		panic(fmt.Sprintf("compiler: unexpected expr %T", e))
	}
}

func (fcomp *fcomp) loadBinding(bdg *resolver.Binding, pos token.Pos) {
	fcomp.setPos(pos)
	switch bdg.Scope {
	case resolver.Local:
		fcomp.emitArg(LOAD, uint32(bdg.Index))
	case resolver.Cell:
		fcomp.emitArg(LOCALCELL, uint32(bdg.Index))
	case resolver.Free:
		fcomp.emitArg(FREE, uint32(bdg.Index))
	case resolver.Global:
		fcomp.emitArg(GLOBAL, uint32(bdg.Index))
	case resolver.Private:
		fcomp.emitArg(PRIVATE, uint32(bdg.Index))
	case resolver.Field:
		fcomp.emitArg(FIELD, uint32(bdg.Index))
	case resolver.Universal:
		fcomp.emitArg(UNIVERSAL, fcomp.pcomp.nameIndex(bdg.Name))
	default:
		panic(fmt.Sprintf("compiler: load of %s binding %q", bdg.Scope, bdg.Name))
	}
}

func (fcomp *fcomp) storeBinding(bdg *resolver.Binding, pos token.Pos) {
	fcomp.setPos(pos)
	switch bdg.Scope {
	case resolver.Local:
		fcomp.emitArg(SETLOCAL, uint32(bdg.Index))
	case resolver.Cell:
		fcomp.emitArg(SETLOCALCELL, uint32(bdg.Index))
	case resolver.Free:
		fcomp.emitArg(SETFREE, uint32(bdg.Index))
	case resolver.Global:
		fcomp.emitArg(SETGLOBAL, uint32(bdg.Index))
	case resolver.Private:
		fcomp.emitArg(SETPRIVATE, uint32(bdg.Index))
	case resolver.Field:
		fcomp.emitArg(SETFIELD, uint32(bdg.Index))
	default:
		panic(fmt.Sprintf("compiler: store to %s binding %q", bdg.Scope, bdg.Name))
	}
}
