package resolver

import (
	"fmt"

	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/token"
	"github.com/mna/divm/runtime/private"
)

// Error is a single resolution error with its source position.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	line, col := e.Pos.LineCol()
	return fmt.Sprintf("%d:%d: %s", line, col, e.Msg)
}

// ErrorList collects every error encountered while resolving.
type ErrorList []*Error

func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
}

// block is one lexical scope: an if/while/for body, a try/catch body, or a
// function's outermost synthetic block. Blocks within the same function
// share a *Function; crossing into a nested function starts a new one.
type block struct {
	parent   *block
	fn       *Function
	bindings map[string]*Binding
}

// Resolve binds every identifier of chunk to a scope and returns the
// resulting declaration tables. The chunk must come from a successful
// parse; resolving a chunk with parse errors is undefined.
func Resolve(chunk *ast.Chunk) (*Program, error) {
	r := &resolver{
		prog: &Program{
			Chunk:     chunk,
			Funcs:     make(map[string]*Function),
			FuncDecl:  make(map[string]*ast.FuncStmt),
			Processes: make(map[string]*ProcessInfo),
			Classes:   make(map[string]*ClassInfo),
			Structs:   make(map[string]*StructInfo),
			Idents:    make(map[*ast.IdentExpr]*Binding),
			Decls:     make(map[ast.Node]*Binding),
			Closures:  make(map[*ast.FuncExpr]*Function),
		},
		globals: make(map[string]*Binding),
	}
	r.predeclare(chunk)

	mainFn := &Function{Definition: chunk}
	r.push(&block{fn: mainFn})
	for _, s := range chunk.Stmts {
		r.topStmt(s)
	}
	r.pop()
	r.prog.Main = mainFn

	if len(r.errors) > 0 {
		return r.prog, r.errors
	}
	return r.prog, nil
}

type resolver struct {
	prog    *Program
	env     *block
	errors  ErrorList
	globals map[string]*Binding

	curProcess *ProcessInfo
	curClass   *ClassInfo
	loopDepth  int
}

func (r *resolver) errorf(pos token.Pos, format string, args ...interface{}) {
	r.errors = append(r.errors, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

func (r *resolver) push(b *block) {
	if b.fn == nil {
		b.fn = r.env.fn
	}
	b.parent = r.env
	b.bindings = make(map[string]*Binding)
	r.env = b
}

func (r *resolver) pop() { r.env = r.env.parent }

// predeclare walks the chunk's top-level statements (without descending
// into bodies) so that a process, class, struct or function may be
// referenced before its declaration appears in the source, exactly as
// spawn(child) can precede "process child()" later in the same chunk.
func (r *resolver) predeclare(chunk *ast.Chunk) {
	for _, s := range chunk.Stmts {
		switch s := s.(type) {
		case *ast.ProcessStmt:
			if _, dup := r.prog.Processes[s.Name]; dup {
				r.errorf(s.ProcessPos, "process %q already declared", s.Name)
				continue
			}
			r.prog.Processes[s.Name] = &ProcessInfo{
				Name:         s.Name,
				Decl:         s,
				PrivateIndex: make(map[string]int),
			}
		case *ast.ClassStmt:
			if _, dup := r.prog.Classes[s.Name]; dup {
				r.errorf(s.ClassPos, "class %q already declared", s.Name)
				continue
			}
			ci := &ClassInfo{
				Name:       s.Name,
				Decl:       s,
				Base:       s.Base,
				FieldIndex: make(map[string]int),
				Methods:    make(map[string]*Function),
				MethodDecl: make(map[string]*ast.FuncStmt),
			}
			for _, f := range s.Fields {
				ci.FieldIndex[f.Name] = len(ci.Fields)
				ci.Fields = append(ci.Fields, f.Name)
			}
			r.prog.Classes[s.Name] = ci
		case *ast.StructStmt:
			if _, dup := r.prog.Structs[s.Name]; dup {
				r.errorf(s.StructPos, "struct %q already declared", s.Name)
				continue
			}
			si := &StructInfo{Name: s.Name, Decl: s, FieldIndex: make(map[string]int)}
			for _, f := range s.Fields {
				si.FieldIndex[f.Name] = len(si.Fields)
				si.Fields = append(si.Fields, f.Name)
			}
			r.prog.Structs[s.Name] = si
		case *ast.FuncStmt:
			if _, dup := r.prog.FuncDecl[s.Name]; dup {
				r.errorf(s.FnPos, "function %q already declared", s.Name)
				continue
			}
			r.prog.FuncDecl[s.Name] = s
			// A top-level fn is callable by name from anywhere in the chunk,
			// so it is bound exactly like a `global`: the engine initializes
			// the matching global slot with the compiled function's value
			// before running the chunk's top-level statements.
			bdg := &Binding{Scope: Global, Name: s.Name, Index: len(r.prog.Globals)}
			r.prog.Globals = append(r.prog.Globals, s.Name)
			r.globals[s.Name] = bdg
		}
	}
}

// topStmt resolves a statement of the chunk's top level: process, class and
// struct declarations are handled here, any other statement as in a nested
// block.
func (r *resolver) topStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ProcessStmt:
		r.process(s)
	case *ast.ClassStmt:
		r.class(s)
	case *ast.StructStmt:
		// no identifiers to resolve; field layout was recorded in predeclare.
	case *ast.FuncStmt:
		r.prog.Funcs[s.Name] = r.function(s, s.Fn.Params, s.Fn.HasRest, s.Fn.Body, false, false)
	default:
		r.stmt(s)
	}
}

func (r *resolver) process(s *ast.ProcessStmt) {
	pi := r.prog.Processes[s.Name]
	for _, name := range private.PrivateNames {
		pi.PrivateIndex[name] = mustIndex(name)
	}

	fn := &Function{Definition: s, InsideProcess: true, parent: r.env.fn}
	blk := &block{fn: fn}
	r.push(blk)

	prevProc := r.curProcess
	r.curProcess = pi
	collectLabels(fn, s.Body)

	for i := range s.Params {
		pi.Params = append(pi.Params, r.bindLocal(&s.Params[i]))
	}
	r.block(s.Body)

	r.curProcess = prevProc
	r.pop()
	pi.Fn = fn
}

func mustIndex(name string) int {
	i, _ := private.PrivateIndex(name)
	return i
}

func (r *resolver) class(s *ast.ClassStmt) {
	ci := r.prog.Classes[s.Name]

	prevClass := r.curClass
	r.curClass = ci
	for _, m := range s.Methods {
		if _, dup := ci.MethodDecl[m.Name]; dup {
			r.errorf(m.FnPos, "method %q already declared on class %q", m.Name, s.Name)
			continue
		}
		ci.MethodDecl[m.Name] = m
	}
	for _, m := range s.Methods {
		ci.Methods[m.Name] = r.function(m, m.Fn.Params, m.Fn.HasRest, m.Fn.Body, false, false)
	}
	r.curClass = prevClass
}

// function resolves a function body in its own synthetic block, returning
// the Function describing its locals and captured variables. isClosure
// marks functions that exist as runtime closures and may therefore capture
// enclosing variables.
func (r *resolver) function(def ast.Node, params []ast.Field, hasRest bool, body *ast.Block, insideProcess, isClosure bool) *Function {
	fn := &Function{Definition: def, HasVarArg: hasRest, InsideProcess: insideProcess || r.insideProcess(), isClosure: isClosure, parent: r.env.fn}
	blk := &block{fn: fn}
	r.push(blk)
	prevLoops := r.loopDepth
	r.loopDepth = 0
	collectLabels(fn, body)
	for i := range params {
		r.bindLocal(&params[i])
	}
	r.block(body)
	r.loopDepth = prevLoops
	r.pop()
	return fn
}

func (r *resolver) insideProcess() bool {
	return r.env != nil && r.env.fn != nil && r.env.fn.InsideProcess
}

// collectLabels pre-scans body for label statements without descending into
// nested function or process bodies, so a gosub may target a label
// declared later in the same function.
func collectLabels(fn *Function, body *ast.Block) {
	if fn.Labels == nil {
		fn.Labels = make(map[string]int)
	}
	var walk func(b *ast.Block)
	walk = func(b *ast.Block) {
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *ast.LabelStmt:
				if _, dup := fn.Labels[s.Name]; !dup {
					fn.Labels[s.Name] = len(fn.Labels)
				}
			case *ast.IfStmt:
				walk(s.Then)
				if s.Else != nil {
					walk(s.Else)
				}
			case *ast.WhileStmt:
				walk(s.Body)
			case *ast.ForInStmt:
				walk(s.Body)
			case *ast.TryStmt:
				walk(s.Body)
				walk(s.Catch)
			}
		}
	}
	walk(body)
}

func (r *resolver) block(b *ast.Block) {
	r.push(&block{})
	for _, s := range b.Stmts {
		r.stmt(s)
	}
	r.pop()
}

func (r *resolver) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		r.expr(s.X)

	case *ast.DeclStmt:
		for _, v := range s.Values {
			if v != nil {
				r.expr(v)
			}
		}
		for i, f := range s.Names {
			switch s.Kind {
			case token.GLOBAL:
				r.bindGlobal(f)
			case token.PRIVATE:
				r.bindPrivate(f)
			default:
				r.bindLocal(&s.Names[i])
			}
		}

	case *ast.AssignStmt:
		r.expr(s.RHS)
		r.expr(s.LHS)
		if lhs, ok := s.LHS.(*ast.IdentExpr); ok {
			if bdg := r.prog.Idents[lhs]; bdg != nil && bdg.Scope == Universal {
				r.errorf(lhs.NamePos, "cannot assign to undeclared name %q", lhs.Name)
			}
		}

	case *ast.IfStmt:
		r.expr(s.Cond)
		r.block(s.Then)
		if s.Else != nil {
			r.block(s.Else)
		}

	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.loopDepth++
		r.block(s.Body)
		r.loopDepth--

	case *ast.ForInStmt:
		if len(s.Names) > 1 {
			r.errorf(s.ForPos, "for-in binds exactly one name (the element for arrays, the key for maps)")
		}
		r.expr(s.X)
		r.push(&block{})
		for i := range s.Names {
			r.bindLocal(&s.Names[i])
		}
		r.loopDepth++
		for _, st := range s.Body.Stmts {
			r.stmt(st)
		}
		r.loopDepth--
		r.pop()

	case *ast.ReturnStmt:
		if s.X != nil {
			r.expr(s.X)
		}

	case *ast.BranchStmt:
		// break/continue always refer to the innermost loop.
		if r.loopDepth == 0 {
			r.errorf(s.TokPos, "%s outside of a loop", s.Tok)
		}

	case *ast.LabelStmt:
		// already recorded by collectLabels.

	case *ast.GosubStmt:
		if _, ok := r.env.fn.Labels[s.Name]; !ok {
			r.errorf(s.GosubPos, "gosub to undeclared label %q", s.Name)
		}

	case *ast.RetsubStmt:
		// nothing to resolve.

	case *ast.TryStmt:
		r.block(s.Body)
		r.push(&block{})
		if s.CatchVar != "" {
			r.prog.Decls[s] = r.declareLocal(s.CatchVar, s.TryPos)
		}
		for _, st := range s.Catch.Stmts {
			r.stmt(st)
		}
		r.pop()

	case *ast.ThrowStmt:
		r.expr(s.X)

	case *ast.FrameStmt:
		r.expr(s.Percent)

	case *ast.WaitStmt:
		r.expr(s.Ms)

	case *ast.KillStmt:
		if s.ID != nil {
			r.expr(s.ID)
		}

	case *ast.SignalStmt:
		r.expr(s.ID)
		r.expr(s.Kind)

	case *ast.FuncStmt:
		// a fn statement nested inside a block (not top-level): bind its
		// name in the enclosing scope so it may be called afterward.
		r.prog.Decls[s] = r.declareLocal(s.Name, s.FnPos)
		r.prog.Closures[s.Fn] = r.function(s, s.Fn.Params, s.Fn.HasRest, s.Fn.Body, false, true)

	default:
		panic(fmt.Sprintf("resolver: unexpected stmt %T", s))
	}
}

func (r *resolver) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.BadExpr, *ast.LiteralExpr:
		// nothing to resolve

	case *ast.IdentExpr:
		r.use(e)

	case *ast.UnaryOpExpr:
		r.expr(e.X)

	case *ast.BinOpExpr:
		r.expr(e.X)
		r.expr(e.Y)

	case *ast.ParenExpr:
		r.expr(e.X)

	case *ast.CallExpr:
		r.expr(e.Fn)
		for _, a := range e.Args {
			r.expr(a)
		}

	case *ast.DotExpr:
		// Name is resolved dynamically at runtime against whatever value X
		// evaluates to; only X needs lexical resolution.
		r.expr(e.X)

	case *ast.IndexExpr:
		r.expr(e.X)
		r.expr(e.Y)

	case *ast.ArrayExpr:
		for _, el := range e.Elems {
			r.expr(el)
		}

	case *ast.MapExpr:
		for _, ent := range e.Entries {
			r.expr(ent.Key)
			r.expr(ent.Value)
		}

	case *ast.FuncExpr:
		r.prog.Closures[e] = r.function(e, e.Params, e.HasRest, e.Body, false, true)

	case *ast.NewExpr:
		for _, a := range e.Args {
			r.expr(a)
		}
		_, isClass := r.prog.Classes[e.Name]
		_, isStruct := r.prog.Structs[e.Name]
		if !isClass && !isStruct {
			// may still be a native class/struct registered at runtime by the
			// host; the compiler emits a dynamic lookup in that case.
		}

	case *ast.SpawnExpr:
		for _, a := range e.Args {
			r.expr(a)
		}
		if _, ok := r.prog.Processes[e.Name]; !ok {
			r.errorf(e.SpawnPos, "spawn of undeclared process %q", e.Name)
		}

	default:
		panic(fmt.Sprintf("resolver: unexpected expr %T", e))
	}
}

// bindLocal declares f as a new local in the current block, promoting it to
// Cell later if a nested function captures it.
func (r *resolver) bindLocal(f *ast.Field) *Binding {
	bdg := r.declareLocal(f.Name, f.Pos)
	r.prog.Decls[f] = bdg
	return bdg
}

// declareLocal introduces name as a new local of the current function
// without recording a declaration-site entry; callers whose declaration
// site isn't a real *ast.Field (the try/catch variable, a nested fn
// statement bound as a local) record their own Decls entry keyed by the
// enclosing statement node instead.
func (r *resolver) declareLocal(name string, pos token.Pos) *Binding {
	if _, dup := r.env.bindings[name]; dup {
		r.errorf(pos, "%q already declared in this block", name)
	}
	bdg := &Binding{Scope: Local, Name: name, Index: len(r.env.fn.Locals)}
	r.env.fn.Locals = append(r.env.fn.Locals, bdg)
	r.env.bindings[name] = bdg
	return bdg
}

func (r *resolver) bindGlobal(f ast.Field) {
	if _, ok := r.globals[f.Name]; ok {
		return
	}
	bdg := &Binding{Scope: Global, Name: f.Name, Index: len(r.prog.Globals)}
	r.prog.Globals = append(r.prog.Globals, f.Name)
	r.globals[f.Name] = bdg
	r.env.bindings[f.Name] = bdg
}

func (r *resolver) bindPrivate(f ast.Field) {
	if r.curProcess == nil {
		r.errorf(f.Pos, "private declaration %q outside of a process", f.Name)
		return
	}
	if _, ok := r.curProcess.PrivateIndex[f.Name]; ok {
		return
	}
	idx := private.NumPrivates + len(r.curProcess.PrivateNames)
	r.curProcess.PrivateNames = append(r.curProcess.PrivateNames, f.Name)
	r.curProcess.PrivateIndex[f.Name] = idx
}

// use resolves a reference to ident, searching enclosing blocks, then
// process-private slots, then class fields, then globals.
func (r *resolver) use(ident *ast.IdentExpr) {
	startFn := r.env.fn
	for env := r.env; env != nil; env = env.parent {
		if bdg, ok := env.bindings[ident.Name]; ok {
			if env.fn != startFn {
				if !r.capturable(env.fn, startFn) {
					r.errorf(ident.NamePos, "cannot capture %q: only closures may reference variables of an enclosing function", ident.Name)
					r.prog.Idents[ident] = &Binding{Scope: Undefined, Name: ident.Name}
					return
				}
				bdg = r.capture(env.fn, startFn, ident.Name, bdg)
			}
			r.prog.Idents[ident] = bdg
			return
		}
	}

	if r.insideProcess() {
		if idx, ok := r.curProcess.PrivateIndex[ident.Name]; ok {
			r.prog.Idents[ident] = &Binding{Scope: Private, Name: ident.Name, Index: idx}
			return
		}
	}

	if r.curClass != nil {
		if idx, ok := r.curClass.FieldIndex[ident.Name]; ok {
			r.prog.Idents[ident] = &Binding{Scope: Field, Name: ident.Name, Index: idx}
			return
		}
	}

	if bdg, ok := r.globals[ident.Name]; ok {
		r.prog.Idents[ident] = bdg
		return
	}

	// Not declared anywhere in this chunk: assume it names a native
	// function or value the host registers with the engine before running
	// this program. Existence is only checked once the engine actually
	// looks the name up, since the set of registered natives is a property
	// of the running Interpreter, not of the compiled chunk.
	r.prog.Idents[ident] = &Binding{Scope: Universal, Name: ident.Name}
}

// capturable reports whether every function between the use site and the
// declaring function (declaring function excluded) exists as a runtime
// closure, the only kind that carries captured variables.
func (r *resolver) capturable(declFn, useFn *Function) bool {
	for fn := useFn; fn != declFn; fn = fn.parent {
		if !fn.isClosure {
			return false
		}
	}
	return true
}

// capture threads a variable declared in declFn (as declBdg) through every
// function lexically between declFn and useFn, so a closure nested two or
// more levels deep sees it as a Free binding resolved relative to its own
// immediately enclosing frame rather than skipping straight to the original
// declaration. The original declaration is promoted to a Cell if it was
// still a plain Local.
func (r *resolver) capture(declFn, useFn *Function, name string, declBdg *Binding) *Binding {
	if declBdg.Scope == Local {
		declBdg.Scope = Cell
	}

	var chain []*Function // useFn first, up to (excluding) declFn
	for fn := useFn; fn != declFn; fn = fn.parent {
		chain = append(chain, fn)
	}

	bdg := declBdg
	for i := len(chain) - 1; i >= 0; i-- {
		fn := chain[i]
		if cached, ok := fn.captured[name]; ok {
			bdg = cached
			continue
		}
		free := &Binding{Scope: Free, Name: name, Index: len(fn.FreeVars)}
		fn.FreeVars = append(fn.FreeVars, bdg)
		if fn.captured == nil {
			fn.captured = make(map[string]*Binding)
		}
		fn.captured[name] = free
		bdg = free
	}
	return bdg
}
