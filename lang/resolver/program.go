package resolver

import "github.com/mna/divm/lang/ast"

// ProcessInfo is everything the compiler needs to know about one declared
// process type once resolution is complete.
type ProcessInfo struct {
	Name   string
	Decl   *ast.ProcessStmt
	Fn     *Function
	Params []*Binding // parallel to Decl.Params, Scope always Local

	// PrivateNames lists, in declaration order, every name beyond the fixed
	// value.PrivateNames table that this process type declares with the
	// private keyword. PrivateIndex maps every private name (fixed or
	// declared) this process type actually uses to its slot index.
	PrivateNames []string
	PrivateIndex map[string]int
}

// ClassInfo describes one declared class type.
type ClassInfo struct {
	Name       string
	Decl       *ast.ClassStmt
	Base       string
	Fields     []string
	FieldIndex map[string]int
	Methods    map[string]*Function
	MethodDecl map[string]*ast.FuncStmt
}

// StructInfo describes one declared fixed-layout struct type.
type StructInfo struct {
	Name       string
	Decl       *ast.StructStmt
	Fields     []string
	FieldIndex map[string]int
}

// Program is the result of resolving a single chunk: every declaration
// table the compiler needs, plus the resolution recorded for each
// identifier reference.
type Program struct {
	Chunk *ast.Chunk

	// Main is the function formed by the chunk's top-level statements,
	// executed once as the module's entry point.
	Main *Function

	Funcs     map[string]*Function // top-level fn declarations, by name
	FuncDecl  map[string]*ast.FuncStmt
	Processes map[string]*ProcessInfo
	Classes   map[string]*ClassInfo
	Structs   map[string]*StructInfo

	// Globals lists the chunk's top-level fn names (bound first, in
	// declaration order) followed by every name declared with the global
	// keyword, in declaration order; its index in this slice is the
	// Binding.Index used by every Global-scoped reference.
	Globals []string

	// Idents resolves every identifier expression encountered as a use
	// (never a declaration site) to its Binding. AssignStmt targets that are
	// plain identifiers are included too; for-in loop names are declaration
	// sites and are recorded in Decls.
	Idents map[*ast.IdentExpr]*Binding

	// Decls resolves a declaration site to the Binding it introduced, for
	// sites the compiler cannot otherwise recover a slot index for: a
	// parameter or var/for-in name (keyed by its *ast.Field), a try/catch
	// bound error variable (keyed by its *ast.TryStmt) and a nested fn
	// statement bound as a local (keyed by its *ast.FuncStmt). Global and
	// private bindings are looked up by name instead and are not recorded
	// here.
	Decls map[ast.Node]*Binding

	// Closures resolves a closure literal to the Function describing its
	// locals and captured variables, the compiler's only path to a
	// FuncExpr's resolution (named fn bodies are reachable through Funcs
	// and through ClassInfo.Methods instead).
	Closures map[*ast.FuncExpr]*Function
}
