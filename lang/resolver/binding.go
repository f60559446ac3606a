// Package resolver binds every identifier of a parsed chunk to a scope: a
// function-local, a closed-over cell, a free variable, a module-level
// global, an instance field of the enclosing class, or one of the
// process-private slots described in the language's value model. The pass keeps a
// stack of lexical blocks and promotes a local to a cell the moment a
// nested function captures it; the private-slot and instance-field scopes
// are specific to this language.
package resolver

import "github.com/mna/divm/lang/ast"

// Scope indicates what kind of binding an identifier resolves to.
type Scope uint8

const (
	Undefined Scope = iota // name could not be resolved
	Local                  // local to its function
	Cell                   // function-local but captured by a nested function
	Free                   // a cell of some enclosing function
	Global                 // declared with the global keyword, engine-wide
	Private                // a process-private slot (fixed or process-declared)
	Field                  // an instance field of the enclosing class
	Universal              // a host-provided predeclared name
)

var scopeNames = [...]string{
	Undefined: "undefined",
	Local:     "local",
	Cell:      "cell",
	Free:      "free",
	Global:    "global",
	Private:   "private",
	Field:     "field",
	Universal: "universal",
}

func (s Scope) String() string { return scopeNames[s] }

// Binding ties together every identifier reference that denotes the same
// variable, along with where that variable lives at runtime.
type Binding struct {
	Scope Scope
	Name  string

	// Index records the slot this binding occupies:
	//   - Local/Cell: index into the owning Function's Locals
	//   - Free:       index into the owning Function's FreeVars
	//   - Global:     index into the Program's Globals
	//   - Private:    index into the process's private slot array
	//   - Field:      index into the owning ClassInfo's Fields
	// It is meaningless for Undefined and Universal.
	Index int
}

// Function collects the locals and captured variables of a single function
// body: a top-level chunk, a process body, a named fn statement, a closure
// literal, or a class method.
type Function struct {
	Definition ast.Node // *ast.Chunk, *ast.ProcessStmt, *ast.FuncStmt, *ast.FuncExpr
	Locals     []*Binding
	FreeVars   []*Binding
	HasVarArg  bool

	// InsideProcess is true when this function is a process body, or is
	// lexically nested (as a closure literal or nested fn statement) inside
	// one, at any depth. Only
	// these functions resolve bare references to the privileged private
	// names and to names declared with the process's private statements.
	InsideProcess bool

	// Labels maps every label declared anywhere in this function (gosub
	// targets are visible through the whole function, unlike ordinary
	// blocks) to a stable index assigned in declaration order.
	Labels map[string]int

	// isClosure is true for functions that exist as runtime closures
	// (closure literals and nested fn statements); only these may capture
	// variables from their enclosing function. Process bodies, top-level
	// fns and class methods run without a closure, so a reference that
	// would have to capture through one of them is an error.
	isClosure bool

	// parent is the lexically enclosing function (nil for the chunk's main
	// function), used to thread a capture through every intermediate
	// function when a closure reaches more than one function out for a
	// variable.
	parent *Function
	// captured caches the Free binding already synthesized for a given name
	// in this function, so a variable captured through several nested
	// closures gets a single FreeVars slot no matter how many identifier
	// references use it.
	captured map[string]*Binding
}
