package compiler

import "github.com/mna/divm/lang/token"

// Binding records the name and declaration position of a local, free,
// global or private variable, kept around for diagnostics and for the
// disassembler.
type Binding struct {
	Name string
	Pos  token.Pos
}

// Catch is a PC range protected by a try/catch block: a THROW (or a runtime
// error) raised while the program counter is within [PC0, PC1) transfers
// control to StartPC with the error value pushed on the stack. Nested
// catches must appear after the more general (outer) ones, so the
// innermost applicable entry is always found first by a linear scan from
// the end.
type Catch struct {
	PC0, PC1 uint32
	StartPC  uint32
	HasVar   bool // whether the catch block binds the error to a local
	VarLocal int  // local slot to store the error into, if HasVar
}

// FreeVarSource tells MAKEFUNC where to pull one freevar from in the frame
// creating the closure: either the creating function's own cell-local
// (FromCell, by local slot index) or the creating closure's own already
// captured upvalue (by Upvals index). Parallel to Freevars.
type FreeVarSource struct {
	FromCell bool
	Index    int
}

// Funcode is the compiled code of a single function: a top-level chunk, a
// process body, a named fn, a closure literal, or a class method.
type Funcode struct {
	Prog *Program
	Pos  token.Pos
	Name string

	Code      []byte
	Locals    []Binding
	Cells     []int // indices into Locals that are captured by a nested closure
	Freevars  []Binding
	FreeSrc   []FreeVarSource
	Catches   []Catch
	PosTable  []PCPos // sorted by PC; the debug line table of the chunk
	MaxStack  int
	NumParams int
	HasVarArg bool
}

// PCPos records that the instructions from PC (inclusive) up to the next
// entry's PC compile from source position Pos.
type PCPos struct {
	PC  uint32
	Pos token.Pos
}

// PosAt returns the source position of the instruction at pc, or 0 if the
// function carries no position table.
func (fn *Funcode) PosAt(pc uint32) token.Pos {
	var pos token.Pos
	for _, e := range fn.PosTable {
		if e.PC > pc {
			break
		}
		pos = e.Pos
	}
	return pos
}

// ProcessDef is the compiled counterpart of a process declaration: its
// entry function (Ctor, compiled from the whole process body with the
// declaration's parameters, and run on the fiber of every spawned instance)
// plus the number of private slots a process instance of this type carries.
type ProcessDef struct {
	Name         string
	Ctor         *Funcode
	NumPrivates  int      // value.NumPrivates + however many extra `private` names this type declares
	PrivateNames []string // extra private names beyond the fixed table, in slot order
}

// ClassDef is the compiled counterpart of a class declaration.
type ClassDef struct {
	Name    string
	Base    string
	Fields  []string
	Methods map[string]*Funcode
}

// StructDef is the compiled counterpart of a struct declaration.
type StructDef struct {
	Name   string
	Fields []string
}

// Program is a fully compiled chunk, ready to be loaded and executed by the
// runtime engine, or serialized to the on-disk bytecode format.
type Program struct {
	Filename string

	Toplevel  *Funcode
	Functions []*Funcode // named top-level fn declarations, in declaration order
	Closures  []*Funcode // fn-expression (anonymous) bodies, referenced by MAKEFUNC<n>

	Constants []interface{} // int64, float64 or string
	Names     []string      // interned strings for ATTR/SETATTR/NEWCLASS/NEWSTRUCT/SPAWN name operands
	Globals   []string      // global slot names, in declaration order

	Processes []*ProcessDef
	Classes   []*ClassDef
	Structs   []*StructDef
}
