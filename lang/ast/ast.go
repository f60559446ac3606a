// Package ast defines the abstract syntax tree produced by lang/parser and
// consumed by lang/resolver and lang/compiler.
package ast

import "github.com/mna/divm/lang/token"

// Node is implemented by every AST node.
type Node interface {
	// Span reports the start and end source position of the node.
	Span() (start, end token.Pos)
}

// Expr is implemented by every expression node.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by every statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Chunk is the root node of a parsed file: a sequence of top-level
// statements (process/class/struct/fn declarations, var decls, and plain
// statements for a script run outside of any process).
type Chunk struct {
	Name  string
	Stmts []Stmt
	EOF   token.Pos
}

func (n *Chunk) Span() (start, end token.Pos) {
	if len(n.Stmts) == 0 {
		return n.EOF, n.EOF
	}
	start, _ = n.Stmts[0].Span()
	_, end = n.Stmts[len(n.Stmts)-1].Span()
	return start, end
}

// Block is a sequence of statements delimited by `begin`/`end` in the
// concrete syntax.
type Block struct {
	Start, End token.Pos
	Stmts      []Stmt
}

func (n *Block) Span() (start, end token.Pos) { return n.Start, n.End }

// Field describes a single named parameter, private declaration or
// class/struct field.
type Field struct {
	Name string
	Pos  token.Pos
}

func (n *Field) Span() (start, end token.Pos) { return n.Pos, n.Pos }
