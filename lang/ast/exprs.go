package ast

import "github.com/mna/divm/lang/token"

type (
	// BadExpr is a placeholder for an expression that failed to parse.
	BadExpr struct {
		From, To token.Pos
	}

	// LiteralExpr is a literal nil/bool/int/float/string value.
	LiteralExpr struct {
		TokPos token.Pos
		Tok    token.Token // NIL, TRUE, FALSE, INT, FLOAT, STRING
		Value  interface{} // int64, float64, string, bool, or nil
	}

	// IdentExpr is a reference to a named binding: a local, global, free
	// variable, or one of the privileged process-private names.
	IdentExpr struct {
		NamePos token.Pos
		Name    string
	}

	// UnaryOpExpr is a unary operator expression: op X.
	UnaryOpExpr struct {
		OpPos token.Pos
		Op    token.Token
		X     Expr
	}

	// BinOpExpr is a binary operator expression: X op Y.
	BinOpExpr struct {
		OpPos token.Pos
		Op    token.Token
		X, Y  Expr
	}

	// ParenExpr is a parenthesized expression: (X).
	ParenExpr struct {
		LParen, RParen token.Pos
		X              Expr
	}

	// CallExpr is a function (or constructor) call: Fn(Args...).
	CallExpr struct {
		Fn             Expr
		Args           []Expr
		LParen, RParen token.Pos
	}

	// DotExpr is a field/method access: X.Name.
	DotExpr struct {
		X       Expr
		Name    string
		NamePos token.Pos
	}

	// IndexExpr is an array/map index: X[Y].
	IndexExpr struct {
		X, Y           Expr
		LBrack, RBrack token.Pos
	}

	// ArrayExpr is an array literal: [e1, e2, ...].
	ArrayExpr struct {
		LBrack, RBrack token.Pos
		Elems          []Expr
	}

	// MapEntry is a single key:value pair of a MapExpr.
	MapEntry struct {
		Key, Value Expr
	}

	// MapExpr is a map literal: {k1: v1, k2: v2, ...}.
	MapExpr struct {
		LBrace, RBrace token.Pos
		Entries        []MapEntry
	}

	// FuncExpr is an anonymous function (closure) literal: fn(params) begin
	// ... end.
	FuncExpr struct {
		FnPos   token.Pos
		Params  []Field
		HasRest bool // params end with `...`: extra positional args are accepted and dropped
		Body    *Block
		EndPos  token.Pos
	}

	// NewExpr instantiates a class or struct (or native class/struct):
	// new Name(args...).
	NewExpr struct {
		NewPos         token.Pos
		Name           string
		Args           []Expr
		LParen, RParen token.Pos
	}

	// SpawnExpr spawns a process: spawn Name(args...).
	SpawnExpr struct {
		SpawnPos       token.Pos
		Name           string
		Args           []Expr
		LParen, RParen token.Pos
	}
)

func (n *BadExpr) Span() (token.Pos, token.Pos)     { return n.From, n.To }
func (n *LiteralExpr) Span() (token.Pos, token.Pos) { return n.TokPos, n.TokPos }
func (n *IdentExpr) Span() (token.Pos, token.Pos)   { return n.NamePos, n.NamePos }
func (n *UnaryOpExpr) Span() (token.Pos, token.Pos) {
	_, end := n.X.Span()
	return n.OpPos, end
}
func (n *BinOpExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.X.Span()
	_, end := n.Y.Span()
	return start, end
}
func (n *ParenExpr) Span() (token.Pos, token.Pos) { return n.LParen, n.RParen }
func (n *CallExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.Fn.Span()
	return start, n.RParen
}
func (n *DotExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.X.Span()
	return start, n.NamePos
}
func (n *IndexExpr) Span() (token.Pos, token.Pos) {
	start, _ := n.X.Span()
	return start, n.RBrack
}
func (n *ArrayExpr) Span() (token.Pos, token.Pos) { return n.LBrack, n.RBrack }
func (n *MapExpr) Span() (token.Pos, token.Pos)   { return n.LBrace, n.RBrace }
func (n *FuncExpr) Span() (token.Pos, token.Pos)  { return n.FnPos, n.EndPos }
func (n *NewExpr) Span() (token.Pos, token.Pos)   { return n.NewPos, n.RParen }
func (n *SpawnExpr) Span() (token.Pos, token.Pos) { return n.SpawnPos, n.RParen }

func (*BadExpr) exprNode()     {}
func (*LiteralExpr) exprNode() {}
func (*IdentExpr) exprNode()   {}
func (*UnaryOpExpr) exprNode() {}
func (*BinOpExpr) exprNode()   {}
func (*ParenExpr) exprNode()   {}
func (*CallExpr) exprNode()    {}
func (*DotExpr) exprNode()     {}
func (*IndexExpr) exprNode()   {}
func (*ArrayExpr) exprNode()   {}
func (*MapExpr) exprNode()     {}
func (*FuncExpr) exprNode()    {}
func (*NewExpr) exprNode()     {}
func (*SpawnExpr) exprNode()   {}
