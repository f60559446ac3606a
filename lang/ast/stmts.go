package ast

import "github.com/mna/divm/lang/token"

type (
	// BadStmt is a placeholder for a statement that failed to parse.
	BadStmt struct {
		From, To token.Pos
	}

	// ExprStmt is a bare expression evaluated for its side effects (almost
	// always a CallExpr).
	ExprStmt struct {
		X Expr
	}

	// DeclStmt declares one or more bindings: var/private/global Name = Expr,
	// ... .
	DeclStmt struct {
		Kind    token.Token // VAR, PRIVATE or GLOBAL
		KwPos   token.Pos
		Names   []Field
		Values  []Expr // parallel to Names; may be shorter (missing = nil init)
		EndPos  token.Pos
	}

	// AssignStmt assigns to one or more lvalues: X op= Y.
	AssignStmt struct {
		LHS   Expr
		Op    token.Token // EQ, PLUS_EQ, MINUS_EQ, ...
		OpPos token.Pos
		RHS   Expr
	}

	// IfStmt is an if/else statement.
	IfStmt struct {
		IfPos      token.Pos
		Cond       Expr
		Then       *Block
		Else       *Block // nil if no else clause; may itself contain a single IfStmt for else-if
		EndPos     token.Pos
	}

	// WhileStmt is a while loop.
	WhileStmt struct {
		WhilePos token.Pos
		Cond     Expr
		Body     *Block
		EndPos   token.Pos
	}

	// ForInStmt iterates the elements of an iterable.
	ForInStmt struct {
		ForPos token.Pos
		Names  []Field
		X      Expr
		Body   *Block
		EndPos token.Pos
	}

	// ReturnStmt returns from the enclosing function, with an optional value.
	ReturnStmt struct {
		ReturnPos token.Pos
		X         Expr // nil if bare return
	}

	// BranchStmt is break or continue.
	BranchStmt struct {
		Tok    token.Token // BREAK or CONTINUE
		TokPos token.Pos
	}

	// LabelStmt declares a gosub target: label Name.
	LabelStmt struct {
		LabelPos token.Pos
		Name     string
	}

	// GosubStmt jumps to a label, pushing a return address: gosub Name.
	GosubStmt struct {
		GosubPos token.Pos
		Name     string
	}

	// RetsubStmt resumes execution after the most recent gosub.
	RetsubStmt struct {
		RetsubPos token.Pos
	}

	// TryStmt brackets a block with an error handler.
	TryStmt struct {
		TryPos   token.Pos
		Body     *Block
		CatchVar string // empty if the caught error is not bound to a name
		Catch    *Block
		EndPos   token.Pos
	}

	// ThrowStmt raises a script-level error.
	ThrowStmt struct {
		ThrowPos token.Pos
		X        Expr
	}

	// FrameStmt yields the current process until the given percentage of a
	// host frame has elapsed: frame(Percent).
	FrameStmt struct {
		FramePos       token.Pos
		Percent        Expr
		LParen, RParen token.Pos
	}

	// WaitStmt suspends the current fiber for a number of milliseconds:
	// wait(Ms).
	WaitStmt struct {
		WaitPos        token.Pos
		Ms             Expr
		LParen, RParen token.Pos
	}

	// KillStmt kills a process by id, or every alive process if ID is nil:
	// kill(ID).
	KillStmt struct {
		KillPos        token.Pos
		ID             Expr // nil means kill_all
		LParen, RParen token.Pos
	}

	// SignalStmt sends a signal to a process: signal(ID, Kind).
	SignalStmt struct {
		SignalPos      token.Pos
		ID, Kind       Expr
		LParen, RParen token.Pos
	}

	// FuncStmt declares a named function in the enclosing scope: fn Name(...)
	// begin ... end.
	FuncStmt struct {
		FnPos  token.Pos
		Name   string
		Fn     *FuncExpr
		EndPos token.Pos
	}

	// ProcessStmt declares a process type: process Name(...) begin ... end.
	ProcessStmt struct {
		ProcessPos token.Pos
		Name       string
		Params     []Field
		Body       *Block
		EndPos     token.Pos
	}

	// ClassStmt declares a class type, with an ordered list of fields and
	// method declarations, and an optional base class name.
	ClassStmt struct {
		ClassPos token.Pos
		Name     string
		Base     string // empty if no base class
		Fields   []Field
		Methods  []*FuncStmt
		EndPos   token.Pos
	}

	// StructStmt declares a fixed-layout tuple type.
	StructStmt struct {
		StructPos token.Pos
		Name      string
		Fields    []Field
		EndPos    token.Pos
	}
)

func (n *BadStmt) Span() (token.Pos, token.Pos)    { return n.From, n.To }
func (n *ExprStmt) Span() (token.Pos, token.Pos)   { return n.X.Span() }
func (n *DeclStmt) Span() (token.Pos, token.Pos)   { return n.KwPos, n.EndPos }
func (n *AssignStmt) Span() (token.Pos, token.Pos) {
	start, _ := n.LHS.Span()
	_, end := n.RHS.Span()
	return start, end
}
func (n *IfStmt) Span() (token.Pos, token.Pos)      { return n.IfPos, n.EndPos }
func (n *WhileStmt) Span() (token.Pos, token.Pos)   { return n.WhilePos, n.EndPos }
func (n *ForInStmt) Span() (token.Pos, token.Pos)   { return n.ForPos, n.EndPos }
func (n *ReturnStmt) Span() (token.Pos, token.Pos)  { return n.ReturnPos, n.ReturnPos }
func (n *BranchStmt) Span() (token.Pos, token.Pos)  { return n.TokPos, n.TokPos }
func (n *LabelStmt) Span() (token.Pos, token.Pos)   { return n.LabelPos, n.LabelPos }
func (n *GosubStmt) Span() (token.Pos, token.Pos)   { return n.GosubPos, n.GosubPos }
func (n *RetsubStmt) Span() (token.Pos, token.Pos)  { return n.RetsubPos, n.RetsubPos }
func (n *TryStmt) Span() (token.Pos, token.Pos)     { return n.TryPos, n.EndPos }
func (n *ThrowStmt) Span() (token.Pos, token.Pos)   { return n.ThrowPos, n.ThrowPos }
func (n *FrameStmt) Span() (token.Pos, token.Pos)   { return n.FramePos, n.RParen }
func (n *WaitStmt) Span() (token.Pos, token.Pos)    { return n.WaitPos, n.RParen }
func (n *KillStmt) Span() (token.Pos, token.Pos)    { return n.KillPos, n.RParen }
func (n *SignalStmt) Span() (token.Pos, token.Pos)  { return n.SignalPos, n.RParen }
func (n *FuncStmt) Span() (token.Pos, token.Pos)    { return n.FnPos, n.EndPos }
func (n *ProcessStmt) Span() (token.Pos, token.Pos) { return n.ProcessPos, n.EndPos }
func (n *ClassStmt) Span() (token.Pos, token.Pos)   { return n.ClassPos, n.EndPos }
func (n *StructStmt) Span() (token.Pos, token.Pos)  { return n.StructPos, n.EndPos }

func (*BadStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()    {}
func (*DeclStmt) stmtNode()    {}
func (*AssignStmt) stmtNode()  {}
func (*IfStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()   {}
func (*ForInStmt) stmtNode()   {}
func (*ReturnStmt) stmtNode()  {}
func (*BranchStmt) stmtNode()  {}
func (*LabelStmt) stmtNode()   {}
func (*GosubStmt) stmtNode()   {}
func (*RetsubStmt) stmtNode()  {}
func (*TryStmt) stmtNode()     {}
func (*ThrowStmt) stmtNode()   {}
func (*FrameStmt) stmtNode()   {}
func (*WaitStmt) stmtNode()    {}
func (*KillStmt) stmtNode()    {}
func (*SignalStmt) stmtNode()  {}
func (*FuncStmt) stmtNode()    {}
func (*ProcessStmt) stmtNode() {}
func (*ClassStmt) stmtNode()   {}
func (*StructStmt) stmtNode()  {}
