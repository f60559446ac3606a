package parser

import (
	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/token"
)

// parseTopStmt parses a chunk-scope statement: process/class/struct
// declarations, which may only appear at chunk scope, in addition to
// everything a nested block can contain (fn declarations included).
func (p *parser) parseTopStmt() ast.Stmt {
	switch p.tok {
	case token.PROCESS:
		return p.parseProcessStmt()
	case token.CLASS:
		return p.parseClassStmt()
	case token.STRUCT:
		return p.parseStructStmt()
	default:
		return p.parseStmt()
	}
}

func (p *parser) parseBlock() *ast.Block {
	start := p.expect(token.BEGIN)
	b := &ast.Block{Start: start}
	for p.tok != token.END && p.tok != token.EOF {
		b.Stmts = append(b.Stmts, p.parseStmt())
	}
	b.End = p.pos
	return b
}

func (p *parser) parseParams() (params []ast.Field, rest bool) {
	p.expect(token.LPAREN)
	for p.tok != token.RPAREN && p.tok != token.EOF {
		if len(params) > 0 {
			p.expect(token.COMMA)
		}
		if p.tok == token.ELLIPSIS { // fn f(a, ...)
			p.next()
			rest = true
			break
		}
		name, pos := p.expectIdent()
		params = append(params, ast.Field{Name: name, Pos: pos})
	}
	p.expect(token.RPAREN)
	return params, rest
}

func (p *parser) parseProcessStmt() ast.Stmt {
	startPos := p.expect(token.PROCESS)
	name, _ := p.expectIdent()
	params, _ := p.parseParams()
	body := p.parseBlock()
	endPos := p.expect(token.END)
	return &ast.ProcessStmt{ProcessPos: startPos, Name: name, Params: params, Body: body, EndPos: endPos}
}

func (p *parser) parseFields() []ast.Field {
	var fields []ast.Field
	for p.tok == token.IDENT {
		name, pos := p.expectIdent()
		fields = append(fields, ast.Field{Name: name, Pos: pos})
		if p.tok == token.COMMA {
			p.next()
			continue
		}
		break
	}
	return fields
}

func (p *parser) parseClassStmt() ast.Stmt {
	startPos := p.expect(token.CLASS)
	name, _ := p.expectIdent()
	var base string
	if p.tok == token.COLON {
		p.next()
		base, _ = p.expectIdent()
	}
	p.expect(token.BEGIN)

	cs := &ast.ClassStmt{ClassPos: startPos, Name: name, Base: base}
	for p.tok != token.END && p.tok != token.EOF {
		switch p.tok {
		case token.VAR:
			p.next()
			cs.Fields = append(cs.Fields, p.parseFields()...)
			p.consumeSemi()
		case token.FN:
			cs.Methods = append(cs.Methods, p.parseFuncStmt())
		default:
			p.errorf(p.pos, "expected field or method declaration in class body, got %s", p.tok.GoString())
			p.syncToEnd()
		}
	}
	cs.EndPos = p.expect(token.END)
	return cs
}

func (p *parser) parseStructStmt() ast.Stmt {
	startPos := p.expect(token.STRUCT)
	name, _ := p.expectIdent()
	p.expect(token.BEGIN)

	ss := &ast.StructStmt{StructPos: startPos, Name: name}
	for p.tok != token.END && p.tok != token.EOF {
		if p.tok != token.VAR {
			p.errorf(p.pos, "expected field declaration in struct body, got %s", p.tok.GoString())
			p.syncToEnd()
			continue
		}
		p.next()
		ss.Fields = append(ss.Fields, p.parseFields()...)
		p.consumeSemi()
	}
	ss.EndPos = p.expect(token.END)
	return ss
}

func (p *parser) parseFuncStmt() *ast.FuncStmt {
	fnPos := p.expect(token.FN)
	name, _ := p.expectIdent()
	params, rest := p.parseParams()
	body := p.parseBlock()
	endPos := p.expect(token.END)
	fn := &ast.FuncExpr{FnPos: fnPos, Params: params, HasRest: rest, Body: body, EndPos: endPos}
	return &ast.FuncStmt{FnPos: fnPos, Name: name, Fn: fn, EndPos: endPos}
}

func (p *parser) consumeSemi() {
	for p.tok == token.SEMI {
		p.next()
	}
}

func (p *parser) parseStmt() ast.Stmt {
	defer p.consumeSemi()

	switch p.tok {
	case token.VAR, token.PRIVATE, token.GLOBAL:
		return p.parseDeclStmt()
	case token.IF:
		return p.parseIfStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.FOR:
		return p.parseForInStmt()
	case token.RETURN:
		return p.parseReturnStmt()
	case token.BREAK, token.CONTINUE:
		tok, pos := p.tok, p.pos
		p.next()
		return &ast.BranchStmt{Tok: tok, TokPos: pos}
	case token.LABEL:
		pos := p.pos
		p.next()
		name, _ := p.expectIdent()
		return &ast.LabelStmt{LabelPos: pos, Name: name}
	case token.GOSUB:
		pos := p.pos
		p.next()
		name, _ := p.expectIdent()
		return &ast.GosubStmt{GosubPos: pos, Name: name}
	case token.RETSUB:
		pos := p.pos
		p.next()
		return &ast.RetsubStmt{RetsubPos: pos}
	case token.TRY:
		return p.parseTryStmt()
	case token.THROW:
		pos := p.pos
		p.next()
		x := p.parseExpr()
		return &ast.ThrowStmt{ThrowPos: pos, X: x}
	case token.FRAME:
		return p.parseFrameStmt()
	case token.WAIT:
		return p.parseWaitStmt()
	case token.KILL:
		return p.parseKillStmt()
	case token.SIGNAL:
		return p.parseSignalStmt()
	case token.FN:
		return p.parseFuncStmt()
	default:
		return p.parseSimpleStmt()
	}
}

func (p *parser) parseDeclStmt() ast.Stmt {
	kind, kwPos := p.tok, p.pos
	p.next()

	d := &ast.DeclStmt{Kind: kind, KwPos: kwPos}
	for {
		name, pos := p.expectIdent()
		d.Names = append(d.Names, ast.Field{Name: name, Pos: pos})
		var val ast.Expr
		if p.tok == token.EQ {
			p.next()
			val = p.parseExpr()
		}
		d.Values = append(d.Values, val)
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	d.EndPos = p.pos
	return d
}

func (p *parser) parseIfStmt() ast.Stmt {
	ifPos := p.expect(token.IF)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	then := p.parseBlock()
	endPos := p.expect(token.END)

	st := &ast.IfStmt{IfPos: ifPos, Cond: cond, Then: then, EndPos: endPos}
	if p.tok != token.ELSE {
		return st
	}
	p.next()
	if p.tok == token.IF {
		elseIf := p.parseIfStmt().(*ast.IfStmt)
		st.Else = &ast.Block{Start: elseIf.IfPos, End: elseIf.EndPos, Stmts: []ast.Stmt{elseIf}}
		st.EndPos = elseIf.EndPos
		return st
	}
	st.Else = p.parseBlock()
	st.EndPos = p.expect(token.END)
	return st
}

func (p *parser) parseWhileStmt() ast.Stmt {
	whilePos := p.expect(token.WHILE)
	p.expect(token.LPAREN)
	cond := p.parseExpr()
	p.expect(token.RPAREN)
	body := p.parseBlock()
	endPos := p.expect(token.END)
	return &ast.WhileStmt{WhilePos: whilePos, Cond: cond, Body: body, EndPos: endPos}
}

func (p *parser) parseForInStmt() ast.Stmt {
	forPos := p.expect(token.FOR)
	names := []ast.Field{}
	for {
		name, pos := p.expectIdent()
		names = append(names, ast.Field{Name: name, Pos: pos})
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.IN)
	x := p.parseExpr()
	body := p.parseBlock()
	endPos := p.expect(token.END)
	return &ast.ForInStmt{ForPos: forPos, Names: names, X: x, Body: body, EndPos: endPos}
}

func (p *parser) parseReturnStmt() ast.Stmt {
	pos := p.expect(token.RETURN)
	var x ast.Expr
	if p.tok != token.SEMI && p.tok != token.END && p.tok != token.EOF {
		x = p.parseExpr()
	}
	return &ast.ReturnStmt{ReturnPos: pos, X: x}
}

func (p *parser) parseTryStmt() ast.Stmt {
	tryPos := p.expect(token.TRY)
	body := p.parseBlock()
	p.expect(token.END)
	p.expect(token.CATCH)
	var catchVar string
	if p.tok == token.LPAREN {
		p.next()
		catchVar, _ = p.expectIdent()
		p.expect(token.RPAREN)
	}
	catch := p.parseBlock()
	endPos := p.expect(token.END)
	return &ast.TryStmt{TryPos: tryPos, Body: body, CatchVar: catchVar, Catch: catch, EndPos: endPos}
}

func (p *parser) parseFrameStmt() ast.Stmt {
	pos := p.expect(token.FRAME)
	lparen := p.expect(token.LPAREN)
	pct := p.parseExpr()
	rparen := p.expect(token.RPAREN)
	return &ast.FrameStmt{FramePos: pos, Percent: pct, LParen: lparen, RParen: rparen}
}

func (p *parser) parseWaitStmt() ast.Stmt {
	pos := p.expect(token.WAIT)
	lparen := p.expect(token.LPAREN)
	ms := p.parseExpr()
	rparen := p.expect(token.RPAREN)
	return &ast.WaitStmt{WaitPos: pos, Ms: ms, LParen: lparen, RParen: rparen}
}

func (p *parser) parseKillStmt() ast.Stmt {
	pos := p.expect(token.KILL)
	lparen := p.expect(token.LPAREN)
	var id ast.Expr
	if p.tok != token.RPAREN {
		id = p.parseExpr()
	}
	rparen := p.expect(token.RPAREN)
	return &ast.KillStmt{KillPos: pos, ID: id, LParen: lparen, RParen: rparen}
}

func (p *parser) parseSignalStmt() ast.Stmt {
	pos := p.expect(token.SIGNAL)
	lparen := p.expect(token.LPAREN)
	id := p.parseExpr()
	p.expect(token.COMMA)
	kind := p.parseExpr()
	rparen := p.expect(token.RPAREN)
	return &ast.SignalStmt{SignalPos: pos, ID: id, Kind: kind, LParen: lparen, RParen: rparen}
}

// parseSimpleStmt parses an expression statement or an assignment, which
// share a common prefix (an expression) until the first '=' is (or isn't)
// seen.
func (p *parser) parseSimpleStmt() ast.Stmt {
	x := p.parseExpr()
	switch p.tok {
	case token.EQ, token.PLUS_EQ, token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ,
		token.SLASHSLASH_EQ, token.PERCENT_EQ, token.AMP_EQ, token.PIPE_EQ,
		token.CIRCUMFLEX_EQ, token.LTLT_EQ, token.GTGT_EQ:
		op, opPos := p.tok, p.pos
		p.next()
		rhs := p.parseExpr()
		return &ast.AssignStmt{LHS: x, Op: op, OpPos: opPos, RHS: rhs}
	default:
		return &ast.ExprStmt{X: x}
	}
}
