package parser

import (
	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/token"
)

// binPrec gives the binding precedence of each binary operator; higher binds
// tighter.
var binPrec = map[token.Token]int{
	token.OR:         1,
	token.AND:        2,
	token.EQL:        3,
	token.NEQ:        3,
	token.LT:         3,
	token.LE:         3,
	token.GT:         3,
	token.GE:         3,
	token.PIPE:       4,
	token.CIRCUMFLEX: 5,
	token.AMPERSAND:  6,
	token.LTLT:       7,
	token.GTGT:       7,
	token.PLUS:       8,
	token.MINUS:      8,
	token.STAR:       9,
	token.SLASH:      9,
	token.SLASHSLASH: 9,
	token.PERCENT:    9,
}

// parseExpr parses a full expression using precedence climbing.
func (p *parser) parseExpr() ast.Expr {
	return p.parseBinExpr(1)
}

func (p *parser) parseBinExpr(minPrec int) ast.Expr {
	x := p.parseUnaryExpr()
	for {
		prec, ok := binPrec[p.tok]
		if !ok || prec < minPrec {
			return x
		}
		op, opPos := p.tok, p.pos
		p.next()
		y := p.parseBinExpr(prec + 1)
		x = &ast.BinOpExpr{OpPos: opPos, Op: op, X: x, Y: y}
	}
}

func (p *parser) parseUnaryExpr() ast.Expr {
	switch p.tok {
	case token.MINUS, token.NOT, token.TILDE:
		op, pos := p.tok, p.pos
		p.next()
		x := p.parseUnaryExpr()
		return &ast.UnaryOpExpr{OpPos: pos, Op: op, X: x}
	default:
		return p.parsePostfixExpr(p.parsePrimaryExpr())
	}
}

func (p *parser) parsePostfixExpr(x ast.Expr) ast.Expr {
	for {
		switch p.tok {
		case token.DOT:
			p.next()
			name, namePos := p.expectIdent()
			x = &ast.DotExpr{X: x, Name: name, NamePos: namePos}
		case token.LBRACK:
			lbrack := p.pos
			p.next()
			idx := p.parseExpr()
			rbrack := p.expect(token.RBRACK)
			x = &ast.IndexExpr{X: x, Y: idx, LBrack: lbrack, RBrack: rbrack}
		case token.LPAREN:
			lparen := p.pos
			p.next()
			var args []ast.Expr
			for p.tok != token.RPAREN && p.tok != token.EOF {
				if len(args) > 0 {
					p.expect(token.COMMA)
				}
				args = append(args, p.parseExpr())
			}
			rparen := p.expect(token.RPAREN)
			x = &ast.CallExpr{Fn: x, Args: args, LParen: lparen, RParen: rparen}
		default:
			return x
		}
	}
}

func (p *parser) parsePrimaryExpr() ast.Expr {
	switch p.tok {
	case token.NIL, token.TRUE, token.FALSE:
		pos, tok := p.pos, p.tok
		p.next()
		var val interface{}
		switch tok {
		case token.TRUE:
			val = true
		case token.FALSE:
			val = false
		}
		return &ast.LiteralExpr{TokPos: pos, Tok: tok, Value: val}
	case token.INT, token.FLOAT, token.STRING:
		pos, tok, lit := p.pos, p.tok, p.lit
		p.next()
		return &ast.LiteralExpr{TokPos: pos, Tok: tok, Value: lit}
	case token.IDENT:
		name, pos := p.expectIdent()
		return &ast.IdentExpr{NamePos: pos, Name: name}
	case token.LPAREN:
		lparen := p.pos
		p.next()
		x := p.parseExpr()
		rparen := p.expect(token.RPAREN)
		return &ast.ParenExpr{LParen: lparen, RParen: rparen, X: x}
	case token.LBRACK:
		lbrack := p.pos
		p.next()
		var elems []ast.Expr
		for p.tok != token.RBRACK && p.tok != token.EOF {
			if len(elems) > 0 {
				p.expect(token.COMMA)
			}
			elems = append(elems, p.parseExpr())
		}
		rbrack := p.expect(token.RBRACK)
		return &ast.ArrayExpr{LBrack: lbrack, RBrack: rbrack, Elems: elems}
	case token.LBRACE:
		lbrace := p.pos
		p.next()
		var entries []ast.MapEntry
		for p.tok != token.RBRACE && p.tok != token.EOF {
			if len(entries) > 0 {
				p.expect(token.COMMA)
			}
			key := p.parseExpr()
			p.expect(token.COLON)
			val := p.parseExpr()
			entries = append(entries, ast.MapEntry{Key: key, Value: val})
		}
		rbrace := p.expect(token.RBRACE)
		return &ast.MapExpr{LBrace: lbrace, RBrace: rbrace, Entries: entries}
	case token.FN:
		fnPos := p.pos
		p.next()
		params, rest := p.parseParams()
		body := p.parseBlock()
		endPos := p.expect(token.END)
		return &ast.FuncExpr{FnPos: fnPos, Params: params, HasRest: rest, Body: body, EndPos: endPos}
	case token.NEW:
		pos := p.pos
		p.next()
		name, _ := p.expectIdent()
		lparen := p.expect(token.LPAREN)
		var args []ast.Expr
		for p.tok != token.RPAREN && p.tok != token.EOF {
			if len(args) > 0 {
				p.expect(token.COMMA)
			}
			args = append(args, p.parseExpr())
		}
		rparen := p.expect(token.RPAREN)
		return &ast.NewExpr{NewPos: pos, Name: name, Args: args, LParen: lparen, RParen: rparen}
	case token.SPAWN:
		pos := p.pos
		p.next()
		name, _ := p.expectIdent()
		lparen := p.expect(token.LPAREN)
		var args []ast.Expr
		for p.tok != token.RPAREN && p.tok != token.EOF {
			if len(args) > 0 {
				p.expect(token.COMMA)
			}
			args = append(args, p.parseExpr())
		}
		rparen := p.expect(token.RPAREN)
		return &ast.SpawnExpr{SpawnPos: pos, Name: name, Args: args, LParen: lparen, RParen: rparen}
	default:
		pos := p.pos
		p.errorf(pos, "unexpected token %s in expression", p.tok.GoString())
		p.next()
		return &ast.BadExpr{From: pos, To: pos}
	}
}
