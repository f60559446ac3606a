// Package parser implements a recursive-descent, precedence-climbing parser
// that turns a token stream from lang/scanner into a lang/ast.Chunk: one
// method per grammar production, with a small precedence table for binary
// operators.
package parser

import (
	"fmt"

	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/scanner"
	"github.com/mna/divm/lang/token"
)

// Error is a single parse error with its source position.
type Error struct {
	Pos token.Pos
	Msg string
}

func (e *Error) Error() string {
	line, col := e.Pos.LineCol()
	return fmt.Sprintf("%d:%d: %s", line, col, e.Msg)
}

// ErrorList collects every error encountered while parsing.
type ErrorList []*Error

func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	return fmt.Sprintf("%s (and %d more errors)", el[0].Error(), len(el)-1)
}

// Parse parses a complete source chunk.
func Parse(name string, src []byte) (*ast.Chunk, error) {
	p := &parser{name: name}
	p.sc.Init(src, func(pos token.Pos, msg string) {
		p.errors = append(p.errors, &Error{Pos: pos, Msg: msg})
	})
	p.next()

	chunk := &ast.Chunk{Name: name}
	for p.tok != token.EOF {
		chunk.Stmts = append(chunk.Stmts, p.parseTopStmt())
	}
	chunk.EOF = p.pos

	if len(p.errors) > 0 {
		return chunk, p.errors
	}
	return chunk, nil
}

type parser struct {
	name   string
	sc     scanner.Scanner
	errors ErrorList

	tok token.Token
	pos token.Pos
	lit interface{}
}

func (p *parser) next() {
	p.tok, p.pos, p.lit = p.sc.Scan()
}

func (p *parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.errors = append(p.errors, &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// expect consumes the current token if it matches tok, recording an error
// and leaving the stream in place otherwise (so the caller can attempt to
// resynchronize). It always returns the position of the consumed/expected
// token.
func (p *parser) expect(tok token.Token) token.Pos {
	pos := p.pos
	if p.tok != tok {
		p.errorf(pos, "expected %s, got %s", tok.GoString(), p.tok.GoString())
		return pos
	}
	p.next()
	return pos
}

func (p *parser) expectIdent() (string, token.Pos) {
	pos := p.pos
	if p.tok != token.IDENT {
		p.errorf(pos, "expected identifier, got %s", p.tok.GoString())
		return "", pos
	}
	name := p.lit.(string)
	p.next()
	return name, pos
}

// syncToEnd skips tokens until it finds a statement boundary, used to
// recover after a parse error so later statements can still be reported.
func (p *parser) syncToEnd() {
	for p.tok != token.EOF && p.tok != token.END && p.tok != token.SEMI {
		p.next()
	}
	if p.tok == token.SEMI {
		p.next()
	}
}
