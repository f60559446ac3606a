package scanner

import (
	"testing"

	"github.com/mna/divm/lang/token"
	"github.com/stretchr/testify/require"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	var s Scanner
	var errs []string
	s.Init([]byte(src), func(_ token.Pos, msg string) { errs = append(errs, msg) })

	var toks []token.Token
	for {
		tok, _, _ := s.Scan()
		toks = append(toks, tok)
		if tok == token.EOF {
			break
		}
	}
	require.Empty(t, errs)
	return toks
}

func TestScanKeywordsAndPunct(t *testing.T) {
	toks := scanAll(t, `process ticker() begin private x x = 0 frame(100) end`)
	require.Equal(t, []token.Token{
		token.PROCESS, token.IDENT, token.LPAREN, token.RPAREN, token.BEGIN,
		token.PRIVATE, token.IDENT,
		token.IDENT, token.EQ, token.INT,
		token.FRAME, token.LPAREN, token.INT, token.RPAREN,
		token.END, token.EOF,
	}, toks)
}

func TestScanOperators(t *testing.T) {
	toks := scanAll(t, `+= -= 7 // 2 //= == != <= >= << >> :: . ...`)
	require.Equal(t, []token.Token{
		token.PLUS_EQ, token.MINUS_EQ, token.INT, token.SLASHSLASH, token.INT, token.SLASHSLASH_EQ,
		token.EQL, token.NEQ, token.LE, token.GE, token.LTLT, token.GTGT,
		token.DCOLON, token.DOT, token.ELLIPSIS, token.EOF,
	}, toks)
}

func TestScanLineComment(t *testing.T) {
	toks := scanAll(t, "1 # a comment with // inside it\n2")
	require.Equal(t, []token.Token{token.INT, token.INT, token.EOF}, toks)
}

func TestScanLiterals(t *testing.T) {
	var s Scanner
	s.Init([]byte(`123 4.5 "hi\n" 0x1F`), nil)

	tok, _, lit := s.Scan()
	require.Equal(t, token.INT, tok)
	require.Equal(t, int64(123), lit)

	tok, _, lit = s.Scan()
	require.Equal(t, token.FLOAT, tok)
	require.Equal(t, 4.5, lit)

	tok, _, lit = s.Scan()
	require.Equal(t, token.STRING, tok)
	require.Equal(t, "hi\n", lit)

	tok, _, lit = s.Scan()
	require.Equal(t, token.INT, tok)
	require.Equal(t, int64(31), lit)
}

func TestScanLineCol(t *testing.T) {
	var s Scanner
	s.Init([]byte("a\nbb"), nil)

	_, pos, _ := s.Scan() // a
	line, col := pos.LineCol()
	require.Equal(t, 1, line)
	require.Equal(t, 1, col)

	_, pos, _ = s.Scan() // bb
	line, col = pos.LineCol()
	require.Equal(t, 2, line)
	require.Equal(t, 1, col)
}
