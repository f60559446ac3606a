package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/divm/lang/ast"
	"github.com/mna/divm/lang/parser"
	"github.com/mna/mainer"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		chunk, err := parser.Parse(file, src)
		if err != nil {
			return printErrorList(stdio, err)
		}

		fmt.Fprintf(stdio.Stdout, "%s: %d top-level statements\n", file, len(chunk.Stmts))
		for _, s := range chunk.Stmts {
			switch s := s.(type) {
			case *ast.ProcessStmt:
				fmt.Fprintf(stdio.Stdout, "  process %s(%d params) %d stmts\n", s.Name, len(s.Params), len(s.Body.Stmts))
			case *ast.ClassStmt:
				fmt.Fprintf(stdio.Stdout, "  class %s %d fields %d methods\n", s.Name, len(s.Fields), len(s.Methods))
			case *ast.StructStmt:
				fmt.Fprintf(stdio.Stdout, "  struct %s %d fields\n", s.Name, len(s.Fields))
			case *ast.FuncStmt:
				fmt.Fprintf(stdio.Stdout, "  fn %s(%d params) %d stmts\n", s.Name, len(s.Fn.Params), len(s.Fn.Body.Stmts))
			default:
				line, _ := startLine(s)
				fmt.Fprintf(stdio.Stdout, "  %T at line %d\n", s, line)
			}
		}
	}
	return nil
}

func startLine(n ast.Node) (int, int) {
	start, _ := n.Span()
	return start.LineCol()
}

// printErrorList prints every error of a parse/resolve ErrorList, or the
// single error otherwise.
func printErrorList(stdio mainer.Stdio, err error) error {
	switch el := err.(type) {
	case parser.ErrorList:
		for _, e := range el {
			fmt.Fprintf(stdio.Stderr, "%s\n", e)
		}
	default:
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}
