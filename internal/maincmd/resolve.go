package maincmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/mna/divm/lang/parser"
	"github.com/mna/divm/lang/resolver"
	"github.com/mna/mainer"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		chunk, err := parser.Parse(file, src)
		if err != nil {
			// cannot resolve an AST if parsing has errors
			return printErrorList(stdio, err)
		}
		res, err := resolver.Resolve(chunk)
		if err != nil {
			return printResolveErrors(stdio, err)
		}

		fmt.Fprintf(stdio.Stdout, "%s: %d globals, %d functions, %d processes, %d classes, %d structs\n",
			file, len(res.Globals), len(res.Funcs), len(res.Processes), len(res.Classes), len(res.Structs))

		// stable output: identifiers sorted by position.
		type use struct {
			line, col int
			name      string
			bdg       *resolver.Binding
		}
		uses := make([]use, 0, len(res.Idents))
		for id, bdg := range res.Idents {
			line, col := id.NamePos.LineCol()
			uses = append(uses, use{line, col, id.Name, bdg})
		}
		sort.Slice(uses, func(i, j int) bool {
			if uses[i].line != uses[j].line {
				return uses[i].line < uses[j].line
			}
			return uses[i].col < uses[j].col
		})
		for _, u := range uses {
			fmt.Fprintf(stdio.Stdout, "  %d:%d: %s -> %s", u.line, u.col, u.name, u.bdg.Scope)
			if u.bdg.Scope != resolver.Universal {
				fmt.Fprintf(stdio.Stdout, " %d", u.bdg.Index)
			}
			fmt.Fprintln(stdio.Stdout)
		}
	}
	return nil
}

func printResolveErrors(stdio mainer.Stdio, err error) error {
	switch el := err.(type) {
	case resolver.ErrorList:
		for _, e := range el {
			fmt.Fprintf(stdio.Stderr, "%s\n", e)
		}
	default:
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}
