package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/divm/lang/scanner"
	"github.com/mna/divm/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}

		var scanErr error
		var sc scanner.Scanner
		sc.Init(src, func(pos token.Pos, msg string) {
			line, col := pos.LineCol()
			fmt.Fprintf(stdio.Stderr, "%s:%d:%d: %s\n", file, line, col, msg)
			if scanErr == nil {
				scanErr = fmt.Errorf("%s: scan failed", file)
			}
		})

		for {
			tok, pos, lit := sc.Scan()
			line, col := pos.LineCol()
			fmt.Fprintf(stdio.Stdout, "%s:%d:%d: %s", file, line, col, tok)
			if lit != nil {
				fmt.Fprintf(stdio.Stdout, " %v", lit)
			}
			fmt.Fprintln(stdio.Stdout)
			if tok == token.EOF {
				break
			}
		}
		if scanErr != nil {
			return scanErr
		}
	}
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}
