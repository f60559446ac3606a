package maincmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/lang/parser"
	"github.com/mna/divm/lang/resolver"
	"github.com/mna/mainer"
)

// compiledExt is the extension of on-disk bytecode files.
const compiledExt = ".divc"

func compileFile(file string) (*compiler.Program, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	chunk, err := parser.Parse(file, src)
	if err != nil {
		return nil, err
	}
	res, err := resolver.Resolve(chunk)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(res), nil
}

func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		prog, err := compileFile(file)
		if err != nil {
			return printErrorList(stdio, err)
		}
		fmt.Fprint(stdio.Stdout, compiler.Disassemble(prog))
	}
	return nil
}

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		prog, err := compileFile(file)
		if err != nil {
			return printErrorList(stdio, err)
		}
		out := strings.TrimSuffix(file, ".divm") + compiledExt
		if err := os.WriteFile(out, compiler.Serialize(prog), 0o644); err != nil {
			return printError(stdio, err)
		}
		fmt.Fprintf(stdio.Stdout, "%s -> %s\n", file, out)
	}
	return nil
}
