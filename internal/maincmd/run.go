package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mna/divm/runtime/engine"
	"github.com/mna/mainer"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		src, err := os.ReadFile(file)
		if err != nil {
			return printError(stdio, err)
		}
		it := c.newEngine(stdio, filepath.Dir(file))
		if err := it.Run(file, src); err != nil {
			return printErrorList(stdio, err)
		}
		c.drive(ctx, it)
		fmt.Fprintf(stdio.Stdout, "%s: %d processes spawned, %d alive after %d ticks\n",
			file, it.GetTotalProcesses(), it.GetTotalAlive(), c.Ticks)
	}
	return nil
}

func (c *Cmd) Exec(ctx context.Context, stdio mainer.Stdio, args []string) error {
	for _, file := range args {
		it := c.newEngine(stdio, filepath.Dir(file))
		if err := it.LoadBytecode(file); err != nil {
			return printError(stdio, err)
		}
		c.drive(ctx, it)
		fmt.Fprintf(stdio.Stdout, "%s: %d processes spawned, %d alive after %d ticks\n",
			file, it.GetTotalProcesses(), it.GetTotalAlive(), c.Ticks)
	}
	return nil
}

// newEngine builds an engine wired to the process stdio: runtime errors go
// to stderr, the print native to stdout, and includes resolve relative to
// the script's directory.
func (c *Cmd) newEngine(stdio mainer.Stdio, dir string) *engine.Interpreter {
	it := engine.New()
	it.SetErrorSink(func(err error) {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	})
	it.SetFileLoader(func(path string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, path))
	})
	engine.RegisterPrint(it, stdio.Stdout)
	return it
}

// drive runs the scheduler for the configured number of ticks, stopping
// early when every process is gone or the context is cancelled.
func (c *Cmd) drive(ctx context.Context, it *engine.Interpreter) {
	dt := 1.0 / float64(c.FPS)
	for i := 0; i < c.Ticks; i++ {
		if ctx.Err() != nil || it.GetTotalAlive() == 0 {
			return
		}
		it.Update(dt)
		it.Render()
	}
}
