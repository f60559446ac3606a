// Package maincmd implements the divm command-line tool: the compilation
// phases (tokenize, parse, resolve, disasm), bytecode compilation and the
// script runner, all dispatched through mainer.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "divm"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

Compiler, virtual machine and all-in-one tool for the %[1]s
process-oriented scripting language.

The <command> can be one of:
       tokenize                  Print the token stream of each file.
       parse                     Parse each file and print a summary of
                                 its declarations.
       resolve                   Parse and resolve each file, printing
                                 the binding of every identifier.
       disasm                    Compile each file and print the
                                 disassembled bytecode.
       compile                   Compile each file to a .divc bytecode
                                 file next to the source.
       run                       Compile and execute each file, driving
                                 the scheduler for --ticks frames.
       exec                      Load and execute compiled .divc files,
                                 driving the scheduler for --ticks
                                 frames.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

Valid flag options for the <run> and <exec> commands are:
       --ticks <n>               Number of scheduler ticks to drive
                                 after the top-level statements ran
                                 (default 0).
       --fps <n>                 Ticks per second used to derive the
                                 frame delta (default 60).

More information on the %[1]s repository:
       https://github.com/mna/divm
`, binName)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Ticks int `flag:"ticks"`
	FPS   int `flag:"fps"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]

	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", c.args[0])
	}

	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: at least one file must be provided", cmdName)
	}

	if (c.flags["ticks"] || c.flags["fps"]) && cmdName != "run" && cmdName != "exec" {
		return fmt.Errorf("%s: flags 'ticks' and 'fps' only apply to run and exec", cmdName)
	}
	if c.FPS == 0 {
		c.FPS = 60
	}

	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		// each command takes care of printing its errors, just return with an
		// error code
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings as
// input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
