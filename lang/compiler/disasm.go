package compiler

import (
	"fmt"
	"strings"
)

// Disassemble renders a compiled program in a stable textual form, one
// function per section, for diagnostics and golden-file tests.
func Disassemble(prog *Program) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "program %s\n", prog.Filename)
	if len(prog.Globals) > 0 {
		fmt.Fprintf(&sb, "globals: %s\n", strings.Join(prog.Globals, " "))
	}
	if len(prog.Constants) > 0 {
		sb.WriteString("constants:\n")
		for i, c := range prog.Constants {
			switch c := c.(type) {
			case string:
				fmt.Fprintf(&sb, "  %d: %q\n", i, c)
			default:
				fmt.Fprintf(&sb, "  %d: %v\n", i, c)
			}
		}
	}
	if len(prog.Names) > 0 {
		fmt.Fprintf(&sb, "names: %s\n", strings.Join(prog.Names, " "))
	}

	disFn := func(fn *Funcode) {
		fmt.Fprintf(&sb, "\nfunction %s (params=%d", fn.Name, fn.NumParams)
		if fn.HasVarArg {
			sb.WriteString(" vararg")
		}
		fmt.Fprintf(&sb, " locals=%d stack=%d)\n", len(fn.Locals), fn.MaxStack)
		if len(fn.Freevars) > 0 {
			names := make([]string, len(fn.Freevars))
			for i, fv := range fn.Freevars {
				src := "upval"
				if fn.FreeSrc[i].FromCell {
					src = "cell"
				}
				names[i] = fmt.Sprintf("%s(%s %d)", fv.Name, src, fn.FreeSrc[i].Index)
			}
			fmt.Fprintf(&sb, "  freevars: %s\n", strings.Join(names, " "))
		}
		for _, c := range fn.Catches {
			fmt.Fprintf(&sb, "  catch [%d,%d) -> %d\n", c.PC0, c.PC1, c.StartPC)
		}
		sb.WriteString(disasmCode(fn.Code))
	}

	disFn(prog.Toplevel)
	for _, fn := range prog.Functions {
		disFn(fn)
	}
	for _, p := range prog.Processes {
		fmt.Fprintf(&sb, "\nprocess %s (privates=%d)\n", p.Name, p.NumPrivates)
		disFn(p.Ctor)
	}
	for _, c := range prog.Classes {
		fmt.Fprintf(&sb, "\nclass %s fields=[%s]\n", c.Name, strings.Join(c.Fields, " "))
		for _, name := range sortedKeys(c.Methods) {
			disFn(c.Methods[name])
		}
	}
	for _, st := range prog.Structs {
		fmt.Fprintf(&sb, "\nstruct %s fields=[%s]\n", st.Name, strings.Join(st.Fields, " "))
	}
	for _, fn := range prog.Closures {
		disFn(fn)
	}
	return sb.String()
}

func disasmCode(code []byte) string {
	var sb strings.Builder
	for pc := uint32(0); pc < uint32(len(code)); {
		op := Opcode(code[pc])
		at := pc
		pc++
		if op < OpcodeArgMin {
			fmt.Fprintf(&sb, "  %4d  %s\n", at, op)
			continue
		}
		var arg uint32
		for s := uint(0); ; s += 7 {
			b := code[pc]
			pc++
			arg |= uint32(b&0x7f) << s
			if b < 0x80 {
				break
			}
		}
		switch op {
		case NEWCLASS, NEWSTRUCT, SPAWN:
			name, argc := UnpackNameArgc(arg)
			fmt.Fprintf(&sb, "  %4d  %s name=%d argc=%d\n", at, op, name, argc)
		default:
			fmt.Fprintf(&sb, "  %4d  %s %d\n", at, op, arg)
		}
	}
	return sb.String()
}
