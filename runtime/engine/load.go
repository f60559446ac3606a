package engine

import (
	"bytes"
	"fmt"

	"github.com/mna/divm/lang/compiler"
	"github.com/mna/divm/runtime/process"
	"github.com/mna/divm/runtime/value"
)

// loadProgram materializes a compiled program into the engine: globals are
// mapped into the engine-wide table, constants are resolved once into
// Values, every Funcode gets its runtime Function, and the declaration
// tables (processes, classes, structs) are registered. Returns the
// toplevel function, ready to execute.
func (it *Interpreter) loadProgram(prog *compiler.Program) (*value.Function, error) {
	globalMap := make([]int, len(prog.Globals))
	for i, name := range prog.Globals {
		if idx, ok := it.globalIndex[name]; ok {
			globalMap[i] = idx
			continue
		}
		idx := len(it.globals)
		it.globals = append(it.globals, value.Nil)
		it.globalIndex[name] = idx
		globalMap[i] = idx
	}

	consts := make([]value.Value, len(prog.Constants))
	for i, c := range prog.Constants {
		switch c := c.(type) {
		case int64:
			consts[i] = value.Int(c)
		case float64:
			consts[i] = value.Float(c)
		case string:
			consts[i] = it.interner.String(c)
		default:
			return nil, fmt.Errorf("engine: unsupported constant type %T", c)
		}
	}

	closures := make([]*value.Function, len(prog.Closures))
	mkFn := func(fc *compiler.Funcode) *value.Function {
		arity := fc.NumParams
		if fc.HasVarArg {
			arity = -1
		}
		return &value.Function{
			Name:      fc.Name,
			Code:      fc,
			Consts:    consts,
			Arity:     arity,
			NumLocals: len(fc.Locals),
			GlobalMap: globalMap,
			Closures:  closures,
		}
	}
	for i, fc := range prog.Closures {
		closures[i] = mkFn(fc)
	}

	toplevel := mkFn(prog.Toplevel)

	// Named top-level functions bind as globals so the chunk (and the host,
	// through CallFunction) can call them by name.
	for _, fc := range prog.Functions {
		fn := mkFn(fc)
		it.globals[it.globalIndex[fc.Name]] = value.Value{Kind: value.KFunction, Ref: fn}
	}

	// Classes link to their base in a second pass so declaration order in
	// the chunk does not matter. A base class provides method inheritance;
	// fields belong to the class that declares them.
	bases := make(map[string]string, len(prog.Classes))
	for _, cd := range prog.Classes {
		vcd := &value.ClassDef{
			Name:       cd.Name,
			Fields:     append([]string(nil), cd.Fields...),
			FieldIndex: make(map[string]int, len(cd.Fields)),
			Methods:    make(map[string]*value.Function, len(cd.Methods)),
		}
		for i, f := range cd.Fields {
			vcd.FieldIndex[f] = i
		}
		for mname, mfc := range cd.Methods {
			vcd.Methods[mname] = mkFn(mfc)
		}
		it.classes[cd.Name] = vcd
		bases[cd.Name] = cd.Base
	}
	for name, base := range bases {
		if base == "" {
			continue
		}
		bd, ok := it.classes[base]
		if !ok {
			return nil, fmt.Errorf("engine: class %s extends unknown class %s", name, base)
		}
		it.classes[name].Base = bd
	}

	for _, sd := range prog.Structs {
		vsd := &value.StructDef{
			Name:       sd.Name,
			Fields:     append([]string(nil), sd.Fields...),
			FieldIndex: make(map[string]int, len(sd.Fields)),
		}
		for i, f := range sd.Fields {
			vsd.FieldIndex[f] = i
		}
		it.structs[sd.Name] = vsd
	}

	for _, pd := range prog.Processes {
		it.sched.RegisterDef(process.NewDef(pd.Name, mkFn(pd.Ctor), pd.PrivateNames))
	}

	return toplevel, nil
}

const maxIncludeDepth = 16

// expandIncludes splices the source named by each `include "path"` line in
// place of the directive, resolving paths through the host's file loader.
func (it *Interpreter) expandIncludes(src []byte, depth int) ([]byte, error) {
	if !bytes.Contains(src, []byte("include")) {
		return src, nil
	}
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("engine: includes nested deeper than %d", maxIncludeDepth)
	}

	var out bytes.Buffer
	for _, line := range bytes.SplitAfter(src, []byte("\n")) {
		path, ok := includePath(bytes.TrimSpace(line))
		if !ok {
			out.Write(line)
			continue
		}
		if it.fileLoader == nil {
			return nil, fmt.Errorf("engine: include %q but no file loader is set", path)
		}
		blob, err := it.fileLoader(path)
		if err != nil {
			return nil, fmt.Errorf("engine: include %q: %w", path, err)
		}
		expanded, err := it.expandIncludes(blob, depth+1)
		if err != nil {
			return nil, err
		}
		out.Write(expanded)
		out.WriteByte('\n')
	}
	return out.Bytes(), nil
}

// includePath reports whether line is exactly an include directive, and the
// quoted path it names.
func includePath(line []byte) (string, bool) {
	const kw = "include"
	if !bytes.HasPrefix(line, []byte(kw)) {
		return "", false
	}
	rest := bytes.TrimSpace(line[len(kw):])
	if len(rest) < 2 || rest[0] != '"' || rest[len(rest)-1] != '"' {
		return "", false
	}
	return string(rest[1 : len(rest)-1]), true
}
