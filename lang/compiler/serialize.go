package compiler

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mna/divm/lang/token"
	"golang.org/x/exp/slices"
)

// Magic identifies a compiled bytecode file. All multi-byte integers in the
// format are little-endian; floats are IEEE-754 binary64. The layout is:
// magic, version, interned-string pool, file name, constant pool, name
// table, global symbol table, function tables (toplevel, named functions,
// closures), process definition table, class table, struct table. Every
// string in the body is a uint32 index into the pool.
var Magic = [4]byte{'D', 'I', 'V', 'C'}

// Serialize encodes prog into the on-disk bytecode format.
func Serialize(prog *Program) []byte {
	w := &progWriter{pool: make(map[string]uint32)}

	var body bytes.Buffer
	w.body = &body

	w.str(prog.Filename)
	w.u32(uint32(len(prog.Constants)))
	for _, c := range prog.Constants {
		switch c := c.(type) {
		case int64:
			w.u8(0)
			w.u64(uint64(c))
		case float64:
			w.u8(1)
			w.u64(math.Float64bits(c))
		case string:
			w.u8(2)
			w.str(c)
		default:
			panic(fmt.Sprintf("compiler: cannot serialize constant %T", c))
		}
	}
	w.strs(prog.Names)
	w.strs(prog.Globals)

	w.funcode(prog.Toplevel)
	w.u32(uint32(len(prog.Functions)))
	for _, fn := range prog.Functions {
		w.funcode(fn)
	}
	w.u32(uint32(len(prog.Closures)))
	for _, fn := range prog.Closures {
		w.funcode(fn)
	}

	w.u32(uint32(len(prog.Processes)))
	for _, p := range prog.Processes {
		w.str(p.Name)
		w.u32(uint32(p.NumPrivates))
		w.strs(p.PrivateNames)
		w.funcode(p.Ctor)
	}
	w.u32(uint32(len(prog.Classes)))
	for _, c := range prog.Classes {
		w.str(c.Name)
		w.str(c.Base)
		w.strs(c.Fields)
		w.u32(uint32(len(c.Methods)))
		for _, name := range sortedKeys(c.Methods) {
			w.str(name)
			w.funcode(c.Methods[name])
		}
	}
	w.u32(uint32(len(prog.Structs)))
	for _, st := range prog.Structs {
		w.str(st.Name)
		w.strs(st.Fields)
	}

	// The pool indices were assigned in first-use order while the body was
	// written; the pool section precedes the body so the reader can resolve
	// them in one pass.
	var out bytes.Buffer
	out.Write(Magic[:])
	le32(&out, Version)
	le32(&out, uint32(len(w.strings)))
	for _, s := range w.strings {
		le32(&out, uint32(len(s)))
		out.WriteString(s)
	}
	out.Write(body.Bytes())
	return out.Bytes()
}

// Deserialize decodes a program previously encoded with Serialize.
func Deserialize(data []byte) (*Program, error) {
	r := &progReader{data: data}
	var magic [4]byte
	copy(magic[:], r.bytes(4))
	if r.err == nil && magic != Magic {
		return nil, fmt.Errorf("compiler: not a bytecode file (bad magic)")
	}
	if v := r.u32(); r.err == nil && v != Version {
		return nil, fmt.Errorf("compiler: bytecode version %d, expected %d", v, Version)
	}

	n := r.u32()
	r.strings = make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		ln := r.u32()
		r.strings = append(r.strings, string(r.bytes(int(ln))))
	}

	prog := &Program{}
	prog.Filename = r.str()
	nc := r.u32()
	for i := uint32(0); i < nc && r.err == nil; i++ {
		switch tag := r.u8(); tag {
		case 0:
			prog.Constants = append(prog.Constants, int64(r.u64()))
		case 1:
			prog.Constants = append(prog.Constants, math.Float64frombits(r.u64()))
		case 2:
			prog.Constants = append(prog.Constants, r.str())
		default:
			r.fail(fmt.Errorf("compiler: unknown constant tag %d", tag))
		}
	}
	prog.Names = r.strs()
	prog.Globals = r.strs()

	prog.Toplevel = r.funcode(prog)
	nf := r.u32()
	for i := uint32(0); i < nf && r.err == nil; i++ {
		prog.Functions = append(prog.Functions, r.funcode(prog))
	}
	ncl := r.u32()
	for i := uint32(0); i < ncl && r.err == nil; i++ {
		prog.Closures = append(prog.Closures, r.funcode(prog))
	}

	np := r.u32()
	for i := uint32(0); i < np && r.err == nil; i++ {
		p := &ProcessDef{Name: r.str(), NumPrivates: int(r.u32())}
		p.PrivateNames = r.strs()
		p.Ctor = r.funcode(prog)
		prog.Processes = append(prog.Processes, p)
	}
	nk := r.u32()
	for i := uint32(0); i < nk && r.err == nil; i++ {
		c := &ClassDef{Name: r.str(), Base: r.str(), Fields: r.strs(), Methods: make(map[string]*Funcode)}
		nm := r.u32()
		for j := uint32(0); j < nm && r.err == nil; j++ {
			name := r.str()
			c.Methods[name] = r.funcode(prog)
		}
		prog.Classes = append(prog.Classes, c)
	}
	ns := r.u32()
	for i := uint32(0); i < ns && r.err == nil; i++ {
		prog.Structs = append(prog.Structs, &StructDef{Name: r.str(), Fields: r.strs()})
	}

	if r.err != nil {
		return nil, r.err
	}
	return prog, nil
}

func sortedKeys(m map[string]*Funcode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func le32(buf *bytes.Buffer, x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	buf.Write(b[:])
}

type progWriter struct {
	body    *bytes.Buffer
	strings []string
	pool    map[string]uint32
}

func (w *progWriter) u8(x uint8) { w.body.WriteByte(x) }

func (w *progWriter) u32(x uint32) { le32(w.body, x) }

func (w *progWriter) u64(x uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	w.body.Write(b[:])
}

func (w *progWriter) str(s string) {
	idx, ok := w.pool[s]
	if !ok {
		idx = uint32(len(w.strings))
		w.strings = append(w.strings, s)
		w.pool[s] = idx
	}
	w.u32(idx)
}

func (w *progWriter) strs(ss []string) {
	w.u32(uint32(len(ss)))
	for _, s := range ss {
		w.str(s)
	}
}

func (w *progWriter) funcode(fn *Funcode) {
	w.str(fn.Name)
	w.u32(uint32(fn.Pos))
	w.u32(uint32(fn.NumParams))
	if fn.HasVarArg {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u32(uint32(fn.MaxStack))

	w.u32(uint32(len(fn.Locals)))
	for _, l := range fn.Locals {
		w.str(l.Name)
		w.u32(uint32(l.Pos))
	}
	w.u32(uint32(len(fn.Cells)))
	for _, c := range fn.Cells {
		w.u32(uint32(c))
	}
	w.u32(uint32(len(fn.Freevars)))
	for i, fv := range fn.Freevars {
		w.str(fv.Name)
		if fn.FreeSrc[i].FromCell {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u32(uint32(fn.FreeSrc[i].Index))
	}
	w.u32(uint32(len(fn.Catches)))
	for _, c := range fn.Catches {
		w.u32(c.PC0)
		w.u32(c.PC1)
		w.u32(c.StartPC)
		if c.HasVar {
			w.u8(1)
		} else {
			w.u8(0)
		}
		w.u32(uint32(c.VarLocal))
	}
	w.u32(uint32(len(fn.PosTable)))
	for _, p := range fn.PosTable {
		w.u32(p.PC)
		w.u32(uint32(p.Pos))
	}
	w.u32(uint32(len(fn.Code)))
	w.body.Write(fn.Code)
}

type progReader struct {
	data    []byte
	off     int
	strings []string
	err     error
}

func (r *progReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *progReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.data) {
		r.fail(fmt.Errorf("compiler: truncated bytecode file"))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *progReader) u8() uint8 {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *progReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *progReader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *progReader) str() string {
	idx := r.u32()
	if r.err != nil {
		return ""
	}
	if int(idx) >= len(r.strings) {
		r.fail(fmt.Errorf("compiler: string pool index %d out of range", idx))
		return ""
	}
	return r.strings[idx]
}

func (r *progReader) strs() []string {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	ss := make([]string, 0, n)
	for i := uint32(0); i < n && r.err == nil; i++ {
		ss = append(ss, r.str())
	}
	return ss
}

func (r *progReader) funcode(prog *Program) *Funcode {
	fn := &Funcode{Prog: prog}
	fn.Name = r.str()
	fn.Pos = token.Pos(r.u32())
	fn.NumParams = int(r.u32())
	fn.HasVarArg = r.u8() == 1
	fn.MaxStack = int(r.u32())

	nl := r.u32()
	for i := uint32(0); i < nl && r.err == nil; i++ {
		fn.Locals = append(fn.Locals, Binding{Name: r.str(), Pos: token.Pos(r.u32())})
	}
	ncells := r.u32()
	for i := uint32(0); i < ncells && r.err == nil; i++ {
		fn.Cells = append(fn.Cells, int(r.u32()))
	}
	nfv := r.u32()
	for i := uint32(0); i < nfv && r.err == nil; i++ {
		fn.Freevars = append(fn.Freevars, Binding{Name: r.str()})
		fn.FreeSrc = append(fn.FreeSrc, FreeVarSource{FromCell: r.u8() == 1, Index: int(r.u32())})
	}
	ncatch := r.u32()
	for i := uint32(0); i < ncatch && r.err == nil; i++ {
		c := Catch{PC0: r.u32(), PC1: r.u32(), StartPC: r.u32()}
		c.HasVar = r.u8() == 1
		c.VarLocal = int(r.u32())
		fn.Catches = append(fn.Catches, c)
	}
	npos := r.u32()
	for i := uint32(0); i < npos && r.err == nil; i++ {
		fn.PosTable = append(fn.PosTable, PCPos{PC: r.u32(), Pos: token.Pos(r.u32())})
	}
	ncode := r.u32()
	fn.Code = append([]byte(nil), r.bytes(int(ncode))...)
	return fn
}
